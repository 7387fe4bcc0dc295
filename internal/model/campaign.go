// internal/model/campaign.go
package model

import "time"

// Campaign statuses.
const (
	CampaignDraft     = "draft"
	CampaignActive    = "active"
	CampaignPaused    = "paused"
	CampaignCompleted = "completed"
	CampaignFailed    = "failed"
)

// Recipient statuses.
const (
	RecipientPending   = "pending"
	RecipientSent      = "sent"
	RecipientFailed    = "failed"
	RecipientConverted = "converted"
)

// Variant statuses.
const (
	VariantActive   = "active"
	VariantInactive = "inactive"
)

// Schedule frequencies.
const (
	FrequencyOnce   = "once"
	FrequencyDaily  = "daily"
	FrequencyWeekly = "weekly"
)

type Campaign struct {
	ID              int         `db:"id" json:"id"`
	Name            string      `db:"name" json:"name"`
	WorkspaceID     string      `db:"workspace_id" json:"workspace_id"`
	TargetChannel   string      `db:"target_channel" json:"target_channel"`
	MessageTemplate string      `db:"message_template" json:"message_template"`
	Status          string      `db:"status" json:"status"`
	Schedule        Schedule    `json:"schedule"`
	Variants        []Variant   `json:"variants,omitempty"`
	Recipients      []Recipient `json:"recipients,omitempty"`
	Performance     Performance `json:"performance"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt       *time.Time  `db:"updated_at" json:"updated_at,omitempty"`
}

type Schedule struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Frequency string    `json:"frequency"` // once, daily, weekly
}

// Variant is an alternate message template used for A/B testing.
// Distribution is a percentage weight; weights across a campaign's
// variants must sum to 100 or less.
type Variant struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Template     string `json:"template"`
	Distribution int    `json:"distribution"`
	Status       string `json:"status"`
}

type Recipient struct {
	CampaignID  int        `json:"campaign_id"`
	UserID      string     `json:"user_id"`
	Status      string     `json:"status"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
	ConvertedAt *time.Time `json:"converted_at,omitempty"`
}

// Performance is a derived snapshot. It is always recomputable from the
// recipient list and the message log; no field here is a source of truth.
type Performance struct {
	TotalMessages     int     `json:"total_messages"`
	SuccessfulReplies int     `json:"successful_replies"`
	ResponseRate      float64 `json:"response_rate"`
	ConversionRate    float64 `json:"conversion_rate"`
}
