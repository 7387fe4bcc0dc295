// internal/model/message.go
package model

import "time"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry in the append-only message log. Content, role and
// sentiment never change after the row is written; only metadata may be
// enriched (read receipts, conversion flags).
type Message struct {
	ID          string          `db:"id" json:"id"`
	WorkspaceID string          `db:"workspace_id" json:"workspace_id"`
	UserID      string          `db:"user_id" json:"user_id"`
	CampaignID  int             `db:"campaign_id" json:"campaign_id"`
	ChannelID   string          `db:"channel_id" json:"channel_id"`
	Content     string          `db:"content" json:"content"`
	Role        string          `db:"role" json:"role"`
	Sentiment   float64         `db:"sentiment" json:"sentiment"`
	Metadata    MessageMetadata `json:"metadata"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

type MessageMetadata struct {
	TemplateID       string      `json:"template_id,omitempty"`
	Variant          *VariantRef `json:"variant,omitempty"`
	Converted        bool        `json:"converted,omitempty"`
	ConversionDetail string      `json:"conversion_detail,omitempty"`
	Error            string      `json:"error,omitempty"`
	Read             bool        `json:"read,omitempty"`
}

type VariantRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
