// internal/model/dispatch_job.go
package model

// DispatchJob is the queue payload for "send one generated message to one
// recipient". It has no durable representation outside the queue's own
// storage. Template carries the rendered campaign (or variant) text so a
// permanently failed job can still be logged with its original content.
type DispatchJob struct {
	WorkspaceID string            `json:"workspace_id"`
	ChannelID   string            `json:"channel_id"`
	CampaignID  int               `json:"campaign_id"`
	RecipientID string            `json:"recipient_id"`
	TemplateID  string            `json:"template_id"`
	Template    string            `json:"template"`
	Variant     *VariantRef       `json:"variant,omitempty"`
	Variables   map[string]string `json:"variables,omitempty"`
}
