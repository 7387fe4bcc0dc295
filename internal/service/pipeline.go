// internal/service/pipeline.go
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/brightline/outreach-backend/internal/ai"
	"github.com/brightline/outreach-backend/internal/model"
	"github.com/brightline/outreach-backend/internal/repository"
	"github.com/brightline/outreach-backend/internal/report"
	"github.com/brightline/outreach-backend/internal/slack"
	"github.com/brightline/outreach-backend/internal/template"
	"github.com/brightline/outreach-backend/pkg/metrics"
)

// PauseChecker reports whether a campaign is currently paused. Implemented
// by the Redis pause cache; nil disables the check.
type PauseChecker interface {
	IsPaused(ctx context.Context, campaignID int) (bool, error)
}

// Pipeline turns one dispatch job into one delivered (or recorded-failed)
// message: render -> generate -> deliver -> sentiment -> log -> ack.
type Pipeline struct {
	Templates *template.Registry
	Generator ai.Generator
	Slack     slack.Deliverer
	Messages  repository.MessageRepositoryInterface
	Campaigns repository.CampaignRepositoryInterface
	Pause     PauseChecker
	Logger    *slog.Logger

	HistoryLimit int
}

// Process handles one dispatch job. Steps run strictly in order; any step's
// failure aborts the rest and surfaces to the queue's retry policy. Delivery
// happens before logging, so a logged-but-undelivered state cannot occur.
func (p *Pipeline) Process(ctx context.Context, job model.DispatchJob) error {
	// Best-effort: skip jobs of paused campaigns. Cache errors are ignored.
	if p.Pause != nil {
		if paused, err := p.Pause.IsPaused(ctx, job.CampaignID); err == nil && paused {
			p.Logger.Info("campaign paused, skipping job",
				slog.Int("campaign_id", job.CampaignID),
				slog.String("recipient_id", job.RecipientID))
			metrics.RecordPipelineOutcome("skipped")
			return nil
		}
	}

	tpl, err := p.Templates.Lookup(job.TemplateID)
	if err != nil {
		return err
	}

	vars := make(map[string]string, len(job.Variables)+2)
	for k, v := range job.Variables {
		vars[k] = v
	}
	if job.Template != "" {
		vars["message"] = job.Template
	}
	// Profile enrichment is cosmetic; a lookup failure never fails the job.
	if profile, err := p.Slack.UserProfile(ctx, job.RecipientID); err == nil && profile.Name != "" {
		vars["name"] = profile.Name
	} else if _, ok := vars["name"]; !ok {
		vars["name"] = job.RecipientID
	}

	prompt := template.Render(tpl.Text, vars)

	history, err := p.Messages.History(job.CampaignID, job.RecipientID, p.HistoryLimit)
	if err != nil {
		return fmt.Errorf("load conversation history: %w", err)
	}
	chat := make([]ai.ChatMessage, 0, len(history))
	for _, m := range history {
		chat = append(chat, ai.ChatMessage{Role: m.Role, Content: m.Content})
	}

	text, err := p.Generator.Generate(ctx, prompt, chat)
	if err != nil {
		return fmt.Errorf("generate message: %w", err)
	}

	if err := p.Slack.PostMessage(ctx, job.ChannelID, text); err != nil {
		return fmt.Errorf("deliver message: %w", err)
	}

	sentiment, err := p.Generator.ScoreSentiment(ctx, text)
	if err != nil {
		p.Logger.Warn("sentiment scoring failed, defaulting to neutral",
			slog.Int("campaign_id", job.CampaignID), slog.Any("error", err))
		sentiment = 0
	}

	msg := &model.Message{
		ID:          uuid.NewString(),
		WorkspaceID: job.WorkspaceID,
		UserID:      job.RecipientID,
		CampaignID:  job.CampaignID,
		ChannelID:   job.ChannelID,
		Content:     text,
		Role:        model.RoleAssistant,
		Sentiment:   sentiment,
		Metadata: model.MessageMetadata{
			TemplateID: tpl.ID,
			Variant:    job.Variant,
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := p.Messages.Append(msg); err != nil {
		return fmt.Errorf("log message: %w", err)
	}

	metrics.RecordPipelineOutcome("delivered")
	return nil
}

// RecordFailure is the queue's failure handler. It runs once per job after
// retry exhaustion (or a permanent error) and guarantees every attempted
// send leaves an auditable trace: one assistant message carrying the
// original template, neutral sentiment and the error text. It also
// overwrites the recipient's optimistic sent status with failed, making the
// worker's terminal outcome authoritative.
func (p *Pipeline) RecordFailure(ctx context.Context, job model.DispatchJob, jobErr error) {
	msg := &model.Message{
		ID:          uuid.NewString(),
		WorkspaceID: job.WorkspaceID,
		UserID:      job.RecipientID,
		CampaignID:  job.CampaignID,
		ChannelID:   job.ChannelID,
		Content:     job.Template,
		Role:        model.RoleAssistant,
		Sentiment:   0,
		Metadata: model.MessageMetadata{
			TemplateID: job.TemplateID,
			Variant:    job.Variant,
			Error:      jobErr.Error(),
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := p.Messages.Append(msg); err != nil {
		p.Logger.Error("failed to log failure message",
			slog.Int("campaign_id", job.CampaignID),
			slog.String("recipient_id", job.RecipientID),
			slog.Any("error", err))
	}

	if err := p.Campaigns.MarkRecipientFailed(job.CampaignID, job.RecipientID); err != nil {
		p.Logger.Error("failed to mark recipient failed",
			slog.Int("campaign_id", job.CampaignID),
			slog.String("recipient_id", job.RecipientID),
			slog.Any("error", err))
	}

	report.CaptureError(jobErr, map[string]string{
		"campaign_id":  labelCampaign(job.CampaignID),
		"recipient_id": job.RecipientID,
	})
	metrics.RecordPipelineOutcome("failed")
}
