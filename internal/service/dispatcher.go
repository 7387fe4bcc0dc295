// internal/service/dispatcher.go
package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"

	"github.com/brightline/outreach-backend/internal/model"
	"github.com/brightline/outreach-backend/internal/queue"
	"github.com/brightline/outreach-backend/internal/repository"
	"github.com/brightline/outreach-backend/internal/template"
	"github.com/brightline/outreach-backend/pkg/metrics"
)

// Dispatcher fans a campaign out to its pending recipients: one dispatch
// job per recipient, fire-and-forget. It never waits for a job's outcome.
type Dispatcher struct {
	Campaigns repository.CampaignRepositoryInterface
	Queue     queue.Queue
	Logger    *slog.Logger

	// Roll returns a number in [0, 100) for weighted variant selection.
	// Overridable so tests can pin the draw.
	Roll func() int
}

func NewDispatcher(campaigns repository.CampaignRepositoryInterface, q queue.Queue, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		Campaigns: campaigns,
		Queue:     q,
		Logger:    logger,
		Roll:      func() int { return rand.Intn(100) },
	}
}

type DispatchResult struct {
	CampaignID int `json:"campaign_id"`
	Enqueued   int `json:"enqueued"`
	Failed     int `json:"failed"`
}

// Dispatch enqueues one job per pending recipient, in recipient-list order.
// A recipient is marked sent as soon as its job is durably enqueued ("sent"
// means handed to the pipeline, not delivered); the pipeline's terminal
// failure overwrites that to failed later. An enqueue failure is recorded
// against that recipient only and the loop continues. Re-running against a
// campaign with no pending recipients enqueues nothing.
func (d *Dispatcher) Dispatch(ctx context.Context, campaignID int) (*DispatchResult, error) {
	campaign, err := d.Campaigns.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != model.CampaignActive {
		return nil, fmt.Errorf("campaign %d cannot be dispatched in status %s", campaignID, campaign.Status)
	}

	pending, err := d.Campaigns.PendingRecipients(campaignID)
	if err != nil {
		return nil, fmt.Errorf("load pending recipients: %w", err)
	}

	result := &DispatchResult{CampaignID: campaignID}
	for _, recipient := range pending {
		job := d.buildJob(campaign, recipient.UserID)

		if err := d.Queue.Enqueue(ctx, job); err != nil {
			d.Logger.Error("failed to enqueue dispatch job",
				slog.Int("campaign_id", campaignID),
				slog.String("recipient_id", recipient.UserID),
				slog.Any("error", err))
			if markErr := d.Campaigns.MarkRecipientFailed(campaignID, recipient.UserID); markErr != nil {
				d.Logger.Error("failed to mark recipient failed",
					slog.String("recipient_id", recipient.UserID), slog.Any("error", markErr))
			}
			result.Failed++
			continue
		}

		if err := d.Campaigns.MarkRecipientSent(campaignID, recipient.UserID); err != nil {
			d.Logger.Error("failed to mark recipient sent",
				slog.String("recipient_id", recipient.UserID), slog.Any("error", err))
		}
		result.Enqueued++
	}

	metrics.RecordDispatch("enqueued", result.Enqueued)
	metrics.RecordDispatch("failed", result.Failed)
	d.Logger.Info("campaign dispatched",
		slog.Int("campaign_id", campaignID),
		slog.Int("enqueued", result.Enqueued),
		slog.Int("failed", result.Failed))
	return result, nil
}

func (d *Dispatcher) buildJob(campaign *model.Campaign, userID string) model.DispatchJob {
	vars := map[string]string{
		"user_id":  userID,
		"campaign": campaign.Name,
		"product":  campaign.Name,
	}

	text := campaign.MessageTemplate
	var variantRef *model.VariantRef
	if len(campaign.Variants) > 0 {
		if variant := PickVariant(campaign.Variants, d.Roll()); variant != nil {
			text = variant.Template
			variantRef = &model.VariantRef{ID: variant.ID, Name: variant.Name}
		}
	}

	return model.DispatchJob{
		WorkspaceID: campaign.WorkspaceID,
		ChannelID:   campaign.TargetChannel,
		CampaignID:  campaign.ID,
		RecipientID: userID,
		TemplateID:  template.InitialContactID,
		Template:    template.Render(text, vars),
		Variant:     variantRef,
		Variables:   vars,
	}
}

// labelCampaign is a convenience for log/tag call sites.
func labelCampaign(id int) string {
	return strconv.Itoa(id)
}
