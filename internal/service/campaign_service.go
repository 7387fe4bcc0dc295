// internal/service/campaign_service.go
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brightline/outreach-backend/internal/model"
	"github.com/brightline/outreach-backend/internal/repository"
	"github.com/brightline/outreach-backend/internal/slack"
)

// PauseFlagger records and clears campaign pause flags so queued jobs can be
// skipped. Nil disables the flagging (pausing then only stops the dispatcher).
type PauseFlagger interface {
	SetPaused(ctx context.Context, campaignID int) error
	ClearPaused(ctx context.Context, campaignID int) error
}

type CampaignService struct {
	Campaigns  repository.CampaignRepositoryInterface
	Messages   repository.MessageRepositoryInterface
	Slack      slack.Deliverer
	Dispatcher *Dispatcher
	Pause      PauseFlagger
	Logger     *slog.Logger
}

type CreateCampaignInput struct {
	Name            string          `json:"name"`
	WorkspaceID     string          `json:"workspace_id"`
	TargetChannel   string          `json:"target_channel"`
	MessageTemplate string          `json:"message_template"`
	Schedule        model.Schedule  `json:"schedule"`
	Variants        []model.Variant `json:"variants"`
}

var validTransitions = map[string][]string{
	model.CampaignDraft:  {model.CampaignActive, model.CampaignFailed},
	model.CampaignActive: {model.CampaignPaused, model.CampaignCompleted, model.CampaignFailed},
	model.CampaignPaused: {model.CampaignActive, model.CampaignCompleted, model.CampaignFailed},
}

// Create stores a new draft campaign and populates its recipient list from
// the target channel's current membership.
func (s *CampaignService) Create(ctx context.Context, in CreateCampaignInput) (*model.Campaign, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("campaign name cannot be empty")
	}
	if strings.TrimSpace(in.TargetChannel) == "" {
		return nil, fmt.Errorf("target channel cannot be empty")
	}
	if strings.TrimSpace(in.MessageTemplate) == "" {
		return nil, fmt.Errorf("message template cannot be empty")
	}
	if err := validateVariants(in.Variants); err != nil {
		return nil, err
	}

	campaign := &model.Campaign{
		Name:            in.Name,
		WorkspaceID:     in.WorkspaceID,
		TargetChannel:   in.TargetChannel,
		MessageTemplate: in.MessageTemplate,
		Schedule:        in.Schedule,
		Variants:        in.Variants,
		Status:          model.CampaignDraft,
	}
	if err := s.Campaigns.Create(campaign); err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}

	members, err := s.Slack.ChannelMembers(ctx, in.TargetChannel)
	if err != nil {
		return nil, fmt.Errorf("list channel members: %w", err)
	}
	if err := s.Campaigns.AddRecipients(campaign.ID, members); err != nil {
		return nil, fmt.Errorf("add recipients: %w", err)
	}

	for _, userID := range members {
		campaign.Recipients = append(campaign.Recipients, model.Recipient{
			CampaignID: campaign.ID,
			UserID:     userID,
			Status:     model.RecipientPending,
		})
	}

	s.Logger.Info("campaign created",
		slog.Int("campaign_id", campaign.ID),
		slog.String("channel", in.TargetChannel),
		slog.Int("recipients", len(members)))
	return campaign, nil
}

func validateVariants(variants []model.Variant) error {
	sum := 0
	for _, v := range variants {
		if v.ID == "" {
			return fmt.Errorf("variant id cannot be empty")
		}
		if v.Distribution < 0 || v.Distribution > 100 {
			return fmt.Errorf("variant %s distribution must be between 0 and 100", v.ID)
		}
		sum += v.Distribution
	}
	if sum > 100 {
		return fmt.Errorf("variant distributions sum to %d, must not exceed 100", sum)
	}
	return nil
}

func (s *CampaignService) Get(id int) (*model.Campaign, error) {
	campaign, err := s.Campaigns.GetByID(id)
	if err != nil {
		return nil, err
	}
	recipients, err := s.Campaigns.Recipients(id)
	if err != nil {
		return nil, err
	}
	campaign.Recipients = recipients
	return campaign, nil
}

func (s *CampaignService) List(page, pageSize int, status string) ([]*model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	campaigns, total, err := s.Campaigns.ListCampaigns(offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}
	return campaigns, pagination, nil
}

// UpdateStatus applies a validated lifecycle transition. Activating a
// campaign triggers a dispatch run; pausing and resuming maintain the pause
// flag queued jobs are checked against.
func (s *CampaignService) UpdateStatus(ctx context.Context, id int, status string) error {
	campaign, err := s.Campaigns.GetByID(id)
	if err != nil {
		return err
	}
	if !transitionAllowed(campaign.Status, status) {
		return fmt.Errorf("invalid status transition %s -> %s", campaign.Status, status)
	}

	if err := s.Campaigns.UpdateStatus(id, status); err != nil {
		return err
	}

	switch status {
	case model.CampaignPaused:
		if s.Pause != nil {
			if err := s.Pause.SetPaused(ctx, id); err != nil {
				s.Logger.Warn("failed to set pause flag", slog.Int("campaign_id", id), slog.Any("error", err))
			}
		}
	case model.CampaignActive:
		if s.Pause != nil {
			if err := s.Pause.ClearPaused(ctx, id); err != nil {
				s.Logger.Warn("failed to clear pause flag", slog.Int("campaign_id", id), slog.Any("error", err))
			}
		}
		if _, err := s.Dispatcher.Dispatch(ctx, id); err != nil {
			// Unrecoverable dispatch error fails the whole campaign.
			if markErr := s.Campaigns.UpdateStatus(id, model.CampaignFailed); markErr != nil {
				s.Logger.Error("failed to mark campaign failed", slog.Int("campaign_id", id), slog.Any("error", markErr))
			}
			return fmt.Errorf("dispatch campaign %d: %w", id, err)
		}
	}
	return nil
}

func transitionAllowed(from, to string) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Send triggers a dispatch run for an already-active campaign.
func (s *CampaignService) Send(ctx context.Context, id int) (*DispatchResult, error) {
	return s.Dispatcher.Dispatch(ctx, id)
}

// TrackPerformance recomputes the derived counters from the recipient list
// and the message log and stores the snapshot. The snapshot is never
// hand-edited; this recomputation is the only writer.
func (s *CampaignService) TrackPerformance(ctx context.Context, id int) (model.Performance, error) {
	recipients, err := s.Campaigns.Recipients(id)
	if err != nil {
		return model.Performance{}, err
	}
	total, replies, err := s.Messages.CampaignAggregates(id)
	if err != nil {
		return model.Performance{}, err
	}

	perf := model.Performance{
		TotalMessages:     total,
		SuccessfulReplies: replies,
	}
	if len(recipients) > 0 {
		converted := 0
		for _, r := range recipients {
			if r.Status == model.RecipientConverted {
				converted++
			}
		}
		perf.ResponseRate = float64(replies) / float64(len(recipients))
		perf.ConversionRate = float64(converted) / float64(len(recipients))
	}

	if err := s.Campaigns.UpdatePerformance(id, perf); err != nil {
		return model.Performance{}, err
	}
	return perf, nil
}

type CampaignAnalytics struct {
	Campaign *model.Campaign   `json:"campaign"`
	Messages []model.Message   `json:"messages"`
	Metrics  model.Performance `json:"metrics"`
	Stats    map[string]int    `json:"recipient_stats"`
}

func (s *CampaignService) Analytics(ctx context.Context, id int) (*CampaignAnalytics, error) {
	campaign, err := s.Campaigns.GetByID(id)
	if err != nil {
		return nil, err
	}
	messages, err := s.Messages.ListByCampaign(id)
	if err != nil {
		return nil, err
	}
	perf, err := s.TrackPerformance(ctx, id)
	if err != nil {
		return nil, err
	}
	stats, err := s.Campaigns.RecipientStats(id)
	if err != nil {
		return nil, err
	}
	campaign.Performance = perf

	return &CampaignAnalytics{
		Campaign: campaign,
		Messages: messages,
		Metrics:  perf,
		Stats:    stats,
	}, nil
}

// MarkConverted records a conversion: the recipient moves sent -> converted
// and, when the triggering message is known, its metadata is enriched.
func (s *CampaignService) MarkConverted(ctx context.Context, campaignID int, userID, messageID, detail string) error {
	if err := s.Campaigns.MarkRecipientConverted(campaignID, userID); err != nil {
		return err
	}
	if messageID != "" {
		if err := s.Messages.MarkConverted(messageID, detail); err != nil {
			return err
		}
	}
	return nil
}

// FinishIfComplete transitions an active campaign to completed once every
// recipient is terminal and the schedule window has elapsed. Returns true
// when the transition happened.
func (s *CampaignService) FinishIfComplete(ctx context.Context, id int) (bool, error) {
	campaign, err := s.Campaigns.GetByID(id)
	if err != nil {
		return false, err
	}
	if campaign.Status != model.CampaignActive {
		return false, nil
	}

	stats, err := s.Campaigns.RecipientStats(id)
	if err != nil {
		return false, err
	}
	if stats[model.RecipientPending] > 0 {
		return false, nil
	}
	if !campaign.Schedule.EndTime.IsZero() && time.Now().Before(campaign.Schedule.EndTime) {
		return false, nil
	}

	if err := s.Campaigns.UpdateStatus(id, model.CampaignCompleted); err != nil {
		return false, err
	}
	s.Logger.Info("campaign completed", slog.Int("campaign_id", id))
	return true, nil
}
