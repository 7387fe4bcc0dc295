package service_test

import (
	"context"
	"sync"

	"github.com/brightline/outreach-backend/internal/ai"
	appErrors "github.com/brightline/outreach-backend/internal/errors"
	"github.com/brightline/outreach-backend/internal/model"
	"github.com/brightline/outreach-backend/internal/queue"
	"github.com/brightline/outreach-backend/internal/slack"
)

// fakeCampaignRepo is an in-memory CampaignRepositoryInterface. All state is
// mutex-guarded because queue workers call into it concurrently.
type fakeCampaignRepo struct {
	mu         sync.Mutex
	campaigns  map[int]*model.Campaign
	recipients map[int][]model.Recipient

	sentCalls      []string
	failedCalls    []string
	convertedCalls []string
}

func newFakeCampaignRepo() *fakeCampaignRepo {
	return &fakeCampaignRepo{
		campaigns:  make(map[int]*model.Campaign),
		recipients: make(map[int][]model.Recipient),
	}
}

func (f *fakeCampaignRepo) Create(c *model.Campaign) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID == 0 {
		c.ID = len(f.campaigns) + 1
	}
	f.campaigns[c.ID] = c
	return nil
}

func (f *fakeCampaignRepo) GetByID(id int) (*model.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	copied := *c
	return &copied, nil
}

func (f *fakeCampaignRepo) ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Campaign
	for _, c := range f.campaigns {
		if status == "" || c.Status == status {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, len(out), nil
}

func (f *fakeCampaignRepo) UpdateStatus(campaignID int, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[campaignID]
	if !ok {
		return appErrors.NewCampaignNotFound(campaignID)
	}
	c.Status = status
	return nil
}

func (f *fakeCampaignRepo) UpdatePerformance(campaignID int, p model.Performance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[campaignID]
	if !ok {
		return appErrors.NewCampaignNotFound(campaignID)
	}
	c.Performance = p
	return nil
}

func (f *fakeCampaignRepo) AddRecipients(campaignID int, userIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range userIDs {
		f.recipients[campaignID] = append(f.recipients[campaignID], model.Recipient{
			CampaignID: campaignID,
			UserID:     id,
			Status:     model.RecipientPending,
		})
	}
	return nil
}

func (f *fakeCampaignRepo) Recipients(campaignID int) ([]model.Recipient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Recipient(nil), f.recipients[campaignID]...), nil
}

func (f *fakeCampaignRepo) PendingRecipients(campaignID int) ([]model.Recipient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var pending []model.Recipient
	for _, r := range f.recipients[campaignID] {
		if r.Status == model.RecipientPending {
			pending = append(pending, r)
		}
	}
	return pending, nil
}

func (f *fakeCampaignRepo) setStatus(campaignID int, userID, from1, from2, to string) bool {
	list := f.recipients[campaignID]
	for i := range list {
		if list[i].UserID == userID && (list[i].Status == from1 || list[i].Status == from2) {
			list[i].Status = to
			return true
		}
	}
	return false
}

func (f *fakeCampaignRepo) MarkRecipientSent(campaignID int, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sentCalls = append(f.sentCalls, userID)
	f.setStatus(campaignID, userID, model.RecipientPending, model.RecipientPending, model.RecipientSent)
	return nil
}

func (f *fakeCampaignRepo) MarkRecipientFailed(campaignID int, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failedCalls = append(f.failedCalls, userID)
	f.setStatus(campaignID, userID, model.RecipientPending, model.RecipientSent, model.RecipientFailed)
	return nil
}

func (f *fakeCampaignRepo) MarkRecipientConverted(campaignID int, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.convertedCalls = append(f.convertedCalls, userID)
	f.setStatus(campaignID, userID, model.RecipientSent, model.RecipientSent, model.RecipientConverted)
	return nil
}

func (f *fakeCampaignRepo) RecipientStats(campaignID int) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := map[string]int{}
	for _, r := range f.recipients[campaignID] {
		stats[r.Status]++
	}
	return stats, nil
}

func (f *fakeCampaignRepo) recipientStatus(campaignID int, userID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.recipients[campaignID] {
		if r.UserID == userID {
			return r.Status
		}
	}
	return ""
}

// fakeMessageRepo is an in-memory append-only message log.
type fakeMessageRepo struct {
	mu       sync.Mutex
	messages []model.Message
	history  []model.Message

	appendErr error
}

func (f *fakeMessageRepo) Append(m *model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.messages = append(f.messages, *m)
	return nil
}

func (f *fakeMessageRepo) History(campaignID int, userID string, limit int) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Message(nil), f.history...), nil
}

func (f *fakeMessageRepo) ListByCampaign(campaignID int) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Message(nil), f.messages...), nil
}

func (f *fakeMessageRepo) MarkConverted(messageID, detail string) error { return nil }
func (f *fakeMessageRepo) MarkRead(messageID string) error             { return nil }

func (f *fakeMessageRepo) CampaignAggregates(campaignID int) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := len(f.messages)
	replies := 0
	for _, m := range f.messages {
		if m.Role == model.RoleUser && m.Sentiment > 0 {
			replies++
		}
	}
	return total, replies, nil
}

func (f *fakeMessageRepo) all() []model.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Message(nil), f.messages...)
}

// fakeGenerator scripts the generation collaborator.
type fakeGenerator struct {
	mu sync.Mutex

	reply        string
	generateErr  error
	sentiment    float64
	sentimentErr error

	prompts   []string
	histories [][]ai.ChatMessage
	scored    []string
}

func (f *fakeGenerator) Generate(ctx context.Context, systemPrompt string, history []ai.ChatMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, systemPrompt)
	f.histories = append(f.histories, history)
	if f.generateErr != nil {
		return "", f.generateErr
	}
	return f.reply, nil
}

func (f *fakeGenerator) ScoreSentiment(ctx context.Context, text string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scored = append(f.scored, text)
	if f.sentimentErr != nil {
		return 0, f.sentimentErr
	}
	return f.sentiment, nil
}

// fakeSlack scripts the delivery collaborator.
type fakeSlack struct {
	mu sync.Mutex

	postErr    error
	profileErr error
	profile    slack.Profile
	members    []string

	posted []postedMessage
}

type postedMessage struct {
	ChannelID string
	Text      string
}

func (f *fakeSlack) PostMessage(ctx context.Context, channelID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return f.postErr
	}
	f.posted = append(f.posted, postedMessage{ChannelID: channelID, Text: text})
	return nil
}

func (f *fakeSlack) ChannelMembers(ctx context.Context, channelID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.members...), nil
}

func (f *fakeSlack) UserProfile(ctx context.Context, userID string) (slack.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profileErr != nil {
		return slack.Profile{}, f.profileErr
	}
	return f.profile, nil
}

func (f *fakeSlack) postCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.posted)
}

// fakeQueue records enqueued jobs without processing them.
type fakeQueue struct {
	mu   sync.Mutex
	jobs []model.DispatchJob

	failFor map[string]error
}

func (f *fakeQueue) Enqueue(ctx context.Context, job model.DispatchJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failFor[job.RecipientID]; ok {
		return err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeQueue) Status(ctx context.Context) (queue.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return queue.Status{Waiting: len(f.jobs)}, nil
}

func (f *fakeQueue) Drain(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = nil
	return nil
}

// fakePause is a scripted PauseChecker / PauseFlagger.
type fakePause struct {
	mu     sync.Mutex
	paused map[int]bool
	err    error
}

func newFakePause() *fakePause {
	return &fakePause{paused: make(map[int]bool)}
}

func (f *fakePause) IsPaused(ctx context.Context, campaignID int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	return f.paused[campaignID], nil
}

func (f *fakePause) SetPaused(ctx context.Context, campaignID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused[campaignID] = true
	return nil
}

func (f *fakePause) ClearPaused(ctx context.Context, campaignID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.paused, campaignID)
	return nil
}
