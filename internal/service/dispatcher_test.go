package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/brightline/outreach-backend/internal/errors"
	"github.com/brightline/outreach-backend/internal/model"
	"github.com/brightline/outreach-backend/internal/service"
	"github.com/brightline/outreach-backend/internal/template"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func activeCampaign(repo *fakeCampaignRepo, users ...string) *model.Campaign {
	c := &model.Campaign{
		ID:              1,
		Name:            "Spring Launch",
		WorkspaceID:     "T01",
		TargetChannel:   "C01",
		MessageTemplate: "Hi {{name}}, check out {{product}}!",
		Status:          model.CampaignActive,
	}
	repo.Create(c)
	repo.AddRecipients(c.ID, users)
	return c
}

func TestDispatchEnqueuesAllPending(t *testing.T) {
	repo := newFakeCampaignRepo()
	c := activeCampaign(repo, "U1", "U2", "U3")
	q := &fakeQueue{}
	d := service.NewDispatcher(repo, q, discardLogger())

	result, err := d.Dispatch(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Enqueued)
	assert.Equal(t, 0, result.Failed)
	require.Len(t, q.jobs, 3)

	for i, userID := range []string{"U1", "U2", "U3"} {
		assert.Equal(t, userID, q.jobs[i].RecipientID)
		assert.Equal(t, c.ID, q.jobs[i].CampaignID)
		assert.Equal(t, "C01", q.jobs[i].ChannelID)
		assert.Equal(t, template.InitialContactID, q.jobs[i].TemplateID)
		assert.Equal(t, model.RecipientSent, repo.recipientStatus(c.ID, userID))
	}
}

func TestDispatchIsIdempotent(t *testing.T) {
	repo := newFakeCampaignRepo()
	c := activeCampaign(repo, "U1", "U2")
	q := &fakeQueue{}
	d := service.NewDispatcher(repo, q, discardLogger())

	first, err := d.Dispatch(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Enqueued)

	second, err := d.Dispatch(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Enqueued)
	assert.Len(t, q.jobs, 2, "no recipient is enqueued twice")
}

func TestDispatchIsolatesEnqueueFailures(t *testing.T) {
	repo := newFakeCampaignRepo()
	c := activeCampaign(repo, "U1", "U2", "U3")
	q := &fakeQueue{failFor: map[string]error{"U2": errors.New("broker unavailable")}}
	d := service.NewDispatcher(repo, q, discardLogger())

	result, err := d.Dispatch(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Enqueued)
	assert.Equal(t, 1, result.Failed)

	assert.Equal(t, model.RecipientSent, repo.recipientStatus(c.ID, "U1"))
	assert.Equal(t, model.RecipientFailed, repo.recipientStatus(c.ID, "U2"))
	assert.Equal(t, model.RecipientSent, repo.recipientStatus(c.ID, "U3"))
}

func TestDispatchUnknownCampaign(t *testing.T) {
	repo := newFakeCampaignRepo()
	d := service.NewDispatcher(repo, &fakeQueue{}, discardLogger())

	_, err := d.Dispatch(context.Background(), 404)
	require.Error(t, err)
	var notFound *appErrors.ErrCampaignNotFound
	assert.True(t, errors.As(err, &notFound))
}

func TestDispatchRejectsInactiveCampaign(t *testing.T) {
	repo := newFakeCampaignRepo()
	c := activeCampaign(repo, "U1")
	repo.UpdateStatus(c.ID, model.CampaignPaused)
	d := service.NewDispatcher(repo, &fakeQueue{}, discardLogger())

	_, err := d.Dispatch(context.Background(), c.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be dispatched")
}

func TestDispatchAppliesVariant(t *testing.T) {
	repo := newFakeCampaignRepo()
	c := activeCampaign(repo, "U1")
	c.Variants = []model.Variant{
		{ID: "friendly", Name: "Friendly", Template: "Hey {{name}}!", Distribution: 100, Status: model.VariantActive},
	}
	repo.Create(c)

	q := &fakeQueue{}
	d := service.NewDispatcher(repo, q, discardLogger())
	d.Roll = func() int { return 0 }

	_, err := d.Dispatch(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, q.jobs, 1)

	job := q.jobs[0]
	require.NotNil(t, job.Variant)
	assert.Equal(t, "friendly", job.Variant.ID)
	assert.Equal(t, "Hey {{name}}!", job.Template, "user-facing placeholders survive until the worker enriches them")
}

func TestDispatchBaseTemplateWhenRollPastSum(t *testing.T) {
	repo := newFakeCampaignRepo()
	c := activeCampaign(repo, "U1")
	c.Variants = []model.Variant{
		{ID: "friendly", Name: "Friendly", Template: "Hey there", Distribution: 40, Status: model.VariantActive},
	}
	repo.Create(c)

	q := &fakeQueue{}
	d := service.NewDispatcher(repo, q, discardLogger())
	d.Roll = func() int { return 90 }

	_, err := d.Dispatch(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, q.jobs, 1)
	assert.Nil(t, q.jobs[0].Variant)
	assert.Contains(t, q.jobs[0].Template, "check out Spring Launch")
}
