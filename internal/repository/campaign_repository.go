// internal/repository/campaign_repository.go
package repository

import (
	"database/sql"
	"fmt"
	"time"

	appErrors "github.com/brightline/outreach-backend/internal/errors"
	"github.com/brightline/outreach-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	// Campaign CRUD
	Create(c *model.Campaign) error
	GetByID(id int) (*model.Campaign, error)
	ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error)
	UpdateStatus(campaignID int, status string) error
	UpdatePerformance(campaignID int, p model.Performance) error

	// Recipients
	AddRecipients(campaignID int, userIDs []string) error
	Recipients(campaignID int) ([]model.Recipient, error)
	PendingRecipients(campaignID int) ([]model.Recipient, error)
	MarkRecipientSent(campaignID int, userID string) error
	MarkRecipientFailed(campaignID int, userID string) error
	MarkRecipientConverted(campaignID int, userID string) error
	RecipientStats(campaignID int) (map[string]int, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

// ====================== Campaign CRUD ======================

func (r *CampaignRepository) Create(c *model.Campaign) error {
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	if c.Schedule.Frequency == "" {
		c.Schedule.Frequency = model.FrequencyOnce
	}

	tx, err := r.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO campaigns
			(name, workspace_id, target_channel, message_template, status,
			 schedule_start, schedule_end, frequency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err = tx.QueryRow(query,
		c.Name, c.WorkspaceID, c.TargetChannel, c.MessageTemplate, c.Status,
		nullableTime(c.Schedule.StartTime), nullableTime(c.Schedule.EndTime),
		c.Schedule.Frequency, c.CreatedAt,
	).Scan(&c.ID)
	if err != nil {
		return err
	}

	for i, v := range c.Variants {
		if v.Status == "" {
			c.Variants[i].Status = model.VariantActive
		}
		_, err = tx.Exec(`
			INSERT INTO campaign_variants (id, campaign_id, name, template, distribution, status, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			v.ID, c.ID, v.Name, v.Template, v.Distribution, c.Variants[i].Status, i,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *CampaignRepository) GetByID(id int) (*model.Campaign, error) {
	query := `
		SELECT id, name, workspace_id, target_channel, message_template, status,
		       schedule_start, schedule_end, frequency,
		       total_messages, successful_replies, response_rate, conversion_rate,
		       created_at, updated_at
		FROM campaigns WHERE id=$1
	`
	var c model.Campaign
	var start, end sql.NullTime
	err := r.DB.QueryRow(query, id).Scan(
		&c.ID, &c.Name, &c.WorkspaceID, &c.TargetChannel, &c.MessageTemplate, &c.Status,
		&start, &end, &c.Schedule.Frequency,
		&c.Performance.TotalMessages, &c.Performance.SuccessfulReplies,
		&c.Performance.ResponseRate, &c.Performance.ConversionRate,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	if start.Valid {
		c.Schedule.StartTime = start.Time
	}
	if end.Valid {
		c.Schedule.EndTime = end.Time
	}

	variants, err := r.variants(id)
	if err != nil {
		return nil, err
	}
	c.Variants = variants
	return &c, nil
}

func (r *CampaignRepository) variants(campaignID int) ([]model.Variant, error) {
	rows, err := r.DB.Query(`
		SELECT id, name, template, distribution, status
		FROM campaign_variants WHERE campaign_id=$1 ORDER BY position`,
		campaignID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var variants []model.Variant
	for rows.Next() {
		var v model.Variant
		if err := rows.Scan(&v.ID, &v.Name, &v.Template, &v.Distribution, &v.Status); err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

func (r *CampaignRepository) ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	query := `SELECT id, name, workspace_id, target_channel, message_template, status, created_at, updated_at FROM campaigns WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if status != "" {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		var c model.Campaign
		if err := rows.Scan(&c.ID, &c.Name, &c.WorkspaceID, &c.TargetChannel,
			&c.MessageTemplate, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	countQuery := `SELECT COUNT(*) FROM campaigns`
	countArgs := []interface{}{}
	if status != "" {
		countQuery += ` WHERE status=$1`
		countArgs = append(countArgs, status)
	}
	var total int
	if err := r.DB.QueryRow(countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return campaigns, total, nil
}

func (r *CampaignRepository) UpdateStatus(campaignID int, status string) error {
	res, err := r.DB.Exec(`UPDATE campaigns SET status=$1, updated_at=$2 WHERE id=$3`,
		status, time.Now(), campaignID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appErrors.NewCampaignNotFound(campaignID)
	}
	return nil
}

func (r *CampaignRepository) UpdatePerformance(campaignID int, p model.Performance) error {
	_, err := r.DB.Exec(`
		UPDATE campaigns
		SET total_messages=$1, successful_replies=$2, response_rate=$3, conversion_rate=$4, updated_at=$5
		WHERE id=$6`,
		p.TotalMessages, p.SuccessfulReplies, p.ResponseRate, p.ConversionRate,
		time.Now(), campaignID,
	)
	return err
}

// ====================== Recipients ======================

func (r *CampaignRepository) AddRecipients(campaignID int, userIDs []string) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i, userID := range userIDs {
		_, err := tx.Exec(`
			INSERT INTO campaign_recipients (campaign_id, user_id, status, position)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (campaign_id, user_id) DO NOTHING`,
			campaignID, userID, model.RecipientPending, i,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *CampaignRepository) Recipients(campaignID int) ([]model.Recipient, error) {
	return r.recipients(campaignID, "")
}

func (r *CampaignRepository) PendingRecipients(campaignID int) ([]model.Recipient, error) {
	return r.recipients(campaignID, model.RecipientPending)
}

func (r *CampaignRepository) recipients(campaignID int, status string) ([]model.Recipient, error) {
	query := `
		SELECT campaign_id, user_id, status, sent_at, converted_at
		FROM campaign_recipients WHERE campaign_id=$1`
	args := []interface{}{campaignID}
	if status != "" {
		query += ` AND status=$2`
		args = append(args, status)
	}
	query += ` ORDER BY position`

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recipients []model.Recipient
	for rows.Next() {
		var rec model.Recipient
		if err := rows.Scan(&rec.CampaignID, &rec.UserID, &rec.Status, &rec.SentAt, &rec.ConvertedAt); err != nil {
			return nil, err
		}
		recipients = append(recipients, rec)
	}
	return recipients, rows.Err()
}

// MarkRecipientSent moves a recipient pending -> sent. The status guard in
// the WHERE clause makes the transition atomic and forward-only; a recipient
// already past pending is left untouched.
func (r *CampaignRepository) MarkRecipientSent(campaignID int, userID string) error {
	_, err := r.DB.Exec(`
		UPDATE campaign_recipients SET status=$1, sent_at=$2
		WHERE campaign_id=$3 AND user_id=$4 AND status=$5`,
		model.RecipientSent, time.Now(), campaignID, userID, model.RecipientPending,
	)
	return err
}

// MarkRecipientFailed marks a recipient failed. It accepts both pending
// recipients (enqueue failure) and sent recipients (the worker's terminal
// outcome overruling the dispatcher's sent-at-enqueue optimism).
func (r *CampaignRepository) MarkRecipientFailed(campaignID int, userID string) error {
	_, err := r.DB.Exec(`
		UPDATE campaign_recipients SET status=$1
		WHERE campaign_id=$2 AND user_id=$3 AND status IN ($4, $5)`,
		model.RecipientFailed, campaignID, userID,
		model.RecipientPending, model.RecipientSent,
	)
	return err
}

// MarkRecipientConverted moves a recipient sent -> converted.
func (r *CampaignRepository) MarkRecipientConverted(campaignID int, userID string) error {
	res, err := r.DB.Exec(`
		UPDATE campaign_recipients SET status=$1, converted_at=$2
		WHERE campaign_id=$3 AND user_id=$4 AND status=$5`,
		model.RecipientConverted, time.Now(), campaignID, userID, model.RecipientSent,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("recipient %s of campaign %d is not in sent status", userID, campaignID)
	}
	return nil
}

func (r *CampaignRepository) RecipientStats(campaignID int) (map[string]int, error) {
	rows, err := r.DB.Query(`
		SELECT status, COUNT(*) FROM campaign_recipients
		WHERE campaign_id=$1 GROUP BY status`,
		campaignID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{
		"total":                  0,
		model.RecipientPending:   0,
		model.RecipientSent:      0,
		model.RecipientFailed:    0,
		model.RecipientConverted: 0,
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
		stats["total"] += count
	}
	return stats, rows.Err()
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
