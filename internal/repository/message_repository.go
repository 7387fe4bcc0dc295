// internal/repository/message_repository.go
package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/brightline/outreach-backend/internal/model"
)

type MessageRepositoryInterface interface {
	Append(m *model.Message) error
	History(campaignID int, userID string, limit int) ([]model.Message, error)
	ListByCampaign(campaignID int) ([]model.Message, error)
	MarkConverted(messageID, detail string) error
	MarkRead(messageID string) error
	CampaignAggregates(campaignID int) (total, successfulReplies int, err error)
}

type MessageRepository struct {
	DB *sql.DB
}

// Append inserts a new message log entry. The log is append-only; content,
// role and sentiment are never updated afterwards.
func (r *MessageRepository) Append(m *model.Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	meta, err := json.Marshal(m.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
		INSERT INTO messages
			(id, workspace_id, user_id, campaign_id, channel_id, content, role, sentiment, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.DB.Exec(query,
		m.ID, m.WorkspaceID, m.UserID, m.CampaignID, m.ChannelID,
		m.Content, m.Role, m.Sentiment, meta, m.CreatedAt,
	)
	return err
}

// History returns the conversation between a campaign and a user, oldest
// first, capped at limit entries (most recent kept).
func (r *MessageRepository) History(campaignID int, userID string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, workspace_id, user_id, campaign_id, channel_id, content, role, sentiment, metadata, created_at
		FROM (
			SELECT * FROM messages
			WHERE campaign_id=$1 AND user_id=$2
			ORDER BY created_at DESC
			LIMIT $3
		) recent
		ORDER BY created_at ASC
	`
	rows, err := r.DB.Query(query, campaignID, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (r *MessageRepository) ListByCampaign(campaignID int) ([]model.Message, error) {
	query := `
		SELECT id, workspace_id, user_id, campaign_id, channel_id, content, role, sentiment, metadata, created_at
		FROM messages WHERE campaign_id=$1 ORDER BY created_at DESC
	`
	rows, err := r.DB.Query(query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// MarkConverted enriches a message's metadata with a conversion flag.
func (r *MessageRepository) MarkConverted(messageID, detail string) error {
	_, err := r.DB.Exec(`
		UPDATE messages
		SET metadata = metadata || jsonb_build_object('converted', true, 'conversion_detail', $1::text)
		WHERE id=$2`,
		detail, messageID,
	)
	return err
}

// MarkRead sets the read-receipt flag in a message's metadata.
func (r *MessageRepository) MarkRead(messageID string) error {
	_, err := r.DB.Exec(`
		UPDATE messages SET metadata = metadata || '{"read": true}'::jsonb WHERE id=$1`,
		messageID,
	)
	return err
}

// CampaignAggregates returns the campaign's total message count and the
// number of successful replies (user messages with positive sentiment).
func (r *MessageRepository) CampaignAggregates(campaignID int) (int, int, error) {
	var total, replies int
	err := r.DB.QueryRow(`
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE role=$2 AND sentiment > 0)
		FROM messages WHERE campaign_id=$1`,
		campaignID, model.RoleUser,
	).Scan(&total, &replies)
	return total, replies, err
}

func scanMessages(rows *sql.Rows) ([]model.Message, error) {
	var messages []model.Message
	for rows.Next() {
		var m model.Message
		var meta []byte
		if err := rows.Scan(&m.ID, &m.WorkspaceID, &m.UserID, &m.CampaignID, &m.ChannelID,
			&m.Content, &m.Role, &m.Sentiment, &meta, &m.CreatedAt); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &m.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata for message %s: %w", m.ID, err)
			}
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
