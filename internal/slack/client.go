// internal/slack/client.go
package slack

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"
)

// Profile is the subset of a Slack user profile the pipeline cares about.
type Profile struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// Deliverer is the chat-delivery collaborator consumed by the dispatcher and
// the pipeline worker.
type Deliverer interface {
	PostMessage(ctx context.Context, channelID, text string) error
	ChannelMembers(ctx context.Context, channelID string) ([]string, error)
	UserProfile(ctx context.Context, userID string) (Profile, error)
}

// Client is a thin adapter over the Slack Web API.
type Client struct {
	api *slackapi.Client
}

func NewClient(botToken string) *Client {
	return &Client{api: slackapi.New(botToken)}
}

func (c *Client) PostMessage(ctx context.Context, channelID, text string) error {
	_, _, err := c.api.PostMessageContext(ctx, channelID, slackapi.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("slack: post message to %s: %w", channelID, err)
	}
	return nil
}

func (c *Client) ChannelMembers(ctx context.Context, channelID string) ([]string, error) {
	var members []string
	params := &slackapi.GetUsersInConversationParameters{
		ChannelID: channelID,
		Limit:     200,
	}
	for {
		page, cursor, err := c.api.GetUsersInConversationContext(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("slack: list members of %s: %w", channelID, err)
		}
		members = append(members, page...)
		if cursor == "" {
			break
		}
		params.Cursor = cursor
	}
	return members, nil
}

func (c *Client) UserProfile(ctx context.Context, userID string) (Profile, error) {
	user, err := c.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		return Profile{}, fmt.Errorf("slack: get user %s: %w", userID, err)
	}

	name := user.RealName
	if name == "" {
		name = user.Name
	}
	return Profile{
		ID:     user.ID,
		Name:   name,
		Email:  user.Profile.Email,
		Avatar: user.Profile.Image512,
	}, nil
}
