package api

import (
	"context"
	"fmt"

	"plantaria/internal/models"
)

func (c *Client) Chatrooms(ctx context.Context) ([]models.Chatroom, error) {
	var rooms []models.Chatroom
	if err := c.getJSON(ctx, "/core/chatrooms/", &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// Messages fetches the full message history of a room, ordered by timestamp
// ascending.
func (c *Client) Messages(ctx context.Context, roomID int) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	if err := c.getJSON(ctx, fmt.Sprintf("/core/messages/%d/", roomID), &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// SendMessage performs the durable write of a chat message. Broadcasting the
// same message on the push channel is the realtime layer's job and happens
// only after this call acknowledges.
func (c *Client) SendMessage(ctx context.Context, msg models.ChatMessage) error {
	return c.postJSON(ctx, "/core/send-message/", msg, nil)
}
