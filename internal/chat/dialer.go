package chat

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
)

// WSDialer opens gorilla websocket connections to the chat push endpoint.
type WSDialer struct {
	// BaseURL is the websocket origin, e.g. ws://localhost:8000.
	BaseURL string
}

func (d WSDialer) Dial(ctx context.Context, roomID int) (wsConn, error) {
	url := fmt.Sprintf("%s/ws/chat/%d/", d.BaseURL, roomID)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	return conn, nil
}
