// Package chat merges a point-in-time REST message history with a live
// per-room push stream into one timestamp-ordered, deduplicated view.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"plantaria/internal/content"
	"plantaria/internal/errs"
	"plantaria/internal/models"
	"plantaria/internal/optimistic"
)

type State string

const (
	StateDisconnected   State = "disconnected"
	StateHistoryLoading State = "historyLoading"
	StateConnected      State = "connected"
	StateClosed         State = "closed"
)

// wsConn is the slice of a websocket connection the room needs.
type wsConn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	Close() error
}

// Dialer opens the room-scoped push connection.
type Dialer interface {
	Dial(ctx context.Context, roomID int) (wsConn, error)
}

type messageAPI interface {
	Messages(ctx context.Context, roomID int) ([]models.ChatMessage, error)
	SendMessage(ctx context.Context, msg models.ChatMessage) error
}

// Room is the realtime channel for one chatroom. It is created
// disconnected; Open drives it through historyLoading to connected, and
// Close ends its life. A room is not reused after Close: re-entering the
// conversation means a fresh Room and a fresh history cycle.
type Room struct {
	id     int
	sender string
	api    messageAPI
	dialer Dialer

	msgs *optimistic.Entity[[]models.ChatMessage]

	// updates gets a nonblocking tick whenever the merged view may have
	// changed. A single buffered slot is enough: consumers re-read the
	// whole snapshot, they do not count ticks.
	updates chan struct{}

	mu     sync.Mutex
	state  State
	broken bool
	conn   wsConn

	now func() time.Time
}

func NewRoom(id int, sender string, api messageAPI, dialer Dialer) *Room {
	return &Room{
		id:      id,
		sender:  sender,
		api:     api,
		dialer:  dialer,
		msgs:    optimistic.NewEntity([]models.ChatMessage{}),
		updates: make(chan struct{}, 1),
		state:   StateDisconnected,
		now:     time.Now,
	}
}

func (r *Room) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Broken reports that the push transport dropped while connected. Sends
// still work over REST; the room stays on its last-known-consistent history
// until it is re-entered.
func (r *Room) Broken() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.broken
}

// Messages returns the merged view, timestamp ascending.
func (r *Room) Messages() []models.ChatMessage {
	return r.msgs.Get()
}

// Updates ticks when the merged view may have changed.
func (r *Room) Updates() <-chan struct{} {
	return r.updates
}

func (r *Room) notify() {
	select {
	case r.updates <- struct{}{}:
	default:
	}
}

// Open fetches the room history and then attaches the push stream. A
// history failure leaves the room disconnected; a dial failure degrades to
// REST-only (connected but broken) since the durable path still works.
func (r *Room) Open(ctx context.Context) error {
	r.mu.Lock()
	if r.state != StateDisconnected {
		r.mu.Unlock()
		return errors.New("room already opened")
	}
	r.state = StateHistoryLoading
	r.mu.Unlock()

	history, err := r.api.Messages(ctx, r.id)
	if err != nil {
		r.mu.Lock()
		r.state = StateDisconnected
		r.mu.Unlock()
		return err
	}
	r.msgs.Update(func(msgs []models.ChatMessage) []models.ChatMessage {
		for _, m := range history {
			msgs = mergeMessage(msgs, m)
		}
		return msgs
	})
	r.notify()

	conn, err := r.dialer.Dial(ctx, r.id)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateClosed {
		if conn != nil {
			_ = conn.Close()
		}
		return errs.ErrTransportClosed
	}
	r.state = StateConnected
	if err != nil {
		slog.Warn("push channel dial failed, REST-only mode", "room_id", r.id, "error", err)
		r.broken = true
		return nil
	}
	r.conn = conn
	go r.readLoop(conn)
	return nil
}

func (r *Room) readLoop(conn wsConn) {
	for {
		var msg models.ChatMessage
		if err := conn.ReadJSON(&msg); err != nil {
			r.mu.Lock()
			if r.state == StateConnected {
				// Unexpected drop. No auto-reconnect: the room is degraded
				// until the user re-enters it.
				r.broken = true
				slog.Warn("push channel dropped", "room_id", r.id, "error", err)
			}
			r.mu.Unlock()
			return
		}

		if msg.Chatroom != 0 && msg.Chatroom != r.id {
			continue
		}

		// The state check and the merge stay under one lock hold so a Close
		// landing between them cannot let a final message into the view.
		r.mu.Lock()
		if r.state != StateConnected {
			r.mu.Unlock()
			return
		}
		r.msgs.Update(func(msgs []models.ChatMessage) []models.ChatMessage {
			return mergeMessage(msgs, msg)
		})
		r.mu.Unlock()
		r.notify()
	}
}

// Send delivers a message dual-pathed: the local echo lands immediately, the
// durable REST write follows, and only its acknowledgment triggers the push
// broadcast for other peers. A REST failure removes the echo.
func (r *Room) Send(ctx context.Context, text string) error {
	if err := content.ValidateMessage(text); err != nil {
		return &errs.ValidationError{Detail: err.Error()}
	}

	r.mu.Lock()
	if r.state != StateConnected {
		r.mu.Unlock()
		return errs.ErrTransportClosed
	}
	r.mu.Unlock()

	msg := models.ChatMessage{
		Sender:    r.sender,
		Content:   content.Sanitize(text),
		Chatroom:  r.id,
		Timestamp: r.now().UTC(),
	}

	m := optimistic.Mutation[[]models.ChatMessage, struct{}]{
		Kind:    optimistic.KindChatSend,
		Capture: func([]models.ChatMessage) struct{} { return struct{}{} },
		Apply: func(msgs []models.ChatMessage) []models.ChatMessage {
			return mergeMessage(msgs, msg)
		},
		Call: func(ctx context.Context) (func([]models.ChatMessage) []models.ChatMessage, error) {
			return nil, r.api.SendMessage(ctx, msg)
		},
		Restore: func(msgs []models.ChatMessage, _ struct{}) []models.ChatMessage {
			out := make([]models.ChatMessage, 0, len(msgs))
			for _, existing := range msgs {
				if !existing.Same(msg) {
					out = append(out, existing)
				}
			}
			return out
		},
	}
	err := optimistic.Run(ctx, r.msgs, m)
	r.notify()
	if err != nil {
		return err
	}

	r.mu.Lock()
	conn := r.conn
	broken := r.broken
	r.mu.Unlock()
	if conn != nil && !broken {
		if err := conn.WriteJSON(msg); err != nil {
			// The durable write already succeeded; only the live fan-out is
			// degraded.
			r.mu.Lock()
			r.broken = true
			r.mu.Unlock()
			slog.Warn("push broadcast failed after durable write", "room_id", r.id, "error", err)
		}
	}
	return nil
}

// Close tears down the push connection. No reconnection is attempted; a
// fresh Room handles re-entry.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateClosed {
		return
	}
	r.state = StateClosed
	if r.conn != nil {
		_ = r.conn.Close()
		r.conn = nil
	}
}

// mergeMessage inserts msg unless the same (sender, timestamp, content)
// triple is already present, keeping the slice sorted by timestamp. A
// message arriving out of order relative to an in-flight send is re-sorted,
// not appended blindly.
func mergeMessage(msgs []models.ChatMessage, msg models.ChatMessage) []models.ChatMessage {
	for _, existing := range msgs {
		if existing.Same(msg) {
			return msgs
		}
	}
	out := append(append([]models.ChatMessage{}, msgs...), msg)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
