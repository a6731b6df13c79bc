package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"plantaria/internal/chat"
)

func Rooms(ctx context.Context, app *App) error {
	rooms, err := app.API.Chatrooms(ctx)
	if err != nil {
		return err
	}
	for _, room := range rooms {
		fmt.Fprintf(app.Out, "[%d] %s\n", room.ID, room.Name)
	}
	return nil
}

// Chat joins a room and runs an interactive loop: history first, live pushes
// as they arrive, and every input line sent as a message. Returns when input
// or the context ends.
func Chat(ctx context.Context, app *App, roomID int, in io.Reader) error {
	profile, err := app.API.UserDetails(ctx)
	if err != nil {
		return err
	}

	room := chat.NewRoom(roomID, profile.Username, app.API, app.Dialer)
	if err := room.Open(ctx); err != nil {
		return err
	}
	defer room.Close()
	if room.Broken() {
		fmt.Fprintln(app.Out, "(live updates unavailable, messages still send)")
	}

	printed := printMessages(app.Out, room, 0)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-room.Updates():
			printed = printMessages(app.Out, room, printed)
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if line == "" {
				continue
			}
			if err := room.Send(ctx, line); err != nil {
				fmt.Fprintf(app.Out, "(send failed: %v)\n", err)
				continue
			}
			printed = printMessages(app.Out, room, printed)
		}
	}
}

// Say sends a single message to a room without staying attached.
func Say(ctx context.Context, app *App, roomID int, text string) error {
	profile, err := app.API.UserDetails(ctx)
	if err != nil {
		return err
	}

	room := chat.NewRoom(roomID, profile.Username, app.API, app.Dialer)
	if err := room.Open(ctx); err != nil {
		return err
	}
	defer room.Close()

	if err := room.Send(ctx, text); err != nil {
		return err
	}
	fmt.Fprintln(app.Out, "Sent")
	return nil
}

func printMessages(out io.Writer, room *chat.Room, printed int) int {
	msgs := room.Messages()
	for ; printed < len(msgs); printed++ {
		m := msgs[printed]
		fmt.Fprintf(out, "%s %s: %s\n", m.Timestamp.Local().Format("15:04"), m.Sender, m.Content)
	}
	return printed
}
