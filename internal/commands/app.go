// Package commands implements the CLI verbs on top of the session, feed,
// cart and chat layers.
package commands

import (
	"io"

	"plantaria/internal/api"
	"plantaria/internal/cart"
	"plantaria/internal/chat"
	"plantaria/internal/feed"
	"plantaria/internal/session"
)

// App bundles the wired client layers a command needs.
type App struct {
	Session *session.Manager
	API     *api.Client
	Feed    *feed.Aggregator
	Cart    *cart.Store
	Dialer  chat.WSDialer
	Out     io.Writer
}
