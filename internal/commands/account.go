package commands

import (
	"context"
	"fmt"

	"plantaria/internal/session"
)

func Login(ctx context.Context, app *App, username, password string) error {
	if err := app.Session.Login(ctx, username, password); err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "Logged in as %s\n", username)
	return nil
}

// Register creates the account and reuses the returned token pair, so the
// user lands logged in without a second round trip.
func Register(ctx context.Context, app *App, username, email, password string) error {
	reg := session.Registration{Username: username, Email: email, Password: password}
	if err := app.Session.Register(ctx, reg); err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "Registered and logged in as %s\n", username)
	return nil
}

func Logout(app *App) error {
	if err := app.Session.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(app.Out, "Logged out")
	return nil
}

func Whoami(ctx context.Context, app *App) error {
	profile, err := app.API.UserDetails(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "%s <%s>\n", profile.Username, profile.Email)
	return nil
}
