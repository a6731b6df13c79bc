package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"plantaria/internal/api"
	"plantaria/internal/cart"
	"plantaria/internal/chat"
	"plantaria/internal/commands"
	"plantaria/internal/config"
	"plantaria/internal/creds"
	"plantaria/internal/feed"
	"plantaria/internal/session"
)

const usage = `Usage: plantaria <command> [arguments]

Account:
  login <username> <password>
  register <username> <email> <password>
  logout
  whoami

Community:
  feed
  like <post-id>
  comment <post-id> <text>
  post [-image file] <title> <description> <body>
  edit-post <post-id> <title> <description> <body>
  delete-post <post-id>

Market:
  products
  add-product <title> <description> <price>
  cart
  cart-add <product-id>
  cart-remove <product-id>
  order <product-id> <quantity>
  cancel-order <order-id>

Chat:
  rooms
  chat <room-id>
  say <room-id> <text>
`

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return errors.New("no command given")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := creds.NewBboltStore(cfg.DBFile)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	mgr := session.NewManager(session.Config{BaseURL: cfg.APIBaseURL, Store: store})
	client := api.New(cfg.APIBaseURL, mgr)

	app := &commands.App{
		Session: mgr,
		API:     client,
		Feed:    feed.NewAggregator(ctx, client),
		Cart:    cart.NewStore(client),
		Dialer:  chat.WSDialer{BaseURL: cfg.WSBaseURL},
		Out:     os.Stdout,
	}

	// Surface a session demotion that happens mid-command.
	states, cancel := mgr.Subscribe()
	defer cancel()
	go func() {
		for state := range states {
			if state == session.StateLoggedOut {
				fmt.Fprintln(os.Stderr, "Session expired, please log in again.")
			}
		}
	}()

	if mgr.State() == session.StateLoggedIn {
		if profile, err := client.UserDetails(ctx); err == nil {
			app.Feed.SetViewer(profile.Username)
		}
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "login":
		if len(rest) != 2 {
			return errors.New("usage: login <username> <password>")
		}
		return commands.Login(ctx, app, rest[0], rest[1])
	case "register":
		if len(rest) != 3 {
			return errors.New("usage: register <username> <email> <password>")
		}
		return commands.Register(ctx, app, rest[0], rest[1], rest[2])
	case "logout":
		return commands.Logout(app)
	case "whoami":
		return commands.Whoami(ctx, app)

	case "feed":
		return commands.ShowFeed(ctx, app)
	case "like":
		id, err := intArg(rest, 0, "post-id")
		if err != nil {
			return err
		}
		return commands.Like(ctx, app, id)
	case "comment":
		id, err := intArg(rest, 0, "post-id")
		if err != nil {
			return err
		}
		if len(rest) < 2 {
			return errors.New("usage: comment <post-id> <text>")
		}
		return commands.Comment(ctx, app, id, rest[1])
	case "post":
		fs := flag.NewFlagSet("post", flag.ContinueOnError)
		imagePath := fs.String("image", "", "Path to an image to attach")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		pos := fs.Args()
		if len(pos) != 3 {
			return errors.New("usage: post [-image file] <title> <description> <body>")
		}
		return commands.NewPost(ctx, app, pos[0], pos[1], pos[2], *imagePath)
	case "edit-post":
		id, err := intArg(rest, 0, "post-id")
		if err != nil {
			return err
		}
		if len(rest) != 4 {
			return errors.New("usage: edit-post <post-id> <title> <description> <body>")
		}
		return commands.EditPost(ctx, app, id, rest[1], rest[2], rest[3])
	case "delete-post":
		id, err := intArg(rest, 0, "post-id")
		if err != nil {
			return err
		}
		return commands.RemovePost(ctx, app, id)

	case "products":
		return commands.Products(ctx, app)
	case "add-product":
		if len(rest) != 3 {
			return errors.New("usage: add-product <title> <description> <price>")
		}
		price, err := strconv.ParseFloat(rest[2], 64)
		if err != nil {
			return fmt.Errorf("invalid price %q", rest[2])
		}
		return commands.AddProduct(ctx, app, rest[0], rest[1], price)
	case "cart":
		return commands.ShowCart(ctx, app)
	case "cart-add":
		id, err := intArg(rest, 0, "product-id")
		if err != nil {
			return err
		}
		return commands.CartAdd(ctx, app, id)
	case "cart-remove":
		id, err := intArg(rest, 0, "product-id")
		if err != nil {
			return err
		}
		return commands.CartRemove(ctx, app, id)
	case "order":
		id, err := intArg(rest, 0, "product-id")
		if err != nil {
			return err
		}
		quantity, err := intArg(rest, 1, "quantity")
		if err != nil {
			return err
		}
		return commands.PlaceOrder(ctx, app, id, quantity)
	case "cancel-order":
		id, err := intArg(rest, 0, "order-id")
		if err != nil {
			return err
		}
		return commands.CancelOrder(ctx, app, id)

	case "rooms":
		return commands.Rooms(ctx, app)
	case "chat":
		id, err := intArg(rest, 0, "room-id")
		if err != nil {
			return err
		}
		return commands.Chat(ctx, app, id, os.Stdin)
	case "say":
		id, err := intArg(rest, 0, "room-id")
		if err != nil {
			return err
		}
		if len(rest) < 2 {
			return errors.New("usage: say <room-id> <text>")
		}
		return commands.Say(ctx, app, id, rest[1])

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func intArg(args []string, i int, name string) (int, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("missing %s argument", name)
	}
	v, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, args[i])
	}
	return v, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Application error: %v", err)
	}
}
