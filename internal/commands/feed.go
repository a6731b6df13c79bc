package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"plantaria/internal/api"
)

// ShowFeed loads the community feed and prints it with author and comment
// enrichment. Posts whose enrichment failed still show up with what the
// post list carried.
func ShowFeed(ctx context.Context, app *App) error {
	if err := app.Feed.Load(ctx); err != nil {
		return err
	}
	for _, item := range app.Feed.Items() {
		author := item.AuthorUsername
		if item.Author != nil && item.Author.Username != "" {
			author = item.Author.Username
		}
		liked := " "
		if item.ViewerHasLiked {
			liked = "*"
		}
		fmt.Fprintf(app.Out, "[%d] %s by %s  %s%d likes, %d comments\n",
			item.ID, item.Title, author, liked, item.Likes, item.CommentCount)
		for _, c := range item.Comments {
			fmt.Fprintf(app.Out, "      %s: %s\n", c.Author, c.Body)
		}
	}
	return nil
}

func Like(ctx context.Context, app *App, postID int) error {
	if err := app.Feed.Load(ctx); err != nil {
		return err
	}
	if err := app.Feed.ToggleLike(ctx, postID); err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "Toggled like on post %d\n", postID)
	return nil
}

func Comment(ctx context.Context, app *App, postID int, body string) error {
	if err := app.Feed.Load(ctx); err != nil {
		return err
	}
	if err := app.Feed.AddComment(ctx, postID, body); err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "Commented on post %d\n", postID)
	return nil
}

// NewPost publishes a post, optionally attaching an image read from disk.
func NewPost(ctx context.Context, app *App, title, description, body, imagePath string) error {
	draft := api.PostDraft{Title: title, Description: description, Body: body}
	if imagePath != "" {
		data, err := os.ReadFile(imagePath)
		if err != nil {
			return fmt.Errorf("reading image: %w", err)
		}
		draft.Image = &api.ImageUpload{Name: filepath.Base(imagePath), Data: data}
	}
	if err := app.Feed.CreatePost(ctx, draft); err != nil {
		return err
	}
	fmt.Fprintln(app.Out, "Post published")
	return nil
}

func EditPost(ctx context.Context, app *App, postID int, title, description, body string) error {
	if err := app.Feed.Load(ctx); err != nil {
		return err
	}
	draft := api.PostDraft{Title: title, Description: description, Body: body}
	if err := app.Feed.UpdatePost(ctx, postID, draft); err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "Post %d updated\n", postID)
	return nil
}

func RemovePost(ctx context.Context, app *App, postID int) error {
	if err := app.Feed.Load(ctx); err != nil {
		return err
	}
	if err := app.Feed.DeletePost(ctx, postID); err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "Post %d deleted\n", postID)
	return nil
}
