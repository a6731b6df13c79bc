package api

import (
	"context"
	"fmt"

	"plantaria/internal/models"
)

// PostList fetches the raw community feed, without author enrichment.
func (c *Client) PostList(ctx context.Context) ([]models.Post, error) {
	var posts []models.Post
	if err := c.getJSON(ctx, "/community/post_list", &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

type PostDraft struct {
	Title       string
	Description string
	Body        string
	Image       *ImageUpload
}

func (d PostDraft) fields() map[string]string {
	return map[string]string{
		"title":       d.Title,
		"description": d.Description,
		"body":        d.Body,
	}
}

func (c *Client) CreatePost(ctx context.Context, draft PostDraft) error {
	return c.postForm(ctx, "POST", "/community/create_post", draft.fields(), draft.Image, nil)
}

func (c *Client) UpdatePost(ctx context.Context, postID int, draft PostDraft) error {
	path := fmt.Sprintf("/community/post/%d/update/", postID)
	return c.postForm(ctx, "PUT", path, draft.fields(), draft.Image, nil)
}

// DeletePost removes a post. The backend exposes deletion as a GET.
func (c *Client) DeletePost(ctx context.Context, postID int) error {
	return c.getJSON(ctx, fmt.Sprintf("/community/post/%d/delete_post/", postID), nil)
}

// LikeResult carries whatever canonical like state the backend reports.
// Both fields are optional: the endpoint historically answers with an empty
// body, in which case the optimistic values stand.
type LikeResult struct {
	Likes *int  `json:"likes,omitempty"`
	Liked *bool `json:"liked,omitempty"`
}

// ToggleLike flips the caller's like on a post.
func (c *Client) ToggleLike(ctx context.Context, postID int) (LikeResult, error) {
	var res LikeResult
	err := c.postJSON(ctx, fmt.Sprintf("/community/post/%d/like/", postID), nil, &res)
	return res, err
}

func (c *Client) Comments(ctx context.Context, postID int) ([]models.Comment, error) {
	var comments []models.Comment
	path := fmt.Sprintf("/community/post/%d/comments/", postID)
	if err := c.getJSON(ctx, path, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// CreateComment posts a comment and returns the server's copy when the
// response carries one (assigned id, author, timestamp).
func (c *Client) CreateComment(ctx context.Context, postID int, body string) (models.Comment, error) {
	var created models.Comment
	path := fmt.Sprintf("/community/post/%d/comment/create/", postID)
	err := c.postJSON(ctx, path, map[string]string{"body": body}, &created)
	return created, err
}

// AuthorProfile fetches the public profile of a post's author.
func (c *Client) AuthorProfile(ctx context.Context, userID int) (models.Author, error) {
	var author models.Author
	path := fmt.Sprintf("/user/consultant-profile-detail/%d", userID)
	if err := c.getJSON(ctx, path, &author); err != nil {
		return models.Author{}, err
	}
	return author, nil
}

// UserDetails fetches the authenticated user's own profile.
func (c *Client) UserDetails(ctx context.Context) (models.Profile, error) {
	var wrapper struct {
		User models.Profile `json:"user"`
	}
	if err := c.getJSON(ctx, "/user/user-details", &wrapper); err != nil {
		return models.Profile{}, err
	}
	return wrapper.User, nil
}
