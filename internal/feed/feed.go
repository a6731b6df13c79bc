// Package feed assembles the denormalized community feed: a point-in-time
// post list enriched with per-author profiles and per-post comments, plus
// the optimistic like/comment/edit operations that act on it.
package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/c-pro/geche"
	"golang.org/x/sync/errgroup"

	"plantaria/internal/api"
	"plantaria/internal/content"
	"plantaria/internal/errs"
	"plantaria/internal/models"
	"plantaria/internal/optimistic"
)

const (
	enrichConcurrency = 8
	profileTTL        = 5 * time.Minute
)

// communityAPI is the slice of the REST client the aggregator needs.
type communityAPI interface {
	PostList(ctx context.Context) ([]models.Post, error)
	AuthorProfile(ctx context.Context, userID int) (models.Author, error)
	Comments(ctx context.Context, postID int) ([]models.Comment, error)
	ToggleLike(ctx context.Context, postID int) (api.LikeResult, error)
	CreateComment(ctx context.Context, postID int, body string) (models.Comment, error)
	CreatePost(ctx context.Context, draft api.PostDraft) error
	UpdatePost(ctx context.Context, postID int, draft api.PostDraft) error
	DeletePost(ctx context.Context, postID int) error
}

// Item is one denormalized feed entry. Author is nil when the profile
// enrichment failed; the post is still shown with its base fields.
type Item struct {
	models.Post
	Author         *models.Author
	BodyHTML       string
	ViewerHasLiked bool
	Comments       []models.Comment
	CommentCount   int
}

type Aggregator struct {
	api      communityAPI
	profiles geche.Geche[int, models.Author]
	entity   *optimistic.Entity[[]Item]

	// Serializes applying reload results; a reload superseded by a newer one
	// is dropped instead of overwriting fresher state.
	loadMu     sync.Mutex
	generation int
	applied    int

	viewerMu sync.Mutex
	viewer   string
}

func NewAggregator(ctx context.Context, client communityAPI) *Aggregator {
	return &Aggregator{
		api:      client,
		profiles: geche.NewMapTTLCache[int, models.Author](ctx, profileTTL, time.Minute),
		entity:   optimistic.NewEntity([]Item{}),
	}
}

// SetViewer records the logged-in username used to author provisional
// comments.
func (a *Aggregator) SetViewer(username string) {
	a.viewerMu.Lock()
	defer a.viewerMu.Unlock()
	a.viewer = username
}

func (a *Aggregator) viewerName() string {
	a.viewerMu.Lock()
	defer a.viewerMu.Unlock()
	return a.viewer
}

// Items returns the current feed snapshot.
func (a *Aggregator) Items() []Item {
	return a.entity.Get()
}

// Load runs the full fetch-enrich cycle: post list, then concurrent author
// profile and comment fetches per post. An enrichment failure keeps the post
// un-enriched rather than dropping it; a post-list failure keeps the previous
// snapshot and surfaces the error.
func (a *Aggregator) Load(ctx context.Context) error {
	a.loadMu.Lock()
	a.generation++
	gen := a.generation
	a.loadMu.Unlock()

	posts, err := a.api.PostList(ctx)
	if err != nil {
		return err
	}

	items := make([]Item, len(posts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)
	for i, post := range posts {
		items[i] = Item{Post: post, BodyHTML: content.RenderMarkdown(post.Body)}
		g.Go(func() error {
			author, err := a.profile(gctx, post.AuthorID)
			if err != nil {
				slog.Warn("author enrichment failed, keeping post un-enriched",
					"post_id", post.ID, "author_id", post.AuthorID, "error", err)
			} else {
				items[i].Author = &author
			}

			comments, err := a.api.Comments(gctx, post.ID)
			if err != nil {
				slog.Warn("comment hydration failed", "post_id", post.ID, "error", err)
				return nil
			}
			items[i].Comments = comments
			items[i].CommentCount = len(comments)
			return nil
		})
	}
	_ = g.Wait()

	a.loadMu.Lock()
	defer a.loadMu.Unlock()
	if gen <= a.applied {
		// A newer reload already landed; this result is stale.
		return nil
	}
	a.applied = gen

	// The backend does not report per-user like state, so the client-held
	// flag is carried across reloads.
	liked := map[int]bool{}
	for _, it := range a.entity.Get() {
		if it.ViewerHasLiked {
			liked[it.ID] = true
		}
	}
	for i := range items {
		items[i].ViewerHasLiked = liked[items[i].ID]
	}

	a.entity.Set(items)
	return nil
}

func (a *Aggregator) profile(ctx context.Context, userID int) (models.Author, error) {
	if author, err := a.profiles.Get(userID); err == nil {
		return author, nil
	}
	author, err := a.api.AuthorProfile(ctx, userID)
	if err != nil {
		return models.Author{}, err
	}
	a.profiles.Set(userID, author)
	return author, nil
}

func (a *Aggregator) find(postID int) (Item, bool) {
	for _, it := range a.entity.Get() {
		if it.ID == postID {
			return it, true
		}
	}
	return Item{}, false
}

type likePrior struct {
	likes int
	liked bool
}

// ToggleLike flips the viewer's like optimistically and reconciles with the
// server's canonical count when the response carries one.
func (a *Aggregator) ToggleLike(ctx context.Context, postID int) error {
	if _, ok := a.find(postID); !ok {
		return errs.ErrNotFound
	}

	m := optimistic.Mutation[[]Item, likePrior]{
		Kind: optimistic.KindLike,
		Capture: func(items []Item) likePrior {
			for _, it := range items {
				if it.ID == postID {
					return likePrior{likes: it.Likes, liked: it.ViewerHasLiked}
				}
			}
			return likePrior{}
		},
		Apply: func(items []Item) []Item {
			return mutatePost(items, postID, func(it Item) Item {
				if it.ViewerHasLiked {
					it.Likes--
				} else {
					it.Likes++
				}
				it.ViewerHasLiked = !it.ViewerHasLiked
				return it
			})
		},
		Call: func(ctx context.Context) (func([]Item) []Item, error) {
			res, err := a.api.ToggleLike(ctx, postID)
			if err != nil {
				return nil, err
			}
			if res.Likes == nil && res.Liked == nil {
				return nil, nil
			}
			return func(items []Item) []Item {
				return mutatePost(items, postID, func(it Item) Item {
					if res.Likes != nil {
						it.Likes = *res.Likes
					}
					if res.Liked != nil {
						it.ViewerHasLiked = *res.Liked
					}
					return it
				})
			}, nil
		},
		Restore: func(items []Item, prior likePrior) []Item {
			return mutatePost(items, postID, func(it Item) Item {
				it.Likes = prior.likes
				it.ViewerHasLiked = prior.liked
				return it
			})
		},
	}
	return optimistic.Run(ctx, a.entity, m)
}

type commentPrior struct {
	comments []models.Comment
	count    int
}

// AddComment appends a provisional comment immediately and swaps in the
// server's copy (assigned id, author, timestamp) once acknowledged.
func (a *Aggregator) AddComment(ctx context.Context, postID int, body string) error {
	if err := content.ValidateMessage(body); err != nil {
		return &errs.ValidationError{Detail: err.Error()}
	}
	if _, ok := a.find(postID); !ok {
		return errs.ErrNotFound
	}

	body = content.Sanitize(body)
	provisional := models.Comment{PostID: postID, Author: a.viewerName(), Body: body}

	m := optimistic.Mutation[[]Item, commentPrior]{
		Kind: optimistic.KindComment,
		Capture: func(items []Item) commentPrior {
			for _, it := range items {
				if it.ID == postID {
					return commentPrior{comments: it.Comments, count: it.CommentCount}
				}
			}
			return commentPrior{}
		},
		Apply: func(items []Item) []Item {
			return mutatePost(items, postID, func(it Item) Item {
				it.Comments = append(append([]models.Comment{}, it.Comments...), provisional)
				it.CommentCount++
				return it
			})
		},
		Call: func(ctx context.Context) (func([]Item) []Item, error) {
			created, err := a.api.CreateComment(ctx, postID, body)
			if err != nil {
				return nil, err
			}
			if created.ID == 0 {
				return nil, nil
			}
			return func(items []Item) []Item {
				return mutatePost(items, postID, func(it Item) Item {
					for i := range it.Comments {
						if it.Comments[i].ID == 0 && it.Comments[i].Body == body {
							it.Comments[i] = created
							break
						}
					}
					return it
				})
			}, nil
		},
		Restore: func(items []Item, prior commentPrior) []Item {
			return mutatePost(items, postID, func(it Item) Item {
				it.Comments = prior.comments
				it.CommentCount = prior.count
				return it
			})
		},
	}
	return optimistic.Run(ctx, a.entity, m)
}

type postFields struct {
	title       string
	description string
	body        string
	bodyHTML    string
}

// UpdatePost edits a post optimistically, then re-runs the full load cycle
// on success so server-derived fields catch up.
func (a *Aggregator) UpdatePost(ctx context.Context, postID int, draft api.PostDraft) error {
	if _, ok := a.find(postID); !ok {
		return errs.ErrNotFound
	}

	m := optimistic.Mutation[[]Item, postFields]{
		Kind: optimistic.KindPostUpdate,
		Capture: func(items []Item) postFields {
			for _, it := range items {
				if it.ID == postID {
					return postFields{title: it.Title, description: it.Description, body: it.Body, bodyHTML: it.BodyHTML}
				}
			}
			return postFields{}
		},
		Apply: func(items []Item) []Item {
			return mutatePost(items, postID, func(it Item) Item {
				it.Title = draft.Title
				it.Description = draft.Description
				it.Body = draft.Body
				it.BodyHTML = content.RenderMarkdown(draft.Body)
				return it
			})
		},
		Call: func(ctx context.Context) (func([]Item) []Item, error) {
			return nil, a.api.UpdatePost(ctx, postID, draft)
		},
		Restore: func(items []Item, prior postFields) []Item {
			return mutatePost(items, postID, func(it Item) Item {
				it.Title = prior.title
				it.Description = prior.description
				it.Body = prior.body
				it.BodyHTML = prior.bodyHTML
				return it
			})
		},
	}
	if err := optimistic.Run(ctx, a.entity, m); err != nil {
		return err
	}
	a.reload(ctx)
	return nil
}

type deletePrior struct {
	item  Item
	index int
	found bool
}

// DeletePost removes a post optimistically; the rollback reinserts it at its
// old position.
func (a *Aggregator) DeletePost(ctx context.Context, postID int) error {
	if _, ok := a.find(postID); !ok {
		return errs.ErrNotFound
	}

	m := optimistic.Mutation[[]Item, deletePrior]{
		Kind: optimistic.KindPostDelete,
		Capture: func(items []Item) deletePrior {
			for i, it := range items {
				if it.ID == postID {
					return deletePrior{item: it, index: i, found: true}
				}
			}
			return deletePrior{}
		},
		Apply: func(items []Item) []Item {
			out := make([]Item, 0, len(items))
			for _, it := range items {
				if it.ID != postID {
					out = append(out, it)
				}
			}
			return out
		},
		Call: func(ctx context.Context) (func([]Item) []Item, error) {
			return nil, a.api.DeletePost(ctx, postID)
		},
		Restore: func(items []Item, prior deletePrior) []Item {
			if !prior.found {
				return items
			}
			idx := min(prior.index, len(items))
			out := make([]Item, 0, len(items)+1)
			out = append(out, items[:idx]...)
			out = append(out, prior.item)
			out = append(out, items[idx:]...)
			return out
		},
	}
	if err := optimistic.Run(ctx, a.entity, m); err != nil {
		return err
	}
	a.reload(ctx)
	return nil
}

// CreatePost is not optimistic: the server assigns the id and author fields,
// so the feed is reloaded wholesale after the write, matching the reload-on-
// demand policy.
func (a *Aggregator) CreatePost(ctx context.Context, draft api.PostDraft) error {
	if err := a.api.CreatePost(ctx, draft); err != nil {
		return err
	}
	a.reload(ctx)
	return nil
}

func (a *Aggregator) reload(ctx context.Context) {
	if err := a.Load(ctx); err != nil {
		slog.Warn("feed reload after mutation failed, keeping local state", "error", err)
	}
}

func mutatePost(items []Item, postID int, fn func(Item) Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	for i := range out {
		if out[i].ID == postID {
			out[i] = fn(out[i])
			break
		}
	}
	return out
}
