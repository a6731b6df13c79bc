package models

import "time"

// Post is a community post as the backend returns it from the post list.
// Author fields beyond AuthorID/AuthorUsername are denormalized onto the
// feed view model after a separate profile fetch.
type Post struct {
	ID             int    `json:"id"`
	AuthorID       int    `json:"author_id"`
	AuthorUsername string `json:"author_username"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Body           string `json:"body"`
	Image          string `json:"image,omitempty"`
	Likes          int    `json:"likes"`
	CreatedAt      string `json:"createdAt"`
}

// Comment on a post. ID is server-assigned; a freshly posted comment carries
// a provisional id until the server acknowledges it.
type Comment struct {
	ID        int    `json:"id"`
	PostID    int    `json:"post,omitempty"`
	Author    string `json:"author,omitempty"`
	Body      string `json:"body"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// Author is the public profile of a post's author.
type Author struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Avatar    string `json:"avatar,omitempty"`
	Bio       string `json:"bio,omitempty"`
}

// Profile is the authenticated user's own account details.
type Profile struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// Product in the vendor marketplace.
type Product struct {
	ID          int     `json:"id"`
	VendorID    int     `json:"vendor_id,omitempty"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	Image       string  `json:"image,omitempty"`
}

// CartEntry is one line of the cart. The backend enforces at most one entry
// per product; the client never creates duplicates.
type CartEntry struct {
	ID        int     `json:"id"`
	ProductID int     `json:"product"`
	UnitPrice float64 `json:"price,omitempty"`
	Quantity  int     `json:"quantity"`
}

// Order as placed against the vendor endpoints.
type Order struct {
	ID        int    `json:"id"`
	ProductID int    `json:"product"`
	Quantity  int    `json:"quantity"`
	Status    string `json:"status,omitempty"`
}

// Chatroom identifies one conversation.
type Chatroom struct {
	ID   int    `json:"id"`
	Name string `json:"name,omitempty"`
}

// ChatMessage is the wire shape used by both the REST history endpoint and
// the per-room push channel. Display order is timestamp ascending; the triple
// (Sender, Timestamp, Content) identifies a message for deduplication.
type ChatMessage struct {
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Chatroom  int       `json:"chatroom"`
	Timestamp time.Time `json:"timestamp"`
}

// Same reports whether two messages are the same logical message, regardless
// of which path (history fetch, push, local echo) delivered them.
func (m ChatMessage) Same(other ChatMessage) bool {
	return m.Sender == other.Sender &&
		m.Content == other.Content &&
		m.Timestamp.Equal(other.Timestamp)
}
