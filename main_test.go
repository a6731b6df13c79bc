package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantaria/internal/api"
	"plantaria/internal/cart"
	"plantaria/internal/chat"
	"plantaria/internal/commands"
	"plantaria/internal/creds"
	"plantaria/internal/feed"
	"plantaria/internal/models"
	"plantaria/internal/session"
)

// fakeBackend is an in-process stand-in for the Plantaria server covering
// the REST endpoints and the chat push channel.
type fakeBackend struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu           sync.Mutex
	access       string
	refresh      string
	refreshCalls int
	posts        []models.Post
	liked        map[int]bool
	comments     map[int][]models.Comment
	nextComment  int
	products     []models.Product
	cartLines    []models.CartEntry
	nextCartLine int
	messages     map[int][]models.ChatMessage
	conns        []*websocket.Conn
}

func newFakeBackend(t *testing.T) *fakeBackend {
	b := &fakeBackend{
		access:      "access-1",
		refresh:     "refresh-1",
		liked:       map[int]bool{},
		comments:    map[int][]models.Comment{},
		nextComment: 500,
		messages:    map[int][]models.ChatMessage{},
		posts: []models.Post{
			{ID: 1, AuthorID: 10, AuthorUsername: "joe", Title: "Tomato blight", Body: "Spots on leaves", Likes: 2},
		},
		products: []models.Product{
			{ID: 7, Title: "Organic fertilizer", Price: 12.50},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /user/login/", b.handleLogin)
	mux.HandleFunc("POST /user/login/token/refresh/", b.handleRefresh)
	mux.HandleFunc("GET /user/user-details", b.auth(b.handleUserDetails))
	mux.HandleFunc("GET /user/consultant-profile-detail/{id}", b.auth(b.handleProfile))
	mux.HandleFunc("GET /community/post_list", b.auth(b.handlePostList))
	mux.HandleFunc("POST /community/post/{id}/like/", b.auth(b.handleLike))
	mux.HandleFunc("GET /community/post/{id}/comments/", b.auth(b.handleComments))
	mux.HandleFunc("POST /community/post/{id}/comment/create/", b.auth(b.handleCreateComment))
	mux.HandleFunc("GET /vendor/farmer/products_list", b.auth(b.handleProducts))
	mux.HandleFunc("GET /vendor/cart/products/", b.auth(b.handleCart))
	mux.HandleFunc("POST /vendor/cart/add/", b.auth(b.handleCartAdd))
	mux.HandleFunc("POST /vendor/cart/remove/", b.auth(b.handleCartRemove))
	mux.HandleFunc("GET /core/messages/{id}/", b.auth(b.handleMessages))
	mux.HandleFunc("POST /core/send-message/", b.auth(b.handleSendMessage))
	mux.HandleFunc("GET /ws/chat/{id}/", b.handleWS)

	b.srv = httptest.NewServer(mux)
	t.Cleanup(func() {
		b.mu.Lock()
		for _, c := range b.conns {
			_ = c.Close()
		}
		b.mu.Unlock()
		b.srv.Close()
	})
	return b
}

func (b *fakeBackend) wsURL() string {
	return "ws" + strings.TrimPrefix(b.srv.URL, "http")
}

func (b *fakeBackend) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		want := "Bearer " + b.access
		b.mu.Unlock()
		if r.Header.Get("Authorization") != want {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "token not valid"})
			return
		}
		next(w, r)
	}
}

func (b *fakeBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Password != "secret" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "No active account found with the given credentials"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"access": b.access, "refresh": b.refresh})
}

func (b *fakeBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Refresh string `json:"refresh"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshCalls++
	if body.Refresh != b.refresh {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "token is invalid or expired"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access": b.access})
}

func (b *fakeBackend) handleUserDetails(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]models.Profile{
		"user": {ID: 1, Username: "maria", Email: "maria@example.com"},
	})
}

func (b *fakeBackend) handleProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.Author{ID: 10, Username: "joe", Bio: "corn farmer"})
}

func (b *fakeBackend) handlePostList(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, b.posts)
}

func (b *fakeBackend) handleLike(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.posts {
		if fmt.Sprint(b.posts[i].ID) == r.PathValue("id") {
			if b.liked[b.posts[i].ID] {
				b.posts[i].Likes--
			} else {
				b.posts[i].Likes++
			}
			b.liked[b.posts[i].ID] = !b.liked[b.posts[i].ID]
			writeJSON(w, http.StatusOK, map[string]int{"likes": b.posts[i].Likes})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "post not found"})
}

func (b *fakeBackend) handleComments(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var postID int
	fmt.Sscan(r.PathValue("id"), &postID)
	writeJSON(w, http.StatusOK, b.comments[postID])
}

func (b *fakeBackend) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Body string `json:"body"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	b.mu.Lock()
	defer b.mu.Unlock()
	var postID int
	fmt.Sscan(r.PathValue("id"), &postID)
	b.nextComment++
	created := models.Comment{ID: b.nextComment, PostID: postID, Author: "maria", Body: body.Body}
	b.comments[postID] = append(b.comments[postID], created)
	writeJSON(w, http.StatusCreated, created)
}

func (b *fakeBackend) handleProducts(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, b.products)
}

func (b *fakeBackend) handleCart(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, b.cartLines)
}

func (b *fakeBackend) handleCartAdd(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProductID int `json:"product_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextCartLine++
	line := models.CartEntry{ID: b.nextCartLine, ProductID: body.ProductID, Quantity: 1}
	b.cartLines = append(b.cartLines, line)
	writeJSON(w, http.StatusCreated, line)
}

func (b *fakeBackend) handleCartRemove(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProductID int `json:"product_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.cartLines[:0]
	for _, line := range b.cartLines {
		if line.ProductID != body.ProductID {
			kept = append(kept, line)
		}
	}
	b.cartLines = kept
	w.WriteHeader(http.StatusOK)
}

func (b *fakeBackend) handleMessages(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var roomID int
	fmt.Sscan(r.PathValue("id"), &roomID)
	writeJSON(w, http.StatusOK, b.messages[roomID])
}

func (b *fakeBackend) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var msg models.ChatMessage
	_ = json.NewDecoder(r.Body).Decode(&msg)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages[msg.Chatroom] = append(b.messages[msg.Chatroom], msg)
	w.WriteHeader(http.StatusCreated)
}

func (b *fakeBackend) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	b.mu.Lock()
	b.conns = append(b.conns, conn)
	b.mu.Unlock()
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// push broadcasts a message to every connected push client.
func (b *fakeBackend) push(t *testing.T, msg models.ChatMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(t, b.conns, "no push client connected")
	for _, c := range b.conns {
		require.NoError(t, c.WriteJSON(msg))
	}
}

func (b *fakeBackend) sentMessages(roomID int) []models.ChatMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.ChatMessage{}, b.messages[roomID]...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestApp(t *testing.T, b *fakeBackend) (*commands.App, *bytes.Buffer) {
	mgr := session.NewManager(session.Config{
		BaseURL:    b.srv.URL,
		Store:      creds.NewMemStore(),
		HTTPClient: b.srv.Client(),
	})
	client := api.New(b.srv.URL, mgr)
	out := &bytes.Buffer{}
	return &commands.App{
		Session: mgr,
		API:     client,
		Feed:    feed.NewAggregator(t.Context(), client),
		Cart:    cart.NewStore(client),
		Dialer:  chat.WSDialer{BaseURL: b.wsURL()},
		Out:     out,
	}, out
}

func TestCommunityFlow(t *testing.T) {
	b := newFakeBackend(t)
	app, out := newTestApp(t, b)
	ctx := t.Context()

	require.Error(t, commands.Login(ctx, app, "maria", "wrong"))
	require.NoError(t, commands.Login(ctx, app, "maria", "secret"))
	assert.Equal(t, session.StateLoggedIn, app.Session.State())

	require.NoError(t, commands.Whoami(ctx, app))
	assert.Contains(t, out.String(), "maria <maria@example.com>")

	app.Feed.SetViewer("maria")
	out.Reset()
	require.NoError(t, commands.ShowFeed(ctx, app))
	assert.Contains(t, out.String(), "Tomato blight")
	assert.Contains(t, out.String(), "by joe")

	require.NoError(t, commands.Like(ctx, app, 1))
	require.NoError(t, commands.Comment(ctx, app, 1, "try neem oil"))

	out.Reset()
	require.NoError(t, commands.ShowFeed(ctx, app))
	assert.Contains(t, out.String(), "3 likes")
	assert.Contains(t, out.String(), "try neem oil")
}

func TestStaleTokenIsRefreshedTransparently(t *testing.T) {
	b := newFakeBackend(t)
	app, _ := newTestApp(t, b)
	ctx := t.Context()

	require.NoError(t, commands.Login(ctx, app, "maria", "secret"))

	// Invalidate the issued access token server-side; the next call gets a
	// 401, refreshes once, and retries without surfacing an error.
	b.mu.Lock()
	b.access = "access-2"
	b.mu.Unlock()

	require.NoError(t, commands.Whoami(ctx, app))
	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Equal(t, 1, b.refreshCalls)
}

func TestCartFlow(t *testing.T) {
	b := newFakeBackend(t)
	app, out := newTestApp(t, b)
	ctx := t.Context()

	require.NoError(t, commands.Login(ctx, app, "maria", "secret"))

	require.NoError(t, commands.CartAdd(ctx, app, 7))
	assert.Contains(t, out.String(), "Added Organic fertilizer")

	out.Reset()
	require.NoError(t, commands.ShowCart(ctx, app))
	assert.Contains(t, out.String(), "product 7")

	require.NoError(t, commands.CartRemove(ctx, app, 7))
	out.Reset()
	require.NoError(t, commands.ShowCart(ctx, app))
	assert.Contains(t, out.String(), "Cart is empty")
}

func TestChatRoomOverLiveTransport(t *testing.T) {
	b := newFakeBackend(t)
	app, _ := newTestApp(t, b)
	ctx := t.Context()

	require.NoError(t, commands.Login(ctx, app, "maria", "secret"))

	b.mu.Lock()
	b.messages[3] = []models.ChatMessage{
		{Sender: "joe", Content: "harvest done?", Chatroom: 3, Timestamp: time.Now().Add(-time.Hour).UTC()},
	}
	b.mu.Unlock()

	room := chat.NewRoom(3, "maria", app.API, app.Dialer)
	require.NoError(t, room.Open(ctx))
	defer room.Close()
	require.Equal(t, chat.StateConnected, room.State())
	require.False(t, room.Broken())
	require.Len(t, room.Messages(), 1)

	b.push(t, models.ChatMessage{Sender: "joe", Content: "yes, all in", Chatroom: 3, Timestamp: time.Now().UTC()})
	require.Eventually(t, func() bool {
		return len(room.Messages()) == 2
	}, 2*time.Second, 10*time.Millisecond, "pushed message never arrived")

	require.NoError(t, room.Send(ctx, "great, talk tomorrow"))
	msgs := room.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "great, talk tomorrow", msgs[2].Content)

	sent := b.sentMessages(3)
	require.Len(t, sent, 2)
	assert.Equal(t, "maria", sent[1].Sender)
}
