// Package session owns the credential lifecycle: it attaches tokens to
// outbound calls, runs the refresh protocol on expiry, and demotes the
// process-wide session state when refresh fails for good.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"plantaria/internal/creds"
	"plantaria/internal/errs"
)

const (
	loginPath    = "/user/login/"
	registerPath = "/user/register"
	refreshPath  = "/user/login/token/refresh/"
)

type State string

const (
	StateLoggedOut State = "loggedOut"
	StateLoggedIn  State = "loggedIn"
)

type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// tokenPair is the shape every auth endpoint answers with. The refresh
// endpoint may omit the rotated refresh token, in which case the stored one
// stays valid.
type tokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	Detail  string `json:"detail"`
}

type Config struct {
	BaseURL    string
	Store      creds.Store
	HTTPClient *http.Client
}

type Manager struct {
	baseURL string
	store   creds.Store
	http    *http.Client

	// Collapses concurrent refresh attempts into one in-flight call whose
	// result every co-occurring caller shares.
	refreshGroup singleflight.Group

	mu      sync.Mutex
	state   State
	subs    map[int]chan State
	nextSub int

	now func() time.Time
}

func NewManager(cfg Config) *Manager {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	m := &Manager{
		baseURL: cfg.BaseURL,
		store:   cfg.Store,
		http:    httpClient,
		state:   StateLoggedOut,
		subs:    make(map[int]chan State),
		now:     time.Now,
	}

	if cred, err := cfg.Store.Get(); err == nil && cred.Valid() {
		m.state = StateLoggedIn
	}

	return m
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers an observer of session-state transitions. The returned
// cancel func must be called when the observer goes away.
func (m *Manager) Subscribe() (<-chan State, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	ch := make(chan State, 4)
	m.subs[id] = ch

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if ch, ok := m.subs[id]; ok {
			close(ch)
			delete(m.subs, id)
		}
	}
	return ch, cancel
}

// setState notifies subscribers only on an actual transition, so concurrent
// demotions collapse into a single loggedOut event.
func (m *Manager) setState(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == s {
		return
	}
	m.state = s

	for _, ch := range m.subs {
		select {
		case ch <- s:
		default:
			// Slow subscriber; it will read the latest state on its next poll.
		}
	}
}

// Attach injects the current access token as a bearer credential. Without a
// stored credential the request proceeds unauthenticated.
func (m *Manager) Attach(req *http.Request) {
	cred, err := m.store.Get()
	if err != nil || !cred.Valid() {
		return
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
}

// Do issues an authenticated request. newReq is a factory because the retry
// after a refresh needs a fresh request (bodies are one-shot).
//
// A 401 triggers exactly one refresh attempt and one retry. A second 401, a
// refresh rejection, or a refresh transport error all demote the session and
// return errs.ErrAuthExpired.
func (m *Manager) Do(ctx context.Context, newReq func(ctx context.Context) (*http.Request, error)) (*http.Response, error) {
	cred, _ := m.store.Get()

	// Known-expired access token: refresh up front instead of burning a
	// round trip on a guaranteed 401.
	if cred.Valid() && cred.RefreshToken != "" && m.tokenExpired(cred.AccessToken) {
		if _, err := m.refresh(ctx); err != nil {
			return nil, err
		}
	}

	resp, err := m.roundTrip(ctx, newReq, m.Attach)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	_ = resp.Body.Close()

	if cred.RefreshToken == "" {
		// Nothing to refresh with; demote immediately.
		m.demote("unauthorized without refresh token")
		return nil, errs.ErrAuthExpired
	}

	refreshed, err := m.refresh(ctx)
	if err != nil {
		return nil, err
	}

	resp, err = m.roundTrip(ctx, newReq, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+refreshed.AccessToken)
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		_ = resp.Body.Close()
		m.demote("still unauthorized after refresh")
		return nil, errs.ErrAuthExpired
	}
	return resp, nil
}

func (m *Manager) roundTrip(ctx context.Context, newReq func(ctx context.Context) (*http.Request, error), attach func(*http.Request)) (*http.Response, error) {
	req, err := newReq(ctx)
	if err != nil {
		return nil, &errs.NetworkError{Op: "build request", Err: err}
	}
	attach(req)
	resp, err := m.http.Do(req)
	if err != nil {
		return nil, &errs.NetworkError{Op: "request " + req.URL.Path, Err: err}
	}
	return resp, nil
}

// refresh runs the refresh protocol at most once per expiry event. Followers
// that hit 401 while a refresh is in flight block on the same result.
func (m *Manager) refresh(ctx context.Context) (creds.Credential, error) {
	v, err, _ := m.refreshGroup.Do("refresh", func() (any, error) {
		return m.doRefresh(ctx)
	})
	if err != nil {
		return creds.Credential{}, err
	}
	return v.(creds.Credential), nil
}

func (m *Manager) doRefresh(ctx context.Context) (creds.Credential, error) {
	cred, err := m.store.Get()
	if err != nil || cred.RefreshToken == "" {
		m.demote("refresh without stored refresh token")
		return creds.Credential{}, errs.ErrAuthExpired
	}

	body, _ := json.Marshal(map[string]string{"refresh": cred.RefreshToken})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+refreshPath, bytes.NewReader(body))
	if err != nil {
		m.demote("refresh request build failed")
		return creds.Credential{}, errs.ErrAuthExpired
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		// Network failure on the refresh endpoint is terminal: the caller
		// cannot tell a dead token from a dead network, and retrying the
		// refresh forever would wedge every authenticated call behind it.
		m.demote(fmt.Sprintf("refresh transport error: %v", err))
		return creds.Credential{}, errs.ErrAuthExpired
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		m.demote(fmt.Sprintf("refresh rejected with status %d", resp.StatusCode))
		return creds.Credential{}, errs.ErrAuthExpired
	}

	var pair tokenPair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil || pair.Access == "" {
		m.demote("refresh response missing access token")
		return creds.Credential{}, errs.ErrAuthExpired
	}

	rotated := creds.Credential{
		AccessToken:  pair.Access,
		RefreshToken: pair.Refresh,
	}
	if rotated.RefreshToken == "" {
		// Backend rotates only the access token; keep the refresh token.
		rotated.RefreshToken = cred.RefreshToken
	}

	if err := m.store.Set(rotated); err != nil {
		slog.Error("failed to persist rotated credential", "error", err)
	}

	slog.Debug("access token refreshed")
	return rotated, nil
}

func (m *Manager) demote(reason string) {
	if err := m.store.Clear(); err != nil {
		slog.Error("failed to clear credential store", "error", err)
	}
	slog.Info("session demoted to logged out", "reason", reason)
	m.setState(StateLoggedOut)
}

// tokenExpired decodes the access token's exp claim without verifying the
// signature (the server owns verification). Unparseable tokens are treated
// as live and left for the server to reject.
func (m *Manager) tokenExpired(token string) bool {
	var claims jwt.RegisteredClaims
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !claims.ExpiresAt.Time.After(m.now())
}

// Login exchanges a username/password for a token pair. A server rejection
// surfaces its detail message verbatim; the session stays logged out.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	body, _ := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	return m.obtainPair(ctx, loginPath, body)
}

// Register creates an account. On success the backend answers with the same
// token pair as login, so registration logs the user straight in.
func (m *Manager) Register(ctx context.Context, reg Registration) error {
	body, err := json.Marshal(reg)
	if err != nil {
		return &errs.NetworkError{Op: "encode registration", Err: err}
	}
	return m.obtainPair(ctx, registerPath, body)
}

func (m *Manager) obtainPair(ctx context.Context, path string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return &errs.NetworkError{Op: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return &errs.NetworkError{Op: "request " + path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &errs.NetworkError{Op: "read response", Err: err}
	}

	var pair tokenPair
	_ = json.Unmarshal(raw, &pair)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &errs.ValidationError{Status: resp.StatusCode, Detail: pair.Detail}
	}
	if pair.Access == "" || pair.Refresh == "" {
		return &errs.NetworkError{Op: "decode token pair", Err: errors.New("response missing access/refresh tokens")}
	}

	if err := m.store.Set(creds.Credential{
		AccessToken:  pair.Access,
		RefreshToken: pair.Refresh,
	}); err != nil {
		return fmt.Errorf("failed to persist credentials: %w", err)
	}

	m.setState(StateLoggedIn)
	return nil
}

// Logout clears the stored credential pair unconditionally. It does not
// contact the server.
func (m *Manager) Logout() error {
	err := m.store.Clear()
	m.setState(StateLoggedOut)
	return err
}
