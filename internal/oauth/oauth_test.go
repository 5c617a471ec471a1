package oauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/TobiSchelling/SocialAgent/internal/content"
	"github.com/TobiSchelling/SocialAgent/internal/crypto"
	"github.com/TobiSchelling/SocialAgent/internal/database"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestManager(t *testing.T) (*Manager, *database.DB) {
	t.Helper()
	db := openTestDB(t)
	cipher, err := crypto.NewTokenCipher([]byte("test-encryption-secret"), "oauth-token")
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}
	m, err := NewManager(db, Options{
		RedirectBaseURL: "http://localhost:8000/",
		StateSecret:     []byte("test-state-secret"),
		Cipher:          cipher,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m, db
}

func TestAuthURL(t *testing.T) {
	m, _ := newTestManager(t)

	req, err := m.AuthURL(content.PlatformX, "demo-user")
	if err != nil {
		t.Fatalf("AuthURL: %v", err)
	}
	u, err := url.Parse(req.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	q := u.Query()
	if u.Host != "twitter.com" || q.Get("client_id") != "socialagent-local" {
		t.Errorf("unexpected url %s", req.URL)
	}
	if q.Get("scope") != "tweet.read tweet.write users.read" {
		t.Errorf("unexpected scope %q", q.Get("scope"))
	}
	if q.Get("code_challenge_method") != "S256" || q.Get("code_challenge") == "" {
		t.Errorf("expected PKCE parameters, got %v", q)
	}
	if q.Get("redirect_uri") != "http://localhost:8000/auth/x/callback" {
		t.Errorf("unexpected redirect %q", q.Get("redirect_uri"))
	}
	if q.Get("state") != req.State {
		t.Error("state parameter does not match returned state")
	}

	ig, _ := m.AuthURL("Instagram", "demo-user")
	iq, _ := url.Parse(ig.URL)
	if got := iq.Query().Get("scope"); got != "instagram_basic,instagram_content_publish" {
		t.Errorf("unexpected instagram scope %q", got)
	}
	if iq.Query().Get("code_challenge") != "" {
		t.Error("instagram should not use PKCE")
	}

	if _, err := m.AuthURL("tiktok", "demo-user"); !errors.Is(err, ErrUnsupportedPlatform) {
		t.Errorf("expected ErrUnsupportedPlatform, got %v", err)
	}
}

func TestCallbackStoresSealedToken(t *testing.T) {
	m, db := newTestManager(t)
	req, _ := m.AuthURL(content.PlatformX, "demo-user")

	acc, err := m.Callback(context.Background(), content.PlatformX, req.State, "code-123")
	if err != nil {
		t.Fatalf("Callback: %v", err)
	}
	if acc.UserID != "demo-user" || acc.Platform != content.PlatformX {
		t.Errorf("unexpected account %+v", acc)
	}
	stored, _ := db.GetAccount("demo-user", content.PlatformX)
	if !crypto.IsSealed(stored.SealedToken) || strings.Contains(stored.SealedToken, "x_access_") {
		t.Errorf("expected sealed token, got %q", stored.SealedToken)
	}

	token, err := m.Credential(context.Background(), "demo-user", content.PlatformX)
	if err != nil {
		t.Fatalf("Credential: %v", err)
	}
	if !strings.HasPrefix(token.AccessToken, "x_access_") || token.RefreshToken == "" {
		t.Errorf("unexpected token %+v", token)
	}
}

func TestCallbackRejectsBadState(t *testing.T) {
	m, _ := newTestManager(t)
	req, _ := m.AuthURL(content.PlatformLinkedIn, "demo-user")
	ctx := context.Background()

	if _, err := m.Callback(ctx, content.PlatformX, req.State, "code"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("platform mismatch: expected ErrInvalidState, got %v", err)
	}
	if _, err := m.Callback(ctx, content.PlatformLinkedIn, req.State+"x", "code"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("tampered: expected ErrInvalidState, got %v", err)
	}
	if _, err := m.Callback(ctx, content.PlatformLinkedIn, req.State, ""); !errors.Is(err, ErrMissingCode) {
		t.Errorf("expected ErrMissingCode, got %v", err)
	}

	m.now = func() time.Time { return time.Now().Add(DefaultStateTTL + time.Minute) }
	if _, err := m.Callback(ctx, content.PlatformLinkedIn, req.State, "code"); !errors.Is(err, ErrExpiredState) {
		t.Errorf("expected ErrExpiredState, got %v", err)
	}
}

func TestCallbackRejectsReusedState(t *testing.T) {
	m, _ := newTestManager(t)
	req, _ := m.AuthURL(content.PlatformLinkedIn, "demo-user")
	ctx := context.Background()

	if _, err := m.Callback(ctx, content.PlatformLinkedIn, req.State, "code-1"); err != nil {
		t.Fatalf("first Callback: %v", err)
	}
	_, err := m.Callback(ctx, content.PlatformLinkedIn, req.State, "code-2")
	if !errors.Is(err, ErrStateUsed) || !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrStateUsed, got %v", err)
	}

	other, _ := m.AuthURL(content.PlatformLinkedIn, "demo-user")
	if _, err := m.Callback(ctx, content.PlatformLinkedIn, other.State, "code-3"); err != nil {
		t.Errorf("fresh state: %v", err)
	}

	m.now = func() time.Time { return time.Now().Add(DefaultStateTTL + time.Minute) }
	if _, err := m.Callback(ctx, content.PlatformLinkedIn, req.State, "code-4"); !errors.Is(err, ErrExpiredState) {
		t.Errorf("expected ErrExpiredState once the state has aged out, got %v", err)
	}
	late, _ := m.AuthURL(content.PlatformLinkedIn, "demo-user")
	if _, err := m.Callback(ctx, content.PlatformLinkedIn, late.State, "code-5"); err != nil {
		t.Fatalf("late Callback: %v", err)
	}
	if len(m.used) != 1 {
		t.Errorf("expected expired state IDs to be pruned, have %d", len(m.used))
	}
}

func TestDisconnect(t *testing.T) {
	m, _ := newTestManager(t)
	req, _ := m.AuthURL(content.PlatformLinkedIn, "demo-user")
	acc, err := m.Callback(context.Background(), content.PlatformLinkedIn, req.State, "code")
	if err != nil {
		t.Fatalf("Callback: %v", err)
	}

	if _, err := m.Disconnect("someone-else", acc.ID); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound for other user, got %v", err)
	}
	if _, err := m.Disconnect("demo-user", acc.ID); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if _, err := m.Credential(context.Background(), "demo-user", content.PlatformLinkedIn); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
	list, _ := m.Accounts("demo-user")
	if len(list) != 0 {
		t.Errorf("expected no accounts, got %d", len(list))
	}
}

func TestNewManagerRequiresSecrets(t *testing.T) {
	db := openTestDB(t)
	cipher, _ := crypto.NewTokenCipher([]byte("k"), "oauth-token")
	if _, err := NewManager(db, Options{Cipher: cipher}); !errors.Is(err, crypto.ErrNoSecret) {
		t.Errorf("expected ErrNoSecret, got %v", err)
	}
	if _, err := NewManager(db, Options{StateSecret: []byte("s")}); err == nil {
		t.Error("expected error without cipher")
	}
}

func TestRemoteExchangeRequiresClientID(t *testing.T) {
	db := openTestDB(t)
	cipher, _ := crypto.NewTokenCipher([]byte("k"), "oauth-token")
	m, err := NewManager(db, Options{StateSecret: []byte("s"), Cipher: cipher, Exchanger: OAuth2Exchanger{}})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := m.AuthURL(content.PlatformX, "demo-user"); !errors.Is(err, ErrClientNotConfigured) {
		t.Errorf("expected ErrClientNotConfigured, got %v", err)
	}
}

func TestOAuth2ExchangerSendsVerifier(t *testing.T) {
	var gotVerifier, gotCode string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotVerifier = r.PostForm.Get("code_verifier")
		gotCode = r.PostForm.Get("code")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"remote-token","token_type":"bearer","expires_in":7200}`))
	}))
	defer srv.Close()

	cfg := &oauth2.Config{ClientID: "cid", Endpoint: oauth2.Endpoint{TokenURL: srv.URL}}
	token, err := OAuth2Exchanger{}.Exchange(context.Background(), content.PlatformX, cfg, "abc", "verifier-1")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if token.AccessToken != "remote-token" {
		t.Errorf("unexpected token %+v", token)
	}
	if gotVerifier != "verifier-1" || gotCode != "abc" {
		t.Errorf("unexpected form code=%q verifier=%q", gotCode, gotVerifier)
	}
}

func TestLocalExchangerLifetimes(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	l := &LocalExchanger{now: func() time.Time { return now }}
	tok, err := l.Exchange(context.Background(), content.PlatformInstagram, nil, "code", "")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if !tok.Expiry.Equal(now.Add(time.Hour)) || tok.RefreshToken != "" {
		t.Errorf("unexpected instagram token %+v", tok)
	}
	if _, err := l.Exchange(context.Background(), content.PlatformX, nil, " ", ""); !errors.Is(err, ErrMissingCode) {
		t.Errorf("expected ErrMissingCode, got %v", err)
	}
}
