// Package oauth connects platform accounts with the authorization-code flow
// and keeps their tokens sealed in the database.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/TobiSchelling/SocialAgent/internal/content"
	"github.com/TobiSchelling/SocialAgent/internal/crypto"
	"github.com/TobiSchelling/SocialAgent/internal/database"
)

// DefaultStateTTL bounds how long a login may take.
const DefaultStateTTL = 10 * time.Minute

var (
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrClientNotConfigured = errors.New("oauth client not configured")
	ErrInvalidState        = errors.New("invalid oauth state")
	ErrStateUsed           = fmt.Errorf("%w: already used", ErrInvalidState)
	ErrExpiredState        = errors.New("oauth state expired")
	ErrMissingCode         = errors.New("authorization code missing")
	ErrNotConnected        = errors.New("account not connected")
)

// Endpoint describes a platform's authorization server.
type Endpoint struct {
	AuthURL  string
	TokenURL string
	Scopes   []string
	PKCE     bool
}

// Endpoints lists the supported platforms. Instagram expects its scopes
// comma-separated in a single parameter.
var Endpoints = map[content.Platform]Endpoint{
	content.PlatformX: {
		AuthURL:  "https://twitter.com/i/oauth2/authorize",
		TokenURL: "https://api.twitter.com/2/oauth2/token",
		Scopes:   []string{"tweet.read", "tweet.write", "users.read"},
		PKCE:     true,
	},
	content.PlatformInstagram: {
		AuthURL:  "https://api.instagram.com/oauth/authorize",
		TokenURL: "https://api.instagram.com/oauth/access_token",
		Scopes:   []string{"instagram_basic,instagram_content_publish"},
	},
	content.PlatformLinkedIn: {
		AuthURL:  "https://www.linkedin.com/oauth/v2/authorization",
		TokenURL: "https://www.linkedin.com/oauth/v2/accessToken",
		Scopes:   []string{"r_liteprofile", "r_emailaddress", "w_member_social"},
	},
}

// Client holds the registered application credentials for one platform.
type Client struct {
	ID          string
	Secret      string
	RedirectURI string
}

// Options configures a Manager.
type Options struct {
	Clients         map[content.Platform]Client
	RedirectBaseURL string
	StateSecret     []byte
	Cipher          *crypto.TokenCipher
	Exchanger       Exchanger
	StateTTL        time.Duration
}

// Manager runs the login flow and hands out stored credentials.
type Manager struct {
	db        *database.DB
	clients   map[content.Platform]Client
	redirect  string
	secret    []byte
	cipher    *crypto.TokenCipher
	exchanger Exchanger
	ttl       time.Duration
	now       func() time.Time

	mu   sync.Mutex
	used map[string]time.Time // state ID -> expiry
}

// AuthRequest is the redirect target for a login.
type AuthRequest struct {
	Platform content.Platform `json:"platform"`
	URL      string           `json:"auth_url"`
	State    string           `json:"state"`
}

type stateClaims struct {
	UserID   string `json:"uid"`
	Platform string `json:"platform"`
	Verifier string `json:"cv,omitempty"` // sealed PKCE verifier
	jwt.RegisteredClaims
}

// NewManager creates a Manager. A nil exchanger uses LocalExchanger, which
// also lets platforms without client credentials run with a local client ID.
func NewManager(db *database.DB, opts Options) (*Manager, error) {
	if len(opts.StateSecret) == 0 {
		return nil, fmt.Errorf("state secret: %w", crypto.ErrNoSecret)
	}
	if opts.Cipher == nil {
		return nil, errors.New("token cipher is required")
	}
	m := &Manager{
		db:        db,
		clients:   make(map[content.Platform]Client, len(Endpoints)),
		redirect:  strings.TrimRight(opts.RedirectBaseURL, "/"),
		secret:    opts.StateSecret,
		cipher:    opts.Cipher,
		exchanger: opts.Exchanger,
		ttl:       opts.StateTTL,
		now:       time.Now,
		used:      make(map[string]time.Time),
	}
	if m.exchanger == nil {
		m.exchanger = NewLocalExchanger()
	}
	if m.ttl <= 0 {
		m.ttl = DefaultStateTTL
	}
	_, local := m.exchanger.(*LocalExchanger)
	for p := range Endpoints {
		c := opts.Clients[p]
		if c.ID == "" && local {
			c.ID = "socialagent-local"
		}
		if c.RedirectURI == "" && m.redirect != "" {
			c.RedirectURI = fmt.Sprintf("%s/auth/%s/callback", m.redirect, p)
		}
		m.clients[p] = c
	}
	return m, nil
}

func (m *Manager) config(p content.Platform) (*oauth2.Config, Endpoint, error) {
	ep, ok := Endpoints[p]
	if !ok {
		return nil, Endpoint{}, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, p)
	}
	c := m.clients[p]
	if c.ID == "" {
		return nil, ep, fmt.Errorf("%w: %s", ErrClientNotConfigured, p)
	}
	return &oauth2.Config{
		ClientID:     c.ID,
		ClientSecret: c.Secret,
		RedirectURL:  c.RedirectURI,
		Scopes:       ep.Scopes,
		Endpoint:     oauth2.Endpoint{AuthURL: ep.AuthURL, TokenURL: ep.TokenURL},
	}, ep, nil
}

// AuthURL builds the authorization URL for a user's login to platform. The
// state is a signed token that Callback verifies.
func (m *Manager) AuthURL(platform content.Platform, userID string) (*AuthRequest, error) {
	platform = content.ParsePlatform(string(platform))
	cfg, ep, err := m.config(platform)
	if err != nil {
		return nil, err
	}

	now := m.now()
	claims := stateClaims{
		UserID:   userID,
		Platform: string(platform),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	var opts []oauth2.AuthCodeOption
	if ep.PKCE {
		verifier := oauth2.GenerateVerifier()
		sealed, err := m.cipher.Seal([]byte(verifier))
		if err != nil {
			return nil, fmt.Errorf("sealing verifier: %w", err)
		}
		claims.Verifier = sealed
		opts = append(opts, oauth2.S256ChallengeOption(verifier))
	}

	state, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("signing state: %w", err)
	}
	return &AuthRequest{Platform: platform, URL: cfg.AuthCodeURL(state, opts...), State: state}, nil
}

func (m *Manager) parseState(state string) (*stateClaims, error) {
	token, err := jwt.ParseWithClaims(state, &stateClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredState
		}
		return nil, ErrInvalidState
	}
	claims, ok := token.Claims.(*stateClaims)
	if !ok || !token.Valid || claims.UserID == "" || claims.ID == "" || claims.ExpiresAt == nil {
		return nil, ErrInvalidState
	}
	return claims, nil
}

// consume marks a state as spent so it cannot complete a second login.
// Entries are kept until the state would have expired anyway.
func (m *Manager) consume(claims *stateClaims) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for id, exp := range m.used {
		if !exp.After(now) {
			delete(m.used, id)
		}
	}
	if _, ok := m.used[claims.ID]; ok {
		return ErrStateUsed
	}
	m.used[claims.ID] = claims.ExpiresAt.Time
	return nil
}

// Callback completes a login: it verifies state, exchanges code for a token
// and stores the sealed token on the user's account. Each state completes at
// most one login.
func (m *Manager) Callback(ctx context.Context, platform content.Platform, state, code string) (*database.Account, error) {
	platform = content.ParsePlatform(string(platform))
	claims, err := m.parseState(state)
	if err != nil {
		return nil, err
	}
	if claims.Platform != string(platform) {
		return nil, fmt.Errorf("%w: issued for %s", ErrInvalidState, claims.Platform)
	}
	if code == "" {
		return nil, ErrMissingCode
	}
	cfg, ep, err := m.config(platform)
	if err != nil {
		return nil, err
	}
	if err := m.consume(claims); err != nil {
		return nil, err
	}

	var verifier string
	if claims.Verifier != "" {
		raw, err := m.cipher.Open(claims.Verifier)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
		}
		verifier = string(raw)
	}

	token, err := m.exchanger.Exchange(ctx, platform, cfg, code, verifier)
	if err != nil {
		return nil, fmt.Errorf("exchanging %s code: %w", platform, err)
	}
	data, err := json.Marshal(token)
	if err != nil {
		return nil, fmt.Errorf("encoding token: %w", err)
	}
	sealed, err := m.cipher.Seal(data)
	if err != nil {
		return nil, fmt.Errorf("sealing token: %w", err)
	}

	id, err := m.db.UpsertAccount(claims.UserID, platform, sealed, strings.Join(ep.Scopes, " "))
	if err != nil {
		return nil, fmt.Errorf("storing account: %w", err)
	}
	log.Printf("Connected %s account %d for %s", platform, id, claims.UserID)
	return m.db.GetAccountByID(id)
}

// Credential returns the decrypted token of a user's platform account.
func (m *Manager) Credential(_ context.Context, userID string, platform content.Platform) (*oauth2.Token, error) {
	acc, err := m.db.GetAccount(userID, platform)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotConnected, platform)
	}
	if err != nil {
		return nil, err
	}
	data, err := m.cipher.Open(acc.SealedToken)
	if err != nil {
		return nil, fmt.Errorf("opening %s token: %w", platform, err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("decoding %s token: %w", platform, err)
	}
	return &token, nil
}

// Accounts lists a user's connected accounts.
func (m *Manager) Accounts(userID string) ([]database.Account, error) {
	return m.db.ListAccounts(userID)
}

// Disconnect removes a user's account. It returns database.ErrNotFound when
// the account does not belong to the user.
func (m *Manager) Disconnect(userID string, id int64) (*database.Account, error) {
	acc, err := m.db.GetAccountByID(id)
	if err != nil {
		return nil, err
	}
	if err := m.db.DeleteAccount(userID, id); err != nil {
		return nil, err
	}
	log.Printf("Disconnected %s account %d for %s", acc.Platform, id, userID)
	return acc, nil
}
