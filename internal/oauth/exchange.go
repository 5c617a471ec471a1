package oauth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/TobiSchelling/SocialAgent/internal/content"
)

// Exchanger trades an authorization code for a token.
type Exchanger interface {
	Exchange(ctx context.Context, platform content.Platform, cfg *oauth2.Config, code, verifier string) (*oauth2.Token, error)
}

// OAuth2Exchanger calls the platform's token endpoint.
type OAuth2Exchanger struct{}

// Exchange implements Exchanger.
func (OAuth2Exchanger) Exchange(ctx context.Context, _ content.Platform, cfg *oauth2.Config, code, verifier string) (*oauth2.Token, error) {
	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}
	return cfg.Exchange(ctx, code, opts...)
}

// LocalExchanger issues opaque development tokens without network access.
type LocalExchanger struct {
	now func() time.Time
}

// NewLocalExchanger creates a LocalExchanger.
func NewLocalExchanger() *LocalExchanger {
	return &LocalExchanger{now: time.Now}
}

var localLifetimes = map[content.Platform]time.Duration{
	content.PlatformX:         7200 * time.Second,
	content.PlatformInstagram: 3600 * time.Second,
	content.PlatformLinkedIn:  5184000 * time.Second,
}

// Exchange implements Exchanger.
func (l *LocalExchanger) Exchange(_ context.Context, platform content.Platform, _ *oauth2.Config, code, _ string) (*oauth2.Token, error) {
	if strings.TrimSpace(code) == "" {
		return nil, ErrMissingCode
	}
	lifetime, ok := localLifetimes[platform]
	if !ok {
		lifetime = time.Hour
	}
	token := &oauth2.Token{
		AccessToken: string(platform) + "_access_" + uuid.NewString(),
		TokenType:   "bearer",
		Expiry:      l.now().Add(lifetime),
	}
	if platform != content.PlatformInstagram {
		token.RefreshToken = string(platform) + "_refresh_" + uuid.NewString()
	}
	return token, nil
}
