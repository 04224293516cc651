package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/mo-sawah/sawah-register/internal/auth"
	"github.com/mo-sawah/sawah-register/internal/auth/provider"
)

const (
	providerName  = "google"
	defaultIssuer = "https://accounts.google.com"

	requestTimeout = 20 * time.Second
)

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Issuer overrides the OIDC discovery issuer. Tests only.
	Issuer string
}

// Provider authenticates against Google via OIDC discovery. Endpoints
// come from the discovery document; the userinfo endpoint supplies the
// normalized profile.
type Provider struct {
	oauthConfig  *oauth2.Config
	oidcProvider *oidc.Provider
	client       *http.Client
}

func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RedirectURL == "" {
		return nil, errors.New("google oauth config missing required fields")
	}

	issuer := cfg.Issuer
	if issuer == "" {
		issuer = defaultIssuer
	}

	client := &http.Client{Timeout: requestTimeout}

	oidcProvider, err := oidc.NewProvider(oidc.ClientContext(ctx, client), issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to init google oidc provider: %w", err)
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     oidcProvider.Endpoint(),
		Scopes: []string{
			oidc.ScopeOpenID,
			"profile",
			"email",
		},
	}

	return &Provider{
		oauthConfig:  oauthCfg,
		oidcProvider: oidcProvider,
		client:       client,
	}, nil
}

// Name returns the provider identifier used by the registry.
func (p *Provider) Name() string {
	return providerName
}

// AuthCodeURL builds the authorization URL. The account chooser is
// always shown so a shared browser cannot silently reuse a session.
func (p *Provider) AuthCodeURL(state string) string {
	return p.oauthConfig.AuthCodeURL(
		state,
		oauth2.AccessTypeOnline,
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
}

func (p *Provider) ExchangeCode(ctx context.Context, code string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	token, err := p.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return "", &provider.Error{Provider: providerName, Op: "exchange", Err: err}
	}
	if token.AccessToken == "" {
		return "", &provider.Error{
			Provider: providerName,
			Op:       "exchange",
			Err:      errors.New("response missing access_token"),
		}
	}
	return token.AccessToken, nil
}

func (p *Provider) FetchProfile(ctx context.Context, accessToken string) (*auth.Identity, error) {
	src := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	})

	userInfo, err := p.oidcProvider.UserInfo(oidc.ClientContext(ctx, p.client), src)
	if err != nil {
		return nil, &provider.Error{Provider: providerName, Op: "profile", Err: err}
	}

	var claims struct {
		Subject       string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := userInfo.Claims(&claims); err != nil {
		return nil, &provider.Error{Provider: providerName, Op: "profile", Err: err}
	}

	if claims.Email == "" {
		return nil, &provider.Error{
			Provider: providerName,
			Op:       "profile",
			Err:      auth.ErrEmailMissing,
		}
	}

	return &auth.Identity{
		Provider:      providerName,
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		DisplayName:   claims.Name,
		AvatarURL:     claims.Picture,
	}, nil
}
