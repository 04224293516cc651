package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mo-sawah/sawah-register/internal/account"
	"github.com/mo-sawah/sawah-register/internal/auth/credentials"
	"github.com/mo-sawah/sawah-register/internal/auth/flow"
	"github.com/mo-sawah/sawah-register/internal/auth/handler"
	"github.com/mo-sawah/sawah-register/internal/auth/nonce"
	"github.com/mo-sawah/sawah-register/internal/auth/provider"
	"github.com/mo-sawah/sawah-register/internal/auth/provider/facebook"
	"github.com/mo-sawah/sawah-register/internal/auth/provider/google"
	"github.com/mo-sawah/sawah-register/internal/auth/resolver"
	"github.com/mo-sawah/sawah-register/internal/config"
	"github.com/mo-sawah/sawah-register/internal/db"
	"github.com/mo-sawah/sawah-register/internal/logger"
	"github.com/mo-sawah/sawah-register/internal/mail"
	"github.com/mo-sawah/sawah-register/internal/metrics"
	"github.com/mo-sawah/sawah-register/internal/middleware"
	"github.com/mo-sawah/sawah-register/internal/pages"
	"github.com/mo-sawah/sawah-register/internal/redirect"
	"github.com/mo-sawah/sawah-register/internal/redis"
	"github.com/mo-sawah/sawah-register/internal/session"
	"github.com/mo-sawah/sawah-register/internal/state"
)

func setupHTTP(ctx context.Context, cfg config.Config) (*gin.Engine, func() error, error) {
	pg, err := openPostgres(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	rdb, err := openRedis(cfg)
	if err != nil {
		_ = pg.Close()
		return nil, nil, err
	}
	cleanup := func() error { return closeAll(rdb.Close, pg.Close) }

	router, err := buildRouter(ctx, cfg, pg, rdb)
	if err != nil {
		// A wiring failure must not leak the connections just opened.
		_ = cleanup()
		return nil, nil, err
	}
	return router, cleanup, nil
}

// closeAll closes every resource even when an earlier close fails, and
// reports the first failure.
func closeAll(closers ...func() error) error {
	var first error
	for _, c := range closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// buildRouter wires the components onto a router. It only wraps the
// opened connections; it never dials them itself.
func buildRouter(ctx context.Context, cfg config.Config, pg *db.DB, rdb *redis.Client) (*gin.Engine, error) {
	pageMap, err := pages.New(cfg.BaseURL, cfg.Pages)
	if err != nil {
		return nil, fmt.Errorf("parse BASE_URL: %w", err)
	}
	redirects, err := redirect.New(cfg.BaseURL, pageMap, redirect.ParsePolicy(cfg.RedirectAfterLogin))
	if err != nil {
		return nil, fmt.Errorf("parse BASE_URL: %w", err)
	}

	accounts := account.NewPGStore(pg)
	sessions := session.NewManager(session.NewRedisStore(rdb.Client))
	states := state.NewRedisStore(rdb.Client)

	registry, err := buildProviders(ctx, cfg)
	if err != nil {
		return nil, err
	}

	promRegistry := prometheus.NewRegistry()
	recorder := metrics.NewCollector(promRegistry)

	fl := flow.New(registry, resolver.NewAccountResolver(accounts, recorder), sessions, states, redirects, recorder)
	creds := credentials.NewService(accounts, sessions, states, mail.FromConfig(cfg.SMTP), pageMap, recorder, cfg.SiteName)

	formSecret := cfg.FormSecret
	if formSecret == "" {
		// Tokens won't survive a restart without a configured secret.
		logger.Warn("FORM_SECRET not set, using a per-process secret", nil)
		formSecret, err = state.NewToken()
		if err != nil {
			return nil, err
		}
	}

	h := handler.New(
		fl, creds, accounts, registry, sessions,
		nonce.NewIssuer(formSecret),
		pageMap, redirects,
		session.CookieOptions{Secure: cfg.SecureCookies},
	)

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler(promRegistry)))

	h.RegisterRoutes(router, middleware.NewSessions(sessions))

	return router, nil
}

// buildProviders registers each enabled, fully-credentialed provider.
// An enabled provider missing credentials is skipped with a warning;
// requests for it then fail as not configured instead of breaking the
// whole service at startup.
func buildProviders(ctx context.Context, cfg config.Config) (*provider.Registry, error) {
	callback := func(name string) string {
		return strings.TrimRight(cfg.BaseURL, "/") + "/auth/" + name + "/callback"
	}

	var adapters []provider.Adapter

	if cfg.Google.Enabled {
		if cfg.Google.ClientID == "" || cfg.Google.ClientSecret == "" {
			logger.Warn("google login enabled without credentials, skipping", nil)
		} else {
			g, err := google.New(ctx, google.Config{
				ClientID:     cfg.Google.ClientID,
				ClientSecret: cfg.Google.ClientSecret,
				RedirectURL:  callback("google"),
			})
			if err != nil {
				return nil, fmt.Errorf("init google provider: %w", err)
			}
			adapters = append(adapters, g)
		}
	}

	if cfg.Facebook.Enabled {
		if cfg.Facebook.AppID == "" || cfg.Facebook.AppSecret == "" {
			logger.Warn("facebook login enabled without credentials, skipping", nil)
		} else {
			fb, err := facebook.New(facebook.Config{
				AppID:       cfg.Facebook.AppID,
				AppSecret:   cfg.Facebook.AppSecret,
				RedirectURL: callback("facebook"),
			})
			if err != nil {
				return nil, fmt.Errorf("init facebook provider: %w", err)
			}
			adapters = append(adapters, fb)
		}
	}

	return provider.NewRegistry(adapters...), nil
}
