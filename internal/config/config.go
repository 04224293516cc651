package config

import (
	"fmt"
	"net/url"

	"github.com/caarlos0/env/v11"
)

// Config is resolved once at startup and passed to components by value.
// Nothing reads the environment after Load returns.
type Config struct {
	AppPort string `env:"APP_PORT" envDefault:"8080"`

	// BaseURL is the public origin of the site, e.g. https://example.com.
	// Redirect safety checks and OAuth callback URLs derive from it.
	BaseURL  string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	SiteName string `env:"SITE_NAME" envDefault:"Sawah Register"`

	Google   Google   `envPrefix:"GOOGLE_"`
	Facebook Facebook `envPrefix:"FACEBOOK_"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	DatabaseDSN string `env:"DATABASE_DSN"`

	// FormSecret keys the HMAC form nonces.
	FormSecret string `env:"FORM_SECRET"`

	SMTP SMTP `envPrefix:"SMTP_"`

	Pages Pages `envPrefix:"PAGE_"`

	// RedirectAfterLogin is one of profile | home | referrer.
	RedirectAfterLogin string `env:"REDIRECT_AFTER_LOGIN" envDefault:"profile"`

	SecureCookies bool `env:"SECURE_COOKIES" envDefault:"true"`
}

type Google struct {
	Enabled      bool   `env:"ENABLED"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
}

type Facebook struct {
	Enabled   bool   `env:"ENABLED"`
	AppID     string `env:"APP_ID"`
	AppSecret string `env:"APP_SECRET"`
}

type SMTP struct {
	Host     string `env:"HOST"`
	Port     string `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM"`
}

// Pages maps the auth surfaces to site-relative paths. The renderer owns
// the pages themselves; this service only builds URLs onto them.
type Pages struct {
	Login   string `env:"LOGIN" envDefault:"/login/"`
	Signup  string `env:"SIGNUP" envDefault:"/signup/"`
	Profile string `env:"PROFILE" envDefault:"/profile/"`
	Lost    string `env:"LOST" envDefault:"/lost-password/"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return Config{}, fmt.Errorf("config: invalid BASE_URL: %w", err)
	}
	return cfg, nil
}
