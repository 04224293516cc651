// Package pages maps the auth surfaces (login, signup, profile, lost
// password) to absolute URLs. The pages themselves are rendered by an
// external collaborator; this service only redirects to them.
package pages

import (
	"net/url"
	"strings"

	"github.com/mo-sawah/sawah-register/internal/config"
)

type Map struct {
	base    *url.URL
	login   string
	signup  string
	profile string
	lost    string
}

func New(baseURL string, p config.Pages) (*Map, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Map{
		base:    base,
		login:   p.Login,
		signup:  p.Signup,
		profile: p.Profile,
		lost:    p.Lost,
	}, nil
}

func (m *Map) Home() string    { return m.abs("/") }
func (m *Map) Login() string   { return m.abs(m.login) }
func (m *Map) Signup() string  { return m.abs(m.signup) }
func (m *Map) Profile() string { return m.abs(m.profile) }
func (m *Map) Lost() string    { return m.abs(m.lost) }

// URLFor returns the surface URL for a key, falling back to the login
// surface for unknown keys.
func (m *Map) URLFor(key string) string {
	switch key {
	case "signup":
		return m.Signup()
	case "profile":
		return m.Profile()
	case "lost":
		return m.Lost()
	default:
		return m.Login()
	}
}

func (m *Map) abs(path string) string {
	ref := &url.URL{Path: path}
	return m.base.ResolveReference(ref).String()
}

// WithQuery returns rawURL with an extra query parameter. Invalid URLs
// come back unchanged.
func WithQuery(rawURL, key, value string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}

// WithQueries applies several parameters in one pass, skipping empty
// values.
func WithQueries(rawURL string, kv map[string]string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	for k, v := range kv {
		if strings.TrimSpace(v) == "" {
			continue
		}
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
