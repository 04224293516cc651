// Package redirect computes the post-auth destination. Explicit targets
// and referrers travel through user-controlled query parameters, so
// every candidate is validated as internal before use and the final
// answer is validated again on the way out.
package redirect

import (
	"net/url"

	"github.com/mo-sawah/sawah-register/internal/pages"
)

type Policy string

const (
	PolicyProfile  Policy = "profile"
	PolicyHome     Policy = "home"
	PolicyReferrer Policy = "referrer"
)

// ParsePolicy maps a configuration string to a Policy, defaulting to
// the profile surface.
func ParsePolicy(s string) Policy {
	switch s {
	case "home":
		return PolicyHome
	case "referrer", "ref":
		return PolicyReferrer
	default:
		return PolicyProfile
	}
}

type Resolver struct {
	base   *url.URL
	pages  *pages.Map
	policy Policy
}

func New(baseURL string, p *pages.Map, policy Policy) (*Resolver, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Resolver{base: base, pages: p, policy: policy}, nil
}

// Resolve picks the post-login destination: a safe explicit target wins,
// then the configured policy, then the site root.
func (r *Resolver) Resolve(explicit, referrer string) string {
	if dest, ok := r.Validate(explicit); ok {
		return dest
	}

	var candidate string
	switch r.policy {
	case PolicyHome:
		candidate = r.pages.Home()
	case PolicyReferrer:
		candidate = referrer
	default:
		candidate = r.pages.Profile()
	}

	if dest, ok := r.Validate(candidate); ok {
		return dest
	}
	return r.pages.Home()
}

// Validate reports whether raw is a safe internal destination and
// returns its absolute form. Safe means a site-relative path or an
// absolute URL on the configured origin.
func (r *Resolver) Validate(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	// Scheme-relative URLs ("//evil.com/x") parse with an empty scheme
	// but a foreign host.
	if u.Scheme == "" && u.Host == "" {
		if len(u.Path) > 0 && u.Path[0] != '/' {
			return "", false
		}
		return r.base.ResolveReference(u).String(), true
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if u.Host != r.base.Host {
		return "", false
	}
	return u.String(), true
}
