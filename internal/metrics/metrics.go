// Package metrics exposes Prometheus counters for the auth flows.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the services see; the flows record outcomes only.
type Recorder interface {
	RecordLogin(method string)
	RecordLoginFailure(method string)
	RecordSignup(method string)
	RecordOAuthStart(provider string)
	RecordOAuthFailure(provider, reason string)
	RecordResetRequested()
	RecordResetCompleted()
}

type Collector struct {
	logins        *prometheus.CounterVec
	loginFailures *prometheus.CounterVec
	signups       *prometheus.CounterVec
	oauthStarts   *prometheus.CounterVec
	oauthFailures *prometheus.CounterVec
	resetRequests prometheus.Counter
	resetDone     prometheus.Counter
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sawah_logins_total",
			Help: "Successful logins by method.",
		}, []string{"method"}),
		loginFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sawah_login_failures_total",
			Help: "Failed login attempts by method.",
		}, []string{"method"}),
		signups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sawah_signups_total",
			Help: "Accounts created by method.",
		}, []string{"method"}),
		oauthStarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sawah_oauth_starts_total",
			Help: "OAuth flows started by provider.",
		}, []string{"provider"}),
		oauthFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sawah_oauth_failures_total",
			Help: "OAuth callback failures by provider and reason.",
		}, []string{"provider", "reason"}),
		resetRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sawah_password_reset_requests_total",
			Help: "Password reset requests accepted.",
		}),
		resetDone: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sawah_password_resets_completed_total",
			Help: "Password resets completed.",
		}),
	}

	reg.MustRegister(
		c.logins, c.loginFailures, c.signups,
		c.oauthStarts, c.oauthFailures,
		c.resetRequests, c.resetDone,
	)
	return c
}

func (c *Collector) RecordLogin(method string)        { c.logins.WithLabelValues(method).Inc() }
func (c *Collector) RecordLoginFailure(method string) { c.loginFailures.WithLabelValues(method).Inc() }
func (c *Collector) RecordSignup(method string)       { c.signups.WithLabelValues(method).Inc() }
func (c *Collector) RecordOAuthStart(provider string) { c.oauthStarts.WithLabelValues(provider).Inc() }
func (c *Collector) RecordOAuthFailure(provider, reason string) {
	c.oauthFailures.WithLabelValues(provider, reason).Inc()
}
func (c *Collector) RecordResetRequested() { c.resetRequests.Inc() }
func (c *Collector) RecordResetCompleted() { c.resetDone.Inc() }

// Handler serves the scrape endpoint for the given registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Noop discards all observations. Used in tests.
type Noop struct{}

func (Noop) RecordLogin(string)                {}
func (Noop) RecordLoginFailure(string)         {}
func (Noop) RecordSignup(string)               {}
func (Noop) RecordOAuthStart(string)           {}
func (Noop) RecordOAuthFailure(string, string) {}
func (Noop) RecordResetRequested()             {}
func (Noop) RecordResetCompleted()             {}
