package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mo-sawah/sawah-register/internal/config"
	"github.com/mo-sawah/sawah-register/internal/db"
	"github.com/mo-sawah/sawah-register/internal/redis"
)

func TestCloseAllClosesEverythingAndReportsFirstError(t *testing.T) {
	var order []string
	failure := errors.New("redis close failed")

	err := closeAll(
		func() error { order = append(order, "redis"); return failure },
		func() error { order = append(order, "postgres"); return nil },
	)

	assert.Equal(t, []string{"redis", "postgres"}, order,
		"a failing close must not skip the remaining resources")
	assert.Equal(t, failure, err)
}

func TestCloseAllNoErrors(t *testing.T) {
	calls := 0
	err := closeAll(
		func() error { calls++; return nil },
		func() error { calls++; return nil },
	)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

// buildRouter only wraps the connection handles, so empty handles are
// enough to wire and exercise the routes that touch no backend.
func TestBuildRouterWiresRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		BaseURL:            "https://example.com",
		SiteName:           "Example Site",
		FormSecret:         "form-secret",
		RedirectAfterLogin: "profile",
		Pages: config.Pages{
			Login:   "/login/",
			Signup:  "/signup/",
			Profile: "/profile/",
			Lost:    "/lost-password/",
		},
	}

	router, err := buildRouter(context.Background(), cfg, &db.DB{}, &redis.Client{})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	// No providers configured: the start route answers with the
	// operator-facing text instead of dialing anything.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/google", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestBuildRouterRejectsBadBaseURL(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := config.Config{BaseURL: "://not-a-url"}
	_, err := buildRouter(context.Background(), cfg, &db.DB{}, &redis.Client{})
	assert.Error(t, err)
}
