package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/znz-systems/emailfilter/internal/metrics"
	"github.com/znz-systems/emailfilter/internal/ratelimit"
	"github.com/znz-systems/emailfilter/internal/web/handlers"
)

type okPinger struct{}

func (okPinger) PingContext(context.Context) error { return nil }

func newTestRouter() *chi.Mux {
	m := metrics.New()
	return NewRouter(RouterDeps{
		CompanyHandler: handlers.NewCompanyHandler(nil, 1<<20),
		EmailHandler:   handlers.NewEmailHandler(nil, "", 1<<20),
		HealthHandler:  handlers.NewHealthHandler(okPinger{}),
		Limiter:        ratelimit.NewLimiter(1, 1),
		Metrics:        m.Middleware,
		MetricsHandler: m.Handler(),
	})
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	router := newTestRouter()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `emailfilter_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
}

func TestRouter_PanicsAreRecoveredAndCounted(t *testing.T) {
	router := newTestRouter()
	router.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rr.Body.String(), `emailfilter_http_requests_total{method="GET",route="/boom",status="500"} 1`)
}

func TestRouter_UnknownRoutes(t *testing.T) {
	router := newTestRouter()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/emails", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestRouter_WritesAreRateLimited(t *testing.T) {
	router := newTestRouter()

	// The first request spends the only token; its malformed body fails
	// before any service is reached.
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/emails", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/companies", strings.NewReader("{")))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}
