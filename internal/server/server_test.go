package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/futonlab/miteguard/internal/db"
	"github.com/futonlab/miteguard/internal/forecast"
	"github.com/futonlab/miteguard/internal/metrics"
	"github.com/futonlab/miteguard/internal/models"
	"github.com/futonlab/miteguard/internal/service"
)

// stubRegistry implements the handful of Registry methods the handler tests
// touch. The embedded nil Store panics on anything else, which keeps the
// tests honest about what each route actually reads.
type stubRegistry struct {
	service.Store
	items     map[string]*models.Item
	locations map[string]*models.Location
}

func newStubRegistry() *stubRegistry {
	return &stubRegistry{
		items:     map[string]*models.Item{},
		locations: map[string]*models.Location{},
	}
}

func (s *stubRegistry) GetItem(_ context.Context, id string) (*models.Item, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return item, nil
}

func (s *stubRegistry) ListItems(_ context.Context) ([]models.Item, error) {
	out := make([]models.Item, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, *item)
	}
	return out, nil
}

func (s *stubRegistry) GetLocation(_ context.Context, id string) (*models.Location, error) {
	loc, ok := s.locations[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return loc, nil
}

func (s *stubRegistry) CreateItem(_ context.Context, item *models.Item) (*models.Item, error) {
	id := fmt.Sprintf("i%d", len(s.items)+1)
	item.ID = surrealmodels.RecordID{Table: "item", ID: id}
	s.items[id] = item
	return item, nil
}

func (s *stubRegistry) CreateLocation(_ context.Context, loc *models.Location) (*models.Location, error) {
	id := fmt.Sprintf("l%d", len(s.locations)+1)
	loc.ID = surrealmodels.RecordID{Table: "location", ID: id}
	s.locations[id] = loc
	return loc, nil
}

func newTestServer(reg Registry) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	coord := service.NewCoordinator(service.Deps{Store: reg, Logger: logger})
	return New("0", reg, coord, nil, metrics.NewCollector(), logger)
}

func TestHealthAndStats(t *testing.T) {
	srv := newTestServer(newStubRegistry())
	handler := srv.routes()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
}

func TestRequestMetricsExported(t *testing.T) {
	srv := newTestServer(newStubRegistry())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := LoggingMiddleware(logger)(srv.routes())

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `http_requests_total{route="GET /health",status="200"}`)
	assert.Contains(t, body, `http_request_duration_seconds_bucket{route="GET /health"`)
}

func TestCreateItem(t *testing.T) {
	t.Run("creates item with defaults", func(t *testing.T) {
		reg := newStubRegistry()
		srv := newTestServer(reg)

		body := `{"owner_id":"alice","name":"winter futon","material":"cotton","thickness":"thick"}`
		rec := httptest.NewRecorder()
		srv.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/items", strings.NewReader(body)))

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var created models.Item
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		assert.Equal(t, models.ItemStatusNormal, created.Status)
		assert.Equal(t, models.MaterialCotton, created.Material)
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		srv := newTestServer(newStubRegistry())
		rec := httptest.NewRecorder()
		srv.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/items", strings.NewReader(`{"name":"x"}`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects unknown location", func(t *testing.T) {
		srv := newTestServer(newStubRegistry())
		body := `{"owner_id":"alice","name":"futon","location_id":"nope"}`
		rec := httptest.NewRecorder()
		srv.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/items", strings.NewReader(body)))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("rejects unknown body fields", func(t *testing.T) {
		srv := newTestServer(newStubRegistry())
		rec := httptest.NewRecorder()
		srv.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/items", strings.NewReader(`{"bogus":true}`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetItem(t *testing.T) {
	reg := newStubRegistry()
	reg.items["i1"] = &models.Item{
		ID:      surrealmodels.RecordID{Table: "item", ID: "i1"},
		OwnerID: "alice",
		Name:    "futon",
		Status:  models.ItemStatusNormal,
	}
	srv := newTestServer(reg)

	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/items/i1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/items/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNearbyOrdersValidation(t *testing.T) {
	srv := newTestServer(newStubRegistry())

	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders/nearby", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "helper_id is required")

	rec = httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders/nearby?helper_id=bob&lat=abc&lon=1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWriteErrorMapping(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("get: %w", db.ErrNotFound), http.StatusNotFound},
		{"conflict", fmt.Errorf("busy: %w", service.ErrConflict), http.StatusConflict},
		{"invariant", fmt.Errorf("open session: %w", service.ErrInvariant), http.StatusConflict},
		{"no location", fmt.Errorf("item: %w", service.ErrNoLocation), http.StatusUnprocessableEntity},
		{"forecast down", fmt.Errorf("fetch: %w", forecast.ErrUnavailable), http.StatusServiceUnavailable},
		{"bad request", badRequest("nope"), http.StatusBadRequest},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, logger, tt.err)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestLoggingMiddleware(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x?verbose=1", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, buf.String(), "status=418")
	assert.Contains(t, buf.String(), "verbose=1")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exact", truncate("exact", 5))
	assert.Equal(t, "ab...", truncate("abcdefgh", 5))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}
