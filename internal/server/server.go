// Package server provides the HTTP API with lifecycle management.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/futonlab/miteguard/internal/db"
	"github.com/futonlab/miteguard/internal/forecast"
	"github.com/futonlab/miteguard/internal/metrics"
	"github.com/futonlab/miteguard/internal/models"
	"github.com/futonlab/miteguard/internal/predictor"
	"github.com/futonlab/miteguard/internal/service"
)

// Registry is the persistence surface the HTTP layer needs beyond the
// coordinator: record creation and the coordinator's own Store.
type Registry interface {
	service.Store
	CreateItem(ctx context.Context, item *models.Item) (*models.Item, error)
	CreateLocation(ctx context.Context, loc *models.Location) (*models.Location, error)
}

// Server wraps the HTTP API with dependencies and lifecycle management.
type Server struct {
	registry Registry
	coord    *service.Coordinator
	hub      *Hub
	metrics  *metrics.Collector
	logger   *slog.Logger
	http     *http.Server
}

// New creates the API server listening on the given port.
func New(port string, registry Registry, coord *service.Coordinator, hub *Hub, collector *metrics.Collector, logger *slog.Logger) *Server {
	s := &Server{
		registry: registry,
		coord:    coord,
		hub:      hub,
		metrics:  collector,
		logger:   logger,
	}
	s.http = &http.Server{
		Addr:         ":" + port,
		Handler:      LoggingMiddleware(logger)(s.routes()),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second, // long for LLM-backed predictions
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.Handle("GET /metrics", promhttp.Handler())
	if s.hub != nil {
		mux.HandleFunc("GET /events", s.hub.ServeWS)
	}

	mux.HandleFunc("POST /api/items", s.handleCreateItem)
	mux.HandleFunc("GET /api/items", s.handleListItems)
	mux.HandleFunc("GET /api/items/{id}", s.handleGetItem)
	mux.HandleFunc("GET /api/items/{id}/history", s.handleItemHistory)
	mux.HandleFunc("GET /api/items/{id}/windows", s.handleWindows)
	mux.HandleFunc("POST /api/items/{id}/confirm", s.handleConfirm)
	mux.HandleFunc("POST /api/items/{id}/cancel", s.handleCancel)

	mux.HandleFunc("POST /api/locations", s.handleCreateLocation)

	mux.HandleFunc("POST /api/orders", s.handleCreateOrder)
	mux.HandleFunc("GET /api/orders/nearby", s.handleNearbyOrders)
	mux.HandleFunc("GET /api/orders/{id}", s.handleGetOrder)
	mux.HandleFunc("POST /api/orders/{id}/accept", s.handleAcceptOrder)
	mux.HandleFunc("POST /api/orders/{id}/start", s.handleStartOrder)
	mux.HandleFunc("POST /api/orders/{id}/complete", s.handleCompleteOrder)
	mux.HandleFunc("POST /api/orders/{id}/cancel", s.handleCancelOrder)

	mux.HandleFunc("POST /admin/tick", s.handleTick)
	mux.HandleFunc("POST /admin/growth", s.handleGrowth)

	return mux
}

// Run starts the server and blocks until the context is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if s.hub != nil {
		s.hub.Close()
	}
	return s.http.Shutdown(shutdownCtx)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

type createItemRequest struct {
	OwnerID    string           `json:"owner_id"`
	Name       string           `json:"name"`
	Material   models.Material  `json:"material"`
	Thickness  models.Thickness `json:"thickness"`
	LocationID string           `json:"location_id,omitempty"`
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}
	if req.OwnerID == "" || req.Name == "" {
		writeError(w, s.logger, badRequest("owner_id and name are required"))
		return
	}

	item := &models.Item{
		OwnerID:   req.OwnerID,
		Name:      req.Name,
		Material:  req.Material,
		Thickness: req.Thickness,
		Status:    models.ItemStatusNormal,
	}
	if req.LocationID != "" {
		if _, err := s.registry.GetLocation(r.Context(), req.LocationID); err != nil {
			writeError(w, s.logger, err)
			return
		}
		rid := surrealmodels.RecordID{Table: "location", ID: req.LocationID}
		item.LocationID = &rid
	}

	created, err := s.registry.CreateItem(r.Context(), item)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	if status := r.URL.Query().Get("status"); status != "" {
		items, err := s.registry.ListItemsByStatus(r.Context(), models.ItemStatus(status))
		if err != nil {
			writeError(w, s.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
		return
	}
	items, err := s.registry.ListItems(r.Context())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.registry.GetItem(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleItemHistory(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.coord.ItemHistory(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleWindows(w http.ResponseWriter, r *http.Request) {
	best, assessment, err := s.coord.SelectWindow(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"best":       best,
		"assessment": assessment,
	})
}

type confirmRequest struct {
	InitiatorID string               `json:"initiator_id"`
	Window      models.OptimalWindow `json:"window"`
	Outcome     *predictor.Outcome   `json:"outcome,omitempty"`
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}
	if req.Window.StartTime.IsZero() || !req.Window.EndTime.After(req.Window.StartTime) {
		writeError(w, s.logger, badRequest("window start and end are required"))
		return
	}
	session, err := s.coord.ConfirmIntervention(r.Context(), r.PathValue("id"), req.InitiatorID, req.Window, req.Outcome)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.CancelIntervention(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *Server) handleCreateLocation(w http.ResponseWriter, r *http.Request) {
	var loc models.Location
	if err := decodeJSON(r, &loc); err != nil {
		writeError(w, s.logger, err)
		return
	}
	if loc.OwnerID == "" {
		writeError(w, s.logger, badRequest("owner_id is required"))
		return
	}
	created, err := s.registry.CreateLocation(r.Context(), &loc)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type createOrderRequest struct {
	ItemID      string               `json:"item_id"`
	RequesterID string               `json:"requester_id"`
	Window      models.OptimalWindow `json:"window"`
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}
	if req.ItemID == "" || req.RequesterID == "" {
		writeError(w, s.logger, badRequest("item_id and requester_id are required"))
		return
	}
	result, err := s.coord.CreateServiceOrder(r.Context(), req.ItemID, req.RequesterID, req.Window)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleNearbyOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	helperID := q.Get("helper_id")
	if helperID == "" {
		writeError(w, s.logger, badRequest("helper_id is required"))
		return
	}

	var at *models.Coord
	if q.Has("lat") && q.Has("lon") {
		lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
		lon, lonErr := strconv.ParseFloat(q.Get("lon"), 64)
		if latErr != nil || lonErr != nil {
			writeError(w, s.logger, badRequest("lat and lon must be numbers"))
			return
		}
		at = &models.Coord{Latitude: lat, Longitude: lon}
	}

	radius := 0.0
	if v := q.Get("radius_km"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 {
			writeError(w, s.logger, badRequest("radius_km must be a positive number"))
			return
		}
		radius = parsed
	}

	orders, err := s.coord.ListNearbyOrders(r.Context(), helperID, at, radius)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.registry.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type orderActorRequest struct {
	ActorID string `json:"actor_id"`
}

func (s *Server) orderAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, orderID, actorID string) (*models.ServiceOrder, error)) {
	var req orderActorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}
	if req.ActorID == "" {
		writeError(w, s.logger, badRequest("actor_id is required"))
		return
	}
	order, err := action(r.Context(), r.PathValue("id"), req.ActorID)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleAcceptOrder(w http.ResponseWriter, r *http.Request) {
	s.orderAction(w, r, s.coord.AcceptOrder)
}

func (s *Server) handleStartOrder(w http.ResponseWriter, r *http.Request) {
	s.orderAction(w, r, s.coord.BeginExecution)
}

func (s *Server) handleCompleteOrder(w http.ResponseWriter, r *http.Request) {
	s.orderAction(w, r, s.coord.CompleteOrder)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req orderActorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}
	if req.ActorID == "" {
		writeError(w, s.logger, badRequest("actor_id is required"))
		return
	}
	if err := s.coord.CancelOrder(r.Context(), r.PathValue("id"), req.ActorID); err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	report, err := s.coord.Tick(r.Context())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleGrowth(w http.ResponseWriter, r *http.Request) {
	elapsed := time.Hour
	if v := r.URL.Query().Get("elapsed"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed <= 0 {
			writeError(w, s.logger, badRequest("elapsed must be a positive duration"))
			return
		}
		elapsed = parsed
	}
	report, err := s.coord.GrowthTick(r.Context(), elapsed)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// apiError carries an HTTP status for a request-level failure.
type apiError struct {
	status int
	msg    string
}

func (e *apiError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &apiError{status: http.StatusBadRequest, msg: msg}
}

// writeError maps engine errors onto HTTP statuses.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError
	var apiErr *apiError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.status
	case errors.Is(err, db.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrConflict), errors.Is(err, service.ErrInvariant):
		status = http.StatusConflict
	case errors.Is(err, service.ErrNoLocation):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, forecast.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid request body: " + err.Error())
	}
	return nil
}
