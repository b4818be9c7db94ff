// Package http serves the ledger engine as a JSON API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"debtr/internal/core"
	"debtr/internal/ledger"
	dlog "debtr/internal/log"
	"debtr/internal/metrics"
	"debtr/internal/middleware/ratelimit"
	"debtr/internal/middleware/security"
	"debtr/internal/middleware/trace"
	"debtr/internal/services"
)

// Engine is the part of services.Engine the API drives.
type Engine interface {
	Snapshot() *services.Snapshot
	Activate(ctx context.Context) (services.Result, error)
	Dispatch(ctx context.Context, action ledger.Action) (services.Result, error)
	SetCurrency(ctx context.Context, c core.Currency) (services.Result, error)
	SetLocale(ctx context.Context, l core.Locale) (services.Result, error)
}

type Options struct {
	Logger         *dlog.Logger
	RateLimit      ratelimit.Config
	TrustedProxies []string
	// RequestTimeout bounds how long a handler waits for the engine.
	RequestTimeout time.Duration
	// Metrics, when set, counts API requests and serves GET /metrics.
	Metrics *metrics.Metrics
}

type Server struct {
	http.Server
	engine   Engine
	logger   *dlog.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	timeout  time.Duration
	started  time.Time

	shutdownOnce sync.Once
}

func NewServer(addr string, engine Engine, opts Options) (*Server, error) {
	detector, err := security.NewDetector(opts.TrustedProxies...)
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = dlog.New(dlog.Config{Component: dlog.ComponentHTTP})
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	s := &Server{
		engine:   engine,
		logger:   logger,
		limiter:  ratelimit.NewLimiter(opts.RateLimit),
		detector: detector,
		timeout:  timeout,
		started:  time.Now(),
	}

	api := http.NewServeMux()
	api.HandleFunc("GET /api/ledger", s.handleLedger)
	api.HandleFunc("GET /api/items", s.handleListItems)
	api.HandleFunc("POST /api/items", s.handleAddItem)
	api.HandleFunc("GET /api/items/{id}", s.handleGetItem)
	api.HandleFunc("PUT /api/items/{id}", s.handleUpdateItem)
	api.HandleFunc("POST /api/items/{id}/toggle", s.handleToggleItem)
	api.HandleFunc("DELETE /api/items/{id}", s.handleRemoveItem)
	api.HandleFunc("GET /api/settings", s.handleGetSettings)
	api.HandleFunc("PUT /api/settings", s.handlePutSettings)
	api.HandleFunc("GET /api/notifications", s.handleNotifications)

	var routed http.Handler = api
	if opts.Metrics != nil {
		routed = opts.Metrics.Middleware(api)
	}

	limited := s.limiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			dlog.FieldComponent, dlog.ComponentRateLimit,
			dlog.FieldClientIP, detector.ExtractClientIP(r))
		NewJSONResponse(http.StatusTooManyRequests).Error("rate_limited", "Rate limit exceeded. Please try again later.").Write(w)
	})(routed)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("/api/", limited)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics.Handler())
	}

	var handler http.Handler = mux
	handler = security.Headers(security.DefaultHeadersConfig())(handler)
	handler = detector.Middleware(handler)
	handler = trace.Middleware(detector.ExtractClientIP)(handler)
	handler = dlog.Middleware(logger)(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse(http.StatusOK).Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady reports 503 until the engine has loaded, and while the store
// could not be read.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Snapshot()
	checks := map[string]any{
		"engine": "ok",
		"store":  "ok",
		"rate_limiter": map[string]any{
			"active_clients": s.limiter.ActiveClients(),
		},
		"suspicious_requests": s.detector.Suspicious(),
	}
	status, code := "ready", http.StatusOK
	if !snap.Loaded {
		checks["engine"] = "not loaded"
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	if snap.Degraded {
		checks["store"] = "degraded"
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	NewJSONResponse(code).Body(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// activate brings the engine up to the current month before a read. It
// writes the error response itself and reports whether to go on.
func (s *Server) activate(w http.ResponseWriter, r *http.Request) (services.Result, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	res, err := s.engine.Activate(ctx)
	if err != nil {
		s.writeEngineError(w, r, err)
		return services.Result{}, false
	}
	return res, true
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	res, ok := s.activate(w, r)
	if !ok {
		return
	}
	NewJSONResponse(http.StatusOK).Body(ledgerView(res.Snapshot)).Warning(res.Warning).Write(w)
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	res, ok := s.activate(w, r)
	if !ok {
		return
	}
	all := ParseBool(r.URL.Query().Get("all"))
	NewJSONResponse(http.StatusOK).Body(map[string]any{
		"items": itemsView(res.Snapshot, all),
	}).Warning(res.Warning).Write(w)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	res, ok := s.activate(w, r)
	if !ok {
		return
	}
	item, found := res.Snapshot.Item(core.ItemID(r.PathValue("id")))
	if !found {
		NewJSONResponse(http.StatusNotFound).Error("not_found", "item not found").Write(w)
		return
	}
	NewJSONResponse(http.StatusOK).Body(item).Write(w)
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var in ItemInput
	if resp := DecodeJSONBody(r, &in); resp != nil {
		resp.Write(w)
		return
	}
	creation, err := in.Creation()
	if err != nil {
		NewJSONResponse(http.StatusUnprocessableEntity).Error("invalid_input", err.Error()).Write(w)
		return
	}
	s.dispatch(w, r, http.StatusCreated, ledger.AddItem{Item: creation})
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var in ItemInput
	if resp := DecodeJSONBody(r, &in); resp != nil {
		resp.Write(w)
		return
	}
	item, err := in.Item(core.ItemID(r.PathValue("id")))
	if err != nil {
		NewJSONResponse(http.StatusUnprocessableEntity).Error("invalid_input", err.Error()).Write(w)
		return
	}
	s.dispatch(w, r, http.StatusOK, ledger.UpdateItem{Item: item})
}

func (s *Server) handleToggleItem(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, http.StatusOK, ledger.ToggleItemPaid{ID: core.ItemID(r.PathValue("id"))})
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, http.StatusOK, ledger.RemoveItem{ID: core.ItemID(r.PathValue("id"))})
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, status int, action ledger.Action) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	res, err := s.engine.Dispatch(ctx, action)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	body := map[string]any{"ledger": ledgerView(res.Snapshot)}
	if res.Item != nil {
		view, ok := res.Snapshot.Item(res.Item.ID)
		if !ok {
			// Removed items are returned as they were.
			view = services.ItemView{Item: *res.Item}
		}
		body["item"] = view
	}
	NewJSONResponse(status).Body(body).Warning(res.Warning).Write(w)
}

type settingsInput struct {
	Currency *string `json:"currency"`
	Locale   *string `json:"locale"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	res, ok := s.activate(w, r)
	if !ok {
		return
	}
	NewJSONResponse(http.StatusOK).Body(settingsView(res.Snapshot)).Warning(res.Warning).Write(w)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var in settingsInput
	if resp := DecodeJSONBody(r, &in); resp != nil {
		resp.Write(w)
		return
	}
	if in.Currency == nil && in.Locale == nil {
		NewJSONResponse(http.StatusUnprocessableEntity).Error("invalid_input", "currency or locale required").Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	var warnings []error
	snap := s.engine.Snapshot()
	if in.Currency != nil {
		res, err := s.engine.SetCurrency(ctx, core.Currency(SanitizeInput(*in.Currency)))
		if err != nil {
			s.writeEngineError(w, r, err)
			return
		}
		snap, warnings = res.Snapshot, append(warnings, res.Warning)
	}
	if in.Locale != nil {
		res, err := s.engine.SetLocale(ctx, core.Locale(SanitizeInput(*in.Locale)))
		if err != nil {
			s.writeEngineError(w, r, err)
			return
		}
		snap, warnings = res.Snapshot, append(warnings, res.Warning)
	}
	NewJSONResponse(http.StatusOK).Body(settingsView(snap)).Warning(errors.Join(warnings...)).Write(w)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	res, ok := s.activate(w, r)
	if !ok {
		return
	}
	NewJSONResponse(http.StatusOK).Body(map[string]any{
		"notifications": res.Snapshot.Notifications,
	}).Warning(res.Warning).Write(w)
}

// writeEngineError maps engine and validation errors to HTTP statuses.
func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorFromEngine(err)
	if resp.status >= http.StatusInternalServerError {
		dlog.FromContext(r.Context()).ErrorContext(r.Context(), "Engine request failed",
			dlog.FieldComponent, dlog.ComponentHTTP,
			dlog.FieldError, err)
	}
	resp.Write(w)
}

// ledgerView lists every item; isVisible marks those due this month.
func ledgerView(snap *services.Snapshot) map[string]any {
	return map[string]any{
		"loaded":     snap.Loaded,
		"degraded":   snap.Degraded,
		"currMonth":  snap.CurrMonth,
		"monthName":  core.MonthName(snap.CurrMonth),
		"currYear":   snap.CurrYear,
		"amountLeft": snap.AmountLeft,
		"currency":   snap.Currency,
		"locale":     snap.Locale,
		"items":      snap.Items,
		"version":    snap.Version,
	}
}

func itemsView(snap *services.Snapshot, all bool) []services.ItemView {
	if all {
		return snap.Items
	}
	return snap.Visible()
}

func settingsView(snap *services.Snapshot) map[string]any {
	return map[string]any{
		"currency":            snap.Currency,
		"locale":              snap.Locale,
		"supportedCurrencies": core.SupportedCurrencies(),
		"supportedLocales":    core.SupportedLocales(),
	}
}

