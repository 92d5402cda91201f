package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/spektr-org/patrimonia/dataset"
	"github.com/spektr-org/patrimonia/engine"
)

// ============================================================================
// SERVER: HTTP surface of the dashboard
// ============================================================================
// Every request reads the cached dataset and runs one engine.Evaluate pass
// with the query-string controls. Nothing per-user is stored.
//
//   GET  /                          HTML dashboard
//   GET  /api/dashboard             full report + metadata
//   GET  /api/metrics               headline counters of the full table
//   GET  /api/metadata              analysis metadata
//   GET  /api/rules                 rule activation over filtered Alto rows
//   GET  /api/institutions          institution selector options
//   GET  /api/charts/{name}[.svg]   one chart config, or its SVG rendering
//   GET  /api/top[.csv]             top-N table, or its CSV export
//   GET  /api/ranking               institution ranking table + chart
//   GET  /api/search?q=             name search over the full table
//   GET  /api/schema                column inventory of the loaded table
//   POST /api/refresh               reload the dataset now
//   GET  /healthz                   liveness; never triggers a load
// ============================================================================

// Server serves the dashboard from a dataset cache.
type Server struct {
	cache  *dataset.Cache
	opts   []engine.Option
	logger *zap.Logger
}

// NewServer builds a Server. opts are passed to every engine call.
func NewServer(cache *dataset.Cache, logger *zap.Logger, opts ...engine.Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cache:  cache,
		opts:   append([]engine.Option{engine.WithLogger(logger)}, opts...),
		logger: logger,
	}
}

// Handler returns the routed, middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(WithRequestID, AccessLog(s.logger), CORS)

	get := func(path string, h http.HandlerFunc) {
		router.HandleFunc(path, h).Methods(http.MethodGet, http.MethodOptions)
	}

	get("/", s.handlePage)
	get("/healthz", s.handleHealth)
	get("/api/dashboard", s.handleDashboard)
	get("/api/metrics", s.handleMetrics)
	get("/api/metadata", s.handleMetadata)
	get("/api/rules", s.handleRules)
	get("/api/institutions", s.handleInstitutions)
	// .svg first: {name} would swallow the extension.
	get("/api/charts/{name}.svg", s.handleChartSVG)
	get("/api/charts/{name}", s.handleChart)
	get("/api/top.csv", s.handleTopCSV)
	get("/api/top", s.handleTop)
	get("/api/ranking", s.handleRanking)
	get("/api/search", s.handleSearch)
	get("/api/schema", s.handleSchema)
	router.HandleFunc("/api/refresh", s.handleRefresh).Methods(http.MethodPost, http.MethodOptions)

	return router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("dashboard stopped")
	return nil
}

// ============================================================================
// LOAD + EVALUATE
// ============================================================================

// load returns the cached dataset. The load outlives a client that hangs up
// so concurrent waiters still get it.
func (s *Server) load(w http.ResponseWriter, r *http.Request) (*dataset.Dataset, bool) {
	ds, err := s.cache.Get(context.WithoutCancel(r.Context()))
	if err != nil {
		s.logger.Error("dataset unavailable", zap.String("id", RequestID(r.Context())), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err)
		return nil, false
	}
	return ds, true
}

func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) (*dataset.Dataset, *engine.Report, bool) {
	ds, ok := s.load(w, r)
	if !ok {
		return nil, nil, false
	}
	p, err := ParseParams(r.URL.Query(), ds.Table)
	if err != nil {
		writeError(w, statusOf(err), err)
		return nil, nil, false
	}
	return ds, engine.Evaluate(ds.Table, p, s.opts...), true
}

func statusOf(err error) int {
	var bad *BadRequestError
	if errors.As(err, &bad) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// ============================================================================
// JSON HANDLERS
// ============================================================================

type dashboardResponse struct {
	*engine.Report
	Metadata []engine.Detail `json:"metadata"`
	Source   string          `json:"source"`
	LoadedAt time.Time       `json:"loadedAt"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ds, report, ok := s.evaluate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dashboardResponse{
		Report:   report,
		Metadata: ds.Metadata.Details(),
		Source:   ds.Source,
		LoadedAt: ds.LoadedAt,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.load(w, r)
	if !ok {
		return
	}
	m := engine.ComputeMetrics(ds.Table)
	writeJSON(w, http.StatusOK, map[string]any{
		"metrics": m,
		"summary": engine.BuildSummary(m),
	})
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"metadata": ds.Metadata,
		"details":  ds.Metadata.Details(),
	})
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	ds, report, ok := s.evaluate(w, r)
	if !ok {
		return
	}
	filtered := engine.ApplyFilters(ds.Table, report.Filters)
	writeJSON(w, http.StatusOK, map[string]any{
		"rates":    engine.RuleActivation(filtered, s.opts...),
		"chart":    report.Charts[engine.ChartRules],
		"glossary": report.RuleGlossary,
	})
}

func (s *Server) handleInstitutions(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"institutions": append([]string{engine.AllInstitutions}, engine.Institutions(ds.Table)...),
	})
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	chart, ok := s.chart(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, chart)
}

func (s *Server) handleChartSVG(w http.ResponseWriter, r *http.Request) {
	chart, ok := s.chart(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := RenderSVG(&buf, chart); err != nil {
		if errors.Is(err, ErrNoData) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		s.logger.Error("chart render failed", zap.String("chart", chart.Title), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) chart(w http.ResponseWriter, r *http.Request) (*engine.ChartConfig, bool) {
	name := mux.Vars(r)["name"]
	if !knownChart(name) {
		writeError(w, http.StatusNotFound, errors.New("unknown chart "+name))
		return nil, false
	}
	_, report, ok := s.evaluate(w, r)
	if !ok {
		return nil, false
	}
	return report.Charts[name], true
}

func knownChart(name string) bool {
	for _, n := range engine.ChartNames {
		if n == name {
			return true
		}
	}
	return false
}

func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	_, report, ok := s.evaluate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report.TopRisk)
}

func (s *Server) handleTopCSV(w http.ResponseWriter, r *http.Request) {
	_, report, ok := s.evaluate(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := dataset.WriteTableCSV(&buf, report.TopRisk); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+dataset.ExportName(report.TopN)+`"`)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleRanking(w http.ResponseWriter, r *http.Request) {
	_, report, ok := s.evaluate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"table": report.Ranking,
		"chart": report.Charts[engine.ChartInstitutions],
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.load(w, r)
	if !ok {
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	matches := []engine.Match{}
	if q != "" {
		if found := engine.Search(ds.Table, q, s.opts...); found != nil {
			matches = found
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   q,
		"count":   len(matches),
		"matches": matches,
	})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ds.Inventory)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ds, err := s.cache.Refresh(context.WithoutCancel(r.Context()))
	if err != nil {
		s.logger.Warn("manual refresh failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rows":     ds.Table.Len(),
		"loadedAt": ds.LoadedAt,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok", "loaded": false}
	if ds := s.cache.Current(); ds != nil {
		resp["loaded"] = true
		resp["rows"] = ds.Table.Len()
		resp["loadedAt"] = ds.LoadedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

// ============================================================================
// RESPONSES
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
