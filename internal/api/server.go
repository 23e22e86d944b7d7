// Package api serves the operation table and column workflow over HTTP.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/swarmguard/cti-refine/core/otelinit"
	"github.com/swarmguard/cti-refine/core/resilience"
	"github.com/swarmguard/cti-refine/internal/column"
	"github.com/swarmguard/cti-refine/internal/extract"
	"github.com/swarmguard/cti-refine/internal/ioc"
)

type Options struct {
	MaxBodyBytes int64
}

// Server holds the handlers. A nil limiter disables rate limiting.
type Server struct {
	reg     *extract.Registry
	proc    *column.Processor
	limiter *resilience.RateLimiter
	opts    Options
	metrics otelinit.Metrics

	requests metric.Int64Counter
	latency  metric.Float64Histogram
	stats    stats
}

type stats struct {
	requests    atomic.Int64
	extractions atomic.Int64
	scans       atomic.Int64
	jobs        atomic.Int64
	limited     atomic.Int64
	errors      atomic.Int64
}

func New(reg *extract.Registry, proc *column.Processor, limiter *resilience.RateLimiter, opts Options, metrics otelinit.Metrics) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 8 << 20
	}
	if metrics.Indicators == nil {
		metrics = otelinit.NewMetrics()
	}
	meter := otel.Meter(otelinit.InstrumentationName)
	requests, _ := meter.Int64Counter("cti_refine_http_requests_total")
	latency, _ := meter.Float64Histogram("cti_refine_http_request_duration_ms")
	return &Server{reg: reg, proc: proc, limiter: limiter, opts: opts, metrics: metrics, requests: requests, latency: latency}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/v1/operations", s.route("operations", http.MethodGet, s.handleOperations))
	mux.Handle("/v1/extract", s.route("extract", http.MethodPost, s.handleExtract))
	mux.Handle("/v1/scan", s.route("scan", http.MethodPost, s.handleScan))
	mux.Handle("/v1/column", s.route("column", http.MethodPost, s.handleColumn))
	mux.Handle("/v1/stats", s.route("stats", http.MethodGet, s.handleStats))
	return s.logRequests(mux)
}

// route applies method filtering, rate limiting, body limits and request
// accounting to a handler.
func (s *Server) route(name, method string, h http.HandlerFunc) http.Handler {
	attrs := metric.WithAttributes(attribute.String("route", name))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.stats.requests.Add(1)
		s.requests.Add(r.Context(), 1, attrs)
		if r.Method != method {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if s.limiter != nil && !s.limiter.Allow() {
			s.stats.limited.Add(1)
			w.Header().Set("Retry-After", retryAfter(s.limiter))
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limited"})
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
		ctx, end := otelinit.WithSpan(r.Context(), "http."+name)
		defer end()
		h(w, r.WithContext(ctx))
	})
}

type extractRequest struct {
	Operation string   `json:"operation"`
	Defang    bool     `json:"defang"`
	Text      *string  `json:"text,omitempty"`
	Values    []string `json:"values,omitempty"`
}

type extractResponse struct {
	Operation string   `json:"operation"`
	Output    *string  `json:"output,omitempty"`
	Outputs   []string `json:"outputs,omitempty"`
}

func (s *Server) handleOperations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"operations": s.reg.Operations()})
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	op, err := s.reg.Lookup(req.Operation)
	if err != nil {
		s.fail(w, err)
		return
	}
	if req.Text == nil && req.Values == nil {
		s.fail(w, fmt.Errorf("%w: text or values required", errBadRequest))
		return
	}
	s.stats.extractions.Add(1)
	resp := extractResponse{Operation: op.Name}
	if req.Text != nil {
		out := op.Run(*req.Text, req.Defang)
		resp.Output = &out
	}
	if req.Values != nil {
		memo := make(map[string]string, len(req.Values))
		resp.Outputs = make([]string, len(req.Values))
		for i, v := range req.Values {
			if v == "" {
				continue
			}
			out, ok := memo[v]
			if !ok {
				out = op.Run(v, req.Defang)
				memo[v] = out
			}
			resp.Outputs[i] = out
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type scanRequest struct {
	Text    string   `json:"text"`
	Classes []string `json:"classes,omitempty"`
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	filter := map[ioc.Class]bool{}
	for _, c := range req.Classes {
		class, err := ioc.ParseClass(c)
		if err != nil {
			s.fail(w, fmt.Errorf("%w: %w", errBadRequest, err))
			return
		}
		filter[class] = true
	}
	s.stats.scans.Add(1)
	found := s.reg.Scan(req.Text)
	out := make([]ioc.Indicator, 0, len(found))
	for _, ind := range found {
		if len(filter) > 0 && !filter[ind.Class] {
			continue
		}
		out = append(out, ind)
		s.metrics.Indicators.Add(r.Context(), 1, metric.WithAttributes(attribute.String("class", string(ind.Class))))
	}
	writeJSON(w, http.StatusOK, map[string]any{"indicators": out})
}

// handleColumn reads a CSV body, applies the job described by the query
// parameters and answers with the rewritten CSV.
func (s *Server) handleColumn(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode, err := column.ParseMode(q.Get("mode"))
	if err != nil {
		s.fail(w, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	defangResult := false
	if v := q.Get("defang"); v != "" {
		if defangResult, err = strconv.ParseBool(v); err != nil {
			s.fail(w, fmt.Errorf("%w: defang: %w", errBadRequest, err))
			return
		}
	}
	job := column.Job{
		Operation:    q.Get("operation"),
		Column:       q.Get("column"),
		DefangResult: defangResult,
		NewColumn:    q.Get("new_column"),
		Mode:         mode,
	}
	tbl, err := column.ReadCSV(r.Body)
	if err != nil {
		s.fail(w, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	res, err := s.proc.Apply(r.Context(), tbl, job)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.stats.jobs.Add(1)
	var buf bytes.Buffer
	if err := column.WriteCSV(&buf, tbl); err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("X-Job-ID", res.JobID)
	w.Header().Set("X-Target-Column", res.Target)
	w.Header().Set("X-Distinct-Values", strconv.Itoa(res.Distinct))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int64{
		"requests":     s.stats.requests.Load(),
		"extractions":  s.stats.extractions.Load(),
		"scans":        s.stats.scans.Load(),
		"column_jobs":  s.stats.jobs.Load(),
		"rate_limited": s.stats.limited.Load(),
		"errors":       s.stats.errors.Load(),
	})
}

var errBadRequest = errors.New("bad request")

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	s.stats.errors.Add(1)
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadRequest), errors.Is(err, extract.ErrUnknownOperation):
		return http.StatusBadRequest
	case errors.Is(err, column.ErrColumnNotFound):
		return http.StatusNotFound
	case errors.Is(err, column.ErrColumnExists):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func retryAfter(l *resilience.RateLimiter) string {
	secs := int(l.ReserveAfter(1).Seconds()) + 1
	return strconv.Itoa(secs)
}
