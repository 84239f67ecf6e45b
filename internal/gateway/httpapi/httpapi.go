// Package httpapi implements the HTTP gateway for Kazi: a JSON API for
// the planning, allocation, and status pipelines, the usage ledger, PDF
// report downloads, and the interactive web page.
//
// Pipeline runs are serialized: one run at a time per process. A second
// request arriving while a run is in flight gets HTTP 409 immediately
// instead of queueing behind the first.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jkaninda/okapi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/mwenda/kazi/internal/observability"
	"github.com/mwenda/kazi/internal/pipeline"
	"github.com/mwenda/kazi/internal/ratelimit"
	"github.com/mwenda/kazi/internal/report"
	"github.com/mwenda/kazi/internal/session"
	"github.com/mwenda/kazi/internal/usage"
)

const defaultMaxRequestSize = 1 << 20 // 1 MB

// ErrorBody is the standard error response used in OpenAPI documentation.
type ErrorBody struct {
	Error string `json:"error"`
}

// Config configures the HTTP gateway.
type Config struct {
	ListenAddr string // e.g., ":8480"
	EnableDocs bool

	// Observability
	MetricsRegistry *prometheus.Registry            // Custom Prometheus registry for the metrics endpoint.
	MetricsPath     string                          // Path for metrics endpoint. Default: "/metrics".
	Metrics         *observability.MetricsCollector // Metrics collector for HTTP middleware and run counters.
	Tracer          trace.Tracer                    // OTel tracer for HTTP middleware.
}

// Gateway is the HTTP gateway.
type Gateway struct {
	config    Config
	runner    *pipeline.Runner
	sess      *session.Session
	assembler *report.Assembler
	limiter   *ratelimit.Limiter // nil = no rate limiting.
	logger    *slog.Logger
	server    *http.Server
	okapi     *okapi.Okapi
	group     *okapi.Group

	// runMu serializes pipeline runs. Held only for the duration of an
	// LLM-calling request; read-only endpoints never take it.
	runMu sync.Mutex
}

// NewGateway creates the HTTP gateway.
func NewGateway(cfg Config, runner *pipeline.Runner, sess *session.Session, assembler *report.Assembler, logger *slog.Logger) *Gateway {
	return &Gateway{
		config:    cfg,
		runner:    runner,
		sess:      sess,
		assembler: assembler,
		logger:    logger,
		okapi:     okapi.New(okapi.WithMaxMultipartMemory(defaultMaxRequestSize)),
	}
}

// WithRateLimiter attaches a per-client rate limiter to the pipeline
// endpoints. Read-only endpoints are never limited.
func (g *Gateway) WithRateLimiter(l *ratelimit.Limiter) *Gateway {
	g.limiter = l
	return g
}

// WithOpenAPIDocs enables the interactive API documentation page.
func (g *Gateway) WithOpenAPIDocs() *Gateway {
	g.okapi.WithOpenAPIDocs(
		okapi.OpenAPI{
			Title:   "Kazi",
			Version: "v0.1.0",
		},
	)
	return g
}

// Start launches the HTTP server and blocks until it exits or ctx is canceled.
func (g *Gateway) Start(ctx context.Context) error {
	// Metrics/tracing middleware on the API group.
	var mws []okapi.Middleware
	if g.config.Metrics != nil || g.config.Tracer != nil {
		mws = append(mws, observability.MetricsMiddleware(g.config.Metrics, g.config.Tracer))
	}

	g.group = g.okapi.Group("/v1", mws...)

	g.group.Post("/plan", g.handlePlan,
		okapi.DocSummary("Run the planning pipeline on a project description"),
		okapi.DocTags("Pipelines"),
		okapi.DocRequestBody(PlanRequest{}),
		okapi.DocResponse(RunResponse{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusConflict, ErrorBody{}),
		okapi.DocResponse(http.StatusBadGateway, ErrorBody{}),
	)
	g.group.Post("/allocate", g.handleAllocate,
		okapi.DocSummary("Run the allocation pipeline against the latest or a given plan"),
		okapi.DocTags("Pipelines"),
		okapi.DocRequestBody(AllocateRequest{}),
		okapi.DocResponse(RunResponse{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusConflict, ErrorBody{}),
		okapi.DocResponse(http.StatusBadGateway, ErrorBody{}),
	)
	g.group.Post("/status", g.handleStatus,
		okapi.DocSummary("Run the status pipeline: progress monitoring then quality review"),
		okapi.DocTags("Pipelines"),
		okapi.DocRequestBody(StatusRequest{}),
		okapi.DocResponse(RunResponse{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusConflict, ErrorBody{}),
		okapi.DocResponse(http.StatusBadGateway, ErrorBody{}),
	)
	g.group.Get("/usage", g.handleUsage,
		okapi.DocSummary("Get the session's token usage ledger"),
		okapi.DocTags("Usage"),
		okapi.DocResponse(UsageResponse{}),
	)
	g.group.Post("/session/reset", g.handleReset,
		okapi.DocSummary("Discard all results and usage, starting a fresh session"),
		okapi.DocTags("Session"),
		okapi.DocResponse(ResetResponse{}),
	)

	// The report is a binary download, served outside okapi's JSON
	// rendering. Same for the web page. Both bypass the group
	// middleware, so HTTP metrics are wrapped on explicitly.
	reportHandler := g.handleReport
	indexHandler := g.handleIndex
	if g.config.Metrics != nil || g.config.Tracer != nil {
		reportHandler = observability.MetricsHandler(g.config.Metrics, g.config.Tracer, reportHandler)
		indexHandler = observability.MetricsHandler(g.config.Metrics, g.config.Tracer, indexHandler)
	}
	g.okapi.HandleStd("GET", "/v1/report", reportHandler)
	g.okapi.HandleStd("GET", "/", indexHandler)

	g.okapi.Get("/healthz", g.handleHealth)

	if g.config.MetricsRegistry != nil {
		path := g.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		g.okapi.HandleStd("GET", path, promhttp.HandlerFor(g.config.MetricsRegistry, promhttp.HandlerOpts{}).ServeHTTP)
	}
	if g.config.EnableDocs {
		g.WithOpenAPIDocs()
	}

	g.server = &http.Server{
		Addr:              g.config.ListenAddr,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	g.logger.Info("http gateway starting", slog.String("addr", g.config.ListenAddr))

	return g.okapi.StartServer(g.server)
}

// Stop gracefully shuts down the HTTP server.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	g.logger.Info("http gateway stopping")
	return g.okapi.Shutdown(g.server)
}

// --- Handlers ---

// PlanRequest is the JSON body for POST /v1/plan.
type PlanRequest struct {
	Description string `json:"description"`
	Team        string `json:"team"`
}

// AllocateRequest is the JSON body for POST /v1/allocate. An empty plan
// defaults to the session's latest planning output.
type AllocateRequest struct {
	Plan string `json:"plan,omitempty"`
	Team string `json:"team"`
}

// StatusRequest is the JSON body for POST /v1/status.
type StatusRequest struct {
	Status       string `json:"status"`
	Deliverables string `json:"deliverables"`
}

// StepBody is one pipeline step in a RunResponse.
type StepBody struct {
	Name   string `json:"name"`
	Output string `json:"output"`
}

// RunResponse is the JSON response for a completed pipeline run.
type RunResponse struct {
	Kind       string       `json:"kind"`
	Output     string       `json:"output"`
	Steps      []StepBody   `json:"steps"`
	FinishedAt time.Time    `json:"finished_at"`
	Usage      usage.Totals `json:"usage"`
}

func (g *Gateway) handlePlan(c *okapi.Context) error {
	var req PlanRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	if err := g.allowRun(c); err != nil {
		return c.AbortTooManyRequests("rate limit exceeded")
	}

	if !g.runMu.TryLock() {
		return c.JSON(http.StatusConflict, ErrorBody{Error: "another pipeline run is in progress"})
	}
	defer g.runMu.Unlock()

	in := pipeline.ProjectInput{Description: req.Description, Team: req.Team}
	res, err := g.run(c.Context(), pipeline.KindPlan, func(ctx context.Context, ledger *usage.Ledger) (*pipeline.Result, error) {
		return g.runner.RunPlanning(ctx, ledger, in)
	})
	if err != nil {
		return g.pipelineError(c, err)
	}

	g.sess.PublishPlan(in, res)
	return c.OK(g.runResponse(res))
}

func (g *Gateway) handleAllocate(c *okapi.Context) error {
	var req AllocateRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	if err := g.allowRun(c); err != nil {
		return c.AbortTooManyRequests("rate limit exceeded")
	}

	if !g.runMu.TryLock() {
		return c.JSON(http.StatusConflict, ErrorBody{Error: "another pipeline run is in progress"})
	}
	defer g.runMu.Unlock()

	plan := req.Plan
	if plan == "" {
		plan = g.sess.PlanText()
	}

	in := pipeline.AllocationInput{Plan: plan, Team: req.Team}
	res, err := g.run(c.Context(), pipeline.KindAllocation, func(ctx context.Context, ledger *usage.Ledger) (*pipeline.Result, error) {
		return g.runner.RunAllocation(ctx, ledger, in)
	})
	if err != nil {
		return g.pipelineError(c, err)
	}

	g.sess.PublishAllocation(res)
	return c.OK(g.runResponse(res))
}

func (g *Gateway) handleStatus(c *okapi.Context) error {
	var req StatusRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	if err := g.allowRun(c); err != nil {
		return c.AbortTooManyRequests("rate limit exceeded")
	}

	if !g.runMu.TryLock() {
		return c.JSON(http.StatusConflict, ErrorBody{Error: "another pipeline run is in progress"})
	}
	defer g.runMu.Unlock()

	in := pipeline.StatusInput{Status: req.Status, Deliverables: req.Deliverables}
	res, err := g.run(c.Context(), pipeline.KindStatus, func(ctx context.Context, ledger *usage.Ledger) (*pipeline.Result, error) {
		return g.runner.RunStatus(ctx, ledger, in)
	})
	if err != nil {
		return g.pipelineError(c, err)
	}

	g.sess.PublishStatus(in, res)
	return c.OK(g.runResponse(res))
}

// allowRun applies the per-client rate limit to an LLM-calling request.
func (g *Gateway) allowRun(c *okapi.Context) error {
	if g.limiter == nil {
		return nil
	}
	return g.limiter.Allow(clientKey(c.Request()))
}

// clientKey derives the limiter bucket key from the remote address,
// ignoring the ephemeral port.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// run executes one pipeline with metrics, mirroring any new ledger
// records into the Prometheus counters.
func (g *Gateway) run(ctx context.Context, kind pipeline.Kind, fn func(context.Context, *usage.Ledger) (*pipeline.Result, error)) (*pipeline.Result, error) {
	ledger := g.sess.Ledger()
	before := ledger.Len()
	start := time.Now()

	res, err := fn(ctx, ledger)

	if m := g.config.Metrics; m != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		m.PipelineRunsTotal.WithLabelValues(string(kind), status).Inc()
		m.PipelineRunDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())

		history := ledger.History()
		for _, rec := range history[before:] {
			m.RecordUsage(rec.Operation, rec.Tokens, rec.CostUSD)
		}
	}

	return res, err
}

func (g *Gateway) runResponse(res *pipeline.Result) RunResponse {
	steps := make([]StepBody, len(res.Steps))
	for i, s := range res.Steps {
		steps[i] = StepBody{Name: s.Name, Output: s.Output}
	}
	return RunResponse{
		Kind:       string(res.Kind),
		Output:     res.Output(),
		Steps:      steps,
		FinishedAt: res.FinishedAt,
		Usage:      g.sess.Ledger().Totals(),
	}
}

// pipelineError maps pipeline failures to HTTP responses: invalid
// input is the caller's fault, a failed LLM call is the upstream's.
func (g *Gateway) pipelineError(c *okapi.Context, err error) error {
	code, msg := errorStatus(err)
	if code == http.StatusInternalServerError {
		g.logger.Error("pipeline run failed", slog.String("error", err.Error()))
		return c.AbortInternalServerError("pipeline run failed")
	}
	g.logger.Warn("pipeline run rejected",
		slog.Int("status", code),
		slog.String("error", err.Error()),
	)
	return c.JSON(code, ErrorBody{Error: msg})
}

// errorStatus translates an error from the pipeline or report layers
// into an HTTP status code and client-safe message.
func errorStatus(err error) (int, string) {
	var ve *pipeline.ValidationError
	var ue *pipeline.UpstreamError
	var re *report.ReportError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Error()
	case errors.As(err, &ue):
		return http.StatusBadGateway, ue.Error()
	case errors.As(err, &re):
		return http.StatusConflict, re.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// UsageResponse is the JSON response for GET /v1/usage.
type UsageResponse struct {
	SessionID string         `json:"session_id"`
	Totals    usage.Totals   `json:"totals"`
	History   []usage.Record `json:"history"`
}

func (g *Gateway) handleUsage(c *okapi.Context) error {
	ledger := g.sess.Ledger()
	history := ledger.History()
	if history == nil {
		history = []usage.Record{}
	}
	return c.OK(UsageResponse{
		SessionID: g.sess.ID().String(),
		Totals:    ledger.Totals(),
		History:   history,
	})
}

// ResetResponse is the JSON response for POST /v1/session/reset.
type ResetResponse struct {
	SessionID string `json:"session_id"`
}

func (g *Gateway) handleReset(c *okapi.Context) error {
	id := g.resetSession()
	g.logger.Info("session reset", slog.String("session_id", id))
	return c.OK(ResetResponse{SessionID: id})
}

// resetSession discards the session and returns the fresh session ID.
// The ID is read inside the critical section so a concurrent reset
// cannot make the caller report another reset's session.
func (g *Gateway) resetSession() string {
	g.runMu.Lock()
	defer g.runMu.Unlock()
	g.sess.Reset()
	return g.sess.ID().String()
}

// handleReport assembles and renders the PDF, served as a download.
func (g *Gateway) handleReport(w http.ResponseWriter, r *http.Request) {
	rep, err := g.assembler.Build(g.sess.Snapshot())
	if err != nil {
		g.reportMetric("rejected")
		code, msg := errorStatus(err)
		writeJSONError(w, code, msg)
		return
	}

	raw, err := rep.Render()
	if err != nil {
		g.reportMetric("error")
		g.logger.Error("report rendering failed", slog.String("error", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, "report rendering failed")
		return
	}

	g.reportMetric("success")
	g.logger.Info("report downloaded",
		slog.String("filename", rep.Filename()),
		slog.Int("bytes", len(raw)),
	)

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+rep.Filename()+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(raw)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (g *Gateway) reportMetric(status string) {
	if g.config.Metrics != nil {
		g.config.Metrics.ReportsGeneratedTotal.WithLabelValues(status).Inc()
	}
}

func writeJSONError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(`{"error":` + strconv.Quote(msg) + `}`))
}

// HealthResponse is the JSON response for GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

func (g *Gateway) handleHealth(c *okapi.Context) error {
	return c.OK(&HealthResponse{Status: "ok"})
}
