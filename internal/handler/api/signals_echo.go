package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"CoinPull/internal/domain/models"
	domrepo "CoinPull/internal/domain/repository"
	"CoinPull/internal/service/metrics"
	"CoinPull/internal/service/ratelimit"
	"CoinPull/internal/usecase"
	"CoinPull/pkg/cache"
	xhttp "CoinPull/pkg/http"
	xlogger "CoinPull/pkg/logger"

	"github.com/labstack/echo/v4"
)

const analyzeCacheTTL = 30 * time.Second

// SignalsHandler serves signals, on-demand analysis, automation control and
// model training.
type SignalsHandler struct {
	analyzer  *usecase.Analyzer
	scorer    *usecase.Scorer
	scanner   *usecase.Scanner
	scheduler *usecase.Scheduler
	trainer   *usecase.Trainer
	signals   domrepo.SignalStore

	cache  cache.Service
	rl     *ratelimit.Limiter
	logger *xlogger.Logger
}

func NewSignalsHandler(
	analyzer *usecase.Analyzer,
	scorer *usecase.Scorer,
	scanner *usecase.Scanner,
	scheduler *usecase.Scheduler,
	trainer *usecase.Trainer,
	signals domrepo.SignalStore,
) *SignalsHandler {
	metrics.Register()
	return &SignalsHandler{
		analyzer:  analyzer,
		scorer:    scorer,
		scanner:   scanner,
		scheduler: scheduler,
		trainer:   trainer,
		signals:   signals,
		rl:        ratelimit.New(),
	}
}

// SetCache enables response caching for /api/analyze.
func (h *SignalsHandler) SetCache(c cache.Service) { h.cache = c }

func (h *SignalsHandler) SetLogger(l *xlogger.Logger) { h.logger = l }

func (h *SignalsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.GET("/signals/latest", h.Latest)
	g.GET("/signals", h.History)
	g.GET("/analyze", h.Analyze)
	g.POST("/scan", h.Scan)

	a := g.Group("/automation")
	a.GET("/status", h.Status)
	a.POST("/start", h.Start)
	a.POST("/stop", h.Stop)
	a.PUT("/settings", h.Settings)

	g.POST("/model/train", h.Train)
}

// AnalyzeResponse is the on-demand analysis of one symbol. Signal is nil
// when the symbol did not qualify and Reason says why.
type AnalyzeResponse struct {
	Symbol    string                                `json:"symbol"`
	Signal    *models.EnhancedSignal                `json:"signal"`
	Reason    string                                `json:"reason,omitempty"`
	Snapshots map[domrepo.Timeframe]models.Snapshot `json:"snapshots,omitempty"`
	Votes     map[domrepo.Timeframe]models.Side     `json:"votes,omitempty"`
}

func (h *SignalsHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"status":     "ok",
		"model":      h.scorer.HasModel(),
		"automation": h.scheduler.Status().Running,
		"scanning":   h.scanner.Running(),
	})
}

func (h *SignalsHandler) Latest(c echo.Context) error {
	res, ok := h.scanner.Latest()
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no scan has completed yet"))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *SignalsHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.signals.Recent(c.Request().Context(), req.Symbol, req.Limit)
	if err != nil {
		h.logError("signal history failed", err)
		return xhttp.AppErrorResponse(c, xhttp.InternalError("signal history unavailable").WithError(err))
	}
	if rows == nil {
		rows = []models.EnhancedSignal{}
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *SignalsHandler) Analyze(c echo.Context) error {
	req := &models.AnalyzeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":analyze", 5, 2) {
		h.warn("analyze rate limited", xlogger.String("remote", c.RealIP()))
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limited"))
	}

	ctx := c.Request().Context()
	key := cache.GenerateKey("analyze", req.Symbol)
	if h.cache != nil {
		var cached AnalyzeResponse
		if err := h.cache.Get(ctx, key, &cached); err == nil {
			return xhttp.SuccessResponse(c, cached)
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			h.warn("analyze cache get", xlogger.Error(err))
		}
	}

	trace, err := h.analyzer.Inspect(ctx, req.Symbol)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("analyze %s: %v", req.Symbol, err))
	}
	out := AnalyzeResponse{Symbol: trace.Symbol, Reason: trace.ReasonText(), Snapshots: trace.Snapshots, Votes: trace.Votes}
	if trace.Signal != nil {
		enhanced := h.scorer.Enhance(ctx, *trace.Signal)
		out.Signal = &enhanced
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, key, out, analyzeCacheTTL); err != nil {
			h.warn("analyze cache set", xlogger.Error(err))
		}
	}
	return xhttp.SuccessResponse(c, out)
}

func (h *SignalsHandler) Scan(c echo.Context) error {
	res, err := h.scanner.RunOnce(c.Request().Context())
	switch {
	case errors.Is(err, models.ErrScanInProgress):
		return xhttp.AppErrorResponse(c, xhttp.ConflictError("a scan is already running"))
	case err != nil:
		h.logError("manual scan failed", err)
		return xhttp.AppErrorResponse(c, xhttp.InternalError("scan failed").WithError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *SignalsHandler) Status(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.scheduler.Status())
}

func (h *SignalsHandler) Start(c echo.Context) error {
	if err := h.scheduler.Start(c.Request().Context()); err != nil {
		if errors.Is(err, models.ErrAlreadyRunning) {
			return xhttp.AppErrorResponse(c, xhttp.ConflictError("automation already running"))
		}
		h.logError("start automation", err)
		return xhttp.AppErrorResponse(c, xhttp.InternalError("could not start automation").WithError(err))
	}
	return xhttp.AcceptedResponse(c, h.scheduler.Status())
}

func (h *SignalsHandler) Stop(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()
	if err := h.scheduler.Stop(ctx); err != nil {
		if errors.Is(err, models.ErrNotRunning) {
			return xhttp.AppErrorResponse(c, xhttp.ConflictError("automation is not running"))
		}
		h.logError("stop automation", err)
		return xhttp.AppErrorResponse(c, xhttp.InternalError("could not stop automation").WithError(err))
	}
	return xhttp.SuccessResponse(c, h.scheduler.Status())
}

func (h *SignalsHandler) Settings(c echo.Context) error {
	req := &models.SettingsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	st, err := h.scheduler.UpdateSettings(c.Request().Context(), req.Update())
	if err != nil {
		if errors.Is(err, models.ErrInvalidConfig) {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
		}
		h.logError("update settings", err)
		return xhttp.AppErrorResponse(c, xhttp.InternalError("could not save settings").WithError(err))
	}
	return xhttp.SuccessResponse(c, st)
}

func (h *SignalsHandler) Train(c echo.Context) error {
	if h.trainer == nil {
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("training is served by the remote model"))
	}
	rep, err := h.trainer.Train(c.Request().Context())
	if err != nil {
		if errors.Is(err, models.ErrInsufficientSamples) {
			return xhttp.AppErrorResponse(c, xhttp.UnprocessableError(err.Error()).WithParam("samples", rep.Samples))
		}
		h.logError("training failed", err)
		return xhttp.AppErrorResponse(c, xhttp.InternalErrorf("training failed with %d samples", rep.Samples).WithError(err))
	}
	return xhttp.DataResponse(c, http.StatusOK, rep)
}

func (h *SignalsHandler) warn(msg string, fields ...xlogger.Field) {
	if h.logger != nil {
		h.logger.Warn(msg, fields...)
	}
}

func (h *SignalsHandler) logError(msg string, err error) {
	if h.logger != nil {
		h.logger.Error(msg, xlogger.Error(err))
	}
}

var _ xhttp.Handler = (*SignalsHandler)(nil)
