package api

import (
	"strings"

	"github.com/labstack/echo/v4"

	"OppScan/internal/domain/models"
	"OppScan/internal/service/pricing"
	"OppScan/internal/service/ratelimit"
	"OppScan/internal/usecase"
	xhttp "OppScan/pkg/http"
	xlogger "OppScan/pkg/logger"
)

// ScansEchoHandler exposes the scan lifecycle over HTTP for dashboard
// consumers.
type ScansEchoHandler struct {
	logger   *xlogger.Logger
	sessions *usecase.SessionManager
	valid    *usecase.Validator
	executor *usecase.BatchExecutor
	pricing  *pricing.Service
	hub      *StreamHub
	rl       *ratelimit.Limiter
}

func NewScansEchoHandler(
	logger *xlogger.Logger,
	sessions *usecase.SessionManager,
	valid *usecase.Validator,
	executor *usecase.BatchExecutor,
	pricingSvc *pricing.Service,
	hub *StreamHub,
) *ScansEchoHandler {
	return &ScansEchoHandler{
		logger:   logger,
		sessions: sessions,
		valid:    valid,
		executor: executor,
		pricing:  pricingSvc,
		hub:      hub,
		rl:       ratelimit.New(),
	}
}

func (h *ScansEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/scans", h.StartScan)
	g.GET("/scans/active", h.ActiveScans)
	g.GET("/scans/outcome", h.Outcome)
	g.POST("/scans/validate", h.Validate)
	g.GET("/scans/stream", h.Stream)
	g.POST("/trades/execute", h.ExecuteBatch)
	g.GET("/pricing", h.Pricing)
	g.GET("/logs", h.Logs)
}

// StartScan kicks off a scan for the session. Initiation is synchronous
// so the caller gets the scan ID; polling continues in the background.
func (h *ScansEchoHandler) StartScan(c echo.Context) error {
	req := &models.StartScanRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	// Scan starts are expensive upstream; throttle per caller.
	if !h.rl.Allow(clientKey(c)+":scan", 3, 0.2) {
		h.logger.Warn("scan start rate limited", xlogger.String("remote", c.RealIP()))
		return xhttp.DataResponse(c, 429, "too many scan requests")
	}

	handle, err := h.sessions.StartScan(c.Request().Context(), req.SessionID, &models.ScanRequest{
		Symbols:      req.Symbols,
		AssetTiers:   req.AssetTiers,
		StrategyIDs:  req.StrategyIDs,
		ForceRefresh: req.ForceRefresh,
	})
	if err != nil {
		h.logger.Error("scan initiation failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.CreatedResponse(c, handle)
}

func (h *ScansEchoHandler) ActiveScans(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.sessions.Active())
}

// Outcome returns the session's last terminal outcome, 404 when no scan
// has completed yet.
func (h *ScansEchoHandler) Outcome(c echo.Context) error {
	req := &models.SessionQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	out, err := h.sessions.Outcome(c.Request().Context(), req.SessionID)
	if err != nil {
		h.logger.Error("outcome lookup failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if out == nil {
		return xhttp.NotFoundResponse(c, "no completed scan for session")
	}
	return xhttp.SuccessResponse(c, out)
}

// Validate re-checks one opportunity from the session's last outcome.
func (h *ScansEchoHandler) Validate(c echo.Context) error {
	req := &models.ValidateOpportunityRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	out, err := h.sessions.Outcome(c.Request().Context(), req.SessionID)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	opp := findOpportunity(out, req.Symbol)
	if opp == nil {
		return xhttp.NotFoundResponse(c, "opportunity not found in last outcome")
	}

	verdict, err := h.valid.Validate(c.Request().Context(), opp)
	if err != nil {
		h.logger.Error("validation failed", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, verdict)
}

func (h *ScansEchoHandler) ExecuteBatch(c echo.Context) error {
	req := &models.ExecuteBatchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.executor.ExecuteAll(c.Request().Context(), req.Trades))
}

func (h *ScansEchoHandler) Pricing(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.pricing.Get(c.Request().Context()))
}

// Logs serves recent aggregated log entries for the diagnostics panel.
func (h *ScansEchoHandler) Logs(c echo.Context) error {
	collector := h.logger.Collector()
	if collector == nil {
		return xhttp.SuccessResponse(c, []xlogger.AggregatedLogEntry{})
	}
	n := xhttp.ParseIntDefault(c.QueryParam("n"), 100)
	entries := collector.Recent(n)
	if since, ok := xhttp.ParseTime(c.QueryParam("since")); ok {
		filtered := entries[:0]
		for _, e := range entries {
			if !e.LastSeen.Before(since) {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	return xhttp.SuccessResponse(c, entries)
}

func (h *ScansEchoHandler) Stream(c echo.Context) error {
	return h.hub.Serve(c)
}

func clientKey(c echo.Context) string {
	if ip := c.RealIP(); ip != "" {
		return ip
	}
	return c.Request().RemoteAddr
}

func findOpportunity(out *models.ScanOutcome, symbol string) *models.Opportunity {
	if out == nil {
		return nil
	}
	symbol = strings.ToUpper(symbol)
	for i := range out.Validated {
		if strings.ToUpper(out.Validated[i].Symbol) == symbol {
			return &out.Validated[i]
		}
	}
	for i := range out.NonValidated {
		if strings.ToUpper(out.NonValidated[i].Symbol) == symbol {
			return &out.NonValidated[i]
		}
	}
	return nil
}
