package analyses

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"seo-analysis-backend/internal/credits"
	"seo-analysis-backend/internal/shared/server/middleware"
	"seo-analysis-backend/internal/shared/server/respond"
)

const maxRequestBody = 64 << 10

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc   *Service
	polls *pollLimiter
}

// NewHandler constructs a Handler. pollWindow is the minimum spacing between
// polls of the same task by the same user.
func NewHandler(svc *Service, pollWindow time.Duration) *Handler {
	return &Handler{Svc: svc, polls: newPollLimiter(pollWindow, nil)}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyses/:type", h.runAnalysis)
	rg.GET("/analyses", h.listAnalyses)
	rg.GET("/analyses/:id", h.getAnalysis)
	rg.GET("/tasks/:taskId", h.pollTask)
}

func (h *Handler) runAnalysis(c *gin.Context) {
	t, ok := ParseType(c.Param("type"))
	if !ok {
		respond.Error(c, http.StatusNotFound, "unknown_type", "unknown analysis type", nil)
		return
	}
	c.Set("analysisType", string(t))

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRequestBody+1))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if len(body) > maxRequestBody {
		respond.Error(c, http.StatusRequestEntityTooLarge, "validation_error", "request body too large", nil)
		return
	}

	userID := middleware.UserIDFromContext(c)
	res, err := h.Svc.Run(h.ctx(c), userID, t, body)
	if err != nil {
		h.runError(c, t, err)
		return
	}

	c.Set("analysisId", res.AnalysisID)
	if res.Mode == ModeDeferred {
		c.Set("taskId", res.TaskID)
		c.Set("statusTransition", "->processing")
		respond.JSON(c, http.StatusAccepted, gin.H{
			"success":     true,
			"analysis_id": res.AnalysisID,
			"task_id":     res.TaskID,
			"status":      res.Status,
		})
		return
	}
	c.Set("statusTransition", "processing->completed")
	respond.JSON(c, http.StatusOK, gin.H{
		"success":     true,
		"analysis_id": res.AnalysisID,
		"result":      res.Result,
	})
}

func (h *Handler) runError(c *gin.Context, t Type, err error) {
	var verr *ValidationError
	var failed *FailedError
	switch {
	case errors.Is(err, ErrUnknownType):
		respond.Error(c, http.StatusNotFound, "unknown_type", "unknown analysis type", nil)
	case errors.As(err, &verr):
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request", []map[string]string{
			{"field": verr.Field, "issue": verr.Issue},
		})
	case errors.Is(err, credits.ErrInsufficientCredits):
		respond.Error(c, http.StatusPaymentRequired, "insufficient_credits", "Nicht genügend Credits", gin.H{
			"required": Cost(t),
		})
	case errors.As(err, &failed):
		c.Set("analysisId", failed.AnalysisID)
		c.Set("statusTransition", "processing->failed")
		respond.Error(c, http.StatusInternalServerError, "provider_error", failed.Message, gin.H{
			"analysis_id": failed.AnalysisID,
		})
	default:
		h.internalError(c, err, "failed to run analysis")
	}
}

func (h *Handler) pollTask(c *gin.Context) {
	taskID := strings.TrimSpace(c.Param("taskId"))
	if taskID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "task id is required", nil)
		return
	}
	c.Set("taskId", taskID)

	userID := middleware.UserIDFromContext(c)
	if ok, wait := h.polls.Allow(userID, taskID); !ok {
		seconds := int(math.Ceil(wait.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(seconds))
		respond.Error(c, http.StatusTooManyRequests, "poll_too_fast", "polling too fast", gin.H{
			"retry_after_ms": wait.Milliseconds(),
		})
		return
	}

	res, err := h.Svc.Poll(h.ctx(c), userID, taskID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "task not found", nil)
			return
		}
		if errors.Is(err, ErrProviderUnavailable) {
			c.Header("Retry-After", "5")
			respond.Error(c, http.StatusServiceUnavailable, "provider_unavailable", "provider temporarily unavailable, retry later", nil)
			return
		}
		h.internalError(c, err, "failed to poll task")
		return
	}

	c.Set("analysisId", res.AnalysisID)
	if res.Status != StatusProcessing {
		c.Set("statusTransition", "processing->"+res.Status)
	}
	resp := gin.H{
		"analysis_id": res.AnalysisID,
		"status":      res.Status,
	}
	if res.Result != nil {
		resp["result"] = res.Result
	}
	if res.Error != "" {
		resp["error"] = res.Error
	}
	respond.JSON(c, http.StatusOK, resp)
}

func (h *Handler) getAnalysis(c *gin.Context) {
	analysisID := strings.TrimSpace(c.Param("id"))
	a, err := h.Svc.Get(h.ctx(c), middleware.UserIDFromContext(c), analysisID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
			return
		}
		h.internalError(c, err, "failed to fetch analysis")
		return
	}
	c.Set("analysisId", a.ID)
	c.Set("analysisType", string(a.Type))
	respond.JSON(c, http.StatusOK, a)
}

func (h *Handler) listAnalyses(c *gin.Context) {
	filter := ListFilter{
		Type:   Type(strings.TrimSpace(c.Query("type"))),
		Status: strings.TrimSpace(c.Query("status")),
	}
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request", []map[string]string{
				{"field": "limit", "issue": "must be a positive integer"},
			})
			return
		}
		filter.Limit = n
	}

	items, err := h.Svc.List(h.ctx(c), middleware.UserIDFromContext(c), filter)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request", []map[string]string{
				{"field": verr.Field, "issue": verr.Issue},
			})
			return
		}
		h.internalError(c, err, "failed to list analyses")
		return
	}
	if items == nil {
		items = []Analysis{}
	}
	respond.JSON(c, http.StatusOK, gin.H{"items": items})
}

func (h *Handler) internalError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respond.Error(c, http.StatusRequestTimeout, "timeout", "request canceled", nil)
	default:
		_ = c.Error(err)
		respond.Error(c, http.StatusInternalServerError, "internal_error", message, nil)
	}
}

func (h *Handler) ctx(c *gin.Context) context.Context {
	return WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
}
