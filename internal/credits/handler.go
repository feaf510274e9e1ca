package credits

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"seo-analysis-backend/internal/shared/server/middleware"
	"seo-analysis-backend/internal/shared/server/respond"
)

// Handler exposes credit endpoints.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches credit routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/credits", h.getCredits)
}

// RegisterDevRoutes attaches dev-only credit routes.
func (h *Handler) RegisterDevRoutes(rg *gin.RouterGroup) {
	rg.POST("/credits/grant", h.grantCredits)
}

func (h *Handler) getCredits(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respond.Error(c, http.StatusBadRequest, "validation_error", "limit must be a positive integer", nil)
			return
		}
		limit = n
	}

	summary, err := h.Svc.History(c.Request.Context(), userID, limit)
	if err != nil {
		h.storeError(c, err, "failed to fetch credits")
		return
	}
	respond.JSON(c, http.StatusOK, summary)
}

type grantRequest struct {
	UserID string `json:"userId"`
	Amount int    `json:"amount"`
}

func (h *Handler) grantCredits(c *gin.Context) {
	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = middleware.UserIDFromContext(c)
	}

	entry, err := h.Svc.Grant(c.Request.Context(), userID, req.Amount)
	if err != nil {
		if errors.Is(err, ErrInvalidAmount) {
			respond.Error(c, http.StatusBadRequest, "validation_error", "amount must be positive", nil)
			return
		}
		h.storeError(c, err, "failed to grant credits")
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{
		"userId":  userID,
		"balance": entry.BalanceAfter,
		"entry":   entry,
	})
}

func (h *Handler) storeError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respond.Error(c, http.StatusRequestTimeout, "timeout", "request canceled", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", message, nil)
	}
}
