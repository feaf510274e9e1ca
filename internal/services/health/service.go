package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"seo-analysis-backend/internal/shared/server/respond"
	"seo-analysis-backend/internal/shared/telemetry"
)

const defaultCheckTimeout = 2 * time.Second

// Checker checks one dependency. A nil error means healthy.
type Checker func(ctx context.Context) error

// Report is the health payload. Checks maps dependency name to "ok" or the error.
type Report struct {
	OK     bool              `json:"ok"`
	Checks map[string]string `json:"checks"`
}

// Service runs registered dependency checks.
type Service struct {
	mu      sync.RWMutex
	checks  map[string]Checker
	timeout time.Duration
}

// NewService constructs a new health service.
func NewService(timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	return &Service{checks: make(map[string]Checker), timeout: timeout}
}

// Register adds a named check.
func (s *Service) Register(name string, check Checker) {
	if check == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = check
}

// Status runs every check with the configured timeout.
func (s *Service) Status(ctx context.Context) Report {
	s.mu.RLock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)

	report := Report{OK: true, Checks: make(map[string]string, len(names))}
	for _, name := range names {
		s.mu.RLock()
		check := s.checks[name]
		s.mu.RUnlock()

		checkCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err := check(checkCtx)
		cancel()
		if err != nil {
			report.OK = false
			report.Checks[name] = err.Error()
			telemetry.Warn("health.check_failed", map[string]any{"check": name, "error": err})
			continue
		}
		report.Checks[name] = "ok"
	}
	return report
}

// Handler serves the report, 503 when any check fails.
func (s *Service) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		report := s.Status(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	}
}
