package analyses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"seo-analysis-backend/internal/credits"
	"seo-analysis-backend/internal/provider"
	"seo-analysis-backend/internal/shared/metrics"
	"seo-analysis-backend/internal/shared/storage/object"
	"seo-analysis-backend/internal/shared/telemetry"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100

	fallbackFailureMessage = "provider request failed"
)

// Ledger is the credit ledger as the orchestrator uses it.
type Ledger interface {
	Hold(ctx context.Context, userID, analysisID string, amount int) (credits.Entry, error)
	Capture(ctx context.Context, userID, analysisID string, amount int) (credits.Entry, error)
	Release(ctx context.Context, userID, analysisID string, amount int) (credits.Entry, error)
}

// Service runs credit-gated analyses against the provider.
type Service struct {
	Repo     Repo
	Credits  Ledger
	Gateway  provider.Gateway
	Archive  object.ObjectStore
	Defaults RequestDefaults
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Run validates the request, reserves its credit cost and dispatches it.
// Sync types return the canonical result; deferred types return the task id
// to poll. Credits are only kept when the analysis completes.
func (s *Service) Run(ctx context.Context, userID string, t Type, body []byte) (RunResult, error) {
	spec, ok := registry[t]
	if !ok {
		return RunResult{}, ErrUnknownType
	}
	in, err := validateInput(spec, body)
	if err != nil {
		return RunResult{}, err
	}

	now := s.now()
	a := Analysis{
		ID:         uuid.NewString(),
		UserID:     userID,
		Type:       t,
		Input:      compactJSON(body),
		Status:     StatusProcessing,
		CreditCost: spec.Cost,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if _, err := s.Credits.Hold(ctx, userID, a.ID, spec.Cost); err != nil {
		if errors.Is(err, credits.ErrInsufficientCredits) {
			telemetry.Info("analysis.rejected", map[string]any{
				"request_id":    requestIDFromContext(ctx),
				"user_id":       userID,
				"analysis_type": string(t),
				"reason":        "insufficient_credits",
			})
			return RunResult{}, err
		}
		return RunResult{}, persistenceErr("hold credits", err)
	}

	payload := spec.Payload(in, s.Defaults)
	if spec.Mode == ModeDeferred {
		return s.runDeferred(ctx, spec, a, payload)
	}
	return s.runSync(ctx, spec, a, payload)
}

func (s *Service) runSync(ctx context.Context, spec typeSpec, a Analysis, payload map[string]any) (RunResult, error) {
	if err := s.create(ctx, a); err != nil {
		return RunResult{}, err
	}

	raw, err := s.Gateway.CallSync(ctx, spec.PostEndpoint, payload)
	if err != nil {
		return RunResult{}, s.failRun(ctx, a, provider.Message(err))
	}
	result, err := Normalize(a.Type, raw)
	if err != nil {
		return RunResult{}, s.failRun(ctx, a, provider.Message(err))
	}
	if _, err := s.complete(ctx, a, result, raw); err != nil {
		return RunResult{}, err
	}
	return RunResult{
		AnalysisID: a.ID,
		Mode:       ModeSync,
		Status:     StatusCompleted,
		Result:     result,
	}, nil
}

// runDeferred submits the task first so the record is created with its task id.
func (s *Service) runDeferred(ctx context.Context, spec typeSpec, a Analysis, payload map[string]any) (RunResult, error) {
	taskID, err := s.Gateway.SubmitTask(ctx, spec.PostEndpoint, payload)
	if err != nil {
		if cerr := s.create(ctx, a); cerr != nil {
			return RunResult{}, cerr
		}
		return RunResult{}, s.failRun(ctx, a, provider.Message(err))
	}

	a.TaskID = taskID
	if err := s.create(ctx, a); err != nil {
		return RunResult{}, err
	}
	return RunResult{
		AnalysisID: a.ID,
		Mode:       ModeDeferred,
		Status:     StatusProcessing,
		TaskID:     taskID,
	}, nil
}

// create persists a new processing record and returns the hold if that fails.
func (s *Service) create(ctx context.Context, a Analysis) error {
	if err := s.Repo.Create(ctx, a); err != nil {
		s.release(ctx, a)
		return persistenceErr("create analysis", err)
	}
	metrics.IncAnalysisStarted(string(a.Type))
	s.logTransition(ctx, a, StatusProcessing, "->processing")
	return nil
}

func (s *Service) failRun(ctx context.Context, a Analysis, message string) error {
	message, won, err := s.fail(ctx, a, message)
	if err != nil {
		return err
	}
	if !won {
		return ErrAlreadyTerminal
	}
	return &FailedError{AnalysisID: a.ID, Message: message}
}

// complete applies the terminal completed transition. Only the caller that
// wins the transition captures credits.
func (s *Service) complete(ctx context.Context, a Analysis, result json.RawMessage, raw []json.RawMessage) (bool, error) {
	ctx = detach(ctx)
	err := s.Repo.Complete(ctx, a.ID, result)
	if errors.Is(err, ErrAlreadyTerminal) {
		return false, nil
	}
	if err != nil {
		telemetry.Error("analysis.complete_failed", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"analysis_id": a.ID,
			"error":       err,
		})
		return false, persistenceErr("complete analysis", err)
	}

	if _, err := s.Credits.Capture(ctx, a.UserID, a.ID, a.CreditCost); err != nil {
		telemetry.Error("credits.capture_failed", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"analysis_id": a.ID,
			"error":       err,
		})
	}
	metrics.IncAnalysisCompleted(string(a.Type))
	s.logTransition(ctx, a, StatusCompleted, "processing->completed")
	s.archive(ctx, a, raw)
	return true, nil
}

// fail applies the terminal failed transition and refunds the hold when won.
func (s *Service) fail(ctx context.Context, a Analysis, message string) (string, bool, error) {
	ctx = detach(ctx)
	message = strings.TrimSpace(message)
	if message == "" {
		message = fallbackFailureMessage
	}
	err := s.Repo.Fail(ctx, a.ID, message)
	if errors.Is(err, ErrAlreadyTerminal) {
		return message, false, nil
	}
	if err != nil {
		return message, false, persistenceErr("fail analysis", err)
	}

	s.release(ctx, a)
	metrics.IncAnalysisFailed(string(a.Type))
	s.logTransition(ctx, a, StatusFailed, "processing->failed", "error", message)
	return message, true, nil
}

func (s *Service) release(ctx context.Context, a Analysis) {
	if _, err := s.Credits.Release(detach(ctx), a.UserID, a.ID, a.CreditCost); err != nil {
		telemetry.Error("credits.release_failed", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"analysis_id": a.ID,
			"amount":      a.CreditCost,
			"error":       err,
		})
	}
}

// Poll resolves a deferred analysis by its provider task id. Terminal
// records are answered from the store without calling the provider.
func (s *Service) Poll(ctx context.Context, userID, taskID string) (PollResult, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return PollResult{}, ErrNotFound
	}
	a, err := s.Repo.GetByTaskID(ctx, userID, taskID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return PollResult{}, ErrNotFound
		}
		return PollResult{}, persistenceErr("lookup task", err)
	}
	if a.IsTerminal() {
		metrics.IncTaskPoll("terminal")
		return pollResultOf(a), nil
	}

	st, err := s.Gateway.FetchTaskStatus(ctx, a.TaskID, TaskEndpoint(a.Type))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return PollResult{}, ctxErr
		}
		if provider.IsTransient(err) {
			metrics.IncTaskPoll("unavailable")
			telemetry.Warn("analysis.poll_unavailable", map[string]any{
				"request_id":  requestIDFromContext(ctx),
				"analysis_id": a.ID,
				"task_id":     a.TaskID,
				"error":       err,
			})
			return PollResult{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
		metrics.IncTaskPoll(string(provider.TaskFailed))
		return s.finishPoll(ctx, a, provider.Message(err))
	}

	switch st.State {
	case provider.TaskCompleted:
		if stillRunning(a.Type, st.Results) {
			metrics.IncTaskPoll(string(provider.TaskPending))
			return pollResultOf(a), nil
		}
		metrics.IncTaskPoll(string(provider.TaskCompleted))
		result, err := Normalize(a.Type, st.Results)
		if err != nil {
			return s.finishPoll(ctx, a, provider.Message(err))
		}
		if _, err := s.complete(ctx, a, result, st.Results); err != nil {
			return PollResult{}, err
		}
		return s.reload(ctx, a)
	case provider.TaskFailed:
		metrics.IncTaskPoll(string(provider.TaskFailed))
		return s.finishPoll(ctx, a, st.Error)
	default:
		metrics.IncTaskPoll(string(provider.TaskPending))
		return pollResultOf(a), nil
	}
}

func (s *Service) finishPoll(ctx context.Context, a Analysis, message string) (PollResult, error) {
	if _, _, err := s.fail(ctx, a, message); err != nil {
		return PollResult{}, err
	}
	return s.reload(ctx, a)
}

// reload returns the stored terminal state, which is what every later poll sees.
func (s *Service) reload(ctx context.Context, a Analysis) (PollResult, error) {
	stored, err := s.Repo.GetByID(detach(ctx), a.UserID, a.ID)
	if err != nil {
		return PollResult{}, persistenceErr("reload analysis", err)
	}
	return pollResultOf(stored), nil
}

func pollResultOf(a Analysis) PollResult {
	res := PollResult{AnalysisID: a.ID, Status: a.Status}
	switch a.Status {
	case StatusCompleted:
		res.Result = a.Result
	case StatusFailed:
		res.Error = a.Error
	}
	return res
}

// Get returns one of the user's analyses.
func (s *Service) Get(ctx context.Context, userID, analysisID string) (Analysis, error) {
	if _, err := uuid.Parse(strings.TrimSpace(analysisID)); err != nil {
		return Analysis{}, ErrNotFound
	}
	a, err := s.Repo.GetByID(ctx, userID, strings.TrimSpace(analysisID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Analysis{}, ErrNotFound
		}
		return Analysis{}, persistenceErr("get analysis", err)
	}
	return a, nil
}

// List returns the user's history, newest first.
func (s *Service) List(ctx context.Context, userID string, filter ListFilter) ([]Analysis, error) {
	if filter.Type != "" {
		if _, ok := registry[filter.Type]; !ok {
			return nil, &ValidationError{Field: "type", Issue: "is not a known analysis type"}
		}
	}
	if filter.Status != "" && !isValidStatus(filter.Status) {
		return nil, &ValidationError{Field: "status", Issue: "is not a known status"}
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	out, err := s.Repo.ListByUser(ctx, userID, filter)
	if err != nil {
		return nil, persistenceErr("list analyses", err)
	}
	return out, nil
}

// archive keeps the raw provider payload next to the record. Failures are
// logged and never affect the analysis.
func (s *Service) archive(ctx context.Context, a Analysis, raw []json.RawMessage) {
	if s.Archive == nil {
		return
	}
	key, err := object.RawResultKey(a.UserID, a.ID)
	if err == nil {
		var payload []byte
		payload, err = json.Marshal(raw)
		if err == nil {
			_, err = s.Archive.Put(ctx, key, "application/json", bytes.NewReader(payload))
		}
	}
	if err != nil {
		telemetry.Warn("analysis.archive_failed", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"analysis_id": a.ID,
			"error":       err,
		})
	}
}

func (s *Service) logTransition(ctx context.Context, a Analysis, status, transition string, extra ...any) {
	fields := map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"user_id":           a.UserID,
		"analysis_id":       a.ID,
		"analysis_type":     string(a.Type),
		"task_id":           a.TaskID,
		"status":            status,
		"status_transition": transition,
	}
	for i := 0; i+1 < len(extra); i += 2 {
		if k, ok := extra[i].(string); ok {
			fields[k] = extra[i+1]
		}
	}
	telemetry.Info("analysis.status", fields)
}

func compactJSON(body []byte) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, body); err != nil {
		return json.RawMessage(bytes.TrimSpace(body))
	}
	return json.RawMessage(buf.Bytes())
}
