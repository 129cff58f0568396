package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/agentbridge/agentbridge/internal/agent"
	"github.com/agentbridge/agentbridge/internal/core/auth"
	"github.com/agentbridge/agentbridge/internal/core/identity"
	"github.com/agentbridge/agentbridge/internal/core/ingest"
	"github.com/agentbridge/agentbridge/internal/core/ratelimit"
	apperrors "github.com/agentbridge/agentbridge/internal/errors"
	"github.com/agentbridge/agentbridge/internal/metrics"
	"github.com/agentbridge/agentbridge/internal/observability"
	"github.com/agentbridge/agentbridge/internal/server/middleware"
)

// Rate limit response headers.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
)

// logPreviewRunes bounds how much of a message or reply reaches debug logs.
const logPreviewRunes = 50

// AgentRunner runs one agent invocation. *agent.Invoker satisfies it.
type AgentRunner interface {
	Invoke(ctx context.Context, req agent.Request) (*agent.Outcome, error)
}

// AskResponse is the success body of POST /ask.
type AskResponse struct {
	Response string `json:"response"`
}

// AskHandler runs the request pipeline for POST /ask: rate check, auth,
// body ingest, agent invocation and reply extraction, in that order.
type AskHandler struct {
	Limiter          ratelimit.Limiter
	Hasher           *identity.Hasher
	Secret           string
	MaxMessageLength int
	AgentID          string
	TimeoutSeconds   int
	Runner           AgentRunner
}

func (h *AskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	address := identity.ClientAddress(r)
	clientID := h.Hasher.Hash(address)
	logger := observability.ServerLogger

	decision := h.Limiter.Check(address)
	setRateLimitHeaders(w, decision)
	if !decision.Allowed {
		metrics.RecordRateLimited()
		if logger != nil {
			logger.Warn("Rate limit exceeded",
				zap.String("client", clientID),
				zap.Int("retry_after", decision.ResetIn),
				zap.String("request_id", middleware.GetRequestID(r.Context())))
		}
		respondWithError(w, r, apperrors.NewRateLimitedError(decision.ResetIn))
		return
	}

	if !auth.Verify(r.Header.Get(auth.AuthorizationHeader), h.Secret) {
		metrics.RecordAuthFailure()
		if logger != nil {
			logger.Warn("Unauthorized request",
				zap.String("client", clientID),
				zap.String("request_id", middleware.GetRequestID(r.Context())))
		}
		respondWithError(w, r, apperrors.NewUnauthorizedError())
		return
	}

	message, err := ingest.ReadMessage(w, r, h.MaxMessageLength)
	if err != nil {
		respondWithError(w, r, h.ingestError(err))
		return
	}

	if logger != nil {
		logger.Debug("Request accepted",
			zap.String("client", clientID),
			zap.String("message", preview(message)),
			zap.String("request_id", middleware.GetRequestID(r.Context())))
	}

	outcome, err := h.Runner.Invoke(r.Context(), agent.Request{
		Message:        message,
		AgentID:        h.AgentID,
		TimeoutSeconds: h.TimeoutSeconds,
	})
	if err != nil {
		respondWithError(w, r, h.agentError(r.Context(), err, outcome))
		return
	}
	metrics.RecordAgentInvocation(h.AgentID, metrics.AgentStatusSuccess, outcome.Duration)

	reply := agent.Reply(outcome.Stdout)
	if logger != nil {
		logger.Debug("Agent replied",
			zap.String("client", clientID),
			zap.String("response", preview(reply)),
			zap.Duration("duration", outcome.Duration),
			zap.String("request_id", middleware.GetRequestID(r.Context())))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(AskResponse{Response: reply})
}

func (h *AskHandler) ingestError(err error) error {
	switch {
	case errors.Is(err, ingest.ErrBodyTooLarge):
		return apperrors.NewPayloadTooLargeError()
	case errors.Is(err, ingest.ErrMalformedJSON):
		return apperrors.NewInvalidJSONError()
	case errors.Is(err, ingest.ErrEmptyMessage):
		return apperrors.NewInvalidInputError("Message cannot be empty")
	case errors.Is(err, ingest.ErrMessageTooLong):
		return apperrors.NewInvalidInputError(fmt.Sprintf("Message too long (max %d chars)", h.MaxMessageLength))
	case errors.Is(err, ingest.ErrMissingMessage):
		return apperrors.NewInvalidInputError(`Missing or invalid "message" field`)
	default:
		return apperrors.NewInvalidJSONError()
	}
}

func (h *AskHandler) agentError(ctx context.Context, err error, outcome *agent.Outcome) error {
	var (
		spawnErr    *agent.SpawnError
		execErr     *agent.ExecutionError
		timeoutErr  *agent.TimeoutError
		canceledErr *agent.CanceledError
	)

	status := metrics.AgentStatusFailed
	timedOut := false
	diagnostics := map[string]interface{}{"agent": h.AgentID}
	var duration time.Duration
	if outcome != nil {
		duration = outcome.Duration
	}

	switch {
	case errors.As(err, &spawnErr):
		status = metrics.AgentStatusSpawn
		diagnostics["command"] = spawnErr.Command
	case errors.As(err, &execErr):
		diagnostics["exit_code"] = execErr.ExitCode
		diagnostics["stderr"] = execErr.Stderr
	case errors.As(err, &timeoutErr):
		status = metrics.AgentStatusTimeout
		timedOut = true
		diagnostics["timeout"] = timeoutErr.Timeout.String()
	case errors.As(err, &canceledErr):
		status = metrics.AgentStatusCanceled
	}

	metrics.RecordAgentInvocation(h.AgentID, status, duration)
	return apperrors.WrapAgentFailure(ctx, err, timedOut, diagnostics)
}

func setRateLimitHeaders(w http.ResponseWriter, d ratelimit.Decision) {
	h := w.Header()
	h.Set(HeaderRateLimitLimit, strconv.Itoa(d.Limit))
	h.Set(HeaderRateLimitRemaining, strconv.Itoa(d.Remaining))
	h.Set(HeaderRateLimitReset, strconv.Itoa(d.ResetIn))
}

func preview(s string) string {
	runes := []rune(s)
	if len(runes) <= logPreviewRunes {
		return s
	}
	return string(runes[:logPreviewRunes]) + "..."
}
