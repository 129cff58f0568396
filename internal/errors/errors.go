package errors

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentbridge/agentbridge/internal/metrics"
	"github.com/agentbridge/agentbridge/internal/observability"
	"github.com/agentbridge/agentbridge/internal/server/middleware"
)

// Error codes carried by envelopes.
const (
	CodeRateLimited     = "RATE_LIMITED"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeInvalidJSON     = "INVALID_JSON"
	CodeInvalidInput    = "INVALID_INPUT"
	CodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
	CodeNotFound        = "NOT_FOUND"
	CodeAgentFailed     = "EXTERNAL_SERVICE_ERROR"
	CodeAgentTimeout    = "TIMEOUT"
	CodeInternal        = "INTERNAL_ERROR"
	CodeConfigInvalid   = "CONFIG_INVALID"
)

// Client-facing messages. Server-side failures all collapse to
// MessageInternal so nothing about the agent leaks to callers.
const (
	MessageRateLimited     = "Too many requests"
	MessageUnauthorized    = "Unauthorized"
	MessageInvalidJSON     = "Invalid JSON"
	MessagePayloadTooLarge = "Request too large"
	MessageNotFound        = "Not found"
	MessageInternal        = "Internal server error"
)

// RetryAfterDetail is the envelope detail key rendered as "retryAfter".
const RetryAfterDetail = "retryAfter"

// User errors (400-level)

func NewRateLimitedError(retryAfter int) *errors.ErrorEnvelope {
	envelope := errors.NewErrorEnvelope(CodeRateLimited, MessageRateLimited)
	envelope = envelope.WithDetails(map[string]interface{}{RetryAfterDetail: retryAfter})
	envelope, _ = envelope.WithSeverity(errors.SeverityMedium)
	return envelope
}

func NewUnauthorizedError() *errors.ErrorEnvelope {
	envelope := errors.NewErrorEnvelope(CodeUnauthorized, MessageUnauthorized)
	envelope, _ = envelope.WithSeverity(errors.SeverityMedium)
	return envelope
}

func NewInvalidJSONError() *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInvalidJSON, MessageInvalidJSON)
}

func NewInvalidInputError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInvalidInput, message)
}

func NewPayloadTooLargeError() *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodePayloadTooLarge, MessagePayloadTooLarge)
}

func NewNotFoundError() *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeNotFound, MessageNotFound)
}

// Server errors (500-level)

// WrapAgentFailure records an agent failure. diagnostics (exit code, stderr
// excerpt) go to the log only; the caller sees MessageInternal.
func WrapAgentFailure(ctx context.Context, err error, timedOut bool, diagnostics map[string]interface{}) *errors.ErrorEnvelope {
	code := CodeAgentFailed
	if timedOut {
		code = CodeAgentTimeout
	}
	envelope := errors.NewErrorEnvelope(code, MessageInternal)
	envelope = envelope.WithCorrelationID(extractCorrelationID(ctx))
	envelope = envelope.WithTraceID(extractCorrelationID(ctx))
	envelope = withWrappedError(envelope, err)
	if len(diagnostics) > 0 {
		if updated, updateErr := envelope.WithContext(diagnostics); updateErr == nil {
			envelope = updated
		}
	}
	envelope, _ = envelope.WithSeverity(errors.SeverityHigh)
	return envelope
}

func WrapInternal(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	envelope := errors.NewErrorEnvelope(CodeInternal, message)
	envelope = envelope.WithCorrelationID(extractCorrelationID(ctx))
	envelope = envelope.WithTraceID(extractCorrelationID(ctx))
	return withWrappedError(envelope, err)
}

func WrapConfigInvalid(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	envelope := errors.NewErrorEnvelope(CodeConfigInvalid, message)
	envelope = envelope.WithCorrelationID(extractCorrelationID(ctx))
	return withWrappedError(envelope, err)
}

// extractCorrelationID gets the request ID from ctx, or a fresh UUID.
func extractCorrelationID(ctx context.Context) string {
	if ctx != nil {
		if requestID := middleware.GetRequestID(ctx); requestID != "" {
			return requestID
		}
	}
	return uuid.New().String()
}

// EnsureEnvelope normalizes any error into a gofulmen ErrorEnvelope.
func EnsureEnvelope(err error) *errors.ErrorEnvelope {
	if err == nil {
		env := errors.NewErrorEnvelope(CodeInternal, "unexpected nil error")
		env, _ = env.WithSeverity(errors.SeverityCritical)
		return env
	}

	if envelope, ok := err.(*errors.ErrorEnvelope); ok && envelope != nil {
		return envelope
	}

	env := errors.NewErrorEnvelope(CodeInternal, MessageInternal)
	env = withWrappedError(env, err)
	env, _ = env.WithSeverity(errors.SeverityHigh)
	return env
}

// EnsureCorrelationID attaches the request ID to the envelope when missing.
func EnsureCorrelationID(envelope *errors.ErrorEnvelope, ctx context.Context) *errors.ErrorEnvelope {
	if envelope == nil || envelope.CorrelationID != "" {
		return envelope
	}

	var correlationID string
	if ctx != nil {
		correlationID = middleware.GetRequestID(ctx)
	}
	if correlationID == "" {
		correlationID = "fallback-" + errors.GenerateCorrelationID()
	}
	return envelope.WithCorrelationID(correlationID)
}

// HTTPStatusFromEnvelope resolves the HTTP status code for an envelope.
func HTTPStatusFromEnvelope(envelope *errors.ErrorEnvelope) int {
	if envelope == nil {
		return http.StatusInternalServerError
	}
	return HTTPStatusFromCode(envelope.Code)
}

// HTTPStatusFromCode resolves the HTTP status code for an error code.
func HTTPStatusFromCode(code string) int {
	switch code {
	case CodeInvalidInput, CodeInvalidJSON:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text placed in the response body. 5xx envelopes
// never expose their own message.
func PublicMessage(envelope *errors.ErrorEnvelope) string {
	if envelope == nil || HTTPStatusFromEnvelope(envelope) >= http.StatusInternalServerError {
		return MessageInternal
	}
	return envelope.Message
}

func withWrappedError(envelope *errors.ErrorEnvelope, err error) *errors.ErrorEnvelope {
	if envelope == nil || err == nil {
		return envelope
	}

	updated, updateErr := envelope.WithContext(map[string]interface{}{
		"wrapped_error": err.Error(),
	})
	if updateErr != nil {
		return envelope
	}
	return updated
}

// HTTPErrorResponse is the error body returned to callers.
type HTTPErrorResponse struct {
	Error      string `json:"error"`
	RetryAfter *int   `json:"retryAfter,omitempty"`
}

// RespondWithError normalizes the supplied error and writes a JSON response.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	RespondWithEnvelope(w, r, EnsureEnvelope(err))
}

// RespondWithEnvelope logs the envelope, emits metrics and writes the body.
func RespondWithEnvelope(w http.ResponseWriter, r *http.Request, envelope *errors.ErrorEnvelope) {
	if w == nil {
		return
	}

	if r != nil {
		envelope = EnsureCorrelationID(envelope, r.Context())
	} else {
		envelope = EnsureCorrelationID(envelope, nil)
	}

	statusCode := HTTPStatusFromEnvelope(envelope)

	response := HTTPErrorResponse{Error: PublicMessage(envelope)}
	if retryAfter, ok := envelope.Details[RetryAfterDetail].(int); ok {
		response.RetryAfter = &retryAfter
	}

	logHTTPError(envelope, statusCode)
	emitErrorMetrics(r, envelope, statusCode)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

func logHTTPError(envelope *errors.ErrorEnvelope, statusCode int) {
	if observability.ServerLogger == nil || envelope == nil {
		return
	}

	fields := []zap.Field{
		zap.String("error_code", envelope.Code),
		zap.Int("http_status", statusCode),
	}

	if envelope.Severity != "" {
		fields = append(fields, zap.String("severity", string(envelope.Severity)))
	}

	for key, value := range envelope.Context {
		fields = append(fields, zap.Any(key, value))
	}

	if envelope.CorrelationID != "" {
		fields = append(fields, zap.String("request_id", envelope.CorrelationID))
	}

	switch envelope.Severity {
	case errors.SeverityCritical, errors.SeverityHigh:
		observability.ServerLogger.Error(envelope.Message, fields...)
	case errors.SeverityMedium:
		observability.ServerLogger.Warn(envelope.Message, fields...)
	default:
		observability.ServerLogger.Info(envelope.Message, fields...)
	}
}

func emitErrorMetrics(r *http.Request, envelope *errors.ErrorEnvelope, statusCode int) {
	if envelope == nil {
		return
	}

	metrics.RecordError(envelope.Code, statusCode)
	if r != nil {
		metrics.RecordErrorByEndpoint(endpointPattern(r), envelope.Code)
	}
}

func endpointPattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "/unknown"
}
