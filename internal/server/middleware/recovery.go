package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/agentbridge/agentbridge/internal/metrics"
	"github.com/agentbridge/agentbridge/internal/observability"
)

// Recovery turns a handler panic into an opaque 500 and logs the stack.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			panicErr := errors.NewErrorEnvelope("INTERNAL_ERROR", fmt.Sprintf("panic: %v", rec)).
				WithCorrelationID(GetRequestID(r.Context()))
			panicErr, _ = panicErr.WithContext(map[string]interface{}{
				"stack_trace": string(debug.Stack()),
			})
			panicErr, _ = panicErr.WithSeverity(errors.SeverityCritical)

			metrics.RecordPanic()

			if observability.ServerLogger != nil {
				observability.ServerLogger.Error(panicErr.Message,
					zap.String("error_code", panicErr.Code),
					zap.String("request_id", panicErr.CorrelationID),
					zap.Any("stack_trace", panicErr.Context["stack_trace"]),
				)
			}

			writeInternalError(w)
		}()

		next.ServeHTTP(w, r)
	})
}

// writeInternalError renders the 500 body directly; importing the errors
// package here would be circular.
func writeInternalError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "Internal server error"})
}
