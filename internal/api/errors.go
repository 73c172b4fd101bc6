package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/oraclegame/oracle-game/internal/game"
	"github.com/oraclegame/oracle-game/internal/genlayer"
	"github.com/oraclegame/oracle-game/internal/oraclegame"
	"github.com/oraclegame/oracle-game/internal/store"
)

// ErrorBuilder helps construct structured errors with context
type ErrorBuilder struct {
	errType   string
	message   string
	context   map[string]any
	requestID string
}

// NewError creates a new error builder
func NewError(errType, message string) *ErrorBuilder {
	return &ErrorBuilder{
		errType: errType,
		message: message,
		context: make(map[string]any),
	}
}

// WithContext adds context information to the error
func (eb *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	eb.context[key] = value
	return eb
}

// WithRequestID adds request ID to the error
func (eb *ErrorBuilder) WithRequestID(requestID string) *ErrorBuilder {
	eb.requestID = requestID
	return eb
}

// WithCause records the underlying error text
func (eb *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	if err != nil {
		eb.context["cause"] = err.Error()
	}
	return eb
}

// Build creates the final APIError
func (eb *ErrorBuilder) Build() APIError {
	ctx := eb.context
	if len(ctx) == 0 {
		ctx = nil
	}
	return APIError{
		Type:      eb.errType,
		Message:   eb.message,
		Context:   ctx,
		RequestID: eb.requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// classify maps a domain error to an HTTP status, error type and message.
func classify(err error, action string) (int, string, string) {
	var verr *game.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, ErrTypeValidation, verr.Reason
	case errors.Is(err, game.ErrContractNotConfigured):
		return http.StatusServiceUnavailable, ErrTypeNotConfigured, game.Describe(err, action)
	case errors.Is(err, game.ErrWalletNotConnected):
		return http.StatusUnauthorized, ErrTypeWalletNotConnected, game.Describe(err, action)
	case errors.Is(err, game.ErrAlreadySubmitted):
		return http.StatusConflict, ErrTypeAlreadySubmitted, err.Error()
	case errors.Is(err, game.ErrInFlight), errors.Is(err, game.ErrNotAcceptingAnswers):
		return http.StatusConflict, ErrTypeConflict, err.Error()
	case errors.Is(err, game.ErrRoomNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, ErrTypeNotFound, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrTypeTimeout, "Operation timed out"
	case isUpstream(err):
		return http.StatusBadGateway, ErrTypeUpstream, err.Error()
	}
	return http.StatusInternalServerError, ErrTypeInternal, err.Error()
}

func isUpstream(err error) bool {
	var (
		rpcErr       *genlayer.RPCError
		httpErr      *genlayer.HTTPError
		authErr      *genlayer.AuthError
		transportErr *genlayer.TransportError
	)
	return errors.As(err, &rpcErr) ||
		errors.As(err, &httpErr) ||
		errors.As(err, &authErr) ||
		errors.As(err, &transportErr) ||
		errors.Is(err, genlayer.ErrTransactionFailed) ||
		errors.Is(err, genlayer.ErrReceiptTimeout) ||
		errors.Is(err, genlayer.ErrNoAccount) ||
		errors.Is(err, oraclegame.ErrRoomCount) ||
		errors.Is(err, oraclegame.ErrCreateRoom) ||
		errors.Is(err, oraclegame.ErrSubmitAnswer) ||
		errors.Is(err, oraclegame.ErrFinalizeGame)
}

// ErrorHandler provides centralized error handling with logging
type ErrorHandler struct {
	logger *log.Logger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *log.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleError maps err to a status and writes the structured response.
// action phrases the operation in wallet/contract hints ("submit an answer").
func (eh *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error, action string) {
	if apiErr, ok := err.(APIError); ok {
		eh.logError(r, apiErr, http.StatusInternalServerError)
		eh.writeErrorResponse(w, http.StatusInternalServerError, apiErr)
		return
	}

	status, errType, message := classify(err, action)
	b := NewError(errType, message).
		WithRequestID(middleware.GetReqID(r.Context())).
		WithContext("path", r.URL.Path).
		WithContext("method", r.Method)
	if status >= 500 {
		b.WithCause(err)
	}
	apiErr := b.Build()

	eh.logError(r, apiErr, status)
	eh.writeErrorResponse(w, status, apiErr)
}

// HandleValidationError handles malformed input that never reached the game layer
func (eh *ErrorHandler) HandleValidationError(w http.ResponseWriter, r *http.Request, field, message string) {
	apiErr := NewError(ErrTypeInvalidParams, fmt.Sprintf("Validation failed: %s", message)).
		WithRequestID(middleware.GetReqID(r.Context())).
		WithContext("field", field).
		WithContext("path", r.URL.Path).
		WithContext("method", r.Method).
		Build()

	eh.logError(r, apiErr, http.StatusBadRequest)
	eh.writeErrorResponse(w, http.StatusBadRequest, apiErr)
}

// HandleUnauthorized rejects a request without a valid API token
func (eh *ErrorHandler) HandleUnauthorized(w http.ResponseWriter, r *http.Request) {
	apiErr := NewError(ErrTypeUnauthorized, "missing or invalid bearer token").
		WithRequestID(middleware.GetReqID(r.Context())).
		WithContext("path", r.URL.Path).
		Build()
	eh.logError(r, apiErr, http.StatusUnauthorized)
	eh.writeErrorResponse(w, http.StatusUnauthorized, apiErr)
}

func (eh *ErrorHandler) logError(r *http.Request, apiErr APIError, status int) {
	category := GetErrorCategory(apiErr.Type)
	level := "ERROR"
	if status < 500 {
		level = "WARN"
	}
	eh.logger.Printf(
		"error_occurred level=%s type=%s category=%s status=%d request_id=%s method=%s path=%s message=%q",
		level, apiErr.Type, category, status, apiErr.RequestID, r.Method, r.URL.Path, apiErr.Message,
	)
}

func (eh *ErrorHandler) writeErrorResponse(w http.ResponseWriter, status int, apiErr APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-App-Version", Version)
	w.Header().Set("X-Error-Type", apiErr.Type)
	w.Header().Set("X-Error-Category", string(GetErrorCategory(apiErr.Type)))
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(apiErr); err != nil {
		eh.logger.Printf("write error response: %v", err)
	}
}

// RecoveryHandler provides panic recovery with structured error logging
func (eh *ErrorHandler) RecoveryHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				requestID := middleware.GetReqID(r.Context())
				eh.logger.Printf(
					"panic_recovered request_id=%s path=%s method=%s panic=%v",
					requestID, r.URL.Path, r.Method, rvr,
				)
				apiErr := NewError(ErrTypeInternal, "Internal server error").
					WithRequestID(requestID).
					WithContext("panic", fmt.Sprintf("%v", rvr)).
					WithContext("path", r.URL.Path).
					Build()
				eh.writeErrorResponse(w, http.StatusInternalServerError, apiErr)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
