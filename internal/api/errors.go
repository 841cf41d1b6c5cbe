package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"golang.org/x/exp/slog"

	"github.com/MJE43/slot-tracker-go/internal/ledger"
	"github.com/MJE43/slot-tracker-go/internal/lib/logger/sl"
	"github.com/MJE43/slot-tracker-go/internal/rng"
	"github.com/MJE43/slot-tracker-go/internal/store"
	"github.com/MJE43/slot-tracker-go/internal/tournament"
	"github.com/MJE43/slot-tracker-go/internal/tracker"
	"github.com/MJE43/slot-tracker-go/internal/wheel"
	"github.com/MJE43/slot-tracker-go/internal/wheelsvc"
)

// APIError represents a structured error response with context
type APIError struct {
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

func (e APIError) Error() string {
	return e.Message
}

// Error types
const (
	ErrTypeInvalidParams      = "invalid_params"
	ErrTypeValidation         = "validation_error"
	ErrTypeNotFound           = "not_found"
	ErrTypeSpinInProgress     = "spin_in_progress"
	ErrTypeInvalidWheel       = "invalid_configuration"
	ErrTypeSeedMismatch       = "seed_mismatch"
	ErrTypeInternal           = "internal_error"
	ErrTypeServiceUnavailable = "service_unavailable"
)

// ErrorCategory groups error types for logging.
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategoryState      ErrorCategory = "state"
	CategorySystem     ErrorCategory = "system"
)

// GetErrorCategory returns the category for an error type
func GetErrorCategory(errType string) ErrorCategory {
	switch errType {
	case ErrTypeInvalidParams, ErrTypeValidation, ErrTypeInvalidWheel, ErrTypeSeedMismatch:
		return CategoryValidation
	case ErrTypeNotFound, ErrTypeSpinInProgress:
		return CategoryState
	default:
		return CategorySystem
	}
}

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

func (eb *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	eb.context[key] = value
	return eb
}

func (eb *ErrorBuilder) WithRequestID(requestID string) *ErrorBuilder {
	eb.requestID = requestID
	return eb
}

// WithCause records the underlying error message.
func (eb *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	if err != nil {
		eb.context["cause"] = err.Error()
	}
	return eb
}

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

// classify maps domain errors onto an HTTP status and error type.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ledger.ErrGameNotFound),
		errors.Is(err, ledger.ErrSessionNotFound),
		errors.Is(err, tournament.ErrNotFound),
		errors.Is(err, tournament.ErrPlayerNotFound),
		errors.Is(err, wheelsvc.ErrSegmentNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, ErrTypeNotFound
	case errors.Is(err, wheel.ErrSpinning):
		return http.StatusConflict, ErrTypeSpinInProgress
	case wheel.IsConfigError(err):
		return http.StatusUnprocessableEntity, ErrTypeInvalidWheel
	case errors.Is(err, rng.ErrSeedMismatch):
		return http.StatusUnprocessableEntity, ErrTypeSeedMismatch
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidIndex),
		errors.Is(err, ledger.ErrNotAutoPlay),
		errors.Is(err, ledger.ErrInvalidDocument),
		errors.Is(err, ledger.ErrNoValidGames),
		errors.Is(err, tournament.ErrInvalidDates),
		errors.Is(err, wheelsvc.ErrInvalidSize),
		errors.Is(err, wheelsvc.ErrNotSeeded):
		return http.StatusBadRequest, ErrTypeInvalidParams
	case errors.Is(err, wheelsvc.ErrNoStore),
		errors.Is(err, tracker.ErrClosed):
		return http.StatusServiceUnavailable, ErrTypeServiceUnavailable
	default:
		return http.StatusInternalServerError, ErrTypeInternal
	}
}

// ErrorHandler provides centralized error handling with logging
type ErrorHandler struct {
	log *slog.Logger
}

func NewErrorHandler(log *slog.Logger) *ErrorHandler {
	return &ErrorHandler{log: log}
}

// HandleError classifies err and writes the matching response. Internal
// errors are reported with a generic message.
func (eh *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		eh.write(w, r, http.StatusBadRequest, apiErr, err)
		return
	}

	status, errType := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "Internal server error"
	}
	apiErr = NewError(errType, msg).
		WithRequestID(middleware.GetReqID(r.Context())).
		WithContext("path", r.URL.Path).
		WithContext("method", r.Method).
		Build()
	eh.write(w, r, status, apiErr, err)
}

// HandleDecodeError reports a malformed request body.
func (eh *ErrorHandler) HandleDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := NewError(ErrTypeInvalidParams, "failed to decode request body").
		WithRequestID(middleware.GetReqID(r.Context())).
		WithCause(err).
		Build()
	eh.write(w, r, http.StatusBadRequest, apiErr, err)
}

// HandleValidationError turns validator failures into one readable message.
func (eh *ErrorHandler) HandleValidationError(w http.ResponseWriter, r *http.Request, err error) {
	var fields []string
	var msgs []string
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
			msgs = append(msgs, validationMessage(fe))
		}
	} else {
		msgs = append(msgs, err.Error())
	}

	apiErr := NewError(ErrTypeValidation, fmt.Sprintf("Validation failed: %s", strings.Join(msgs, ", "))).
		WithRequestID(middleware.GetReqID(r.Context())).
		WithContext("fields", fields).
		WithContext("path", r.URL.Path).
		Build()
	eh.write(w, r, http.StatusBadRequest, apiErr, err)
}

// HandleParamError reports a bad path or query parameter.
func (eh *ErrorHandler) HandleParamError(w http.ResponseWriter, r *http.Request, name string, err error) {
	apiErr := NewError(ErrTypeInvalidParams, fmt.Sprintf("invalid parameter %q", name)).
		WithRequestID(middleware.GetReqID(r.Context())).
		WithContext("param", name).
		WithCause(err).
		Build()
	eh.write(w, r, http.StatusBadRequest, apiErr, err)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.ActualTag() {
	case "required":
		return fmt.Sprintf("field %s is required", fe.Field())
	case "min", "gte", "gt":
		return fmt.Sprintf("field %s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte", "lt":
		return fmt.Sprintf("field %s must be at most %s", fe.Field(), fe.Param())
	case "datetime":
		return fmt.Sprintf("field %s must be a date like %s", fe.Field(), fe.Param())
	case "hexcolor":
		return fmt.Sprintf("field %s must be a hex color", fe.Field())
	default:
		return fmt.Sprintf("field %s is invalid", fe.Field())
	}
}

func (eh *ErrorHandler) write(w http.ResponseWriter, r *http.Request, status int, apiErr APIError, cause error) {
	category := GetErrorCategory(apiErr.Type)
	attrs := []any{
		slog.String("type", apiErr.Type),
		slog.String("category", string(category)),
		slog.Int("status", status),
		slog.String("request_id", apiErr.RequestID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		sl.Err(cause),
	}
	if status >= http.StatusInternalServerError {
		eh.log.Error("request failed", attrs...)
	} else {
		eh.log.Warn("request rejected", attrs...)
	}

	w.Header().Set("X-Error-Type", apiErr.Type)
	w.Header().Set("X-Error-Category", string(category))
	render.Status(r, status)
	render.JSON(w, r, apiErr)
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
				eh.log.Error("panic recovered",
					slog.String("request_id", requestID),
					slog.String("path", r.URL.Path),
					slog.Any("panic", rvr),
				)
				apiErr := NewError(ErrTypeInternal, "Internal server error").
					WithRequestID(requestID).
					WithContext("path", r.URL.Path).
					Build()
				w.Header().Set("X-Error-Type", apiErr.Type)
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, apiErr)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
