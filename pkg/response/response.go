package response

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	customError "github.com/segyhp/agent-wallet/pkg/errors"
)

type Response struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type ErrorResponse struct {
	Success   bool              `json:"success"`
	Code      string            `json:"code,omitempty"`
	Error     string            `json:"error"`
	Message   string            `json:"message,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// statusByCode maps business error codes onto HTTP statuses.
var statusByCode = map[string]int{
	customError.ErrCodeFormInvalid:                 http.StatusUnprocessableEntity,
	customError.ErrCodeDuplicateSubscriber:         http.StatusConflict,
	customError.ErrCodeUnexpectedDuplicateResponse: http.StatusBadGateway,
	customError.ErrCodeProposalCreationFailed:      http.StatusBadGateway,
	customError.ErrCodeInsufficientWalletBalance:   http.StatusUnprocessableEntity,
	customError.ErrCodeSettlementFailed:            http.StatusBadGateway,
	customError.ErrCodeNoProposalsSelected:         http.StatusBadRequest,
	customError.ErrCodeNoValidPoliciesSelected:     http.StatusBadRequest,
	customError.ErrCodeNetworkOrServerError:        http.StatusBadGateway,
	customError.ErrCodeInvalidPaymentMode:          http.StatusBadRequest,
	customError.ErrCodeInvalidTransition:           http.StatusConflict,
	customError.ErrCodeWalletNotEligible:           http.StatusForbidden,
	customError.ErrCodeWorkflowCancelled:           http.StatusConflict,
	customError.ErrCodeWorkflowNotFound:            http.StatusNotFound,
	customError.ErrCodeWorkflowBusy:                http.StatusConflict,
	customError.ErrCodeAgentContextUnavailable:     http.StatusNotFound,
	customError.ErrCodeDatabaseError:               http.StatusInternalServerError,
	customError.ErrCodeCacheError:                  http.StatusInternalServerError,
}

// StatusFor returns the HTTP status of a business error code.
func StatusFor(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// JSON sends a JSON response
func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	response := Response{
		Success:   statusCode >= 200 && statusCode < 300,
		Data:      data,
		Timestamp: time.Now(),
	}

	write(w, statusCode, response)
}

// Success sends a successful JSON response
func Success(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, data)
}

// Created sends a created JSON response
func Created(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusCreated, data)
}

// Error sends an error JSON response
func Error(w http.ResponseWriter, statusCode int, message string, err error) {
	response := ErrorResponse{
		Success:   false,
		Message:   message,
		Timestamp: time.Now(),
	}

	if err != nil {
		response.Error = err.Error()
	}

	write(w, statusCode, response)
}

// FromError renders err with the status of its business code. The message
// is the user-facing one; transport details stay in the logs.
func FromError(w http.ResponseWriter, err error) {
	var be *customError.BusinessError
	if !errors.As(err, &be) {
		InternalServerError(w, customError.GenericFailureMessage, nil)
		return
	}

	response := ErrorResponse{
		Success:   false,
		Code:      be.Code,
		Error:     be.Code,
		Message:   be.Message,
		Fields:    be.Fields,
		Timestamp: time.Now(),
	}
	write(w, StatusFor(be.Code), response)
}

// BadRequest sends a 400 bad request response
func BadRequest(w http.ResponseWriter, message string, err error) {
	Error(w, http.StatusBadRequest, message, err)
}

// NotFound sends a 404 not found response
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, message, nil)
}

// InternalServerError sends a 500 internal server error response
func InternalServerError(w http.ResponseWriter, message string, err error) {
	Error(w, http.StatusInternalServerError, message, err)
}

func write(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("error encoding JSON response", slog.Any("error", err))
	}
}

// CORSMiddleware adds CORS headers
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			recorder := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(recorder, r)

			logger.Info("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", recorder.statusCode),
				slog.Duration("duration", time.Since(start)))
		})
	}
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *responseRecorder) WriteHeader(statusCode int) {
	rec.statusCode = statusCode
	rec.ResponseWriter.WriteHeader(statusCode)
}
