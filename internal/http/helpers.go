package http

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"budgetbook/internal/charts"
	"budgetbook/internal/core"
	"budgetbook/internal/importer"
	"budgetbook/internal/log"
	"budgetbook/internal/services"
	"budgetbook/internal/storage"
)

var (
	errBudgetExists    = errors.New("budget already exists")
	errNoTransactions  = errors.New("profile has no transactions")
	errUnknownCategory = errors.New("unknown category")
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var parseErr *importer.ParseError
	switch {
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, storage.ErrProfileNotFound),
		errors.Is(err, core.ErrAccountNotFound),
		errors.Is(err, core.ErrTxNotFound),
		errors.Is(err, core.ErrPeriodNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrProfileExists),
		errors.Is(err, core.ErrDuplicateAccount),
		errors.Is(err, errBudgetExists):
		return http.StatusConflict
	case errors.As(err, &parseErr),
		errors.Is(err, importer.ErrUnknownFormat),
		errors.Is(err, importer.ErrEmptyFile),
		errors.Is(err, charts.ErrNotEnoughData),
		errors.Is(err, errNoTransactions):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errBadRequest),
		errors.Is(err, errUnknownCategory),
		errors.Is(err, storage.ErrInvalidName),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidPercent),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidMonth),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrUnknownSortField):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError renders err as JSON. Server errors are logged and their text is
// not exposed to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldError, err.Error(),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		InternalServerError("internal error").Write(w)
		return
	}

	var details []string
	var parseErr *importer.ParseError
	if errors.As(err, &parseErr) {
		for _, row := range parseErr.Rows {
			details = append(details, row.Error())
		}
	}
	ErrorResponse(status, err.Error(), details...).Write(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewResponse().Status(status).JSON(v).Write(w)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
