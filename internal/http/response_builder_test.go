package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"budgetbook/internal/charts"
	"budgetbook/internal/core"
	"budgetbook/internal/importer"
	"budgetbook/internal/services"
	"budgetbook/internal/storage"
)

func TestResponseBuilder(t *testing.T) {
	w := httptest.NewRecorder()

	NewResponse().
		Status(http.StatusCreated).
		Header("X-Custom", "value").
		JSON(map[string]int{"n": 1}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := w.Header().Get("X-Custom"); got != "value" {
		t.Errorf("X-Custom = %q", got)
	}
	if w.Body.String() != "{\"n\":1}\n" {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestResponseBuilderEncodingFailure(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().JSON(map[string]any{"f": func() {}}).Write(w)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d, want 500", w.Code)
	}
}

func TestErrorResponse(t *testing.T) {
	w := httptest.NewRecorder()
	ErrorResponse(http.StatusUnprocessableEntity, "bad statement", "line 2: x").Write(w)

	var body errorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Error != "bad statement" || len(body.Details) != 1 {
		t.Errorf("body = %+v", body)
	}

	w = httptest.NewRecorder()
	TooManyRequestsError().Write(w)
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") != "60" {
		t.Errorf("rate limit response = %d %q", w.Code, w.Header().Get("Retry-After"))
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("load: %w", storage.ErrProfileNotFound), http.StatusNotFound},
		{core.ErrAccountNotFound, http.StatusNotFound},
		{core.ErrPeriodNotFound, http.StatusNotFound},
		{services.ErrProfileExists, http.StatusConflict},
		{core.ErrDuplicateAccount, http.StatusConflict},
		{errBudgetExists, http.StatusConflict},
		{&importer.ParseError{}, http.StatusUnprocessableEntity},
		{importer.ErrUnknownFormat, http.StatusUnprocessableEntity},
		{charts.ErrNotEnoughData, http.StatusUnprocessableEntity},
		{storage.ErrInvalidName, http.StatusBadRequest},
		{core.ErrInvalidAmount, http.StatusBadRequest},
		{core.ErrInvalidPercent, http.StatusBadRequest},
		{core.ErrUnknownSortField, http.StatusBadRequest},
		{errUnknownCategory, http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestWriteErrorHidesInternalErrors(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	writeError(w, r, errors.New("password=hunter2"))

	var body errorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Error != "internal error" {
		t.Errorf("error = %q", body.Error)
	}
}
