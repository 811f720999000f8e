package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRequestBodyParser(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		key     string
		want    string
		wantErr bool
		isJSON  bool
	}{
		{name: "json string", body: `{"name":" household "}`, key: "name", want: "household", isJSON: true},
		{name: "json number", body: `{"percent":12.5}`, key: "percent", want: "12.5", isJSON: true},
		{name: "json missing key", body: `{"name":"x"}`, key: "other", want: "", isJSON: true},
		{name: "form", body: "category=Food%3AGroceries", key: "category", want: "Food:Groceries"},
		{name: "control characters removed", body: "name=a%00b%07c", key: "name", want: "abc"},
		{name: "empty body", body: "", key: "name", want: ""},
		{name: "malformed json", body: `{"name":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			p := NewRequestBodyParser(req)
			err := p.Parse()
			if tt.wantErr {
				if !errors.Is(err, errBadRequest) {
					t.Fatalf("expected errBadRequest, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := p.Get(tt.key); got != tt.want {
				t.Errorf("Get(%q) = %q, want %q", tt.key, got, tt.want)
			}
			if p.IsJSON() != tt.isJSON {
				t.Errorf("IsJSON() = %v, want %v", p.IsJSON(), tt.isJSON)
			}
		})
	}
}

func TestRequestBodyParserRequire(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"  "}`))
	p := NewRequestBodyParser(req)
	if err := p.Parse(); err != nil {
		t.Fatal(err)
	}
	_, err := p.Require("name")
	if !errors.Is(err, errBadRequest) || !strings.Contains(err.Error(), "name is required") {
		t.Errorf("Require error = %v", err)
	}
}

func TestRequestBodyParserTooLarge(t *testing.T) {
	body := strings.Repeat("a", maxBodyBytes+1)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	p := NewRequestBodyParser(req)
	if err := p.Parse(); !errors.Is(err, errBodyTooLarge) {
		t.Fatalf("expected errBodyTooLarge, got %v", err)
	}
	if statusFor(p.Parse()) != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d", statusFor(p.Parse()))
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","extra":1}`))
	if err := NewRequestBodyParser(req).Decode(&v); !errors.Is(err, errBadRequest) {
		t.Fatalf("expected errBadRequest, got %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}`))
	if err := NewRequestBodyParser(req).Decode(&v); err != nil || v.Name != "a" {
		t.Fatalf("Decode = %v, name %q", err, v.Name)
	}
}

func TestPathParams(t *testing.T) {
	tests := []struct {
		period  string
		want    string
		wantErr bool
	}{
		{period: "2024-03", want: "2024-03"},
		{period: "2024-3", wantErr: true},
		{period: "March", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.SetPathValue("period", tt.period)
			ym, err := parsePeriod(req)
			if tt.wantErr {
				if statusFor(err) != http.StatusBadRequest {
					t.Fatalf("expected a bad request, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if ym.String() != tt.want || ym.Month != time.March {
				t.Errorf("period = %s", ym)
			}
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetPathValue("year", "20x4")
	if _, err := parseYear(req); !errors.Is(err, errBadRequest) {
		t.Errorf("expected errBadRequest, got %v", err)
	}
}
