package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "without wrapped error",
			err:  New("BOOKING_NOT_FOUND", "booking not found", http.StatusNotFound),
			want: "BOOKING_NOT_FOUND: booking not found",
		},
		{
			name: "with wrapped error",
			err:  Wrap(fmt.Errorf("db error"), "DB_ERROR", "database failure", http.StatusInternalServerError),
			want: "DB_ERROR: database failure: db error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap(inner, "CODE", "msg", 500)

	if !errors.Is(appErr, inner) {
		t.Error("errors.Is should match inner error")
	}
}

func TestIsAppError(t *testing.T) {
	appErr := NotFound("Assessment", "a-1")
	wrapped := fmt.Errorf("wrapped: %w", appErr)

	got, ok := IsAppError(wrapped)
	if !ok {
		t.Fatal("IsAppError should return true for wrapped AppError")
	}
	if got.Code != CodeNotFound {
		t.Errorf("Code = %q, want %s", got.Code, CodeNotFound)
	}
	if got.Detail != "No Assessment with an ID of a-1 could be found" {
		t.Errorf("Detail = %q", got.Detail)
	}
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantStatus int
	}{
		{"NotFound", NotFound("Booking", "b-1"), http.StatusNotFound},
		{"BadRequest", BadRequest("BR", "bad request"), http.StatusBadRequest},
		{"FieldValidation", FieldValidation(map[string]string{"$.crn": "empty"}), http.StatusBadRequest},
		{"Unauthorized", Unauthorized("UA", "unauthorized"), http.StatusUnauthorized},
		{"Forbidden", Forbidden("forbidden"), http.StatusForbidden},
		{"Conflict", Conflict("b-2", "overlap"), http.StatusConflict},
		{"Internal", Internal("IE", "internal"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.HTTPStatus != tt.wantStatus {
				t.Errorf("HTTPStatus = %d, want %d", tt.err.HTTPStatus, tt.wantStatus)
			}
		})
	}
}

func TestFieldValidation_SortsParams(t *testing.T) {
	e := FieldValidation(map[string]string{
		"$.radius":            "mustBePositive",
		"$.essentialCriteria": "doesNotExist",
		"$.data":              "invalid",
	})

	want := []string{"$.data", "$.essentialCriteria", "$.radius"}
	if len(e.InvalidParams) != len(want) {
		t.Fatalf("len(InvalidParams) = %d, want %d", len(e.InvalidParams), len(want))
	}
	for i, name := range want {
		if e.InvalidParams[i].PropertyName != name {
			t.Errorf("InvalidParams[%d] = %q, want %q", i, e.InvalidParams[i].PropertyName, name)
		}
	}
}

func TestConflict_IncludesConflictingID(t *testing.T) {
	e := Conflict("9b1c", "A Booking already exists")
	if e.ConflictingID != "9b1c" {
		t.Errorf("ConflictingID = %q, want 9b1c", e.ConflictingID)
	}
	if e.Detail != "A Booking already exists: 9b1c" {
		t.Errorf("Detail = %q", e.Detail)
	}
}

func TestProblem_DefaultsTitleFromStatus(t *testing.T) {
	p := Forbidden("You are not authorized to access this endpoint").Problem()
	if p.Title != "Forbidden" {
		t.Errorf("Title = %q, want Forbidden", p.Title)
	}
	if p.Status != http.StatusForbidden {
		t.Errorf("Status = %d", p.Status)
	}
	if p.Type != "about:blank" {
		t.Errorf("Type = %q", p.Type)
	}
}
