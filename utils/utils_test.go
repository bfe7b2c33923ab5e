package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"campusevents/apperr"
)

func TestGenerateID(t *testing.T) {
	id := GenerateID(14)
	if len(id) != 14 {
		t.Fatalf("len = %d", len(id))
	}
	if GenerateID(14) == id {
		t.Fatal("ids should differ")
	}
}

func TestSendError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		msg    string
	}{
		{apperr.Validationf("Event is full"), http.StatusBadRequest, "Event is full"},
		{apperr.Conflictf("already"), http.StatusConflict, "already"},
		{errors.New("mongo down"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		SendError(rec, tt.err)
		if rec.Code != tt.status {
			t.Fatalf("status = %d, want %d", rec.Code, tt.status)
		}
		var body map[string]string
		json.NewDecoder(rec.Body).Decode(&body)
		if body["error"] != tt.msg {
			t.Fatalf("error = %q, want %q", body["error"], tt.msg)
		}
	}
}

func TestQueryInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?page=3&limit=x&rating=-1", nil)
	if QueryInt(r, "page", 1) != 3 {
		t.Fatal("page")
	}
	if QueryInt(r, "limit", 20) != 20 {
		t.Fatal("limit fallback")
	}
	if QueryInt(r, "rating", 0) != 0 {
		t.Fatal("negative fallback")
	}
}
