package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/timecapsule/internal/common"
	"github.com/dmitrijs2005/timecapsule/internal/server/models"
)

func TestRespondError_StatusMapping(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantReason string
	}{
		{common.ErrorNotFound, http.StatusNotFound, "not_found"},
		{common.ErrorForbidden, http.StatusForbidden, "forbidden"},
		{fmt.Errorf("%w: bad date", common.ErrorValidation), http.StatusBadRequest, "validation"},
		{common.ErrorAlreadyExists, http.StatusConflict, "already_exists"},
		{common.ErrorCapsuleUnlocked, http.StatusConflict, "capsule_unlocked"},
		{common.ErrorUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{common.ErrInvalidToken, http.StatusUnauthorized, "unauthorized"},
		{common.ErrTokenExpired, http.StatusUnauthorized, "unauthorized"},
		{errors.New("something else"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.wantReason+"/"+tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			respondError(rec, tt.err)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid json body: %v", err)
			}
			if body.Error != tt.wantReason {
				t.Fatalf("reason = %q, want %q", body.Error, tt.wantReason)
			}
		})
	}
}

func TestRespondLocked_CarriesUnlockInstant(t *testing.T) {
	unlockAt := time.Date(2030, 5, 1, 0, 0, 0, 0, time.UTC)
	rec := httptest.NewRecorder()
	respondLocked(rec, unlockAt)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	var body lockedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json body: %v", err)
	}
	if body.Error != "locked" || !body.UnlockAt.Equal(unlockAt) {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestToCapsuleResponse(t *testing.T) {
	now := time.Now()
	c := &models.Capsule{
		ID:                "c-1",
		OwnerID:           "u-1",
		RecipientEmail:    "bob@example.com",
		Status:            models.StatusUnlocked,
		PublicAccessToken: "tok",
		Attachments: []models.Attachment{
			{StoredName: "obj-1", OriginalName: "photo.jpg", ContentType: "image/jpeg", Size: 42},
		},
		CreatedAt: now,
	}

	resp := toCapsuleResponse(c)
	if resp.ID != "c-1" || resp.PublicAccessToken != "tok" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(resp.Attachments) != 1 || resp.Attachments[0].OriginalName != "photo.jpg" {
		t.Fatalf("attachments not mapped: %+v", resp.Attachments)
	}
}
