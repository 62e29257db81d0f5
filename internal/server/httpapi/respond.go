package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/timecapsule/internal/common"
	"github.com/dmitrijs2005/timecapsule/internal/server/models"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type lockedResponse struct {
	Error    string    `json:"error"`
	UnlockAt time.Time `json:"unlock_at"`
	Message  string    `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// respondLocked is the structured read-time rejection for still-sealed
// capsules. The unlock instant is included on purpose so clients can render
// a countdown.
func respondLocked(w http.ResponseWriter, unlockAt time.Time) {
	respondJSON(w, http.StatusForbidden, lockedResponse{
		Error:    "locked",
		UnlockAt: unlockAt,
		Message:  "This capsule will be accessible on " + unlockAt.Format(time.RFC3339),
	})
}

// respondError maps the sentinel error taxonomy onto HTTP statuses with
// structured reasons; internal details never leak to callers.
func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		respondJSON(w, http.StatusNotFound, errorResponse{Error: "not_found"})
	case errors.Is(err, common.ErrorForbidden):
		respondJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
	case errors.Is(err, common.ErrorValidation):
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "validation", Message: err.Error()})
	case errors.Is(err, common.ErrorAlreadyExists):
		respondJSON(w, http.StatusConflict, errorResponse{Error: "already_exists"})
	case errors.Is(err, common.ErrorCapsuleUnlocked):
		respondJSON(w, http.StatusConflict, errorResponse{Error: "capsule_unlocked", Message: "unlock time cannot change once a capsule is unlocked"})
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrRefreshTokenExpired):
		respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
	default:
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal"})
	}
}

type attachmentResponse struct {
	StoredName   string `json:"stored_name"`
	OriginalName string `json:"original_name"`
	ContentType  string `json:"content_type"`
	Size         int64  `json:"size"`
}

type capsuleResponse struct {
	ID                string               `json:"id"`
	OwnerID           string               `json:"owner_id"`
	RecipientEmail    string               `json:"recipient_email"`
	Title             string               `json:"title,omitempty"`
	Topic             string               `json:"topic,omitempty"`
	UnlockAt          time.Time            `json:"unlock_at"`
	Status            models.CapsuleStatus `json:"status"`
	PublicAccessToken string               `json:"public_access_token,omitempty"`
	Attachments       []attachmentResponse `json:"attachments"`
	CreatedAt         time.Time            `json:"created_at"`
}

func toCapsuleResponse(c *models.Capsule) capsuleResponse {
	resp := capsuleResponse{
		ID:                c.ID,
		OwnerID:           c.OwnerID,
		RecipientEmail:    c.RecipientEmail,
		Title:             c.Title,
		Topic:             c.Topic,
		UnlockAt:          c.UnlockAt,
		Status:            c.Status,
		PublicAccessToken: c.PublicAccessToken,
		Attachments:       make([]attachmentResponse, 0, len(c.Attachments)),
		CreatedAt:         c.CreatedAt,
	}
	for _, a := range c.Attachments {
		resp.Attachments = append(resp.Attachments, attachmentResponse{
			StoredName:   a.StoredName,
			OriginalName: a.OriginalName,
			ContentType:  a.ContentType,
			Size:         a.Size,
		})
	}
	return resp
}
