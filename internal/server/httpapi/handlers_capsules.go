package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/dmitrijs2005/timecapsule/internal/server/access"
	"github.com/dmitrijs2005/timecapsule/internal/server/services"
)

// maxUploadBytes caps one multipart request held in memory/temp files.
const maxUploadBytes = 256 << 20

// collectUploads opens every file in the "files" part of a multipart form.
// The returned closer must run after the service call consumed the readers.
func collectUploads(r *http.Request) ([]services.Upload, func(), error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, nil, fmt.Errorf("invalid multipart form: %w", err)
	}

	var opened []multipart.File
	closer := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}

	var uploads []services.Upload
	if r.MultipartForm != nil {
		for _, fh := range r.MultipartForm.File["files"] {
			f, err := fh.Open()
			if err != nil {
				closer()
				return nil, nil, err
			}
			opened = append(opened, f)
			uploads = append(uploads, services.Upload{
				Content:      f,
				OriginalName: fh.Filename,
				ContentType:  fh.Header.Get("Content-Type"),
				Size:         fh.Size,
			})
		}
	}
	return uploads, closer, nil
}

func (s *HTTPServer) handlerCreateCapsule(w http.ResponseWriter, r *http.Request) {
	uploads, closeUploads, err := collectUploads(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "validation", Message: err.Error()})
		return
	}
	defer closeUploads()

	capsule, err := s.capsules.CreateCapsule(r.Context(),
		requesterID(r),
		r.FormValue("recipient_email"),
		r.FormValue("unlock_at"),
		r.FormValue("title"),
		r.FormValue("topic"),
		uploads,
	)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toCapsuleResponse(capsule))
}

func (s *HTTPServer) handlerListCapsules(w http.ResponseWriter, r *http.Request) {
	list, err := s.capsules.ListCapsules(r.Context(), requesterID(r))
	if err != nil {
		respondError(w, err)
		return
	}

	resp := make([]capsuleResponse, 0, len(list))
	for _, c := range list {
		resp = append(resp, toCapsuleResponse(c))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handlerGetCapsule(w http.ResponseWriter, r *http.Request) {
	capsule, err := s.capsules.GetCapsule(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}

	userID := requesterID(r)
	email := ""
	if user, err := s.users.GetUser(r.Context(), userID); err == nil {
		email = user.Email
	}

	decision := access.Evaluate(capsule, userID, email, "", time.Now().UTC())
	if !decision.Allowed {
		if decision.Reason == access.ReasonLocked {
			respondLocked(w, decision.UnlockAt)
			return
		}
		respondJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
		return
	}

	resp := toCapsuleResponse(capsule)
	if capsule.OwnerID != userID {
		// recipients see the content, not the owner's sharing credential
		resp.PublicAccessToken = ""
	}
	respondJSON(w, http.StatusOK, resp)
}

type updateCapsuleRequest struct {
	RecipientEmail *string `json:"recipient_email"`
	Title          *string `json:"title"`
	Topic          *string `json:"topic"`
	UnlockAt       *string `json:"unlock_at"`
}

func (s *HTTPServer) handlerUpdateCapsule(w http.ResponseWriter, r *http.Request) {
	var req updateCapsuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "validation", Message: "invalid json body"})
		return
	}

	capsule, err := s.capsules.UpdateCapsule(r.Context(), r.PathValue("id"), requesterID(r), services.CapsuleUpdate{
		RecipientEmail: req.RecipientEmail,
		Title:          req.Title,
		Topic:          req.Topic,
		UnlockAt:       req.UnlockAt,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toCapsuleResponse(capsule))
}

func (s *HTTPServer) handlerDeleteCapsule(w http.ResponseWriter, r *http.Request) {
	if err := s.capsules.DeleteCapsule(r.Context(), r.PathValue("id"), requesterID(r)); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "capsule deleted"})
}

func (s *HTTPServer) handlerAttachFiles(w http.ResponseWriter, r *http.Request) {
	uploads, closeUploads, err := collectUploads(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "validation", Message: err.Error()})
		return
	}
	defer closeUploads()

	if len(uploads) == 0 {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "validation", Message: "no files supplied"})
		return
	}

	stored, err := s.capsules.AttachFiles(r.Context(), r.PathValue("id"), requesterID(r), uploads)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := make([]attachmentResponse, 0, len(stored))
	for _, a := range stored {
		resp = append(resp, attachmentResponse{
			StoredName:   a.StoredName,
			OriginalName: a.OriginalName,
			ContentType:  a.ContentType,
			Size:         a.Size,
		})
	}
	respondJSON(w, http.StatusCreated, resp)
}

func (s *HTTPServer) handlerDetachFile(w http.ResponseWriter, r *http.Request) {
	err := s.capsules.DetachFile(r.Context(), r.PathValue("id"), requesterID(r), r.PathValue("name"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "file deleted"})
}

func (s *HTTPServer) handlerDownloadFile(w http.ResponseWriter, r *http.Request) {
	capsule, err := s.capsules.GetCapsule(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}

	userID := requesterID(r)
	email := ""
	if user, err := s.users.GetUser(r.Context(), userID); err == nil {
		email = user.Email
	}

	decision := access.Evaluate(capsule, userID, email, "", time.Now().UTC())
	if !decision.Allowed {
		if decision.Reason == access.ReasonLocked {
			respondLocked(w, decision.UnlockAt)
			return
		}
		respondJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
		return
	}

	s.streamAttachment(w, r, capsule.ID, r.PathValue("name"))
}

func (s *HTTPServer) streamAttachment(w http.ResponseWriter, r *http.Request, capsuleID string, storedName string) {
	attachment, body, err := s.capsules.OpenAttachment(r.Context(), capsuleID, storedName)
	if err != nil {
		respondError(w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", attachment.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachment.OriginalName))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", attachment.Size))
	_, _ = io.Copy(w, body)
}
