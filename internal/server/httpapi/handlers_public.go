package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/timecapsule/internal/server/access"
)

// handlerPublicView serves capsule metadata to unauthenticated callers
// holding the public access token issued at unlock time.
func (s *HTTPServer) handlerPublicView(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	capsule, err := s.capsules.GetCapsuleByToken(r.Context(), token)
	if err != nil {
		respondError(w, err)
		return
	}

	// A stored token implies UNLOCKED by invariant; evaluate anyway so a
	// broken invariant fails closed instead of leaking a sealed capsule.
	decision := access.Evaluate(capsule, "", "", token, time.Now().UTC())
	if !decision.Allowed {
		if decision.Reason == access.ReasonLocked {
			respondLocked(w, decision.UnlockAt)
			return
		}
		respondJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
		return
	}

	respondJSON(w, http.StatusOK, toCapsuleResponse(capsule))
}

// handlerPublicDownload redirects a token-bearing caller to a short-lived
// presigned URL for one attachment.
func (s *HTTPServer) handlerPublicDownload(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	capsule, err := s.capsules.GetCapsuleByToken(r.Context(), token)
	if err != nil {
		respondError(w, err)
		return
	}

	decision := access.Evaluate(capsule, "", "", token, time.Now().UTC())
	if !decision.Allowed {
		if decision.Reason == access.ReasonLocked {
			respondLocked(w, decision.UnlockAt)
			return
		}
		respondJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
		return
	}

	url, err := s.capsules.AttachmentURL(r.Context(), capsule.ID, r.PathValue("name"))
	if err != nil {
		respondError(w, err)
		return
	}

	http.Redirect(w, r, url, http.StatusFound)
}
