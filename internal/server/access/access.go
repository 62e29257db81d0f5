// Package access computes capsule visibility. Evaluate is a pure function so
// the HTTP layer and tests can drive it with any clock.
package access

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/timecapsule/internal/server/models"
)

// Reason explains a denial in a form safe to return to API callers.
type Reason string

const (
	// ReasonLocked means the caller would be allowed once the capsule
	// unlocks; the decision carries UnlockAt so clients can show a countdown.
	ReasonLocked Reason = "locked"
	// ReasonForbidden means the caller has no relationship to the capsule.
	ReasonForbidden Reason = "forbidden"
)

// Decision is the outcome of an access check.
type Decision struct {
	Allowed bool
	Reason  Reason
	// UnlockAt is set only for ReasonLocked. Exposing it is intentional:
	// the unlock instant is not sensitive.
	UnlockAt time.Time
}

func allow() Decision {
	return Decision{Allowed: true}
}

func denyLocked(unlockAt time.Time) Decision {
	return Decision{Reason: ReasonLocked, UnlockAt: unlockAt}
}

func denyForbidden() Decision {
	return Decision{Reason: ReasonForbidden}
}

// Evaluate applies the visibility rules in order:
//
//  1. The owner may always read their capsule.
//  2. The recipient (case-insensitive address match) may read it once
//     unlocked; before that they get a locked denial with the unlock instant.
//  3. A caller presenting the capsule's public access token may read it only
//     when unlocked. A locked capsule has no token by invariant, so a
//     non-empty presented token can never match one; the status check stays
//     anyway as a defensive guard.
//  4. Everyone else is forbidden.
//
// requesterID and requesterEmail are empty for anonymous callers,
// presentedToken is empty when no token accompanies the request.
func Evaluate(capsule *models.Capsule, requesterID string, requesterEmail string, presentedToken string, now time.Time) Decision {
	if requesterID != "" && requesterID == capsule.OwnerID {
		return allow()
	}

	if requesterEmail != "" && strings.EqualFold(requesterEmail, capsule.RecipientEmail) {
		if capsule.Unlocked() {
			return allow()
		}
		return denyLocked(capsule.UnlockAt)
	}

	if presentedToken != "" && capsule.Unlocked() && presentedToken == capsule.PublicAccessToken {
		return allow()
	}

	return denyForbidden()
}
