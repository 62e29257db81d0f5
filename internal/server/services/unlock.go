// This file implements UnlockService, the capsule lifecycle engine. It owns
// the LOCKED -> UNLOCKED transition: issuing the public access token,
// persisting the flip, and firing the enrichment + notification side effects.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/timecapsule/internal/logging"
	"github.com/dmitrijs2005/timecapsule/internal/server/config"
	"github.com/dmitrijs2005/timecapsule/internal/server/mail"
	"github.com/dmitrijs2005/timecapsule/internal/server/models"
	"github.com/dmitrijs2005/timecapsule/internal/server/quotes"
	"github.com/dmitrijs2005/timecapsule/internal/server/repositories/repomanager"
)

// FallbackQuote decorates the unlock email whenever the enrichment lookup
// fails or times out.
const FallbackQuote = "Cherish yesterday, dream tomorrow, live today."

// sendTimeout bounds one notification delivery so a wedged relay cannot
// stall the rest of an unlock pass.
const sendTimeout = 30 * time.Second

// UnlockService transitions due capsules to their terminal UNLOCKED state.
type UnlockService struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	dispatcher    mail.Dispatcher
	quotes        quotes.Lookup
	logger        logging.Logger
	publicBaseURL string
	defaultTopic  string
}

// NewUnlockService constructs the lifecycle engine.
func NewUnlockService(db *sql.DB, m repomanager.RepositoryManager, dispatcher mail.Dispatcher, lookup quotes.Lookup, logger logging.Logger, cfg *config.Config) *UnlockService {
	return &UnlockService{
		db:            db,
		repomanager:   m,
		dispatcher:    dispatcher,
		quotes:        lookup,
		logger:        logger.With("module", "unlock"),
		publicBaseURL: cfg.PublicBaseURL,
		defaultTopic:  cfg.DefaultTopic,
	}
}

// Unlock performs the full transition for one capsule:
//
//  1. generate a fresh public access token
//  2. flip status to UNLOCKED and persist both in one conditional write
//  3. resolve a quote for the capsule's topic (fallback on any failure)
//  4. send the unlock notification to the recipient
//
// A persistence failure in step 2 is returned to the caller: the capsule is
// still LOCKED and the next pass retries it. Failures in steps 3-4 are logged
// and masked — the committed flip is never rolled back, so notification is
// best-effort while the transition itself is at-least-once.
func (s *UnlockService) Unlock(ctx context.Context, capsule *models.Capsule) error {
	token := uuid.NewString()

	flipped, err := s.repomanager.Capsules(s.db).MarkUnlocked(ctx, capsule.ID, token)
	if err != nil {
		return fmt.Errorf("error unlocking capsule: %w", err)
	}
	if !flipped {
		// lost the race to a concurrent pass; that pass owns the notification
		s.logger.Info(ctx, "capsule no longer locked, skipping", "capsule_id", capsule.ID)
		return nil
	}

	capsule.Status = models.StatusUnlocked
	capsule.PublicAccessToken = token
	s.logger.Info(ctx, "capsule unlocked", "capsule_id", capsule.ID)

	s.notify(ctx, capsule)
	return nil
}

// notify resolves the quote and delivers the unlock email. Nothing here can
// fail the transition; every error ends up in the log instead.
func (s *UnlockService) notify(ctx context.Context, capsule *models.Capsule) {
	topic := capsule.Topic
	if topic == "" {
		topic = s.defaultTopic
	}

	quote, err := s.quotes.Lookup(ctx, topic)
	if err != nil || quote == "" {
		s.logger.Warn(ctx, "quote lookup failed, using fallback", "capsule_id", capsule.ID, "topic", topic, "error", err)
		quote = FallbackQuote
	}

	ownerName := "someone who cares about you"
	if owner, err := s.repomanager.Users(s.db).GetByID(ctx, capsule.OwnerID); err == nil {
		ownerName = owner.UserName
	}

	link := fmt.Sprintf("%s/capsules/view/%s", s.publicBaseURL, capsule.PublicAccessToken)

	subject := "🎁 Your Digital Time Capsule Is Ready!"
	body := fmt.Sprintf(
		"Hi %s,\n\nYour digital time capsule from %s is now unlocked and ready to access! "+
			"Click the link below to view your memories:\n\n%s\n\n"+
			"✨ Quote on '%s' ✨\n%s\n\nEnjoy!",
		capsule.RecipientEmail, ownerName, link, topic, quote,
	)

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := s.dispatcher.Send(sendCtx, capsule.RecipientEmail, subject, body); err != nil {
		s.logger.Error(ctx, "unlock notification failed", "capsule_id", capsule.ID, "recipient", capsule.RecipientEmail, "error", err)
		return
	}
	s.logger.Info(ctx, "unlock notification sent", "capsule_id", capsule.ID, "recipient", capsule.RecipientEmail)
}
