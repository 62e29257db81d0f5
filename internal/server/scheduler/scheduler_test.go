package scheduler

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/timecapsule/internal/dbx"
	"github.com/dmitrijs2005/timecapsule/internal/logging"
	"github.com/dmitrijs2005/timecapsule/internal/server/models"
	attachmentsrepo "github.com/dmitrijs2005/timecapsule/internal/server/repositories/attachments"
	capsulesrepo "github.com/dmitrijs2005/timecapsule/internal/server/repositories/capsules"
	refreshtokensrepo "github.com/dmitrijs2005/timecapsule/internal/server/repositories/refreshtokens"
	usersrepo "github.com/dmitrijs2005/timecapsule/internal/server/repositories/users"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

type fakeCapsulesRepo struct {
	capsulesrepo.Repository

	dueOut []*models.Capsule
	dueErr error
}

func (f *fakeCapsulesRepo) SelectDue(ctx context.Context, now time.Time) ([]*models.Capsule, error) {
	return f.dueOut, f.dueErr
}

type fakeRepoManager struct {
	c *fakeCapsulesRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error           { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository                 { return nil }
func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokensrepo.Repository { return nil }
func (m *fakeRepoManager) Capsules(db dbx.DBTX) capsulesrepo.Repository           { return m.c }
func (m *fakeRepoManager) Attachments(db dbx.DBTX) attachmentsrepo.Repository     { return nil }

type fakeUnlocker struct {
	calls    []string
	failID   string
	panicID  string
}

func (f *fakeUnlocker) Unlock(ctx context.Context, capsule *models.Capsule) error {
	f.calls = append(f.calls, capsule.ID)
	if capsule.ID == f.panicID {
		panic("unlock blew up")
	}
	if capsule.ID == f.failID {
		return errBoom{}
	}
	return nil
}

func newScheduler(t *testing.T, rm *fakeRepoManager, u *fakeUnlocker) (*Scheduler, *sql.DB) {
	t.Helper()
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(io.Discard, nil)))
	return New(db, rm, u, logger, time.Minute), db
}

func capsule(id string) *models.Capsule {
	return &models.Capsule{
		ID:             id,
		RecipientEmail: id + "@example.com",
		UnlockAt:       time.Now().Add(-time.Minute),
		Status:         models.StatusLocked,
	}
}

func TestRunUnlockPass_NoDueCapsules(t *testing.T) {
	u := &fakeUnlocker{}
	s, db := newScheduler(t, &fakeRepoManager{c: &fakeCapsulesRepo{}}, u)
	defer db.Close()

	s.RunUnlockPass(context.Background(), time.Now().UTC())

	if len(u.calls) != 0 {
		t.Fatalf("no-op pass must not unlock anything, got %v", u.calls)
	}
}

func TestRunUnlockPass_ScanError(t *testing.T) {
	u := &fakeUnlocker{}
	s, db := newScheduler(t, &fakeRepoManager{c: &fakeCapsulesRepo{dueErr: errBoom{}}}, u)
	defer db.Close()

	s.RunUnlockPass(context.Background(), time.Now().UTC())

	if len(u.calls) != 0 {
		t.Fatalf("scan failure must abort the pass, got %v", u.calls)
	}
}

func TestRunUnlockPass_ProcessesAllDue(t *testing.T) {
	u := &fakeUnlocker{}
	rm := &fakeRepoManager{c: &fakeCapsulesRepo{dueOut: []*models.Capsule{capsule("a"), capsule("b"), capsule("c")}}}
	s, db := newScheduler(t, rm, u)
	defer db.Close()

	s.RunUnlockPass(context.Background(), time.Now().UTC())

	if len(u.calls) != 3 {
		t.Fatalf("expected 3 unlock attempts, got %v", u.calls)
	}
}

func TestRunUnlockPass_ErrorIsolation(t *testing.T) {
	u := &fakeUnlocker{failID: "a"}
	rm := &fakeRepoManager{c: &fakeCapsulesRepo{dueOut: []*models.Capsule{capsule("a"), capsule("b")}}}
	s, db := newScheduler(t, rm, u)
	defer db.Close()

	s.RunUnlockPass(context.Background(), time.Now().UTC())

	if len(u.calls) != 2 || u.calls[1] != "b" {
		t.Fatalf("failure on a must not stop b: %v", u.calls)
	}
}

func TestRunUnlockPass_PanicIsolation(t *testing.T) {
	u := &fakeUnlocker{panicID: "a"}
	rm := &fakeRepoManager{c: &fakeCapsulesRepo{dueOut: []*models.Capsule{capsule("a"), capsule("b")}}}
	s, db := newScheduler(t, rm, u)
	defer db.Close()

	s.RunUnlockPass(context.Background(), time.Now().UTC())

	if len(u.calls) != 2 || u.calls[1] != "b" {
		t.Fatalf("panic on a must not stop b: %v", u.calls)
	}
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	u := &fakeUnlocker{}
	s, db := newScheduler(t, &fakeRepoManager{c: &fakeCapsulesRepo{}}, u)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	cancel()
	// give the stop goroutine a moment to drain
	time.Sleep(50 * time.Millisecond)
}
