package services

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/timecapsule/internal/common"
	"github.com/dmitrijs2005/timecapsule/internal/server/config"
	"github.com/dmitrijs2005/timecapsule/internal/server/models"
)

func userServiceForTest(rm *fakeRepoManager, t *testing.T) (*UserService, func()) {
	t.Helper()
	db, _ := newSQLMockDB(t)
	cfg := &config.Config{
		SecretKey:                    "k",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
	}
	return NewUserService(db, rm, cfg), func() { db.Close() }
}

func TestRegister_Flows(t *testing.T) {
	rmOK := &fakeRepoManager{
		u: &fakeUsersRepo{createOut: &models.User{ID: "42", UserName: "alice"}},
	}
	s, done := userServiceForTest(rmOK, t)
	defer done()

	u, err := s.Register(context.Background(), "alice", "alice@example.com", "pw")
	if err != nil || u.ID != "42" {
		t.Fatalf("Register ok: got (%v, %v)", u, err)
	}

	if _, err := s.Register(context.Background(), "", "a@b", "pw"); !errors.Is(err, common.ErrorValidation) {
		t.Fatalf("empty username: want ErrorValidation, got %v", err)
	}
	if _, err := s.Register(context.Background(), "alice", "a@b", ""); !errors.Is(err, common.ErrorValidation) {
		t.Fatalf("empty password: want ErrorValidation, got %v", err)
	}

	rmDup := &fakeRepoManager{u: &fakeUsersRepo{createErr: common.ErrorAlreadyExists}}
	sDup, doneDup := userServiceForTest(rmDup, t)
	defer doneDup()
	if _, err := sDup.Register(context.Background(), "alice", "a@b", "pw"); !errors.Is(err, common.ErrorAlreadyExists) {
		t.Fatalf("duplicate: want ErrorAlreadyExists, got %v", err)
	}

	rmErr := &fakeRepoManager{u: &fakeUsersRepo{createErr: errBoom{}}}
	sErr, doneErr := userServiceForTest(rmErr, t)
	defer doneErr()
	_, err = sErr.Register(context.Background(), "bob", "b@b", "pw")
	if err == nil || !regexp.MustCompile(`error creating user: .*boom`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestLogin_Flows(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("right"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	// not found → unauthorized
	rmNF := &fakeRepoManager{u: &fakeUsersRepo{byLoginErr: common.ErrorNotFound}, r: &fakeRefreshRepo{}}
	sNF, doneNF := userServiceForTest(rmNF, t)
	defer doneNF()
	if _, err := sNF.Login(context.Background(), "ghost", "x"); !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("notfound → unauthorized, got %v", err)
	}

	// repo failure → internal
	rmIE := &fakeRepoManager{u: &fakeUsersRepo{byLoginErr: errBoom{}}, r: &fakeRefreshRepo{}}
	sIE, doneIE := userServiceForTest(rmIE, t)
	defer doneIE()
	if _, err := sIE.Login(context.Background(), "u", "x"); !errors.Is(err, common.ErrorInternal) {
		t.Fatalf("internal → ErrorInternal, got %v", err)
	}

	// wrong password → unauthorized
	rmWP := &fakeRepoManager{
		u: &fakeUsersRepo{byLogin: &models.User{ID: "u1", PasswordHash: hash}},
		r: &fakeRefreshRepo{},
	}
	sWP, doneWP := userServiceForTest(rmWP, t)
	defer doneWP()
	if _, err := sWP.Login(context.Background(), "u", "wrong"); !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("wrong password → unauthorized, got %v", err)
	}

	rmOK := &fakeRepoManager{
		u: &fakeUsersRepo{byLogin: &models.User{ID: "u1", PasswordHash: hash}},
		r: &fakeRefreshRepo{},
	}
	sOK, doneOK := userServiceForTest(rmOK, t)
	defer doneOK()
	pair, err := sOK.Login(context.Background(), "u", "right")
	if err != nil || pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("Login success: pair=%+v err=%v", pair, err)
	}
}

func TestRefreshToken_Success(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	rm := &fakeRepoManager{
		r: &fakeRefreshRepo{
			findOut: &models.RefreshToken{UserID: "u1", Expires: time.Now().Add(10 * time.Minute)},
		},
	}
	cfg := &config.Config{SecretKey: "k", AccessTokenValidityDuration: time.Hour, RefreshTokenValidityDuration: time.Hour}
	s := NewUserService(db, rm, cfg)

	pair, err := s.RefreshToken(context.Background(), "refresh-xyz")
	if err != nil {
		t.Fatalf("RefreshToken error: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("empty tokens: %+v", pair)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestRefreshToken_Expired(t *testing.T) {
	rm := &fakeRepoManager{
		r: &fakeRefreshRepo{
			findOut: &models.RefreshToken{UserID: "u1", Expires: time.Now().Add(-time.Minute)},
		},
	}
	s, done := userServiceForTest(rm, t)
	defer done()

	if _, err := s.RefreshToken(context.Background(), "r"); !errors.Is(err, common.ErrRefreshTokenExpired) {
		t.Fatalf("want ErrRefreshTokenExpired, got %v", err)
	}
}

func TestRefreshToken_FindErr(t *testing.T) {
	rm := &fakeRepoManager{r: &fakeRefreshRepo{findErr: errBoom{}}}
	s, done := userServiceForTest(rm, t)
	defer done()

	_, err := s.RefreshToken(context.Background(), "r")
	if err == nil || !regexp.MustCompile(`error searching refresh token: .*boom`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped find error, got %v", err)
	}
}

func TestRefreshToken_DeleteErr_RollsBack(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	rm := &fakeRepoManager{
		r: &fakeRefreshRepo{
			findOut: &models.RefreshToken{UserID: "u1", Expires: time.Now().Add(10 * time.Minute)},
			delErr:  errBoom{},
		},
	}
	cfg := &config.Config{SecretKey: "k", AccessTokenValidityDuration: time.Hour, RefreshTokenValidityDuration: time.Hour}
	s := NewUserService(db, rm, cfg)

	_, err := s.RefreshToken(context.Background(), "r")
	if err == nil || !regexp.MustCompile(`error deleting refresh token: .*boom`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped delete error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}
