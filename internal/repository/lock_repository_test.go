package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestAcquireGranted(t *testing.T) {
	want := uuid.New()
	db := &fakeDB{rowScans: []func(dest ...any) error{
		func(dest ...any) error {
			*(dest[0].(*uuid.UUID)) = want
			return nil
		},
	}}
	repo := NewPostgresLockRepository(db)

	token, err := repo.Acquire(context.Background(), "orchestrator.pass", 90*time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if token != want.String() {
		t.Fatalf("token = %q, want %q", token, want)
	}

	args := db.rowArgs[0]
	if args[0] != "orchestrator.pass" {
		t.Fatalf("key arg = %v", args[0])
	}
	if args[2] != int64(90) {
		t.Fatalf("lease arg = %v, want 90", args[2])
	}
	// Takeover must be conditional on expiry inside the same statement.
	if !strings.Contains(db.rowSQL[0], "expires_at <= now()") {
		t.Fatalf("query = %q", db.rowSQL[0])
	}
}

func TestAcquireDeniedWhileLeaseLive(t *testing.T) {
	db := &fakeDB{}
	repo := NewPostgresLockRepository(db)

	token, err := repo.Acquire(context.Background(), "orchestrator.pass", time.Minute)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if token != "" {
		t.Fatalf("token = %q, want empty for a held lease", token)
	}
}

func TestAcquireDefaultLease(t *testing.T) {
	db := &fakeDB{}
	repo := NewPostgresLockRepository(db)

	if _, err := repo.Acquire(context.Background(), "orchestrator.pass", 0); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if got := db.rowArgs[0][2]; got != int64(60) {
		t.Fatalf("lease arg = %v, want 60", got)
	}
}

func TestAcquireScanError(t *testing.T) {
	boom := errors.New("scan boom")
	db := &fakeDB{rowScans: []func(dest ...any) error{
		func(...any) error { return boom },
	}}
	repo := NewPostgresLockRepository(db)

	if _, err := repo.Acquire(context.Background(), "orchestrator.pass", time.Minute); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestReleaseIsTokenChecked(t *testing.T) {
	db := &fakeDB{}
	repo := NewPostgresLockRepository(db)
	token := uuid.New()

	if err := repo.Release(context.Background(), "orchestrator.pass", token.String()); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if len(db.execSQL) != 1 || !strings.Contains(db.execSQL[0], "holder_token = $2") {
		t.Fatalf("execs = %v", db.execSQL)
	}
	if db.execArgs[0][1] != token {
		t.Fatalf("token arg = %v, want %v", db.execArgs[0][1], token)
	}
}

func TestReleaseEmptyTokenIsNoop(t *testing.T) {
	db := &fakeDB{}
	repo := NewPostgresLockRepository(db)

	if err := repo.Release(context.Background(), "orchestrator.pass", ""); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if len(db.execSQL) != 0 {
		t.Fatalf("execs = %v, want none", db.execSQL)
	}
}

func TestReleaseRejectsMalformedToken(t *testing.T) {
	db := &fakeDB{}
	repo := NewPostgresLockRepository(db)

	if err := repo.Release(context.Background(), "orchestrator.pass", "not-a-uuid"); err == nil {
		t.Fatal("expected error for malformed token")
	}
	if len(db.execSQL) != 0 {
		t.Fatalf("execs = %v, want none", db.execSQL)
	}
}
