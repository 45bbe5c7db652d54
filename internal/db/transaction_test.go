package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"
)

func TestWithRetry_RetriesOnBusy(t *testing.T) {
	ctx := context.Background()
	attempts := 0

	err := withRetry(ctx, 3, time.Millisecond, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("database is locked")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithRetry_StopsOnNonBusy(t *testing.T) {
	ctx := context.Background()
	attempts := 0

	err := withRetry(ctx, 3, time.Millisecond, func() error {
		attempts++
		return errors.New("boom")
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestWithRetry_StopsAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	attempts := 0

	err := withRetry(ctx, 2, time.Millisecond, func() error {
		attempts++
		return errors.New("database is busy")
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := OpenInMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if _, err := database.MigrateUp(context.Background()); err != nil {
		database.Close()
		t.Fatalf("migrate: %v", err)
	}
	return database
}

func TestWithRetry_HonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	attempts := 0

	err := withRetry(ctx, 3, time.Millisecond, func() error {
		attempts++
		return nil
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts != 0 {
		t.Fatalf("expected 0 attempts, got %d", attempts)
	}
}

func TestIsBusyError(t *testing.T) {
	cases := map[string]bool{
		"database is locked (5) (SQLITE_BUSY)": true,
		"Database Is Busy":                     true,
		"no such table: messages":              false,
	}
	for msg, want := range cases {
		if got := isBusyError(errors.New(msg)); got != want {
			t.Fatalf("isBusyError(%q) = %v, want %v", msg, got, want)
		}
	}
	if isBusyError(context.DeadlineExceeded) {
		t.Fatal("deadline must not be retried")
	}
}

func TestTransactionWithRetry(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	attempts := 0

	err := db.TransactionWithRetry(ctx, 3, time.Millisecond, func(tx *sql.Tx) error {
		attempts++
		if attempts < 2 {
			return errors.New("database is locked")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestTransactionRollsBackOnError(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	boom := errors.New("boom")
	err := db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO messages (id, sender, receiver, content, created_at) VALUES ('x', 'a', 'b', 'c', 1)`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	n, err := NewMessageRepository(db).Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected rollback, found %d messages", n)
	}
}
