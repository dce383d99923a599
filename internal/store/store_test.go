package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"bookkeeping-go/internal/database"
	"bookkeeping-go/internal/models"
)

// setupTestStore connects to TEST_DATABASE_URL and skips when it is unset
// or unreachable.
func setupTestStore(t *testing.T) (*Store, uint) {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	s := New(db)
	user := &models.User{UUID: uuid.NewString(), Email: uuid.NewString() + "@example.com"}
	if err := s.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return s, user.ID
}

func TestFinishUploadTransitions(t *testing.T) {
	s, userID := setupTestStore(t)
	ctx := context.Background()

	u := &models.Upload{Filename: "jan.csv", UserID: userID}
	if err := s.CreateUpload(ctx, u); err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}
	if u.Status != models.UploadProcessing {
		t.Fatalf("status = %q", u.Status)
	}

	if err := s.FinishUpload(ctx, u.ID, models.UploadSuccess, "done"); err != nil {
		t.Fatalf("FinishUpload: %v", err)
	}
	err := s.FinishUpload(ctx, u.ID, models.UploadError, "again")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second finish = %v, want ErrInvalidTransition", err)
	}

	got, err := s.GetUpload(ctx, userID, u.ID)
	if err != nil {
		t.Fatalf("GetUpload: %v", err)
	}
	if got.Status != models.UploadSuccess || got.Message != "done" {
		t.Errorf("upload = %+v", got)
	}
}

func TestFinishUploadRejectsNonTerminalTarget(t *testing.T) {
	s := New(nil)
	for _, status := range []string{models.UploadProcessing, "", "done"} {
		err := s.FinishUpload(context.Background(), 1, status, "")
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("FinishUpload(%q) err = %v, want ErrInvalidTransition", status, err)
		}
	}
}

func TestSaveAndQueryTransactions(t *testing.T) {
	s, userID := setupTestStore(t)
	ctx := context.Background()

	explanation := "morning coffee"
	txs := []models.Transaction{
		{Date: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), Description: "Coffee", Amount: decimal.RequireFromString("-4.50"), UserID: userID, Explanation: &explanation},
		{Date: time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC), Description: "Salary", Amount: decimal.RequireFromString("2500"), UserID: userID},
	}
	if err := s.SaveTransactions(ctx, txs); err != nil {
		t.Fatalf("SaveTransactions: %v", err)
	}

	explained, err := s.ExplainedTransactions(ctx, userID)
	if err != nil {
		t.Fatalf("ExplainedTransactions: %v", err)
	}
	if len(explained) != 1 || explained[0].Description != "Coffee" {
		t.Errorf("explained = %+v", explained)
	}

	zero := decimal.Zero
	credits, err := s.ListTransactions(ctx, userID, TransactionFilter{MinAmount: &zero})
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(credits) != 1 || credits[0].Description != "Salary" {
		t.Errorf("credits = %+v", credits)
	}
}

func TestUpsertAccount(t *testing.T) {
	s, userID := setupTestStore(t)
	ctx := context.Background()

	created, err := s.UpsertAccount(ctx, &models.Account{UserID: userID, Name: "Cash", Category: models.CategoryAssets})
	if err != nil || !created {
		t.Fatalf("first upsert created=%v err=%v", created, err)
	}
	created, err = s.UpsertAccount(ctx, &models.Account{UserID: userID, Name: "Cash", Category: models.CategoryAssets, Code: "1000"})
	if err != nil || created {
		t.Fatalf("second upsert created=%v err=%v", created, err)
	}

	active, err := s.ActiveAccounts(ctx, userID)
	if err != nil {
		t.Fatalf("ActiveAccounts: %v", err)
	}
	if len(active) != 1 || active[0].Code != "1000" {
		t.Errorf("active = %+v", active)
	}
}
