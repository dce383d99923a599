package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"bookkeeping-go/internal/models"
	"bookkeeping-go/internal/store"
)

type fakeStore struct {
	uploads map[uint]*models.Upload
	files   []models.UploadedFile
	saved   []models.Transaction
	nextID  uint

	createUploadErr error
	createFileErr   error
	saveErr         error
	panicOnSave     bool
	savedFiles      []string
	dir             string
}

func newFakeStore() *fakeStore {
	return &fakeStore{uploads: map[uint]*models.Upload{}}
}

func (f *fakeStore) id() uint {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) CreateUpload(ctx context.Context, u *models.Upload) error {
	if f.createUploadErr != nil {
		return f.createUploadErr
	}
	u.ID = f.id()
	u.Status = models.UploadProcessing
	cp := *u
	f.uploads[u.ID] = &cp
	return nil
}

func (f *fakeStore) CreateFile(ctx context.Context, file *models.UploadedFile) error {
	if f.createFileErr != nil {
		return f.createFileErr
	}
	file.ID = f.id()
	f.files = append(f.files, *file)
	return nil
}

func (f *fakeStore) FinishUpload(ctx context.Context, id uint, status, message string) error {
	u, ok := f.uploads[id]
	if !ok {
		return store.ErrNotFound
	}
	if u.Terminal() {
		return store.ErrInvalidTransition
	}
	u.Status, u.Message = status, message
	return nil
}

func (f *fakeStore) SaveTransactions(ctx context.Context, txs []models.Transaction) error {
	if f.dir != "" {
		entries, _ := os.ReadDir(f.dir)
		for _, e := range entries {
			f.savedFiles = append(f.savedFiles, e.Name())
		}
	}
	if f.panicOnSave {
		panic("boom")
	}
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, txs...)
	return nil
}

func (f *fakeStore) onlyUpload(t *testing.T) *models.Upload {
	t.Helper()
	if len(f.uploads) != 1 {
		t.Fatalf("got %d uploads, want 1", len(f.uploads))
	}
	for _, u := range f.uploads {
		return u
	}
	return nil
}

func newProcessor(t *testing.T, st Store) (*Processor, string) {
	t.Helper()
	dir := t.TempDir()
	return NewProcessor(st, Options{UploadDir: dir, Logger: zerolog.Nop()}), dir
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("temporary files left behind: %d", len(entries))
	}
}

func xlsxReader(t *testing.T, rows [][]interface{}) io.Reader {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write xlsx: %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}

func TestProcessXLSXSuccess(t *testing.T) {
	st := newFakeStore()
	p, dir := newProcessor(t, st)
	st.dir = dir

	rows := [][]interface{}{{"Date", "Description", "Amount", "Category"}}
	for i := 1; i <= 5; i++ {
		rows = append(rows, []interface{}{fmt.Sprintf("2024-01-0%d", i), fmt.Sprintf("Purchase %d", i), fmt.Sprintf("-%d.25", i), "Food"})
	}

	res := p.Process(context.Background(), Submission{
		Filename:  "January.XLSX",
		Content:   xlsxReader(t, rows),
		AccountID: 7,
		UserID:    3,
	})

	if !res.Success || res.Message != "File processed successfully" || res.TransactionsProcessed != 5 {
		t.Fatalf("result = %+v", res)
	}
	if len(st.saved) != 5 {
		t.Fatalf("saved %d transactions", len(st.saved))
	}
	for _, tx := range st.saved {
		if tx.FileID != res.FileID || tx.AccountID != 7 || tx.UserID != 3 {
			t.Errorf("transaction not linked: %+v", tx)
		}
	}
	if got := st.saved[2].Amount.String(); got != "-3.25" {
		t.Errorf("amount = %s", got)
	}
	if !st.saved[0].Date.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date = %v", st.saved[0].Date)
	}

	u := st.onlyUpload(t)
	if u.Status != models.UploadSuccess || u.Message != "Successfully processed 5 transactions" {
		t.Errorf("upload = %+v", u)
	}
	if res.UploadID != u.ID {
		t.Errorf("upload id = %d, want %d", res.UploadID, u.ID)
	}
	if len(st.savedFiles) != 1 || !strings.HasSuffix(st.savedFiles[0], ".xlsx") {
		t.Errorf("temporary file during processing = %v", st.savedFiles)
	}
	assertEmptyDir(t, dir)
}

func TestProcessBadAmountFailsWholeBatch(t *testing.T) {
	st := newFakeStore()
	p, dir := newProcessor(t, st)

	csv := "Date,Description,Amount\n2024-01-01,Coffee,-4.50\n2024-01-02,Salary,abc\n2024-01-03,Rent,-1200\n"
	res := p.Process(context.Background(), Submission{Filename: "statement.csv", Content: strings.NewReader(csv), AccountID: 1, UserID: 1})

	if res.Success {
		t.Fatalf("expected failure, got %+v", res)
	}
	if res.ErrorType != "processing_error" || res.ErrorDetail != "invalid_amount" {
		t.Errorf("error type = %q detail = %q", res.ErrorType, res.ErrorDetail)
	}
	if !strings.Contains(res.Error, "row 2") {
		t.Errorf("error message should name the row: %q", res.Error)
	}
	if len(st.saved) != 0 {
		t.Errorf("persisted %d transactions, want 0", len(st.saved))
	}
	u := st.onlyUpload(t)
	if u.Status != models.UploadError || u.Message != res.Error {
		t.Errorf("upload = %+v", u)
	}
	assertEmptyDir(t, dir)
}

func TestProcessUnsupportedExtension(t *testing.T) {
	st := newFakeStore()
	p, dir := newProcessor(t, st)

	res := p.Process(context.Background(), Submission{Filename: "statement.pdf", Content: strings.NewReader("%PDF"), UserID: 1})

	if res.Success || res.ErrorType != "file_type" {
		t.Fatalf("result = %+v", res)
	}
	if res.Error != "Please upload only Excel (.xlsx) or CSV (.csv) files." {
		t.Errorf("message = %q", res.Error)
	}
	if len(st.files) != 0 {
		t.Errorf("file record created for rejected upload")
	}
	if res.FileID != 0 {
		t.Errorf("file id = %d", res.FileID)
	}
	if u := st.onlyUpload(t); u.Status != models.UploadError {
		t.Errorf("status = %s", u.Status)
	}
	assertEmptyDir(t, dir)
}

func TestProcessValidationErrors(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantType   string
		wantDetail string
	}{
		{"missing column", "Date,Description\n2024-01-01,x\n", "processing_error", "missing_columns"},
		{"bad date", "Date,Description,Amount\nsomeday,x,1\n", "processing_error", "invalid_date"},
		{"amount too large", "Date,Description,Amount\n2024-01-01,x,1\n2024-01-02,y,12345678901.00\n", "processing_error", "invalid_amount"},
		{"empty file", "", "empty_file", "empty_file"},
		{"header only", "Date,Description,Amount\n", "empty_file", "empty_file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newFakeStore()
			p, dir := newProcessor(t, st)
			res := p.Process(context.Background(), Submission{Filename: "s.csv", Content: strings.NewReader(tt.content), UserID: 1})
			if res.Success || res.ErrorType != tt.wantType || res.ErrorDetail != tt.wantDetail {
				t.Fatalf("result = %+v", res)
			}
			if st.onlyUpload(t).Status != models.UploadError {
				t.Error("upload should be in error")
			}
			assertEmptyDir(t, dir)
		})
	}
}

func TestProcessSaveFailure(t *testing.T) {
	st := newFakeStore()
	st.saveErr = errors.New("deadlock detected")
	p, dir := newProcessor(t, st)

	res := p.Process(context.Background(), Submission{Filename: "s.csv", Content: strings.NewReader("Date,Description,Amount\n2024-01-01,x,1\n"), UserID: 1})
	if res.Success || res.ErrorType != "db_error" {
		t.Fatalf("result = %+v", res)
	}
	if strings.Contains(res.Error, "deadlock") {
		t.Errorf("internal error leaked: %q", res.Error)
	}
	if st.onlyUpload(t).Status != models.UploadError {
		t.Error("upload should be in error")
	}
	assertEmptyDir(t, dir)
}

func TestProcessCreateUploadFailure(t *testing.T) {
	st := newFakeStore()
	st.createUploadErr = errors.New("connection refused")
	p, _ := newProcessor(t, st)

	res := p.Process(context.Background(), Submission{Filename: "s.csv", Content: strings.NewReader("x"), UserID: 1})
	if res.Success || res.ErrorType != "db_error" || res.UploadID != 0 {
		t.Fatalf("result = %+v", res)
	}
}

func TestProcessCreateFileFailure(t *testing.T) {
	st := newFakeStore()
	st.createFileErr = errors.New("connection reset")
	p, _ := newProcessor(t, st)

	res := p.Process(context.Background(), Submission{Filename: "s.csv", Content: strings.NewReader("x"), UserID: 1})
	if res.Success || res.ErrorType != "db_error" {
		t.Fatalf("result = %+v", res)
	}
	if st.onlyUpload(t).Status != models.UploadError {
		t.Error("upload should be in error")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("client went away") }

func TestProcessFileSaveFailure(t *testing.T) {
	st := newFakeStore()
	p, dir := newProcessor(t, st)

	res := p.Process(context.Background(), Submission{Filename: "s.csv", Content: failingReader{}, UserID: 1})
	if res.Success || res.ErrorType != "file_save_error" {
		t.Fatalf("result = %+v", res)
	}
	assertEmptyDir(t, dir)
}

func TestProcessRecoversPanic(t *testing.T) {
	st := newFakeStore()
	st.panicOnSave = true
	p, dir := newProcessor(t, st)
	st.dir = dir

	res := p.Process(context.Background(), Submission{Filename: "s.csv", Content: strings.NewReader("Date,Description,Amount\n2024-01-01,x,1\n"), UserID: 1})
	if res.Success || res.ErrorType != "unknown" {
		t.Fatalf("result = %+v", res)
	}
	if len(st.savedFiles) != 1 {
		t.Fatalf("expected the temporary file to exist during save, saw %v", st.savedFiles)
	}
	if st.onlyUpload(t).Status != models.UploadError {
		t.Error("upload should be in error")
	}
	assertEmptyDir(t, dir)
}

func TestCleanupIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/x.csv"
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := Cleanup(path); err != nil {
			t.Fatalf("Cleanup #%d: %v", i+1, err)
		}
	}
	if err := Cleanup(""); err != nil {
		t.Fatalf("Cleanup empty path: %v", err)
	}
}
