package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bookkeeping-go/internal/apperr"
	"bookkeeping-go/internal/metrics"
	"bookkeeping-go/internal/models"
	"bookkeeping-go/internal/statement"
)

// Store is the persistence the processor needs.
type Store interface {
	CreateUpload(ctx context.Context, u *models.Upload) error
	CreateFile(ctx context.Context, f *models.UploadedFile) error
	FinishUpload(ctx context.Context, id uint, status, message string) error
	SaveTransactions(ctx context.Context, txs []models.Transaction) error
}

type Submission struct {
	Filename  string
	Content   io.Reader
	AccountID uint
	UserID    uint
}

type Result struct {
	Success               bool   `json:"success"`
	Message               string `json:"message,omitempty"`
	Error                 string `json:"error,omitempty"`
	ErrorType             string `json:"error_type,omitempty"`
	ErrorDetail           string `json:"error_detail,omitempty"`
	TransactionsProcessed int    `json:"transactions_processed,omitempty"`
	UploadID              uint   `json:"upload_id,omitempty"`
	FileID                uint   `json:"file_id,omitempty"`
}

type Options struct {
	UploadDir    string
	RejectFuture bool
	Now          func() time.Time
	Metrics      metrics.Collector
	Logger       zerolog.Logger
}

// Processor turns an uploaded statement into persisted transactions and keeps
// the upload record in step with the outcome.
type Processor struct {
	store   Store
	dir     string
	norm    statement.Options
	metrics metrics.Collector
	log     zerolog.Logger
}

func NewProcessor(store Store, opts Options) *Processor {
	if opts.UploadDir == "" {
		opts.UploadDir = os.TempDir()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoOpCollector{}
	}
	return &Processor{
		store:   store,
		dir:     opts.UploadDir,
		norm:    statement.Options{RejectFuture: opts.RejectFuture, Now: opts.Now},
		metrics: opts.Metrics,
		log:     opts.Logger.With().Str("component", "ingest").Logger(),
	}
}

// run holds the state of one Process call.
type run struct {
	upload *models.Upload
	file   *models.UploadedFile
	path   string
	rows   int
}

// Cleanup removes the temporary copy of the upload. It is safe to call more
// than once and on a run that never wrote a file.
func Cleanup(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Process runs the upload pipeline. It never panics and always returns a
// Result; the upload record ends in success or error unless it could not be
// created at all.
func (p *Processor) Process(ctx context.Context, sub Submission) (res Result) {
	start := time.Now()
	r := &run{}
	log := p.log.With().Uint("user_id", sub.UserID).Uint("account_id", sub.AccountID).Str("filename", sub.Filename).Logger()

	defer func() {
		if err := Cleanup(r.path); err != nil {
			log.Warn().Err(err).Str("path", r.path).Msg("remove temporary upload")
		}
	}()
	defer func() {
		if v := recover(); v != nil {
			res = p.fail(ctx, log, r, apperr.Newf(apperr.UnknownError, "panic: %v", v))
		}
		outcome := models.UploadSuccess
		if !res.Success {
			outcome = models.UploadError
		}
		p.metrics.RecordUpload(outcome, res.ErrorType, res.TransactionsProcessed, time.Since(start))
	}()

	if err := p.process(ctx, log, sub, r); err != nil {
		return p.fail(ctx, log, r, err)
	}

	msg := fmt.Sprintf("Successfully processed %d transactions", r.rows)
	if err := p.store.FinishUpload(ctx, r.upload.ID, models.UploadSuccess, msg); err != nil {
		return p.fail(ctx, log, r, apperr.Wrap(apperr.PersistenceError, err))
	}
	log.Info().Uint("upload_id", r.upload.ID).Int("rows", r.rows).Dur("took", time.Since(start)).Msg("upload processed")

	return Result{
		Success:               true,
		Message:               "File processed successfully",
		TransactionsProcessed: r.rows,
		UploadID:              r.upload.ID,
		FileID:                r.file.ID,
	}
}

func (p *Processor) process(ctx context.Context, log zerolog.Logger, sub Submission, r *run) error {
	r.upload = &models.Upload{Filename: sub.Filename, AccountID: sub.AccountID, UserID: sub.UserID}
	if err := p.store.CreateUpload(ctx, r.upload); err != nil {
		r.upload = nil
		return apperr.Wrap(apperr.PersistenceError, err)
	}

	if !statement.SupportedExtension(sub.Filename) {
		return apperr.Newf(apperr.UnsupportedFileType, "unsupported extension %q", filepath.Ext(sub.Filename))
	}

	r.file = &models.UploadedFile{UploadID: r.upload.ID, UserID: sub.UserID, Filename: sub.Filename}
	if err := p.store.CreateFile(ctx, r.file); err != nil {
		r.file = nil
		return apperr.Wrap(apperr.PersistenceError, err)
	}

	path, err := p.save(sub, r)
	if err != nil {
		return err
	}

	table, err := statement.Parse(path)
	if err != nil {
		return err
	}

	entries, err := statement.Normalize(table.Rows, p.norm)
	if err != nil {
		return err
	}

	txs := make([]models.Transaction, len(entries))
	for i, e := range entries {
		txs[i] = models.Transaction{
			Date:        e.Date,
			Description: e.Description,
			Amount:      e.Amount,
			Category:    e.Category,
			UserID:      sub.UserID,
			AccountID:   sub.AccountID,
			FileID:      r.file.ID,
		}
	}
	if err := p.store.SaveTransactions(ctx, txs); err != nil {
		return apperr.Wrap(apperr.PersistenceError, err)
	}
	r.rows = len(txs)
	log.Debug().Int("rows", r.rows).Uint("file_id", r.file.ID).Msg("transactions saved")
	return nil
}

// save copies the submission to UploadDir under a random name and records the
// path on r so the deferred cleanup sees it even when the copy fails halfway.
func (p *Processor) save(sub Submission, r *run) (string, error) {
	if sub.Content == nil {
		return "", apperr.New(apperr.FileSaveError, "no content")
	}
	name := uuid.NewString() + strings.ToLower(filepath.Ext(sub.Filename))
	path := filepath.Join(p.dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", apperr.Wrap(apperr.FileSaveError, err)
	}
	r.path = path

	if _, err := io.Copy(f, sub.Content); err != nil {
		f.Close()
		return "", apperr.Wrap(apperr.FileSaveError, err)
	}
	if err := f.Close(); err != nil {
		return "", apperr.Wrap(apperr.FileSaveError, err)
	}
	return path, nil
}

func (p *Processor) fail(ctx context.Context, log zerolog.Logger, r *run, err error) Result {
	kind := apperr.KindOf(err)
	msg := apperr.Message(err)

	ev := log.Error().Err(err).Str("kind", kind.String())
	if r.upload != nil {
		ev = ev.Uint("upload_id", r.upload.ID)
	}
	ev.Msg("upload failed")

	res := Result{
		Success:     false,
		Error:       msg,
		ErrorType:   kind.ErrorType(),
		ErrorDetail: kind.Code(),
	}
	if r.upload != nil {
		res.UploadID = r.upload.ID
		if ferr := p.store.FinishUpload(ctx, r.upload.ID, models.UploadError, msg); ferr != nil {
			log.Error().Err(ferr).Uint("upload_id", r.upload.ID).Msg("record upload failure")
		}
	}
	if r.file != nil {
		res.FileID = r.file.ID
	}
	return res
}
