package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"bookkeeping-go/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")

	// ErrInvalidTransition is returned when an upload that already reached a
	// terminal status is asked to change again.
	ErrInvalidTransition = errors.New("upload is no longer processing")
)

// Store is the gorm-backed repository for every persisted entity.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *gorm.DB { return s.db }

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// duplicate maps unique-constraint violations to ErrDuplicate. It relies on
// gorm's TranslateError being enabled on the connection.
func duplicate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

// Uploads

func (s *Store) CreateUpload(ctx context.Context, u *models.Upload) error {
	u.Status = models.UploadProcessing
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return fmt.Errorf("create upload: %w", err)
	}
	return nil
}

func (s *Store) CreateFile(ctx context.Context, f *models.UploadedFile) error {
	if err := s.db.WithContext(ctx).Create(f).Error; err != nil {
		return fmt.Errorf("create uploaded file: %w", err)
	}
	return nil
}

// FinishUpload moves a processing upload to success or error. The update is
// conditional on the current status so a terminal upload is never rewritten.
func (s *Store) FinishUpload(ctx context.Context, id uint, status, message string) error {
	if !(models.Upload{Status: status}).Terminal() {
		return fmt.Errorf("finish upload %d: %w: target status %q", id, ErrInvalidTransition, status)
	}
	res := s.db.WithContext(ctx).Model(&models.Upload{}).
		Where("id = ? AND status = ?", id, models.UploadProcessing).
		Updates(map[string]any{"status": status, "message": message})
	if res.Error != nil {
		return fmt.Errorf("finish upload %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("finish upload %d: %w", id, ErrInvalidTransition)
	}
	return nil
}

func (s *Store) GetUpload(ctx context.Context, userID, id uint) (*models.Upload, error) {
	var u models.Upload
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// Users

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return fmt.Errorf("create user: %w", duplicate(err))
	}
	return nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *Store) UserByUUID(ctx context.Context, uuid string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("uuid = ?", uuid).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}
