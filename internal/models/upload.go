package models

import "time"

const (
	UploadProcessing = "processing"
	UploadSuccess    = "success"
	UploadError      = "error"
)

type Upload struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Filename  string    `gorm:"size:255;not null" json:"filename"`
	AccountID uint      `gorm:"index" json:"account_id"`
	UserID    uint      `gorm:"index" json:"user_id"`
	Status    string    `gorm:"size:20;not null;default:processing" json:"status"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Terminal reports whether the upload has left the processing state.
func (u Upload) Terminal() bool {
	return u.Status == UploadSuccess || u.Status == UploadError
}

type UploadedFile struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UploadID  uint      `gorm:"index" json:"upload_id"`
	UserID    uint      `gorm:"index" json:"user_id"`
	Filename  string    `gorm:"size:255;not null" json:"filename"`
	CreatedAt time.Time `json:"created_at"`
}
