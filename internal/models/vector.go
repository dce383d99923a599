package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// VectorDocument is an embedded text indexed for similarity search.
type VectorDocument struct {
	ID        string     `gorm:"primaryKey;size:64" json:"id"`
	Kind      string     `gorm:"size:20;index" json:"kind"`
	Text      string     `json:"text"`
	Metadata  JSONMap    `gorm:"type:jsonb" json:"metadata"`
	Embedding FloatArray `gorm:"type:jsonb" json:"-"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type FloatArray []float32

func (fa FloatArray) Value() (driver.Value, error) {
	if len(fa) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(fa)
}

func (fa *FloatArray) Scan(value interface{}) error {
	data, err := jsonBytes(value)
	if err != nil || data == nil {
		*fa = nil
		return err
	}
	return json.Unmarshal(data, fa)
}

type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(value interface{}) error {
	data, err := jsonBytes(value)
	if err != nil || data == nil {
		*m = nil
		return err
	}
	return json.Unmarshal(data, m)
}

func jsonBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		if len(v) == 0 {
			return nil, nil
		}
		return v, nil
	case string:
		if v == "" {
			return nil, nil
		}
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported jsonb type %T", value)
	}
}
