package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bookkeeping-go/internal/ai"
	"bookkeeping-go/internal/models"
)

const (
	KindTransaction = "transaction"
	KindAccount     = "account"
)

type Match struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
	Score    float64        `json:"score"`
}

// Store is a similarity-search service over embedded texts.
type Store interface {
	Upsert(ctx context.Context, id, text string, metadata map[string]any) error
	Query(ctx context.Context, text string, filter map[string]any, limit int) ([]Match, error)
	Delete(ctx context.Context, id string) error
}

// PGStore keeps embeddings as jsonb next to the rest of the data and ranks
// candidates in process. Filtering uses jsonb containment on metadata.
type PGStore struct {
	db       *gorm.DB
	embedder ai.Embedder
	log      zerolog.Logger
}

func NewPGStore(db *gorm.DB, embedder ai.Embedder, log zerolog.Logger) *PGStore {
	return &PGStore{db: db, embedder: embedder, log: log.With().Str("component", "vectorstore").Logger()}
}

func (s *PGStore) Upsert(ctx context.Context, id, text string, metadata map[string]any) error {
	if s.embedder == nil {
		return ai.ErrNotConfigured
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed %s: %w", id, err)
	}

	kind, _ := metadata["kind"].(string)
	doc := models.VectorDocument{
		ID:        id,
		Kind:      kind,
		Text:      text,
		Metadata:  models.JSONMap(metadata),
		Embedding: models.FloatArray(vec),
		UpdatedAt: time.Now(),
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"kind", "text", "metadata", "embedding", "updated_at"}),
	}).Create(&doc).Error
	if err != nil {
		return fmt.Errorf("upsert vector %s: %w", id, err)
	}
	return nil
}

func (s *PGStore) Query(ctx context.Context, text string, filter map[string]any, limit int) ([]Match, error) {
	if s.embedder == nil {
		return nil, ai.ErrNotConfigured
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	q := s.db.WithContext(ctx).Model(&models.VectorDocument{})
	if len(filter) > 0 {
		b, err := json.Marshal(filter)
		if err != nil {
			return nil, fmt.Errorf("encode filter: %w", err)
		}
		q = q.Where("metadata @> ?", string(b))
	}
	var docs []models.VectorDocument
	if err := q.Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("load vectors: %w", err)
	}
	return Rank(vec, docs, limit), nil
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&models.VectorDocument{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete vector %s: %w", id, err)
	}
	return nil
}

// Rank orders docs by cosine similarity to query and keeps the top limit.
// A non-positive limit keeps everything.
func Rank(query []float32, docs []models.VectorDocument, limit int) []Match {
	out := make([]Match, 0, len(docs))
	for _, d := range docs {
		out = append(out, Match{
			ID:       d.ID,
			Text:     d.Text,
			Metadata: map[string]any(d.Metadata),
			Score:    Cosine(query, d.Embedding),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Cosine similarity of two embedding vectors. Mismatched or zero vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// AddTransaction indexes the explanation of t. A transaction without one is
// removed from the index instead.
func AddTransaction(ctx context.Context, s Store, t models.Transaction) error {
	id := fmt.Sprintf("tx:%d", t.ID)
	explanation := strings.TrimSpace(t.ExplanationText())
	if explanation == "" {
		return s.Delete(ctx, id)
	}
	return s.Upsert(ctx, id, explanation, map[string]any{
		"kind":           KindTransaction,
		"user_id":        t.UserID,
		"account_id":     t.AccountID,
		"transaction_id": t.ID,
		"description":    t.Description,
		"date":           t.Date.Format("2006-01-02"),
	})
}

// AddAccount indexes an active account. A deactivated one is removed so it
// is never suggested.
func AddAccount(ctx context.Context, s Store, a models.Account) error {
	id := fmt.Sprintf("acct:%d", a.ID)
	if !a.IsActive {
		return s.Delete(ctx, id)
	}
	text := strings.TrimSpace(strings.Join([]string{a.Name, a.Category, a.SubCategory}, " "))
	return s.Upsert(ctx, id, text, map[string]any{
		"kind":       KindAccount,
		"user_id":    a.UserID,
		"account_id": a.ID,
		"name":       a.Name,
		"category":   a.Category,
	})
}
