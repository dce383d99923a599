package matching

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"bookkeeping-go/internal/ai"
	"bookkeeping-go/internal/metrics"
	"bookkeeping-go/internal/models"
	"bookkeeping-go/internal/vectorstore"
)

//go:embed prompts/account.txt
var accountPrompt string

//go:embed prompts/explanation.txt
var explanationPrompt string

//go:embed prompts/account_suggestion.schema.json
var accountSuggestionSchema []byte

const (
	SourceHistorical = "historical_data"
	SourceAI         = "ai_generated"
	SourceBasic      = "basic_matching"
	SourceVector     = "vector_similarity"

	aiExplanationConfidence = 0.7
	vectorQueryLimit        = 100
	accountQueryLimit       = 5
	// Weaker account matches are left to the name comparison.
	minAccountVectorScore = 0.5
)

// Repository is the read side the matcher scans.
type Repository interface {
	ExplainedTransactions(ctx context.Context, userID uint) ([]models.Transaction, error)
	ActiveAccounts(ctx context.Context, userID uint) ([]models.Account, error)
}

type VectorSearcher interface {
	Query(ctx context.Context, text string, filter map[string]any, limit int) ([]vectorstore.Match, error)
}

type Options struct {
	// Completer and Embedder are optional; nil means the capability is absent.
	Completer ai.Completer
	Embedder  ai.Embedder
	// Vectors, when set, is searched first for queries with an explanation and
	// for account suggestions. The linear scan still runs when it fails or
	// finds nothing.
	Vectors VectorSearcher

	TextThreshold     float64
	SemanticThreshold float64

	Metrics metrics.Collector
	Logger  zerolog.Logger
}

// Matcher answers similarity queries over a user's history and chart of accounts.
// It never returns external-service failures to callers; they degrade to the
// next fallback.
type Matcher struct {
	repo      Repository
	completer ai.Completer
	embedder  ai.Embedder
	vectors   VectorSearcher
	decoder   *ai.SchemaDecoder

	textThreshold     float64
	semanticThreshold float64

	metrics metrics.Collector
	log     zerolog.Logger
}

func New(repo Repository, opts Options) (*Matcher, error) {
	decoder, err := ai.NewSchemaDecoder(accountSuggestionSchema)
	if err != nil {
		return nil, fmt.Errorf("account suggestion schema: %w", err)
	}
	if opts.TextThreshold == 0 {
		opts.TextThreshold = 0.70
	}
	if opts.SemanticThreshold == 0 {
		opts.SemanticThreshold = 0.95
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoOpCollector{}
	}
	return &Matcher{
		repo:              repo,
		completer:         opts.Completer,
		embedder:          opts.Embedder,
		vectors:           opts.Vectors,
		decoder:           decoder,
		textThreshold:     opts.TextThreshold,
		semanticThreshold: opts.SemanticThreshold,
		metrics:           opts.Metrics,
		log:               opts.Logger.With().Str("component", "matching").Logger(),
	}, nil
}

type SimilarTransaction struct {
	TransactionID      uint      `json:"transaction_id"`
	Description        string    `json:"description"`
	Explanation        string    `json:"explanation"`
	AccountID          uint      `json:"account_id,omitempty"`
	Date               time.Time `json:"date"`
	TextSimilarity     float64   `json:"text_similarity"`
	SemanticSimilarity float64   `json:"semantic_similarity"`
	SemanticAvailable  bool      `json:"semantic_available"`
}

// Suggestion is the ephemeral answer to an account or explanation query.
type Suggestion struct {
	Success     bool    `json:"success"`
	Account     string  `json:"account,omitempty"`
	AccountID   uint    `json:"account_id,omitempty"`
	Explanation string  `json:"explanation,omitempty"`
	Confidence  float64 `json:"confidence"`
	Reasoning   string  `json:"reasoning,omitempty"`
	Source      string  `json:"source,omitempty"`
	Message     string  `json:"message,omitempty"`
}

func failure(msg string) Suggestion {
	return Suggestion{Success: false, Message: msg}
}

// FindSimilar returns the user's explained transactions whose description is
// at least TextThreshold similar to description and whose explanation is at
// least SemanticThreshold similar to explanation. When no semantic score can
// be computed the semantic gate passes. Results are ordered by text
// similarity, most recent first on ties. A configured vector store is tried
// first; the linear scan over the user's history covers its errors and any
// transaction it has not indexed.
func (m *Matcher) FindSimilar(ctx context.Context, userID uint, description, explanation string) ([]SimilarTransaction, error) {
	explanation = strings.TrimSpace(explanation)

	if m.vectors != nil && explanation != "" {
		out, err := m.findWithVectors(ctx, userID, description, explanation)
		switch {
		case err != nil:
			m.log.Warn().Err(err).Msg("vector search failed, scanning history")
		case len(out) > 0:
			return out, nil
		default:
			m.log.Debug().Uint("user_id", userID).Msg("no vector candidates, scanning history")
		}
	}

	txs, err := m.repo.ExplainedTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find similar: %w", err)
	}

	var query []float32
	if m.embedder != nil && explanation != "" {
		if query, err = m.embedder.Embed(ctx, explanation); err != nil {
			m.log.Warn().Err(err).Msg("query embedding failed, semantic gate disabled")
			query = nil
		}
	}

	var out []SimilarTransaction
	for _, t := range txs {
		text := TextSimilarity(description, t.Description)
		if text < m.textThreshold {
			continue
		}

		semantic, available := 1.0, false
		if query != nil && t.ExplanationText() != "" {
			vec, err := m.embedder.Embed(ctx, t.ExplanationText())
			if err != nil {
				m.log.Warn().Err(err).Uint("transaction_id", t.ID).Msg("candidate embedding failed")
			} else {
				semantic, available = CosineSimilarity(query, vec), true
			}
		}
		if !available {
			m.log.Debug().Uint("transaction_id", t.ID).Msg("semantic score unavailable, gate passes")
		}
		if semantic < m.semanticThreshold {
			continue
		}

		out = append(out, SimilarTransaction{
			TransactionID:      t.ID,
			Description:        t.Description,
			Explanation:        t.ExplanationText(),
			AccountID:          t.AccountID,
			Date:               t.Date,
			TextSimilarity:     text,
			SemanticSimilarity: semantic,
			SemanticAvailable:  available,
		})
	}

	sortSimilar(out)
	return out, nil
}

func (m *Matcher) findWithVectors(ctx context.Context, userID uint, description, explanation string) ([]SimilarTransaction, error) {
	matches, err := m.vectors.Query(ctx, explanation, map[string]any{
		"user_id": userID,
		"kind":    vectorstore.KindTransaction,
	}, vectorQueryLimit)
	if err != nil {
		return nil, err
	}

	var out []SimilarTransaction
	for _, match := range matches {
		desc, _ := match.Metadata["description"].(string)
		text := TextSimilarity(description, desc)
		if text < m.textThreshold || match.Score < m.semanticThreshold {
			continue
		}
		st := SimilarTransaction{
			TransactionID:      metaUint(match.Metadata, "transaction_id"),
			Description:        desc,
			Explanation:        match.Text,
			AccountID:          metaUint(match.Metadata, "account_id"),
			TextSimilarity:     text,
			SemanticSimilarity: match.Score,
			SemanticAvailable:  true,
		}
		if d, ok := match.Metadata["date"].(string); ok {
			st.Date, _ = time.Parse("2006-01-02", d)
		}
		out = append(out, st)
	}
	sortSimilar(out)
	return out, nil
}

func sortSimilar(out []SimilarTransaction) {
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TextSimilarity != out[j].TextSimilarity {
			return out[i].TextSimilarity > out[j].TextSimilarity
		}
		return out[i].Date.After(out[j].Date)
	})
}

// metaUint reads a numeric id out of decoded JSON metadata.
func metaUint(meta map[string]any, key string) uint {
	switch v := meta[key].(type) {
	case float64:
		return uint(v)
	case uint:
		return v
	case int:
		return uint(v)
	}
	return 0
}

// SuggestAccount picks the best active account for a transaction. The AI
// suggestion is used when it names an active account. Next comes the closest
// active account in the vector index, and last the account whose
// "name category" text is most similar.
func (m *Matcher) SuggestAccount(ctx context.Context, userID uint, description, explanation string) Suggestion {
	accounts, err := m.repo.ActiveAccounts(ctx, userID)
	if err != nil {
		m.log.Error().Err(err).Uint("user_id", userID).Msg("load active accounts")
		return failure("Could not load accounts")
	}
	if len(accounts) == 0 {
		return failure("No active accounts found")
	}

	text := strings.TrimSpace(description)
	if e := strings.TrimSpace(explanation); e != "" {
		text += " - " + e
	}

	if m.completer != nil {
		if s, ok := m.aiAccount(ctx, text, accounts); ok {
			m.metrics.RecordSuggestion("suggest_account", SourceAI)
			return s
		}
	}

	if m.vectors != nil {
		if s, ok := m.vectorAccount(ctx, userID, text, accounts); ok {
			m.metrics.RecordSuggestion("suggest_account", SourceVector)
			return s
		}
	}

	s := BasicAccountMatch(text, accounts)
	if s.Success {
		m.metrics.RecordSuggestion("suggest_account", SourceBasic)
	}
	return s
}

func (m *Matcher) aiAccount(ctx context.Context, text string, accounts []models.Account) (Suggestion, bool) {
	var list strings.Builder
	for _, a := range accounts {
		fmt.Fprintf(&list, "- %s (Category: %s)\n", a.Name, a.Category)
	}

	raw, err := m.completer.Complete(ctx, ai.Request{
		System: "You are a financial account categorization expert.",
		Prompt: fmt.Sprintf(accountPrompt, text, list.String()),
		JSON:   true,
	})
	if err != nil {
		m.log.Warn().Err(err).Msg("ai account suggestion failed")
		return Suggestion{}, false
	}

	var reply struct {
		Account    string  `json:"account"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	}
	if err := m.decoder.Decode(raw, &reply); err != nil {
		m.log.Warn().Err(err).Msg("ai account suggestion rejected")
		return Suggestion{}, false
	}

	for _, a := range accounts {
		if strings.EqualFold(a.Name, strings.TrimSpace(reply.Account)) {
			return Suggestion{
				Success:    true,
				Account:    a.Name,
				AccountID:  a.ID,
				Confidence: reply.Confidence,
				Reasoning:  reply.Reasoning,
				Source:     SourceAI,
			}, true
		}
	}
	m.log.Warn().Str("account", reply.Account).Msg("ai suggested an unknown account")
	return Suggestion{}, false
}

func (m *Matcher) vectorAccount(ctx context.Context, userID uint, text string, accounts []models.Account) (Suggestion, bool) {
	matches, err := m.vectors.Query(ctx, text, map[string]any{
		"user_id": userID,
		"kind":    vectorstore.KindAccount,
	}, accountQueryLimit)
	if err != nil {
		m.log.Warn().Err(err).Msg("vector account search failed")
		return Suggestion{}, false
	}

	active := make(map[uint]*models.Account, len(accounts))
	for i := range accounts {
		active[accounts[i].ID] = &accounts[i]
	}

	var (
		best  *models.Account
		score float64
	)
	for _, match := range matches {
		a, ok := active[metaUint(match.Metadata, "account_id")]
		if !ok || match.Score < minAccountVectorScore {
			continue
		}
		if best == nil || match.Score > score {
			best, score = a, match.Score
		}
	}
	if best == nil {
		return Suggestion{}, false
	}

	return Suggestion{
		Success:    true,
		Account:    best.Name,
		AccountID:  best.ID,
		Confidence: score,
		Reasoning: strings.Join([]string{
			"Closest account in the vector index",
			fmt.Sprintf("Similarity score: %.2f", score),
			fmt.Sprintf("Matched against: %s (%s)", best.Name, best.Category),
		}, " | "),
		Source: SourceVector,
	}, true
}

// BasicAccountMatch returns the account whose "name category" string is most
// similar to text. The first account wins ties.
func BasicAccountMatch(text string, accounts []models.Account) Suggestion {
	var (
		best  *models.Account
		score float64
	)
	for i := range accounts {
		a := &accounts[i]
		sim := TextSimilarity(text, a.Name+" "+a.Category)
		if sim > score {
			best, score = a, sim
		}
	}
	if best == nil {
		return failure("No matching account found")
	}

	reasoning := strings.Join([]string{
		"Best text match with account name and category",
		fmt.Sprintf("Similarity score: %.2f", score),
		fmt.Sprintf("Matched against: %s (%s)", best.Name, best.Category),
	}, " | ")
	return Suggestion{
		Success:    true,
		Account:    best.Name,
		AccountID:  best.ID,
		Confidence: score,
		Reasoning:  reasoning,
		Source:     SourceBasic,
	}
}

// SuggestExplanation reuses the explanation of the most similar historical
// transaction, then asks the AI, then gives up.
func (m *Matcher) SuggestExplanation(ctx context.Context, userID uint, description string) Suggestion {
	similar, err := m.FindSimilar(ctx, userID, description, "")
	if err != nil {
		m.log.Error().Err(err).Uint("user_id", userID).Msg("find similar transactions")
	}
	if len(similar) > 0 {
		best := similar[0]
		m.metrics.RecordSuggestion("suggest_explanation", SourceHistorical)
		return Suggestion{
			Success:     true,
			Explanation: best.Explanation,
			Confidence:  best.TextSimilarity,
			Reasoning:   fmt.Sprintf("Matched previous transaction %q", best.Description),
			Source:      SourceHistorical,
		}
	}

	if m.completer != nil {
		raw, err := m.completer.Complete(ctx, ai.Request{
			System: "You are a financial transaction expert.",
			Prompt: fmt.Sprintf(explanationPrompt, description),
		})
		if err != nil {
			m.log.Warn().Err(err).Msg("ai explanation failed")
		} else if text := strings.TrimSpace(raw); text != "" {
			m.metrics.RecordSuggestion("suggest_explanation", SourceAI)
			return Suggestion{
				Success:     true,
				Explanation: text,
				Confidence:  aiExplanationConfidence,
				Source:      SourceAI,
			}
		}
	}

	return failure("No similar transactions found and AI unavailable")
}
