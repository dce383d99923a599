package insights

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"bookkeeping-go/internal/ai"
	"bookkeeping-go/internal/metrics"
	"bookkeeping-go/internal/models"
	"bookkeeping-go/internal/store"
)

//go:embed prompts/summary.txt
var summaryPrompt string

const (
	AnalysisAI    = "ai_powered"
	AnalysisBasic = "basic"

	topCategoryLimit = 5
	uncategorized    = "Uncategorized"
)

type Repository interface {
	ListTransactions(ctx context.Context, userID uint, f store.TransactionFilter) ([]models.Transaction, error)
}

type CategoryBreakdown struct {
	Category   string          `json:"category"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage float64         `json:"percentage"`
}

type MonthlyTotal struct {
	Month    string          `json:"month"`
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Net      decimal.Decimal `json:"net"`
}

type BehavioralInsight struct {
	AverageDailySpend decimal.Decimal `json:"average_daily_spend"`
	HighestSpendDay   string          `json:"highest_spend_day,omitempty"`
}

type ReviewItem struct {
	Type  string `json:"type"` // uncategorized, unexplained
	Count int    `json:"count"`
	Title string `json:"title"`
}

type InsightCard struct {
	Type        string `json:"type"` // info, warning, success
	Title       string `json:"title"`
	Description string `json:"description"`
}

type Summary struct {
	Income           decimal.Decimal     `json:"income"`
	Expenses         decimal.Decimal     `json:"expenses"`
	Net              decimal.Decimal     `json:"net"`
	SavingsRate      float64             `json:"savings_rate"`
	TransactionCount int                 `json:"transaction_count"`
	TopCategories    []CategoryBreakdown `json:"top_categories"`
	Monthly          []MonthlyTotal      `json:"monthly"`
	Behavior         BehavioralInsight   `json:"behavioral_insights"`
	ReviewItems      []ReviewItem        `json:"review_items"`
}

type Report struct {
	Summary
	AnalysisType string        `json:"analysis_type"`
	Narrative    string        `json:"narrative,omitempty"`
	Insights     []InsightCard `json:"insights"`
}

type Service struct {
	repo      Repository
	completer ai.Completer
	metrics   metrics.Collector
	log       zerolog.Logger
}

// NewService builds the insights service. completer may be nil.
func NewService(repo Repository, completer ai.Completer, m metrics.Collector, log zerolog.Logger) *Service {
	if m == nil {
		m = metrics.NoOpCollector{}
	}
	return &Service{
		repo:      repo,
		completer: completer,
		metrics:   m,
		log:       log.With().Str("component", "insights").Logger(),
	}
}

// Summarize reports on the user's transactions between from and to, either of
// which may be nil.
func (s *Service) Summarize(ctx context.Context, userID uint, from, to *time.Time) (*Report, error) {
	txs, err := s.repo.ListTransactions(ctx, userID, store.TransactionFilter{From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}

	r := &Report{Summary: Compute(txs), AnalysisType: AnalysisBasic}
	r.Insights = BasicInsights(r.Summary)

	if s.completer != nil && r.TransactionCount > 0 {
		if text, err := s.narrate(ctx, r.Summary); err != nil {
			s.log.Warn().Err(err).Uint("user_id", userID).Msg("ai insights failed, using basic analysis")
		} else {
			r.Narrative = text
			r.AnalysisType = AnalysisAI
		}
	}
	s.metrics.RecordSuggestion("insights", r.AnalysisType)
	return r, nil
}

func (s *Service) narrate(ctx context.Context, sum Summary) (string, error) {
	payload, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return "", err
	}
	text, err := s.completer.Complete(ctx, ai.Request{
		System: "You are a financial advisor for small businesses.",
		Prompt: fmt.Sprintf(summaryPrompt, payload),
	})
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("empty narrative")
	}
	return text, nil
}

// Compute aggregates txs. Positive amounts are income; negative amounts count
// toward expenses by absolute value.
func Compute(txs []models.Transaction) Summary {
	sum := Summary{
		Income:           decimal.Zero,
		Expenses:         decimal.Zero,
		TransactionCount: len(txs),
		TopCategories:    []CategoryBreakdown{},
		Monthly:          []MonthlyTotal{},
		ReviewItems:      []ReviewItem{},
	}

	byCategory := map[string]decimal.Decimal{}
	byMonth := map[string]*MonthlyTotal{}
	byWeekday := map[time.Weekday]decimal.Decimal{}
	var first, last time.Time
	var noCategory, noExplanation int

	for _, t := range txs {
		month := t.Date.Format("2006-01")
		m, ok := byMonth[month]
		if !ok {
			m = &MonthlyTotal{Month: month, Income: decimal.Zero, Expenses: decimal.Zero}
			byMonth[month] = m
		}

		switch {
		case t.IsCredit():
			sum.Income = sum.Income.Add(t.Amount)
			m.Income = m.Income.Add(t.Amount)
		case t.IsDebit():
			spent := t.Amount.Abs()
			sum.Expenses = sum.Expenses.Add(spent)
			m.Expenses = m.Expenses.Add(spent)
			cat := uncategorized
			if t.Category != nil && strings.TrimSpace(*t.Category) != "" {
				cat = strings.TrimSpace(*t.Category)
			}
			byCategory[cat] = byCategory[cat].Add(spent)
			byWeekday[t.Date.Weekday()] = byWeekday[t.Date.Weekday()].Add(spent)
		}

		if first.IsZero() || t.Date.Before(first) {
			first = t.Date
		}
		if t.Date.After(last) {
			last = t.Date
		}
		if t.Category == nil || strings.TrimSpace(*t.Category) == "" {
			noCategory++
		}
		if t.ExplanationText() == "" {
			noExplanation++
		}
	}

	sum.Net = sum.Income.Sub(sum.Expenses)
	if sum.Income.IsPositive() {
		sum.SavingsRate = sum.Net.Div(sum.Income).Mul(decimal.NewFromInt(100)).Round(1).InexactFloat64()
		if sum.SavingsRate < 0 {
			sum.SavingsRate = 0
		}
	}

	for cat, amt := range byCategory {
		sum.TopCategories = append(sum.TopCategories, CategoryBreakdown{
			Category:   cat,
			Amount:     amt,
			Percentage: share(amt, sum.Expenses),
		})
	}
	sort.Slice(sum.TopCategories, func(i, j int) bool {
		a, b := sum.TopCategories[i], sum.TopCategories[j]
		if !a.Amount.Equal(b.Amount) {
			return a.Amount.GreaterThan(b.Amount)
		}
		return a.Category < b.Category
	})
	if len(sum.TopCategories) > topCategoryLimit {
		sum.TopCategories = sum.TopCategories[:topCategoryLimit]
	}

	for _, m := range byMonth {
		m.Net = m.Income.Sub(m.Expenses)
		sum.Monthly = append(sum.Monthly, *m)
	}
	sort.Slice(sum.Monthly, func(i, j int) bool { return sum.Monthly[i].Month < sum.Monthly[j].Month })

	sum.Behavior.AverageDailySpend = decimal.Zero
	if len(txs) > 0 {
		days := int64(last.Sub(first).Hours()/24) + 1
		sum.Behavior.AverageDailySpend = sum.Expenses.Div(decimal.NewFromInt(days)).Round(2)
	}
	var highest decimal.Decimal
	for day, amt := range byWeekday {
		if amt.GreaterThan(highest) || (amt.Equal(highest) && day.String() < sum.Behavior.HighestSpendDay) {
			highest = amt
			sum.Behavior.HighestSpendDay = day.String()
		}
	}

	if noCategory > 0 {
		sum.ReviewItems = append(sum.ReviewItems, ReviewItem{Type: "uncategorized", Count: noCategory, Title: "Uncategorized Transactions"})
	}
	if noExplanation > 0 {
		sum.ReviewItems = append(sum.ReviewItems, ReviewItem{Type: "unexplained", Count: noExplanation, Title: "Transactions Without Explanation"})
	}
	return sum
}

func share(part, whole decimal.Decimal) float64 {
	if !whole.IsPositive() {
		return 0
	}
	return part.Div(whole).Mul(decimal.NewFromInt(100)).Round(1).InexactFloat64()
}

// BasicInsights derives rule-based cards from a summary.
func BasicInsights(sum Summary) []InsightCard {
	cards := []InsightCard{}
	if sum.TransactionCount == 0 {
		return append(cards, InsightCard{
			Type:        "info",
			Title:       "No Transactions",
			Description: "Upload a bank statement to see insights for this period.",
		})
	}

	switch {
	case !sum.Income.IsPositive() && sum.Expenses.IsPositive():
		cards = append(cards, InsightCard{
			Type:        "warning",
			Title:       "No Income Recorded",
			Description: "Only expenses were recorded in this period.",
		})
	case sum.SavingsRate < 10:
		cards = append(cards, InsightCard{
			Type:        "warning",
			Title:       "Low Savings Rate",
			Description: "Your savings rate is below 10%. Consider reviewing non-essential expenses.",
		})
	case sum.SavingsRate >= 20:
		cards = append(cards, InsightCard{
			Type:        "success",
			Title:       "Healthy Savings",
			Description: fmt.Sprintf("You kept %.1f%% of your income this period.", sum.SavingsRate),
		})
	}

	if len(sum.TopCategories) > 0 && sum.TopCategories[0].Percentage > 30 {
		top := sum.TopCategories[0]
		cards = append(cards, InsightCard{
			Type:        "info",
			Title:       "High Category Spend",
			Description: fmt.Sprintf("%s accounts for %.0f%% of your spending.", top.Category, top.Percentage),
		})
	}

	for _, item := range sum.ReviewItems {
		if item.Type == "uncategorized" {
			cards = append(cards, InsightCard{
				Type:        "info",
				Title:       item.Title,
				Description: fmt.Sprintf("%d transactions have no category.", item.Count),
			})
		}
	}
	return cards
}
