package http

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"bookkeeping-go/internal/accounts"
	"bookkeeping-go/internal/auth"
	"bookkeeping-go/internal/config"
	"bookkeeping-go/internal/ingest"
	"bookkeeping-go/internal/insights"
	"bookkeeping-go/internal/logger"
	"bookkeeping-go/internal/matching"
	"bookkeeping-go/internal/models"
	"bookkeeping-go/internal/store"
	"bookkeeping-go/internal/vectorstore"
)

// Repository is the slice of the store the handlers read and write directly.
type Repository interface {
	GetUpload(ctx context.Context, userID, id uint) (*models.Upload, error)
	ListTransactions(ctx context.Context, userID uint, f store.TransactionFilter) ([]models.Transaction, error)
	GetTransaction(ctx context.Context, userID, id uint) (*models.Transaction, error)
	EnrichTransaction(ctx context.Context, t *models.Transaction) error
	ListAccounts(ctx context.Context, userID uint) ([]models.Account, error)
	GetAccount(ctx context.Context, userID, id uint) (*models.Account, error)
	CreateAccount(ctx context.Context, a *models.Account) error
	UpdateAccount(ctx context.Context, a *models.Account) error
	CreateUser(ctx context.Context, u *models.User) error
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserByUUID(ctx context.Context, uuid string) (*models.User, error)
}

type Processor interface {
	Process(ctx context.Context, sub ingest.Submission) ingest.Result
}

type Matcher interface {
	FindSimilar(ctx context.Context, userID uint, description, explanation string) ([]matching.SimilarTransaction, error)
	SuggestAccount(ctx context.Context, userID uint, description, explanation string) matching.Suggestion
	SuggestExplanation(ctx context.Context, userID uint, description string) matching.Suggestion
}

type Importer interface {
	Import(ctx context.Context, path string, userID uint) (accounts.Result, error)
}

type Insights interface {
	Summarize(ctx context.Context, userID uint, from, to *time.Time) (*insights.Report, error)
}

// Deps wires the server. Vectors and Gatherer are optional.
type Deps struct {
	Config    *config.Config
	Repo      Repository
	Processor Processor
	Matcher   Matcher
	Importer  Importer
	Insights  Insights
	Vectors   vectorstore.Store
	Tokens    *auth.Issuer
	Gatherer  prometheus.Gatherer
	Logger    zerolog.Logger
}

type Server struct {
	cfg       *config.Config
	repo      Repository
	processor Processor
	matcher   Matcher
	importer  Importer
	insights  Insights
	vectors   vectorstore.Store
	tokens    *auth.Issuer
}

func NewServer(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging(d.Logger))
	r.Use(cors(d.Config))

	s := &Server{
		cfg:       d.Config,
		repo:      d.Repo,
		processor: d.Processor,
		matcher:   d.Matcher,
		importer:  d.Importer,
		insights:  d.Insights,
		vectors:   d.Vectors,
		tokens:    d.Tokens,
	}

	r.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	// Auth
	r.POST("/api/auth/register", s.authRegister)
	r.POST("/api/auth/login", s.authLogin)

	authorized := r.Group("/api")
	authorized.Use(AuthMiddleware(d.Tokens, d.Repo))
	{
		authorized.POST("/uploads", s.handleUpload)
		authorized.GET("/uploads/:id", s.getUpload)

		authorized.GET("/transactions", s.listTransactions)
		authorized.PUT("/transactions/:id", s.enrichTransaction)

		authorized.POST("/suggestions/account", s.suggestAccount)
		authorized.POST("/suggestions/explanation", s.suggestExplanation)
		authorized.POST("/suggestions/similar", s.similarTransactions)

		authorized.GET("/accounts", s.listAccounts)
		authorized.POST("/accounts", s.createAccount)
		authorized.PUT("/accounts/:id", s.updateAccount)
		authorized.POST("/accounts/import", s.importAccounts)

		authorized.GET("/insights", s.getInsights)
	}
	return r
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(400, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

// parseDateQuery reads an optional YYYY-MM-DD query parameter.
func parseDateQuery(c *gin.Context, key string) (*time.Time, bool) {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return nil, true
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		c.JSON(400, gin.H{"error": "invalid " + key + ", expected YYYY-MM-DD"})
		return nil, false
	}
	return &t, true
}

func parseAmountQuery(c *gin.Context, key string) (*decimal.Decimal, bool) {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return nil, true
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		c.JSON(400, gin.H{"error": "invalid " + key})
		return nil, false
	}
	return &d, true
}

// uploadStatus maps a processing result to its HTTP status.
func uploadStatus(res ingest.Result) int {
	if res.Success {
		return 200
	}
	switch res.ErrorType {
	case "file_type":
		return 400
	case "db_error", "file_save_error", "unknown":
		return 500
	default:
		return 422
	}
}

// POST /api/uploads
func (s *Server) handleUpload(c *gin.Context) {
	userID := c.MustGet("userID").(uint)
	ctx := c.Request.Context()

	accountID, err := strconv.ParseUint(c.PostForm("account_id"), 10, 32)
	if err != nil || accountID == 0 {
		c.JSON(400, gin.H{"success": false, "error": "account_id is required"})
		return
	}
	if _, err := s.repo.GetAccount(ctx, userID, uint(accountID)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(404, gin.H{"success": false, "error": "account not found"})
			return
		}
		lg := logger.FromContext(ctx)
		lg.Error().Err(err).Msg("load upload account")
		c.JSON(500, gin.H{"success": false, "error": "db_error"})
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(400, gin.H{"success": false, "error": "no file provided"})
		return
	}
	if fh.Size > s.cfg.MaxUploadBytes() {
		c.JSON(413, gin.H{"success": false, "error": "file too large"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(400, gin.H{"success": false, "error": "failed to read file"})
		return
	}
	defer f.Close()

	res := s.processor.Process(ctx, ingest.Submission{
		Filename:  fh.Filename,
		Content:   io.LimitReader(f, s.cfg.MaxUploadBytes()),
		AccountID: uint(accountID),
		UserID:    userID,
	})
	c.JSON(uploadStatus(res), res)
}

// GET /api/uploads/:id
func (s *Server) getUpload(c *gin.Context) {
	userID := c.MustGet("userID").(uint)
	id, ok := parseID(c)
	if !ok {
		return
	}
	u, err := s.repo.GetUpload(c.Request.Context(), userID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(404, gin.H{"error": "upload not found"})
			return
		}
		c.JSON(500, gin.H{"error": "db_error"})
		return
	}
	c.JSON(200, u)
}

// GET /api/transactions
func (s *Server) listTransactions(c *gin.Context) {
	userID := c.MustGet("userID").(uint)

	var f store.TransactionFilter
	if v := c.Query("account_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "invalid account_id"})
			return
		}
		f.AccountID = uint(id)
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(400, gin.H{"error": "invalid limit"})
			return
		}
		f.Limit = n
	}
	var ok bool
	if f.From, ok = parseDateQuery(c, "start_date"); !ok {
		return
	}
	if f.To, ok = parseDateQuery(c, "end_date"); !ok {
		return
	}
	if f.MinAmount, ok = parseAmountQuery(c, "min_amount"); !ok {
		return
	}
	if f.MaxAmount, ok = parseAmountQuery(c, "max_amount"); !ok {
		return
	}

	txs, err := s.repo.ListTransactions(c.Request.Context(), userID, f)
	if err != nil {
		lg := logger.FromContext(c.Request.Context())
		lg.Error().Err(err).Msg("list transactions")
		c.JSON(500, gin.H{"error": "db_error"})
		return
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	c.JSON(200, txs)
}

// PUT /api/transactions/:id
//
// Only the enrichment fields can change; date, description and amount are
// fixed once a statement is imported.
func (s *Server) enrichTransaction(c *gin.Context) {
	userID := c.MustGet("userID").(uint)
	ctx := c.Request.Context()
	id, ok := parseID(c)
	if !ok {
		return
	}

	var input struct {
		Explanation *string `json:"explanation"`
		Category    *string `json:"category"`
		AccountID   *uint   `json:"account_id"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	t, err := s.repo.GetTransaction(ctx, userID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(404, gin.H{"error": "transaction not found"})
			return
		}
		c.JSON(500, gin.H{"error": "db_error"})
		return
	}

	if input.Explanation != nil {
		t.Explanation = trimmedOrNil(*input.Explanation)
	}
	if input.Category != nil {
		t.Category = trimmedOrNil(*input.Category)
	}
	if input.AccountID != nil {
		if _, err := s.repo.GetAccount(ctx, userID, *input.AccountID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(400, gin.H{"error": "unknown account_id"})
				return
			}
			lg := logger.FromContext(ctx)
			lg.Error().Err(err).Uint("account_id", *input.AccountID).Msg("load enrichment account")
			c.JSON(500, gin.H{"error": "db_error"})
			return
		}
		t.AccountID = *input.AccountID
	}

	if err := s.repo.EnrichTransaction(ctx, t); err != nil {
		lg := logger.FromContext(ctx)
		lg.Error().Err(err).Uint("transaction_id", t.ID).Msg("enrich transaction")
		c.JSON(500, gin.H{"error": "db_error"})
		return
	}

	if s.vectors != nil {
		if err := vectorstore.AddTransaction(ctx, s.vectors, *t); err != nil {
			lg := logger.FromContext(ctx)
			lg.Warn().Err(err).Uint("transaction_id", t.ID).Msg("index transaction")
		}
	}
	c.JSON(200, t)
}

func trimmedOrNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
