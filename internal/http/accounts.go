package http

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bookkeeping-go/internal/accounts"
	"bookkeeping-go/internal/apperr"
	"bookkeeping-go/internal/ingest"
	"bookkeeping-go/internal/logger"
	"bookkeeping-go/internal/models"
	"bookkeeping-go/internal/statement"
	"bookkeeping-go/internal/store"
	"bookkeeping-go/internal/vectorstore"
)

type accountInput struct {
	Name        *string `json:"name"`
	Category    *string `json:"category"`
	SubCategory *string `json:"sub_category"`
	Code        *string `json:"code"`
	Link        *string `json:"link"`
	IsActive    *bool   `json:"is_active"`
}

// apply copies the present fields of in onto a.
func (in accountInput) apply(a *models.Account) error {
	if in.Name != nil {
		a.Name = strings.TrimSpace(*in.Name)
	}
	if in.Category != nil {
		cat, ok := models.NormalizeAccountCategory(*in.Category)
		if !ok {
			return errors.New("category must be one of Assets, Liabilities, Equity, Income, Expenses")
		}
		a.Category = cat
	}
	if in.SubCategory != nil {
		a.SubCategory = strings.TrimSpace(*in.SubCategory)
	}
	if in.Code != nil {
		a.Code = strings.TrimSpace(*in.Code)
	}
	if in.Link != nil {
		a.Link = strings.TrimSpace(*in.Link)
	}
	if in.IsActive != nil {
		a.IsActive = *in.IsActive
	}
	if a.Name == "" {
		return errors.New("name is required")
	}
	if a.Category == "" {
		return errors.New("category is required")
	}
	return nil
}

// GET /api/accounts?active=true&bank=true
func (s *Server) listAccounts(c *gin.Context) {
	userID := c.MustGet("userID").(uint)
	list, err := s.repo.ListAccounts(c.Request.Context(), userID)
	if err != nil {
		lg := logger.FromContext(c.Request.Context())
		lg.Error().Err(err).Msg("list accounts")
		c.JSON(500, gin.H{"error": "db_error"})
		return
	}

	activeOnly := c.Query("active") == "true"
	bankOnly := c.Query("bank") == "true"
	out := make([]models.Account, 0, len(list))
	for _, a := range list {
		if activeOnly && !a.IsActive {
			continue
		}
		if bankOnly && !accounts.IsBankAccount(a) {
			continue
		}
		out = append(out, a)
	}
	c.JSON(200, out)
}

// POST /api/accounts
func (s *Server) createAccount(c *gin.Context) {
	userID := c.MustGet("userID").(uint)
	var input accountInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	a := models.Account{UserID: userID, IsActive: true}
	if err := input.apply(&a); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}
	if err := s.repo.CreateAccount(c.Request.Context(), &a); err != nil {
		s.accountWriteError(c, err)
		return
	}
	s.indexAccount(c, a)
	c.JSON(201, a)
}

// PUT /api/accounts/:id
func (s *Server) updateAccount(c *gin.Context) {
	userID := c.MustGet("userID").(uint)
	id, ok := parseID(c)
	if !ok {
		return
	}
	var input accountInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	a, err := s.repo.GetAccount(c.Request.Context(), userID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(404, gin.H{"error": "account not found"})
			return
		}
		c.JSON(500, gin.H{"error": "db_error"})
		return
	}
	if err := input.apply(a); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}
	if err := s.repo.UpdateAccount(c.Request.Context(), a); err != nil {
		s.accountWriteError(c, err)
		return
	}
	s.indexAccount(c, *a)
	c.JSON(200, a)
}

func (s *Server) accountWriteError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrDuplicate) {
		c.JSON(409, gin.H{"error": "an account with this name already exists"})
		return
	}
	lg := logger.FromContext(c.Request.Context())
	lg.Error().Err(err).Msg("save account")
	c.JSON(500, gin.H{"error": "db_error"})
}

func (s *Server) indexAccount(c *gin.Context, a models.Account) {
	if s.vectors == nil {
		return
	}
	if err := vectorstore.AddAccount(c.Request.Context(), s.vectors, a); err != nil {
		lg := logger.FromContext(c.Request.Context())
		lg.Warn().Err(err).Uint("account_id", a.ID).Msg("index account")
	}
}

// POST /api/accounts/import
func (s *Server) importAccounts(c *gin.Context) {
	userID := c.MustGet("userID").(uint)
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(400, gin.H{"success": false, "error": "no file provided"})
		return
	}
	if !statement.SupportedExtension(fh.Filename) {
		c.JSON(400, gin.H{"success": false, "error": apperr.Message(apperr.New(apperr.UnsupportedFileType, ""))})
		return
	}
	if fh.Size > s.cfg.MaxUploadBytes() {
		c.JSON(413, gin.H{"success": false, "error": "file too large"})
		return
	}

	path := filepath.Join(s.cfg.UploadDir, uuid.NewString()+strings.ToLower(filepath.Ext(fh.Filename)))
	defer func() {
		if err := ingest.Cleanup(path); err != nil {
			lg := logger.FromContext(c.Request.Context())
			lg.Warn().Err(err).Str("path", path).Msg("remove temporary chart")
		}
	}()
	if err := c.SaveUploadedFile(fh, path); err != nil {
		c.JSON(500, gin.H{"success": false, "error": apperr.Message(apperr.New(apperr.FileSaveError, ""))})
		return
	}

	res, err := s.importer.Import(c.Request.Context(), path, userID)
	if err != nil {
		status := 422
		if apperr.Is(err, apperr.PersistenceError) || apperr.Is(err, apperr.UnknownError) {
			status = 500
		}
		lg := logger.FromContext(c.Request.Context())
		lg.Error().Err(err).Msg("import chart of accounts")
		c.JSON(status, gin.H{"success": false, "error": apperr.Message(err), "error_type": apperr.KindOf(err).ErrorType()})
		return
	}
	c.JSON(200, gin.H{"success": true, "created": res.Created, "updated": res.Updated, "skipped": res.Skipped})
}
