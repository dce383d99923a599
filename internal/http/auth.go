package http

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bookkeeping-go/internal/auth"
	"bookkeeping-go/internal/logger"
	"bookkeeping-go/internal/models"
	"bookkeeping-go/internal/store"
)

// Auth Response Wrapper
type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// POST /api/auth/register
func (s *Server) authRegister(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
		Username string `json:"username"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	user := models.User{
		UUID:         uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		Username:     strings.TrimSpace(input.Username),
		PasswordHash: hash,
	}
	if err := s.repo.CreateUser(c.Request.Context(), &user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			c.JSON(409, gin.H{"error": "user_already_exists"})
			return
		}
		lg := logger.FromContext(c.Request.Context())
		lg.Error().Err(err).Msg("create user")
		c.JSON(500, gin.H{"error": "db_error"})
		return
	}

	s.respondWithToken(c, 201, &user)
}

// POST /api/auth/login
func (s *Server) authLogin(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	user, err := s.repo.UserByEmail(c.Request.Context(), strings.TrimSpace(input.Email))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			lg := logger.FromContext(c.Request.Context())
			lg.Error().Err(err).Msg("load user")
		}
		c.JSON(401, gin.H{"error": "invalid_credentials"})
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, input.Password); err != nil {
		c.JSON(401, gin.H{"error": "invalid_credentials"})
		return
	}

	s.respondWithToken(c, 200, user)
}

func (s *Server) respondWithToken(c *gin.Context, status int, user *models.User) {
	token, err := s.tokens.Issue(user.UUID)
	if err != nil {
		lg := logger.FromContext(c.Request.Context())
		lg.Error().Err(err).Msg("issue token")
		c.JSON(500, gin.H{"error": "token_error"})
		return
	}
	c.JSON(status, AuthResponse{Token: token, User: user})
}
