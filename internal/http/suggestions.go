package http

import (
	"github.com/gin-gonic/gin"

	"bookkeeping-go/internal/logger"
	"bookkeeping-go/internal/matching"
)

type suggestionInput struct {
	Description string `json:"description" binding:"required"`
	Explanation string `json:"explanation"`
}

// POST /api/suggestions/account
func (s *Server) suggestAccount(c *gin.Context) {
	userID := c.MustGet("userID").(uint)
	var input suggestionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(400, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(200, s.matcher.SuggestAccount(c.Request.Context(), userID, input.Description, input.Explanation))
}

// POST /api/suggestions/explanation
func (s *Server) suggestExplanation(c *gin.Context) {
	userID := c.MustGet("userID").(uint)
	var input suggestionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(400, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(200, s.matcher.SuggestExplanation(c.Request.Context(), userID, input.Description))
}

// POST /api/suggestions/similar
func (s *Server) similarTransactions(c *gin.Context) {
	userID := c.MustGet("userID").(uint)
	var input suggestionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(400, gin.H{"success": false, "error": err.Error()})
		return
	}

	matches, err := s.matcher.FindSimilar(c.Request.Context(), userID, input.Description, input.Explanation)
	if err != nil {
		lg := logger.FromContext(c.Request.Context())
		lg.Error().Err(err).Msg("find similar transactions")
		c.JSON(500, gin.H{"success": false, "error": "db_error"})
		return
	}
	if matches == nil {
		matches = []matching.SimilarTransaction{}
	}
	c.JSON(200, gin.H{"success": true, "matches": matches})
}
