package http

import (
	"github.com/gin-gonic/gin"

	"bookkeeping-go/internal/logger"
)

// GET /api/insights?start_date=YYYY-MM-DD&end_date=YYYY-MM-DD
func (s *Server) getInsights(c *gin.Context) {
	userID := c.MustGet("userID").(uint)

	from, ok := parseDateQuery(c, "start_date")
	if !ok {
		return
	}
	to, ok := parseDateQuery(c, "end_date")
	if !ok {
		return
	}
	if from != nil && to != nil && to.Before(*from) {
		c.JSON(400, gin.H{"error": "end_date is before start_date"})
		return
	}

	report, err := s.insights.Summarize(c.Request.Context(), userID, from, to)
	if err != nil {
		lg := logger.FromContext(c.Request.Context())
		lg.Error().Err(err).Msg("summarize insights")
		c.JSON(500, gin.H{"error": "db_error"})
		return
	}
	c.JSON(200, report)
}
