package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/diewolke9/flo/internal/util"
)

// handlePing is a liveness check.
func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"pong": true})
}

// handleHealth returns relay health and host system information.
func (s *Server) handleHealth(c *gin.Context) {
	sysInfo := util.GetSystemInfo()

	resp := gin.H{
		"status":          "ok",
		"uptime_seconds":  int64(time.Since(s.startedAt).Seconds()),
		"active_sessions": s.manager.Count(),
		"system":          sysInfo,
	}

	if cpu, err := util.GetCPUUsage(); err == nil {
		resp["cpu_percent"] = cpu
	}
	if mem, err := util.GetMemoryUsage(); err == nil {
		resp["memory"] = mem
	}

	c.JSON(http.StatusOK, resp)
}

// handleSessions returns all currently active relay sessions.
func (s *Server) handleSessions(c *gin.Context) {
	sessions := s.manager.ActiveSessions()
	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"total":    len(sessions),
	})
}

// handleHistory returns recently completed sessions from the store.
func (s *Server) handleHistory(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session history is disabled"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	recs, err := s.store.Recent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records": recs,
		"count":   len(recs),
	})
}
