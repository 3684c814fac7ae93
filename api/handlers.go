package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleStart(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()
	s.ctrl.Start(ctx)
	c.JSON(http.StatusOK, gin.H{"status": "started"})
}

func (s *Server) handleStop(c *gin.Context) {
	s.ctrl.Stop()
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

func (s *Server) handlePause(c *gin.Context) {
	s.ctrl.Pause()
	c.JSON(http.StatusOK, gin.H{"status": "paused"})
}

func (s *Server) handleResume(c *gin.Context) {
	s.ctrl.Resume()
	c.JSON(http.StatusOK, gin.H{"status": "resumed"})
}

type setModeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

func (s *Server) handleSetMode(c *gin.Context) {
	var req setModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.ctrl.SetMode(req.Mode); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"mode": req.Mode})
}

func (s *Server) handleUpdateSettings(c *gin.Context) {
	var settings map[string]float64
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.ctrl.UpdateSettings(settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "settings_applied"})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"circuit_state": s.ctrl.State()})
}

type emergencyRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// handleEmergencyStop trips the breaker and closes every open position;
// this is the hard-stop path, gated behind JWT+TOTP.
func (s *Server) handleEmergencyStop(c *gin.Context) {
	var req emergencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()
	closed, err := s.ctrl.CloseAllPositions(ctx, req.Reason)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.ctrl.Stop()
	c.JSON(http.StatusOK, gin.H{"status": "emergency_stopped", "positions_closed": closed})
}

func (s *Server) handleCloseAll(c *gin.Context) {
	var req emergencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req.Reason = "operator_close_all"
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()
	closed, err := s.ctrl.CloseAllPositions(ctx, req.Reason)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "closed_all", "positions_closed": closed})
}

// LoginRequest carries the operator's password for token issuance; the
// route is intentionally unauthenticated (it produces the credential),
// but still requires the correct bcrypt-checked password.
type LoginRequest struct {
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	token, err := s.auth.IssueToken(req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
