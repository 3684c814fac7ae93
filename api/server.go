// Package api is the control surface: start/stop/pause/resume,
// set_mode, emergency_stop, close_all, update_settings, plus an
// SSE endpoint for the observer channel. The Server{store *store.Store}
// + gin.H response shape follows SynapseStrike/api/tactics.go;
// JWT/TOTP/bcrypt gating on the destructive endpoints uses the
// golang-jwt/pquerna-otp/golang.org/x/crypto stack.
package api

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/indexoptions/kernel/domain"
	"github.com/indexoptions/kernel/eventbus"
	"github.com/indexoptions/kernel/logger"
)

var log = logger.For("api")

// Controller is the subset of kernel.Kernel the control surface drives.
type Controller interface {
	Start(ctx context.Context)
	Stop()
	Pause()
	Resume()
	SetMode(mode string) error
	CloseAllPositions(ctx context.Context, reason string) (int, error)
	UpdateSettings(settings map[string]float64) error
	TripCircuitBreaker(reason string)
	ResetCircuitBreaker()
	State() domain.CircuitState
}

// Server wires the gin engine, JWT/TOTP auth and the event bus's SSE
// transport together.
type Server struct {
	engine     *gin.Engine
	ctrl       Controller
	bus        *eventbus.Bus
	auth       *Auth
}

// NewServer builds a configured but unstarted Server.
func NewServer(ctrl Controller, bus *eventbus.Bus, auth *Auth) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{engine: gin.New(), ctrl: ctrl, bus: bus, auth: auth}
	s.engine.Use(gin.Recovery())
	s.routes()
	return s
}

// Run starts the HTTP server; blocks until the listener errors.
func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

func (s *Server) routes() {
	s.engine.POST("/auth/login", s.handleLogin)

	s.engine.POST("/control/start", s.handleStart)
	s.engine.POST("/control/stop", s.handleStop)
	s.engine.POST("/control/pause", s.handlePause)
	s.engine.POST("/control/resume", s.handleResume)
	s.engine.POST("/control/mode", s.handleSetMode)
	s.engine.POST("/control/settings", s.handleUpdateSettings)
	s.engine.GET("/control/status", s.handleStatus)

	protected := s.engine.Group("/control", s.auth.RequireJWT())
	protected.POST("/emergency-stop", s.auth.RequireTOTP(), s.auth.RequireEmergencyCredential(), s.handleEmergencyStop)
	protected.POST("/close-all", s.auth.RequireTOTP(), s.handleCloseAll)

	s.engine.GET("/events", func(c *gin.Context) { s.bus.ServeSSE(c) })
}
