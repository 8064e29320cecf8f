// Package api exposes the terminal's HTTP and WebSocket surface: the
// kitchen display pushes QR decodes and manual entries in, and reads
// gate/printer status and print history back.
package api

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/gakushoku/kitchen-terminal/internal/gate"
	"github.com/gakushoku/kitchen-terminal/internal/order"
	"github.com/gakushoku/kitchen-terminal/internal/preview"
	"github.com/gakushoku/kitchen-terminal/internal/printer"
	"github.com/gakushoku/kitchen-terminal/internal/profile"
	"github.com/gakushoku/kitchen-terminal/internal/ticket"
)

// Server is the terminal's API server.
type Server struct {
	router   *gin.Engine
	gate     *gate.Gate
	session  *printer.Session
	decoder  *gate.LatestTokenDecoder
	resolver gate.Resolver
	history  *ticket.History
	profiles *profile.Store
	logger   *slog.Logger
	upgrader websocket.Upgrader

	hub *hub
}

// NewServer wires the API over the terminal's components. profiles may be
// nil when no profile store is configured.
func NewServer(g *gate.Gate, session *printer.Session, decoder *gate.LatestTokenDecoder,
	resolver gate.Resolver, history *ticket.History, profiles *profile.Store, logger *slog.Logger) *Server {

	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	server := &Server{
		router:   router,
		gate:     g,
		session:  session,
		decoder:  decoder,
		resolver: resolver,
		history:  history,
		profiles: profiles,
		logger:   logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // terminal and display share a trusted LAN
			},
		},
		hub: newHub(),
	}

	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	s.router.GET("/status", s.handleStatus)
	s.router.POST("/scan", s.handleScan)
	s.router.POST("/manual", s.handleManual)
	s.router.POST("/camera/start", s.handleCameraStart)
	s.router.POST("/camera/stop", s.handleCameraStop)

	s.router.POST("/printer/connect", s.handlePrinterConnect)
	s.router.POST("/printer/disconnect", s.handlePrinterDisconnect)
	s.router.GET("/printer/detect", s.handlePrinterDetect)
	s.router.GET("/printers", s.handleGetProfiles)
	s.router.POST("/printer/:id/name", s.handleSetProfileName)

	s.router.GET("/history", s.handleHistory)
	s.router.POST("/preview", s.handlePreview)

	s.router.GET("/ws", s.handleWebSocket)
}

// handleStatus returns the gate snapshot.
func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(200, s.gate.Status())
}

// handleScan accepts a QR decode from the kitchen display. The token is
// buffered for the scan loop rather than processed directly, so the
// loop's rate bound and dedup rules apply to every camera frame.
func (s *Server) handleScan(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "token is required"})
		return
	}

	s.decoder.Push(req.Token)
	c.JSON(202, gin.H{"accepted": true})
}

// handleManual accepts an operator-typed order ID.
func (s *Server) handleManual(c *gin.Context) {
	var req struct {
		OrderID string `json:"order_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "order_id is required"})
		return
	}

	if err := s.gate.Submit(req.OrderID); err != nil {
		if errors.Is(err, gate.ErrBusy) {
			c.JSON(409, gin.H{"error": "another scan is being processed"})
			return
		}
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}

	c.JSON(202, gin.H{"accepted": true})
}

func (s *Server) handleCameraStart(c *gin.Context) {
	s.gate.StartScanning()
	c.JSON(200, s.gate.Status())
}

func (s *Server) handleCameraStop(c *gin.Context) {
	s.gate.StopScanning()
	c.JSON(200, s.gate.Status())
}

// handlePrinterConnect connects the session to the requested endpoint and
// remembers it as a profile.
func (s *Server) handlePrinterConnect(c *gin.Context) {
	var req struct {
		Transport string `json:"transport"`
		Host      string `json:"host"`
		Port      int    `json:"port"`
		Device    string `json:"device"`
		Baud      int    `json:"baud"`
		VendorID  uint16 `json:"vendor_id"`
		ProductID uint16 `json:"product_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	if req.Transport == "" {
		req.Transport = "network"
	}
	if req.Transport == "network" {
		if req.Host == "" {
			c.JSON(400, gin.H{"error": "host is required"})
			return
		}
		if req.Port == 0 {
			req.Port = 9100
		}
	}

	ep := printer.Endpoint{
		Transport: req.Transport,
		Host:      req.Host,
		Port:      req.Port,
		Device:    req.Device,
		Baud:      req.Baud,
		VendorID:  req.VendorID,
		ProductID: req.ProductID,
	}

	if err := s.session.Connect(ep); err != nil {
		c.JSON(502, gin.H{"error": err.Error()})
		return
	}

	var profileID string
	if s.profiles != nil {
		profileID = s.profiles.Remember(ep, describeEndpoint(ep))
	}

	c.JSON(200, gin.H{
		"success":    true,
		"state":      s.session.State(),
		"profile_id": profileID,
	})
}

func (s *Server) handlePrinterDisconnect(c *gin.Context) {
	s.session.Disconnect()
	c.JSON(200, gin.H{"success": true, "state": s.session.State()})
}

// handlePrinterDetect scans local buses for attached printers.
func (s *Server) handlePrinterDetect(c *gin.Context) {
	c.JSON(200, gin.H{"printers": printer.Detect()})
}

func (s *Server) handleGetProfiles(c *gin.Context) {
	if s.profiles == nil {
		c.JSON(200, gin.H{"printers": []any{}})
		return
	}
	c.JSON(200, gin.H{"printers": s.profiles.All()})
}

func (s *Server) handleSetProfileName(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "name is required"})
		return
	}

	if s.profiles == nil || !s.profiles.SetName(c.Param("id"), req.Name) {
		c.JSON(404, gin.H{"error": "printer not found"})
		return
	}
	c.JSON(200, gin.H{"success": true})
}

// handleHistory returns the tickets printed this session, newest first.
func (s *Server) handleHistory(c *gin.Context) {
	c.JSON(200, gin.H{"history": s.history.Snapshot()})
}

// handlePreview resolves a token and renders its ticket as a PNG without
// printing anything or consuming a ticket number.
func (s *Server) handlePreview(c *gin.Context) {
	var req struct {
		Token    string `json:"token" binding:"required"`
		TicketNo int    `json:"ticket_no"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "token is required"})
		return
	}

	o, err := s.resolver.Resolve(c.Request.Context(), req.Token)
	if err != nil {
		status := 500
		switch {
		case errors.Is(err, order.ErrOrderNotFound):
			status = 404
		case errors.Is(err, order.ErrUnsupportedFormat):
			status = 400
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	n := req.TicketNo
	if n <= 0 {
		n = 1
	}
	job := ticket.Format(o, n)

	var buf bytes.Buffer
	if err := preview.RenderPNG(job, &buf); err != nil {
		c.JSON(500, gin.H{"error": fmt.Sprintf("failed to render preview: %v", err)})
		return
	}

	c.Data(200, "image/png", buf.Bytes())
}

// Run starts the API server.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func describeEndpoint(ep printer.Endpoint) string {
	switch ep.Transport {
	case "network":
		return fmt.Sprintf("Network: %s:%d", ep.Host, ep.Port)
	case "serial":
		return fmt.Sprintf("Serial: %s", ep.Device)
	case "usb":
		return fmt.Sprintf("USB: %04X:%04X", ep.VendorID, ep.ProductID)
	default:
		return ep.Transport
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
