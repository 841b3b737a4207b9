// Package devserver is a development endpoint for wslink sessions. It accepts
// one WebSocket per endpoint identifier, checks the handshake token, and lets
// an operator push frames or close sessions with a chosen code over HTTP.
package devserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/bhandras/wslink/internal/dispatch"
	"github.com/bhandras/wslink/internal/hostctx"
	"github.com/bhandras/wslink/internal/logger"
	"github.com/bhandras/wslink/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrNoSession is returned when no session is connected for an endpoint.
var ErrNoSession = errors.New("no session for endpoint")

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 5 * time.Second
)

// Config configures a Server.
type Config struct {
	// Secret verifies handshake tokens. Empty disables verification.
	Secret string
	Log    logger.Logger
	// Debug keeps gin in debug mode.
	Debug bool
}

// Handshake is a handshake the server accepted.
type Handshake struct {
	ConnID   string            `json:"connId"`
	Endpoint string            `json:"endpoint"`
	Frame    session.Handshake `json:"frame"`
	At       time.Time         `json:"at"`
}

type peer struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (p *peer) writeJSON(v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return p.conn.WriteJSON(v)
}

func (p *peer) closeWith(code int, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	msg := websocket.FormatCloseMessage(code, reason)
	err := p.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
	_ = p.conn.Close()
	return err
}

// Server is the development endpoint.
type Server struct {
	verifier *hostctx.TokenIssuer
	upgrader websocket.Upgrader
	log      logger.Logger
	engine   *gin.Engine

	mu         sync.Mutex
	peers      map[string]*peer
	handshakes []Handshake
}

// New builds a Server.
func New(cfg Config) (*Server, error) {
	s := &Server{
		log:   cfg.Log,
		peers: make(map[string]*peer),
		upgrader: websocket.Upgrader{
			HandshakeTimeout: handshakeTimeout,
		},
	}
	if cfg.Secret != "" {
		v, err := hostctx.NewTokenIssuer(cfg.Secret, "", 0)
		if err != nil {
			return nil, fmt.Errorf("token verifier: %w", err)
		}
		s.verifier = v
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), s.logging())

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "wslink dev endpoint")
	})
	r.GET("/ws/:id", s.handleSession)
	r.GET("/handshakes", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.Handshakes())
	})
	r.POST("/push/:id", s.handlePush)
	r.POST("/close/:id", s.handleClose)
	s.engine = r
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// logging logs each request at debug level.
func (s *Server) logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debugf("[%s] %s - %d (%v)", c.Request.Method, c.Request.URL.RequestURI(), c.Writer.Status(), time.Since(start))
	}
}

func (s *Server) handleSession(c *gin.Context) {
	endpoint := c.Param("id")
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.log.Warnf("upgrade %s: %v", endpoint, err)
		return
	}
	p := &peer{id: uuid.NewString(), conn: conn}
	log := s.log.Str("endpoint", endpoint).Str("conn", p.id)

	hs, err := s.readHandshake(conn, endpoint)
	if err != nil {
		log.Warnf("handshake rejected: %v", err)
		_ = p.closeWith(websocket.ClosePolicyViolation, "handshake rejected")
		return
	}

	s.mu.Lock()
	if old, ok := s.peers[endpoint]; ok {
		// The client reconnected; the old socket is superseded.
		go func() { _ = old.closeWith(websocket.CloseNormalClosure, "superseded") }()
	}
	s.peers[endpoint] = p
	s.handshakes = append(s.handshakes, Handshake{ConnID: p.id, Endpoint: endpoint, Frame: hs, At: time.Now()})
	s.mu.Unlock()
	log.Infof("session open for object %s", hs.ObjectID)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			log.Debugf("session ended: %v", err)
			break
		}
	}

	s.mu.Lock()
	if s.peers[endpoint] == p {
		delete(s.peers, endpoint)
	}
	s.mu.Unlock()
	_ = conn.Close()
}

func (s *Server) readHandshake(conn *websocket.Conn, endpoint string) (session.Handshake, error) {
	var hs session.Handshake
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	if err := conn.ReadJSON(&hs); err != nil {
		return hs, fmt.Errorf("read handshake: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	if hs.ObjectID == "" {
		return hs, errors.New("handshake without object identifier")
	}
	if s.verifier != nil {
		if _, err := s.verifier.Verify(hs.CSRFToken, endpoint); err != nil {
			return hs, err
		}
	}
	return hs, nil
}

func (s *Server) peer(endpoint string) (*peer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.peers[endpoint]
	return p, ok
}

// Push sends frame to the session connected for endpoint.
func (s *Server) Push(endpoint string, frame dispatch.Frame) error {
	p, ok := s.peer(endpoint)
	if !ok {
		return fmt.Errorf("%w %q", ErrNoSession, endpoint)
	}
	if err := p.writeJSON(frame); err != nil {
		return fmt.Errorf("push to %s: %w", endpoint, err)
	}
	return nil
}

// Close closes the session for endpoint with code and reason.
func (s *Server) Close(endpoint string, code int, reason string) error {
	s.mu.Lock()
	p, ok := s.peers[endpoint]
	if ok {
		delete(s.peers, endpoint)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w %q", ErrNoSession, endpoint)
	}
	return p.closeWith(code, reason)
}

// Shutdown closes every session with a going-away close.
func (s *Server) Shutdown() {
	s.mu.Lock()
	peers := s.peers
	s.peers = make(map[string]*peer)
	s.mu.Unlock()
	for _, p := range peers {
		_ = p.closeWith(websocket.CloseGoingAway, "server shutdown")
	}
}

// Handshakes returns the accepted handshakes in arrival order.
func (s *Server) Handshakes() []Handshake {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Handshake, len(s.handshakes))
	copy(out, s.handshakes)
	return out
}

// Connected reports whether a session is open for endpoint.
func (s *Server) Connected(endpoint string) bool {
	_, ok := s.peer(endpoint)
	return ok
}

func (s *Server) handlePush(c *gin.Context) {
	var frame dispatch.Frame
	raw, err := c.GetRawData()
	if err == nil {
		err = json.Unmarshal(raw, &frame)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid frame"})
		return
	}
	if err := s.Push(c.Param("id"), frame); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleClose(c *gin.Context) {
	code := websocket.CloseNormalClosure
	if v := c.Query("code"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1000 || n > 4999 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid close code"})
			return
		}
		code = n
	}
	if err := s.Close(c.Param("id"), code, c.Query("reason")); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func statusFor(err error) int {
	if errors.Is(err, ErrNoSession) {
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}
