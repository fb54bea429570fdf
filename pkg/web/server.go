// Package web exposes the rail controller over HTTP: a plain-text
// command API, a WebSocket position feed, a small control page and
// the metrics endpoint.
package web

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	pongo2 "github.com/flosch/pongo2/v5"
	"github.com/gorilla/websocket"

	"railctl/pkg/log"
	"railctl/pkg/metrics"
)

// Rail is the command surface the server drives. All methods return
// the plain-text reply sent back to the caller.
type Rail interface {
	Move(posMm, speedPct *int) string
	Home(n int) string
	HomeAll() string
	Stop() string
	Pos() string
	Status() map[string]any
}

// Config holds server configuration.
type Config struct {
	// Address to listen on (e.g. ":8080")
	Listen string

	// Rail controller answering commands
	Rail Rail

	// Metrics registry served at /metrics, may be nil
	Metrics *metrics.Registry

	// Logger for request and connection events, may be nil
	Logger *log.Logger
}

// Server serves the command API and pushes position updates to
// connected WebSocket clients.
type Server struct {
	rail    Rail
	logger  *log.Logger
	metrics *metrics.Registry

	httpServer *http.Server
	listen     string

	wsUpgrader websocket.Upgrader
	wsClients  map[string]*wsClient
	wsClientMu sync.RWMutex

	page *pongo2.Template
}

// New creates a server. It does not start listening until Start.
func New(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New("web")
	}

	page, err := pongo2.FromString(controlPage)
	if err != nil {
		return nil, fmt.Errorf("compile control page: %w", err)
	}

	s := &Server{
		rail:      cfg.Rail,
		logger:    logger,
		metrics:   cfg.Metrics,
		listen:    cfg.Listen,
		wsClients: make(map[string]*wsClient),
		page:      page,
	}
	s.wsUpgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	return s, nil
}

// Handler returns the routing mux. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/move", s.handleMove)
	mux.HandleFunc("/api/home", s.handleHome)
	mux.HandleFunc("/api/homeall", s.handleHomeAll)
	mux.HandleFunc("/api/stop", s.handleStop)
	mux.HandleFunc("/api/pos", s.handlePos)
	mux.HandleFunc("/ws", s.handleWebSocket)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	return mux
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    s.listen,
		Handler: s.Handler(),
	}

	go func() {
		s.logger.Infof("listening on %s", s.listen)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("http server: %v", err)
		}
	}()
	return nil
}

// Shutdown stops the HTTP server and closes all WebSocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.wsClientMu.Lock()
	for _, c := range s.wsClients {
		c.close()
	}
	s.wsClients = make(map[string]*wsClient)
	s.wsClientMu.Unlock()

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func reply(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, text)
}

// intParam parses a required integer query parameter. The second
// return is false when the parameter is absent or malformed.
func intParam(r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var posPtr, pctPtr *int
	if v, ok := intParam(r, "pos"); ok {
		posPtr = &v
	} else if r.URL.Query().Get("pos") != "" {
		http.Error(w, "bad pos", http.StatusBadRequest)
		return
	}
	if v, ok := intParam(r, "spd"); ok {
		pctPtr = &v
	} else if r.URL.Query().Get("spd") != "" {
		http.Error(w, "bad spd", http.StatusBadRequest)
		return
	}
	if posPtr == nil && pctPtr == nil {
		http.Error(w, "pos or spd required", http.StatusBadRequest)
		return
	}
	reply(w, s.rail.Move(posPtr, pctPtr))
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	n, ok := intParam(r, "n")
	if !ok {
		http.Error(w, "n required", http.StatusBadRequest)
		return
	}
	reply(w, s.rail.Home(n))
}

func (s *Server) handleHomeAll(w http.ResponseWriter, r *http.Request) {
	reply(w, s.rail.HomeAll())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	reply(w, s.rail.Stop())
}

func (s *Server) handlePos(w http.ResponseWriter, r *http.Request) {
	reply(w, s.rail.Pos())
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	out, err := s.page.Execute(pongo2.Context{
		"status": s.rail.Status(),
	})
	if err != nil {
		s.logger.Errorf("render control page: %v", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, out)
}

// ClientCount reports the number of connected WebSocket clients.
func (s *Server) ClientCount() int {
	s.wsClientMu.RLock()
	defer s.wsClientMu.RUnlock()
	return len(s.wsClients)
}

// Broadcast pushes a position update to every connected client.
// Wire it as the controller's position callback.
func (s *Server) Broadcast(posText string) {
	msg := positionEvent{
		Event:      "position",
		PositionMm: posText,
		Time:       time.Now().UnixMilli(),
	}
	s.wsClientMu.RLock()
	defer s.wsClientMu.RUnlock()
	for _, c := range s.wsClients {
		c.send(msg)
	}
}

type positionEvent struct {
	Event      string `json:"event"`
	PositionMm string `json:"position_mm"`
	Time       int64  `json:"time"`
}
