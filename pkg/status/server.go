package status

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/norasector/ookbridge/pkg/bridge"
)

const (
	receiveChannels = 8
	clientBuffer    = 16
	writeTimeout    = 5 * time.Second
)

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Server exposes the bridge state over HTTP. It is fed readings as a bridge.Output.
type Server struct {
	srv      *http.Server
	recvChan chan *bridge.Reading
	upgrader websocket.Upgrader
	gatherer prometheus.Gatherer
	decoders []string
	logger   zerolog.Logger
	started  time.Time

	mu           sync.RWMutex
	recent       []*bridge.Reading
	maxRecent    int
	captures     int
	accepted     int
	lastCapture  []uint16
	lastAccepted bool
	clients      map[*wsClient]struct{}
}

var _ bridge.StatusServer = (*Server)(nil)

type ServerOption func(s *Server)

func WithGatherer(g prometheus.Gatherer) ServerOption {
	return func(s *Server) {
		s.gatherer = g
	}
}

func WithLogger(logger zerolog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func NewServer(port int, recentReadings int, opts ...ServerOption) *Server {
	s := &Server{
		srv:       &http.Server{Addr: fmt.Sprintf(":%d", port)},
		recvChan:  make(chan *bridge.Reading, receiveChannels),
		gatherer:  prometheus.DefaultGatherer,
		logger:    log.Logger,
		started:   time.Now(),
		maxRecent: recentReadings,
		clients:   make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	if s.maxRecent <= 0 {
		s.maxRecent = 50
	}

	for _, opt := range opts {
		opt(s)
	}
	s.srv.Handler = s.Handler()
	return s
}

// SetDecoders lists the active decoders in the summary.
func (s *Server) SetDecoders(names []string) {
	s.mu.Lock()
	s.decoders = append([]string(nil), names...)
	s.mu.Unlock()
}

func (s *Server) Receive() chan<- *bridge.Reading {
	return s.recvChan
}

// Start records readings and pushes them to websocket clients.
func (s *Server) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-s.recvChan:
			s.addReading(r)
		}
	}
}

func (s *Server) ObserveCapture(pulses []uint16, accepted bool) {
	s.mu.Lock()
	s.captures++
	if accepted {
		s.accepted++
	}
	s.lastCapture = append(s.lastCapture[:0], pulses...)
	s.lastAccepted = accepted
	s.mu.Unlock()
}

func (s *Server) addReading(r *bridge.Reading) {
	msg, err := json.Marshal(r.Payload())
	if err != nil {
		s.logger.Warn().Err(err).Msg("error marshaling reading")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.recent = append(s.recent, r)
	if len(s.recent) > s.maxRecent {
		s.recent = s.recent[len(s.recent)-s.maxRecent:]
	}

	for c := range s.clients {
		select {
		case c.send <- msg:
		default:
			s.logger.Debug().Str("remote", c.conn.RemoteAddr().String()).Msg("websocket client too slow, dropping reading")
		}
	}
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Run serves HTTP until ctx is done or Stop is called.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		s.srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Str("addr", s.srv.Addr).Msg("status server starting")
	err := s.srv.ListenAndServe()
	switch {
	case err == http.ErrServerClosed:
		return nil
	default:
		return err
	}
}

type summary struct {
	UptimeSeconds    int64    `json:"uptime_seconds"`
	Decoders         []string `json:"decoders"`
	Captures         int      `json:"captures"`
	Accepted         int      `json:"accepted"`
	LastAccepted     bool     `json:"last_accepted"`
	LastPulses       int      `json:"last_pulses"`
	RecentReadings   int      `json:"recent_readings"`
	WebsocketClients int      `json:"websocket_clients"`
}

// Handler returns the router serving every status route.
func (s *Server) Handler() http.Handler {
	handler := httprouter.New()

	handler.GET("/", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		s.mu.RLock()
		sum := summary{
			UptimeSeconds:    int64(time.Since(s.started).Seconds()),
			Decoders:         s.decoders,
			Captures:         s.captures,
			Accepted:         s.accepted,
			LastAccepted:     s.lastAccepted,
			LastPulses:       len(s.lastCapture),
			RecentReadings:   len(s.recent),
			WebsocketClients: len(s.clients),
		}
		s.mu.RUnlock()

		writeJSON(w, sum)
	})

	handler.GET("/readings", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		limit := -1
		if l := r.URL.Query().Get("limit"); l != "" {
			n, err := strconv.Atoi(l)
			if err != nil || n < 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}

		s.mu.RLock()
		ret := make([]bridge.Payload, 0, len(s.recent))
		for i := len(s.recent) - 1; i >= 0; i-- {
			if limit >= 0 && len(ret) >= limit {
				break
			}
			ret = append(ret, s.recent[i].Payload())
		}
		s.mu.RUnlock()

		writeJSON(w, ret)
	})

	handler.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	handler.GET("/ws", s.serveWebsocket)

	handler.GET("/plot/last.png", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		s.mu.RLock()
		pulses := append([]uint16(nil), s.lastCapture...)
		accepted := s.lastAccepted
		s.mu.RUnlock()

		if len(pulses) == 0 {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		title := fmt.Sprintf("last capture: %d pulses", len(pulses))
		if accepted {
			title += " (decoded)"
		}
		img, err := PlotPulses(title, pulses)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Add("Content-Type", "image/png")
		w.Write(img)
	})

	return handler
}

func (s *Server) serveWebsocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, clientBuffer)}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	go func() {
		for msg := range c.send {
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}()

	// Reads only detect the client going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.mu.Lock()
	delete(s.clients, c)
	close(c.send)
	s.mu.Unlock()
	conn.Close()
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("error writing response")
	}
}
