package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/povilasv/prommod"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/brook-video/brook/pkg/room"
	"github.com/brook-video/brook/pkg/roomcode"
	"github.com/brook-video/brook/pkg/webrtc_ext"
)

// Server exposes the signaling entry points: room code generation, the
// WebSocket upgrade, health and metrics.
type Server struct {
	listen  string
	rooms   *room.Registry
	factory *webrtc_ext.PeerConnectionFactory

	upgrader websocket.Upgrader
	metrics  *prometheus.Registry

	peersJoined     prometheus.Counter
	tracksForwarded prometheus.Counter
}

func New(listen string, rooms *room.Registry, factory *webrtc_ext.PeerConnectionFactory) *Server {
	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prommod.NewCollector("sfu"),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "sfu_rooms_active",
			Help: "Number of active rooms.",
		}, func() float64 { return float64(rooms.Rooms()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "sfu_peers_active",
			Help: "Number of peers across all active rooms.",
		}, func() float64 { return float64(rooms.Peers()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "sfu_rooms_created_total",
			Help: "Rooms created since startup.",
		}, func() float64 { return float64(rooms.Created()) }),
	)

	peersJoined := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sfu_peers_joined_total",
		Help: "Peers that joined a room since startup.",
	})
	tracksForwarded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sfu_tracks_forwarded_total",
		Help: "Published tracks picked up for forwarding since startup.",
	})
	metrics.MustRegister(peersJoined, tracksForwarded)

	return &Server{
		listen:  listen,
		rooms:   rooms,
		factory: factory,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browsers connect from any origin; the room code is the only
			// credential.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		metrics:         metrics,
		peersJoined:     peersJoined,
		tracksForwarded: tracksForwarded,
	}
}

// Handler returns the HTTP surface of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/code", s.handleCode)
	mux.HandleFunc("/signal", s.handleSignal)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{}))
	return mux
}

// Run serves HTTP until the context is cancelled, then drains with a short
// shutdown deadline.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{Addr: s.listen, Handler: s.Handler()}

	errs := make(chan error, 1)
	go func() {
		logrus.Infof("listening on %s", s.listen)
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}

func (s *Server) handleCode(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"code": roomcode.Generate()})
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	codes, ok := r.URL.Query()["code"]
	if !ok || len(codes) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing query parameter 'code'"})
		return
	}

	code := codes[0]
	if !roomcode.IsValid(code) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid query parameter 'code'"})
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Error("failed to upgrade connection")
		return
	}

	s.handleSocket(conn, code)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.WithError(err).Error("failed to write response")
	}
}
