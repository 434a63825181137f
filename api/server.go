// Package api is the HTTP surface of the service: a small REST API for the
// detection result, a websocket stream of state changes and the Prometheus
// endpoint.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tummler-rov/autopilot-manager/detector"
	"github.com/tummler-rov/autopilot-manager/hostinfo"
	"github.com/tummler-rov/autopilot-manager/logger"
	"github.com/tummler-rov/autopilot-manager/metrics"
)

// Server serves the API on one address.
type Server struct {
	httpServer *http.Server
	svc        *detector.Service
	host       *hostinfo.Info
	metrics    *metrics.Metrics
	hub        *Hub
	log        *zap.SugaredLogger
}

// NewServer wires the API for a detection service. host may be nil (served
// as 404); m may be nil (no /metrics route).
func NewServer(addr string, svc *detector.Service, host *hostinfo.Info, m *metrics.Metrics) *Server {
	s := &Server{
		svc:     svc,
		host:    host,
		metrics: m,
		log:     logger.Named("api"),
	}
	s.hub = newHub(svc, m)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Hub returns the websocket hub for state broadcast wiring.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/board", s.handleBoard)
	mux.HandleFunc("GET /v1/boards", s.handleBoards)
	mux.HandleFunc("POST /v1/detect", s.handleDetect)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /v1/host", s.handleHost)
	mux.HandleFunc("/ws", s.hub.ServeWS)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	}
	return mux
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.log.Infof("listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains connections and closes the websocket hub.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}
