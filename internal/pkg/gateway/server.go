package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/anicoll/relaygate/internal/pkg/config"
)

// Server owns the websocket accept loop. Each accepted connection gets a
// fresh session object; no process-wide connection singleton exists.
type Server struct {
	cfg      *config.GatewayConfig
	store    Store
	sink     EventSink
	registry *Registry
	upgrader websocket.Upgrader
	logger   *zap.Logger
	baseCtx  context.Context
}

func NewServer(cfg *config.GatewayConfig, store Store, sink EventSink, registry *Registry) *Server {
	return &Server{
		cfg:      cfg,
		store:    store,
		sink:     sink,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: zap.L(),
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	// the request context dies with the handler; sessions outlive it
	ctx := s.baseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	session := NewSession(conn, s.cfg, s.store, s.sink, s.registry)
	go session.Run(ctx)
}

// Run serves the device websocket endpoint until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.baseCtx = ctx
	mux := http.NewServeMux()
	mux.HandleFunc("/device-ws", s.handleWS)

	srv := &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      mux,
		ReadTimeout:  0, // websocket connections are long-lived
		WriteTimeout: 0,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("gateway listening", zap.String("addr", s.cfg.ListenAddr))
		errChan <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errChan:
		return err
	}
}
