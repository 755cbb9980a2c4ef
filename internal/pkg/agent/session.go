package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/anicoll/relaygate/internal/pkg/config"
	"github.com/anicoll/relaygate/internal/pkg/model"
	"github.com/anicoll/relaygate/pkg/hasher"
	"github.com/anicoll/relaygate/pkg/sockets"
)

// LinkState is the device-side connection state.
type LinkState int

const (
	// LinkDown means no socket; reconnect attempts run with exponential
	// backoff and jitter.
	LinkDown LinkState = iota
	// LinkUp means the socket is established but identify has not been
	// acked; identify retries run at a fixed interval.
	LinkUp
	// SessionUp means the gateway acked identify; heartbeats flow.
	SessionUp
)

func (s LinkState) String() string {
	switch s {
	case LinkUp:
		return "link_up"
	case SessionUp:
		return "session_up"
	default:
		return "link_down"
	}
}

// Session drives the disconnected -> link-only -> session-established state
// machine for the agent. It owns connection lifecycle and the identify and
// heartbeat cadence; message semantics live in the Agent.
type Session struct {
	cfg    *config.AgentConfig
	logger *zap.Logger

	newConn func() sockets.Connection
	conn    sockets.Connection

	state         LinkState
	backoff       time.Duration
	lastAttempt   time.Time
	lastIdentify  time.Time
	lastHeartbeat time.Time
	startedAt     time.Time
	wasOffline    bool

	outSeq uint64
}

func NewSession(cfg *config.AgentConfig, newConn func() sockets.Connection) *Session {
	return &Session{
		cfg:       cfg,
		logger:    zap.L(),
		newConn:   newConn,
		state:     LinkDown,
		backoff:   cfg.ReconnectFloor,
		startedAt: time.Now(),
	}
}

func (s *Session) State() LinkState { return s.state }

// NextSeq hands out the monotonic outbound sequence for state updates and
// results.
func (s *Session) NextSeq() uint64 {
	s.outSeq++
	return s.outSeq
}

// LinkEstablished is called from the control loop once the socket's
// connected event has been drained.
func (s *Session) LinkEstablished(conn sockets.Connection) {
	s.conn = conn
	s.state = LinkUp
	s.backoff = s.cfg.ReconnectFloor
	s.lastIdentify = time.Time{}
	s.logger.Info("link established", zap.String("state", s.state.String()))
}

// LinkLost drops back to LINK_DOWN from any state, clearing the identified
// flag and outbound sequence-ack expectations.
func (s *Session) LinkLost() {
	if s.state == LinkDown {
		return
	}
	s.state = LinkDown
	s.wasOffline = true
	s.logger.Warn("link lost", zap.String("state", s.state.String()))
}

// Identified is called when the gateway acks identify.
func (s *Session) Identified() {
	s.state = SessionUp
	s.logger.Info("session established")
}

func (s *Session) gatewayURL() string {
	scheme := "ws"
	if s.cfg.Ssl {
		scheme = "wss"
	}
	u := url.URL{Scheme: scheme, Host: s.cfg.GatewayURL, Path: "/device-ws"}
	return u.String()
}

// Tick advances the state machine. Called once per control-loop tick.
func (s *Session) Tick(ctx context.Context, now time.Time) {
	switch s.state {
	case LinkDown:
		s.tickReconnect(ctx, now)
	case LinkUp:
		s.tickIdentify(now)
	case SessionUp:
		s.tickHeartbeat(now)
	}
}

func (s *Session) tickReconnect(ctx context.Context, now time.Time) {
	if now.Sub(s.lastAttempt) < s.backoff {
		return
	}
	s.lastAttempt = now
	conn := s.newConn()
	if err := conn.Dial(ctx, s.gatewayURL(), ""); err != nil {
		jitter := time.Duration(rand.Int63n(int64(500 * time.Millisecond)))
		s.backoff = 2*s.backoff + jitter
		if s.backoff > s.cfg.ReconnectCeiling {
			s.backoff = s.cfg.ReconnectCeiling
		}
		s.logger.Warn("reconnect failed",
			zap.Error(err),
			zap.Duration("next_backoff", s.backoff))
		return
	}
	// the connected event arrives through the agent's link-event channel
}

func (s *Session) tickIdentify(now time.Time) {
	if now.Sub(s.lastIdentify) < s.cfg.IdentifyRetry {
		return
	}
	s.lastIdentify = now
	ts := now.Unix()
	msg := model.Identify{
		Type:      model.TypeIdentify,
		Identity:  s.cfg.Identity,
		Secret:    s.cfg.Secret,
		Signature: hasher.SignFields(s.cfg.Secret, s.cfg.Identity, fmt.Sprintf("%d", ts)),
		Timestamp: ts,
	}
	s.sendJSON(msg, "identify")
}

func (s *Session) tickHeartbeat(now time.Time) {
	if now.Sub(s.lastHeartbeat) < s.cfg.HeartbeatInterval {
		return
	}
	s.lastHeartbeat = now
	msg := model.Heartbeat{
		Type:        model.TypeHeartbeat,
		Uptime:      int64(now.Sub(s.startedAt).Seconds()),
		OfflineMode: s.wasOffline,
	}
	if s.sendJSON(msg, "heartbeat") {
		s.wasOffline = false
	}
}

// Send marshals and ships a frame when a link exists. A send that cannot
// complete is dropped with a logged error, never retried inline; snapshots
// are idempotent so the next one supersedes.
func (s *Session) Send(v any, kind string) bool {
	return s.sendJSON(v, kind)
}

func (s *Session) sendJSON(v any, kind string) bool {
	if s.state == LinkDown || s.conn == nil {
		return false
	}
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("marshal failed", zap.String("kind", kind), zap.Error(err))
		return false
	}
	if err := s.conn.Send(sockets.Msg{Body: data}); err != nil {
		s.logger.Error("send dropped", zap.String("kind", kind), zap.Error(err))
		return false
	}
	return true
}
