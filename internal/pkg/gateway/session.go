package gateway

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/anicoll/relaygate/internal/pkg/config"
	"github.com/anicoll/relaygate/internal/pkg/model"
	"github.com/anicoll/relaygate/pkg/hasher"
)

const maxFrameSize = 64 * 1024

// wsConn is the slice of *websocket.Conn the session uses; tests substitute
// an in-memory implementation.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	Close() error
}

// Session is the gateway-side half of one device connection. It owns the
// per-device sequence cursors, HMAC key material and the reconciliation of
// everything the device reports. One live session exists per identity.
type Session struct {
	id       uuid.UUID
	conn     wsConn
	cfg      *config.GatewayConfig
	store    Store
	sink     EventSink
	registry *Registry
	logger   *zap.Logger

	mu          sync.Mutex
	identity    string
	secret      string
	identified  bool
	cursors     *CursorSet
	lastInSeq   uint64
	limiter     *WindowLimiter
	firstReport bool
	record      *model.DeviceRecord
}

func NewSession(conn wsConn, cfg *config.GatewayConfig, store Store, sink EventSink, registry *Registry) *Session {
	id := uuid.New()
	return &Session{
		id:          id,
		conn:        conn,
		cfg:         cfg,
		store:       store,
		sink:        sink,
		registry:    registry,
		logger:      zap.L().With(zap.String("session_id", id.String())),
		cursors:     NewCursorSet(),
		limiter:     NewWindowLimiter(cfg.StateUpdateWindow, cfg.StateUpdateMax),
		firstReport: true,
	}
}

// Run reads frames until the socket dies, then tears the session down. The
// device record's status outlives the session.
func (s *Session) Run(ctx context.Context) {
	s.conn.SetReadLimit(maxFrameSize)
	defer s.teardown(ctx)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.logger.Debug("session read ended", zap.Error(err))
			return
		}
		s.handleFrame(ctx, data, time.Now())
	}
}

func (s *Session) teardown(ctx context.Context) {
	_ = s.conn.Close()
	s.mu.Lock()
	identity := s.identity
	identified := s.identified
	s.identified = false
	s.mu.Unlock()
	if identity == "" {
		return
	}
	s.registry.Unbind(identity, s)
	if identified {
		if err := s.store.SetStatus(ctx, identity, model.DeviceOffline, false); err != nil {
			s.logger.Error("offline status write failed", zap.Error(err))
		}
		s.sink.DeviceStatus(ctx, identity, model.DeviceOffline)
	}
}

// handleFrame routes one inbound frame. Handlers return a drop reason which
// funnels into a single log sink; protocol errors never break the
// connection.
func (s *Session) handleFrame(ctx context.Context, data []byte, now time.Time) {
	mt, err := model.PeekType(data)
	if err != nil {
		s.drop(model.TypeError, model.ReasonMalformedPayload, zap.DebugLevel)
		return
	}

	if mt != model.TypeIdentify && !s.isIdentified() {
		// auth errors leave the connection lingering; commands are ignored
		s.drop(mt, model.ReasonInvalidSecret, zap.DebugLevel)
		return
	}

	switch mt {
	case model.TypeIdentify:
		var msg model.Identify
		if json.Unmarshal(data, &msg) != nil {
			s.drop(mt, model.ReasonMalformedPayload, zap.DebugLevel)
			return
		}
		s.handleIdentify(ctx, msg, now)
	case model.TypeStateUpdate:
		var msg model.StateUpdate
		if json.Unmarshal(data, &msg) != nil {
			s.drop(mt, model.ReasonMalformedPayload, zap.DebugLevel)
			return
		}
		s.handleStateUpdate(ctx, msg, now)
	case model.TypeSwitchResult:
		var msg model.SwitchResult
		if json.Unmarshal(data, &msg) != nil {
			s.drop(mt, model.ReasonMalformedPayload, zap.DebugLevel)
			return
		}
		s.handleSwitchResult(ctx, msg, now)
	case model.TypeManualSwitch:
		var msg model.ManualSwitch
		if json.Unmarshal(data, &msg) != nil {
			s.drop(mt, model.ReasonMalformedPayload, zap.DebugLevel)
			return
		}
		s.handleManualSwitch(ctx, msg, now)
	case model.TypeHeartbeat:
		var msg model.Heartbeat
		if json.Unmarshal(data, &msg) != nil {
			s.drop(mt, model.ReasonMalformedPayload, zap.DebugLevel)
			return
		}
		s.handleHeartbeat(ctx, msg, now)
	default:
		s.logger.Debug("unhandled frame", zap.String("type", mt.String()))
	}
}

// drop is the single log-and-drop sink for rejected frames.
func (s *Session) drop(mt model.MessageType, reason model.Reason, level zapcore.Level) {
	if ce := s.logger.Check(level, "frame dropped"); ce != nil {
		ce.Write(
			zap.String("type", mt.String()),
			zap.String("reason", reason.String()))
	}
}

func (s *Session) isIdentified() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identified
}

// secretMatches compares the presented secret against the stored one, which
// may be bcrypt-hashed (in which case HMAC verification is unavailable for
// the device).
func secretMatches(presented, stored string) bool {
	if strings.HasPrefix(stored, "$2") {
		return hasher.SecretCorrect(presented, stored)
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(stored)) == 1
}

// plainSecret returns the HMAC key, empty when only a hash is stored.
func plainSecret(stored string) string {
	if strings.HasPrefix(stored, "$2") {
		return ""
	}
	return stored
}

func (s *Session) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// SendCommand forwards a sequenced switch command to the device. seq 0 means
// gateway-originated and a fresh sequence is assigned; otherwise the
// per-actuator cursor gates staleness.
func (s *Session) SendCommand(gpio int, state bool, seq uint64) error {
	s.mu.Lock()
	if seq == 0 {
		seq = s.cursors.Next(gpio)
	} else if !s.cursors.Accept(gpio, seq) {
		s.mu.Unlock()
		s.logger.Debug("stale command rejected",
			zap.Int("gpio", gpio), zap.Uint64("seq", seq))
		return fmt.Errorf("stale sequence %d for gpio %d", seq, gpio)
	}
	s.mu.Unlock()

	return s.sendJSON(model.SwitchCommand{
		Type:  model.TypeSwitchCommand,
		Gpio:  gpio,
		State: state,
		Seq:   seq,
	})
}
