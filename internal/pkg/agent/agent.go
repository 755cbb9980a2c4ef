package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/anicoll/relaygate/internal/pkg/agent/gpio"
	"github.com/anicoll/relaygate/internal/pkg/config"
	"github.com/anicoll/relaygate/internal/pkg/model"
	"github.com/anicoll/relaygate/pkg/hasher"
	"github.com/anicoll/relaygate/pkg/sockets"
)

// actuatorState is the device-local logical state of one actuator.
type actuatorState struct {
	On             bool
	ManualOverride bool
}

// linkEvent is a connection lifecycle notification from the socket's callback
// goroutines. A nil conn means the link dropped. The socket callbacks only
// enqueue; the control loop applies, so the session is mutated from one
// goroutine only.
type linkEvent struct {
	conn sockets.Connection
}

// Agent is the device-side controller: a single cooperative control loop
// that owns the session state machine, command queue, night policy, debounce
// tracker and GPIO lines. All mutation happens inside the loop tick.
type Agent struct {
	cfg    *config.AgentConfig
	logger *zap.Logger

	session  *Session
	queue    *CommandQueue
	bucket   *TokenBucket
	night    *NightPolicy
	debounce *Debouncer
	override *OverrideTracker
	store    StateStore
	chip     gpio.Chip
	watchdog *Watchdog
	memguard *MemoryGuard

	switches []model.SwitchConfig
	states   map[int]*actuatorState
	outputs  map[int]gpio.Output
	inputs   map[int]gpio.Input
	cursors  map[int]uint64

	inbox      chan []byte
	linkEvents chan linkEvent
	now        func() time.Time

	nextDrain      time.Time
	nextNightSweep time.Time
	nextHealth     time.Time
	nextResync     time.Time

	constrained bool
}

func New(cfg *config.AgentConfig, chip gpio.Chip, store StateStore, restart func()) *Agent {
	now := time.Now
	a := &Agent{
		cfg:        cfg,
		logger:     zap.L(),
		queue:      NewCommandQueue(cfg.QueueCapacity),
		bucket:     NewTokenBucket(cfg.RateRefillEach, cfg.RateCapacity, now()),
		night:      NewNightPolicy(cfg.NightStartHour, cfg.NightEndHour, cfg.PendingTTL),
		debounce:   NewDebouncer(cfg.DebounceInterval, cfg.RepeatSuppression),
		override:   NewOverrideTracker(cfg.ManualPriority),
		store:      store,
		chip:       chip,
		watchdog:   NewWatchdog(cfg.WatchdogTimeout, restart),
		memguard:   NewMemoryGuard(cfg.MemorySoftLimit, cfg.MemoryHardLimit, restart),
		states:     make(map[int]*actuatorState),
		outputs:    make(map[int]gpio.Output),
		inputs:     make(map[int]gpio.Input),
		cursors:    make(map[int]uint64),
		inbox:      make(chan []byte, 64),
		linkEvents: make(chan linkEvent, 8),
		now:        now,
	}
	a.session = NewSession(cfg, a.newConnection)
	return a
}

func (a *Agent) newConnection() sockets.Connection {
	return sockets.New(
		sockets.OnConnected(func(c sockets.Connection) { a.enqueueLinkEvent(linkEvent{conn: c}) }),
		sockets.OnMessage(func(data []byte, _ sockets.Connection) { a.enqueueInbound(data) }),
		sockets.OnDisconnected(func() { a.enqueueLinkEvent(linkEvent{}) }),
		sockets.OnError(func(err error) {
			a.logger.Debug("socket error", zap.Error(err))
		}),
		sockets.InsecureSkipVerify(),
		sockets.WithPingIntervalSec(15),
		sockets.WithPingMsg([]byte("ping")),
	)
}

func (a *Agent) enqueueInbound(data []byte) {
	select {
	case a.inbox <- data:
	default:
		a.logger.Warn("inbound buffer full, frame dropped", zap.Int("size", len(data)))
	}
}

func (a *Agent) enqueueLinkEvent(ev linkEvent) {
	select {
	case a.linkEvents <- ev:
	default:
		a.logger.Warn("link event buffer full, event dropped")
	}
}

// Boot loads the persisted snapshot and applies the factory/saved switch map.
// Every output starts OFF: the saved state is informational only and never
// trusted as a safe startup value.
func (a *Agent) Boot(switches []model.SwitchConfig) error {
	saved, err := a.store.Load()
	if err != nil {
		a.logger.Warn("state load failed, booting from defaults", zap.Error(err))
	}
	a.night.Restore(saved.Pending, saved.RecentOff)
	a.night.Sweep(a.now())

	if err := a.applyConfig(switches); err != nil {
		return err
	}
	a.persist()
	return nil
}

// applyConfig replaces the actuator configuration wholesale and re-requests
// the GPIO lines. Outputs default OFF.
func (a *Agent) applyConfig(switches []model.SwitchConfig) error {
	for _, out := range a.outputs {
		_ = out.Close()
	}
	for _, in := range a.inputs {
		_ = in.Close()
	}
	a.outputs = make(map[int]gpio.Output, len(switches))
	a.inputs = make(map[int]gpio.Input)
	a.states = make(map[int]*actuatorState, len(switches))
	a.switches = switches

	for _, sc := range switches {
		id := sc.OutputGpio()
		offLevel := sc.RelayActiveLow // OFF is high on active-low relays
		out, err := a.chip.RequestOutput(id, offLevel)
		if err != nil {
			return fmt.Errorf("output %d (%s): %w", id, sc.Name, err)
		}
		a.outputs[id] = out
		a.states[id] = &actuatorState{}

		if sc.ManualSwitchEnabled {
			in, err := a.chip.RequestInput(sc.ManualSwitchGpio, sc.ManualActiveLow)
			if err != nil {
				return fmt.Errorf("manual input %d (%s): %w", sc.ManualSwitchGpio, sc.Name, err)
			}
			a.inputs[id] = in
		}
	}
	a.logger.Info("configuration applied", zap.Int("switches", len(switches)))
	return nil
}

// Run drives the control loop until the context is cancelled. The watchdog
// check runs on its own ticker so a wedged loop still restarts.
func (a *Agent) Run(ctx context.Context) error {
	a.watchdog.Feed(a.now())
	go a.watchdogLoop(ctx)

	ticker := time.NewTicker(a.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

func (a *Agent) watchdogLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			a.watchdog.Check(t)
		}
	}
}

// tick is one pass of the cooperative loop: inbound frames, session cadence,
// manual inputs, queue drain and periodic housekeeping, interleaved by
// time-budget checks rather than blocking waits.
func (a *Agent) tick(ctx context.Context) {
	now := a.now()
	a.watchdog.Feed(now)

	a.drainLinkEvents()
	a.drainInbox(now)
	a.session.Tick(ctx, now)
	a.sampleInputs(now)

	if now.After(a.nextDrain) {
		a.drainQueue(now)
		a.nextDrain = now.Add(a.cfg.DrainInterval)
	}
	if now.After(a.nextNightSweep) {
		if pruned := a.night.Sweep(now); pruned > 0 {
			a.logger.Info("pruned expired pending commands", zap.Int("count", pruned))
			a.persist()
		}
		a.nextNightSweep = now.Add(a.cfg.NightSweepEach)
	}
	if now.After(a.nextHealth) {
		a.constrained = a.memguard.Constrained()
		a.nextHealth = now.Add(a.cfg.HealthCheckEvery)
	}
	if now.After(a.nextResync) {
		if a.session.State() == SessionUp && !a.constrained {
			a.broadcastState(now)
		}
		a.nextResync = now.Add(a.cfg.ResyncInterval)
	}
}

func (a *Agent) drainLinkEvents() {
	for {
		select {
		case ev := <-a.linkEvents:
			if ev.conn != nil {
				a.session.LinkEstablished(ev.conn)
			} else {
				a.session.LinkLost()
			}
		default:
			return
		}
	}
}

func (a *Agent) drainInbox(now time.Time) {
	for i := 0; i < 16; i++ {
		select {
		case data := <-a.inbox:
			a.handleFrame(data, now)
		default:
			return
		}
	}
}

func (a *Agent) handleFrame(data []byte, now time.Time) {
	mt, err := model.PeekType(data)
	if err != nil {
		a.logger.Debug("malformed frame dropped", zap.Error(err))
		return
	}
	switch mt {
	case model.TypeIdentified:
		var msg model.Identified
		if json.Unmarshal(data, &msg) != nil {
			return
		}
		a.handleIdentified(msg, now)
	case model.TypeConfigUpdate:
		var msg model.ConfigUpdate
		if json.Unmarshal(data, &msg) != nil {
			return
		}
		if err := a.applyConfig(msg.Switches); err != nil {
			a.logger.Error("config update failed", zap.Error(err))
			return
		}
		a.persist()
		a.broadcastState(now)
	case model.TypeSwitchCommand:
		var msg model.SwitchCommand
		if json.Unmarshal(data, &msg) != nil {
			return
		}
		a.acceptRemote(msg, now)
	case model.TypeBulkSwitchCommand:
		var msg model.BulkSwitchCommand
		if json.Unmarshal(data, &msg) != nil {
			return
		}
		for _, cmd := range msg.Commands {
			a.acceptRemote(cmd, now)
		}
	case model.TypeStateAck:
		var msg model.StateAck
		if json.Unmarshal(data, &msg) != nil {
			return
		}
		a.logger.Debug("state acked", zap.Bool("changed", msg.Changed))
	case model.TypeError:
		var msg model.ErrorMessage
		if json.Unmarshal(data, &msg) != nil {
			return
		}
		a.logger.Warn("gateway error", zap.String("reason", msg.Reason.String()))
	default:
		a.logger.Debug("unhandled frame", zap.String("type", mt.String()))
	}
}

// handleIdentified flips the session up, replaces the configuration with the
// authoritative server copy and re-applies the server-known desired states on
// top of the safe-boot defaults.
func (a *Agent) handleIdentified(msg model.Identified, now time.Time) {
	a.session.Identified()
	// a re-identified gateway has cleared its cursors; ours reset too
	a.cursors = make(map[int]uint64)
	if len(msg.Switches) > 0 {
		if err := a.applyConfig(msg.Switches); err != nil {
			a.logger.Error("identified config failed", zap.Error(err))
			return
		}
		for _, sc := range msg.Switches {
			if sc.State {
				a.enqueue(Command{
					Gpio:       sc.OutputGpio(),
					State:      true,
					Source:     model.SourceRemote,
					EnqueuedAt: now,
				}, now)
			}
		}
	}
	a.broadcastState(now)
}

// acceptRemote runs the acceptance pipeline for a backend command: sequence
// check, manual-priority check, auto-off guard, night policy, then the queue.
func (a *Agent) acceptRemote(cmd model.SwitchCommand, now time.Time) {
	id := cmd.ActuatorID()

	if cmd.Seq > 0 && cmd.Seq <= a.cursors[id] {
		a.logger.Debug("stale command dropped",
			zap.Int("gpio", id),
			zap.Uint64("seq", cmd.Seq),
			zap.Uint64("cursor", a.cursors[id]))
		return
	}
	if cmd.Seq > 0 {
		a.cursors[id] = cmd.Seq
	}

	sc, ok := lo.Find(a.switches, func(s model.SwitchConfig) bool { return s.OutputGpio() == id })
	if !ok {
		a.logger.Warn("command for unknown actuator", zap.Int("gpio", id))
		a.sendResult(id, false, cmd.State, cmd.Seq, model.ReasonUnknownGpio, now)
		return
	}

	if a.override.Active(id, now) {
		a.logger.Warn("command dropped, manual priority active",
			zap.Int("gpio", id), zap.Bool("state", cmd.State))
		a.sendResult(id, false, cmd.State, cmd.Seq, model.ReasonManualPriority, now)
		return
	}

	if sc.NeverAutoOff && !cmd.State {
		a.logger.Warn("auto off refused", zap.Int("gpio", id), zap.String("name", sc.Name))
		a.sendResult(id, false, cmd.State, cmd.Seq, model.ReasonNeverAutoOff, now)
		return
	}

	if _, dirty := a.night.Filter(id, cmd.State, now, clockValid(now)); dirty {
		a.persist()
	}

	a.enqueue(Command{
		Gpio:       id,
		State:      cmd.State,
		Seq:        cmd.Seq,
		Source:     model.SourceRemote,
		EnqueuedAt: now,
	}, now)
}

func (a *Agent) enqueue(cmd Command, now time.Time) {
	if !a.queue.Push(cmd) {
		a.logger.Warn("command queue full, dropped",
			zap.Int("gpio", cmd.Gpio), zap.Bool("state", cmd.State))
		if cmd.Source == model.SourceRemote {
			a.sendResult(cmd.Gpio, false, cmd.State, cmd.Seq, model.ReasonQueueFull, now)
		}
	}
}

// drainQueue pops up to the batch size, consulting the rate limiter before
// each write. A limiter rejection re-queues at the front and stops the batch
// so ordering holds without busy-looping.
func (a *Agent) drainQueue(now time.Time) {
	for i := 0; i < a.cfg.DrainBatch; i++ {
		cmd, ok := a.queue.Pop()
		if !ok {
			return
		}
		if !a.bucket.Allow(now) {
			a.queue.PushFront(cmd)
			return
		}
		a.apply(cmd, now)
	}
}

// apply performs the hardware write and the unconditional state broadcast.
func (a *Agent) apply(cmd Command, now time.Time) {
	st, ok := a.states[cmd.Gpio]
	if !ok {
		a.sendResult(cmd.Gpio, false, cmd.State, cmd.Seq, model.ReasonUnknownGpio, now)
		return
	}
	sc, _ := lo.Find(a.switches, func(s model.SwitchConfig) bool { return s.OutputGpio() == cmd.Gpio })
	out, ok := a.outputs[cmd.Gpio]
	if !ok {
		a.sendResult(cmd.Gpio, false, cmd.State, cmd.Seq, model.ReasonInvalidOutput, now)
		return
	}

	level := cmd.State != sc.RelayActiveLow
	if err := out.Set(level); err != nil {
		a.logger.Error("hardware write failed",
			zap.Int("gpio", cmd.Gpio), zap.Bool("state", cmd.State), zap.Error(err))
		if cmd.Source == model.SourceRemote {
			a.sendResult(cmd.Gpio, false, cmd.State, cmd.Seq, model.ReasonInvalidOutput, now)
		}
		a.broadcastState(now)
		return
	}

	st.On = cmd.State
	st.ManualOverride = cmd.Source == model.SourceManual
	a.persist()
	a.logger.Info("switch applied",
		zap.Int("gpio", cmd.Gpio),
		zap.Bool("state", cmd.State),
		zap.String("source", string(cmd.Source)))

	if cmd.Source == model.SourceRemote {
		a.sendResult(cmd.Gpio, true, cmd.State, cmd.Seq, "", now)
	}
	a.broadcastState(now)
}

// sampleInputs reads every configured manual input once per tick and feeds
// the debouncer.
func (a *Agent) sampleInputs(now time.Time) {
	for _, sc := range a.switches {
		if !sc.ManualSwitchEnabled {
			continue
		}
		id := sc.OutputGpio()
		in, ok := a.inputs[id]
		if !ok {
			continue
		}
		raw, err := in.Value()
		if err != nil {
			a.logger.Debug("input read failed", zap.Int("gpio", sc.ManualSwitchGpio), zap.Error(err))
			continue
		}
		fired, logical := a.debounce.Sample(id, raw, sc.ManualActiveLow, now)
		if !fired {
			continue
		}
		a.manualTransition(sc, logical, now)
	}
}

// manualTransition turns a debounced physical transition into a queued
// command plus a provenance notification. Manual action bypasses the night
// filter: an operator is present.
func (a *Agent) manualTransition(sc model.SwitchConfig, logical bool, now time.Time) {
	id := sc.OutputGpio()
	st := a.states[id]

	var desired bool
	switch sc.ManualMode {
	case model.ManualModeMomentary:
		if !logical {
			return // only the active edge toggles
		}
		desired = !st.On
	default: // maintained follows the switch position
		desired = logical
	}

	previous := st.On
	st.ManualOverride = true
	a.override.Mark(id, now)

	a.enqueue(Command{
		Gpio:       id,
		State:      desired,
		Source:     model.SourceManual,
		EnqueuedAt: now,
	}, now)

	action := "off"
	if desired {
		action = "on"
	}
	msg := model.ManualSwitch{
		Type:          model.TypeManualSwitch,
		Gpio:          id,
		Action:        action,
		PreviousState: previous,
		NewState:      desired,
		DetectedBy:    sc.ManualMode,
		PhysicalPin:   sc.ManualSwitchGpio,
		Timestamp:     now.UnixMilli(),
	}
	msg.Sig = hasher.SignFields(a.cfg.Secret,
		a.cfg.Identity, fmt.Sprintf("%d", id), action, fmt.Sprintf("%d", msg.Timestamp))
	a.session.Send(msg, "manual_switch")
	a.logger.Info("manual transition",
		zap.Int("gpio", id),
		zap.String("action", action),
		zap.String("mode", string(sc.ManualMode)))
}

// broadcastState ships a full idempotent snapshot. Failures are dropped; the
// next snapshot supersedes.
func (a *Agent) broadcastState(now time.Time) {
	if a.session.State() == LinkDown {
		return
	}
	switches := make([]model.SwitchStatus, 0, len(a.switches))
	for _, sc := range a.switches {
		id := sc.OutputGpio()
		st := a.states[id]
		if st == nil {
			continue
		}
		switches = append(switches, model.SwitchStatus{
			Gpio:           id,
			State:          st.On,
			ManualOverride: a.override.Active(id, now),
		})
	}
	seq := a.session.NextSeq()
	ts := now.UnixMilli()
	msg := model.StateUpdate{
		Type:     model.TypeStateUpdate,
		Switches: switches,
		Seq:      seq,
		Ts:       ts,
		Sig: hasher.SignFields(a.cfg.Secret,
			a.cfg.Identity, fmt.Sprintf("%d", seq), fmt.Sprintf("%d", ts)),
	}
	a.session.Send(msg, "state_update")
}

func (a *Agent) sendResult(gpio int, success, requested bool, seq uint64, reason model.Reason, now time.Time) {
	st := a.states[gpio]
	actual := false
	if st != nil {
		actual = st.On
	}
	if success {
		actual = requested
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	ts := now.UnixMilli()
	msg := model.SwitchResult{
		Type:           model.TypeSwitchResult,
		Gpio:           gpio,
		Success:        success,
		RequestedState: requested,
		ActualState:    actual,
		Reason:         reason,
		Seq:            seq,
		Ts:             ts,
	}
	msg.Sig = hasher.SignFields(a.cfg.Secret,
		a.cfg.Identity, fmt.Sprintf("%d", gpio), outcome,
		fmt.Sprintf("%d", seq), fmt.Sprintf("%d", ts))
	a.session.Send(msg, "switch_result")
}

func (a *Agent) persist() {
	switches := make(map[int]PersistedSwitch, len(a.states))
	for id, st := range a.states {
		switches[id] = PersistedSwitch{State: st.On, ManualOverride: st.ManualOverride}
	}
	state := PersistedState{
		Switches:  switches,
		Pending:   a.night.Pending(),
		RecentOff: a.night.RecentOff(),
		SavedAt:   a.now(),
	}
	if err := a.store.Save(state); err != nil {
		a.logger.Error("state persist failed", zap.Error(err))
	}
}

// clockValid guards against an unset RTC after boot; the night policy fails
// open toward daytime when the wall clock is clearly bogus.
func clockValid(now time.Time) bool {
	return now.Year() >= 2021
}
