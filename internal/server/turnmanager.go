// Package server implements the server turn manager (C4) and session
// orchestrator (C6): admission, readiness, the synchronized start,
// the tick loop and its per-turn broadcast, gap-fill, and the
// websocket connection lifecycle around all of it.
package server

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/dungeongate/internal/lockstepinput"
	"github.com/dungeongate/internal/protocol"
	"github.com/dungeongate/pkg/config"
	"github.com/dungeongate/pkg/metrics"
)

// AuditLogger records session lifecycle events for post-mortem
// debugging (the supplemented audit-log feature). Implemented by
// pkg/audit.Store; a nil AuditLogger is treated as "don't audit".
type AuditLogger interface {
	LogEvent(ctx context.Context, event, clientID, detail string) error
}

// Peers is the subset of Registry the turn manager needs: admitted
// connection bookkeeping and message delivery. Separated out as an
// interface so the turn manager can be tested without a real
// websocket transport.
type Peers interface {
	ConnectedIDs() []string
	Count() int
	SendTo(id string, data []byte)
	Broadcast(data []byte)
}

// TurnManager owns the session state machine and the tick loop. One
// instance serves successive game cohorts; after an ABORTED->LOBBY reset, the
// same instance re-arms for the next cohort rather than a fresh one
// being constructed, so that the connection registry underneath it
// doesn't have to change.
type TurnManager struct {
	cfg    *config.ServerConfig
	peers  Peers
	audit  AuditLogger
	mtr    *metrics.LockstepMetrics
	logger *slog.Logger

	mu            sync.Mutex
	state         SessionState
	epoch         int64
	readyClients  map[string]bool
	cohort        map[string]bool
	t0            int64
	currentFrame  int
	lastFinalized int

	staging *lockstepinput.StagingBuffer
	table   *TurnTable
}

// NewTurnManager constructs a turn manager in LOBBY state.
func NewTurnManager(cfg *config.ServerConfig, peers Peers, audit AuditLogger, mtr *metrics.LockstepMetrics, logger *slog.Logger) *TurnManager {
	return &TurnManager{
		cfg:          cfg,
		peers:        peers,
		audit:        audit,
		mtr:          mtr,
		logger:       logger,
		state:        StateLobby,
		readyClients: make(map[string]bool),
		cohort:       make(map[string]bool),
		staging:      lockstepinput.NewStagingBuffer(),
		table:        NewTurnTable(),
		lastFinalized: -1,
	}
}

// State returns the current session state.
func (tm *TurnManager) State() SessionState {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.state
}

// Admit is called once a connection has been accepted by the
// registry. In LOBBY it enrolls clientID into the session's cohort and,
// on reaching required_players, transitions to READY and broadcasts
// game_ready. Outside LOBBY it only admits clientID if the cohort
// already recognizes it: a disconnected participant resuming under an
// identity the orchestrator's reconnect-token validation already
// vouched for (registry.Accept reuses that id, so the peer's send sink
// is restored before Admit ever runs). Anyone else arriving outside
// LOBBY is a late joiner and is rejected.
func (tm *TurnManager) Admit(ctx context.Context, clientID string) error {
	tm.mu.Lock()
	if tm.state != StateLobby {
		if !tm.cohort[clientID] {
			tm.mu.Unlock()
			return ErrGameInProgress
		}
		tm.mu.Unlock()
		tm.auditEvent(ctx, "reconnect", clientID, "")
		return nil
	}
	tm.cohort[clientID] = true
	count := tm.peers.Count()
	tm.mu.Unlock()

	tm.auditEvent(ctx, "connect", clientID, "")

	if count >= tm.cfg.RequiredPlayers {
		tm.mu.Lock()
		tm.state = StateReady
		ids := tm.peers.ConnectedIDs()
		tm.mu.Unlock()

		tm.setSessionStateGauge()
		tm.broadcastGameReady(ids)
	}
	return nil
}

func (tm *TurnManager) broadcastGameReady(ids []string) {
	data, err := protocol.Encode(protocol.TypeGameReady, protocol.GameReady{
		Players: len(ids),
		Clients: ids,
	})
	if err != nil {
		tm.logger.Error("failed to encode game_ready", "error", err)
		return
	}
	tm.peers.Broadcast(data)
}

// HandleClientReady records that clientID finished local preload.
// When every currently-connected client has acknowledged, it picks T0
// and transitions to SCHEDULED.
func (tm *TurnManager) HandleClientReady(clientID string) {
	tm.mu.Lock()
	if tm.state != StateReady {
		tm.mu.Unlock()
		tm.logger.Debug("protocol violation: client_ready outside READY state, ignoring",
			"client_id", clientID, "state", tm.state, "error", ErrProtocolViolation)
		return
	}
	tm.readyClients[clientID] = true

	ids := tm.peers.ConnectedIDs()
	allReady := len(ids) > 0
	for _, id := range ids {
		if !tm.readyClients[id] {
			allReady = false
			break
		}
	}
	if !allReady {
		tm.mu.Unlock()
		return
	}

	t0 := time.Now().Add(time.Duration(tm.cfg.GraceMS) * time.Millisecond).UnixMilli()
	tm.t0 = t0
	tm.state = StateScheduled
	tm.currentFrame = 0

	// Pre-initialize turn-table row 0 to empty lists for every client
	// (spec §4.4); frame 0 is never delivered as a real input_frame
	// broadcast since the client treats it as the special non-input
	// first tick (spec §4.5).
	row := make(lockstepinput.Row, len(ids))
	for _, id := range ids {
		row[id] = lockstepinput.List{}
	}
	tm.table.Finalize(row)
	tm.lastFinalized = 0
	tm.mu.Unlock()

	tm.setSessionStateGauge()
	tm.auditEvent(context.Background(), "game_start", "", "")

	data, err := protocol.Encode(protocol.TypeGameStart, protocol.GameStart{
		StartTime: t0,
		Players:   len(ids),
	})
	if err != nil {
		tm.logger.Error("failed to encode game_start", "error", err)
		return
	}
	tm.peers.Broadcast(data)
	tm.logger.Info("session scheduled", "t0", t0, "players", len(ids))
}

// HandleInput ingests one raw input sample from clientID. Empty
// inputs are dropped (spec §4.4).
func (tm *TurnManager) HandleInput(clientID string, raw lockstepinput.RawInput) {
	if lockstepinput.IsEmpty(raw) {
		return
	}
	tm.mu.Lock()
	running := tm.state == StateRunning
	tm.mu.Unlock()
	if !running {
		tm.logger.Debug("protocol violation: input outside RUNNING, ignoring",
			"client_id", clientID, "error", ErrProtocolViolation)
		return
	}
	tm.staging.Ingest(clientID, raw)
}

// HandleRequestFrames answers a gap-fill request with every requested
// frame whose turn has already been finalized.
func (tm *TurnManager) HandleRequestFrames(clientID string, frames []int) {
	if tm.mtr != nil {
		tm.mtr.GapFillRequests.Inc()
	}

	resp := protocol.FrameResponse{Frames: make(map[string]map[string][]protocol.InputPayload)}
	for _, f := range frames {
		turn := f / tm.cfg.TurnSize
		row, ok := tm.table.Row(turn)
		if !ok {
			continue
		}
		resp.Frames[strconv.Itoa(f)] = protocol.RowToWire(row)
	}

	data, err := protocol.Encode(protocol.TypeFrameResponse, resp)
	if err != nil {
		tm.logger.Error("failed to encode frame_response", "error", err)
		return
	}
	tm.peers.SendTo(clientID, data)
}

// HandleDisconnect removes clientID's readiness bookkeeping and, if
// the session is RUNNING and the connected count has dropped below
// required_players, aborts the session.
func (tm *TurnManager) HandleDisconnect(ctx context.Context, clientID string) {
	tm.auditEvent(ctx, "disconnect", clientID, "")

	tm.mu.Lock()
	delete(tm.readyClients, clientID)
	running := tm.state == StateRunning
	underflow := running && tm.peers.Count() < tm.cfg.RequiredPlayers
	tm.mu.Unlock()

	if underflow {
		tm.abort(ctx)
	}
}

func (tm *TurnManager) abort(ctx context.Context) {
	tm.mu.Lock()
	tm.state = StateAborted
	tm.mu.Unlock()
	tm.setSessionStateGauge()
	tm.auditEvent(ctx, "abort", "", "player underflow")
	tm.logger.Warn("session aborted on player underflow")

	tm.mu.Lock()
	tm.state = StateLobby
	tm.epoch++
	tm.readyClients = make(map[string]bool)
	tm.cohort = make(map[string]bool)
	tm.currentFrame = 0
	tm.lastFinalized = -1
	tm.staging = lockstepinput.NewStagingBuffer()
	tm.table = NewTurnTable()
	tm.mu.Unlock()
	tm.setSessionStateGauge()
}

// Epoch returns the session's current generation counter, incremented
// on every ABORTED->LOBBY reset, used to invalidate reconnect tokens
// issued to a prior cohort.
func (tm *TurnManager) Epoch() int64 {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.epoch
}

// Run drives the tick loop at a fixed real-time poll rate independent
// of TICK_HZ (spec §5: "~100 Hz real-time polling"), until ctx is
// canceled.
func (tm *TurnManager) Run(ctx context.Context) {
	const pollInterval = 10 * time.Millisecond
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tm.poll()
		}
	}
}

// Poll runs one iteration of the tick loop's body, exported for tests
// and in-process harnesses that drive the loop manually instead of via
// Run's ticker.
func (tm *TurnManager) Poll() {
	tm.poll()
}

func (tm *TurnManager) poll() {
	start := time.Now()
	defer func() {
		if tm.mtr != nil {
			tm.mtr.TurnLoopDuration.Observe(time.Since(start).Seconds())
		}
	}()

	tm.mu.Lock()
	if tm.state != StateScheduled && tm.state != StateRunning {
		tm.mu.Unlock()
		return
	}
	t0 := tm.t0
	tm.mu.Unlock()

	now := time.Now().UnixMilli()
	if now < t0 {
		return
	}

	tm.mu.Lock()
	if tm.state == StateScheduled {
		tm.state = StateRunning
		tm.mu.Unlock()
		tm.setSessionStateGauge()
	} else {
		tm.mu.Unlock()
	}

	frame := int((now - t0) * int64(tm.cfg.TickHz) / 1000)

	tm.mu.Lock()
	if frame < tm.currentFrame {
		tm.mu.Unlock()
		return
	}
	tm.currentFrame = frame
	turn := frame / tm.cfg.TurnSize
	lastFinalized := tm.lastFinalized
	tm.mu.Unlock()

	if tm.mtr != nil && turn-lastFinalized > 1 {
		// More than one turn boundary elapsed since the last poll: the
		// loop itself fell behind wall clock (e.g. a scheduling or GC
		// pause), not a client waiting on input.
		tm.mtr.TurnStalls.Inc()
	}

	for t := lastFinalized + 1; t <= turn; t++ {
		tm.finalizeAndBroadcast(t)
	}
}

func (tm *TurnManager) finalizeAndBroadcast(turn int) {
	ids := tm.peers.ConnectedIDs()
	sort.Strings(ids)
	row := tm.staging.Drain(ids)
	tm.table.Finalize(row)

	tm.mu.Lock()
	tm.lastFinalized = turn
	tm.mu.Unlock()

	data, err := protocol.Encode(protocol.TypeInputFrame, protocol.InputFrame{
		CurrentFrame: turn * tm.cfg.TurnSize,
		Inputs:       protocol.RowToWire(row),
	})
	if err != nil {
		tm.logger.Error("failed to encode input_frame", "error", err, "turn", turn)
		return
	}
	tm.peers.Broadcast(data)

	if tm.mtr != nil {
		tm.mtr.TurnsFinalized.Inc()
		tm.mtr.BroadcastsSent.Inc()
	}
}

func (tm *TurnManager) auditEvent(ctx context.Context, event, clientID, detail string) {
	if tm.audit == nil {
		return
	}
	if err := tm.audit.LogEvent(ctx, event, clientID, detail); err != nil {
		tm.logger.Warn("audit log write failed", "event", event, "error", err)
	}
}

func (tm *TurnManager) setSessionStateGauge() {
	if tm.mtr == nil {
		return
	}
	state := tm.State()
	for _, s := range []SessionState{StateLobby, StateReady, StateScheduled, StateRunning, StateAborted} {
		v := 0.0
		if s == state {
			v = 1.0
		}
		tm.mtr.SessionState.WithLabelValues(string(s)).Set(v)
	}
}
