package harness

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/dungeongate/internal/client"
	"github.com/dungeongate/internal/lockstepinput"
	"github.com/dungeongate/internal/protocol"
	"github.com/dungeongate/internal/server"
	"github.com/dungeongate/pkg/config"
)

// RecordingSim is a Simulator test double that records every
// installed-input step, the raw material for Digest.
type RecordingSim struct {
	mu    sync.Mutex
	Steps []Snapshot
}

// Step implements client.Simulator. The actual per-frame recording
// happens via the executor's OnFrameAdvanced hook, which also carries
// the frame number; Step itself has nothing to do.
func (s *RecordingSim) Step(inputs lockstepinput.Table) {}

// VirtualClient is one scripted peer: a real FrameExecutor and Network
// wired to the harness's loopback transport instead of a socket.
type VirtualClient struct {
	ID       string
	Network  *client.Network
	Executor *client.FrameExecutor
	Sim      *RecordingSim

	WelcomeReceived   chan struct{}
	GameReadyReceived chan struct{}
	GameStartReceived chan struct{}

	welcomeOnce   sync.Once
	gameReadyOnce sync.Once
	gameStartOnce sync.Once
}

// Harness wires a real server.TurnManager to any number of
// VirtualClients entirely in-process, simulating the network as a
// direct function call instead of a socket, for exercising scenarios
// S1-S6 without bringing up a listener.
type Harness struct {
	cfg    *config.ServerConfig
	tm     *server.TurnManager
	peers  *loopbackPeers
	logger *slog.Logger
}

// NewHarness constructs a Harness around a freshly built TurnManager.
func NewHarness(cfg *config.ServerConfig) *Harness {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	peers := newLoopbackPeers()
	tm := server.NewTurnManager(cfg, peers, nil, nil, logger)

	return &Harness{cfg: cfg, tm: tm, peers: peers, logger: logger}
}

// TurnManager exposes the harness's underlying turn manager for tests
// that need to assert on session state directly.
func (h *Harness) TurnManager() *server.TurnManager {
	return h.tm
}

// Connect builds a virtual client and binds it into the loopback
// registry before admitting it, so that any game_ready/game_start
// broadcast Admit triggers synchronously is deliverable — mirroring
// the real orchestrator, where a peer is registered before the turn
// manager is asked to admit it.
func (h *Harness) Connect(ctx context.Context, id string) (*VirtualClient, error) {
	h.peers.add(id)

	sim := &RecordingSim{}
	clientCfg := config.DefaultClientConfig()
	exec := client.NewFrameExecutor(h.cfg.TickHz, h.cfg.TurnSize, clientCfg.CatchupCap, sim, nil)

	vc := &VirtualClient{
		ID:                id,
		Executor:          exec,
		Sim:               sim,
		WelcomeReceived:   make(chan struct{}),
		GameReadyReceived: make(chan struct{}),
		GameStartReceived: make(chan struct{}),
	}
	exec.OnFrameAdvanced(func(frame int, inputs lockstepinput.Table) {
		sim.mu.Lock()
		sim.Steps = append(sim.Steps, Snapshot{Frame: frame, Inputs: inputs})
		sim.mu.Unlock()
	})

	net := client.NewNetwork(clientCfg, exec, h.logger)
	net.SetLoopbackTransmit(func(data []byte) {
		h.dispatchFromClient(ctx, id, data)
	})
	net.OnWelcome = func(string, string) { vc.welcomeOnce.Do(func() { close(vc.WelcomeReceived) }) }
	net.OnGameReady = func(int, []string) { vc.gameReadyOnce.Do(func() { close(vc.GameReadyReceived) }) }
	net.OnGameStart = func(int64, int) { vc.gameStartOnce.Do(func() { close(vc.GameStartReceived) }) }
	vc.Network = net

	h.peers.bind(id, vc)

	if err := h.tm.Admit(ctx, id); err != nil {
		h.peers.remove(id)
		return nil, err
	}

	welcome := protocol.Welcome{ClientID: id}
	data, _ := protocol.Encode(protocol.TypeWelcome, welcome)
	net.HandleMessage(data)

	return vc, nil
}

// Disconnect removes a virtual client, mirroring socket close.
func (h *Harness) Disconnect(ctx context.Context, id string) {
	h.peers.remove(id)
	h.tm.HandleDisconnect(ctx, id)
}

// Tick drives one turn-manager poll iteration (exported for tests that
// need fine-grained control over the tick loop instead of running it
// via TurnManager.Run).
func (h *Harness) Tick() {
	h.tm.Poll()
}

func (h *Harness) dispatchFromClient(ctx context.Context, id string, data []byte) {
	env, err := protocol.DecodeEnvelope(data)
	if err != nil {
		return
	}
	switch env.Type {
	case protocol.TypeConnectRequest:
	case protocol.TypeClientReady:
		h.tm.HandleClientReady(id)
	case protocol.TypeInput:
		var payload protocol.InputPayload
		if protocol.DecodePayload(env, &payload) == nil {
			h.tm.HandleInput(id, protocol.PayloadToRawInput(payload))
		}
	case protocol.TypeRequestFrames:
		var payload protocol.RequestFrames
		if protocol.DecodePayload(env, &payload) == nil {
			h.tm.HandleRequestFrames(id, payload.Frames)
		}
	}
}

// loopbackPeers implements server.Peers by delivering broadcast/send
// traffic directly to each VirtualClient's Network instead of a
// socket.
type loopbackPeers struct {
	mu      sync.RWMutex
	ids     []string
	clients map[string]*VirtualClient
}

func newLoopbackPeers() *loopbackPeers {
	return &loopbackPeers{clients: make(map[string]*VirtualClient)}
}

func (l *loopbackPeers) add(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ids = append(l.ids, id)
}

func (l *loopbackPeers) bind(id string, vc *VirtualClient) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clients[id] = vc
}

func (l *loopbackPeers) remove(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, existing := range l.ids {
		if existing == id {
			l.ids = append(l.ids[:i], l.ids[i+1:]...)
			break
		}
	}
	delete(l.clients, id)
}

func (l *loopbackPeers) ConnectedIDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, len(l.ids))
	copy(out, l.ids)
	return out
}

func (l *loopbackPeers) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.ids)
}

func (l *loopbackPeers) SendTo(id string, data []byte) {
	l.mu.RLock()
	vc, ok := l.clients[id]
	l.mu.RUnlock()
	if ok {
		vc.Network.HandleMessage(data)
	}
}

func (l *loopbackPeers) Broadcast(data []byte) {
	l.mu.RLock()
	targets := make([]*VirtualClient, 0, len(l.clients))
	for _, vc := range l.clients {
		targets = append(targets, vc)
	}
	l.mu.RUnlock()
	for _, vc := range targets {
		vc.Network.HandleMessage(data)
	}
}
