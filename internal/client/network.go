package client

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dungeongate/internal/protocol"
	"github.com/dungeongate/pkg/config"
)

// Network owns the websocket dial, the blocking receive loop, and
// exponential-backoff reconnection (spec §5: base 1.0s, factor 1.5,
// cap 30s, max MAX_RETRIES). It hands decoded messages to the
// FrameExecutor via InstallRow and a small set of session-lifecycle
// callbacks.
type Network struct {
	cfg    *config.ClientConfig
	logger *slog.Logger

	conn           *websocket.Conn
	reconnectToken string
	transmit       func(data []byte)

	executor *FrameExecutor

	OnWelcome     func(clientID, reconnectToken string)
	OnGameReady   func(players int, clients []string)
	OnGameStart   func(startTimeMillis int64, players int)
}

// NewNetwork constructs a Network bound to executor for input-frame
// and frame-response delivery.
func NewNetwork(cfg *config.ClientConfig, executor *FrameExecutor, logger *slog.Logger) *Network {
	n := &Network{cfg: cfg, executor: executor, logger: logger}
	executor.requestFrames = n.sendRequestFrames
	return n
}

// Run dials the server and services it until ctx is canceled,
// reconnecting with exponential backoff on transport failure up to
// MaxRetries times. Returns an error only once retries are exhausted.
func (n *Network) Run(ctx context.Context) error {
	backoff := n.cfg.Reconnect.BaseSeconds
	attempts := 0

	for {
		err := n.connectAndServe(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			return nil
		}

		attempts++
		if attempts > n.cfg.MaxRetries {
			return fmt.Errorf("client: exhausted %d reconnect attempts: %w", n.cfg.MaxRetries, err)
		}

		n.logger.Warn("connection lost, reconnecting", "attempt", attempts, "backoff_seconds", backoff, "error", err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(backoff * float64(time.Second))):
		}

		backoff *= n.cfg.Reconnect.Factor
		if backoff > n.cfg.Reconnect.CapSeconds {
			backoff = n.cfg.Reconnect.CapSeconds
		}
	}
}

func (n *Network) connectAndServe(ctx context.Context) error {
	url := n.cfg.ServerURL
	if n.reconnectToken != "" {
		url = fmt.Sprintf("%s?reconnect_token=%s", url, n.reconnectToken)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("client: dial: %w", err)
	}
	n.conn = conn
	defer conn.Close()

	go n.sendConnectRequest()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("client: read: %w", err)
		}
		n.handleMessage(data)
	}
}

func (n *Network) sendConnectRequest() {
	data, err := protocol.Encode(protocol.TypeConnectRequest, protocol.ConnectRequest{ReconnectToken: n.reconnectToken})
	if err != nil {
		return
	}
	n.writeMessage(data)
}

// SendClientReady signals local preload is complete.
func (n *Network) SendClientReady() {
	data, err := protocol.Encode(protocol.TypeClientReady, protocol.ClientReady{})
	if err != nil {
		n.logger.Error("failed to encode client_ready", "error", err)
		return
	}
	n.writeMessage(data)
}

// SendInput transmits one non-empty captured raw input.
func (n *Network) SendInput(movement string, shoot bool) {
	data, err := protocol.Encode(protocol.TypeInput, protocol.InputPayload{Movement: movement, Shoot: shoot})
	if err != nil {
		n.logger.Error("failed to encode input", "error", err)
		return
	}
	n.writeMessage(data)
}

func (n *Network) sendRequestFrames(frames []int) {
	data, err := protocol.Encode(protocol.TypeRequestFrames, protocol.RequestFrames{Frames: frames})
	if err != nil {
		n.logger.Error("failed to encode request_frames", "error", err)
		return
	}
	n.writeMessage(data)
}

func (n *Network) writeMessage(data []byte) {
	if n.transmit != nil {
		n.transmit(data)
		return
	}
	if n.conn == nil {
		return
	}
	if err := n.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		n.logger.Warn("write failed", "error", err)
	}
}

// SetLoopbackTransmit overrides message delivery with fn instead of a
// real websocket write, so a test harness can drive this Network
// in-process against an in-process server without a socket.
func (n *Network) SetLoopbackTransmit(fn func(data []byte)) {
	n.transmit = fn
}

// HandleMessage feeds one already-framed server message into this
// Network's dispatch, for use by an in-process harness that bypasses
// the real websocket read loop.
func (n *Network) HandleMessage(data []byte) {
	n.handleMessage(data)
}

func (n *Network) handleMessage(data []byte) {
	env, err := protocol.DecodeEnvelope(data)
	if err != nil {
		n.logger.Debug("dropping malformed or unknown message", "error", err)
		return
	}

	switch env.Type {
	case protocol.TypeWelcome:
		var welcome protocol.Welcome
		if err := protocol.DecodePayload(env, &welcome); err != nil {
			return
		}
		n.reconnectToken = welcome.ReconnectToken
		if n.OnWelcome != nil {
			n.OnWelcome(welcome.ClientID, welcome.ReconnectToken)
		}
	case protocol.TypeGameReady:
		var ready protocol.GameReady
		if err := protocol.DecodePayload(env, &ready); err != nil {
			return
		}
		if n.OnGameReady != nil {
			n.OnGameReady(ready.Players, ready.Clients)
		}
	case protocol.TypeGameStart:
		var start protocol.GameStart
		if err := protocol.DecodePayload(env, &start); err != nil {
			return
		}
		n.executor.SetT0(start.StartTime)
		if n.OnGameStart != nil {
			n.OnGameStart(start.StartTime, start.Players)
		}
	case protocol.TypeInputFrame:
		var frame protocol.InputFrame
		if err := protocol.DecodePayload(env, &frame); err != nil {
			return
		}
		n.executor.InstallRow(frame.CurrentFrame, protocol.WireToRow(frame.Inputs))
	case protocol.TypeFrameResponse:
		var resp protocol.FrameResponse
		if err := protocol.DecodePayload(env, &resp); err != nil {
			return
		}
		for frameStr, wire := range resp.Frames {
			f, err := strconv.Atoi(frameStr)
			if err != nil {
				continue
			}
			n.executor.InstallRow(f, protocol.WireToRow(wire))
		}
	default:
		n.logger.Debug("unexpected message type from server", "type", env.Type)
	}
}
