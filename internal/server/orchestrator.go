package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dungeongate/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Orchestrator is the session orchestrator (C6): it owns the socket
// lifecycle, assigns identities on accept, and routes decoded messages
// to the turn manager. Modeled on the read/write-pump pattern used by
// every websocket game server in the retrieval pack, combined with the
// teacher's subscribe/unsubscribe broadcast-fan-out shape.
type Orchestrator struct {
	registry   *Registry
	turnMgr    *TurnManager
	reconnect  *ReconnectIssuer
	logger     *slog.Logger
}

// NewOrchestrator constructs an Orchestrator. reconnect may be nil to
// disable the reconnect-token feature.
func NewOrchestrator(registry *Registry, turnMgr *TurnManager, reconnect *ReconnectIssuer, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{registry: registry, turnMgr: turnMgr, reconnect: reconnect, logger: logger}
}

// ServeHTTP upgrades the request to a websocket connection and runs
// its lifecycle until the socket closes.
func (o *Orchestrator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		o.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	clientID := o.resolveReconnect(r)

	peer, err := o.registry.Accept(conn, clientID)
	if err != nil {
		o.logger.Info("connection rejected", "error", err, "remote_addr", conn.RemoteAddr())
		o.registry.RejectAndClose(conn, err.Error())
		return
	}

	ctx := context.Background()
	if admitErr := o.turnMgr.Admit(ctx, peer.ID); admitErr != nil {
		o.registry.Remove(peer.ID)
		o.registry.RejectAndClose(conn, admitErr.Error())
		return
	}

	o.sendWelcome(peer)

	go o.writePump(peer)
	o.readPump(ctx, peer)
}

func (o *Orchestrator) resolveReconnect(r *http.Request) string {
	if o.reconnect == nil {
		return ""
	}
	tok := r.URL.Query().Get("reconnect_token")
	if tok == "" {
		return ""
	}
	clientID, err := o.reconnect.Validate(tok, o.turnMgr.Epoch())
	if err != nil {
		o.logger.Debug("reconnect token rejected", "error", err)
		if o.registry.mtr != nil {
			o.registry.mtr.ReconnectsRejected.Inc()
		}
		return ""
	}
	if o.registry.mtr != nil {
		o.registry.mtr.ReconnectsSucceeded.Inc()
	}
	return clientID
}

func (o *Orchestrator) sendWelcome(peer *Peer) {
	welcome := protocol.Welcome{ClientID: peer.ID}
	if o.reconnect != nil {
		if tok, err := o.reconnect.Issue(peer.ID, o.turnMgr.Epoch()); err == nil {
			welcome.ReconnectToken = tok
		}
	}
	data, err := protocol.Encode(protocol.TypeWelcome, welcome)
	if err != nil {
		o.logger.Error("failed to encode welcome", "error", err)
		return
	}
	peer.Send(data)
}

func (o *Orchestrator) readPump(ctx context.Context, peer *Peer) {
	defer func() {
		o.registry.Remove(peer.ID)
		o.turnMgr.HandleDisconnect(ctx, peer.ID)
	}()

	peer.conn.SetReadLimit(maxMessageSize)
	peer.conn.SetReadDeadline(time.Now().Add(pongWait))
	peer.conn.SetPongHandler(func(string) error {
		peer.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := peer.conn.ReadMessage()
		if err != nil {
			return
		}
		o.handleMessage(peer, data)
	}
}

func (o *Orchestrator) handleMessage(peer *Peer, data []byte) {
	env, err := protocol.DecodeEnvelope(data)
	if err != nil {
		o.logger.Debug("dropping malformed or unknown message", "client_id", peer.ID, "error", err)
		return
	}

	switch env.Type {
	case protocol.TypeConnectRequest:
		// Optional handshake ack; no-op beyond logging (spec §6).
	case protocol.TypeClientReady:
		o.turnMgr.HandleClientReady(peer.ID)
	case protocol.TypeInput:
		var payload protocol.InputPayload
		if err := protocol.DecodePayload(env, &payload); err != nil {
			o.logger.Debug("dropping malformed input", "client_id", peer.ID, "error", err)
			return
		}
		o.turnMgr.HandleInput(peer.ID, protocol.PayloadToRawInput(payload))
	case protocol.TypeRequestFrames:
		var payload protocol.RequestFrames
		if err := protocol.DecodePayload(env, &payload); err != nil {
			o.logger.Debug("dropping malformed request_frames", "client_id", peer.ID, "error", err)
			return
		}
		o.turnMgr.HandleRequestFrames(peer.ID, payload.Frames)
	default:
		o.logger.Debug("protocol violation: unexpected message type from client", "client_id", peer.ID, "type", env.Type)
	}
}

func (o *Orchestrator) writePump(peer *Peer) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		peer.conn.Close()
	}()

	for {
		select {
		case data, ok := <-peer.send:
			peer.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				peer.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := peer.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			peer.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := peer.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-peer.done:
			return
		}
	}
}
