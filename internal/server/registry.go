package server

import (
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dungeongate/pkg/metrics"
)

// Peer is one connected client: its assigned identity, its underlying
// websocket connection, and a bounded outbound queue drained by a
// writer goroutine so a slow or wedged client can never block the
// broadcast to everyone else (spec §4.4: "inability to broadcast to
// one peer does not abort the broadcast to others").
type Peer struct {
	ID         string
	RemoteAddr string
	conn       *websocket.Conn
	send       chan []byte
	closeOnce  sync.Once
	done       chan struct{}
}

// Send enqueues data for delivery to this peer without blocking the
// caller. If the peer's outbound queue is full, the message is
// dropped rather than stalling the broadcaster.
func (p *Peer) Send(data []byte) {
	select {
	case p.send <- data:
	default:
	}
}

func (p *Peer) close() {
	p.closeOnce.Do(func() {
		close(p.done)
		p.conn.Close()
	})
}

// Registry is the connection registry for C6: client_id -> send sink,
// plus per-IP rate limiting and connection counters. Adapted from the
// stateless connection manager pattern: the registry itself holds no
// simulation state, only transport-level bookkeeping.
type Registry struct {
	maxConnections int
	logger         *slog.Logger
	rateLimitPerIP int
	mtr            *metrics.LockstepMetrics

	mu    sync.RWMutex
	peers map[string]*Peer

	activeConnections int64
	totalConnections   int64

	ipTracker sync.Map // map[string]*ipTracker
}

type ipTracker struct {
	mu          sync.Mutex
	count       int
	lastAttempt time.Time
}

// NewRegistry constructs an empty connection registry. mtr may be nil
// to disable metrics.
func NewRegistry(maxConnections, rateLimitPerIP int, mtr *metrics.LockstepMetrics, logger *slog.Logger) *Registry {
	return &Registry{
		maxConnections: maxConnections,
		rateLimitPerIP: rateLimitPerIP,
		mtr:            mtr,
		logger:         logger,
		peers:          make(map[string]*Peer),
	}
}

// Accept validates connection limits and rate limits before a peer is
// admitted, returning a freshly minted peer wired to conn. clientID,
// when non-empty (a resolved reconnect identity), is reused instead of
// minting a new UUID.
func (r *Registry) Accept(conn *websocket.Conn, clientID string) (*Peer, error) {
	if atomic.LoadInt64(&r.activeConnections) >= int64(r.maxConnections) {
		r.countRejected("max_connections")
		return nil, ErrMaxConnections
	}

	remoteIP := ipFromAddr(conn.RemoteAddr())
	if !r.checkRateLimit(remoteIP) {
		r.countRejected("rate_limited")
		return nil, ErrRateLimited
	}

	if clientID == "" {
		clientID = uuid.New().String()
	}

	peer := &Peer{
		ID:         clientID,
		RemoteAddr: remoteIP,
		conn:       conn,
		send:       make(chan []byte, 64),
		done:       make(chan struct{}),
	}

	r.mu.Lock()
	r.peers[clientID] = peer
	r.mu.Unlock()

	active := atomic.AddInt64(&r.activeConnections, 1)
	atomic.AddInt64(&r.totalConnections, 1)
	if r.mtr != nil {
		r.mtr.ConnectionsActive.Set(float64(active))
		r.mtr.ConnectionsTotal.Inc()
	}

	r.logger.Info("connection registered", "client_id", clientID, "remote_addr", remoteIP,
		"active", active)

	return peer, nil
}

// Remove unregisters a peer and closes its connection.
func (r *Registry) Remove(clientID string) {
	r.mu.Lock()
	peer, ok := r.peers[clientID]
	if ok {
		delete(r.peers, clientID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	peer.close()
	active := atomic.AddInt64(&r.activeConnections, -1)
	if r.mtr != nil {
		r.mtr.ConnectionsActive.Set(float64(active))
	}
	r.logger.Info("connection unregistered", "client_id", clientID, "active", active)
}

// RejectAndClose closes conn immediately with reason, without ever
// registering it (used for the "Game already in progress" path).
func (r *Registry) RejectAndClose(conn *websocket.Conn, reason string) {
	r.countRejected(reason)
	closeMsg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second))
	conn.Close()
}

func (r *Registry) countRejected(reason string) {
	if r.mtr != nil {
		r.mtr.ConnectionsRejected.WithLabelValues(reason).Inc()
	}
}

// ConnectedIDs returns the client ids currently registered, in no
// particular order.
func (r *Registry) ConnectedIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.peers))
	for id := range r.peers {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of currently registered peers.
func (r *Registry) Count() int {
	return int(atomic.LoadInt64(&r.activeConnections))
}

// SendTo enqueues data for one peer by id. A missing peer is a no-op.
func (r *Registry) SendTo(id string, data []byte) {
	r.mu.RLock()
	peer, ok := r.peers[id]
	r.mu.RUnlock()
	if !ok {
		return
	}
	peer.Send(data)
}

// Broadcast enqueues data for every currently connected peer.
func (r *Registry) Broadcast(data []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, peer := range r.peers {
		peer.Send(data)
	}
}

// Shutdown closes every registered peer's connection. For each peer it
// waits up to timeout for the writer goroutine to empty the outbound
// queue, then sends a close frame and tears down the socket, satisfying C6's "synchronous shutdown ... drains in-flight
// sends with a bounded timeout" requirement (spec §4.6). It does not
// accept new connections after being called; callers close the HTTP
// listener separately.
func (r *Registry) Shutdown(timeout time.Duration) {
	r.mu.Lock()
	peers := make([]*Peer, 0, len(r.peers))
	for _, peer := range r.peers {
		peers = append(peers, peer)
	}
	r.peers = make(map[string]*Peer)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, peer := range peers {
		wg.Add(1)
		go func(p *Peer) {
			defer wg.Done()
			deadline := time.Now().Add(timeout)
			for len(p.send) > 0 && time.Now().Before(deadline) {
				time.Sleep(10 * time.Millisecond)
			}
			closeMsg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			p.conn.WriteControl(websocket.CloseMessage, closeMsg, deadline)
			p.close()
		}(peer)
	}
	wg.Wait()
	atomic.StoreInt64(&r.activeConnections, 0)
}

// Peer looks up a connected peer by id.
func (r *Registry) Peer(id string) (*Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	peer, ok := r.peers[id]
	return peer, ok
}

func (r *Registry) checkRateLimit(remoteIP string) bool {
	now := time.Now()
	trackerIface, _ := r.ipTracker.LoadOrStore(remoteIP, &ipTracker{lastAttempt: now})
	tr := trackerIface.(*ipTracker)

	tr.mu.Lock()
	defer tr.mu.Unlock()

	if tr.count >= r.rateLimitPerIP {
		return false
	}
	tr.count++
	tr.lastAttempt = now
	return true
}

// CleanupIdleIPTrackers removes rate-limit entries idle for longer
// than maxIdle, bounding memory growth across long-lived servers.
func (r *Registry) CleanupIdleIPTrackers(maxIdle time.Duration) {
	now := time.Now()
	r.ipTracker.Range(func(key, value any) bool {
		tr := value.(*ipTracker)
		tr.mu.Lock()
		idle := now.Sub(tr.lastAttempt) > maxIdle
		tr.mu.Unlock()
		if idle {
			r.ipTracker.Delete(key)
		}
		return true
	})
}

func ipFromAddr(addr net.Addr) string {
	switch v := addr.(type) {
	case *net.TCPAddr:
		return v.IP.String()
	default:
		addrStr := addr.String()
		if strings.Contains(addrStr, ":") {
			host, _, err := net.SplitHostPort(addrStr)
			if err == nil {
				return host
			}
		}
		return addrStr
	}
}
