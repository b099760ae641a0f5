package api

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/log/level"
	"github.com/gorilla/websocket"
	"github.com/vaultpass/go-vaultpass-core/global"
	"github.com/vaultpass/go-vaultpass-core/protocol"
)

// RelayAPI is the development relay: it pairs two WebSocket peers on a
// channel and forwards frames between them verbatim. The production relay is
// an external collaborator; this one exists for local development and the
// end-to-end protocol tests.
type RelayAPI struct {
	mu       sync.Mutex
	channels map[string]*relayChannel
}

type relayChannel struct {
	mu sync.Mutex
	// at most two peers per channel
	peers []*relayPeer
	// frames seen before the partner joined
	pending [][]byte
}

type relayPeer struct {
	conn *websocket.Conn
	out  chan []byte
}

func NewRelayAPI() *RelayAPI {
	return &RelayAPI{channels: make(map[string]*relayChannel)}
}

func (ra *RelayAPI) channel(id string) *relayChannel {
	ra.mu.Lock()
	defer ra.mu.Unlock()
	ch, ok := ra.channels[id]
	if !ok {
		ch = &relayChannel{}
		ra.channels[id] = ch
	}
	return ch
}

// Join upgrades the request and attaches the peer to its channel. A channel
// holds at most two peers; a third connection is rejected.
func (ra *RelayAPI) Join(c *gin.Context) {
	channelID := c.Param("channel")
	if channelID == "" {
		ApiErrorf(c, http.StatusBadRequest, "channel is required")
		return
	}
	ch := ra.channel(channelID)

	ch.mu.Lock()
	if len(ch.peers) >= 2 {
		ch.mu.Unlock()
		ApiErrorf(c, http.StatusConflict, "channel %s is full", channelID)
		return
	}
	conn, err := protocol.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		ch.mu.Unlock()
		level.Error(global.Logger).Log("msg", "websocket upgrade failed", "err", err)
		return
	}
	peer := &relayPeer{conn: conn, out: make(chan []byte, 64)}
	ch.peers = append(ch.peers, peer)
	// deliver frames the first peer sent before this one joined
	if len(ch.peers) == 2 {
		for _, frame := range ch.pending {
			peer.out <- frame
		}
		ch.pending = nil
	}
	ch.mu.Unlock()

	go peer.writeLoop()
	ra.readLoop(channelID, ch, peer)
}

func (ra *RelayAPI) readLoop(channelID string, ch *relayChannel, peer *relayPeer) {
	defer func() {
		peer.conn.Close()
		ra.detach(channelID, ch, peer)
		close(peer.out)
	}()
	for {
		msgType, data, err := peer.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if !ch.forward(peer, data) {
			return
		}
	}
}

// forward hands a frame to the other peer, queueing it when the partner has
// not joined yet. Returns false when the partner's buffer is full; the
// session is dropped rather than buffered unbounded.
func (ch *relayChannel) forward(from *relayPeer, data []byte) bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	for _, p := range ch.peers {
		if p == from {
			continue
		}
		select {
		case p.out <- data:
			return true
		default:
			return false
		}
	}
	ch.pending = append(ch.pending, data)
	return true
}

func (p *relayPeer) writeLoop() {
	for data := range p.out {
		if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

// detach removes the peer under the channel lock so no forward can target it
// once its out channel closes.
func (ra *RelayAPI) detach(channelID string, ch *relayChannel, peer *relayPeer) {
	ch.mu.Lock()
	for i, p := range ch.peers {
		if p == peer {
			ch.peers = append(ch.peers[:i], ch.peers[i+1:]...)
			break
		}
	}
	empty := len(ch.peers) == 0
	ch.mu.Unlock()

	if empty {
		ra.mu.Lock()
		delete(ra.channels, channelID)
		ra.mu.Unlock()
	}
}
