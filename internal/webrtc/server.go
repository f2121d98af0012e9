package webrtc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dj-oyu/motionglyph/internal/broadcast"
	"github.com/dj-oyu/motionglyph/internal/logger"
	"github.com/dj-oyu/motionglyph/internal/metrics"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
)

const (
	// ChannelLabel is the label of the data channel carrying events.
	ChannelLabel = "symbols"

	// Per-client queue of pending messages
	sendQueueSize = 32
)

var (
	// ErrMaxClients is returned by HandleOffer when the client limit is reached.
	ErrMaxClients = errors.New("maximum clients reached")
	// ErrInvalidOffer is returned by HandleOffer for malformed offers.
	ErrInvalidOffer = errors.New("invalid offer")
)

// Client represents a connected WebRTC client
type Client struct {
	id        string
	peerConn  *webrtc.PeerConnection
	channel   *webrtc.DataChannel
	sendChan  chan string
	openChan  chan struct{}
	closeChan chan struct{}
	closeOnce sync.Once
	sent      atomic.Uint64
	dropped   atomic.Uint64
}

// Server manages WebRTC connections
type Server struct {
	clients    map[string]*Client
	pending    int // offers holding a slot while they negotiate
	clientsMu  sync.RWMutex
	config     webrtc.Configuration
	maxClients int
	api        *webrtc.API
	metrics    *metrics.Metrics
}

// NewServer creates a new WebRTC server
func NewServer(stunServers []string, maxClients int) *Server {
	// Configure ICE servers
	iceServers := make([]webrtc.ICEServer, 0, len(stunServers))
	for _, url := range stunServers {
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs: []string{url},
		})
	}

	settingsEngine := webrtc.SettingEngine{}

	// Reduce DTLS retransmission timeout (faster connection, less CPU on retries)
	settingsEngine.SetDTLSRetransmissionInterval(time.Second * 2)

	settingsEngine.SetNetworkTypes([]webrtc.NetworkType{
		webrtc.NetworkTypeUDP4,
		webrtc.NetworkTypeUDP6,
	})

	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingsEngine))

	return &Server{
		clients: make(map[string]*Client),
		config: webrtc.Configuration{
			ICEServers: iceServers,
		},
		maxClients: maxClients,
		api:        api,
	}
}

// SetMetrics makes the server report its client count into m.
func (s *Server) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// HandleOffer handles a WebRTC offer and returns an answer. The answer opens
// an ordered data channel labelled ChannelLabel.
func (s *Server) HandleOffer(offerJSON []byte) ([]byte, error) {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(offerJSON, &offer); err != nil {
		return nil, fmt.Errorf("%w: failed to parse offer: %v", ErrInvalidOffer, err)
	}
	if offer.Type != webrtc.SDPTypeOffer || offer.SDP == "" {
		return nil, fmt.Errorf("%w: expected an SDP offer", ErrInvalidOffer)
	}

	if !s.reserve() {
		return nil, fmt.Errorf("%w (%d)", ErrMaxClients, s.maxClients)
	}
	reserved := true
	defer func() {
		if reserved {
			s.release()
		}
	}()

	peerConn, err := s.api.NewPeerConnection(s.config)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	ordered := true
	channel, err := peerConn.CreateDataChannel(ChannelLabel, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		peerConn.Close()
		return nil, fmt.Errorf("failed to create data channel: %w", err)
	}

	client := &Client{
		id:        uuid.NewString(),
		peerConn:  peerConn,
		channel:   channel,
		sendChan:  make(chan string, sendQueueSize),
		openChan:  make(chan struct{}),
		closeChan: make(chan struct{}),
	}

	channel.OnOpen(func() {
		logger.Info("WebRTC", "Client %s data channel open", client.id)
		close(client.openChan)
	})
	channel.OnClose(func() {
		logger.Debug("WebRTC", "Client %s data channel closed", client.id)
		s.dropClient(client)
	})

	// Remove client on disconnection, failure, or close
	peerConn.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		logger.Debug("WebRTC", "Client %s connection state: %s", client.id, state.String())

		if state == webrtc.PeerConnectionStateDisconnected ||
			state == webrtc.PeerConnectionStateFailed ||
			state == webrtc.PeerConnectionStateClosed {
			logger.Info("WebRTC", "Client %s connection lost (Peer: %s), removing...", client.id, state.String())
			s.dropClient(client)
		}
	})

	if err := peerConn.SetRemoteDescription(offer); err != nil {
		peerConn.Close()
		return nil, fmt.Errorf("%w: failed to set remote description: %v", ErrInvalidOffer, err)
	}

	answer, err := peerConn.CreateAnswer(nil)
	if err != nil {
		peerConn.Close()
		return nil, fmt.Errorf("failed to create answer: %w", err)
	}

	// Create a channel to signal when ICE gathering is complete
	gatherComplete := webrtc.GatheringCompletePromise(peerConn)

	if err := peerConn.SetLocalDescription(answer); err != nil {
		peerConn.Close()
		return nil, fmt.Errorf("failed to set local description: %w", err)
	}

	<-gatherComplete
	logger.Debug("WebRTC", "ICE gathering complete for client %s", client.id)

	ok := s.register(client)
	reserved = false
	if !ok {
		peerConn.Close()
		return nil, fmt.Errorf("client %s closed during negotiation", client.id)
	}

	go s.sendMessages(client)

	logger.Info("WebRTC", "Client %s connected", client.id)

	// Get the complete local description (with ICE candidates)
	localDesc := peerConn.LocalDescription()
	if localDesc == nil {
		s.RemoveClient(client.id)
		return nil, fmt.Errorf("no local description available")
	}

	answerJSON, err := json.Marshal(localDesc)
	if err != nil {
		s.RemoveClient(client.id)
		return nil, fmt.Errorf("failed to marshal answer: %w", err)
	}

	return answerJSON, nil
}

// Publish sends an event as JSON text to every client.
func (s *Server) Publish(_ context.Context, ev broadcast.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	s.SendText(string(data))
	return nil
}

// SendText queues a message for all connected clients
func (s *Server) SendText(text string) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, client := range s.clients {
		// Non-blocking send
		select {
		case client.sendChan <- text:
		default:
			// Queue full, drop message
			client.dropped.Add(1)
		}
	}
}

// sendMessages drains a client's queue once its data channel is open
func (s *Server) sendMessages(client *Client) {
	select {
	case <-client.closeChan:
		return
	case <-client.openChan:
	}

	for {
		select {
		case <-client.closeChan:
			return

		case text := <-client.sendChan:
			if err := client.channel.SendText(text); err != nil {
				logger.Warn("WebRTC", "Error sending to client %s: %v", client.id, err)
				go s.RemoveClient(client.id)
				return
			}
			client.sent.Add(1)
		}
	}
}

// reserve takes a client slot for an offer under negotiation.
func (s *Server) reserve() bool {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if len(s.clients)+s.pending >= s.maxClients {
		return false
	}
	s.pending++
	return true
}

func (s *Server) release() {
	s.clientsMu.Lock()
	s.pending--
	s.clientsMu.Unlock()
}

// register turns a reserved slot into a connected client. It refuses clients
// whose connection already went away while negotiating.
func (s *Server) register(client *Client) bool {
	s.clientsMu.Lock()
	s.pending--
	select {
	case <-client.closeChan:
		s.clientsMu.Unlock()
		return false
	default:
	}
	s.clients[client.id] = client
	count := len(s.clients)
	s.clientsMu.Unlock()

	s.reportCount(count)
	return true
}

// dropClient marks a client closed and removes it once registered. Callbacks
// may fire before registration; the closed mark keeps register from adding it.
func (s *Server) dropClient(client *Client) {
	client.closeOnce.Do(func() { close(client.closeChan) })
	go s.RemoveClient(client.id)
}

// RemoveClient removes a client by ID
func (s *Server) RemoveClient(clientID string) {
	s.clientsMu.Lock()
	client, exists := s.clients[clientID]
	if exists {
		delete(s.clients, clientID)
	}
	count := len(s.clients)
	s.clientsMu.Unlock()

	if !exists {
		return
	}
	s.reportCount(count)

	client.closeOnce.Do(func() { close(client.closeChan) })
	if err := client.peerConn.Close(); err != nil {
		logger.Debug("WebRTC", "Client %s close: %v", clientID, err)
	}

	logger.Info("WebRTC", "Client %s disconnected (sent: %d, dropped: %d)",
		clientID, client.sent.Load(), client.dropped.Load())
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// ClientStats returns stats for all clients
func (s *Server) ClientStats() map[string]map[string]uint64 {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	stats := make(map[string]map[string]uint64)
	for id, client := range s.clients {
		stats[id] = map[string]uint64{
			"messages_sent":    client.sent.Load(),
			"messages_dropped": client.dropped.Load(),
		}
	}
	return stats
}

// Close closes all client connections
func (s *Server) Close() error {
	s.clientsMu.RLock()
	ids := make([]string, 0, len(s.clients))
	for id := range s.clients {
		ids = append(ids, id)
	}
	s.clientsMu.RUnlock()

	for _, id := range ids {
		s.RemoveClient(id)
	}
	return nil
}

func (s *Server) reportCount(n int) {
	if s.metrics != nil {
		s.metrics.WebRTCClients.Store(uint64(n))
	}
}
