package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"marketpulse/models"
	"marketpulse/services/marketdata"

	"github.com/gorilla/websocket"
)

// Hub configuration
const (
	MaxClients               = 256
	SendBufferSize           = 64
	WriteTimeout             = 10 * time.Second
	PongTimeout              = 60 * time.Second
	PingInterval             = 30 * time.Second
	DefaultBroadcastInterval = 30 * time.Second
	snapshotTimeout          = 15 * time.Second
)

// Room name builders. Symbol and news rooms are public; user rooms are
// private to the authenticated owner.
func SymbolRoom(symbol string) string { return "symbol:" + symbol }
func NewsRoom(category string) string { return "news:" + category }
func UserAlertsRoom(userID uint) string {
	return fmt.Sprintf("user:%d:alerts", userID)
}
func UserPortfolioRoom(userID uint) string {
	return fmt.Sprintf("user:%d:portfolio", userID)
}

// Message is the JSON envelope pushed to subscribers
type Message struct {
	Type string      `json:"type"`
	Room string      `json:"room,omitempty"`
	Data interface{} `json:"data"`
	Time string      `json:"time"`
}

// QuoteBatcher resolves symbols in one batch for ticks and snapshots
type QuoteBatcher interface {
	GetBatch(ctx context.Context, symbols []string) map[string]marketdata.BatchResult
}

// Hub maintains room memberships over websocket connections and pushes
// market data to exactly the rooms that asked for it.
type Hub struct {
	quotes   QuoteBatcher
	upgrader websocket.Upgrader
	interval time.Duration

	mu      sync.RWMutex
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool

	runMu     sync.Mutex
	stopChan  chan struct{}
	isRunning bool
}

// NewHub creates a hub backed by the given quote source
func NewHub(quotes QuoteBatcher) *Hub {
	return &Hub{
		quotes: quotes,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		interval: DefaultBroadcastInterval,
		clients:  make(map[*Client]bool),
		rooms:    make(map[string]map[*Client]bool),
	}
}

// SetBroadcastInterval overrides the periodic broadcast interval
func (h *Hub) SetBroadcastInterval(interval time.Duration) {
	if interval > 0 {
		h.interval = interval
	}
}

// HandleWebSocket upgrades the connection and starts the client pumps.
// userID is zero for unauthenticated connections, which may still join
// public symbol and news rooms.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request, userID uint) {
	h.mu.RLock()
	atCapacity := len(h.clients) >= MaxClients
	h.mu.RUnlock()
	if atCapacity {
		http.Error(w, "Server at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("realtime: websocket upgrade error: %v", err)
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, SendBufferSize),
		userID: userID,
		rooms:  make(map[string]bool),
	}

	// The pre-upgrade check is only a fast reject. Concurrent upgrades race
	// past it, so the limit is enforced again atomically with the insert.
	h.mu.Lock()
	if len(h.clients) >= MaxClients {
		h.mu.Unlock()
		deadline := time.Now().Add(WriteTimeout)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server at capacity"), deadline)
		conn.Close()
		return
	}
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()
	log.Printf("realtime: client connected (user=%d). Total clients: %d", userID, count)

	go client.writePump()
	go client.readPump()
}

// Join adds a client to a room. User-scoped rooms are refused for
// unauthenticated or foreign clients.
func (h *Hub) Join(c *Client, room string) error {
	if strings.HasPrefix(room, "user:") {
		if c.userID == 0 {
			return fmt.Errorf("authentication required for room %s", room)
		}
		if !strings.HasPrefix(room, fmt.Sprintf("user:%d:", c.userID)) {
			return fmt.Errorf("room %s does not belong to user %d", room, c.userID)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[c] {
		return fmt.Errorf("client not registered")
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]bool)
		h.rooms[room] = members
	}
	members[c] = true
	c.rooms[room] = true
	return nil
}

// Leave removes a client from a room
func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromRoom(c, room)
}

// Disconnect releases all of a client's memberships and closes its channel
func (h *Hub) Disconnect(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[c] {
		return
	}
	for room := range c.rooms {
		h.removeFromRoom(c, room)
	}
	delete(h.clients, c)
	close(c.send)
	log.Printf("realtime: client disconnected (user=%d). Total clients: %d", c.userID, len(h.clients))
}

// removeFromRoom must be called with h.mu held
func (h *Hub) removeFromRoom(c *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(c.rooms, room)
}

// Broadcast pushes a message to every member of a room. Clients with a full
// send buffer are dropped rather than allowed to block the emission.
func (h *Hub) Broadcast(room string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("realtime: marshal broadcast message: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	var dead []*Client
	for client := range members {
		select {
		case client.send <- data:
		default:
			dead = append(dead, client)
		}
	}
	for _, client := range dead {
		for r := range client.rooms {
			h.removeFromRoom(client, r)
		}
		delete(h.clients, client)
		close(client.send)
	}
}

// PushAlertTriggered relays a triggered alert to the owner's alerts room
func (h *Hub) PushAlertTriggered(userID uint, alert models.Alert) {
	h.Broadcast(UserAlertsRoom(userID), Message{
		Type: "alert_triggered",
		Room: UserAlertsRoom(userID),
		Data: alert,
		Time: time.Now().Format(time.RFC3339),
	})
}

// PushPortfolioEvent relays a portfolio mutation to the owner's portfolio room
func (h *Hub) PushPortfolioEvent(userID uint, payload interface{}) {
	h.Broadcast(UserPortfolioRoom(userID), Message{
		Type: "portfolio_updated",
		Room: UserPortfolioRoom(userID),
		Data: payload,
		Time: time.Now().Format(time.RFC3339),
	})
}

// PushNews relays a news article to its category room
func (h *Hub) PushNews(article models.NewsArticle) {
	h.Broadcast(NewsRoom(article.Category), Message{
		Type: "news",
		Room: NewsRoom(article.Category),
		Data: article,
		Time: time.Now().Format(time.RFC3339),
	})
}

// subscribedSymbols returns the union of symbols across joined symbol rooms
func (h *Hub) subscribedSymbols() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var symbols []string
	for room, members := range h.rooms {
		if len(members) == 0 {
			continue
		}
		if symbol, ok := strings.CutPrefix(room, "symbol:"); ok {
			symbols = append(symbols, symbol)
		}
	}
	return symbols
}

// BroadcastTick performs one periodic market data push: batch-fetch the union
// of subscribed symbols and emit each quote only to its own room. With no
// symbol subscriptions it returns without any upstream call. Returns the
// number of quotes emitted.
func (h *Hub) BroadcastTick(ctx context.Context) int {
	symbols := h.subscribedSymbols()
	if len(symbols) == 0 {
		return 0
	}

	results := h.quotes.GetBatch(ctx, symbols)
	now := time.Now().Format(time.RFC3339)

	emitted := 0
	for symbol, result := range results {
		if result.Err != nil || result.Quote == nil {
			// Failing symbols are silently omitted; subscribers see the next
			// successful tick instead of an error event.
			continue
		}
		h.Broadcast(SymbolRoom(symbol), Message{
			Type: "quote",
			Room: SymbolRoom(symbol),
			Data: result.Quote,
			Time: now,
		})
		emitted++
	}
	return emitted
}

// Start begins the periodic symbol broadcast loop
func (h *Hub) Start() {
	h.runMu.Lock()
	if h.isRunning {
		h.runMu.Unlock()
		return
	}
	h.isRunning = true
	h.stopChan = make(chan struct{})
	stop := h.stopChan
	h.runMu.Unlock()

	go func() {
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				h.BroadcastTick(context.Background())
			}
		}
	}()
	log.Printf("realtime: symbol broadcast started (interval: %v)", h.interval)
}

// Stop halts the broadcast loop and closes all client connections
func (h *Hub) Stop() {
	h.runMu.Lock()
	if h.isRunning {
		close(h.stopChan)
		h.isRunning = false
	}
	h.runMu.Unlock()

	h.mu.Lock()
	for client := range h.clients {
		close(client.send)
		client.conn.Close()
	}
	h.clients = make(map[*Client]bool)
	h.rooms = make(map[string]map[*Client]bool)
	h.mu.Unlock()
	log.Println("realtime: hub stopped")
}

// pushSnapshot sends a one-shot current snapshot to a new subscriber so it
// does not wait for the next periodic tick.
func (h *Hub) pushSnapshot(c *Client, symbols []string) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	results := h.quotes.GetBatch(ctx, symbols)
	quotes := make([]*models.MarketQuote, 0, len(results))
	for _, result := range results {
		if result.Err == nil && result.Quote != nil {
			quotes = append(quotes, result.Quote)
		}
	}
	if len(quotes) == 0 {
		return
	}

	data, err := json.Marshal(Message{
		Type: "snapshot",
		Data: quotes,
		Time: time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return
	}

	// The batch fetch can outlive the subscriber. Re-check registration under
	// the lock so the send cannot race a Disconnect closing the channel.
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Status returns hub statistics for the ops endpoint
func (h *Hub) Status() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	symbolRooms := 0
	for room := range h.rooms {
		if strings.HasPrefix(room, "symbol:") {
			symbolRooms++
		}
	}
	return map[string]interface{}{
		"client_count":       len(h.clients),
		"max_clients":        MaxClients,
		"room_count":         len(h.rooms),
		"symbol_rooms":       symbolRooms,
		"broadcast_interval": h.interval.String(),
	}
}
