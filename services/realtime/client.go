package realtime

import (
	"encoding/json"
	"log"
	"time"

	"marketpulse/models"
	"marketpulse/services/marketdata"

	"github.com/gorilla/websocket"
)

// Client is one websocket connection tracked by the hub
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID uint
	rooms  map[string]bool
}

// command is the inbound control message from a subscriber
type command struct {
	Action     string   `json:"action"`
	Symbols    []string `json:"symbols,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// readPump reads subscription commands until the connection drops
func (c *Client) readPump() {
	defer func() {
		c.hub.Disconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(PongTimeout))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("realtime: read error: %v", err)
			}
			return
		}

		var cmd command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			c.sendError("invalid message format")
			continue
		}
		c.handleCommand(cmd)
	}
}

// writePump drains outbound messages and keeps the connection alive with pings
func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleCommand(cmd command) {
	switch cmd.Action {
	case "subscribe":
		var joined []string
		for _, symbol := range cmd.Symbols {
			symbol = marketdata.NormalizeSymbol(symbol)
			if symbol == "" {
				continue
			}
			if err := c.hub.Join(c, SymbolRoom(symbol)); err != nil {
				continue
			}
			joined = append(joined, symbol)
		}
		c.sendAck("subscribed", joined)
		if len(joined) > 0 {
			go c.hub.pushSnapshot(c, joined)
		}

	case "unsubscribe":
		for _, symbol := range cmd.Symbols {
			symbol = marketdata.NormalizeSymbol(symbol)
			if symbol != "" {
				c.hub.Leave(c, SymbolRoom(symbol))
			}
		}
		c.sendAck("unsubscribed", cmd.Symbols)

	case "subscribe_news":
		var joined []string
		for _, category := range cmd.Categories {
			if !models.IsValidNewsCategory(category) {
				continue
			}
			if err := c.hub.Join(c, NewsRoom(category)); err != nil {
				continue
			}
			joined = append(joined, category)
		}
		c.sendAck("news_subscribed", joined)

	case "unsubscribe_news":
		for _, category := range cmd.Categories {
			c.hub.Leave(c, NewsRoom(category))
		}
		c.sendAck("news_unsubscribed", cmd.Categories)

	case "subscribe_alerts":
		if err := c.hub.Join(c, UserAlertsRoom(c.userID)); err != nil {
			c.sendError(err.Error())
			return
		}
		c.sendAck("alerts_subscribed", nil)

	case "subscribe_portfolio":
		if err := c.hub.Join(c, UserPortfolioRoom(c.userID)); err != nil {
			c.sendError(err.Error())
			return
		}
		c.sendAck("portfolio_subscribed", nil)

	default:
		c.sendError("unknown action: " + cmd.Action)
	}
}

func (c *Client) sendAck(event string, items []string) {
	c.push(Message{
		Type: event,
		Data: items,
		Time: time.Now().Format(time.RFC3339),
	})
}

func (c *Client) sendError(reason string) {
	c.push(Message{
		Type: "error",
		Data: reason,
		Time: time.Now().Format(time.RFC3339),
	})
}

func (c *Client) push(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
