package chathub

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"tickethub/backend/internal/config"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// WebSocketClient реалізує інтерфейс chathub.Client
type WebSocketClient struct {
	id      string
	conn    *websocket.Conn
	gateway *Gateway

	send chan []byte
	done chan struct{}
	once sync.Once
}

// NewWebSocketClient attaches a freshly upgraded connection to the gateway.
// The connection starts Unauthenticated; the in-band authenticate event
// completes the handshake.
func NewWebSocketClient(gw *Gateway, conn *websocket.Conn) *WebSocketClient {
	return &WebSocketClient{
		id:      gw.Connect(),
		conn:    conn,
		gateway: gw,
		send:    make(chan []byte, config.SendQueueSize),
		done:    make(chan struct{}),
	}
}

func (c *WebSocketClient) ConnID() string { return c.id }

// Send queues a frame without blocking. False means the connection is gone
// or its queue is saturated; the room manager drops such members.
func (c *WebSocketClient) Send(f Frame) bool {
	data, err := json.Marshal(f)
	if err != nil {
		log.Printf("Error encoding frame for connection %s: %v", c.id, err)
		return true
	}
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close закриває з'єднання; безпечно викликати кілька разів.
func (c *WebSocketClient) Close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// Run запускає 'pumps' для WebSocket
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.gateway.Disconnect(c)
		c.Close()
	}()

	c.conn.SetReadLimit(config.MaxFrameBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error reading message: %v", err)
			}
			break
		}

		var frame Frame
		if err := json.Unmarshal(message, &frame); err != nil {
			log.Printf("Error decoding JSON from connection %s: %v", c.id, err)
			continue // Пропускаємо невірне повідомлення
		}

		c.gateway.HandleFrame(c, frame)
	}
}

// writePump читає повідомлення з каналу send і записує їх у WebSocket.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(data)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			// Надсилаємо Ping для підтримки з'єднання активним
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
