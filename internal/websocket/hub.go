package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from a different origin in dev
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// BalanceAlert is the payload pushed to dashboard clients when a purchase
// order crosses a utilization threshold. The Type discriminator lets the
// frontend route it alongside future event kinds.
type BalanceAlert struct {
	Type               string `json:"type"`
	PurchaseOrderID    string `json:"purchase_order_id"`
	PONumber           string `json:"po_number"`
	ThresholdPercent   int    `json:"threshold_percent"`
	UtilizationPercent string `json:"utilization_percent"`
	RemainingBalance   string `json:"remaining_balance"`
	Severity           string `json:"severity"`
	Message            string `json:"message"`
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub fans balance alerts out to every connected dashboard session.
type Hub struct {
	mu         sync.Mutex
	clients    map[*client]struct{}
	events     chan []byte
	register   chan *client
	unregister chan *client
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]struct{}),
		events:     make(chan []byte, 64),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

// NotifyBalanceAlert queues an alert for broadcast without blocking the
// caller. Alerts are persisted before they reach the hub, so a dropped push
// is recoverable from the notification list.
func (h *Hub) NotifyBalanceAlert(alert BalanceAlert) {
	if alert.Type == "" {
		alert.Type = "po_balance_notification"
	}
	payload, err := json.Marshal(alert)
	if err != nil {
		return
	}
	h.Notify(payload)
}

// Notify queues a raw message for broadcast, dropping it if the dispatch
// loop is not keeping up.
func (h *Hub) Notify(message []byte) {
	select {
	case h.events <- message:
	default:
		log.Println("websocket: broadcast queue full, dropping message")
	}
}

// Run is the dispatch loop. It owns the client set; handlers only touch it
// through the register/unregister channels.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
		case message := <-h.events:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					// Slow consumer, cut it loose.
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames; the stream is push-only, reading just
// services pongs and surfaces the close.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket: read error: %v", err)
			}
			return
		}
	}
}

// ServeWs upgrades an authenticated dashboard connection. Browsers cannot set
// headers on websocket handshakes, so the access token rides a query param.
func ServeWs(hub *Hub, c *gin.Context, secret []byte) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	role, _ := claims["role"].(string)
	if role != "admin" && role != "manager" && role != "staff" {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("websocket: upgrade failed:", err)
		return
	}
	cl := &client{hub: hub, conn: conn, send: make(chan []byte, 256)}
	hub.register <- cl

	go cl.writePump()
	go cl.readPump()
}
