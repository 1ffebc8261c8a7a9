package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mithaq/backend/matching"
)

const (
	chatWriteWait  = 10 * time.Second
	chatPongWait   = 60 * time.Second
	chatPingPeriod = 30 * time.Second
	chatMaxMessage = 8 << 10
)

// ChatMessage is both the inbound frame a client sends and the payload of
// a delivered "message" event.
type ChatMessage struct {
	ID   int64     `json:"id,omitempty"`
	Type string    `json:"type"` // "message" | "typing"
	From int       `json:"from,omitempty"`
	To   int       `json:"to,omitempty"`
	Body string    `json:"body,omitempty"`
	Ts   time.Time `json:"ts,omitempty"`
}

// ServerEvent is every frame the server writes.
type ServerEvent struct {
	Type string `json:"type"` // "message" | "typing" | "blocked" | "info" | "error"
	From int    `json:"from,omitempty"`
	Data any    `json:"data,omitempty"`
}

// BlockedMessage tells the sender why a message was not delivered.
type BlockedMessage struct {
	To           int      `json:"to"`
	FlaggedWords []string `json:"flaggedWords"`
	ReportID     string   `json:"reportId,omitempty"`
}

type Client struct {
	userID int
	conn   *websocket.Conn
	send   chan ServerEvent
	hub    *Hub
}

// Hub tracks live connections per user. A user may hold several.
type Hub struct {
	srv           *server
	clientsByUser map[int]map[*Client]bool
	mu            sync.RWMutex
}

func newHub(srv *server) *Hub {
	return &Hub{
		srv:           srv,
		clientsByUser: make(map[int]map[*Client]bool),
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clientsByUser[c.userID] == nil {
		h.clientsByUser[c.userID] = make(map[*Client]bool)
	}
	h.clientsByUser[c.userID][c] = true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if peers, ok := h.clientsByUser[c.userID]; ok {
		delete(peers, c)
		if len(peers) == 0 {
			delete(h.clientsByUser, c.userID)
		}
	}
}

// online reports whether userID holds at least one live connection.
func (h *Hub) online(userID int) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clientsByUser[userID]) > 0
}

// sendToUser drops the event for any connection whose buffer is full.
func (h *Hub) sendToUser(userID int, evt ServerEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clientsByUser[userID] {
		select {
		case c.send <- evt:
		default:
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// wsChatHandler upgrades an authenticated request. Browsers cannot set
// headers on a websocket, so the token may also come as ?token=.
func (s *server) wsChatHandler() http.HandlerFunc {
	up := upgrader
	up.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range s.cfg.Server.AllowedOrigins {
			if strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}

	return func(w http.ResponseWriter, r *http.Request) {
		tokenStr := bearerToken(r)
		if tokenStr == "" {
			tokenStr = r.URL.Query().Get("token")
		}
		userID, err := s.parseToken(tokenStr)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			s.log.WithError(err).Warn("websocket upgrade", map[string]interface{}{"user_id": userID})
			return
		}

		client := &Client{
			userID: userID,
			conn:   conn,
			send:   make(chan ServerEvent, 16),
			hub:    s.hub,
		}
		s.hub.register(client)
		client.send <- ServerEvent{Type: "info", Data: "connected"}

		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(chatMaxMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(chatPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(chatPongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg ChatMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			c.reply(ServerEvent{Type: "error", Data: "invalid message format"})
			continue
		}

		switch msg.Type {
		case "message":
			c.hub.relay(context.Background(), c, msg)
		case "typing":
			if msg.To > 0 {
				c.hub.sendToUser(msg.To, ServerEvent{Type: "typing", From: c.userID})
			}
		default:
			c.reply(ServerEvent{Type: "error", Data: "unknown message type"})
		}
	}
}

func (c *Client) reply(evt ServerEvent) {
	select {
	case c.send <- evt:
	default:
	}
}

// relay moderates a message before storing and delivering it. Flagged
// messages are reported and bounced to the sender only.
func (h *Hub) relay(ctx context.Context, c *Client, msg ChatMessage) {
	s := h.srv
	log := s.log.WithFields(map[string]interface{}{"user_id": c.userID, "to": msg.To})

	body := strings.TrimSpace(msg.Body)
	if msg.To <= 0 || msg.To == c.userID || body == "" {
		c.reply(ServerEvent{Type: "error", Data: "invalid message"})
		return
	}

	report, err := s.filter.Report(body, matching.ContentTypeMessage)
	if err != nil {
		log.WithError(err).Error("moderate message", nil)
		c.reply(ServerEvent{Type: "error", Data: "cannot send message"})
		return
	}
	moderationChecks.WithLabelValues(report.ContentType, moderationOutcome(report.IsAppropriate)).Inc()

	if !report.IsAppropriate {
		blocked := BlockedMessage{To: msg.To, FlaggedWords: report.FlaggedWords}
		id := s.newID()
		if err := s.store.SaveModerationReport(ctx, id, c.userID, report); err != nil {
			log.WithError(err).Warn("queue moderation report", nil)
		} else {
			blocked.ReportID = id.String()
		}
		log.Info("message blocked", map[string]interface{}{"flagged": report.FlaggedWords})
		c.reply(ServerEvent{Type: "blocked", Data: blocked})
		return
	}

	id, ts, err := s.store.SaveMessage(ctx, c.userID, msg.To, body)
	if err != nil {
		log.WithError(err).Error("save message", nil)
		c.reply(ServerEvent{Type: "error", Data: "cannot send message"})
		return
	}

	out := ServerEvent{
		Type: "message",
		From: c.userID,
		Data: ChatMessage{ID: id, Type: "message", From: c.userID, To: msg.To, Body: body, Ts: ts},
	}
	h.sendToUser(msg.To, out)
	h.sendToUser(c.userID, out)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(chatPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case evt, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(chatWriteWait))
			if err := c.conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(chatWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
