package server

import (
	"encoding/json"
	"net/http"
	"time"

	"stock-dashboard/src/models"
	"stock-dashboard/src/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// directMessage is a payload addressed to one client. Delivery runs inside
// the hub loop, which owns the lifetime of every send channel.
type directMessage struct {
	client  *Client
	payload *models.MChartData
}

// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop
func (s *DashboardServer) handleWebsockets() {
	for {
		select {
		case <-s.stop:
			return

		case client := <-s.register:
			s.clients[client] = struct{}{}
			s.Logger.Debug("Client connected (%d total)", len(s.clients))

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
			}
			if len(s.clients) == 0 {
				s.clearSubscriptions()
			}

		case msg := <-s.direct:
			// Dropped silently when the client disconnected while the
			// payload was being built
			if _, ok := s.clients[msg.client]; ok {
				select {
				case msg.client.send <- msg.payload:
				default:
					delete(s.clients, msg.client)
					close(msg.client.send)
				}
			}

		case payload := <-s.broadcast:
			for client := range s.clients {
				select {
				case client.send <- payload:
					// Message sent successfully
				default:
					// Client too slow, disconnect to prevent Hub blocking
					delete(s.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		hub:  s,
		conn: conn,
		// Buffered channel to prevent blocking the Hub loop
		send: make(chan *models.MChartData, 16),
	}

	s.register <- client

	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

func (s *DashboardServer) HandleClientMessage(client *Client, message []byte) {
	var cmd models.MSubscribeCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.Logger.Info("Failed to parse client command: %v, disconnecting client", err)
		client.conn.Close()
		return
	}

	if cmd.Command != "subscribe" {
		return
	}

	// A scrape can take seconds, never stall the read pump on it
	go func() {
		payload, err := s.BuildChart(cmd.Symbol, cmd.Start, cmd.End)
		if err != nil {
			s.Logger.Info("Subscribe failed for %s: %v", cmd.Symbol, err)
			return
		}

		s.subscriptions.Store(utils.Key(payload.Symbol, payload.Start, payload.End), cmd)

		// Sending on client.send here could race the hub closing it, so
		// delivery goes through the hub loop instead.
		select {
		case s.direct <- directMessage{client: client, payload: payload}:
		case <-s.stop:
		}
	}()
}

// -----------------------------------------------------------------------------
// Refresh loop
// -----------------------------------------------------------------------------

// refreshLoop rebuilds subscribed series while any tracked market is open
// and broadcasts them as UPDATE payloads. Disabled when refresh_seconds is 0.
func (s *DashboardServer) refreshLoop() {
	interval := s.Config.Source.RefreshSeconds
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(time.Duration(interval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if !s.Scheduler.AnyMarketOpen() {
				continue
			}
			s.refreshSubscriptions()
		}
	}
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) refreshSubscriptions() {
	s.subscriptions.Range(func(key, value interface{}) bool {
		cmd, ok := value.(models.MSubscribeCommand)
		if !ok {
			return true
		}

		payload, err := s.RefreshChart(cmd.Symbol, cmd.Start, cmd.End)
		if err != nil {
			s.Logger.Info("Refresh failed for %s: %v", cmd.Symbol, err)
			return true
		}

		// Stamp the type on a copy, the original just went into the
		// series cache and is shared with REST responses
		update := *payload
		update.Type = "UPDATE"

		select {
		case s.broadcast <- &update:
		default:
			s.Logger.Warning("Broadcast queue full, dropping refresh for %s", cmd.Symbol)
		}
		return true
	})
}

// -----------------------------------------------------------------------------

// clearSubscriptions drops every tracked selection once the last client is
// gone, so the refresh loop stops rebuilding charts nobody watches.
func (s *DashboardServer) clearSubscriptions() {
	s.subscriptions.Range(func(key, _ interface{}) bool {
		s.subscriptions.Delete(key)
		return true
	})
}
