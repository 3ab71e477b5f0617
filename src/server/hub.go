package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"power-observer/src/analysis"
	"power-observer/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const liveBuildTimeout = 30 * time.Second

// delivery routes one update to one client through the hub loop, which owns
// the client set and is the only writer to client.send.
type delivery struct {
	client *Client
	update *models.MLiveUpdate
}

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop
func (s *HTTPServer) handleWebsockets() {
	for {
		select {
		case <-s.done:
			for client := range s.clients {
				s.drop(client)
			}
			return

		case client := <-s.register:
			s.clients[client] = struct{}{}
			atomic.AddInt32(&s.connections, 1)

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				s.drop(client)
			}

		case d := <-s.deliveries:
			if _, ok := s.clients[d.client]; !ok {
				continue
			}
			select {
			case d.client.send <- d.update:
			default:
				// Client too slow, disconnect to keep the hub moving
				s.Logger.Warning("Dropping slow websocket client")
				s.drop(d.client)
			}

		case node := <-s.invalidated:
			for client := range s.clients {
				if sub, ok := client.Subscription(); ok && sub.Node == node {
					go s.pushDashboard(client, sub, "UPDATE")
				}
			}
		}
	}
}

// -----------------------------------------------------------------------------

func (s *HTTPServer) drop(client *Client) {
	delete(s.clients, client)
	close(client.send)
	atomic.AddInt32(&s.connections, -1)
}

// -----------------------------------------------------------------------------

func (s *HTTPServer) deliver(client *Client, update *models.MLiveUpdate) {
	select {
	case s.deliveries <- delivery{client: client, update: update}:
	case <-s.done:
	}
}

// -----------------------------------------------------------------------------
// Data Exchange Interface Implementation
// -----------------------------------------------------------------------------

// NotifyInvalidated rebuilds and pushes the dashboard of every client
// subscribed to node.
func (s *HTTPServer) NotifyInvalidated(node string, day time.Time) {
	select {
	case s.invalidated <- node:
		s.Logger.Debug("Queued live refresh for %s (%s)", node, day.Format("2006-01-02"))
	default:
		s.Logger.Warning("Live refresh queue full, dropping update for %s", node)
	}
}

// -----------------------------------------------------------------------------

// pushDashboard builds the subscribed dashboard and queues it for client.
func (s *HTTPServer) pushDashboard(client *Client, sub models.MSubscribeCommand, kind string) {
	ctx, cancel := context.WithTimeout(context.Background(), liveBuildTimeout)
	defer cancel()

	update := &models.MLiveUpdate{Type: kind, Node: sub.Node, Timestamp: time.Now().Unix()}
	payload, err := s.Assembler.Build(ctx, analysis.DashboardRequest{
		Node:      sub.Node,
		StartDate: sub.StartDate,
		EndDate:   sub.EndDate,
		Preset:    sub.Preset,
	})
	if err != nil {
		update.Type = "ERROR"
		update.Error = err.Error()
	} else {
		update.Dashboard = payload
	}
	s.deliver(client, update)
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

func (s *HTTPServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		hub:  s,
		conn: conn,
		// Buffered channel to prevent blocking the Hub loop
		send: make(chan *models.MLiveUpdate, 16),
	}

	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

func (s *HTTPServer) HandleClientMessage(client *Client, message []byte) {
	var cmd models.MSubscribeCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.Logger.Info("Failed to parse client command: %v", err)
		s.deliver(client, errorUpdate("", "invalid command: expected JSON"))
		return
	}

	switch cmd.Command {
	case "subscribe":
		if cmd.Node == "" {
			s.deliver(client, errorUpdate("", "subscribe requires a node"))
			return
		}
		client.setSubscription(&cmd)
		s.pushDashboard(client, cmd, "INITIAL")
	case "unsubscribe":
		client.setSubscription(nil)
	default:
		s.deliver(client, errorUpdate(cmd.Node, "unknown command "+cmd.Command))
	}
}

// -----------------------------------------------------------------------------

func errorUpdate(node, msg string) *models.MLiveUpdate {
	return &models.MLiveUpdate{Type: "ERROR", Node: node, Error: msg, Timestamp: time.Now().Unix()}
}
