package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"salon-chat/internal/domain/conversation"
	"salon-chat/internal/domain/message"
	"salon-chat/internal/events"
	"salon-chat/internal/services"
	"salon-chat/internal/typing"
	salon_errors "salon-chat/pkg/errors"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// Client is a single authenticated WebSocket connection. The connection's
// lifecycle is explicit: the handler creates it on upgrade, the hub owns it
// while registered, and a dropped connection loses all room bindings; the
// peer must re-join on reconnect before sends and receives mean anything.
type Client struct {
	id            string
	participantID uuid.UUID
	role          conversation.Role

	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	// rooms is this connection's own view of its bindings; touched only by
	// the read goroutine. The hub keeps its own index.
	rooms       map[uuid.UUID]bool
	convService *services.ConversationService
	msgService  *services.MessageService
	coordinator *typing.Coordinator
	logger      *WSLogger
}

// clientFrame is the client->server wire frame.
type clientFrame struct {
	Event          string       `json:"event"`
	ConversationID uuid.UUID    `json:"conversation_id"`
	ProvisionalID  string       `json:"provisional_id,omitempty"`
	Type           message.Type `json:"type,omitempty"`
	Body           string       `json:"body,omitempty"`
	AttachmentKey  string       `json:"attachment_key,omitempty"`
	SentAt         *time.Time   `json:"sent_at,omitempty"`
}

func NewClient(hub *Hub, conn *websocket.Conn, participantID uuid.UUID, role conversation.Role, convService *services.ConversationService, msgService *services.MessageService, coordinator *typing.Coordinator, logger *WSLogger) *Client {
	return &Client{
		id:            uuid.New().String(),
		participantID: participantID,
		role:          role,
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, 256),
		rooms:         make(map[uuid.UUID]bool),
		convService:   convService,
		msgService:    msgService,
		coordinator:   coordinator,
		logger:        logger,
	}
}

// queue enqueues a payload without blocking. A full buffer drops the frame
// for this connection only.
func (c *Client) queue(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		if c.logger != nil {
			c.logger.Warn("send buffer full", c.participantID, c.id)
		}
		return false
	}
}

func (c *Client) sendEnvelope(env events.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	c.queue(data)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket unexpected close", c.participantID, c.id, err)
			}
			break
		}

		raw = bytes.TrimSpace(bytes.Replace(raw, newline, space, -1))
		if err := c.handleFrame(raw); err != nil {
			c.logger.Error("websocket handle frame failed", c.participantID, c.id, err)
		}
	}
}

func (c *Client) handleFrame(raw []byte) error {
	var frame clientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return err
	}

	ctx := context.Background()

	switch frame.Event {
	case events.EventConversationJoin:
		return c.handleJoin(ctx, frame)
	case events.EventConversationLeave:
		c.hub.Leave(c, frame.ConversationID)
		delete(c.rooms, frame.ConversationID)
		return nil
	case events.EventMessageSend:
		return c.handleSend(ctx, frame)
	case events.EventTypingStart:
		if c.joined(frame.ConversationID) {
			c.coordinator.Start(ctx, frame.ConversationID, c.participantID)
		}
		return nil
	case events.EventTypingStop:
		if c.joined(frame.ConversationID) {
			c.coordinator.Stop(ctx, frame.ConversationID, c.participantID)
		}
		return nil
	default:
		c.logger.Warn("unknown event", c.participantID, c.id)
		return nil
	}
}

// handleJoin binds the connection to the room after verifying the caller is
// a participant. Non-participants are rejected silently: no event goes back,
// so the room's existence cannot be probed.
func (c *Client) handleJoin(ctx context.Context, frame clientFrame) error {
	_, _, err := c.convService.VerifyParticipant(ctx, frame.ConversationID, c.participantID)
	if err != nil {
		if errors.Is(err, salon_errors.ErrNotParticipant) || errors.Is(err, salon_errors.ErrNotFound) {
			c.logger.Warn("join rejected", c.participantID, c.id)
			return nil
		}
		return err
	}

	c.hub.Join(c, frame.ConversationID)
	c.rooms[frame.ConversationID] = true

	// Snapshot in-flight typing state for the joining connection.
	if typists := c.coordinator.Snapshot(ctx, frame.ConversationID); len(typists) > 0 {
		env, err := events.NewEnvelope(events.EventTypingActive, frame.ConversationID, events.TypingSnapshotPayload{
			ParticipantIDs: typists,
		})
		if err == nil {
			c.sendEnvelope(env)
		}
	}
	return nil
}

// handleSend appends through the log. A first-time accept reaches the whole
// room (sender included) as message:new via the bus; a duplicate resend
// produces message:ack to this connection only; a failed append produces
// message:error to this connection so the pending entry is never promoted.
func (c *Client) handleSend(ctx context.Context, frame clientFrame) error {
	if !c.joined(frame.ConversationID) {
		c.logger.Warn("send without join", c.participantID, c.id)
		return nil
	}

	result, err := c.msgService.Append(ctx, services.AppendInput{
		ConversationID: frame.ConversationID,
		SenderID:       c.participantID,
		Type:           frame.Type,
		Body:           frame.Body,
		AttachmentKey:  frame.AttachmentKey,
		ProvisionalID:  frame.ProvisionalID,
		SentAt:         frame.SentAt,
	})
	if err != nil {
		if errors.Is(err, salon_errors.ErrNotParticipant) || errors.Is(err, salon_errors.ErrNotFound) {
			// Security boundary; nothing goes back.
			return nil
		}
		env, envErr := events.NewEnvelope(events.EventMessageError, frame.ConversationID, events.ErrorPayload{
			ProvisionalID: frame.ProvisionalID,
			Reason:        sendFailureReason(err),
		})
		if envErr == nil {
			c.sendEnvelope(env)
		}
		return err
	}

	if result.Duplicate {
		env, err := events.NewEnvelope(events.EventMessageAck, frame.ConversationID, events.AckPayload{
			ProvisionalID: frame.ProvisionalID,
			MessageID:     result.Message.ID,
		})
		if err == nil {
			c.sendEnvelope(env)
		}
		return nil
	}

	// Sending a message ends any typing burst from this participant.
	c.coordinator.Stop(ctx, frame.ConversationID, c.participantID)
	return nil
}

func (c *Client) joined(conversationID uuid.UUID) bool {
	return c.rooms[conversationID]
}

func sendFailureReason(err error) string {
	switch {
	case errors.Is(err, salon_errors.ErrInvalidInput):
		return "invalid message"
	case errors.Is(err, salon_errors.ErrConversationClosed):
		return "conversation archived"
	case errors.Is(err, salon_errors.ErrRateLimited):
		return "rate limited"
	default:
		return "storage unavailable"
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(payload)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write(newline)
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
