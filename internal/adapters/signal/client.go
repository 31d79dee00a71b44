package signal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	clientWriteWait      = 10 * time.Second
	clientPongWait       = 60 * time.Second
	clientPingPeriod     = (clientPongWait * 9) / 10
	clientMaxMessageSize = 64 * 1024
)

var ErrClientClosed = errors.New("signaling client closed")

// Client is the dialing side of the relay protocol.
type Client struct {
	conn     *websocket.Conn
	incoming chan domain.Signal
	outgoing chan domain.Signal
	done     chan struct{}
	once     sync.Once
}

// Dial connects to a relay endpoint such as ws://host:5000/api/ws/signal.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	c := &Client{
		conn:     conn,
		incoming: make(chan domain.Signal, 16),
		outgoing: make(chan domain.Signal, 16),
		done:     make(chan struct{}),
	}
	c.conn.SetReadLimit(clientMaxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(clientPongWait))
	})

	go c.readPump()
	go c.writePump()
	return c, nil
}

func (c *Client) readPump() {
	defer func() {
		c.Close()
		close(c.incoming)
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(clientPongWait))
	for {
		var sig domain.Signal
		if err := c.conn.ReadJSON(&sig); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal.client").Msg("read")
			}
			return
		}
		select {
		case c.incoming <- sig:
		case <-c.done:
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(clientPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case sig := <-c.outgoing:
			_ = c.conn.SetWriteDeadline(time.Now().Add(clientWriteWait))
			if err := c.conn.WriteJSON(sig); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(clientWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(clientWriteWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Client) Send(sig domain.Signal) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.outgoing <- sig:
		return nil
	case <-c.done:
		return ErrClientClosed
	}
}

func (c *Client) Join(room string) error {
	return c.Send(domain.Signal{Type: domain.KindJoinRoom, RoomID: room})
}

// Incoming is closed when the connection ends.
func (c *Client) Incoming() <-chan domain.Signal {
	return c.incoming
}

func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}
