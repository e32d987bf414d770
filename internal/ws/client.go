// Package ws is the push-channel client: a dialed websocket connection with
// read/write pumps, delivering inbound envelopes to a handler strictly in
// arrival order and carrying outbound send/typing requests.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/playerchat/internal/logger"
)

const (
	defaultWriteWait      = 10 * time.Second
	defaultPongWait       = 60 * time.Second
	defaultMaxMessageSize = 4096
	defaultSendBufSize    = 64
)

// ErrSendBufferFull — outbound buffer is saturated; the envelope was dropped.
var ErrSendBufferFull = errors.New("ws send buffer full")

// ErrClosed — connection already shut down.
var ErrClosed = errors.New("ws connection closed")

// Handler consumes inbound envelopes. Called from the single read pump, so
// calls never overlap: each event is handled to completion before the next.
type Handler interface {
	HandleEvent(ctx context.Context, env Envelope)
}

// Options tune the connection pumps; zero values fall back to defaults.
type Options struct {
	WriteTimeout   time.Duration
	PongTimeout    time.Duration
	MaxMessageSize int64
	SendBufferSize int
}

// Client is one dialed push-channel connection.
// Lifecycle: Dial -> [readPump, writePump] -> Close -> Wait.
type Client struct {
	conn    *websocket.Conn
	send    chan Envelope
	handler Handler
	opts    Options

	done   chan struct{}
	cancel context.CancelFunc
	once   sync.Once
	wg     sync.WaitGroup
}

// Dial connects to the push channel. header carries the session cookie; the
// handler receives every inbound envelope until the connection closes.
func Dial(ctx context.Context, url string, header http.Header, handler Handler, opts Options) (*Client, error) {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteWait
	}
	if opts.PongTimeout <= 0 {
		opts.PongTimeout = defaultPongWait
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = defaultMaxMessageSize
	}
	if opts.SendBufferSize <= 0 {
		opts.SendBufferSize = defaultSendBufSize
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, err
	}

	c := &Client{
		conn:    conn,
		send:    make(chan Envelope, opts.SendBufferSize),
		handler: handler,
		opts:    opts,
		done:    make(chan struct{}),
	}
	pumpCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.wg.Add(2)
	go c.writePump(pumpCtx)
	go c.readPump(pumpCtx)
	return c, nil
}

// Send enqueues an outbound envelope. Never blocks: a full buffer returns
// ErrSendBufferFull rather than stalling the caller's event handling.
func (c *Client) Send(env Envelope) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- env:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrSendBufferFull
	}
}

// Close signals shutdown. Safe to call multiple times from any goroutine.
func (c *Client) Close() {
	c.once.Do(func() {
		c.cancel()
		close(c.done)
		// Force both pumps to unblock (ReadMessage / WriteMessage will error).
		c.conn.Close()
	})
}

// Wait blocks until both pump goroutines have exited.
func (c *Client) Wait() {
	c.wg.Wait()
}

// Done is closed when the connection shuts down (for reconnect logic in the
// shell).
func (c *Client) Done() <-chan struct{} { return c.done }

// readPump reads envelopes and hands them to the handler in arrival order.
// Exits on read error (remote close, or conn.Close from Close()).
func (c *Client) readPump(ctx context.Context) {
	defer c.wg.Done()
	defer c.Close()

	c.conn.SetReadLimit(c.opts.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout)); err != nil {
		logger.Errorf("ws set read deadline: %v", err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Errorf("ws read: %v", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			logger.Errorf("ws unmarshal: %v", err)
			continue
		}
		logger.Debugf("ws event %s", env.Event)
		c.handler.HandleEvent(ctx, env)
	}
}

// writePump writes outbound envelopes and keepalive pings.
func (c *Client) writePump(ctx context.Context) {
	defer c.wg.Done()
	pingPeriod := c.opts.PongTimeout * 9 / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			if err := c.conn.WriteMessage(websocket.CloseMessage, nil); err != nil {
				logger.Debugf("ws close message: %v", err)
			}
			return
		case env := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
				logger.Errorf("ws set write deadline: %v", err)
				return
			}
			data, err := json.Marshal(env)
			if err != nil {
				logger.Errorf("ws marshal %s: %v", env.Event, err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
				logger.Errorf("ws set write deadline: %v", err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
