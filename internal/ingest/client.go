//
// Date: 2026-02-16
// Copyright (c) 2026. All rights reserved.
//

// Package ingest is the ingest producer (C4): a WebSocket client that
// authenticates against the upstream feed, subscribes to a symbol
// list, and republishes every trade and bar onto the durable log.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// authFrame is sent immediately after the connection opens.
type authFrame struct {
	Action string `json:"action"`
	Key    string `json:"key"`
	Secret string `json:"secret"`
}

// subscribeFrame requests both trade and bar channels for a symbol
// set in a single message, matching the upstream feed's combined
// subscribe protocol.
type subscribeFrame struct {
	Action string   `json:"action"`
	Trades []string `json:"trades"`
	Bars   []string `json:"bars"`
}

// controlFrame is the minimal shape needed to recognize auth/subscribe
// acknowledgements in the feed's tagged-array responses.
type controlFrame struct {
	Type string `json:"T"`
	Msg  string `json:"msg"`
}

// Client manages a single WebSocket connection to the upstream realtime
// feed: Connect dials and authenticates, Subscribe requests a symbol
// set, Listen reads raw messages, and Close shuts the connection down.
// The shape mirrors the teacher's internal/ws.Client (separate
// Connect/Subscribe/Listen/Close with a mutex-guarded writer and a
// done-channel-gated read loop), adapted from Massive's single
// query-param-auth protocol to the upstream feed's key/secret auth
// frame plus combined trades+bars subscribe frame.
type Client struct {
	baseURL string
	apiKey  string
	secret  string

	conn *websocket.Conn
	done chan struct{}
	mu   sync.Mutex
}

// NewClient builds a Client for baseURL using key/secret auth.
func NewClient(baseURL, apiKey, secret string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		secret:  secret,
		done:    make(chan struct{}),
	}
}

// Connect dials the WebSocket endpoint, sends the auth frame, and
// blocks until the feed confirms authentication. Returns an error if
// the dial fails, the connection closes before authentication
// completes, or the feed reports an auth failure.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.baseURL, nil)
	if err != nil {
		return fmt.Errorf("ingest: dial %s: %w", c.baseURL, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	auth := authFrame{Action: "auth", Key: c.apiKey, Secret: c.secret}
	data, err := json.Marshal(auth)
	if err != nil {
		conn.Close()
		return fmt.Errorf("ingest: marshal auth frame: %w", err)
	}

	c.mu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.mu.Unlock()
	if err != nil {
		conn.Close()
		return fmt.Errorf("ingest: send auth frame: %w", err)
	}

	return c.awaitAuth(conn)
}

// awaitAuth reads control frames until it sees an authenticated success
// message or an explicit error, matching the teacher's auth-response
// check in connectAndStreamAsset.
func (c *Client) awaitAuth(conn *websocket.Conn) error {
	_, message, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("ingest: read auth response: %w", err)
	}

	var frames []controlFrame
	if err := json.Unmarshal(message, &frames); err != nil {
		return fmt.Errorf("ingest: decode auth response: %w", err)
	}

	for _, f := range frames {
		if f.Type == "error" {
			return fmt.Errorf("ingest: auth rejected: %s", f.Msg)
		}
		if f.Type == "success" && f.Msg == "authenticated" {
			return nil
		}
	}

	return fmt.Errorf("ingest: unexpected auth response: %s", string(message))
}

// Subscribe requests trades and bars for the given symbols. It does
// not wait for the feed's subscription acknowledgement; that control
// frame is delivered to Listen's handler like any other message.
func (c *Client) Subscribe(symbols []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("ingest: not connected")
	}

	msg := subscribeFrame{Action: "subscribe", Trades: symbols, Bars: symbols}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("ingest: marshal subscribe frame: %w", err)
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("ingest: send subscribe frame: %w", err)
	}
	return nil
}

// Listen reads raw messages in a loop, passing each to handler, until
// the connection closes normally, a read error occurs, or Close is
// called.
func (c *Client) Listen(handler func([]byte)) error {
	for {
		select {
		case <-c.done:
			return nil
		default:
			_, message, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return nil
				}
				select {
				case <-c.done:
					return nil
				default:
					return fmt.Errorf("ingest: read error: %w", err)
				}
			}
			handler(message)
		}
	}
}

// Close signals Listen to stop and gracefully closes the connection.
// It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
	default:
		close(c.done)
	}

	if c.conn == nil {
		return nil
	}

	err := c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		c.conn.Close()
		return fmt.Errorf("ingest: send close message: %w", err)
	}

	return c.conn.Close()
}
