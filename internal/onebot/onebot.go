// Package onebot delivers composed messages to chat destinations over a
// OneBot v11 websocket connection (send_group_msg / send_private_msg
// actions). The pipeline treats this as its outbound collaborator; it
// never retries a failed send.
package onebot

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aniways/anipush/internal/apperr"
)

// Segment is one element of an outbound message: text, an image or an
// at-mention.
type Segment struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// Text builds a text segment.
func Text(s string) Segment {
	return Segment{Type: "text", Data: map[string]any{"text": s}}
}

// Image builds an image segment from a local file, inlined as base64 so
// the chat endpoint needs no access to our filesystem.
func Image(path string) Segment {
	data, err := os.ReadFile(path)
	if err != nil {
		return Text("[image unavailable]")
	}
	return Segment{Type: "image", Data: map[string]any{
		"file": "base64://" + base64.StdEncoding.EncodeToString(data),
	}}
}

// At builds an at-mention segment.
func At(userID int64) Segment {
	return Segment{Type: "at", Data: map[string]any{"qq": fmt.Sprintf("%d", userID)}}
}

type request struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params"`
	Echo   string         `json:"echo"`
}

type response struct {
	Status  string `json:"status"`
	RetCode int    `json:"retcode"`
	Echo    string `json:"echo"`
}

// Client is a OneBot v11 forward-websocket client. Sends are serialized
// on the single connection; the connection is dialed lazily and redialed
// after an error.
type Client struct {
	url         string
	accessToken string

	mu   sync.Mutex
	conn *websocket.Conn
	seq  atomic.Int64
}

// New creates a client for a OneBot endpoint, e.g. ws://127.0.0.1:6700.
func New(url, accessToken string) *Client {
	return &Client{url: url, accessToken: accessToken}
}

// SendGroup delivers one message to a group destination.
func (c *Client) SendGroup(ctx context.Context, groupID int64, msg []Segment) error {
	return c.call(ctx, "send_group_msg", map[string]any{
		"group_id": groupID,
		"message":  msg,
	})
}

// SendPrivate delivers one message to each user in the list. The first
// failing user aborts the remainder.
func (c *Client) SendPrivate(ctx context.Context, userIDs []int64, msg []Segment) error {
	for _, userID := range userIDs {
		err := c.call(ctx, "send_private_msg", map[string]any{
			"user_id": userID,
			"message": msg,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Close shuts the websocket connection down.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) call(ctx context.Context, action string, params map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := c.connLocked(ctx)
	if err != nil {
		return err
	}
	echo := fmt.Sprintf("anipush-%d", c.seq.Add(1))
	req := request{Action: action, Params: params, Echo: echo}

	deadline := time.Now().Add(10 * time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(req); err != nil {
		c.dropLocked()
		return apperr.Wrap(apperr.RequestError, err, "%s write failed", action)
	}

	conn.SetReadDeadline(deadline)
	for {
		var resp response
		if err := conn.ReadJSON(&resp); err != nil {
			c.dropLocked()
			return apperr.Wrap(apperr.RequestError, err, "%s response read failed", action)
		}
		// The endpoint also pushes events on this connection; only the
		// frame echoing our request is the API response.
		if resp.Echo != echo {
			continue
		}
		if resp.Status == "failed" || resp.RetCode != 0 {
			return apperr.New(apperr.RequestError, "%s rejected with retcode %d", action, resp.RetCode)
		}
		return nil
	}
}

func (c *Client) connLocked(ctx context.Context) (*websocket.Conn, error) {
	if c.conn != nil {
		return c.conn, nil
	}
	header := http.Header{}
	if c.accessToken != "" {
		header.Set("Authorization", "Bearer "+c.accessToken)
	}
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.url+"/api", header)
	if err != nil {
		return nil, apperr.Wrap(apperr.RequestError, err, "dial %s failed", c.url)
	}
	c.conn = conn
	return conn, nil
}

func (c *Client) dropLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}
