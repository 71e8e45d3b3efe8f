package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"docsync/internal/document/model"
	"docsync/internal/notifier"
	"docsync/pkg/apperror"
	"docsync/pkg/logger"
	"docsync/socket"

	"github.com/gorilla/websocket"
)

// EventsURL derives the websocket endpoint from the REST base URL.
func (c *Client) EventsURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(strings.TrimSuffix(u.Path, "/"), "/api") + "/ws"
	q := url.Values{}
	if c.clientID != "" {
		q.Set("clientId", c.clientID)
	}
	if c.token != "" {
		q.Set("token", c.token)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Listen relays deletions made by other clients into n until ctx is done or
// the connection drops. It returns nil when ctx ends the session.
func (c *Client) Listen(ctx context.Context, n *notifier.Notifier) error {
	wsURL, err := c.EventsURL()
	if err != nil {
		return err
	}
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return fmt.Errorf("dial events: %w: %v", apperror.ErrNetwork, err)
	}
	defer conn.Close()
	defer closeOnDone(ctx, conn)()

	for {
		var msg socket.WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure {
				return nil
			}
			return fmt.Errorf("read events: %w: %v", apperror.ErrNetwork, err)
		}
		if msg.Type != socket.DocumentsDeletedType || (c.clientID != "" && msg.Origin == c.clientID) {
			continue
		}
		var payload model.DeletedDocuments
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			logger.Sugar.Warnf("Ignoring malformed deletion event: %v", err)
			continue
		}
		logger.Sugar.Debugf("Remote deletion of %d documents", len(payload.IDs))
		n.Publish(notifier.NewIDSet(payload.IDs...))
	}
}

// closeOnDone closes c when ctx ends. The returned stop func releases the
// watcher without closing c.
func closeOnDone(ctx context.Context, c io.Closer) (stop func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-done:
		}
	}()
	return func() { close(done) }
}
