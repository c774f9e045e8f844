// Package bus connects the daemon to NATS and fans completed results
// out to downstream consumers. Publishing is fire-and-forget: a bus
// outage degrades fan-out, never a client's response.
package bus

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/vaanilabs/vaani/internal/config"
	"github.com/vaanilabs/vaani/internal/protocol"
)

// Client wraps the NATS connection. A nil *Client is a valid no-op
// publisher, so callers never branch on whether the bus is enabled.
type Client struct {
	conn *nats.Conn
	log  *slog.Logger
}

func Connect(ctx context.Context, cfg config.BusConfig, log *slog.Logger) (*Client, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("no NATS servers configured")
	}

	options := []nats.Option{
		nats.Name("vaani-runtime"),
		nats.Timeout(time.Duration(cfg.ConnectTimeout) * time.Millisecond),
	}

	if cfg.Username != "" || cfg.Password != "" {
		options = append(options, nats.UserInfo(cfg.Username, cfg.Password))
	}
	if cfg.Token != "" {
		options = append(options, nats.Token(cfg.Token))
	}
	if cfg.TLSInsecure {
		options = append(options, nats.Secure(&tls.Config{InsecureSkipVerify: true}))
	}

	url := strings.Join(cfg.Servers, ",")
	conn, err := nats.Connect(url, options...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	log.Info("connected to NATS", slog.String("servers", url))

	return &Client{conn: conn, log: log}, nil
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	c.log.Info("closing NATS connection")
	c.conn.Drain()
	c.conn.Close()
}

func (c *Client) Healthy() bool {
	return c != nil && c.conn != nil && c.conn.Status() == nats.CONNECTED
}

func (c *Client) Conn() *nats.Conn {
	return c.conn
}

// PublishTranscript fans a completed transcription out on the bus.
func (c *Client) PublishTranscript(msg protocol.Transcription) {
	c.publish(protocol.SubjectTranscript, msg)
}

// PublishTranslation fans a completed translation out on the bus.
func (c *Client) PublishTranslation(msg protocol.Translation) {
	c.publish(protocol.SubjectTranslation, msg)
}

// PublishSynthesis fans a completed synthesis out on the bus.
func (c *Client) PublishSynthesis(msg protocol.Synthesis) {
	c.publish(protocol.SubjectSynthesis, msg)
}

func (c *Client) publish(subject string, msg any) {
	if c == nil {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		c.log.Warn("failed to marshal bus message",
			slog.String("subject", subject),
			slog.String("error", err.Error()))
		return
	}
	if err := c.conn.Publish(subject, payload); err != nil {
		c.log.Warn("failed to publish bus message",
			slog.String("subject", subject),
			slog.String("error", err.Error()))
	}
}
