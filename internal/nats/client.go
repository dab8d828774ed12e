// Package nats publishes the engine's outbound events to the GridDown
// message bus so alert, render, and audit consumers stay decoupled from
// the detection core.
package nats

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/BlackAtlas-Tech/griddown-sentry/internal/types"
)

const (
	StreamName    = "SENTRY_EVENTS"
	SubjectPrefix = "sentry."

	// RFSubject carries snapshots from the external RF sensor bridge.
	RFSubject = "rf.tracks"
)

// Client represents a NATS client.
type Client struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// New connects to NATS and ensures the event stream exists.
func New(url string) (*Client, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     StreamName,
		Subjects: []string{SubjectPrefix + ">"},
		Storage:  nats.FileStorage,
		MaxAge:   24 * time.Hour,
	})
	if err != nil && !strings.Contains(err.Error(), "stream name already in use") {
		nc.Close()
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	return &Client{conn: nc, js: js}, nil
}

// PublishEvent publishes one engine event under sentry.<kind>.
func (c *Client) PublishEvent(ev *types.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	_, err = c.js.Publish(SubjectPrefix+string(ev.Kind), data)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// SubscribeEvents subscribes to every engine event.
func (c *Client) SubscribeEvents(handler func(*types.Event)) error {
	_, err := c.js.Subscribe(SubjectPrefix+">", func(msg *nats.Msg) {
		var ev types.Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			fmt.Printf("Error unmarshaling event: %v\n", err)
			return
		}
		handler(&ev)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	return nil
}

// SubscribeRFTracks subscribes to RF sensor snapshots. Core NATS rather
// than JetStream: only the latest snapshot matters, missed ones are stale.
func (c *Client) SubscribeRFTracks(handler func([]types.RFTrack)) error {
	_, err := c.conn.Subscribe(RFSubject, func(msg *nats.Msg) {
		var tracks []types.RFTrack
		if err := json.Unmarshal(msg.Data, &tracks); err != nil {
			fmt.Printf("Error unmarshaling RF snapshot: %v\n", err)
			return
		}
		handler(tracks)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to RF snapshots: %w", err)
	}
	return nil
}

// Close closes the NATS connection.
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
