// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Event is one lifecycle notification. Content is the JSON-encoded
// content struct for the event type (see lib/schema events).
type Event struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

// NewEvent encodes content and wraps it with the event type. The
// content is marshaled once here so every publisher in a fan-out sees
// identical bytes.
func NewEvent(eventType string, content any) (Event, error) {
	data, err := json.Marshal(content)
	if err != nil {
		return Event{}, fmt.Errorf("messaging: encoding %s content: %w", eventType, err)
	}
	return Event{Type: eventType, Content: data}, nil
}

// DecodeContent unmarshals an event's content into its typed struct.
func DecodeContent[T any](event Event) (T, error) {
	var content T
	if err := json.Unmarshal(event.Content, &content); err != nil {
		return content, fmt.Errorf("messaging: decoding %s content: %w", event.Type, err)
	}
	return content, nil
}

// Publisher delivers events to a sink. Implementations are safe for
// concurrent use.
type Publisher interface {
	// Publish delivers one event. Delivery is fire-and-forget from
	// the caller's perspective: an error means the sink rejected the
	// event, not that no consumer saw it.
	Publish(ctx context.Context, event Event) error

	// Close releases sink resources. The publisher must not be used
	// after Close.
	Close() error
}

// multiPublisher fans each event out to every wrapped publisher.
type multiPublisher struct {
	publishers []Publisher
}

// NewMulti returns a publisher that delivers each event to all the
// given publishers in order. Publish and Close report the combined
// errors of the wrapped sinks; a failing sink does not stop delivery
// to the others.
func NewMulti(publishers ...Publisher) Publisher {
	return &multiPublisher{publishers: publishers}
}

func (m *multiPublisher) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, publisher := range m.publishers {
		if err := publisher.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *multiPublisher) Close() error {
	var errs []error
	for _, publisher := range m.publishers {
		if err := publisher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
