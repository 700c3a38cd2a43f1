// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"log/slog"
)

// LogPublisher writes every event to a structured logger. It never
// fails: a log sink has no delivery semantics to violate.
type LogPublisher struct {
	logger *slog.Logger
}

var _ Publisher = (*LogPublisher)(nil)

// NewLogPublisher creates a publisher writing to the given logger.
// If logger is nil, slog.Default() is used.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	p.logger.Info("event published",
		"event_type", event.Type,
		"content", string(event.Content),
	)
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
