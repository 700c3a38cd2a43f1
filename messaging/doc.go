// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging publishes controller lifecycle events to external
// consumers.
//
// The controller emits an event when an instance reaches its running
// state (gantry.instance_activated) and when a member is terminated
// (gantry.member_terminated). Autoscalers and application monitors
// subscribe to these to drive their own state machines; the controller
// never waits on a consumer.
//
// [Publisher] is the sink interface. Three implementations ship:
//
//   - [RedisPublisher] sends each event to a Redis pub/sub channel
//     named after the event type. This is the production transport.
//   - [LogPublisher] writes events to a slog.Logger. Useful for
//     single-node deployments without a broker, and as a shadow sink
//     next to Redis.
//   - [MemoryPublisher] records events in memory for tests.
//
// [NewMulti] fans one event out to several publishers, so a deployment
// can log every event and publish it to Redis with one sink.
//
// Event content payloads are JSON: the external surface of the
// controller stays readable to consumers in any language. Typed
// content structs live in lib/schema; [DecodeContent] recovers them
// on the consuming side.
package messaging
