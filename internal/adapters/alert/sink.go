// Package alert delivers analysis events to the Discord bridge.
package alert

import (
	"context"
	"errors"
)

// Event types emitted by the analysis pass.
const (
	EventFlag = "anticheat-flag"
	EventPass = "anticheat-pass"
)

// Source tags every event envelope.
const Source = "fivem"

// ErrDisabled is returned by sinks that are unconfigured or failed their health check.
var ErrDisabled = errors.New("alert sink disabled")

// Sink delivers one event.
type Sink interface {
	Send(ctx context.Context, eventType string, data any) error
	Healthy() bool
}

// Event is the envelope posted to the bridge.
type Event struct {
	Source    string `json:"source"`
	EventType string `json:"event_type"`
	Data      any    `json:"data"`
}

// Nop drops every event.
type Nop struct{}

// Send implements Sink.
func (Nop) Send(context.Context, string, any) error { return ErrDisabled }

// Healthy implements Sink.
func (Nop) Healthy() bool { return false }
