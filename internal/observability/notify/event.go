// Package notify fans roster changes out to team channels.
package notify

import (
	"context"
	"time"
)

// RosterChange is one student write as seen by a team channel.
type RosterChange struct {
	Kind        string
	StudentID   string
	StudentName string
	ActorEmail  string // empty when the write had no signed-in actor
	Summary     string
	OccurredAt  time.Time
}

// Sink delivers roster changes somewhere people will see them.
type Sink interface {
	SendRosterChange(ctx context.Context, change RosterChange) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, change RosterChange) error

// SendRosterChange implements Sink.
func (f SinkFunc) SendRosterChange(ctx context.Context, change RosterChange) error {
	if f == nil {
		return nil
	}
	return f(ctx, change)
}
