// Package system provides the wall clock used by the shard writer and pipeline.
package system

import (
	"time"

	"github.com/JakeFAU/eu-innovation-monitor/internal/document"
)

var _ document.Clock = Clock{}

// Clock implements document.Clock using time.Now in UTC. Shard names and
// fetch_time are both derived from it.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
