// Package timeout implements TimeoutTracker (spec §4.2): classifying nodes
// by elapsed time since last heartbeat, and tracking idle-observation
// streaks reported by the head node.
package timeout

import (
	"strings"
	"sync"
	"time"

	"github.com/canonical/hpc-mesos-bridge/internal/logger"
	"github.com/canonical/hpc-mesos-bridge/internal/nodestate"
	"github.com/canonical/hpc-mesos-bridge/internal/nodetable"
)

// Default timeouts from spec §6.3.
const (
	DefaultProvisioningTimeout = 15 * time.Minute
	DefaultHeartbeatTimeout    = 3 * time.Minute
	DefaultNodeIdleTimeout     = 180 * time.Second
)

// Buckets is the disjoint classification returned by Classify.
type Buckets struct {
	ProvisionTimeout []string
	HeartbeatTimeout []string
	RunningOK        []string
}

// Tracker classifies nodes by heartbeat age and maintains the idle
// observation table used to detect sustained idleness. It is owned and
// mutated only by the reconciler's single tick goroutine; it needs no
// internal lock of its own but embeds one so misuse from another goroutine
// fails safe rather than racing silently.
type Tracker struct {
	mu sync.Mutex

	provisioningTimeout time.Duration
	heartbeatTimeout    time.Duration
	nodeIdleTimeout     time.Duration

	// removed tracks every hostname that has ever been ordered into
	// Draining/Closing/Closed, so a later idle observation on a hostname
	// that re-entered service resets its idle clock instead of inheriting
	// a stale one.
	removed map[string]bool

	// idleSince is the first-observed timestamp of the current idle streak
	// per hostname; entries are dropped the tick a hostname stops being
	// reported idle.
	idleSince map[string]time.Time
}

// New returns a Tracker configured with the given timeouts. Zero values
// fall back to the spec defaults.
func New(provisioningTimeout, heartbeatTimeout, nodeIdleTimeout time.Duration) *Tracker {
	if provisioningTimeout <= 0 {
		provisioningTimeout = DefaultProvisioningTimeout
	}

	if heartbeatTimeout <= 0 {
		heartbeatTimeout = DefaultHeartbeatTimeout
	}

	if nodeIdleTimeout <= 0 {
		nodeIdleTimeout = DefaultNodeIdleTimeout
	}

	return &Tracker{
		provisioningTimeout: provisioningTimeout,
		heartbeatTimeout:    heartbeatTimeout,
		nodeIdleTimeout:     nodeIdleTimeout,
		removed:             make(map[string]bool),
		idleSince:           make(map[string]time.Time),
	}
}

// MarkRemoved records that hostname has entered Draining, Closing, or
// Closed, so a future idle re-observation resets its clock instead of
// reusing a stale streak.
func (tr *Tracker) MarkRemoved(hostnames ...string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	for _, h := range hostnames {
		tr.removed[strings.ToUpper(h)] = true
	}
}

// Classify buckets snapshot by elapsed time since last heartbeat, as of
// now. Records in states other than Provisioning/Running are excluded.
func (tr *Tracker) Classify(snapshot map[string]nodetable.Record, now time.Time) Buckets {
	var b Buckets
	for hostname, record := range snapshot {
		switch record.State {
		case nodestate.Provisioning:
			if now.Sub(record.LastHeartbeat) >= tr.provisioningTimeout {
				logger.Warn("Provisioning timeout", logger.Ctx{"hostname": hostname})
				b.ProvisionTimeout = append(b.ProvisionTimeout, hostname)
			}
		case nodestate.Running:
			if now.Sub(record.LastHeartbeat) >= tr.heartbeatTimeout {
				logger.Warn("Heartbeat lost", logger.Ctx{"hostname": hostname})
				b.HeartbeatTimeout = append(b.HeartbeatTimeout, hostname)
			} else {
				b.RunningOK = append(b.RunningOK, hostname)
			}
		}
	}

	return b
}

// IdleTimeout rebuilds the idle-observation table from idleHostnames (the
// set of hostnames the head node currently reports idle) and returns the
// hostnames whose observation age now exceeds the configured idle timeout.
//
// The rebuild-then-scan order matters: a hostname missing from
// idleHostnames this tick is dropped from the table before the age scan
// runs, matching the two-pass shape of the original Python implementation
// (see SPEC_FULL.md §4).
func (tr *Tracker) IdleTimeout(idleHostnames []string, now time.Time) []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	next := make(map[string]time.Time, len(idleHostnames))
	for _, raw := range idleHostnames {
		hostname := strings.ToUpper(raw)
		since, tracked := tr.idleSince[hostname]

		switch {
		case tracked && tr.removed[hostname]:
			// Already tracked, but the node was drained and re-entered
			// service since the last observation; its idle streak starts
			// over and it is no longer pending removal.
			next[hostname] = now
			delete(tr.removed, hostname)
		case tracked:
			next[hostname] = since
		default:
			// Not currently tracked: start a fresh streak. If it happens
			// to also be in removed, that entry is left alone for a
			// future tick where it is actually re-observed while tracked.
			next[hostname] = now
		}
	}

	tr.idleSince = next

	var timedOut []string
	for hostname, since := range tr.idleSince {
		if now.Sub(since) > tr.nodeIdleTimeout {
			timedOut = append(timedOut, hostname)
		}
	}

	return timedOut
}
