// Package nodetable implements the thread-safe hostname → Record table at
// the core of the node lifecycle controller (spec §4.1), grounded on the
// locking discipline of github.com/canonical/lxd/lxd/cluster.APIHeartbeat
// (a sync.Mutex-guarded map of per-node state, replaced wholesale rather
// than mutated field-by-field).
package nodetable

import (
	"strings"
	"sync"
	"time"

	"github.com/canonical/hpc-mesos-bridge/internal/logger"
	"github.com/canonical/hpc-mesos-bridge/internal/nodestate"
)

// Table is the hostname → Record map. Create one with New; the zero value
// has no backing map and is not ready to use.
type Table struct {
	mu      sync.Mutex
	records map[string]Record
}

// New returns an empty Table.
func New() *Table {
	return &Table{records: make(map[string]Record)}
}

func canonicalHostname(fqdn string) (hostname, upperFQDN string) {
	upperFQDN = strings.ToUpper(fqdn)
	hostname = upperFQDN
	if idx := strings.IndexByte(upperFQDN, '.'); idx >= 0 {
		hostname = upperFQDN[:idx]
	}

	return hostname, upperFQDN
}

// AddNode registers a new node, or re-admits a Closed one, under hostname.
// now must be supplied by the caller on every call — see SPEC_FULL.md §4
// on the original's default-argument datetime bug this guards against.
func (t *Table) AddNode(fqdn, agentID, taskID string, cpus float64, now time.Time) {
	hostname, upperFQDN := canonicalHostname(fqdn)

	t.mu.Lock()
	defer t.mu.Unlock()

	existing, ok := t.records[hostname]
	if ok {
		if existing.FQDN != upperFQDN {
			logger.Error("Duplicate hostname detected, ignoring new registration", logger.Ctx{
				"hostname":      hostname,
				"existing_fqdn": existing.FQDN,
				"new_fqdn":      upperFQDN,
			})
			return
		}

		if existing.State != nodestate.Closed {
			logger.Warn("Re-registering node that already has a live entry", logger.Ctx{
				"hostname": hostname,
				"state":    existing.State.String(),
			})
		}
	}

	record := Record{
		Hostname:      hostname,
		FQDN:          upperFQDN,
		AgentID:       agentID,
		TaskID:        taskID,
		CPUs:          cpus,
		LastHeartbeat: now,
		State:         nodestate.Provisioning,
	}

	t.records[hostname] = record
	logger.Info("Node registered", logger.Ctx{"hostname": hostname, "fqdn": upperFQDN, "cpus": cpus})
}

// OnHeartbeat records a heartbeat from hostname, advancing Provisioning →
// Configuring exactly once. Unknown hostnames are logged and dropped.
func (t *Table) OnHeartbeat(hostname string, now time.Time) {
	u := strings.ToUpper(hostname)

	t.mu.Lock()
	defer t.mu.Unlock()

	record, ok := t.records[u]
	if !ok {
		logger.Error("Heartbeat from unrecognized host, ignoring", logger.Ctx{"hostname": u})
		return
	}

	record = record.withLastHeartbeat(now)
	if record.State == nodestate.Provisioning {
		record = record.withState(nodestate.Configuring)
		logger.Info("Host entered configuring", logger.Ctx{"hostname": u})
	}

	t.records[u] = record
}

// GetTaskInfo returns the (taskID, agentID) pair for hostname, or ("","")
// if it is not present.
func (t *Table) GetTaskInfo(hostname string) (taskID, agentID string) {
	u := strings.ToUpper(hostname)

	t.mu.Lock()
	defer t.mu.Unlock()

	record, ok := t.records[u]
	if !ok {
		logger.Error("Host not recognized, cannot get task info", logger.Ctx{"hostname": u})
		return "", ""
	}

	return record.TaskID, record.AgentID
}

// GetState returns hostname's current state, or Unknown if not present.
func (t *Table) GetState(hostname string) nodestate.State {
	u := strings.ToUpper(hostname)

	t.mu.Lock()
	defer t.mu.Unlock()

	record, ok := t.records[u]
	if !ok {
		return nodestate.Unknown
	}

	return record.State
}

// CheckFQDNCollision reports whether hostname is already registered under a
// different FQDN than fqdn.
func (t *Table) CheckFQDNCollision(fqdn string) bool {
	hostname, upperFQDN := canonicalHostname(fqdn)

	t.mu.Lock()
	defer t.mu.Unlock()

	record, ok := t.records[hostname]
	if !ok {
		return false
	}

	return record.FQDN != upperFQDN
}

// CoresInProvisioning sums CPUs over records in Provisioning or Configuring.
func (t *Table) CoresInProvisioning() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var cores float64
	for _, record := range t.records {
		if record.State == nodestate.Provisioning || record.State == nodestate.Configuring {
			cores += record.CPUs
		}
	}

	return cores
}

// SetState transitions each named host to newState, skipping unknown hosts
// and hosts already in newState. It returns the hostnames that actually
// changed. This is a bare transition primitive: callers are responsible
// for only requesting legal transitions.
func (t *Table) SetState(names []string, newState nodestate.State) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var changed []string
	for _, name := range names {
		u := strings.ToUpper(name)
		record, ok := t.records[u]
		if !ok {
			logger.Error("Host not recognized, state change ignored", logger.Ctx{
				"hostname": u,
				"state":    newState.String(),
			})
			continue
		}

		if record.State == newState {
			continue
		}

		oldState := record.State
		t.records[u] = record.withState(newState)
		changed = append(changed, u)
		logger.Info("Host state changed", logger.Ctx{
			"hostname":  u,
			"old_state": oldState.String(),
			"new_state": newState.String(),
		})
	}

	return changed
}

// Snapshot returns a point-in-time copy of every record, keyed by
// hostname, safe to range over without holding the table lock.
func (t *Table) Snapshot() map[string]Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := make(map[string]Record, len(t.records))
	for k, v := range t.records {
		snap[k] = v
	}

	return snap
}

// HostnamesInState returns the hostnames currently in any of the given
// states, taken from a fresh snapshot.
func (t *Table) HostnamesInState(states ...nodestate.State) []string {
	want := make(map[nodestate.State]bool, len(states))
	for _, s := range states {
		want[s] = true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var names []string
	for hostname, record := range t.records {
		if want[record.State] {
			names = append(names, hostname)
		}
	}

	return names
}
