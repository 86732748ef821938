// Package controller implements the public facade (spec §4.6): the entry
// points the framework scheduler calls, wired to a nodetable.Table and a
// reconciler.Reconciler scheduled through internal/task, the same way
// lxd/cluster.Gateway is the facade callers reach for in the teacher.
package controller

import (
	"context"
	"time"

	"github.com/canonical/hpc-mesos-bridge/internal/logger"
	"github.com/canonical/hpc-mesos-bridge/internal/nodestate"
	"github.com/canonical/hpc-mesos-bridge/internal/nodetable"
	"github.com/canonical/hpc-mesos-bridge/internal/reconciler"
	"github.com/canonical/hpc-mesos-bridge/internal/restclient"
	"github.com/canonical/hpc-mesos-bridge/internal/task"
)

// Controller is the node lifecycle controller's single public entry point.
type Controller struct {
	table       *nodetable.Table
	reconciler  *reconciler.Reconciler
	interval    time.Duration
	taskGroup   *task.Group
	startedOnce bool
}

// New returns a Controller wired against client, using the given tunables.
// See internal/config for the default values.
func New(client restclient.Client, nodeGroup string, provisioningTimeout, heartbeatTimeout, nodeIdleTimeout, reconcileInterval time.Duration) *Controller {
	table := nodetable.New()
	r := reconciler.New(table, client, nodeGroup, provisioningTimeout, heartbeatTimeout, nodeIdleTimeout)

	return &Controller{
		table:      table,
		reconciler: r,
		interval:   reconcileInterval,
		taskGroup:  task.NewGroup(),
	}
}

// AddNode registers a newly-acquired host (spec §4.1, §6.1).
func (c *Controller) AddNode(fqdn, agentID, taskID string, cpus float64) {
	c.table.AddNode(fqdn, agentID, taskID, cpus, time.Now())
}

// OnHeartbeat records a heartbeat from hostname (spec §4.1, §6.1).
func (c *Controller) OnHeartbeat(hostname string) {
	c.table.OnHeartbeat(hostname, time.Now())
}

// CheckFQDNCollision reports whether hostname is registered under a
// different FQDN than fqdn.
func (c *Controller) CheckFQDNCollision(fqdn string) bool {
	return c.table.CheckFQDNCollision(fqdn)
}

// GetTaskInfo returns the (taskID, agentID) pair for hostname.
func (c *Controller) GetTaskInfo(hostname string) (taskID, agentID string) {
	return c.table.GetTaskInfo(hostname)
}

// GetState returns hostname's current lifecycle state.
func (c *Controller) GetState(hostname string) nodestate.State {
	return c.table.GetState(hostname)
}

// GetCoresInProvisioning returns the summed CPU count of nodes still being
// provisioned or configured.
func (c *Controller) GetCoresInProvisioning() float64 {
	return c.table.CoresInProvisioning()
}

// SubscribeNodeClosed registers cb to be called once per tick that closes
// at least one node, with the full list of hostnames closed that tick.
func (c *Controller) SubscribeNodeClosed(cb func(hostnames []string)) {
	c.reconciler.Subscribe(cb)
}

// Start begins the reconciler loop on the configured cadence. It is
// idempotent: calling it more than once is a no-op.
func (c *Controller) Start() {
	if c.startedOnce {
		return
	}

	c.startedOnce = true

	tickFunc := func(ctx context.Context) {
		c.reconciler.Tick(ctx, time.Now())
	}

	c.taskGroup.Add(tickFunc, task.Every(c.interval))
	logger.Info("Reconciler started", logger.Ctx{"interval": c.interval})
}

// Stop halts the reconciler loop, waiting up to timeout for the in-flight
// tick (if any) to finish.
func (c *Controller) Stop(timeout time.Duration) error {
	return c.taskGroup.Stop(timeout)
}

// Snapshot exposes a read-only copy of the node table for the inspection
// HTTP API (internal/httpapi).
func (c *Controller) Snapshot() map[string]nodetable.Record {
	return c.table.Snapshot()
}
