// Package reconciler implements the periodic tick (spec §4.5) composing
// ConfigureMachine, TimeoutTracker and DrainCloseMachine against the node
// table, modeled on github.com/canonical/lxd/lxd/cluster's HeartbeatTask /
// Gateway.heartbeat: a task.Func wrapped around a single round that takes
// no lock of its own, wired into a task.Group by the caller.
package reconciler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/canonical/hpc-mesos-bridge/internal/configure"
	"github.com/canonical/hpc-mesos-bridge/internal/drain"
	"github.com/canonical/hpc-mesos-bridge/internal/logger"
	"github.com/canonical/hpc-mesos-bridge/internal/nodestate"
	"github.com/canonical/hpc-mesos-bridge/internal/nodetable"
	"github.com/canonical/hpc-mesos-bridge/internal/restclient"
	"github.com/canonical/hpc-mesos-bridge/internal/timeout"
)

// ClosedCallback is invoked once per tick that closes at least one node,
// with the full list of hostnames that transitioned to Closed during that
// tick.
type ClosedCallback func(hostnames []string)

// Reconciler composes the three state machines against a nodetable.Table
// on a fixed cadence.
type Reconciler struct {
	table     *nodetable.Table
	configure *configure.Machine
	drain     *drain.Machine
	timeouts  *timeout.Tracker
	client    restclient.Client

	callbacks []ClosedCallback
}

// New returns a Reconciler wired against table and client, enforcing
// nodeGroup membership if non-empty, using the given timeouts.
func New(table *nodetable.Table, client restclient.Client, nodeGroup string, provisioningTimeout, heartbeatTimeout, nodeIdleTimeout time.Duration) *Reconciler {
	return &Reconciler{
		table:     table,
		configure: configure.New(client, nodeGroup),
		drain:     drain.New(client),
		timeouts:  timeout.New(provisioningTimeout, heartbeatTimeout, nodeIdleTimeout),
		client:    client,
	}
}

// Subscribe registers cb to be called with the hostnames that closed during
// each tick that closes at least one.
func (r *Reconciler) Subscribe(cb ClosedCallback) {
	r.callbacks = append(r.callbacks, cb)
}

// Tick runs exactly one reconciliation round: configure, then timeout
// detection, then drain/close, then callback dispatch. It is meant to be
// invoked by a task.Func wrapper (see internal/controller) so it is itself
// a plain function rather than something that schedules its own
// continuation.
func (r *Reconciler) Tick(ctx context.Context, now time.Time) {
	tickID := uuid.New().String()
	ctx = withTickID(ctx, tickID)

	logger.Debug("Reconciler tick starting", logger.Ctx{"tick_id": tickID})

	r.configurePhase(ctx)
	r.timeoutPhase(ctx, now)
	closed := r.drainClosePhase(ctx)

	if len(closed) > 0 {
		r.dispatchClosed(closed)
	}

	logger.Debug("Reconciler tick complete", logger.Ctx{"tick_id": tickID})
}

func (r *Reconciler) configurePhase(ctx context.Context) {
	configuring := r.table.HostnamesInState(nodestate.Configuring)
	if len(configuring) == 0 {
		return
	}

	logger.Info("Configuring nodes", logger.Ctx{"hostnames": configuring})
	nowConfigured := r.configure.Run(ctx, configuring)
	if len(nowConfigured) > 0 {
		changed := r.table.SetState(nowConfigured, nodestate.Running)
		logger.Info("Nodes now running", logger.Ctx{"hostnames": changed})
	}
}

func (r *Reconciler) timeoutPhase(ctx context.Context, now time.Time) {
	snapshot := r.table.Snapshot()
	buckets := r.timeouts.Classify(snapshot, now)

	var toDrain []string
	toDrain = append(toDrain, buckets.ProvisionTimeout...)
	toDrain = append(toDrain, buckets.HeartbeatTimeout...)

	if len(buckets.RunningOK) > 0 {
		idle, err := r.client.CheckNodesIdle(ctx, buckets.RunningOK)
		if err != nil {
			logger.Warn("Failed checking idle nodes, skipping idle detection this tick", logger.Ctx{"err": err})
		} else {
			idleNames := make([]string, 0, len(idle))
			for _, n := range idle {
				idleNames = append(idleNames, n.NodeName)
			}

			idleTimedOut := r.timeouts.IdleTimeout(idleNames, now)
			toDrain = append(toDrain, idleTimedOut...)
		}
	}

	if len(toDrain) > 0 {
		r.markDraining(toDrain)
	}
}

func (r *Reconciler) drainClosePhase(ctx context.Context) []string {
	draining := r.table.HostnamesInState(nodestate.Draining)
	closing := r.table.HostnamesInState(nodestate.Closing)

	if len(draining) > 0 {
		drained := r.drain.DrainStep(ctx, draining)
		if len(drained) > 0 {
			r.markClosing(drained)
			closing = append(closing, drained...)
		}
	}

	if len(closing) == 0 {
		return nil
	}

	closedNames, reDrain := r.drain.CloseStep(ctx, closing)

	var closed []string
	if len(closedNames) > 0 {
		closed = r.table.SetState(closedNames, nodestate.Closed)
		r.timeouts.MarkRemoved(closed...)
	}

	if len(reDrain) > 0 {
		r.markDraining(reDrain)
	}

	return closed
}

// markDraining transitions names to Draining and records them as removed
// so the idle tracker resets the clock if they later return to service.
func (r *Reconciler) markDraining(names []string) {
	changed := r.table.SetState(names, nodestate.Draining)
	r.timeouts.MarkRemoved(changed...)
}

// markClosing transitions names to Closing and records them as removed.
func (r *Reconciler) markClosing(names []string) {
	changed := r.table.SetState(names, nodestate.Closing)
	r.timeouts.MarkRemoved(changed...)
}

// dispatchClosed invokes every registered callback with the full closed
// list, outside of any table lock, isolating one callback's panic from the
// rest (spec §7 "Callback exception" row; the original Python's
// _exec_callback gestures at this but is bugged, see SPEC_FULL.md §4).
func (r *Reconciler) dispatchClosed(hostnames []string) {
	for _, cb := range r.callbacks {
		r.safeCall(cb, hostnames)
	}
}

func (r *Reconciler) safeCall(cb ClosedCallback, hostnames []string) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("Panic in node-closed callback, continuing with remaining callbacks", logger.Ctx{"panic": rec})
		}
	}()

	cb(hostnames)
}

type tickIDKey struct{}

func withTickID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, tickIDKey{}, id)
}
