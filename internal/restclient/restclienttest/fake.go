// Package restclienttest provides an in-memory restclient.Client double for
// exercising the controller's state machines without a real head node,
// standing in for the REST client the spec declares external (§6.2).
package restclienttest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/canonical/hpc-mesos-bridge/internal/restclient"
)

// Fake is an in-memory restclient.Client whose node status table and
// idle set are driven directly by tests.
type Fake struct {
	mu sync.Mutex

	groups map[string]bool
	nodes  map[string]restclient.NodeStatus
	idle   map[string]bool

	// Calls records every method invocation, in order, for assertions.
	Calls []string

	// Err, if set, is returned by every subsequent call instead of
	// performing it, to exercise the "swallow REST exceptions" paths.
	Err error

	// ErrOnPrefix, if set, is returned only by calls whose recorded name
	// starts with this prefix (e.g. "TakeNodesOffline"), letting a test
	// fail one side-effect call while status reads keep working.
	ErrOnPrefix string
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		groups: make(map[string]bool),
		nodes:  make(map[string]restclient.NodeStatus),
		idle:   make(map[string]bool),
	}
}

// SetNodeStatus sets or overwrites the head node's reported status for
// status.NodeName.
func (f *Fake) SetNodeStatus(status restclient.NodeStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes[strings.ToUpper(status.NodeName)] = status
}

// DeleteNodeStatus removes hostname from the fake head node entirely, so a
// subsequent GetNodeStatusExact omits it from the result.
func (f *Fake) DeleteNodeStatus(hostname string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.nodes, strings.ToUpper(hostname))
}

// SetIdle marks hostname idle (or not) for the next CheckNodesIdle call.
func (f *Fake) SetIdle(hostname string, idle bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.idle[strings.ToUpper(hostname)] = idle
}

func (f *Fake) record(call string) error {
	f.Calls = append(f.Calls, call)

	if f.ErrOnPrefix != "" {
		if strings.HasPrefix(call, f.ErrOnPrefix) {
			return f.Err
		}

		return nil
	}

	return f.Err
}

// ListNodeGroups implements restclient.Client.
func (f *Fake) ListNodeGroups(_ context.Context, nameFilter string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("ListNodeGroups"); err != nil {
		return nil, err
	}

	var out []string
	for g := range f.groups {
		if nameFilter == "" || strings.EqualFold(g, nameFilter) {
			out = append(out, g)
		}
	}

	return out, nil
}

// AddNodeGroup implements restclient.Client.
func (f *Fake) AddNodeGroup(_ context.Context, name, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("AddNodeGroup:" + name); err != nil {
		return err
	}

	f.groups[name] = true
	return nil
}

// GetNodeStatusExact implements restclient.Client.
func (f *Fake) GetNodeStatusExact(_ context.Context, names []string) ([]restclient.NodeStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record(fmt.Sprintf("GetNodeStatusExact:%v", names)); err != nil {
		return nil, err
	}

	var out []restclient.NodeStatus
	for _, name := range names {
		if status, ok := f.nodes[strings.ToUpper(name)]; ok {
			out = append(out, status)
		}
	}

	return out, nil
}

// AssignDefaultComputeNodeTemplate implements restclient.Client.
func (f *Fake) AssignDefaultComputeNodeTemplate(_ context.Context, names []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record(fmt.Sprintf("AssignDefaultComputeNodeTemplate:%v", names)); err != nil {
		return err
	}

	for _, name := range names {
		status := f.nodes[strings.ToUpper(name)]
		status.NodeName = name
		status.NodeHealth = restclient.NodeHealthApproved
		f.nodes[strings.ToUpper(name)] = status
	}

	return nil
}

// TakeNodesOffline implements restclient.Client.
func (f *Fake) TakeNodesOffline(_ context.Context, names []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record(fmt.Sprintf("TakeNodesOffline:%v", names)); err != nil {
		return err
	}

	for _, name := range names {
		status := f.nodes[strings.ToUpper(name)]
		status.NodeName = name
		status.NodeState = restclient.NodeStateOffline
		f.nodes[strings.ToUpper(name)] = status
	}

	return nil
}

// BringNodesOnline implements restclient.Client.
func (f *Fake) BringNodesOnline(_ context.Context, names []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record(fmt.Sprintf("BringNodesOnline:%v", names)); err != nil {
		return err
	}

	for _, name := range names {
		status := f.nodes[strings.ToUpper(name)]
		status.NodeName = name
		status.NodeState = restclient.NodeStateOnline
		f.nodes[strings.ToUpper(name)] = status
	}

	return nil
}

// AddNodeToNodeGroup implements restclient.Client.
func (f *Fake) AddNodeToNodeGroup(_ context.Context, group string, names []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record(fmt.Sprintf("AddNodeToNodeGroup:%s:%v", group, names)); err != nil {
		return err
	}

	f.groups[group] = true
	for _, name := range names {
		status := f.nodes[strings.ToUpper(name)]
		status.NodeName = name
		if !containsFold(status.NodeGroup, group) {
			status.NodeGroup = append(status.NodeGroup, group)
		}

		f.nodes[strings.ToUpper(name)] = status
	}

	return nil
}

// CheckNodesIdle implements restclient.Client.
func (f *Fake) CheckNodesIdle(_ context.Context, names []string) ([]restclient.IdleNode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record(fmt.Sprintf("CheckNodesIdle:%v", names)); err != nil {
		return nil, err
	}

	var out []restclient.IdleNode
	for _, name := range names {
		if f.idle[strings.ToUpper(name)] {
			out = append(out, restclient.IdleNode{NodeName: name})
		}
	}

	return out, nil
}

// RemoveNodes implements restclient.Client.
func (f *Fake) RemoveNodes(_ context.Context, names []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record(fmt.Sprintf("RemoveNodes:%v", names)); err != nil {
		return err
	}

	for _, name := range names {
		delete(f.nodes, strings.ToUpper(name))
	}

	return nil
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}

	return false
}
