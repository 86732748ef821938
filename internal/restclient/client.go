package restclient

import "context"

// Client is the head-node REST surface the controller depends on (spec
// §6.2). It is implemented by HTTPClient for production use and by
// restclienttest.Fake for tests.
type Client interface {
	// ListNodeGroups returns the names of node groups matching nameFilter.
	ListNodeGroups(ctx context.Context, nameFilter string) ([]string, error)

	// AddNodeGroup creates a node group with the given name and description.
	AddNodeGroup(ctx context.Context, name, description string) error

	// GetNodeStatusExact returns the head node's view of exactly the named
	// nodes. Names the head node doesn't know about are simply absent from
	// the result, not errored.
	GetNodeStatusExact(ctx context.Context, names []string) ([]NodeStatus, error)

	// AssignDefaultComputeNodeTemplate assigns the default compute template
	// to the named nodes.
	AssignDefaultComputeNodeTemplate(ctx context.Context, names []string) error

	// TakeNodesOffline takes the named nodes offline.
	TakeNodesOffline(ctx context.Context, names []string) error

	// BringNodesOnline brings the named nodes online.
	BringNodesOnline(ctx context.Context, names []string) error

	// AddNodeToNodeGroup adds the named nodes to group.
	AddNodeToNodeGroup(ctx context.Context, group string, names []string) error

	// CheckNodesIdle returns which of the named nodes are currently idle.
	CheckNodesIdle(ctx context.Context, names []string) ([]IdleNode, error)

	// RemoveNodes removes the named nodes from the head node entirely.
	RemoveNodes(ctx context.Context, names []string) error
}
