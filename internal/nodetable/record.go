package nodetable

import (
	"time"

	"github.com/canonical/hpc-mesos-bridge/internal/nodestate"
)

// Record is an immutable snapshot of a node's known state. Transitions
// replace the record wholesale rather than mutating it in place, mirroring
// the Python original's namedtuple._replace idiom (see DESIGN.md,
// internal/nodetable).
type Record struct {
	Hostname      string
	FQDN          string
	AgentID       string
	TaskID        string
	CPUs          float64
	LastHeartbeat time.Time
	State         nodestate.State
}

func (r Record) withLastHeartbeat(now time.Time) Record {
	r.LastHeartbeat = now
	return r
}

func (r Record) withState(s nodestate.State) Record {
	r.State = s
	return r
}
