package scheduler

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"airwatch/internal/analytics"
	"airwatch/internal/aqi"
	"airwatch/internal/types"
)

// NodeSnapshot is the result of a node's most recent evaluation. Snapshots
// are never modified after they are published; the read path may hold one
// for as long as it likes.
type NodeSnapshot struct {
	NodeID       string
	EvaluatedAt  time.Time
	Reading      types.Reading
	AQI          int
	Tier         aqi.Tier
	Anomalous    bool
	AnomalyScore float64

	// Detector and Forecaster are copies of the fitted models at
	// EvaluatedAt. Forecaster is never nil.
	Detector   analytics.AnomalyDetector
	Forecaster *analytics.Forecaster
	FittedAt   time.Time
}

// NodeState holds the models of one node. mu serializes evaluations of the
// node; the published snapshot can be read without it.
type NodeState struct {
	mu         sync.Mutex
	detector   analytics.AnomalyDetector
	forecaster analytics.Forecaster
	fittedAt   time.Time // last fit attempt, zero if never

	snapshot atomic.Pointer[NodeSnapshot]
}

// needsFit reports whether the models are due for a refit at now.
func (s *NodeState) needsFit(now time.Time, retrain time.Duration) bool {
	return s.fittedAt.IsZero() || now.Sub(s.fittedAt) >= retrain
}

// Snapshot returns the last published snapshot, if any.
func (s *NodeState) Snapshot() (NodeSnapshot, bool) {
	snap := s.snapshot.Load()
	if snap == nil {
		return NodeSnapshot{}, false
	}
	return *snap, true
}

func (s *NodeState) publish(snap NodeSnapshot) {
	s.snapshot.Store(&snap)
}

// StateStore maps node IDs to their state. Entries are created on first
// evaluation and kept for the life of the process.
type StateStore struct {
	mu    sync.RWMutex
	nodes map[string]*NodeState
}

// NewStateStore returns an empty store.
func NewStateStore() *StateStore {
	return &StateStore{nodes: make(map[string]*NodeState)}
}

// node returns the state for nodeID, creating it if needed.
func (s *StateStore) node(nodeID string) *NodeState {
	s.mu.RLock()
	st, ok := s.nodes[nodeID]
	s.mu.RUnlock()
	if ok {
		return st
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok = s.nodes[nodeID]; ok {
		return st
	}
	st = &NodeState{}
	s.nodes[nodeID] = st
	return st
}

// Snapshot returns the last published snapshot for nodeID.
func (s *StateStore) Snapshot(nodeID string) (NodeSnapshot, bool) {
	s.mu.RLock()
	st, ok := s.nodes[nodeID]
	s.mu.RUnlock()
	if !ok {
		return NodeSnapshot{}, false
	}
	return st.Snapshot()
}

// Snapshots returns every published snapshot ordered by node ID.
func (s *StateStore) Snapshots() []NodeSnapshot {
	s.mu.RLock()
	states := make([]*NodeState, 0, len(s.nodes))
	for _, st := range s.nodes {
		states = append(states, st)
	}
	s.mu.RUnlock()

	out := make([]NodeSnapshot, 0, len(states))
	for _, st := range states {
		if snap, ok := st.Snapshot(); ok {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out
}

// Len returns the number of tracked nodes.
func (s *StateStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}
