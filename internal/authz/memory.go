package authz

import (
	"context"
	"sync"
)

// Memory is an in-memory principal and node catalog. It backs tests and
// DSN-less local runs; production uses the PostgreSQL store. Principals()
// and Nodes() expose the two store views.
type Memory struct {
	mu         sync.RWMutex
	principals map[string]Principal
	nodes      map[string]Node
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		principals: make(map[string]Principal),
		nodes:      make(map[string]Node),
	}
}

// PutPrincipal inserts or replaces a principal.
func (m *Memory) PutPrincipal(p Principal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.Permissions == nil {
		p.Permissions = make(map[string]struct{})
	}
	m.principals[p.ID] = p
}

// DeletePrincipal removes a principal so subsequent lookups fail closed.
func (m *Memory) DeletePrincipal(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.principals, id)
}

// PutNode inserts or replaces a node.
func (m *Memory) PutNode(n Node) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[n.ID] = n
}

// Principals returns the PrincipalStore view.
func (m *Memory) Principals() PrincipalStore { return principalView{m} }

// Nodes returns the NodeStore view.
func (m *Memory) Nodes() NodeStore { return nodeView{m} }

type principalView struct{ m *Memory }

func (v principalView) Find(ctx context.Context, id string) (*Principal, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	p, ok := v.m.principals[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := p
	cp.Permissions = clonePermissions(p.Permissions)
	return &cp, nil
}

type nodeView struct{ m *Memory }

func (v nodeView) Find(ctx context.Context, id string) (*Node, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	n, ok := v.m.nodes[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := n
	return &cp, nil
}

func clonePermissions(in map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for k := range in {
		out[k] = struct{}{}
	}
	return out
}
