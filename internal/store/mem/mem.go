package mem

import (
	"context"
	"sync"
	"time"

	"unilink.org/internal/account"
	"unilink.org/internal/authz"
	"unilink.org/internal/directory"
	"unilink.org/internal/ids"
)

// Store is an in-memory implementation of every persistence interface the
// service consumes. It backs DSN-less local runs and the HTTP tests;
// production uses the PostgreSQL store.
type Store struct {
	mu       sync.RWMutex
	nodes    map[string]authz.Node
	accounts map[string]account.Record
	byEmail  map[string]string
	grants   map[string]map[string]struct{}
	perms    map[string]authz.PermissionTag
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		nodes:    make(map[string]authz.Node),
		accounts: make(map[string]account.Record),
		byEmail:  make(map[string]string),
		grants:   make(map[string]map[string]struct{}),
		perms:    make(map[string]authz.PermissionTag),
	}
}

// --- directory.Store ---

type directoryStore struct{ s *Store }

// Directory returns the directory.Store view.
func (s *Store) Directory() directory.Store { return directoryStore{s} }

func (d directoryStore) Create(ctx context.Context, node *authz.Node) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	if node.ID == "" {
		node.ID = ids.New()
	}
	if _, exists := d.s.nodes[node.ID]; exists {
		return directory.ErrConflict
	}
	d.s.nodes[node.ID] = *node
	return nil
}

func (d directoryStore) Find(ctx context.Context, id string) (*authz.Node, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()
	n, ok := d.s.nodes[id]
	if !ok {
		return nil, directory.ErrNotFound
	}
	cp := n
	return &cp, nil
}

func (d directoryStore) ListByKind(ctx context.Context, kind authz.NodeKind) ([]*authz.Node, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()
	var out []*authz.Node
	for _, n := range d.s.nodes {
		if n.Kind == kind {
			cp := n
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (d directoryStore) ListChildren(ctx context.Context, parentID string) ([]*authz.Node, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()
	var out []*authz.Node
	for _, n := range d.s.nodes {
		if n.ParentID == parentID {
			cp := n
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (d directoryStore) Delete(ctx context.Context, id string) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	if _, ok := d.s.nodes[id]; !ok {
		return directory.ErrNotFound
	}
	delete(d.s.nodes, id)
	return nil
}

// --- account.Store ---

type accountStore struct{ s *Store }

// Accounts returns the account.Store view.
func (s *Store) Accounts() account.Store { return accountStore{s} }

func (a accountStore) Create(ctx context.Context, rec *account.Record) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = ids.New()
	}
	if _, taken := a.s.byEmail[rec.Email]; taken {
		return account.ErrConflict
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	a.s.accounts[rec.ID] = *rec
	a.s.byEmail[rec.Email] = rec.ID
	return nil
}

func (a accountStore) Find(ctx context.Context, id string) (*account.Record, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	rec, ok := a.s.accounts[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	cp := rec
	return &cp, nil
}

func (a accountStore) FindByEmail(ctx context.Context, email string) (*account.Record, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	id, ok := a.s.byEmail[email]
	if !ok {
		return nil, account.ErrNotFound
	}
	rec := a.s.accounts[id]
	cp := rec
	return &cp, nil
}

func (a accountStore) SetStatus(ctx context.Context, id, status string) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	rec, ok := a.s.accounts[id]
	if !ok {
		return account.ErrNotFound
	}
	rec.Status = status
	rec.UpdatedAt = time.Now().UTC()
	a.s.accounts[id] = rec
	return nil
}

func (a accountStore) Grant(ctx context.Context, principalID string, tags []string) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if _, ok := a.s.accounts[principalID]; !ok {
		return account.ErrNotFound
	}
	set, ok := a.s.grants[principalID]
	if !ok {
		set = make(map[string]struct{})
		a.s.grants[principalID] = set
	}
	// Mirror the SQL store: tags absent from the catalog are not recorded.
	for _, tag := range tags {
		if _, ok := a.s.perms[tag]; !ok {
			continue
		}
		set[tag] = struct{}{}
	}
	return nil
}

func (a accountStore) Revoke(ctx context.Context, principalID string, tags []string) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if _, ok := a.s.accounts[principalID]; !ok {
		return account.ErrNotFound
	}
	set := a.s.grants[principalID]
	for _, tag := range tags {
		delete(set, tag)
	}
	return nil
}

func (a accountStore) Grants(ctx context.Context, principalID string) ([]string, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	if _, ok := a.s.accounts[principalID]; !ok {
		return nil, account.ErrNotFound
	}
	var out []string
	for tag := range a.s.grants[principalID] {
		out = append(out, tag)
	}
	return out, nil
}

func (a accountStore) PermissionKeys(ctx context.Context) (map[string]struct{}, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	keys := make(map[string]struct{}, len(a.s.perms))
	for key := range a.s.perms {
		keys[key] = struct{}{}
	}
	return keys, nil
}

func (a accountStore) EnsurePermissions(ctx context.Context, tags []authz.PermissionTag) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	for _, tag := range tags {
		if _, ok := a.s.perms[tag.Key]; !ok {
			a.s.perms[tag.Key] = tag
		}
	}
	return nil
}

// --- authz stores ---

type principalView struct{ s *Store }

// Principals returns the authz.PrincipalStore view. Disabled accounts resolve
// to not-found so the evaluator fails closed.
func (s *Store) Principals() authz.PrincipalStore { return principalView{s} }

func (v principalView) Find(ctx context.Context, id string) (*authz.Principal, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	rec, ok := v.s.accounts[id]
	if !ok || rec.Status != account.StatusActive {
		return nil, authz.ErrNotFound
	}
	var tags []string
	for tag := range v.s.grants[id] {
		tags = append(tags, tag)
	}
	p := authz.NewPrincipal(rec.ID, rec.AccountType, rec.AnchorID, tags)
	return &p, nil
}

type nodeView struct{ s *Store }

// Nodes returns the authz.NodeStore view.
func (s *Store) Nodes() authz.NodeStore { return nodeView{s} }

func (v nodeView) Find(ctx context.Context, id string) (*authz.Node, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	n, ok := v.s.nodes[id]
	if !ok {
		return nil, authz.ErrNotFound
	}
	cp := n
	return &cp, nil
}
