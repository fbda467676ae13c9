package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"unilink.org/internal/authz"
)

var (
	ErrInvalidInput = errors.New("directory: invalid input")
	ErrNotFound     = errors.New("directory: not found")
	ErrConflict     = errors.New("directory: conflict")
)

// Store persists organizational nodes.
type Store interface {
	Create(ctx context.Context, node *authz.Node) error
	Find(ctx context.Context, id string) (*authz.Node, error)
	ListByKind(ctx context.Context, kind authz.NodeKind) ([]*authz.Node, error)
	ListChildren(ctx context.Context, parentID string) ([]*authz.Node, error)
	Delete(ctx context.Context, id string) error
}

// Service manages the university/institution directory. It owns structural
// validation: departments nest under universities, divisions under
// institutions, roots carry no parent. The authorization core reads the same
// nodes through authz.NodeStore but never mutates them.
type Service struct {
	store Store
}

// NewService constructs the directory service.
func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("directory store is required")
	}
	return &Service{store: store}, nil
}

// CreateNode validates shape and inserts a new node.
func (s *Service) CreateNode(ctx context.Context, kind authz.NodeKind, name, parentID string) (authz.Node, error) {
	name = strings.TrimSpace(name)
	parentID = strings.TrimSpace(parentID)
	if !kind.Valid() {
		return authz.Node{}, fmt.Errorf("%w: unsupported node kind %q", ErrInvalidInput, kind)
	}
	if name == "" {
		return authz.Node{}, fmt.Errorf("%w: node name is required", ErrInvalidInput)
	}
	if kind.Root() {
		if parentID != "" {
			return authz.Node{}, fmt.Errorf("%w: %s nodes are hierarchy roots and take no parent", ErrInvalidInput, kind)
		}
	} else {
		if parentID == "" {
			return authz.Node{}, fmt.Errorf("%w: %s nodes require a parent %s", ErrInvalidInput, kind, kind.ParentKind())
		}
		parent, err := s.store.Find(ctx, parentID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return authz.Node{}, fmt.Errorf("%w: parent %s does not exist", ErrInvalidInput, parentID)
			}
			return authz.Node{}, err
		}
		if parent.Kind != kind.ParentKind() {
			return authz.Node{}, fmt.Errorf("%w: %s nodes nest under %s, not %s", ErrInvalidInput, kind, kind.ParentKind(), parent.Kind)
		}
	}
	node := authz.Node{Kind: kind, Name: name, ParentID: parentID}
	if err := s.store.Create(ctx, &node); err != nil {
		return authz.Node{}, err
	}
	return node, nil
}

// GetNode fetches a node by id.
func (s *Service) GetNode(ctx context.Context, id string) (authz.Node, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return authz.Node{}, fmt.Errorf("%w: node id is required", ErrInvalidInput)
	}
	node, err := s.store.Find(ctx, id)
	if err != nil {
		return authz.Node{}, err
	}
	return *node, nil
}

// ListNodes returns all nodes of a kind.
func (s *Service) ListNodes(ctx context.Context, kind authz.NodeKind) ([]*authz.Node, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unsupported node kind %q", ErrInvalidInput, kind)
	}
	return s.store.ListByKind(ctx, kind)
}

// ListChildren returns the direct children of a node.
func (s *Service) ListChildren(ctx context.Context, parentID string) ([]*authz.Node, error) {
	parentID = strings.TrimSpace(parentID)
	if parentID == "" {
		return nil, fmt.Errorf("%w: parent id is required", ErrInvalidInput)
	}
	if _, err := s.store.Find(ctx, parentID); err != nil {
		return nil, err
	}
	return s.store.ListChildren(ctx, parentID)
}

// DeleteNode removes a leaf node. Nodes with children are refused so the
// tree never acquires dangling parent references.
func (s *Service) DeleteNode(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: node id is required", ErrInvalidInput)
	}
	children, err := s.store.ListChildren(ctx, id)
	if err != nil {
		return err
	}
	if len(children) > 0 {
		return fmt.Errorf("%w: node %s still has %d children", ErrConflict, id, len(children))
	}
	return s.store.Delete(ctx, id)
}
