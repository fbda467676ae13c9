package directory

import (
	"context"
	"errors"
	"testing"

	"unilink.org/internal/authz"
)

type stubStore struct {
	createFn       func(context.Context, *authz.Node) error
	findFn         func(context.Context, string) (*authz.Node, error)
	listByKindFn   func(context.Context, authz.NodeKind) ([]*authz.Node, error)
	listChildrenFn func(context.Context, string) ([]*authz.Node, error)
	deleteFn       func(context.Context, string) error
}

func (s *stubStore) Create(ctx context.Context, node *authz.Node) error {
	if s.createFn != nil {
		return s.createFn(ctx, node)
	}
	node.ID = "generated"
	return nil
}

func (s *stubStore) Find(ctx context.Context, id string) (*authz.Node, error) {
	if s.findFn != nil {
		return s.findFn(ctx, id)
	}
	return nil, ErrNotFound
}

func (s *stubStore) ListByKind(ctx context.Context, kind authz.NodeKind) ([]*authz.Node, error) {
	if s.listByKindFn != nil {
		return s.listByKindFn(ctx, kind)
	}
	return nil, nil
}

func (s *stubStore) ListChildren(ctx context.Context, parentID string) ([]*authz.Node, error) {
	if s.listChildrenFn != nil {
		return s.listChildrenFn(ctx, parentID)
	}
	return nil, nil
}

func (s *stubStore) Delete(ctx context.Context, id string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, id)
	}
	return nil
}

func TestCreateNodeRootRejectsParent(t *testing.T) {
	svc, err := NewService(&stubStore{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	_, err = svc.CreateNode(context.Background(), authz.KindUniversity, "Tartu", "some-parent")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestCreateNodeNestedRequiresMatchingParentKind(t *testing.T) {
	store := &stubStore{
		findFn: func(_ context.Context, id string) (*authz.Node, error) {
			if id == "inst-1" {
				return &authz.Node{ID: "inst-1", Kind: authz.KindInstitution}, nil
			}
			return nil, ErrNotFound
		},
	}
	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	// Departments must nest under universities, not institutions.
	_, err = svc.CreateNode(context.Background(), authz.KindDepartment, "Physics", "inst-1")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for wrong parent kind, got %v", err)
	}

	// Missing parent id.
	_, err = svc.CreateNode(context.Background(), authz.KindDivision, "Grants", "")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for missing parent, got %v", err)
	}
}

func TestCreateNodeTrimsAndPersists(t *testing.T) {
	var captured authz.Node
	store := &stubStore{
		findFn: func(_ context.Context, id string) (*authz.Node, error) {
			return &authz.Node{ID: id, Kind: authz.KindUniversity}, nil
		},
		createFn: func(_ context.Context, node *authz.Node) error {
			node.ID = "dept-new"
			captured = *node
			return nil
		},
	}
	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	node, err := svc.CreateNode(context.Background(), authz.KindDepartment, "  Computer Science  ", "univ-7")
	if err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	if node.ID != "dept-new" {
		t.Fatalf("expected generated id, got %q", node.ID)
	}
	if captured.Name != "Computer Science" {
		t.Fatalf("expected trimmed name, got %q", captured.Name)
	}
	if captured.ParentID != "univ-7" {
		t.Fatalf("parent not forwarded: %q", captured.ParentID)
	}
}

func TestDeleteNodeRefusesWhenChildrenExist(t *testing.T) {
	store := &stubStore{
		listChildrenFn: func(_ context.Context, parentID string) ([]*authz.Node, error) {
			return []*authz.Node{{ID: "dept-42", Kind: authz.KindDepartment, ParentID: parentID}}, nil
		},
	}
	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	err = svc.DeleteNode(context.Background(), "univ-7")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}
