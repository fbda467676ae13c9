package authz

import (
	"context"
	"errors"
	"fmt"
)

// maxWalkDepth bounds parent-chain walks. The real hierarchy is two levels
// deep; anything past this indicates corrupted data and fails closed.
const maxWalkDepth = 16

// Relation describes how a requested scope relates to a principal's anchor.
type Relation struct {
	// WithinAnchor is true when the requested node is the anchor itself or a
	// descendant of it (or when the principal is scope-blind and the request
	// passed existence and consistency checks).
	WithinAnchor bool
	// Reason carries the deny reason code when WithinAnchor is false.
	Reason string
	// Target is the resolved most-specific node, nil for an empty scope.
	Target *Node
}

// ScopeResolver normalizes scope requests and computes their relation to a
// principal's organizational anchor by walking parent chains in the node
// store. All lookups are reads; the resolver holds no mutable state.
type ScopeResolver struct {
	nodes NodeStore
}

// NewScopeResolver constructs a resolver over the given node store.
func NewScopeResolver(nodes NodeStore) (*ScopeResolver, error) {
	if nodes == nil {
		return nil, errors.New("authz: node store is required")
	}
	return &ScopeResolver{nodes: nodes}, nil
}

// Relation resolves the scope request and checks anchor containment.
// anchorID may be empty for scope-blind principals; existence and consistency
// checks still apply in that case, only the containment check is waived.
// Errors are returned only for store faults; every expected condition
// (unknown node, inconsistent nesting, out of scope) resolves to a Relation
// with WithinAnchor=false and a reason code.
func (r *ScopeResolver) Relation(ctx context.Context, anchorID string, scope ScopeRequest) (Relation, error) {
	if scope.Empty() {
		return Relation{WithinAnchor: true}, nil
	}

	if scope.Platform {
		if scope.UniversityID != "" || scope.DepartmentID != "" ||
			scope.InstitutionID != "" || scope.DivisionID != "" {
			return Relation{Reason: ReasonInconsistentScope}, nil
		}
		// No subtree contains the platform level, so an anchor of any kind
		// puts the principal outside it.
		if anchorID != "" {
			return Relation{Reason: ReasonOutOfScope}, nil
		}
		return Relation{WithinAnchor: true}, nil
	}

	targetID, targetKind, constraintID, reason := normalizeScope(scope)
	if reason != "" {
		return Relation{Reason: reason}, nil
	}

	target, err := r.nodes.Find(ctx, targetID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Relation{Reason: ReasonUnknownNode}, nil
		}
		return Relation{}, fmt.Errorf("resolve node %s: %w", targetID, err)
	}
	if target.Kind != targetKind {
		// The id exists but belongs to a different hierarchy level than the
		// parameter it was passed as. Treat as inconsistent, not unknown.
		return Relation{Reason: ReasonInconsistentScope}, nil
	}

	if constraintID != "" {
		ok, err := r.chainContains(ctx, target, constraintID, false)
		if err != nil {
			return Relation{}, err
		}
		if !ok {
			return Relation{Reason: ReasonInconsistentScope}, nil
		}
	}

	if anchorID == "" {
		return Relation{WithinAnchor: true, Target: target}, nil
	}

	ok, err := r.chainContains(ctx, target, anchorID, true)
	if err != nil {
		return Relation{}, err
	}
	if !ok {
		return Relation{WithinAnchor: false, Reason: ReasonOutOfScope, Target: target}, nil
	}
	return Relation{WithinAnchor: true, Target: target}, nil
}

// normalizeScope picks the most specific node as the target and the named
// parent, if any, as a consistency constraint. Requests naming nodes from
// both parallel hierarchies are rejected outright.
func normalizeScope(scope ScopeRequest) (targetID string, kind NodeKind, constraintID string, reason string) {
	universitySide := scope.UniversityID != "" || scope.DepartmentID != ""
	institutionSide := scope.InstitutionID != "" || scope.DivisionID != ""
	if universitySide && institutionSide {
		return "", "", "", ReasonInconsistentScope
	}
	switch {
	case scope.DepartmentID != "":
		return scope.DepartmentID, KindDepartment, scope.UniversityID, ""
	case scope.UniversityID != "":
		return scope.UniversityID, KindUniversity, "", ""
	case scope.DivisionID != "":
		return scope.DivisionID, KindDivision, scope.InstitutionID, ""
	default:
		return scope.InstitutionID, KindInstitution, "", ""
	}
}

// chainContains walks from node upward and reports whether wantID appears in
// the chain. includeSelf controls whether the starting node itself counts
// (anchor containment does, parent consistency does not). A missing ancestor
// or a cycle fails closed as "not contained".
func (r *ScopeResolver) chainContains(ctx context.Context, node *Node, wantID string, includeSelf bool) (bool, error) {
	if includeSelf && node.ID == wantID {
		return true, nil
	}
	current := node
	for depth := 0; depth < maxWalkDepth; depth++ {
		if current.ParentID == "" {
			return false, nil
		}
		if current.ParentID == wantID {
			return true, nil
		}
		parent, err := r.nodes.Find(ctx, current.ParentID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return false, nil
			}
			return false, fmt.Errorf("resolve node %s: %w", current.ParentID, err)
		}
		current = parent
	}
	return false, nil
}
