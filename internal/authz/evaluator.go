package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Evaluator is the single decision point combining identity, required
// permission, and scope. It is safe for concurrent use: every call is an
// independent read-only evaluation against the injected stores.
type Evaluator struct {
	principals PrincipalStore
	scope      *ScopeResolver
}

// NewEvaluator wires the evaluator to its lookup dependencies.
func NewEvaluator(principals PrincipalStore, nodes NodeStore) (*Evaluator, error) {
	if principals == nil {
		return nil, errors.New("authz: principal store is required")
	}
	resolver, err := NewScopeResolver(nodes)
	if err != nil {
		return nil, err
	}
	return &Evaluator{principals: principals, scope: resolver}, nil
}

// Authorize decides whether the principal may perform the action guarded by
// requiredPermission within the requested scope.
//
// Protection is opt-in: an empty requiredPermission allows the request once
// the principal itself resolves. Both the permission check and the scope
// check are necessary; neither alone is sufficient. Expected failures
// (unknown principal or node, inconsistent nesting, missing grant, out of
// scope) are part of the normal result domain and come back as a Deny with a
// reason code. An error is returned only when a backing store faults, and
// callers must treat that identically to a deny.
func (e *Evaluator) Authorize(ctx context.Context, principalID, requiredPermission string, scope ScopeRequest) (Decision, error) {
	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		return Deny(ReasonNoSuchPrincipal), nil
	}

	principal, err := e.principals.Find(ctx, principalID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Deny(ReasonNoSuchPrincipal), nil
		}
		return Decision{}, fmt.Errorf("resolve principal %s: %w", principalID, err)
	}

	// Endpoints without a declared requirement are unprotected on purpose.
	if strings.TrimSpace(requiredPermission) == "" {
		return Allow(), nil
	}

	if !principal.HasPermission(requiredPermission) {
		return Deny(ReasonMissingPermission), nil
	}

	relation, err := e.scope.Relation(ctx, principal.AnchorID, scope)
	if err != nil {
		return Decision{}, err
	}
	if !relation.WithinAnchor {
		return Deny(relation.Reason), nil
	}
	return Allow(), nil
}
