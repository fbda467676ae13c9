package authz

import "context"

// PrincipalStore resolves principal ids to live accounts. Implementations
// return ErrNotFound for deleted or unknown ids; the evaluator converts that
// into a hard deny, never into "no restrictions".
type PrincipalStore interface {
	Find(ctx context.Context, id string) (*Principal, error)
}

// NodeStore resolves organizational node ids. Used by the scope resolver for
// parent-chain walks; implementations return ErrNotFound for unknown ids.
type NodeStore interface {
	Find(ctx context.Context, id string) (*Node, error)
}
