package pg

import (
	"context"
	"database/sql"
	"errors"

	"unilink.org/internal/account"
	"unilink.org/internal/authz"
)

// Principals returns the read-only principal resolver used by the evaluator.
// Disabled accounts resolve as not-found so they fail closed the same way
// deleted ones do.
func (s *Store) Principals() authz.PrincipalStore {
	return &principalStore{db: s.db}
}

// Nodes returns the read-only node resolver used by the scope resolver.
func (s *Store) Nodes() authz.NodeStore {
	return &nodeStore{db: s.db}
}

type principalStore struct{ db *sql.DB }

func (s *principalStore) Find(ctx context.Context, id string) (*authz.Principal, error) {
	row := s.db.QueryRowContext(ctx,
		`select account_type, coalesce(anchor_id, ''), status from principals where id=$1`, id)
	var (
		accountType string
		anchorID    string
		status      string
	)
	if err := row.Scan(&accountType, &anchorID, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authz.ErrNotFound
		}
		return nil, err
	}
	if status != account.StatusActive {
		return nil, authz.ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx,
		`select p.key from permissions p
		 join principal_permissions pp on pp.permission_id = p.id
		 where pp.principal_id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		perms = append(perms, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	principal := authz.NewPrincipal(id, authz.AccountType(accountType), anchorID, perms)
	return &principal, nil
}

type nodeStore struct{ db *sql.DB }

func (s *nodeStore) Find(ctx context.Context, id string) (*authz.Node, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, kind, coalesce(parent_id, ''), name from org_nodes where id=$1`, id)
	var node authz.Node
	if err := row.Scan(&node.ID, &node.Kind, &node.ParentID, &node.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authz.ErrNotFound
		}
		return nil, err
	}
	return &node, nil
}
