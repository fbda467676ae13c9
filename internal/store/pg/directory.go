package pg

import (
	"context"
	"database/sql"
	"errors"

	"unilink.org/internal/authz"
	"unilink.org/internal/directory"
	"unilink.org/internal/ids"
)

// Directory returns the mutable directory store.
func (s *Store) Directory() directory.Store {
	return &directoryStore{db: s.db}
}

type directoryStore struct{ db *sql.DB }

var _ directory.Store = (*directoryStore)(nil)

func (s *directoryStore) Create(ctx context.Context, node *authz.Node) error {
	if node.ID == "" {
		node.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into org_nodes(id, kind, parent_id, name) values($1,$2,nullif($3,''),$4)`,
		node.ID, node.Kind, node.ParentID, node.Name,
	)
	return err
}

func (s *directoryStore) Find(ctx context.Context, id string) (*authz.Node, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, kind, coalesce(parent_id, ''), name from org_nodes where id=$1`, id)
	var node authz.Node
	if err := row.Scan(&node.ID, &node.Kind, &node.ParentID, &node.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, directory.ErrNotFound
		}
		return nil, err
	}
	return &node, nil
}

func (s *directoryStore) ListByKind(ctx context.Context, kind authz.NodeKind) ([]*authz.Node, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, kind, coalesce(parent_id, ''), name from org_nodes where kind=$1 order by created_at`, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNodes(rows)
}

func (s *directoryStore) ListChildren(ctx context.Context, parentID string) ([]*authz.Node, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, kind, coalesce(parent_id, ''), name from org_nodes where parent_id=$1 order by created_at`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNodes(rows)
}

func (s *directoryStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from org_nodes where id=$1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return directory.ErrNotFound
	}
	return nil
}

func scanNodes(rows *sql.Rows) ([]*authz.Node, error) {
	var nodes []*authz.Node
	for rows.Next() {
		var node authz.Node
		if err := rows.Scan(&node.ID, &node.Kind, &node.ParentID, &node.Name); err != nil {
			return nil, err
		}
		nodes = append(nodes, &node)
	}
	return nodes, rows.Err()
}
