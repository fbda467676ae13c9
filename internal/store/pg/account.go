package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"unilink.org/internal/account"
	"unilink.org/internal/authz"
	"unilink.org/internal/ids"
)

// Accounts returns the mutable account and grant store.
func (s *Store) Accounts() account.Store {
	return &accountStore{db: s.db}
}

type accountStore struct{ db *sql.DB }

var _ account.Store = (*accountStore)(nil)

const uniqueViolation = "23505"

func (s *accountStore) Create(ctx context.Context, rec *account.Record) error {
	if rec.ID == "" {
		rec.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into principals(id, email, password_hash, account_type, anchor_id, status)
		 values($1,$2,$3,$4,nullif($5,''),$6)`,
		rec.ID, rec.Email, rec.PasswordHash, rec.AccountType, rec.AnchorID, rec.Status,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return account.ErrConflict
		}
		return err
	}
	return nil
}

func (s *accountStore) Find(ctx context.Context, id string) (*account.Record, error) {
	return s.findBy(ctx, `where id=$1`, id)
}

func (s *accountStore) FindByEmail(ctx context.Context, email string) (*account.Record, error) {
	return s.findBy(ctx, `where email=$1`, email)
}

func (s *accountStore) findBy(ctx context.Context, clause, arg string) (*account.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, email, password_hash, account_type, coalesce(anchor_id, ''), status, created_at, updated_at
		 from principals `+clause, arg)
	var rec account.Record
	if err := row.Scan(&rec.ID, &rec.Email, &rec.PasswordHash, &rec.AccountType,
		&rec.AnchorID, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, account.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (s *accountStore) SetStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx,
		`update principals set status=$2, updated_at=now() where id=$1`, id, status)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return account.ErrNotFound
	}
	return nil
}

func (s *accountStore) Grant(ctx context.Context, principalID string, tags []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, tag := range tags {
		if _, err := tx.ExecContext(ctx,
			`insert into principal_permissions(principal_id, permission_id)
			 select $1, id from permissions where key=$2
			 on conflict do nothing`, principalID, tag); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *accountStore) Revoke(ctx context.Context, principalID string, tags []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, tag := range tags {
		if _, err := tx.ExecContext(ctx,
			`delete from principal_permissions pp
			 using permissions p
			 where pp.permission_id = p.id and pp.principal_id = $1 and p.key = $2`,
			principalID, tag); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *accountStore) Grants(ctx context.Context, principalID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`select p.key from permissions p
		 join principal_permissions pp on pp.permission_id = p.id
		 where pp.principal_id = $1 order by p.key`, principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s *accountStore) PermissionKeys(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `select key from permissions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys[key] = struct{}{}
	}
	return keys, rows.Err()
}

func (s *accountStore) EnsurePermissions(ctx context.Context, tags []authz.PermissionTag) error {
	for _, tag := range tags {
		if _, err := s.db.ExecContext(ctx,
			`insert into permissions(id, key, description) values($1,$2,$3)
			 on conflict (key) do nothing`,
			ids.New(), tag.Key, tag.Description); err != nil {
			return err
		}
	}
	return nil
}
