package account

import (
	"context"
	"errors"
	"testing"

	"unilink.org/internal/authz"
)

type stubStore struct {
	createFn         func(context.Context, *Record) error
	findFn           func(context.Context, string) (*Record, error)
	findByEmailFn    func(context.Context, string) (*Record, error)
	grantFn          func(context.Context, string, []string) error
	revokeFn         func(context.Context, string, []string) error
	grantsFn         func(context.Context, string) ([]string, error)
	permissionKeysFn func(context.Context) (map[string]struct{}, error)
}

func (s *stubStore) Create(ctx context.Context, rec *Record) error {
	if s.createFn != nil {
		return s.createFn(ctx, rec)
	}
	rec.ID = "generated"
	return nil
}

func (s *stubStore) Find(ctx context.Context, id string) (*Record, error) {
	if s.findFn != nil {
		return s.findFn(ctx, id)
	}
	return nil, ErrNotFound
}

func (s *stubStore) FindByEmail(ctx context.Context, email string) (*Record, error) {
	if s.findByEmailFn != nil {
		return s.findByEmailFn(ctx, email)
	}
	return nil, ErrNotFound
}

func (s *stubStore) SetStatus(ctx context.Context, id, status string) error { return nil }

func (s *stubStore) Grant(ctx context.Context, principalID string, tags []string) error {
	if s.grantFn != nil {
		return s.grantFn(ctx, principalID, tags)
	}
	return nil
}

func (s *stubStore) Revoke(ctx context.Context, principalID string, tags []string) error {
	if s.revokeFn != nil {
		return s.revokeFn(ctx, principalID, tags)
	}
	return nil
}

func (s *stubStore) Grants(ctx context.Context, principalID string) ([]string, error) {
	if s.grantsFn != nil {
		return s.grantsFn(ctx, principalID)
	}
	return nil, nil
}

func (s *stubStore) EnsurePermissions(ctx context.Context, tags []authz.PermissionTag) error {
	return nil
}

func (s *stubStore) PermissionKeys(ctx context.Context) (map[string]struct{}, error) {
	if s.permissionKeysFn != nil {
		return s.permissionKeysFn(ctx)
	}
	keys := make(map[string]struct{}, len(authz.BuiltinPermissions))
	for _, tag := range authz.BuiltinPermissions {
		keys[tag.Key] = struct{}{}
	}
	return keys, nil
}

func testNodes() authz.NodeStore {
	m := authz.NewMemory()
	m.PutNode(authz.Node{ID: "univ-7", Kind: authz.KindUniversity})
	m.PutNode(authz.Node{ID: "dept-42", Kind: authz.KindDepartment, ParentID: "univ-7"})
	return m.Nodes()
}

func newTestService(t *testing.T, store Store) *Service {
	t.Helper()
	svc, err := NewService(store, testNodes())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestCreateAccountStaffRequiresAnchor(t *testing.T) {
	svc := newTestService(t, &stubStore{})
	_, err := svc.CreateAccount(context.Background(), "staff@example.edu", "secret", authz.AccountDepartmentStaff, "")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestCreateAccountAnchorKindMustMatch(t *testing.T) {
	svc := newTestService(t, &stubStore{})
	// Department staff anchored at a university node.
	_, err := svc.CreateAccount(context.Background(), "staff@example.edu", "secret", authz.AccountDepartmentStaff, "univ-7")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestCreateAccountSuperAdminRejectsAnchor(t *testing.T) {
	svc := newTestService(t, &stubStore{})
	_, err := svc.CreateAccount(context.Background(), "root@example.org", "secret", authz.AccountSuperAdmin, "univ-7")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestCreateAccountHashesPassword(t *testing.T) {
	var captured Record
	store := &stubStore{
		createFn: func(_ context.Context, rec *Record) error {
			rec.ID = "p-new"
			captured = *rec
			return nil
		},
	}
	svc := newTestService(t, store)
	rec, err := svc.CreateAccount(context.Background(), "  Staff@Example.EDU ", "secret", authz.AccountDepartmentStaff, "dept-42")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if rec.ID != "p-new" {
		t.Fatalf("expected generated id, got %q", rec.ID)
	}
	if captured.Email != "staff@example.edu" {
		t.Fatalf("expected normalized email, got %q", captured.Email)
	}
	if captured.PasswordHash == "" || captured.PasswordHash == "secret" {
		t.Fatalf("password was not hashed")
	}
	if err := VerifyPassword(captured.PasswordHash, "secret"); err != nil {
		t.Fatalf("hash does not verify: %v", err)
	}
	if captured.Status != StatusActive {
		t.Fatalf("expected active status, got %q", captured.Status)
	}
}

func TestGrantDedupesAndChecksExistence(t *testing.T) {
	var granted []string
	store := &stubStore{
		findFn: func(_ context.Context, id string) (*Record, error) {
			if id != "p1" {
				return nil, ErrNotFound
			}
			return &Record{ID: "p1"}, nil
		},
		grantFn: func(_ context.Context, _ string, tags []string) error {
			granted = tags
			return nil
		},
	}
	svc := newTestService(t, store)

	err := svc.Grant(context.Background(), "p1", []string{"EDIT_RESEARCH_NEWS", " EDIT_RESEARCH_NEWS ", ""})
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if len(granted) != 1 || granted[0] != "EDIT_RESEARCH_NEWS" {
		t.Fatalf("expected deduplicated tags, got %v", granted)
	}

	if err := svc.Grant(context.Background(), "ghost", []string{"EDIT_RESEARCH_NEWS"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for unknown principal, got %v", err)
	}
}

func TestGrantRejectsUnknownTag(t *testing.T) {
	store := &stubStore{
		findFn: func(_ context.Context, id string) (*Record, error) {
			return &Record{ID: id}, nil
		},
		grantFn: func(_ context.Context, _ string, tags []string) error {
			t.Fatalf("store.Grant reached with tags %v", tags)
			return nil
		},
	}
	svc := newTestService(t, store)

	// One valid tag does not excuse the misspelled one; the call fails whole.
	err := svc.Grant(context.Background(), "p1", []string{"EDIT_RESEARCH_NEWS", "EDIT_RESERCH_NEWS"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for unknown tag, got %v", err)
	}
}

func TestAuthenticateFailuresAreUniform(t *testing.T) {
	hash, err := HashPassword("right-password")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	store := &stubStore{
		findByEmailFn: func(_ context.Context, email string) (*Record, error) {
			switch email {
			case "active@example.edu":
				return &Record{ID: "p1", Email: email, PasswordHash: hash, Status: StatusActive}, nil
			case "disabled@example.edu":
				return &Record{ID: "p2", Email: email, PasswordHash: hash, Status: StatusDisabled}, nil
			}
			return nil, ErrNotFound
		},
	}
	svc := newTestService(t, store)

	if _, err := svc.Authenticate(context.Background(), "active@example.edu", "right-password"); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	for _, tc := range []struct{ email, password string }{
		{"active@example.edu", "wrong"},
		{"disabled@example.edu", "right-password"},
		{"missing@example.edu", "right-password"},
	} {
		if _, err := svc.Authenticate(context.Background(), tc.email, tc.password); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected uniform unauthorized for %s, got %v", tc.email, err)
		}
	}
}
