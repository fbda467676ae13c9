package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"unilink.org/internal/authz"
)

var (
	ErrInvalidInput = errors.New("account: invalid input")
	ErrNotFound     = errors.New("account: not found")
	ErrConflict     = errors.New("account: already exists")
	ErrUnauthorized = errors.New("account: unauthorized")
)

const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// Record is a stored principal account. The authz core sees only the
// projection {id, account type, anchor, grants}; credentials stay here.
type Record struct {
	ID           string            `json:"id"`
	Email        string            `json:"email"`
	PasswordHash string            `json:"-"`
	AccountType  authz.AccountType `json:"account_type"`
	AnchorID     string            `json:"anchor_id,omitempty"`
	Status       string            `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Store persists accounts and permission grants.
type Store interface {
	Create(ctx context.Context, rec *Record) error
	Find(ctx context.Context, id string) (*Record, error)
	FindByEmail(ctx context.Context, email string) (*Record, error)
	SetStatus(ctx context.Context, id, status string) error
	Grant(ctx context.Context, principalID string, tags []string) error
	Revoke(ctx context.Context, principalID string, tags []string) error
	Grants(ctx context.Context, principalID string) ([]string, error)
	EnsurePermissions(ctx context.Context, tags []authz.PermissionTag) error
	PermissionKeys(ctx context.Context) (map[string]struct{}, error)
}

// Service manages principal accounts and their permission grants. Grant and
// revoke are the only write paths into a principal's permission set; the
// evaluator reads the result per request and never mutates it.
type Service struct {
	store Store
	nodes authz.NodeStore
}

// NewService constructs the account service. The node store is used to
// validate organizational anchors at onboarding time.
func NewService(store Store, nodes authz.NodeStore) (*Service, error) {
	if store == nil {
		return nil, errors.New("account store is required")
	}
	if nodes == nil {
		return nil, errors.New("node store is required")
	}
	return &Service{store: store, nodes: nodes}, nil
}

// EnsureBuiltins seeds the permission catalog.
func (s *Service) EnsureBuiltins(ctx context.Context) error {
	return s.store.EnsurePermissions(ctx, authz.BuiltinPermissions)
}

// anchorKinds maps account types to the node kind their anchor must have.
// Types absent from the map take no anchor; mentor and student-ambassador may
// anchor anywhere or nowhere.
var anchorKinds = map[authz.AccountType]authz.NodeKind{
	authz.AccountUniversity:       authz.KindUniversity,
	authz.AccountUniversityStaff:  authz.KindUniversity,
	authz.AccountDepartmentStaff:  authz.KindDepartment,
	authz.AccountInstitution:      authz.KindInstitution,
	authz.AccountInstitutionStaff: authz.KindInstitution,
	authz.AccountDivisionStaff:    authz.KindDivision,
}

func anchorForbidden(t authz.AccountType) bool {
	return t == authz.AccountSuperAdmin || t == authz.AccountStudent
}

// CreateAccount validates and persists a new principal.
func (s *Service) CreateAccount(ctx context.Context, email, password string, accountType authz.AccountType, anchorID string) (Record, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return Record{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	password = strings.TrimSpace(password)
	if password == "" {
		return Record{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	if !accountType.Valid() {
		return Record{}, fmt.Errorf("%w: unsupported account type %q", ErrInvalidInput, accountType)
	}
	anchorID = strings.TrimSpace(anchorID)

	wantKind, needsAnchor := anchorKinds[accountType]
	switch {
	case anchorForbidden(accountType):
		if anchorID != "" {
			return Record{}, fmt.Errorf("%w: %s accounts take no organizational anchor", ErrInvalidInput, accountType)
		}
	case needsAnchor:
		if anchorID == "" {
			return Record{}, fmt.Errorf("%w: %s accounts require a %s anchor", ErrInvalidInput, accountType, wantKind)
		}
		node, err := s.nodes.Find(ctx, anchorID)
		if err != nil {
			if errors.Is(err, authz.ErrNotFound) {
				return Record{}, fmt.Errorf("%w: anchor %s does not exist", ErrInvalidInput, anchorID)
			}
			return Record{}, err
		}
		if node.Kind != wantKind {
			return Record{}, fmt.Errorf("%w: %s accounts anchor at a %s, not a %s", ErrInvalidInput, accountType, wantKind, node.Kind)
		}
	default:
		if anchorID != "" {
			if _, err := s.nodes.Find(ctx, anchorID); err != nil {
				if errors.Is(err, authz.ErrNotFound) {
					return Record{}, fmt.Errorf("%w: anchor %s does not exist", ErrInvalidInput, anchorID)
				}
				return Record{}, err
			}
		}
	}

	hash, err := HashPassword(password)
	if err != nil {
		return Record{}, err
	}
	rec := Record{
		Email:        email,
		PasswordHash: hash,
		AccountType:  accountType,
		AnchorID:     anchorID,
		Status:       StatusActive,
	}
	if err := s.store.Create(ctx, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// GetAccount fetches an account by id.
func (s *Service) GetAccount(ctx context.Context, id string) (Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Record{}, fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}
	rec, err := s.store.Find(ctx, id)
	if err != nil {
		return Record{}, err
	}
	return *rec, nil
}

// SetStatus enables or disables an account.
func (s *Service) SetStatus(ctx context.Context, id, status string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}
	status = strings.TrimSpace(strings.ToLower(status))
	if status != StatusActive && status != StatusDisabled {
		return fmt.Errorf("%w: unsupported status %q", ErrInvalidInput, status)
	}
	return s.store.SetStatus(ctx, id, status)
}

// Grant adds permission tags to a principal. Every tag must exist in the
// permission catalog; an unknown tag fails the whole call rather than being
// dropped, so a typo in a grant request cannot pass silently.
func (s *Service) Grant(ctx context.Context, principalID string, tags []string) error {
	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		return fmt.Errorf("%w: principal id is required", ErrInvalidInput)
	}
	tags = dedupeTags(tags)
	if len(tags) == 0 {
		return fmt.Errorf("%w: at least one permission tag is required", ErrInvalidInput)
	}
	if _, err := s.store.Find(ctx, principalID); err != nil {
		return err
	}
	known, err := s.store.PermissionKeys(ctx)
	if err != nil {
		return err
	}
	for _, tag := range tags {
		if _, ok := known[tag]; !ok {
			return fmt.Errorf("%w: unknown permission tag %q", ErrInvalidInput, tag)
		}
	}
	return s.store.Grant(ctx, principalID, tags)
}

// Revoke removes permission tags from a principal. Revoking a tag that was
// never granted is a no-op.
func (s *Service) Revoke(ctx context.Context, principalID string, tags []string) error {
	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		return fmt.Errorf("%w: principal id is required", ErrInvalidInput)
	}
	tags = dedupeTags(tags)
	if len(tags) == 0 {
		return fmt.Errorf("%w: at least one permission tag is required", ErrInvalidInput)
	}
	return s.store.Revoke(ctx, principalID, tags)
}

// Grants lists the permission tags granted to a principal.
func (s *Service) Grants(ctx context.Context, principalID string) ([]string, error) {
	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		return nil, fmt.Errorf("%w: principal id is required", ErrInvalidInput)
	}
	return s.store.Grants(ctx, principalID)
}

// Authenticate verifies credentials and returns the account. Disabled
// accounts and unknown emails both come back ErrUnauthorized so callers
// cannot probe which emails exist.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Record, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return Record{}, ErrUnauthorized
	}
	rec, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Record{}, ErrUnauthorized
		}
		return Record{}, err
	}
	if rec.Status != StatusActive {
		return Record{}, ErrUnauthorized
	}
	if err := VerifyPassword(rec.PasswordHash, password); err != nil {
		return Record{}, ErrUnauthorized
	}
	return *rec, nil
}

func dedupeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	var out []string
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
