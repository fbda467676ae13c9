package authz

import "strings"

// AccountType is the top-level role of a principal. The set is closed: the
// hierarchy shape is structural and changes rarely, unlike permission tags.
type AccountType string

const (
	AccountSuperAdmin        AccountType = "super-admin"
	AccountUniversity        AccountType = "university"
	AccountUniversityStaff   AccountType = "university-staff"
	AccountDepartmentStaff   AccountType = "department-staff"
	AccountInstitution       AccountType = "institution"
	AccountInstitutionStaff  AccountType = "institution-staff"
	AccountDivisionStaff     AccountType = "division-staff"
	AccountMentor            AccountType = "mentor"
	AccountStudentAmbassador AccountType = "student-ambassador"
	AccountStudent           AccountType = "student"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountSuperAdmin, AccountUniversity, AccountUniversityStaff,
		AccountDepartmentStaff, AccountInstitution, AccountInstitutionStaff,
		AccountDivisionStaff, AccountMentor, AccountStudentAmbassador,
		AccountStudent:
		return true
	}
	return false
}

// NodeKind identifies the level of an organizational node. Departments nest
// under universities, divisions under institutions; the two hierarchies are
// parallel and never cross-linked.
type NodeKind string

const (
	KindUniversity  NodeKind = "university"
	KindDepartment  NodeKind = "department"
	KindInstitution NodeKind = "institution"
	KindDivision    NodeKind = "division"
)

// Valid reports whether k is a known node kind.
func (k NodeKind) Valid() bool {
	switch k {
	case KindUniversity, KindDepartment, KindInstitution, KindDivision:
		return true
	}
	return false
}

// Root reports whether nodes of this kind sit at the top of their hierarchy.
func (k NodeKind) Root() bool {
	return k == KindUniversity || k == KindInstitution
}

// ParentKind returns the kind a parent of k must have. Empty for roots.
func (k NodeKind) ParentKind() NodeKind {
	switch k {
	case KindDepartment:
		return KindUniversity
	case KindDivision:
		return KindInstitution
	}
	return ""
}

// Node is a unit in the organizational tree.
type Node struct {
	ID       string   `json:"id"`
	Kind     NodeKind `json:"kind"`
	ParentID string   `json:"parent_id,omitempty"`
	Name     string   `json:"name,omitempty"`
}

// Principal is an authenticated actor with its resolved grants. AnchorID is
// empty for platform-wide and individual-only roles.
type Principal struct {
	ID          string
	AccountType AccountType
	AnchorID    string
	Permissions map[string]struct{}
}

// NewPrincipal constructs a principal with the permission set preloaded.
func NewPrincipal(id string, accountType AccountType, anchorID string, perms []string) Principal {
	set := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		set[p] = struct{}{}
	}
	return Principal{ID: id, AccountType: accountType, AnchorID: anchorID, Permissions: set}
}

// HasPermission reports whether the tag was explicitly granted.
func (p Principal) HasPermission(tag string) bool {
	_, ok := p.Permissions[tag]
	return ok
}

// ScopeRequest names the hierarchy location a request targets. Fields are set
// explicitly by the transport adapter per endpoint; the resolver never guesses
// parameter names. A more specific field narrows the target: when both
// UniversityID and DepartmentID are present the department is the target and
// the university is a consistency constraint (likewise institution/division).
type ScopeRequest struct {
	UniversityID  string
	DepartmentID  string
	InstitutionID string
	DivisionID    string

	// Platform marks operations above every organizational subtree, such as
	// creating a new hierarchy root. Anchored principals are always outside
	// it; only anchor-less principals pass. Combining it with node fields is
	// inconsistent.
	Platform bool
}

// Empty reports whether the request names no location at all.
func (s ScopeRequest) Empty() bool {
	return !s.Platform &&
		s.UniversityID == "" && s.DepartmentID == "" && s.InstitutionID == "" && s.DivisionID == ""
}

// Deny reason codes. MissingPermission is safe to surface to the caller;
// the scope-related reasons must map to a generic forbidden response so the
// existence of out-of-scope nodes is not leaked across tenants.
const (
	ReasonNoSuchPrincipal   = "no-such-principal"
	ReasonMissingPermission = "missing-permission"
	ReasonOutOfScope        = "out-of-scope"
	ReasonUnknownNode       = "unknown-node"
	ReasonInconsistentScope = "inconsistent-scope"
)

// Decision is the result of an authorization check. It is ephemeral and never
// persisted; Reason is set only on deny.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Allow is the positive decision.
func Allow() Decision { return Decision{Allowed: true} }

// Deny produces a negative decision carrying a reason code.
func Deny(reason string) Decision { return Decision{Allowed: false, Reason: reason} }
