package authz

import (
	"context"
	"errors"
	"testing"
)

func fixtureStore() *Memory {
	m := NewMemory()
	m.PutNode(Node{ID: "univ-7", Kind: KindUniversity})
	m.PutNode(Node{ID: "univ-8", Kind: KindUniversity})
	m.PutNode(Node{ID: "dept-42", Kind: KindDepartment, ParentID: "univ-7"})
	m.PutNode(Node{ID: "dept-99", Kind: KindDepartment, ParentID: "univ-7"})
	m.PutNode(Node{ID: "inst-1", Kind: KindInstitution})
	m.PutNode(Node{ID: "div-5", Kind: KindDivision, ParentID: "inst-1"})

	m.PutPrincipal(NewPrincipal("p1", AccountDepartmentStaff, "dept-42", []string{PermEditResearchNews}))
	m.PutPrincipal(NewPrincipal("p2", AccountSuperAdmin, "", []string{PermTeamManagementAdmin}))
	m.PutPrincipal(NewPrincipal("p3", AccountUniversityStaff, "univ-7", []string{PermAddOpportunity}))
	return m
}

func newTestEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	m := fixtureStore()
	eval, err := NewEvaluator(m.Principals(), m.Nodes())
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	return eval
}

func TestAuthorizeUnknownPrincipalDenies(t *testing.T) {
	eval := newTestEvaluator(t)
	for _, perm := range []string{"", PermEditResearchNews} {
		dec, err := eval.Authorize(context.Background(), "ghost", perm, ScopeRequest{DepartmentID: "dept-42"})
		if err != nil {
			t.Fatalf("Authorize: %v", err)
		}
		if dec.Allowed || dec.Reason != ReasonNoSuchPrincipal {
			t.Fatalf("expected no-such-principal deny, got %+v", dec)
		}
	}
}

func TestAuthorizeOptInBypass(t *testing.T) {
	eval := newTestEvaluator(t)
	// No declared requirement allows even a principal with unrelated grants
	// and an out-of-scope target.
	dec, err := eval.Authorize(context.Background(), "p1", "", ScopeRequest{UniversityID: "univ-8"})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if !dec.Allowed {
		t.Fatalf("expected allow, got %+v", dec)
	}
}

func TestAuthorizeAnchorContainment(t *testing.T) {
	eval := newTestEvaluator(t)
	cases := []struct {
		name   string
		scope  ScopeRequest
		allow  bool
		reason string
	}{
		{"own department", ScopeRequest{DepartmentID: "dept-42"}, true, ""},
		{"sibling department", ScopeRequest{DepartmentID: "dept-99"}, false, ReasonOutOfScope},
		{"parent university", ScopeRequest{UniversityID: "univ-7"}, false, ReasonOutOfScope},
		{"other university", ScopeRequest{UniversityID: "univ-8"}, false, ReasonOutOfScope},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dec, err := eval.Authorize(context.Background(), "p1", PermEditResearchNews, tc.scope)
			if err != nil {
				t.Fatalf("Authorize: %v", err)
			}
			if dec.Allowed != tc.allow {
				t.Fatalf("expected allowed=%v, got %+v", tc.allow, dec)
			}
			if !tc.allow && dec.Reason != tc.reason {
				t.Fatalf("expected reason %s, got %s", tc.reason, dec.Reason)
			}
		})
	}
}

func TestAuthorizeUniversityStaffCoversSubtree(t *testing.T) {
	eval := newTestEvaluator(t)
	for _, scope := range []ScopeRequest{
		{UniversityID: "univ-7"},
		{DepartmentID: "dept-42"},
		{UniversityID: "univ-7", DepartmentID: "dept-99"},
	} {
		dec, err := eval.Authorize(context.Background(), "p3", PermAddOpportunity, scope)
		if err != nil {
			t.Fatalf("Authorize: %v", err)
		}
		if !dec.Allowed {
			t.Fatalf("expected allow for %+v, got %+v", scope, dec)
		}
	}
}

func TestAuthorizeScopeBlindRole(t *testing.T) {
	eval := newTestEvaluator(t)
	dec, err := eval.Authorize(context.Background(), "p2", PermTeamManagementAdmin, ScopeRequest{UniversityID: "univ-7"})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if !dec.Allowed {
		t.Fatalf("expected allow, got %+v", dec)
	}
}

func TestAuthorizeScopeBlindStillFailsClosedOnUnknownNode(t *testing.T) {
	// Scope-blindness waives only anchor containment; existence and
	// consistency checks hold for every principal.
	eval := newTestEvaluator(t)
	dec, err := eval.Authorize(context.Background(), "p2", PermTeamManagementAdmin, ScopeRequest{UniversityID: "univ-404"})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if dec.Allowed || dec.Reason != ReasonUnknownNode {
		t.Fatalf("expected unknown-node deny, got %+v", dec)
	}
}

func TestAuthorizeMissingPermissionDeniesInScope(t *testing.T) {
	eval := newTestEvaluator(t)
	dec, err := eval.Authorize(context.Background(), "p1", PermDeleteResearchNews, ScopeRequest{DepartmentID: "dept-42"})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if dec.Allowed || dec.Reason != ReasonMissingPermission {
		t.Fatalf("expected missing-permission deny, got %+v", dec)
	}
}

func TestAuthorizeInconsistentNestingDenies(t *testing.T) {
	m := fixtureStore()
	// dept-42's real parent is univ-7; p3 is anchored at univ-7, but the
	// request claims the department sits under univ-8.
	m.PutPrincipal(NewPrincipal("p3", AccountUniversityStaff, "univ-7", []string{PermAddOpportunity}))
	eval, err := NewEvaluator(m.Principals(), m.Nodes())
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	dec, err := eval.Authorize(context.Background(), "p3", PermAddOpportunity, ScopeRequest{UniversityID: "univ-8", DepartmentID: "dept-42"})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if dec.Allowed || dec.Reason != ReasonInconsistentScope {
		t.Fatalf("expected inconsistent-scope deny, got %+v", dec)
	}
}

func TestAuthorizeUnknownNodeDenies(t *testing.T) {
	eval := newTestEvaluator(t)
	dec, err := eval.Authorize(context.Background(), "p1", PermEditResearchNews, ScopeRequest{DepartmentID: "dept-404"})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if dec.Allowed || dec.Reason != ReasonUnknownNode {
		t.Fatalf("expected unknown-node deny, got %+v", dec)
	}
}

func TestAuthorizeIdempotent(t *testing.T) {
	eval := newTestEvaluator(t)
	var first Decision
	for i := 0; i < 5; i++ {
		dec, err := eval.Authorize(context.Background(), "p1", PermEditResearchNews, ScopeRequest{DepartmentID: "dept-42"})
		if err != nil {
			t.Fatalf("Authorize: %v", err)
		}
		if i == 0 {
			first = dec
			continue
		}
		if dec != first {
			t.Fatalf("decision changed between identical calls: %+v vs %+v", first, dec)
		}
	}
}

type faultyPrincipalStore struct{ err error }

func (s faultyPrincipalStore) Find(ctx context.Context, id string) (*Principal, error) {
	return nil, s.err
}

func TestAuthorizeStoreFaultPropagates(t *testing.T) {
	m := fixtureStore()
	fault := errors.New("connection reset")
	eval, err := NewEvaluator(faultyPrincipalStore{err: fault}, m.Nodes())
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	dec, err := eval.Authorize(context.Background(), "p1", PermEditResearchNews, ScopeRequest{})
	if err == nil {
		t.Fatalf("expected fault to propagate, got %+v", dec)
	}
	if !errors.Is(err, fault) {
		t.Fatalf("expected wrapped fault, got %v", err)
	}
	if dec.Allowed {
		t.Fatalf("fault must never come with an allow decision")
	}
}

func TestAuthorizeRevocationTakesEffect(t *testing.T) {
	m := fixtureStore()
	eval, err := NewEvaluator(m.Principals(), m.Nodes())
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	dec, err := eval.Authorize(context.Background(), "p1", PermEditResearchNews, ScopeRequest{DepartmentID: "dept-42"})
	if err != nil || !dec.Allowed {
		t.Fatalf("expected allow before revocation, got %+v err=%v", dec, err)
	}
	m.PutPrincipal(NewPrincipal("p1", AccountDepartmentStaff, "dept-42", nil))
	dec, err = eval.Authorize(context.Background(), "p1", PermEditResearchNews, ScopeRequest{DepartmentID: "dept-42"})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if dec.Allowed || dec.Reason != ReasonMissingPermission {
		t.Fatalf("expected missing-permission after revocation, got %+v", dec)
	}
}
