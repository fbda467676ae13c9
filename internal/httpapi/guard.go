package httpapi

import (
	"net/http"
	"time"

	"unilink.org/internal/audit"
	"unilink.org/internal/authz"
	"unilink.org/internal/obs"
	"unilink.org/internal/stream"
	"unilink.org/internal/token"
)

// authorize runs the permission check for the request and writes the refusal
// when it fails. Handlers call it before any service work; a false return
// means the response is already written.
//
// Protection is opt-in: an empty requiredPermission still resolves the
// principal but skips the permission and scope checks. Scope reason codes are
// collapsed into a generic forbidden body so callers cannot probe which
// foreign nodes exist; the precise reason goes to the audit log and metrics.
func (a *API) authorize(w http.ResponseWriter, r *http.Request, requiredPermission string, scope authz.ScopeRequest) bool {
	principalID, _ := token.PrincipalIDFromContext(r.Context())

	decision, err := a.evaluator.Authorize(r.Context(), principalID, requiredPermission, scope)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "authorization error")
		return false
	}

	obs.ObserveDecision(decision.Allowed, decision.Reason)
	if a.stream != nil {
		a.stream.Publish(stream.DecisionEvent{
			PrincipalID: principalID,
			Permission:  requiredPermission,
			Path:        r.URL.Path,
			Allowed:     decision.Allowed,
			Reason:      decision.Reason,
			Timestamp:   time.Now().UTC(),
		})
	}
	if decision.Allowed {
		return true
	}

	_ = audit.LogEvent(r.Context(), "authz.decision.deny", map[string]any{
		"permission": requiredPermission,
		"reason":     decision.Reason,
		"path":       r.URL.Path,
		"method":     r.Method,
	})

	switch decision.Reason {
	case authz.ReasonNoSuchPrincipal:
		w.Header().Set("WWW-Authenticate", `Bearer realm="unilink"`)
		writeError(w, r, http.StatusUnauthorized, "unknown principal")
	case authz.ReasonMissingPermission:
		writeError(w, r, http.StatusForbidden, "missing permission "+requiredPermission)
	default:
		writeError(w, r, http.StatusForbidden, "forbidden")
	}
	return false
}

func (a *API) auditEvent(r *http.Request, event string, fields map[string]any) {
	_ = audit.LogEvent(r.Context(), event, fields)
}

// scopeForNode places a node id into the scope field matching its kind.
func scopeForNode(kind authz.NodeKind, id string) authz.ScopeRequest {
	switch kind {
	case authz.KindUniversity:
		return authz.ScopeRequest{UniversityID: id}
	case authz.KindDepartment:
		return authz.ScopeRequest{DepartmentID: id}
	case authz.KindInstitution:
		return authz.ScopeRequest{InstitutionID: id}
	case authz.KindDivision:
		return authz.ScopeRequest{DivisionID: id}
	}
	return authz.ScopeRequest{}
}
