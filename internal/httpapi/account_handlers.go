package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"unilink.org/internal/account"
	"unilink.org/internal/authz"
	"unilink.org/internal/directory"
)

type createAccountRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	AccountType string `json:"account_type"`
	AnchorID    string `json:"anchor_id"`
}

type setStatusRequest struct {
	Status string `json:"status"`
}

type grantsRequest struct {
	Permissions []string `json:"permissions"`
}

func (a *API) handleAccountsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createAccount(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost)
	}
}

func (a *API) handleAccountResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/accounts/")
	path = strings.Trim(path, "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.getAccount(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "status":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		a.setAccountStatus(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "grants":
		a.handleGrants(w, r, parts[0])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	// Onboarding into a subtree requires authority over that subtree.
	scope := authz.ScopeRequest{}
	if anchorID := strings.TrimSpace(req.AnchorID); anchorID != "" {
		node, err := a.directory.GetNode(r.Context(), anchorID)
		if err != nil {
			if errors.Is(err, directory.ErrNotFound) {
				writeError(w, r, http.StatusBadRequest, "anchor node not found")
				return
			}
			handleDirectoryError(w, r, err)
			return
		}
		scope = scopeForNode(node.Kind, node.ID)
	}
	if !a.authorize(w, r, authz.PermManageAccounts, scope) {
		return
	}

	rec, err := a.accounts.CreateAccount(r.Context(), req.Email, req.Password, authz.AccountType(strings.TrimSpace(req.AccountType)), req.AnchorID)
	if err != nil {
		handleAccountError(w, r, err)
		return
	}

	a.auditEvent(r, "account.create", map[string]any{
		"account_id":   rec.ID,
		"account_type": string(rec.AccountType),
		"anchor_id":    rec.AnchorID,
	})
	w.Header().Set("Location", "/v1/accounts/"+rec.ID)
	writeJSON(w, http.StatusCreated, rec)
}

func (a *API) getAccount(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := a.accounts.GetAccount(r.Context(), id)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			if !a.authorize(w, r, authz.PermManageAccounts, authz.ScopeRequest{}) {
				return
			}
			writeError(w, r, http.StatusNotFound, err.Error())
			return
		}
		handleAccountError(w, r, err)
		return
	}
	scope, err := a.scopeForAnchor(r, rec.AnchorID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "account operation failed")
		return
	}
	if !a.authorize(w, r, authz.PermManageAccounts, scope) {
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) setAccountStatus(w http.ResponseWriter, r *http.Request, id string) {
	var req setStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if !a.authorizeAccountTarget(w, r, id, authz.PermManageAccounts) {
		return
	}
	if err := a.accounts.SetStatus(r.Context(), id, req.Status); err != nil {
		handleAccountError(w, r, err)
		return
	}
	a.auditEvent(r, "account.status.update", map[string]any{
		"account_id": id,
		"status":     req.Status,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleGrants(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		if !a.authorizeAccountTarget(w, r, id, authz.PermManageGrants) {
			return
		}
		tags, err := a.accounts.Grants(r.Context(), id)
		if err != nil {
			handleAccountError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"permissions": tags})
	case http.MethodPost:
		var req grantsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if !a.authorizeAccountTarget(w, r, id, authz.PermManageGrants) {
			return
		}
		if err := a.accounts.Grant(r.Context(), id, req.Permissions); err != nil {
			handleAccountError(w, r, err)
			return
		}
		a.auditEvent(r, "account.grants.add", map[string]any{
			"account_id":  id,
			"permissions": req.Permissions,
		})
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		var req grantsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if !a.authorizeAccountTarget(w, r, id, authz.PermManageGrants) {
			return
		}
		if err := a.accounts.Revoke(r.Context(), id, req.Permissions); err != nil {
			handleAccountError(w, r, err)
			return
		}
		a.auditEvent(r, "account.grants.remove", map[string]any{
			"account_id":  id,
			"permissions": req.Permissions,
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}

// authorizeAccountTarget scopes the check to the target account's anchor, so
// anchored admins can only manage accounts inside their own subtree. A
// missing target is reported only after the caller passes an unscoped check.
func (a *API) authorizeAccountTarget(w http.ResponseWriter, r *http.Request, id, perm string) bool {
	rec, err := a.accounts.GetAccount(r.Context(), id)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			if !a.authorize(w, r, perm, authz.ScopeRequest{}) {
				return false
			}
			writeError(w, r, http.StatusNotFound, err.Error())
			return false
		}
		handleAccountError(w, r, err)
		return false
	}
	scope, err := a.scopeForAnchor(r, rec.AnchorID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "account operation failed")
		return false
	}
	return a.authorize(w, r, perm, scope)
}

func (a *API) scopeForAnchor(r *http.Request, anchorID string) (authz.ScopeRequest, error) {
	if anchorID == "" {
		return authz.ScopeRequest{}, nil
	}
	node, err := a.directory.GetNode(r.Context(), anchorID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			// Dangling anchor: leave the scope naming nothing resolvable so
			// the evaluator fails closed for anchored callers.
			return authz.ScopeRequest{UniversityID: anchorID}, nil
		}
		return authz.ScopeRequest{}, err
	}
	return scopeForNode(node.Kind, node.ID), nil
}

func handleAccountError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, account.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, account.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, account.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, account.ErrUnauthorized):
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
	default:
		writeError(w, r, http.StatusInternalServerError, "account operation failed")
	}
}
