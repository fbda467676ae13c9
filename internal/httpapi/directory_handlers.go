package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"unilink.org/internal/authz"
	"unilink.org/internal/directory"
)

type createNodeRequest struct {
	Name     string `json:"name"`
	ParentID string `json:"parent_id"`
}

func directoryPathSegment(kind authz.NodeKind) string {
	switch kind {
	case authz.KindUniversity:
		return "universities"
	case authz.KindDepartment:
		return "departments"
	case authz.KindInstitution:
		return "institutions"
	case authz.KindDivision:
		return "divisions"
	}
	return ""
}

func (a *API) handleNodeCollection(w http.ResponseWriter, r *http.Request, kind authz.NodeKind) {
	switch r.Method {
	case http.MethodPost:
		a.createNode(w, r, kind)
	case http.MethodGet:
		a.listNodes(w, r, kind)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleNodeResource(w http.ResponseWriter, r *http.Request, kind authz.NodeKind) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/"+directoryPathSegment(kind)+"/")
	path = strings.Trim(path, "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			a.getNode(w, r, kind, parts[0])
		case http.MethodDelete:
			a.deleteNode(w, r, kind, parts[0])
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
		}
	case len(parts) == 2 && parts[1] == "children":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.listChildren(w, r, parts[0])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) createNode(w http.ResponseWriter, r *http.Request, kind authz.NodeKind) {
	var req createNodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	// Anchored staff may only create nodes inside their own subtree: nested
	// kinds scope to the named parent, and new hierarchy roots sit above
	// every subtree, so only anchor-less principals may mint them.
	scope := authz.ScopeRequest{Platform: true}
	if parentKind := kind.ParentKind(); parentKind != "" {
		scope = scopeForNode(parentKind, strings.TrimSpace(req.ParentID))
	}
	if !a.authorize(w, r, authz.PermManageDirectory, scope) {
		return
	}

	node, err := a.directory.CreateNode(r.Context(), kind, req.Name, req.ParentID)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}

	a.auditEvent(r, "directory.node.create", map[string]any{
		"node_id": node.ID,
		"kind":    string(node.Kind),
		"name":    node.Name,
	})
	w.Header().Set("Location", "/v1/"+directoryPathSegment(kind)+"/"+node.ID)
	writeJSON(w, http.StatusCreated, node)
}

func (a *API) listNodes(w http.ResponseWriter, r *http.Request, kind authz.NodeKind) {
	if !a.authorize(w, r, "", authz.ScopeRequest{}) {
		return
	}
	nodes, err := a.directory.ListNodes(r.Context(), kind)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": nodes})
}

func (a *API) getNode(w http.ResponseWriter, r *http.Request, kind authz.NodeKind, id string) {
	if !a.authorize(w, r, "", authz.ScopeRequest{}) {
		return
	}
	node, err := a.directory.GetNode(r.Context(), id)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	if node.Kind != kind {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (a *API) listChildren(w http.ResponseWriter, r *http.Request, parentID string) {
	if !a.authorize(w, r, "", authz.ScopeRequest{}) {
		return
	}
	nodes, err := a.directory.ListChildren(r.Context(), parentID)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": nodes})
}

func (a *API) deleteNode(w http.ResponseWriter, r *http.Request, kind authz.NodeKind, id string) {
	if !a.authorize(w, r, authz.PermManageDirectory, scopeForNode(kind, id)) {
		return
	}
	if err := a.directory.DeleteNode(r.Context(), id); err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	a.auditEvent(r, "directory.node.delete", map[string]any{
		"node_id": id,
		"kind":    string(kind),
	})
	w.WriteHeader(http.StatusNoContent)
}

func handleDirectoryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, directory.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, directory.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, directory.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "directory operation failed")
	}
}
