package httpapi

import (
	"net/http"
	"time"

	"unilink.org/internal/token"
)

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

const tokenTTL = 15 * time.Minute

func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := a.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		handleAccountError(w, r, err)
		return
	}

	signed, err := token.Generate(rec.ID, rec.AccountType, tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	expiresAt := time.Now().UTC().Add(tokenTTL)
	a.auditEvent(r, "auth.token.issued", map[string]any{
		"account_id":   rec.ID,
		"account_type": string(rec.AccountType),
		"expires_at":   expiresAt.Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     signed,
		ExpiresAt: expiresAt,
	})
}
