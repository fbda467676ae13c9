package httpapi

import (
	"net/http"
	"testing"
)

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{name: "valid", header: "Bearer abc.def.ghi", want: "abc.def.ghi"},
		{name: "lowercase scheme", header: "bearer abc", want: "abc"},
		{name: "missing", header: "", wantErr: true},
		{name: "wrong scheme", header: "Basic dXNlcjpwYXNz", wantErr: true},
		{name: "empty token", header: "Bearer   ", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := extractBearerToken(tc.header)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("token = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestInvalidTokenRejected(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/universities", map[string]any{"name": "X"}, map[string]string{
		"Authorization": "Bearer not-a-jwt",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestPublicPathsSkipAuthn(t *testing.T) {
	for _, path := range []string{"/v1/auth/token", "/metrics", "/healthz", "/readyz", "/v1/info", "/"} {
		if !isPublicPath(path) {
			t.Fatalf("expected %s to be public", path)
		}
	}
	for _, path := range []string{"/v1/universities", "/v1/accounts", "/v1/authz/stream"} {
		if isPublicPath(path) {
			t.Fatalf("expected %s to require authentication", path)
		}
	}
}
