package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                              "/",
		"/metrics":                      "/metrics",
		"/v1/universities/univ-7":       "/v1/universities/:id",
		"/v1/universities/univ-7/departments": "/v1/universities/:id/departments",
		"/v1/accounts/p-42":             "/v1/accounts/:id",
		"/v1/accounts/p-42/grants":      "/v1/accounts/:id/grants",
		"/v1/divisions/div-5?limit=10":  "/v1/divisions/:id",
		"/v1/auth/token":                "/v1/auth/token",
		"/v1/universities":              "/v1/universities",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
