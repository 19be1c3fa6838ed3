package pipeline

import "testing"

func TestRewritePath(t *testing.T) {
	cases := []struct {
		path, prefix, want string
	}{
		{"/api/users", "", "/api/users"},
		{"/api/users", "/api", "/users"},
		{"/api", "/api", "/"},
		{"/apiextra", "/api", "/extra"}, // rewrite is a literal string strip, not boundary-aware
		{"/api/", "/api", "/"},
	}
	for _, c := range cases {
		if got := rewritePath(c.path, c.prefix); got != c.want {
			t.Fatalf("rewritePath(%q, %q) = %q, want %q", c.path, c.prefix, got, c.want)
		}
	}
}
