package policy

import (
	"testing"

	"spedermath/internal/auth"
)

func TestMatchPattern(t *testing.T) {
	cases := []struct {
		pattern, path string
		want          bool
	}{
		{"/public/**", "/public/qr-login", true},
		{"/public/**", "/public", true},
		{"/public/**", "/public/a/b/c", true},
		{"/public/**", "/publicity", false},
		{"/api/students/*/qr-token", "/api/students/42/qr-token", true},
		{"/api/students/*/qr-token", "/api/students/42/7/qr-token", false},
		{"/api/students/*/qr-token", "/api/students/qr-token", false},
		{"/api/lessons/**", "/api/lessons", true},
		{"/api/lessons/**", "/api/lessons/3/steps", true},
		{"/api/lesson-stats", "/api/lesson-stats", true},
		{"/api/lesson-stats", "/api/lesson-stats/1", false},
		{"/files/*.json", "/files/a.json", true},
		{"/files/*.json", "/files/a.txt", false},
		{"/**", "/anything/at/all", true},
		{"/**", "/", true},
		{"/a/**/z", "/a/z", true},
		{"/a/**/z", "/a/b/c/z", true},
		{"/a/**/z", "/a/b/c", false},
		{"/api/teachers/login", "/api/teachers/login/", true},
	}
	for _, tc := range cases {
		if got := MatchPattern(tc.pattern, tc.path); got != tc.want {
			t.Fatalf("MatchPattern(%q, %q) = %v, want %v", tc.pattern, tc.path, got, tc.want)
		}
	}
}

func TestDefaultTable(t *testing.T) {
	table := Default()
	public := []string{
		"/api/teachers/login",
		"/api/teachers/register",
		"/api/students/student-login",
		"/api/lessons",
		"/api/lessons/4",
		"/api/lesson-stats",
		"/api/students/12/qr-token",
		"/public/qr-exchange",
		"/public/qr-login",
		"/error",
		"/health",
		"/api/debug/echo-auth",
	}
	for _, p := range public {
		if !table.IsPublic(p) {
			t.Fatalf("expected %s to be public", p)
		}
	}

	areas := map[string]auth.Area{
		"/api/student-progress":          auth.AreaStudent,
		"/api/student-progress/me":       auth.AreaStudent,
		"/api/students":                  auth.AreaEither,
		"/api/students/me":               auth.AreaEither,
		"/api/students/9/reset-password": auth.AreaEither,
		"/api/teachers/me":               auth.AreaTeacher,
		"/api/attempts/me":               auth.AreaEither,
		"/api/unknown":                   auth.AreaNone,
	}
	for p, area := range areas {
		rule := table.Match(p)
		if rule.Access != Authenticated {
			t.Fatalf("expected %s to require authentication", p)
		}
		if rule.Area != area {
			t.Fatalf("expected %s in %s area, got %s", p, area, rule.Area)
		}
	}
}

func TestFirstRuleWins(t *testing.T) {
	table := NewTable(
		Rule{Pattern: "/api/students/student-login", Access: Public},
		Rule{Pattern: "/api/students/**", Access: Authenticated, Area: auth.AreaEither},
	)
	if !table.IsPublic("/api/students/student-login") {
		t.Fatalf("expected earlier public rule to win")
	}
	if table.IsPublic("/api/students/1") {
		t.Fatalf("expected later rule to apply")
	}
	if rule := NewTable().Match("/x"); rule.Access != Authenticated || rule.Area != auth.AreaNone {
		t.Fatalf("expected empty table to require authentication without a principal")
	}
}
