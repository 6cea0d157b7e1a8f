// Package policy holds the single ordered route table that decides both
// whether a request is authenticated at all and whether it must carry a
// principal to proceed.
package policy

import (
	"path"
	"strings"

	"spedermath/internal/auth"
)

type Access int

const (
	Authenticated Access = iota
	Public
)

func (a Access) String() string {
	if a == Public {
		return "public"
	}
	return "authenticated"
}

type Rule struct {
	Pattern string
	Access  Access
	// Area selects which credential claim binds a principal. Ignored for
	// public rules.
	Area auth.Area
}

type Table struct {
	rules []Rule
}

func NewTable(rules ...Rule) *Table {
	return &Table{rules: append([]Rule(nil), rules...)}
}

// Match returns the first rule whose pattern matches p. Paths no rule
// matches require authentication and never bind a principal.
func (t *Table) Match(p string) Rule {
	for _, rule := range t.rules {
		if MatchPattern(rule.Pattern, p) {
			return rule
		}
	}
	return Rule{Pattern: "", Access: Authenticated, Area: auth.AreaNone}
}

func (t *Table) IsPublic(p string) bool {
	return t.Match(p).Access == Public
}

func (t *Table) Rules() []Rule {
	return append([]Rule(nil), t.rules...)
}

func Default() *Table {
	public := func(pattern string) Rule { return Rule{Pattern: pattern, Access: Public} }
	return NewTable(
		public("/api/teachers/login"),
		public("/api/teachers/register"),
		public("/api/students/student-login"),
		public("/api/lessons/**"),
		public("/api/lesson-stats"),
		public("/api/students/*/qr-token"),
		public("/public/**"),
		public("/error"),
		public("/health"),
		public("/metrics"),
		public("/api/debug/echo-auth"),
		Rule{Pattern: "/api/student-progress/**", Access: Authenticated, Area: auth.AreaStudent},
		Rule{Pattern: "/api/students/**", Access: Authenticated, Area: auth.AreaEither},
		Rule{Pattern: "/api/teachers/**", Access: Authenticated, Area: auth.AreaTeacher},
		Rule{Pattern: "/api/attempts/**", Access: Authenticated, Area: auth.AreaEither},
		Rule{Pattern: "/**", Access: Authenticated, Area: auth.AreaNone},
	)
}

// MatchPattern matches slash separated paths. "*" (and globs such as
// "*.json") stay within one segment, "**" spans zero or more segments.
func MatchPattern(pattern, p string) bool {
	return matchSegments(split(pattern), split(p))
}

func split(value string) []string {
	value = strings.Trim(value, "/")
	if value == "" {
		return nil
	}
	return strings.Split(value, "/")
}

func matchSegments(pattern, segments []string) bool {
	for len(pattern) > 0 {
		head := pattern[0]
		if head == "**" {
			rest := pattern[1:]
			for i := 0; i <= len(segments); i++ {
				if matchSegments(rest, segments[i:]) {
					return true
				}
			}
			return false
		}
		if len(segments) == 0 {
			return false
		}
		ok, err := path.Match(head, segments[0])
		if err != nil || !ok {
			return false
		}
		pattern, segments = pattern[1:], segments[1:]
	}
	return len(segments) == 0
}
