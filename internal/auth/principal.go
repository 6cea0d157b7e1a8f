package auth

import (
	"context"
	"strings"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindTeacher
	KindStudent
)

func (k Kind) String() string {
	switch k {
	case KindTeacher:
		return "TEACHER"
	case KindStudent:
		return "STUDENT"
	default:
		return "UNKNOWN"
	}
}

func ParseKind(value string) Kind {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "TEACHER":
		return KindTeacher
	case "STUDENT":
		return KindStudent
	default:
		return KindUnknown
	}
}

// Principal is the identity a verified credential asserts for one request.
type Principal struct {
	Kind Kind
	ID   int64
}

func Teacher(id int64) Principal { return Principal{Kind: KindTeacher, ID: id} }

func Student(id int64) Principal { return Principal{Kind: KindStudent, ID: id} }

func (p Principal) IsTeacher() bool { return p.Kind == KindTeacher }

func (p Principal) IsStudent() bool { return p.Kind == KindStudent }

// Area is the set of principal kinds a route accepts.
type Area int

const (
	AreaNone Area = iota
	AreaTeacher
	AreaStudent
	AreaEither
)

func (a Area) String() string {
	switch a {
	case AreaTeacher:
		return "teacher"
	case AreaStudent:
		return "student"
	case AreaEither:
		return "either"
	default:
		return "none"
	}
}

// Resolve picks the principal that claims may act as inside area. Mixed
// areas prefer the teacher claim.
func Resolve(claims *Claims, area Area) (Principal, bool) {
	if claims == nil {
		return Principal{}, false
	}
	switch area {
	case AreaTeacher:
		if id, ok := claims.PrincipalID(KindTeacher); ok {
			return Teacher(id), true
		}
	case AreaStudent:
		if id, ok := claims.PrincipalID(KindStudent); ok {
			return Student(id), true
		}
	case AreaEither:
		if id, ok := claims.PrincipalID(KindTeacher); ok {
			return Teacher(id), true
		}
		if id, ok := claims.PrincipalID(KindStudent); ok {
			return Student(id), true
		}
	}
	return Principal{}, false
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
