package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"spedermath/internal/auth"
	"spedermath/internal/metrics"
	"spedermath/internal/policy"
)

// authenticate binds a principal to the request when the route's area
// accepts the presented credential. It never rejects a request; enforce
// decides what an unbound request may reach.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		rule := s.policy.Match(r.URL.Path)
		if rule.Access == policy.Public {
			next.ServeHTTP(w, r)
			return
		}

		area := rule.Area.String()
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			s.metrics.AuthResolutions.WithLabelValues(area, metrics.OutcomeAnonymous).Inc()
			next.ServeHTTP(w, r)
			return
		}
		claims, err := s.codec.Verify(token)
		if err != nil {
			s.logger.Debug("credential rejected", "path", r.URL.Path, "reason", err)
			s.metrics.AuthResolutions.WithLabelValues(area, metrics.OutcomeInvalid).Inc()
			next.ServeHTTP(w, r)
			return
		}
		principal, ok := auth.Resolve(claims, rule.Area)
		if !ok {
			s.metrics.AuthResolutions.WithLabelValues(area, metrics.OutcomeMismatch).Inc()
			next.ServeHTTP(w, r)
			return
		}
		s.metrics.AuthResolutions.WithLabelValues(area, metrics.OutcomeBound).Inc()
		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
	})
}

// enforce turns away requests for authenticated routes that carry no
// principal.
func (s *Server) enforce(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		rule := s.policy.Match(r.URL.Path)
		if rule.Access == policy.Public {
			next.ServeHTTP(w, r)
			return
		}
		if _, ok := auth.PrincipalFromContext(r.Context()); !ok {
			s.metrics.Unauthorized.WithLabelValues(rule.Area.String()).Inc()
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			header := w.Header()
			header.Set("Access-Control-Allow-Origin", origin)
			header.Set("Access-Control-Allow-Credentials", "true")
			header.Set("Access-Control-Expose-Headers", "Authorization, Location, Idempotency-Key")
			header.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			header := w.Header()
			header.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			if requested := r.Header.Get("Access-Control-Request-Headers"); requested != "" {
				header.Set("Access-Control-Allow-Headers", requested)
			}
			header.Set("Access-Control-Max-Age", "3600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.cfg.CORSAllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

type principalHandler func(w http.ResponseWriter, r *http.Request, p auth.Principal)

// withPrincipal hands the bound principal to h explicitly.
func withPrincipal(h principalHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		h(w, r, p)
	}
}

func requireTeacher(h principalHandler) principalHandler {
	return func(w http.ResponseWriter, r *http.Request, p auth.Principal) {
		if !p.IsTeacher() {
			writeError(w, http.StatusForbidden, "teacher_only")
			return
		}
		h(w, r, p)
	}
}
