// Package metrics holds the Prometheus collectors shared by the HTTP and QR
// layers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "spedermath"

// Outcome label values.
const (
	OutcomeBound       = "bound"
	OutcomeAnonymous   = "anonymous"
	OutcomeInvalid     = "invalid"
	OutcomeMismatch    = "kind_mismatch"
	OutcomeSuccess     = "success"
	OutcomeRejected    = "rejected"
	OutcomeFailed      = "error"
	OutcomeUnknownUser = "student_not_found"
)

type Metrics struct {
	AuthResolutions *prometheus.CounterVec
	QRExchanges     *prometheus.CounterVec
	QRLinksIssued   prometheus.Counter
	Unauthorized    *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg yields collectors that are
// counted but never exported, which suits tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AuthResolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "resolutions_total",
			Help:      "Bearer credentials seen by the authenticator, by area and outcome",
		}, []string{"area", "outcome"}),
		QRExchanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "qr",
			Name:      "exchanges_total",
			Help:      "QR login token exchanges by outcome",
		}, []string{"outcome"}),
		QRLinksIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "qr",
			Name:      "links_issued_total",
			Help:      "QR login links issued",
		}),
		Unauthorized: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "unauthorized_total",
			Help:      "Requests rejected for lack of a principal, by area",
		}, []string{"area"}),
	}
}
