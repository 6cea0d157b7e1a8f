package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.QRLinksIssued.Inc()
	m.QRExchanges.WithLabelValues(OutcomeSuccess).Inc()
	m.AuthResolutions.WithLabelValues("student", OutcomeBound).Add(2)

	if got := testutil.ToFloat64(m.QRLinksIssued); got != 1 {
		t.Fatalf("expected 1 link issued, got %v", got)
	}
	if got := testutil.ToFloat64(m.AuthResolutions.WithLabelValues("student", OutcomeBound)); got != 2 {
		t.Fatalf("expected 2 resolutions, got %v", got)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) != 3 {
		t.Fatalf("expected 3 populated families, got %d", len(families))
	}
}

func TestNewWithoutRegistry(t *testing.T) {
	m := New(nil)
	m.QRLinksIssued.Inc()
	m.QRLinksIssued.Inc()
	if got := testutil.ToFloat64(m.QRLinksIssued); got != 2 {
		t.Fatalf("expected 2, got %v", got)
	}
}
