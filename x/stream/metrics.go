package stream

import (
	"math/big"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/iov-one/paystream/amount"
	"github.com/iov-one/paystream/errors"
)

const metricsNamespace = "paystream"

// Metrics collects streaming statistics. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	claimsAccepted prometheus.Counter
	claimsRejected *prometheus.CounterVec
	settlements    *prometheus.CounterVec
	unclaimed      *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with given
// registerer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		claimsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "claims_accepted_total",
			Help:      "Number of accepted channel claims.",
		}),
		claimsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "claims_rejected_total",
			Help:      "Number of rejected channel claims by reason.",
		}, []string{"reason"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "settlements_total",
			Help:      "Number of settlement attempts by outcome.",
		}, []string{"outcome"}),
		unclaimed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "unclaimed_amount",
			Help:      "Accepted but not yet settled amount per channel, in smallest units.",
		}, []string{"channel"}),
	}
	for _, c := range []prometheus.Collector{m.claimsAccepted, m.claimsRejected, m.settlements, m.unclaimed} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(errors.ErrInternal, err.Error())
		}
	}
	return m, nil
}

func (m *Metrics) claimAccepted(channelID string, unclaimed amount.Amount) {
	if m == nil {
		return
	}
	m.claimsAccepted.Inc()
	m.unclaimed.WithLabelValues(channelID).Set(asFloat(unclaimed))
}

func (m *Metrics) claimRejected(err error) {
	if m == nil {
		return
	}
	m.claimsRejected.WithLabelValues(rejectionReason(err)).Inc()
}

func (m *Metrics) settled(channelID string, outcome string, unclaimed amount.Amount) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(outcome).Inc()
	m.unclaimed.WithLabelValues(channelID).Set(asFloat(unclaimed))
}

// rejectionReason returns a short, metric friendly name of the rejection.
func rejectionReason(err error) string {
	switch {
	case errors.ErrRateLimited.Is(err):
		return "rate_limited"
	case errors.ErrInvalidSignature.Is(err):
		return "invalid_signature"
	case errors.ErrStaleClaim.Is(err):
		return "stale"
	case errors.ErrCapacityExceeded.Is(err):
		return "capacity_exceeded"
	case errors.ErrKeyMismatch.Is(err):
		return "key_mismatch"
	case errors.ErrPersistence.Is(err):
		return "persistence"
	default:
		return "other"
	}
}

func asFloat(a amount.Amount) float64 {
	f, _ := new(big.Float).SetInt(a.Big()).Float64()
	return f
}
