package metrics

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"

	"sushiBar/internal/vault"
)

// VaultMetrics tracks vault activity. It implements vault.EventSink and
// vault.RejectionObserver.
type VaultMetrics struct {
	registry *prometheus.Registry

	deposits        prometheus.Counter
	withdrawals     *prometheus.CounterVec
	rejections      *prometheus.CounterVec
	depositedAmount prometheus.Counter
	paidAmount      prometheus.Counter
	taxAmount       prometheus.Counter
	totalShares     prometheus.Gauge
	totalUnderlying prometheus.Gauge
}

// New registers the vault collectors on a fresh registry.
func New() *VaultMetrics {
	m := &VaultMetrics{
		registry: prometheus.NewRegistry(),
		deposits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sushibar_deposits_total",
			Help: "Count of successful enter calls.",
		}),
		withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sushibar_withdrawals_total",
			Help: "Count of successful leave calls by whether tax was charged.",
		}, []string{"taxed"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sushibar_rejections_total",
			Help: "Count of rejected vault calls by operation and reason.",
		}, []string{"op", "reason"}),
		depositedAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sushibar_deposited_amount_total",
			Help: "Underlying tokens deposited through enter.",
		}),
		paidAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sushibar_paid_amount_total",
			Help: "Underlying tokens paid to holders through leave.",
		}),
		taxAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sushibar_tax_amount_total",
			Help: "Underlying tokens sent to the reward pool as withdrawal tax.",
		}),
		totalShares: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sushibar_total_shares",
			Help: "Outstanding vault shares.",
		}),
		totalUnderlying: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sushibar_total_underlying",
			Help: "Underlying tokens held by the pool.",
		}),
	}
	m.registry.MustRegister(
		m.deposits,
		m.withdrawals,
		m.rejections,
		m.depositedAmount,
		m.paidAmount,
		m.taxAmount,
		m.totalShares,
		m.totalUnderlying,
	)
	return m
}

// Registry exposes the underlying registry for export.
func (m *VaultMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *VaultMetrics) OnDeposit(_ context.Context, ev vault.Deposit) error {
	if m == nil {
		return nil
	}
	m.deposits.Inc()
	m.depositedAmount.Add(toFloat(ev.AmountIn))
	return nil
}

func (m *VaultMetrics) OnWithdrawal(_ context.Context, ev vault.Withdrawal) error {
	if m == nil {
		return nil
	}
	taxed := "false"
	if !ev.TaxPaid.IsZero() {
		taxed = "true"
	}
	m.withdrawals.WithLabelValues(taxed).Inc()
	m.paidAmount.Add(toFloat(ev.NetPaid))
	m.taxAmount.Add(toFloat(ev.TaxPaid))
	return nil
}

func (m *VaultMetrics) OnRejected(op string, err error) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(op, Reason(err)).Inc()
}

// ObservePool records the pool totals.
func (m *VaultMetrics) ObservePool(shares, underlying *uint256.Int) {
	if m == nil {
		return
	}
	m.totalShares.Set(toFloat(shares))
	m.totalUnderlying.Set(toFloat(underlying))
}

// WriteTextfile writes every collected metric to path in the text exposition
// format, for the node_exporter textfile collector.
func (m *VaultMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

var reasons = []struct {
	err  error
	name string
}{
	{vault.ErrReentrantCall, "reentrant"},
	{vault.ErrZeroAmount, "zero_amount"},
	{vault.ErrLocked, "locked"},
	{vault.ErrTierExceeded, "tier_exceeded"},
	{vault.ErrNoPosition, "no_position"},
	{vault.ErrInsufficientShares, "insufficient_shares"},
	{vault.ErrArithmeticOverflow, "overflow"},
	{vault.ErrTransferFailed, "transfer_failed"},
}

// Reason maps a vault error to a stable label value.
func Reason(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.name
		}
	}
	return "other"
}

func toFloat(v *uint256.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v.ToBig()).Float64()
	return f
}
