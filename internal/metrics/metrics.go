package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
)

const namespace = "oddsbot"

var (
	Decisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "decisions_total",
		Help:      "Trade decisions by action.",
	}, []string{"action"})

	Orders = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_total",
		Help:      "Order submissions by mode, side and result.",
	}, []string{"mode", "side", "result"})

	Exits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "exits_total",
		Help:      "Executed exit instructions by kind.",
	}, []string{"kind"})

	OpenPositions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "open_positions",
		Help:      "Number of open positions in the ledger.",
	})

	UnrealizedPnL = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "unrealized_pnl",
		Help:      "Total unrealized PnL in quote currency.",
	})

	RealizedPnL = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "realized_pnl",
		Help:      "Realized PnL since start in quote currency.",
	})

	ReferencePrice = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "reference_price",
		Help:      "Last observed reference price.",
	})

	StreamReconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stream_reconnects_total",
		Help:      "Reference price stream reconnect attempts.",
	})

	SnapshotErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "snapshot_errors_total",
		Help:      "Failed market snapshot refreshes.",
	})

	EndedWindowPositions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ended_window_positions",
		Help:      "Open positions whose market window has already ended.",
	})
)

// Registry 独立 registry，避免与 DefaultRegisterer 的全局副作用冲突
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		Decisions, Orders, Exits,
		OpenPositions, UnrealizedPnL, RealizedPnL, ReferencePrice,
		StreamReconnects, SnapshotErrors, EndedWindowPositions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Float 将 decimal 转为 gauge 可用的 float64
func Float(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// ResultLabel 下单结果标签
func ResultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
