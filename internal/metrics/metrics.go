package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "trading_cycles_total", Help: "Analysis cycles completed"},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_total", Help: "Signals emitted by strategies"},
		[]string{"strategy", "type"},
	)
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "decisions_total", Help: "Decisions accepted by the aggregator"},
		[]string{"symbol", "type"},
	)
	TradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trades_total", Help: "Trades submitted to the exchange"},
		[]string{"symbol", "side", "status"},
	)
	SymbolErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "symbol_errors_total", Help: "Per-symbol cycle failures"},
		[]string{"symbol"},
	)
	OpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "open_positions", Help: "Currently open positions"},
	)
	DailyPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "daily_pnl", Help: "Realized P&L for the current day"},
	)
)

func init() {
	prometheus.MustRegister(CyclesTotal, SignalsTotal, DecisionsTotal,
		TradesTotal, SymbolErrorsTotal, OpenPositions, DailyPnL)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
