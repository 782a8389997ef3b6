package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tradedesk"

// Metrics holds all Prometheus collectors of the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	PoolActors        prometheus.Gauge
	PoolSpawns        *prometheus.CounterVec
	PoolEvictions     prometheus.Counter
	ActorCommands     *prometheus.CounterVec
	ActorCommandTime  *prometheus.HistogramVec
	OrdersTotal       *prometheus.CounterVec
	DeskNotesTotal    *prometheus.CounterVec
	DesksRestored     *prometheus.CounterVec
	TokenCacheHits    prometheus.Counter
	TokenCacheMisses  prometheus.Counter
	HTTPRequests      *prometheus.CounterVec
	RateLimitedTotal  prometheus.Counter
	NotePublishErrors *prometheus.CounterVec
}

// New initializes the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PoolActors: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "actors",
			Help:      "Number of ledger actors currently pooled.",
		}),
		PoolSpawns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "spawns_total",
			Help:      "Ledger actor spawns by result.",
		}, []string{"result"}), // result: ok, error
		PoolEvictions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "evictions_total",
			Help:      "Total number of ledger actors evicted from the pool.",
		}),
		ActorCommands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "actor",
			Name:      "commands_total",
			Help:      "Ledger actor commands processed by command and result.",
		}, []string{"command", "result"}),
		ActorCommandTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "actor",
			Name:      "command_duration_seconds",
			Help:      "Time spent executing ledger actor commands.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"command"}),
		OrdersTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "total",
			Help:      "Orders processed by final status.",
		}, []string{"status"}),
		DeskNotesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "desk",
			Name:      "notes_total",
			Help:      "Desk note events by kind.",
		}, []string{"event"}), // event: pushed, consumed, invalid
		DesksRestored: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "desk",
			Name:      "restored_total",
			Help:      "Desks processed at startup restore by result.",
		}, []string{"result"}),
		TokenCacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "token_cache_hits_total",
			Help:      "Total number of token cache hits.",
		}),
		TokenCacheMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "token_cache_misses_total",
			Help:      "Total number of token cache misses.",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		RateLimitedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-tenant rate limiter.",
		}),
		NotePublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "desk",
			Name:      "note_publish_errors_total",
			Help:      "Failed note event publications by publisher.",
		}, []string{"publisher"}),
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) ObserveCommand(command string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ActorCommands.WithLabelValues(command, result(err)).Inc()
	m.ActorCommandTime.WithLabelValues(command).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveSpawn(err error) {
	if m == nil {
		return
	}
	m.PoolSpawns.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) SetPoolSize(n int) {
	if m == nil {
		return
	}
	m.PoolActors.Set(float64(n))
}

func (m *Metrics) AddEvictions(n int) {
	if m == nil {
		return
	}
	m.PoolEvictions.Add(float64(n))
}

func (m *Metrics) ObserveOrder(status string) {
	if m == nil {
		return
	}
	m.OrdersTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveDeskNote(event string) {
	if m == nil {
		return
	}
	m.DeskNotesTotal.WithLabelValues(event).Inc()
}

func (m *Metrics) ObserveRestore(err error) {
	if m == nil {
		return
	}
	m.DesksRestored.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) ObserveTokenCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.TokenCacheHits.Inc()
	} else {
		m.TokenCacheMisses.Inc()
	}
}

func (m *Metrics) ObserveHTTP(method, code string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, code).Inc()
}

func (m *Metrics) ObserveRateLimited() {
	if m == nil {
		return
	}
	m.RateLimitedTotal.Inc()
}

func (m *Metrics) ObservePublishError(publisher string) {
	if m == nil {
		return
	}
	m.NotePublishErrors.WithLabelValues(publisher).Inc()
}
