package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talgya/bunkhouse/internal/engine"
)

// Metrics holds the Prometheus collectors served on /metrics. Each instance
// has its own registry.
type Metrics struct {
	registry          *prometheus.Registry
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	upgradeErrors     *prometheus.CounterVec
}

// NewMetrics registers HTTP collectors and per-host gauges read from sim at
// scrape time.
func NewMetrics(sim *engine.Simulation) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bunkhouse_http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bunkhouse_http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		upgradeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bunkhouse_upgrade_errors_total",
			Help: "Rejected upgrade mutations by HTTP status.",
		}, []string{"status"}),
	}

	m.registry.MustRegister(
		m.httpRequestsTotal,
		m.httpDuration,
		m.upgradeErrors,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "bunkhouse_tick",
			Help: "Most recently processed simulation tick.",
		}, func() float64 { return float64(sim.CurrentTick()) }),
		newHostCollector(sim),
	)
	return m
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Middleware records request counts and durations labelled by route template.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		route := "unmatched"
		if cr := mux.CurrentRoute(r); cr != nil {
			if tmpl, err := cr.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// UpgradeRejected counts a refused install, removal or toggle.
func (m *Metrics) UpgradeRejected(status int) {
	if m == nil {
		return
	}
	m.upgradeErrors.WithLabelValues(strconv.Itoa(status)).Inc()
}

// hostCollector exports one gauge per host per derived value.
type hostCollector struct {
	sim         *engine.Simulation
	beds        *prometheus.Desc
	temperature *prometheus.Desc
	power       *prometheus.Desc
	fuelRate    *prometheus.Desc
	fuelReserve *prometheus.Desc
	shortage    *prometheus.Desc
}

func newHostCollector(sim *engine.Simulation) *hostCollector {
	labels := []string{"host", "name"}
	return &hostCollector{
		sim:         sim,
		beds:        prometheus.NewDesc("bunkhouse_host_beds", "Current bed count.", labels, nil),
		temperature: prometheus.NewDesc("bunkhouse_host_temperature_celsius", "Indoor temperature after all climate passes.", labels, nil),
		power:       prometheus.NewDesc("bunkhouse_host_power_draw_watts", "Power drawn by active upgrades.", labels, nil),
		fuelRate:    prometheus.NewDesc("bunkhouse_host_fuel_per_day", "Fuel consumed per day by active upgrades.", labels, nil),
		fuelReserve: prometheus.NewDesc("bunkhouse_host_fuel_reserve", "Fuel left in the host's reserve.", labels, nil),
		shortage:    prometheus.NewDesc("bunkhouse_host_space_shortage", "Space used beyond the host's total.", labels, nil),
	}
}

func (c *hostCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.beds
	ch <- c.temperature
	ch <- c.power
	ch <- c.fuelRate
	ch <- c.fuelReserve
	ch <- c.shortage
}

func (c *hostCollector) Collect(ch chan<- prometheus.Metric) {
	for _, v := range c.sim.HostViews() {
		gauge := func(d *prometheus.Desc, value float64) {
			ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, value, v.ID, v.Name)
		}
		gauge(c.beds, float64(v.State.BedCount))
		gauge(c.temperature, v.State.Climate.Current)
		gauge(c.power, v.State.Usage.PowerDraw)
		gauge(c.fuelRate, v.State.Usage.FuelPerDay)
		gauge(c.fuelReserve, v.Context.FuelReserve)
		gauge(c.shortage, v.State.SpaceShortage)
	}
}
