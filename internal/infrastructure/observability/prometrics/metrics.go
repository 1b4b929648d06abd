package prometrics

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Zhima-Mochi/krishi-prebook/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
)

// Registry creates label-vector instruments once per name and hands out adapters.
type Registry struct {
	reg        prometheus.Registerer
	counters   sync.Map // name -> *prometheus.CounterVec
	histograms sync.Map // name -> *prometheus.HistogramVec
	namespace  string
}

// New registers instruments on reg; pass prometheus.DefaultRegisterer in production
// and prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer, namespace string) *Registry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Registry{reg: reg, namespace: namespace}
}

type counter struct{ v *prometheus.CounterVec }

func (c *counter) Add(d float64, labels ...observability.Label) {
	c.v.With(labelMap(labels)).Add(d)
}

func (c *counter) Bind(labels ...observability.Label) observability.BoundCounter {
	return &boundCounter{c: c.v.With(labelMap(labels))}
}

type boundCounter struct{ c prometheus.Counter }

func (b *boundCounter) Add(d float64) { b.c.Add(d) }

type histogram struct{ v *prometheus.HistogramVec }

func (h *histogram) Observe(v float64, labels ...observability.Label) {
	h.v.With(labelMap(labels)).Observe(v)
}

func (h *histogram) Bind(labels ...observability.Label) observability.BoundHistogram {
	return &boundHistogram{o: h.v.With(labelMap(labels))}
}

type boundHistogram struct{ o prometheus.Observer }

func (b *boundHistogram) Observe(v float64) { b.o.Observe(v) }

func labelMap(ls []observability.Label) prometheus.Labels {
	m := make(prometheus.Labels, len(ls))
	for _, l := range ls {
		m[l.Key] = l.Value
	}
	return m
}

func (r *Registry) Counter(name, help string, labelKeys ...string) (observability.Counter, error) {
	if v, ok := r.counters.Load(name); ok {
		return &counter{v: v.(*prometheus.CounterVec)}, nil
	}
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace, Name: name, Help: help,
	}, labelKeys)
	if err := r.reg.Register(cv); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, fmt.Errorf("register counter %s: %w", name, err)
		}
		cv = are.ExistingCollector.(*prometheus.CounterVec)
	}
	actual, _ := r.counters.LoadOrStore(name, cv)
	return &counter{v: actual.(*prometheus.CounterVec)}, nil
}

func (r *Registry) Histogram(name, help string, buckets []float64, labelKeys ...string) (observability.Histogram, error) {
	if v, ok := r.histograms.Load(name); ok {
		return &histogram{v: v.(*prometheus.HistogramVec)}, nil
	}
	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: r.namespace, Name: name, Help: help, Buckets: buckets,
	}, labelKeys)
	if err := r.reg.Register(hv); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, fmt.Errorf("register histogram %s: %w", name, err)
		}
		hv = are.ExistingCollector.(*prometheus.HistogramVec)
	}
	actual, _ := r.histograms.LoadOrStore(name, hv)
	return &histogram{v: actual.(*prometheus.HistogramVec)}, nil
}

type counterDef struct {
	key    observability.MetricKey
	help   string
	labels []string
}

type histogramDef struct {
	key     observability.MetricKey
	help    string
	buckets []float64
	labels  []string
}

var counterDefs = []counterDef{
	{observability.MUsecaseRequests, "Use case executions by outcome.", []string{"usecase", "outcome"}},
	{observability.MHTTPRequests, "HTTP requests by route and status.", []string{"method", "route", "status"}},
	{observability.MExternalRequests, "Calls to external dependencies.", []string{"peer", "endpoint", "outcome"}},
	{observability.MCartMirrorFailures, "Cart mirror writes that were dropped or exhausted their retries.", []string{"op"}},
	{observability.MBookingsCreated, "Bookings created at checkout.", []string{"office"}},
	{observability.MBookingsExpired, "Bookings moved to expired.", []string{"trigger"}},
}

var histogramDefs = []histogramDef{
	{observability.MUsecaseDuration, "Use case latency in seconds.", prometheus.DefBuckets, []string{"usecase"}},
	{observability.MHTTPRequestDuration, "HTTP latency in seconds.", prometheus.DefBuckets, []string{"method", "route", "status"}},
	{observability.MExternalRequestDuration, "External call latency in seconds.", prometheus.DefBuckets, []string{"peer", "endpoint"}},
}

// Metrics is the application-facing instrument set keyed by observability.MetricKey.
type Metrics struct {
	counters   map[observability.MetricKey]observability.Counter
	histograms map[observability.MetricKey]observability.Histogram
}

// Register creates every instrument the service reports.
func (r *Registry) Register() (*Metrics, error) {
	m := &Metrics{
		counters:   make(map[observability.MetricKey]observability.Counter, len(counterDefs)),
		histograms: make(map[observability.MetricKey]observability.Histogram, len(histogramDefs)),
	}
	for _, d := range counterDefs {
		c, err := r.Counter(string(d.key), d.help, d.labels...)
		if err != nil {
			return nil, err
		}
		m.counters[d.key] = c
	}
	for _, d := range histogramDefs {
		h, err := r.Histogram(string(d.key), d.help, d.buckets, d.labels...)
		if err != nil {
			return nil, err
		}
		m.histograms[d.key] = h
	}
	return m, nil
}

// Counter returns a no-op counter for unknown keys so callers never nil-check.
func (m *Metrics) Counter(name observability.MetricKey) observability.Counter {
	if c, ok := m.counters[name]; ok {
		return c
	}
	return observability.NopCounter()
}

func (m *Metrics) Histogram(name observability.MetricKey) observability.Histogram {
	if h, ok := m.histograms[name]; ok {
		return h
	}
	return observability.NopHistogram()
}
