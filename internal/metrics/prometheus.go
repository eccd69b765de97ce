package metrics

import (
	"log"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PromSink is the Prometheus-backed Sink. All counters are created and
// registered up front; incrementing an unregistered name is logged once and
// dropped rather than panicking mid-pipeline.
type PromSink struct {
	gatherer prometheus.Gatherer
	counters map[string]prometheus.Counter
	vecs     map[string]*prometheus.CounterVec

	unknownMu sync.Mutex
	unknown   map[string]bool
}

// NewPromSink registers the bridge's counters against reg, defaulting to the
// global Prometheus registry when nil.
func NewPromSink(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	s := &PromSink{
		gatherer: gatherer,
		counters: make(map[string]prometheus.Counter),
		vecs:     make(map[string]*prometheus.CounterVec),
		unknown:  make(map[string]bool),
	}

	plain := []struct {
		name string
		help string
	}{
		{PositionCallback, "Number of position callbacks"},
		{PositionDecode, "Number of position decodes"},
		{PacketCallback, "All packets received"},
		{Reconnect, "Number of reconnections to mesh device"},
		{XmitFail, "Number of failed sends to readsb"},
		{SharedOut, "Shared locations sent to internet"},
		{SharedOutError, "Shared location send errors"},
		{SharedIn, "Shared locations received from internet"},
		{SharedInError, "Shared location errors"},
		{ConnectAttempts, "Number of connection attempts"},
		{Sends, "Number of messages sent"},
		{SendErrors, "Number of send errors"},
	}
	for _, c := range plain {
		counter := prometheus.NewCounter(prometheus.CounterOpts{Name: c.name, Help: c.help})
		if err := reg.Register(counter); err != nil {
			return nil, err
		}
		s.counters[c.name] = counter
	}

	labeled := []struct {
		name   string
		help   string
		labels []string
	}{
		{KnownTrackers, "Recognized devices seen", []string{"icao", "name"}},
		{AllTrackers, "All devices seen", []string{"id"}},
		{PositionReject, "Packets rejected by the normalizer", []string{"reason"}},
	}
	for _, c := range labeled {
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: c.name, Help: c.help}, c.labels)
		if err := reg.Register(vec); err != nil {
			return nil, err
		}
		s.vecs[c.name] = vec
	}

	return s, nil
}

// Increment bumps a plain counter.
func (s *PromSink) Increment(name string) {
	if counter, ok := s.counters[name]; ok {
		counter.Inc()
		return
	}
	s.warnUnknown(name)
}

// IncrementWith bumps a labeled counter.
func (s *PromSink) IncrementWith(name string, labels map[string]string) {
	if vec, ok := s.vecs[name]; ok {
		counter, err := vec.GetMetricWith(prometheus.Labels(labels))
		if err != nil {
			log.Printf("Warning - bad labels for counter %s: %v", name, err)
			return
		}
		counter.Inc()
		return
	}
	s.warnUnknown(name)
}

func (s *PromSink) warnUnknown(name string) {
	s.unknownMu.Lock()
	defer s.unknownMu.Unlock()
	if !s.unknown[name] {
		s.unknown[name] = true
		log.Printf("Warning - unregistered counter: %s", name)
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (s *PromSink) Handler() http.Handler {
	return promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})
}
