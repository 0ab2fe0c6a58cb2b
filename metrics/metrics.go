// Package metrics exports cgroup statistics as Prometheus metrics.
package metrics

import (
	"errors"
	"sync"

	metrics "github.com/docker/go-metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/resctl/cgroups"
)

var ErrAlreadyCollected = errors.New("metrics: cgroup is already being collected")

type value struct {
	v float64
	l []string
}

type metric struct {
	name   string
	help   string
	unit   metrics.Unit
	vt     prometheus.ValueType
	labels []string
	// getValues returns the values and extra label values for the metric
	getValues func(stats *cgroups.Stats) []value
}

func (m *metric) desc(ns *metrics.Namespace) *prometheus.Desc {
	return ns.NewDesc(m.name, m.help, m.unit, append([]string{"id"}, m.labels...)...)
}

func (m *metric) collect(id string, stats *cgroups.Stats, ns *metrics.Namespace, ch chan<- prometheus.Metric) {
	values := m.getValues(stats)
	for _, v := range values {
		ch <- prometheus.MustNewConstMetric(m.desc(ns), m.vt, v.v, append([]string{id}, v.l...)...)
	}
}

// NewCollector registers a new cgroups collector in the namespace. A nil
// namespace returns an inert collector.
func NewCollector(ns *metrics.Namespace) *Collector {
	if ns == nil {
		return &Collector{}
	}
	c := &Collector{
		ns:     ns,
		groups: make(map[string]*cgroups.Cgroup),
	}
	c.metrics = append(c.metrics, pidMetrics...)
	c.metrics = append(c.metrics, memoryMetrics...)
	c.metrics = append(c.metrics, cpuMetrics...)
	ns.Add(c)
	return c
}

// Collector reads statistics from a set of cgroups on every Prometheus
// scrape. Reads happen on the scraper's goroutine; the collector itself
// only guards its group map.
type Collector struct {
	mu      sync.RWMutex
	ns      *metrics.Namespace
	groups  map[string]*cgroups.Cgroup
	metrics []*metric
}

// Add starts collecting the cgroup under the given id.
func (c *Collector) Add(id string, cg *cgroups.Cgroup) error {
	if c.ns == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.groups[id]; ok {
		return ErrAlreadyCollected
	}
	c.groups[id] = cg
	return nil
}

// Remove stops collecting the cgroup under the given id.
func (c *Collector) Remove(id string) {
	if c.ns == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.groups, id)
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc(c.ns)
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for id, cg := range c.groups {
		stats, err := cg.Stat()
		if stats == nil {
			logrus.WithError(err).WithField("id", id).Warn("collect cgroup stats")
			continue
		}
		if err != nil {
			// Partial snapshots still carry every readable counter.
			logrus.WithError(err).WithField("id", id).Debug("partial cgroup stats")
		}
		for _, m := range c.metrics {
			m.collect(id, stats, c.ns, ch)
		}
	}
}
