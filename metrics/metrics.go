// Package metrics exposes a running Engine's cycle counters as
// Prometheus metrics, the way pkg/exporter exposes per-connection
// TCP_INFO counters: a Collector wrapping the thing being observed,
// with a mutex-guarded counter set updated from the poll loop and read
// back on Collect.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineCollector accumulates cycle-level counters for one engine
// instance. An Engine and its Interface call its Observe*/Set* methods
// through their metrics sinks during each Poll; Collect reads them back
// under lock.
type EngineCollector struct {
	mu sync.Mutex

	pollCycles         uint64
	framesTransmitted  uint64
	framesReceived     uint64
	pdusLost           uint64
	wkcMismatches      uint64
	unitsActive        float64

	pollCyclesDesc        *prometheus.Desc
	framesTransmittedDesc *prometheus.Desc
	framesReceivedDesc    *prometheus.Desc
	pdusLostDesc          *prometheus.Desc
	wkcMismatchesDesc     *prometheus.Desc
	unitsActiveDesc       *prometheus.Desc
}

// NewEngineCollector creates a collector with the given constant labels
// (e.g. interface name), matching the teacher's constLabels parameter on
// NewTCPInfoCollector.
func NewEngineCollector(constLabels prometheus.Labels) *EngineCollector {
	return &EngineCollector{
		pollCyclesDesc: prometheus.NewDesc(
			"ecmaster_poll_cycles_total", "Total number of engine poll cycles run.", nil, constLabels),
		framesTransmittedDesc: prometheus.NewDesc(
			"ecmaster_frames_transmitted_total", "Total Ethernet frames transmitted.", nil, constLabels),
		framesReceivedDesc: prometheus.NewDesc(
			"ecmaster_frames_received_total", "Total Ethernet frames received.", nil, constLabels),
		pdusLostDesc: prometheus.NewDesc(
			"ecmaster_pdus_lost_total", "Total PDUs never matched to a received reply.", nil, constLabels),
		wkcMismatchesDesc: prometheus.NewDesc(
			"ecmaster_wkc_mismatches_total", "Total replies with an unexpected working counter.", nil, constLabels),
		unitsActiveDesc: prometheus.NewDesc(
			"ecmaster_units_active", "Number of unit slots currently occupied.", nil, constLabels),
	}
}

func (c *EngineCollector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.pollCyclesDesc
	descs <- c.framesTransmittedDesc
	descs <- c.framesReceivedDesc
	descs <- c.pdusLostDesc
	descs <- c.wkcMismatchesDesc
	descs <- c.unitsActiveDesc
}

func (c *EngineCollector) Collect(metrics chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	metrics <- prometheus.MustNewConstMetric(c.pollCyclesDesc, prometheus.CounterValue, float64(c.pollCycles))
	metrics <- prometheus.MustNewConstMetric(c.framesTransmittedDesc, prometheus.CounterValue, float64(c.framesTransmitted))
	metrics <- prometheus.MustNewConstMetric(c.framesReceivedDesc, prometheus.CounterValue, float64(c.framesReceived))
	metrics <- prometheus.MustNewConstMetric(c.pdusLostDesc, prometheus.CounterValue, float64(c.pdusLost))
	metrics <- prometheus.MustNewConstMetric(c.wkcMismatchesDesc, prometheus.CounterValue, float64(c.wkcMismatches))
	metrics <- prometheus.MustNewConstMetric(c.unitsActiveDesc, prometheus.GaugeValue, c.unitsActive)
}

func (c *EngineCollector) ObservePollCycle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pollCycles++
}

func (c *EngineCollector) ObserveFrameTransmitted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.framesTransmitted++
}

func (c *EngineCollector) ObserveFrameReceived() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.framesReceived++
}

func (c *EngineCollector) ObservePDULost() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pdusLost++
}

func (c *EngineCollector) ObserveWKCMismatch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wkcMismatches++
}

func (c *EngineCollector) SetUnitsActive(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unitsActive = float64(n)
}
