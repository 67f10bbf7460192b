package evaltypes

import (
	"errors"
	"math"
)

// Well-known attribute keys.
const (
	AttrSampleID     = "sample.id"
	AttrSampleStatus = "sample.status"
	AttrError        = "error"
	AttrSummary      = "summary"
)

var (
	// ErrCounterNegative is returned for a counter value below zero.
	ErrCounterNegative = errors.New("counter value cannot be negative")
	// ErrCounterNotFinite is returned for a NaN or infinite counter value.
	ErrCounterNotFinite = errors.New("counter value must be finite")
)

// MetricCategory separates per-sample metrics from run-level summaries.
type MetricCategory int

const (
	// CategorySample marks metrics that describe a single evaluated sample.
	CategorySample MetricCategory = iota
	// CategorySummary marks aggregate metrics reported once per run.
	CategorySummary
)

func (c MetricCategory) String() string {
	if c == CategorySummary {
		return "summary"
	}
	return "sample"
}

// MetricKind identifies which data point slice of a Metric is populated.
type MetricKind int

// Metric kinds.
const (
	KindGauge MetricKind = iota
	KindCounter
	KindHistogram
)

func (k MetricKind) String() string {
	switch k {
	case KindCounter:
		return "counter"
	case KindHistogram:
		return "histogram"
	default:
		return "gauge"
	}
}

// GaugeValue is a point-in-time measurement. Any finite value is allowed.
type GaugeValue float64

// CounterValue is a monotonic, non-negative, finite measurement.
type CounterValue float64

// NewCounterValue validates a counter value.
func NewCounterValue(v float64) (CounterValue, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrCounterNotFinite
	}
	if v < 0 {
		return 0, ErrCounterNegative
	}
	return CounterValue(v), nil
}

// HistogramBucket is one bucket of a histogram distribution.
type HistogramBucket struct {
	UpperBound float64 // +Inf for the overflow bucket
	Count      uint64
}

// HistogramValue is a distribution of observations.
type HistogramValue struct {
	Count   uint64
	Sum     *float64
	Buckets []HistogramBucket
	Min     *float64
	Max     *float64
}

// DataPoint is a single timestamped value with attributes.
type DataPoint[V any] struct {
	Timestamp  uint64 // nanoseconds since the Unix epoch, always > 0
	Value      V
	Attributes Attributes
}

// Metric is one named metric with the data points of its kind.
type Metric struct {
	Name      string
	Unit      string
	Category  MetricCategory
	Kind      MetricKind
	Gauge     []DataPoint[GaugeValue]
	Counter   []DataPoint[CounterValue]
	Histogram []DataPoint[HistogramValue]
}

// PointAttributes returns the attribute sets of every data point, in order.
func (m *Metric) PointAttributes() []Attributes {
	var out []Attributes
	switch m.Kind {
	case KindGauge:
		for _, p := range m.Gauge {
			out = append(out, p.Attributes)
		}
	case KindCounter:
		for _, p := range m.Counter {
			out = append(out, p.Attributes)
		}
	case KindHistogram:
		for _, p := range m.Histogram {
			out = append(out, p.Attributes)
		}
	}
	return out
}

// LatestValue returns a scalar for display: the last gauge or counter value,
// or the histogram sum (falling back to its count).
func (m *Metric) LatestValue() (float64, bool) {
	switch m.Kind {
	case KindGauge:
		if n := len(m.Gauge); n > 0 {
			return float64(m.Gauge[n-1].Value), true
		}
	case KindCounter:
		if n := len(m.Counter); n > 0 {
			return float64(m.Counter[n-1].Value), true
		}
	case KindHistogram:
		if n := len(m.Histogram); n > 0 {
			h := m.Histogram[n-1].Value
			if h.Sum != nil {
				return *h.Sum, true
			}
			return float64(h.Count), true
		}
	}
	return 0, false
}

// IsSummaryPoint reports whether a data point's attributes mark it as a summary.
func IsSummaryPoint(attrs Attributes) bool {
	v, ok := attrs[AttrSummary]
	if !ok {
		return false
	}
	b, ok := v.AsBool()
	return ok && b
}

// MetricData is one decoded post-handshake message.
type MetricData struct {
	ResourceAttributes Attributes
	Metrics            []Metric
}

// IsSummary reports whether any metric in the message is a summary metric.
// A single summary metric makes the whole message non-counting.
func (md *MetricData) IsSummary() bool {
	for i := range md.Metrics {
		if md.Metrics[i].Category == CategorySummary {
			return true
		}
	}
	return false
}

// FindAttribute returns the first data point attribute with the given key
// across all metrics in the message.
func (md *MetricData) FindAttribute(key string) (AttributeValue, bool) {
	for i := range md.Metrics {
		for _, attrs := range md.Metrics[i].PointAttributes() {
			if v, ok := attrs[key]; ok {
				return v, true
			}
		}
	}
	return AttributeValue{}, false
}
