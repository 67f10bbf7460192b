package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// The types below mirror the OTLP/JSON metrics encoding. Only the fields the
// monitor consumes are declared; unknown fields are ignored.

type wireMetricsData struct {
	ResourceMetrics []wireResourceMetrics `json:"resourceMetrics"`
}

type wireResourceMetrics struct {
	Resource     *wireResource      `json:"resource"`
	ScopeMetrics []wireScopeMetrics `json:"scopeMetrics"`
}

type wireResource struct {
	Attributes []wireKeyValue `json:"attributes"`
}

type wireScopeMetrics struct {
	Metrics []wireMetric `json:"metrics"`
}

type wireMetric struct {
	Name      string         `json:"name"`
	Unit      string         `json:"unit"`
	Gauge     *wireGauge     `json:"gauge"`
	Sum       *wireSum       `json:"sum"`
	Histogram *wireHistogram `json:"histogram"`
}

type wireGauge struct {
	DataPoints []wireNumberDataPoint `json:"dataPoints"`
}

type wireSum struct {
	DataPoints             []wireNumberDataPoint `json:"dataPoints"`
	AggregationTemporality int                   `json:"aggregationTemporality"`
	IsMonotonic            bool                  `json:"isMonotonic"`
}

type wireHistogram struct {
	DataPoints             []wireHistogramDataPoint `json:"dataPoints"`
	AggregationTemporality int                      `json:"aggregationTemporality"`
}

type wireNumberDataPoint struct {
	TimeUnixNano *string        `json:"timeUnixNano"`
	AsDouble     *float64       `json:"asDouble"`
	AsInt        *wireInt       `json:"asInt"`
	Attributes   []wireKeyValue `json:"attributes"`
}

type wireHistogramDataPoint struct {
	TimeUnixNano   *string        `json:"timeUnixNano"`
	Attributes     []wireKeyValue `json:"attributes"`
	Count          *string        `json:"count"`
	Sum            *float64       `json:"sum"`
	BucketCounts   []string       `json:"bucketCounts"`
	ExplicitBounds []float64      `json:"explicitBounds"`
	Min            *float64       `json:"min"`
	Max            *float64       `json:"max"`
}

type wireKeyValue struct {
	Key   string       `json:"key"`
	Value wireAnyValue `json:"value"`
}

type wireAnyValue struct {
	StringValue *string          `json:"stringValue"`
	BoolValue   *bool            `json:"boolValue"`
	IntValue    *wireInt         `json:"intValue"`
	DoubleValue *float64         `json:"doubleValue"`
	ArrayValue  *wireArrayValue  `json:"arrayValue"`
	KvlistValue *wireKvlistValue `json:"kvlistValue"`
}

type wireArrayValue struct {
	Values []wireAnyValue `json:"values"`
}

type wireKvlistValue struct {
	Values []wireKeyValue `json:"values"`
}

// wireInt accepts a 64-bit integer encoded either as a JSON number or as a
// decimal string, the latter being the canonical OTLP/JSON form.
type wireInt int64

func (w *wireInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(s)
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %s", data)
	}
	*w = wireInt(v)
	return nil
}
