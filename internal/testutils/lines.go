package testutils

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// DefaultTimestamp is the timeUnixNano used by the metric line builders.
const DefaultTimestamp = "1700000000000000000"

// Handshake describes a handshake line to build. Zero values are replaced by
// sensible defaults in Line.
type Handshake struct {
	Type          string
	Mode          string
	Version       string
	Name          string
	Description   string
	TotalSamples  int // 0 omits the execution plan
	MetricsSchema []map[string]any
}

// Line renders the handshake as one JSON line.
func (h Handshake) Line() string {
	msg := map[string]any{
		"type":    orDefault(h.Type, "handshake"),
		"mode":    orDefault(h.Mode, "test_suite"),
		"version": orDefault(h.Version, "1.0"),
		"evaluator": map[string]any{
			"name":        orDefault(h.Name, "test-evaluator"),
			"description": orDefault(h.Description, "Evaluator used in tests"),
			"version":     "0.1.0",
		},
		"metrics_schema": h.MetricsSchema,
	}
	if h.MetricsSchema == nil {
		msg["metrics_schema"] = []map[string]any{{"name": "accuracy", "unit": "ratio"}}
	}
	if h.TotalSamples > 0 {
		msg["execution_plan"] = map[string]any{"total_samples": h.TotalSamples}
	}
	return mustJSON(msg)
}

// HandshakeLine builds a valid handshake announcing totalSamples samples.
func HandshakeLine(totalSamples int) string {
	return Handshake{TotalSamples: totalSamples}.Line()
}

// Attrs converts plain Go values into OTLP/JSON attribute entries, sorted by key.
func Attrs(values map[string]any) []map[string]any {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]map[string]any, 0, len(keys))
	for _, k := range keys {
		out = append(out, map[string]any{"key": k, "value": anyValue(values[k])})
	}
	return out
}

func anyValue(v any) map[string]any {
	switch x := v.(type) {
	case string:
		return map[string]any{"stringValue": x}
	case bool:
		return map[string]any{"boolValue": x}
	case int:
		return map[string]any{"intValue": strconv.Itoa(x)}
	case int64:
		return map[string]any{"intValue": strconv.FormatInt(x, 10)}
	case float64:
		return map[string]any{"doubleValue": x}
	case []any:
		values := make([]map[string]any, 0, len(x))
		for _, item := range x {
			values = append(values, anyValue(item))
		}
		return map[string]any{"arrayValue": map[string]any{"values": values}}
	case map[string]any:
		return map[string]any{"kvlistValue": map[string]any{"values": Attrs(x)}}
	default:
		panic(fmt.Sprintf("testutils: unsupported attribute type %T", v))
	}
}

// MetricsLine wraps metric payloads into one resourceMetrics message.
func MetricsLine(resource map[string]any, metrics ...map[string]any) string {
	block := map[string]any{
		"scopeMetrics": []map[string]any{{"metrics": metrics}},
	}
	if resource != nil {
		block["resource"] = map[string]any{"attributes": Attrs(resource)}
	}
	return mustJSON(map[string]any{"resourceMetrics": []map[string]any{block}})
}

// Gauge builds a gauge metric payload with a single data point.
func Gauge(name string, value float64, attrs map[string]any) map[string]any {
	return map[string]any{
		"name": name,
		"gauge": map[string]any{
			"dataPoints": []map[string]any{numberPoint(value, attrs)},
		},
	}
}

// Sum builds a sum metric payload with a single data point.
func Sum(name string, value float64, monotonic bool, attrs map[string]any) map[string]any {
	return map[string]any{
		"name": name,
		"sum": map[string]any{
			"dataPoints":             []map[string]any{numberPoint(value, attrs)},
			"aggregationTemporality": 2,
			"isMonotonic":            monotonic,
		},
	}
}

// Histogram builds a histogram metric payload with a single data point.
func Histogram(name string, count uint64, sum float64, bucketCounts []uint64, bounds []float64, attrs map[string]any) map[string]any {
	counts := make([]string, len(bucketCounts))
	for i, c := range bucketCounts {
		counts[i] = strconv.FormatUint(c, 10)
	}
	return map[string]any{
		"name": name,
		"unit": "ms",
		"histogram": map[string]any{
			"dataPoints": []map[string]any{{
				"timeUnixNano":   DefaultTimestamp,
				"count":          strconv.FormatUint(count, 10),
				"sum":            sum,
				"bucketCounts":   counts,
				"explicitBounds": bounds,
				"attributes":     Attrs(attrs),
			}},
		},
	}
}

// SampleLine builds a metrics line for one completed sample.
func SampleLine(sampleID string, accuracy float64) string {
	return MetricsLine(nil, Gauge("accuracy", accuracy, map[string]any{"sample.id": sampleID}))
}

// FailedSampleLine builds a metrics line for a sample that failed with reason.
func FailedSampleLine(sampleID, reason string) string {
	return MetricsLine(nil, Gauge("accuracy", 0, map[string]any{
		"sample.id":     sampleID,
		"sample.status": "failed",
		"error":         reason,
	}))
}

// SummaryLine builds a metrics line carrying a summary=true gauge.
func SummaryLine(name string, value float64) string {
	return MetricsLine(nil, Gauge(name, value, map[string]any{"summary": true}))
}

func numberPoint(value float64, attrs map[string]any) map[string]any {
	return map[string]any{
		"timeUnixNano": DefaultTimestamp,
		"asDouble":     value,
		"attributes":   Attrs(attrs),
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("testutils: marshal: %v", err))
	}
	return string(b)
}
