package protocol

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"preval/pkg/evaltypes"

	"github.com/tidwall/gjson"
)

const maxAttributeKeyLength = 255

// ParseMetricsLine decodes one OTLP-shaped metrics line. Resource attributes
// from every resource block are merged with later keys overwriting earlier
// ones; metrics from every scope block are kept in order.
func ParseMetricsLine(line string) (*evaltypes.MetricData, error) {
	if !gjson.Valid(line) {
		return nil, fmt.Errorf("failed to parse metrics JSON: %w", ErrMalformedJSON)
	}

	var wire wireMetricsData
	if err := json.Unmarshal([]byte(line), &wire); err != nil {
		return nil, fmt.Errorf("failed to decode metrics: %w: %v", ErrDecode, err)
	}
	if wire.ResourceMetrics == nil {
		return nil, fmt.Errorf("%w: resourceMetrics", ErrMissingField)
	}

	data := &evaltypes.MetricData{ResourceAttributes: evaltypes.Attributes{}}
	for _, rm := range wire.ResourceMetrics {
		if rm.Resource != nil {
			attrs, err := convertAttributes(rm.Resource.Attributes)
			if err != nil {
				return nil, err
			}
			for k, v := range attrs {
				data.ResourceAttributes[k] = v
			}
		}
		for _, sm := range rm.ScopeMetrics {
			for _, wm := range sm.Metrics {
				metric, err := convertMetric(wm)
				if err != nil {
					return nil, err
				}
				data.Metrics = append(data.Metrics, metric)
			}
		}
	}
	return data, nil
}

func convertMetric(wm wireMetric) (evaltypes.Metric, error) {
	name := strings.TrimSpace(wm.Name)
	if name == "" {
		return evaltypes.Metric{}, ErrEmptyMetricName
	}

	populated := 0
	for _, present := range []bool{wm.Gauge != nil, wm.Sum != nil, wm.Histogram != nil} {
		if present {
			populated++
		}
	}
	if populated != 1 {
		return evaltypes.Metric{}, fmt.Errorf("metric %q: %w", name, ErrInvalidMetricType)
	}

	metric := evaltypes.Metric{Name: name, Unit: strings.TrimSpace(wm.Unit)}
	var err error
	switch {
	case wm.Gauge != nil:
		metric.Kind = evaltypes.KindGauge
		metric.Gauge, err = convertGaugePoints(wm.Gauge.DataPoints)
	case wm.Sum != nil:
		if !wm.Sum.IsMonotonic {
			return evaltypes.Metric{}, fmt.Errorf("metric %q: %w", name, ErrNonMonotonicSum)
		}
		metric.Kind = evaltypes.KindCounter
		metric.Counter, err = convertCounterPoints(wm.Sum.DataPoints)
	case wm.Histogram != nil:
		metric.Kind = evaltypes.KindHistogram
		metric.Histogram, err = convertHistogramPoints(wm.Histogram.DataPoints)
	}
	if err != nil {
		return evaltypes.Metric{}, fmt.Errorf("metric %q: %w", name, err)
	}

	for _, attrs := range metric.PointAttributes() {
		if evaltypes.IsSummaryPoint(attrs) {
			metric.Category = evaltypes.CategorySummary
			break
		}
	}
	return metric, nil
}

func convertGaugePoints(points []wireNumberDataPoint) ([]evaltypes.DataPoint[evaltypes.GaugeValue], error) {
	out := make([]evaltypes.DataPoint[evaltypes.GaugeValue], 0, len(points))
	for _, p := range points {
		ts, attrs, err := convertPointHeader(p.TimeUnixNano, p.Attributes)
		if err != nil {
			return nil, err
		}
		v, err := numberValue(p)
		if err != nil {
			return nil, err
		}
		out = append(out, evaltypes.DataPoint[evaltypes.GaugeValue]{
			Timestamp:  ts,
			Value:      evaltypes.GaugeValue(v),
			Attributes: attrs,
		})
	}
	return out, nil
}

func convertCounterPoints(points []wireNumberDataPoint) ([]evaltypes.DataPoint[evaltypes.CounterValue], error) {
	out := make([]evaltypes.DataPoint[evaltypes.CounterValue], 0, len(points))
	for _, p := range points {
		ts, attrs, err := convertPointHeader(p.TimeUnixNano, p.Attributes)
		if err != nil {
			return nil, err
		}
		v, err := numberValue(p)
		if err != nil {
			return nil, err
		}
		counter, err := evaltypes.NewCounterValue(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidValue, err)
		}
		out = append(out, evaltypes.DataPoint[evaltypes.CounterValue]{
			Timestamp:  ts,
			Value:      counter,
			Attributes: attrs,
		})
	}
	return out, nil
}

func convertHistogramPoints(points []wireHistogramDataPoint) ([]evaltypes.DataPoint[evaltypes.HistogramValue], error) {
	out := make([]evaltypes.DataPoint[evaltypes.HistogramValue], 0, len(points))
	for _, p := range points {
		ts, attrs, err := convertPointHeader(p.TimeUnixNano, p.Attributes)
		if err != nil {
			return nil, err
		}
		if p.Count == nil {
			return nil, fmt.Errorf("%w: count", ErrMissingField)
		}
		count, err := strconv.ParseUint(strings.TrimSpace(*p.Count), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidCount, *p.Count)
		}

		buckets := make([]evaltypes.HistogramBucket, 0, len(p.BucketCounts))
		for i, raw := range p.BucketCounts {
			n, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bucket %d: %q", ErrInvalidCount, i, raw)
			}
			bound := math.Inf(1)
			if i < len(p.ExplicitBounds) {
				bound = p.ExplicitBounds[i]
			}
			buckets = append(buckets, evaltypes.HistogramBucket{UpperBound: bound, Count: n})
		}

		out = append(out, evaltypes.DataPoint[evaltypes.HistogramValue]{
			Timestamp: ts,
			Value: evaltypes.HistogramValue{
				Count:   count,
				Sum:     p.Sum,
				Buckets: buckets,
				Min:     p.Min,
				Max:     p.Max,
			},
			Attributes: attrs,
		})
	}
	return out, nil
}

func convertPointHeader(timeUnixNano *string, wireAttrs []wireKeyValue) (uint64, evaltypes.Attributes, error) {
	if timeUnixNano == nil {
		return 0, nil, fmt.Errorf("%w: timeUnixNano", ErrMissingField)
	}
	ts, err := parseTimeUnixNano(*timeUnixNano)
	if err != nil {
		return 0, nil, err
	}
	attrs, err := convertAttributes(wireAttrs)
	if err != nil {
		return 0, nil, err
	}
	return ts, attrs, nil
}

func parseTimeUnixNano(s string) (uint64, error) {
	ts, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
	}
	if ts == 0 {
		return 0, fmt.Errorf("%w: timestamp must be greater than 0", ErrInvalidTimestamp)
	}
	return ts, nil
}

func numberValue(p wireNumberDataPoint) (float64, error) {
	switch {
	case p.AsDouble != nil:
		return *p.AsDouble, nil
	case p.AsInt != nil:
		return float64(*p.AsInt), nil
	default:
		return 0, fmt.Errorf("%w: asDouble is required", ErrInvalidValue)
	}
}

func convertAttributes(wireAttrs []wireKeyValue) (evaltypes.Attributes, error) {
	attrs := make(evaltypes.Attributes, len(wireAttrs))
	for _, kv := range wireAttrs {
		key, err := attributeKey(kv.Key)
		if err != nil {
			return nil, err
		}
		value, err := convertAnyValue(kv.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidAttribute, key, err)
		}
		attrs[key] = value
	}
	return attrs, nil
}

func attributeKey(raw string) (string, error) {
	key := strings.TrimSpace(raw)
	if key == "" {
		return "", fmt.Errorf("%w: key cannot be empty", ErrInvalidAttribute)
	}
	if utf8.RuneCountInString(key) > maxAttributeKeyLength {
		return "", fmt.Errorf("%w: key longer than %d characters", ErrInvalidAttribute, maxAttributeKeyLength)
	}
	return key, nil
}

func convertAnyValue(v wireAnyValue) (evaltypes.AttributeValue, error) {
	set := 0
	for _, present := range []bool{
		v.StringValue != nil, v.BoolValue != nil, v.IntValue != nil,
		v.DoubleValue != nil, v.ArrayValue != nil, v.KvlistValue != nil,
	} {
		if present {
			set++
		}
	}
	if set != 1 {
		return evaltypes.AttributeValue{}, fmt.Errorf("value must have exactly one type, found %d", set)
	}

	switch {
	case v.StringValue != nil:
		return evaltypes.StringValue(*v.StringValue), nil
	case v.BoolValue != nil:
		return evaltypes.BoolValue(*v.BoolValue), nil
	case v.IntValue != nil:
		return evaltypes.IntValue(int64(*v.IntValue)), nil
	case v.DoubleValue != nil:
		return evaltypes.DoubleValue(*v.DoubleValue), nil
	case v.ArrayValue != nil:
		items := make([]evaltypes.AttributeValue, 0, len(v.ArrayValue.Values))
		for _, item := range v.ArrayValue.Values {
			converted, err := convertAnyValue(item)
			if err != nil {
				return evaltypes.AttributeValue{}, err
			}
			items = append(items, converted)
		}
		return evaltypes.ArrayValue(items...), nil
	default:
		entries := make(map[string]evaltypes.AttributeValue, len(v.KvlistValue.Values))
		for _, kv := range v.KvlistValue.Values {
			key, err := attributeKey(kv.Key)
			if err != nil {
				return evaltypes.AttributeValue{}, err
			}
			converted, err := convertAnyValue(kv.Value)
			if err != nil {
				return evaltypes.AttributeValue{}, err
			}
			entries[key] = converted
		}
		return evaltypes.MapValue(entries), nil
	}
}
