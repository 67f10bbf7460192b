package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"
)

// options control the emitted stream.
type options struct {
	Samples     int
	Delay       time.Duration
	FailEvery   int
	ExitCode    int
	NoHandshake bool
	NoPlan      bool
	Name        string
}

func defaultOptions() options {
	return options{
		Samples: 10,
		Delay:   300 * time.Millisecond,
		Name:    "mock-evaluator",
	}
}

type emitter struct {
	out  *bufio.Writer
	diag io.Writer
	opts options
	now  func() time.Time
}

func newEmitter(out, diag io.Writer, opts options) *emitter {
	return &emitter{out: bufio.NewWriter(out), diag: diag, opts: opts, now: time.Now}
}

// Run writes the whole stream, stopping early when ctx is cancelled.
func (e *emitter) Run(ctx context.Context) error {
	if !e.opts.NoHandshake {
		if err := e.emit(e.handshake()); err != nil {
			return err
		}
	}

	var totalTokens float64
	for i := 1; i <= e.opts.Samples; i++ {
		if err := e.wait(ctx); err != nil {
			return nil
		}
		id := fmt.Sprintf("sample-%03d", i)
		fmt.Fprintf(e.diag, "Running %s\n", id)

		tokens := 500 + float64(i)*50
		totalTokens += tokens
		if err := e.emit(e.sample(i, id, totalTokens)); err != nil {
			return err
		}
	}

	if e.opts.Samples > 0 {
		return e.emit(e.summary())
	}
	return nil
}

func (e *emitter) wait(ctx context.Context) error {
	if e.opts.Delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(e.opts.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (e *emitter) emit(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if _, err := e.out.Write(append(data, '\n')); err != nil {
		return err
	}
	return e.out.Flush()
}

type metricDef struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Unit        string `json:"unit"`
	Description string `json:"description"`
}

func (e *emitter) handshake() map[string]any {
	msg := map[string]any{
		"type":    "handshake",
		"mode":    "test_suite",
		"version": "1.0",
		"evaluator": map[string]any{
			"name":        e.opts.Name,
			"description": "Mock evaluator for PrEval",
			"version":     "0.1.0",
		},
		"metrics_schema": []metricDef{
			{Name: "llm.eval.accuracy", Type: "gauge", Unit: "ratio", Description: "Classification accuracy (0-1)"},
			{Name: "llm.eval.latency", Type: "histogram", Unit: "ms", Description: "Response latency in milliseconds"},
			{Name: "llm.eval.tokens", Type: "counter", Unit: "1", Description: "Total tokens processed"},
		},
	}
	if !e.opts.NoPlan {
		msg["execution_plan"] = map[string]any{"total_samples": e.opts.Samples}
	}
	return msg
}

func (e *emitter) sample(i int, id string, totalTokens float64) map[string]any {
	accuracy := 0.7 + float64(i)*0.02
	latency := 100 + float64(i)*10

	attrs := []map[string]any{attr("sample.id", "stringValue", id)}
	if e.opts.FailEvery > 0 && i%e.opts.FailEvery == 0 {
		accuracy = 0
		attrs = append(attrs,
			attr("sample.status", "stringValue", "failed"),
			attr("error", "stringValue", "simulated failure"),
		)
	}
	ts := e.timestamp()

	return resourceMetrics(
		map[string]any{
			"name": "llm.eval.accuracy",
			"unit": "ratio",
			"gauge": map[string]any{"dataPoints": []map[string]any{
				{"timeUnixNano": ts, "asDouble": accuracy, "attributes": attrs},
			}},
		},
		map[string]any{
			"name": "llm.eval.latency",
			"unit": "ms",
			"histogram": map[string]any{"dataPoints": []map[string]any{{
				"timeUnixNano":   ts,
				"count":          "1",
				"sum":            latency,
				"min":            latency,
				"max":            latency,
				"bucketCounts":   []string{"0", "0", "1", "0", "0"},
				"explicitBounds": []float64{50, 100, 200, 500},
				"attributes":     attrs,
			}}},
		},
		map[string]any{
			"name": "llm.eval.tokens",
			"unit": "1",
			"sum": map[string]any{
				"dataPoints":             []map[string]any{{"timeUnixNano": ts, "asDouble": totalTokens, "attributes": attrs}},
				"aggregationTemporality": 2,
				"isMonotonic":            true,
			},
		},
	)
}

func (e *emitter) summary() map[string]any {
	return resourceMetrics(map[string]any{
		"name": "llm.eval.accuracy",
		"unit": "ratio",
		"gauge": map[string]any{"dataPoints": []map[string]any{{
			"timeUnixNano": e.timestamp(),
			"asDouble":     0.81,
			"attributes":   []map[string]any{attr("summary", "boolValue", true)},
		}}},
	})
}

func (e *emitter) timestamp() string {
	return strconv.FormatInt(e.now().UnixNano(), 10)
}

func resourceMetrics(metrics ...map[string]any) map[string]any {
	return map[string]any{"resourceMetrics": []map[string]any{{
		"resource": map[string]any{"attributes": []map[string]any{
			attr("service.name", "stringValue", "mock-evaluator"),
		}},
		"scopeMetrics": []map[string]any{{
			"scope":   map[string]any{"name": "mock-evaluator"},
			"metrics": metrics,
		}},
	}}}
}

func attr(key, kind string, value any) map[string]any {
	return map[string]any{"key": key, "value": map[string]any{kind: value}}
}
