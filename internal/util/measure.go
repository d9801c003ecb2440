package util

import (
	"context"
	"time"
)

// Measure wraps fn so every call records its duration under operation,
// labelled "ok" or "error". It composes at call sites:
//
//	get := util.Measure(m, "catalog.get_product", s.fetchProduct)
func Measure[T any](m *Metrics, operation string, fn func(context.Context) (T, error)) func(context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		start := time.Now()
		v, err := fn(ctx)

		status := "ok"
		if err != nil {
			status = "error"
		}
		if m != nil {
			m.OperationDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
		}
		return v, err
	}
}
