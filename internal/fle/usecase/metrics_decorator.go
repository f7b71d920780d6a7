package usecase

import (
	"context"
	"io"
	"time"

	"github.com/cosmosfle/fle/internal/metrics"
)

// EncryptDecryptor is the surface of Processor that the metrics
// decorator wraps, following a decorator-over-interface pattern
// (cf. internal/auth/usecase/metrics_decorator.go).
type EncryptDecryptor interface {
	Encrypt(ctx context.Context, r io.Reader) (io.Reader, error)
	Decrypt(ctx context.Context, r io.Reader) (io.Reader, error)
}

const metricsDomain = "fle"

type processorWithMetrics struct {
	next    EncryptDecryptor
	metrics metrics.BusinessMetrics
}

// NewProcessorWithMetrics decorates next, recording operation counts
// and durations for "encrypt" and "decrypt".
func NewProcessorWithMetrics(next EncryptDecryptor, businessMetrics metrics.BusinessMetrics) EncryptDecryptor {
	return &processorWithMetrics{next: next, metrics: businessMetrics}
}

func (p *processorWithMetrics) Encrypt(ctx context.Context, r io.Reader) (io.Reader, error) {
	start := time.Now()
	out, err := p.next.Encrypt(ctx, r)
	p.record(ctx, "encrypt", start, err)
	return out, err
}

func (p *processorWithMetrics) Decrypt(ctx context.Context, r io.Reader) (io.Reader, error) {
	start := time.Now()
	out, err := p.next.Decrypt(ctx, r)
	p.record(ctx, "decrypt", start, err)
	return out, err
}

func (p *processorWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	p.metrics.RecordOperation(ctx, metricsDomain, operation, status)
	p.metrics.RecordDuration(ctx, metricsDomain, operation, time.Since(start), status)
}
