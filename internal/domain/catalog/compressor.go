package catalog

import (
	"context"
	"runtime"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/semaphore"
)

// Processed holds the compressed picture and its thumbnail.
type Processed struct {
	Image     *Image
	Thumbnail *Image
}

// CompressorOptions configures a Compressor. Zero values select defaults.
type CompressorOptions struct {
	// Workers bounds how many images are re-encoded at once.
	// Defaults to GOMAXPROCS.
	Workers int
	// ThumbnailWidth is the maximum thumbnail width in pixels. Defaults to 300.
	ThumbnailWidth int
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Compressor runs the CPU-bound image re-encode on a bounded number of
// goroutines so uploads cannot starve request handling.
type Compressor struct {
	sem        *semaphore.Weighted
	thumbWidth int

	tracer    trace.Tracer
	sizeBytes metric.Int64Histogram
	queueWait metric.Float64Histogram
}

// NewCompressor creates a Compressor.
func NewCompressor(opts CompressorOptions) (*Compressor, error) {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.ThumbnailWidth <= 0 {
		opts.ThumbnailWidth = 300
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = tracenoop.NewTracerProvider()
	}
	if opts.MeterProvider == nil {
		opts.MeterProvider = metricnoop.NewMeterProvider()
	}

	meter := opts.MeterProvider.Meter("sqshop/catalog")
	sizeBytes, err := meter.Int64Histogram("sqshop.catalog.image.size",
		metric.WithDescription("Size of item images before and after compression"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create size histogram")
	}
	queueWait, err := meter.Float64Histogram("sqshop.catalog.image.queue_wait",
		metric.WithDescription("Time spent waiting for a free compression worker"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create queue wait histogram")
	}

	return &Compressor{
		sem:        semaphore.NewWeighted(int64(opts.Workers)),
		thumbWidth: opts.ThumbnailWidth,
		tracer:     opts.TracerProvider.Tracer("sqshop/catalog"),
		sizeBytes:  sizeBytes,
		queueWait:  queueWait,
	}, nil
}

// Process compresses raw and derives its thumbnail. It blocks until a worker
// slot is free or ctx is done.
func (c *Compressor) Process(ctx context.Context, raw []byte, name string) (_ *Processed, rerr error) {
	ctx, span := c.tracer.Start(ctx, "catalog.CompressImage",
		trace.WithAttributes(
			attribute.String("image.name", name),
			attribute.Int("image.raw_bytes", len(raw)),
		),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	start := time.Now()
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, errors.Wrap(err, "wait for compression worker")
	}
	defer c.sem.Release(1)
	c.queueWait.Record(ctx, time.Since(start).Seconds())

	src, err := decode(raw, name)
	if err != nil {
		return nil, err
	}
	rgb := toRGB(src)

	img, err := encode(rgb, name)
	if err != nil {
		return nil, err
	}
	thumb, err := thumbnail(rgb, name, c.thumbWidth)
	if err != nil {
		return nil, err
	}

	c.sizeBytes.Record(ctx, int64(len(raw)), metric.WithAttributes(attribute.String("stage", "raw")))
	c.sizeBytes.Record(ctx, int64(len(img.Data)), metric.WithAttributes(attribute.String("stage", "compressed")))
	span.SetAttributes(attribute.Int("image.compressed_bytes", len(img.Data)))

	return &Processed{Image: img, Thumbnail: thumb}, nil
}
