package serialization

import (
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	reserrors "github.com/toolpool-dev/toolpool/internal/resource/errors"
	"github.com/toolpool-dev/toolpool/pkg/telemetry"
)

// Profiler wraps a Codec with wall-clock timing capture. Statistics
// accumulate monotonically for the process lifetime and are never reset.
//
// A failed encode or decode still contributes its duration to the running
// statistics: the accounting is symmetric so averages reflect the real cost
// of every attempted operation, not only the successful ones.
type Profiler struct {
	codec Codec

	encodeCount atomic.Int64
	decodeCount atomic.Int64
	encodeNanos atomic.Int64
	decodeNanos atomic.Int64

	tracer telemetry.Tracer
	logger *slog.Logger
}

// NewProfiler wraps codec with timing capture. A nil codec defaults to JSON;
// nil collaborators fall back to no-op implementations.
func NewProfiler(codec Codec, tracer telemetry.Tracer, logger *slog.Logger) *Profiler {
	if codec == nil {
		codec = JSONCodec{}
	}
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Profiler{
		codec:  codec,
		tracer: tracer,
		logger: logger.With("component", "serialization", "codec", codec.Name()),
	}
}

// CodecName returns the name of the wrapped codec.
func (p *Profiler) CodecName() string { return p.codec.Name() }

// Encode converts a structured value to its exchange-format representation,
// recording the attempt's duration. Codec failures are recorded on the span
// and propagate wrapped in an EncodingError.
func (p *Profiler) Encode(v any) (string, error) {
	span := p.tracer.StartSpan("serialization.encode", telemetry.Attrs{telemetry.AttrCodec: p.codec.Name()})
	defer span.End()

	start := time.Now()
	data, err := p.codec.Marshal(v)
	elapsed := time.Since(start)

	p.encodeCount.Add(1)
	p.encodeNanos.Add(elapsed.Nanoseconds())

	if err != nil {
		span.RecordError(err)
		span.AddEvent("encode", telemetry.Attrs{telemetry.AttrOutcome: telemetry.OutcomeError})
		return "", &reserrors.EncodingError{Codec: p.codec.Name(), Err: err}
	}

	span.AddEvent("encode", telemetry.Attrs{"bytes": strconv.Itoa(len(data))})
	return string(data), nil
}

// Decode is the symmetric operation, populating out from the exchange-format
// text with its own running statistics.
func (p *Profiler) Decode(text string, out any) error {
	span := p.tracer.StartSpan("serialization.decode", telemetry.Attrs{telemetry.AttrCodec: p.codec.Name()})
	defer span.End()

	start := time.Now()
	err := p.codec.Unmarshal([]byte(text), out)
	elapsed := time.Since(start)

	p.decodeCount.Add(1)
	p.decodeNanos.Add(elapsed.Nanoseconds())

	if err != nil {
		span.RecordError(err)
		span.AddEvent("decode", telemetry.Attrs{telemetry.AttrOutcome: telemetry.OutcomeError})
		return &reserrors.DecodingError{Codec: p.codec.Name(), Err: err}
	}

	span.AddEvent("decode", telemetry.Attrs{"bytes": strconv.Itoa(len(text))})
	return nil
}

// Stats holds the process-wide running serialization statistics.
type Stats struct {
	// EncodeCount is the number of attempted encode operations.
	EncodeCount int64 `json:"encode_count"`

	// DecodeCount is the number of attempted decode operations.
	DecodeCount int64 `json:"decode_count"`

	// TotalEncodeTime is the cumulative wall-clock time spent encoding.
	TotalEncodeTime time.Duration `json:"total_encode_time"`

	// TotalDecodeTime is the cumulative wall-clock time spent decoding.
	TotalDecodeTime time.Duration `json:"total_decode_time"`

	// AvgEncodeTime is TotalEncodeTime / EncodeCount, zero before the first
	// encode.
	AvgEncodeTime time.Duration `json:"avg_encode_time"`

	// AvgDecodeTime is TotalDecodeTime / DecodeCount, zero before the first
	// decode.
	AvgDecodeTime time.Duration `json:"avg_decode_time"`
}

// GetStats returns a snapshot of the running statistics. Counters are read
// atomically; the derived averages always equal total/count at snapshot time.
func (p *Profiler) GetStats() Stats {
	stats := Stats{
		EncodeCount:     p.encodeCount.Load(),
		DecodeCount:     p.decodeCount.Load(),
		TotalEncodeTime: time.Duration(p.encodeNanos.Load()),
		TotalDecodeTime: time.Duration(p.decodeNanos.Load()),
	}
	if stats.EncodeCount > 0 {
		stats.AvgEncodeTime = stats.TotalEncodeTime / time.Duration(stats.EncodeCount)
	}
	if stats.DecodeCount > 0 {
		stats.AvgDecodeTime = stats.TotalDecodeTime / time.Duration(stats.DecodeCount)
	}
	return stats
}
