package pipeline

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JakeFAU/eu-innovation-monitor/internal/discovery"
	"github.com/JakeFAU/eu-innovation-monitor/internal/document"
	"github.com/JakeFAU/eu-innovation-monitor/internal/metrics"
)

// Reasons reported when the aggregate itself cannot be used.
const (
	ReasonNoDiscoveryFile  = "no discovery file"
	ReasonUnreadableInput  = "discovery file unreadable"
	ReasonRunCancelled     = "run cancelled"
	skipReasonNotAttempted = "not attempted: run cancelled"
)

// ItemProcessor handles one discovery item.
type ItemProcessor interface {
	Process(ctx context.Context, runID string, item discovery.Item) Result
}

// Skip is a summary entry for an item that produced no record.
type Skip struct {
	URL    string `json:"url"`
	Stage  Stage  `json:"stage"`
	Reason string `json:"reason"`
}

// Summary is printed once per run.
type Summary struct {
	RunID     string   `json:"run_id,omitempty"`
	Processed int      `json:"processed"`
	NDJSON    string   `json:"ndjson"`
	URLs      []string `json:"urls"`
	Skipped   []Skip   `json:"skipped,omitempty"`
	Reason    string   `json:"reason,omitempty"`
}

// InputFailure is the summary for a run whose aggregate could not be read.
type InputFailure struct {
	Processed int    `json:"processed"`
	Reason    string `json:"reason"`
}

// InputFailureFor maps a discovery.Load error to its summary.
func InputFailureFor(err error) InputFailure {
	if errors.Is(err, discovery.ErrNotFound) {
		return InputFailure{Reason: ReasonNoDiscoveryFile}
	}
	return InputFailure{Reason: ReasonUnreadableInput}
}

// Driver processes items sequentially and isolates per-item failures.
type Driver struct {
	processor ItemProcessor
	writer    document.RecordWriter
	clock     document.Clock
	logger    *zap.Logger
}

// NewDriver creates a Driver. writer reports the shard path for the summary.
func NewDriver(processor ItemProcessor, writer document.RecordWriter, clock document.Clock, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{processor: processor, writer: writer, clock: clock, logger: logger.Named("driver")}
}

// Run processes items in order. A cancelled context stops the run between
// items; remaining items are reported as skipped.
func (d *Driver) Run(ctx context.Context, runID string, items []discovery.Item) Summary {
	summary := Summary{
		RunID:  runID,
		NDJSON: d.writer.CurrentPath(),
		URLs:   []string{},
	}
	d.logger.Info("run started", zap.String("run_id", runID), zap.Int("items", len(items)))

	for i, item := range items {
		if ctx.Err() != nil {
			summary.Reason = ReasonRunCancelled
			for _, rest := range items[i:] {
				summary.Skipped = append(summary.Skipped, Skip{URL: rest.URL, Stage: StageInput, Reason: skipReasonNotAttempted})
			}
			break
		}
		res := d.processor.Process(ctx, runID, item)
		if res.Written() {
			summary.Processed++
			summary.URLs = append(summary.URLs, res.Record.URL)
			if res.Shard != "" {
				summary.NDJSON = res.Shard
			}
			continue
		}
		summary.Skipped = append(summary.Skipped, Skip{URL: res.URL, Stage: res.Stage, Reason: res.Reason})
	}

	if d.clock != nil {
		metrics.ObserveRun(d.clock.Now())
	}
	d.logger.Info("run finished",
		zap.String("run_id", runID),
		zap.Int("processed", summary.Processed),
		zap.Int("skipped", len(summary.Skipped)),
		zap.String("ndjson", summary.NDJSON),
	)
	return summary
}
