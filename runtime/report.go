package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pithecene-io/sluice/metrics"
)

// FollowReport is the structured JSON report written by --report.
type FollowReport struct {
	Feed       string        `json:"feed"`
	Database   string        `json:"database"`
	Outcome    OutcomeStatus `json:"outcome"`
	Message    string        `json:"message"`
	ExitCode   int           `json:"exit_code"`
	DurationMs int64         `json:"duration_ms"`
	Cursor     string        `json:"cursor"`
	Records    int64         `json:"records"`

	AdapterFailures int64 `json:"adapter_failures"`

	Policy  *ReportPolicy     `json:"policy,omitempty"`
	Metrics *metrics.Snapshot `json:"metrics"`
}

// ReportPolicy holds policy stats in the report.
type ReportPolicy struct {
	Name             string `json:"name"`
	RecordsReceived  int64  `json:"records_received"`
	RecordsPersisted int64  `json:"records_persisted"`
	Flushes          int64  `json:"flushes"`
	Errors           int64  `json:"errors"`
	LastPersisted    string `json:"last_persisted,omitempty"`
}

// BuildFollowReport composes a report from a finished session.
func (f *Follower) BuildFollowReport(result *FollowResult) *FollowReport {
	snap := result.Metrics
	report := &FollowReport{
		Feed:            f.config.Meta.Name,
		Database:        f.config.Meta.Database,
		Outcome:         result.Outcome.Status,
		Message:         result.Outcome.Message,
		ExitCode:        result.Outcome.ExitCode(),
		DurationMs:      result.Duration.Milliseconds(),
		Cursor:          result.Cursor.String(),
		Records:         result.Records,
		AdapterFailures: result.AdapterFailures,
		Metrics:         &snap,
	}
	if f.config.Policy != nil {
		ps := result.PolicyStats
		report.Policy = &ReportPolicy{
			Name:             f.config.PolicyName,
			RecordsReceived:  ps.TotalRecords,
			RecordsPersisted: ps.RecordsPersisted,
			Flushes:          ps.FlushCount,
			Errors:           ps.Errors,
			LastPersisted:    ps.LastPersisted.String(),
		}
	}
	return report
}

// WriteFollowReport writes the report as JSON to path. "-" writes to stderr.
func WriteFollowReport(report *FollowReport, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}
	if path == "-" {
		return writeReportTo(report, os.Stderr)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	if err := writeReportTo(report, f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return f.Close()
}

func writeReportTo(report *FollowReport, w io.Writer) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
