// Package export persists analytics result sets to a directory.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/davidleathers/workflow-insights-backend/internal/domain/errors"
	"github.com/davidleathers/workflow-insights-backend/internal/domain/eventlog"
	"github.com/davidleathers/workflow-insights-backend/internal/domain/values"
	"github.com/davidleathers/workflow-insights-backend/internal/service/analytics"
	"github.com/davidleathers/workflow-insights-backend/internal/service/insights"
)

// Section names, also used as file base names
const (
	SectionCommonPaths     = "common_paths"
	SectionStepDurations   = "step_durations"
	SectionUserDelays      = "user_delays"
	SectionCaseDurations   = "case_durations"
	SectionSLAViolations   = "sla_violations"
	SectionPathTree        = "path_tree"
	SectionCasePaths       = "case_paths"
	SectionDataQuality     = "data_quality"
	SectionCaseFeatures    = "case_features"
	SectionRecommendations = "recommendations"
	SectionInsights        = "insights"

	CleanedLogName   = "cleaned_log"
	InsightsTextName = "process_insights"
)

// Sections lists every section a full export writes, in write order
var Sections = []string{
	SectionCommonPaths,
	SectionStepDurations,
	SectionUserDelays,
	SectionCaseDurations,
	SectionSLAViolations,
	SectionPathTree,
	SectionCasePaths,
	SectionDataQuality,
	SectionCaseFeatures,
	SectionRecommendations,
	SectionInsights,
}

// SectionsOf maps section names to their payloads. bundle may be nil.
func SectionsOf(report *analytics.Report, bundle *insights.Bundle) map[string]interface{} {
	out := map[string]interface{}{
		SectionCommonPaths:   report.CommonPaths,
		SectionStepDurations: report.StepDurations,
		SectionUserDelays:    report.UserDelays,
		SectionCaseDurations: report.CaseDurations,
		SectionSLAViolations: report.SLAViolations,
		SectionPathTree:      report.PathTree,
		SectionCasePaths:     report.CasePaths,
		SectionDataQuality:   report.DataQuality,
	}
	if bundle != nil {
		out[SectionCaseFeatures] = bundle.Features
		out[SectionRecommendations] = bundle.Recommendations
		out[SectionInsights] = bundle.Insights
	}
	return out
}

// Writer writes result sets into one directory
type Writer struct {
	dir    string
	format values.ExportFormat
	logger *zap.Logger
}

// NewWriter creates a writer for dir. The format must be structured.
func NewWriter(dir string, format values.ExportFormat, logger *zap.Logger) (*Writer, error) {
	if logger == nil {
		return nil, errors.NewConfigError("NIL_LOGGER", "logger cannot be nil")
	}
	if dir == "" {
		return nil, errors.NewConfigError("EMPTY_OUTPUT_DIR", "output directory cannot be empty")
	}
	if !format.IsStructured() {
		return nil, errors.NewConfigError("UNSUPPORTED_FORMAT",
			fmt.Sprintf("format %q cannot hold result sets", format.String()))
	}
	return &Writer{dir: dir, format: format, logger: logger}, nil
}

// Dir returns the output directory
func (w *Writer) Dir() string {
	return w.dir
}

// WriteAll writes every section of report and bundle plus the insights text.
// It returns the paths written, in Sections order.
func (w *Writer) WriteAll(report *analytics.Report, bundle *insights.Bundle) ([]string, error) {
	sections := SectionsOf(report, bundle)
	paths := make([]string, 0, len(sections)+1)
	for _, name := range Sections {
		payload, ok := sections[name]
		if !ok {
			continue
		}
		path, err := w.WriteSection(name, payload)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}

	if bundle != nil {
		text := strings.Join(bundle.Insights.Lines(), "\n") + "\n"
		path := filepath.Join(w.dir, values.MustNewExportFormat(values.FormatPlainText).Filename(InsightsTextName))
		if err := writeAtomic(path, []byte(text)); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}

	w.logger.Info("result sets exported",
		zap.String("dir", w.dir),
		zap.String("format", w.format.String()),
		zap.Int("files", len(paths)),
	)
	return paths, nil
}

// WriteSection encodes one payload into <dir>/<name>.<ext>
func (w *Writer) WriteSection(name string, payload interface{}) (string, error) {
	data, err := Encode(w.format, payload)
	if err != nil {
		return "", err
	}
	path := filepath.Join(w.dir, w.format.Filename(name))
	if err := writeAtomic(path, data); err != nil {
		return "", err
	}
	w.logger.Debug("section written", zap.String("section", name), zap.String("path", path))
	return path, nil
}

// Encode renders payload in the given structured format
func Encode(format values.ExportFormat, payload interface{}) ([]byte, error) {
	switch format.String() {
	case values.FormatJSON:
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return nil, errors.NewInternalError("encode json").WithCause(err)
		}
		return append(data, '\n'), nil
	case values.FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(payload); err != nil {
			return nil, errors.NewInternalError("encode yaml").WithCause(err)
		}
		if err := enc.Close(); err != nil {
			return nil, errors.NewInternalError("encode yaml").WithCause(err)
		}
		return buf.Bytes(), nil
	default:
		return nil, errors.NewValidationError("UNSUPPORTED_FORMAT",
			fmt.Sprintf("format %q cannot hold result sets", format.String()))
	}
}

// CleanedLogHeader is the column order of the cleaned log export
var CleanedLogHeader = []string{"case_id", "activity", "timestamp", "user", "role", "story_points", "step", "duration_minutes"}

// WriteCleanedLog writes the normalized log with step index and duration
func (w *Writer) WriteCleanedLog(log *eventlog.EventLog) (string, error) {
	data, err := EncodeCleanedLog(log)
	if err != nil {
		return "", err
	}
	path := filepath.Join(w.dir, values.CSVFormat().Filename(CleanedLogName))
	if err := writeAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// EncodeCleanedLog renders the log as CSV in traversal order. Absent values
// are empty cells.
func EncodeCleanedLog(log *eventlog.EventLog) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(CleanedLogHeader); err != nil {
		return nil, errors.NewInternalError("encode csv").WithCause(err)
	}

	for _, c := range analytics.AnnotateAll(log.Cases()) {
		for _, s := range c.Steps {
			ts, points, duration := "", "", ""
			if s.HasTimestamp() {
				ts = s.Timestamp.Format(time.RFC3339)
			}
			if s.StoryPoints != nil {
				points = strconv.FormatFloat(*s.StoryPoints, 'f', -1, 64)
			}
			if mins, ok := s.Minutes(); ok {
				duration = mins.String()
			}
			row := []string{s.CaseID, s.Activity, ts, s.UserName(), s.RoleName(), points, strconv.Itoa(s.Index), duration}
			if err := cw.Write(row); err != nil {
				return nil, errors.NewInternalError("encode csv").WithCause(err)
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, errors.NewInternalError("encode csv").WithCause(err)
	}
	return buf.Bytes(), nil
}

// writeAtomic writes to a temp file in the target directory and renames it
// over path, so readers never observe a partial file.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewInternalError("create output directory").WithCause(err)
	}
	tmpPath := fmt.Sprintf("%s.%d.tmp", path, time.Now().UnixNano())
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return errors.NewInternalError("write temp file").WithCause(err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return errors.NewInternalError("replace output file").WithCause(err)
	}
	return nil
}
