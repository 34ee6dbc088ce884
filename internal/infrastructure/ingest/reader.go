// Package ingest turns CSV event exports into an event log.
package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/davidleathers/workflow-insights-backend/internal/domain/errors"
	"github.com/davidleathers/workflow-insights-backend/internal/domain/eventlog"
)

// Column names after normalization
const (
	ColCaseID      = "case_id"
	ColActivity    = "activity"
	ColTimestamp   = "timestamp"
	ColUser        = "user"
	ColRole        = "role"
	ColStoryPoints = "story_points"
)

// RequiredColumns must all be present in the header. User is optional as a
// column; role and story_points must exist even if every value is empty.
var RequiredColumns = []string{ColCaseID, ColActivity, ColTimestamp, ColRole, ColStoryPoints}

// TimestampLayouts are tried in order for every timestamp cell
var TimestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
}

// Result is an ingested log plus the row-level problems that were recovered
type Result struct {
	Log    *eventlog.EventLog
	Rows   int
	Issues []*errors.AppError
}

// Reader parses CSV event logs
type Reader struct {
	logger   *zap.Logger
	location *time.Location
}

// NewReader creates a reader. Timestamps without a zone are read in loc;
// nil means UTC.
func NewReader(logger *zap.Logger, loc *time.Location) (*Reader, error) {
	if logger == nil {
		return nil, errors.NewConfigError("NIL_LOGGER", "logger cannot be nil")
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Reader{logger: logger, location: loc}, nil
}

// ReadFile opens path and reads it
func (r *Reader) ReadFile(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewNotFoundError("event log file").WithCause(err)
	}
	defer f.Close()
	return r.Read(ctx, f)
}

// Read parses a CSV stream. A missing required column is a schema error and
// nothing is returned. Unparseable cells become absent values and are listed
// in Result.Issues; rows without a case id or activity are skipped. Records
// are ordered by case id with input order kept inside each case.
func (r *Reader) Read(ctx context.Context, in io.Reader) (*Result, error) {
	cr := csv.NewReader(in)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.NewSchemaError(RequiredColumns)
	}
	if err != nil {
		return nil, errors.NewParseError("header", 0, err)
	}

	cols := indexColumns(header)
	var missing []string
	for _, c := range RequiredColumns {
		if _, ok := cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, errors.NewSchemaError(missing)
	}

	res := &Result{}
	var records []eventlog.EventRecord
	for row := 0; ; row++ {
		if row%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewParseError("row", row, err)
		}
		res.Rows++

		rec, issues, ok := r.parseRow(cols, fields, row)
		res.Issues = append(res.Issues, issues...)
		if ok {
			records = append(records, rec)
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CaseID < records[j].CaseID
	})

	log, err := eventlog.New(records)
	if err != nil {
		return nil, err
	}
	res.Log = log

	r.logger.Info("event log ingested",
		zap.Int("rows", res.Rows),
		zap.Int("cases", log.Len()),
		zap.Int("parse_issues", len(res.Issues)),
	)
	return res, nil
}

func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	return cols
}

func cell(cols map[string]int, fields []string, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[idx])
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *Reader) parseRow(cols map[string]int, fields []string, row int) (eventlog.EventRecord, []*errors.AppError, bool) {
	var issues []*errors.AppError
	rec := eventlog.EventRecord{
		CaseID:   cell(cols, fields, ColCaseID),
		Activity: cell(cols, fields, ColActivity),
		User:     optional(cell(cols, fields, ColUser)),
		Role:     optional(cell(cols, fields, ColRole)),
		Row:      row,
	}

	if rec.CaseID == "" {
		return rec, append(issues, errors.NewParseError(ColCaseID, row, fmt.Errorf("empty value"))), false
	}
	if rec.Activity == "" {
		return rec, append(issues, errors.NewParseError(ColActivity, row, fmt.Errorf("empty value"))), false
	}

	if ts := cell(cols, fields, ColTimestamp); ts != "" {
		parsed, err := r.parseTime(ts)
		if err != nil {
			issues = append(issues, errors.NewParseError(ColTimestamp, row, err))
		} else {
			rec.Timestamp = parsed
		}
	} else {
		issues = append(issues, errors.NewParseError(ColTimestamp, row, fmt.Errorf("empty value")))
	}

	if sp := cell(cols, fields, ColStoryPoints); sp != "" {
		v, err := strconv.ParseFloat(sp, 64)
		if err == nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
			err = fmt.Errorf("not a finite number")
		}
		if err != nil {
			issues = append(issues, errors.NewParseError(ColStoryPoints, row, err))
		} else {
			rec.StoryPoints = &v
		}
	}

	return rec, issues, true
}

func (r *Reader) parseTime(s string) (time.Time, error) {
	for _, layout := range TimestampLayouts {
		if t, err := time.ParseInLocation(layout, s, r.location); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
