// Package schedule reads the line-oriented schedule file into a validated
// types.Schedule.
//
// File format:
//
//	# comment
//	{"Jan": 0.10, "Jul": 0.90}
//	front lawn valve 3; 10 min; Mon,Wed,Fri; http://10.0.0.7/
//
// Exactly one line starts with "{" and holds the monthly ET reference table.
// Every other non-comment, non-blank line describes one valve with four
// semicolon-separated fields: a label ending in the valve id, a duration as
// "<n> sec" or "<n> min", the watering days, and the actuator address.
package schedule

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"sprinkler/internal/types"
)

// entryFields is the number of semicolon-separated fields on a valve line.
const entryFields = 4

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load opens and parses the schedule file at path. loadedAt becomes the
// ScheduledStart of every entry.
func Load(path string, loadedAt time.Time) (*types.Schedule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeScheduleMalformed,
			"cannot open schedule file", err, map[string]any{"path": path})
	}
	defer f.Close()

	s, err := Parse(f, loadedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Parse reads a schedule from r. Any malformed line aborts parsing with a
// schedule_malformed AppError naming the line.
func Parse(r io.Reader, loadedAt time.Time) (*types.Schedule, error) {
	var sched types.Schedule
	refLine, lineNo := 0, 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "", strings.HasPrefix(line, "#"):
			continue

		case strings.HasPrefix(line, "{"):
			if refLine != 0 {
				return nil, malformed(lineNo, fmt.Sprintf("second reference table (first on line %d)", refLine), nil)
			}
			table, err := parseReference(line)
			if err != nil {
				return nil, malformed(lineNo, "invalid reference table", err)
			}
			sched.Reference = table
			refLine = lineNo

		default:
			entry, err := parseEntry(line)
			if err != nil {
				return nil, malformed(lineNo, "invalid valve line", err)
			}
			entry.Line = lineNo
			entry.ScheduledStart = loadedAt
			sched.Entries = append(sched.Entries, entry)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeScheduleMalformed, "read schedule", err)
	}

	if refLine == 0 {
		return nil, types.NewAppError(types.ErrCodeScheduleMalformed,
			"schedule has no reference table line", nil)
	}

	return &sched, nil
}

func parseReference(line string) (types.ReferenceTable, error) {
	var raw map[string]float64
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return nil, err
	}
	return types.NewReferenceTable(raw)
}

func parseEntry(line string) (types.ScheduleEntry, error) {
	var e types.ScheduleEntry

	fields := strings.Split(line, ";")
	if len(fields) < entryFields {
		return e, fmt.Errorf("expected %d fields, got %d", entryFields, len(fields))
	}
	for _, extra := range fields[entryFields:] {
		if strings.TrimSpace(extra) != "" {
			return e, fmt.Errorf("unexpected extra field %q", strings.TrimSpace(extra))
		}
	}

	name, id, err := parseValve(fields[0])
	if err != nil {
		return e, err
	}
	dur, err := parseDuration(fields[1])
	if err != nil {
		return e, err
	}
	days, err := parseDays(fields[2])
	if err != nil {
		return e, err
	}

	e = types.ScheduleEntry{
		Name:       name,
		ValveID:    id,
		Duration:   dur,
		ActiveDays: days,
		Address:    normalizeAddress(fields[3]),
	}
	if err := validate.Struct(e); err != nil {
		return e, err
	}
	return e, nil
}

// parseValve takes the label field; its last token is the valve id.
func parseValve(field string) (string, int, error) {
	tokens := strings.Fields(field)
	if len(tokens) < 2 {
		return "", 0, fmt.Errorf("valve label %q must end in \"<name> <id>\"", strings.TrimSpace(field))
	}
	id, err := strconv.Atoi(tokens[len(tokens)-1])
	if err != nil {
		return "", 0, fmt.Errorf("valve id %q is not an integer", tokens[len(tokens)-1])
	}
	if id < 0 {
		return "", 0, fmt.Errorf("valve id %d is negative", id)
	}
	return strings.Join(tokens[:len(tokens)-1], " "), id, nil
}

func parseDuration(field string) (time.Duration, error) {
	tokens := strings.Fields(field)
	if len(tokens) != 2 {
		return 0, fmt.Errorf("duration %q must be \"<n> sec\" or \"<n> min\"", strings.TrimSpace(field))
	}
	n, err := strconv.Atoi(tokens[0])
	if err != nil {
		return 0, fmt.Errorf("duration amount %q is not an integer", tokens[0])
	}
	if n <= 0 {
		return 0, fmt.Errorf("duration %d must be positive", n)
	}
	var unit time.Duration
	switch strings.ToLower(tokens[1]) {
	case "sec":
		unit = time.Second
	case "min":
		unit = time.Minute
	default:
		return 0, fmt.Errorf("duration unit %q must be sec or min", tokens[1])
	}
	if int64(n) > math.MaxInt64/int64(unit) {
		return 0, fmt.Errorf("duration %d %s is too long", n, tokens[1])
	}
	return time.Duration(n) * unit, nil
}

func parseDays(field string) (types.Weekdays, error) {
	var days types.Weekdays
	for _, tok := range strings.Split(field, ",") {
		idx, err := types.ParseWeekday(tok)
		if err != nil {
			return days, err
		}
		days[idx] = true
	}
	return days, nil
}

// normalizeAddress trims the actuator address and adds an http scheme to a
// bare host so that "10.0.0.7" and "http://10.0.0.7" are equivalent.
func normalizeAddress(field string) string {
	addr := strings.TrimSpace(field)
	if addr != "" && !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return addr
}

func malformed(line int, msg string, err error) *types.AppError {
	return types.NewAppErrorWithDetails(types.ErrCodeScheduleMalformed,
		fmt.Sprintf("line %d: %s", line, msg), err,
		map[string]any{"line": line})
}
