package schema

import (
	"errors"
	"fmt"
	"strings"

	"fleetdocs-service/internal/domain/fleet"
)

// ErrSchemaResolution matches any SchemaResolutionError via errors.Is.
var ErrSchemaResolution = errors.New("schema resolution failed")

// SchemaResolutionError reports required columns that could not be found in
// a source table. It is fatal for the run.
type SchemaResolutionError struct {
	Role    fleet.Role
	Mode    Mode
	Missing []string
	Found   []string
}

func (e *SchemaResolutionError) Error() string {
	what := "required column(s)"
	if e.Mode == ModeStrict {
		what = "expected header(s)"
	}
	return fmt.Sprintf("%s table: missing %s %s (found headers: %s)",
		e.Role, what, strings.Join(e.Missing, ", "), strings.Join(e.Found, ", "))
}

func (e *SchemaResolutionError) Is(target error) bool {
	return target == ErrSchemaResolution
}

// DateParseWarning records a date cell that could not be parsed and was
// treated as unknown.
type DateParseWarning struct {
	Role   fleet.Role `json:"role"`
	Row    int        `json:"row"`
	Column string     `json:"column"`
	Value  string     `json:"value"`
}

func (w DateParseWarning) String() string {
	return fmt.Sprintf("%s row %d: unparseable date %q in column %q", w.Role, w.Row, w.Value, w.Column)
}
