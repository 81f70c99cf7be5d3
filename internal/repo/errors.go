package repo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrUniqueViolation matches any *ConstraintError via errors.Is.
var ErrUniqueViolation = errors.New("unique constraint violation")

// Constraint names as declared by the migrations.
const (
	ConstraintPersonName      = "ux_person_name"
	ConstraintOpenDuty        = "ux_astronaut_duty_open"
	ConstraintDutyTitleStart  = "ux_astronaut_duty_title_start"
	ConstraintAstronautDetail = "ux_astronaut_detail_person"
)

// ConstraintError is a unique violation reported by the store.
type ConstraintError struct {
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("unique constraint %s violated: %v", e.Constraint, e.Err)
}

func (e *ConstraintError) Unwrap() error { return e.Err }

func (e *ConstraintError) Is(target error) bool { return target == ErrUniqueViolation }

// ConstraintOf returns the violated constraint name, or "" when err is not a unique violation.
func ConstraintOf(err error) string {
	var ce *ConstraintError
	if errors.As(err, &ce) {
		return ce.Constraint
	}
	return ""
}

// sqliteColumns maps the column lists SQLite reports to index names.
var sqliteColumns = map[string]string{
	"person.name":                  ConstraintPersonName,
	"astronaut_duty.person_id":     ConstraintOpenDuty,
	"astronaut_duty.duty_title_id": ConstraintDutyTitleStart,
	"astronaut_detail.person_id":   ConstraintAstronautDetail,
}

// classify turns driver-specific unique violations into *ConstraintError.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY ||
			(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE")) {
			return &ConstraintError{Constraint: sqliteConstraint(se.Error()), Err: err}
		}
		return err
	}
	var pe *pgconn.PgError
	if errors.As(err, &pe) && pe.Code == "23505" {
		return &ConstraintError{Constraint: pe.ConstraintName, Err: err}
	}
	return err
}

// sqliteConstraint extracts the index name from a message such as
// "UNIQUE constraint failed: astronaut_duty.duty_title_id, astronaut_duty.duty_start_date".
func sqliteConstraint(msg string) string {
	const marker = "UNIQUE constraint failed: "
	i := strings.Index(msg, marker)
	if i < 0 {
		return ""
	}
	cols := msg[i+len(marker):]
	if j := strings.IndexAny(cols, " ,("); j >= 0 {
		cols = cols[:j]
	}
	if name, ok := sqliteColumns[cols]; ok {
		return name
	}
	return cols
}
