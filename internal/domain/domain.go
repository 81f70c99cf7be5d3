package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the storage and wire format of every date-only value.
const DateLayout = "2006-01-02"

type Person struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Rank struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
	Level        int    `json:"level"`
	IsActive     bool   `json:"is_active"`
}

type DutyTitle struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"is_active"`
}

type AstronautDetail struct {
	PersonID        int64   `json:"person_id"`
	CareerStartDate string  `json:"career_start_date" format:"date"`
	CareerEndDate   *string `json:"career_end_date,omitempty" format:"date"`
}

// AstronautDuty is one append-only interval of a person's career.
// A nil DutyEndDate marks the person's current duty.
type AstronautDuty struct {
	ID            int64   `json:"id"`
	PersonID      int64   `json:"person_id"`
	RankID        int64   `json:"rank_id"`
	DutyTitleID   int64   `json:"duty_title_id"`
	DutyStartDate string  `json:"duty_start_date" format:"date"`
	DutyEndDate   *string `json:"duty_end_date,omitempty" format:"date"`
}

// DutyRecord is a duty annotated with readable rank and title text.
type DutyRecord struct {
	AstronautDuty
	Rank      string `json:"rank"`
	DutyTitle string `json:"duty_title"`
}

// RankRef and DutyTitleRef are resolved once by validation and carried
// through the write path.
type RankRef struct {
	ID           int64
	Abbreviation string
}

type DutyTitleRef struct {
	ID         int64
	Title      string
	Retirement bool
}

// PersonAstronaut is a person with career dates and current assignment.
type PersonAstronaut struct {
	PersonID         int64   `json:"person_id"`
	Name             string  `json:"name"`
	CurrentRank      string  `json:"current_rank,omitempty"`
	CurrentDutyTitle string  `json:"current_duty_title,omitempty"`
	CareerStartDate  *string `json:"career_start_date,omitempty" format:"date"`
	CareerEndDate    *string `json:"career_end_date,omitempty" format:"date"`
}

type AuditEntry struct {
	ID          int64  `json:"id"`
	Level       string `json:"level" enum:"DEBUG,INFO,WARN,ERROR"`
	Message     string `json:"message"`
	Error       string `json:"error,omitempty"`
	Source      string `json:"source,omitempty"`
	Method      string `json:"method,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
	Payload     string `json:"payload_json,omitempty"`
	Timestamp   string `json:"timestamp" format:"date-time"`
	MachineName string `json:"machine_name,omitempty"`
	Environment string `json:"environment,omitempty"`
}

const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// ParseDate accepts YYYY-MM-DD or an RFC3339 timestamp and returns the
// UTC midnight of that calendar day.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return DateOf(t), nil
}

// DateOf truncates t to its calendar day, keeping the day t names in its own zone.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DayBefore returns the date-only value one calendar day before t.
func DayBefore(t time.Time) time.Time {
	return DateOf(t).AddDate(0, 0, -1)
}
