package server

import (
	"stargate/internal/domain"
)

// Result is the envelope shared by every response, success or failure.
type Result struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	ErrorKind    string `json:"error_kind,omitempty" enum:"not_found,invalid_reference,conflict,unexpected,invalid_request"`
	ResponseCode int    `json:"response_code"`
}

func ok(code int, message string) Result {
	return Result{Success: true, Message: message, ResponseCode: code}
}

// Request payloads

type CreatePersonRequest struct {
	Name string `json:"name" minLength:"1" doc:"Unique person name"`
}

type CreateDutyRequest struct {
	Name          string `json:"name" minLength:"1"`
	RankID        int64  `json:"rank_id" minimum:"1"`
	DutyTitleID   int64  `json:"duty_title_id" minimum:"1"`
	DutyStartDate string `json:"duty_start_date" doc:"YYYY-MM-DD or RFC3339 timestamp; only the calendar day is kept" example:"2024-03-01"`
}

// Response payloads

type PeopleResult struct {
	Result
	People []domain.PersonAstronaut `json:"people"`
}

type PersonResult struct {
	Result
	Person *domain.PersonAstronaut `json:"person"`
}

type PersonCreatedResult struct {
	Result
	ID     int64         `json:"id"`
	Person domain.Person `json:"person"`
}

type DutiesResult struct {
	Result
	Person          *domain.PersonAstronaut `json:"person"`
	AstronautDuties []domain.DutyRecord     `json:"astronaut_duties"`
}

type DutyCreatedResult struct {
	Result
	ID   int64                `json:"id"`
	Duty domain.AstronautDuty `json:"duty"`
}

type RanksResult struct {
	Result
	Ranks []domain.Rank `json:"ranks"`
}

type DutyTitlesResult struct {
	Result
	DutyTitles []domain.DutyTitle `json:"duty_titles"`
}

type LogsResult struct {
	Result
	Logs  []domain.AuditEntry `json:"logs"`
	Count int                 `json:"count"`
}
