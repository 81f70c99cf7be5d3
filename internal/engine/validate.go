package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"stargate/internal/domain"
	"stargate/internal/repo"
)

// DutyRequest asks for a new duty starting on DutyStartDate's calendar day.
type DutyRequest struct {
	Name          string
	RankID        int64
	DutyTitleID   int64
	DutyStartDate time.Time
}

// ValidatedDuty carries the references resolved by Validate into CreateDuty.
type ValidatedDuty struct {
	Person    domain.Person
	Rank      domain.RankRef
	DutyTitle domain.DutyTitleRef
	StartDate time.Time
}

// Validate checks a duty request against the store, stopping at the first
// failure: person, rank, duty title, then duplicate (title, start). It only
// reads; the store constraints remain authoritative under concurrency.
func (e Engine) Validate(ctx context.Context, req DutyRequest) (ValidatedDuty, error) {
	name := strings.TrimSpace(req.Name)
	if req.DutyStartDate.IsZero() {
		return ValidatedDuty{}, invalidReference(SubjectDutyStartDate, "Duty start date is required.")
	}
	start := domain.DateOf(req.DutyStartDate)

	person, err := e.Repo.FindPersonByName(ctx, name)
	if errors.Is(err, repo.ErrNotFound) {
		return ValidatedDuty{}, notFound(SubjectPerson, "Person '%s' not found. Please create the person first before assigning astronaut duties.", name)
	}
	if err != nil {
		return ValidatedDuty{}, unexpected("find person", err)
	}

	rank, err := e.Repo.FindActiveRank(ctx, req.RankID)
	if errors.Is(err, repo.ErrNotFound) {
		return ValidatedDuty{}, invalidReference(SubjectRank, "Rank with ID '%d' not found or is inactive. Please use a valid rank ID.", req.RankID)
	}
	if err != nil {
		return ValidatedDuty{}, unexpected("find rank", err)
	}

	title, err := e.Repo.FindActiveDutyTitle(ctx, req.DutyTitleID)
	if errors.Is(err, repo.ErrNotFound) {
		return ValidatedDuty{}, invalidReference(SubjectDutyTitle, "Duty title with ID '%d' not found or is inactive. Please use a valid duty title ID.", req.DutyTitleID)
	}
	if err != nil {
		return ValidatedDuty{}, unexpected("find duty title", err)
	}

	_, err = e.Repo.FindDutyByTitleAndStart(ctx, title.ID, domain.FormatDate(start))
	if err == nil {
		return ValidatedDuty{}, conflict(SubjectDuplicateDuty, "An astronaut duty with duty title ID '%d' and start date '%s' already exists.", title.ID, domain.FormatDate(start))
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return ValidatedDuty{}, unexpected("find duty", err)
	}

	return ValidatedDuty{
		Person:    person,
		Rank:      domain.RankRef{ID: rank.ID, Abbreviation: rank.Abbreviation},
		DutyTitle: domain.DutyTitleRef{ID: title.ID, Title: title.Title, Retirement: title.Title == e.retirementTitle()},
		StartDate: start,
	}, nil
}
