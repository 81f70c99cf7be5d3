package engine

import (
	"context"
	"errors"

	"stargate/internal/domain"
	"stargate/internal/repo"
)

// CurrentDuty is a person's present assignment. Found is false for unknown
// persons; Rank and DutyTitle are empty when no duty is open.
type CurrentDuty struct {
	Found     bool
	Person    domain.Person
	Rank      string
	DutyTitle string
	Duty      *domain.DutyRecord
}

// ResolveCurrent picks the open duty with the latest start (highest id on ties).
func (e Engine) ResolveCurrent(ctx context.Context, personID int64) (CurrentDuty, error) {
	person, err := e.Repo.GetPerson(ctx, personID)
	if errors.Is(err, repo.ErrNotFound) {
		return CurrentDuty{}, nil
	}
	if err != nil {
		return CurrentDuty{}, unexpected("load person", err)
	}
	cur := CurrentDuty{Found: true, Person: person}
	open, err := e.Repo.FindOpenDutyForPerson(ctx, personID)
	if errors.Is(err, repo.ErrNotFound) {
		return cur, nil
	}
	if err != nil {
		return CurrentDuty{}, unexpected("load open duty", err)
	}
	cur.Rank = open.Rank
	cur.DutyTitle = open.DutyTitle
	cur.Duty = &open
	return cur, nil
}

// ListHistory returns every duty of the person, latest start first. Unknown
// persons have an empty history.
func (e Engine) ListHistory(ctx context.Context, personID int64) ([]domain.DutyRecord, error) {
	hist, err := e.Repo.ListDutiesForPerson(ctx, personID)
	if err != nil {
		return nil, unexpected("list duties", err)
	}
	return hist, nil
}
