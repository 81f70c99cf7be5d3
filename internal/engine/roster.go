package engine

import (
	"context"

	"stargate/internal/domain"
	"stargate/internal/events"
)

type RosterEntry struct {
	Person domain.PersonAstronaut `json:"person"`
	Duties []domain.DutyRecord    `json:"duties"`
}

// Roster is a point-in-time snapshot of every person and their history.
type Roster struct {
	GeneratedAt string        `json:"generated_at"`
	People      []RosterEntry `json:"people"`
}

func (e Engine) Roster(ctx context.Context) (Roster, error) {
	people, err := e.ListPeople(ctx)
	if err != nil {
		return Roster{}, err
	}
	r := Roster{
		GeneratedAt: e.now().UTC().Format(events.TimeLayout),
		People:      make([]RosterEntry, 0, len(people)),
	}
	for _, p := range people {
		hist, err := e.ListHistory(ctx, p.PersonID)
		if err != nil {
			return Roster{}, err
		}
		r.People = append(r.People, RosterEntry{Person: p, Duties: hist})
	}
	return r, nil
}
