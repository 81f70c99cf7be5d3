package app

import (
	"context"
	"fmt"

	"stargate/internal/config"
	"stargate/internal/domain"
	"stargate/internal/engine"
)

type SeedReport struct {
	PeopleCreated int `json:"people_created"`
	PeopleSkipped int `json:"people_skipped"`
	DutiesCreated int `json:"duties_created"`
	DutiesSkipped int `json:"duties_skipped"`
}

// Seed creates the configured demo people and duties. Existing people and
// duties that conflict with stored history are skipped, so reruns are safe.
func Seed(ctx context.Context, e engine.Engine, people []config.SeedPerson) (SeedReport, error) {
	var rep SeedReport
	for _, p := range people {
		if _, err := e.CreatePerson(ctx, p.Name); err != nil {
			if engine.KindOf(err) != engine.KindConflict {
				return rep, fmt.Errorf("seed person %s: %w", p.Name, err)
			}
			rep.PeopleSkipped++
		} else {
			rep.PeopleCreated++
		}
		for _, d := range p.Duties {
			start, err := domain.ParseDate(d.StartDate)
			if err != nil {
				return rep, fmt.Errorf("seed person %s: start date %q: %w", p.Name, d.StartDate, err)
			}
			_, err = e.SubmitDuty(ctx, engine.DutyRequest{
				Name:          p.Name,
				RankID:        d.RankID,
				DutyTitleID:   d.DutyTitleID,
				DutyStartDate: start,
			})
			switch {
			case err == nil:
				rep.DutiesCreated++
			case engine.KindOf(err) == engine.KindConflict:
				rep.DutiesSkipped++
			default:
				return rep, fmt.Errorf("seed duty for %s: %w", p.Name, err)
			}
		}
	}
	return rep, nil
}
