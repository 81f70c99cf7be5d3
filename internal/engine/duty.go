package engine

import (
	"context"
	"errors"
	"fmt"

	"stargate/internal/domain"
	"stargate/internal/events"
	"stargate/internal/repo"
)

const sourceDuty = "engine.duty"

// CreateDuty writes a validated duty. In one transaction it creates or
// updates the person's astronaut detail, closes the open duty the day
// before the new start, and inserts the new duty as the open one.
func (e Engine) CreateDuty(ctx context.Context, v ValidatedDuty) (domain.AstronautDuty, error) {
	start := domain.DateOf(v.StartDate)
	startStr := domain.FormatDate(start)
	dayBefore := domain.FormatDate(domain.DayBefore(start))

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.AstronautDuty{}, storeError("begin", err)
	}
	defer tx.Rollback()

	detail, err := e.Repo.FindAstronautDetailTx(ctx, tx, v.Person.ID)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		detail = domain.AstronautDetail{PersonID: v.Person.ID, CareerStartDate: startStr}
		if v.DutyTitle.Retirement {
			detail.CareerEndDate = &dayBefore
		}
		if err := e.Repo.UpsertAstronautDetailTx(ctx, tx, detail); err != nil {
			return domain.AstronautDuty{}, storeError("create astronaut detail", err)
		}
	case err != nil:
		return domain.AstronautDuty{}, storeError("load astronaut detail", err)
	case v.DutyTitle.Retirement:
		detail.CareerEndDate = &dayBefore
		if err := e.Repo.UpsertAstronautDetailTx(ctx, tx, detail); err != nil {
			return domain.AstronautDuty{}, storeError("update astronaut detail", err)
		}
	}

	open, err := e.Repo.FindOpenDutyForPersonTx(ctx, tx, v.Person.ID)
	var closed *domain.DutyRecord
	switch {
	case errors.Is(err, repo.ErrNotFound):
	case err != nil:
		return domain.AstronautDuty{}, storeError("load open duty", err)
	default:
		openStart, perr := domain.ParseDate(open.DutyStartDate)
		if perr != nil {
			return domain.AstronautDuty{}, unexpected("parse open duty start", perr)
		}
		if !start.After(openStart) {
			return domain.AstronautDuty{}, &Error{
				Kind:    KindConflict,
				Subject: SubjectCurrentDuty,
				Message: fmt.Sprintf("%s The new duty must start after %s.", msgCurrentDuty, open.DutyStartDate),
			}
		}
		if _, err := e.Repo.CloseOpenDutyTx(ctx, tx, v.Person.ID, dayBefore); err != nil {
			return domain.AstronautDuty{}, storeError("close open duty", err)
		}
		open.DutyEndDate = &dayBefore
		closed = &open
	}

	duty, err := e.Repo.InsertDutyTx(ctx, tx, domain.AstronautDuty{
		PersonID:      v.Person.ID,
		RankID:        v.Rank.ID,
		DutyTitleID:   v.DutyTitle.ID,
		DutyStartDate: startStr,
	})
	if err != nil {
		return domain.AstronautDuty{}, storeError("insert duty", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.AstronautDuty{}, storeError("commit duty", err)
	}

	if closed != nil {
		e.record(ctx, events.Entry(domain.LevelInfo, sourceDuty, "CreateDuty", "previous duty closed", events.EventPayload{
			"person_id": v.Person.ID, "duty_id": closed.ID, "duty_end_date": dayBefore,
		}))
	}
	if v.DutyTitle.Retirement {
		e.record(ctx, events.Entry(domain.LevelInfo, sourceDuty, "CreateDuty", "career end recorded", events.EventPayload{
			"person_id": v.Person.ID, "career_end_date": dayBefore,
		}))
	}
	return duty, nil
}

// SubmitDuty validates and creates a duty, auditing each outcome.
func (e Engine) SubmitDuty(ctx context.Context, req DutyRequest) (domain.AstronautDuty, error) {
	ctx = events.EnsureRequestID(ctx)
	payload := events.EventPayload{
		"name":          req.Name,
		"rank_id":       req.RankID,
		"duty_title_id": req.DutyTitleID,
	}
	if !req.DutyStartDate.IsZero() {
		payload["duty_start_date"] = domain.FormatDate(domain.DateOf(req.DutyStartDate))
	}
	e.record(ctx, events.Entry(domain.LevelInfo, sourceDuty, "SubmitDuty", "duty request received", payload))

	v, err := e.Validate(ctx, req)
	if err != nil {
		e.fail(ctx, "create_duty", sourceDuty, err, payload)
		return domain.AstronautDuty{}, err
	}
	duty, err := e.CreateDuty(ctx, v)
	if err != nil {
		e.fail(ctx, "create_duty", sourceDuty, err, payload)
		return domain.AstronautDuty{}, err
	}
	e.Metrics.DutyCreated()
	e.record(ctx, events.Entry(domain.LevelInfo, sourceDuty, "SubmitDuty", "astronaut duty created", events.EventPayload{
		"duty_id":    duty.ID,
		"person_id":  duty.PersonID,
		"rank":       v.Rank.Abbreviation,
		"duty_title": v.DutyTitle.Title,
		"retirement": v.DutyTitle.Retirement,
	}))
	return duty, nil
}
