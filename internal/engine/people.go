package engine

import (
	"context"
	"errors"
	"strings"

	"stargate/internal/domain"
	"stargate/internal/events"
	"stargate/internal/repo"
)

const sourcePerson = "engine.person"

// CreatePerson adds a person with a unique, non-blank name.
func (e Engine) CreatePerson(ctx context.Context, name string) (domain.Person, error) {
	ctx = events.EnsureRequestID(ctx)
	name = strings.TrimSpace(name)
	payload := events.EventPayload{"name": name}

	p, err := e.createPerson(ctx, name)
	if err != nil {
		e.fail(ctx, "create_person", sourcePerson, err, payload)
		return domain.Person{}, err
	}
	e.Metrics.PersonCreated()
	payload["person_id"] = p.ID
	e.record(ctx, events.Entry(domain.LevelInfo, sourcePerson, "CreatePerson", "person created", payload))
	return p, nil
}

func (e Engine) createPerson(ctx context.Context, name string) (domain.Person, error) {
	if name == "" {
		return domain.Person{}, invalidReference(SubjectName, "Person name is required.")
	}
	if _, err := e.Repo.FindPersonByName(ctx, name); err == nil {
		return domain.Person{}, conflict(SubjectDuplicatePerson, msgDuplicatePerson)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Person{}, unexpected("find person", err)
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Person{}, storeError("begin", err)
	}
	defer tx.Rollback()
	p, err := e.Repo.InsertPersonTx(ctx, tx, name)
	if err != nil {
		return domain.Person{}, storeError("insert person", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Person{}, storeError("commit person", err)
	}
	return p, nil
}

func (e Engine) ListPeople(ctx context.Context) ([]domain.PersonAstronaut, error) {
	people, err := e.Repo.ListPersonAstronauts(ctx)
	if err != nil {
		return nil, unexpected("list people", err)
	}
	return people, nil
}

type PersonLookup struct {
	Found  bool
	Person domain.PersonAstronaut
}

// PersonByName looks a person up with career dates and current assignment.
// A missing person is reported through Found, not as an error.
func (e Engine) PersonByName(ctx context.Context, name string) (PersonLookup, error) {
	pa, err := e.Repo.FindPersonAstronaut(ctx, strings.TrimSpace(name))
	if errors.Is(err, repo.ErrNotFound) {
		return PersonLookup{}, nil
	}
	if err != nil {
		return PersonLookup{}, unexpected("find person", err)
	}
	return PersonLookup{Found: true, Person: pa}, nil
}

type PersonDuties struct {
	Found  bool
	Person domain.PersonAstronaut
	Duties []domain.DutyRecord
}

// DutiesByName returns a person summary and full history.
func (e Engine) DutiesByName(ctx context.Context, name string) (PersonDuties, error) {
	lookup, err := e.PersonByName(ctx, name)
	if err != nil || !lookup.Found {
		return PersonDuties{Duties: []domain.DutyRecord{}}, err
	}
	hist, err := e.ListHistory(ctx, lookup.Person.PersonID)
	if err != nil {
		return PersonDuties{}, err
	}
	return PersonDuties{Found: true, Person: lookup.Person, Duties: hist}, nil
}
