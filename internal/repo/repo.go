package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"stargate/internal/db"
	"stargate/internal/domain"
)

// Repo is the entity store over database/sql. Methods ending in Tx run
// inside the caller's transaction; the rest use the pool directly.
type Repo struct {
	DB     *sql.DB
	Driver db.Driver
}

var ErrNotFound = errors.New("not found")

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r Repo) q(query string) string {
	return db.Rebind(r.Driver, query)
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func (r Repo) InsertPersonTx(ctx context.Context, tx *sql.Tx, name string) (domain.Person, error) {
	p := domain.Person{Name: name}
	err := tx.QueryRowContext(ctx, r.q(`INSERT INTO person(name) VALUES (?) RETURNING id`), name).Scan(&p.ID)
	if err != nil {
		return domain.Person{}, classify(err)
	}
	return p, nil
}

func (r Repo) FindPersonByName(ctx context.Context, name string) (domain.Person, error) {
	return r.findPersonByName(ctx, r.DB, name)
}

func (r Repo) FindPersonByNameTx(ctx context.Context, tx *sql.Tx, name string) (domain.Person, error) {
	return r.findPersonByName(ctx, tx, name)
}

func (r Repo) findPersonByName(ctx context.Context, qr queryer, name string) (domain.Person, error) {
	var p domain.Person
	err := qr.QueryRowContext(ctx, r.q(`SELECT id,name FROM person WHERE name=?`), name).Scan(&p.ID, &p.Name)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) GetPerson(ctx context.Context, id int64) (domain.Person, error) {
	var p domain.Person
	err := r.DB.QueryRowContext(ctx, r.q(`SELECT id,name FROM person WHERE id=?`), id).Scan(&p.ID, &p.Name)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

// personAstronautSelect joins each person to their detail and their open duty.
// The open-duty index guarantees at most one joined duty row per person.
const personAstronautSelect = `SELECT p.id, p.name, d.career_start_date, d.career_end_date, cur.abbreviation, cur.title
FROM person p
LEFT JOIN astronaut_detail d ON d.person_id = p.id
LEFT JOIN (
  SELECT ad.person_id, r.abbreviation, dt.title
  FROM astronaut_duty ad
  JOIN rank r ON r.id = ad.rank_id
  JOIN duty_title dt ON dt.id = ad.duty_title_id
  WHERE ad.duty_end_date IS NULL
) cur ON cur.person_id = p.id`

func scanPersonAstronaut(sc interface{ Scan(...any) error }) (domain.PersonAstronaut, error) {
	var (
		pa             domain.PersonAstronaut
		start, end     sql.NullString
		rank, dutyName sql.NullString
	)
	if err := sc.Scan(&pa.PersonID, &pa.Name, &start, &end, &rank, &dutyName); err != nil {
		return pa, err
	}
	pa.CareerStartDate = stringPtr(start)
	pa.CareerEndDate = stringPtr(end)
	pa.CurrentRank = rank.String
	pa.CurrentDutyTitle = dutyName.String
	return pa, nil
}

func (r Repo) ListPersonAstronauts(ctx context.Context) ([]domain.PersonAstronaut, error) {
	rows, err := r.DB.QueryContext(ctx, personAstronautSelect+` ORDER BY p.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.PersonAstronaut{}
	for rows.Next() {
		pa, err := scanPersonAstronaut(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, pa)
	}
	return res, rows.Err()
}

func (r Repo) FindPersonAstronaut(ctx context.Context, name string) (domain.PersonAstronaut, error) {
	row := r.DB.QueryRowContext(ctx, r.q(personAstronautSelect+` WHERE p.name=?`), name)
	pa, err := scanPersonAstronaut(row)
	if err == sql.ErrNoRows {
		return pa, ErrNotFound
	}
	return pa, err
}

func (r Repo) FindAstronautDetail(ctx context.Context, personID int64) (domain.AstronautDetail, error) {
	return r.findAstronautDetail(ctx, r.DB, personID)
}

func (r Repo) FindAstronautDetailTx(ctx context.Context, tx *sql.Tx, personID int64) (domain.AstronautDetail, error) {
	return r.findAstronautDetail(ctx, tx, personID)
}

func (r Repo) findAstronautDetail(ctx context.Context, qr queryer, personID int64) (domain.AstronautDetail, error) {
	d := domain.AstronautDetail{PersonID: personID}
	var end sql.NullString
	err := qr.QueryRowContext(ctx, r.q(`SELECT career_start_date, career_end_date FROM astronaut_detail WHERE person_id=?`), personID).
		Scan(&d.CareerStartDate, &end)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	if err != nil {
		return d, err
	}
	d.CareerEndDate = stringPtr(end)
	return d, nil
}

// UpsertAstronautDetailTx writes the one detail row a person may have.
func (r Repo) UpsertAstronautDetailTx(ctx context.Context, tx *sql.Tx, d domain.AstronautDetail) error {
	_, err := tx.ExecContext(ctx, r.q(`INSERT INTO astronaut_detail(person_id, career_start_date, career_end_date) VALUES (?,?,?)
ON CONFLICT(person_id) DO UPDATE SET career_start_date=excluded.career_start_date, career_end_date=excluded.career_end_date`),
		d.PersonID, d.CareerStartDate, nullableStringPtr(d.CareerEndDate))
	if err != nil {
		return fmt.Errorf("upsert astronaut detail: %w", classify(err))
	}
	return nil
}
