package repo

import (
	"context"
	"database/sql"

	"stargate/internal/domain"
)

func scanDuty(sc interface{ Scan(...any) error }) (domain.AstronautDuty, error) {
	var (
		d   domain.AstronautDuty
		end sql.NullString
	)
	if err := sc.Scan(&d.ID, &d.PersonID, &d.RankID, &d.DutyTitleID, &d.DutyStartDate, &end); err != nil {
		return d, err
	}
	d.DutyEndDate = stringPtr(end)
	return d, nil
}

const dutyRecordSelect = `SELECT ad.id, ad.person_id, ad.rank_id, ad.duty_title_id, ad.duty_start_date, ad.duty_end_date, r.abbreviation, dt.title
FROM astronaut_duty ad
JOIN rank r ON r.id = ad.rank_id
JOIN duty_title dt ON dt.id = ad.duty_title_id`

func scanDutyRecord(sc interface{ Scan(...any) error }) (domain.DutyRecord, error) {
	var (
		rec domain.DutyRecord
		end sql.NullString
	)
	err := sc.Scan(&rec.ID, &rec.PersonID, &rec.RankID, &rec.DutyTitleID, &rec.DutyStartDate, &end, &rec.Rank, &rec.DutyTitle)
	if err != nil {
		return rec, err
	}
	rec.DutyEndDate = stringPtr(end)
	return rec, nil
}

// FindDutyByTitleAndStart returns the duty holding the (title, start) pair, if any.
func (r Repo) FindDutyByTitleAndStart(ctx context.Context, dutyTitleID int64, start string) (domain.AstronautDuty, error) {
	row := r.DB.QueryRowContext(ctx, r.q(`SELECT id, person_id, rank_id, duty_title_id, duty_start_date, duty_end_date
FROM astronaut_duty WHERE duty_title_id=? AND duty_start_date=?`), dutyTitleID, start)
	d, err := scanDuty(row)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	return d, err
}

func (r Repo) InsertDutyTx(ctx context.Context, tx *sql.Tx, d domain.AstronautDuty) (domain.AstronautDuty, error) {
	err := tx.QueryRowContext(ctx, r.q(`INSERT INTO astronaut_duty(person_id, rank_id, duty_title_id, duty_start_date, duty_end_date)
VALUES (?,?,?,?,?) RETURNING id`),
		d.PersonID, d.RankID, d.DutyTitleID, d.DutyStartDate, nullableStringPtr(d.DutyEndDate)).Scan(&d.ID)
	if err != nil {
		return domain.AstronautDuty{}, classify(err)
	}
	return d, nil
}

// CloseOpenDutyTx sets the end date of the person's open duty and reports
// how many rows it closed.
func (r Repo) CloseOpenDutyTx(ctx context.Context, tx *sql.Tx, personID int64, end string) (int64, error) {
	res, err := tx.ExecContext(ctx, r.q(`UPDATE astronaut_duty SET duty_end_date=? WHERE person_id=? AND duty_end_date IS NULL`), end, personID)
	if err != nil {
		return 0, classify(err)
	}
	return res.RowsAffected()
}

func (r Repo) FindOpenDutyForPerson(ctx context.Context, personID int64) (domain.DutyRecord, error) {
	return r.findOpenDuty(ctx, r.DB, personID)
}

func (r Repo) FindOpenDutyForPersonTx(ctx context.Context, tx *sql.Tx, personID int64) (domain.DutyRecord, error) {
	return r.findOpenDuty(ctx, tx, personID)
}

func (r Repo) findOpenDuty(ctx context.Context, qr queryer, personID int64) (domain.DutyRecord, error) {
	row := qr.QueryRowContext(ctx, r.q(dutyRecordSelect+`
WHERE ad.person_id=? AND ad.duty_end_date IS NULL
ORDER BY ad.duty_start_date DESC, ad.id DESC LIMIT 1`), personID)
	rec, err := scanDutyRecord(row)
	if err == sql.ErrNoRows {
		return rec, ErrNotFound
	}
	return rec, err
}

// ListDutiesForPerson returns the full history, newest start first.
func (r Repo) ListDutiesForPerson(ctx context.Context, personID int64) ([]domain.DutyRecord, error) {
	rows, err := r.DB.QueryContext(ctx, r.q(dutyRecordSelect+`
WHERE ad.person_id=?
ORDER BY ad.duty_start_date DESC, ad.id DESC`), personID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.DutyRecord{}
	for rows.Next() {
		rec, err := scanDutyRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

func (r Repo) CountOpenDuties(ctx context.Context, personID int64) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, r.q(`SELECT COUNT(*) FROM astronaut_duty WHERE person_id=? AND duty_end_date IS NULL`), personID).Scan(&n)
	return n, err
}
