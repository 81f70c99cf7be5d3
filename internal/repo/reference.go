package repo

import (
	"context"
	"database/sql"

	"stargate/internal/domain"
)

func (r Repo) FindActiveRank(ctx context.Context, id int64) (domain.Rank, error) {
	var rk domain.Rank
	err := r.DB.QueryRowContext(ctx, r.q(`SELECT id, name, abbreviation, level, is_active FROM rank WHERE id=? AND is_active`), id).
		Scan(&rk.ID, &rk.Name, &rk.Abbreviation, &rk.Level, &rk.IsActive)
	if err == sql.ErrNoRows {
		return rk, ErrNotFound
	}
	return rk, err
}

func (r Repo) FindActiveDutyTitle(ctx context.Context, id int64) (domain.DutyTitle, error) {
	var (
		dt   domain.DutyTitle
		desc sql.NullString
	)
	err := r.DB.QueryRowContext(ctx, r.q(`SELECT id, title, description, is_active FROM duty_title WHERE id=? AND is_active`), id).
		Scan(&dt.ID, &dt.Title, &desc, &dt.IsActive)
	if err == sql.ErrNoRows {
		return dt, ErrNotFound
	}
	dt.Description = desc.String
	return dt, err
}

// ListRanks returns active ranks by ascending level.
func (r Repo) ListRanks(ctx context.Context) ([]domain.Rank, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, name, abbreviation, level, is_active FROM rank WHERE is_active ORDER BY level, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Rank{}
	for rows.Next() {
		var rk domain.Rank
		if err := rows.Scan(&rk.ID, &rk.Name, &rk.Abbreviation, &rk.Level, &rk.IsActive); err != nil {
			return nil, err
		}
		res = append(res, rk)
	}
	return res, rows.Err()
}

// ListDutyTitles returns active duty titles ordered by title.
func (r Repo) ListDutyTitles(ctx context.Context) ([]domain.DutyTitle, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, title, description, is_active FROM duty_title WHERE is_active ORDER BY title, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.DutyTitle{}
	for rows.Next() {
		var (
			dt   domain.DutyTitle
			desc sql.NullString
		)
		if err := rows.Scan(&dt.ID, &dt.Title, &desc, &dt.IsActive); err != nil {
			return nil, err
		}
		dt.Description = desc.String
		res = append(res, dt)
	}
	return res, rows.Err()
}
