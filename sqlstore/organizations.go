package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/caseflow-io/authengine"
)

type orgStore struct{ db *sql.DB }

func (s *orgStore) FindByID(ctx context.Context, id string) (*authengine.Organization, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, name, plan, status, trial_ends_at, max_users, created_at
		 from organizations where id=$1`, id)

	var org authengine.Organization
	err := row.Scan(&org.ID, &org.Name, &org.Plan, &org.Status, &org.TrialEndsAt, &org.MaxUsers, &org.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &org, nil
}
