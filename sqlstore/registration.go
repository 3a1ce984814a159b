package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/caseflow-io/authengine"
)

type registrationStore struct{ db *sql.DB }

// InTx runs fn inside one database transaction. Any error from fn, or from
// commit, rolls back every write; a partially provisioned tenant is never
// observable.
func (s *registrationStore) InTx(ctx context.Context, fn func(tx authengine.RegistrationTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin: %w", err)
	}

	if err := fn(&registrationTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: commit: %w", err)
	}
	return nil
}

type registrationTx struct{ tx *sql.Tx }

func (r *registrationTx) CreateOrganization(ctx context.Context, org *authengine.Organization) error {
	_, err := r.tx.ExecContext(ctx,
		`insert into organizations(id, name, plan, status, trial_ends_at, max_users, created_at)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		org.ID, org.Name, org.Plan, org.Status, org.TrialEndsAt, org.MaxUsers, org.CreatedAt)
	return err
}

func (r *registrationTx) CreateSubscription(ctx context.Context, sub *authengine.Subscription) error {
	_, err := r.tx.ExecContext(ctx,
		`insert into subscriptions(id, tenant_id, plan, status, provider, trial_start, trial_end)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		sub.ID, sub.TenantID, sub.Plan, sub.Status, sub.Provider, sub.TrialStart, sub.TrialEnd)
	return err
}

func (r *registrationTx) CreateUser(ctx context.Context, user *authengine.User) error {
	return insertUser(ctx, r.tx, user)
}

func (r *registrationTx) UpsertOnboardingStep(ctx context.Context, step *authengine.OnboardingStep) error {
	_, err := r.tx.ExecContext(ctx,
		`insert into onboarding_progress(tenant_id, user_id, step, completed, completed_at)
		 values($1,$2,$3,$4,$5)
		 on conflict (tenant_id, user_id, step)
		 do update set completed=excluded.completed, completed_at=excluded.completed_at`,
		step.TenantID, step.UserID, step.Step, step.Completed, step.CompletedAt)
	return err
}
