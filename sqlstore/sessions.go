package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/caseflow-io/authengine/session"
)

type sessionStore struct{ db *sql.DB }

var _ session.Store = (*sessionStore)(nil)

const tokenColumns = `id, user_id, tenant_id, token_hash, user_agent, ip, fingerprint,
	issued_at, expires_at, revoked_at, replaced_by`

func scanToken(row interface{ Scan(...interface{}) error }) (*session.RefreshToken, error) {
	var (
		t          session.RefreshToken
		revokedAt  sql.NullTime
		replacedBy sql.NullString
	)
	err := row.Scan(&t.ID, &t.UserID, &t.TenantID, &t.TokenHash,
		&t.Device.UserAgent, &t.Device.IP, &t.Device.Fingerprint,
		&t.IssuedAt, &t.ExpiresAt, &revokedAt, &replacedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, session.ErrTokenNotFound
		}
		return nil, err
	}
	if revokedAt.Valid {
		t.RevokedAt = &revokedAt.Time
	}
	t.ReplacedBy = replacedBy.String
	return &t, nil
}

func (s *sessionStore) Create(ctx context.Context, token *session.RefreshToken) error {
	var replacedBy interface{}
	if token.ReplacedBy != "" {
		replacedBy = token.ReplacedBy
	}
	_, err := s.db.ExecContext(ctx,
		`insert into refresh_tokens(id, user_id, tenant_id, token_hash, user_agent, ip, fingerprint,
			issued_at, expires_at, replaced_by)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		token.ID, token.UserID, token.TenantID, token.TokenHash,
		token.Device.UserAgent, token.Device.IP, token.Device.Fingerprint,
		token.IssuedAt, token.ExpiresAt, replacedBy,
	)
	return err
}

func (s *sessionStore) Find(ctx context.Context, tokenHash string) (*session.RefreshToken, error) {
	return scanToken(s.db.QueryRowContext(ctx,
		`select `+tokenColumns+` from refresh_tokens where token_hash=$1`, tokenHash))
}

// Rotate revokes the row iff it is still usable, in one conditional update.
// Of two concurrent rotations exactly one matches the `revoked_at is null`
// predicate; the loser falls through to the diagnosis query.
func (s *sessionStore) Rotate(ctx context.Context, tokenHash string, now time.Time) (*session.RefreshToken, error) {
	row := s.db.QueryRowContext(ctx,
		`update refresh_tokens set revoked_at=$2
		 where token_hash=$1 and revoked_at is null and expires_at > $2
		 returning id, user_id, tenant_id, token_hash, user_agent, ip, fingerprint,
			issued_at, expires_at, replaced_by`, tokenHash, now)

	var (
		t          session.RefreshToken
		replacedBy sql.NullString
	)
	err := row.Scan(&t.ID, &t.UserID, &t.TenantID, &t.TokenHash,
		&t.Device.UserAgent, &t.Device.IP, &t.Device.Fingerprint,
		&t.IssuedAt, &t.ExpiresAt, &replacedBy)
	if err == nil {
		t.ReplacedBy = replacedBy.String
		return &t, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	// Nothing matched: distinguish missing, revoked, and expired.
	existing, ferr := s.Find(ctx, tokenHash)
	if ferr != nil {
		return nil, ferr
	}
	if existing.RevokedAt != nil {
		return nil, session.ErrTokenRevoked
	}
	return nil, session.ErrTokenExpired
}

func (s *sessionStore) Revoke(ctx context.Context, tokenHash string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`update refresh_tokens set revoked_at=$2 where token_hash=$1 and revoked_at is null`,
		tokenHash, now)
	return err
}

func (s *sessionStore) RevokeAllForUser(ctx context.Context, tenantID, userID string, now time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`update refresh_tokens set revoked_at=$3
		 where tenant_id=$1 and user_id=$2 and revoked_at is null and expires_at > $3`,
		tenantID, userID, now)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	return int(affected), err
}

func (s *sessionStore) ActiveForUser(ctx context.Context, tenantID, userID string) ([]*session.RefreshToken, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+tokenColumns+` from refresh_tokens
		 where tenant_id=$1 and user_id=$2 and revoked_at is null and expires_at > now()
		 order by issued_at desc`, tenantID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []*session.RefreshToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func (s *sessionStore) RevokeByID(ctx context.Context, id string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`update refresh_tokens set revoked_at=$2 where id=$1 and revoked_at is null`, id, now)
	return err
}
