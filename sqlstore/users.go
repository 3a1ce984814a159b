package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/caseflow-io/authengine"
)

type userStore struct{ db *sql.DB }

const userColumns = `id, tenant_id, email, name, password_hash, role, status,
	failed_login_attempts, locked_until, mfa_enabled, mfa_secret, mfa_backup_codes,
	email_verified, email_verification_token, password_reset_token, password_reset_expires,
	last_login_at, last_login_ip, created_at, deleted_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*authengine.User, error) {
	var (
		u           authengine.User
		lockedUntil sql.NullTime
		secret      sql.NullString
		backupCodes []byte
		verifyToken sql.NullString
		resetToken  sql.NullString
		resetExp    sql.NullTime
		lastLoginAt sql.NullTime
		lastLoginIP sql.NullString
		deletedAt   sql.NullTime
	)
	err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.Status,
		&u.FailedLoginAttempts, &lockedUntil, &u.MFAEnabled, &secret, &backupCodes,
		&u.EmailVerified, &verifyToken, &resetToken, &resetExp,
		&lastLoginAt, &lastLoginIP, &u.CreatedAt, &deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authengine.ErrUserNotFound
		}
		return nil, err
	}

	if lockedUntil.Valid {
		u.LockedUntil = &lockedUntil.Time
	}
	u.MFASecret = secret.String
	if len(backupCodes) > 0 {
		_ = json.Unmarshal(backupCodes, &u.MFABackupCodes)
	}
	u.EmailVerificationToken = verifyToken.String
	u.PasswordResetToken = resetToken.String
	if resetExp.Valid {
		u.PasswordResetExpires = &resetExp.Time
	}
	if lastLoginAt.Valid {
		u.LastLoginAt = &lastLoginAt.Time
	}
	u.LastLoginIP = lastLoginIP.String
	if deletedAt.Valid {
		u.DeletedAt = &deletedAt.Time
	}
	return &u, nil
}

func (s *userStore) FindActiveByEmail(ctx context.Context, email string) (*authengine.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email=$1 and deleted_at is null`, email))
}

func (s *userStore) FindByID(ctx context.Context, id string) (*authengine.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1 and deleted_at is null`, id))
}

func (s *userStore) Create(ctx context.Context, user *authengine.User) error {
	return insertUser(ctx, s.db, user)
}

// insertUser is shared with the registration transaction.
func insertUser(ctx context.Context, db interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
}, user *authengine.User) error {
	codes, _ := json.Marshal(user.MFABackupCodes)
	_, err := db.ExecContext(ctx,
		`insert into users(id, tenant_id, email, name, password_hash, role, status,
			failed_login_attempts, mfa_enabled, mfa_secret, mfa_backup_codes,
			email_verified, email_verification_token, created_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		user.ID, user.TenantID, user.Email, user.Name, user.PasswordHash, user.Role, user.Status,
		user.FailedLoginAttempts, user.MFAEnabled, user.MFASecret, codes,
		user.EmailVerified, user.EmailVerificationToken, user.CreatedAt,
	)
	if isUniqueViolation(err) {
		return authengine.ErrEmailExists
	}
	return err
}

func (s *userStore) IncrementFailedLogins(ctx context.Context, id string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`update users set failed_login_attempts = failed_login_attempts + 1
		 where id=$1 and deleted_at is null
		 returning failed_login_attempts`, id).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, authengine.ErrUserNotFound
	}
	return count, err
}

func (s *userStore) SetLockout(ctx context.Context, id string, until time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`update users set locked_until=$2 where id=$1 and deleted_at is null`, id, until)
	return err
}

func (s *userStore) RecordLoginSuccess(ctx context.Context, id string, at time.Time, ip string) error {
	_, err := s.db.ExecContext(ctx,
		`update users set failed_login_attempts=0, locked_until=null, last_login_at=$2, last_login_ip=$3
		 where id=$1 and deleted_at is null`, id, at, ip)
	return err
}

func (s *userStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	_, err := s.db.ExecContext(ctx,
		`update users set password_hash=$2 where id=$1 and deleted_at is null`, id, hash)
	return err
}

func (s *userStore) UpdateMFA(ctx context.Context, id string, enabled bool, secret string, backupCodes []string) error {
	codes, _ := json.Marshal(backupCodes)
	_, err := s.db.ExecContext(ctx,
		`update users set mfa_enabled=$2, mfa_secret=$3, mfa_backup_codes=$4
		 where id=$1 and deleted_at is null`, id, enabled, secret, codes)
	return err
}

func (s *userStore) ReplaceBackupCodes(ctx context.Context, id string, codes []string) error {
	data, _ := json.Marshal(codes)
	_, err := s.db.ExecContext(ctx,
		`update users set mfa_backup_codes=$2 where id=$1 and deleted_at is null`, id, data)
	return err
}

func (s *userStore) FindByPasswordResetToken(ctx context.Context, token string) (*authengine.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users
		 where password_reset_token=$1 and password_reset_token <> '' and deleted_at is null`, token))
}

func (s *userStore) SetPasswordReset(ctx context.Context, id, token string, expires time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`update users set password_reset_token=$2, password_reset_expires=$3
		 where id=$1 and deleted_at is null`, id, token, expires)
	return err
}

func (s *userStore) ClearPasswordReset(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`update users set password_reset_token='', password_reset_expires=null
		 where id=$1 and deleted_at is null`, id)
	return err
}

func (s *userStore) FindByEmailVerificationToken(ctx context.Context, token string) (*authengine.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users
		 where email_verification_token=$1 and email_verification_token <> '' and deleted_at is null`, token))
}

func (s *userStore) MarkEmailVerified(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`update users set email_verified=true, email_verification_token='',
			status = case when status='pending' then 'active' else status end
		 where id=$1 and deleted_at is null`, id)
	return err
}
