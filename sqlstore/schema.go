package sqlstore

import "context"

// Schema is the reference DDL for the tables this package drives. Applied
// verbatim by EnsureSchema; production deployments usually run it through
// their own migration tooling instead.
const Schema = `
create table if not exists organizations (
	id            text primary key,
	name          text not null,
	plan          text not null,
	status        text not null,
	trial_ends_at timestamptz not null,
	max_users     integer not null,
	created_at    timestamptz not null default now()
);

create table if not exists subscriptions (
	id          text primary key,
	tenant_id   text not null references organizations(id),
	plan        text not null,
	status      text not null,
	provider    text not null,
	trial_start timestamptz not null,
	trial_end   timestamptz not null
);

create table if not exists users (
	id                       text primary key,
	tenant_id                text not null,
	email                    text not null unique,
	name                     text not null default '',
	password_hash            text not null,
	role                     text not null,
	status                   text not null,
	failed_login_attempts    integer not null default 0,
	locked_until             timestamptz,
	mfa_enabled              boolean not null default false,
	mfa_secret               text,
	mfa_backup_codes         jsonb,
	email_verified           boolean not null default false,
	email_verification_token text,
	password_reset_token     text,
	password_reset_expires   timestamptz,
	last_login_at            timestamptz,
	last_login_ip            text,
	created_at               timestamptz not null default now(),
	deleted_at               timestamptz
);

create index if not exists users_email_active_idx on users (email) where deleted_at is null;

create table if not exists refresh_tokens (
	id          text primary key,
	user_id     text not null,
	tenant_id   text not null,
	token_hash  text not null unique,
	user_agent  text not null default '',
	ip          text not null default '',
	fingerprint text not null default '',
	issued_at   timestamptz not null,
	expires_at  timestamptz not null,
	revoked_at  timestamptz,
	replaced_by text
);

create index if not exists refresh_tokens_user_active_idx
	on refresh_tokens (tenant_id, user_id, issued_at desc)
	where revoked_at is null;

create table if not exists onboarding_progress (
	tenant_id    text not null,
	user_id      text not null,
	step         text not null,
	completed    boolean not null default false,
	completed_at timestamptz,
	primary key (tenant_id, user_id, step)
);

create table if not exists audit_log (
	id          bigserial primary key,
	timestamp   timestamptz not null,
	tenant_id   text not null default '',
	user_id     text not null default '',
	action      text not null,
	entity_type text not null default '',
	entity_id   text not null default '',
	ip          text not null default '',
	user_agent  text not null default '',
	request_id  text not null default '',
	success     boolean not null,
	error       text not null default '',
	metadata    jsonb
);

create index if not exists audit_log_tenant_time_idx on audit_log (tenant_id, timestamp desc);
`

// EnsureSchema applies the reference DDL. Idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, Schema)
	return err
}
