package authengine

import (
	"strings"
	"time"
)

// AccountStatus is the lifecycle state of a user account.
type AccountStatus string

const (
	// StatusPending marks an account awaiting email verification.
	StatusPending AccountStatus = "pending"
	// StatusActive marks an account allowed to authenticate.
	StatusActive AccountStatus = "active"
	// StatusSuspended marks an account blocked by an operator.
	StatusSuspended AccountStatus = "suspended"
	// StatusDeleted marks a soft-deleted account.
	StatusDeleted AccountStatus = "deleted"
)

// Plan is a subscription tier.
type Plan string

const (
	// PlanBasic is the default trial plan.
	PlanBasic Plan = "basic"
	// PlanPro is the mid tier.
	PlanPro Plan = "pro"
	// PlanEnterprise is the top tier.
	PlanEnterprise Plan = "enterprise"
)

// MaxUsers returns the seat limit the plan grants.
func (p Plan) MaxUsers() int {
	switch p {
	case PlanPro:
		return 25
	case PlanEnterprise:
		return 250
	default:
		return 5
	}
}

// SubscriptionStatus is the billing state of an organization.
type SubscriptionStatus string

const (
	// SubscriptionTrialing marks an organization inside its trial window.
	SubscriptionTrialing SubscriptionStatus = "trialing"
	// SubscriptionActive marks a paying organization.
	SubscriptionActive SubscriptionStatus = "active"
	// SubscriptionPastDue marks a failed renewal.
	SubscriptionPastDue SubscriptionStatus = "past_due"
	// SubscriptionCanceled marks a terminated subscription.
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

// User is the identity and credential record the engine operates on.
// PasswordHash is a PHC-encoded Argon2id string carrying its own salt.
type User struct {
	ID                     string
	TenantID               string
	Email                  string
	Name                   string
	PasswordHash           string
	Role                   string
	Status                 AccountStatus
	FailedLoginAttempts    int
	LockedUntil            *time.Time
	MFAEnabled             bool
	MFASecret              string
	MFABackupCodes         []string
	EmailVerified          bool
	EmailVerificationToken string
	PasswordResetToken     string
	PasswordResetExpires   *time.Time
	LastLoginAt            *time.Time
	LastLoginIP            string
	CreatedAt              time.Time
	DeletedAt              *time.Time
}

// Organization is the tenant: the billing and data-isolation boundary. Every
// user belongs to exactly one, and an organization is never created without
// its owning user in the same transaction.
type Organization struct {
	ID          string
	Name        string
	Plan        Plan
	Status      SubscriptionStatus
	TrialEndsAt time.Time
	MaxUsers    int
	CreatedAt   time.Time
}

// Subscription mirrors the organization's plan for the billing provider.
type Subscription struct {
	ID         string
	TenantID   string
	Plan       Plan
	Status     SubscriptionStatus
	Provider   string
	TrialStart time.Time
	TrialEnd   time.Time
}

// OnboardingStep is one per-tenant-per-user checklist row, upserted by the
// composite (TenantID, UserID, Step) key.
type OnboardingStep struct {
	TenantID    string
	UserID      string
	Step        string
	Completed   bool
	CompletedAt *time.Time
}

// UserProfile is the sanitized user projection returned to callers. It never
// carries the password hash, MFA secret, or backup codes.
type UserProfile struct {
	ID          string
	TenantID    string
	Email       string
	Name        string
	Role        string
	Status      AccountStatus
	MFAEnabled  bool
	LastLoginAt *time.Time
}

// OrganizationSummary is the sanitized organization projection.
type OrganizationSummary struct {
	ID     string
	Name   string
	Plan   Plan
	Status SubscriptionStatus
}

// SessionResult is returned by login, refresh, and the simple registration
// path. ExpiresIn is the access-token lifetime in seconds.
type SessionResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
	User         UserProfile
	Organization *OrganizationSummary
}

// LoginRequest carries the credential inputs of one login attempt. MFACode
// is optional; when the account has MFA enabled and no code is supplied the
// attempt fails with [ErrMFARequired].
type LoginRequest struct {
	Email    string
	Password string
	MFACode  string
}

// RegisterRequest is the lightweight self-serve registration input: the
// caller joins an existing tenant and is logged in immediately.
type RegisterRequest struct {
	TenantID string
	Email    string
	Password string
	Name     string
	Role     string
}

// RegisterOrganizationRequest bootstraps a new tenant with its owning user.
type RegisterOrganizationRequest struct {
	OrganizationName string
	AdminEmail       string
	AdminPassword    string
	AdminName        string
	Plan             Plan
}

// RegistrationResult identifies the rows the registration transaction
// committed.
type RegistrationResult struct {
	OrganizationID string
	UserID         string
}

// Identity is the verified projection of an access token.
type Identity struct {
	UserID   string
	TenantID string
	Role     string
	Plan     Plan
	Email    string
}

func sanitizeUser(u *User) UserProfile {
	return UserProfile{
		ID:          u.ID,
		TenantID:    u.TenantID,
		Email:       u.Email,
		Name:        u.Name,
		Role:        u.Role,
		Status:      u.Status,
		MFAEnabled:  u.MFAEnabled,
		LastLoginAt: u.LastLoginAt,
	}
}

func sanitizeOrganization(o *Organization) *OrganizationSummary {
	if o == nil {
		return nil
	}
	return &OrganizationSummary{
		ID:     o.ID,
		Name:   o.Name,
		Plan:   o.Plan,
		Status: o.Status,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
