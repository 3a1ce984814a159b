package authengine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/caseflow-io/authengine/eventlog"
	"github.com/caseflow-io/authengine/internal"
	"github.com/google/uuid"
)

// Onboarding step names written by organization registration.
const (
	OnboardingStepOrganizationDetails = "organization_details"
	OnboardingStepUserProfile         = "user_profile"
)

// Register is the lightweight self-serve path: the user joins an existing
// tenant and is logged in immediately. Only a minimum password length is
// enforced; no subscription or onboarding rows are written.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*SessionResult, error) {
	if e == nil || e.users == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}

	email := normalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidCredentials
	}
	if len(req.Password) < e.config.Password.SimpleMinLength {
		return nil, ErrWeakPassword
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	verification, err := internal.NewVerificationToken()
	if err != nil {
		return nil, err
	}

	role := req.Role
	if role == "" {
		role = e.config.Registration.DefaultRole
	}

	now := time.Now()
	user := &User{
		ID:                     uuid.NewString(),
		TenantID:               req.TenantID,
		Email:                  email,
		Name:                   req.Name,
		PasswordHash:           hash,
		Role:                   role,
		Status:                 StatusActive,
		EmailVerificationToken: verification,
		CreatedAt:              now,
	}

	if err := e.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailExists) {
			e.metricInc(MetricRegistrationDuplicate)
			e.emitAudit(ctx, auditRegistration, false, req.TenantID, "", ErrEmailExists, nil)
			return nil, ErrEmailExists
		}
		return nil, err
	}

	device := deviceFromContext(ctx)
	if device.UserAgent == "" && device.IP == "" {
		fb := e.config.Registration.FallbackDevice
		device = newDeviceInfo(fb.UserAgent, fb.IP)
	}

	result, err := e.issueSession(ctx, user, device, "", now)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricRegistrationSuccess)
	e.events.AuthEvent("user_registered", eventlog.Fields{
		"user_id":   user.ID,
		"tenant_id": user.TenantID,
	})
	e.emitEntityAudit(ctx, auditRegistration, user.TenantID, user.ID, "user", user.ID, nil)

	return result, nil
}

// RegisterOrganization provisions a new tenant in one transaction: the
// organization, its subscription, the owning user, and two completed
// onboarding rows all commit together or not at all. A partially created
// tenant is never observable. The business event and audit entry are
// emitted after commit and are best-effort.
func (e *Engine) RegisterOrganization(ctx context.Context, req RegisterOrganizationRequest) (*RegistrationResult, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}
	if e.registration == nil {
		return nil, ErrEngineNotReady
	}

	email := normalizeEmail(req.AdminEmail)
	if req.OrganizationName == "" || email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidCredentials
	}

	if valid, problems := e.config.Password.Policy.Check(req.AdminPassword); !valid {
		e.emitAudit(ctx, auditOrganizationCreated, false, "", "", ErrWeakPassword, map[string]string{
			"problems": strings.Join(problems, "; "),
		})
		return nil, ErrWeakPassword
	}

	plan := req.Plan
	if plan == "" {
		plan = e.config.Registration.DefaultPlan
	}

	hash, err := e.hasher.Hash(req.AdminPassword)
	if err != nil {
		return nil, err
	}
	verification, err := internal.NewVerificationToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	trialEnd := now.AddDate(0, 0, e.config.Registration.TrialDays)
	orgID := uuid.NewString()
	userID := uuid.NewString()

	err = e.registration.InTx(ctx, func(tx RegistrationTx) error {
		if err := tx.CreateOrganization(ctx, &Organization{
			ID:          orgID,
			Name:        req.OrganizationName,
			Plan:        plan,
			Status:      SubscriptionTrialing,
			TrialEndsAt: trialEnd,
			MaxUsers:    plan.MaxUsers(),
			CreatedAt:   now,
		}); err != nil {
			return err
		}

		if err := tx.CreateSubscription(ctx, &Subscription{
			ID:         uuid.NewString(),
			TenantID:   orgID,
			Plan:       plan,
			Status:     SubscriptionTrialing,
			Provider:   e.config.Registration.PaymentProvider,
			TrialStart: now,
			TrialEnd:   trialEnd,
		}); err != nil {
			return err
		}

		if err := tx.CreateUser(ctx, &User{
			ID:                     userID,
			TenantID:               orgID,
			Email:                  email,
			Name:                   req.AdminName,
			PasswordHash:           hash,
			Role:                   e.config.Registration.OwnerRole,
			Status:                 StatusPending,
			EmailVerificationToken: verification,
			CreatedAt:              now,
		}); err != nil {
			return err
		}

		completed := now
		for _, step := range []string{OnboardingStepOrganizationDetails, OnboardingStepUserProfile} {
			if err := tx.UpsertOnboardingStep(ctx, &OnboardingStep{
				TenantID:    orgID,
				UserID:      userID,
				Step:        step,
				Completed:   true,
				CompletedAt: &completed,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		e.metricInc(MetricOrganizationRolledBack)
		e.events.Error(err, eventlog.Fields{
			"op":           "register_organization",
			"organization": req.OrganizationName,
		})
		if errors.Is(err, ErrEmailExists) {
			return nil, ErrEmailExists
		}
		return nil, err
	}

	e.metricInc(MetricOrganizationCreated)
	e.events.BusinessEvent("organization_created", "organization", orgID, eventlog.Fields{
		"name":    req.OrganizationName,
		"plan":    string(plan),
		"user_id": userID,
	})
	e.emitEntityAudit(ctx, auditOrganizationCreated, orgID, userID, "organization", orgID, map[string]string{
		"plan": string(plan),
	})

	return &RegistrationResult{OrganizationID: orgID, UserID: userID}, nil
}
