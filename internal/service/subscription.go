package service

import (
	"context"
	"errors"
	"strings"

	"github.com/timmy/jobalerts/internal/domain"
	"github.com/timmy/jobalerts/internal/logger"
)

// AccountStore is the subset of the account repository subscribers use.
type AccountStore interface {
	GetOrCreate(ctx context.Context, email string) (*domain.Account, bool, error)
	GetByIDForEmail(ctx context.Context, id uint, email string) (*domain.Account, error)
	Deactivate(ctx context.Context, id uint) error
	Reactivate(ctx context.Context, id uint) (*domain.Subscription, error)
	DeleteData(ctx context.Context, id uint) error
}

// SubscriptionWriter is the subset of the subscription repository subscribers use.
type SubscriptionWriter interface {
	Create(ctx context.Context, sub *domain.Subscription) error
	GetByID(ctx context.Context, id uint) (*domain.Subscription, error)
	ListForEmail(ctx context.Context, email string) ([]domain.Subscription, error)
	Deactivate(ctx context.Context, id uint) error
	UpdateForOwner(ctx context.Context, id uint, email, location, jobType string) (bool, error)
}

// HistoryReader returns an account's delivery history.
type HistoryReader interface {
	HistoryForOwner(ctx context.Context, ownerID uint, limit int) ([]domain.DeliveryWithJob, error)
}

// SubscribeRequest is a new standing preference.
type SubscribeRequest struct {
	Email     string   `json:"email" binding:"required"`
	Locations []string `json:"locations"`
	JobType   string   `json:"job_type"`
}

// UpdatePreferenceRequest replaces the preference of an existing subscription.
type UpdatePreferenceRequest struct {
	Email     string   `json:"email" binding:"required"`
	Locations []string `json:"locations"`
	JobType   string   `json:"job_type"`
}

// SubscriptionService manages accounts and their subscriptions.
type SubscriptionService struct {
	accounts AccountStore
	subs     SubscriptionWriter
	history  HistoryReader
	logger   *logger.Logger
}

// NewSubscriptionService creates a new subscription service.
func NewSubscriptionService(accounts AccountStore, subs SubscriptionWriter, history HistoryReader, log *logger.Logger) *SubscriptionService {
	if log == nil {
		log = logger.GetDefault()
	}
	return &SubscriptionService{accounts: accounts, subs: subs, history: history, logger: log}
}

func (s *SubscriptionService) log(ctx context.Context) *logger.Logger {
	if logger.GetRequestID(ctx) != "" {
		return logger.FromContext(ctx)
	}
	return s.logger
}

// Subscribe creates an active subscription, creating the account on first use.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - req: email, up to three location slots and a job type.
// Returns:
//   - *domain.Subscription: the stored subscription.
//   - error: *domain.ValidationError for bad input, *domain.StorageError otherwise.
func (s *SubscriptionService) Subscribe(ctx context.Context, req SubscribeRequest) (*domain.Subscription, error) {
	email, location, jobType, err := normalizePreference(req.Email, req.Locations, req.JobType)
	if err != nil {
		return nil, err
	}

	acc, created, err := s.accounts.GetOrCreate(ctx, email)
	if err != nil {
		return nil, err
	}

	sub := &domain.Subscription{
		OwnerID:           acc.ID,
		Email:             email,
		PreferredLocation: location,
		JobType:           jobType,
		Active:            true,
	}
	if err := s.subs.Create(ctx, sub); err != nil {
		return nil, err
	}

	s.log(ctx).WithFields(logger.Fields{
		logger.FieldSubscriptionID: sub.ID,
		"account_id":               acc.ID,
		"new_account":              created,
	}).Info("Subscription created")
	return sub, nil
}

// UpdatePreference rewrites a subscription owned by req.Email and re-activates it.
func (s *SubscriptionService) UpdatePreference(ctx context.Context, id uint, req UpdatePreferenceRequest) (*domain.Subscription, error) {
	email, location, jobType, err := normalizePreference(req.Email, req.Locations, req.JobType)
	if err != nil {
		return nil, err
	}

	ok, err := s.subs.UpdateForOwner(ctx, id, email, location, jobType)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s.subs.GetByID(ctx, id)
}

// ListForEmail returns every subscription of an address, newest first.
func (s *SubscriptionService) ListForEmail(ctx context.Context, email string) ([]domain.Subscription, error) {
	email = domain.NormalizeEmail(email)
	if !domain.ValidEmail(email) {
		return nil, &domain.ValidationError{Field: "email", Reason: "must contain @"}
	}
	return s.subs.ListForEmail(ctx, email)
}

// DeactivateSubscription switches one subscription off.
func (s *SubscriptionService) DeactivateSubscription(ctx context.Context, id uint) error {
	return s.subs.Deactivate(ctx, id)
}

// DeactivateAccount switches an account owned by email and all of its
// subscriptions off. Admin accounts are refused with domain.ErrForbidden.
func (s *SubscriptionService) DeactivateAccount(ctx context.Context, accountID uint, email string) error {
	if err := s.requireNonAdmin(ctx, accountID, email); err != nil {
		return err
	}
	if err := s.accounts.Deactivate(ctx, accountID); err != nil {
		return err
	}
	s.log(ctx).WithField("account_id", accountID).Info("Account deactivated")
	return nil
}

// ReactivateAccount switches an account back on with its most recently
// deactivated subscription. The returned subscription is nil if none existed.
func (s *SubscriptionService) ReactivateAccount(ctx context.Context, accountID uint, email string) (*domain.Subscription, error) {
	if _, err := s.ownedAccount(ctx, accountID, email); err != nil {
		return nil, err
	}
	sub, err := s.accounts.Reactivate(ctx, accountID)
	if err != nil {
		return nil, err
	}
	s.log(ctx).WithField("account_id", accountID).Info("Account reactivated")
	return sub, nil
}

// DeleteAccount removes an account with its subscriptions and history.
// Admin accounts are refused with domain.ErrForbidden.
func (s *SubscriptionService) DeleteAccount(ctx context.Context, accountID uint, email string) error {
	if err := s.requireNonAdmin(ctx, accountID, email); err != nil {
		return err
	}
	if err := s.accounts.DeleteData(ctx, accountID); err != nil {
		return err
	}
	s.log(ctx).WithField("account_id", accountID).Info("Account data deleted")
	return nil
}

// History returns the delivery ledger of an account joined with job details.
func (s *SubscriptionService) History(ctx context.Context, accountID uint, email string, limit int) ([]domain.DeliveryWithJob, error) {
	if _, err := s.ownedAccount(ctx, accountID, email); err != nil {
		return nil, err
	}
	return s.history.HistoryForOwner(ctx, accountID, limit)
}

// ownedAccount loads accountID only if email owns it. A foreign address
// reports domain.ErrNotFound.
func (s *SubscriptionService) ownedAccount(ctx context.Context, accountID uint, email string) (*domain.Account, error) {
	email = domain.NormalizeEmail(email)
	if !domain.ValidEmail(email) {
		return nil, &domain.ValidationError{Field: "email", Reason: "must contain @"}
	}
	return s.accounts.GetByIDForEmail(ctx, accountID, email)
}

func (s *SubscriptionService) requireNonAdmin(ctx context.Context, accountID uint, email string) error {
	acc, err := s.ownedAccount(ctx, accountID, email)
	if err != nil {
		return err
	}
	if acc.IsAdmin() {
		return domain.ErrForbidden
	}
	return nil
}

// normalizePreference validates subscriber input and returns the stored forms.
func normalizePreference(rawEmail string, locations []string, rawJobType string) (email, location, jobType string, err error) {
	email = domain.NormalizeEmail(rawEmail)
	if !domain.ValidEmail(email) {
		return "", "", "", &domain.ValidationError{Field: "email", Reason: "must contain @"}
	}

	jobType, err = canonicalJobType(rawJobType)
	if err != nil {
		return "", "", "", err
	}

	location = domain.JoinLocationSlots(locations)
	if location == "" {
		location = domain.AnyPreference
	}
	return email, location, jobType, nil
}

func canonicalJobType(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.AnyPreference, nil
	}
	for _, opt := range domain.JobTypeOptions {
		if strings.EqualFold(opt, raw) {
			return opt, nil
		}
	}
	return "", &domain.ValidationError{
		Field:  "job_type",
		Reason: "must be one of " + strings.Join(domain.JobTypeOptions, ", "),
	}
}

// IsForbidden reports whether err refuses an operation on an account.
func IsForbidden(err error) bool {
	return errors.Is(err, domain.ErrForbidden)
}
