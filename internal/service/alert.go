package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/jobalerts/internal/domain"
	"github.com/timmy/jobalerts/internal/events"
	"github.com/timmy/jobalerts/internal/logger"
	"github.com/timmy/jobalerts/internal/matching"
	"github.com/timmy/jobalerts/internal/notify"
	"github.com/timmy/jobalerts/internal/source"
	"github.com/timmy/jobalerts/internal/storage"
)

// Match modes select which stored jobs a cycle considers.
const (
	MatchModeNew = "new"
	MatchModeAll = "all"
)

const (
	defaultCandidateLimit = 200
	defaultSendTimeout    = 60 * time.Second
)

// JobStore is the subset of the job repository the cycle needs.
type JobStore interface {
	InsertBatch(ctx context.Context, raws []domain.RawJob) ([]domain.Job, error)
	ListAll(ctx context.Context, limit int) ([]domain.Job, error)
	GetByID(ctx context.Context, id uint) (*domain.Job, error)
}

// SubscriptionStore is the subset of the subscription repository the cycle needs.
type SubscriptionStore interface {
	ListActive(ctx context.Context) ([]domain.Subscription, error)
	GetByID(ctx context.Context, id uint) (*domain.Subscription, error)
}

// DeliveryLedger records which subscription has been told about which job.
type DeliveryLedger interface {
	Reserve(ctx context.Context, ownerID, subscriptionID uint, jobIDs []uint) ([]uint, error)
	MarkSent(ctx context.Context, subscriptionID uint, jobIDs []uint) error
	MarkFailed(ctx context.Context, subscriptionID uint, jobIDs []uint, errText string) error
	GetByID(ctx context.Context, id uint) (*domain.Delivery, error)
}

// Archiver keeps raw fetch results.
type Archiver interface {
	Archive(ctx context.Context, snap storage.Snapshot) (string, error)
}

// AlertDeps wires the collaborators of an AlertService. Archiver and
// Publisher are optional.
type AlertDeps struct {
	Source        source.Source
	Jobs          JobStore
	Subscriptions SubscriptionStore
	Ledger        DeliveryLedger
	Expander      *matching.Expander
	Sender        notify.Sender
	Archiver      Archiver
	Publisher     events.Publisher
	Logger        *logger.Logger
}

// AlertConfig holds per-worker settings of an AlertService.
type AlertConfig struct {
	Region         string
	MatchMode      string
	CandidateLimit int
	FallbackURL    string
	Brand          string
	SendTimeout    time.Duration
}

// AlertService runs fetch, match, reserve and send cycles.
type AlertService struct {
	src       source.Source
	jobs      JobStore
	subs      SubscriptionStore
	ledger    DeliveryLedger
	expander  *matching.Expander
	sender    notify.Sender
	archiver  Archiver
	publisher events.Publisher
	logger    *logger.Logger
	cfg       AlertConfig
	now       func() time.Time
}

// NewAlertService creates a new alert service.
func NewAlertService(deps AlertDeps, cfg AlertConfig) *AlertService {
	if cfg.MatchMode == "" {
		cfg.MatchMode = MatchModeNew
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = defaultCandidateLimit
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	log := deps.Logger
	if log == nil {
		log = logger.GetDefault()
	}
	return &AlertService{
		src:       deps.Source,
		jobs:      deps.Jobs,
		subs:      deps.Subscriptions,
		ledger:    deps.Ledger,
		expander:  deps.Expander,
		sender:    deps.Sender,
		archiver:  deps.Archiver,
		publisher: publisher,
		logger:    log,
		cfg:       cfg,
		now:       time.Now,
	}
}

// log returns a logger from context if available, otherwise returns the service logger
func (s *AlertService) log(ctx context.Context) *logger.Logger {
	if logger.GetCycleID(ctx) != "" || logger.GetRequestID(ctx) != "" {
		return logger.FromContext(ctx)
	}
	return s.logger
}

// CycleStats summarizes one cycle. EmailsSent is the cycle's result.
type CycleStats struct {
	CycleID       string    `json:"cycle_id"`
	Region        string    `json:"region"`
	Fetched       int       `json:"fetched"`
	Invalid       int       `json:"invalid"`
	Inserted      int       `json:"inserted"`
	Candidates    int       `json:"candidates"`
	Subscriptions int       `json:"subscriptions"`
	Recipients    int       `json:"recipients"`
	Reserved      int       `json:"reserved"`
	EmailsSent    int       `json:"emails_sent"`
	EmailsFailed  int       `json:"emails_failed"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
}

// recipient collects one email address's matches for a cycle.
type recipient struct {
	email   string
	ownerID map[uint]uint
	jobs    []domain.Job
	seen    map[string]struct{}
	subIDs  []uint
	bySub   map[uint][]uint
}

func newRecipient(email string) *recipient {
	return &recipient{
		email:   email,
		ownerID: map[uint]uint{},
		seen:    map[string]struct{}{},
		bySub:   map[uint][]uint{},
	}
}

func (r *recipient) add(sub domain.Subscription, job domain.Job) {
	key := job.Key()
	if _, ok := r.seen[key]; ok {
		return
	}
	r.seen[key] = struct{}{}
	r.jobs = append(r.jobs, job)
	if _, ok := r.bySub[sub.ID]; !ok {
		r.subIDs = append(r.subIDs, sub.ID)
		r.ownerID[sub.ID] = sub.OwnerID
	}
	r.bySub[sub.ID] = append(r.bySub[sub.ID], job.ID)
}

// RunCycle performs one fetch, match, reserve and send pass. Every failing
// step degrades to no effect; the cycle itself never returns an error.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - *CycleStats: counters for the pass; EmailsSent is the number of digests delivered.
func (s *AlertService) RunCycle(ctx context.Context) *CycleStats {
	stats := &CycleStats{
		CycleID:   uuid.NewString(),
		Region:    s.cfg.Region,
		StartTime: s.now(),
	}
	if logger.GetRequestID(ctx) == "" {
		ctx = s.logger.WithContext(ctx)
	}
	ctx = logger.SetCycleID(ctx, stats.CycleID)
	ctx = logger.SetRegion(ctx, s.cfg.Region)
	defer func() { stats.EndTime = s.now() }()

	s.log(ctx).WithField(logger.FieldSource, s.src.Name()).Info("Checking for jobs")

	raws, err := s.src.FetchJobs(ctx)
	if err != nil {
		s.log(ctx).WithError(err).Error("Fetch failed, skipping cycle")
		return stats
	}
	stats.Fetched = len(raws)

	normalized := s.normalize(ctx, raws, stats)
	s.archive(ctx, stats, raws)

	candidates, ok := s.candidates(ctx, normalized, stats)
	if !ok {
		return stats
	}
	stats.Candidates = len(candidates)
	if len(candidates) == 0 {
		s.log(ctx).Info("No new jobs this cycle")
		return stats
	}

	subs, err := s.subs.ListActive(ctx)
	if err != nil {
		s.log(ctx).WithError(err).Error("Failed to load active subscriptions")
		return stats
	}
	stats.Subscriptions = len(subs)
	if len(subs) == 0 {
		s.log(ctx).Info("No active subscriptions, nothing to send")
		return stats
	}

	recipients := s.group(candidates, subs)
	stats.Recipients = len(recipients)

	for _, r := range recipients {
		if ctx.Err() != nil {
			s.log(ctx).WithError(ctx.Err()).Warn("Cycle cancelled before all recipients were handled")
			break
		}
		s.deliver(ctx, r, stats)
	}

	logger.With(logger.Fields{
		"fetched":       stats.Fetched,
		"candidates":    stats.Candidates,
		"recipients":    stats.Recipients,
		"reserved":      stats.Reserved,
		"emails_failed": stats.EmailsFailed,
	}).WithCount(stats.EmailsSent).
		WithDuration(s.now().Sub(stats.StartTime)).
		Info(ctx, "Cycle complete")

	return stats
}

func (s *AlertService) normalize(ctx context.Context, raws []domain.RawJob, stats *CycleStats) []domain.RawJob {
	out := make([]domain.RawJob, 0, len(raws))
	for _, raw := range raws {
		n := raw.Normalize(s.cfg.FallbackURL)
		if err := n.Validate(); err != nil {
			stats.Invalid++
			s.log(ctx).WithError(err).Warn("Dropping malformed job")
			continue
		}
		out = append(out, n)
	}
	return out
}

func (s *AlertService) archive(ctx context.Context, stats *CycleStats, raws []domain.RawJob) {
	if s.archiver == nil {
		return
	}
	key, err := s.archiver.Archive(ctx, storage.Snapshot{
		CycleID:   stats.CycleID,
		Region:    s.cfg.Region,
		Source:    s.src.Name(),
		FetchedAt: stats.StartTime,
		Jobs:      raws,
	})
	if err != nil {
		s.log(ctx).WithError(err).Warn("Failed to archive snapshot")
		return
	}
	s.log(ctx).WithField("key", key).Debug("Archived snapshot")
}

// candidates stores the fetched jobs and returns the ones eligible for
// matching under the configured mode. ok is false when nothing can be matched.
func (s *AlertService) candidates(ctx context.Context, raws []domain.RawJob, stats *CycleStats) ([]domain.Job, bool) {
	inserted, err := s.jobs.InsertBatch(ctx, raws)
	if err != nil {
		s.log(ctx).WithError(err).Error("Failed to store fetched jobs")
		if s.cfg.MatchMode != MatchModeAll {
			return nil, false
		}
	}
	stats.Inserted = len(inserted)

	if s.cfg.MatchMode != MatchModeAll {
		return inserted, true
	}

	all, err := s.jobs.ListAll(ctx, s.cfg.CandidateLimit)
	if err != nil {
		s.log(ctx).WithError(err).Error("Failed to list stored jobs")
		return nil, false
	}
	return all, true
}

// group crosses jobs with subscriptions and buckets matches by normalized
// email in first-seen order.
func (s *AlertService) group(jobs []domain.Job, subs []domain.Subscription) []*recipient {
	type expanded struct {
		tokens  []string
		anyMode bool
	}
	prefs := make([]expanded, len(subs))
	for i, sub := range subs {
		tokens, anyMode := s.expander.Expand(sub.PreferredLocation)
		prefs[i] = expanded{tokens: tokens, anyMode: anyMode}
	}

	var order []*recipient
	byEmail := map[string]*recipient{}
	for _, job := range jobs {
		for i, sub := range subs {
			if !matching.Matches(job, prefs[i].tokens, sub.JobType, prefs[i].anyMode, sub.Active) {
				continue
			}
			email := domain.NormalizeEmail(sub.Email)
			if !domain.ValidEmail(email) || sub.ID == 0 {
				continue
			}
			r, ok := byEmail[email]
			if !ok {
				r = newRecipient(email)
				byEmail[email] = r
				order = append(order, r)
			}
			r.add(sub, job)
		}
	}
	return order
}

func (s *AlertService) deliver(ctx context.Context, r *recipient, stats *CycleStats) {
	ctx = logger.WithField(ctx, logger.FieldRecipient, r.email)

	reservedBySub := map[uint][]uint{}
	reservedJobs := map[uint]struct{}{}
	var subIDs []uint
	for _, subID := range r.subIDs {
		ids, err := s.ledger.Reserve(ctx, r.ownerID[subID], subID, r.bySub[subID])
		if err != nil {
			s.log(ctx).WithField(logger.FieldSubscriptionID, subID).WithError(err).
				Error("Failed to reserve deliveries, skipping subscription")
			continue
		}
		if len(ids) == 0 {
			continue
		}
		logger.With(nil).WithSubscription(subID).WithCount(len(ids)).Debug(ctx, "Reserved deliveries")
		subIDs = append(subIDs, subID)
		reservedBySub[subID] = ids
		for _, id := range ids {
			reservedJobs[id] = struct{}{}
		}
	}

	var jobs []domain.Job
	for _, job := range r.jobs {
		if _, ok := reservedJobs[job.ID]; ok {
			jobs = append(jobs, job)
		}
	}
	if len(jobs) == 0 {
		return
	}
	stats.Reserved += len(jobs)

	sendErr := s.send(ctx, r.email, jobs)
	status := domain.DeliverySent
	if sendErr != nil {
		status = domain.DeliveryFailed
		stats.EmailsFailed++
		s.log(ctx).WithError(sendErr).Error("Failed to send email")
	} else {
		stats.EmailsSent++
		logger.With(logger.Fields{"subscriptions": len(subIDs)}).WithCount(len(jobs)).Info(ctx, "Sent job alert")
	}

	for _, subID := range subIDs {
		var err error
		if sendErr == nil {
			err = s.ledger.MarkSent(ctx, subID, reservedBySub[subID])
		} else {
			err = s.ledger.MarkFailed(ctx, subID, reservedBySub[subID], sendErr.Error())
		}
		if err != nil {
			s.log(ctx).WithField(logger.FieldSubscriptionID, subID).WithError(err).
				Error("Failed to finalize deliveries")
		}
	}

	jobIDs := make([]uint, 0, len(jobs))
	for _, j := range jobs {
		jobIDs = append(jobIDs, j.ID)
	}
	s.publish(ctx, events.DeliveryEvent{
		CycleID:         logger.GetCycleID(ctx),
		Recipient:       r.email,
		Status:          status,
		SubscriptionIDs: subIDs,
		JobIDs:          jobIDs,
		Error:           errorText(sendErr),
	})
}

func (s *AlertService) send(ctx context.Context, to string, jobs []domain.Job) error {
	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()
	return s.sender.Send(sendCtx, to, DigestSubject(s.cfg.Brand), ComposeDigest(jobs))
}

func (s *AlertService) publish(ctx context.Context, event events.DeliveryEvent) {
	event.Region = s.cfg.Region
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log(ctx).WithError(err).Warn("Failed to publish delivery event")
	}
}

// ErrNotFailed is returned by Resend for a delivery that did not fail.
var ErrNotFailed = errors.New("delivery is not in failed state")

// Resend emails the job of one failed delivery to its subscriber again and
// records the outcome on the same ledger row.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - deliveryID: ledger row to retry.
// Returns:
//   - error: domain.ErrNotFound, ErrNotFailed, or the send failure.
func (s *AlertService) Resend(ctx context.Context, deliveryID uint) error {
	d, err := s.ledger.GetByID(ctx, deliveryID)
	if err != nil {
		return err
	}
	if d.Status != domain.DeliveryFailed {
		return fmt.Errorf("resend delivery %d: %w", deliveryID, ErrNotFailed)
	}

	job, err := s.jobs.GetByID(ctx, d.JobID)
	if err != nil {
		return err
	}
	sub, err := s.subs.GetByID(ctx, d.SubscriptionID)
	if err != nil {
		return err
	}
	email := domain.NormalizeEmail(sub.Email)
	if !domain.ValidEmail(email) {
		return &domain.ValidationError{Field: "email", Reason: "subscription has no deliverable address"}
	}

	ctx = logger.WithField(ctx, logger.FieldRecipient, email)
	jobIDs := []uint{job.ID}
	status := domain.DeliverySent

	sendErr := s.send(ctx, email, []domain.Job{*job})
	if sendErr != nil {
		status = domain.DeliveryFailed
		if err := s.ledger.MarkFailed(ctx, sub.ID, jobIDs, sendErr.Error()); err != nil {
			s.log(ctx).WithError(err).Error("Failed to record resend failure")
		}
	} else if err := s.ledger.MarkSent(ctx, sub.ID, jobIDs); err != nil {
		return err
	}

	s.publish(ctx, events.DeliveryEvent{
		Recipient:       email,
		Status:          status,
		SubscriptionIDs: []uint{sub.ID},
		JobIDs:          jobIDs,
		Error:           errorText(sendErr),
	})

	s.log(ctx).WithField("delivery_id", deliveryID).WithField(logger.FieldStatus, status).Info("Resend finished")
	return sendErr
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
