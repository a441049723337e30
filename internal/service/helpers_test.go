package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/timmy/jobalerts/internal/config"
	"github.com/timmy/jobalerts/internal/domain"
	"github.com/timmy/jobalerts/internal/matching"
	"github.com/timmy/jobalerts/internal/notify"
	"github.com/timmy/jobalerts/internal/repository"
	"github.com/timmy/jobalerts/internal/source"
	"github.com/timmy/jobalerts/internal/source/fixture"
	"gorm.io/gorm"
)

type testEnv struct {
	db       *gorm.DB
	jobs     *repository.JobRepository
	subs     *repository.SubscriptionRepository
	accounts *repository.AccountRepository
	ledger   *repository.DeliveryRepository
	subSvc   *SubscriptionService
	sender   *scriptedSender
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
		AutoMigrate:  true,
		LogLevel:     "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	env := &testEnv{
		db:       db,
		jobs:     repository.NewJobRepository(db),
		subs:     repository.NewSubscriptionRepository(db),
		accounts: repository.NewAccountRepository(db),
		ledger:   repository.NewDeliveryRepository(db),
		sender:   newScriptedSender(),
	}
	env.subSvc = NewSubscriptionService(env.accounts, env.subs, env.ledger, nil)
	return env
}

func (e *testEnv) alertService(src source.Source, mode string) *AlertService {
	return NewAlertService(AlertDeps{
		Source:        src,
		Jobs:          e.jobs,
		Subscriptions: e.subs,
		Ledger:        e.ledger,
		Expander:      matching.NewExpander(matching.DefaultAreaGroups("uk")),
		Sender:        e.sender,
	}, AlertConfig{
		Region:      "uk",
		MatchMode:   mode,
		FallbackURL: "https://example.com/search",
		Brand:       "Amazon",
	})
}

func (e *testEnv) subscribe(t *testing.T, email, jobType string, locations ...string) *domain.Subscription {
	t.Helper()
	sub, err := e.subSvc.Subscribe(context.Background(), SubscribeRequest{
		Email:     email,
		Locations: locations,
		JobType:   jobType,
	})
	require.NoError(t, err)
	return sub
}

func (e *testEnv) deliveries(t *testing.T, subID uint) []domain.Delivery {
	t.Helper()
	var rows []domain.Delivery
	require.NoError(t, e.db.Where("subscription_id = ?", subID).Order("job_id").Find(&rows).Error)
	return rows
}

func ukFixture() source.Source {
	return fixture.NewAdapter("uk")
}

// scriptedSender records messages and fails for configured recipients.
type scriptedSender struct {
	mu   sync.Mutex
	fail map[string]error
	sent []notify.Message
}

func newScriptedSender() *scriptedSender {
	return &scriptedSender{fail: map[string]error{}}
}

func (s *scriptedSender) failFor(to string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[to] = err
}

func (s *scriptedSender) clearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = map[string]error{}
}

func (s *scriptedSender) Send(ctx context.Context, to, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.fail[to]; ok {
		return &domain.DeliveryError{Recipient: to, Err: err}
	}
	s.sent = append(s.sent, notify.Message{To: to, Subject: subject, Body: body})
	return nil
}

func (s *scriptedSender) messages() []notify.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]notify.Message, len(s.sent))
	copy(out, s.sent)
	return out
}

type failingSource struct{}

func (failingSource) Name() string { return "broken" }

func (failingSource) FetchJobs(context.Context) ([]domain.RawJob, error) {
	return nil, &domain.FetchError{Source: "broken", Err: errors.New("connection refused")}
}
