package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"timelens/internal/config"
	"timelens/internal/repositories"
	"timelens/internal/testutil"
	"timelens/pkg/utils"
)

var testNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func testClock() *utils.DayClock {
	return utils.NewDayClock(time.UTC, func() time.Time { return testNow })
}

func testConfig() config.Config {
	return config.Config{
		Generation: config.GenerationConfig{Provider: "gemini", Timeout: time.Second},
		Storage:    config.StorageConfig{Timeout: time.Second},
		Billing: config.BillingConfig{
			WebhookSecret: "whsec_test",
			PriceBasic:    "price_basic",
			PricePro:      "price_pro",
		},
		Quota: config.QuotaConfig{Timezone: "UTC", TransformPerMinute: 10, ReconcileCron: "@every 1m"},
	}
}

// fixture wires the real repositories and services over an in-memory DB.
type fixture struct {
	db       *gorm.DB
	userRepo repositories.UserRepository
	plans    PlanServiceInterface
	quota    QuotaServiceInterface
	subs     *SubscriptionService
	txns     TransactionServiceInterface
	billing  *fakeBilling
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	log := zap.NewNop()
	userRepo := repositories.NewUserRepository(db)
	plans := NewPlanService(testConfig())
	billing := &fakeBilling{}

	subs := NewSubscriptionService(db, userRepo, repositories.NewSubscriptionRepository(db), billing, log).(*SubscriptionService)
	subs.now = func() int64 { return testNow.Unix() }

	return &fixture{
		db:       db,
		userRepo: userRepo,
		plans:    plans,
		quota:    NewQuotaService(userRepo, repositories.NewUsageRepository(db), plans, testClock(), log),
		subs:     subs,
		txns:     NewTransactionService(db, repositories.NewTransactionRepository(db), userRepo, testClock(), log),
		billing:  billing,
	}
}

type fakeBilling struct {
	mu        sync.Mutex
	cancelled []string
	event     *BillingEvent
	parseErr  error
	cancelErr error
}

func (f *fakeBilling) Name() string { return "fake" }

func (f *fakeBilling) ParseWebhook(payload []byte, signature string) (*BillingEvent, error) {
	if f.parseErr != nil {
		return nil, f.parseErr
	}
	return f.event, nil
}

func (f *fakeBilling) CancelSubscription(ctx context.Context, subscriptionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, subscriptionID)
	return nil
}

// scriptedProvider returns its results in order, repeating the last one.
type scriptedProvider struct {
	mu      sync.Mutex
	results []providerResult
	prompts []string
}

type providerResult struct {
	img utils.ProviderImage
	err error
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Generate(ctx context.Context, image []byte, mimeType, prompt string) (utils.ProviderImage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := len(p.prompts)
	p.prompts = append(p.prompts, prompt)
	if i >= len(p.results) {
		i = len(p.results) - 1
	}
	r := p.results[i]
	return r.img, r.err
}

func (p *scriptedProvider) Close() error { return nil }

func (p *scriptedProvider) calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.prompts...)
}

func okImage() providerResult {
	return providerResult{img: utils.ProviderImage{Data: pngBytes, MIMEType: "image/png"}}
}

func failWith(kind utils.ProviderErrorKind) providerResult {
	return providerResult{err: &utils.ProviderError{Provider: "scripted", Kind: kind, Err: errors.New(kind.String())}}
}

// memStorage is an ObjectStorage kept in memory.
type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted   []string
	putErr    map[string]error
	deleteErr error
}

func newMemStorage() *memStorage {
	return &memStorage{objects: make(map[string][]byte), putErr: make(map[string]error)}
}

func (s *memStorage) Put(ctx context.Context, path string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for prefix, err := range s.putErr {
		if len(path) >= len(prefix) && path[:len(prefix)] == prefix {
			return err
		}
	}
	s.objects[path] = data
	return nil
}

func (s *memStorage) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.objects, path)
	s.deleted = append(s.deleted, path)
	return nil
}

func (s *memStorage) PublicURL(path string) string { return "https://cdn.test/" + path }

func (s *memStorage) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// pngBytes is a PNG signature followed by padding, enough for sniffing.
var pngBytes = append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 64)...)

func requireUserPlan(t *testing.T, f *fixture, userID string) (string, string) {
	t.Helper()
	u, err := f.userRepo.FindByID(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, u)
	return string(u.CurrentPlan), string(u.SubscriptionStatus)
}
