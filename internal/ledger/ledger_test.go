package ledger_test

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Vrajp222/Donation-Tracker/internal/identity"
	"github.com/Vrajp222/Donation-Tracker/internal/ledger"
	"github.com/Vrajp222/Donation-Tracker/internal/ledger/mocks"
	"github.com/Vrajp222/Donation-Tracker/internal/localcache"
	"github.com/Vrajp222/Donation-Tracker/internal/models"
	"github.com/Vrajp222/Donation-Tracker/internal/remote"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	waitFor = 3 * time.Second
	tick    = 10 * time.Millisecond
)

// stubProvider drives auth state by hand.
type stubProvider struct {
	mu   sync.Mutex
	user *identity.User
	subs map[int]func(*identity.User)
	last int
}

func newStubProvider() *stubProvider {
	return &stubProvider{subs: make(map[int]func(*identity.User))}
}

func (p *stubProvider) CurrentUser() *identity.User {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.user
}

func (p *stubProvider) SubscribeAuthState(fn func(*identity.User)) func() {
	p.mu.Lock()
	p.last++
	id := p.last
	p.subs[id] = fn
	current := p.user
	p.mu.Unlock()
	fn(current)
	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

func (p *stubProvider) setUser(user *identity.User) {
	p.mu.Lock()
	p.user = user
	subs := make([]func(*identity.User), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()
	for _, fn := range subs {
		fn(user)
	}
}

type fixture struct {
	ledger   *ledger.WalletLedger
	store    *remote.TreeStore
	cache    *localcache.Cache
	provider *stubProvider
}

func newFixture(t *testing.T, publisher ledger.Publisher) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	store, err := remote.NewTreeStore(db)
	require.NoError(t, err)

	cache, err := localcache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	provider := newStubProvider()
	led := ledger.New(store, cache, provider, publisher)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	led.Start(ctx)

	return &fixture{ledger: led, store: store, cache: cache, provider: provider}
}

// signInWithBalance seeds the remote balance, signs the user in, and waits
// for the balance subscription to deliver it.
func (f *fixture) signInWithBalance(t *testing.T, uid string, balance float64) {
	t.Helper()
	require.NoError(t, f.store.Write(context.Background(), models.BalancePath(uid), balance))
	f.provider.setUser(&identity.User{ID: uid})
	require.Eventually(t, func() bool {
		return f.ledger.Balance() == balance
	}, waitFor, tick, "balance subscription never delivered %v", balance)
}

func (f *fixture) remoteHistory(t *testing.T, uid string) map[string]any {
	t.Helper()
	v, err := f.store.Get(context.Background(), models.DonationHistoryPath(uid))
	require.NoError(t, err)
	if v == nil {
		return nil
	}
	return v.(map[string]any)
}

func TestAddFundsAccumulates(t *testing.T) {
	f := newFixture(t, nil)
	f.signInWithBalance(t, "u1", 0)

	for _, amount := range []float64{10, 20.5, 30} {
		require.NoError(t, f.ledger.AddFunds(amount))
	}

	assert.Equal(t, 60.5, f.ledger.Balance())

	// remote echo lands and the cache mirrors the final value
	require.Eventually(t, func() bool {
		v, err := f.store.Get(context.Background(), models.BalancePath("u1"))
		return err == nil && v == 60.5
	}, waitFor, tick)
	require.Eventually(t, func() bool {
		raw, err := f.cache.Get(localcache.BalanceKey)
		return err == nil && raw == "60.5"
	}, waitFor, tick)
}

func TestAddFundsRejectsNonFinite(t *testing.T) {
	f := newFixture(t, nil)
	f.signInWithBalance(t, "u1", 5)

	assert.ErrorIs(t, f.ledger.AddFunds(math.NaN()), ledger.ErrInvalidAmount)
	assert.ErrorIs(t, f.ledger.AddFunds(math.Inf(1)), ledger.ErrInvalidAmount)
	assert.Equal(t, 5.0, f.ledger.Balance())
}

func TestAddFundsWithoutSessionStaysLocal(t *testing.T) {
	f := newFixture(t, nil)

	require.NoError(t, f.ledger.AddFunds(25))
	assert.Equal(t, 25.0, f.ledger.Balance())

	require.Eventually(t, func() bool {
		raw, err := f.cache.Get(localcache.BalanceKey)
		return err == nil && raw == "25"
	}, waitFor, tick)
}

func TestLocalCacheFallbackBeforeSession(t *testing.T) {
	dir := t.TempDir()
	cache, err := localcache.Open(filepath.Join(dir, "cache.db"))
	require.NoError(t, err)
	require.NoError(t, cache.Set(localcache.BalanceKey, "17.25"))
	defer cache.Close()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	store, err := remote.NewTreeStore(db)
	require.NoError(t, err)

	led := ledger.New(store, cache, newStubProvider(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	led.Start(ctx)

	assert.Equal(t, 17.25, led.Balance())
}

func TestMakeDonationInsufficientFunds(t *testing.T) {
	f := newFixture(t, nil)
	f.signInWithBalance(t, "u1", 10)

	ok := f.ledger.MakeDonation(15, "UNICEF")

	assert.False(t, ok)
	assert.Equal(t, 10.0, f.ledger.Balance())

	time.Sleep(100 * time.Millisecond)
	assert.Nil(t, f.remoteHistory(t, "u1"), "no record may be created")
}

func TestMakeDonationRejectsNaN(t *testing.T) {
	f := newFixture(t, nil)
	f.signInWithBalance(t, "u1", 100)

	assert.False(t, f.ledger.MakeDonation(math.NaN(), "Red Cross"))
	assert.Equal(t, 100.0, f.ledger.Balance())
}

func TestMakeDonationDebitsAndRecords(t *testing.T) {
	f := newFixture(t, nil)
	f.signInWithBalance(t, "u1", 50)

	ok := f.ledger.MakeDonation(20, "Red Cross")

	assert.True(t, ok)
	assert.Equal(t, 30.0, f.ledger.Balance())

	require.Eventually(t, func() bool {
		return len(f.remoteHistory(t, "u1")) == 1
	}, waitFor, tick)

	var rec models.DonationRecord
	for _, v := range f.remoteHistory(t, "u1") {
		var ok bool
		rec, ok = models.DonationRecordFromValue(v)
		require.True(t, ok)
	}
	assert.Equal(t, "Red Cross", rec.Charity)
	assert.Equal(t, 20.0, rec.Amount)
	assert.True(t, rec.Confirmed(), "record must carry a confirmation date")
}

func TestMakeDonationPromotesProvisionalRecord(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.store.Write(ctx, models.DonationHistoryPath("u1")+"/k1", map[string]any{
		"charity": "Red Cross",
		"amount":  20.0,
	}))
	f.signInWithBalance(t, "u1", 50)

	require.True(t, f.ledger.MakeDonation(20, "Red Cross"))

	require.Eventually(t, func() bool {
		history := f.remoteHistory(t, "u1")
		if len(history) != 1 {
			return false
		}
		rec, ok := models.DonationRecordFromValue(history["k1"])
		return ok && rec.Confirmed()
	}, waitFor, tick, "provisional record must be stamped, not duplicated")
}

func TestMakeDonationSkipsConfirmedDuplicate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	confirmed := "2026-01-02T03:04:05Z"
	require.NoError(t, f.store.Write(ctx, models.DonationHistoryPath("u1")+"/k1", map[string]any{
		"charity": "Red Cross",
		"amount":  20.0,
		"date":    confirmed,
	}))
	f.signInWithBalance(t, "u1", 50)

	require.True(t, f.ledger.MakeDonation(20, "Red Cross"))

	// the balance debits, but the history must not gain or change a record
	assert.Equal(t, 30.0, f.ledger.Balance())
	time.Sleep(200 * time.Millisecond)

	history := f.remoteHistory(t, "u1")
	require.Len(t, history, 1)
	rec, ok := models.DonationRecordFromValue(history["k1"])
	require.True(t, ok)
	assert.Equal(t, confirmed, rec.Date.UTC().Format(time.RFC3339))
}

func TestTotalDonatedIsPureProjection(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.signInWithBalance(t, "u1", 0)
	assert.Equal(t, 0.0, f.ledger.TotalDonated(), "empty history sums to zero")

	// string amounts coerce, insertion order follows push keys
	require.NoError(t, f.store.Write(ctx, models.DonationHistoryPath("u1"), map[string]any{
		"a1": map[string]any{"charity": "Red Cross", "amount": "10.5", "date": "2026-01-01T00:00:00Z"},
		"a2": map[string]any{"charity": "UNICEF", "amount": 5.0},
	}))

	require.Eventually(t, func() bool {
		return f.ledger.TotalDonated() == 15.5
	}, waitFor, tick)

	donations := f.ledger.Donations()
	require.Len(t, donations, 2)
	assert.Equal(t, "Red Cross", donations[0].Charity)
	assert.Equal(t, 10.5, donations[0].Amount)
	assert.False(t, donations[1].Confirmed())
}

func TestRecordDonationAppendsUnconditionally(t *testing.T) {
	f := newFixture(t, nil)
	f.signInWithBalance(t, "u1", 0)

	date := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	f.ledger.RecordDonation(models.DonationRecord{Charity: "UNICEF", Amount: 5, Date: &date})
	f.ledger.RecordDonation(models.DonationRecord{Charity: "UNICEF", Amount: 5, Date: &date})

	require.Eventually(t, func() bool {
		return len(f.remoteHistory(t, "u1")) == 2
	}, waitFor, tick, "direct records are never deduplicated")
}

func TestRemoteBalanceEchoOverwritesAndMirrors(t *testing.T) {
	f := newFixture(t, nil)
	f.signInWithBalance(t, "u1", 40)

	require.NoError(t, f.store.Write(context.Background(), models.BalancePath("u1"), 12.5))

	require.Eventually(t, func() bool {
		return f.ledger.Balance() == 12.5
	}, waitFor, tick)
	require.Eventually(t, func() bool {
		raw, err := f.cache.Get(localcache.BalanceKey)
		return err == nil && raw == "12.5"
	}, waitFor, tick)
}

func TestSessionChangeResetsState(t *testing.T) {
	f := newFixture(t, nil)
	f.signInWithBalance(t, "u1", 80)
	f.ledger.SetGoal(100)

	f.provider.setUser(nil)
	f.signInWithBalance(t, "u2", 3)

	assert.Equal(t, 3.0, f.ledger.Balance())
	assert.Empty(t, f.ledger.Donations())
	assert.Nil(t, f.ledger.Goal(), "goal does not survive a session change")
}

func TestGoalIsSessionScopedMemory(t *testing.T) {
	f := newFixture(t, nil)
	f.signInWithBalance(t, "u1", 0)

	assert.Nil(t, f.ledger.Goal())

	f.ledger.SetGoal(250)
	goal := f.ledger.Goal()
	require.NotNil(t, goal)
	assert.Equal(t, 250.0, *goal)

	// nothing of the goal reaches the remote store
	v, err := f.store.Get(context.Background(), "users/u1/goal")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestSnapshotGoalProgress(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.signInWithBalance(t, "u1", 0)

	require.NoError(t, f.store.Write(ctx, models.DonationHistoryPath("u1")+"/k1", map[string]any{
		"charity": "Red Cross", "amount": 50.0, "date": "2026-01-01T00:00:00Z",
	}))
	require.Eventually(t, func() bool { return f.ledger.TotalDonated() == 50 }, waitFor, tick)

	f.ledger.SetGoal(200)
	snapshot := f.ledger.Snapshot()
	require.NotNil(t, snapshot.GoalProgress)
	assert.Equal(t, 25.0, *snapshot.GoalProgress)
}

func TestOnChangeNotifiesAndUnsubscribes(t *testing.T) {
	f := newFixture(t, nil)
	f.signInWithBalance(t, "u1", 0)

	snapshots := make(chan models.WalletSnapshot, 16)
	unsub := f.ledger.OnChange(func(s models.WalletSnapshot) {
		snapshots <- s
	})

	require.NoError(t, f.ledger.AddFunds(10))

	select {
	case s := <-snapshots:
		assert.Equal(t, 10.0, s.Balance)
	case <-time.After(waitFor):
		t.Fatal("listener never notified")
	}

	unsub()
}

func TestPublishesWalletFundedEvent(t *testing.T) {
	publisher := mocks.NewMockPublisher(t)
	published := make(chan models.WalletFundedEvent, 1)

	publisher.On("Publish", mock.Anything, models.WalletFundedTopic, mock.AnythingOfType("models.WalletFundedEvent")).
		Run(func(args mock.Arguments) {
			published <- args.Get(2).(models.WalletFundedEvent)
		}).
		Return(nil).
		Once()

	f := newFixture(t, publisher)
	f.signInWithBalance(t, "u1", 0)

	require.NoError(t, f.ledger.AddFunds(30))

	select {
	case evt := <-published:
		assert.Equal(t, "u1", evt.UserID)
		assert.Equal(t, 30.0, evt.Amount)
		assert.Equal(t, 30.0, evt.NewBalance)
		assert.NotEmpty(t, evt.TraceID)
	case <-time.After(waitFor):
		t.Fatal("wallet.funded never published")
	}
}

func TestPublishesDeclinedDonationEvent(t *testing.T) {
	publisher := mocks.NewMockPublisher(t)
	published := make(chan models.DonationRecordedEvent, 1)

	publisher.On("Publish", mock.Anything, models.DonationRecordedTopic, mock.AnythingOfType("models.DonationRecordedEvent")).
		Run(func(args mock.Arguments) {
			published <- args.Get(2).(models.DonationRecordedEvent)
		}).
		Return(nil).
		Once()

	f := newFixture(t, publisher)
	f.signInWithBalance(t, "u1", 5)

	assert.False(t, f.ledger.MakeDonation(50, "UNICEF"))

	select {
	case evt := <-published:
		assert.Equal(t, models.DonationStatusDeclined, evt.Status)
		assert.Equal(t, "Insufficient funds", evt.Reason)
	case <-time.After(waitFor):
		t.Fatal("declined event never published")
	}
}

// failing cache verifies write failures are absorbed, not surfaced.
type failingCache struct{}

func (failingCache) Get(string) (string, error) { return "", errors.New("disk gone") }
func (failingCache) Set(string, string) error   { return errors.New("disk gone") }

func TestCacheFailuresAreAbsorbed(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	store, err := remote.NewTreeStore(db)
	require.NoError(t, err)

	provider := newStubProvider()
	led := ledger.New(store, failingCache{}, provider, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	led.Start(ctx)

	require.NoError(t, led.AddFunds(10))
	assert.Equal(t, 10.0, led.Balance(), "balance keeps its in-memory value")
}
