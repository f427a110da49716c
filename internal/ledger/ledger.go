package ledger

import (
	"context"
	"errors"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/Vrajp222/Donation-Tracker/internal/identity"
	"github.com/Vrajp222/Donation-Tracker/internal/localcache"
	"github.com/Vrajp222/Donation-Tracker/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const taskQueueSize = 128

// ErrInvalidAmount is returned when an amount is NaN or infinite. Negative
// amounts are not rejected here; transport-level validation decides that.
var ErrInvalidAmount = errors.New("amount must be a finite number")

// RemoteStore is the authoritative store for wallet state, keyed under
// users/{uid}/...
type RemoteStore interface {
	Get(ctx context.Context, path string) (any, error)
	Write(ctx context.Context, path string, value any) error
	Patch(ctx context.Context, path string, updates map[string]any) error
	PushKey(path string) string
	Subscribe(path string, fn func(value any)) (func(), error)
}

// LocalCache mirrors the balance for offline reads. It is a fallback used
// only until a session resolves; failures are logged and ignored.
type LocalCache interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// Publisher defines the interface for publishing wallet events.
type Publisher interface {
	Publish(ctx context.Context, topic string, message interface{}) error
}

// WalletLedger owns a user's wallet balance and donation history as a
// reactive projection of the remote store.
//
// All state is owned by a single task loop: operations and store callbacks
// run as tasks on it, never concurrently. Remote writes are fire-and-forget,
// executed in submission order off the loop; the optimistic local value
// stands until the next remote notification reconciles it.
type WalletLedger struct {
	remote    RemoteStore
	cache     LocalCache
	identity  identity.Provider
	publisher Publisher

	tasks  chan func()
	writes chan func()
	done   chan struct{}

	// owned by the task loop
	userID       string
	balance      float64
	donations    []models.DonationRecord
	totalDonated float64
	goal         *float64

	unsubAuth    func()
	unsubBalance func()
	unsubHistory func()

	listeners map[int]func(models.WalletSnapshot)
	lastID    int
}

// New creates a WalletLedger. The publisher may be nil, in which case no
// events are emitted.
func New(remote RemoteStore, cache LocalCache, provider identity.Provider, publisher Publisher) *WalletLedger {
	return &WalletLedger{
		remote:    remote,
		cache:     cache,
		identity:  provider,
		publisher: publisher,
		tasks:     make(chan func(), taskQueueSize),
		writes:    make(chan func(), taskQueueSize),
		done:      make(chan struct{}),
		listeners: make(map[int]func(models.WalletSnapshot)),
	}
}

// Start runs the task loop until ctx is cancelled. It reads the locally
// mirrored balance so consumers have a usable figure while the session
// resolves, then follows auth state: each new session resets the state and
// opens fresh balance and history subscriptions.
func (l *WalletLedger) Start(ctx context.Context) {
	go l.loop(ctx)
	go l.writer()

	l.do(func() {
		raw, err := l.cache.Get(models.BalanceKey)
		switch {
		case err == nil:
			if v, perr := strconv.ParseFloat(raw, 64); perr == nil {
				l.balance = v
			}
		case !errors.Is(err, localcache.ErrNotFound):
			logrus.Errorf("Error fetching local balance: %s", err.Error())
		}
	})

	unsubAuth := l.identity.SubscribeAuthState(func(user *identity.User) {
		l.enqueue(func() { l.onAuthState(user) })
	})
	l.do(func() { l.unsubAuth = unsubAuth })
}

func (l *WalletLedger) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(l.done)
			l.releaseSubscriptions()
			if l.unsubAuth != nil {
				l.unsubAuth()
			}
			return
		case fn := <-l.tasks:
			fn()
		}
	}
}

// writer drains fire-and-forget remote writes in submission order, off the
// task loop. In-flight writes are not cancelled on shutdown.
func (l *WalletLedger) writer() {
	for {
		select {
		case <-l.done:
			return
		case fn := <-l.writes:
			fn()
		}
	}
}

// do runs fn on the task loop and waits for it.
func (l *WalletLedger) do(fn func()) {
	ready := make(chan struct{})
	select {
	case l.tasks <- func() { fn(); close(ready) }:
	case <-l.done:
		return
	}
	select {
	case <-ready:
	case <-l.done:
	}
}

// enqueue schedules fn on the task loop without waiting.
func (l *WalletLedger) enqueue(fn func()) {
	select {
	case l.tasks <- fn:
	case <-l.done:
	}
}

func (l *WalletLedger) asyncWrite(fn func()) {
	select {
	case l.writes <- fn:
	case <-l.done:
	}
}

func (l *WalletLedger) onAuthState(user *identity.User) {
	l.releaseSubscriptions()

	if user == nil {
		l.userID = ""
		return
	}

	l.userID = user.ID
	l.balance = 0
	l.donations = nil
	l.totalDonated = 0
	l.goal = nil

	uid := user.ID
	unsubBalance, err := l.remote.Subscribe(models.BalancePath(uid), func(v any) {
		l.enqueue(func() { l.onBalance(v) })
	})
	if err != nil {
		logrus.Errorf("Error subscribing to balance for %s: %s", uid, err.Error())
	} else {
		l.unsubBalance = unsubBalance
	}

	unsubHistory, err := l.remote.Subscribe(models.DonationHistoryPath(uid), func(v any) {
		l.enqueue(func() { l.onHistory(v) })
	})
	if err != nil {
		logrus.Errorf("Error subscribing to donation history for %s: %s", uid, err.Error())
	} else {
		l.unsubHistory = unsubHistory
	}
}

func (l *WalletLedger) releaseSubscriptions() {
	if l.unsubBalance != nil {
		l.unsubBalance()
		l.unsubBalance = nil
	}
	if l.unsubHistory != nil {
		l.unsubHistory()
		l.unsubHistory = nil
	}
}

// onBalance applies a remote balance notification: overwrite memory, mirror
// to the local cache.
func (l *WalletLedger) onBalance(v any) {
	l.balance = models.CoerceAmount(v)
	if err := l.cache.Set(models.BalanceKey, formatAmount(l.balance)); err != nil {
		logrus.Errorf("Error saving local balance: %s", err.Error())
	}
	l.notifyListeners()
}

// onHistory replaces the donation list with the remote set and recomputes
// the donation total. The remote is authoritative; there is no merge.
func (l *WalletLedger) onHistory(v any) {
	l.donations = donationsFromSnapshot(v)
	total := 0.0
	for _, rec := range l.donations {
		total += rec.Amount
	}
	l.totalDonated = total
	l.notifyListeners()
}

// AddFunds credits amount to the balance: memory and local cache
// synchronously, the remote store fire-and-forget when a session exists.
// There is no rollback on remote failure.
func (l *WalletLedger) AddFunds(amount float64) error {
	if !isFinite(amount) {
		return ErrInvalidAmount
	}

	l.do(func() {
		l.setBalance(l.balance + amount)
		l.publish(models.WalletFundedTopic, models.WalletFundedEvent{
			UserID:     l.userID,
			Amount:     amount,
			NewBalance: l.balance,
			TraceID:    uuid.NewString(),
			CreatedAt:  time.Now().UTC(),
		})
	})
	return nil
}

// MakeDonation debits amount for charityName. It fails, mutating nothing,
// when the balance does not cover the amount. On success the debit is
// applied immediately and a dedup-aware history upsert is scheduled against
// a fresh remote snapshot; callers must not assume the history write is
// durable when this returns.
func (l *WalletLedger) MakeDonation(amount float64, charityName string) bool {
	ok := false
	l.do(func() {
		if !isFinite(amount) || amount > l.balance {
			reason := "Insufficient funds"
			if !isFinite(amount) {
				reason = "Invalid amount"
			}
			l.publish(models.DonationRecordedTopic, models.DonationRecordedEvent{
				UserID:    l.userID,
				Charity:   charityName,
				Amount:    amount,
				Status:    models.DonationStatusDeclined,
				Reason:    reason,
				TraceID:   uuid.NewString(),
				CreatedAt: time.Now().UTC(),
			})
			return
		}
		ok = true

		l.setBalance(l.balance - amount)
		if l.userID != "" {
			uid := l.userID
			l.asyncWrite(func() { l.upsertDonation(uid, amount, charityName) })
		}
		l.publish(models.DonationRecordedTopic, models.DonationRecordedEvent{
			UserID:    l.userID,
			Charity:   charityName,
			Amount:    amount,
			Status:    models.DonationStatusConfirmed,
			TraceID:   uuid.NewString(),
			CreatedAt: time.Now().UTC(),
		})
	})
	return ok
}

// upsertDonation records one donation intent at most once: a confirmed
// record with the same amount and charity means the donation is already
// recorded; a provisional one is stamped with the current time instead of
// duplicated; otherwise a new record is pushed. The scan runs against
// whatever remote state is visible at this moment, not a transaction, so
// concurrent identical donations can still double-write.
func (l *WalletLedger) upsertDonation(uid string, amount float64, charityName string) {
	ctx := context.Background()
	historyPath := models.DonationHistoryPath(uid)

	snapshot, err := l.remote.Get(ctx, historyPath)
	if err != nil {
		logrus.Errorf("Error reading donation history: %s", err.Error())
		return
	}

	provisionalKey := ""
	if entries, ok := snapshot.(map[string]any); ok {
		for _, key := range sortedKeys(entries) {
			rec, ok := models.DonationRecordFromValue(entries[key])
			if !ok || rec.Amount != amount || rec.Charity != charityName {
				continue
			}
			if rec.Confirmed() {
				return
			}
			provisionalKey = key
			break
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if provisionalKey != "" {
		err = l.remote.Patch(ctx, historyPath, map[string]any{
			"/" + provisionalKey + "/date": now,
		})
	} else {
		key := l.remote.PushKey(historyPath)
		err = l.remote.Patch(ctx, historyPath, map[string]any{
			key: map[string]any{
				"charity": charityName,
				"amount":  amount,
				"date":    now,
			},
		})
	}
	if err != nil {
		logrus.Errorf("Error recording donation: %s", err.Error())
	}
}

// RecordDonation appends a record unconditionally: no dedup, no balance
// check. It is a narrower primitive for callers that validated and debited
// elsewhere; calling it alongside MakeDonation for the same donation writes
// the history twice. A no-op without a session.
func (l *WalletLedger) RecordDonation(rec models.DonationRecord) {
	l.do(func() {
		if l.userID == "" {
			return
		}
		uid := l.userID
		l.asyncWrite(func() {
			historyPath := models.DonationHistoryPath(uid)
			key := l.remote.PushKey(historyPath)
			if err := l.remote.Write(context.Background(), historyPath+"/"+key, rec.Value()); err != nil {
				logrus.Errorf("Error appending donation record: %s", err.Error())
			}
		})
	})
}

// SetGoal sets the target donation total. Session-scoped, never persisted.
func (l *WalletLedger) SetGoal(amount float64) {
	l.do(func() {
		l.goal = &amount
		l.notifyListeners()
	})
}

func (l *WalletLedger) Goal() *float64 {
	var goal *float64
	l.do(func() {
		if l.goal != nil {
			g := *l.goal
			goal = &g
		}
	})
	return goal
}

func (l *WalletLedger) Balance() float64 {
	var balance float64
	l.do(func() { balance = l.balance })
	return balance
}

func (l *WalletLedger) TotalDonated() float64 {
	var total float64
	l.do(func() { total = l.totalDonated })
	return total
}

// Donations returns a copy of the current history, in remote store
// iteration order.
func (l *WalletLedger) Donations() []models.DonationRecord {
	var donations []models.DonationRecord
	l.do(func() {
		donations = make([]models.DonationRecord, len(l.donations))
		copy(donations, l.donations)
	})
	return donations
}

// Snapshot returns the consumer view of the wallet.
func (l *WalletLedger) Snapshot() models.WalletSnapshot {
	var snapshot models.WalletSnapshot
	l.do(func() { snapshot = l.snapshot() })
	return snapshot
}

// OnChange registers fn for every state change; fn receives the snapshot
// and must not call back into the ledger synchronously. The returned
// function releases the registration.
func (l *WalletLedger) OnChange(fn func(models.WalletSnapshot)) func() {
	var id int
	l.do(func() {
		l.lastID++
		id = l.lastID
		l.listeners[id] = fn
	})
	return func() {
		l.do(func() { delete(l.listeners, id) })
	}
}

func (l *WalletLedger) snapshot() models.WalletSnapshot {
	s := models.WalletSnapshot{
		Balance:      l.balance,
		TotalDonated: l.totalDonated,
	}
	if l.goal != nil {
		g := *l.goal
		s.Goal = &g
		if g > 0 {
			progress := l.totalDonated / g * 100
			s.GoalProgress = &progress
		}
	}
	return s
}

func (l *WalletLedger) notifyListeners() {
	if len(l.listeners) == 0 {
		return
	}
	snapshot := l.snapshot()
	for _, fn := range l.listeners {
		fn(snapshot)
	}
}

// setBalance applies an optimistic balance: memory and local cache now, the
// remote store asynchronously when a session exists.
func (l *WalletLedger) setBalance(newBalance float64) {
	l.balance = newBalance
	if err := l.cache.Set(models.BalanceKey, formatAmount(newBalance)); err != nil {
		logrus.Errorf("Error saving local balance: %s", err.Error())
	}
	if l.userID != "" {
		uid := l.userID
		l.asyncWrite(func() {
			if err := l.remote.Write(context.Background(), models.BalancePath(uid), newBalance); err != nil {
				logrus.Errorf("Error writing remote balance: %s", err.Error())
			}
		})
	}
	l.notifyListeners()
}

func (l *WalletLedger) publish(topic string, message any) {
	if l.publisher == nil {
		return
	}
	go func() {
		if err := l.publisher.Publish(context.Background(), topic, message); err != nil {
			logrus.Errorf("Error publishing to %s: %s", topic, err.Error())
		}
	}()
}

func donationsFromSnapshot(v any) []models.DonationRecord {
	entries, ok := v.(map[string]any)
	if !ok || len(entries) == 0 {
		return nil
	}
	donations := make([]models.DonationRecord, 0, len(entries))
	for _, key := range sortedKeys(entries) {
		if rec, ok := models.DonationRecordFromValue(entries[key]); ok {
			donations = append(donations, rec)
		}
	}
	return donations
}

// sortedKeys restores insertion order: push keys embed their creation time,
// so lexicographic order is chronological.
func sortedKeys(entries map[string]any) []string {
	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func formatAmount(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
