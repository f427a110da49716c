package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const subscriptionQueueSize = 64

// Node is one scalar leaf in the document tree. Interior paths exist only
// implicitly, through their children.
type Node struct {
	Path      string `gorm:"primaryKey;size:512"`
	Value     string `gorm:"not null"`
	UpdatedAt time.Time
}

// TreeStore is a path-addressed document store. Writes replace whole
// subtrees, patches replace individual child paths, and subscriptions are
// notified with a fresh snapshot of their path after every mutation that
// touches it. Notifications for one subscription are delivered in order;
// there is no ordering guarantee across subscriptions.
type TreeStore struct {
	db *gorm.DB

	mu     sync.Mutex
	subs   map[int]*subscription
	lastID int
}

type subscription struct {
	path  string
	queue chan any
	done  chan struct{}
	once  sync.Once
}

func NewTreeStore(db *gorm.DB) (*TreeStore, error) {
	if err := db.AutoMigrate(&Node{}); err != nil {
		return nil, fmt.Errorf("migrating remote nodes: %w", err)
	}
	return &TreeStore{
		db:   db,
		subs: make(map[int]*subscription),
	}, nil
}

// Get returns the value at path: the decoded scalar for a leaf, a nested
// map[string]any for an interior path, or nil when nothing exists there.
func (s *TreeStore) Get(ctx context.Context, path string) (any, error) {
	var node Node
	err := s.db.WithContext(ctx).Where("path = ?", path).First(&node).Error
	if err == nil {
		return decodeLeaf(node.Value)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var children []Node
	if err := s.db.WithContext(ctx).Where("path LIKE ?", path+"/%").Find(&children).Error; err != nil {
		return nil, err
	}
	if len(children) == 0 {
		return nil, nil
	}

	tree := make(map[string]any)
	for _, child := range children {
		value, err := decodeLeaf(child.Value)
		if err != nil {
			return nil, err
		}
		insert(tree, strings.Split(strings.TrimPrefix(child.Path, path+"/"), "/"), value)
	}
	return tree, nil
}

// Write replaces the subtree at path with value. Maps decompose into leaf
// rows; a nil value deletes the subtree.
func (s *TreeStore) Write(ctx context.Context, path string, value any) error {
	leaves := make(map[string]string)
	if value != nil {
		if err := flatten(path, value, leaves); err != nil {
			return err
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("path = ? OR path LIKE ?", path, path+"/%").Delete(&Node{}).Error; err != nil {
			return err
		}
		return upsertLeaves(tx, leaves)
	})
	if err != nil {
		return err
	}

	s.notify(ctx, path)
	return nil
}

// Patch applies updates relative to path. Each key may itself be a slash
// path; each update replaces only the subtree it names, leaving siblings
// untouched.
func (s *TreeStore) Patch(ctx context.Context, path string, updates map[string]any) error {
	leaves := make(map[string]string)
	roots := make([]string, 0, len(updates))
	for rel, value := range updates {
		target := path + "/" + strings.Trim(rel, "/")
		roots = append(roots, target)
		if value == nil {
			continue
		}
		if err := flatten(target, value, leaves); err != nil {
			return err
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, target := range roots {
			if err := tx.Where("path = ? OR path LIKE ?", target, target+"/%").Delete(&Node{}).Error; err != nil {
				return err
			}
		}
		return upsertLeaves(tx, leaves)
	})
	if err != nil {
		return err
	}

	s.notify(ctx, path)
	return nil
}

// PushKey returns a child key for path. Keys embed the creation time so
// that lexicographic order equals insertion order.
func (s *TreeStore) PushKey(path string) string {
	return fmt.Sprintf("%013x-%06x", time.Now().UnixMilli(), rand.Int31n(1<<24))
}

// Subscribe registers fn for the value at path. The current snapshot is
// delivered first, then one snapshot per mutation touching the path, each
// from a dedicated delivery goroutine. The returned function releases the
// subscription; deliveries already queued may still arrive while it runs.
func (s *TreeStore) Subscribe(path string, fn func(value any)) (func(), error) {
	snapshot, err := s.Get(context.Background(), path)
	if err != nil {
		return nil, err
	}

	sub := &subscription{
		path:  path,
		queue: make(chan any, subscriptionQueueSize),
		done:  make(chan struct{}),
	}
	sub.queue <- snapshot

	s.mu.Lock()
	s.lastID++
	id := s.lastID
	s.subs[id] = sub
	s.mu.Unlock()

	go sub.run(fn)

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
		sub.once.Do(func() { close(sub.done) })
	}, nil
}

func (sub *subscription) run(fn func(value any)) {
	for {
		select {
		case <-sub.done:
			return
		case value := <-sub.queue:
			fn(value)
		}
	}
}

// notify re-reads the snapshot of every subscription whose path overlaps the
// mutated root and queues it for delivery.
func (s *TreeStore) notify(ctx context.Context, root string) {
	s.mu.Lock()
	affected := make([]*subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		if overlaps(sub.path, root) {
			affected = append(affected, sub)
		}
	}
	s.mu.Unlock()

	for _, sub := range affected {
		snapshot, err := s.Get(ctx, sub.path)
		if err != nil {
			logrus.Errorf("Error reading snapshot for %s: %s", sub.path, err.Error())
			continue
		}
		select {
		case sub.queue <- snapshot:
		default:
			logrus.Warnf("Dropping change notification for %s: queue full", sub.path)
		}
	}
}

func overlaps(a, b string) bool {
	return a == b || strings.HasPrefix(a, b+"/") || strings.HasPrefix(b, a+"/")
}

func upsertLeaves(tx *gorm.DB, leaves map[string]string) error {
	paths := make([]string, 0, len(leaves))
	for p := range leaves {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		node := Node{Path: p, Value: leaves[p], UpdatedAt: time.Now()}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&node).Error; err != nil {
			return err
		}
	}
	return nil
}

func flatten(prefix string, value any, out map[string]string) error {
	if m, ok := value.(map[string]any); ok {
		for key, child := range m {
			if child == nil {
				continue
			}
			if strings.Contains(key, "/") {
				return fmt.Errorf("invalid key %q: keys cannot contain '/'", key)
			}
			if err := flatten(prefix+"/"+key, child, out); err != nil {
				return err
			}
		}
		return nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding value at %s: %w", prefix, err)
	}
	out[prefix] = string(raw)
	return nil
}

func decodeLeaf(raw string) (any, error) {
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return nil, fmt.Errorf("decoding leaf: %w", err)
	}
	return value, nil
}

func insert(tree map[string]any, segments []string, value any) {
	if len(segments) == 1 {
		tree[segments[0]] = value
		return
	}
	child, ok := tree[segments[0]].(map[string]any)
	if !ok {
		child = make(map[string]any)
		tree[segments[0]] = child
	}
	insert(child, segments[1:], value)
}
