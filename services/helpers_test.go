package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"macromap/models"
)

// newTestBoltStore opens a bbolt store in a temp dir.
func newTestBoltStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// newTestGormStore opens a migrated sqlite-backed gorm store in a temp dir.
func newTestGormStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.sqlite")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	s := NewGormStore(db)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func item(name string, cal, prot float64) models.MenuItem {
	return models.MenuItem{FoodName: name, Calories: cal, Protein: prot}
}

func itemNames(r *models.Restaurant) []string {
	out := make([]string, 0, len(r.Servings))
	for _, s := range r.Servings {
		out = append(out, s.FoodName)
	}
	return out
}

// desc renders macros the way FatSecret does.
func desc(cal, prot, carbs float64) string {
	return fmt.Sprintf("Per 1 serving - Calories: %gkcal | Fat: 1.00g | Carbs: %gg | Protein: %gg", cal, carbs, prot)
}

// fakeSearcher answers SearchFoods from a table and records calls.
type fakeSearcher struct {
	mu      sync.Mutex
	results map[string][]RawFood
	errs    map[string]error
	calls   []string
	delay   time.Duration

	inflight int32
	peak     int32
}

func newFakeSearcher() *fakeSearcher {
	return &fakeSearcher{results: map[string][]RawFood{}, errs: map[string]error{}}
}

func (f *fakeSearcher) add(term string, foods ...RawFood) *fakeSearcher {
	f.results[term] = foods
	return f
}

func (f *fakeSearcher) fail(term string, err error) *fakeSearcher {
	f.errs[term] = err
	return f
}

func (f *fakeSearcher) SearchFoods(ctx context.Context, term string) ([]RawFood, error) {
	n := atomic.AddInt32(&f.inflight, 1)
	defer atomic.AddInt32(&f.inflight, -1)
	for {
		p := atomic.LoadInt32(&f.peak)
		if n <= p || atomic.CompareAndSwapInt32(&f.peak, p, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, term)
	if err := f.errs[term]; err != nil {
		return nil, err
	}
	return f.results[term], nil
}

func (f *fakeSearcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func food(name string, cal, prot float64) RawFood {
	return RawFood{FoodName: name, Description: desc(cal, prot, 10)}
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(ctx context.Context, subject, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return nil
}

type recordingListener struct {
	mu     sync.Mutex
	events map[string]int
}

func (l *recordingListener) RestaurantUpdated(name string, added int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.events == nil {
		l.events = map[string]int{}
	}
	l.events[name] += added
}
