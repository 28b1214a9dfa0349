package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"macromap/utils"
)

const (
	DefaultChunkSize  = 5
	DefaultRankLimit  = 50
	DefaultRefreshTTL = 24 * time.Hour
)

type MenuServiceConfig struct {
	// ChunkSize is how many restaurants are fetched in parallel at once.
	ChunkSize int
	// RankLimit is the per-restaurant cap when a request gives none.
	RankLimit int
	// RefreshTTL skips batch refreshes of records updated more recently.
	// Zero refreshes every time.
	RefreshTTL time.Duration
}

// UpdateListener hears about refreshes that added menu items.
type UpdateListener interface {
	RestaurantUpdated(name string, added int)
}

// MenuService ties name resolution, the merge store and ranking together.
type MenuService struct {
	resolver *Resolver
	store    RestaurantStore
	notifier Notifier
	listener UpdateListener
	cfg      MenuServiceConfig
	locks    *utils.KeyedMutex
	inflight singleflight.Group
	now      func() time.Time
}

func NewMenuService(resolver *Resolver, store RestaurantStore, cfg MenuServiceConfig) *MenuService {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.RankLimit <= 0 {
		cfg.RankLimit = DefaultRankLimit
	}
	if cfg.RefreshTTL < 0 {
		cfg.RefreshTTL = 0
	}
	return &MenuService{
		resolver: resolver,
		store:    store,
		notifier: NopNotifier{},
		cfg:      cfg,
		locks:    utils.NewKeyedMutex(),
		now:      time.Now,
	}
}

// WithNotifier sets where sweep summaries go.
func (s *MenuService) WithNotifier(n Notifier) *MenuService {
	if n != nil {
		s.notifier = n
	}
	return s
}

// WithListener sets who hears about restaurants that gained items.
func (s *MenuService) WithListener(l UpdateListener) *MenuService {
	s.listener = l
	return s
}

func (s *MenuService) Store() RestaurantStore { return s.store }

// RankLimit is the configured default per-restaurant cap.
func (s *MenuService) RankLimit() int { return s.cfg.RankLimit }

// RefreshRestaurant resolves name against FatSecret and merges what it finds.
// A name with no usable results returns ErrNoCandidate and leaves the stored
// record alone. Concurrent calls for the same name share one fetch.
func (s *MenuService) RefreshRestaurant(ctx context.Context, name string) (int, error) {
	v, err, _ := s.inflight.Do(name, func() (interface{}, error) {
		return s.refresh(ctx, name)
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (s *MenuService) refresh(ctx context.Context, name string) (int, error) {
	res, err := s.resolver.Resolve(ctx, name)
	if err != nil {
		return 0, err
	}

	unlock := s.locks.Lock(name)
	added, err := s.store.Merge(ctx, name, res.Items)
	unlock()
	if err != nil {
		return 0, err
	}
	log.Printf("[DB]   %s: %d new items", name, added)
	if added > 0 && s.listener != nil {
		s.listener.RestaurantUpdated(name, added)
	}
	return added, nil
}

// isFresh reports whether the stored record is recent enough to skip.
func (s *MenuService) isFresh(ctx context.Context, name string) bool {
	if s.cfg.RefreshTTL == 0 {
		return false
	}
	r, err := s.store.Get(ctx, name)
	if err != nil || r == nil {
		return false
	}
	return s.now().Sub(r.LastUpdated) < s.cfg.RefreshTTL
}

// RefreshBatch refreshes stale names ChunkSize at a time. A chunk finishes
// before the next starts. Failures are logged and skipped.
func (s *MenuService) RefreshBatch(ctx context.Context, names []string) {
	// the batch outlives a disconnecting client
	ctx = context.WithoutCancel(ctx)

	var stale []string
	for _, n := range uniqueNames(names) {
		if !s.isFresh(ctx, n) {
			stale = append(stale, n)
		}
	}

	for start := 0; start < len(stale); start += s.cfg.ChunkSize {
		end := start + s.cfg.ChunkSize
		if end > len(stale) {
			end = len(stale)
		}
		var g errgroup.Group
		for _, name := range stale[start:end] {
			name := name
			g.Go(func() error {
				if _, err := s.RefreshRestaurant(ctx, name); err != nil && !errors.Is(err, ErrNoCandidate) {
					log.Printf("[ERROR] refreshing %s: %v", name, err)
				}
				return nil
			})
		}
		_ = g.Wait()
	}
}

// Rank refreshes the requested restaurants and then ranks what is stored.
// limit <= 0 uses the configured default.
func (s *MenuService) Rank(ctx context.Context, names []string, limit int) ([]RankedRestaurant, error) {
	names = uniqueNames(names)
	if limit <= 0 {
		limit = s.cfg.RankLimit
	}
	s.RefreshBatch(ctx, names)
	ranked, err := s.store.Rank(ctx, names, limit)
	if err != nil {
		return nil, fmt.Errorf("rank restaurants: %w", err)
	}
	return ranked, nil
}

// Sweep runs the store's maintenance pass and reports removals.
func (s *MenuService) Sweep(ctx context.Context) (SweepResult, error) {
	res, err := s.store.Sweep(ctx)
	if err != nil {
		return SweepResult{}, err
	}
	log.Printf("[CLEANUP] removed %d items, %d restaurants", res.ItemsRemoved, res.RestaurantsRemoved)
	if res.ItemsRemoved > 0 || res.RestaurantsRemoved > 0 {
		msg := fmt.Sprintf("Maintenance sweep removed %d menu items and %d empty restaurants.",
			res.ItemsRemoved, res.RestaurantsRemoved)
		if err := s.notifier.Notify(ctx, "macromap sweep", msg); err != nil {
			log.Printf("[NOTIFY] sweep summary not sent: %v", err)
		}
	}
	return res, nil
}

func uniqueNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
