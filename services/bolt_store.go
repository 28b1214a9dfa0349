package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"macromap/models"
	"macromap/utils"
)

var bucketRestaurants = []byte("restaurants")

// BoltStore keeps one JSON record per restaurant name in a single bucket.
// bbolt serializes writers, so a Merge's read-modify-write is atomic.
type BoltStore struct {
	db  *bolt.DB
	now func() time.Time
}

// NewBoltStore opens (or creates) the database file at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRestaurants)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bbolt init bucket: %w", err)
	}
	return &BoltStore{db: db, now: time.Now}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func decodeRestaurant(v []byte) (*models.Restaurant, error) {
	var r models.Restaurant
	if err := json.Unmarshal(v, &r); err != nil {
		return nil, fmt.Errorf("decode restaurant: %w", err)
	}
	return &r, nil
}

func putRestaurant(b *bolt.Bucket, r *models.Restaurant) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode restaurant: %w", err)
	}
	return b.Put([]byte(r.Name), data)
}

func (s *BoltStore) Get(ctx context.Context, name string) (*models.Restaurant, error) {
	var out *models.Restaurant
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketRestaurants).Get([]byte(name))
		if v == nil {
			return nil
		}
		r, err := decodeRestaurant(v)
		out = r
		return err
	})
	return out, err
}

func (s *BoltStore) Merge(ctx context.Context, name string, items []models.MenuItem) (int, error) {
	added := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRestaurants)
		now := s.now()
		v := b.Get([]byte(name))
		if v == nil {
			fresh := dedupeItems(items)
			if len(fresh) == 0 {
				return nil
			}
			added = len(fresh)
			return putRestaurant(b, &models.Restaurant{Name: name, LastUpdated: now, Servings: fresh})
		}
		r, err := decodeRestaurant(v)
		if err != nil {
			return err
		}
		for _, it := range dedupeItems(items) {
			if r.HasItem(it.FoodName) {
				continue
			}
			r.Servings = append(r.Servings, it)
			added++
		}
		r.LastUpdated = now
		return putRestaurant(b, r)
	})
	if err != nil {
		return 0, fmt.Errorf("merge %q: %w", name, err)
	}
	return added, nil
}

func (s *BoltStore) Rank(ctx context.Context, names []string, limit int) ([]RankedRestaurant, error) {
	var records []models.Restaurant
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRestaurants)
		seen := make(map[string]struct{}, len(names))
		for _, n := range names {
			if _, dup := seen[n]; dup {
				continue
			}
			seen[n] = struct{}{}
			v := b.Get([]byte(n))
			if v == nil {
				continue
			}
			r, err := decodeRestaurant(v)
			if err != nil {
				return err
			}
			records = append(records, *r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return RankRestaurants(records, limit), nil
}

func (s *BoltStore) Browse(ctx context.Context, search string, limit int) ([]models.Restaurant, error) {
	needle := strings.ToLower(search)
	out := []models.Restaurant{}
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketRestaurants).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if limit > 0 && len(out) >= limit {
				break
			}
			if !strings.Contains(strings.ToLower(string(k)), needle) {
				continue
			}
			r, err := decodeRestaurant(v)
			if err != nil {
				return err
			}
			out = append(out, *r)
		}
		return nil
	})
	return out, err
}

func (s *BoltStore) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRestaurants)
		var empty [][]byte
		var rewritten []*models.Restaurant
		err := b.ForEach(func(k, v []byte) error {
			r, err := decodeRestaurant(v)
			if err != nil {
				return err
			}
			kept := r.Servings[:0]
			for _, it := range r.Servings {
				if utils.IsPlaceholderName(it.FoodName) {
					res.ItemsRemoved++
					continue
				}
				kept = append(kept, it)
			}
			removed := len(kept) != len(r.Servings)
			r.Servings = kept
			switch {
			case len(kept) == 0:
				empty = append(empty, append([]byte(nil), k...))
			case removed:
				rewritten = append(rewritten, r)
			}
			return nil
		})
		if err != nil {
			return err
		}
		// bbolt forbids mutating a bucket while iterating it
		for _, r := range rewritten {
			if err := putRestaurant(b, r); err != nil {
				return err
			}
		}
		for _, k := range empty {
			if err := b.Delete(k); err != nil {
				return err
			}
			res.RestaurantsRemoved++
		}
		return nil
	})
	if err != nil {
		return SweepResult{}, fmt.Errorf("sweep: %w", err)
	}
	return res, nil
}

func (s *BoltStore) All(ctx context.Context) ([]models.Restaurant, error) {
	return s.Browse(ctx, "", 0)
}
