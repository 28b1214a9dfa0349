package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"gorm.io/gorm"

	"macromap/models"
	"macromap/utils"
)

// GormStore is the relational RestaurantStore (postgres in production).
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: time.Now}
}

// Migrate creates or updates the restaurants and menu_items tables.
func (s *GormStore) Migrate() error {
	return s.db.AutoMigrate(&models.Restaurant{}, &models.MenuItem{})
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) Get(ctx context.Context, name string) (*models.Restaurant, error) {
	var r models.Restaurant
	err := s.db.WithContext(ctx).
		Preload("Servings", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("name = ?", name).
		First(&r).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

func (s *GormStore) Merge(ctx context.Context, name string, items []models.MenuItem) (int, error) {
	added := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()
		var r models.Restaurant
		err := tx.Where("name = ?", name).First(&r).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fresh := dedupeItems(items)
			if len(fresh) == 0 {
				return nil
			}
			for i := range fresh {
				fresh[i].ID = 0
			}
			r = models.Restaurant{Name: name, LastUpdated: now, Servings: fresh}
			if err := tx.Create(&r).Error; err != nil {
				return err
			}
			added = len(fresh)
			return nil
		}
		if err != nil {
			return err
		}

		var existing []string
		if err := tx.Model(&models.MenuItem{}).
			Where("restaurant_id = ?", r.ID).
			Pluck("food_name", &existing).Error; err != nil {
			return err
		}
		known := make(map[string]struct{}, len(existing))
		for _, n := range existing {
			known[n] = struct{}{}
		}
		var fresh []models.MenuItem
		for _, it := range dedupeItems(items) {
			if _, ok := known[it.FoodName]; ok {
				continue
			}
			it.ID = 0
			it.RestaurantID = r.ID
			fresh = append(fresh, it)
		}
		if len(fresh) > 0 {
			if err := tx.Create(&fresh).Error; err != nil {
				return err
			}
		}
		added = len(fresh)
		return tx.Model(&r).Update("last_updated", now).Error
	})
	if err != nil {
		return 0, fmt.Errorf("merge %q: %w", name, err)
	}
	return added, nil
}

// rankRow is one row of the ranking query.
type rankRow struct {
	Restaurant string
	FoodName   string
	Calories   float64
	Protein    float64
}

// rankSQL scores items, numbers them per restaurant by descending score and
// keeps the first limit. Works on postgres and sqlite.
const rankSQL = `
WITH scored AS (
	SELECT r.name AS restaurant, m.id AS item_id, m.food_name, m.calories, m.protein,
		CASE WHEN m.calories > 0 THEN m.protein / m.calories ELSE 0 END AS score
	FROM menu_items m
	JOIN restaurants r ON r.id = m.restaurant_id
	WHERE r.name IN ? AND r.deleted_at IS NULL AND m.deleted_at IS NULL
), ranked AS (
	SELECT scored.*, ROW_NUMBER() OVER (PARTITION BY restaurant ORDER BY score DESC, item_id) AS rn
	FROM scored
)
SELECT restaurant, food_name, calories, protein
FROM ranked
WHERE rn <= ?
ORDER BY restaurant, rn`

func (s *GormStore) Rank(ctx context.Context, names []string, limit int) ([]RankedRestaurant, error) {
	if len(names) == 0 {
		return []RankedRestaurant{}, nil
	}
	if limit <= 0 {
		limit = math.MaxInt32
	}
	var rows []rankRow
	if err := s.db.WithContext(ctx).Raw(rankSQL, names, limit).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("rank query: %w", err)
	}

	out := []RankedRestaurant{}
	for _, row := range rows {
		item := RankedItem{
			Item:  row.FoodName,
			Cal:   row.Calories,
			Prot:  row.Protein,
			Score: utils.HealthScore(row.Protein, row.Calories),
		}
		// rows arrive grouped by restaurant, best item first
		if n := len(out); n == 0 || out[n-1].Name != row.Restaurant {
			out = append(out, RankedRestaurant{Name: row.Restaurant, BestScore: item.Score})
		}
		cur := &out[len(out)-1]
		cur.Menu = append(cur.Menu, item)
	}
	sortByBestScore(out)
	return out, nil
}

// escapeLike escapes LIKE wildcards so search text matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (s *GormStore) Browse(ctx context.Context, search string, limit int) ([]models.Restaurant, error) {
	q := s.db.WithContext(ctx).
		Preload("Servings", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Order("name")
	if search != "" {
		q = q.Where(`LOWER(name) LIKE ? ESCAPE '\'`, "%"+escapeLike(strings.ToLower(search))+"%")
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	out := []models.Restaurant{}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// sweepBatch bounds the id list of one DELETE.
const sweepBatch = 500

func (s *GormStore) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// SQL TRIM only strips spaces, so filter with the same predicate as BoltStore
		var rows []struct {
			ID       uint
			FoodName *string
		}
		if err := tx.Model(&models.MenuItem{}).Select("id", "food_name").Find(&rows).Error; err != nil {
			return err
		}
		var bad []uint
		for _, r := range rows {
			if r.FoodName == nil || utils.IsPlaceholderName(*r.FoodName) {
				bad = append(bad, r.ID)
			}
		}
		for start := 0; start < len(bad); start += sweepBatch {
			end := min(start+sweepBatch, len(bad))
			del := tx.Unscoped().Delete(&models.MenuItem{}, bad[start:end])
			if del.Error != nil {
				return del.Error
			}
			res.ItemsRemoved += del.RowsAffected
		}

		empty := tx.Unscoped().
			Where("NOT EXISTS (SELECT 1 FROM menu_items m WHERE m.restaurant_id = restaurants.id AND m.deleted_at IS NULL)").
			Delete(&models.Restaurant{})
		if empty.Error != nil {
			return empty.Error
		}
		res.RestaurantsRemoved = empty.RowsAffected
		return nil
	})
	if err != nil {
		return SweepResult{}, fmt.Errorf("sweep: %w", err)
	}
	return res, nil
}

func (s *GormStore) All(ctx context.Context) ([]models.Restaurant, error) {
	return s.Browse(ctx, "", 0)
}
