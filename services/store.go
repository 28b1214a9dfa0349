package services

import (
	"context"
	"sort"

	"macromap/models"
	"macromap/utils"
)

// BrowseLimit caps /browse results.
const BrowseLimit = 50

// RestaurantStore persists restaurant menus. Implementations: GormStore
// (postgres) and BoltStore (embedded file).
type RestaurantStore interface {
	// Get returns nil, nil when the restaurant is unknown.
	Get(ctx context.Context, name string) (*models.Restaurant, error)

	// Merge creates the restaurant with items, or appends the items whose
	// name is not on the menu yet. Existing items are never modified.
	// Returns the number of items added.
	Merge(ctx context.Context, name string, items []models.MenuItem) (int, error)

	// Rank returns the named restaurants with their top limit items by
	// health score, best restaurant first.
	Rank(ctx context.Context, names []string, limit int) ([]RankedRestaurant, error)

	// Browse matches search as a case-insensitive substring of the name.
	Browse(ctx context.Context, search string, limit int) ([]models.Restaurant, error)

	// Sweep drops malformed items, then restaurants left without a menu.
	Sweep(ctx context.Context) (SweepResult, error)

	// All returns every stored record, used for snapshots.
	All(ctx context.Context) ([]models.Restaurant, error)

	Close() error
}

type RankedItem struct {
	Item  string  `json:"item"`
	Cal   float64 `json:"cal"`
	Prot  float64 `json:"prot"`
	Score float64 `json:"score"`
}

type RankedRestaurant struct {
	Name      string       `json:"name"`
	Menu      []RankedItem `json:"menu"`
	BestScore float64      `json:"bestScore"`
}

type SweepResult struct {
	ItemsRemoved       int64 `json:"itemsRemoved"`
	RestaurantsRemoved int64 `json:"restaurantsRemoved"`
}

// RankRestaurants scores every item, keeps each restaurant's top limit items
// and orders restaurants by their best score. Ties keep input order.
// Restaurants without items are left out.
func RankRestaurants(records []models.Restaurant, limit int) []RankedRestaurant {
	out := make([]RankedRestaurant, 0, len(records))
	for _, r := range records {
		if len(r.Servings) == 0 {
			continue
		}
		menu := make([]RankedItem, 0, len(r.Servings))
		for _, s := range r.Servings {
			menu = append(menu, RankedItem{
				Item:  s.FoodName,
				Cal:   s.Calories,
				Prot:  s.Protein,
				Score: utils.HealthScore(s.Protein, s.Calories),
			})
		}
		sort.SliceStable(menu, func(i, j int) bool { return menu[i].Score > menu[j].Score })
		if limit > 0 && len(menu) > limit {
			menu = menu[:limit]
		}
		out = append(out, RankedRestaurant{Name: r.Name, Menu: menu, BestScore: menu[0].Score})
	}
	sortByBestScore(out)
	return out
}

func sortByBestScore(rs []RankedRestaurant) {
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].BestScore > rs[j].BestScore })
}

// dedupeItems keeps the first item for each name.
func dedupeItems(items []models.MenuItem) []models.MenuItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]models.MenuItem, 0, len(items))
	for _, it := range items {
		if _, dup := seen[it.FoodName]; dup {
			continue
		}
		seen[it.FoodName] = struct{}{}
		out = append(out, it)
	}
	return out
}
