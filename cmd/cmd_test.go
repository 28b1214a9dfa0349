package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macromap/models"
	"macromap/services"
	"macromap/utils"
)

type tableSearcher map[string][]services.RawFood

func (t tableSearcher) SearchFoods(ctx context.Context, term string) ([]services.RawFood, error) {
	return t[term], nil
}

func newSeedService(t *testing.T, foods tableSearcher) (*services.MenuService, services.RestaurantStore) {
	t.Helper()
	store, err := services.NewBoltStore(filepath.Join(t.TempDir(), "seed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return services.NewMenuService(services.NewResolver(foods), store, services.MenuServiceConfig{}), store
}

func meal(name string, cal, prot float64) services.RawFood {
	return services.RawFood{
		FoodName:    name,
		Description: fmt.Sprintf("Per 1 serving - Calories: %gkcal | Fat: 9.00g | Carbs: 40.00g | Protein: %gg", cal, prot),
	}
}

func TestTopChains(t *testing.T) {
	assert.Len(t, topChains, 50)
	seen := map[string]bool{}
	for _, n := range topChains {
		assert.False(t, seen[n], n)
		seen[n] = true
	}
}

func TestReadNames(t *testing.T) {
	names, err := readNames(strings.NewReader("# chains\nSubway\n\n  Taco Bell  \n#Wendy's\nKFC\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Subway", "Taco Bell", "KFC"}, names)
}

func TestSeedSkipsFailures(t *testing.T) {
	menus, store := newSeedService(t, tableSearcher{
		"Subway": {meal("Turkey Sub", 280, 18), meal("Cookie", 210, 2)},
		"KFC":    {meal("Grilled Thigh", 150, 17)},
	})

	st := seed(context.Background(), menus, []string{"Subway", "Nowhere Diner", "KFC"}, time.Millisecond)
	assert.Equal(t, seedStats{Seeded: 2, Added: 3}, st)

	r, err := store.Get(context.Background(), "Nowhere Diner")
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestSeedStopsOnCancel(t *testing.T) {
	menus, _ := newSeedService(t, tableSearcher{"Subway": {meal("Turkey Sub", 280, 18)}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st := seed(ctx, menus, []string{"Subway", "Subway"}, time.Hour)
	assert.Equal(t, 0, st.Seeded)
}

func TestSnapshot(t *testing.T) {
	_, store := newSeedService(t, nil)
	ctx := context.Background()
	_, err := store.Merge(ctx, "Arby's", []models.MenuItem{{FoodName: "Roast Turkey", Calories: 440, Protein: 30}})
	require.NoError(t, err)

	data, err := snapshot(ctx, store)
	require.NoError(t, err)

	var out []map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	require.Len(t, out, 1)
	assert.Equal(t, "Arby's", out[0]["restaurant"])
	servings := out[0]["servings"].([]any)
	require.Len(t, servings, 1)
	assert.Equal(t, "Roast Turkey", servings[0].(map[string]any)["food_name"])
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE_DRIVER", "")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"token", "--subject", "cron", "--ttl", "1h"})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })
	require.NoError(t, rootCmd.Execute())

	sub, err := utils.ParseAdminJWT("s3cret", strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "cron", sub)
}
