package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFatSecret struct {
	tokenCalls  int32
	searchCalls int32
	expiresIn   int64
	search      func(w http.ResponseWriter, r *http.Request)
	*httptest.Server
}

func newFakeFatSecret(t *testing.T) *fakeFatSecret {
	t.Helper()
	f := &fakeFatSecret{expiresIn: 86400}
	mux := http.NewServeMux()
	mux.HandleFunc("/connect/token", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&f.tokenCalls, 1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "id" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "basic", r.PostForm.Get("scope"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-" + string(rune('0'+n)),
			"expires_in":   f.expiresIn,
			"token_type":   "Bearer",
		})
	})
	mux.HandleFunc("/rest/foods/search/v1", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.searchCalls, 1)
		f.search(w, r)
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeFatSecret) service() (*FatSecretService, *TokenSource) {
	ts := NewTokenSource("id", "secret", f.URL+"/connect/token", f.Client())
	return NewFatSecretService(ts, f.URL+"/rest/foods/search/v1", f.Client()), ts
}

func TestSearchFoodsArray(t *testing.T) {
	f := newFakeFatSecret(t)
	f.search = func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "Burger King", r.URL.Query().Get("search_expression"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "50", r.URL.Query().Get("max_results"))
		assert.Equal(t, "0", r.URL.Query().Get("page_number"))
		_, _ = w.Write([]byte(`{"foods":{"food":[
			{"food_id":"1","food_name":"Whopper","brand_name":"Burger King","food_type":"Brand","food_description":"Per 1 burger - Calories: 670kcal | Fat: 40.00g | Carbs: 51.00g | Protein: 29.00g"},
			{"food_id":"2","food_name":"Fries","food_description":"Per 1 medium - Calories: 340kcal"}
		],"max_results":"50","page_number":"0","total_results":"2"}}`))
	}
	svc, _ := f.service()

	foods, err := svc.SearchFoods(context.Background(), "Burger King")
	require.NoError(t, err)
	require.Len(t, foods, 2)
	assert.Equal(t, "Whopper", foods[0].FoodName)
	assert.Equal(t, "Burger King", foods[0].BrandName)
	assert.Contains(t, foods[0].Description, "Calories: 670kcal")
}

func TestSearchFoodsSingleObject(t *testing.T) {
	f := newFakeFatSecret(t)
	f.search = func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"foods":{"food":{"food_id":"9","food_name":"Frosty","food_description":"Calories: 350kcal"}}}`))
	}
	svc, _ := f.service()

	foods, err := svc.SearchFoods(context.Background(), "Wendy's")
	require.NoError(t, err)
	require.Len(t, foods, 1)
	assert.Equal(t, "Frosty", foods[0].FoodName)
}

func TestSearchFoodsNoResults(t *testing.T) {
	f := newFakeFatSecret(t)
	f.search = func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"foods":{"max_results":"50","total_results":"0","page_number":"0"}}`))
	}
	svc, _ := f.service()

	foods, err := svc.SearchFoods(context.Background(), "zzz")
	require.NoError(t, err)
	assert.Empty(t, foods)
}

func TestSearchFoodsAPIErrorPayload(t *testing.T) {
	f := newFakeFatSecret(t)
	f.search = func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"code":12,"message":"User is performing too many actions"}}`))
	}
	svc, _ := f.service()

	_, err := svc.SearchFoods(context.Background(), "Subway")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 12, apiErr.Code)
}

func TestSearchFoodsHTTPFailureAndMalformed(t *testing.T) {
	f := newFakeFatSecret(t)
	f.search = func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("search_expression") == "bad" {
			_, _ = w.Write([]byte(`{not json`))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}
	svc, _ := f.service()

	_, err := svc.SearchFoods(context.Background(), "KFC")
	assert.ErrorContains(t, err, "502")
	_, err = svc.SearchFoods(context.Background(), "bad")
	assert.ErrorContains(t, err, "parse")
}

func TestSearchFoodsUnauthorizedDropsToken(t *testing.T) {
	f := newFakeFatSecret(t)
	var n int32
	f.search = func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&n, 1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"foods":{}}`))
	}
	svc, _ := f.service()

	_, err := svc.SearchFoods(context.Background(), "KFC")
	assert.Error(t, err)
	_, err = svc.SearchFoods(context.Background(), "KFC")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&f.tokenCalls))
}

func TestTokenSourceCachesUntilNearExpiry(t *testing.T) {
	f := newFakeFatSecret(t)
	f.expiresIn = 3600
	ts := NewTokenSource("id", "secret", f.URL+"/connect/token", f.Client())
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ts.now = func() time.Time { return clock }

	ctx := context.Background()
	tok, err := ts.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	clock = clock.Add(58 * time.Minute)
	tok, err = ts.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.tokenCalls))

	// inside the one minute margin
	clock = clock.Add(90 * time.Second)
	tok, err = ts.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok)
}

func TestTokenSourceShortLifetime(t *testing.T) {
	f := newFakeFatSecret(t)
	f.expiresIn = 30
	ts := NewTokenSource("id", "secret", f.URL+"/connect/token", f.Client())
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ts.now = func() time.Time { return clock }

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		tok, err := ts.Token(ctx)
		require.NoError(t, err)
		assert.Equal(t, "tok-1", tok)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.tokenCalls))

	// past half the 30s lifetime
	clock = clock.Add(16 * time.Second)
	tok, err := ts.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok)
}

func TestExpiryMargin(t *testing.T) {
	assert.Equal(t, time.Minute, expiryMargin(24*time.Hour))
	assert.Equal(t, time.Minute, expiryMargin(2*time.Minute))
	assert.Equal(t, 15*time.Second, expiryMargin(30*time.Second))
	assert.Equal(t, time.Duration(0), expiryMargin(0))
}

func TestTokenSourceConcurrentRefreshSharesRequest(t *testing.T) {
	f := newFakeFatSecret(t)
	ts := NewTokenSource("id", "secret", f.URL+"/connect/token", f.Client())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ts.Token(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, atomic.LoadInt32(&f.tokenCalls), int32(2))
}

func TestTokenSourceFailures(t *testing.T) {
	f := newFakeFatSecret(t)

	_, err := NewTokenSource("", "", f.URL+"/connect/token", f.Client()).Token(context.Background())
	assert.Error(t, err)

	_, err = NewTokenSource("id", "wrong", f.URL+"/connect/token", f.Client()).Token(context.Background())
	assert.ErrorContains(t, err, "401")

	f.search = func(w http.ResponseWriter, r *http.Request) { t.Error("search must not run without a token") }
	svc := NewFatSecretService(NewTokenSource("id", "wrong", f.URL+"/connect/token", f.Client()), f.URL+"/rest/foods/search/v1", f.Client())
	_, err = svc.SearchFoods(context.Background(), "KFC")
	assert.ErrorContains(t, err, "credential unavailable")
}
