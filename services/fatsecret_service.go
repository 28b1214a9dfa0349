package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultTokenURL  = "https://oauth.fatsecret.com/connect/token"
	DefaultSearchURL = "https://platform.fatsecret.com/rest/foods/search/v1"

	// tokens are treated as expired this long before FatSecret says they are
	tokenExpiryMargin = 60 * time.Second
	searchMaxResults  = 50
)

// CredentialProvider hands out a bearer token for the nutrition API.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
}

// TokenSource fetches OAuth2 client-credentials tokens and caches them until
// shortly before expiry. Concurrent refreshes share one request.
type TokenSource struct {
	clientID, clientSecret string
	tokenURL               string
	client                 *http.Client
	now                    func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
	sf     singleflight.Group
}

func NewTokenSource(clientID, clientSecret, tokenURL string, client *http.Client) *TokenSource {
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &TokenSource{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     tokenURL,
		client:       client,
		now:          time.Now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	Error       string `json:"error"`
}

func (ts *TokenSource) cached() (string, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.token != "" && ts.now().Before(ts.expiry) {
		return ts.token, true
	}
	return "", false
}

// Token returns the cached token or fetches a fresh one.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	if tok, ok := ts.cached(); ok {
		return tok, nil
	}
	v, err, _ := ts.sf.Do("token", func() (interface{}, error) {
		if tok, ok := ts.cached(); ok {
			return tok, nil
		}
		return ts.fetch(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached token, e.g. after the API rejects it.
func (ts *TokenSource) Invalidate() {
	ts.mu.Lock()
	ts.token = ""
	ts.expiry = time.Time{}
	ts.mu.Unlock()
}

func (ts *TokenSource) fetch(ctx context.Context) (string, error) {
	if ts.clientID == "" || ts.clientSecret == "" {
		return "", errors.New("FATSECRET_CLIENT_ID / FATSECRET_CLIENT_SECRET not set")
	}
	form := url.Values{"grant_type": {"client_credentials"}, "scope": {"basic"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.tokenURL, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(ts.clientID, ts.clientSecret)

	requestedAt := ts.now()
	resp, err := ts.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call FatSecret token endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fatsecret token error %d: %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("failed to parse token JSON: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("fatsecret token response missing access_token: %s", tr.Error)
	}

	lifetime := time.Duration(tr.ExpiresIn) * time.Second
	ts.mu.Lock()
	ts.token = tr.AccessToken
	ts.expiry = requestedAt.Add(lifetime - expiryMargin(lifetime))
	ts.mu.Unlock()
	return tr.AccessToken, nil
}

// expiryMargin is tokenExpiryMargin, capped at half of short lifetimes so a
// fresh token is never cached already expired.
func expiryMargin(lifetime time.Duration) time.Duration {
	if half := lifetime / 2; half < tokenExpiryMargin {
		return half
	}
	return tokenExpiryMargin
}

// RawFood is one hit from foods.search.
type RawFood struct {
	FoodID      string `json:"food_id"`
	FoodName    string `json:"food_name"`
	BrandName   string `json:"brand_name"`
	Description string `json:"food_description"`
}

// FoodSearcher is the keyword search the name resolver relies on.
type FoodSearcher interface {
	SearchFoods(ctx context.Context, term string) ([]RawFood, error)
}

// APIError is an error payload FatSecret returns with a 200 status.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("fatsecret API error %d: %s", e.Code, e.Message)
}

// foodList accepts both a single object and an array; FatSecret collapses
// one-element results into an object.
type foodList []RawFood

func (l *foodList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*l = nil
		return nil
	}
	if b[0] == '[' {
		var many []RawFood
		if err := json.Unmarshal(b, &many); err != nil {
			return err
		}
		*l = many
		return nil
	}
	var one RawFood
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	*l = foodList{one}
	return nil
}

type foodsSearchResponse struct {
	Foods *struct {
		Food foodList `json:"food"`
	} `json:"foods"`
	Error *APIError `json:"error"`
}

type FatSecretService struct {
	creds     CredentialProvider
	searchURL string
	client    *http.Client
}

// NewFatSecretService wires the search client to a credential provider.
func NewFatSecretService(creds CredentialProvider, searchURL string, client *http.Client) *FatSecretService {
	if searchURL == "" {
		searchURL = DefaultSearchURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &FatSecretService{creds: creds, searchURL: searchURL, client: client}
}

// SearchFoods runs foods.search for term and returns the raw hits.
func (s *FatSecretService) SearchFoods(ctx context.Context, term string) ([]RawFood, error) {
	token, err := s.creds.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("fatsecret credential unavailable: %w", err)
	}

	q := url.Values{
		"search_expression": {term},
		"format":            {"json"},
		"max_results":       {fmt.Sprint(searchMaxResults)},
		"page_number":       {"0"},
	}
	u := s.searchURL
	if strings.Contains(u, "?") {
		u += "&" + q.Encode()
	} else {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call FatSecret search: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		if inv, ok := s.creds.(interface{ Invalidate() }); ok {
			inv.Invalidate()
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fatsecret search API error %d: %s", resp.StatusCode, string(body))
	}

	var sr foodsSearchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("failed to parse search JSON: %w", err)
	}
	if sr.Error != nil {
		return nil, sr.Error
	}
	if sr.Foods == nil {
		return nil, nil
	}
	return sr.Foods.Food, nil
}
