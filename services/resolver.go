package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"unicode/utf8"

	"macromap/models"
	"macromap/utils"
)

const minCandidateLen = 3

// ErrNoCandidate means no search term derived from a place name returned
// calorie-bearing foods.
var ErrNoCandidate = errors.New("no candidate term returned calorie data")

// CandidateTerms turns a place name like "McDonald's Store #4521" into the
// search terms to try, most specific first. Word-prefix truncation stops at
// two words.
func CandidateTerms(name string) []string {
	name = strings.TrimSpace(name)
	var out []string
	seen := make(map[string]struct{})
	add := func(term string) {
		if utf8.RuneCountInString(term) < minCandidateLen {
			return
		}
		if _, dup := seen[term]; dup {
			return
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}

	add(name)
	words := strings.Fields(name)
	for i := len(words) - 1; i >= 2; i-- {
		add(strings.Join(words[:i], " "))
	}
	if strings.ContainsAny(name, "'’") {
		add(strings.NewReplacer("'", "", "’", "").Replace(name))
	}
	return out
}

// Resolution is the first candidate that produced usable foods.
type Resolution struct {
	Term  string
	Items []models.MenuItem
}

type Resolver struct {
	foods FoodSearcher
}

func NewResolver(foods FoodSearcher) *Resolver {
	return &Resolver{foods: foods}
}

// Resolve tries each candidate term in order and commits to the first whose
// results carry a calorie figure. Search failures count as empty results.
func (r *Resolver) Resolve(ctx context.Context, name string) (*Resolution, error) {
	log.Printf("[SEARCH] Processing: %s", name)
	for _, term := range CandidateTerms(name) {
		hits, err := r.foods.SearchFoods(ctx, term)
		if err != nil {
			log.Printf("[SEARCH] request for %q failed: %v", term, err)
			continue
		}
		items := cleanItems(hits)
		if len(items) == 0 {
			continue
		}
		log.Printf("[SEARCH]   match for %q using %q (%d items)", name, term, len(items))
		return &Resolution{Term: term, Items: items}, nil
	}
	log.Printf("[SEARCH]   no valid results for %s", name)
	return nil, ErrNoCandidate
}

// cleanItems keeps hits with a calorie figure and parses their macros.
func cleanItems(hits []RawFood) []models.MenuItem {
	items := make([]models.MenuItem, 0, len(hits))
	for _, h := range hits {
		if !utils.HasCalorieFigure(h.Description) {
			continue
		}
		m := utils.ParseNutrients(h.Description)
		items = append(items, models.MenuItem{
			FoodName:     h.FoodName,
			Calories:     m.Calories,
			Protein:      m.Protein,
			Carbohydrate: m.Carbs,
		})
	}
	return items
}
