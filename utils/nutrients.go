package utils

import (
	"regexp"
	"strconv"
	"strings"
)

// Macros are the figures we keep from a FatSecret food_description such as
// "Per 1 burger - Calories: 250kcal | Fat: 9.00g | Carbs: 30.00g | Protein: 12.00g".
type Macros struct {
	Calories float64
	Protein  float64
	Carbs    float64
}

var (
	caloriesRe    = regexp.MustCompile(`(?i)calories:\s*(\d+(?:\.\d+)?)`)
	proteinRe     = regexp.MustCompile(`(?i)protein:\s*(\d+(?:\.\d+)?)`)
	carbsRe       = regexp.MustCompile(`(?i)carbs:\s*(\d+(?:\.\d+)?)`)
	hasCaloriesRe = regexp.MustCompile(`(?i)calories:\s*\d`)
	placeholders  = map[string]struct{}{
		"undefined": {},
		"null":      {},
		"n/a":       {},
	}
)

// ParseNutrients extracts calories, protein and carbs. Unmatched fields are 0.
func ParseNutrients(description string) Macros {
	if description == "" {
		return Macros{}
	}
	return Macros{
		Calories: firstNumber(caloriesRe, description),
		Protein:  firstNumber(proteinRe, description),
		Carbs:    firstNumber(carbsRe, description),
	}
}

// HasCalorieFigure reports whether the description carries a numeric calorie value.
func HasCalorieFigure(description string) bool {
	return hasCaloriesRe.MatchString(description)
}

// IsPlaceholderName reports whether a stored item name is empty or a known
// stand-in left behind by a bad upstream record.
func IsPlaceholderName(name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return true
	}
	_, ok := placeholders[n]
	return ok
}

func firstNumber(re *regexp.Regexp, s string) float64 {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return v
}
