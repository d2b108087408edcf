package distribution

import (
	"fmt"
	"strings"
)

// MealPeriod is one of the canonical meal-period tokens.
type MealPeriod string

const (
	MealPeriodBreakfast MealPeriod = "breakfast"
	MealPeriodMidday    MealPeriod = "midday"
	MealPeriodEvening   MealPeriod = "evening"
)

func (m MealPeriod) String() string {
	return string(m)
}

// MealCategory binds a canonical token to the free-text aliases that resolve to it.
type MealCategory struct {
	Canonical MealPeriod
	Aliases   []string
}

// DefaultMealCategories is the alias vocabulary. Category order decides ties:
// breakfast, then midday, then evening.
var DefaultMealCategories = []MealCategory{
	{
		Canonical: MealPeriodBreakfast,
		Aliases:   []string{"petit déjeuner", "petit-dejeuner", "petit dejeuner", "breakfast", "matin", "pdj"},
	},
	{
		Canonical: MealPeriodMidday,
		Aliases:   []string{"midi", "déjeuner", "dejeuner", "repas de midi", "lunch"},
	},
	{
		Canonical: MealPeriodEvening,
		Aliases:   []string{"soir", "dîner", "diner", "souper", "repas du soir", "dinner"},
	},
}

// Normalizer maps free text onto a canonical MealPeriod.
type Normalizer struct {
	categories []MealCategory
}

// NewNormalizer builds a normalizer over the given categories, matched in slice order.
// Aliases are lowercased; accents are kept as written.
func NewNormalizer(categories []MealCategory) *Normalizer {
	normalized := make([]MealCategory, 0, len(categories))
	for _, category := range categories {
		aliases := make([]string, 0, len(category.Aliases))
		for _, alias := range category.Aliases {
			alias = strings.ToLower(strings.TrimSpace(alias))
			if alias != "" {
				aliases = append(aliases, alias)
			}
		}
		normalized = append(normalized, MealCategory{
			Canonical: MealPeriod(strings.ToLower(string(category.Canonical))),
			Aliases:   aliases,
		})
	}
	return &Normalizer{categories: normalized}
}

var defaultNormalizer = NewNormalizer(DefaultMealCategories)

// Normalize resolves text with the default vocabulary.
func Normalize(text string) (MealPeriod, error) {
	return defaultNormalizer.Normalize(text)
}

// Normalize returns the canonical token for text. An exact match against a canonical
// token or alias wins first; otherwise the first category with a token or alias found
// as a space-delimited phrase inside the text is returned.
func (n *Normalizer) Normalize(text string) (MealPeriod, error) {
	if text == "" {
		return "", n.invalid()
	}
	trimmed := strings.ToLower(strings.TrimSpace(text))

	for _, category := range n.categories {
		if trimmed == string(category.Canonical) {
			return category.Canonical, nil
		}
		for _, alias := range category.Aliases {
			if trimmed == alias {
				return category.Canonical, nil
			}
		}
	}

	padded := " " + trimmed + " "
	for _, category := range n.categories {
		if strings.Contains(padded, " "+string(category.Canonical)+" ") {
			return category.Canonical, nil
		}
		for _, alias := range category.Aliases {
			if strings.Contains(padded, " "+alias+" ") {
				return category.Canonical, nil
			}
		}
	}

	return "", n.invalid()
}

func (n *Normalizer) invalid() error {
	names := make([]string, 0, len(n.categories))
	for _, category := range n.categories {
		names = append(names, fmt.Sprintf("'%s'", category.Canonical))
	}
	return &ValidationError{Fields: []FieldError{{
		Field:   FieldMealPeriod,
		Message: fmt.Sprintf("meal_period must be %s (synonyms accepted)", joinChoices(names)),
		Type:    "value_error.meal_period",
	}}}
}

func joinChoices(names []string) string {
	switch len(names) {
	case 0:
		return "a known meal period"
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " or " + names[len(names)-1]
	}
}
