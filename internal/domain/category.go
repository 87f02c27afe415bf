package domain

import "strings"

// CategoryKind enumerates the business categories offered to users.
type CategoryKind string

const (
	CategoryTeaStall   CategoryKind = "tea-stall"
	CategoryStreetFood CategoryKind = "street-food"
	CategoryKirana     CategoryKind = "kirana"
	CategoryBakery     CategoryKind = "bakery"
	CategoryRestaurant CategoryKind = "restaurant"
	CategoryTailor     CategoryKind = "tailor"
	CategorySalon      CategoryKind = "salon"
	CategoryMobileShop CategoryKind = "mobile-repair"
	CategoryHandicraft CategoryKind = "handicraft"
	CategoryOther      CategoryKind = "other"
)

const maxOtherDescription = 60

var categoryLabels = map[CategoryKind]string{
	CategoryTeaStall:   "tea stall",
	CategoryStreetFood: "street food stall",
	CategoryKirana:     "kirana grocery store",
	CategoryBakery:     "bakery",
	CategoryRestaurant: "restaurant",
	CategoryTailor:     "tailoring shop",
	CategorySalon:      "beauty salon",
	CategoryMobileShop: "mobile repair shop",
	CategoryHandicraft: "handicraft seller",
}

// Category is a business category. Other carries the free-text description
// when Kind is CategoryOther.
type Category struct {
	Kind  CategoryKind `json:"kind"`
	Other string       `json:"other,omitempty"`
}

// ParseCategory normalizes free-form input into a Category. Unknown values
// are kept verbatim so that Validate can reject them.
func ParseCategory(kind, other string) Category {
	k := CategoryKind(strings.ToLower(strings.TrimSpace(kind)))
	k = CategoryKind(strings.ReplaceAll(string(k), "_", "-"))
	c := Category{Kind: k}
	if k == CategoryOther {
		c.Other = strings.TrimSpace(other)
	}
	return c
}

// Validate reports whether the category is a member of the fixed set.
func (c Category) Validate() error {
	if c.Kind == "" {
		return &ValidationError{Field: "category", Reason: "is required"}
	}
	if c.Kind == CategoryOther {
		if c.Other == "" {
			return &ValidationError{Field: "categoryOther", Reason: "is required when category is other"}
		}
		if len([]rune(c.Other)) > maxOtherDescription {
			return &ValidationError{Field: "categoryOther", Reason: "exceeds 60 characters"}
		}
		return nil
	}
	if _, ok := categoryLabels[c.Kind]; !ok {
		return &ValidationError{Field: "category", Reason: "is not supported"}
	}
	return nil
}

// Label returns a human readable description used in prompts.
func (c Category) Label() string {
	if c.Kind == CategoryOther {
		return c.Other
	}
	if label, ok := categoryLabels[c.Kind]; ok {
		return label
	}
	return string(c.Kind)
}

// Categories lists the supported kinds, excluding the free-text variant.
func Categories() []CategoryKind {
	return []CategoryKind{
		CategoryTeaStall, CategoryStreetFood, CategoryKirana, CategoryBakery, CategoryRestaurant,
		CategoryTailor, CategorySalon, CategoryMobileShop, CategoryHandicraft,
	}
}
