package core

import "strings"

// BuiltInCategory enumerates the categories the application ships with.
type BuiltInCategory string

const (
	CategoryFood          BuiltInCategory = "food"
	CategoryTransport     BuiltInCategory = "transport"
	CategoryShopping      BuiltInCategory = "shopping"
	CategoryBills         BuiltInCategory = "bills"
	CategoryEntertainment BuiltInCategory = "entertainment"
	CategoryHealth        BuiltInCategory = "health"
	CategoryEducation     BuiltInCategory = "education"
	CategoryTransfer      BuiltInCategory = "transfer"
	CategoryOther         BuiltInCategory = "other"
)

// Category is either a built-in category or a free-form custom one.
// The zero value is the built-in "other" category.
type Category struct {
	builtIn BuiltInCategory
	custom  string
}

// BuiltIn wraps a built-in category.
func BuiltIn(b BuiltInCategory) Category {
	return Category{builtIn: b}
}

// Custom wraps a user-defined category name.
func Custom(name string) Category {
	return Category{custom: strings.TrimSpace(name)}
}

// ParseCategory maps a stored category string onto a built-in when the
// name matches one, and a custom category otherwise.
func ParseCategory(name string) Category {
	normalized := BuiltInCategory(strings.ToLower(strings.TrimSpace(name)))
	switch normalized {
	case CategoryFood, CategoryTransport, CategoryShopping, CategoryBills,
		CategoryEntertainment, CategoryHealth, CategoryEducation,
		CategoryTransfer, CategoryOther:
		return BuiltIn(normalized)
	}
	return Custom(name)
}

func (c Category) IsCustom() bool {
	return c.custom != ""
}

// Display returns the human-readable category name.
func (c Category) Display() string {
	if c.custom != "" {
		return c.custom
	}
	switch c.builtIn {
	case CategoryFood:
		return "Food & Dining"
	case CategoryTransport:
		return "Transport"
	case CategoryShopping:
		return "Shopping"
	case CategoryBills:
		return "Bills & Utilities"
	case CategoryEntertainment:
		return "Entertainment"
	case CategoryHealth:
		return "Health"
	case CategoryEducation:
		return "Education"
	case CategoryTransfer:
		return "Transfers"
	default:
		return "Other"
	}
}

// Icon returns the emoji shown next to the category.
func (c Category) Icon() string {
	if c.custom != "" {
		return "🏷️"
	}
	switch c.builtIn {
	case CategoryFood:
		return "🍽️"
	case CategoryTransport:
		return "🚌"
	case CategoryShopping:
		return "🛍️"
	case CategoryBills:
		return "🧾"
	case CategoryEntertainment:
		return "🎬"
	case CategoryHealth:
		return "🏥"
	case CategoryEducation:
		return "🎓"
	case CategoryTransfer:
		return "🔁"
	default:
		return "💳"
	}
}

// Key returns the canonical string used for grouping and persistence.
func (c Category) Key() string {
	if c.custom != "" {
		return c.custom
	}
	if c.builtIn == "" {
		return string(CategoryOther)
	}
	return string(c.builtIn)
}
