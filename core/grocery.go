package core

// Category classifies a grocery item. The set is fixed; the planning layer
// never produces values outside it.
type Category string

// Grocery item categories.
const (
	CategoryVegetables Category = "vegetables"
	CategoryFruits     Category = "fruits"
	CategoryDairy      Category = "dairy"
	CategoryProtein    Category = "protein"
	CategoryGrains     Category = "grains"
	CategorySpices     Category = "spices"
	CategoryPantry     Category = "pantry"
	CategoryOther      Category = "other"
)

// Categories lists all valid categories in display order.
var Categories = []Category{
	CategoryVegetables,
	CategoryFruits,
	CategoryDairy,
	CategoryProtein,
	CategoryGrains,
	CategorySpices,
	CategoryPantry,
	CategoryOther,
}

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// GroceryItem is a single entry on the shopping list produced by the
// planning layer. The ordering core treats it as read-only input.
type GroceryItem struct {
	Name          string   `json:"name"`
	Quantity      string   `json:"quantity"` // numeric string, e.g. "500"
	Unit          string   `json:"unit"`     // "g", "kg", "pcs", ...
	Category      Category `json:"category"`
	SourceRecipes []string `json:"sourceRecipes,omitempty"`
}

// GroupByCategory buckets items by category preserving the item order within
// each bucket.
func GroupByCategory(items []GroceryItem) map[Category][]GroceryItem {
	grouped := make(map[Category][]GroceryItem)
	for _, item := range items {
		grouped[item.Category] = append(grouped[item.Category], item)
	}
	return grouped
}
