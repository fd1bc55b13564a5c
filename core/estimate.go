package core

import "math"

// categoryPrices are coarse per-category price averages used for the
// pre-order estimate. They are currency-agnostic units, not real pricing.
var categoryPrices = map[Category]float64{
	CategoryVegetables: 40,
	CategoryFruits:     60,
	CategoryDairy:      50,
	CategoryProtein:    150,
	CategoryGrains:     80,
	CategorySpices:     30,
	CategoryPantry:     100,
	CategoryOther:      50,
}

// CategoryPrice returns the average price heuristic for a category. Unknown
// categories fall back to the "other" price.
func CategoryPrice(c Category) float64 {
	if price, ok := categoryPrices[c]; ok {
		return price
	}
	return categoryPrices[CategoryOther]
}

// EstimateRange is a coarse ±20% band around the category-average total.
type EstimateRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// EstimateTotal sums the category-average price over all items.
func EstimateTotal(items []GroceryItem) float64 {
	var total float64
	for _, item := range items {
		total += CategoryPrice(item.Category)
	}
	return total
}

// CalculateEstimate computes the ±20% estimate band for a shopping list.
func CalculateEstimate(items []GroceryItem) EstimateRange {
	base := EstimateTotal(items)
	return EstimateRange{
		Min: math.Round(base * 0.8),
		Max: math.Round(base * 1.2),
	}
}
