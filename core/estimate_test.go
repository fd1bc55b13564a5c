package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryPrice(t *testing.T) {
	assert.Equal(t, float64(40), CategoryPrice(CategoryVegetables))
	assert.Equal(t, float64(150), CategoryPrice(CategoryProtein))
	assert.Equal(t, float64(50), CategoryPrice(CategoryOther))

	// Unknown categories fall back to the "other" price.
	assert.Equal(t, float64(50), CategoryPrice(Category("frozen")))
}

func TestEstimateTotal(t *testing.T) {
	items := []GroceryItem{
		{Name: "milk", Category: CategoryDairy},
		{Name: "rice", Category: CategoryGrains},
	}
	assert.Equal(t, float64(130), EstimateTotal(items))

	assert.Equal(t, float64(0), EstimateTotal(nil))
}

func TestCalculateEstimate(t *testing.T) {
	items := []GroceryItem{
		{Name: "milk", Category: CategoryDairy},
		{Name: "rice", Category: CategoryGrains},
	}

	band := CalculateEstimate(items)
	assert.Equal(t, float64(104), band.Min)
	assert.Equal(t, float64(156), band.Max)
}

func TestCalculateEstimateRounds(t *testing.T) {
	band := CalculateEstimate([]GroceryItem{{Category: CategorySpices}})
	assert.Equal(t, float64(24), band.Min)
	assert.Equal(t, float64(36), band.Max)
}

func TestGroupByCategory(t *testing.T) {
	items := []GroceryItem{
		{Name: "spinach", Category: CategoryVegetables},
		{Name: "milk", Category: CategoryDairy},
		{Name: "tomato", Category: CategoryVegetables},
	}

	grouped := GroupByCategory(items)
	assert.Len(t, grouped, 2)
	assert.Equal(t, []GroceryItem{items[0], items[2]}, grouped[CategoryVegetables])
	assert.Equal(t, []GroceryItem{items[1]}, grouped[CategoryDairy])
}

func TestCategoryValid(t *testing.T) {
	for _, c := range Categories {
		assert.True(t, c.Valid())
	}
	assert.False(t, Category("frozen").Valid())
	assert.False(t, Category("").Valid())
}
