package builder

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hupe1980/cartpilot/core"
)

// systemPrompt carries the operating rules for the grocery ordering agent:
// search before add, prefer in-stock, quantity matching heuristics, and the
// skip-and-report rule after two failed searches per item.
const systemPrompt = `You are a grocery shopping assistant. Your job is to order groceries from Swiggy Instamart on behalf of the user.

You can:
1. Search for products by name using search_products
2. Add items to the cart using add_to_cart
3. View cart contents using get_cart
4. Remove items using remove_from_cart
5. Clear the cart using clear_cart

IMPORTANT RULES:
1. Always search for the exact item name first
2. If exact match not found, search for close alternatives (e.g., "red onion" instead of "onion")
3. Pay attention to quantity and unit (e.g., "500g tomatoes" vs "1kg tomatoes")
4. NEVER add items containing allergens the user has specified - check product descriptions!
5. Prefer items that are in stock and have good value (price vs mrp)
6. If an item is not found after 2 search attempts, note it and move on
7. Add items one by one to ensure the cart is built correctly

When adding items:
- Match quantities as closely as possible to what's requested
- If the exact quantity is not available, choose the closest larger size
- For produce (vegetables, fruits), prefer fresh options
- Check the "inStock" field before adding
- Pass the grocery list item name as itemName so skipped items can be reported

WORKFLOW:
1. For each grocery item in the list:
   a. Call search_products with the item name
   b. Review results - check inStock status and allergens
   c. Select the best matching product
   d. Call add_to_cart with productId and an appropriate quantity
2. After processing ALL items, call order_complete with a summary and the
   list of items that could not be found

CRITICAL: You MUST call order_complete when you are done processing all items. This signals the cart is ready.`

// userMessage renders the shopping request: the itemized list grouped by
// category plus an explicit allergen exclusion directive when allergens are
// present.
func userMessage(req Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Please help me order the following groceries from Swiggy Instamart for a family of %d:\n", req.FamilySize)

	grouped := core.GroupByCategory(req.Items)
	for _, category := range core.Categories {
		items, ok := grouped[category]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n%s:\n", titleCase(string(category)))
		for _, item := range items {
			fmt.Fprintf(&b, "- %s: %s %s\n", item.Name, item.Quantity, item.Unit)
		}
	}

	if len(req.Allergens) > 0 {
		fmt.Fprintf(&b, "\nALLERGEN ALERT: The user is allergic to: %s.\n", strings.Join(req.Allergens, ", "))
		b.WriteString("DO NOT add any products containing these ingredients. Check product descriptions carefully.\n")
	}

	b.WriteString(`
Please:
1. Search for each item on Instamart
2. Add appropriate quantities to the cart
3. Let me know if any items are not available
4. Call order_complete when you're done with a summary`)

	return b.String()
}

// ShoppingPrompt formats the grocery list as a prompt for manual use with an
// external assistant, grouped by category with allergen warnings.
func ShoppingPrompt(req Request) string {
	var b strings.Builder

	b.WriteString("Grocery Order\n\n")
	b.WriteString("Please help me order groceries from Swiggy Instamart.\n\n")
	fmt.Fprintf(&b, "Family Size: %d people\n\n", req.FamilySize)
	b.WriteString("Shopping List:\n")

	grouped := core.GroupByCategory(req.Items)
	for _, category := range core.Categories {
		items, ok := grouped[category]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n%s:\n", titleCase(string(category)))
		for _, item := range items {
			fmt.Fprintf(&b, "  - %s - %s %s\n", item.Name, item.Quantity, item.Unit)
		}
	}

	if len(req.Allergens) > 0 {
		b.WriteString("\nIMPORTANT - ALLERGEN ALERT:\n")
		fmt.Fprintf(&b, "I am allergic to: %s\n", strings.Join(req.Allergens, ", "))
		b.WriteString("Please ensure NONE of the products contain these ingredients.\n")
		b.WriteString("If unsure about an item, skip it and let me know.\n")
	}

	b.WriteString(`
Instructions:
1. Search for each item on Swiggy Instamart
2. Add the closest matching product to my cart
3. If the exact item is not found, suggest an alternative
4. Skip any items containing my allergens
5. Once done, show me the cart summary`)

	return b.String()
}

// notFoundPattern extracts the "not found" clause from a completion summary.
// This is inherently lossy; extraction failure is never an error.
var notFoundPattern = regexp.MustCompile(`(?i)not found[:\s]*([^.]+)`)

// splitNotFound separates a "milk, rice and oats" style enumeration.
var splitNotFound = regexp.MustCompile(`,|\band\b`)

// parseNotFound best-effort extracts item names from a prose summary.
// Returns an empty list when no clause matches.
func parseNotFound(summary string) []string {
	match := notFoundPattern.FindStringSubmatch(summary)
	if match == nil {
		return nil
	}

	var items []string
	for _, part := range splitNotFound.Split(match[1], -1) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// titleCase upper-cases the first letter of a category name for display.
func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
