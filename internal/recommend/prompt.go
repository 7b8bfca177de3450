package recommend

import (
	"fmt"
	"strings"

	"github.com/storepulse/sales-engine/internal/model"
)

// BuildPrompt renders the instruction text sent to the model. Sections
// appear in a fixed order: weather, top products, category sales.
func BuildPrompt(snap model.Snapshot, reading model.ContextReading) string {
	var b strings.Builder

	b.WriteString("You are a retail analytics expert. Given the following sales data and weather information, ")
	b.WriteString("provide 3-4 specific product promotion recommendations to increase revenue.\n\n")

	fmt.Fprintf(&b, "Current Weather: %s, %g°C\n\n", reading.Conditions, reading.Temperature)

	b.WriteString("Top Selling Products:\n")
	for _, p := range snap.TopProducts {
		fmt.Fprintf(&b, "- %s (ID: %d, Category: %s): Quantity: %d, Revenue: $%s\n",
			p.Name, p.ProductID, p.Category, p.TotalQuantity, p.TotalRevenue.StringFixed(2))
	}

	b.WriteString("\nCategory Sales:\n")
	for _, c := range snap.CategoryBreakdown {
		fmt.Fprintf(&b, "- %s: Quantity: %d, Revenue: $%s\n",
			c.Category, c.TotalQuantity, c.TotalRevenue.StringFixed(2))
	}

	b.WriteString("\nGiven this sales data, which products should we promote for higher revenue? ")
	b.WriteString("Consider weather conditions, top-selling products, and category performance. ")
	b.WriteString("Format your response as a JSON array of recommendations, where each recommendation has these properties: ")
	b.WriteString("type (one of top_product_promo, weather_based, category_boost, dynamic_pricing), message (string), ")
	b.WriteString("product_id (number, if applicable), category (string, if applicable), and confidence (number between 0-1).")

	return b.String()
}
