package recommend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/storepulse/sales-engine/internal/model"
)

// Drink categories used by the weather rule.
const (
	CategoryColdDrinks = "Cold Drinks"
	CategoryHotDrinks  = "Hot Drinks"
)

// Fallback applies the deterministic rule set. The only nondeterminism is
// which drink of the weather-appropriate category is picked.
//
// Rules, in output order:
//  1. promote the top product by revenue (skipped without products)
//  2. promote a random active cold or hot drink depending on the weather
//     (skipped when that category has no active products)
//  3. boost the lowest-revenue category (skipped without categories)
//  4. suggest a weather-driven price change
//
// When rules 1-3 are all skipped there is no sales or catalog data to act
// on, and a single error recommendation is returned instead.
func (e *Engine) Fallback(ctx context.Context, snap model.Snapshot, reading model.ContextReading) []model.Recommendation {
	var recs []model.Recommendation

	if len(snap.TopProducts) > 0 {
		top := snap.TopProducts[0]
		id := top.ProductID
		recs = append(recs, model.Recommendation{
			Type:       model.RecTopProductPromo,
			Message:    "Promote your top selling product: " + top.Name,
			ProductID:  &id,
			Confidence: 0.95,
		})
	}

	if rec, ok := e.weatherPick(ctx, reading); ok {
		recs = append(recs, rec)
	}

	if n := len(snap.CategoryBreakdown); n > 0 {
		least := snap.CategoryBreakdown[n-1]
		recs = append(recs, model.Recommendation{
			Type:       model.RecCategoryBoost,
			Message:    fmt.Sprintf("Consider promoting products in the %s category to boost sales", least.Category),
			Category:   least.Category,
			Confidence: 0.75,
		})
	}

	if len(recs) == 0 {
		return []model.Recommendation{{
			Type:       model.RecError,
			Message:    "Unable to generate detailed recommendations at this time: no sales or catalog data available",
			Confidence: 0.5,
		}}
	}

	direction, drinks := "decreasing", "hot"
	if reading.IsHot {
		direction, drinks = "increasing", "cold"
	}
	recs = append(recs, model.Recommendation{
		Type:       model.RecDynamicPricing,
		Message:    fmt.Sprintf("Consider %s prices of %s drinks by 5-10%% based on current weather", direction, drinks),
		Confidence: 0.70,
	})

	return recs
}

func (e *Engine) weatherPick(ctx context.Context, reading model.ContextReading) (model.Recommendation, bool) {
	category, prefix := CategoryHotDrinks, "It's cool outside! Promote hot drinks like "
	if reading.IsHot {
		category, prefix = CategoryColdDrinks, "It's hot outside! Promote cold drinks like "
	}

	if e.catalog == nil {
		return model.Recommendation{}, false
	}
	products, err := e.catalog.ListActiveByCategory(ctx, category)
	if err != nil {
		slog.Warn("weather rule skipped: catalog lookup failed", "category", category, "err", err)
		return model.Recommendation{}, false
	}

	// Guard against catalogs that return inactive or foreign rows.
	var candidates []model.Product
	for _, p := range products {
		if p.Active && p.Category == category {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return model.Recommendation{}, false
	}

	pick := candidates[e.intn(len(candidates))]
	id := pick.ID
	return model.Recommendation{
		Type:       model.RecWeatherBased,
		Message:    prefix + pick.Name,
		ProductID:  &id,
		Category:   category,
		Confidence: 0.85,
	}, true
}
