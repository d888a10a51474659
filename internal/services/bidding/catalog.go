package bidding

import "strings"

// FallbackRate is the bid rate applied to categories outside the catalog.
const FallbackRate = 0.02

// Category is one catalog entry with its seed bid rate.
type Category struct {
	Name string  `yaml:"name" json:"name"`
	Rate float64 `yaml:"rate" json:"rate"`
}

// DefaultCatalog is the built-in category set used when configuration provides none.
var DefaultCatalog = []Category{
	{Name: "groceries", Rate: 0.05},
	{Name: "restaurant", Rate: 0.04},
	{Name: "gas", Rate: 0.03},
	{Name: "uber", Rate: 0.02},
	{Name: "travel", Rate: 0.03},
	{Name: "utilities", Rate: 0.02},
	{Name: "entertainment", Rate: 0.03},
	{Name: "online shopping", Rate: 0.03},
	{Name: "cellphone", Rate: 0.02},
	{Name: "health", Rate: 0.02},
}

// NormalizeCategory maps user input to a catalog key.
func NormalizeCategory(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SeedRates turns a catalog into a category -> rate map with normalized keys.
// Later duplicates override earlier ones.
func SeedRates(catalog []Category) map[string]float64 {
	out := make(map[string]float64, len(catalog))
	for _, c := range catalog {
		name := NormalizeCategory(c.Name)
		if name == "" {
			continue
		}
		out[name] = c.Rate
	}
	return out
}
