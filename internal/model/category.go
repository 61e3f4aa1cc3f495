// Package model defines the core domain models used throughout the application.
package model

// Category is a waste material category drawn from the closed taxonomy.
type Category string

// Waste category constants.
const (
	CategoryPlastic      Category = "Plastic"
	CategoryMetal        Category = "Metal"
	CategoryPaper        Category = "Paper"
	CategoryOrganic      Category = "Organic"
	CategoryChemical     Category = "Chemical"
	CategoryGlass        Category = "Glass"
	CategoryWood         Category = "Wood"
	CategoryConstruction Category = "Construction"
	CategoryTextile      Category = "Textile"
	CategoryMineral      Category = "Mineral"

	// CategoryUnknown is the fallback when the classifier is unavailable
	// or returns a label outside the taxonomy.
	CategoryUnknown Category = "Unknown"
)

// AllCategories returns the closed taxonomy in presentation order, excluding
// the Unknown sentinel.
func AllCategories() []Category {
	return []Category{
		CategoryPlastic,
		CategoryMetal,
		CategoryPaper,
		CategoryOrganic,
		CategoryChemical,
		CategoryGlass,
		CategoryWood,
		CategoryConstruction,
		CategoryTextile,
		CategoryMineral,
	}
}

// ParseCategory maps a classifier label to a taxonomy category. Labels outside
// the taxonomy collapse to CategoryUnknown rather than failing.
func ParseCategory(label string) Category {
	switch Category(label) {
	case CategoryPlastic, CategoryMetal, CategoryPaper, CategoryOrganic,
		CategoryChemical, CategoryGlass, CategoryWood, CategoryConstruction,
		CategoryTextile, CategoryMineral:
		return Category(label)
	case CategoryUnknown:
		return CategoryUnknown
	default:
		return CategoryUnknown
	}
}

// PricePerKg returns the reference market price for a category in USD per kg.
// Every taxonomy member has an explicit mapping; anything else takes the
// default branch.
func (c Category) PricePerKg() float64 {
	switch c {
	case CategoryPlastic:
		return 0.42
	case CategoryMetal:
		return 1.50
	case CategoryPaper:
		return 0.15
	case CategoryOrganic:
		return 0.10
	case CategoryChemical:
		return 2.00
	case CategoryGlass:
		return 0.05
	case CategoryWood:
		return 0.25
	case CategoryConstruction:
		return 0.08
	case CategoryTextile:
		return 0.50
	case CategoryMineral:
		return 0.03
	default:
		return 0.50
	}
}

// BuyerType returns the typical buyer facility for a category.
func (c Category) BuyerType() string {
	switch c {
	case CategoryPlastic:
		return "Plastic Granulation and Pelletizing Facility"
	case CategoryMetal:
		return "Metal Recycling and Smelting Facility"
	case CategoryPaper:
		return "Paper Mill and Pulping Facility"
	case CategoryOrganic:
		return "Composting and Biogas Facility"
	case CategoryChemical:
		return "Industrial Chemical Recycling Center"
	case CategoryGlass:
		return "Glass Manufacturer and Cullet Producer"
	case CategoryWood:
		return "Wood Reclamation and Lumber Mill"
	case CategoryConstruction:
		return "Aggregate Crushing and Construction Supply"
	case CategoryTextile:
		return "Fiber Reclamation and Yarn Manufacturing"
	case CategoryMineral:
		return "Aggregate Processing Plant"
	default:
		return "Industrial Recycling Facility"
	}
}
