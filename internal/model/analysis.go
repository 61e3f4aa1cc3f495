package model

import "math"

// Impact estimation constants. Sources are the reference figures the
// marketplace quotes to sellers, not measured values.
const (
	// co2PerKg is the approximate CO2 offset in kg per kg of waste diverted.
	co2PerKg = 2.5
	// landfillCostPerKg is the typical avoided landfill fee in USD per kg.
	landfillCostPerKg = 0.15
)

// WasteAnalysis is the quick-estimate response for a seller's description.
type WasteAnalysis struct {
	Category         Category
	BuyerType        string
	Revenue          float64
	Savings          float64
	CO2OffsetTonnes  float64
	LandfillDiverted float64
}

// AnalyzeWaste computes the reference price and environmental impact estimate
// for a categorized waste description.
func AnalyzeWaste(category Category, quantity float64, hazard string) WasteAnalysis {
	diversion := 85.0
	if hazard == "High" {
		diversion = 50.0
	}

	return WasteAnalysis{
		Category:         category,
		BuyerType:        category.BuyerType(),
		Revenue:          round2(quantity * category.PricePerKg()),
		Savings:          round2(quantity * landfillCostPerKg),
		CO2OffsetTonnes:  round2(quantity * co2PerKg / 1000),
		LandfillDiverted: diversion,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
