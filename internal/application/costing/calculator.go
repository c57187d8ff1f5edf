package costing

import (
	"obraflow-backend/internal/infrastructure/coreapi"
)

// TotalCost derives a contract's total payable amount from the project's
// line items: materials and services as qty × unit price, plus labor.
// Upstream records are often partially populated, so missing collections
// count as empty and unparseable numbers as zero. Every payment row of a
// contract must report this same figure.
func TotalCost(p coreapi.ProjectRecord) float64 {
	total := sumLines(p.Materials) + sumLines(p.Services) + nonNegative(coreapi.Float(p.Costs.Labor))
	return total
}

func sumLines(items []coreapi.LineItemRecord) float64 {
	var total float64
	for _, it := range items {
		qty := nonNegative(coreapi.Float(it.Quantity))
		price := nonNegative(coreapi.Float(it.UnitPrice))
		total += qty * price
	}
	return total
}

// nonNegative treats garbage negative values from upstream as zero
// contribution rather than letting them eat into the total.
func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
