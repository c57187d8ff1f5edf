package costing

import (
	"encoding/json"
	"testing"

	"obraflow-backend/internal/infrastructure/coreapi"

	"github.com/stretchr/testify/assert"
)

func line(qty, price string) coreapi.LineItemRecord {
	return coreapi.LineItemRecord{Quantity: json.Number(qty), UnitPrice: json.Number(price)}
}

func TestTotalCost_FullProject(t *testing.T) {
	p := coreapi.ProjectRecord{
		Materials: []coreapi.LineItemRecord{line("10", "150000"), line("2", "250000")},
		Services:  []coreapi.LineItemRecord{line("1", "400000")},
		Costs:     coreapi.CostsRecord{Labor: json.Number("600000")},
	}
	// 1,500,000 + 500,000 + 400,000 + 600,000
	assert.Equal(t, 3000000.0, TotalCost(p))
}

func TestTotalCost_EmptyProject(t *testing.T) {
	assert.Equal(t, 0.0, TotalCost(coreapi.ProjectRecord{}))
}

func TestTotalCost_MissingCollections(t *testing.T) {
	p := coreapi.ProjectRecord{
		Costs: coreapi.CostsRecord{Labor: json.Number("500000")},
	}
	assert.Equal(t, 500000.0, TotalCost(p))
}

func TestTotalCost_MalformedNumbersCountAsZero(t *testing.T) {
	p := coreapi.ProjectRecord{
		Materials: []coreapi.LineItemRecord{line("abc", "100"), line("4", "500000")},
		Costs:     coreapi.CostsRecord{Labor: json.Number("n/a")},
	}
	assert.Equal(t, 2000000.0, TotalCost(p))
}

func TestTotalCost_NegativeValuesClamped(t *testing.T) {
	p := coreapi.ProjectRecord{
		Materials: []coreapi.LineItemRecord{line("-3", "100000"), line("2", "100000")},
		Costs:     coreapi.CostsRecord{Labor: json.Number("-50000")},
	}
	assert.Equal(t, 200000.0, TotalCost(p))
}

func TestTotalCost_FractionalQuantities(t *testing.T) {
	p := coreapi.ProjectRecord{
		Services: []coreapi.LineItemRecord{line("2.5", "100000")},
	}
	assert.InDelta(t, 250000.0, TotalCost(p), 0.001)
}
