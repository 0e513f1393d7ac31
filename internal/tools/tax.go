package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
)

// Section limits and the education cess applied to the computed tax.
const (
	limit80C          = 150000
	limit80D          = 25000
	standardDeduction = 50000
	cessMultiplier    = 1.04
)

// TaxCalculator compares Indian income tax under the old and new
// regimes and points out unused deduction headroom.
type TaxCalculator struct{}

func NewTaxCalculator() *TaxCalculator { return &TaxCalculator{} }

func (t *TaxCalculator) Name() string { return "tax_calculator" }

func (t *TaxCalculator) Description() string {
	return "Compare income tax under old and new regimes and suggest deductions"
}

func (t *TaxCalculator) Parameters() map[string]any {
	return map[string]any{
		"annual_income":   map[string]any{"type": "number", "required": true, "description": "Gross annual income"},
		"deductions_80c":  map[string]any{"type": "number", "required": false, "description": "Section 80C investments"},
		"deductions_80d":  map[string]any{"type": "number", "required": false, "description": "Section 80D health premiums"},
		"other_deductions": map[string]any{"type": "number", "required": false, "description": "Other old-regime deductions"},
	}
}

func (t *TaxCalculator) Execute(ctx context.Context, userID string, params json.RawMessage) (any, error) {
	var p struct {
		AnnualIncome    float64 `json:"annual_income"`
		Deductions80C   float64 `json:"deductions_80c"`
		Deductions80D   float64 `json:"deductions_80d"`
		OtherDeductions float64 `json:"other_deductions"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("invalid parameters: %w", err)
		}
	}
	if p.AnnualIncome <= 0 {
		return nil, fmt.Errorf("annual_income must be positive")
	}

	used80C := math.Min(p.Deductions80C, limit80C)
	used80D := math.Min(p.Deductions80D, limit80D)

	oldDeductions := used80C + used80D + p.OtherDeductions + standardDeduction
	oldTaxable := math.Max(p.AnnualIncome-oldDeductions, 0)
	oldTax := taxOldRegime(oldTaxable)

	newTaxable := math.Max(p.AnnualIncome-standardDeduction, 0)
	newTax := taxNewRegime(newTaxable)

	recommended := "New Regime"
	if oldTax < newTax {
		recommended = "Old Regime"
	}

	unused80C := math.Max(limit80C-p.Deductions80C, 0)
	unused80D := math.Max(limit80D-p.Deductions80D, 0)

	return map[string]any{
		"tax_analysis": map[string]any{
			"annual_income":      p.AnnualIncome,
			"recommended_regime": recommended,
			"regime_savings":     round2(math.Abs(oldTax - newTax)),
		},
		"old_regime": map[string]any{
			"taxable_income":   round2(oldTaxable),
			"tax_payable":      round2(oldTax),
			"effective_rate":   round2(oldTax / p.AnnualIncome * 100),
			"total_deductions": round2(oldDeductions),
		},
		"new_regime": map[string]any{
			"taxable_income": round2(newTaxable),
			"tax_payable":    round2(newTax),
			"effective_rate": round2(newTax / p.AnnualIncome * 100),
		},
		"deduction_headroom": map[string]any{
			"section_80c": map[string]any{"utilized": used80C, "limit": limit80C, "unutilized": unused80C},
			"section_80d": map[string]any{"utilized": used80D, "limit": limit80D, "unutilized": unused80D},
		},
	}, nil
}

// taxOldRegime applies the old-regime slabs plus cess.
func taxOldRegime(taxable float64) float64 {
	var tax float64
	switch {
	case taxable <= 250000:
		tax = 0
	case taxable <= 500000:
		tax = (taxable - 250000) * 0.05
	case taxable <= 1000000:
		tax = 12500 + (taxable-500000)*0.20
	default:
		tax = 112500 + (taxable-1000000)*0.30
	}
	return tax * cessMultiplier
}

// taxNewRegime applies the new-regime slabs plus cess.
func taxNewRegime(taxable float64) float64 {
	var tax float64
	switch {
	case taxable <= 300000:
		tax = 0
	case taxable <= 600000:
		tax = (taxable - 300000) * 0.05
	case taxable <= 900000:
		tax = 15000 + (taxable-600000)*0.10
	case taxable <= 1200000:
		tax = 45000 + (taxable-900000)*0.15
	case taxable <= 1500000:
		tax = 90000 + (taxable-1200000)*0.20
	default:
		tax = 150000 + (taxable-1500000)*0.30
	}
	return tax * cessMultiplier
}
