package billing

import "time"

// Invoice is the read-model composed from a BillingRecord plus the plan's
// pricing (spec §4.D, "invoice assembly"). No route returns it: GET
// /billing/history serves pkg/account's HistoryEntry rows, and revenue
// rollups aggregate through Store.RevenueByPlan.
type Invoice struct {
	CycleStart   time.Time     `json:"cycle_start"`
	CycleEnd     time.Time     `json:"cycle_end"`
	PlanID       string        `json:"plan_id"`
	FinalUsage   int           `json:"final_usage"`
	Allowance    int           `json:"allowance"`
	OverageCount int           `json:"overage_count"`
	OverageBlocks int          `json:"overage_blocks"`
	OverageCharge float64      `json:"overage_charge"`
	PlanPrice    float64       `json:"plan_price"`
	Total        float64       `json:"total"`
	Status       BillingStatus `json:"status"`
}

// InvoiceFor composes an Invoice from an archived billing record, the
// tenant's plan at time of billing, and the cycle kind that determines
// whether monthly or yearly pricing applies.
func (e *Engine) InvoiceFor(rec BillingRecord, planID string, cycleKind CycleKind, monthlyPrice, yearlyPrice float64) Invoice {
	blocks, charge := e.OverageFor(rec.OverageCount, planID)

	price := monthlyPrice
	if cycleKind == CycleYearly {
		price = yearlyPrice
	}

	return Invoice{
		CycleStart:    rec.CycleStart,
		CycleEnd:      rec.CycleEnd,
		PlanID:        planID,
		FinalUsage:    rec.FinalUsage,
		Allowance:     e.plans.Allowance(planID),
		OverageCount:  rec.OverageCount,
		OverageBlocks: blocks,
		OverageCharge: charge,
		PlanPrice:     price,
		Total:         price + charge,
		Status:        rec.Status,
	}
}
