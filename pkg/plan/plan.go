// Package plan holds the static catalog of subscription plans (spec §4.B).
// The catalog is seeded at startup and treated as read-only at runtime.
package plan

// Plan is the immutable tuple a subscription plan resolves to.
type Plan struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Allowance       int      `json:"allowance"`
	PriceMonthly    float64  `json:"price_monthly"`
	PriceYearly     float64  `json:"price_yearly"`
	OverageRate     float64  `json:"overage_rate"` // currency per 100-request block over allowance
	MaxSites        int      `json:"max_sites"`
	MaxPagesPerAudit int     `json:"max_pages_per_audit"`
	Features        []string `json:"features"`
}

// FreePlanID is the fallback plan used when an id is unknown (spec §4.B,
// Open Question (c)).
const FreePlanID = "free"

// catalog is the static, in-memory plan table seeded at process start.
var catalog = map[string]Plan{
	"free": {
		ID:               "free",
		Name:             "Free",
		Allowance:        100,
		PriceMonthly:     0,
		PriceYearly:      0,
		OverageRate:      0,
		MaxSites:         3,
		MaxPagesPerAudit: 50,
		Features:         []string{},
	},
	"pro": {
		ID:               "pro",
		Name:             "Pro",
		Allowance:        1000,
		PriceMonthly:     29,
		PriceYearly:      290,
		OverageRate:      5,
		MaxSites:         20,
		MaxPagesPerAudit: 500,
		Features:         []string{"priority_support"},
	},
	"enterprise": {
		ID:               "enterprise",
		Name:             "Enterprise",
		Allowance:        10000,
		PriceMonthly:     99,
		PriceYearly:      990,
		OverageRate:      2,
		MaxSites:         100,
		MaxPagesPerAudit: 5000,
		Features:         []string{"priority_support", "dedicated_account_manager"},
	},
}

// Catalog resolves plan ids to their full tuple. It is safe for concurrent
// use since the underlying table never changes after process start.
type Catalog struct {
	plans map[string]Plan
}

// NewCatalog returns the default, built-in plan catalog.
func NewCatalog() *Catalog {
	return &Catalog{plans: catalog}
}

// Resolve returns the plan for id, falling back to the free plan for
// unknown ids (spec §4.B, Open Question (c)).
func (c *Catalog) Resolve(id string) Plan {
	if p, ok := c.plans[id]; ok {
		return p
	}
	return c.plans[FreePlanID]
}

// Allowance returns id's per-cycle request allowance, falling back to the
// free plan's allowance for unknown ids. Satisfies billing.PlanLookup.
func (c *Catalog) Allowance(id string) int {
	return c.Resolve(id).Allowance
}

// OverageRate returns id's currency-per-100-request overage rate, falling
// back to the free plan's rate for unknown ids. Satisfies billing.PlanLookup.
func (c *Catalog) OverageRate(id string) float64 {
	return c.Resolve(id).OverageRate
}

// Exists reports whether id names a known plan.
func (c *Catalog) Exists(id string) bool {
	_, ok := c.plans[id]
	return ok
}

// All returns every plan in the catalog, ordered by ascending allowance.
func (c *Catalog) All() []Plan {
	order := []string{"free", "pro", "enterprise"}
	out := make([]Plan, 0, len(order))
	for _, id := range order {
		if p, ok := c.plans[id]; ok {
			out = append(out, p)
		}
	}
	return out
}
