// Package billing implements the synchronization engine between the payment
// provider and the local store: customer provisioning, checkout, cancel, the
// subscription sync choke point, and the webhook processing pipeline.
package billing

import (
	"dealbase/internal/config"
	"dealbase/internal/types"
)

// PlanCatalog maps between domain plan tiers and the provider price IDs
// configured for this deployment. Prices whose environment variables are
// unset simply do not resolve, which surfaces as an invalid-plan error at
// checkout rather than a provider call with an empty price.
type PlanCatalog struct {
	priceByPlan map[types.PlanTier]string
	planByPrice map[string]types.PlanTier
}

// NewPlanCatalog builds the catalog from the billing configuration.
func NewPlanCatalog(cfg config.BillingConfig) *PlanCatalog {
	c := &PlanCatalog{
		priceByPlan: make(map[types.PlanTier]string, 3),
		planByPrice: make(map[string]types.PlanTier, 3),
	}
	c.add(types.PlanStarter, cfg.PriceStarter)
	c.add(types.PlanPro, cfg.PricePro)
	c.add(types.PlanBusiness, cfg.PriceBusiness)
	return c
}

func (c *PlanCatalog) add(plan types.PlanTier, priceID string) {
	if priceID == "" {
		return
	}
	c.priceByPlan[plan] = priceID
	c.planByPrice[priceID] = plan
}

// PriceFor returns the provider price ID for a plan tier.
func (c *PlanCatalog) PriceFor(plan types.PlanTier) (string, bool) {
	id, ok := c.priceByPlan[plan]
	return id, ok
}

// PlanFor returns the plan tier for a provider price ID. Unknown prices
// map to PlanFree so a misconfigured catalog fails closed on entitlement.
func (c *PlanCatalog) PlanFor(priceID string) types.PlanTier {
	if plan, ok := c.planByPrice[priceID]; ok {
		return plan
	}
	return types.PlanFree
}
