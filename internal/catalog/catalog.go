// Package catalog holds the fixed set of bookable instances per resource
// category together with their pricing attributes.
package catalog

import (
	"fmt"

	"costamar/internal/config"
	"costamar/internal/models"
)

// Instance is one concrete bookable unit within a category.
type Instance struct {
	ID       string
	Name     string
	Category models.ResourceCategory

	// Cottage pricing.
	DayRate int64

	// Function hall pricing and capacity.
	BasePrice           int64
	RecommendedCapacity int
	MaxCapacity         int
}

// Catalog resolves instances by category and ID.
type Catalog struct {
	byCategory map[models.ResourceCategory][]Instance
	byID       map[string]Instance
}

// FromConfig builds the catalog from configuration.
func FromConfig(cfg *config.Config) *Catalog {
	c := &Catalog{
		byCategory: make(map[models.ResourceCategory][]Instance),
		byID:       make(map[string]Instance),
	}
	for _, r := range cfg.Catalog.Rooms {
		c.add(Instance{ID: r.ID, Name: r.Name, Category: models.CategoryRoom})
	}
	for _, ct := range cfg.Catalog.Cottages {
		c.add(Instance{ID: ct.ID, Name: ct.Name, Category: models.CategoryCottage, DayRate: ct.DayRate})
	}
	for _, h := range cfg.Catalog.Halls {
		c.add(Instance{
			ID:                  h.ID,
			Name:                h.Name,
			Category:            models.CategoryFunctionHall,
			BasePrice:           h.BasePrice,
			RecommendedCapacity: h.RecommendedCapacity,
			MaxCapacity:         h.MaxCapacity,
		})
	}
	return c
}

func (c *Catalog) add(inst Instance) {
	c.byCategory[inst.Category] = append(c.byCategory[inst.Category], inst)
	c.byID[inst.ID] = inst
}

// Instances returns all instances of a category in catalog order.
func (c *Catalog) Instances(category models.ResourceCategory) []Instance {
	return c.byCategory[category]
}

// InstanceIDs returns the full set of instance IDs for a category.
func (c *Catalog) InstanceIDs(category models.ResourceCategory) models.InstanceSet {
	set := make(models.InstanceSet)
	for _, inst := range c.byCategory[category] {
		set.Add(inst.ID)
	}
	return set
}

// Lookup returns the instance with the given ID.
func (c *Catalog) Lookup(id string) (Instance, error) {
	inst, ok := c.byID[id]
	if !ok {
		return Instance{}, fmt.Errorf("unknown instance %q", id)
	}
	return inst, nil
}

// Has reports whether id belongs to the given category.
func (c *Catalog) Has(category models.ResourceCategory, id string) bool {
	inst, ok := c.byID[id]
	return ok && inst.Category == category
}
