package refdata

import (
	"github.com/fes-tools/landrecon/internal/utils"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

const (
	slotVessels            = "vessels"
	slotSpecies            = "species"
	slotSpeciesAliases     = "speciesAliases"
	slotConversionFactors  = "conversionFactors"
	slotWeighting          = "weighting"
	slotVesselsOfInterest  = "vesselsOfInterest"
	slotSpeciesRiskEnabled = "speciesRiskEnabled"
	slotExporterBehaviour  = "exporterBehaviour"
)

// vesselSet keeps the vessel rows and their indexes together so a reader
// never sees an index built from a different list.
type vesselSet struct {
	rows  []VesselRecord
	byPLN map[string][]int
	byRss map[string][]int
}

func newVesselSet(rows []VesselRecord) *vesselSet {
	vs := &vesselSet{
		rows:  rows,
		byPLN: make(map[string][]int, len(rows)),
		byRss: make(map[string][]int, len(rows)),
	}
	for i, v := range rows {
		vs.byPLN[v.RegistrationNumber] = append(vs.byPLN[v.RegistrationNumber], i)
		if v.RssNumber != "" {
			vs.byRss[v.RssNumber] = append(vs.byRss[v.RssNumber], i)
		}
	}
	return vs
}

// Cache is the process-wide reference data snapshot. Every dataset lives
// in its own slot and is replaced in a single store operation, so readers
// see either the previous or the new value of a dataset. Different
// datasets may change at different moments during a reload.
type Cache struct {
	slots *cache.Cache
	log   logrus.FieldLogger
}

// NewCache returns a cache seeded with empty defaults.
func NewCache(log logrus.FieldLogger) *Cache {
	if log == nil {
		log = utils.Discard()
	}
	c := &Cache{
		slots: cache.New(cache.NoExpiration, 0),
		log:   log,
	}
	c.slots.Set(slotVessels, newVesselSet(nil), cache.NoExpiration)
	c.slots.Set(slotSpecies, []SpeciesRow{}, cache.NoExpiration)
	c.slots.Set(slotSpeciesAliases, map[string]string{}, cache.NoExpiration)
	c.slots.Set(slotConversionFactors, []ConversionFactor{}, cache.NoExpiration)
	c.slots.Set(slotWeighting, DefaultWeighting, cache.NoExpiration)
	c.slots.Set(slotVesselsOfInterest, []VesselOfInterest{}, cache.NoExpiration)
	c.slots.Set(slotSpeciesRiskEnabled, false, cache.NoExpiration)
	c.slots.Set(slotExporterBehaviour, []ExporterBehaviour{}, cache.NoExpiration)
	return c
}

func (c *Cache) vesselSet() *vesselSet {
	v, _ := c.slots.Get(slotVessels)
	return v.(*vesselSet)
}

func (c *Cache) Vessels() []VesselRecord { return c.vesselSet().rows }

// VesselsByPLN returns every row whose registration number is exactly pln.
// No trimming or case folding is applied.
func (c *Cache) VesselsByPLN(pln string) []VesselRecord {
	vs := c.vesselSet()
	idx := vs.byPLN[pln]
	out := make([]VesselRecord, 0, len(idx))
	for _, i := range idx {
		out = append(out, vs.rows[i])
	}
	return out
}

// VesselsByRss returns every row carrying the exact RSS number.
func (c *Cache) VesselsByRss(rss string) []VesselRecord {
	vs := c.vesselSet()
	idx := vs.byRss[rss]
	out := make([]VesselRecord, 0, len(idx))
	for _, i := range idx {
		out = append(out, vs.rows[i])
	}
	return out
}

func (c *Cache) Species() []SpeciesRow {
	v, _ := c.slots.Get(slotSpecies)
	return v.([]SpeciesRow)
}

func (c *Cache) SpeciesAliases() map[string]string {
	v, _ := c.slots.Get(slotSpeciesAliases)
	return v.(map[string]string)
}

func (c *Cache) ConversionFactors() []ConversionFactor {
	v, _ := c.slots.Get(slotConversionFactors)
	return v.([]ConversionFactor)
}

func (c *Cache) Weighting() Weighting {
	v, _ := c.slots.Get(slotWeighting)
	return v.(Weighting)
}

func (c *Cache) VesselsOfInterest() []VesselOfInterest {
	v, _ := c.slots.Get(slotVesselsOfInterest)
	return v.([]VesselOfInterest)
}

func (c *Cache) SpeciesRiskEnabled() bool {
	v, _ := c.slots.Get(slotSpeciesRiskEnabled)
	return v.(bool)
}

func (c *Cache) ExporterBehaviour() []ExporterBehaviour {
	v, _ := c.slots.Get(slotExporterBehaviour)
	return v.([]ExporterBehaviour)
}

// Snapshot copies the current value of every dataset. Datasets are read
// one after another; see the Cache doc for cross-dataset consistency.
func (c *Cache) Snapshot() Snapshot {
	return Snapshot{
		Vessels:            c.Vessels(),
		Species:            c.Species(),
		SpeciesAliases:     c.SpeciesAliases(),
		ConversionFactors:  c.ConversionFactors(),
		Weighting:          c.Weighting(),
		VesselsOfInterest:  c.VesselsOfInterest(),
		SpeciesRiskEnabled: c.SpeciesRiskEnabled(),
		ExporterBehaviour:  c.ExporterBehaviour(),
	}
}

// The Update* setters ignore empty input and keep the previous value.

func (c *Cache) UpdateVessels(rows []VesselRecord) {
	if len(rows) == 0 {
		return
	}
	c.slots.Set(slotVessels, newVesselSet(rows), cache.NoExpiration)
}

func (c *Cache) UpdateSpecies(rows []SpeciesRow) {
	if len(rows) == 0 {
		return
	}
	c.slots.Set(slotSpecies, rows, cache.NoExpiration)
}

func (c *Cache) UpdateSpeciesAliases(aliases map[string]string) {
	if len(aliases) == 0 {
		return
	}
	c.slots.Set(slotSpeciesAliases, aliases, cache.NoExpiration)
}

func (c *Cache) UpdateConversionFactors(rows []ConversionFactor) {
	if len(rows) == 0 {
		return
	}
	c.slots.Set(slotConversionFactors, rows, cache.NoExpiration)
}

func (c *Cache) UpdateWeighting(w *Weighting) {
	if w == nil {
		return
	}
	c.slots.Set(slotWeighting, *w, cache.NoExpiration)
}

func (c *Cache) UpdateVesselsOfInterest(rows []VesselOfInterest) {
	if len(rows) == 0 {
		return
	}
	c.slots.Set(slotVesselsOfInterest, rows, cache.NoExpiration)
}

func (c *Cache) UpdateSpeciesRiskEnabled(enabled *bool) {
	if enabled == nil {
		return
	}
	c.slots.Set(slotSpeciesRiskEnabled, *enabled, cache.NoExpiration)
}

func (c *Cache) UpdateExporterBehaviour(rows []ExporterBehaviour) {
	if len(rows) == 0 {
		return
	}
	c.slots.Set(slotExporterBehaviour, rows, cache.NoExpiration)
}
