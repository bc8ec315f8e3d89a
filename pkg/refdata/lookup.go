package refdata

import (
	"time"

	"github.com/fes-tools/landrecon/internal/utils"
	"github.com/sirupsen/logrus"
)

const (
	defaultExporterScore  = 1.0
	defaultSpeciesScore   = 1.0
	vesselOfInterestScore = 1.0
	defaultVesselScore    = 0.5
)

// licensedOn reports whether day falls inside the vessel's licence window,
// both bounds inclusive. A zero bound is open.
func (v VesselRecord) licensedOn(day time.Time) bool {
	d := utils.DayOf(day)
	if !v.LicenceValidFrom.IsZero() && d.Before(utils.DayOf(v.LicenceValidFrom)) {
		return false
	}
	if !v.LicenceValidTo.IsZero() && d.After(utils.DayOf(v.LicenceValidTo)) {
		return false
	}
	return true
}

func firstLicensed(rows []VesselRecord, day time.Time) (VesselRecord, bool) {
	for _, v := range rows {
		if v.licensedOn(day) {
			return v, true
		}
	}
	return VesselRecord{}, false
}

// LookupVessel resolves a registration number to the first vessel row
// licensed on day. It never fails; a miss is logged and reported as false.
func (c *Cache) LookupVessel(pln string, day time.Time) (VesselRecord, bool) {
	v, ok := firstLicensed(c.VesselsByPLN(pln), day)
	if !ok {
		c.log.WithFields(logrus.Fields{"pln": pln, "date": utils.FormatDay(day)}).
			Info("[refdata] vessel not found")
	}
	return v, ok
}

// LookupVesselByRss is LookupVessel keyed by RSS number.
func (c *Cache) LookupVesselByRss(rss string, day time.Time) (VesselRecord, bool) {
	v, ok := firstLicensed(c.VesselsByRss(rss), day)
	if !ok {
		c.log.WithFields(logrus.Fields{"rss": rss, "date": utils.FormatDay(day)}).
			Info("[refdata] vessel not found by rss number")
	}
	return v, ok
}

func (c *Cache) VesselLength(pln string, day time.Time) (float64, bool) {
	v, ok := c.LookupVessel(pln, day)
	if !ok {
		return 0, false
	}
	return v.VesselLength, true
}

func (c *Cache) RssNumber(pln string, day time.Time) (string, bool) {
	v, ok := c.LookupVessel(pln, day)
	if !ok || v.RssNumber == "" {
		return "", false
	}
	return v.RssNumber, true
}

// ConversionFactor finds the factor row for an exact species/state/presentation.
func (c *Cache) ConversionFactor(species, state, presentation string) (ConversionFactor, bool) {
	for _, f := range c.ConversionFactors() {
		if f.Species == species && f.State == state && f.Presentation == presentation {
			return f, true
		}
	}
	return ConversionFactor{}, false
}

// RiskInput identifies what is being scored.
type RiskInput struct {
	ExporterAccountID string
	ExporterContactID string
	PLN               string
	Species           string
	State             string
	Presentation      string
}

// RiskResult is the weighted score and whether it crosses the threshold.
type RiskResult struct {
	ExporterScore float64
	VesselScore   float64
	SpeciesScore  float64
	Score         float64
	HighRisk      bool
}

// RiskScore multiplies each weighted component. Missing inputs fall back to
// neutral scores so an unknown exporter or species never zeroes the result.
func (c *Cache) RiskScore(in RiskInput) RiskResult {
	w := c.Weighting()
	r := RiskResult{
		ExporterScore: c.exporterScore(in.ExporterAccountID, in.ExporterContactID),
		VesselScore:   c.vesselScore(in.PLN),
		SpeciesScore:  c.speciesScore(in.Species, in.State, in.Presentation),
	}
	r.Score = (r.ExporterScore * w.ExporterWeight) *
		(r.VesselScore * w.VesselWeight) *
		(r.SpeciesScore * w.SpeciesWeight)
	r.HighRisk = r.Score > w.Threshold
	return r
}

func (c *Cache) exporterScore(accountID, contactID string) float64 {
	var accountOnly *float64
	for _, e := range c.ExporterBehaviour() {
		if e.AccountID != accountID || e.Score == nil {
			continue
		}
		if contactID != "" && e.ContactID == contactID {
			return *e.Score
		}
		if e.ContactID == "" && accountOnly == nil {
			accountOnly = e.Score
		}
	}
	if accountOnly != nil {
		return *accountOnly
	}
	return defaultExporterScore
}

func (c *Cache) vesselScore(pln string) float64 {
	for _, v := range c.VesselsOfInterest() {
		if v.RegistrationNumber == pln {
			return vesselOfInterestScore
		}
	}
	return defaultVesselScore
}

func (c *Cache) speciesScore(species, state, presentation string) float64 {
	if !c.SpeciesRiskEnabled() {
		return defaultSpeciesScore
	}
	f, ok := c.ConversionFactor(species, state, presentation)
	if !ok || f.RiskScore == nil {
		return defaultSpeciesScore
	}
	return *f.RiskScore
}
