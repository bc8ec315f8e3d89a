package refdata

import "time"

// VesselRecord is one licence period of a registered vessel. The same
// registration number can appear on several rows with non-overlapping
// licence windows.
type VesselRecord struct {
	RegistrationNumber string    `json:"registrationNumber"`
	VesselName         string    `json:"vesselName"`
	RssNumber          string    `json:"rssNumber"`
	CFR                string    `json:"cfr"`
	Flag               string    `json:"flag"`
	HomePort           string    `json:"homePort"`
	AdminPort          string    `json:"adminPort"`
	LicenceNumber      string    `json:"licenceNumber"`
	LicenceValidFrom   time.Time `json:"licenceValidFrom"`
	LicenceValidTo     time.Time `json:"licenceValidTo"`
	VesselLength       float64   `json:"vesselLength"`
	LicenceHolderName  string    `json:"licenceHolderName"`
}

// SpeciesRow is a species entry keyed by its FAO code.
type SpeciesRow struct {
	FAOCode        string
	FAOName        string
	ScientificName string
}

// ConversionFactor maps (species, state, presentation) to the multiplier
// that converts processed weight to live weight. Nil numbers mean the
// source value was missing or not numeric.
type ConversionFactor struct {
	Species            string
	State              string
	Presentation       string
	ToLiveWeightFactor *float64
	QuotaStatus        string
	RiskScore          *float64
}

// Weighting holds the coefficients of the risk score.
type Weighting struct {
	ExporterWeight float64 `json:"exporterWeight"`
	VesselWeight   float64 `json:"vesselWeight"`
	SpeciesWeight  float64 `json:"speciesWeight"`
	Threshold      float64 `json:"threshold"`
}

// VesselOfInterest flags a vessel that raises the vessel component of
// the risk score.
type VesselOfInterest struct {
	RegistrationNumber string `json:"registrationNumber"`
	VesselName         string `json:"vesselName"`
	Homeport           string `json:"homePort"`
}

// ExporterBehaviour is the historical behaviour score of an exporter
// account, optionally narrowed to a contact.
type ExporterBehaviour struct {
	AccountID string
	ContactID string
	Name      string
	Score     *float64
}

// Snapshot is a point-in-time copy of every dataset in the cache.
type Snapshot struct {
	Vessels            []VesselRecord
	Species            []SpeciesRow
	SpeciesAliases     map[string]string
	ConversionFactors  []ConversionFactor
	Weighting          Weighting
	VesselsOfInterest  []VesselOfInterest
	SpeciesRiskEnabled bool
	ExporterBehaviour  []ExporterBehaviour
}

// DefaultWeighting is used until a weighting dataset has been loaded.
var DefaultWeighting = Weighting{
	ExporterWeight: 1,
	VesselWeight:   1,
	SpeciesWeight:  1,
	Threshold:      1,
}
