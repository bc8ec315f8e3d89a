package refdata

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/fes-tools/landrecon/internal/utils"
	"github.com/spf13/cast"
)

// Dataset names one reference dataset and the file/object holding it.
type Dataset string

const (
	DatasetVessels           Dataset = "vessels"
	DatasetSpecies           Dataset = "species"
	DatasetSpeciesAliases    Dataset = "speciesAliases"
	DatasetConversionFactors Dataset = "conversionFactors"
	DatasetVesselsOfInterest Dataset = "vesselsOfInterest"
	DatasetWeighting         Dataset = "weighting"
	DatasetSpeciesToggle     Dataset = "speciesToggle"
	DatasetExporterBehaviour Dataset = "exporterBehaviour"
)

var datasetFiles = map[Dataset]string{
	DatasetVessels:           "vessels.json",
	DatasetSpecies:           "species.csv",
	DatasetSpeciesAliases:    "speciesAliases.json",
	DatasetConversionFactors: "conversionFactors.csv",
	DatasetVesselsOfInterest: "vesselsOfInterest.json",
	DatasetWeighting:         "weighting.json",
	DatasetSpeciesToggle:     "speciesToggle.json",
	DatasetExporterBehaviour: "exporterBehaviour.csv",
}

// FileName is the fixed file (or object key) the dataset is read from.
func (d Dataset) FileName() string { return datasetFiles[d] }

type rawVessel struct {
	RegistrationNumber string      `json:"registrationNumber"`
	VesselName         string      `json:"vesselName"`
	RssNumber          string      `json:"rssNumber"`
	CFR                string      `json:"cfr"`
	Flag               string      `json:"flag"`
	HomePort           string      `json:"homePort"`
	AdminPort          string      `json:"adminPort"`
	LicenceNumber      string      `json:"licenceNumber"`
	LicenceValidFrom   string      `json:"licenceValidFrom"`
	LicenceValidTo     string      `json:"licenceValidTo"`
	VesselLength       interface{} `json:"vesselLength"`
	LicenceHolderName  string      `json:"licenceHolderName"`
}

func parseVessels(data []byte) ([]VesselRecord, error) {
	var raw []rawVessel
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode vessels: %w", err)
	}
	out := make([]VesselRecord, 0, len(raw))
	for i, r := range raw {
		v := VesselRecord{
			RegistrationNumber: r.RegistrationNumber,
			VesselName:         r.VesselName,
			RssNumber:          r.RssNumber,
			CFR:                r.CFR,
			Flag:               r.Flag,
			HomePort:           r.HomePort,
			AdminPort:          r.AdminPort,
			LicenceNumber:      r.LicenceNumber,
			LicenceHolderName:  r.LicenceHolderName,
		}
		if r.LicenceValidFrom != "" {
			from, err := utils.ParseDay(r.LicenceValidFrom)
			if err != nil {
				return nil, fmt.Errorf("vessel %d licenceValidFrom: %w", i, err)
			}
			v.LicenceValidFrom = from
		}
		if r.LicenceValidTo != "" {
			to, err := utils.ParseDay(r.LicenceValidTo)
			if err != nil {
				return nil, fmt.Errorf("vessel %d licenceValidTo: %w", i, err)
			}
			v.LicenceValidTo = to
		}
		if n := toNumber(r.VesselLength); n != nil {
			v.VesselLength = *n
		}
		out = append(out, v)
	}
	return out, nil
}

// readCSV returns one map per data row keyed by the trimmed header names.
func readCSV(data []byte) ([]map[string]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var rows []map[string]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = strings.TrimSpace(rec[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseSpecies(data []byte) ([]SpeciesRow, error) {
	rows, err := readCSV(data)
	if err != nil {
		return nil, fmt.Errorf("decode species: %w", err)
	}
	out := make([]SpeciesRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, SpeciesRow{
			FAOCode:        r["faoCode"],
			FAOName:        r["faoName"],
			ScientificName: r["scientificName"],
		})
	}
	return out, nil
}

func parseSpeciesAliases(data []byte) (map[string]string, error) {
	var aliases map[string]string
	if err := json.Unmarshal(data, &aliases); err != nil {
		return nil, fmt.Errorf("decode species aliases: %w", err)
	}
	return aliases, nil
}

// toNumber normalises a loosely typed value. Anything that is not a
// finite number (or a numeric string) yields nil.
func toNumber(v interface{}) *float64 {
	if v == nil {
		return nil
	}
	if s, ok := v.(string); ok {
		if s = strings.TrimSpace(s); s == "" {
			return nil
		}
		v = s
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func parseConversionFactors(data []byte) ([]ConversionFactor, error) {
	rows, err := readCSV(data)
	if err != nil {
		return nil, fmt.Errorf("decode conversion factors: %w", err)
	}
	out := make([]ConversionFactor, 0, len(rows))
	for _, r := range rows {
		out = append(out, ConversionFactor{
			Species:            r["species"],
			State:              r["state"],
			Presentation:       r["presentation"],
			ToLiveWeightFactor: toNumber(r["toLiveWeightFactor"]),
			QuotaStatus:        r["quotaStatus"],
			RiskScore:          toNumber(r["riskScore"]),
		})
	}
	return out, nil
}

func parseVesselsOfInterest(data []byte) ([]VesselOfInterest, error) {
	var out []VesselOfInterest
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode vessels of interest: %w", err)
	}
	return out, nil
}

func parseWeighting(data []byte) (*Weighting, error) {
	var w Weighting
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode weighting: %w", err)
	}
	return &w, nil
}

func parseSpeciesToggle(data []byte) (*bool, error) {
	var t struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode species toggle: %w", err)
	}
	if t.Enabled == nil {
		return nil, fmt.Errorf("decode species toggle: missing enabled field")
	}
	return t.Enabled, nil
}

func parseExporterBehaviour(data []byte) ([]ExporterBehaviour, error) {
	rows, err := readCSV(data)
	if err != nil {
		return nil, fmt.Errorf("decode exporter behaviour: %w", err)
	}
	out := make([]ExporterBehaviour, 0, len(rows))
	for _, r := range rows {
		out = append(out, ExporterBehaviour{
			AccountID: r["accountId"],
			ContactID: r["contactId"],
			Name:      r["name"],
			Score:     toNumber(r["score"]),
		})
	}
	return out, nil
}
