package refdata

import (
	"context"
	"fmt"

	"github.com/fes-tools/landrecon/internal/utils"
	"github.com/sirupsen/logrus"
)

// PlaceholderFlag is the flag state of the synthetic "vessel not found" row.
const PlaceholderFlag = "GBR"

// LoadError reports a dataset that could not be loaded from a source.
type LoadError struct {
	Dataset Dataset
	Source  string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s from %s: %v", e.Dataset, e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Placeholder configures the sentinel vessel appended to every vessel load.
type Placeholder struct {
	Enabled bool
	Name    string
	PLN     string
}

// Loader fills a Cache from a Source.
type Loader struct {
	Cache       *Cache
	Source      Source
	Placeholder Placeholder
	Log         logrus.FieldLogger
}

type datasetLoader struct {
	dataset Dataset
	// core datasets propagate remote failures to the caller
	core  bool
	apply func(c *Cache, data []byte, p Placeholder) error
}

var allDatasets = []datasetLoader{
	{dataset: DatasetVessels, core: true, apply: applyVessels},
	{dataset: DatasetSpecies, core: true, apply: func(c *Cache, data []byte, _ Placeholder) error {
		rows, err := parseSpecies(data)
		if err != nil {
			return err
		}
		c.UpdateSpecies(rows)
		return nil
	}},
	{dataset: DatasetSpeciesAliases, core: true, apply: func(c *Cache, data []byte, _ Placeholder) error {
		aliases, err := parseSpeciesAliases(data)
		if err != nil {
			return err
		}
		c.UpdateSpeciesAliases(aliases)
		return nil
	}},
	{dataset: DatasetConversionFactors, core: true, apply: func(c *Cache, data []byte, _ Placeholder) error {
		rows, err := parseConversionFactors(data)
		if err != nil {
			return err
		}
		c.UpdateConversionFactors(rows)
		return nil
	}},
	{dataset: DatasetVesselsOfInterest, apply: applyVesselsOfInterest},
	{dataset: DatasetWeighting, apply: applyWeighting},
	{dataset: DatasetSpeciesToggle, apply: applySpeciesToggle},
	{dataset: DatasetExporterBehaviour, core: true, apply: func(c *Cache, data []byte, _ Placeholder) error {
		rows, err := parseExporterBehaviour(data)
		if err != nil {
			return err
		}
		c.UpdateExporterBehaviour(rows)
		return nil
	}},
}

var refreshDatasets = []datasetLoader{
	{dataset: DatasetVesselsOfInterest, apply: applyVesselsOfInterest},
	{dataset: DatasetWeighting, apply: applyWeighting},
	{dataset: DatasetSpeciesToggle, apply: applySpeciesToggle},
}

func applyVessels(c *Cache, data []byte, p Placeholder) error {
	rows, err := parseVessels(data)
	if err != nil {
		return err
	}
	if p.Enabled && len(rows) > 0 {
		rows = append(rows, VesselRecord{
			RegistrationNumber: p.PLN,
			VesselName:         p.Name,
			Flag:               PlaceholderFlag,
		})
	}
	c.UpdateVessels(rows)
	return nil
}

func applyVesselsOfInterest(c *Cache, data []byte, _ Placeholder) error {
	rows, err := parseVesselsOfInterest(data)
	if err != nil {
		return err
	}
	c.UpdateVesselsOfInterest(rows)
	return nil
}

func applyWeighting(c *Cache, data []byte, _ Placeholder) error {
	w, err := parseWeighting(data)
	if err != nil {
		return err
	}
	c.UpdateWeighting(w)
	return nil
}

func applySpeciesToggle(c *Cache, data []byte, _ Placeholder) error {
	enabled, err := parseSpeciesToggle(data)
	if err != nil {
		return err
	}
	c.UpdateSpeciesRiskEnabled(enabled)
	return nil
}

func (l *Loader) log() logrus.FieldLogger {
	if l.Log == nil {
		return utils.Discard()
	}
	return l.Log
}

// LoadAll reloads every dataset. Each dataset is independent: a failure
// leaves that dataset's previous value in place. From a remote source a
// failed core dataset (vessels, species, species aliases, conversion
// factors, exporter behaviour) is also returned to the caller as a
// *LoadError once every dataset has been attempted.
func (l *Loader) LoadAll(ctx context.Context) error {
	var first error
	for _, d := range allDatasets {
		err := l.load(ctx, d)
		if err == nil {
			continue
		}
		if l.Source.Remote() && d.core {
			l.log().WithField("dataset", d.dataset).Errorf("[refdata] %v", err)
			if first == nil {
				first = err
			}
			continue
		}
		l.log().WithField("dataset", d.dataset).Warnf("[refdata] %v; keeping previous value", err)
	}
	return first
}

// Refresh reloads only the frequently edited datasets (weighting, species
// risk toggle, vessels of interest). Failures never propagate.
func (l *Loader) Refresh(ctx context.Context) {
	for _, d := range refreshDatasets {
		if err := l.load(ctx, d); err != nil {
			l.log().WithField("dataset", d.dataset).Warnf("[refdata] refresh: %v; keeping previous value", err)
		}
	}
}

func (l *Loader) load(ctx context.Context, d datasetLoader) error {
	data, err := l.Source.Open(ctx, d.dataset)
	if err != nil {
		return &LoadError{Dataset: d.dataset, Source: l.Source.Name(), Err: err}
	}
	if err := d.apply(l.Cache, data, l.Placeholder); err != nil {
		return &LoadError{Dataset: d.dataset, Source: l.Source.Name(), Err: err}
	}
	l.log().WithField("dataset", d.dataset).Debugf("[refdata] loaded %s from %s", d.dataset, l.Source.Name())
	return nil
}
