package landings

import (
	"time"

	"github.com/fes-tools/landrecon/internal/utils"
	"github.com/fes-tools/landrecon/pkg/storage"
	"github.com/fes-tools/landrecon/pkg/window"
	"github.com/sirupsen/logrus"
)

// VesselIndex resolves a registration number to an RSS number for the day
// of a landing. *refdata.Cache satisfies it.
type VesselIndex interface {
	RssNumber(pln string, day time.Time) (string, bool)
}

// Row is one catch entry of a certificate, projected for reconciliation.
type Row struct {
	DocumentNumber    string
	CreatedAt         time.Time
	ExporterAccountID string
	ProductIndex      int
	EntryIndex        int
	EntryID           string
	SpeciesCode       string
	PLN               string
	RssNumber         string
	DateLanded        string
	Status            string
	DataEverExpected  bool
	Window            window.State

	// IsExceeding14DayLimit is set for entries that expect landing data and
	// whose retrospective window has closed.
	IsExceeding14DayLimit bool
}

// Query is the landing query of a row.
func (r Row) Query() Query {
	return Query{RssNumber: r.RssNumber, DateLanded: r.DateLanded}
}

// Resolver computes the missing and exceeding landings of a set of
// certificates.
type Resolver struct {
	Vessels VesselIndex
	Log     logrus.FieldLogger
}

func (r *Resolver) log() logrus.FieldLogger {
	if r.Log == nil {
		return utils.Discard()
	}
	return r.Log
}

// Flatten projects every catch entry of the certificates into a row,
// classified against now. Entries with an unparseable landing date are
// skipped.
func (r *Resolver) Flatten(certs []storage.CatchCertificate, now time.Time) []Row {
	var rows []Row
	for _, c := range certs {
		for p, product := range c.Products {
			for e, entry := range product.CaughtBy {
				landed, err := utils.ParseDay(entry.Date)
				if err != nil {
					r.log().WithFields(logrus.Fields{
						"document": c.DocumentNumber,
						"entry":    entry.ID,
					}).Warnf("[landings] skipping catch entry: %v", err)
					continue
				}

				rec := window.Record{CreatedAt: c.CreatedAt}
				if d, err := utils.ParseDay(entry.LandingDataExpectedDate); err == nil {
					rec.ExpectedDate = d
				}
				if d, err := utils.ParseDay(entry.LandingDataEndDate); err == nil {
					rec.EndDate = d
				}

				row := Row{
					DocumentNumber:    c.DocumentNumber,
					CreatedAt:         c.CreatedAt,
					ExporterAccountID: c.ExporterAccountID,
					ProductIndex:      p,
					EntryIndex:        e,
					EntryID:           entry.ID,
					SpeciesCode:       product.SpeciesCode,
					PLN:               entry.PLN,
					DateLanded:        utils.FormatDay(landed),
					Status:            entry.Status,
					DataEverExpected:  entry.ExpectsData(),
					Window:            window.Classify(now, rec),
				}
				if r.Vessels != nil {
					row.RssNumber, _ = r.Vessels.RssNumber(entry.PLN, landed)
				}
				row.IsExceeding14DayLimit = row.DataEverExpected && row.Window == window.Exceeded
				rows = append(rows, row)
			}
		}
	}
	return rows
}

// ComputeMissing returns the landing queries of pending, due entries with a
// known vessel, deduplicated by (vessel, day).
func (r *Resolver) ComputeMissing(certs []storage.CatchCertificate, now time.Time) []Query {
	var qs []Query
	for _, row := range r.Flatten(certs, now) {
		if !window.IsPendingStatus(row.Status) || row.Window != window.Due || row.RssNumber == "" || !row.DataEverExpected {
			continue
		}
		qs = append(qs, row.Query())
	}
	return DedupeQueries(qs)
}

// ComputeExceeding returns the rows of pending entries past their window.
func (r *Resolver) ComputeExceeding(certs []storage.CatchCertificate, now time.Time) []Row {
	var out []Row
	for _, row := range r.Flatten(certs, now) {
		if !window.IsPendingStatus(row.Status) || row.Window != window.Exceeded || !row.IsExceeding14DayLimit {
			continue
		}
		out = append(out, row)
	}
	return out
}
