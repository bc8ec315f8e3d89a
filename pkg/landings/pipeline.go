package landings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fes-tools/landrecon/internal/utils"
	"github.com/fes-tools/landrecon/pkg/providers"
	"github.com/fes-tools/landrecon/pkg/refdata"
	"github.com/fes-tools/landrecon/pkg/storage"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SmallVesselLength is the length in metres below which a vessel reports
// through the catch app instead of landing declarations.
const SmallVesselLength = 10

// auditCatchActivity is the audit key prefix for catch app payloads.
const auditCatchActivity = "catchActivity"

// VesselDirectory is the slice of the reference cache the pipeline reads.
type VesselDirectory interface {
	LookupVesselByRss(rss string, day time.Time) (refdata.VesselRecord, bool)
	ConversionFactor(species, state, presentation string) (refdata.ConversionFactor, bool)
}

type LandingStore interface {
	GetStoredLandings(ctx context.Context, rssNumber string, day time.Time) ([]storage.Landing, error)
}

// AuditSink keeps raw provider payloads.
type AuditSink interface {
	PersistAuditPayload(ctx context.Context, key string, payload []byte) error
}

// Pipeline fetches landings for landing queries, one vessel at a time.
type Pipeline struct {
	Vessels       VesselDirectory
	LandingData   providers.LandingDataProvider
	CatchActivity providers.CatchActivityProvider
	Store         LandingStore
	Audit         AuditSink // optional
	Log           logrus.FieldLogger

	// RunID names audit payloads of a Fetch. A fresh one is drawn per call
	// when empty.
	RunID string

	background sync.WaitGroup
}

func (p *Pipeline) log() logrus.FieldLogger {
	if p.Log == nil {
		return utils.Discard()
	}
	return p.Log
}

// Fetch returns the landings found for the queries, with landings already
// stored unchanged marked Ignore. A failing vessel is logged and skipped.
func (p *Pipeline) Fetch(ctx context.Context, queries []Query) []storage.Landing {
	return p.FetchRun(ctx, p.RunID, queries)
}

// FetchRun is Fetch with the audit run id given by the caller.
func (p *Pipeline) FetchRun(ctx context.Context, runID string, queries []Query) []storage.Landing {
	if runID == "" {
		runID = uuid.NewString()
	}

	var out []storage.Landing
	for _, q := range queries {
		ls, err := p.fetchOne(ctx, q, runID)
		if err != nil {
			p.log().WithFields(logrus.Fields{"rss": q.RssNumber, "date": q.DateLanded}).Errorf("[landings] fetch failed: %v", err)
			continue
		}
		out = append(out, ls...)
	}
	return out
}

// Wait blocks until background sales note fetches have finished.
func (p *Pipeline) Wait() {
	p.background.Wait()
}

func (p *Pipeline) fetchOne(ctx context.Context, q Query, runID string) ([]storage.Landing, error) {
	day, err := utils.ParseDay(q.DateLanded)
	if err != nil {
		return nil, err
	}
	vessel, ok := p.Vessels.LookupVesselByRss(q.RssNumber, day)
	if !ok {
		return nil, fmt.Errorf("no licensed vessel with rss %s", q.RssNumber)
	}

	p.fetchSalesNotes(ctx, q, day, runID)

	var fetched []storage.Landing
	if vessel.VesselLength >= SmallVesselLength {
		fetched, err = p.fetchDeclared(ctx, q, day, runID)
	} else {
		fetched, err = p.fetchCatchActivity(ctx, q, day, runID)
	}
	if err != nil {
		return nil, err
	}
	p.enrich(fetched)

	stored, err := p.Store.GetStoredLandings(ctx, q.RssNumber, day)
	if err != nil {
		return nil, fmt.Errorf("stored landings: %w", err)
	}
	fetched = MarkUnchanged(fetched, stored)

	// Days are UTC calendar days; a landing reported with an offset that
	// puts it on another UTC day belongs to that day's query.
	out := fetched[:0]
	for _, l := range fetched {
		if utils.SameDay(l.DateTimeLanded, day) {
			out = append(out, l)
			continue
		}
		p.log().WithFields(logrus.Fields{
			"rssNumber": q.RssNumber,
			"queried":   q.DateLanded,
			"landed":    l.DateTimeLanded.Format(time.RFC3339),
			"source":    l.Source,
		}).Debug("[landings] landing outside queried day dropped")
	}
	return out, nil
}

// fetchDeclared reads landing declarations and falls back to electronic
// logs when there are none.
func (p *Pipeline) fetchDeclared(ctx context.Context, q Query, day time.Time, runID string) ([]storage.Landing, error) {
	var ls []storage.Landing
	for _, kind := range []providers.Kind{providers.KindLanding, providers.KindELogs} {
		raw, err := p.LandingData.FetchLandingData(ctx, day, q.RssNumber, kind)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		p.persist(ctx, string(kind), q, runID, raw)

		ls, err = providers.ParseLandings(raw, q.RssNumber, providers.SourceFor(kind))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		if len(ls) > 0 {
			break
		}
	}
	return ls, nil
}

func (p *Pipeline) fetchCatchActivity(ctx context.Context, q Query, day time.Time, runID string) ([]storage.Landing, error) {
	raw, err := p.CatchActivity.FetchCatchActivity(ctx, day, q.RssNumber)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", auditCatchActivity, err)
	}
	if raw == nil {
		return nil, nil
	}
	p.persist(ctx, auditCatchActivity, q, runID, raw)
	return providers.ParseLandings(raw, q.RssNumber, providers.SourceCatchApp)
}

// fetchSalesNotes runs in the background; its outcome only reaches the
// audit sink and the log.
func (p *Pipeline) fetchSalesNotes(ctx context.Context, q Query, day time.Time, runID string) {
	if p.LandingData == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	p.background.Add(1)
	go func() {
		defer p.background.Done()
		raw, err := p.LandingData.FetchLandingData(ctx, day, q.RssNumber, providers.KindSalesNotes)
		if err != nil {
			p.log().WithFields(logrus.Fields{"rss": q.RssNumber, "date": q.DateLanded}).Warnf("[landings] sales notes: %v", err)
			return
		}
		p.persist(ctx, string(providers.KindSalesNotes), q, runID, raw)
	}()
}

// AuditKey is where a raw payload of the given kind is kept.
func AuditKey(kind string, q Query, runID string) string {
	return fmt.Sprintf("%s/%s/%s/%s.json", kind, q.RssNumber, q.DateLanded, runID)
}

func (p *Pipeline) persist(ctx context.Context, kind string, q Query, runID string, raw []byte) {
	if p.Audit == nil {
		return
	}
	key := AuditKey(kind, q, runID)
	if err := p.Audit.PersistAuditPayload(ctx, key, raw); err != nil {
		p.log().WithField("key", key).Warnf("[landings] audit payload not stored: %v", err)
	}
}

// enrich fills missing live weight factors from the conversion factors.
func (p *Pipeline) enrich(ls []storage.Landing) {
	for i := range ls {
		for j := range ls[i].Items {
			item := &ls[i].Items[j]
			if item.Factor != 0 {
				continue
			}
			cf, ok := p.Vessels.ConversionFactor(item.Species, item.State, item.Presentation)
			if ok && cf.ToLiveWeightFactor != nil {
				item.Factor = *cf.ToLiveWeightFactor
			}
		}
	}
}

// MarkUnchanged sets Ignore on every fetched landing that matches a stored
// one on calendar day, source and items, ignoring item order. Order of
// fetched is kept.
func MarkUnchanged(fetched, stored []storage.Landing) []storage.Landing {
	out := make([]storage.Landing, 0, len(fetched))
	for _, f := range fetched {
		for _, s := range stored {
			if utils.SameDay(f.DateTimeLanded, s.DateTimeLanded) && f.Source == s.Source && sameItems(f.Items, s.Items) {
				f.Ignore = true
				break
			}
		}
		out = append(out, f)
	}
	return out
}

func sameItems(a, b []storage.LandingItem) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[storage.LandingItem]int, len(a))
	for _, it := range a {
		counts[it]++
	}
	for _, it := range b {
		if counts[it] == 0 {
			return false
		}
		counts[it]--
	}
	return true
}
