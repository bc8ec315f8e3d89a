package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fes-tools/landrecon/internal/utils"
	"github.com/fes-tools/landrecon/pkg/landings"
	"github.com/fes-tools/landrecon/pkg/reprocess"
	"github.com/fes-tools/landrecon/pkg/storage"
	"github.com/fes-tools/landrecon/pkg/window"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Phase names, as logged and reported in CycleResult.Failed.
const (
	PhaseCacheRefresh   = "cacheRefresh"
	PhaseStatusReset    = "statusReset"
	PhaseReconciliation = "reconciliation"
	PhaseExceeding      = "exceeding"
	PhaseReprocessing   = "reprocessing"
	PhaseResubmission   = "resubmission"
)

// Store is the certificate and landing persistence the engine writes to.
type Store interface {
	GetCatchCertificates(ctx context.Context, f storage.CertificateFilter) ([]storage.CatchCertificate, error)
	UpsertCertificate(ctx context.Context, documentNumber string, patch map[string]interface{}) error
	UpsertLandings(ctx context.Context, ls []storage.Landing) error
}

// Consolidator supplies the refresh list and receives new landings.
type Consolidator interface {
	Refresh(ctx context.Context) ([]landings.Query, error)
	PostLandings(ctx context.Context, ls []storage.Landing) error
}

type Resubmitter interface {
	Resubmit(ctx context.Context, c storage.CatchCertificate) error
}

// Refresher reloads the frequently changing reference datasets.
type Refresher interface {
	Refresh(ctx context.Context)
}

type Batcher interface {
	RunBatch(ctx context.Context) (reprocess.Result, error)
}

// Config holds everything the engine needs. Store, Resolver and Pipeline
// are required; the rest switch their phase off when nil.
type Config struct {
	Store         Store
	Resolver      *landings.Resolver
	Pipeline      *landings.Pipeline
	Consolidation Consolidator
	Trade         Resubmitter
	Reference     Refresher
	Reprocess     Batcher

	ResubmissionEnabled bool

	Now func() time.Time   // defaults to time.Now
	Log logrus.FieldLogger // optional; nil = no logging
}

// Engine runs reconciliation cycles. One cycle at a time.
type Engine struct {
	cfg       Config
	reporting sync.WaitGroup
}

func New(cfg Config) *Engine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Log == nil {
		cfg.Log = utils.Discard()
	}
	return &Engine{cfg: cfg}
}

// ReconciliationResult holds the outcome of one reconciliation.
type ReconciliationResult struct {
	RunID    string
	Queries  []landings.Query
	Landings []storage.Landing // new landings, stored and reported
	Ignored  int               // fetched landings identical to stored ones
	Landed   int               // catch entries moved to HasLandingData
}

// CycleResult holds the outcome of every phase of a cycle.
type CycleResult struct {
	Reset          int
	Reconciliation *ReconciliationResult
	Exceeding      int
	Reprocessed    *reprocess.Result
	Resubmitted    int
	Failed         []string
}

// Wait blocks until background reporting and sales note fetches are done.
func (e *Engine) Wait() {
	e.reporting.Wait()
	if e.cfg.Pipeline != nil {
		e.cfg.Pipeline.Wait()
	}
}

func (e *Engine) completeCertificates(ctx context.Context) ([]storage.CatchCertificate, error) {
	return e.cfg.Store.GetCatchCertificates(ctx, storage.CertificateFilter{Statuses: []string{storage.DocumentComplete}})
}

// RunReconciliation fetches landings for the refresh list and the missing
// landings, stores the new ones and reports them. Reporting runs even when
// a later step fails, with whatever was collected.
func (e *Engine) RunReconciliation(ctx context.Context) (res *ReconciliationResult, err error) {
	res = &ReconciliationResult{RunID: uuid.NewString()}
	log := e.cfg.Log.WithField("run", res.RunID)
	defer e.report(ctx, res, log)

	var refresh []landings.Query
	if e.cfg.Consolidation != nil {
		refresh, err = e.cfg.Consolidation.Refresh(ctx)
		if err != nil {
			log.Warnf("[reconcile] refresh list unavailable: %v", err)
			refresh = nil
		}
	}

	certs, err := e.completeCertificates(ctx)
	if err != nil {
		return res, fmt.Errorf("load certificates: %w", err)
	}
	now := e.cfg.Now()
	missing := e.cfg.Resolver.ComputeMissing(certs, now)
	res.Queries = landings.DedupeQueries(refresh, missing)
	log.Infof("[reconcile] %d queries (%d refresh, %d missing)", len(res.Queries), len(refresh), len(missing))

	fetched := e.cfg.Pipeline.FetchRun(ctx, res.RunID, res.Queries)

	found := map[landings.Query]bool{}
	var fresh []storage.Landing
	for _, l := range fetched {
		found[landings.Query{RssNumber: l.RssNumber, DateLanded: utils.FormatDay(l.DateTimeLanded)}] = true
		if l.Ignore {
			res.Ignored++
			continue
		}
		fresh = append(fresh, l)
	}
	res.Landings = landings.UniquifyLandings(fresh)

	if err := e.cfg.Store.UpsertLandings(ctx, res.Landings); err != nil {
		return res, fmt.Errorf("store landings: %w", err)
	}

	res.Landed, err = e.markLanded(ctx, certs, now, found)
	if err != nil {
		return res, err
	}
	return res, nil
}

// markLanded moves pending, due entries to HasLandingData once a landing
// exists for their vessel and day.
func (e *Engine) markLanded(ctx context.Context, certs []storage.CatchCertificate, now time.Time, found map[landings.Query]bool) (int, error) {
	return e.patchRows(ctx, certs, now, window.StatusHasLandingData, func(r landings.Row) bool {
		return window.IsPendingStatus(r.Status) && r.Window == window.Due && found[r.Query()]
	})
}

func (e *Engine) report(ctx context.Context, res *ReconciliationResult, log logrus.FieldLogger) {
	if e.cfg.Consolidation == nil || len(res.Landings) == 0 {
		return
	}
	ls := append([]storage.Landing(nil), res.Landings...)
	ctx = context.WithoutCancel(ctx)
	e.reporting.Add(1)
	go func() {
		defer e.reporting.Done()
		if err := e.cfg.Consolidation.PostLandings(ctx, ls); err != nil {
			log.Warnf("[reconcile] reporting %d landings failed: %v", len(ls), err)
			return
		}
		log.Debugf("[reconcile] reported %d landings", len(ls))
	}()
}

// ResetLandingStatuses puts entries marked Exceeded14Days back to Pending
// when their window is open again, such as after an end date extension.
func (e *Engine) ResetLandingStatuses(ctx context.Context) (int, error) {
	certs, err := e.completeCertificates(ctx)
	if err != nil {
		return 0, err
	}
	return e.patchRows(ctx, certs, e.cfg.Now(), window.StatusPending, func(r landings.Row) bool {
		return r.Status == window.StatusExceeded && r.Window == window.Due
	})
}

// CheckExceeding marks entries past their window as Exceeded14Days.
func (e *Engine) CheckExceeding(ctx context.Context) (int, error) {
	certs, err := e.completeCertificates(ctx)
	if err != nil {
		return 0, err
	}
	exceeding := e.cfg.Resolver.ComputeExceeding(certs, e.cfg.Now())
	return e.applyStatus(ctx, exceeding, window.StatusExceeded)
}

// Resubmit sends certificates flagged for resubmission to trade and clears
// the flag. A failing certificate keeps its flag for the next run.
func (e *Engine) Resubmit(ctx context.Context) (int, error) {
	if !e.cfg.ResubmissionEnabled || e.cfg.Trade == nil {
		return 0, nil
	}
	certs, err := e.cfg.Store.GetCatchCertificates(ctx, storage.CertificateFilter{ResubmitOnly: true})
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, c := range certs {
		if err := e.cfg.Trade.Resubmit(ctx, c); err != nil {
			e.cfg.Log.WithField("document", c.DocumentNumber).Warnf("[reconcile] resubmission failed: %v", err)
			continue
		}
		if err := e.cfg.Store.UpsertCertificate(ctx, c.DocumentNumber, map[string]interface{}{"resubmitToTrade": false}); err != nil {
			return sent, fmt.Errorf("clear resubmit flag of %s: %w", c.DocumentNumber, err)
		}
		sent++
	}
	return sent, nil
}

func (e *Engine) patchRows(ctx context.Context, certs []storage.CatchCertificate, now time.Time, status string, match func(landings.Row) bool) (int, error) {
	var rows []landings.Row
	for _, r := range e.cfg.Resolver.Flatten(certs, now) {
		if match(r) {
			rows = append(rows, r)
		}
	}
	return e.applyStatus(ctx, rows, status)
}

// applyStatus writes one patch per certificate. It returns the number of
// entries changed.
func (e *Engine) applyStatus(ctx context.Context, rows []landings.Row, status string) (int, error) {
	var order []string
	patches := map[string]map[string]interface{}{}
	for _, r := range rows {
		patch, ok := patches[r.DocumentNumber]
		if !ok {
			patch = map[string]interface{}{}
			patches[r.DocumentNumber] = patch
			order = append(order, r.DocumentNumber)
		}
		for k, v := range storage.EntryStatusPatch(r.ProductIndex, r.EntryIndex, status) {
			patch[k] = v
		}
	}

	changed := 0
	for _, doc := range order {
		if err := e.cfg.Store.UpsertCertificate(ctx, doc, patches[doc]); err != nil {
			return changed, fmt.Errorf("set %s on %s: %w", status, doc, err)
		}
		changed += len(patches[doc])
	}
	return changed, nil
}

// RunCycle runs every phase in order. A phase that fails or panics is
// logged and the next one still runs.
func (e *Engine) RunCycle(ctx context.Context) *CycleResult {
	res := &CycleResult{}

	if e.cfg.Reference != nil {
		e.guard(PhaseCacheRefresh, res, func() error {
			e.cfg.Reference.Refresh(ctx)
			return nil
		})
	}
	e.guard(PhaseStatusReset, res, func() (err error) {
		res.Reset, err = e.ResetLandingStatuses(ctx)
		return err
	})
	e.guard(PhaseReconciliation, res, func() (err error) {
		res.Reconciliation, err = e.RunReconciliation(ctx)
		return err
	})
	e.guard(PhaseExceeding, res, func() (err error) {
		res.Exceeding, err = e.CheckExceeding(ctx)
		return err
	})
	if e.cfg.Reprocess != nil {
		e.guard(PhaseReprocessing, res, func() error {
			r, err := e.cfg.Reprocess.RunBatch(ctx)
			res.Reprocessed = &r
			return err
		})
	}
	e.guard(PhaseResubmission, res, func() (err error) {
		res.Resubmitted, err = e.Resubmit(ctx)
		return err
	})

	if len(res.Failed) > 0 {
		e.cfg.Log.Warnf("[reconcile] cycle finished with failed phases: %v", res.Failed)
	} else {
		e.cfg.Log.Info("[reconcile] cycle finished")
	}
	return res
}

func (e *Engine) guard(phase string, res *CycleResult, fn func() error) {
	log := e.cfg.Log.WithField("phase", phase)
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[reconcile] phase panicked: %v", r)
			res.Failed = append(res.Failed, phase)
		}
	}()
	if err := fn(); err != nil {
		log.Errorf("[reconcile] phase failed: %v", err)
		res.Failed = append(res.Failed, phase)
	}
}
