// Package reprocess drains the file-backed queue of catch entry ids whose
// landing status must be reset to pending.
package reprocess

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fes-tools/landrecon/internal/utils"
	"github.com/fes-tools/landrecon/pkg/storage"
	"github.com/fes-tools/landrecon/pkg/window"
	"github.com/sirupsen/logrus"
)

const DefaultLimit = 100

// CertificateStore is the part of the certificate store the queue needs.
type CertificateStore interface {
	GetCatchCertificates(ctx context.Context, f storage.CertificateFilter) ([]storage.CatchCertificate, error)
	UpsertCertificate(ctx context.Context, documentNumber string, patch map[string]interface{}) error
}

type Queue struct {
	Path    string
	Enabled bool
	// Limit is the number of ids taken per batch; DefaultLimit when <= 0.
	Limit int
	Store CertificateStore
	Log   logrus.FieldLogger
}

// Result describes one batch.
type Result struct {
	Processed    []string
	Certificates int
	Remaining    int
}

func (q *Queue) log() logrus.FieldLogger {
	if q.Log == nil {
		return utils.Discard()
	}
	return q.Log
}

func (q *Queue) limit() int {
	if q.Limit <= 0 {
		return DefaultLimit
	}
	return q.Limit
}

// RunBatch resets the entries of the next batch of ids to pending. The
// queue file is rewritten with the remaining ids only once every
// certificate of the batch has been saved; on error it is left as it was
// and the same batch is retried on the next run.
func (q *Queue) RunBatch(ctx context.Context) (Result, error) {
	var res Result
	if !q.Enabled {
		q.log().Debug("[reprocess] disabled")
		return res, nil
	}

	lock, err := utils.NewFileLock(q.Path)
	if err != nil {
		return res, err
	}
	if err := lock.Lock(); err != nil {
		return res, err
	}
	defer lock.Unlock()

	ids, err := q.read()
	if err != nil {
		return res, q.fail("readQueue", err, nil)
	}
	res.Remaining = len(ids)
	if len(ids) == 0 {
		return res, nil
	}

	referenced, err := q.Store.GetCatchCertificates(ctx, storage.CertificateFilter{IDs: ids})
	if err != nil {
		return res, q.fail("getCatchCertificates", err, nil)
	}
	if len(referenced) == 0 {
		q.log().Infof("[reprocess] no certificates reference the %d queued ids", len(ids))
		return res, nil
	}

	batch := ids
	if len(batch) > q.limit() {
		batch = ids[:q.limit()]
	}
	inBatch := make(map[string]bool, len(batch))
	for _, id := range batch {
		inBatch[id] = true
	}

	certs, err := q.Store.GetCatchCertificates(ctx, storage.CertificateFilter{IDs: batch})
	if err != nil {
		return res, q.fail("getCatchCertificates", err, nil)
	}
	for _, c := range certs {
		patch := map[string]interface{}{}
		for p, product := range c.Products {
			for e, entry := range product.CaughtBy {
				if inBatch[entry.ID] {
					for k, v := range storage.EntryStatusPatch(p, e, window.StatusPending) {
						patch[k] = v
					}
				}
			}
		}
		if len(patch) == 0 {
			continue
		}
		if err := q.Store.UpsertCertificate(ctx, c.DocumentNumber, patch); err != nil {
			return res, q.fail("upsertCertificate", err, logrus.Fields{"document": c.DocumentNumber})
		}
		res.Certificates++
	}

	var remaining []string
	for _, id := range ids {
		if !inBatch[id] {
			remaining = append(remaining, id)
		}
	}
	if err := q.write(remaining); err != nil {
		return res, q.fail("writeQueue", err, nil)
	}

	res.Processed = batch
	res.Remaining = len(remaining)
	q.log().Infof("[reprocess] reset %d ids across %d certificates, %d left", len(batch), res.Certificates, len(remaining))
	return res, nil
}

// Enqueue appends ids not already queued.
func (q *Queue) Enqueue(ids ...string) (int, error) {
	lock, err := utils.NewFileLock(q.Path)
	if err != nil {
		return 0, err
	}
	if err := lock.Lock(); err != nil {
		return 0, err
	}
	defer lock.Unlock()

	queued, err := q.read()
	if err != nil {
		return 0, err
	}
	seen := make(map[string]bool, len(queued))
	for _, id := range queued {
		seen[id] = true
	}
	added := 0
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		queued = append(queued, id)
		added++
	}
	if added == 0 {
		return 0, nil
	}
	return added, q.write(queued)
}

// List returns the queued ids in order.
func (q *Queue) List() ([]string, error) {
	return q.read()
}

func (q *Queue) fail(op string, err error, fields logrus.Fields) error {
	entry := q.log().WithField("op", op)
	if fields != nil {
		entry = entry.WithFields(fields)
	}
	entry.Errorf("[reprocess] batch aborted: %v", err)
	return fmt.Errorf("reprocess %s: %w", op, err)
}

func (q *Queue) read() ([]string, error) {
	b, err := os.ReadFile(q.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, line := range strings.Split(string(b), "\n") {
		if id := strings.TrimSpace(line); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// write stores ids joined by newlines with no trailing newline; an empty
// queue is an empty file.
func (q *Queue) write(ids []string) error {
	return os.WriteFile(q.Path, []byte(strings.Join(ids, "\n")), 0o644)
}
