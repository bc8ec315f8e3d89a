package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func cert(doc, status string, created time.Time, entryIDs ...string) CatchCertificate {
	var entries []CatchEntry
	for _, id := range entryIDs {
		entries = append(entries, CatchEntry{ID: id, PLN: "WA1", Date: "2019-07-10", Status: "HasLandingData"})
	}
	return CatchCertificate{
		DocumentNumber: doc,
		Status:         status,
		CreatedAt:      created,
		Products:       []Product{{SpeciesCode: "COD", CaughtBy: entries}},
	}
}

func TestCertificatesRoundTripAndFilter(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	base := time.Date(2019, 7, 10, 0, 0, 0, 0, time.UTC)

	for _, c := range []CatchCertificate{
		cert("GBR-2", DocumentComplete, base.Add(time.Hour), "CB2", "CB3"),
		cert("GBR-1", DocumentComplete, base, "CB1"),
		cert("GBR-3", DocumentVoid, base.Add(2*time.Hour), "CB4"),
	} {
		if err := db.SaveCertificate(ctx, c); err != nil {
			t.Fatalf("SaveCertificate(%s): %v", c.DocumentNumber, err)
		}
	}

	complete, err := db.GetCatchCertificates(ctx, CertificateFilter{Statuses: []string{DocumentComplete}})
	if err != nil {
		t.Fatalf("GetCatchCertificates: %v", err)
	}
	if len(complete) != 2 || complete[0].DocumentNumber != "GBR-1" || complete[1].DocumentNumber != "GBR-2" {
		t.Fatalf("expected GBR-1, GBR-2 in creation order, got %+v", complete)
	}
	if !complete[0].CreatedAt.Equal(base) {
		t.Fatalf("CreatedAt = %s, want %s", complete[0].CreatedAt, base)
	}

	byID, err := db.GetCatchCertificates(ctx, CertificateFilter{IDs: []string{"CB3", "CB4"}})
	if err != nil {
		t.Fatalf("GetCatchCertificates by id: %v", err)
	}
	if len(byID) != 2 || byID[0].DocumentNumber != "GBR-2" || byID[1].DocumentNumber != "GBR-3" {
		t.Fatalf("unexpected id filter result: %+v", byID)
	}

	none, err := db.GetCatchCertificates(ctx, CertificateFilter{IDs: []string{"CB99"}})
	if err != nil {
		t.Fatalf("GetCatchCertificates: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no certificates, got %d", len(none))
	}
}

func TestUpsertCertificatePatch(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	c := cert("GBR-1", DocumentComplete, time.Now().UTC(), "CB1", "CB2")
	c.ResubmitToTrade = true
	if err := db.SaveCertificate(ctx, c); err != nil {
		t.Fatalf("SaveCertificate: %v", err)
	}

	if err := db.UpsertCertificate(ctx, "GBR-1", EntryStatusPatch(0, 1, "Pending")); err != nil {
		t.Fatalf("UpsertCertificate: %v", err)
	}
	if err := db.UpsertCertificate(ctx, "GBR-1", map[string]interface{}{"resubmitToTrade": false}); err != nil {
		t.Fatalf("UpsertCertificate: %v", err)
	}

	got, err := db.GetCatchCertificates(ctx, CertificateFilter{})
	if err != nil || len(got) != 1 {
		t.Fatalf("GetCatchCertificates: %v %v", got, err)
	}
	entries := got[0].Products[0].CaughtBy
	if entries[0].Status != "HasLandingData" || entries[1].Status != "Pending" {
		t.Fatalf("patch touched the wrong entry: %+v", entries)
	}
	if got[0].ResubmitToTrade {
		t.Fatalf("expected resubmit flag cleared")
	}

	flagged, err := db.GetCatchCertificates(ctx, CertificateFilter{ResubmitOnly: true})
	if err != nil {
		t.Fatalf("GetCatchCertificates: %v", err)
	}
	if len(flagged) != 0 {
		t.Fatalf("resubmit column not mirrored, got %d flagged", len(flagged))
	}
}

func TestUpsertCertificateUnknown(t *testing.T) {
	db := openTestDB(t)
	err := db.UpsertCertificate(context.Background(), "NOPE", EntryStatusPatch(0, 0, "Pending"))
	if !errors.Is(err, ErrCertificateNotFound) {
		t.Fatalf("expected ErrCertificateNotFound, got %v", err)
	}
}

func TestLandingsUpsertAndLoad(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	landed := time.Date(2019, 7, 10, 14, 30, 0, 0, time.UTC)

	l := Landing{
		RssNumber:      "rssWA1",
		DateTimeLanded: landed,
		Source:         "LANDING_DECLARATION",
		Items: []LandingItem{
			{Species: "COD", Weight: 100, Factor: 1.17, State: "FRE", Presentation: "WHL"},
			{Species: "POL", Weight: 12, Factor: 1, State: "FRE", Presentation: "GUT"},
		},
	}
	other := l
	other.DateTimeLanded = landed.Add(24 * time.Hour)

	if err := db.UpsertLandings(ctx, []Landing{l, other}); err != nil {
		t.Fatalf("UpsertLandings: %v", err)
	}

	// same vessel, instant and source with other items: a second landing
	split := l
	split.Items = []LandingItem{{Species: "HAD", Weight: 5, Factor: 1, State: "FRE", Presentation: "GUT"}}
	// same items in another order: the landing already stored
	reordered := l
	reordered.Items = []LandingItem{l.Items[1], l.Items[0]}
	if err := db.UpsertLandings(ctx, []Landing{split, reordered, l}); err != nil {
		t.Fatalf("UpsertLandings (again): %v", err)
	}

	got, err := db.GetStoredLandings(ctx, "rssWA1", time.Date(2019, 7, 10, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("GetStoredLandings: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 landings on the day, got %d: %+v", len(got), got)
	}
	for _, g := range got {
		if !g.DateTimeLanded.Equal(landed) {
			t.Fatalf("unexpected stored landing: %+v", g)
		}
	}

	stats, err := db.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Landings != 3 || stats.LandingsBySource["LANDING_DECLARATION"] != 3 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestPersistAuditPayload(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if err := db.PersistAuditPayload(ctx, "landing/rssWA1/2019-07-10/run.json", []byte(`[]`)); err != nil {
		t.Fatalf("PersistAuditPayload: %v", err)
	}
	if err := db.PersistAuditPayload(ctx, "landing/rssWA1/2019-07-10/run.json", []byte(`[{}]`)); err != nil {
		t.Fatalf("PersistAuditPayload overwrite: %v", err)
	}
	stats, err := db.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.AuditPayloads != 1 {
		t.Fatalf("expected 1 audit payload, got %d", stats.AuditPayloads)
	}
}
