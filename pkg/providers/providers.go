package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fes-tools/landrecon/internal/utils"
	"github.com/fes-tools/landrecon/pkg/storage"
	"github.com/tidwall/gjson"
)

// Kind selects a landing data family served by the landing data provider.
type Kind string

const (
	KindLanding    Kind = "landing"
	KindELogs      Kind = "eLogs"
	KindSalesNotes Kind = "salesNotes"
)

// Sources recorded on landings, by the family that produced them.
const (
	SourceLandingDeclaration = "LANDING_DECLARATION"
	SourceELog               = "ELOG"
	SourceCatchApp           = "CATCH_APP"
)

// LandingDataProvider serves landing declarations, electronic logs and
// sales notes for vessels of 10 metres and over.
type LandingDataProvider interface {
	// FetchLandingData returns the raw JSON array of records for the vessel
	// and day. An empty array is not an error.
	FetchLandingData(ctx context.Context, day time.Time, rssNumber string, kind Kind) ([]byte, error)
}

// CatchActivityProvider serves catch app submissions for vessels under
// 10 metres.
type CatchActivityProvider interface {
	// FetchCatchActivity returns the raw JSON document, or nil when the
	// provider has nothing for the vessel and day.
	FetchCatchActivity(ctx context.Context, day time.Time, rssNumber string) ([]byte, error)
}

// SourceFor maps a landing data kind to the source recorded on its landings.
func SourceFor(kind Kind) string {
	switch kind {
	case KindELogs:
		return SourceELog
	default:
		return SourceLandingDeclaration
	}
}

// Records returns the records of a provider payload. Payloads are either a
// bare array or an object wrapping the array in "data" or "landings".
func Records(raw []byte) []gjson.Result {
	doc := gjson.ParseBytes(raw)
	if doc.IsArray() {
		return doc.Array()
	}
	for _, key := range []string{"data", "landings"} {
		if v := doc.Get(key); v.IsArray() {
			return v.Array()
		}
	}
	if doc.IsObject() {
		return []gjson.Result{doc}
	}
	return nil
}

// ParseLandings maps provider records to landings. Records without a usable
// landing time are an error so a malformed payload is not half ingested.
func ParseLandings(raw []byte, rssNumber, source string) ([]storage.Landing, error) {
	var out []storage.Landing
	for i, rec := range Records(raw) {
		landedAt := firstString(rec, "dateTimeLanded", "landingDateTime", "dateLanded")
		when, err := utils.ParseDay(landedAt)
		if err != nil {
			return nil, fmt.Errorf("record %d: landing time %q: %w", i, landedAt, err)
		}
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(landedAt)); err == nil {
			when = t.UTC()
		}

		l := storage.Landing{
			RssNumber:      rssNumber,
			DateTimeLanded: when,
			Source:         source,
		}
		if rss := rec.Get("rssNumber").String(); rss != "" {
			l.RssNumber = rss
		}
		rec.Get("items").ForEach(func(_, item gjson.Result) bool {
			l.Items = append(l.Items, storage.LandingItem{
				Species:      firstString(item, "species", "speciesCode"),
				Weight:       firstNumber(item, "weight", "liveWeight"),
				Factor:       item.Get("factor").Float(),
				State:        item.Get("state").String(),
				Presentation: item.Get("presentation").String(),
			})
			return true
		})
		out = append(out, l)
	}
	return out, nil
}

func firstString(r gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func firstNumber(r gjson.Result, paths ...string) float64 {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() {
			return v.Float()
		}
	}
	return 0
}
