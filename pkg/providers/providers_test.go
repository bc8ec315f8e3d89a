package providers

import (
	"testing"
	"time"
)

func TestParseLandings(t *testing.T) {
	raw := []byte(`[
  {"dateTimeLanded":"2019-07-10T08:15:00+01:00","items":[
    {"species":"COD","weight":100,"factor":1.17,"state":"FRE","presentation":"GUT"},
    {"species":"HAD","weight":20,"state":"FRE","presentation":"WHL"}]},
  {"rssNumber":"rssOTHER","landingDateTime":"2019-07-11"}
]`)

	got, err := ParseLandings(raw, "rssWA1", SourceELog)
	if err != nil {
		t.Fatalf("ParseLandings: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 landings, got %d", len(got))
	}
	if want := time.Date(2019, 7, 10, 7, 15, 0, 0, time.UTC); !got[0].DateTimeLanded.Equal(want) {
		t.Fatalf("DateTimeLanded = %s, want %s", got[0].DateTimeLanded, want)
	}
	if got[0].RssNumber != "rssWA1" || got[0].Source != SourceELog || len(got[0].Items) != 2 {
		t.Fatalf("unexpected first landing: %+v", got[0])
	}
	if got[0].Items[0].Factor != 1.17 || got[0].Items[1].Factor != 0 {
		t.Fatalf("unexpected factors: %+v", got[0].Items)
	}
	if got[1].RssNumber != "rssOTHER" || got[1].DateTimeLanded.Day() != 11 {
		t.Fatalf("unexpected second landing: %+v", got[1])
	}
}

func TestParseLandingsRejectsMissingTime(t *testing.T) {
	if _, err := ParseLandings([]byte(`[{"items":[]}]`), "rssWA1", SourceLandingDeclaration); err == nil {
		t.Fatalf("expected an error for a record without a landing time")
	}
}

func TestRecordsShapes(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{`[]`, 0},
		{`[{},{}]`, 2},
		{`{"data":[{}]}`, 1},
		{`{"landings":[{},{},{}]}`, 3},
		{`{"dateTimeLanded":"2019-07-10"}`, 1},
		{`null`, 0},
		{``, 0},
	}
	for _, tt := range tests {
		if got := len(Records([]byte(tt.raw))); got != tt.want {
			t.Fatalf("Records(%q) = %d records, want %d", tt.raw, got, tt.want)
		}
	}
	if SourceFor(KindELogs) != SourceELog || SourceFor(KindLanding) != SourceLandingDeclaration {
		t.Fatalf("unexpected SourceFor mapping")
	}
}
