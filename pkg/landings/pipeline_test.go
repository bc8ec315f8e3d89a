package landings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/fes-tools/landrecon/pkg/providers"
	"github.com/fes-tools/landrecon/pkg/refdata"
	"github.com/fes-tools/landrecon/pkg/storage"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	lengths map[string]float64
	factor  *float64
}

func (f fakeDirectory) LookupVesselByRss(rss string, _ time.Time) (refdata.VesselRecord, bool) {
	l, ok := f.lengths[rss]
	return refdata.VesselRecord{RssNumber: rss, VesselLength: l}, ok
}

func (f fakeDirectory) ConversionFactor(species, state, presentation string) (refdata.ConversionFactor, bool) {
	if f.factor == nil {
		return refdata.ConversionFactor{}, false
	}
	return refdata.ConversionFactor{Species: species, State: state, Presentation: presentation, ToLiveWeightFactor: f.factor}, true
}

type fakeLandingData struct {
	mu       sync.Mutex
	payloads map[string]string // kind/rss
	fail     map[string]error
	calls    []string
}

func (f *fakeLandingData) FetchLandingData(_ context.Context, _ time.Time, rss string, kind providers.Kind) ([]byte, error) {
	key := string(kind) + "/" + rss
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, key)
	if err := f.fail[key]; err != nil {
		return nil, err
	}
	if p, ok := f.payloads[key]; ok {
		return []byte(p), nil
	}
	return []byte(`[]`), nil
}

func (f *fakeLandingData) called(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == key {
			return true
		}
	}
	return false
}

type fakeCatchActivity map[string]string

func (f fakeCatchActivity) FetchCatchActivity(_ context.Context, _ time.Time, rss string) ([]byte, error) {
	p, ok := f[rss]
	if !ok {
		return nil, nil
	}
	return []byte(p), nil
}

type fakeStore map[string][]storage.Landing

func (f fakeStore) GetStoredLandings(_ context.Context, rss string, day time.Time) ([]storage.Landing, error) {
	return f[rss+"/"+day.Format("2006-01-02")], nil
}

type memAudit struct {
	mu   sync.Mutex
	keys []string
}

func (m *memAudit) PersistAuditPayload(_ context.Context, key string, _ []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	return nil
}

func (m *memAudit) sorted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]string(nil), m.keys...)
	sort.Strings(out)
	return out
}

const declaration = `[
 {"dateTimeLanded":"2019-07-10T06:00:00Z","items":[{"species":"COD","weight":100,"factor":1.17,"state":"FRE","presentation":"GUT"},{"species":"HAD","weight":20,"state":"FRE","presentation":"WHL"}]},
 {"dateTimeLanded":"2019-07-11T06:00:00Z","items":[{"species":"COD","weight":5,"factor":1.17,"state":"FRE","presentation":"GUT"}]}
]`

func TestPipelineRoutesByVesselLength(t *testing.T) {
	factor := 1.0
	ld := &fakeLandingData{payloads: map[string]string{
		"landing/rssBIG":    declaration,
		"eLogs/rssLOGS":     `[{"dateTimeLanded":"2019-07-10T09:00:00Z","items":[{"species":"POL","weight":3,"factor":1,"state":"FRE","presentation":"WHL"}]}]`,
		"salesNotes/rssBIG": `[{"note":1}]`,
	}}
	audit := &memAudit{}
	p := &Pipeline{
		Vessels:       fakeDirectory{lengths: map[string]float64{"rssBIG": 15, "rssLOGS": 10, "rssSMALL": 9.99}, factor: &factor},
		LandingData:   ld,
		CatchActivity: fakeCatchActivity{"rssSMALL": `{"landings":[{"dateTimeLanded":"2019-07-10T18:00:00Z","items":[{"species":"BSS","weight":2,"factor":1,"state":"FRE","presentation":"WHL"}]}]}`},
		Store:         fakeStore{},
		Audit:         audit,
		RunID:         "run1",
	}

	got := p.Fetch(context.Background(), []Query{
		{RssNumber: "rssBIG", DateLanded: "2019-07-10"},
		{RssNumber: "rssLOGS", DateLanded: "2019-07-10"},
		{RssNumber: "rssSMALL", DateLanded: "2019-07-10"},
	})
	p.Wait()

	require.Len(t, got, 3, "the 2019-07-11 declaration is outside the queried day")
	assert.Equal(t, providers.SourceLandingDeclaration, got[0].Source)
	assert.Equal(t, 1.17, got[0].Items[0].Factor)
	assert.Equal(t, 1.0, got[0].Items[1].Factor, "missing factor taken from conversion factors")
	assert.Equal(t, providers.SourceELog, got[1].Source)
	assert.Equal(t, providers.SourceCatchApp, got[2].Source)

	assert.True(t, ld.called("eLogs/rssLOGS"))
	assert.False(t, ld.called("eLogs/rssBIG"), "no fallback when declarations exist")
	assert.False(t, ld.called("landing/rssSMALL"), "small vessels use catch activity")

	assert.Equal(t, []string{
		"catchActivity/rssSMALL/2019-07-10/run1.json",
		"eLogs/rssLOGS/2019-07-10/run1.json",
		"landing/rssBIG/2019-07-10/run1.json",
		"landing/rssLOGS/2019-07-10/run1.json",
		"salesNotes/rssBIG/2019-07-10/run1.json",
		"salesNotes/rssLOGS/2019-07-10/run1.json",
		"salesNotes/rssSMALL/2019-07-10/run1.json",
	}, audit.sorted())
}

func TestPipelineContinuesAfterVesselFailure(t *testing.T) {
	logger, hook := test.NewNullLogger()
	ld := &fakeLandingData{
		payloads: map[string]string{"landing/rssOK": declaration},
		fail: map[string]error{
			"landing/rssBAD":    errors.New("upstream down"),
			"salesNotes/rssOK":  errors.New("sales notes down"),
			"salesNotes/rssBAD": errors.New("sales notes down"),
		},
	}
	p := &Pipeline{
		Vessels:     fakeDirectory{lengths: map[string]float64{"rssBAD": 12, "rssOK": 12}},
		LandingData: ld,
		Store:       fakeStore{},
		Log:         logger,
	}

	got := p.Fetch(context.Background(), []Query{
		{RssNumber: "rssBAD", DateLanded: "2019-07-10"},
		{RssNumber: "rssUNKNOWN", DateLanded: "2019-07-10"},
		{RssNumber: "rssOK", DateLanded: "2019-07-10"},
	})
	p.Wait()

	require.Len(t, got, 1)
	assert.Equal(t, "rssOK", got[0].RssNumber)

	var errorsLogged, warnings int
	for _, e := range hook.AllEntries() {
		switch e.Level {
		case logrus.ErrorLevel:
			errorsLogged++
		case logrus.WarnLevel:
			warnings++
		}
	}
	assert.Equal(t, 2, errorsLogged, "bad vessel and unknown vessel")
	assert.Equal(t, 2, warnings, "sales notes failures only warn")
}

func TestPipelineLogsLandingsOutsideQueriedDay(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	ld := &fakeLandingData{payloads: map[string]string{
		// 00:30 at +01:00 is 23:30 UTC on the 9th.
		"landing/rssBIG": `[{"dateTimeLanded":"2019-07-10T00:30:00+01:00","items":[{"species":"COD","weight":1,"factor":1}]}]`,
	}}
	p := &Pipeline{
		Vessels:     fakeDirectory{lengths: map[string]float64{"rssBIG": 15}},
		LandingData: ld,
		Store:       fakeStore{},
		Log:         logger,
	}

	got := p.Fetch(context.Background(), []Query{{RssNumber: "rssBIG", DateLanded: "2019-07-10"}})
	p.Wait()
	assert.Empty(t, got)

	var dropped *logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.DebugLevel && e.Data["landed"] != nil {
			dropped = e
		}
	}
	require.NotNil(t, dropped, "dropped landing is logged")
	assert.Equal(t, "2019-07-09T23:30:00Z", dropped.Data["landed"])
	assert.Equal(t, "2019-07-10", dropped.Data["queried"])
}

func TestPipelineMarksStoredLandingsUnchanged(t *testing.T) {
	stored := storage.Landing{
		RssNumber:      "rssBIG",
		DateTimeLanded: time.Date(2019, 7, 10, 23, 0, 0, 0, time.UTC),
		Source:         providers.SourceLandingDeclaration,
		Items: []storage.LandingItem{
			{Species: "HAD", Weight: 20, Factor: 0, State: "FRE", Presentation: "WHL"},
			{Species: "COD", Weight: 100, Factor: 1.17, State: "FRE", Presentation: "GUT"},
		},
	}
	p := &Pipeline{
		Vessels:     fakeDirectory{lengths: map[string]float64{"rssBIG": 12}},
		LandingData: &fakeLandingData{payloads: map[string]string{"landing/rssBIG": declaration}},
		Store:       fakeStore{"rssBIG/2019-07-10": {stored}},
	}

	got := p.Fetch(context.Background(), []Query{{RssNumber: "rssBIG", DateLanded: "2019-07-10"}})
	p.Wait()

	require.Len(t, got, 1)
	assert.True(t, got[0].Ignore)
}

func TestMarkUnchanged(t *testing.T) {
	day := time.Date(2019, 7, 10, 8, 0, 0, 0, time.UTC)
	items := func(weights ...float64) []storage.LandingItem {
		var out []storage.LandingItem
		for i, w := range weights {
			out = append(out, storage.LandingItem{Species: fmt.Sprintf("S%d", i), Weight: w, Factor: 1, State: "FRE", Presentation: "WHL"})
		}
		return out
	}
	stored := []storage.Landing{{RssNumber: "rss", DateTimeLanded: day, Source: "ELOG", Items: items(1, 2)}}

	reversed := items(1, 2)
	reversed[0], reversed[1] = reversed[1], reversed[0]

	tests := []struct {
		name    string
		landing storage.Landing
		ignore  bool
	}{
		{"same items", storage.Landing{DateTimeLanded: day, Source: "ELOG", Items: items(1, 2)}, true},
		{"reordered items", storage.Landing{DateTimeLanded: day.Add(3 * time.Hour), Source: "ELOG", Items: reversed}, true},
		{"other source", storage.Landing{DateTimeLanded: day, Source: "LANDING_DECLARATION", Items: items(1, 2)}, false},
		{"extra item", storage.Landing{DateTimeLanded: day, Source: "ELOG", Items: items(1, 2, 3)}, false},
		{"other weight", storage.Landing{DateTimeLanded: day, Source: "ELOG", Items: items(1, 5)}, false},
		{"other day", storage.Landing{DateTimeLanded: day.Add(24 * time.Hour), Source: "ELOG", Items: items(1, 2)}, false},
	}

	var fetched []storage.Landing
	for _, tt := range tests {
		fetched = append(fetched, tt.landing)
	}
	got := MarkUnchanged(fetched, stored)
	require.Len(t, got, len(tests))
	for i, tt := range tests {
		assert.Equal(t, tt.ignore, got[i].Ignore, tt.name)
		assert.Equal(t, tt.landing.Source, got[i].Source, "%s: order kept", tt.name)
	}
}
