package consolidation

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/fes-tools/landrecon/pkg/landings"
	"github.com/fes-tools/landrecon/pkg/storage"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mock(t *testing.T, c *retryablehttp.Client) {
	t.Helper()
	c.RetryMax = 0
	httpmock.ActivateNonDefault(c.HTTPClient)
	t.Cleanup(httpmock.DeactivateAndReset)
}

func TestRefresh(t *testing.T) {
	c := New("https://consolidation.test/")
	mock(t, c.http)
	httpmock.RegisterResponder("GET", "https://consolidation.test/v1/landings/refresh",
		httpmock.NewStringResponder(200, `[
			{"rssNumber":"rssWA1","dateLanded":"2019-07-10"},
			{"rssNumber":"rssWA2","dateLanded":"2019-07-11T09:30:00Z"},
			{"dateLanded":"2019-07-12"},
			{"rssNumber":"rssWA3","dateLanded":"someday"}
		]`))

	got, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []landings.Query{
		{RssNumber: "rssWA1", DateLanded: "2019-07-10"},
		{RssNumber: "rssWA2", DateLanded: "2019-07-11"},
	}, got)
}

func TestRefreshServerError(t *testing.T) {
	c := New("https://consolidation.test")
	mock(t, c.http)
	httpmock.RegisterResponder("GET", "https://consolidation.test/v1/landings/refresh",
		httpmock.NewStringResponder(503, `unavailable`))

	_, err := c.Refresh(context.Background())
	assert.Error(t, err)
}

func TestPostLandings(t *testing.T) {
	c := New("https://consolidation.test")
	mock(t, c.http)

	var posted []storage.Landing
	httpmock.RegisterResponder("POST", "https://consolidation.test/v1/landings",
		func(req *http.Request) (*http.Response, error) {
			b, err := io.ReadAll(req.Body)
			if err != nil {
				return nil, err
			}
			if err := json.Unmarshal(b, &posted); err != nil {
				return httpmock.NewStringResponse(400, err.Error()), nil
			}
			return httpmock.NewStringResponse(202, ``), nil
		})

	// Nothing to send: no request at all.
	require.NoError(t, c.PostLandings(context.Background(), nil))
	assert.Equal(t, 0, httpmock.GetTotalCallCount())

	ls := []storage.Landing{{
		RssNumber:      "rssWA1",
		DateTimeLanded: time.Date(2019, 7, 10, 8, 0, 0, 0, time.UTC),
		Source:         "LANDING_DECLARATION",
		Items:          []storage.LandingItem{{Species: "COD", Weight: 100}},
	}}
	require.NoError(t, c.PostLandings(context.Background(), ls))
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
	assert.Equal(t, ls, posted)
}

func TestResubmit(t *testing.T) {
	tr := NewTrade("https://trade.test")
	mock(t, tr.http)
	httpmock.RegisterResponder("PUT", "https://trade.test/v1/catch-certificates/GBR-2019-CC-1",
		httpmock.NewStringResponder(204, ``))
	httpmock.RegisterResponder("PUT", "https://trade.test/v1/catch-certificates/GBR-2019-CC-2",
		httpmock.NewStringResponder(409, `{"message":"conflict"}`))

	require.NoError(t, tr.Resubmit(context.Background(), storage.CatchCertificate{DocumentNumber: "GBR-2019-CC-1"}))
	assert.Error(t, tr.Resubmit(context.Background(), storage.CatchCertificate{DocumentNumber: "GBR-2019-CC-2"}))
}
