package consolidation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/fes-tools/landrecon/internal/utils"
	"github.com/fes-tools/landrecon/pkg/landings"
	"github.com/fes-tools/landrecon/pkg/storage"
	"github.com/fes-tools/landrecon/pkg/whttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
)

// Client talks to the consolidation service, which owns the refresh list
// and receives newly ingested landings.
type Client struct {
	baseURL string
	http    *retryablehttp.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    whttp.NewClient(3),
	}
}

// Refresh returns the landings the service wants fetched again.
// Entries without a vessel or a parseable date are dropped.
func (c *Client) Refresh(ctx context.Context) ([]landings.Query, error) {
	u := c.baseURL + "/v1/landings/refresh"
	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{Method: "GET", URL: u}, c.http)
	if err != nil {
		return nil, err
	}
	if err := res.Expect(u, http.StatusOK); err != nil {
		return nil, err
	}

	var out []landings.Query
	gjson.ParseBytes(res.Body).ForEach(func(_, v gjson.Result) bool {
		rss := v.Get("rssNumber").String()
		if rss == "" {
			return true
		}
		day, err := utils.ParseDay(v.Get("dateLanded").String())
		if err != nil {
			return true
		}
		out = append(out, landings.Query{RssNumber: rss, DateLanded: utils.FormatDay(day)})
		return true
	})
	return out, nil
}

// PostLandings hands ingested landings to the service.
func (c *Client) PostLandings(ctx context.Context, ls []storage.Landing) error {
	if len(ls) == 0 {
		return nil
	}
	body, err := json.Marshal(ls)
	if err != nil {
		return err
	}
	u := c.baseURL + "/v1/landings"
	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{Method: "POST", URL: u, Body: body}, c.http)
	if err != nil {
		return err
	}
	return res.Expect(u, http.StatusOK, http.StatusCreated, http.StatusAccepted, http.StatusNoContent)
}

// Trade submits certificates to the trade service.
type Trade struct {
	baseURL string
	http    *retryablehttp.Client
}

func NewTrade(baseURL string) *Trade {
	return &Trade{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    whttp.NewClient(3),
	}
}

// Resubmit posts the certificate to the trade service again.
func (t *Trade) Resubmit(ctx context.Context, c storage.CatchCertificate) error {
	body, err := json.Marshal(c)
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/v1/catch-certificates/%s", t.baseURL, c.DocumentNumber)
	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{Method: "PUT", URL: u, Body: body}, t.http)
	if err != nil {
		return err
	}
	return res.Expect(u, http.StatusOK, http.StatusAccepted, http.StatusNoContent)
}
