package catchactivity

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fes-tools/landrecon/internal/utils"
	"github.com/fes-tools/landrecon/pkg/providers"
	"github.com/fes-tools/landrecon/pkg/whttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
)

// Client talks to the catch app service used by under 10m vessels.
type Client struct {
	baseURL string
	token   string
	http    *retryablehttp.Client
}

var _ providers.CatchActivityProvider = (*Client)(nil)

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    whttp.NewClient(3),
	}
}

// FetchCatchActivity returns nil, nil when there is no submission for the
// vessel on that day.
func (c *Client) FetchCatchActivity(ctx context.Context, day time.Time, rssNumber string) ([]byte, error) {
	u := fmt.Sprintf("%s/v1/catch-activity?rssNumber=%s&date=%s", c.baseURL, url.QueryEscape(rssNumber), utils.FormatDay(day))
	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		Method:  "GET",
		URL:     u,
		Headers: whttp.Bearer(c.token),
	}, c.http)
	if err != nil {
		return nil, err
	}
	switch res.StatusCode {
	case http.StatusNotFound, http.StatusNoContent:
		return nil, nil
	}
	if err := res.Expect(u, http.StatusOK); err != nil {
		return nil, err
	}

	doc := gjson.ParseBytes(res.Body)
	if !doc.Exists() || doc.Type == gjson.Null || len(providers.Records(res.Body)) == 0 {
		return nil, nil
	}
	return res.Body, nil
}
