package landingdata

import (
	"context"
	"errors"
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

var ErrBadPayload = errors.New("landing data payload is not a JSON array")

// Client talks to the landing data service.
type Client struct {
	baseURL string
	token   string
	http    *retryablehttp.Client
}

var _ providers.LandingDataProvider = (*Client)(nil)

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    whttp.NewClient(3),
	}
}

func (c *Client) endpoint(kind providers.Kind, rssNumber string, day time.Time) string {
	return fmt.Sprintf("%s/v1/%s/%s/%s", c.baseURL, kind, url.PathEscape(rssNumber), utils.FormatDay(day))
}

// FetchLandingData returns the JSON array the service holds for the vessel
// and day. A 404 is an empty array.
func (c *Client) FetchLandingData(ctx context.Context, day time.Time, rssNumber string, kind providers.Kind) ([]byte, error) {
	switch kind {
	case providers.KindLanding, providers.KindELogs, providers.KindSalesNotes:
	default:
		return nil, fmt.Errorf("unknown landing data kind %q", kind)
	}

	u := c.endpoint(kind, rssNumber, day)
	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		Method:  "GET",
		URL:     u,
		Headers: whttp.Bearer(c.token),
	}, c.http)
	if err != nil {
		return nil, err
	}
	if res.StatusCode == http.StatusNotFound {
		return []byte("[]"), nil
	}
	if err := res.Expect(u, http.StatusOK); err != nil {
		return nil, err
	}

	body := res.Body
	if len(strings.TrimSpace(string(body))) == 0 {
		return []byte("[]"), nil
	}
	doc := gjson.ParseBytes(body)
	if data := doc.Get("data"); doc.IsObject() && data.IsArray() {
		return []byte(data.Raw), nil
	}
	if !doc.IsArray() {
		return nil, fmt.Errorf("%s: %w", u, ErrBadPayload)
	}
	return body, nil
}
