package whttp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/html"
)

const USER_AGENT = "landrecon/1.0"

type WHTTPHeader struct {
	Name  string
	Value string
}

type WHTTPReq struct {
	URL     string
	Method  string
	Headers []WHTTPHeader
	Body    []byte
}

type WHTTPRes struct {
	StatusCode int
	HTTPTitle  string
	Body       []byte
}

// StatusError is returned by Expect for an unexpected status code.
type StatusError struct {
	StatusCode int
	URL        string
	Title      string
}

func (e *StatusError) Error() string {
	if e.Title != "" {
		return fmt.Sprintf("%s: unexpected status %d (%s)", e.URL, e.StatusCode, e.Title)
	}
	return fmt.Sprintf("%s: unexpected status %d", e.URL, e.StatusCode)
}

// NewClient returns a retrying client that keeps quiet about its retries.
func NewClient(retryMax int) *retryablehttp.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = log.New(io.Discard, "", 0)
	retryClient.RetryMax = retryMax
	// hand the last response back instead of a "giving up" error
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return retryClient
}

func SendHTTPRequest(ctx context.Context, wReq *WHTTPReq, client *retryablehttp.Client) (*WHTTPRes, error) {
	var body interface{}
	if wReq.Body != nil {
		body = wReq.Body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, wReq.Method, wReq.URL, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", USER_AGENT)
	req.Header.Set("Accept", "application/json")
	if wReq.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, h := range wReq.Headers {
		req.Header.Set(h.Name, h.Value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	wRes := &WHTTPRes{StatusCode: resp.StatusCode, Body: bodyBytes}
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		if title, ok := getHTMLTitle(bodyBytes); ok {
			wRes.HTTPTitle = strings.ToValidUTF8(strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(title, "\n", ""), "\r", "")), "")
		}
	}
	return wRes, nil
}

// Expect returns a *StatusError unless the response carries one of the
// given status codes.
func (r *WHTTPRes) Expect(url string, codes ...int) error {
	for _, c := range codes {
		if r.StatusCode == c {
			return nil
		}
	}
	return &StatusError{StatusCode: r.StatusCode, URL: url, Title: r.HTTPTitle}
}

// Bearer is the authorization header for an API token, or nil without one.
func Bearer(token string) []WHTTPHeader {
	if token == "" {
		return nil
	}
	return []WHTTPHeader{{Name: "Authorization", Value: "Bearer " + token}}
}

func isTitleElement(n *html.Node) bool {
	return n.Type == html.ElementNode && n.Data == "title"
}

func traverse(n *html.Node) (string, bool) {
	if isTitleElement(n) {
		if n.FirstChild != nil {
			return n.FirstChild.Data, true
		}
		return "", true
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		result, ok := traverse(c)
		if ok {
			return result, ok
		}
	}

	return "", false
}

// gateways in front of the providers answer with HTML error pages
func getHTMLTitle(body []byte) (string, bool) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", false
	}
	return traverse(doc)
}
