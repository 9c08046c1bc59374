package bing

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/bitmark-inc/picture-gallery/customErrors"
	"github.com/bitmark-inc/picture-gallery/log"
	"github.com/bitmark-inc/picture-gallery/traceutils"
)

const DefaultEndpoint = "https://cn.bing.com"

const (
	containerClass = "dgControl"
	imageClass     = "mimg"
)

// Client scrapes the asynchronous image result page of bing.
type Client struct {
	debug    bool
	endpoint string
	client   *http.Client
}

func New(endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *Client) Debug(debug bool) {
	c.debug = debug
}

// Discover returns image urls found for term, starting at offset. It returns
// no urls when the page has no result container.
func (c *Client) Discover(ctx context.Context, term string, offset, count int) ([]string, error) {
	u := fmt.Sprintf("%s/images/async?q=%s&mmasync=1&first=%d&count=%d",
		c.endpoint, url.QueryEscape(term), offset, count)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, customErrors.System.Wrap(err)
	}

	if c.debug {
		log.Debug("debug request", log.SourceDiscovery, zap.String("req_dump", traceutils.DumpRequest(req)))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		log.Error("fail to fetch image page", log.SourceDiscovery, zap.String("term", term), zap.Error(err))
		return nil, customErrors.System.New("fail to fetch image page")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error("unexpected image page status", log.SourceDiscovery,
			zap.String("term", term), zap.Int("status", resp.StatusCode))
		return nil, customErrors.System.New("fail to fetch image page")
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, customErrors.System.New("fail to parse image page")
	}

	container := findFirst(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && hasClass(n, containerClass)
	})
	if container == nil {
		log.Warn("no image container in page", log.SourceDiscovery, zap.String("term", term))
		return []string{}, nil
	}

	urls := []string{}
	walk(container, func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data != "img" || !hasClass(n, imageClass) {
			return
		}
		src := attr(n, "src")
		if src == "" {
			src = attr(n, "data-src")
		}
		if src != "" {
			urls = append(urls, src)
		}
	})

	return urls, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}
