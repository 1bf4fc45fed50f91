package webmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/akidev/akibot/internal/logger"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/136.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:138.0) Gecko/20100101 Firefox/138.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/136.0.0.0 Safari/537.36",
}

func randomUserAgent() string {
	return userAgents[rand.Intn(len(userAgents))]
}

// Page is a fetched web page reduced to Markdown.
type Page struct {
	URL      string
	Title    string
	Markdown string
}

type Converter struct {
	client HTTPClient
	logger logger.Logger
}

func NewConverter(client HTTPClient, l logger.Logger) *Converter {
	return &Converter{
		client: client,
		logger: l.WithField("service", "webmd"),
	}
}

// Fetch downloads the page and converts its body to Markdown.
func (c *Converter) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	if _, err := url.ParseRequestURI(pageURL); err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", randomUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("connection reset by peer (EOF) - possible server issue with %s", pageURL)
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, pageURL)
	}

	utf8Reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("charset detection failed: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(utf8Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	cleanDoc(doc)

	title := strings.TrimSpace(doc.Find("title").First().Text())
	markdown := Convert(doc)

	c.logger.WithFields(logger.Fields{
		"url":   pageURL,
		"title": title,
		"size":  len(markdown),
	}).Debug("Converted page to markdown")

	return &Page{
		URL:      pageURL,
		Title:    title,
		Markdown: markdown,
	}, nil
}

func cleanDoc(doc *goquery.Document) {
	doc.Find("script, style, noscript, iframe, footer, nav, aside, .cookie-consent, .promoted-link, .sidebar, .login-form, .signup-form, .hidden").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})
}
