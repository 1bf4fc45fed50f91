package instagram

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/akidev/akibot/internal/logger"
)

// resolveShareLink follows the redirect behind a share link and returns the
// shortcode of the canonical post it lands on.
func (c *Command) resolveShareLink(shareID string) (string, error) {
	c.Logger.WithField("share_id", shareID).Debug("Starting share URL processing")

	url := fmt.Sprintf("https://www.instagram.com/share/reel/%s/", shareID)

	req, err := http.NewRequest(http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	// Instagram refuses the redirect without browser-looking headers.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.114 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "none")
	req.Header.Set("Sec-Fetch-User", "?1")

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return nil
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	finalURL := resp.Request.URL.String()
	c.Logger.WithFields(logger.Fields{
		"status": resp.StatusCode,
		"url":    finalURL,
	}).Debug("Final URL after redirects")

	if !ContainsInstagramURL(finalURL) {
		return "", fmt.Errorf("invalid Instagram URL: %s", finalURL)
	}

	shortcode := ExtractShortcode(finalURL)
	if shortcode == "" {
		return "", fmt.Errorf("could not extract shortcode from URL: %s", finalURL)
	}
	return shortcode, nil
}

func shareID(link string) string {
	id := ""
	if strings.Contains(link, "/share/reel/") {
		id = strings.TrimPrefix(link, "https://www.instagram.com/share/reel/")
	} else if strings.Contains(link, "/share/p/") {
		id = strings.TrimPrefix(link, "https://www.instagram.com/share/p/")
	}
	return strings.TrimSuffix(id, "/")
}
