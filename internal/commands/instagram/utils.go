package instagram

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	instagramRegex = regexp.MustCompile(`https?://(?:www\.)?instagram\.com(?:/[A-Za-z0-9_.-]+)?(?:/p|/reel|/reels|/share/reel|/share/p|/stories/[^/]+)/[A-Za-z0-9_-]+`)

	// Story IDs are numeric, post shortcodes are base64-ish.
	storyRegex = regexp.MustCompile(`instagram\.com/stories/[^/]+/([0-9]+)`)
	postRegex  = regexp.MustCompile(`instagram\.com(?:/[A-Za-z0-9_.-]+)?(?:/p|/reel|/reels|/share/reel|/share/p)/([A-Za-z0-9_-]+)`)
	userRegex  = regexp.MustCompile(`instagram\.com/stories/([^/]+)/`)
)

const shortcodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

func ContainsInstagramURL(text string) bool {
	return instagramRegex.MatchString(text)
}

func ExtractInstagramURL(text string) string {
	return instagramRegex.FindString(text)
}

// ExtractShortcode returns the numeric media ID for a post or story URL,
// converting alphanumeric shortcodes to their numeric form.
func ExtractShortcode(url string) string {
	if strings.Contains(url, "/stories/") {
		if matches := storyRegex.FindStringSubmatch(url); len(matches) >= 2 {
			return stripQuery(matches[1])
		}
	}

	matches := postRegex.FindStringSubmatch(url)
	if len(matches) < 2 {
		return ""
	}

	shortcode := stripQuery(matches[1])
	if _, err := strconv.ParseInt(shortcode, 10, 64); err == nil {
		return shortcode
	}

	mediaID := int64(0)
	for _, ch := range shortcode {
		mediaID = mediaID*64 + int64(strings.IndexByte(shortcodeAlphabet, byte(ch)))
	}
	return strconv.FormatInt(mediaID, 10)
}

func ExtractUsernameFromStoryURL(url string) string {
	matches := userRegex.FindStringSubmatch(url)
	if len(matches) < 2 {
		return ""
	}
	return matches[1]
}

func stripQuery(s string) string {
	if idx := strings.Index(s, "?"); idx != -1 {
		return s[:idx]
	}
	return s
}
