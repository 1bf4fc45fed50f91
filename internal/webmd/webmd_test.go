package webmd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akidev/akibot/internal/logger"
)

func convertHTML(t *testing.T, body string) string {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	require.NoError(t, err)
	return Convert(doc)
}

func TestConvert(t *testing.T) {
	t.Run("headings and paragraphs", func(t *testing.T) {
		got := convertHTML(t, `<h1>Title</h1><p>First para.</p><h2>Sub</h2><p>Second para.</p>`)
		assert.Equal(t, "# Title\n\nFirst para.\n\n## Sub\n\nSecond para.", got)
	})

	t.Run("inline formatting", func(t *testing.T) {
		got := convertHTML(t, `<p>Some <strong>bold</strong> and <em>italic</em> and <code>x := 1</code></p>`)
		assert.Equal(t, "Some **bold** and *italic* and `x := 1`", got)
	})

	t.Run("links and images", func(t *testing.T) {
		got := convertHTML(t, `<p><a href="https://example.com">site</a> <img src="https://example.com/a.png" alt="pic"></p>`)
		assert.Contains(t, got, "[site](https://example.com)")
		assert.Contains(t, got, "![pic](https://example.com/a.png)")
	})

	t.Run("anchor links keep only text", func(t *testing.T) {
		got := convertHTML(t, `<p><a href="#section">jump</a></p>`)
		assert.Equal(t, "jump", got)
	})

	t.Run("lists", func(t *testing.T) {
		got := convertHTML(t, `<ul><li>one</li><li>two</li></ul><ol><li>first</li><li>second</li></ol>`)
		assert.Contains(t, got, "- one\n- two")
		assert.Contains(t, got, "1. first\n2. second")
	})

	t.Run("code block", func(t *testing.T) {
		got := convertHTML(t, "<pre><code>func main() {\n\tprintln(1)\n}</code></pre>")
		assert.Contains(t, got, "```\nfunc main() {\n\tprintln(1)\n}\n```")
	})

	t.Run("blockquote", func(t *testing.T) {
		got := convertHTML(t, `<blockquote>quoted text</blockquote>`)
		assert.Contains(t, got, "> quoted text")
	})

	t.Run("table", func(t *testing.T) {
		got := convertHTML(t, `<table><tr><th>Name</th><th>Age</th></tr><tr><td>Bob</td><td>42</td></tr></table>`)
		assert.Contains(t, got, "| Name | Age |")
		assert.Contains(t, got, "| --- | --- |")
		assert.Contains(t, got, "| Bob | 42 |")
	})
}

func TestConverterFetch(t *testing.T) {
	t.Run("fetches and converts page", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.NotEmpty(t, r.Header.Get("User-Agent"))
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(`<html><head><title>Hello Page</title><script>evil()</script></head>` +
				`<body><nav>menu</nav><h1>Hello</h1><p>World</p></body></html>`))
		}))
		defer server.Close()

		conv := NewConverter(server.Client(), logger.NewTestLogger())
		page, err := conv.Fetch(context.Background(), server.URL)

		require.NoError(t, err)
		assert.Equal(t, "Hello Page", page.Title)
		assert.Contains(t, page.Markdown, "# Hello")
		assert.Contains(t, page.Markdown, "World")
		assert.NotContains(t, page.Markdown, "evil")
		assert.NotContains(t, page.Markdown, "menu")
	})

	t.Run("non-200 status is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		conv := NewConverter(server.Client(), logger.NewTestLogger())
		_, err := conv.Fetch(context.Background(), server.URL)
		assert.Error(t, err)
	})

	t.Run("invalid url is rejected", func(t *testing.T) {
		conv := NewConverter(&http.Client{}, logger.NewTestLogger())
		_, err := conv.Fetch(context.Background(), "not a url")
		assert.Error(t, err)
	})
}
