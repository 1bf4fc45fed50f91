package webmd

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var blankLines = regexp.MustCompile(`\n{3,}`)

// Convert renders the document body as Markdown. Elements without a
// Markdown equivalent contribute their plain text.
func Convert(doc *goquery.Document) string {
	var sb strings.Builder

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	for _, node := range body.Nodes {
		renderChildren(&sb, node)
	}

	out := blankLines.ReplaceAllString(sb.String(), "\n\n")
	return strings.TrimSpace(out)
}

func renderChildren(sb *strings.Builder, n *html.Node) {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		renderNode(sb, child)
	}
}

func renderNode(sb *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(collapseSpace(n.Data))
		return
	case html.ElementNode:
	default:
		return
	}

	switch n.Data {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		level := int(n.Data[1] - '0')
		sb.WriteString("\n\n" + strings.Repeat("#", level) + " ")
		sb.WriteString(strings.TrimSpace(inlineText(n)))
		sb.WriteString("\n\n")
	case "p", "div", "section", "article", "main":
		sb.WriteString("\n\n")
		renderChildren(sb, n)
		sb.WriteString("\n\n")
	case "br":
		sb.WriteString("\n")
	case "hr":
		sb.WriteString("\n\n---\n\n")
	case "strong", "b":
		sb.WriteString("**")
		renderChildren(sb, n)
		sb.WriteString("**")
	case "em", "i":
		sb.WriteString("*")
		renderChildren(sb, n)
		sb.WriteString("*")
	case "del", "s":
		sb.WriteString("~~")
		renderChildren(sb, n)
		sb.WriteString("~~")
	case "code":
		if n.Parent != nil && n.Parent.Data == "pre" {
			renderChildren(sb, n)
		} else {
			sb.WriteString("`" + inlineText(n) + "`")
		}
	case "pre":
		sb.WriteString("\n\n```\n")
		sb.WriteString(strings.TrimRight(rawText(n), "\n"))
		sb.WriteString("\n```\n\n")
	case "a":
		href := attr(n, "href")
		text := strings.TrimSpace(inlineText(n))
		if text == "" {
			text = href
		}
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			sb.WriteString(text)
		} else {
			sb.WriteString(fmt.Sprintf("[%s](%s)", text, href))
		}
	case "img":
		src := attr(n, "src")
		if src != "" && !strings.HasPrefix(src, "data:") {
			sb.WriteString(fmt.Sprintf("![%s](%s)", attr(n, "alt"), src))
		}
	case "blockquote":
		var inner strings.Builder
		renderChildren(&inner, n)
		sb.WriteString("\n\n")
		for _, line := range strings.Split(strings.TrimSpace(inner.String()), "\n") {
			sb.WriteString("> " + strings.TrimSpace(line) + "\n")
		}
		sb.WriteString("\n")
	case "ul", "ol":
		sb.WriteString("\n\n")
		renderList(sb, n, 0)
		sb.WriteString("\n")
	case "table":
		sb.WriteString("\n\n")
		renderTable(sb, n)
		sb.WriteString("\n")
	case "head", "script", "style":
		// skipped
	default:
		renderChildren(sb, n)
	}
}

func renderList(sb *strings.Builder, n *html.Node, depth int) {
	ordered := n.Data == "ol"
	index := 1
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != html.ElementNode || child.Data != "li" {
			continue
		}

		marker := "- "
		if ordered {
			marker = fmt.Sprintf("%d. ", index)
			index++
		}
		sb.WriteString(strings.Repeat("  ", depth) + marker)

		var item strings.Builder
		for sub := child.FirstChild; sub != nil; sub = sub.NextSibling {
			if sub.Type == html.ElementNode && (sub.Data == "ul" || sub.Data == "ol") {
				continue
			}
			renderNode(&item, sub)
		}
		sb.WriteString(strings.TrimSpace(item.String()))
		sb.WriteString("\n")

		for sub := child.FirstChild; sub != nil; sub = sub.NextSibling {
			if sub.Type == html.ElementNode && (sub.Data == "ul" || sub.Data == "ol") {
				renderList(sb, sub, depth+1)
			}
		}
	}
}

func renderTable(sb *strings.Builder, n *html.Node) {
	var rows [][]string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == html.ElementNode && child.Data == "tr" {
				var cells []string
				for cell := child.FirstChild; cell != nil; cell = cell.NextSibling {
					if cell.Type == html.ElementNode && (cell.Data == "td" || cell.Data == "th") {
						cells = append(cells, strings.TrimSpace(inlineText(cell)))
					}
				}
				if len(cells) > 0 {
					rows = append(rows, cells)
				}
			} else if child.Type == html.ElementNode {
				walk(child)
			}
		}
	}
	walk(n)

	if len(rows) == 0 {
		return
	}

	for i, row := range rows {
		sb.WriteString("| " + strings.Join(row, " | ") + " |\n")
		if i == 0 {
			sb.WriteString("|" + strings.Repeat(" --- |", len(row)) + "\n")
		}
	}
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func inlineText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(collapseSpace(node.Data))
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return sb.String()
}

func rawText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return sb.String()
}

func collapseSpace(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		if s != "" {
			return " "
		}
		return ""
	}
	out := strings.Join(fields, " ")
	if strings.HasPrefix(s, " ") || strings.HasPrefix(s, "\n") || strings.HasPrefix(s, "\t") {
		out = " " + out
	}
	if strings.HasSuffix(s, " ") || strings.HasSuffix(s, "\n") || strings.HasSuffix(s, "\t") {
		out += " "
	}
	return out
}
