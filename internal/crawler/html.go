package crawler

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// sheetRef is a stylesheet found in a page, in document order.
type sheetRef struct {
	// href is the resolved URL of a <link> sheet, empty for <style>.
	href string
	// text is the content of a <style> element.
	text string
	// inline is true for <style> elements.
	inline bool
}

// pageScan is what the collector needs from an HTML page.
type pageScan struct {
	sheets           []sheetRef
	styleTags        int
	inlineStyleCount int
}

// scanHTML parses an HTML page and lists its stylesheets.
// Relative hrefs resolve against base, or against <base href> when present.
func scanHTML(r io.Reader, base *url.URL) (*pageScan, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	if b := findBase(doc); b != "" {
		if u, err := base.Parse(b); err == nil {
			base = u
		}
	}

	result := &pageScan{}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if _, ok := getAttr(n, "style"); ok {
				result.inlineStyleCount++
			}
			switch n.Data {
			case "style":
				result.styleTags++
				result.sheets = append(result.sheets, sheetRef{inline: true, text: textOf(n)})
			case "link":
				if isStylesheetLink(n) {
					if href := resolveURL(base, attr(n, "href")); href != "" {
						result.sheets = append(result.sheets, sheetRef{href: href})
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return result, nil
}

// findBase returns the href of the first <base> element.
func findBase(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "base" {
		if href, ok := getAttr(n, "href"); ok {
			return strings.TrimSpace(href)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if href := findBase(c); href != "" {
			return href
		}
	}
	return ""
}

// isStylesheetLink reports whether rel contains the "stylesheet" token.
func isStylesheetLink(n *html.Node) bool {
	for _, tok := range strings.Fields(attr(n, "rel")) {
		if strings.EqualFold(tok, "stylesheet") {
			return true
		}
	}
	return false
}

// textOf concatenates the text children of n.
func textOf(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

// resolveURL resolves href against base and drops links that can never be
// fetched.
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}

func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func attr(n *html.Node, key string) string {
	v, _ := getAttr(n, key)
	return v
}
