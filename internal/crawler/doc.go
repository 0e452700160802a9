// Package crawler collects the stylesheets of a page into a cssom.Document.
//
// A target is an http(s) URL or a local file. HTML pages are parsed with
// golang.org/x/net/html; <link rel="stylesheet"> and <style> sheets are kept
// in document order. Linked sheets are fetched concurrently, with the same
// CORS gate a browser applies before exposing cssRules: a cross-origin sheet
// is readable only when its response allows the page origin.
//
// @import rules are followed up to a configurable depth. The imported rules
// become the children of the import rule, and a failure is recorded on the
// rule instead of aborting the collection.
//
// # Usage
//
//	client, _ := netclient.NewClient("", 30*time.Second)
//	c := crawler.NewCollector(client, crawler.WithImportDepth(2))
//	doc, err := c.Collect(ctx, "https://example.com/", crawler.Site{})
package crawler
