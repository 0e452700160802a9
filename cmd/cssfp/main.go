// Package main provides the entry point for the cssfp CLI.
//
// cssfp inspects the stylesheets of a web page and reports CSS rules that
// can fingerprint a visitor: rules whose network requests only fire when a
// media query, a supports condition or a font probe matches the browser.
//
// Usage:
//
//	cssfp scan https://example.com/
//	cssfp scan page.html theme.css css_dump.json
//	cssfp serve --static ./site
//
// See --help for all available options.
package main

func main() {
	Execute()
}
