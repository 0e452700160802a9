// Package netclient provides the HTTP clients used to fetch pages and
// stylesheets, optionally through a SOCKS5 proxy.
//
// Per-site cookies and headers are injected by a wrapping RoundTripper so
// they survive redirects. Fetch applies a body size limit and turns non-2xx
// answers into ErrHTTPStatus.
package netclient
