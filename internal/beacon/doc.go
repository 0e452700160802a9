// Package beacon implements the collection server that stylesheet sinks
// point at.
//
// Every request is logged and optionally stored. Paths containing
// "verify_" answer with a 1x1 PNG so that a url() sink renders; other
// paths are served from a static directory or answered with a JSON 404.
package beacon
