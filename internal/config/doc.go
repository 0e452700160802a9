// Package config provides the configuration of cssfp: command defaults,
// validation, XDG directories and the optional .cssfp file with per-site
// request settings.
package config
