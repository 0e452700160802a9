package config

import (
	"net/url"
	"strings"

	"github.com/nao1215/cssfp/internal/crawler"
)

// SiteConfig holds the settings for one site, keyed by host name.
type SiteConfig struct {
	// Cookie is sent with every request to this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are added to every request to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// MaxRules overrides the per-sheet rule cap. Zero keeps the global cap.
	MaxRules int `yaml:"maxRules,omitempty"`

	// AllowCrossOrigin reads cross-origin stylesheets even without CORS
	// approval, as an extension with host permissions would.
	AllowCrossOrigin bool `yaml:"allowCrossOrigin,omitempty"`
}

// Crawler returns the request settings for the page collector.
func (sc SiteConfig) Crawler() crawler.Site {
	return crawler.Site{
		Cookie:           sc.Cookie,
		Headers:          sc.Headers,
		AllowCrossOrigin: sc.AllowCrossOrigin,
	}
}

// File represents the structure of the .cssfp configuration file.
type File struct {
	// Sites maps host names (e.g. "example.com") to their settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every site unless overridden.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for host, merging the
// site-specific entry over the defaults. Host matching ignores case.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	if len(cf.Defaults.Headers) > 0 {
		result.Headers = make(map[string]string, len(cf.Defaults.Headers))
		for k, v := range cf.Defaults.Headers {
			result.Headers[k] = v
		}
	}

	siteConfig, ok := cf.Sites[host]
	if !ok {
		for name, sc := range cf.Sites {
			if strings.EqualFold(name, host) {
				siteConfig, ok = sc, true
				break
			}
		}
	}
	if !ok {
		return result
	}

	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if siteConfig.MaxRules != 0 {
		result.MaxRules = siteConfig.MaxRules
	}
	if siteConfig.AllowCrossOrigin {
		result.AllowCrossOrigin = true
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		for k, v := range siteConfig.Headers {
			result.Headers[k] = v
		}
	}
	return result
}

// SiteKey returns the host name a target is configured under. Local files
// have no site and return "".
func SiteKey(target string) string {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
