package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".cssfp"

// XDGConfigFileName is the file name looked up in the XDG config directory.
const XDGConfigFileName = "config.yaml"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile reads site settings from a YAML file. Unknown keys are
// rejected so that a misspelled setting is not silently ignored.
func LoadConfigFile(path string) (*File, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	cf, err := decodeFile(f)
	if err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cf, nil
}

func decodeFile(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	cf := &File{}
	if err := dec.Decode(cf); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if cf.Sites == nil {
		cf.Sites = make(map[string]SiteConfig)
	}
	if err := cf.validate(); err != nil {
		return nil, err
	}
	return cf, nil
}

func (cf *File) validate() error {
	if cf.Defaults.MaxRules < 0 {
		return fmt.Errorf("defaults: %w", ErrInvalidMaxRules)
	}
	for host, sc := range cf.Sites {
		if sc.MaxRules < 0 {
			return fmt.Errorf("site %s: %w", host, ErrInvalidMaxRules)
		}
	}
	return nil
}

// FindConfigFile returns the configuration file to use, or "" when there is
// none. An explicit configPath must exist. Otherwise the first existing
// file of ./.cssfp, ~/.cssfp and $XDG_CONFIG_HOME/cssfp/config.yaml wins.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if isFile(configPath) {
			return configPath
		}
		return ""
	}

	for _, candidate := range searchPaths() {
		if isFile(candidate) {
			return candidate
		}
	}
	return ""
}

func searchPaths() []string {
	var paths []string
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, DefaultConfigFile))
	}
	return append(paths, XDGConfigFile())
}

// XDGConfigFile returns $XDG_CONFIG_HOME/cssfp/config.yaml.
func XDGConfigFile() string {
	return filepath.Join(XDGConfigDir(), XDGConfigFileName)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
