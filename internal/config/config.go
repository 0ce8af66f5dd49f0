// Package config manages YAML-based configuration, CLI flags, and mount settings.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// Listing orders accepted by the sort setting.
const (
	SortDirsFirst = "dirs-first"
	SortName      = "name"
	SortNone      = "none"
)

// Mount binds a local directory (or a git ref inside it) to an alias in the
// virtual tree.
type Mount struct {
	Path    string   `yaml:"path" json:"path"`
	Alias   string   `yaml:"alias" json:"alias"`
	GitRef  string   `yaml:"git_ref,omitempty" json:"git_ref,omitempty"`
	SubPath string   `yaml:"sub_path,omitempty" json:"sub_path,omitempty"`
	Exclude []string `yaml:"exclude,omitempty" json:"exclude,omitempty"`
}

// Config holds all configuration options for dirhub
type Config struct {
	// Legacy single path, migrated to a mount on load
	Path string `yaml:"path,omitempty"`

	Mounts []Mount `yaml:"mounts,omitempty" json:"mounts"`

	Port              int      `yaml:"port"`
	Watch             bool     `yaml:"watch"`
	Open              bool     `yaml:"open"`
	Exclude           []string `yaml:"exclude"`
	PreviewExtensions []string `yaml:"preview_extensions"`
	Sort              string   `yaml:"sort"`
	MaxOpenDirs       int      `yaml:"max_open_dirs"`

	// Open directory handles older than this are closed; zero disables expiry
	HandleTTL time.Duration `yaml:"handle_ttl"`

	// Internal: path to config file for saving
	configPath string
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Path:              ".",
		Port:              8080,
		Watch:             true,
		Open:              false,
		Exclude:           []string{".git", ".svn", "node_modules"},
		PreviewExtensions: []string{".md", ".markdown"},
		Sort:              SortDirsFirst,
		MaxOpenDirs:       256,
		HandleTTL:         10 * time.Minute,
	}
}

// GetConfigDir returns the config directory path under the XDG config home
func GetConfigDir() string {
	return filepath.Join(xdg.ConfigHome, "dirhub")
}

// GetConfigPath returns the full path to the config file
func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// Load loads configuration from file and command line flags
func Load() (*Config, error) {
	return LoadArgs(flag.CommandLine, os.Args[1:])
}

// LoadArgs is Load with an explicit flag set and argument list.
func LoadArgs(fset *flag.FlagSet, args []string) (*Config, error) {
	cfg := DefaultConfig()

	// Accept `dirhub serve --path x` as well as `dirhub --path x`
	if len(args) > 0 && args[0] == "serve" {
		args = args[1:]
	}

	path := fset.String("path", "", "Directory to mount when no mounts are configured")
	port := fset.Int("port", 0, "HTTP server port")
	sortOrder := fset.String("sort", "", "Listing order (dirs-first, name, none)")
	watch := fset.Bool("watch", true, "Enable file watching")
	open := fset.Bool("open", false, "Open browser on startup")
	configFile := fset.String("config", "", "Configuration file path")
	fset.StringVar(path, "p", "", "Directory to mount (shorthand)")

	if err := fset.Parse(args); err != nil {
		return nil, err
	}

	var cfgPath string
	if *configFile != "" {
		cfgPath = *configFile
	} else if _, err := os.Stat(GetConfigPath()); err == nil {
		cfgPath = GetConfigPath()
	} else if _, err := os.Stat("dirhub.yaml"); err == nil {
		cfgPath = "dirhub.yaml"
	}

	if cfgPath != "" {
		if err := cfg.loadFromFile(cfgPath); err != nil && *configFile != "" {
			// Only fail when the user named the file explicitly
			return nil, err
		}
		cfg.configPath = cfgPath
	} else {
		cfg.configPath = GetConfigPath()
	}

	// Command line flags override the config file
	if *path != "" {
		cfg.Path = *path
		cfg.Mounts = nil
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *sortOrder != "" {
		cfg.Sort = *sortOrder
	}
	cfg.Watch = *watch
	cfg.Open = *open

	cfg.migrateLegacyPath()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that cannot be repaired silently.
func (c *Config) Validate() error {
	switch c.Sort {
	case SortDirsFirst, SortName, SortNone:
	case "":
		c.Sort = SortDirsFirst
	default:
		return fmt.Errorf("invalid sort order %q", c.Sort)
	}
	if c.MaxOpenDirs < 0 {
		return fmt.Errorf("max_open_dirs must not be negative")
	}
	if c.HandleTTL < 0 {
		return fmt.Errorf("handle_ttl must not be negative")
	}
	seen := make(map[string]bool, len(c.Mounts))
	for _, m := range c.Mounts {
		if err := checkAlias(m.Alias); err != nil {
			return err
		}
		if seen[m.Alias] {
			return fmt.Errorf("duplicate mount alias %q", m.Alias)
		}
		seen[m.Alias] = true
	}
	return nil
}

// checkAlias rejects aliases that cannot name a top-level directory.
func checkAlias(alias string) error {
	switch alias {
	case "", ".", "..":
		return fmt.Errorf("invalid mount alias %q", alias)
	}
	if strings.Contains(alias, "/") {
		return fmt.Errorf("mount alias %q must not contain '/'", alias)
	}
	return nil
}

// migrateLegacyPath converts single Path to Mounts if Mounts is empty
func (c *Config) migrateLegacyPath() {
	if len(c.Mounts) == 0 && c.Path != "" {
		absPath, err := filepath.Abs(c.Path)
		if err != nil {
			absPath = c.Path
		}
		c.Mounts = []Mount{{
			Path:  absPath,
			Alias: filepath.Base(absPath),
		}}
	}

	for i := range c.Mounts {
		if absPath, err := filepath.Abs(c.Mounts[i].Path); err == nil {
			c.Mounts[i].Path = absPath
		}
		if c.Mounts[i].Alias == "" {
			c.Mounts[i].Alias = filepath.Base(c.Mounts[i].Path)
		}
	}
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// Save saves the current configuration to the config file
func (c *Config) Save() error {
	if err := os.MkdirAll(filepath.Dir(c.configPath), 0755); err != nil {
		return err
	}

	// Legacy Path is never written back
	saveConfig := struct {
		Mounts            []Mount       `yaml:"mounts,omitempty"`
		Port              int           `yaml:"port"`
		Watch             bool          `yaml:"watch"`
		Open              bool          `yaml:"open"`
		Exclude           []string      `yaml:"exclude"`
		PreviewExtensions []string      `yaml:"preview_extensions"`
		Sort              string        `yaml:"sort"`
		MaxOpenDirs       int           `yaml:"max_open_dirs"`
		HandleTTL         time.Duration `yaml:"handle_ttl"`
	}{
		Mounts:            c.Mounts,
		Port:              c.Port,
		Watch:             c.Watch,
		Open:              c.Open,
		Exclude:           c.Exclude,
		PreviewExtensions: c.PreviewExtensions,
		Sort:              c.Sort,
		MaxOpenDirs:       c.MaxOpenDirs,
		HandleTTL:         c.HandleTTL,
	}

	data, err := yaml.Marshal(saveConfig)
	if err != nil {
		return err
	}
	return os.WriteFile(c.configPath, data, 0644)
}

// AddMount adds a mount, deriving the alias from the path when empty.
func (c *Config) AddMount(path, alias, gitRef, subPath string, exclude []string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	if alias == "" {
		alias = filepath.Base(absPath)
		if gitRef != "" {
			alias = alias + "@" + gitRef
		}
	}
	if err := checkAlias(alias); err != nil {
		return err
	}
	for _, m := range c.Mounts {
		if m.Alias == alias {
			return fmt.Errorf("duplicate mount alias %q", alias)
		}
	}

	c.Mounts = append(c.Mounts, Mount{
		Path:    absPath,
		Alias:   alias,
		GitRef:  gitRef,
		SubPath: subPath,
		Exclude: exclude,
	})
	return nil
}

// RemoveMount removes the mount with the given alias and reports whether it existed.
func (c *Config) RemoveMount(alias string) bool {
	for i, m := range c.Mounts {
		if m.Alias == alias {
			c.Mounts = append(c.Mounts[:i], c.Mounts[i+1:]...)
			return true
		}
	}
	return false
}

// UpdateMount replaces the git ref, sub path and excludes of a mount.
func (c *Config) UpdateMount(alias, gitRef, subPath string, exclude []string) bool {
	for i := range c.Mounts {
		if c.Mounts[i].Alias == alias {
			c.Mounts[i].GitRef = gitRef
			c.Mounts[i].SubPath = subPath
			c.Mounts[i].Exclude = exclude
			return true
		}
	}
	return false
}

// SetGlobalExclude sets the global exclude patterns
func (c *Config) SetGlobalExclude(patterns []string) {
	c.Exclude = patterns
}

// GetConfigFilePath returns the path to the config file
func (c *Config) GetConfigFilePath() string {
	return c.configPath
}

// SetConfigFilePath changes where Save writes the configuration
func (c *Config) SetConfigFilePath(path string) {
	c.configPath = path
}

// IsExcluded checks if the base name of path matches a global exclude
func (c *Config) IsExcluded(path string) bool {
	return matchExclude(c.Exclude, filepath.Base(path))
}

// IsMountExcluded checks a path relative to a mount against its excludes.
// Patterns match the full relative path, the base name, or a path prefix.
func IsMountExcluded(relPath string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	if matchExclude(patterns, relPath) || matchExclude(patterns, filepath.Base(relPath)) {
		return true
	}
	for _, pattern := range patterns {
		clean := filepath.Clean(pattern)
		if relPath == clean || strings.HasPrefix(relPath, clean+"/") {
			return true
		}
	}
	return false
}

func matchExclude(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}

// IsPreviewable checks if a file has an extension the preview renders
func (c *Config) IsPreviewable(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range c.PreviewExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
