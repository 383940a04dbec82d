package catalog

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/goccy/go-yaml"
	"go.uber.org/zap"
)

var (
	// ErrUnknownService is returned for service types not in the catalog.
	ErrUnknownService = errors.New("catalog: unknown service")
	// ErrInvalidIcon is returned for icon files that are not images.
	ErrInvalidIcon = errors.New("catalog: icon is not an image")
)

// Overrides is the layout of the overrides YAML file.
type Overrides struct {
	DefaultIcon string    `yaml:"default_icon"`
	Services    []Service `yaml:"services"`
}

// Catalog holds the known services.
type Catalog struct {
	platform Platform
	logger   *zap.Logger

	mu          sync.RWMutex
	services    map[string]Service
	defaultIcon string
}

// New creates a catalog with the built-in services.
func New(platform Platform, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Catalog{
		platform: platform,
		logger:   logger,
		services: make(map[string]Service, len(builtins)),
	}
	for _, s := range builtins {
		c.services[s.Type] = s
	}
	return c
}

// LoadOverrides merges a YAML overrides file into the catalog. Fields left
// empty keep their built-in values; unknown types add new services.
func (c *Catalog) LoadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read catalog overrides: %w", err)
	}

	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return fmt.Errorf("parse catalog overrides: %w", err)
	}

	for i := range o.Services {
		s := &o.Services[i]
		s.Type = strings.ToLower(strings.TrimSpace(s.Type))
		if s.Type == "" {
			return fmt.Errorf("catalog overrides: service %d has no type", i)
		}
		for _, pattern := range s.Hosts {
			if !doublestar.ValidatePattern(pattern) {
				return fmt.Errorf("catalog overrides: service %s: invalid host pattern %q", s.Type, pattern)
			}
		}
	}

	if o.DefaultIcon != "" {
		if err := c.SetDefaultIcon(o.DefaultIcon); err != nil {
			return err
		}
	}

	c.mu.Lock()
	for _, s := range o.Services {
		merged := c.services[s.Type].merge(s)
		merged.Type = s.Type
		if merged.Name == "" {
			merged.Name = s.Type
		}
		c.services[s.Type] = merged
	}
	c.mu.Unlock()

	c.logger.Info("Loaded catalog overrides",
		zap.String("path", path),
		zap.Int("services", len(o.Services)),
	)
	return nil
}

// SetDefaultIcon sets the icon used when a service has none. Remote icons
// are taken as is; local files must be images.
func (c *Catalog) SetDefaultIcon(icon string) error {
	if !isRemote(icon) {
		mtype, err := mimetype.DetectFile(icon)
		if err != nil {
			return fmt.Errorf("detect icon type: %w", err)
		}
		if !strings.HasPrefix(mtype.String(), "image/") {
			return fmt.Errorf("%w: %s is %s", ErrInvalidIcon, icon, mtype.String())
		}
	}

	c.mu.Lock()
	c.defaultIcon = icon
	c.mu.Unlock()
	return nil
}

// DefaultIcon returns the fallback notification icon.
func (c *Catalog) DefaultIcon() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaultIcon
}

// Get returns the service of the given type.
func (c *Catalog) Get(serviceType string) (Service, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.services[strings.ToLower(serviceType)]
	if !ok {
		return Service{}, ErrUnknownService
	}
	return s, nil
}

// Lookup returns the service of the given type or Fallback.
func (c *Catalog) Lookup(serviceType string) Service {
	if s, err := c.Get(serviceType); err == nil {
		return s
	}
	return Fallback
}

// List returns every service ordered by type.
func (c *Catalog) List() []Service {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Service, 0, len(c.services))
	for _, s := range c.services {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// Icons maps service types to notification icons.
func (c *Catalog) Icons() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	icons := make(map[string]string)
	for t, s := range c.services {
		if s.Icon != "" {
			icons[t] = s.Icon
		}
	}
	return icons
}

// UserAgent returns the user agent the service's pages should be loaded
// with. WhatsApp gets Safari; everything else gets Chrome for the host.
func (c *Catalog) UserAgent(serviceType string) string {
	serviceType = strings.ToLower(serviceType)
	if s, err := c.Get(serviceType); err == nil && s.UserAgent != "" {
		return s.UserAgent
	}
	if serviceType == "whatsapp" {
		return SafariUserAgent
	}
	return c.platform.ChromeUserAgent()
}

// Resolve finds the service whose host patterns match rawURL.
func (c *Catalog) Resolve(rawURL string) (Service, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return Service{}, false
	}
	host := strings.ToLower(u.Hostname())

	for _, s := range c.List() {
		for _, pattern := range s.Hosts {
			if ok, err := doublestar.Match(pattern, host); err == nil && ok {
				return s, true
			}
		}
	}
	return Service{}, false
}

func isRemote(icon string) bool {
	return strings.HasPrefix(icon, "http://") || strings.HasPrefix(icon, "https://") || strings.HasPrefix(icon, "data:")
}
