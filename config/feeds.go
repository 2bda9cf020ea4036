package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorhill/cronexpr"
)

// FeedsConfig configures the RSS import that fills the blog.
type FeedsConfig struct {
	URLs     []string      `mapstructure:"urls"`
	Schedule string        `mapstructure:"schedule"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxItems int           `mapstructure:"max_items"`
}

// Normalize trims and deduplicates feed URLs and applies defaults.
func (c FeedsConfig) Normalize() FeedsConfig {
	seen := make(map[string]struct{}, len(c.URLs))
	var urls []string
	for _, raw := range c.URLs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if _, ok := seen[raw]; ok {
			continue
		}
		seen[raw] = struct{}{}
		urls = append(urls, raw)
	}
	c.URLs = urls
	c.Schedule = strings.TrimSpace(c.Schedule)
	if c.Schedule == "" {
		c.Schedule = "@hourly"
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 10 * time.Minute
	}
	if c.Timeout <= 0 {
		c.Timeout = 20 * time.Second
	}
	if c.MaxItems <= 0 {
		c.MaxItems = 20
	}
	return c
}

// Validate ensures every feed URL is absolute http(s) and the schedule parses.
func (c FeedsConfig) Validate() error {
	for _, raw := range c.URLs {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("feeds.urls: invalid feed url %q", raw)
		}
	}
	if _, err := cronexpr.Parse(c.Schedule); err != nil {
		return fmt.Errorf("feeds.schedule: %w", err)
	}
	return nil
}
