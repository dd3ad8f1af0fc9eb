package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"flora-crawler/pkg/utils"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// Required: FeedURL
	if c.FeedURL == "" {
		return nil, fmt.Errorf("%w: feed_url is required (set it in the config file or via FEED)", utils.ErrConfigValidation)
	}
	if _, parseErr := url.ParseRequestURI(c.FeedURL); parseErr != nil {
		return nil, fmt.Errorf("%w: feed_url '%s' is not an absolute URL: %w", utils.ErrConfigValidation, c.FeedURL, parseErr)
	}

	// BaseURL
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	} else if !strings.HasSuffix(c.BaseURL, "/") {
		warnings = append(warnings, fmt.Sprintf("base_url '%s' has no trailing slash, appending one", c.BaseURL))
		c.BaseURL += "/"
	}

	if c.DetailPrefix == "" {
		c.DetailPrefix = DefaultDetailPrefix
	}

	// Delay bounds
	if c.MinDelay < 0 || c.MaxDelay < 0 {
		return nil, fmt.Errorf("%w: min_delay/max_delay cannot be negative", utils.ErrConfigValidation)
	}
	if c.MinDelay == 0 && c.MaxDelay == 0 {
		c.MinDelay = 1 * time.Second
		c.MaxDelay = 10 * time.Second
	}
	if c.MinDelay > c.MaxDelay {
		return nil, fmt.Errorf("%w: min_delay (%v) > max_delay (%v)", utils.ErrConfigValidation, c.MinDelay, c.MaxDelay)
	}

	// Duplicate filter sizing
	if c.FilterCapacity == 0 {
		c.FilterCapacity = DefaultFilterCapacity
	}
	if c.FilterFalsePositiveRate <= 0 || c.FilterFalsePositiveRate >= 1 {
		if c.FilterFalsePositiveRate != 0 {
			warnings = append(warnings, fmt.Sprintf("filter_false_positive_rate %v out of (0,1), defaulting to %v",
				c.FilterFalsePositiveRate, DefaultFilterFPRate))
		}
		c.FilterFalsePositiveRate = DefaultFilterFPRate
	}

	// Output locations
	if c.HTMLCacheDir == "" {
		c.HTMLCacheDir = DefaultHTMLCacheDir
	}
	if c.FailureLogPath == "" {
		c.FailureLogPath = DefaultFailureLogPath
	}
	if c.StateDir == "" {
		if c.EnableStateLedger {
			warnings = append(warnings, "state_dir is empty, defaulting to '"+DefaultStateDir+"'")
		}
		c.StateDir = DefaultStateDir
	}

	if c.MaxPageSizeBytes <= 0 {
		c.MaxPageSizeBytes = DefaultMaxPageSizeBytes
	}

	// MaxRetries
	if c.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, setting to 0")
		c.MaxRetries = 0
	}
	if c.MaxRetries == 0 && c.InitialRetryDelay == 0 {
		c.MaxRetries = 3
	}
	if c.MaxRetries > 0 {
		if c.InitialRetryDelay <= 0 {
			c.InitialRetryDelay = 1 * time.Second
		}
		if c.MaxRetryDelay <= 0 {
			c.MaxRetryDelay = 30 * time.Second
		}
	}
	if c.InitialRetryDelay > c.MaxRetryDelay && c.MaxRetryDelay > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"initial_retry_delay (%v) > max_retry_delay (%v), using max_retry_delay for initial",
			c.InitialRetryDelay, c.MaxRetryDelay))
		c.InitialRetryDelay = c.MaxRetryDelay
	}

	if c.GlobalCrawlTimeout < 0 {
		warnings = append(warnings, "global_crawl_timeout cannot be negative, disabling timeout")
		c.GlobalCrawlTimeout = 0
	}

	if c.UserAgent == "" {
		c.UserAgent = "flora-crawler/1.0"
	}

	c.validateHTTPClientSettings()

	persistenceWarnings, err := c.Persistence.validate()
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, persistenceWarnings...)

	if err := c.Layout.validate(); err != nil {
		return nil, err
	}

	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 45 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 10
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 2
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}

func (p *PersistenceConfig) validate() (warnings []string, err error) {
	p.Backend = strings.ToLower(strings.TrimSpace(p.Backend))
	switch p.Backend {
	case "", PersistenceBackendHTTP:
		p.Backend = PersistenceBackendHTTP
		if p.Endpoint == "" {
			p.Endpoint = DefaultRecordEndpoint
		}
		if p.DSN != "" {
			warnings = append(warnings, "persistence.dsn is ignored by the http backend")
		}
	case PersistenceBackendPostgres:
		if p.DSN == "" {
			return nil, fmt.Errorf("%w: persistence.dsn is required for the postgres backend", utils.ErrConfigValidation)
		}
		if p.Table == "" {
			p.Table = DefaultRecordTable
		}
	default:
		return nil, fmt.Errorf("%w: unknown persistence.backend '%s' (want http or postgres)", utils.ErrConfigValidation, p.Backend)
	}
	if p.Timeout <= 0 {
		p.Timeout = 30 * time.Second
	}
	return warnings, nil
}

func (l *LayoutConfig) validate() error {
	defaults := DefaultLayout()
	if l.NameXPath == "" {
		l.NameXPath = defaults.NameXPath
	}
	if l.ImageXPath == "" {
		l.ImageXPath = defaults.ImageXPath
	}
	if l.ParagraphXPath == "" {
		l.ParagraphXPath = defaults.ParagraphXPath
	}
	if l.IntroAnchorXPath == "" {
		l.IntroAnchorXPath = defaults.IntroAnchorXPath
	}
	if l.IntroSectionXPath == "" {
		l.IntroSectionXPath = defaults.IntroSectionXPath
	}
	for name, expr := range map[string]string{
		"paragraph_xpath":     l.ParagraphXPath,
		"intro_section_xpath": l.IntroSectionXPath,
	} {
		if strings.Count(expr, "%d") != 1 {
			return fmt.Errorf("%w: layout.%s must contain exactly one %%d position verb: '%s'", utils.ErrConfigValidation, name, expr)
		}
	}
	return nil
}
