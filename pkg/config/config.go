package config

import "time"

// Defaults for the home-gardening catalogue this crawler was built for
const (
	DefaultBaseURL             = "http://www.gardening.cornell.edu/homegardening/"
	DefaultDetailPrefix        = "scene"
	DefaultRecordEndpoint      = "http://localhost:8080/flower"
	DefaultRecordTable         = "flowers"
	DefaultHTMLCacheDir        = "html"
	DefaultFailureLogPath      = "log/link_failures.txt"
	DefaultStateDir            = "./crawler_state"
	DefaultFilterCapacity      = 10000
	DefaultFilterFPRate        = 0.01
	DefaultMaxPageSizeBytes    = 10 << 20
	PersistenceBackendHTTP     = "http"
	PersistenceBackendPostgres = "postgres"
)

// AppConfig holds the configuration of one crawl run
type AppConfig struct {
	FeedURL                 string            `yaml:"feed_url"`                  // Root page of the crawl (env FEED overrides)
	FeedIsList              *bool             `yaml:"feed_is_list,omitempty"`    // nil = true; env IS_NOT_LIST forces false
	BaseURL                 string            `yaml:"base_url"`                  // Prefix joined with relative detail links and image refs
	DetailPrefix            string            `yaml:"detail_prefix"`             // href prefix identifying detail pages
	MinDelay                time.Duration     `yaml:"min_delay"`                 // Lower bound of the randomized pause between pages
	MaxDelay                time.Duration     `yaml:"max_delay"`                 // Upper bound of the randomized pause between pages
	FilterCapacity          uint              `yaml:"filter_capacity,omitempty"` // Expected number of distinct links
	FilterFalsePositiveRate float64           `yaml:"filter_false_positive_rate,omitempty"`
	HTMLCacheDir            string            `yaml:"html_cache_dir"`
	FailureLogPath          string            `yaml:"failure_log_path"`
	StateDir                string            `yaml:"state_dir"`
	EnableStateLedger       bool              `yaml:"enable_state_ledger,omitempty"`
	Resume                  bool              `yaml:"resume,omitempty"`                  // Reopen the ledger and requeue unfinished pages
	ContinueOnFetchError    bool              `yaml:"continue_on_fetch_error,omitempty"` // Skip pages whose fetch fails instead of aborting
	MaxPageSizeBytes        int64             `yaml:"max_page_size_bytes,omitempty"`
	UserAgent               string            `yaml:"user_agent,omitempty"`
	MaxRetries              int               `yaml:"max_retries,omitempty"`
	InitialRetryDelay       time.Duration     `yaml:"initial_retry_delay,omitempty"`
	MaxRetryDelay           time.Duration     `yaml:"max_retry_delay,omitempty"`
	GlobalCrawlTimeout      time.Duration     `yaml:"global_crawl_timeout,omitempty"`
	HTTPClientSettings      HTTPClientConfig  `yaml:"http_client_settings,omitempty"`
	Persistence             PersistenceConfig `yaml:"persistence,omitempty"`
	Layout                  LayoutConfig      `yaml:"layout,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
}

// PersistenceConfig selects and configures the record store
type PersistenceConfig struct {
	Backend  string        `yaml:"backend"`            // "http" (default) or "postgres"
	Endpoint string        `yaml:"endpoint,omitempty"` // POST target for the http backend
	DSN      string        `yaml:"dsn,omitempty"`      // Connection string for the postgres backend
	Table    string        `yaml:"table,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"` // Per-save timeout
}

// LayoutConfig holds the XPath expressions used against detail pages.
// Expressions marked "indexed" contain a single %d verb filled with a 1-based position.
type LayoutConfig struct {
	NameXPath         string `yaml:"name_xpath,omitempty"`
	ImageXPath        string `yaml:"image_xpath,omitempty"`
	ParagraphXPath    string `yaml:"paragraph_xpath,omitempty"`     // indexed
	IntroAnchorXPath  string `yaml:"intro_anchor_xpath,omitempty"`  // counted to find the section offset
	IntroSectionXPath string `yaml:"intro_section_xpath,omitempty"` // indexed
}

// DefaultLayout returns the detail page layout of the gardening catalogue
func DefaultLayout() LayoutConfig {
	return LayoutConfig{
		NameXPath:         "//div[@class='head2']/p/b/text()",
		ImageXPath:        "//div[@class='caption']/a",
		ParagraphXPath:    "//div[@class='normal']/p[%d]//text()",
		IntroAnchorXPath:  "//div[@class='intro']/a/text()",
		IntroSectionXPath: "//div[@class='intro'][%d]//text()",
	}
}

// IsFeedList reports whether the root page should be expanded rather than extracted
func (c *AppConfig) IsFeedList() bool {
	if c.FeedIsList != nil {
		return *c.FeedIsList
	}
	return true
}

// ApplyEnv overlays the process environment: FEED sets the root link and the
// presence of IS_NOT_LIST marks the root as a detail page.
func (c *AppConfig) ApplyEnv(lookup func(string) (string, bool)) {
	if feed, ok := lookup("FEED"); ok && feed != "" {
		c.FeedURL = feed
	}
	if _, ok := lookup("IS_NOT_LIST"); ok {
		isList := false
		c.FeedIsList = &isList
	}
}
