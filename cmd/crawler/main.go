package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"flora-crawler/pkg/config"
	"flora-crawler/pkg/crawler"
	"flora-crawler/pkg/fetch"
	"flora-crawler/pkg/storage"
	"flora-crawler/pkg/utils"
)

func main() {
	os.Exit(run())
}

func run() int {
	configFileFlag := flag.String("config", "", "Path to YAML config file (optional, defaults apply without one)")
	logLevelFlag := flag.String("loglevel", "info", "Log level (trace, debug, info, warn, error)")
	feedFlag := flag.String("feed", "", "Root page of the crawl (overrides config and FEED)")
	resumeFlag := flag.Bool("resume", false, "Resume crawl using the existing page ledger")
	writeVisitedLogFlag := flag.Bool("write-visited-log", false, "Write a final log file of all ledger pages")
	validateFlag := flag.Bool("validate", false, "Validate configuration and exit")
	flag.Parse()

	if *validateFlag {
		return doValidate(*configFileFlag, os.LookupEnv, os.Stdout, os.Stderr)
	}

	log := setupLogger(*logLevelFlag)

	// --- Load Application Configuration ---
	appCfg, err := loadConfig(*configFileFlag)
	if err != nil {
		log.Errorf("Configuration error: %v", err)
		return 1
	}
	appCfg.ApplyEnv(os.LookupEnv)
	if *feedFlag != "" {
		appCfg.FeedURL = *feedFlag
	}
	if *resumeFlag {
		appCfg.Resume = true
	}
	if appCfg.Resume && !appCfg.EnableStateLedger {
		log.Info("Resume requested, enabling the page ledger")
		appCfg.EnableStateLedger = true
	}

	warnings, err := appCfg.Validate()
	if err != nil {
		log.Errorf("Configuration error: %v", err)
		return 1
	}
	for _, w := range warnings {
		log.Warn(w)
	}
	logAppConfig(appCfg, log)

	// ===========================================================
	// == Setup Global Context & Signal Handling ==
	// ===========================================================
	crawlCtx, cancelCrawl := context.WithCancel(context.Background())
	defer cancelCrawl()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		sig, ok := <-sigChan
		if !ok {
			return
		}
		log.Warnf("Received signal: %v. Initiating graceful shutdown...", sig)
		cancelCrawl()

		select {
		case sig = <-sigChan:
			log.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn("Graceful shutdown period exceeded after signal. Forcing exit.")
			os.Exit(1)
		}
	}()

	// ===========================================================
	// == Initialize Components ==
	// ===========================================================
	log.Info("Initializing components...")
	baseLog := logrus.NewEntry(log)

	httpClient := fetch.NewClient(appCfg.HTTPClientSettings, baseLog)
	fetcher := fetch.NewFetcher(httpClient, appCfg, baseLog.WithField("component", "fetcher"))

	records, err := openRecordStore(crawlCtx, appCfg, httpClient, baseLog.WithField("component", "records"))
	if err != nil {
		log.Errorf("Failed to initialize record store: %v", err)
		return 1
	}
	defer records.Close()

	deps := crawler.Dependencies{
		Fetcher:  fetcher,
		Records:  records,
		Failures: storage.NewFileFailureLogger(appCfg.FailureLogPath),
		Cache:    storage.NewFilePageCache(appCfg.HTMLCacheDir),
	}

	var ledger *storage.BadgerStore
	if appCfg.EnableStateLedger {
		ledger, err = storage.NewBadgerStore(crawlCtx, appCfg.StateDir, feedHost(appCfg.FeedURL), appCfg.Resume, baseLog.WithField("component", "ledger"))
		if err != nil {
			log.Errorf("Failed to initialize page ledger: %v", err)
			return 1
		}
		defer ledger.Close()
		go ledger.RunGC(crawlCtx, 10*time.Minute)
		deps.Ledger = ledger
	}

	crawlerInstance, err := crawler.NewCrawler(appCfg, deps, baseLog)
	if err != nil {
		log.Errorf("Failed to initialize crawler: %v", err)
		return 1
	}

	// ===========================================================
	// == Start Crawler Execution ==
	// ===========================================================
	err = crawlerInstance.Run(crawlCtx)

	// --- Final Visited Log File Generation (Optional) ---
	if *writeVisitedLogFlag {
		if ledger == nil {
			log.Warn("Skipping visited log: the page ledger is disabled")
		} else if crawlCtx.Err() != nil {
			log.Warnf("Skipping final visited log due to crawl context error: %v", crawlCtx.Err())
		} else {
			visitedFilePath := filepath.Join(appCfg.StateDir, utils.SanitizeFilename(feedHost(appCfg.FeedURL))+"-visited.txt")
			if writeErr := ledger.WriteVisitedLog(visitedFilePath); writeErr != nil {
				log.Errorf("Error writing final visited log: %v", writeErr)
			}
		}
	}

	return exitCode(err, log)
}

// exitCode maps the crawl result to the process exit status
func exitCode(err error, log *logrus.Logger) int {
	switch {
	case err == nil:
		log.Info("Crawl completed successfully.")
		return 0
	case errors.Is(err, context.Canceled):
		log.Warn("Crawl cancelled gracefully.")
		return 0
	case errors.Is(err, context.DeadlineExceeded):
		log.Error("Crawl timed out (global timeout).")
		return 1
	default:
		log.Errorf("Crawl finished with error (%s): %v", utils.CategorizeError(err), err)
		return 1
	}
}

func setupLogger(logLevelStr string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevelStr, err)
	} else {
		log.SetLevel(level)
	}
	return log
}

// loadConfig reads the YAML config at path. An empty path yields an empty config
// so that FEED alone is enough to start a crawl.
func loadConfig(path string) (*config.AppConfig, error) {
	var cfg config.AppConfig
	if path == "" {
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// doValidate loads and validates the config, printing the outcome. Returns the exit code.
func doValidate(configPath string, lookupEnv func(string) (string, bool), stdout, stderr io.Writer) int {
	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	appCfg.ApplyEnv(lookupEnv)

	warnings, err := appCfg.Validate()
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	fmt.Fprintf(stdout, "OK: feed %s (list: %t), persistence backend %s\n",
		appCfg.FeedURL, appCfg.IsFeedList(), appCfg.Persistence.Backend)
	fmt.Fprintln(stdout, "Configuration valid")
	return 0
}

// openRecordStore builds the configured persistence backend
func openRecordStore(ctx context.Context, appCfg *config.AppConfig, httpClient *http.Client, log *logrus.Entry) (storage.RecordStore, error) {
	switch appCfg.Persistence.Backend {
	case config.PersistenceBackendPostgres:
		connectCtx, cancel := context.WithTimeout(ctx, appCfg.Persistence.Timeout)
		defer cancel()
		return storage.NewPostgresRecordStore(connectCtx, appCfg.Persistence.DSN, appCfg.Persistence.Table, log)
	case config.PersistenceBackendHTTP:
		client := &http.Client{Transport: httpClient.Transport, Timeout: appCfg.Persistence.Timeout}
		return storage.NewHTTPRecordStore(client, appCfg.Persistence.Endpoint, log), nil
	default:
		return nil, fmt.Errorf("%w: unknown persistence backend '%s'", utils.ErrConfigValidation, appCfg.Persistence.Backend)
	}
}

// feedHost names the ledger after the host being crawled
func feedHost(feed string) string {
	u, err := url.Parse(feed)
	if err != nil || u.Hostname() == "" {
		return "feed"
	}
	return u.Hostname()
}

// logAppConfig logs the effective configuration
func logAppConfig(appCfg *config.AppConfig, log *logrus.Logger) {
	log.Infof("Config: Feed:%s, List:%t, Base:%s, DetailPrefix:'%s'",
		appCfg.FeedURL, appCfg.IsFeedList(), appCfg.BaseURL, appCfg.DetailPrefix)
	log.Infof("Config: Delay:[%v, %v], Filter capacity:%d, FP rate:%v",
		appCfg.MinDelay, appCfg.MaxDelay, appCfg.FilterCapacity, appCfg.FilterFalsePositiveRate)
	log.Infof("Config Outputs: HTMLCache:%s, FailureLog:%s, Ledger:%t (StateDir:%s, Resume:%t)",
		appCfg.HTMLCacheDir, appCfg.FailureLogPath, appCfg.EnableStateLedger, appCfg.StateDir, appCfg.Resume)
	log.Infof("Config Retries: Max:%d, InitialDelay:%v, MaxDelay:%v, ContinueOnFetchError:%t",
		appCfg.MaxRetries, appCfg.InitialRetryDelay, appCfg.MaxRetryDelay, appCfg.ContinueOnFetchError)
	log.Infof("Config HTTP Client: Timeout:%v, MaxIdle:%d, MaxIdlePerHost:%d, IdleTimeout:%v, TLSTimeout:%v, DialerTimeout:%v",
		appCfg.HTTPClientSettings.Timeout, appCfg.HTTPClientSettings.MaxIdleConns, appCfg.HTTPClientSettings.MaxIdleConnsPerHost,
		appCfg.HTTPClientSettings.IdleConnTimeout, appCfg.HTTPClientSettings.TLSHandshakeTimeout, appCfg.HTTPClientSettings.DialerTimeout)
	log.Infof("Config Persistence: Backend:%s, Endpoint:%s, Table:%s, Timeout:%v",
		appCfg.Persistence.Backend, appCfg.Persistence.Endpoint, appCfg.Persistence.Table, appCfg.Persistence.Timeout)
}
