package crawler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"flora-crawler/pkg/config"
	"flora-crawler/pkg/dedup"
	"flora-crawler/pkg/fetch"
	"flora-crawler/pkg/models"
	"flora-crawler/pkg/parse"
	"flora-crawler/pkg/process"
	"flora-crawler/pkg/queue"
	"flora-crawler/pkg/storage"
	"flora-crawler/pkg/utils"
)

// PageFetcher downloads a page as text
type PageFetcher interface {
	FetchPage(ctx context.Context, link string) (string, error)
}

// Dependencies are the collaborators a Crawler drives.
// Cache and Ledger are optional.
type Dependencies struct {
	Fetcher  PageFetcher
	Records  storage.RecordStore
	Failures storage.FailureLogger
	Cache    storage.PageCache
	Ledger   storage.VisitedStore
}

// Stats is a snapshot of the crawl counters
type Stats struct {
	ListPages     int64 // List pages expanded
	Leaves        int64 // Detail pages processed
	Saved         int64 // Records accepted by the store
	Failures      int64 // Detail pages written to the failure log
	FetchFailures int64 // Pages skipped because the fetch failed
	Skipped       int64 // Detail pages already saved by a previous run
	Enqueued      int64 // Entries pushed onto the frontier, root included
}

// Crawler walks the catalogue one page at a time, starting from the configured feed
type Crawler struct {
	log   *logrus.Entry // Logger contextualized with run_id
	cfg   *config.AppConfig
	runID string

	frontier *queue.Frontier
	filter   *dedup.Filter
	links    *process.LinkExtractor
	fields   *process.FieldExtractor
	pacer    *fetch.Pacer

	fetcher  PageFetcher
	records  storage.RecordStore
	failures storage.FailureLogger
	cache    storage.PageCache
	ledger   storage.VisitedStore

	listPages     atomic.Int64
	leaves        atomic.Int64
	saved         atomic.Int64
	failed        atomic.Int64
	fetchFailures atomic.Int64
	skipped       atomic.Int64
	enqueued      atomic.Int64
}

// NewCrawler creates a Crawler for one run. cfg is expected to be validated.
func NewCrawler(cfg *config.AppConfig, deps Dependencies, baseLogger *logrus.Entry) (*Crawler, error) {
	if deps.Fetcher == nil || deps.Records == nil || deps.Failures == nil {
		return nil, errors.New("crawler requires a fetcher, a record store and a failure logger")
	}

	runID := uuid.NewString()
	logger := baseLogger.WithField("run_id", runID)

	links, err := process.NewLinkExtractor(cfg.BaseURL, cfg.DetailPrefix, logger.WithField("component", "links"))
	if err != nil {
		return nil, fmt.Errorf("creating link extractor: %w", err)
	}

	return &Crawler{
		log:      logger,
		cfg:      cfg,
		runID:    runID,
		frontier: queue.NewFrontier(logger.WithField("component", "frontier")),
		filter:   dedup.New(cfg.FilterCapacity, cfg.FilterFalsePositiveRate),
		links:    links,
		fields:   process.NewFieldExtractor(cfg.Layout, cfg.BaseURL, logger.WithField("component", "fields")),
		pacer:    fetch.NewPacer(cfg.MinDelay, cfg.MaxDelay, logger.WithField("component", "pacer")),
		fetcher:  deps.Fetcher,
		records:  deps.Records,
		failures: deps.Failures,
		cache:    deps.Cache,
		ledger:   deps.Ledger,
	}, nil
}

// RunID identifies this crawl in logs
func (c *Crawler) RunID() string {
	return c.runID
}

// Stats returns the current counters
func (c *Crawler) Stats() Stats {
	return Stats{
		ListPages:     c.listPages.Load(),
		Leaves:        c.leaves.Load(),
		Saved:         c.saved.Load(),
		Failures:      c.failed.Load(),
		FetchFailures: c.fetchFailures.Load(),
		Skipped:       c.skipped.Load(),
		Enqueued:      c.enqueued.Load(),
	}
}

// Run seeds the frontier with the feed and processes entries until the frontier is empty.
// A fetch failure ends the run unless ContinueOnFetchError is set. Returns ctx's error
// when the run is cancelled or times out.
func (c *Crawler) Run(ctx context.Context) error {
	start := time.Now()
	if c.cfg.GlobalCrawlTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.GlobalCrawlTimeout)
		defer cancel()
	}
	defer c.frontier.Close()

	rootKind := models.KindLeaf
	if c.cfg.IsFeedList() {
		rootKind = models.KindList
	}
	root := models.FrontierEntry{Identity: c.cfg.FeedURL, Kind: rootKind}
	c.log.WithFields(logrus.Fields{"feed": root.Identity, "kind": root.Kind, "resume": c.cfg.Resume}).Info("Crawl starting")

	c.filter.Observe(root.Identity)
	c.enqueue(root)

	if c.cfg.Resume && c.ledger != nil {
		if err := c.requeueFromLedger(ctx); err != nil {
			return err
		}
	}

	var runErr error
	for {
		if err := ctx.Err(); err != nil {
			c.log.Warnf("Crawl interrupted: %v", err)
			runErr = err
			break
		}
		entry, ok := c.frontier.Pop()
		if !ok {
			break
		}
		if err := c.processEntry(ctx, entry); err != nil {
			runErr = err
			break
		}
		if c.frontier.Len() > 0 {
			if err := c.pacer.Wait(ctx); err != nil {
				c.log.Warnf("Crawl interrupted during delay: %v", err)
				runErr = err
				break
			}
		}
	}

	c.logSummary(time.Since(start), runErr)
	return runErr
}

// requeueFromLedger pushes the pages a previous run left pending or failed
func (c *Crawler) requeueFromLedger(ctx context.Context) error {
	c.log.Info("Resume mode: scanning ledger for unfinished pages...")
	requeued, scanErrors, err := c.ledger.RequeueIncomplete(ctx, func(entry models.FrontierEntry) {
		if c.filter.Observe(entry.Identity) {
			return
		}
		c.frontier.Push(entry)
		c.enqueued.Add(1)
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Errorf("Error during ledger requeue scan: %v", err)
	}
	c.log.WithFields(logrus.Fields{"requeued": requeued, "scan_errors": scanErrors}).Info("Ledger requeue scan complete")
	return nil
}

// enqueue pushes entry and records it as pending in the ledger
func (c *Crawler) enqueue(entry models.FrontierEntry) {
	c.frontier.Push(entry)
	c.enqueued.Add(1)
	if c.ledger == nil {
		return
	}

	key := parse.IdentityKey(entry.Identity)
	if entry.Kind == models.KindLeaf {
		if _, err := c.ledger.MarkPageVisited(key); err != nil {
			c.log.WithField("url", entry.Identity).Warnf("Failed to mark page in ledger: %v", err)
		}
		return
	}
	// List pages carry their kind so a resumed run expands them again
	pending := &models.PageDBEntry{Status: models.PageStatusPending, Kind: entry.Kind.String(), LastAttempt: time.Now()}
	if err := c.ledger.UpdatePageStatus(key, pending); err != nil {
		c.log.WithField("url", entry.Identity).Warnf("Failed to mark list page in ledger: %v", err)
	}
}

// processEntry handles one popped entry. Only errors that must end the run are returned.
func (c *Crawler) processEntry(ctx context.Context, entry models.FrontierEntry) error {
	entryLog := c.log.WithFields(logrus.Fields{"url": entry.Identity, "kind": entry.Kind})

	if entry.Kind == models.KindLeaf && c.savedPreviously(entry, entryLog) {
		c.skipped.Add(1)
		entryLog.Debug("Detail page already saved by a previous run, skipping")
		return nil
	}

	raw, err := c.fetcher.FetchPage(ctx, entry.Identity)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.fetchFailures.Add(1)
		c.recordOutcome(entry, err, "", "", entryLog)
		if c.cfg.ContinueOnFetchError {
			entryLog.WithField("category", utils.CategorizeError(err)).Warnf("Fetch failed, skipping page: %v", err)
			return nil
		}
		entryLog.WithField("category", utils.CategorizeError(err)).Errorf("Fetch failed, stopping crawl: %v", err)
		return err
	}

	markup := parse.PolishHTML(raw)
	if entry.Kind == models.KindList {
		c.expandList(entry, markup, entryLog)
		return nil
	}
	c.processLeaf(ctx, entry, markup, entryLog)
	return nil
}

// expandList enqueues every detail link on a list page not seen before
func (c *Crawler) expandList(entry models.FrontierEntry, markup string, taskLog *logrus.Entry) {
	c.listPages.Add(1)

	children, err := c.links.ExtractLinks(markup)
	if err != nil {
		taskLog.WithField("category", utils.CategorizeError(err)).Warnf("Link extraction failed: %v", err)
		c.recordOutcome(entry, err, "", "", taskLog)
		return
	}

	added := 0
	for _, child := range children {
		if c.filter.Observe(child.Identity) {
			continue
		}
		c.enqueue(child)
		added++
	}
	taskLog.WithFields(logrus.Fields{"found": len(children), "enqueued": added, "queue_len": c.frontier.Len()}).Info("List page expanded")
	c.recordOutcome(entry, nil, "", utils.CalculateStringSHA256(markup), taskLog)
}

// processLeaf caches, extracts and persists one detail page. Extraction and save
// failures go to the failure log and never stop the crawl.
func (c *Crawler) processLeaf(ctx context.Context, entry models.FrontierEntry, markup string, taskLog *logrus.Entry) {
	startTime := time.Now()
	var taskErr error
	var recordID string
	c.leaves.Add(1)

	defer func() {
		if r := recover(); r != nil {
			taskErr = fmt.Errorf("%w: panic: %v", utils.ErrExtraction, r)
			taskLog.WithFields(logrus.Fields{
				"panic_info":  r,
				"stack_trace": string(debug.Stack()),
			}).Error("PANIC recovered while processing detail page")
		}

		logFields := logrus.Fields{"duration": time.Since(startTime).String()}
		if taskErr != nil {
			reason := failureReason(taskErr)
			logFields["category"] = utils.CategorizeError(taskErr)
			logFields["reason"] = reason
			c.failed.Add(1)
			if err := c.failures.Append(entry.Identity, reason); err != nil {
				taskLog.Errorf("Failed to write failure log: %v", err)
			}
			taskLog.WithFields(logFields).Warnf("Detail page failed: %v", taskErr)
		} else {
			c.saved.Add(1)
			logFields["record_id"] = recordID
			taskLog.WithFields(logFields).Info("Record saved")
		}
		c.recordOutcome(entry, taskErr, recordID, utils.CalculateStringSHA256(markup), taskLog)
	}()

	if c.cache != nil {
		if path, err := c.cache.Write(entry.Identity, markup); err != nil {
			taskLog.Warnf("Failed to cache page: %v", err)
		} else {
			taskLog.Debugf("Cached page at %s", path)
		}
	}

	rec, err := c.fields.Extract(entry.Identity, markup)
	if err != nil {
		taskErr = err
		return
	}

	recordID, err = c.records.Save(ctx, rec)
	if err != nil {
		taskErr = err
	}
}

// savedPreviously reports whether a resumed run already saved the detail page
func (c *Crawler) savedPreviously(entry models.FrontierEntry, taskLog *logrus.Entry) bool {
	if !c.cfg.Resume || c.ledger == nil {
		return false
	}
	status, _, err := c.ledger.CheckPageStatus(parse.IdentityKey(entry.Identity))
	if err != nil {
		taskLog.Warnf("Ledger lookup failed, processing page: %v", err)
		return false
	}
	return status == models.PageStatusSuccess
}

// recordOutcome writes the final status of a page to the ledger, if one is configured
func (c *Crawler) recordOutcome(entry models.FrontierEntry, taskErr error, recordID, contentHash string, taskLog *logrus.Entry) {
	if c.ledger == nil {
		return
	}
	pageEntry := &models.PageDBEntry{
		Status:      models.PageStatusSuccess,
		Kind:        entry.Kind.String(),
		ErrorType:   "None",
		RecordID:    recordID,
		ContentHash: contentHash,
		LastAttempt: time.Now(),
	}
	if taskErr != nil {
		pageEntry.Status = models.PageStatusFailure
		pageEntry.ErrorType = utils.CategorizeError(taskErr)
	} else {
		pageEntry.ProcessedAt = pageEntry.LastAttempt
	}
	if err := c.ledger.UpdatePageStatus(parse.IdentityKey(entry.Identity), pageEntry); err != nil {
		taskLog.Errorf("Failed to update ledger status to '%s': %v", pageEntry.Status, err)
	}
}

// failureReason maps a leaf error to the reason written to the failure log
func failureReason(err error) models.FailureReason {
	if errors.Is(err, utils.ErrSave) {
		return models.SaveFailure
	}
	return models.ParseFailure
}

func (c *Crawler) logSummary(duration time.Duration, runErr error) {
	stats := c.Stats()
	summaryLog := c.log.WithField("feed", c.cfg.FeedURL)
	summaryLog.Info("========================================================================")
	if runErr != nil {
		summaryLog.Warnf("CRAWL STOPPED: %v", runErr)
	} else {
		summaryLog.Info("CRAWL FINISHED")
	}
	summaryLog.Infof("Duration:         %v", duration)
	summaryLog.Infof("Final Stats: List pages: %d, Detail pages: %d, Saved: %d, Failed: %d, Fetch failures: %d, Skipped: %d",
		stats.ListPages, stats.Leaves, stats.Saved, stats.Failures, stats.FetchFailures, stats.Skipped)
	if c.ledger != nil {
		if count, err := c.ledger.GetVisitedCount(); err == nil {
			summaryLog.Infof("Ledger pages:     %d", count)
		}
	}
	summaryLog.Info("========================================================================")
}
