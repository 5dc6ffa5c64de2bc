package google

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cashbot/internal/cache"
	"cashbot/internal/core"
	"cashbot/internal/log"
	ports "cashbot/internal/sheets"

	"github.com/avast/retry-go"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
	gsheet "google.golang.org/api/sheets/v4"
)

// Ensure interface conformance
var (
	_ ports.ExpenseWriter  = (*Client)(nil)
	_ ports.InsightsReader = (*Client)(nil)
)

// Defaults for Options fields left at zero.
const (
	DefaultWritesPerMinute = 60
	DefaultRetryAttempts   = 3
	DefaultRetryDelay      = 2 * time.Second
	knownTabsTTL           = time.Hour
)

// Options configures a Client.
type Options struct {
	SpreadsheetID   string
	WritesPerMinute int
	RetryAttempts   uint
	RetryDelay      time.Duration
	Logger          *log.Logger
}

// Client writes rows to per-month tabs and reads their aggregate block.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	limiter       *rate.Limiter
	knownTabs     *cache.LRUCache[struct{}]
	tabGroup      singleflight.Group
	retryAttempts uint
	retryDelay    time.Duration
	logger        *log.Logger
}

// New wraps an existing Sheets service.
func New(svc *gsheet.Service, opts Options) (*Client, error) {
	if svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	if opts.SpreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if opts.WritesPerMinute <= 0 {
		opts.WritesPerMinute = DefaultWritesPerMinute
	}
	if opts.RetryAttempts == 0 {
		opts.RetryAttempts = DefaultRetryAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}

	return &Client{
		svc:           svc,
		spreadsheetID: opts.SpreadsheetID,
		limiter:       rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.WritesPerMinute)), 1),
		knownTabs:     cache.NewLRUCache[struct{}](12, knownTabsTTL),
		retryAttempts: opts.RetryAttempts,
		retryDelay:    opts.RetryDelay,
		logger:        opts.Logger.WithComponent(log.ComponentSheets),
	}, nil
}

// NewFromCredentials builds the Sheets service from creds and wraps it.
func NewFromCredentials(ctx context.Context, creds Credentials, opts Options) (*Client, error) {
	svc, err := newSheetsService(ctx, creds, opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return New(svc, opts)
}

// KnownTabs exposes the tab cache so a cache.Manager can sweep it.
func (c *Client) KnownTabs() cache.Cleaner {
	return c.knownTabs
}

// Append writes e as one row at the end of its month tab.
func (c *Client) Append(ctx context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	tab := e.MonthKey()
	if err := c.EnsureTab(ctx, tab); err != nil {
		return "", err
	}

	vr := &gsheet.ValueRange{Values: appendValues(e)}
	var ref string
	err := c.write(ctx, log.OpAppend, func() error {
		// OVERWRITE keeps the aggregate block in G:H where it is; INSERT_ROWS would shift it.
		resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, tabRange(tab, rowsRange), vr).
			ValueInputOption("USER_ENTERED").
			InsertDataOption("OVERWRITE").
			Context(ctx).
			Do()
		if err != nil {
			return err
		}
		if resp.Updates != nil {
			ref = resp.Updates.UpdatedRange
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", tab, err)
	}

	c.logger.InfoContext(ctx, "Row appended",
		log.FieldMonthKey, tab,
		log.FieldRowRef, ref,
		log.FieldCategory, e.Category)
	return ref, nil
}

// EnsureTab makes sure the month tab exists with its header and aggregate
// block. A tab left without a header by an earlier failed creation gets the
// layout written again. Concurrent calls for the same tab share one check.
func (c *Client) EnsureTab(ctx context.Context, tab string) error {
	if _, ok := c.knownTabs.Get(tab); ok {
		return nil
	}
	_, err, _ := c.tabGroup.Do(tab, func() (any, error) {
		exists, err := c.tabExists(ctx, tab)
		if err != nil {
			return nil, err
		}
		if !exists {
			if err := c.createTab(ctx, tab); err != nil {
				return nil, err
			}
		} else if err := c.repairLayout(ctx, tab); err != nil {
			return nil, err
		}
		c.knownTabs.Set(tab, struct{}{})
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("ensure tab %s: %w", tab, err)
	}
	return nil
}

// repairLayout writes the layout of an existing tab whose first row is
// empty. A first row holding something other than the header is left alone.
func (c *Client) repairLayout(ctx context.Context, tab string) error {
	rows, err := c.headerRow(ctx, tab)
	if err != nil {
		return err
	}
	switch {
	case headerPresent(rows):
		return nil
	case rowEmpty(rows):
		c.logger.WarnContext(ctx, "Tab has no header, writing layout", log.FieldMonthKey, tab)
		return c.writeLayout(ctx, tab)
	default:
		c.logger.WarnContext(ctx, "Tab first row is not the header, leaving it", log.FieldMonthKey, tab)
		return nil
	}
}

func (c *Client) headerRow(ctx context.Context, tab string) ([][]any, error) {
	var resp *gsheet.ValueRange
	err := c.retry(ctx, log.OpEnsureTab, func() error {
		var err error
		resp, err = c.svc.Spreadsheets.Values.Get(c.spreadsheetID, tabRange(tab, headerRange)).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("read tab header: %w", err)
	}
	return resp.Values, nil
}

func (c *Client) tabExists(ctx context.Context, tab string) (bool, error) {
	var resp *gsheet.Spreadsheet
	err := c.retry(ctx, log.OpEnsureTab, func() error {
		var err error
		resp, err = c.svc.Spreadsheets.Get(c.spreadsheetID).
			Fields("sheets.properties.title").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return false, fmt.Errorf("list tabs: %w", err)
	}
	for _, s := range resp.Sheets {
		if s.Properties != nil && s.Properties.Title == tab {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) createTab(ctx context.Context, tab string) error {
	add := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{
					Title:          tab,
					GridProperties: &gsheet.GridProperties{FrozenRowCount: 1},
				},
			},
		}},
	}
	err := c.write(ctx, log.OpEnsureTab, func() error {
		_, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, add).Context(ctx).Do()
		return err
	})
	if isAlreadyExists(err) {
		c.logger.DebugContext(ctx, "Tab created concurrently", log.FieldMonthKey, tab)
		return c.repairLayout(ctx, tab)
	}
	if err != nil {
		return fmt.Errorf("add tab: %w", err)
	}
	return c.writeLayout(ctx, tab)
}

// writeLayout writes the header row and the aggregate block of tab.
func (c *Client) writeLayout(ctx context.Context, tab string) error {
	values := &gsheet.BatchUpdateValuesRequest{
		ValueInputOption: "USER_ENTERED",
		Data: []*gsheet.ValueRange{
			{Range: tabRange(tab, headerRange), Values: headerValues()},
			{Range: tabRange(tab, aggregateRange), Values: aggregateValues()},
		},
	}
	err := c.write(ctx, log.OpEnsureTab, func() error {
		_, err := c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, values).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("write tab header: %w", err)
	}
	c.logger.InfoContext(ctx, "Tab layout written", log.FieldMonthKey, tab)
	return nil
}

// ReadInsights reads the aggregate block of the month's tab. A missing tab
// reads as an empty month.
func (c *Client) ReadInsights(ctx context.Context, month time.Month) (core.Insights, error) {
	tab := core.MonthKey(month)
	var resp *gsheet.BatchGetValuesResponse
	err := c.retry(ctx, log.OpRead, func() error {
		var err error
		resp, err = c.svc.Spreadsheets.Values.BatchGet(c.spreadsheetID).
			Ranges(readRanges(tab)...).
			ValueRenderOption("UNFORMATTED_VALUE").
			Context(ctx).
			Do()
		return err
	})
	if isMissingTab(err) {
		c.logger.DebugContext(ctx, "No tab for month", log.FieldMonthKey, tab)
		return core.EmptyInsights(month), nil
	}
	if err != nil {
		return core.Insights{}, fmt.Errorf("read aggregates %s: %w", tab, err)
	}
	return parseAggregates(month, resp.ValueRanges), nil
}

// write waits for the write quota before each attempt.
func (c *Client) write(ctx context.Context, op string, fn func() error) error {
	return c.retry(ctx, op, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return retry.Unrecoverable(err)
		}
		return fn()
	})
}

// retry repeats fn only while the API answers 429.
func (c *Client) retry(ctx context.Context, op string, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.RetryIf(isRateLimited),
		retry.OnRetry(func(n uint, err error) {
			c.logger.WarnContext(ctx, "Rate limited, will retry",
				log.FieldOperation, op,
				log.FieldAttempt, n+1,
				log.FieldError, err)
		}),
		retry.Attempts(c.retryAttempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
}
