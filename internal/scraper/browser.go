package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

const (
	TradeSummaryURL = "https://www.cse.lk/pages/trade-summary/trade-summary.component.html"
	CompanyURL      = "https://www.cse.lk/pages/company-profile/company-profile.component.html?symbol=%s"

	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"
)

// Pages is the browser side of the scraper.
type Pages interface {
	// DownloadTradeSummary saves the full trade summary CSV to dest.
	DownloadTradeSummary(ctx context.Context, dest string) error
	// QuarterlyReportsHTML opens a company's quarterly reports tab and
	// returns its HTML and final URL.
	QuarterlyReportsHTML(ctx context.Context, symbol string) (html, pageURL string, err error)
	Close() error
}

// Browser drives the CSE site with a lazily started headless Chromium.
// Calls are serialised on a single page.
type Browser struct {
	headless bool
	logger   *zap.Logger

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
}

func NewBrowser(headless bool, logger *zap.Logger) *Browser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Browser{headless: headless, logger: logger}
}

// InstallBrowsers downloads the Chromium build playwright-go expects.
func InstallBrowsers() error {
	return playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}})
}

func (b *Browser) ensurePage() (playwright.Page, error) {
	if b.pw == nil {
		pw, err := playwright.Run()
		if err != nil {
			return nil, fmt.Errorf("start playwright: %w", err)
		}
		b.pw = pw
	}
	if b.browser == nil {
		browser, err := b.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(b.headless),
		})
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		b.browser = browser
	}
	if b.page == nil || b.page.IsClosed() {
		page, err := b.browser.NewPage(playwright.BrowserNewPageOptions{
			UserAgent:       playwright.String(userAgent),
			AcceptDownloads: playwright.Bool(true),
		})
		if err != nil {
			return nil, fmt.Errorf("create page: %w", err)
		}
		page.SetDefaultTimeout(60_000)
		b.page = page
	}
	return b.page, nil
}

func (b *Browser) DownloadTradeSummary(ctx context.Context, dest string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	page, err := b.ensurePage()
	if err != nil {
		return err
	}
	if _, err := page.Goto(TradeSummaryURL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(60_000),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return fmt.Errorf("open trade summary: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// "-1" is the "All" entry of the rows-per-page selector.
	if _, err := page.Locator("select[name='DataTables_Table_0_length']").SelectOption(playwright.SelectOptionValues{
		Values: playwright.StringSlice("-1"),
	}); err != nil {
		return fmt.Errorf("show all rows: %w", err)
	}
	if err := page.GetByRole(*playwright.AriaRoleButton, playwright.PageGetByRoleOptions{Name: "Download"}).Click(); err != nil {
		return fmt.Errorf("open download menu: %w", err)
	}
	download, err := page.ExpectDownload(func() error {
		return page.GetByText("CSV", playwright.PageGetByTextOptions{Exact: playwright.Bool(true)}).First().Click()
	})
	if err != nil {
		return fmt.Errorf("download csv: %w", err)
	}
	if err := download.SaveAs(dest); err != nil {
		return fmt.Errorf("save csv: %w", err)
	}
	return nil
}

func (b *Browser) QuarterlyReportsHTML(ctx context.Context, symbol string) (string, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	page, err := b.ensurePage()
	if err != nil {
		return "", "", err
	}
	if _, err := page.Goto(fmt.Sprintf(CompanyURL, symbol), playwright.PageGotoOptions{
		Timeout:   playwright.Float(90_000),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return "", "", fmt.Errorf("open company profile: %w", err)
	}

	for _, tab := range []string{"Financials", "Quarterly Reports"} {
		if err := ctx.Err(); err != nil {
			return "", "", err
		}
		link := page.GetByRole(*playwright.AriaRoleLink, playwright.PageGetByRoleOptions{
			Name:  tab,
			Exact: playwright.Bool(true),
		})
		if err := link.Click(); err != nil {
			return "", "", fmt.Errorf("open %s tab: %w", tab, err)
		}
	}

	if err := page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(15_000),
	}); err != nil {
		b.logger.Debug("network did not idle, reading page anyway", zap.String("symbol", symbol), zap.Error(err))
	}

	html, err := page.Content()
	if err != nil {
		return "", "", fmt.Errorf("read report page: %w", err)
	}
	return html, page.URL(), nil
}

// Close shuts down the page, the browser and the driver, joining errors.
func (b *Browser) Close() (err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.page != nil && !b.page.IsClosed() {
		if e := b.page.Close(); e != nil {
			err = errors.Join(err, fmt.Errorf("close page: %w", e))
		}
	}
	if b.browser != nil {
		if e := b.browser.Close(); e != nil {
			err = errors.Join(err, fmt.Errorf("close browser: %w", e))
		}
	}
	if b.pw != nil {
		if e := b.pw.Stop(); e != nil {
			err = errors.Join(err, fmt.Errorf("stop playwright: %w", e))
		}
	}
	b.page, b.browser, b.pw = nil, nil, nil
	return err
}
