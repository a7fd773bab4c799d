// Package quintoandar collects sale listings from QuintoAndar search pages
// with a headless browser and returns them as raw spreadsheet rows.
package quintoandar

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"melhor-casa/models"
	"melhor-casa/utils"
)

const (
	Source          = "QuintoAndar"
	DefaultCity     = "belo-horizonte-mg-brasil"
	DefaultMaxPrice = 250000
	minPrice        = 150000

	defaultMaxRounds = 40
	staleRounds      = 2
)

// SearchURL builds the sale search for city up to maxPrice.
func SearchURL(city string, maxPrice int) string {
	if city == "" {
		city = DefaultCity
	}
	if maxPrice <= 0 {
		maxPrice = DefaultMaxPrice
	}
	return fmt.Sprintf("https://www.quintoandar.com.br/comprar/imovel/%s/de-%d-a-%d-venda", city, minPrice, maxPrice)
}

// Options tunes the browser session.
type Options struct {
	ChromeBin      string
	MaxConcurrency int
	RateLimitMs    int
	MaxRetries     int
	// MaxRounds caps "load more" rounds per search page.
	MaxRounds int
}

// Feed scrapes one or more search pages in a shared browser.
type Feed struct {
	opts   Options
	logger *utils.Logger
	pool   *utils.WorkerPool
	seen   *utils.LinkSet
	retry  *utils.RetryConfig
}

// New creates a Feed. Links in known are never returned, so listings
// already triaged are not scraped twice.
func New(opts Options, logger *utils.Logger, known ...string) *Feed {
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = defaultMaxRounds
	}
	return &Feed{
		opts:   opts,
		logger: logger,
		pool:   utils.NewWorkerPool(opts.MaxConcurrency, utils.IntervalLimiter(opts.RateLimitMs)),
		seen:   utils.NewLinkSet(known...),
		retry: &utils.RetryConfig{
			MaxAttempts: opts.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
	}
}

// card is what the page script extracts from one listing card.
type card struct {
	Title     string `json:"title"`
	Image     string `json:"image"`
	Price     string `json:"price"`
	Amenities string `json:"amenities"`
	Address   string `json:"address"`
	Link      string `json:"link"`
}

// Scrape visits every search URL and returns one row per new listing.
// Pages that fail after retries are logged and skipped; an error is returned
// only when every page failed.
func (f *Feed) Scrape(ctx context.Context, urls ...string) ([]models.Row, error) {
	if len(urls) == 0 {
		return nil, errors.New("quintoandar: no search URL")
	}

	chromeBin := f.opts.ChromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	f.logger.Info("[quintoandar] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()
	if err := chromedp.Run(browserCtx); err != nil {
		return nil, fmt.Errorf("quintoandar: start browser: %w", err)
	}

	var (
		mu     sync.Mutex
		rows   []models.Row
		failed int
	)
	for _, u := range urls {
		f.pool.Submit(ctx, func(ctx context.Context) {
			found, err := f.scrapeSearch(ctx, browserCtx, u)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				f.logger.Error("[quintoandar] %s: %v", u, err)
				return
			}
			rows = append(rows, found...)
		})
	}
	f.pool.Wait()

	if failed == len(urls) {
		return nil, fmt.Errorf("quintoandar: all %d searches failed", failed)
	}
	f.logger.Info("[quintoandar] Scrape complete: %d new listings", len(rows))
	return rows, nil
}

// scrapeSearch loads one search page, keeps clicking "Ver mais" and returns
// rows for links not seen before.
func (f *Feed) scrapeSearch(ctx, browserCtx context.Context, searchURL string) ([]models.Row, error) {
	var cards []card

	err := f.retry.Do(ctx, "quintoandar-search", func() error {
		tab, cancel := chromedp.NewContext(browserCtx)
		defer cancel()
		tab, cancelTimeout := context.WithTimeout(tab, 5*time.Minute)
		defer cancelTimeout()

		f.logger.Info("[quintoandar] Opening %s", searchURL)
		if err := chromedp.Run(tab,
			chromedp.Navigate(searchURL),
			chromedp.WaitReady(`[data-testid="house-card-container"]`, chromedp.ByQuery),
		); err != nil {
			return fmt.Errorf("chromedp navigate: %w", err)
		}

		collected := make(map[string]card)
		order := []string{}
		stale := 0
		for round := 1; round <= f.opts.MaxRounds; round++ {
			var page []card
			if err := chromedp.Run(tab,
				chromedp.Evaluate(scrollScript, nil),
				chromedp.Sleep(2500*time.Millisecond),
				chromedp.Evaluate(extractScript, &page),
			); err != nil {
				return fmt.Errorf("chromedp extract: %w", err)
			}

			added := 0
			for _, c := range page {
				if c.Link == "" {
					continue
				}
				if _, dup := collected[c.Link]; dup {
					continue
				}
				collected[c.Link] = c
				order = append(order, c.Link)
				added++
			}
			f.logger.Debug("[quintoandar] Round %d: +%d (total %d)", round, added, len(order))

			if added == 0 {
				stale++
			} else {
				stale = 0
			}

			var clicked bool
			if err := chromedp.Run(tab, chromedp.Evaluate(seeMoreScript, &clicked)); err != nil {
				return fmt.Errorf("chromedp see more: %w", err)
			}
			if !clicked && stale >= staleRounds {
				break
			}
			if clicked {
				if err := chromedp.Run(tab, chromedp.Sleep(time.Second)); err != nil {
					return err
				}
			}
		}

		cards = cards[:0]
		for _, link := range order {
			cards = append(cards, collected[link])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	rows := make([]models.Row, 0, len(cards))
	for _, c := range cards {
		if !f.seen.Add(c.Link) {
			f.logger.Debug("[quintoandar] Skipping known listing: %s", c.Link)
			continue
		}
		rows = append(rows, cardRow(c))
	}
	return rows, nil
}

var (
	areaRegexp    = regexp.MustCompile(`(\d[\d.,]*)\s*m`)
	roomsRegexp   = regexp.MustCompile(`(?i)(\d+)\s*quarto`)
	bathsRegexp   = regexp.MustCompile(`(?i)(\d+)\s*banheiro`)
	parkingRegexp = regexp.MustCompile(`(?i)(\d+)\s*vaga`)
)

// cardRow converts an extracted card into a row keyed like the consolidated
// scraper workbook, ready for the "scraper" column mapping.
func cardRow(c card) models.Row {
	area := ""
	if m := areaRegexp.FindStringSubmatch(c.Amenities); m != nil {
		area = strings.ReplaceAll(m[1], ".", "") + " m²"
	}
	return models.Row{
		"fonte":       Source,
		"título":      strings.TrimSpace(c.Title),
		"imagem":      strings.TrimSpace(c.Image),
		"valor":       firstLine(c.Price),
		"m²":          area,
		"quartos":     firstGroup(roomsRegexp, c.Amenities),
		"banheiros":   firstGroup(bathsRegexp, c.Amenities),
		"vagas":       firstGroup(parkingRegexp, c.Amenities),
		"localização": strings.Join(strings.Fields(c.Address), " "),
		"link":        c.Link,
	}
}

func firstGroup(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

// firstLine picks the sale price out of the multi-line price block.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

const scrollScript = `window.scrollTo(0, document.body.scrollHeight)`

const extractScript = `
(function() {
	var cards = document.querySelectorAll('[data-testid="house-card-container"], [data-testid^="house-card"]');
	var results = [];
	var text = function(root, sel) {
		var el = root.querySelector(sel);
		return el ? (el.innerText || '').trim() : '';
	};
	for (var i = 0; i < cards.length; i++) {
		var card = cards[i];
		var link = '';
		var anchors = card.querySelectorAll('a');
		for (var j = 0; j < anchors.length; j++) {
			if ((anchors[j].href || '').indexOf('/comprar/') !== -1) {
				link = anchors[j].href;
				break;
			}
		}
		if (!link) continue;
		var img = card.querySelector('img');
		var titled = card.querySelector('a[title]');
		results.push({
			title:     titled ? titled.getAttribute('title') : '',
			image:     img ? (img.getAttribute('src') || '') : '',
			price:     text(card, '[data-testid="house-card-prices"]'),
			amenities: text(card, '[data-testid="house-card-amenities"]'),
			address:   text(card, '[data-testid="house-card-address"]'),
			link:      link
		});
	}
	return results;
})()
`

const seeMoreScript = `
(function() {
	var candidates = [];
	var byId = document.getElementById('see-more');
	if (byId) candidates.push(byId);
	document.querySelectorAll('[data-testid="see-more-button"]').forEach(function(el) { candidates.push(el); });
	document.querySelectorAll('button, a').forEach(function(el) {
		if ((el.innerText || '').toLowerCase().indexOf('ver mais') !== -1) candidates.push(el);
	});
	var clicked = false;
	for (var i = 0; i < candidates.length; i++) {
		var el = candidates[i];
		if (el.offsetParent === null) continue;
		el.scrollIntoView({block: 'center'});
		el.click();
		clicked = true;
	}
	return clicked;
})()
`

// findChromeBinary locates a Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	for _, name := range []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	for _, p := range []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
