// Package scrape refreshes the real-time data file (weather and news
// headlines) that is handed to the model as context.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"jarvis/internal/fsutil"
)

const NoData = "No real-time data available."

var ErrNoMarkup = errors.New("expected markup not found")

type Options struct {
	WeatherURL string
	NewsURL    string
	Headlines  int
	Timeout    time.Duration
}

type Scraper struct {
	client *http.Client
	opt    Options
	path   string
}

// New returns a scraper that writes to path. A nil client uses
// http.DefaultClient.
func New(client *http.Client, path string, opt Options) *Scraper {
	if client == nil {
		client = http.DefaultClient
	}
	if opt.Headlines <= 0 {
		opt.Headlines = 10
	}
	if opt.Timeout <= 0 {
		opt.Timeout = 15 * time.Second
	}
	return &Scraper{client: client, opt: opt, path: path}
}

func (s *Scraper) Path() string { return s.path }

// Refresh rebuilds the data file. Sections that fail are left out; the file
// is always rewritten and the returned error joins the section failures.
func (s *Scraper) Refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opt.Timeout)
	defer cancel()

	var (
		sections []string
		errs     []error
	)

	if s.opt.WeatherURL != "" {
		w, err := s.Weather(ctx)
		if err != nil {
			log.Warn("Weather scrape failed", "url", s.opt.WeatherURL, "err", err)
			errs = append(errs, fmt.Errorf("weather: %w", err))
		} else {
			sections = append(sections, w.String())
		}
	}
	if s.opt.NewsURL != "" {
		h, err := s.News(ctx)
		if err != nil {
			log.Warn("News scrape failed", "url", s.opt.NewsURL, "err", err)
			errs = append(errs, fmt.Errorf("news: %w", err))
		} else {
			sections = append(sections, FormatHeadlines(h))
		}
	}

	body := NoData + "\n"
	if len(sections) > 0 {
		body = strings.Join(sections, "")
	}
	if err := fsutil.WriteFile(s.path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	log.Info("Real-time data refreshed", "path", s.path, "sections", len(sections))
	return errors.Join(errs...)
}

func (s *Scraper) Weather(ctx context.Context) (Weather, error) {
	doc, err := s.fetch(ctx, s.opt.WeatherURL)
	if err != nil {
		return Weather{}, err
	}
	return ParseWeather(doc)
}

func (s *Scraper) News(ctx context.Context) ([]string, error) {
	doc, err := s.fetch(ctx, s.opt.NewsURL)
	if err != nil {
		return nil, err
	}
	return ParseHeadlines(doc, s.opt.Headlines)
}

func (s *Scraper) fetch(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) jarvis")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

type Forecast struct {
	Date    string
	Overall string
	Temp    string
}

type Weather struct {
	Current  string
	Forecast []Forecast
}

func (w Weather) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Current Weather: %s\n", w.Current)
	sb.WriteString("14 Day Forcast Data:\n")
	for _, f := range w.Forecast {
		fmt.Fprintf(&sb, "%s - %s - %s\n", f.Date, f.Overall, f.Temp)
	}
	return sb.String()
}

// ParseWeather reads a timeanddate extended forecast page. The current
// conditions are the bare text nodes of the alert box; its child elements
// (icons, links, nested blocks) are skipped.
func ParseWeather(doc *goquery.Document) (Weather, error) {
	var w Weather

	current := doc.Find("#currentAlert > div").First()
	current.Contents().Each(func(_ int, c *goquery.Selection) {
		if n := c.Get(0); n != nil && n.Type == html.TextNode {
			w.Current += strings.TrimSpace(n.Data)
		}
	})

	dates := doc.Find("#wt-ext > tbody > tr > th")
	overall := doc.Find("#wt-ext > tbody > tr > td.small")
	temps := doc.Find("#wt-ext > tbody > tr > td:nth-child(5)")
	n := min(dates.Length(), overall.Length(), temps.Length())
	for i := 0; i < n; i++ {
		w.Forecast = append(w.Forecast, Forecast{
			Date:    text(dates.Eq(i)),
			Overall: text(overall.Eq(i)),
			Temp:    text(temps.Eq(i)),
		})
	}

	if current.Length() == 0 && len(w.Forecast) == 0 {
		return Weather{}, ErrNoMarkup
	}
	return w, nil
}

// ParseHeadlines reads techmeme's top stories, whose containers carry ids
// 1i1 through 9i1.
func ParseHeadlines(doc *goquery.Document, limit int) ([]string, error) {
	var out []string
	for i := 1; i <= 9 && len(out) < limit; i++ {
		a := doc.Find(fmt.Sprintf(`[id="%di1"] > div.ii > strong > a`, i)).First()
		if a.Length() == 0 {
			continue
		}
		if h := text(a); h != "" {
			out = append(out, h)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoMarkup
	}
	return out, nil
}

func FormatHeadlines(headlines []string) string {
	var sb strings.Builder
	sb.WriteString("Top news today:\n")
	for _, h := range headlines {
		fmt.Fprintf(&sb, "Headline: %s .\n", h)
	}
	return sb.String()
}

func text(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
