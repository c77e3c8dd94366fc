package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const weatherPage = `<html><body>
<div id="currentAlert"><div><img src="i.png"><span class="h2">21 °C</span>Passing clouds. <a href="#">More</a> Feels like 20 °C.<div>nested</div></div></div>
<table id="wt-ext"><tbody>
<tr><th>Sat<br>Oct 18</th><td>x</td><td>x</td><td class="small">Sunny.</td><td>22 / 9 °C</td></tr>
<tr><th>Sun<br>Oct 19</th><td>x</td><td>x</td><td class="small">Scattered clouds.</td><td>19 / 8 °C</td></tr>
</tbody></table>
</body></html>`

func newsPage(n int) string {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&sb, `<div id="%di1"><div class="ii"><strong><a href="#"> Story %d </a></strong></div></div>`, i, i)
	}
	sb.WriteString("</body></html>")
	return sb.String()
}

func doc(t *testing.T, s string) *goquery.Document {
	t.Helper()
	d, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	require.NoError(t, err)
	return d
}

func TestParseWeather(t *testing.T) {
	w, err := ParseWeather(doc(t, weatherPage))
	require.NoError(t, err)

	assert.Equal(t, "Passing clouds.Feels like 20 °C.", w.Current)
	require.Len(t, w.Forecast, 2)
	assert.Equal(t, Forecast{Date: "SatOct 18", Overall: "Sunny.", Temp: "22 / 9 °C"}, w.Forecast[0])

	assert.Equal(t, "Current Weather: Passing clouds.Feels like 20 °C.\n"+
		"14 Day Forcast Data:\n"+
		"SatOct 18 - Sunny. - 22 / 9 °C\n"+
		"SunOct 19 - Scattered clouds. - 19 / 8 °C\n", w.String())
}

func TestParseWeatherNoMarkup(t *testing.T) {
	_, err := ParseWeather(doc(t, "<html><body><p>maintenance</p></body></html>"))
	assert.ErrorIs(t, err, ErrNoMarkup)
}

func TestParseHeadlines(t *testing.T) {
	h, err := ParseHeadlines(doc(t, newsPage(9)), 10)
	require.NoError(t, err)
	assert.Len(t, h, 9)
	assert.Equal(t, "Story 1", h[0])

	h, err = ParseHeadlines(doc(t, newsPage(9)), 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Story 1", "Story 2", "Story 3"}, h)

	_, err = ParseHeadlines(doc(t, newsPage(0)), 10)
	assert.ErrorIs(t, err, ErrNoMarkup)
}

func serve(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRefreshWritesBothSections(t *testing.T) {
	srv := serve(t, map[string]string{"/weather": weatherPage, "/news": newsPage(2)})
	path := filepath.Join(t.TempDir(), "data.txt")

	s := New(srv.Client(), path, Options{WeatherURL: srv.URL + "/weather", NewsURL: srv.URL + "/news"})
	require.NoError(t, s.Refresh(context.Background()))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	got := string(b)
	assert.True(t, strings.HasPrefix(got, "Current Weather: Passing clouds."))
	assert.Contains(t, got, "Top news today:\nHeadline: Story 1 .\nHeadline: Story 2 .\n")
}

func TestRefreshDegradesPerSection(t *testing.T) {
	srv := serve(t, map[string]string{"/news": newsPage(1)})
	path := filepath.Join(t.TempDir(), "data.txt")

	s := New(srv.Client(), path, Options{WeatherURL: srv.URL + "/weather", NewsURL: srv.URL + "/news"})
	err := s.Refresh(context.Background())
	assert.ErrorContains(t, err, "weather")

	b, rerr := os.ReadFile(path)
	require.NoError(t, rerr)
	assert.Equal(t, "Top news today:\nHeadline: Story 1 .\n", string(b))
}

func TestRefreshBothFail(t *testing.T) {
	srv := serve(t, map[string]string{})
	path := filepath.Join(t.TempDir(), "data.txt")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	s := New(srv.Client(), path, Options{WeatherURL: srv.URL + "/weather", NewsURL: srv.URL + "/news"})
	assert.Error(t, s.Refresh(context.Background()))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, NoData+"\n", string(b))
}
