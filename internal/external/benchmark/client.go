package benchmark

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/riskdash/internal/risk"
	"github.com/wonny/riskdash/pkg/httputil"
	"github.com/wonny/riskdash/pkg/logger"
	"github.com/wonny/riskdash/pkg/redis"
)

// ErrNoLevels 수집된 지수 종가 없음
var ErrNoLevels = errors.New("no benchmark levels found")

// 페이지 캐시 TTL (과거 페이지는 거의 바뀌지 않음)
const pageCacheTTL = 15 * time.Minute

// 최대 페이지 수 (페이지당 약 6영업일)
const maxPages = 400

var dateRe = regexp.MustCompile(`^\d{4}\.\d{2}\.\d{2}$`)

// Client 지수 일별 종가 수집기
// ⭐ SSOT: 벤치마크 지수 수준 수집은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	sourceURL  string
	cache      *redis.Cache
}

// NewClient creates a new benchmark level client
func NewClient(httpClient *httputil.Client, log *logger.Logger, sourceURL string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log,
		sourceURL:  sourceURL,
	}
}

// WithCache 페이지 HTML 캐시 설정
func (c *Client) WithCache(cache *redis.Cache) *Client {
	c.cache = cache
	return c
}

// FetchLevels 기간 내 일별 종가 (날짜 오름차순, 중복 제거)
func (c *Client) FetchLevels(ctx context.Context, symbol string, from, to time.Time) ([]risk.ValuePoint, error) {
	byDate := make(map[time.Time]float64)

	for page := 1; page <= maxPages; page++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		html, err := c.fetchPage(ctx, symbol, page)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}

		levels, oldest, hasMore := parseLevelsHTML(html)
		for _, l := range levels {
			if l.Date.Before(from) || l.Date.After(to) {
				continue
			}
			byDate[l.Date] = l.Value
		}

		// 기준일보다 이전 데이터면 종료
		if !oldest.IsZero() && oldest.Before(from) {
			break
		}
		if !hasMore || len(levels) == 0 {
			break
		}
	}

	if len(byDate) == 0 {
		return nil, fmt.Errorf("%w: %s %s ~ %s", ErrNoLevels, symbol,
			from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	out := make([]risk.ValuePoint, 0, len(byDate))
	for d, v := range byDate {
		out = append(out, risk.ValuePoint{Date: d, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	c.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"count":  len(out),
	}).Debug("Fetched benchmark levels")

	return out, nil
}

// fetchPage 페이지 HTML (캐시 우선)
func (c *Client) fetchPage(ctx context.Context, symbol string, page int) (string, error) {
	key := redis.BenchmarkKey(symbol, page)
	if c.cache != nil {
		var cached string
		if found, err := c.cache.Get(ctx, key, &cached); err == nil && found {
			return cached, nil
		}
	}

	params := url.Values{}
	params.Set("code", symbol)
	params.Set("page", strconv.Itoa(page))

	body, err := c.httpClient.GetBody(ctx, c.sourceURL+"?"+params.Encode())
	if err != nil {
		return "", err
	}
	html := string(body)

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, html, pageCacheTTL); err != nil {
			c.logger.WithError(err).Warn("Benchmark page cache write failed")
		}
	}
	return html, nil
}

// parseLevelsHTML 일별 시세 테이블 파싱
// 컬럼: 날짜 | 체결가 | 전일비 | 등락률 | 거래량 | 거래대금
func parseLevelsHTML(html string) ([]risk.ValuePoint, time.Time, bool) {
	var levels []risk.ValuePoint
	var oldest time.Time

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return levels, oldest, false
	}

	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}

		dateText := strings.TrimSpace(cells.Eq(0).Text())
		if !dateRe.MatchString(dateText) {
			return
		}
		date, err := time.Parse("2006.01.02", dateText)
		if err != nil {
			return
		}

		value, err := parseLevel(cells.Eq(1).Text())
		if err != nil || value <= 0 {
			return
		}

		if oldest.IsZero() || date.Before(oldest) {
			oldest = date
		}
		levels = append(levels, risk.ValuePoint{Date: date, Value: value})
	})

	hasMore := doc.Find(".pgRR").Length() > 0
	return levels, oldest, hasMore
}

func parseLevel(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	return strconv.ParseFloat(s, 64)
}

// MonthEnd 월별 마지막 관측치만 남김 (월간 성과 시계열 정렬용)
// 입력은 날짜 오름차순이어야 함
func MonthEnd(levels []risk.ValuePoint) []risk.ValuePoint {
	out := make([]risk.ValuePoint, 0)
	for i, l := range levels {
		last := i == len(levels)-1
		if last || !sameMonth(l.Date, levels[i+1].Date) {
			out = append(out, l)
		}
	}
	return out
}

func sameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}
