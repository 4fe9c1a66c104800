package query_test

import (
	"database/sql"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-events/internal/events/query"
	"ms-events/internal/models"
)

func newTestDB(t *testing.T) *bun.DB {
	sqldb, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })
	return db
}

func TestParseParams(t *testing.T) {
	p := query.ParseParams(url.Values{
		"search":   {"  rock  "},
		"category": {"Música"},
		"price":    {"free"},
		"page":     {"3"},
	})

	assert.Equal(t, "rock", p.Search)
	assert.Equal(t, "Música", p.Category)
	assert.Equal(t, "free", p.Price)
	assert.Equal(t, 3, p.Page)
	assert.True(t, p.HasFilters())
}

func TestParseParamsPageDefaults(t *testing.T) {
	for _, raw := range []string{"", "0", "-4", "abc", "1.5"} {
		p := query.ParseParams(url.Values{"page": {raw}})
		assert.Equal(t, 1, p.Page, "page=%q", raw)
	}
	assert.False(t, query.ParseParams(url.Values{"category": {"all"}}).HasFilters())
}

func TestParamsValuesKeepsFilters(t *testing.T) {
	p := query.Params{Search: "jazz", Sort: query.SortPriceLow, Page: 1}

	assert.Equal(t, "search=jazz&sort=price_low", p.Values(1).Encode())
	assert.Equal(t, "page=2&search=jazz&sort=price_low", p.Values(2).Encode())
}

func TestBuildFixedPredicatesOnly(t *testing.T) {
	now := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
	spec := query.Build(query.Params{Page: 1}, now)

	assert.Equal(t, []string{"active_status", "starts_at_or_after"}, spec.PredicateNames())
	assert.Equal(t, query.SortDate, spec.Sort.Key)
	assert.Equal(t, 12, spec.PageSize)
}

func TestBuildAllFilters(t *testing.T) {
	now := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
	spec := query.Build(query.Params{
		Search:   "rock",
		Category: "Música",
		Price:    query.PricePaid,
		Location: "Recife",
		Date:     query.DateWeek,
		Sort:     query.SortPopular,
		Page:     2,
	}, now)

	assert.Equal(t, []string{
		"active_status",
		"starts_at_or_after",
		"text_search",
		"category_is",
		"paid_only",
		"location_contains",
		"starts_at_or_after",
		"starts_before",
	}, spec.PredicateNames())
	assert.Equal(t, "current_participants", spec.Sort.Column)
	assert.True(t, spec.Sort.Descending)
	assert.Equal(t, 12, spec.Offset())
}

func TestBuildIgnoresUnknownValues(t *testing.T) {
	now := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
	spec := query.Build(query.Params{
		Category: query.CategoryAll,
		Price:    "cheap",
		Date:     "yesterday",
		Sort:     "alphabetical",
		Page:     0,
	}, now)

	assert.Equal(t, []string{"active_status", "starts_at_or_after"}, spec.PredicateNames())
	assert.Equal(t, query.SortDate, spec.Sort.Key)
	assert.Equal(t, 1, spec.Page)
}

func TestSortFor(t *testing.T) {
	tests := []struct {
		key    string
		column string
		desc   bool
	}{
		{"date", "event_date", false},
		{"", "event_date", false},
		{"popularity", "current_participants", true},
		{"price_low", "price", false},
		{"price_high", "price", true},
	}
	for _, tt := range tests {
		rule := query.SortFor(tt.key)
		assert.Equal(t, tt.column, rule.Column, tt.key)
		assert.Equal(t, tt.desc, rule.Descending, tt.key)
	}
}

func TestDateWindowToday(t *testing.T) {
	now := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)

	from, to, ok := query.DateWindow(query.DateToday, now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC), to)
}

func TestDateWindowUsesNowLocation(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	now := time.Date(2024, 6, 10, 23, 30, 0, 0, loc)

	from, to, ok := query.DateWindow(query.DateToday, now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, loc), from)
	assert.Equal(t, time.Date(2024, 6, 11, 0, 0, 0, 0, loc), to)
}

func TestDateWindowWeekAndMonth(t *testing.T) {
	now := time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)

	from, to, ok := query.DateWindow(query.DateWeek, now)
	require.True(t, ok)
	assert.Equal(t, now, from)
	assert.Equal(t, time.Date(2024, 2, 7, 12, 0, 0, 0, time.UTC), to)

	from, to, ok = query.DateWindow(query.DateMonth, now)
	require.True(t, ok)
	assert.Equal(t, now, from)
	assert.Equal(t, now.AddDate(0, 1, 0), to)

	_, _, ok = query.DateWindow("", now)
	assert.False(t, ok)
}

func TestTotalPages(t *testing.T) {
	spec := query.Build(query.Params{Page: 3}, time.Now())

	assert.Equal(t, 2, spec.TotalPages(20))
	assert.Equal(t, 1, spec.TotalPages(12))
	assert.Equal(t, 2, spec.TotalPages(13))
	assert.Equal(t, 0, spec.TotalPages(0))
	assert.Equal(t, 24, spec.Offset())
}

func TestApplyRendersSQL(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
	spec := query.Build(query.Params{
		Search: "50%_Off",
		Price:  query.PriceFree,
		Sort:   query.SortPriceHigh,
		Page:   2,
	}, now)

	q := db.NewSelect().Model((*models.Event)(nil))
	q = spec.ApplyPage(spec.ApplySort(spec.ApplyFilters(q)))
	sqlText := q.String()

	assert.Contains(t, sqlText, `"event"."status" = 'active'`)
	assert.Contains(t, sqlText, `LOWER("event"."title") LIKE '%50\%\_off%'`)
	assert.Contains(t, sqlText, " OR ")
	assert.Contains(t, sqlText, `"event"."price" = 0`)
	assert.Contains(t, sqlText, `ORDER BY "event"."price" DESC`)
	assert.Contains(t, sqlText, "LIMIT 12")
	assert.Contains(t, sqlText, "OFFSET 12")
}
