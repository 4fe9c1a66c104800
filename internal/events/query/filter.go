// Package query builds the filtered, sorted and paginated listing of public events.
//
// A listing request is reduced to a Spec: a list of named predicates that are
// combined with AND, one sort rule and a page number. Each predicate knows how
// to translate itself into a bun WHERE clause, so the same Spec drives both the
// page query and the count query.
package query

import (
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"ms-events/internal/models"
)

// PageSize is the fixed number of events per listing page.
const PageSize = 12

const (
	SortDate      = "date"
	SortPopular   = "popularity"
	SortPriceLow  = "price_low"
	SortPriceHigh = "price_high"

	PriceFree = "free"
	PricePaid = "paid"

	DateToday = "today"
	DateWeek  = "week"
	DateMonth = "month"

	CategoryAll = "all"
)

// Params holds the raw listing parameters as they arrive in the query string.
type Params struct {
	Search   string `json:"search,omitempty"`
	Category string `json:"category,omitempty"`
	Price    string `json:"price,omitempty"`
	Location string `json:"location,omitempty"`
	Date     string `json:"date,omitempty"`
	Sort     string `json:"sort,omitempty"`
	Page     int    `json:"page"`
}

// ParseParams reads listing parameters from a query string. Page defaults to 1.
func ParseParams(values url.Values) Params {
	p := Params{
		Search:   strings.TrimSpace(values.Get("search")),
		Category: strings.TrimSpace(values.Get("category")),
		Price:    strings.TrimSpace(values.Get("price")),
		Location: strings.TrimSpace(values.Get("location")),
		Date:     strings.TrimSpace(values.Get("date")),
		Sort:     strings.TrimSpace(values.Get("sort")),
		Page:     1,
	}
	if page, err := strconv.Atoi(strings.TrimSpace(values.Get("page"))); err == nil && page > 0 {
		p.Page = page
	}
	return p
}

// HasFilters reports whether any user-controlled filter is set.
func (p Params) HasFilters() bool {
	return p.Search != "" || (p.Category != "" && p.Category != CategoryAll) ||
		p.Price != "" || p.Location != "" || p.Date != ""
}

// Values encodes the parameters back into a query string, replacing the page.
func (p Params) Values(page int) url.Values {
	v := url.Values{}
	set := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}
	set("search", p.Search)
	set("category", p.Category)
	set("price", p.Price)
	set("location", p.Location)
	set("date", p.Date)
	set("sort", p.Sort)
	if page > 1 {
		v.Set("page", strconv.Itoa(page))
	}
	return v
}

// Predicate is a single named condition on the events table.
type Predicate interface {
	Name() string
	Apply(q *bun.SelectQuery) *bun.SelectQuery
}

type ActiveStatus struct{}

func (ActiveStatus) Name() string { return "active_status" }

func (ActiveStatus) Apply(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Where("?TableAlias.status = ?", models.EventStatusActive)
}

// StartsAtOrAfter keeps events whose start is at or after At.
type StartsAtOrAfter struct{ At time.Time }

func (StartsAtOrAfter) Name() string { return "starts_at_or_after" }

func (p StartsAtOrAfter) Apply(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Where("?TableAlias.event_date >= ?", p.At)
}

// StartsBefore keeps events whose start is strictly before At.
type StartsBefore struct{ At time.Time }

func (StartsBefore) Name() string { return "starts_before" }

func (p StartsBefore) Apply(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Where("?TableAlias.event_date < ?", p.At)
}

// TextSearch matches the term against title, description or location.
type TextSearch struct{ Term string }

func (TextSearch) Name() string { return "text_search" }

func (p TextSearch) Apply(q *bun.SelectQuery) *bun.SelectQuery {
	pattern := containsPattern(p.Term)
	return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			WhereOr(`LOWER(?TableAlias.title) LIKE ? ESCAPE '\'`, pattern).
			WhereOr(`LOWER(?TableAlias.description) LIKE ? ESCAPE '\'`, pattern).
			WhereOr(`LOWER(?TableAlias.location) LIKE ? ESCAPE '\'`, pattern)
	})
}

type CategoryIs struct{ Value string }

func (CategoryIs) Name() string { return "category_is" }

func (p CategoryIs) Apply(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Where("?TableAlias.category = ?", p.Value)
}

type FreeOnly struct{}

func (FreeOnly) Name() string { return "free_only" }

func (FreeOnly) Apply(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Where("?TableAlias.price = 0")
}

type PaidOnly struct{}

func (PaidOnly) Name() string { return "paid_only" }

func (PaidOnly) Apply(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Where("?TableAlias.price > 0")
}

type LocationContains struct{ Term string }

func (LocationContains) Name() string { return "location_contains" }

func (p LocationContains) Apply(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Where(`LOWER(?TableAlias.location) LIKE ? ESCAPE '\'`, containsPattern(p.Term))
}

// SortRule orders the listing by a single column.
type SortRule struct {
	Key        string
	Column     string
	Descending bool
}

func (s SortRule) Apply(q *bun.SelectQuery) *bun.SelectQuery {
	dir := "ASC"
	if s.Descending {
		dir = "DESC"
	}
	return q.OrderExpr("?TableAlias.? "+dir, bun.Ident(s.Column))
}

// SortFor maps a sort key to its rule. Unknown keys sort by date.
func SortFor(key string) SortRule {
	switch key {
	case SortPopular:
		return SortRule{Key: SortPopular, Column: "current_participants", Descending: true}
	case SortPriceLow:
		return SortRule{Key: SortPriceLow, Column: "price"}
	case SortPriceHigh:
		return SortRule{Key: SortPriceHigh, Column: "price", Descending: true}
	default:
		return SortRule{Key: SortDate, Column: "event_date"}
	}
}

// Spec is the typed form of a listing request.
type Spec struct {
	Predicates []Predicate
	Sort       SortRule
	Page       int
	PageSize   int
}

// Build turns listing parameters into a Spec evaluated at now. Calendar
// windows (today) use now's location.
func Build(p Params, now time.Time) Spec {
	preds := []Predicate{
		ActiveStatus{},
		StartsAtOrAfter{At: now},
	}

	if p.Search != "" {
		preds = append(preds, TextSearch{Term: p.Search})
	}
	if p.Category != "" && p.Category != CategoryAll {
		preds = append(preds, CategoryIs{Value: p.Category})
	}
	switch p.Price {
	case PriceFree:
		preds = append(preds, FreeOnly{})
	case PricePaid:
		preds = append(preds, PaidOnly{})
	}
	if p.Location != "" {
		preds = append(preds, LocationContains{Term: p.Location})
	}
	if from, to, ok := DateWindow(p.Date, now); ok {
		preds = append(preds, StartsAtOrAfter{At: from}, StartsBefore{At: to})
	}

	page := p.Page
	if page < 1 {
		page = 1
	}

	return Spec{
		Predicates: preds,
		Sort:       SortFor(p.Sort),
		Page:       page,
		PageSize:   PageSize,
	}
}

// DateWindow returns the [from, to) range for a date filter value.
func DateWindow(value string, now time.Time) (time.Time, time.Time, bool) {
	switch value {
	case DateToday:
		y, m, d := now.Date()
		start := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(0, 0, 1), true
	case DateWeek:
		return now, now.AddDate(0, 0, 7), true
	case DateMonth:
		return now, now.AddDate(0, 1, 0), true
	default:
		return time.Time{}, time.Time{}, false
	}
}

func (s Spec) ApplyFilters(q *bun.SelectQuery) *bun.SelectQuery {
	for _, p := range s.Predicates {
		q = p.Apply(q)
	}
	return q
}

func (s Spec) ApplySort(q *bun.SelectQuery) *bun.SelectQuery {
	return s.Sort.Apply(q)
}

func (s Spec) ApplyPage(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Limit(s.PageSize).Offset(s.Offset())
}

func (s Spec) Offset() int {
	if s.Page < 1 {
		return 0
	}
	return (s.Page - 1) * s.PageSize
}

// TotalPages is ceil(total / page size).
func (s Spec) TotalPages(total int) int {
	if total <= 0 || s.PageSize <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(s.PageSize)))
}

// PredicateNames lists predicate names in application order.
func (s Spec) PredicateNames() []string {
	names := make([]string, 0, len(s.Predicates))
	for _, p := range s.Predicates {
		names = append(names, p.Name())
	}
	return names
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
}
