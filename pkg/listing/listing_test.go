package listing

import (
	"math"
	"math/rand"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type expense struct {
	ID       int
	Title    string
	Status   string
	Amount   int
	Incurred time.Time
}

var expenseSpec = Spec[expense]{
	SearchFields: func(e expense) []string { return []string{e.Title} },
	Status:       func(e expense) string { return e.Status },
	Sorters: map[string]func(a, b expense) int{
		"amount":     ByInt(func(e expense) int { return e.Amount }),
		"title":      ByString(func(e expense) string { return e.Title }),
		"created_at": ByTime(func(e expense) time.Time { return e.Incurred }),
	},
	DefaultSort: "created_at",
}

func sample() []expense {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return []expense{
		{1, "Fuel for site visit", "approved", 40, base},
		{2, "Cement bags", "pending", 120, base.Add(time.Hour)},
		{3, "fuel top-up", "pending", 40, base.Add(2 * time.Hour)},
		{4, "Office rent", "approved", 900, base.Add(3 * time.Hour)},
		{5, "Ladder", "rejected", 40, base.Add(4 * time.Hour)},
	}
}

func ids(items []expense) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestFilterIsIdempotent(t *testing.T) {
	queries := []Query{
		{Search: "fuel"},
		{Status: "PENDING"},
		{Search: "e", Status: "approved"},
		{},
	}
	for _, q := range queries {
		once := Filter(sample(), q, expenseSpec)
		twice := Filter(once, q, expenseSpec)
		assert.Equal(t, once, twice, "query %+v", q)
	}
}

func TestFilterSearchIsCaseInsensitive(t *testing.T) {
	got := Filter(sample(), Query{Search: "FUEL"}, expenseSpec)
	assert.Equal(t, []int{1, 3}, ids(got))
}

func TestSortIsStableOnTies(t *testing.T) {
	asc := Sort(sample(), Query{Sort: "amount", Order: "asc"}, expenseSpec)
	assert.Equal(t, []int{1, 3, 5, 2, 4}, ids(asc))

	desc := Sort(sample(), Query{Sort: "amount", Order: "desc"}, expenseSpec)
	assert.Equal(t, []int{4, 2, 1, 3, 5}, ids(desc))
}

func TestSortStableUnderShuffledInput(t *testing.T) {
	items := sample()
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		r.Shuffle(len(items), func(a, b int) { items[a], items[b] = items[b], items[a] })

		var tied []int
		for _, it := range items {
			if it.Amount == 40 {
				tied = append(tied, it.ID)
			}
		}

		sorted := Sort(items, Query{Sort: "amount", Order: "asc"}, expenseSpec)
		assert.Equal(t, tied, ids(sorted[:3]))
	}
}

func TestSortDefaultsAndDoesNotMutate(t *testing.T) {
	items := sample()
	got := Sort(items, Query{Sort: "nope"}.Normalize(), expenseSpec)
	assert.Equal(t, []int{5, 4, 3, 2, 1}, ids(got))
	assert.Equal(t, []int{1, 2, 3, 4, 5}, ids(items))
}

func TestPaginate(t *testing.T) {
	p := Paginate(sample(), 2, 2)
	assert.Equal(t, []int{3, 4}, ids(p.Items))
	assert.Equal(t, 5, p.Total)
	assert.Equal(t, 3, p.TotalPages)

	past := Paginate(sample(), 9, 2)
	assert.Empty(t, past.Items)
	assert.NotNil(t, past.Items)
	assert.Equal(t, 5, past.Total)
}

func TestPageFarPastTheEnd(t *testing.T) {
	for _, page := range []int{math.MaxInt64 / 2, 1 << 62, math.MaxInt64} {
		p := Apply(sample(), Query{Page: page, Limit: 2}, expenseSpec)
		assert.Empty(t, p.Items)
		assert.Equal(t, 5, p.Total)
		assert.Equal(t, 3, p.TotalPages)
		assert.Equal(t, page, p.Page)
	}

	v := url.Values{"page": {strconv.Itoa(math.MaxInt64 / 2)}, "limit": {"100"}}
	p := Apply(sample(), ParseQuery(v), expenseSpec)
	assert.Empty(t, p.Items)
	assert.Equal(t, 5, p.Total)
}

func TestApplyIdempotent(t *testing.T) {
	q := Query{Search: "e", Sort: "amount", Order: "asc", Page: 1, Limit: 100}
	first := Apply(sample(), q, expenseSpec)
	second := Apply(first.Items, q, expenseSpec)
	assert.Equal(t, first.Items, second.Items)
}

func TestParseQuery(t *testing.T) {
	v, err := url.ParseQuery("search=+fuel+&status=pending&sort=amount&order=ASC&page=0&limit=1000")
	require.NoError(t, err)

	q := ParseQuery(v)
	assert.Equal(t, Query{Search: "fuel", Status: "pending", Sort: "amount", Order: "asc", Page: 1, Limit: MaxLimit}, q)

	def := ParseQuery(url.Values{})
	assert.Equal(t, 1, def.Page)
	assert.Equal(t, DefaultLimit, def.Limit)
	assert.Equal(t, "desc", def.Order)
}
