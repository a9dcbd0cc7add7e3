package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docquery-service/internal/domain"
)

func TestNormalize_ReservedKeys(t *testing.T) {
	in := Normalize(domain.Params{
		"q":        {" parcel "},
		"sort":     {"created"},
		"order":    {"-1"},
		"page":     {"2"},
		"per_page": {"10"},
	}, false)

	assert.Equal(t, "parcel", in.Term)
	assert.Equal(t, "created", in.Sort)
	assert.Equal(t, "-1", in.Order)
	assert.Equal(t, "2", in.Page)
	assert.Equal(t, "10", in.PerPage)
	assert.Empty(t, in.Filters)
	assert.False(t, in.Geo)
}

func TestNormalize_NumberRange(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  domain.FilterValue
	}{
		{name: "ordered", value: "10,100", want: domain.NumberRange{Min: 10, Max: 100}},
		{name: "reversed is swapped", value: "100,10", want: domain.NumberRange{Min: 10, Max: 100}},
		{name: "equal bounds", value: "5,5", want: domain.NumberRange{Min: 5, Max: 5}},
		{name: "negative and decimal", value: "-2.5, 3", want: domain.NumberRange{Min: -2.5, Max: 3}},
		{name: "empty half is dropped", value: "10,", want: nil},
		{name: "missing comma is dropped", value: "10", want: nil},
		{name: "unparseable half is dropped", value: "ten,100", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := Normalize(domain.Params{"cost.amount_range": {tt.value}}, false)

			if tt.want == nil {
				assert.NotContains(t, in.Filters, "cost.amount")
				assert.NotContains(t, in.Filters, "cost.amount_range")
				return
			}
			assert.Equal(t, tt.want, in.Filters["cost.amount"])
		})
	}
}

// The first half of a _dateRange becomes the upper bound and the second half
// the lower bound, unlike _range which swaps into order.
func TestNormalize_DateRangeKeepsInvertedHalves(t *testing.T) {
	in := Normalize(domain.Params{"created_dateRange": {"2024-01-01,2024-12-31"}}, false)

	require.Contains(t, in.Filters, "created")
	r, ok := in.Filters["created"].(domain.DateRange)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), r.Min)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), r.Max)
}

func TestNormalize_DateRangeLayouts(t *testing.T) {
	in := Normalize(domain.Params{
		"created_dateRange": {"2024-03-01T10:00:00Z,2024-02-01T08:30:00"},
		"updated_dateRange": {"yesterday,2024-02-01"},
	}, false)

	r, ok := in.Filters["created"].(domain.DateRange)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 2, 1, 8, 30, 0, 0, time.UTC), r.Min)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), r.Max)

	assert.NotContains(t, in.Filters, "updated")
}

func TestNormalize_RawFilters(t *testing.T) {
	in := Normalize(domain.Params{
		"parcelStatus": {"booked"},
		"vehicles":     {"bike", "", "van"},
		"carryrType":   {""},
	}, false)

	assert.Equal(t, domain.RawValue{"booked"}, in.Filters["parcelStatus"])
	assert.Equal(t, domain.RawValue{"bike", "van"}, in.Filters["vehicles"])
	assert.NotContains(t, in.Filters, "carryrType")
}

func TestNormalize_BoundKeys(t *testing.T) {
	params := domain.Params{
		"lat1":         {"51.4"},
		"lon1":         {"-0.3"},
		"lat2":         {"51.6"},
		"lon2":         {"0.1"},
		"parcelStatus": {"booked"},
	}

	mapIntent := Normalize(params, true)
	assert.True(t, mapIntent.Geo)
	assert.Equal(t, map[string]string{"lat1": "51.4", "lon1": "-0.3", "lat2": "51.6", "lon2": "0.1"}, mapIntent.GeoParams)
	assert.Equal(t, map[string]domain.FilterValue{"parcelStatus": domain.RawValue{"booked"}}, mapIntent.Filters)

	// A plain search treats them as ordinary filters.
	plain := Normalize(params, false)
	assert.Nil(t, plain.GeoParams)
	assert.Contains(t, plain.Filters, "lat1")
}

func TestNormalize_SuffixWithoutName(t *testing.T) {
	in := Normalize(domain.Params{"_range": {"1,2"}}, false)

	assert.Equal(t, domain.RawValue{"1,2"}, in.Filters["_range"])
}
