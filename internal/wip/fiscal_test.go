package wip

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func marchResolver(now time.Time) *PeriodResolver {
	r := NewPeriodResolver(FiscalCalendar{StartMonth: time.March})
	r.Now = func() time.Time { return now }
	return r
}

func TestResolveFiscalYTD(t *testing.T) {
	r := marchResolver(time.Date(2023, time.June, 15, 0, 0, 0, 0, time.UTC))

	window, err := r.Resolve(PeriodFilter{FiscalYear: "2024", FiscalMonth: "November"})
	require.NoError(t, err)

	assert.Equal(t, ModeFiscal, window.Mode)
	assert.Equal(t, 2024, window.FiscalYear)
	assert.Equal(t, time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC), window.Start)
	assert.Equal(t, time.Date(2023, time.November, 30, 0, 0, 0, 0, time.UTC), window.End)
}

func TestResolveFiscalYTDWrapsCalendarYear(t *testing.T) {
	r := marchResolver(time.Date(2023, time.June, 15, 0, 0, 0, 0, time.UTC))

	// January of FY2024 falls in calendar 2024.
	window, err := r.Resolve(PeriodFilter{FiscalYear: "2024", FiscalMonth: "January"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC), window.End)
}

func TestResolveFullFiscalYear(t *testing.T) {
	r := marchResolver(time.Date(2023, time.June, 15, 0, 0, 0, 0, time.UTC))

	window, err := r.Resolve(PeriodFilter{FiscalYear: "2024"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC), window.End)
}

func TestResolveDefaultsFiscalYearFromClock(t *testing.T) {
	cases := []struct {
		now  time.Time
		want int
	}{
		{time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC), 2024},
		{time.Date(2023, time.February, 28, 0, 0, 0, 0, time.UTC), 2023},
		{time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC), 2024},
	}
	for _, tc := range cases {
		r := marchResolver(tc.now)
		window, err := r.Resolve(PeriodFilter{Mode: "fiscal"})
		require.NoError(t, err)
		assert.Equal(t, tc.want, window.FiscalYear, "now=%s", tc.now)
	}
}

func TestResolveJanuaryStartCalendar(t *testing.T) {
	r := NewPeriodResolver(FiscalCalendar{StartMonth: time.January})
	r.Now = func() time.Time { return time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC) }

	window, err := r.Resolve(PeriodFilter{Mode: "fiscal"})
	require.NoError(t, err)
	assert.Equal(t, 2024, window.FiscalYear)
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), window.Start)
	assert.Equal(t, time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC), window.End)
}

func TestResolveCustomSnapsToWholeMonths(t *testing.T) {
	r := marchResolver(time.Now())

	window, err := r.Resolve(PeriodFilter{Mode: "custom", StartDate: "2023-04-12", EndDate: "2023-06-03"})
	require.NoError(t, err)
	assert.Equal(t, ModeCustom, window.Mode)
	assert.Equal(t, time.Date(2023, time.April, 1, 0, 0, 0, 0, time.UTC), window.Start)
	assert.Equal(t, time.Date(2023, time.June, 30, 0, 0, 0, 0, time.UTC), window.End)
}

func TestResolveCustomRejectsInvertedRange(t *testing.T) {
	r := marchResolver(time.Now())

	_, err := r.Resolve(PeriodFilter{Mode: "custom", StartDate: "2023-06-01", EndDate: "2023-04-01"})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "endDate", vErr.Field)
}

func TestResolveAllTimeWhenNoParameters(t *testing.T) {
	r := marchResolver(time.Now())

	window, err := r.Resolve(PeriodFilter{})
	require.NoError(t, err)
	assert.Equal(t, ModeAllTime, window.Mode)
	assert.False(t, window.Bounded())
	assert.True(t, window.Contains(time.Date(1999, time.January, 1, 0, 0, 0, 0, time.UTC)))
}

func TestResolveRejectsUnknownFiscalMonth(t *testing.T) {
	r := marchResolver(time.Now())

	_, err := r.Resolve(PeriodFilter{FiscalYear: "2024", FiscalMonth: "Brumaire"})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "fiscalMonth", vErr.Field)
	// The message names all twelve accepted values in fiscal order.
	assert.Contains(t, vErr.Message, "March")
	assert.Contains(t, vErr.Message, "February")
	for _, name := range (FiscalCalendar{StartMonth: time.March}).Months() {
		assert.Contains(t, vErr.Message, name)
	}
}

func TestResolveRejectsNonNumericFiscalYear(t *testing.T) {
	r := marchResolver(time.Now())

	_, err := r.Resolve(PeriodFilter{FiscalYear: "twenty-four"})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "fiscalYear", vErr.Field)
}

func TestWindowContainsIsEndInclusive(t *testing.T) {
	r := marchResolver(time.Now())
	window, err := r.Resolve(PeriodFilter{FiscalYear: "2024", FiscalMonth: "November"})
	require.NoError(t, err)

	assert.True(t, window.Contains(time.Date(2023, time.November, 30, 23, 59, 59, 0, time.UTC)))
	assert.False(t, window.Contains(time.Date(2023, time.December, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, window.Contains(time.Date(2023, time.February, 28, 0, 0, 0, 0, time.UTC)))
}

func TestFiscalMonthsOrder(t *testing.T) {
	months := FiscalCalendar{StartMonth: time.March}.Months()
	require.Len(t, months, 12)
	assert.Equal(t, "March", months[0])
	assert.Equal(t, "December", months[9])
	assert.Equal(t, "February", months[11])
}
