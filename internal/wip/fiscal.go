package wip

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PeriodMode identifies how the reporting window was derived.
type PeriodMode string

const (
	ModeFiscal  PeriodMode = "FISCAL"
	ModeCustom  PeriodMode = "CUSTOM"
	ModeAllTime PeriodMode = "ALL_TIME"
)

// PeriodWindow is the concrete reporting window a filter resolves to. Start
// and End are inclusive dates; an ALL_TIME window leaves both zero.
type PeriodWindow struct {
	Mode        PeriodMode `json:"mode"`
	Start       time.Time  `json:"startDate,omitzero"`
	End         time.Time  `json:"endDate,omitzero"`
	FiscalYear  int        `json:"fiscalYear,omitempty"`
	FiscalMonth string     `json:"fiscalMonth,omitempty"`
}

// Bounded reports whether the window restricts rows by date at all.
func (w PeriodWindow) Bounded() bool {
	return w.Mode != ModeAllTime
}

// Contains reports whether an observation timestamp falls inside the window.
// End is an inclusive date, so anything before midnight of the next day is in.
func (w PeriodWindow) Contains(t time.Time) bool {
	if !w.Bounded() {
		return true
	}
	if t.Before(w.Start) {
		return false
	}
	return t.Before(w.End.AddDate(0, 0, 1))
}

func (w PeriodWindow) String() string {
	if !w.Bounded() {
		return "all-time"
	}
	return fmt.Sprintf("[%s, %s]", w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"))
}

// FiscalCalendar defines the deployment's fiscal year. StartMonth is the
// calendar month the fiscal year opens with; a fiscal year is labelled by the
// calendar year it ends in (FY2024 with a March start runs 2023-03-01 through
// 2024-02-29), except for January starts, where label and calendar year
// coincide.
type FiscalCalendar struct {
	StartMonth time.Month
}

// Months returns the twelve month names in fiscal order, starting at the
// fiscal year's opening month.
func (c FiscalCalendar) Months() []string {
	out := make([]string, 0, 12)
	for i := 0; i < 12; i++ {
		m := time.Month((int(c.StartMonth)-1+i)%12 + 1)
		out = append(out, m.String())
	}
	return out
}

// FiscalYearFor returns the fiscal year label containing the given instant.
func (c FiscalCalendar) FiscalYearFor(t time.Time) int {
	if c.StartMonth == time.January {
		return t.Year()
	}
	if t.Month() >= c.StartMonth {
		return t.Year() + 1
	}
	return t.Year()
}

// YearStart returns the first day of the labelled fiscal year.
func (c FiscalCalendar) YearStart(fiscalYear int) time.Time {
	year := fiscalYear
	if c.StartMonth != time.January {
		year--
	}
	return time.Date(year, c.StartMonth, 1, 0, 0, 0, 0, time.UTC)
}

// YearEnd returns the last day of the labelled fiscal year.
func (c FiscalCalendar) YearEnd(fiscalYear int) time.Time {
	return c.YearStart(fiscalYear).AddDate(1, 0, -1)
}

// MonthEnd returns the last day of the named calendar month within the
// labelled fiscal year.
func (c FiscalCalendar) MonthEnd(fiscalYear int, month time.Month) time.Time {
	year := c.YearStart(fiscalYear).Year()
	if month < c.StartMonth {
		year++
	}
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1)
}

// PeriodFilter carries the raw, unparsed period parameters from the caller.
type PeriodFilter struct {
	Mode        string
	FiscalYear  string
	FiscalMonth string
	StartDate   string
	EndDate     string
}

func (f PeriodFilter) empty() bool {
	return f.FiscalYear == "" && f.FiscalMonth == "" && f.StartDate == "" && f.EndDate == ""
}

// PeriodResolver turns filter parameters into a concrete window. The clock is
// injected so "current fiscal year" defaulting never reads ambient state.
type PeriodResolver struct {
	Calendar FiscalCalendar
	Now      func() time.Time
}

// NewPeriodResolver builds a resolver on the given calendar using UTC wall
// time for defaults.
func NewPeriodResolver(cal FiscalCalendar) *PeriodResolver {
	return &PeriodResolver{Calendar: cal, Now: func() time.Time { return time.Now().UTC() }}
}

// Resolve computes the reporting window for the filter. No parameters at all
// yields the unbounded all-time window used by header and summary views.
func (r *PeriodResolver) Resolve(f PeriodFilter) (PeriodWindow, error) {
	if f.Mode == "" && f.empty() {
		return PeriodWindow{Mode: ModeAllTime}, nil
	}

	if strings.EqualFold(f.Mode, "custom") {
		return r.resolveCustom(f)
	}
	return r.resolveFiscal(f)
}

func (r *PeriodResolver) resolveCustom(f PeriodFilter) (PeriodWindow, error) {
	if f.StartDate == "" || f.EndDate == "" {
		return PeriodWindow{}, &ValidationError{Field: "startDate", Message: "custom mode requires both startDate and endDate"}
	}
	start, err := time.Parse("2006-01-02", f.StartDate)
	if err != nil {
		return PeriodWindow{}, &ValidationError{Field: "startDate", Message: "must be formatted as YYYY-MM-DD"}
	}
	end, err := time.Parse("2006-01-02", f.EndDate)
	if err != nil {
		return PeriodWindow{}, &ValidationError{Field: "endDate", Message: "must be formatted as YYYY-MM-DD"}
	}
	// Custom windows snap outward to whole months.
	start = time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1)
	if end.Before(start) {
		return PeriodWindow{}, &ValidationError{Field: "endDate", Message: "endDate precedes startDate"}
	}
	return PeriodWindow{Mode: ModeCustom, Start: start, End: end}, nil
}

func (r *PeriodResolver) resolveFiscal(f PeriodFilter) (PeriodWindow, error) {
	fiscalYear := r.Calendar.FiscalYearFor(r.Now())
	if f.FiscalYear != "" {
		parsed, err := strconv.Atoi(f.FiscalYear)
		if err != nil {
			return PeriodWindow{}, &ValidationError{Field: "fiscalYear", Message: "must be a number"}
		}
		fiscalYear = parsed
	}

	window := PeriodWindow{
		Mode:       ModeFiscal,
		FiscalYear: fiscalYear,
		Start:      r.Calendar.YearStart(fiscalYear),
		End:        r.Calendar.YearEnd(fiscalYear),
	}
	if f.FiscalMonth == "" {
		return window, nil
	}

	month, ok := parseMonthName(f.FiscalMonth)
	if !ok {
		return PeriodWindow{}, &ValidationError{
			Field:   "fiscalMonth",
			Message: "must be one of " + strings.Join(r.Calendar.Months(), ", "),
		}
	}
	// Fiscal YTD: the window stays anchored at fiscal-year start and is
	// clamped to the end of the requested month.
	window.FiscalMonth = month.String()
	window.End = r.Calendar.MonthEnd(fiscalYear, month)
	return window, nil
}

func parseMonthName(name string) (time.Month, bool) {
	for m := time.January; m <= time.December; m++ {
		if strings.EqualFold(name, m.String()) {
			return m, true
		}
	}
	return 0, false
}
