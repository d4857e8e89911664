// Package pivot reshapes long forecast rows into a wide park-by-date table.
//
// Rows are filtered to the selected dates, grouped by park key, then by date,
// and each (park, date) cell holds the minimum chance of precipitation seen.
package pivot

import (
	"encoding/json"
	"sort"
	"time"

	"park-rain-watch/internal/models"
)

// KeyColumns are the flat column names of the park key, in output order.
var KeyColumns = []string{"name", "lat", "lon", "miles_from_pgh"}

// Row is one park of a pivot table. Cells is aligned with Table.Dates; a nil
// cell means the park has no reading for that date.
type Row struct {
	Key   models.ParkKey
	Cells []*float64
}

// Table is a sparse park-by-date table.
type Table struct {
	Dates []string
	Rows  []Row
}

// Pivot builds the table for the given date selection. The selection is a set;
// duplicates and order in selectedDates don't matter.
func Pivot(rows []models.DerivedRecord, selectedDates []string) Table {
	selected := make(map[string]struct{}, len(selectedDates))
	for _, d := range selectedDates {
		selected[d] = struct{}{}
	}

	groups := make(map[models.ParkKey]map[string]float64)
	var seenDates []string
	dateSeen := make(map[string]struct{})

	for _, r := range rows {
		if _, ok := selected[r.Date]; !ok {
			continue
		}

		key := r.Key()
		byDate, ok := groups[key]
		if !ok {
			byDate = make(map[string]float64)
			groups[key] = byDate
		}
		if cur, ok := byDate[r.Date]; !ok || r.ChanceOfPrecipitation < cur {
			byDate[r.Date] = r.ChanceOfPrecipitation
		}

		if _, ok := dateSeen[r.Date]; !ok {
			dateSeen[r.Date] = struct{}{}
			seenDates = append(seenDates, r.Date)
		}
	}

	dates := OrderDates(seenDates)

	keys := make([]models.ParkKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	table := Table{
		Dates: dates,
		Rows:  make([]Row, 0, len(keys)),
	}
	for _, k := range keys {
		byDate := groups[k]
		cells := make([]*float64, len(dates))
		for i, d := range dates {
			if v, ok := byDate[d]; ok {
				v := v
				cells[i] = &v
			}
		}
		table.Rows = append(table.Rows, Row{Key: k, Cells: cells})
	}

	return table
}

// Columns returns the flat column list: the key columns then one per date.
func (t Table) Columns() []string {
	cols := make([]string, 0, len(KeyColumns)+len(t.Dates))
	cols = append(cols, KeyColumns...)
	return append(cols, t.Dates...)
}

// Values returns row i as flat values aligned with Columns. Missing cells are nil.
func (t Table) Values(i int) []any {
	r := t.Rows[i]
	vals := make([]any, 0, len(KeyColumns)+len(r.Cells))
	vals = append(vals, r.Key.ParkName, r.Key.Latitude, r.Key.Longitude, r.Key.Distance)
	for _, c := range r.Cells {
		if c == nil {
			vals = append(vals, nil)
			continue
		}
		vals = append(vals, *c)
	}
	return vals
}

// Cell looks up the value for a park and date.
func (t Table) Cell(key models.ParkKey, date string) (float64, bool) {
	col := -1
	for i, d := range t.Dates {
		if d == date {
			col = i
			break
		}
	}
	if col < 0 {
		return 0, false
	}
	for _, r := range t.Rows {
		if r.Key == key {
			if c := r.Cells[col]; c != nil {
				return *c, true
			}
			return 0, false
		}
	}
	return 0, false
}

// MarshalJSON encodes the table as {"columns": [...], "rows": [[...], ...]}
// with null for missing cells, so column order survives encoding.
func (t Table) MarshalJSON() ([]byte, error) {
	rows := make([][]any, len(t.Rows))
	for i := range t.Rows {
		rows[i] = t.Values(i)
	}
	return json.Marshal(struct {
		Columns []string `json:"columns"`
		Rows    [][]any  `json:"rows"`
	}{
		Columns: t.Columns(),
		Rows:    rows,
	})
}

var dayLayouts = []string{
	"Monday, Jan 2, 2006",
	"Monday, January 2, 2006",
	"Monday, Jan 2",
	"Monday, January 2",
	"Mon, Jan 2",
	"2006-01-02",
}

func parseDayLabel(label string) (time.Time, bool) {
	for _, layout := range dayLayouts {
		if t, err := time.Parse(layout, label); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// halfYear is the gap past which yearless dates are taken to wrap into the next year.
const halfYear = 183 * 24 * time.Hour

// OrderDates sorts date labels chronologically. Labels without a year that
// span more than half a year are treated as wrapping from December into
// January. Unparseable labels follow the parseable ones in their input order,
// and ties keep input order.
func OrderDates(dates []string) []string {
	type parsed struct {
		label string
		at    time.Time
	}

	var known []parsed
	var unknown []string
	for _, d := range dates {
		if at, ok := parseDayLabel(d); ok {
			known = append(known, parsed{label: d, at: at})
		} else {
			unknown = append(unknown, d)
		}
	}

	var minYearless, maxYearless time.Time
	haveYearless := false
	for _, p := range known {
		if p.at.Year() != 0 {
			continue
		}
		if !haveYearless || p.at.Before(minYearless) {
			minYearless = p.at
		}
		if !haveYearless || p.at.After(maxYearless) {
			maxYearless = p.at
		}
		haveYearless = true
	}
	if haveYearless && maxYearless.Sub(minYearless) > halfYear {
		for i := range known {
			if known[i].at.Year() == 0 && known[i].at.Month() <= time.June {
				known[i].at = known[i].at.AddDate(1, 0, 0)
			}
		}
	}

	sort.SliceStable(known, func(i, j int) bool { return known[i].at.Before(known[j].at) })

	ordered := make([]string, 0, len(dates))
	for _, p := range known {
		ordered = append(ordered, p.label)
	}
	return append(ordered, unknown...)
}
