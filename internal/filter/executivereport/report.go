package executivereport

import "fmt"

// ReportRow accumulates one segment's counters for a single report pass.
// The field names replace the reference implementation's numbered Lua
// table columns (col2, col4, col5, col6, col7, col9) with their meaning.
type ReportRow struct {
	Actives     int64
	Inactives   int64
	New         int64
	FiveOfSeven int64
	Total       int64
	Default     int64
}

// ReportTable maps a "country,channel,os" segment key to the row that
// should receive its counts. Segment keys are produced by SegmentKey.
// Report skips any occupied entry whose segment has no row in the table,
// leaving its dow/dflt state untouched for a later report to pick up.
type ReportTable map[string]*ReportRow

// SegmentKey builds the lookup key Report uses to find a row, mirroring
// the reference implementation's "%d,%d,%d" lua_pushfstring format.
func SegmentKey(country, channel, os int) string {
	return fmt.Sprintf("%d,%d,%d", country, channel, os)
}

// Report walks every occupied entry, folds its activity into the matching
// row of table, and resets the entry's weekly bitmap and default flag so
// the next reporting period starts clean. It is destructive: entries
// whose segment is absent from table are left untouched and reported on
// again the next time Report is called with a table that does include
// them.
func (f *Filter) Report(table ReportTable) {
	f.core.ForEachOccupied(func(_ uint16, p *payload) {
		row, ok := table[SegmentKey(int(p.country), int(p.channel), int(p.os))]
		if !ok {
			return
		}

		active := p.dow & dowMask
		if active != 0 {
			row.Actives++
			if fiveOfSeven(p.dow) {
				row.FiveOfSeven++
			}
		} else {
			row.Inactives++
		}
		if p.dow&newFlagBit != 0 {
			row.New++
		}
		row.Total++
		if p.dflt {
			row.Default++
		}

		p.dow = 0
		p.dflt = false
	})
}
