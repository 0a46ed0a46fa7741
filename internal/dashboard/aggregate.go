package dashboard

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/collate"
)

// ComputeStats counts designs per due category in a single pass.
func ComputeStats(designs []Design) Stats {
	var s Stats
	for _, d := range designs {
		s.Total++
		switch d.DueCategory {
		case DueOverdue:
			s.Overdue++
		case DueUpcoming:
			s.Upcoming++
		case DueNoDue:
			s.NoDue++
		}
		if d.IsUndefined {
			s.UndefinedCount++
		}
	}
	return s
}

// labelKey identifies a label: its id, or folded name plus color when the id is missing.
func labelKey(l Label) string {
	if l.ID != "" {
		return l.ID
	}
	color := "none"
	if l.Color != nil {
		color = *l.Color
	}
	return foldToken(l.Name) + "|" + color
}

// CountLabels counts label occurrences across designs, sorted by count
// descending then name.
func CountLabels(designs []Design) []LabelCounter {
	return countLabels(designs, newCollator())
}

func countLabels(designs []Design, col *collate.Collator) []LabelCounter {
	index := make(map[string]int)
	counters := make([]LabelCounter, 0)
	for _, d := range designs {
		for _, l := range d.Labels {
			key := labelKey(l)
			if i, ok := index[key]; ok {
				counters[i].Count++
				continue
			}
			name := strings.TrimSpace(l.Name)
			if name == "" {
				name = UnnamedLabel
			}
			index[key] = len(counters)
			counters = append(counters, LabelCounter{Key: key, Name: name, Color: l.Color, Count: 1})
		}
	}
	slices.SortStableFunc(counters, func(a, b LabelCounter) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		return col.CompareString(a.Name, b.Name)
	})
	return counters
}

func compareDesigns(col *collate.Collator) func(a, b Design) int {
	return func(a, b Design) int {
		switch {
		case a.Due != nil && b.Due != nil:
			if c := a.Due.Compare(*b.Due); c != 0 {
				return c
			}
		case a.Due != nil:
			return -1
		case b.Due != nil:
			return 1
		}
		if c := col.CompareString(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	}
}

// SortDesigns orders designs by due date ascending, undated last, then by name.
func SortDesigns(designs []Design) {
	slices.SortStableFunc(designs, compareDesigns(newCollator()))
}

// Aggregate groups designs by city and derives per-city and board-wide
// figures. Board totals are the sum of the city stats.
func Aggregate(designs []Design, source CityMode) (cities []CitySummary, totals Stats, labels []LabelCounter) {
	col := newCollator()

	groups := make(map[string][]Design)
	for _, d := range designs {
		groups[d.City] = append(groups[d.City], d)
	}

	cities = make([]CitySummary, 0, len(groups))
	for city, group := range groups {
		slices.SortStableFunc(group, compareDesigns(col))
		summary := CitySummary{
			City:          city,
			Source:        source,
			Designs:       group,
			LabelCounters: countLabels(group, col),
			Stats:         ComputeStats(group),
		}
		totals = totals.Add(summary.Stats)
		cities = append(cities, summary)
	}
	slices.SortFunc(cities, func(a, b CitySummary) int {
		if c := col.CompareString(a.City, b.City); c != 0 {
			return c
		}
		return strings.Compare(a.City, b.City)
	})

	return cities, totals, countLabels(designs, col)
}
