package dashboard

import (
	"fmt"
	"strings"
)

// QuickFilter narrows designs to one due category or to undefined designs.
type QuickFilter string

const (
	QuickAll       QuickFilter = "all"
	QuickOverdue   QuickFilter = "overdue"
	QuickUpcoming  QuickFilter = "upcoming"
	QuickNoDue     QuickFilter = "noDue"
	QuickUndefined QuickFilter = "undefined"
)

func ParseQuickFilter(s string) (QuickFilter, error) {
	switch q := QuickFilter(s); q {
	case QuickAll, QuickOverdue, QuickUpcoming, QuickNoDue, QuickUndefined:
		return q, nil
	case "":
		return QuickAll, nil
	}
	return "", fmt.Errorf("unknown filter %q", s)
}

type Query struct {
	Text     string
	Designer string
	Quick    QuickFilter
	City     string
}

func (q Query) IsZero() bool {
	return strings.TrimSpace(q.Text) == "" &&
		strings.TrimSpace(q.Designer) == "" &&
		(q.Quick == "" || q.Quick == QuickAll) &&
		q.City == ""
}

// View is a filtered projection of a snapshot with figures recomputed for
// what remains visible.
type View struct {
	Cities        []CitySummary  `json:"cities"`
	Totals        Stats          `json:"totals"`
	LabelCounters []LabelCounter `json:"labelCounters"`
}

// Filter applies q to snap without modifying it. Cities left without designs are dropped.
func Filter(snap *Snapshot, q Query) View {
	text := strings.ToLower(strings.TrimSpace(q.Text))
	designer := strings.ToLower(strings.TrimSpace(q.Designer))
	col := newCollator()

	view := View{Cities: make([]CitySummary, 0, len(snap.Cities))}
	var visible []Design
	for _, city := range snap.Cities {
		if q.City != "" && city.City != q.City {
			continue
		}
		designs := make([]Design, 0, len(city.Designs))
		for _, d := range city.Designs {
			if !matchesQuick(d, q.Quick) {
				continue
			}
			if text != "" && !strings.Contains(searchText(city.City, d), text) {
				continue
			}
			if designer != "" && !strings.Contains(designerText(d), designer) {
				continue
			}
			designs = append(designs, d)
		}
		if len(designs) == 0 {
			continue
		}
		stats := ComputeStats(designs)
		view.Cities = append(view.Cities, CitySummary{
			City:          city.City,
			Source:        city.Source,
			Designs:       designs,
			LabelCounters: countLabels(designs, col),
			Stats:         stats,
		})
		view.Totals = view.Totals.Add(stats)
		visible = append(visible, designs...)
	}
	view.LabelCounters = countLabels(visible, col)
	return view
}

func matchesQuick(d Design, q QuickFilter) bool {
	switch q {
	case "", QuickAll:
		return true
	case QuickUndefined:
		return d.IsUndefined
	}
	return string(d.DueCategory) == string(q)
}

func searchText(city string, d Design) string {
	parts := []string{city, d.Name, d.Description, d.ListName}
	for _, l := range d.Labels {
		parts = append(parts, l.Name)
	}
	for _, f := range d.CustomFields {
		parts = append(parts, f.FieldName, f.Value.String())
	}
	for _, m := range d.Members {
		parts = append(parts, m.FullName, m.Username)
	}
	parts = append(parts, d.Designers...)
	return strings.ToLower(strings.Join(parts, " "))
}

func designerText(d Design) string {
	parts := append([]string{}, d.Designers...)
	for _, m := range d.Members {
		parts = append(parts, m.FullName, m.Username)
	}
	return strings.ToLower(strings.Join(parts, " "))
}
