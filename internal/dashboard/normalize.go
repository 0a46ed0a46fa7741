package dashboard

import (
	"encoding/json"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/chxlky/trello-citydash/internal/models"
)

// Vocabulary holds the hint lists used by the heuristics. Matching is a
// case and diacritic insensitive substring test.
type Vocabulary struct {
	// Workflow marks list names that look like process stages rather than cities.
	Workflow []string
	// Undefined marks labels flagging a design as undefined.
	Undefined []string
	// Designer marks custom fields naming the people behind a design.
	Designer []string
}

func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Workflow: []string{
			"backlog", "todo", "to do", "doing", "done", "review", "qa",
			"pendiente", "en progreso", "hecho", "bloqueado",
		},
		Undefined: []string{"indefinido", "indefinida", "undefined", "sin definir"},
		Designer:  []string{"disenador", "designer", "autor", "author", "artista", "illustrator"},
	}
}

var (
	imageExtPattern    = regexp.MustCompile(`(?i)\.(png|jpe?g|gif|webp|avif|bmp|svg)(?:\?|$)`)
	designerDelimiters = regexp.MustCompile(`[;,/|]`)
)

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// parseTimestamp accepts the ISO forms Trello emits plus bare dates, which are read as UTC midnight.
func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func timeOrNil(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, ok := parseTimestamp(*s)
	if !ok {
		return nil
	}
	return &t
}

// DecodeCustomFieldValue turns an item into a scalar. List fields resolve the
// option id to its text; other types read the value bag in the order
// text, number, date, checked.
func DecodeCustomFieldValue(field *models.CustomField, item models.CustomFieldItem) Scalar {
	if field != nil && field.Type == "list" {
		for _, opt := range field.Options {
			if item.IDValue != nil && opt.ID == *item.IDValue && opt.Value.Text != nil {
				return StringScalar(*opt.Value.Text)
			}
		}
		if item.IDValue != nil {
			return StringScalar(*item.IDValue)
		}
		return Scalar{}
	}

	v := item.Value
	if v == nil {
		return Scalar{}
	}
	switch {
	case v.Text != nil:
		return StringScalar(*v.Text)
	case v.Number != nil:
		n, err := strconv.ParseFloat(strings.TrimSpace(*v.Number), 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return StringScalar(*v.Number)
		}
		return NumberScalar(n)
	case v.Date != nil:
		return StringScalar(*v.Date)
	case v.Checked != nil:
		return BoolScalar(*v.Checked == "true")
	}
	return Scalar{}
}

func rawCustomFieldValue(item models.CustomFieldItem) json.RawMessage {
	var raw any
	switch {
	case item.Value != nil:
		raw = item.Value
	case item.IDValue != nil:
		raw = *item.IDValue
	default:
		return json.RawMessage("null")
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return json.RawMessage("null")
	}
	return b
}

// NormalizeCustomFields decodes every item of a card against the board definitions.
// Items pointing at unknown definitions keep their id as name and type "unknown".
func NormalizeCustomFields(items []models.CustomFieldItem, defs map[string]*models.CustomField) []CustomFieldValue {
	out := make([]CustomFieldValue, 0, len(items))
	for _, item := range items {
		field := defs[item.IDCustomField]
		v := CustomFieldValue{
			FieldID:   item.IDCustomField,
			FieldName: item.IDCustomField,
			FieldType: "unknown",
			Value:     DecodeCustomFieldValue(field, item),
			RawValue:  rawCustomFieldValue(item),
		}
		if field != nil {
			v.FieldName = field.Name
			v.FieldType = field.Type
		}
		out = append(out, v)
	}
	return out
}

// InferCreatedAt reads the creation time embedded in the first 8 hex
// characters of a Trello object id (Unix seconds).
func InferCreatedAt(cardID string) *time.Time {
	if len(cardID) < 8 {
		return nil
	}
	secs, err := strconv.ParseUint(cardID[:8], 16, 64)
	if err != nil {
		return nil
	}
	t := time.Unix(int64(secs), 0).UTC()
	return &t
}

func looksLikeImage(a models.Attachment) bool {
	if a.MimeType != nil && strings.HasPrefix(strings.ToLower(*a.MimeType), "image/") {
		return true
	}
	return imageExtPattern.MatchString(strings.ToLower(a.Name + " " + a.URL))
}

// PickCoverImageURL prefers the designated cover when it is an image,
// then the first image attachment.
func PickCoverImageURL(card models.Card) *string {
	if card.IDAttachmentCover != nil && *card.IDAttachmentCover != "" {
		for _, a := range card.Attachments {
			if a.ID == *card.IDAttachmentCover && looksLikeImage(a) {
				u := a.URL
				return &u
			}
		}
	}
	for _, a := range card.Attachments {
		if looksLikeImage(a) {
			u := a.URL
			return &u
		}
	}
	return nil
}

// ExtractDesigners unions member names with the values of designer-like
// custom fields, keeping first-seen order.
func ExtractDesigners(members []models.Member, fields []CustomFieldValue, hints []string) []string {
	var names []string
	for _, m := range members {
		name := m.FullName
		if strings.TrimSpace(name) == "" {
			name = m.Username
		}
		names = append(names, name)
	}

	for _, f := range fields {
		if !containsAny(foldToken(f.FieldName), hints) {
			continue
		}
		switch f.Value.Kind {
		case ScalarString:
			names = append(names, designerDelimiters.Split(f.Value.Str, -1)...)
		case ScalarNumber, ScalarBool:
			names = append(names, f.Value.String())
		}
	}
	return uniqueNonEmpty(names)
}

func isUndefinedLabel(l models.Label, hints []string) bool {
	return containsAny(foldToken(l.Name), hints)
}

func normalizeChecklists(raw []models.Checklist) []Checklist {
	out := make([]Checklist, 0, len(raw))
	for _, cl := range raw {
		items := slices.Clone(cl.CheckItems)
		slices.SortStableFunc(items, func(a, b models.CheckItem) int {
			switch {
			case a.Pos < b.Pos:
				return -1
			case a.Pos > b.Pos:
				return 1
			}
			return 0
		})
		list := Checklist{ID: cl.ID, Name: cl.Name, Items: make([]CheckItem, 0, len(items))}
		for _, it := range items {
			list.Items = append(list.Items, CheckItem{
				ID:          it.ID,
				Name:        it.Name,
				State:       it.State,
				Due:         timeOrNil(it.Due),
				DueComplete: it.DueComplete,
				MemberID:    it.IDMember,
				Pos:         it.Pos,
			})
		}
		out = append(out, list)
	}
	return out
}

func normalizeLabels(raw []models.Label) []Label {
	out := make([]Label, 0, len(raw))
	for _, l := range raw {
		out = append(out, Label{ID: l.ID, Name: l.Name, Color: l.Color})
	}
	return out
}

func normalizeMembers(raw []models.Member) []Member {
	out := make([]Member, 0, len(raw))
	for _, m := range raw {
		out = append(out, Member{ID: m.ID, FullName: m.FullName, Username: m.Username})
	}
	return out
}

func normalizeAttachments(raw []models.Attachment) []Attachment {
	out := make([]Attachment, 0, len(raw))
	for _, a := range raw {
		out = append(out, Attachment{ID: a.ID, Name: a.Name, URL: a.URL})
	}
	return out
}
