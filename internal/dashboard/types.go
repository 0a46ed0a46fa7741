package dashboard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

const (
	// NoCity is the city every design falls back to when its strategy yields nothing.
	NoCity = "Sin ciudad"
	// NoList is shown when a card points at a list that was not fetched.
	NoList = "Sin lista"
	// UnnamedLabel names counters for labels without a name.
	UnnamedLabel = "Sin nombre"
)

type CityMode string

const (
	CityModeAuto        CityMode = "auto"
	CityModeList        CityMode = "list"
	CityModeCustomField CityMode = "customField"
	CityModeLabel       CityMode = "label"
)

func ParseCityMode(s string) (CityMode, error) {
	switch m := CityMode(s); m {
	case CityModeAuto, CityModeList, CityModeCustomField, CityModeLabel:
		return m, nil
	case "":
		return CityModeAuto, nil
	}
	return "", fmt.Errorf("unknown city mode %q (want auto, list, customField or label)", s)
}

type DueCategory string

const (
	DueOverdue  DueCategory = "overdue"
	DueUpcoming DueCategory = "upcoming"
	DueNoDue    DueCategory = "noDue"
	DueNone     DueCategory = "none"
)

type CreatedAtSource string

const (
	CreatedAtFromCardID CreatedAtSource = "cardId"
	CreatedAtUnknown    CreatedAtSource = "unknown"
)

type ScalarKind uint8

const (
	ScalarNull ScalarKind = iota
	ScalarString
	ScalarNumber
	ScalarBool
)

// Scalar is a decoded custom field value: a string, a number, a boolean or null.
type Scalar struct {
	Kind ScalarKind
	Str  string
	Num  float64
	Bool bool
}

func StringScalar(s string) Scalar { return Scalar{Kind: ScalarString, Str: s} }

func NumberScalar(n float64) Scalar { return Scalar{Kind: ScalarNumber, Num: n} }

func BoolScalar(b bool) Scalar { return Scalar{Kind: ScalarBool, Bool: b} }

func (s Scalar) IsNull() bool { return s.Kind == ScalarNull }

// String renders the scalar the way it is shown and searched; null is empty.
func (s Scalar) String() string {
	switch s.Kind {
	case ScalarString:
		return s.Str
	case ScalarNumber:
		return strconv.FormatFloat(s.Num, 'f', -1, 64)
	case ScalarBool:
		return strconv.FormatBool(s.Bool)
	}
	return ""
}

func (s Scalar) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case ScalarString:
		return json.Marshal(s.Str)
	case ScalarNumber:
		if math.IsNaN(s.Num) || math.IsInf(s.Num, 0) {
			return json.Marshal(s.String())
		}
		return json.Marshal(s.Num)
	case ScalarBool:
		return json.Marshal(s.Bool)
	}
	return []byte("null"), nil
}

func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = Scalar{}
		return nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case string:
		*s = StringScalar(t)
	case float64:
		*s = NumberScalar(t)
	case bool:
		*s = BoolScalar(t)
	default:
		return fmt.Errorf("custom field value must be a scalar, got %s", data)
	}
	return nil
}

type Label struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Color *string `json:"color"`
}

type Member struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Username string `json:"username"`
}

type Attachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

type CheckItem struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	State       string     `json:"state"`
	Due         *time.Time `json:"due"`
	DueComplete bool       `json:"dueComplete"`
	MemberID    *string    `json:"idMember"`
	Pos         float64    `json:"pos"`
}

type Checklist struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Items []CheckItem `json:"items"`
}

type CustomFieldValue struct {
	FieldID   string          `json:"fieldId"`
	FieldName string          `json:"fieldName"`
	FieldType string          `json:"fieldType"`
	Value     Scalar          `json:"value"`
	RawValue  json.RawMessage `json:"rawValue"`
}

// Design is a normalized card. It is never mutated after the pipeline builds it.
type Design struct {
	ID               string             `json:"id"`
	Name             string             `json:"name"`
	Description      string             `json:"description"`
	ShortURL         string             `json:"shortUrl"`
	URL              string             `json:"url"`
	CoverImageURL    *string            `json:"coverImageUrl"`
	ListID           string             `json:"listId"`
	ListName         string             `json:"listName"`
	City             string             `json:"city"`
	CitySource       CityMode           `json:"citySource"`
	Due              *time.Time         `json:"due"`
	DueComplete      bool               `json:"dueComplete"`
	DueCategory      DueCategory        `json:"dueCategory"`
	IsUndefined      bool               `json:"isUndefined"`
	Labels           []Label            `json:"labels"`
	Designers        []string           `json:"designers"`
	MemberRefs       []string           `json:"memberRefs"`
	Members          []Member           `json:"members"`
	Attachments      []Attachment       `json:"attachments"`
	Checklists       []Checklist        `json:"checklists"`
	CustomFields     []CustomFieldValue `json:"customFields"`
	DateLastActivity *time.Time         `json:"dateLastActivity"`
	CreatedAt        *time.Time         `json:"createdAt"`
	CreatedAtSource  CreatedAtSource    `json:"createdAtSource"`
}

type Stats struct {
	Total          int `json:"total"`
	Overdue        int `json:"overdue"`
	Upcoming       int `json:"upcoming"`
	NoDue          int `json:"noDue"`
	UndefinedCount int `json:"undefinedCount"`
}

func (s Stats) Add(o Stats) Stats {
	return Stats{
		Total:          s.Total + o.Total,
		Overdue:        s.Overdue + o.Overdue,
		Upcoming:       s.Upcoming + o.Upcoming,
		NoDue:          s.NoDue + o.NoDue,
		UndefinedCount: s.UndefinedCount + o.UndefinedCount,
	}
}

type LabelCounter struct {
	Key   string  `json:"key"`
	Name  string  `json:"name"`
	Color *string `json:"color"`
	Count int     `json:"count"`
}

// CitySummary holds the designs sharing one resolved city. Designs is never empty.
type CitySummary struct {
	City          string         `json:"city"`
	Source        CityMode       `json:"source"`
	Designs       []Design       `json:"designs"`
	LabelCounters []LabelCounter `json:"labelCounters"`
	Stats         Stats          `json:"stats"`
}

// Snapshot is the complete result of one pipeline run.
type Snapshot struct {
	BoardID            string         `json:"boardId"`
	FetchedAt          time.Time      `json:"fetchedAt"`
	CityModeResolved   CityMode       `json:"cityModeResolved"`
	CityFieldName      string         `json:"cityFieldName"`
	UpcomingDaysWindow int            `json:"upcomingDaysWindow"`
	Totals             Stats          `json:"totals"`
	LabelCounters      []LabelCounter `json:"labelCounters"`
	Cities             []CitySummary  `json:"cities"`
}

// City returns the summary for name, if present.
func (s *Snapshot) City(name string) (CitySummary, bool) {
	for _, c := range s.Cities {
		if c.City == name {
			return c, true
		}
	}
	return CitySummary{}, false
}
