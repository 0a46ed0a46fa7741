package models

type List struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Closed bool    `json:"closed"`
	Pos    float64 `json:"pos"`
}

// CustomField type is one of text, number, date, checkbox or list.
// Options are only populated for list fields.
type CustomField struct {
	ID      string              `json:"id"`
	Name    string              `json:"name"`
	Type    string              `json:"type"`
	Options []CustomFieldOption `json:"options"`
}

type CustomFieldOption struct {
	ID    string `json:"id"`
	Value struct {
		Text *string `json:"text"`
	} `json:"value"`
}

// CustomFieldItem references a CustomField by id. List fields carry the
// chosen option in IDValue, every other type carries a value bag.
type CustomFieldItem struct {
	ID            string            `json:"id"`
	IDCustomField string            `json:"idCustomField"`
	IDValue       *string           `json:"idValue"`
	Value         *CustomFieldValue `json:"value"`
}

// CustomFieldValue is the raw value bag; Trello encodes every member as a string.
type CustomFieldValue struct {
	Text    *string `json:"text,omitempty"`
	Number  *string `json:"number,omitempty"`
	Date    *string `json:"date,omitempty"`
	Checked *string `json:"checked,omitempty"`
}

// Board bundles the three payloads one pipeline run needs.
type Board struct {
	ID           string
	Lists        []List
	CustomFields []CustomField
	Cards        []Card
}
