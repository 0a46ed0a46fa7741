package models

// Card is an open card as returned by GET /boards/{id}/cards with members,
// attachments, checklists and custom field items expanded.
type Card struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Desc              string            `json:"desc"`
	ShortURL          string            `json:"shortUrl"`
	URL               string            `json:"url"`
	IDAttachmentCover *string           `json:"idAttachmentCover"`
	IDList            string            `json:"idList"`
	Labels            []Label           `json:"labels"`
	IDMembers         []string          `json:"idMembers"`
	Members           []Member          `json:"members"`
	Due               *string           `json:"due"`
	DueComplete       bool              `json:"dueComplete"`
	Attachments       []Attachment      `json:"attachments"`
	Checklists        []Checklist       `json:"checklists"`
	CustomFieldItems  []CustomFieldItem `json:"customFieldItems"`
	DateLastActivity  *string           `json:"dateLastActivity"`
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
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	URL      string  `json:"url"`
	MimeType *string `json:"mimeType"`
}

type Checklist struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	CheckItems []CheckItem `json:"checkItems"`
}

// CheckItem state is either "complete" or "incomplete".
type CheckItem struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	State       string  `json:"state"`
	Due         *string `json:"due"`
	DueComplete bool    `json:"dueComplete"`
	IDMember    *string `json:"idMember"`
	Pos         float64 `json:"pos"`
}
