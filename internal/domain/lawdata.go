package domain

import "time"

// PressItem is a single entry of a ministry press-release RSS feed.
type PressItem struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Description string    `json:"description,omitempty"`
	Published   time.Time `json:"published,omitzero"`
	GUID        string    `json:"guid,omitempty"`
}

// Interpretation is a legal interpretation record (법령해석례) returned by
// the law.go.kr DRF search API.
type Interpretation struct {
	Serial     string `json:"serial"`
	Title      string `json:"title"`
	CaseNo     string `json:"case_no,omitempty"`
	Inquirer   string `json:"inquirer,omitempty"`
	Responder  string `json:"responder,omitempty"`
	ReplyDate  string `json:"reply_date,omitempty"`
	DetailLink string `json:"detail_link,omitempty"`
}

// Bill is a legislative proposal row from the open.assembly.go.kr API.
type Bill struct {
	BillNo      string `json:"bill_no"`
	Name        string `json:"name"`
	Proposer    string `json:"proposer,omitempty"`
	Committee   string `json:"committee,omitempty"`
	ProposeDate string `json:"propose_date,omitempty"`
	Link        string `json:"link,omitempty"`
}
