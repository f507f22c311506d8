package pipedrive

import "encoding/json"

// envelope is the common Pipedrive response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type entity struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type contactValue struct {
	Value   string `json:"value"`
	Primary bool   `json:"primary"`
}

type organizationSearch struct {
	Items []struct {
		Item entity `json:"item"`
	} `json:"items"`
}

// File is an uploaded deal attachment.
type File struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	FileType string `json:"file_type"`
	FileSize int64  `json:"file_size"`
	DealID   int64  `json:"deal_id"`
}
