package brevo

import "encoding/json"

// Contact is a Brevo contact as returned by the contacts endpoints.
type Contact struct {
	ID         json.Number    `json:"id"`
	Email      string         `json:"email"`
	Attributes map[string]any `json:"attributes"`
	ListIDs    []int64        `json:"listIds"`
	CreatedAt  string         `json:"createdAt"`
	ModifiedAt string         `json:"modifiedAt"`
}

// CreateContact is the request body for contact creation.
type CreateContact struct {
	Email         string         `json:"email"`
	Attributes    map[string]any `json:"attributes,omitempty"`
	ListIDs       []int64        `json:"listIds,omitempty"`
	UpdateEnabled bool           `json:"updateEnabled"`
}

// UpdateContact is the request body for contact updates.
type UpdateContact struct {
	Attributes map[string]any `json:"attributes,omitempty"`
	ListIDs    []int64        `json:"listIds,omitempty"`
}

// List is a Brevo contact list.
type List struct {
	ID          json.Number `json:"id"`
	Name        string      `json:"name"`
	FolderID    json.Number `json:"folderId"`
	Description string      `json:"description"`
	CreatedAt   string      `json:"createdAt"`
	UpdatedAt   string      `json:"updatedAt"`
}

// CreateList is the request body for list creation.
type CreateList struct {
	Name     string `json:"name"`
	FolderID int64  `json:"folderId,omitempty"`
}

type contactsPage struct {
	Contacts []Contact `json:"contacts"`
	Count    int64     `json:"count"`
}

type listsPage struct {
	Lists []List `json:"lists"`
	Count int64  `json:"count"`
}

type createdID struct {
	ID json.Number `json:"id"`
}

type apiErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
