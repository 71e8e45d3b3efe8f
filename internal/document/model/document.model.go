package model

import "time"

type Folder struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
}

// Document content is Markdown text.
type Document struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Content   string    `json:"content" yaml:"content"`
	FolderID  string    `json:"folderId" yaml:"folderId"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// HistoryEntry is a visit to a document. Timestamp is milliseconds since epoch.
type HistoryEntry struct {
	ID        string `json:"id" yaml:"id"`
	Title     string `json:"title" yaml:"title"`
	Timestamp int64  `json:"timestamp" yaml:"timestamp"`
}

type SearchResult struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

type CreateFolderRequest struct {
	Name string `json:"name"`
}

type CreateDocumentRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	FolderID string `json:"folderId"`
}

type UpdateDocumentRequest struct {
	Content string `json:"content"`
}

type AddHistoryRequest struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

// DeletedDocuments is the payload of a deletion broadcast.
type DeletedDocuments struct {
	IDs []string `json:"ids"`
}

type DeleteFolderResponse struct {
	Status     string   `json:"status"`
	DeletedIDs []string `json:"deletedIds"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
