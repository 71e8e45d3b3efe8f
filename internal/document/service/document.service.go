package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"docsync/internal/document/model"
	"docsync/internal/history"
	"docsync/pkg/apperror"
	"docsync/pkg/logger"

	"github.com/google/uuid"
	"github.com/sahilm/fuzzy"
)

// Store is the persistence the service needs. repository.DocumentRepository
// implements it.
type Store interface {
	ListFolders(ctx context.Context) ([]model.Folder, error)
	CreateFolder(ctx context.Context, id, name string) (model.Folder, error)
	FolderExists(ctx context.Context, id string) (bool, error)
	DeleteFolder(ctx context.Context, id string) ([]string, error)
	ListDocumentsInFolder(ctx context.Context, folderID string) ([]model.Document, error)
	GetDocument(ctx context.Context, id string) (model.Document, error)
	CreateDocument(ctx context.Context, d model.Document) (model.Document, error)
	UpdateContent(ctx context.Context, id, content string) (model.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	SearchDocuments(ctx context.Context, query string) ([]model.Document, error)
	GetHistory(ctx context.Context) ([]model.HistoryEntry, error)
	ReplaceHistory(ctx context.Context, entries []model.HistoryEntry) error
}

// Broadcaster tells connected clients which documents are gone. origin is the
// client id that issued the deletion; it is not notified.
type Broadcaster interface {
	BroadcastDeletion(origin string, ids []string)
}

type DocumentService struct {
	Repo Store
	Hub  Broadcaster

	clock     history.Clock
	historyMu sync.Mutex
}

func NewDocumentService(repo Store, hub Broadcaster) *DocumentService {
	return &DocumentService{Repo: repo, Hub: hub, clock: history.WallClock}
}

func (s *DocumentService) ListFolders(ctx context.Context) ([]model.Folder, error) {
	return s.Repo.ListFolders(ctx)
}

func (s *DocumentService) CreateFolder(ctx context.Context, name string) (model.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Folder{}, apperror.Invalid("name", "folder name is required")
	}
	return s.Repo.CreateFolder(ctx, uuid.NewString(), name)
}

func (s *DocumentService) FolderDocuments(ctx context.Context, folderID string) ([]model.Document, error) {
	exists, err := s.Repo.FolderExists(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperror.NotFound("folder", folderID)
	}
	return s.Repo.ListDocumentsInFolder(ctx, folderID)
}

// DeleteFolder removes the folder with its documents and broadcasts the
// document ids to every other client.
func (s *DocumentService) DeleteFolder(ctx context.Context, origin, folderID string) ([]string, error) {
	ids, err := s.Repo.DeleteFolder(ctx, folderID)
	if err != nil {
		return nil, err
	}
	logger.Sugar.Infof("Deleted folder %s with %d documents", folderID, len(ids))
	s.broadcast(origin, ids)
	return ids, nil
}

func (s *DocumentService) GetDocument(ctx context.Context, id string) (model.Document, error) {
	return s.Repo.GetDocument(ctx, id)
}

func (s *DocumentService) CreateDocument(ctx context.Context, req model.CreateDocumentRequest) (model.Document, error) {
	switch {
	case strings.TrimSpace(req.Title) == "":
		return model.Document{}, apperror.Invalid("title", "title is required")
	case strings.TrimSpace(req.Content) == "":
		return model.Document{}, apperror.Invalid("content", "content is required")
	case req.FolderID == "":
		return model.Document{}, apperror.Invalid("folderId", "a target folder is required")
	}
	return s.Repo.CreateDocument(ctx, model.Document{
		ID:       uuid.NewString(),
		Title:    strings.TrimSpace(req.Title),
		Content:  req.Content,
		FolderID: req.FolderID,
	})
}

func (s *DocumentService) UpdateDocument(ctx context.Context, id, content string) (model.Document, error) {
	return s.Repo.UpdateContent(ctx, id, content)
}

func (s *DocumentService) DeleteDocument(ctx context.Context, origin, id string) error {
	if err := s.Repo.DeleteDocument(ctx, id); err != nil {
		return err
	}
	s.broadcast(origin, []string{id})
	return nil
}

func (s *DocumentService) broadcast(origin string, ids []string) {
	if s.Hub == nil || len(ids) == 0 {
		return
	}
	s.Hub.BroadcastDeletion(origin, ids)
}

func (s *DocumentService) GetHistory(ctx context.Context) ([]model.HistoryEntry, error) {
	entries, err := s.Repo.GetHistory(ctx)
	if err != nil {
		return nil, err
	}
	entries = history.Dedupe(entries)
	history.Order(entries, "")
	if len(entries) > history.MaxEntries {
		entries = entries[:history.MaxEntries]
	}
	return entries, nil
}

// AddHistory records a visit with the same rule the client cache applies.
func (s *DocumentService) AddHistory(ctx context.Context, req model.AddHistoryRequest) (model.HistoryEntry, error) {
	if req.ID == "" {
		return model.HistoryEntry{}, apperror.Invalid("id", "document id is required")
	}
	if strings.TrimSpace(req.Title) == "" {
		return model.HistoryEntry{}, apperror.Invalid("title", "title is required")
	}

	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	entries, err := s.GetHistory(ctx)
	if err != nil {
		return model.HistoryEntry{}, err
	}
	ts := s.clock()
	if len(entries) > 0 && ts <= entries[0].Timestamp {
		ts = entries[0].Timestamp + 1
	}
	e := model.HistoryEntry{ID: req.ID, Title: req.Title, Timestamp: ts}
	if err := s.Repo.ReplaceHistory(ctx, history.Record(entries, e, history.MaxEntries)); err != nil {
		return model.HistoryEntry{}, err
	}
	return e, nil
}

// Search returns documents whose title or content contains query. Title
// matches come first, best fuzzy score first; content-only matches follow in
// store order.
func (s *DocumentService) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.SearchResult{}, nil
	}
	start := time.Now()
	docs, err := s.Repo.SearchDocuments(ctx, query)
	if err != nil {
		return nil, err
	}

	titles := make([]string, len(docs))
	for i, d := range docs {
		titles[i] = d.Title
	}
	ranked := make([]model.Document, 0, len(docs))
	used := make([]bool, len(docs))
	for _, m := range fuzzy.Find(query, titles) {
		ranked = append(ranked, docs[m.Index])
		used[m.Index] = true
	}
	for i, d := range docs {
		if !used[i] {
			ranked = append(ranked, d)
		}
	}

	results := make([]model.SearchResult, len(ranked))
	for i, d := range ranked {
		results[i] = model.SearchResult{ID: d.ID, Title: d.Title, Snippet: Snippet(d.Content, query)}
	}
	logger.Sugar.Debugf("Search %q matched %d documents in %s", query, len(results), time.Since(start))
	return results, nil
}
