// Package workspace holds the folder and document views of one client session
// and keeps them, the history cache and the deletion notifier consistent with
// the repository.
//
// Every method may be called from its own goroutine. Repository calls are made
// without holding the workspace lock; when a call resolves, its result is
// applied only if no newer request for the same view was issued meanwhile.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"docsync/internal/document/model"
	"docsync/internal/history"
	"docsync/internal/notifier"
	"docsync/pkg/apperror"
	"docsync/pkg/logger"
)

// Repository is the durable store of folders and documents.
type Repository interface {
	ListFolders(ctx context.Context) ([]model.Folder, error)
	ListDocumentsInFolder(ctx context.Context, folderID string) ([]model.Document, error)
	GetDocument(ctx context.Context, id string) (model.Document, error)
	CreateFolder(ctx context.Context, name string) (model.Folder, error)
	// DeleteFolder returns the ids of the documents removed with the folder.
	DeleteFolder(ctx context.Context, id string) ([]string, error)
	CreateDocument(ctx context.Context, req model.CreateDocumentRequest) (model.Document, error)
	UpdateDocument(ctx context.Context, id, content string) (model.Document, error)
	DeleteDocument(ctx context.Context, id string) error
}

// HistoryStore persists visits. Implementations apply history.Record.
type HistoryStore interface {
	GetHistory(ctx context.Context) ([]model.HistoryEntry, error)
	AddHistoryEntry(ctx context.Context, id, title string) (model.HistoryEntry, error)
}

type Options struct {
	Repo Repository
	// History is optional; without it visits are only kept in memory.
	History  HistoryStore
	Notifier *notifier.Notifier
	Cache    *history.Cache
	Reporter Reporter
}

type Workspace struct {
	repo        Repository
	store       HistoryStore
	notifier    *notifier.Notifier
	cache       *history.Cache
	reporter    Reporter
	unsubscribe func()

	mu         sync.Mutex
	folders    []model.Folder
	folderID   string
	documentID string
	docs       []model.Document
	draft      string
	hasDraft   bool
	deleted    notifier.IDSet
	folderGen  uint64
	selectGen  uint64
}

func New(opts Options) *Workspace {
	w := &Workspace{
		repo:     opts.Repo,
		store:    opts.History,
		notifier: opts.Notifier,
		cache:    opts.Cache,
		reporter: opts.Reporter,
		deleted:  notifier.NewIDSet(),
	}
	if w.notifier == nil {
		w.notifier = notifier.New()
	}
	if w.cache == nil {
		w.cache = history.NewCache(history.MaxEntries, nil)
	}
	if w.reporter == nil {
		w.reporter = discardReporter{}
	}
	w.unsubscribe = w.notifier.Subscribe(w.applyDeletion)
	return w
}

// Close detaches the workspace from the notifier.
func (w *Workspace) Close() {
	w.unsubscribe()
}

func (w *Workspace) Notifier() *notifier.Notifier { return w.notifier }

func (w *Workspace) History() *history.Cache { return w.cache }

func (w *Workspace) LoadFolders(ctx context.Context) error {
	folders, err := w.repo.ListFolders(ctx)
	if err != nil {
		return w.fail("load folders", err)
	}

	w.mu.Lock()
	w.folders = folders
	w.mu.Unlock()
	return nil
}

// LoadHistory replaces the history cache with the persisted visits.
func (w *Workspace) LoadHistory(ctx context.Context) error {
	if w.store == nil {
		return nil
	}
	entries, err := w.store.GetHistory(ctx)
	if err != nil {
		return w.fail("load history", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.cache.Load(slices.DeleteFunc(entries, func(e model.HistoryEntry) bool {
		return w.deleted.Has(e.ID)
	}))
	return nil
}

func (w *Workspace) CreateFolder(ctx context.Context, name string) (model.Folder, error) {
	if strings.TrimSpace(name) == "" {
		return model.Folder{}, w.fail("create folder", apperror.Invalid("name", "folder name is required"))
	}

	folder, err := w.repo.CreateFolder(ctx, name)
	if err != nil {
		return model.Folder{}, w.fail("create folder", err)
	}

	w.mu.Lock()
	w.folders = append(w.folders, folder)
	w.mu.Unlock()
	return folder, nil
}

// SelectFolder clears the working set and the selected document, then loads
// the documents of folderID. An empty folderID only clears.
func (w *Workspace) SelectFolder(ctx context.Context, folderID string) error {
	w.mu.Lock()
	w.folderGen++
	w.selectGen++
	gen := w.folderGen
	w.folderID = folderID
	w.docs = nil
	w.clearSelectionLocked()
	w.mu.Unlock()

	if folderID == "" {
		return nil
	}

	docs, err := w.repo.ListDocumentsInFolder(ctx, folderID)

	w.mu.Lock()
	if gen != w.folderGen {
		w.mu.Unlock()
		logger.Sugar.Debugf("Discarding documents of folder %s: selection changed", folderID)
		return apperror.ErrSuperseded
	}
	if err != nil {
		w.mu.Unlock()
		return w.fail("load documents", err)
	}
	w.docs = slices.DeleteFunc(docs, func(d model.Document) bool {
		return w.deleted.Has(d.ID)
	})
	w.mu.Unlock()
	return nil
}

// SelectDocument makes id the selected document, fetching it first when it is
// not in the working set, and records the visit.
func (w *Workspace) SelectDocument(ctx context.Context, id string) error {
	if id == "" {
		w.mu.Lock()
		w.selectGen++
		w.clearSelectionLocked()
		w.mu.Unlock()
		return nil
	}

	w.mu.Lock()
	if w.deleted.Has(id) {
		w.mu.Unlock()
		return w.fail("open document", apperror.NotFound("document", id))
	}
	w.selectGen++
	gen, folderGen := w.selectGen, w.folderGen
	doc, found := w.findLocked(id)
	w.mu.Unlock()

	var err error
	if !found {
		doc, err = w.repo.GetDocument(ctx, id)
	}

	w.mu.Lock()
	if gen != w.selectGen || folderGen != w.folderGen {
		w.mu.Unlock()
		logger.Sugar.Debugf("Discarding document %s: selection changed", id)
		return apperror.ErrSuperseded
	}
	if err == nil && w.deleted.Has(id) {
		err = apperror.NotFound("document", id)
	}
	if err != nil {
		w.mu.Unlock()
		return w.fail("open document", err)
	}
	if _, present := w.findLocked(id); !present {
		w.docs = append(w.docs, doc)
	}
	if w.documentID != id {
		w.clearSelectionLocked()
		w.documentID = id
	}
	// Recorded under the workspace lock so a concurrent deletion either sees
	// the entry and purges it, or has already tombstoned the id.
	w.cache.RecordVisit(doc.ID, doc.Title)
	w.mu.Unlock()

	if w.store != nil {
		if _, err := w.store.AddHistoryEntry(ctx, doc.ID, doc.Title); err != nil {
			w.fail("record visit", err)
		}
	}
	return nil
}

func (w *Workspace) CreateDocument(ctx context.Context, req model.CreateDocumentRequest) (model.Document, error) {
	if err := validateCreate(req); err != nil {
		return model.Document{}, w.fail("create document", err)
	}

	doc, err := w.repo.CreateDocument(ctx, req)
	if err != nil {
		return model.Document{}, w.fail("create document", err)
	}

	w.mu.Lock()
	if _, present := w.findLocked(doc.ID); !present && !w.deleted.Has(doc.ID) {
		w.docs = append(w.docs, doc)
	}
	w.mu.Unlock()
	return doc, nil
}

func validateCreate(req model.CreateDocumentRequest) error {
	switch {
	case strings.TrimSpace(req.Title) == "":
		return apperror.Invalid("title", "title is required")
	case strings.TrimSpace(req.Content) == "":
		return apperror.Invalid("content", "content is required")
	case req.FolderID == "":
		return apperror.Invalid("folderId", "a target folder is required")
	}
	return nil
}

// SetDraft buffers an edit of the selected document. Nothing is written until
// CommitDraft.
func (w *Workspace) SetDraft(content string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.selectedLocked(); !ok {
		return apperror.Invalid("document", "no document selected")
	}
	w.draft = content
	w.hasDraft = true
	return nil
}

func (w *Workspace) Draft() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft, w.hasDraft
}

// CommitDraft saves the buffered edit. A draft equal to the stored content is
// discarded without a write.
func (w *Workspace) CommitDraft(ctx context.Context) (model.Document, error) {
	w.mu.Lock()
	doc, ok := w.selectedLocked()
	draft, hasDraft := w.draft, w.hasDraft
	if ok && hasDraft && draft == doc.Content {
		w.draft, w.hasDraft = "", false
		hasDraft = false
	}
	w.mu.Unlock()

	if !ok {
		return model.Document{}, w.fail("save document", apperror.Invalid("document", "no document selected"))
	}
	if !hasDraft {
		return doc, nil
	}
	return w.UpdateDocument(ctx, draft)
}

// UpdateDocument saves content to the selected document and replaces the
// working-set entry with the stored version.
func (w *Workspace) UpdateDocument(ctx context.Context, content string) (model.Document, error) {
	w.mu.Lock()
	doc, ok := w.selectedLocked()
	w.mu.Unlock()
	if !ok {
		return model.Document{}, w.fail("save document", apperror.Invalid("document", "no document selected"))
	}

	updated, err := w.repo.UpdateDocument(ctx, doc.ID, content)
	if err != nil {
		return model.Document{}, w.fail("save document", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.deleted.Has(doc.ID) {
		return model.Document{}, apperror.NotFound("document", doc.ID)
	}
	for i := range w.docs {
		if w.docs[i].ID == updated.ID {
			w.docs[i] = updated
		}
	}
	if w.documentID == doc.ID && w.hasDraft && w.draft == content {
		w.draft, w.hasDraft = "", false
	}
	return updated, nil
}

// DeleteDocument removes id from the repository and publishes it. The views
// are updated by the deletion subscribers, this workspace included.
func (w *Workspace) DeleteDocument(ctx context.Context, id string) error {
	if id == "" {
		return w.fail("delete document", apperror.Invalid("id", "document id is required"))
	}
	if err := w.repo.DeleteDocument(ctx, id); err != nil {
		return w.fail("delete document", err)
	}
	logger.Sugar.Infof("Deleted document %s", id)
	w.notifier.Publish(notifier.NewIDSet(id))
	return nil
}

// DeleteFolder removes folderID and publishes every document it owned as
// deleted, in a single notification.
func (w *Workspace) DeleteFolder(ctx context.Context, folderID string) error {
	if folderID == "" {
		return w.fail("delete folder", apperror.Invalid("id", "folder id is required"))
	}

	owned, err := w.repo.ListDocumentsInFolder(ctx, folderID)
	if err != nil {
		return w.fail("delete folder", err)
	}
	deletedIDs, err := w.repo.DeleteFolder(ctx, folderID)
	if err != nil {
		return w.fail("delete folder", err)
	}

	removed := notifier.NewIDSet(deletedIDs...)
	for _, d := range owned {
		removed.Add(d.ID)
	}

	w.mu.Lock()
	// Documents created or fetched after the listing above are owned too.
	for _, d := range w.docs {
		if d.FolderID == folderID {
			removed.Add(d.ID)
		}
	}
	w.folders = slices.DeleteFunc(w.folders, func(f model.Folder) bool { return f.ID == folderID })
	if w.folderID == folderID {
		w.folderGen++
		w.selectGen++
		w.folderID = ""
		w.docs = nil
		w.clearSelectionLocked()
	}
	w.mu.Unlock()

	logger.Sugar.Infof("Deleted folder %s with %d documents", folderID, removed.Len())
	w.notifier.Publish(removed)
	return nil
}

func (w *Workspace) applyDeletion(deleted notifier.IDSet) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for id := range deleted {
		w.deleted.Add(id)
	}
	w.docs = slices.DeleteFunc(w.docs, func(d model.Document) bool { return deleted.Has(d.ID) })
	if deleted.Has(w.documentID) {
		w.clearSelectionLocked()
	}
	w.cache.Purge(deleted)
}

func (w *Workspace) Folders() []model.Folder {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.folders)
}

// Documents returns the whole working set.
func (w *Workspace) Documents() []model.Document {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.docs)
}

// FolderDocuments returns the working-set documents owned by the selected
// folder, the list a folder view displays.
func (w *Workspace) FolderDocuments() []model.Document {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := []model.Document{}
	for _, d := range w.docs {
		if w.folderID != "" && d.FolderID == w.folderID {
			out = append(out, d)
		}
	}
	return out
}

func (w *Workspace) SelectedFolder() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.folderID
}

func (w *Workspace) SelectedDocument() (model.Document, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selectedLocked()
}

// Recent lists the history with the selected document pinned first.
func (w *Workspace) Recent() []model.HistoryEntry {
	w.mu.Lock()
	selected := w.documentID
	w.mu.Unlock()
	return w.cache.List(selected)
}

type Snapshot struct {
	Folders          []model.Folder       `yaml:"folders"`
	SelectedFolder   string               `yaml:"selectedFolder"`
	SelectedDocument string               `yaml:"selectedDocument"`
	Documents        []model.Document     `yaml:"documents"`
	Recent           []model.HistoryEntry `yaml:"recent"`
	Draft            *string              `yaml:"draft,omitempty"`
}

func (w *Workspace) Snapshot() Snapshot {
	w.mu.Lock()
	s := Snapshot{
		Folders:          slices.Clone(w.folders),
		SelectedFolder:   w.folderID,
		SelectedDocument: w.documentID,
		Documents:        slices.Clone(w.docs),
	}
	if w.hasDraft {
		draft := w.draft
		s.Draft = &draft
	}
	w.mu.Unlock()

	s.Recent = w.cache.List(s.SelectedDocument)
	return s
}

func (w *Workspace) findLocked(id string) (model.Document, bool) {
	for _, d := range w.docs {
		if d.ID == id {
			return d, true
		}
	}
	return model.Document{}, false
}

func (w *Workspace) selectedLocked() (model.Document, bool) {
	if w.documentID == "" {
		return model.Document{}, false
	}
	return w.findLocked(w.documentID)
}

func (w *Workspace) clearSelectionLocked() {
	w.documentID = ""
	w.draft, w.hasDraft = "", false
}

// fail logs err, reports it to the user and returns it annotated with action.
func (w *Workspace) fail(action string, err error) error {
	if errors.Is(err, apperror.ErrSuperseded) {
		return err
	}
	logger.Sugar.Errorf("Failed to %s (%s): %v", action, apperror.Kind(err), err)
	w.reporter.Report(Notice{Action: action, Err: err})
	return fmt.Errorf("%s: %w", action, err)
}
