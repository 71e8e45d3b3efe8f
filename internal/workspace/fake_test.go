package workspace

import (
	"context"
	"fmt"
	"sync"
	"time"

	"docsync/internal/document/model"
	"docsync/internal/history"
	"docsync/pkg/apperror"
)

// fakeRepo is an in-memory Repository and HistoryStore. Calls can be held
// back with gate and made to fail with failOn.
type fakeRepo struct {
	mu      sync.Mutex
	seq     int
	folders []model.Folder
	docs    map[string]model.Document
	order   []string
	history []model.HistoryEntry
	clock   int64

	gates  map[string]chan struct{}
	failOn map[string]error
	calls  []string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		docs:   map[string]model.Document{},
		gates:  map[string]chan struct{}{},
		failOn: map[string]error{},
	}
}

// gate makes the next calls keyed by key block until the returned func runs.
func (f *fakeRepo) gate(key string) func() {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[key] = ch
	f.mu.Unlock()
	return func() { close(ch) }
}

func (f *fakeRepo) enter(key string) error {
	f.mu.Lock()
	f.calls = append(f.calls, key)
	ch := f.gates[key]
	err := f.failOn[key]
	f.mu.Unlock()

	if ch != nil {
		<-ch
	}
	return err
}

func (f *fakeRepo) called(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == key {
			return true
		}
	}
	return false
}

func (f *fakeRepo) callCount(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (f *fakeRepo) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s%d", prefix, f.seq)
}

func (f *fakeRepo) seedFolder(name string) model.Folder {
	f.mu.Lock()
	defer f.mu.Unlock()
	folder := model.Folder{ID: f.nextID("f"), Name: name}
	f.folders = append(f.folders, folder)
	return folder
}

func (f *fakeRepo) seedDocument(folderID, title string) model.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc := model.Document{ID: f.nextID("d"), Title: title, Content: "# " + title, FolderID: folderID}
	f.docs[doc.ID] = doc
	f.order = append(f.order, doc.ID)
	return doc
}

func (f *fakeRepo) ListFolders(ctx context.Context) ([]model.Folder, error) {
	if err := f.enter("ListFolders"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Folder(nil), f.folders...), nil
}

func (f *fakeRepo) ListDocumentsInFolder(ctx context.Context, folderID string) ([]model.Document, error) {
	if err := f.enter("ListDocumentsInFolder:" + folderID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Document{}
	for _, id := range f.order {
		if d, ok := f.docs[id]; ok && d.FolderID == folderID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetDocument(ctx context.Context, id string) (model.Document, error) {
	if err := f.enter("GetDocument:" + id); err != nil {
		return model.Document{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return model.Document{}, apperror.NotFound("document", id)
	}
	return d, nil
}

func (f *fakeRepo) CreateFolder(ctx context.Context, name string) (model.Folder, error) {
	if err := f.enter("CreateFolder"); err != nil {
		return model.Folder{}, err
	}
	return f.seedFolder(name), nil
}

func (f *fakeRepo) DeleteFolder(ctx context.Context, id string) ([]string, error) {
	if err := f.enter("DeleteFolder:" + id); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, folder := range f.folders {
		if folder.ID == id {
			f.folders = append(f.folders[:i], f.folders[i+1:]...)
			ids := []string{}
			for docID, d := range f.docs {
				if d.FolderID == id {
					delete(f.docs, docID)
					ids = append(ids, docID)
				}
			}
			return ids, nil
		}
	}
	return nil, apperror.NotFound("folder", id)
}

func (f *fakeRepo) CreateDocument(ctx context.Context, req model.CreateDocumentRequest) (model.Document, error) {
	if err := f.enter("CreateDocument"); err != nil {
		return model.Document{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	doc := model.Document{ID: f.nextID("d"), Title: req.Title, Content: req.Content, FolderID: req.FolderID}
	f.docs[doc.ID] = doc
	f.order = append(f.order, doc.ID)
	return doc, nil
}

func (f *fakeRepo) UpdateDocument(ctx context.Context, id, content string) (model.Document, error) {
	if err := f.enter("UpdateDocument:" + id); err != nil {
		return model.Document{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return model.Document{}, apperror.NotFound("document", id)
	}
	d.Content = content
	d.UpdatedAt = time.Unix(1700000000, 0)
	f.docs[id] = d
	return d, nil
}

func (f *fakeRepo) DeleteDocument(ctx context.Context, id string) error {
	if err := f.enter("DeleteDocument:" + id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[id]; !ok {
		return apperror.NotFound("document", id)
	}
	delete(f.docs, id)
	return nil
}

func (f *fakeRepo) GetHistory(ctx context.Context) ([]model.HistoryEntry, error) {
	if err := f.enter("GetHistory"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.HistoryEntry(nil), f.history...), nil
}

func (f *fakeRepo) AddHistoryEntry(ctx context.Context, id, title string) (model.HistoryEntry, error) {
	if err := f.enter("AddHistoryEntry:" + id); err != nil {
		return model.HistoryEntry{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock++
	e := model.HistoryEntry{ID: id, Title: title, Timestamp: f.clock}
	f.history = history.Record(f.history, e, history.MaxEntries)
	return e, nil
}
