package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"docsync/internal/document/model"
	"docsync/pkg/apperror"
	"docsync/pkg/logger"

	"github.com/lib/pq"
)

// foreign_key_violation
const fkViolation = "23503"

type DocumentRepository struct {
	DB *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{DB: db}
}

func (r *DocumentRepository) ListFolders(ctx context.Context) ([]model.Folder, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, name, created_at FROM folders ORDER BY created_at ASC`)
	if err != nil {
		logger.Sugar.Errorf("Failed to list folders: %v", err)
		return nil, err
	}
	defer rows.Close()

	folders := []model.Folder{}
	for rows.Next() {
		var f model.Folder
		if err := rows.Scan(&f.ID, &f.Name, &f.CreatedAt); err != nil {
			logger.Sugar.Errorf("Failed to scan folder: %v", err)
			return nil, err
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

func (r *DocumentRepository) CreateFolder(ctx context.Context, id, name string) (model.Folder, error) {
	f := model.Folder{ID: id, Name: name}
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO folders (id, name, created_at) VALUES ($1, $2, NOW()) RETURNING created_at`,
		id, name,
	).Scan(&f.CreatedAt)
	if err != nil {
		logger.Sugar.Errorf("Failed to create folder %q: %v", name, err)
		return model.Folder{}, err
	}
	return f, nil
}

func (r *DocumentRepository) FolderExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM folders WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		logger.Sugar.Errorf("Failed to check folder %s: %v", id, err)
	}
	return exists, err
}

// DeleteFolder removes the folder and its documents in one transaction and
// returns the ids of the removed documents. History rows go with them through
// the foreign key.
func (r *DocumentRepository) DeleteFolder(ctx context.Context, id string) ([]string, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		logger.Sugar.Errorf("Failed to begin transaction for folder %s: %v", id, err)
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `DELETE FROM documents WHERE folder_id = $1 RETURNING id`, id)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete documents of folder %s: %v", id, err)
		return nil, err
	}
	ids := []string{}
	for rows.Next() {
		var docID string
		if err := rows.Scan(&docID); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, docID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM folders WHERE id = $1`, id)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete folder %s: %v", id, err)
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, apperror.NotFound("folder", id)
	}

	if err := tx.Commit(); err != nil {
		logger.Sugar.Errorf("Failed to commit deletion of folder %s: %v", id, err)
		return nil, err
	}
	return ids, nil
}

const documentColumns = `id, title, content, folder_id, created_at, updated_at`

func scanDocument(row interface{ Scan(...any) error }) (model.Document, error) {
	var d model.Document
	err := row.Scan(&d.ID, &d.Title, &d.Content, &d.FolderID, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func (r *DocumentRepository) queryDocuments(ctx context.Context, query string, args ...any) ([]model.Document, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []model.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *DocumentRepository) ListDocumentsInFolder(ctx context.Context, folderID string) ([]model.Document, error) {
	docs, err := r.queryDocuments(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE folder_id = $1 ORDER BY created_at ASC`, folderID)
	if err != nil {
		logger.Sugar.Errorf("Failed to list documents of folder %s: %v", folderID, err)
	}
	return docs, err
}

func (r *DocumentRepository) GetDocument(ctx context.Context, id string) (model.Document, error) {
	d, err := scanDocument(r.DB.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Document{}, apperror.NotFound("document", id)
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get document %s: %v", id, err)
	}
	return d, err
}

func (r *DocumentRepository) CreateDocument(ctx context.Context, d model.Document) (model.Document, error) {
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO documents (id, title, content, folder_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING created_at, updated_at`,
		d.ID, d.Title, d.Content, d.FolderID,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == fkViolation {
			return model.Document{}, apperror.NotFound("folder", d.FolderID)
		}
		logger.Sugar.Errorf("Failed to create document %q: %v", d.Title, err)
		return model.Document{}, err
	}
	return d, nil
}

func (r *DocumentRepository) UpdateContent(ctx context.Context, id, content string) (model.Document, error) {
	d, err := scanDocument(r.DB.QueryRowContext(ctx,
		`UPDATE documents SET content = $1, updated_at = NOW() WHERE id = $2 RETURNING `+documentColumns,
		content, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Document{}, apperror.NotFound("document", id)
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to update content for doc %s: %v", id, err)
	}
	return d, err
}

func (r *DocumentRepository) DeleteDocument(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete doc %s: %v", id, err)
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NotFound("document", id)
	}
	return nil
}

// SearchDocuments returns the documents whose title or content contains query,
// case-insensitively.
func (r *DocumentRepository) SearchDocuments(ctx context.Context, query string) ([]model.Document, error) {
	pattern := "%" + escapeLike(query) + "%"
	docs, err := r.queryDocuments(ctx,
		`SELECT `+documentColumns+` FROM documents
		WHERE title ILIKE $1 OR content ILIKE $1
		ORDER BY updated_at DESC`, pattern)
	if err != nil {
		logger.Sugar.Errorf("Failed to search documents for %q: %v", query, err)
	}
	return docs, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (r *DocumentRepository) GetHistory(ctx context.Context) ([]model.HistoryEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT document_id, title, visited_at FROM history ORDER BY visited_at DESC`)
	if err != nil {
		logger.Sugar.Errorf("Failed to get history: %v", err)
		return nil, err
	}
	defer rows.Close()

	entries := []model.HistoryEntry{}
	for rows.Next() {
		var e model.HistoryEntry
		if err := rows.Scan(&e.ID, &e.Title, &e.Timestamp); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ReplaceHistory stores entries as the complete history.
func (r *DocumentRepository) ReplaceHistory(ctx context.Context, entries []model.HistoryEntry) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		logger.Sugar.Errorf("Failed to begin history transaction: %v", err)
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM history`); err != nil {
		logger.Sugar.Errorf("Failed to clear history: %v", err)
		return err
	}
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO history (document_id, title, visited_at) VALUES ($1, $2, $3)`,
			e.ID, e.Title, e.Timestamp,
		); err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == fkViolation {
				return apperror.NotFound("document", e.ID)
			}
			logger.Sugar.Errorf("Failed to insert history entry %s: %v", e.ID, err)
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history: %w", err)
	}
	return nil
}
