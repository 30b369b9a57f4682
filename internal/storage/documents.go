package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/clientdesk/internal/common"
	"github.com/Veraticus/clientdesk/internal/service"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type opKind int

const (
	opSet opKind = iota
	opMerge
	opUpdate
	opDelete
)

func (k opKind) String() string {
	switch k {
	case opSet:
		return "set"
	case opMerge:
		return "merge"
	case opUpdate:
		return "update"
	case opDelete:
		return "delete"
	default:
		return "unknown"
	}
}

type writeOp struct {
	data map[string]any
	path string
	kind opKind
}

func getDoc(ctx context.Context, q querier, path string) (*service.Document, error) {
	if _, _, err := splitDocumentPath(path); err != nil {
		return nil, err
	}

	row := q.QueryRowContext(ctx, `
		SELECT path, id, data, create_time, update_time
		FROM documents WHERE path = ?`, path)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", path, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", path, err)
	}
	return doc, nil
}

func listDocs(ctx context.Context, q querier, collection string) ([]service.Document, error) {
	if err := validateCollectionPath(collection); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT path, id, data, create_time, update_time
		FROM documents WHERE parent = ? ORDER BY id`, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	defer func() { _ = rows.Close() }()

	var docs []service.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document in %s: %w", collection, err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", collection, err)
	}
	return docs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*service.Document, error) {
	var (
		doc                    service.Document
		raw                    string
		createNano, updateNano int64
	)
	if err := row.Scan(&doc.Path, &doc.ID, &raw, &createNano, &updateNano); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(raw), &doc.Data); err != nil {
		return nil, fmt.Errorf("corrupt document data at %s: %w", doc.Path, err)
	}
	if doc.Data == nil {
		doc.Data = map[string]any{}
	}
	doc.CreateTime = time.Unix(0, createNano).UTC()
	doc.UpdateTime = time.Unix(0, updateNano).UTC()
	return &doc, nil
}

// applyOp executes a single write and returns the collection it touched.
func applyOp(ctx context.Context, q querier, op writeOp, now time.Time) (string, error) {
	parent, id, err := splitDocumentPath(op.path)
	if err != nil {
		return "", err
	}

	if op.kind == opDelete {
		if _, err := q.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, op.path); err != nil {
			return "", fmt.Errorf("failed to delete %s: %w", op.path, err)
		}
		return parent, nil
	}

	fields, err := normalizeFields(op.data, now)
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", op.kind, op.path, err)
	}

	if op.kind == opMerge || op.kind == opUpdate {
		existing, err := getDoc(ctx, q, op.path)
		switch {
		case errors.Is(err, common.ErrNotFound):
			if op.kind == opUpdate {
				return "", err
			}
		case err != nil:
			return "", err
		default:
			fields = deepMerge(existing.Data, fields)
		}
	}

	encoded, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", op.path, err)
	}

	ts := now.UnixNano()
	_, err = q.ExecContext(ctx, `
		INSERT INTO documents (path, parent, id, data, create_time, update_time)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			data = excluded.data,
			update_time = excluded.update_time`,
		op.path, parent, id, string(encoded), ts, ts)
	if err != nil {
		return "", fmt.Errorf("failed to %s %s: %w", op.kind, op.path, err)
	}
	return parent, nil
}
