package storage

import (
	"context"
	"fmt"

	"github.com/Veraticus/clientdesk/internal/service"
)

// Batch starts a write batch. Writes are buffered until Commit, which applies
// them in order inside a single transaction.
func (s *SQLiteStorage) Batch() service.WriteBatch {
	return &writeBatch{store: s}
}

type writeBatch struct {
	store *SQLiteStorage
	ops   []writeOp
}

func (b *writeBatch) Set(path string, data map[string]any) service.WriteBatch {
	b.ops = append(b.ops, writeOp{kind: opSet, path: path, data: data})
	return b
}

func (b *writeBatch) Merge(path string, data map[string]any) service.WriteBatch {
	b.ops = append(b.ops, writeOp{kind: opMerge, path: path, data: data})
	return b
}

func (b *writeBatch) Update(path string, data map[string]any) service.WriteBatch {
	b.ops = append(b.ops, writeOp{kind: opUpdate, path: path, data: data})
	return b
}

func (b *writeBatch) Delete(path string) service.WriteBatch {
	b.ops = append(b.ops, writeOp{kind: opDelete, path: path})
	return b
}

func (b *writeBatch) Len() int {
	return len(b.ops)
}

// Commit applies every buffered write or none of them.
func (b *writeBatch) Commit(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(b.ops) == 0 {
		return nil
	}

	// Reject malformed paths before touching the database.
	for _, op := range b.ops {
		if _, _, err := splitDocumentPath(op.path); err != nil {
			return err
		}
	}

	return b.store.RunTransaction(ctx, func(ctx context.Context, tx service.Tx) error {
		sqlTx, ok := tx.(*sqliteTx)
		if !ok {
			return fmt.Errorf("unexpected transaction type %T", tx)
		}
		for i, op := range b.ops {
			if err := sqlTx.apply(ctx, op); err != nil {
				return fmt.Errorf("batch write %d: %w", i, err)
			}
		}
		return nil
	})
}
