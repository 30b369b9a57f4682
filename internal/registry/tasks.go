package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Veraticus/clientdesk/internal/common"
	"github.com/Veraticus/clientdesk/internal/model"
	"github.com/Veraticus/clientdesk/internal/storage"
)

func tasksPath(clientID string) string {
	return storage.Join(ClientPath(clientID), "tasks")
}

// AddTask attaches a to-do item to a client.
func (r *Registry) AddTask(ctx context.Context, clientID string, task model.Task) (string, error) {
	if err := requireID(clientID); err != nil {
		return "", err
	}
	if strings.TrimSpace(task.Title) == "" {
		return "", fmt.Errorf("%w: task title is required", common.ErrInvalidInput)
	}
	task.Done = false
	task.CompletedAt = nil

	fields, err := storage.ToFields(task)
	if err != nil {
		return "", err
	}
	fields["createdAt"] = storage.ServerTimestamp
	return r.store.Add(ctx, tasksPath(clientID), fields)
}

// CompleteTask marks a task done.
func (r *Registry) CompleteTask(ctx context.Context, clientID, taskID string) error {
	if err := requireID(clientID); err != nil {
		return err
	}
	if err := common.ValidateID("task id", taskID); err != nil {
		return err
	}
	return r.store.Update(ctx, storage.Join(tasksPath(clientID), taskID), map[string]any{
		"done":        true,
		"completedAt": storage.ServerTimestamp,
	})
}

// ListTasks returns open tasks first, each group ordered by due date and title.
func (r *Registry) ListTasks(ctx context.Context, clientID string) ([]model.Task, error) {
	if err := requireID(clientID); err != nil {
		return nil, err
	}
	docs, err := r.store.List(ctx, tasksPath(clientID))
	if err != nil {
		return nil, err
	}

	tasks := make([]model.Task, 0, len(docs))
	for _, doc := range docs {
		var t model.Task
		if err := doc.DataTo(&t); err != nil {
			r.logger.Warn("skipping malformed task", "path", doc.Path, "error", err)
			continue
		}
		t.ID = doc.ID
		tasks = append(tasks, t)
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.Done != b.Done {
			return !a.Done
		}
		switch {
		case a.DueAt != nil && b.DueAt != nil && !a.DueAt.Equal(*b.DueAt):
			return a.DueAt.Before(*b.DueAt)
		case a.DueAt != nil && b.DueAt == nil:
			return true
		case a.DueAt == nil && b.DueAt != nil:
			return false
		}
		return a.Title < b.Title
	})
	return tasks, nil
}
