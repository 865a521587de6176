package builtin

import (
	"context"
	"errors"
	"fmt"

	apperrors "hyperfocus/internal/errors"
	"hyperfocus/internal/store/sqlite"
	"hyperfocus/internal/tools/ports"
)

// TaskStore is the subset of the persistence collaborator the focus tools
// need. *sqlite.Store satisfies it; tests use stubs.
type TaskStore interface {
	CreateTask(ctx context.Context, task sqlite.FocusTask) (*sqlite.FocusTask, error)
	GetTask(ctx context.Context, userID string, id int64) (*sqlite.FocusTask, error)
	ListTasks(ctx context.Context, userID, status string, limit int) ([]sqlite.FocusTask, error)
	SearchTasks(ctx context.Context, userID, query string, limit int) ([]sqlite.FocusTask, error)
	UpdateTask(ctx context.Context, userID string, id int64, update sqlite.TaskUpdate) (*sqlite.FocusTask, error)
	CompleteTask(ctx context.Context, userID string, id int64, focusMinutes int) (*sqlite.FocusTask, error)
	DeleteTask(ctx context.Context, userID string, id int64) error
	TaskStats(ctx context.Context, userID string) (*sqlite.Stats, error)
}

func requireAuth(scopes ...string) ports.AuthRequirements {
	return ports.AuthRequirements{RequiresAuth: true, AllowAnonymous: false, Scopes: scopes}
}

var statusEnum = []any{sqlite.StatusPending, sqlite.StatusActive, sqlite.StatusCompleted}

var priorityEnum = []any{"low", "medium", "high"}

// CreateTaskMetadata describes the create_focus_task tool.
func CreateTaskMetadata() ports.ToolMetadata {
	return ports.ToolMetadata{
		Name: "create_focus_task",
		Description: `Create a new focus task for the current user.

Use this when the user wants to capture a piece of work to focus on later.
Example: {"title": "Write quarterly report", "priority": "high"}
Example: {"title": "Inbox zero", "description": "Archive or reply to everything", "priority": "low"}`,
		InputSchema: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"title": {
					Type:        "string",
					Description: "Short task title shown in the task list.",
					MinLength:   intPtr(1),
					MaxLength:   intPtr(200),
				},
				"description": {
					Type:        "string",
					Description: "Optional longer description of the work.",
					MaxLength:   intPtr(2000),
				},
				"priority": {
					Type:        "string",
					Description: "Task priority; defaults to medium.",
					Enum:        priorityEnum,
				},
			},
			Required: []string{"title"},
		},
		Output:        "focus_task",
		Auth:          requireAuth("tasks:write"),
		Category:      "tasks",
		Tags:          []string{"tasks", "write"},
		Cacheable:     false,
		ReadOnly:      false,
		RateLimitTier: ports.RateLimitMedium,
	}
}

// NewCreateTask builds the create_focus_task handler.
func NewCreateTask(store TaskStore) ports.Handler {
	return func(ctx context.Context, args map[string]any, userID string) (any, error) {
		task := sqlite.FocusTask{
			UserID:      userID,
			Title:       stringArg(args, "title"),
			Description: stringArg(args, "description"),
			Priority:    stringArg(args, "priority"),
		}
		created, err := store.CreateTask(ctx, task)
		if err != nil {
			return nil, err
		}
		return created, nil
	}
}

// UpdateTaskMetadata describes the update_focus_task tool.
func UpdateTaskMetadata() ports.ToolMetadata {
	return ports.ToolMetadata{
		Name: "update_focus_task",
		Description: `Update fields of an existing focus task.

Use this to change a task's title, description, status or priority without
completing it. Only the provided fields change.
Example: {"task_id": 12, "status": "active"}
Example: {"task_id": 7, "priority": "high", "title": "Ship v2 launch email"}`,
		InputSchema: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"task_id": {
					Type:        "integer",
					Description: "Identifier of the task to update.",
					Minimum:     floatPtr(1),
				},
				"title": {
					Type:        "string",
					Description: "New title.",
					MinLength:   intPtr(1),
					MaxLength:   intPtr(200),
				},
				"description": {
					Type:        "string",
					Description: "New description.",
					MaxLength:   intPtr(2000),
				},
				"status": {
					Type:        "string",
					Description: "New lifecycle status.",
					Enum:        statusEnum,
				},
				"priority": {
					Type:        "string",
					Description: "New priority.",
					Enum:        priorityEnum,
				},
			},
			Required: []string{"task_id"},
		},
		Output:        "focus_task",
		Auth:          requireAuth("tasks:write"),
		Category:      "tasks",
		Tags:          []string{"tasks", "write"},
		Cacheable:     false,
		ReadOnly:      false,
		RateLimitTier: ports.RateLimitMedium,
	}
}

// NewUpdateTask builds the update_focus_task handler.
func NewUpdateTask(store TaskStore) ports.Handler {
	return func(ctx context.Context, args map[string]any, userID string) (any, error) {
		taskID, err := int64Arg(args, "task_id")
		if err != nil {
			return nil, apperrors.NewValidation(err.Error())
		}
		var update sqlite.TaskUpdate
		if v, ok := args["title"].(string); ok {
			update.Title = &v
		}
		if v, ok := args["description"].(string); ok {
			update.Description = &v
		}
		if v, ok := args["status"].(string); ok {
			update.Status = &v
		}
		if v, ok := args["priority"].(string); ok {
			update.Priority = &v
		}
		task, err := store.UpdateTask(ctx, userID, taskID, update)
		if err != nil {
			return nil, mapTaskError(taskID, err)
		}
		return task, nil
	}
}

// CompleteTaskMetadata describes the complete_focus_task tool.
func CompleteTaskMetadata() ports.ToolMetadata {
	return ports.ToolMetadata{
		Name: "complete_focus_task",
		Description: `Mark a focus task as completed, recording minutes spent.

Use this when the user finishes a task. Completing an already-completed
task is an error.
Example: {"task_id": 12, "focus_minutes": 45}`,
		InputSchema: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"task_id": {
					Type:        "integer",
					Description: "Identifier of the task to complete.",
					Minimum:     floatPtr(1),
				},
				"focus_minutes": {
					Type:        "integer",
					Description: "Minutes of focused work to add; defaults to 0.",
					Minimum:     floatPtr(0),
					Maximum:     floatPtr(24 * 60),
				},
			},
			Required: []string{"task_id"},
		},
		Output:        "focus_task",
		Auth:          requireAuth("tasks:write"),
		Category:      "tasks",
		Tags:          []string{"tasks", "write", "progress"},
		Cacheable:     false,
		ReadOnly:      false,
		RateLimitTier: ports.RateLimitMedium,
	}
}

// NewCompleteTask builds the complete_focus_task handler.
func NewCompleteTask(store TaskStore) ports.Handler {
	return func(ctx context.Context, args map[string]any, userID string) (any, error) {
		taskID, err := int64Arg(args, "task_id")
		if err != nil {
			return nil, apperrors.NewValidation(err.Error())
		}
		task, err := store.CompleteTask(ctx, userID, taskID, intArg(args, "focus_minutes", 0))
		if err != nil {
			return nil, mapTaskError(taskID, err)
		}
		return task, nil
	}
}

// DeleteTaskMetadata describes the delete_focus_task tool. Deletion is the
// one irreversible mutation here, so it is flagged non-read-only and the
// chat layer asks for confirmation before dispatching it.
func DeleteTaskMetadata() ports.ToolMetadata {
	return ports.ToolMetadata{
		Name: "delete_focus_task",
		Description: `Permanently delete a focus task.

Use this only when the user explicitly asks to remove a task; prefer
completing tasks over deleting them.
Example: {"task_id": 12}`,
		InputSchema: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"task_id": {
					Type:        "integer",
					Description: "Identifier of the task to delete.",
					Minimum:     floatPtr(1),
				},
			},
			Required: []string{"task_id"},
		},
		Output:        "deletion_receipt",
		Auth:          requireAuth("tasks:write"),
		Category:      "tasks",
		Tags:          []string{"tasks", "write", "destructive"},
		Cacheable:     false,
		ReadOnly:      false,
		RateLimitTier: ports.RateLimitMedium,
	}
}

// NewDeleteTask builds the delete_focus_task handler.
func NewDeleteTask(store TaskStore) ports.Handler {
	return func(ctx context.Context, args map[string]any, userID string) (any, error) {
		taskID, err := int64Arg(args, "task_id")
		if err != nil {
			return nil, apperrors.NewValidation(err.Error())
		}
		if err := store.DeleteTask(ctx, userID, taskID); err != nil {
			return nil, mapTaskError(taskID, err)
		}
		return map[string]any{"deleted": true, "task_id": taskID}, nil
	}
}

// mapTaskError converts store sentinels into user-facing typed errors.
func mapTaskError(taskID int64, err error) error {
	if errors.Is(err, sqlite.ErrTaskNotFound) {
		return apperrors.NewValidation(fmt.Sprintf("no task with id %d", taskID))
	}
	return err
}
