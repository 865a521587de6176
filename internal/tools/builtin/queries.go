package builtin

import (
	"context"

	apperrors "hyperfocus/internal/errors"
	"hyperfocus/internal/tools/ports"
)

// GetTaskMetadata describes the get_focus_task tool.
func GetTaskMetadata() ports.ToolMetadata {
	return ports.ToolMetadata{
		Name: "get_focus_task",
		Description: `Fetch one focus task by id.

Use this when the user refers to a specific task and you need its current
state. Example: {"task_id": 12}`,
		InputSchema: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"task_id": {
					Type:        "integer",
					Description: "Identifier of the task to fetch.",
					Minimum:     floatPtr(1),
				},
			},
			Required: []string{"task_id"},
		},
		Output:        "focus_task",
		Auth:          requireAuth("tasks:read"),
		Category:      "tasks",
		Tags:          []string{"tasks", "read"},
		Cacheable:     true,
		ReadOnly:      true,
		RateLimitTier: ports.RateLimitLow,
	}
}

// NewGetTask builds the get_focus_task handler.
func NewGetTask(store TaskStore) ports.Handler {
	return func(ctx context.Context, args map[string]any, userID string) (any, error) {
		taskID, err := int64Arg(args, "task_id")
		if err != nil {
			return nil, apperrors.NewValidation(err.Error())
		}
		task, err := store.GetTask(ctx, userID, taskID)
		if err != nil {
			return nil, mapTaskError(taskID, err)
		}
		return task, nil
	}
}

// ListTasksMetadata describes the list_focus_tasks tool.
func ListTasksMetadata() ports.ToolMetadata {
	return ports.ToolMetadata{
		Name: "list_focus_tasks",
		Description: `List the user's focus tasks, newest first.

Use this to show what is on the user's plate; filter by status when the
user asks about pending or finished work.
Example: {"status": "pending", "limit": 10}
Example: {} lists everything up to the default limit.`,
		InputSchema: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"status": {
					Type:        "string",
					Description: "Restrict to one lifecycle status.",
					Enum:        statusEnum,
				},
				"limit": {
					Type:        "integer",
					Description: "Maximum number of tasks to return (1-100, default 50).",
					Minimum:     floatPtr(1),
					Maximum:     floatPtr(100),
				},
			},
		},
		Output:        "focus_task_list",
		Auth:          requireAuth("tasks:read"),
		Category:      "tasks",
		Tags:          []string{"tasks", "read"},
		Cacheable:     true,
		ReadOnly:      true,
		RateLimitTier: ports.RateLimitLow,
	}
}

// NewListTasks builds the list_focus_tasks handler.
func NewListTasks(store TaskStore) ports.Handler {
	return func(ctx context.Context, args map[string]any, userID string) (any, error) {
		tasks, err := store.ListTasks(ctx, userID, stringArg(args, "status"), intArg(args, "limit", 0))
		if err != nil {
			return nil, err
		}
		return map[string]any{"tasks": tasks, "count": len(tasks)}, nil
	}
}

// SearchTasksMetadata describes the search_focus_tasks tool.
func SearchTasksMetadata() ports.ToolMetadata {
	return ports.ToolMetadata{
		Name: "search_focus_tasks",
		Description: `Search the user's focus tasks by title and description.

Use this when the user describes a task by content rather than id.
Example: {"query": "quarterly report"}`,
		InputSchema: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"query": {
					Type:        "string",
					Description: "Substring to match against title and description.",
					MinLength:   intPtr(1),
					MaxLength:   intPtr(200),
				},
				"limit": {
					Type:        "integer",
					Description: "Maximum number of matches to return (1-100, default 50).",
					Minimum:     floatPtr(1),
					Maximum:     floatPtr(100),
				},
			},
			Required: []string{"query"},
		},
		Output:        "focus_task_list",
		Auth:          requireAuth("tasks:read"),
		Category:      "tasks",
		Tags:          []string{"tasks", "read", "search"},
		Cacheable:     true,
		ReadOnly:      true,
		RateLimitTier: ports.RateLimitLow,
	}
}

// NewSearchTasks builds the search_focus_tasks handler.
func NewSearchTasks(store TaskStore) ports.Handler {
	return func(ctx context.Context, args map[string]any, userID string) (any, error) {
		tasks, err := store.SearchTasks(ctx, userID, stringArg(args, "query"), intArg(args, "limit", 0))
		if err != nil {
			return nil, err
		}
		return map[string]any{"tasks": tasks, "count": len(tasks)}, nil
	}
}

// StatsMetadata describes the focus_stats tool.
func StatsMetadata() ports.ToolMetadata {
	return ports.ToolMetadata{
		Name: "focus_stats",
		Description: `Summarize the user's focus activity.

Use this when the user asks how they are doing: totals per status and
accumulated focus minutes. Example: {"scope": "all"}`,
		InputSchema: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"scope": {
					Type:        "string",
					Description: "Reserved for future period filters; only \"all\" is supported.",
					Enum:        []any{"all"},
				},
			},
		},
		Output:        "focus_stats",
		Auth:          requireAuth("tasks:read"),
		Category:      "insights",
		Tags:          []string{"tasks", "read", "stats"},
		Cacheable:     true,
		ReadOnly:      true,
		RateLimitTier: ports.RateLimitLow,
	}
}

// NewStats builds the focus_stats handler.
func NewStats(store TaskStore) ports.Handler {
	return func(ctx context.Context, args map[string]any, userID string) (any, error) {
		stats, err := store.TaskStats(ctx, userID)
		if err != nil {
			return nil, err
		}
		return stats, nil
	}
}
