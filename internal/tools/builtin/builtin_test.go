package builtin

import (
	"context"
	"errors"
	"testing"

	apperrors "hyperfocus/internal/errors"
	"hyperfocus/internal/store/sqlite"
	"hyperfocus/internal/toolregistry"
	"hyperfocus/internal/tools/ports"
)

// stubStore satisfies TaskStore with canned responses and call capture.
type stubStore struct {
	task    *sqlite.FocusTask
	tasks   []sqlite.FocusTask
	stats   *sqlite.Stats
	err     error
	deleted []int64

	lastUpdate sqlite.TaskUpdate
	lastQuery  string
	lastStatus string
	lastLimit  int
}

func (s *stubStore) CreateTask(_ context.Context, task sqlite.FocusTask) (*sqlite.FocusTask, error) {
	if s.err != nil {
		return nil, s.err
	}
	created := task
	created.ID = 1
	return &created, nil
}

func (s *stubStore) GetTask(context.Context, string, int64) (*sqlite.FocusTask, error) {
	return s.task, s.err
}

func (s *stubStore) ListTasks(_ context.Context, _ string, status string, limit int) ([]sqlite.FocusTask, error) {
	s.lastStatus = status
	s.lastLimit = limit
	return s.tasks, s.err
}

func (s *stubStore) SearchTasks(_ context.Context, _ string, query string, limit int) ([]sqlite.FocusTask, error) {
	s.lastQuery = query
	s.lastLimit = limit
	return s.tasks, s.err
}

func (s *stubStore) UpdateTask(_ context.Context, _ string, _ int64, update sqlite.TaskUpdate) (*sqlite.FocusTask, error) {
	s.lastUpdate = update
	return s.task, s.err
}

func (s *stubStore) CompleteTask(context.Context, string, int64, int) (*sqlite.FocusTask, error) {
	return s.task, s.err
}

func (s *stubStore) DeleteTask(_ context.Context, _ string, id int64) error {
	if s.err != nil {
		return s.err
	}
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubStore) TaskStats(context.Context, string) (*sqlite.Stats, error) {
	return s.stats, s.err
}

func allMetadata() []ports.ToolMetadata {
	return []ports.ToolMetadata{
		CreateTaskMetadata(),
		GetTaskMetadata(),
		ListTasksMetadata(),
		SearchTasksMetadata(),
		UpdateTaskMetadata(),
		CompleteTaskMetadata(),
		DeleteTaskMetadata(),
		StatsMetadata(),
	}
}

func TestAllMetadataIsComplete(t *testing.T) {
	for _, meta := range allMetadata() {
		if err := toolregistry.ValidateMetadata(meta); err != nil {
			t.Fatalf("%s: %v", meta.Name, err)
		}
	}
}

func TestReadToolsAreCacheable(t *testing.T) {
	for _, meta := range allMetadata() {
		if meta.ReadOnly != meta.Cacheable {
			t.Fatalf("%s: read-only and cacheable must agree", meta.Name)
		}
		if !meta.ReadOnly && meta.RateLimitTier != ports.RateLimitMedium {
			t.Fatalf("%s: writes run at the medium tier", meta.Name)
		}
		if meta.ReadOnly && meta.RateLimitTier != ports.RateLimitLow {
			t.Fatalf("%s: reads run at the low tier", meta.Name)
		}
	}
}

func TestRegisterAll(t *testing.T) {
	registry := toolregistry.New(nil)
	if err := RegisterAll(registry, &stubStore{}); err != nil {
		t.Fatalf("register all: %v", err)
	}
	if got := len(registry.Names()); got != 8 {
		t.Fatalf("expected 8 tools, got %d", got)
	}
	// Compatibility aliases for older clients.
	for alias, canonical := range map[string]string{
		"add_focus_task":  "create_focus_task",
		"get_focus_tasks": "list_focus_tasks",
	} {
		tool, ok := registry.Get(alias)
		if !ok || tool.Meta.Name != canonical {
			t.Fatalf("alias %s should resolve to %s", alias, canonical)
		}
	}
}

func TestCreateTaskHandler(t *testing.T) {
	store := &stubStore{}
	handler := NewCreateTask(store)

	out, err := handler(context.Background(), map[string]any{
		"title":    "write report",
		"priority": "high",
	}, "user-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	task, ok := out.(*sqlite.FocusTask)
	if !ok {
		t.Fatalf("unexpected result type %T", out)
	}
	if task.UserID != "user-1" || task.Title != "write report" || task.Priority != "high" {
		t.Fatalf("arguments not mapped: %+v", task)
	}
}

func TestUpdateTaskHandlerPartialMapping(t *testing.T) {
	store := &stubStore{task: &sqlite.FocusTask{ID: 7}}
	handler := NewUpdateTask(store)

	if _, err := handler(context.Background(), map[string]any{
		"task_id": float64(7),
		"status":  "active",
	}, "user-1"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if store.lastUpdate.Status == nil || *store.lastUpdate.Status != "active" {
		t.Fatalf("status not mapped: %+v", store.lastUpdate)
	}
	if store.lastUpdate.Title != nil || store.lastUpdate.Priority != nil {
		t.Fatalf("absent fields must stay nil: %+v", store.lastUpdate)
	}
}

func TestHandlersRejectMissingTaskID(t *testing.T) {
	store := &stubStore{task: &sqlite.FocusTask{ID: 1}}
	for name, handler := range map[string]ports.Handler{
		"get":      NewGetTask(store),
		"update":   NewUpdateTask(store),
		"complete": NewCompleteTask(store),
		"delete":   NewDeleteTask(store),
	} {
		_, err := handler(context.Background(), map[string]any{}, "user-1")
		if err == nil {
			t.Fatalf("%s: expected error for missing task_id", name)
		}
		if apperrors.KindOf(err) != apperrors.KindValidation {
			t.Fatalf("%s: expected validation kind, got %s", name, apperrors.KindOf(err))
		}
	}
}

func TestTaskNotFoundMapsToValidation(t *testing.T) {
	store := &stubStore{err: sqlite.ErrTaskNotFound}
	handler := NewGetTask(store)

	_, err := handler(context.Background(), map[string]any{"task_id": float64(42)}, "user-1")
	if err == nil {
		t.Fatal("expected error")
	}
	if apperrors.KindOf(err) != apperrors.KindValidation {
		t.Fatalf("expected validation kind, got %s", apperrors.KindOf(err))
	}
}

func TestStoreErrorsPassThrough(t *testing.T) {
	dbErr := apperrors.NewDatabase(errors.New("locked"))
	store := &stubStore{err: dbErr}
	handler := NewListTasks(store)

	_, err := handler(context.Background(), nil, "user-1")
	if apperrors.KindOf(err) != apperrors.KindDatabase {
		t.Fatalf("expected database kind preserved, got %v", err)
	}
}

func TestListTasksHandlerShapesResult(t *testing.T) {
	store := &stubStore{tasks: []sqlite.FocusTask{{ID: 1, Title: "a"}, {ID: 2, Title: "b"}}}
	handler := NewListTasks(store)

	out, err := handler(context.Background(), map[string]any{
		"status": "pending",
		"limit":  float64(10),
	}, "user-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	body, ok := out.(map[string]any)
	if !ok {
		t.Fatalf("unexpected result type %T", out)
	}
	if body["count"] != 2 {
		t.Fatalf("unexpected count %v", body["count"])
	}
	if store.lastStatus != "pending" || store.lastLimit != 10 {
		t.Fatalf("arguments not forwarded: status=%q limit=%d", store.lastStatus, store.lastLimit)
	}
}

func TestDeleteTaskHandlerReturnsReceipt(t *testing.T) {
	store := &stubStore{}
	handler := NewDeleteTask(store)

	out, err := handler(context.Background(), map[string]any{"task_id": float64(3)}, "user-1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	body := out.(map[string]any)
	if body["deleted"] != true || body["task_id"] != int64(3) {
		t.Fatalf("unexpected receipt %+v", body)
	}
	if len(store.deleted) != 1 || store.deleted[0] != 3 {
		t.Fatalf("delete not forwarded: %v", store.deleted)
	}
}
