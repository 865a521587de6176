package builtin

import (
	"hyperfocus/internal/toolregistry"
)

// RegisterAll wires every focus-domain tool into the registry. Called once
// at process start; any error is a configuration problem and fatal.
func RegisterAll(registry *toolregistry.Registry, store TaskStore) error {
	if err := registry.Register(CreateTaskMetadata(), NewCreateTask(store), "add_focus_task"); err != nil {
		return err
	}
	if err := registry.Register(GetTaskMetadata(), NewGetTask(store)); err != nil {
		return err
	}
	if err := registry.Register(ListTasksMetadata(), NewListTasks(store), "get_focus_tasks"); err != nil {
		return err
	}
	if err := registry.Register(SearchTasksMetadata(), NewSearchTasks(store)); err != nil {
		return err
	}
	if err := registry.Register(UpdateTaskMetadata(), NewUpdateTask(store)); err != nil {
		return err
	}
	if err := registry.Register(CompleteTaskMetadata(), NewCompleteTask(store)); err != nil {
		return err
	}
	if err := registry.Register(DeleteTaskMetadata(), NewDeleteTask(store)); err != nil {
		return err
	}
	if err := registry.Register(StatsMetadata(), NewStats(store)); err != nil {
		return err
	}
	return nil
}
