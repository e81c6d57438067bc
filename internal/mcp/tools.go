package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func validTaskID(id int) error {
	if id < 0 {
		return fmt.Errorf("task_id must be non-negative, got %d", id)
	}
	return nil
}

func (s *Server) handleFocusedTask(_ context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, FocusedTaskOutput, error) {
	summary, err := s.backend.FocusedTask()
	if err != nil {
		return nil, FocusedTaskOutput{}, err
	}
	return nil, FocusedTaskOutput{Focused: summary != nil, Task: summary}, nil
}

func (s *Server) handleListTasks(_ context.Context, _ *mcpsdk.CallToolRequest, args ListTasksInput) (*mcpsdk.CallToolResult, ListTasksOutput, error) {
	displayID := -1
	if args.DisplayID != nil {
		if *args.DisplayID < 0 {
			return nil, ListTasksOutput{}, fmt.Errorf("display_id must be non-negative, got %d", *args.DisplayID)
		}
		displayID = *args.DisplayID
	}
	tasks, err := s.backend.ListTasks(displayID)
	if err != nil {
		return nil, ListTasksOutput{}, err
	}
	return nil, ListTasksOutput{Tasks: tasks, Count: len(tasks)}, nil
}

func (s *Server) handleRemoveTask(_ context.Context, _ *mcpsdk.CallToolRequest, args TaskInput) (*mcpsdk.CallToolResult, RemoveTaskOutput, error) {
	if err := validTaskID(args.TaskID); err != nil {
		return nil, RemoveTaskOutput{}, err
	}
	removed, err := s.backend.RemoveTask(args.TaskID)
	if err != nil {
		s.logger.Warn("remove_task failed", "task_id", args.TaskID, "error", err)
		return nil, RemoveTaskOutput{}, err
	}
	s.logger.Info("remove_task", "task_id", args.TaskID, "removed", removed)
	return nil, RemoveTaskOutput{TaskID: args.TaskID, Removed: removed}, nil
}

func (s *Server) handleFocusTask(_ context.Context, _ *mcpsdk.CallToolRequest, args TaskInput) (*mcpsdk.CallToolResult, FocusTaskOutput, error) {
	if err := validTaskID(args.TaskID); err != nil {
		return nil, FocusTaskOutput{}, err
	}
	if err := s.backend.FocusTask(args.TaskID); err != nil {
		s.logger.Warn("focus_task failed", "task_id", args.TaskID, "error", err)
		return nil, FocusTaskOutput{}, err
	}
	s.logger.Info("focus_task", "task_id", args.TaskID)
	return nil, FocusTaskOutput{TaskID: args.TaskID, Focused: true}, nil
}

func (s *Server) handleMoveTask(_ context.Context, _ *mcpsdk.CallToolRequest, args MoveTaskInput) (*mcpsdk.CallToolResult, MoveTaskOutput, error) {
	if err := validTaskID(args.TaskID); err != nil {
		return nil, MoveTaskOutput{}, err
	}
	if args.DisplayID < 0 {
		return nil, MoveTaskOutput{}, fmt.Errorf("display_id must be non-negative, got %d", args.DisplayID)
	}
	if err := s.backend.MoveTask(args.TaskID, args.DisplayID); err != nil {
		s.logger.Warn("move_task_to_display failed", "task_id", args.TaskID, "display_id", args.DisplayID, "error", err)
		return nil, MoveTaskOutput{}, err
	}
	s.logger.Info("move_task_to_display", "task_id", args.TaskID, "display_id", args.DisplayID)
	return nil, MoveTaskOutput{TaskID: args.TaskID, DisplayID: args.DisplayID, Moved: true}, nil
}

func (s *Server) handleDisplayState(_ context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, DisplayStateOutput, error) {
	data, err := s.backend.GetDisplayState()
	if err != nil {
		return nil, DisplayStateOutput{}, err
	}
	return nil, DisplayStateOutput{
		DisplayID: data.DisplayID,
		State:     data.State,
		Rotation:  data.State.Rotation.String(),
		Info:      data.Info,
	}, nil
}

func (s *Server) handleInspectTask(_ context.Context, _ *mcpsdk.CallToolRequest, args TaskInput) (*mcpsdk.CallToolResult, InspectTaskOutput, error) {
	if err := validTaskID(args.TaskID); err != nil {
		return nil, InspectTaskOutput{}, err
	}
	data, err := s.backend.InspectTask(args.TaskID)
	if err != nil {
		return nil, InspectTaskOutput{}, err
	}
	return nil, InspectTaskOutput{TaskID: data.TaskID, Type: data.Type, Attributes: data.Attributes}, nil
}
