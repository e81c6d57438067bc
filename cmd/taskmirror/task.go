package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/1broseidon/taskmirror/internal/display"
	"github.com/1broseidon/taskmirror/internal/ipc"
	"github.com/1broseidon/taskmirror/internal/task"
)

func printTaskUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  taskmirror task list [--display N] [--json]")
	fmt.Fprintln(w, "  taskmirror task focused [--json]")
	fmt.Fprintln(w, "  taskmirror task focus <task-id>")
	fmt.Fprintln(w, "  taskmirror task move <task-id> <display-id>")
	fmt.Fprintln(w, "  taskmirror task remove [--yes] <task-id>")
	fmt.Fprintln(w, "  taskmirror task inspect [--json] <task-id>")
}

func runTask(args []string) int {
	if len(args) == 0 {
		printTaskUsage(os.Stderr)
		return 2
	}

	switch args[0] {
	case "list":
		return runTaskList(args[1:])
	case "focused":
		return runTaskFocused(args[1:])
	case "focus":
		return runTaskFocus(args[1:])
	case "move":
		return runTaskMove(args[1:])
	case "remove":
		return runTaskRemove(args[1:])
	case "inspect":
		return runTaskInspect(args[1:])
	case "help", "-h", "--help":
		printTaskUsage(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown task command: %s\n\n", args[0])
		printTaskUsage(os.Stderr)
		return 2
	}
}

func runTaskList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	displayID := fs.Int("display", -1, "Only list tasks on this display (default: all displays)")
	asJSON := fs.Bool("json", false, "Print tasks as JSON")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "list takes no arguments")
		return 2
	}

	tasks, err := ipc.NewClient().ListTasks(*displayID)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *asJSON {
		return printJSON(tasks)
	}
	if len(tasks) == 0 {
		fmt.Println("no tasks")
		return 0
	}
	printTaskTable(os.Stdout, tasks)
	return 0
}

func printTaskTable(w io.Writer, tasks []task.Summary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tDISPLAY\tVISIBLE\tTYPE\tLAST ACTIVE\tTOP APPLICATION")
	for _, t := range tasks {
		top := t.TopApplication
		if top == "" {
			top = "-"
		}
		fmt.Fprintf(tw, "%d\t%d\t%v\t%s\t%s\t%s\n",
			t.TaskID, t.DisplayID, t.Visible, t.ActivityType, t.ActiveClock(), top)
	}
	tw.Flush()
}

func runTaskFocused(args []string) int {
	fs := flag.NewFlagSet("focused", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	asJSON := fs.Bool("json", false, "Print the task as JSON")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	summary, err := ipc.NewClient().FocusedTask()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *asJSON {
		return printJSON(summary)
	}
	if summary == nil {
		fmt.Println("no focused task")
		return 0
	}
	printTaskTable(os.Stdout, []task.Summary{*summary})
	if summary.BaseApplication != "" {
		fmt.Printf("\nbase_application: %s\n", summary.BaseApplication)
	}
	return 0
}

// parseIDs parses exactly n non-negative integer arguments.
func parseIDs(args []string, names ...string) ([]int, error) {
	if len(args) != len(names) {
		return nil, fmt.Errorf("expected %d argument(s): %v", len(names), names)
	}
	ids := make([]int, len(args))
	for i, a := range args {
		id, err := strconv.Atoi(a)
		if err != nil || id < 0 {
			return nil, fmt.Errorf("invalid %s %q", names[i], a)
		}
		ids[i] = id
	}
	return ids, nil
}

func runTaskFocus(args []string) int {
	ids, err := parseIDs(args, "task-id")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if err := ipc.NewClient().FocusTask(ids[0]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("focused task %d\n", ids[0])
	return 0
}

func runTaskMove(args []string) int {
	ids, err := parseIDs(args, "task-id", "display-id")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if err := ipc.NewClient().MoveTask(ids[0], ids[1]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("moved task %d to display %d\n", ids[0], ids[1])
	return 0
}

var errNotConfirmed = errors.New("not confirmed")

func runTaskRemove(args []string) int {
	fs := flag.NewFlagSet("remove", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	yes := fs.Bool("yes", false, "Skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	ids, err := parseIDs(fs.Args(), "task-id")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	taskID := ids[0]

	if !*yes {
		if err := confirmRemove(taskID); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}

	removed, err := ipc.NewClient().RemoveTask(taskID)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if !removed {
		fmt.Printf("task %d was not removed (no such task)\n", taskID)
		return 1
	}
	fmt.Printf("removed task %d\n", taskID)
	return 0
}

func confirmRemove(taskID int) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("refusing to remove task %d without a terminal; pass --yes", taskID)
	}
	confirmed := false
	err := huh.NewConfirm().
		Title(fmt.Sprintf("Remove task %d?", taskID)).
		Description("The task and its activities are finished on the device.").
		Affirmative("Remove").
		Negative("Cancel").
		Value(&confirmed).
		Run()
	if err != nil {
		return err
	}
	if !confirmed {
		return errNotConfirmed
	}
	return nil
}

func runTaskInspect(args []string) int {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	asJSON := fs.Bool("json", false, "Print attributes as JSON")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	ids, err := parseIDs(fs.Args(), "task-id")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	data, err := ipc.NewClient().InspectTask(ids[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *asJSON {
		return printJSON(data)
	}
	printInspect(os.Stdout, data)
	return 0
}

func printInspect(w io.Writer, data *ipc.InspectData) {
	fmt.Fprintf(w, "task %d (%s)\n", data.TaskID, data.Type)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, a := range data.Attributes {
		value := a.Value
		switch {
		case a.Error != "":
			value = "error: " + a.Error
		case a.Shadowed:
			value += " (shadowed)"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", a.Layer, a.Name, value)
	}
	tw.Flush()
}

func runDisplay(args []string) int {
	if len(args) == 0 || args[0] != "state" {
		fmt.Fprintln(os.Stderr, "Usage: taskmirror display state [--json]")
		if len(args) > 0 && (args[0] == "help" || args[0] == "-h" || args[0] == "--help") {
			return 0
		}
		return 2
	}

	fs := flag.NewFlagSet("state", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	asJSON := fs.Bool("json", false, "Print state as JSON")
	if err := fs.Parse(args[1:]); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	data, err := ipc.NewClient().GetDisplayState()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *asJSON {
		return printJSON(data)
	}
	printDisplayState(os.Stdout, data)
	return 0
}

func printDisplayState(w io.Writer, data *ipc.DisplayStateData) {
	fmt.Fprintf(w, "display_id:     %d\n", data.DisplayID)
	fmt.Fprintf(w, "tracked_size:   %s\n", formatSize(data.State))
	fmt.Fprintf(w, "tracked_rot:    %s\n", data.State.Rotation.String())
	if data.Info == nil {
		fmt.Fprintln(w, "present:        false")
		return
	}
	fmt.Fprintln(w, "present:        true")
	if data.Info.Name != "" {
		fmt.Fprintf(w, "name:           %s\n", data.Info.Name)
	}
	fmt.Fprintf(w, "host_size:      %s\n", data.Info.Size.String())
	if data.Info.Density > 0 {
		fmt.Fprintf(w, "density:        %d\n", data.Info.Density)
	}
}

func formatSize(s display.State) string {
	if !s.SizeKnown {
		return "unknown"
	}
	return s.Size.String()
}

func printJSON(v any) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
