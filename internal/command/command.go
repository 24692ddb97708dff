package command

import (
	"context"
	"time"

	"github.com/enchantedlib/lending-service/internal/model"
)

// Result is the structured outcome of a command. Business-rule violations
// are reported here with OK=false; only storage failures surface as errors.
type Result struct {
	OK      bool
	Message string

	Record  *model.LendingRecord
	DueDate *time.Time
	LateFee float64

	BookID    string
	SectionID string
}

func failure(message string) Result {
	return Result{Message: message}
}

// Command is an executable, undoable unit of state change spanning the
// book, user and lending-record aggregates. Undo is a best-effort
// compensating action, not a true inverse: it restores the aggregate state
// a command saved before executing, but does not reconstruct every detail
// of the pre-execution world (borrow history entries in particular).
type Command interface {
	Execute(ctx context.Context) (Result, error)
	Undo(ctx context.Context) (Result, error)
}

// History is a LIFO stack of executed commands. It is not safe for
// concurrent use; callers sharing it across goroutines must synchronize.
type History struct {
	stack []Command
}

func (h *History) Push(cmd Command) {
	h.stack = append(h.stack, cmd)
}

func (h *History) Pop() Command {
	if len(h.stack) == 0 {
		return nil
	}
	cmd := h.stack[len(h.stack)-1]
	h.stack = h.stack[:len(h.stack)-1]
	return cmd
}

// Clear discards the stack and with it any undo capability.
func (h *History) Clear() {
	h.stack = nil
}

func (h *History) Len() int {
	return len(h.stack)
}

// Invoker executes commands and keeps the undo history. Only commands whose
// execution succeeded are pushed. There is no redo.
type Invoker struct {
	history History
}

func NewInvoker() *Invoker {
	return &Invoker{}
}

func (inv *Invoker) Execute(ctx context.Context, cmd Command) (Result, error) {
	res, err := cmd.Execute(ctx)
	if err != nil {
		return res, err
	}
	if res.OK {
		inv.history.Push(cmd)
	}
	return res, nil
}

func (inv *Invoker) UndoLast(ctx context.Context) (Result, error) {
	cmd := inv.history.Pop()
	if cmd == nil {
		return failure("no command to undo"), nil
	}
	return cmd.Undo(ctx)
}

func (inv *Invoker) ClearHistory() {
	inv.history.Clear()
}

func (inv *Invoker) HistorySize() int {
	return inv.history.Len()
}
