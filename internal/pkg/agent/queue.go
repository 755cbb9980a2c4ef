package agent

import (
	"time"

	"github.com/anicoll/relaygate/internal/pkg/model"
)

// Command is a pending hardware write.
type Command struct {
	Gpio       int
	State      bool
	Seq        uint64
	Source     model.CommandSource
	EnqueuedAt time.Time
}

// CommandQueue is a bounded FIFO decoupling inbound message handling from
// GPIO mutation. Push never blocks; overflow is the caller's problem to log.
type CommandQueue struct {
	items    []Command
	capacity int
}

func NewCommandQueue(capacity int) *CommandQueue {
	return &CommandQueue{capacity: capacity}
}

// Push appends a command, returning false when the queue is full.
func (q *CommandQueue) Push(cmd Command) bool {
	if len(q.items) >= q.capacity {
		return false
	}
	q.items = append(q.items, cmd)
	return true
}

// PushFront re-queues a command at the head, used when the rate limiter
// rejects mid-drain so ordering is preserved. Overflow is allowed here: the
// command was already accepted once.
func (q *CommandQueue) PushFront(cmd Command) {
	q.items = append([]Command{cmd}, q.items...)
}

// Pop removes and returns the head command.
func (q *CommandQueue) Pop() (Command, bool) {
	if len(q.items) == 0 {
		return Command{}, false
	}
	cmd := q.items[0]
	q.items = q.items[1:]
	return cmd, true
}

func (q *CommandQueue) Len() int { return len(q.items) }
