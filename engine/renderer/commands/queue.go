package commands

import (
	"errors"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// ErrStopExecution ends a queue scan early without error.
var ErrStopExecution = errors.New("stop executing render commands")

var (
	endSize        = int(tagSize)
	swapSize       = Size(&SwapBuffersCommand{})
	screenshotSize = Size(&ScreenshotCommand{})
)

/**
 * @brief A fixed byte budget list of command records, filled by the front
 * end and executed in order by the back end. One producer and one consumer
 * use a queue in turn; it is not safe for concurrent use.
 */
type Queue struct {
	budget   int
	used     int
	commands []Command
	counters *core.FrameCounters
}

// NewQueue creates a queue holding at most budget bytes of records.
func NewQueue(budget int, counters *core.FrameCounters) *Queue {
	if counters == nil {
		counters = &core.FrameCounters{}
	}
	return &Queue{
		budget:   budget,
		commands: make([]Command, 0, 64),
		counters: counters,
	}
}

// Reserved is the tail room kept free for the records that must always fit:
// the end of list, the swap-buffers and one screenshot.
func Reserved() int {
	return endSize + swapSize + screenshotSize
}

// Append adds a droppable record. It reports false, recording nothing, when
// the record does not fit in front of the reserved tail.
func (q *Queue) Append(cmd Command) bool {
	size := Size(cmd)
	if q.used+size+Reserved() > q.budget {
		q.counters.Dropped++
		core.LogDebug("render command %s dropped, queue full (%d/%d)", cmd.Kind(), q.used, q.budget)
		return false
	}
	q.push(cmd, size)
	return true
}

// AppendCritical adds a record that must be executed this frame. It may use
// the reserved tail; running out of room is fatal.
func (q *Queue) AppendCritical(cmd Command) error {
	size := Size(cmd)
	if q.used+size+endSize > q.budget {
		return core.Fatal(core.ErrCommandQueueOverflow, "%s needs %d bytes, %d of %d used", cmd.Kind(), size, q.used, q.budget)
	}
	q.push(cmd, size)
	return nil
}

func (q *Queue) push(cmd Command, size int) {
	q.commands = append(q.commands, cmd)
	q.used += size
	q.counters.Commands++
}

// Used is the number of bytes taken by the queued records.
func (q *Queue) Used() int { return q.used }

// Budget is the queue capacity in bytes.
func (q *Queue) Budget() int { return q.budget }

// Len is the number of queued records.
func (q *Queue) Len() int { return len(q.commands) }

// Commands returns the queued records in append order.
func (q *Queue) Commands() []Command { return q.commands }

// Reset empties the queue for the next frame.
func (q *Queue) Reset() {
	for i := range q.commands {
		q.commands[i] = nil
	}
	q.commands = q.commands[:0]
	q.used = 0
}

// Execute scans the queue in order and hands every record to handle. The
// scan stops at the end of the list or at the first handler error.
func (q *Queue) Execute(handle func(Command) error) error {
	for _, cmd := range q.commands {
		if cmd.Kind() == KindEnd {
			break
		}
		if err := handle(cmd); err != nil {
			if errors.Is(err, ErrStopExecution) {
				return nil
			}
			return err
		}
	}
	return nil
}

// FixSortKeys shifts the shader index of every queued draw and lit surface
// after a shader was inserted at sortedIndex, so queued surfaces keep
// pointing at the shaders they were added with.
func (q *Queue) FixSortKeys(sortedIndex int) int {
	fixed := 0
	fix := func(key uint32) uint32 {
		idx, _, _, _ := metadata.DecomposeSortKey(key)
		if idx < sortedIndex {
			return key
		}
		fixed++
		return metadata.WithSortedIndex(key, idx+1)
	}

	for _, cmd := range q.commands {
		ds, ok := cmd.(*DrawSurfsCommand)
		if !ok {
			continue
		}
		for i := range ds.DrawSurfs {
			ds.DrawSurfs[i].Sort = fix(ds.DrawSurfs[i].Sort)
		}
		for _, dl := range ds.Dlights {
			for ls := dl.Head; ls != nil; ls = ls.Next {
				ls.Sort = fix(ls.Sort)
			}
		}
	}
	return fixed
}
