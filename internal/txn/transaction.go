// Package txn implements the per-connection transaction engine: the
// staged/immediate dispatch rule, the uncommitted journal, and commit
// and rollback compensation.
package txn

import (
	"github.com/lordbasex/queued/internal/protocol"
	"github.com/lordbasex/queued/internal/queue"
)

// entryKind tags the two flavors of journal entry plus the marker that
// records "a transaction is open even though nothing has happened yet".
type entryKind int

const (
	entryBeginMarker entryKind = iota
	entryPushPending
	entryPopUndo
)

type entry struct {
	kind    entryKind
	queue   string
	payload string
}

// Transaction holds one connection's uncommitted journal. The zero value
// is a usable, idle transaction.
type Transaction struct {
	journal []entry
}

// New returns an idle Transaction.
func New() *Transaction {
	return &Transaction{}
}

// InTransaction reports whether a BEGIN is currently open (the journal
// is non-empty — invariant 5 of spec.md §3).
func (t *Transaction) InTransaction() bool {
	return len(t.journal) > 0
}

// Exec dispatches cmd against table using staged semantics if a
// transaction is open, or immediate semantics otherwise (spec §4.4).
func (t *Transaction) Exec(cmd protocol.Command, table *queue.Table) protocol.CommandResult {
	if t.InTransaction() {
		return t.execStaged(cmd, table)
	}
	return t.execImmediate(cmd, table)
}

func (t *Transaction) execImmediate(cmd protocol.Command, table *queue.Table) protocol.CommandResult {
	switch cmd.Verb {
	case protocol.VerbPush:
		applyPush(table, cmd.Queue, cmd.Payload)
		return protocol.Data("SUCCESS")
	case protocol.VerbPop:
		return applyPop(table, cmd.Queue)
	case protocol.VerbBlockingPop:
		return protocol.Data(applyBlockingPop(table, cmd.Queue))
	case protocol.VerbQuit:
		return protocol.Disconnect()
	case protocol.VerbBegin:
		t.journal = append(t.journal, entry{kind: entryBeginMarker})
		return protocol.Success()
	case protocol.VerbCommit, protocol.VerbAbort:
		return protocol.Error("Not in transaction")
	default:
		return protocol.Error("Not in transaction")
	}
}

func (t *Transaction) execStaged(cmd protocol.Command, table *queue.Table) protocol.CommandResult {
	switch cmd.Verb {
	case protocol.VerbPush:
		t.journal = append(t.journal, entry{kind: entryPushPending, queue: cmd.Queue, payload: cmd.Payload})
		return protocol.Success()
	case protocol.VerbPop:
		result := applyPop(table, cmd.Queue)
		if result.Kind == protocol.ResultData {
			t.journal = append(t.journal, entry{kind: entryPopUndo, queue: cmd.Queue, payload: result.Message})
		}
		return result
	case protocol.VerbBlockingPop:
		data := applyBlockingPop(table, cmd.Queue)
		t.journal = append(t.journal, entry{kind: entryPopUndo, queue: cmd.Queue, payload: data})
		return protocol.Data(data)
	case protocol.VerbQuit:
		return protocol.Disconnect()
	case protocol.VerbBegin:
		return protocol.Error("Already in transaction")
	case protocol.VerbAbort:
		t.Rollback(table)
		return protocol.Success()
	case protocol.VerbCommit:
		t.commit(table)
		return protocol.Success()
	default:
		return protocol.Error("Already in transaction")
	}
}

// commit applies every staged PushPending, in journal order, and drops
// the journal. PopUndo entries are dropped without re-applying: a
// committed transaction keeps whatever it popped (spec §9 Open
// Question, resolved: popped data is permanently consumed on commit).
func (t *Transaction) commit(table *queue.Table) {
	for _, e := range t.journal {
		if e.kind == entryPushPending {
			applyPush(table, e.queue, e.payload)
		}
	}
	t.journal = nil
}

// Rollback drains the journal, pushing every PopUndo entry back to the
// tail of its queue in journal order (not original-pop order — spec §3
// invariant 3, §8 property 5). Safe to call on an idle transaction
// (no-op) and is also the implicit rollback a Connection must run on
// disconnect (spec §4.5, §7).
func (t *Transaction) Rollback(table *queue.Table) {
	for _, e := range t.journal {
		if e.kind == entryPopUndo {
			applyPush(table, e.queue, e.payload)
		}
	}
	t.journal = nil
}

func applyPush(table *queue.Table, name, payload string) {
	table.GetOrCreate(name).PushBack(payload)
}

func applyPop(table *queue.Table, name string) protocol.CommandResult {
	q, ok := table.Get(name)
	if !ok {
		return protocol.Error("NO SUCH QUEUE")
	}
	value, ok := q.PopFront()
	if !ok {
		return protocol.Error("NO DATA")
	}
	return protocol.Data(value)
}

func applyBlockingPop(table *queue.Table, name string) string {
	return table.GetOrCreate(name).PopFrontBlocking()
}
