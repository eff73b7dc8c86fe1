// Package protocol implements the command parser and the tagged Command
// / CommandResult variants that sit between the wire bytes and the
// transaction engine.
package protocol

// Verb identifies which of the seven protocol commands a Command carries.
type Verb int

const (
	// VerbQuit ends the connection.
	VerbQuit Verb = iota
	// VerbPush enqueues Payload onto Queue.
	VerbPush
	// VerbPop dequeues from Queue, failing if empty or missing.
	VerbPop
	// VerbBlockingPop dequeues from Queue, waiting for data if empty.
	VerbBlockingPop
	// VerbBegin opens a transaction.
	VerbBegin
	// VerbCommit applies a transaction's staged pushes.
	VerbCommit
	// VerbAbort undoes a transaction's staged pops.
	VerbAbort
)

// Command is the closed, tagged variant produced by parsing one framed
// message. Only the fields relevant to Verb are meaningful: Queue and
// Payload are empty for the zero-argument verbs.
type Command struct {
	Verb    Verb
	Queue   string
	Payload string
}

// CommandResultKind tags which variant of CommandResult is populated.
type CommandResultKind int

const (
	// ResultSuccess carries no reply body.
	ResultSuccess CommandResultKind = iota
	// ResultData carries a successful reply body (a popped value, or
	// "SUCCESS" for a non-transactional push).
	ResultData
	// ResultError carries a semantic or parse error reply body.
	ResultError
	// ResultDisconnect signals the connection should close after
	// writing "Bye Bye".
	ResultDisconnect
)

// CommandResult is the outcome of executing a Command: what (if
// anything) to write back to the client, and whether the connection
// should keep running afterward.
type CommandResult struct {
	Kind    CommandResultKind
	Message string
}

// Success is the zero-reply-body outcome (BEGIN, transactional PUSH,
// COMMIT, ABORT).
func Success() CommandResult { return CommandResult{Kind: ResultSuccess} }

// Data wraps a successful reply body.
func Data(message string) CommandResult {
	return CommandResult{Kind: ResultData, Message: message}
}

// Error wraps a semantic or parse-error reply body.
func Error(message string) CommandResult {
	return CommandResult{Kind: ResultError, Message: message}
}

// Disconnect is the QUIT outcome.
func Disconnect() CommandResult { return CommandResult{Kind: ResultDisconnect} }

// IsQuit reports whether this result should end the connection's read
// loop once written.
func (r CommandResult) IsQuit() bool {
	return r.Kind == ResultDisconnect
}
