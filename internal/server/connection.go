package server

import (
	"bufio"
	"errors"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/lordbasex/queued/internal/protocol"
	"github.com/lordbasex/queued/internal/queue"
	"github.com/lordbasex/queued/internal/txn"
)

// messageDelimiter is the single byte framing messages on the wire
// (spec §6): everything before it is one message, not including it.
const messageDelimiter = ';'

// Connection drives one client's protocol session against a shared
// queue.Table. It reads and writes through plain io.Reader/io.Writer
// rather than net.Conn directly, the same injection the original test
// suite used (original_source/tests/connection.rs's Cursor-backed
// connections) so this type is exercisable with bytes.Buffer or
// net.Pipe() without a real socket.
type Connection struct {
	id         string
	remoteAddr string

	reader *bufio.Reader
	writer *bufio.Writer

	table       *queue.Table
	transaction *txn.Transaction

	limiter  *RateLimiter
	registry *Registry
	metrics  *Metrics
	log      *logrus.Entry
}

// NewConnection wires up one connection's dependencies. id should come
// from Registry.Register; remoteAddr is used both for logging and as the
// RateLimiter key.
func NewConnection(id, remoteAddr string, r io.Reader, w io.Writer, table *queue.Table, limiter *RateLimiter, registry *Registry, metrics *Metrics, log *logrus.Entry) *Connection {
	return &Connection{
		id:          id,
		remoteAddr:  remoteAddr,
		reader:      bufio.NewReader(r),
		writer:      bufio.NewWriter(w),
		table:       table,
		transaction: txn.New(),
		limiter:     limiter,
		registry:    registry,
		metrics:     metrics,
		log:         log.WithFields(logrus.Fields{"conn_id": id, "remote_addr": remoteAddr}),
	}
}

// Serve runs the connection's read-dispatch-reply loop until
// disconnect, EOF, or an I/O error, then performs the implicit rollback
// mandated by spec §4.5/§7 for every exit path.
func (c *Connection) Serve() {
	defer c.rollbackAndReport()

	for {
		message, err := c.readMessage()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.log.WithError(err).Warn("connection read failed")
			}
			return
		}

		if !c.limiter.Allow(c.remoteAddr) {
			c.metrics.RateLimited()
			if !c.writeLine("Rate limit exceeded") {
				return
			}
			continue
		}

		c.registry.Touch(c.id)

		wasInTransaction := c.transaction.InTransaction()

		cmd, parseErr := protocol.Parse(message)
		var result protocol.CommandResult
		if parseErr != nil {
			result = protocol.Error(parseErr.Error())
		} else {
			if cmd.Verb == protocol.VerbBlockingPop {
				c.metrics.BPopWaitStarted()
			}
			result = c.transaction.Exec(cmd, c.table)
			if cmd.Verb == protocol.VerbBlockingPop {
				c.metrics.BPopWaitEnded()
			}
			c.metrics.CommandProcessed(verbName(cmd.Verb), result)
		}

		if !wasInTransaction && c.transaction.InTransaction() {
			c.metrics.TransactionOpened()
		} else if wasInTransaction && !c.transaction.InTransaction() {
			c.metrics.TransactionClosed()
		}

		if !c.writeResult(result) {
			return
		}
		if result.IsQuit() {
			return
		}
	}
}

// readMessage reads up to the next delimiter and returns the message
// bytes without it. An EOF with no bytes read (or a partial message with
// no trailing delimiter) is reported as io.EOF, which Serve treats as an
// orderly disconnect per spec §6's framing rule.
func (c *Connection) readMessage() ([]byte, error) {
	raw, err := c.reader.ReadBytes(messageDelimiter)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	return raw[:len(raw)-1], nil
}

// writeResult renders result per spec §4.5/§6's reply table and flushes
// it. Returns false if the write failed, signaling the caller to treat
// this as an I/O error and tear the connection down.
func (c *Connection) writeResult(result protocol.CommandResult) bool {
	switch result.Kind {
	case protocol.ResultSuccess:
		return true
	case protocol.ResultData:
		return c.writeLine(result.Message)
	case protocol.ResultError:
		return c.writeLine(result.Message)
	case protocol.ResultDisconnect:
		return c.writeLine("Bye Bye")
	default:
		return true
	}
}

func (c *Connection) writeLine(s string) bool {
	if _, err := c.writer.WriteString(s); err != nil {
		c.log.WithError(err).Warn("connection write failed")
		return false
	}
	if _, err := c.writer.WriteString("\r\n"); err != nil {
		c.log.WithError(err).Warn("connection write failed")
		return false
	}
	if err := c.writer.Flush(); err != nil {
		c.log.WithError(err).Warn("connection flush failed")
		return false
	}
	return true
}

func (c *Connection) rollbackAndReport() {
	if c.transaction.InTransaction() {
		c.metrics.TransactionClosed()
	}
	c.transaction.Rollback(c.table)
	c.limiter.Forget(c.remoteAddr)
	c.registry.Unregister(c.id)
	c.metrics.ConnectionClosed()
}
