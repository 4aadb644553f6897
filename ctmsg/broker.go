// Package ctmsg receives the messages CT-Lib reports through package
// ctlib and hands owned copies to Go handlers.
package ctmsg

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/google/uuid"

	ctlib "github.com/ase-go/ctlib-bindings-go"
)

// MessageHandler processes an owned message. Handlers run on the native
// library's servicing thread and must return quickly; use a Queue for
// slow work.
type MessageHandler func(ctlib.Message)

// Envelope is a received message with its origin.
type Envelope struct {
	ID         uuid.UUID
	Context    ctlib.Context
	Connection ctlib.Connection
	Received   time.Time
	Message    ctlib.Message
}

// StatusFunc decides the status the native library receives for a
// message.
type StatusFunc func(Envelope) ctlib.StatusCode

// AlwaysSucceed is the default StatusFunc.
func AlwaysSucceed(Envelope) ctlib.StatusCode {
	return ctlib.Succeed
}

// FailOnClientSeverity returns CS_FAIL for client messages of at least
// severity min, which makes CT-Lib mark the connection as dead.
func FailOnClientSeverity(min int64) StatusFunc {
	return func(env Envelope) ctlib.StatusCode {
		if env.Message.Class() == ctlib.ClientMessageClass && env.Message.MessageSeverity() >= min {
			return ctlib.Fail
		}
		return ctlib.Succeed
	}
}

// Stats are the broker counters.
type Stats struct {
	Server   int64
	Client   int64
	Dropped  int64
	Panicked int64
}

type handlerEntry struct {
	ctx    ctlib.Context
	scoped bool
	fn     MessageHandler
}

// Broker is a ctlib.Host. It copies every message at receipt, keeps the
// last error per connection (or per context for messages without one) and
// fans the copy out to its handlers.
type Broker struct {
	mu       sync.Mutex // serializes handler registration
	handlers atomic.Pointer[[]handlerEntry]
	lastErr  sync.Map // errKey -> Envelope

	serverErrSeverity int64
	clientErrSeverity int64
	status            StatusFunc
	queue             *Queue
	log               lgr.L
	now               func() time.Time

	server, client, dropped, panicked atomic.Int64
}

var _ ctlib.Host = (*Broker)(nil)

// errKey holds either a connection or, for context-level messages, the
// context. Connection handles are unique across contexts.
type errKey struct {
	ctx ctlib.Context
	con ctlib.Connection
}

func keyOf(ctx ctlib.Context, con ctlib.Connection) errKey {
	if con.IsNil() {
		return errKey{ctx: ctx}
	}
	return errKey{con: con}
}

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// WithStatusFunc sets the StatusFunc, AlwaysSucceed by default.
func WithStatusFunc(fn StatusFunc) BrokerOption {
	return func(b *Broker) {
		if fn != nil {
			b.status = fn
		}
	}
}

// WithErrorSeverity sets from which severity on a message is kept as the
// last error of its connection.
func WithErrorSeverity(server, client int64) BrokerOption {
	return func(b *Broker) {
		b.serverErrSeverity = server
		b.clientErrSeverity = client
	}
}

// WithQueue hands every envelope to q as well. Envelopes that do not fit
// are dropped and counted.
func WithQueue(q *Queue) BrokerOption {
	return func(b *Broker) { b.queue = q }
}

// WithLogger sets the logger for handler panics.
func WithLogger(l lgr.L) BrokerOption {
	return func(b *Broker) {
		if l != nil {
			b.log = l
		}
	}
}

// NewBroker returns a Broker without handlers.
func NewBroker(opts ...BrokerOption) *Broker {
	b := &Broker{
		serverErrSeverity: ctlib.ServerSevInform + 1,
		clientErrSeverity: ctlib.SevAPIFail,
		status:            AlwaysSucceed,
		log:               lgr.Std,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// RegisterHandler registers a handler for messages of all contexts.
func (b *Broker) RegisterHandler(h MessageHandler) {
	b.add(handlerEntry{fn: h})
}

// RegisterContextHandler registers a handler for messages reported for
// ctx only.
func (b *Broker) RegisterContextHandler(ctx ctlib.Context, h MessageHandler) {
	b.add(handlerEntry{ctx: ctx, scoped: true, fn: h})
}

func (b *Broker) add(entry handlerEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var handlers []handlerEntry
	if cur := b.handlers.Load(); cur != nil {
		handlers = append(handlers, *cur...)
	}
	handlers = append(handlers, entry)
	b.handlers.Store(&handlers)
}

// ServerMessage implements ctlib.Host.
func (b *Broker) ServerMessage(ctx ctlib.Context, con ctlib.Connection, msg ctlib.ServerMessageView) ctlib.StatusCode {
	b.server.Add(1)
	owned := ctlib.CopyServerMessage(msg)
	return b.receive(ctx, con, owned, owned.Severity >= b.serverErrSeverity)
}

// ClientMessage implements ctlib.Host.
func (b *Broker) ClientMessage(ctx ctlib.Context, con ctlib.Connection, msg ctlib.ClientMessageView) ctlib.StatusCode {
	b.client.Add(1)
	owned := ctlib.CopyClientMessage(msg)
	return b.receive(ctx, con, owned, owned.Severity >= b.clientErrSeverity)
}

func (b *Broker) receive(ctx ctlib.Context, con ctlib.Connection, msg ctlib.Message, isErr bool) ctlib.StatusCode {
	env := Envelope{
		ID:         uuid.New(),
		Context:    ctx,
		Connection: con,
		Received:   b.now(),
		Message:    msg,
	}

	if isErr {
		b.lastErr.Store(keyOf(ctx, con), env)
	}

	if cur := b.handlers.Load(); cur != nil {
		for _, entry := range *cur {
			if entry.scoped && entry.ctx != ctx {
				continue
			}
			b.call(entry.fn, msg)
		}
	}

	if b.queue != nil && !b.queue.Offer(env) {
		b.dropped.Add(1)
	}

	return b.status(env)
}

func (b *Broker) call(h MessageHandler, msg ctlib.Message) {
	defer func() {
		if r := recover(); r != nil {
			b.panicked.Add(1)
			b.log.Logf("[ERROR] %s message handler panicked: %v", msg.Class(), r)
		}
	}()
	h(msg)
}

// LastError returns the last message at or above the error severity that
// was reported for con.
func (b *Broker) LastError(con ctlib.Connection) (Envelope, bool) {
	return b.load(errKey{con: con}, false)
}

// TakeLastError is LastError but clears the slot.
func (b *Broker) TakeLastError(con ctlib.Connection) (Envelope, bool) {
	return b.load(errKey{con: con}, true)
}

// ClearLastError empties the slot of con, e.g. after the connection was
// dropped.
func (b *Broker) ClearLastError(con ctlib.Connection) {
	b.lastErr.Delete(errKey{con: con})
}

// LastContextError returns the last error reported for ctx without a
// connection, e.g. during ct_init or for a failed ct_con_alloc.
func (b *Broker) LastContextError(ctx ctlib.Context) (Envelope, bool) {
	return b.load(errKey{ctx: ctx}, false)
}

// TakeLastContextError is LastContextError but clears the slot.
func (b *Broker) TakeLastContextError(ctx ctlib.Context) (Envelope, bool) {
	return b.load(errKey{ctx: ctx}, true)
}

// ClearLastContextError empties the context-level slot of ctx.
func (b *Broker) ClearLastContextError(ctx ctlib.Context) {
	b.lastErr.Delete(errKey{ctx: ctx})
}

func (b *Broker) load(key errKey, take bool) (Envelope, bool) {
	var v any
	var ok bool
	if take {
		v, ok = b.lastErr.LoadAndDelete(key)
	} else {
		v, ok = b.lastErr.Load(key)
	}
	if !ok {
		return Envelope{}, false
	}
	return v.(Envelope), true
}

// Stats returns a snapshot of the counters.
func (b *Broker) Stats() Stats {
	return Stats{
		Server:   b.server.Load(),
		Client:   b.client.Load(),
		Dropped:  b.dropped.Load(),
		Panicked: b.panicked.Load(),
	}
}
