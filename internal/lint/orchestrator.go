package lint

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/linthost/internal/integration/process"
	"github.com/dshills/linthost/internal/logging"
)

// State is the orchestrator dispatch state.
type State int

const (
	// StateIdle means no process is running and the queue is empty.
	StateIdle State = iota
	// StateDispatching means a tool process is being started.
	StateDispatching
	// StateRunning means a tool process is alive.
	StateRunning
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDispatching:
		return "dispatching"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// Runner starts external processes.
// process.Runner satisfies this interface.
type Runner interface {
	Launch(ctx context.Context, cmd process.Command, l process.Listener) (string, error)
}

// CheckRequest asks for every configured tool to be run against a file.
type CheckRequest struct {
	Path      string
	Requested time.Time
}

// Stats is a point-in-time snapshot of orchestrator counters.
type Stats struct {
	State           State
	Current         string
	Queued          int
	ChecksCompleted int64
	ToolRuns        int64
	SpawnFailures   int64
	Annotations     int64
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTools sets the tool sequence run for every request.
func WithTools(tools []Tool) Option {
	return func(o *Orchestrator) {
		o.tools = append([]Tool(nil), tools...)
	}
}

// WithLogger sets the logger.
func WithLogger(log *logging.Logger) Option {
	return func(o *Orchestrator) {
		if log != nil {
			o.log = log.WithComponent("lint")
		}
	}
}

// WithFilter installs a diagnostic filter applied before the sink.
func WithFilter(f Filter) Option {
	return func(o *Orchestrator) {
		o.filter = f
	}
}

// WithObserver installs an event observer.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithCheckCompleted sets a handler called on the Run goroutine after
// each check cycle.
func WithCheckCompleted(fn func(CheckResult)) Option {
	return func(o *Orchestrator) {
		o.onCompleted = fn
	}
}

// activeCheck is the check cycle currently being dispatched.
type activeCheck struct {
	req     CheckRequest
	invs    []ToolInvocation
	next    int
	tool    string
	procID  string
	started time.Time
	result  CheckResult
}

// Orchestrator runs lint tools one process at a time and relays their
// findings to a Sink.
//
// RequestCheck and the process.Listener methods may be called from any
// goroutine. All other state is owned by the Run loop.
type Orchestrator struct {
	runner      Runner
	sink        Sink
	tools       []Tool
	filter      Filter
	observer    Observer
	onCompleted func(CheckResult)
	log         *logging.Logger

	inbox   *mailbox
	running atomic.Bool
	ctx     context.Context

	// Loop-owned.
	current *activeCheck
	output  bytes.Buffer

	// Guards the fields below, which are also read by Stats and Cancel.
	mu              sync.Mutex
	state           State
	currentPath     string
	queue           []CheckRequest
	checksCompleted int64
	toolRuns        int64
	spawnFailures   int64
	annotations     int64
}

// NewOrchestrator creates an orchestrator. The default tool sequence is
// DefaultTools.
func NewOrchestrator(runner Runner, sink Sink, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		runner:   runner,
		sink:     sink,
		tools:    DefaultTools(),
		observer: nopObserver{},
		log:      logging.Nop(),
		inbox:    newMailbox(),
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Tools returns a copy of the configured tool sequence.
func (o *Orchestrator) Tools() []Tool {
	return append([]Tool(nil), o.tools...)
}

// RequestCheck queues a check of path. It never blocks. Repeated requests
// for the same path are each run.
func (o *Orchestrator) RequestCheck(path string) {
	o.OnCheckRequested(path)
}

// OnCheckRequested posts a check request to the loop.
func (o *Orchestrator) OnCheckRequested(path string) {
	o.inbox.post(message{kind: msgCheckRequested, path: path})
}

// OnProcessOutput posts an output chunk to the loop.
func (o *Orchestrator) OnProcessOutput(id string, chunk []byte) {
	o.inbox.post(message{kind: msgProcessOutput, id: id, chunk: chunk})
}

// OnProcessTerminated posts a process termination to the loop.
func (o *Orchestrator) OnProcessTerminated(id string, exitCode int) {
	o.inbox.post(message{kind: msgProcessTerminated, id: id, exitCode: exitCode})
}

// Cancel removes queued requests for path that have not been dispatched
// and returns how many were removed. A check already in flight completes.
func (o *Orchestrator) Cancel(path string) int {
	o.mu.Lock()
	kept := o.queue[:0]
	removed := 0
	for _, req := range o.queue {
		if req.Path == path {
			removed++
			continue
		}
		kept = append(kept, req)
	}
	o.queue = kept
	depth := len(o.queue)
	o.mu.Unlock()

	if removed > 0 {
		o.log.Debug("cancelled queued checks", "path", path, "count", removed)
		o.observer.QueueDepth(depth)
	}
	return removed
}

// Stats returns a snapshot of the orchestrator counters.
func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := Stats{
		State:           o.state,
		Queued:          len(o.queue),
		ChecksCompleted: o.checksCompleted,
		ToolRuns:        o.toolRuns,
		SpawnFailures:   o.spawnFailures,
		Annotations:     o.annotations,
	}
	st.Current = o.currentPath
	return st
}

// Run processes messages until ctx is cancelled. Processes are launched
// with ctx, so cancelling it also stops a running tool.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer o.running.Store(false)

	if len(o.tools) == 0 {
		return ErrNoTools
	}

	o.ctx = ctx
	o.log.Debug("orchestrator started", "tools", len(o.tools))

	for {
		select {
		case <-ctx.Done():
			o.log.Debug("orchestrator stopped", "queued", o.Stats().Queued)
			return ctx.Err()
		case <-o.inbox.notify:
			for _, msg := range o.inbox.drain() {
				o.handle(msg)
			}
		}
	}
}

func (o *Orchestrator) handle(msg message) {
	switch msg.kind {
	case msgCheckRequested:
		o.handleCheckRequested(msg.path)
	case msgProcessOutput:
		if o.isCurrentProcess(msg.id) {
			o.output.Write(msg.chunk)
		}
	case msgProcessTerminated:
		if o.isCurrentProcess(msg.id) {
			o.handleTerminated(msg.exitCode)
		} else {
			o.log.Debug("ignoring stale termination", "id", msg.id)
		}
	}
}

func (o *Orchestrator) isCurrentProcess(id string) bool {
	return o.current != nil && o.current.procID != "" && o.current.procID == id
}

func (o *Orchestrator) handleCheckRequested(path string) {
	req := CheckRequest{Path: path, Requested: time.Now()}

	o.mu.Lock()
	if o.current != nil || o.state != StateIdle {
		o.queue = append(o.queue, req)
		depth := len(o.queue)
		o.mu.Unlock()

		o.log.Debug("check queued", "path", path, "depth", depth)
		o.observer.QueueDepth(depth)
		return
	}
	o.mu.Unlock()

	o.begin(req)
	o.advance()
}

// begin makes req the active check and clears the file's annotations.
func (o *Orchestrator) begin(req CheckRequest) {
	o.current = &activeCheck{
		req:     req,
		invs:    BuildInvocations(o.tools, req.Path),
		started: time.Now(),
		result:  CheckResult{Path: req.Path},
	}
	o.mu.Lock()
	o.state = StateDispatching
	o.currentPath = req.Path
	o.mu.Unlock()

	o.log.Debug("check started", "path", req.Path, "waited", time.Since(req.Requested))
	o.sink.ClearAnnotations(req.Path)
	o.observer.CheckStarted(req.Path)
}

// advance dispatches tools until one is running or every queued check has
// been exhausted.
func (o *Orchestrator) advance() {
	for o.current != nil {
		if o.launchNext() {
			return
		}
		o.finish()
	}
	o.setState(StateIdle)
}

// launchNext starts the next tool of the active check. It reports false
// when the tool sequence is exhausted.
func (o *Orchestrator) launchNext() bool {
	ac := o.current
	for ac.next < len(ac.invs) {
		inv := ac.invs[ac.next]
		ac.next++

		o.output.Reset()
		o.setState(StateDispatching)

		cmd := inv.Command()
		o.log.Debug("launching tool", "tool", inv.Tool, "command", cmd.Line)

		id, err := o.runner.Launch(o.ctx, cmd, o)
		if err != nil {
			o.log.Warn("failed to launch lint tool", "tool", inv.Tool, "command", cmd.Line, "error", err)
			ac.result.SpawnFailures++
			o.mu.Lock()
			o.spawnFailures++
			o.mu.Unlock()
			o.observer.SpawnFailed(inv.Tool, err)

			// Treated as a completed run with no output.
			o.apply(inv.Tool, "")
			continue
		}

		ac.tool = inv.Tool
		ac.procID = id
		o.setState(StateRunning)
		return true
	}
	return false
}

func (o *Orchestrator) handleTerminated(exitCode int) {
	ac := o.current
	text := o.output.String()
	o.output.Reset()
	ac.procID = ""

	o.log.Debug("tool finished", "tool", ac.tool, "path", ac.req.Path, "exit", exitCode, "bytes", len(text))

	ac.result.ToolRuns++
	o.mu.Lock()
	o.toolRuns++
	o.mu.Unlock()
	o.observer.ToolCompleted(ac.tool, exitCode)

	o.apply(ac.tool, text)
	o.advance()
}

// apply classifies one tool's output and relays it to the sink.
func (o *Orchestrator) apply(tool, text string) {
	ac := o.current
	path := ac.req.Path

	for _, d := range Classify(tool, text).Diagnostics() {
		if o.filter != nil {
			var keep bool
			d, keep = o.filter.Filter(path, d)
			if !keep {
				ac.result.Dropped++
				continue
			}
		}

		o.log.Debug("adding annotation", "path", path, "line", d.Line, "severity", d.Severity, "tool", d.Tool)
		o.sink.AddAnnotation(path, d.Line, d.Message, d.Severity)
		o.observer.DiagnosticEmitted(d)

		if d.Severity == SeverityWarning {
			ac.result.Warnings++
		} else {
			ac.result.Errors++
		}
		o.mu.Lock()
		o.annotations++
		o.mu.Unlock()
	}
}

// finish completes the active check and begins the next queued one.
func (o *Orchestrator) finish() {
	ac := o.current
	res := ac.result
	res.Duration = time.Since(ac.started)
	o.current = nil

	o.mu.Lock()
	o.checksCompleted++
	o.currentPath = ""
	var next *CheckRequest
	if len(o.queue) > 0 {
		req := o.queue[0]
		o.queue = o.queue[1:]
		next = &req
	}
	depth := len(o.queue)
	o.mu.Unlock()

	o.log.Debug("check completed", "path", res.Path, "errors", res.Errors, "warnings", res.Warnings, "duration", res.Duration)
	o.observer.CheckCompleted(res)
	if o.onCompleted != nil {
		o.onCompleted(res)
	}

	if next != nil {
		o.observer.QueueDepth(depth)
		o.begin(*next)
	}
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}
