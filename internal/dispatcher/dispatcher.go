// Package dispatcher implements the line-delimited JSON request/response
// loop that fronts the knowledge graph and nudge engine. It is the Go
// restatement of kg-bridge.py / pi-nudge-engine.py's stdin/stdout
// command loop, grounded in shape on the teacher's
// internal/mcp.Server.Run bufio.Scanner loop but simplified away from
// JSON-RPC 2.0 framing down to the flatter {command, args} -> {...}
// protocol those Python bridges speak.
package dispatcher

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/openclaw/kgraph/internal/eventsink"
	"github.com/openclaw/kgraph/internal/logging"
)

// Request is one line of dispatcher input.
type Request struct {
	Command string         `json:"command"`
	Args    map[string]any `json:"args"`
}

// Handler executes one command and returns the response payload. A
// non-nil error is translated into {success:false, error:<message>} by
// the dispatcher; handlers never write to stdout directly.
type Handler func(ctx context.Context, args map[string]any) (map[string]any, error)

// Dispatcher reads one JSON request per line from its input, looks up a
// handler in its command table, and writes one JSON response per line to
// its output. Unknown commands and handler errors both produce a
// {success:false, error:...} response rather than aborting the loop.
type Dispatcher struct {
	commands map[string]Handler
	log      *logging.Logger
	events   *eventsink.Sink

	in  io.Reader
	out io.Writer
}

// New builds a Dispatcher named component (used for logging and event
// tagging) with no registered commands; call Register to add handlers.
func New(component string, in io.Reader, out io.Writer) *Dispatcher {
	return &Dispatcher{
		commands: make(map[string]Handler),
		log:      logging.GetLogger(component),
		events:   eventsink.New(component, ""),
		in:       in,
		out:      out,
	}
}

// Register adds a handler for a command name, overwriting any existing
// registration for that name.
func (d *Dispatcher) Register(command string, h Handler) {
	d.commands[command] = h
}

// Run reads one JSON request per line from the input stream until EOF or
// ctx is cancelled, dispatching each to its registered handler and
// writing one JSON response per line to the output stream.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.log.Info("starting dispatcher loop", "commands", len(d.commands))
	scanner := bufio.NewScanner(d.in)
	scanner.Buffer(make([]byte, 1024*1024), 10*1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			d.log.Info("context cancelled, shutting down")
			return ctx.Err()
		default:
		}

		line := scanner.Text()
		if line == "" {
			continue
		}

		resp := d.handleLine(ctx, line)
		if err := d.writeResponse(resp); err != nil {
			d.log.Error("failed to write response", "error", err)
		}
	}

	if err := scanner.Err(); err != nil {
		d.log.Error("scanner error", "error", err)
		return fmt.Errorf("dispatcher scanner error: %w", err)
	}
	d.log.Info("dispatcher loop finished")
	return nil
}

// HandleOnce processes a single request line without a scanning loop,
// for callers (REST handlers, tests) that already have a decoded line.
func (d *Dispatcher) HandleOnce(ctx context.Context, line string) map[string]any {
	return d.handleLine(ctx, line)
}

func (d *Dispatcher) handleLine(ctx context.Context, line string) map[string]any {
	var req Request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		d.log.Error("failed to parse request", "error", err)
		return map[string]any{"success": false, "error": fmt.Sprintf("invalid request: %v", err)}
	}

	handler, ok := d.commands[req.Command]
	if !ok {
		d.log.Warn("unknown command", "command", req.Command)
		return map[string]any{"success": false, "error": fmt.Sprintf("unknown command: %s", req.Command)}
	}

	var resp map[string]any
	timingErr := d.events.Timed("dispatch_command", map[string]any{"command": req.Command}, func() error {
		var err error
		resp, err = handler(ctx, req.Args)
		return err
	})
	if timingErr != nil {
		d.log.Error("command failed", "command", req.Command, "error", timingErr)
		return map[string]any{"success": false, "error": timingErr.Error()}
	}
	if resp == nil {
		resp = map[string]any{}
	}
	if _, ok := resp["success"]; !ok {
		resp["success"] = true
	}
	return resp
}

func (d *Dispatcher) writeResponse(resp map[string]any) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	_, err = fmt.Fprintln(d.out, string(data))
	return err
}
