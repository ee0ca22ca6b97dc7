package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"omniagent/pkg/hub"
	"omniagent/pkg/proto"
	"omniagent/pkg/webui"
)

const replHelp = `Commands:
  /mode <agent>   force an agent (e.g. /mode slides, /mode researcher); /mode off clears it
  /agents         list agents
  /approve        run the current plan
  /edit <text>    refine the current result
  /state          show the current view
  /reset          start over
  /quit           exit
Plain text submits a request in the hub, revises the plan in chat, and edits the result in a workspace.`

// repl is the interactive terminal front end.
type repl struct {
	hub         webui.Hub
	in          io.Reader
	out         io.Writer
	interactive bool
}

func newREPL(h webui.Hub, in io.Reader, out io.Writer, interactive bool) *repl {
	return &repl{hub: h, in: in, out: out, interactive: interactive}
}

// Run reads commands until /quit, end of input, or ctx ends.
func (r *repl) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r.in)
		scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		readErr <- scanner.Err()
	}()

	r.println("OmniAgent Hub. Describe what you want to build, or /help.")
	for {
		r.prompt()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			if quit := r.handle(ctx, strings.TrimSpace(line)); quit {
				return nil
			}
		}
	}
}

const maxLineBytes = 1 << 20

func (r *repl) prompt() {
	if !r.interactive {
		return
	}
	v := r.hub.Snapshot()
	label := string(v.Context)
	if v.Mode != nil {
		label += ":" + v.Mode.String()
	}
	_, _ = fmt.Fprintf(r.out, "%s> ", strings.ToLower(label))
}

func (r *repl) println(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format+"\n", args...)
}

// handle runs one input line and reports whether to quit.
func (r *repl) handle(ctx context.Context, line string) bool {
	if line == "" {
		return false
	}
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	var err error
	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		r.println(replHelp)
		return false
	case "/agents":
		for _, info := range proto.Catalog() {
			status := ""
			if !info.Supported {
				status = " (not yet available)"
			}
			r.println("  %-20s %s%s", info.Kind, info.Description, status)
		}
		return false
	case "/state":
		v := r.hub.Snapshot()
		r.println("Context: %s  Busy: %s", v.Context, v.Busy)
		renderView(r.out, &v)
		return false
	case "/mode":
		err = r.setMode(arg)
	case "/approve":
		r.println("⏳ Running the approved plan...")
		err = r.hub.Approve(ctx)
	case "/edit":
		r.println("⏳ Applying your changes...")
		err = r.hub.Edit(ctx, arg)
	case "/reset":
		err = r.hub.Reset()
	default:
		if strings.HasPrefix(cmd, "/") {
			r.println("Unknown command %s. Type /help.", cmd)
			return false
		}
		err = r.freeText(ctx, line)
	}

	v := r.hub.Snapshot()
	switch {
	case errors.Is(err, hub.ErrIllegalInput), errors.Is(err, hub.ErrBusy):
		r.println("❌ %v", err)
		return false
	case errors.Is(err, hub.ErrInvalidApproval):
		// The notice carries the message.
	case err != nil && v.Notice == "":
		r.println("❌ %v", err)
	}
	renderView(r.out, &v)
	return false
}

func (r *repl) setMode(arg string) error {
	if arg == "" || strings.EqualFold(arg, "off") || strings.EqualFold(arg, "none") {
		if err := r.hub.SetMode(nil); err != nil {
			return err
		}
		r.println("Mode cleared.")
		return nil
	}
	kind, err := parseModeArg(arg)
	if err != nil {
		return fmt.Errorf("%w: %v", hub.ErrIllegalInput, err)
	}
	if err := r.hub.SetMode(&kind); err != nil {
		return err
	}
	r.println("Mode set to %s.", kind.DisplayName())
	return nil
}

// parseModeArg accepts wire names, display names and the short workspace names.
func parseModeArg(arg string) (proto.AgentKind, error) {
	if kind, err := proto.ParseAgentKind(arg); err == nil {
		return kind, nil
	}
	for _, info := range proto.Catalog() {
		if strings.EqualFold(info.Name, arg) || strings.EqualFold(info.ChipLabel, arg) {
			return info.Kind, nil
		}
	}
	if ctx, err := proto.ParseAppContext(strings.ToUpper(arg)); err == nil {
		if kind, ok := proto.ExpectedKind(ctx); ok {
			return kind, nil
		}
	}
	return "", fmt.Errorf("unknown agent %q", arg)
}

// freeText routes plain input by context.
func (r *repl) freeText(ctx context.Context, text string) error {
	switch c := r.hub.Snapshot().Context; {
	case c == proto.ContextChat:
		r.println("⏳ Revising the plan...")
		return r.hub.Revise(ctx, text)
	case c.IsWorkspace():
		r.println("⏳ Applying your changes...")
		return r.hub.Edit(ctx, text)
	default:
		r.println("⏳ Analyzing your request...")
		return r.hub.Submit(ctx, text)
	}
}
