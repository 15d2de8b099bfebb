package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	booking "github.com/jongalloway/travel-booking-agents"
	"github.com/jongalloway/travel-booking-agents/model"
	"github.com/jongalloway/travel-booking-agents/policy"
	"github.com/jongalloway/travel-booking-agents/service/approval"
)

// RunCmd runs one request and prints its events.
type RunCmd struct {
	Request     []string `arg:"" help:"Travel request, e.g. \"Seattle to New York in 10 days for 3 nights\"."`
	Topology    string   `short:"t" help:"Topology (roundrobin, sequential, concurrent, handoff)." default:"roundrobin"`
	Approval    bool     `help:"Pause for a decision after the policy review (sequential, handoff)."`
	Diagnostics bool     `help:"Log every progress event."`
	AutoDecide  string   `name:"auto-decide" help:"Decide checkpoints without prompting (approve, cancel)."`
	DryRun      bool     `name:"dry-run" help:"Skip the reservation; the Booking step reports its fallback."`
}

func (c *RunCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if c.AutoDecide != "" {
		if _, err := approval.ParseAction(c.AutoDecide); err != nil {
			return err
		}
	}
	cfg, err := cli.loadConfig(ctx)
	if err != nil {
		return err
	}
	log, err := initLogger(cfg)
	if err != nil {
		return err
	}
	con := &console{r: bufio.NewReader(os.Stdin), w: os.Stdout}
	options := []booking.Option{booking.WithConfig(cfg), booking.WithLogger(log)}
	if strings.EqualFold(cfg.Tools.Mode, policy.ModeAsk) {
		options = append(options, booking.WithToolAsk(con.confirmTool))
	}
	srv, err := booking.New(options...)
	if err != nil {
		return err
	}
	run, err := srv.StartRun(ctx, &booking.RunRequest{
		Request:          strings.Join(c.Request, " "),
		Topology:         c.Topology,
		ApprovalRequired: c.Approval,
		Diagnostics:      c.Diagnostics,
		DryRun:           c.DryRun,
	})
	if err != nil {
		return err
	}

	var last *model.Event
	for evt := range run.Events {
		printEvent(os.Stdout, evt)
		last = evt
		if evt.Kind != model.EventAwaitingInput {
			continue
		}
		action, note := c.AutoDecide, "auto-decide"
		if action == "" {
			action, note = con.decide()
		}
		if _, err := srv.SubmitDecision(ctx, evt.CheckpointID, action, note); err != nil {
			return err
		}
	}
	if err = srv.Shutdown(context.Background()); err != nil {
		return err
	}
	if last == nil || last.Kind == model.EventError {
		if last != nil {
			return fmt.Errorf("run %s failed: %s", run.ID, last.Error)
		}
		return fmt.Errorf("run %s ended without a result", run.ID)
	}
	return nil
}

// printEvent writes one human-readable line, or the final result.
func printEvent(w io.Writer, evt *model.Event) {
	switch evt.Kind {
	case model.EventWorking:
		fmt.Fprintf(w, "[%d] %s: %s\n", evt.Seq, evt.Worker, evt.Summary)
	case model.EventStepComplete:
		fmt.Fprintf(w, "[%d] %s finished (%s, %dms)\n    %s\n", evt.Seq, evt.Worker, evt.Outcome, evt.ElapsedMs, evt.Summary)
	case model.EventAwaitingInput:
		fmt.Fprintf(w, "[%d] awaiting approval at %s (checkpoint %s)\n", evt.Seq, evt.Phase, evt.CheckpointID)
	case model.EventResumed:
		fmt.Fprintf(w, "[%d] resumed: %s\n", evt.Seq, evt.Summary)
	case model.EventCancelled:
		fmt.Fprintf(w, "[%d] cancelled at %s: %s\n", evt.Seq, evt.Phase, evt.Summary)
	case model.EventComplete:
		fmt.Fprintf(w, "[%d] complete\n\n%s\n", evt.Seq, evt.Result)
	case model.EventError:
		fmt.Fprintf(w, "[%d] error: %s\n", evt.Seq, evt.Error)
	}
}

// console serialises terminal prompts; tool confirmations arrive from worker
// goroutines while the event loop may be asking for a decision.
type console struct {
	mu sync.Mutex
	r  *bufio.Reader
	w  io.Writer
}

func (c *console) decide() (action, note string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return askDecision(c.r, c.w)
}

// confirmTool asks before a tool call; anything but an explicit yes rejects it.
func (c *console) confirmTool(_ context.Context, worker, tool string, args map[string]string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "Allow %s to call %s %v? [y/N]: ", worker, tool, args)
	line, _ := c.r.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// askDecision reads "approve|cancel [note]" from r; an empty line or EOF
// approves. Any other first word repeats the question.
func askDecision(r *bufio.Reader, w io.Writer) (action, note string) {
	for {
		fmt.Fprint(w, "Approve the itinerary? [approve]/cancel, optionally followed by a note: ")
		line, err := r.ReadString('\n')
		line = strings.TrimSpace(line)
		if line == "" {
			return string(approval.ActionApprove), ""
		}
		word, rest, _ := strings.Cut(line, " ")
		switch strings.ToLower(word) {
		case "c", "n", "no", "cancel":
			return string(approval.ActionCancel), strings.TrimSpace(rest)
		case "a", "y", "yes", "approve":
			return string(approval.ActionApprove), strings.TrimSpace(rest)
		}
		if err != nil {
			return string(approval.ActionApprove), ""
		}
		fmt.Fprintf(w, "Unrecognised answer %q; reply approve or cancel.\n", word)
	}
}
