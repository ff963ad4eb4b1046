package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/Saberlve/LLM-Kit-sub000/internal/deduplication"
	"github.com/Saberlve/LLM-Kit-sub000/internal/events"
	"github.com/Saberlve/LLM-Kit-sub000/internal/types"
)

// Store is the read side of pass storage the inspector needs.
type Store interface {
	GetPass(ctx context.Context, id string) (*types.PassRecord, error)
	LatestPass(ctx context.Context) (*types.PassRecord, error)
	ListPasses(ctx context.Context, limit int) ([]*types.PassRecord, error)
	GetKeptPairs(ctx context.Context, passID string) ([]types.QARecord, error)
	GetDeletedGroups(ctx context.Context, passID string) ([]deduplication.DeletedGroup, error)
	GetEvents(ctx context.Context, passID string, filter events.EventFilter) ([]*events.Event, error)
}

// REPL is an interactive inspector over stored dedup passes
type REPL struct {
	store    Store
	rl       *readline.Instance
	ctx      context.Context
	out      io.Writer
	commands map[string]CommandHandler

	pass   *types.PassRecord
	kept   []types.QARecord
	groups []deduplication.DeletedGroup
	loaded bool
}

// CommandHandler handles a specific command
type CommandHandler func(args []string) error

// Config holds REPL configuration
type Config struct {
	Store Store
	// PassID selects the pass to inspect; empty means the latest
	PassID string
	// Out receives command output (default: stdout)
	Out io.Writer
}

// errExit is returned by the exit command to stop the loop
var errExit = errors.New("exit")

// New creates a new REPL instance positioned on the requested pass
func New(ctx context.Context, cfg *Config) (*REPL, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("storage is required")
	}

	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}

	r := &REPL{
		store:    cfg.Store,
		ctx:      ctx,
		out:      out,
		commands: make(map[string]CommandHandler),
	}
	r.registerCommands()

	if err := r.selectPass(cfg.PassID); err != nil {
		return nil, err
	}
	return r, nil
}

// Run starts the REPL loop
func (r *REPL) Run() error {
	cyan := color.New(color.FgCyan).SprintFunc()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            cyan("qadedup> "),
		AutoComplete:      r.completer(),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()
	r.rl = rl

	r.printWelcome()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				// Ctrl+C - just show prompt again
				continue
			} else if err == io.EOF {
				fmt.Fprintln(r.out, "\nGoodbye!")
				return nil
			}
			return err
		}

		if err := r.processInput(line); err != nil {
			if errors.Is(err, errExit) {
				return nil
			}
			red := color.New(color.FgRed).SprintFunc()
			fmt.Fprintf(r.out, "%s %v\n", red("Error:"), err)
		}
	}
}

// processInput processes a single line of input
func (r *REPL) processInput(line string) error {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return nil
	}

	handler, ok := r.commands[strings.ToLower(parts[0])]
	if !ok {
		return fmt.Errorf("unknown command %q (type 'help')", parts[0])
	}
	return handler(parts[1:])
}

// registerCommands registers all built-in commands
func (r *REPL) registerCommands() {
	r.commands["help"] = r.cmdHelp
	r.commands["?"] = r.cmdHelp
	r.commands["summary"] = r.cmdSummary
	r.commands["kept"] = r.cmdKept
	r.commands["groups"] = r.cmdGroups
	r.commands["group"] = r.cmdGroup
	r.commands["events"] = r.cmdEvents
	r.commands["passes"] = r.cmdPasses
	r.commands["use"] = r.cmdUse
	r.commands["exit"] = r.cmdExit
	r.commands["quit"] = r.cmdExit
}

func (r *REPL) completer() *readline.PrefixCompleter {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	items := make([]readline.PrefixCompleterInterface, 0, len(names))
	for _, name := range names {
		items = append(items, readline.PcItem(name))
	}
	return readline.NewPrefixCompleter(items...)
}

// selectPass switches the inspected pass and drops cached output
func (r *REPL) selectPass(id string) error {
	var (
		pass *types.PassRecord
		err  error
	)
	if id == "" {
		pass, err = r.store.LatestPass(r.ctx)
	} else {
		pass, err = r.store.GetPass(r.ctx, id)
	}
	if err != nil {
		return fmt.Errorf("failed to load pass: %w", err)
	}

	r.pass = pass
	r.kept = nil
	r.groups = nil
	r.loaded = false
	return nil
}

// load fetches the output of the current pass on first use
func (r *REPL) load() error {
	if r.loaded {
		return nil
	}
	kept, err := r.store.GetKeptPairs(r.ctx, r.pass.ID)
	if err != nil {
		return fmt.Errorf("failed to load kept pairs: %w", err)
	}
	groups, err := r.store.GetDeletedGroups(r.ctx, r.pass.ID)
	if err != nil {
		return fmt.Errorf("failed to load deleted groups: %w", err)
	}
	r.kept, r.groups, r.loaded = kept, groups, true
	return nil
}

// printWelcome prints the welcome message
func (r *REPL) printWelcome() {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintf(r.out, "\n%s\n", cyan("qadedup inspector"))
	fmt.Fprintf(r.out, "Inspecting pass %s (%s)\n", r.pass.ID, r.pass.Status)
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, "Type 'help' for available commands, 'exit' to quit")
	fmt.Fprintln(r.out)
}

// cmdHelp shows help information
func (r *REPL) cmdHelp(args []string) error {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(r.out, "\n%s\n\n", cyan("Available Commands:"))

	commands := []struct {
		name string
		desc string
	}{
		{"summary", "Show counts and settings of the pass"},
		{"kept [n]", "List the first n kept records (default 10)"},
		{"groups [n]", "List the first n deleted groups (default 10)"},
		{"group <i>", "Show every record of deleted group i"},
		{"events [type]", "List pass events, optionally of one type"},
		{"passes", "List stored passes"},
		{"use <pass-id>", "Switch to another pass"},
		{"help, ?", "Show this help message"},
		{"exit, quit", "Exit the inspector"},
	}
	for _, cmd := range commands {
		fmt.Fprintf(r.out, "  %-16s %s\n", green(cmd.name), cmd.desc)
	}
	fmt.Fprintln(r.out)
	return nil
}

// cmdExit exits the REPL
func (r *REPL) cmdExit(args []string) error {
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(r.out, "\n%s Goodbye!\n", green("✓"))
	return errExit
}
