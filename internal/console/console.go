// Package console is the interactive command loop over a profile store.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"budgetbook/internal/core"
	"budgetbook/internal/log"
	"budgetbook/internal/storage"
)

var (
	errNoProfile       = errors.New("no profile selected")
	errNoAccount       = errors.New("no account selected")
	errUsage           = errors.New("usage")
	errUnknownCommand  = errors.New("unknown command")
	errEndOfInput      = errors.New("end of input")
	errUnknownCategory = errors.New("unknown category")
)

// State is what the user has selected. View holds the transactions being
// viewed, in display order; it is nil outside the transaction view.
type State struct {
	Profile *core.Profile
	Account *core.Account
	View    []*core.Transaction
	Dirty   bool
}

type Options struct {
	// Prompt prints a prompt before reading each command.
	Prompt bool
	Logger *log.Logger
}

type Console struct {
	store  storage.ProfileStore
	in     *bufio.Scanner
	out    io.Writer
	prompt bool
	logger *log.Logger
	state  State
}

func New(store storage.ProfileStore, in io.Reader, out io.Writer, opts Options) *Console {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	return &Console{
		store:  store,
		in:     bufio.NewScanner(in),
		out:    out,
		prompt: opts.Prompt,
		logger: logger.WithComponent(log.ComponentConsole),
	}
}

// State returns the current selection.
func (c *Console) State() State {
	return c.state
}

// Run reads commands until quit or end of input. Command errors are printed
// and do not stop the loop; only a failing reader does.
func (c *Console) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := c.readLine(c.promptText())
		if errors.Is(err, errEndOfInput) {
			return nil
		}
		if err != nil {
			return err
		}
		quit, err := c.Execute(ctx, line)
		if err != nil {
			fmt.Fprintf(c.out, "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

func (c *Console) promptText() string {
	if !c.prompt {
		return ""
	}
	var parts []string
	if c.state.Profile != nil {
		parts = append(parts, c.state.Profile.Name)
	}
	if c.state.Account != nil {
		parts = append(parts, c.state.Account.Name)
	}
	mark := ""
	if c.state.Dirty {
		mark = "*"
	}
	return strings.Join(parts, "/") + mark + "> "
}

// readLine prints label and reads the next line of input.
func (c *Console) readLine(label string) (string, error) {
	if label != "" {
		fmt.Fprint(c.out, label)
	}
	if !c.in.Scan() {
		if err := c.in.Err(); err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return "", errEndOfInput
	}
	return strings.TrimSpace(c.in.Text()), nil
}

// field returns args[i] when present and prompts for it otherwise.
func (c *Console) field(args []string, i int, label string) (string, error) {
	if i < len(args) {
		return args[i], nil
	}
	return c.readLine(label + ": ")
}

// Execute runs a single command line.
func (c *Console) Execute(ctx context.Context, line string) (quit bool, err error) {
	args, err := splitArgs(line)
	if err != nil {
		return false, err
	}
	if len(args) == 0 {
		return false, nil
	}
	name, params := strings.ToLower(args[0]), args[1:]

	switch name {
	case "q", "quit", "exit":
		c.discardNotice()
		return true, nil
	case "help", "?":
		c.help()
	case "create":
		err = c.create(ctx, params)
	case "select":
		err = c.selectCmd(ctx, params)
	case "list", "ls":
		err = c.list(ctx, params)
	case "view":
		err = c.view()
	case "sort":
		err = c.sort(params)
	case "clear":
		err = c.clear(params)
	case "category":
		err = c.category(params)
	case "assign":
		err = c.assign(params)
	case "apply":
		err = c.apply(params)
	case "split":
		err = c.split(params)
	case "distribute":
		err = c.distribute(params)
	case "budget":
		err = c.budgetCmd(params)
	case "percent":
		err = c.percent(params)
	case "transfer":
		err = c.transfer(params)
	case "import":
		err = c.importCmd(ctx, params)
	case "save":
		err = c.save(ctx)
	case "load":
		err = c.load(ctx, params)
	case "back":
		c.back()
	default:
		err = fmt.Errorf("%w %q, type help for a list", errUnknownCommand, args[0])
	}
	return false, err
}

func (c *Console) requireProfile() (*core.Profile, error) {
	if c.state.Profile == nil {
		return nil, fmt.Errorf("%w: create or select a profile first", errNoProfile)
	}
	return c.state.Profile, nil
}

func (c *Console) requireAccount() (*core.Account, error) {
	if _, err := c.requireProfile(); err != nil {
		return nil, err
	}
	if c.state.Account == nil {
		return nil, fmt.Errorf("%w: create or select an account first", errNoAccount)
	}
	return c.state.Account, nil
}

// changed marks the profile modified and refreshes an open view.
func (c *Console) changed() {
	c.state.Dirty = true
	if c.state.View != nil && c.state.Account != nil {
		c.state.View = append([]*core.Transaction(nil), c.state.Account.Transactions...)
	}
}

const helpText = `Profiles
  create profile <name>           start a new profile
  select profile <name|#>         load a saved profile
  list [profiles|accounts|transactions|categories]
  save                            write the profile to the store
  load [name]                     reload from the store, dropping changes
Accounts
  create account <name> [institution] [number] [starting balance]
  select account <name|#>
  distribute <category> <amount>  assign part of the starting balance
  import <file>                   import a bank statement CSV
Transactions
  create transaction <date> <amount> <payee> [category] [description]
  view                            show the account's transactions
  sort <date|payee|description|amount|category> [+|-]
  clear sort
  assign <#> <category>           categorize a transaction
  apply <#> <none|whole|category> apply income to the budget
  split <#> <category> <amount> [<category> <amount>...]
  split <#> clear                 undo a split
Budget
  category [Primary[:Secondary]]  list or add categories
  budget [create|next|show [YYYY-MM]|year <YYYY>]
  percent <YYYY-MM> <category> <percent>
  transfer <YYYY-MM> <from> <to> <amount>
Other
  back, help, quit (q)
`

func (c *Console) help() {
	fmt.Fprint(c.out, helpText)
}
