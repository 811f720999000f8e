package console

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"budgetbook/internal/budget"
	"budgetbook/internal/core"
	"budgetbook/internal/importer"
	"budgetbook/internal/log"
	"budgetbook/internal/storage"
)

func (c *Console) create(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: create profile|account|transaction", errUsage)
	}
	switch strings.ToLower(args[0]) {
	case "profile":
		return c.createProfile(ctx, args[1:])
	case "account":
		return c.createAccount(args[1:])
	case "transaction":
		return c.createTransaction(args[1:])
	}
	return fmt.Errorf("%w: cannot create %q", errUsage, args[0])
}

func (c *Console) createProfile(ctx context.Context, args []string) error {
	name, err := c.field(args, 0, "Profile name")
	if err != nil {
		return err
	}
	if err := storage.ValidateProfileName(name); err != nil {
		return err
	}
	if _, err := c.store.LoadProfile(ctx, name); err == nil {
		return fmt.Errorf("profile %q already exists", name)
	} else if !errors.Is(err, storage.ErrProfileNotFound) {
		return err
	}
	c.discardNotice()
	c.state = State{Profile: core.NewProfile(name), Dirty: true}
	fmt.Fprintf(c.out, "Created profile %s.\n", name)
	return nil
}

func (c *Console) createAccount(args []string) error {
	p, err := c.requireProfile()
	if err != nil {
		return err
	}
	name, err := c.field(args, 0, "Account name")
	if err != nil {
		return err
	}
	institution, err := c.field(args, 1, "Institution")
	if err != nil {
		return err
	}
	number, err := c.field(args, 2, "Account number")
	if err != nil {
		return err
	}
	raw, err := c.field(args, 3, "Starting balance")
	if err != nil {
		return err
	}
	balance := decimal.Zero
	if raw != "" {
		if balance, err = core.ParseAmount(raw); err != nil {
			return err
		}
	}
	a, err := p.CreateAccount(name, institution, number, balance)
	if err != nil {
		return err
	}
	c.state.Account, c.state.View = a, nil
	c.changed()
	fmt.Fprintf(c.out, "Created account %s with starting balance %s.\n", a.Name, core.FormatAmount(balance))
	return nil
}

func (c *Console) createTransaction(args []string) error {
	a, err := c.requireAccount()
	if err != nil {
		return err
	}
	rawDate, err := c.field(args, 0, "Date")
	if err != nil {
		return err
	}
	date, err := core.ParseDate(rawDate)
	if err != nil {
		return err
	}
	rawAmount, err := c.field(args, 1, "Amount")
	if err != nil {
		return err
	}
	amount, err := core.ParseAmount(rawAmount)
	if err != nil {
		return err
	}
	payee, err := c.field(args, 2, "Payee")
	if err != nil {
		return err
	}
	category, err := c.field(args, 3, "Category")
	if err != nil {
		return err
	}
	description, err := c.field(args, 4, "Description")
	if err != nil {
		return err
	}

	t := &core.Transaction{
		Payee:       payee,
		Description: description,
		Amount:      amount,
		Category:    core.NormalizeCategory(category),
		Date:        date,
	}
	a.AddTransaction(t)
	c.changed()
	fmt.Fprintf(c.out, "Added %s %s on %s.\n", t.Payee, core.FormatAmount(t.Amount), t.Date)
	return nil
}

// pick resolves a name or a 1-based index against names.
func pick(names []string, ref string) (string, bool) {
	if i, err := strconv.Atoi(ref); err == nil {
		if i < 1 || i > len(names) {
			return "", false
		}
		return names[i-1], true
	}
	for _, n := range names {
		if n == ref {
			return n, true
		}
	}
	return "", false
}

func (c *Console) selectCmd(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: select profile|account <name|#>", errUsage)
	}
	switch strings.ToLower(args[0]) {
	case "profile":
		names, err := c.store.ListProfiles(ctx)
		if err != nil {
			return err
		}
		ref, err := c.field(args, 1, "Profile")
		if err != nil {
			return err
		}
		name, ok := pick(names, ref)
		if !ok {
			return fmt.Errorf("%w: %s", storage.ErrProfileNotFound, ref)
		}
		p, err := c.store.LoadProfile(ctx, name)
		if err != nil {
			return err
		}
		c.discardNotice()
		c.state = State{Profile: p}
		fmt.Fprintf(c.out, "Selected profile %s.\n", p.Name)
		return nil
	case "account":
		p, err := c.requireProfile()
		if err != nil {
			return err
		}
		ref, err := c.field(args, 1, "Account")
		if err != nil {
			return err
		}
		names := make([]string, len(p.Accounts))
		for i, a := range p.Accounts {
			names[i] = a.Name
		}
		name, ok := pick(names, ref)
		if !ok {
			return fmt.Errorf("%w: %s", core.ErrAccountNotFound, ref)
		}
		c.state.Account, _ = p.Account(name)
		c.state.View = nil
		fmt.Fprintf(c.out, "Selected account %s.\n", name)
		return nil
	}
	return fmt.Errorf("%w: cannot select %q", errUsage, args[0])
}

func (c *Console) list(ctx context.Context, args []string) error {
	what := ""
	if len(args) > 0 {
		what = strings.ToLower(args[0])
	}
	if what == "" {
		switch {
		case c.state.Account != nil:
			what = "transactions"
		case c.state.Profile != nil:
			what = "accounts"
		default:
			what = "profiles"
		}
	}

	switch what {
	case "profiles":
		names, err := c.store.ListProfiles(ctx)
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Fprintln(c.out, "No saved profiles.")
			return nil
		}
		for i, n := range names {
			fmt.Fprintf(c.out, "%d. %s\n", i+1, n)
		}
	case "accounts":
		p, err := c.requireProfile()
		if err != nil {
			return err
		}
		renderAccounts(c.out, p)
	case "transactions":
		a, err := c.requireAccount()
		if err != nil {
			return err
		}
		renderTransactions(c.out, a.Transactions)
	case "categories":
		return c.category(nil)
	default:
		return fmt.Errorf("%w: list [profiles|accounts|transactions|categories]", errUsage)
	}
	return nil
}

func (c *Console) view() error {
	a, err := c.requireAccount()
	if err != nil {
		return err
	}
	c.state.View = append([]*core.Transaction(nil), a.Transactions...)
	renderTransactions(c.out, c.state.View)
	return nil
}

// sort orders the view ascending unless the direction is "-".
func (c *Console) sort(args []string) error {
	a, err := c.requireAccount()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return fmt.Errorf("%w: sort <date|payee|description|amount|category> [+|-]", errUsage)
	}
	field, err := core.ParseSortField(args[0])
	if err != nil {
		return err
	}
	descending := false
	if len(args) > 1 {
		switch args[1] {
		case "+":
		case "-":
			descending = true
		default:
			return fmt.Errorf("%w: sort direction must be + or -", errUsage)
		}
	}
	if c.state.View == nil {
		c.state.View = append([]*core.Transaction(nil), a.Transactions...)
	}
	sorted, err := core.SortTransactions(c.state.View, field, descending)
	if err != nil {
		return err
	}
	c.state.View = sorted
	renderTransactions(c.out, sorted)
	return nil
}

// clear with "sort" restores insertion order; bare clear closes the view.
func (c *Console) clear(args []string) error {
	if len(args) > 0 && strings.EqualFold(args[0], "sort") {
		a, err := c.requireAccount()
		if err != nil {
			return err
		}
		c.state.View = append([]*core.Transaction(nil), a.Transactions...)
		renderTransactions(c.out, c.state.View)
		return nil
	}
	c.state.View = nil
	return nil
}

func (c *Console) category(args []string) error {
	p, err := c.requireProfile()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		renderCategories(c.out, p.Categories)
		return nil
	}
	ref := core.NormalizeCategory(strings.Join(args, " "))
	if ref == "" {
		return core.ErrEmptyName
	}
	p.Categories.Add(ref)
	c.changed()
	fmt.Fprintf(c.out, "Added category %s.\n", ref)
	return nil
}

// row returns the transaction shown at 1-based position ref.
func (c *Console) row(ref string) (*core.Transaction, error) {
	a, err := c.requireAccount()
	if err != nil {
		return nil, err
	}
	rows := a.Transactions
	if c.state.View != nil {
		rows = c.state.View
	}
	i, err := strconv.Atoi(ref)
	if err != nil || i < 1 || i > len(rows) {
		return nil, fmt.Errorf("no transaction #%s", ref)
	}
	return rows[i-1], nil
}

func (c *Console) assign(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: assign <#> <category>", errUsage)
	}
	t, err := c.row(args[0])
	if err != nil {
		return err
	}
	t.Category = core.NormalizeCategory(strings.Join(args[1:], " "))
	c.changed()
	if !c.state.Profile.Categories.PrimaryExists(core.PrimaryCategory(t.Category)) {
		fmt.Fprintf(c.out, "Warning: %s is not a known category.\n", t.Category)
	}
	fmt.Fprintf(c.out, "%s is now in %s.\n", t.Payee, t.Category)
	return nil
}

func (c *Console) apply(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: apply <#> <none|whole|category>", errUsage)
	}
	t, err := c.row(args[0])
	if err != nil {
		return err
	}
	if !t.IsIncome() {
		return fmt.Errorf("%s is not income", t.Payee)
	}
	target := strings.Join(args[1:], " ")
	switch strings.ToLower(target) {
	case string(core.NotApplied):
		t.AppliedState, t.AppliedToCategory = core.NotApplied, ""
	case string(core.ApplyToWhole):
		t.AppliedState, t.AppliedToCategory = core.ApplyToWhole, ""
	default:
		if !c.state.Profile.Categories.PrimaryExists(target) {
			return fmt.Errorf("%w: %s", errUnknownCategory, target)
		}
		t.AppliedState, t.AppliedToCategory = core.ApplyToCategory, target
	}
	c.changed()
	fmt.Fprintf(c.out, "%s %s applied to %s.\n", t.Payee, core.FormatAmount(t.Amount), target)
	return nil
}

// split replaces the allocations of a transaction with category and amount
// pairs. "split <#> clear" removes them again.
func (c *Console) split(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: split <#> <category> <amount> [<category> <amount>...] | split <#> clear", errUsage)
	}
	t, err := c.row(args[0])
	if err != nil {
		return err
	}
	if len(args) == 2 && strings.EqualFold(args[1], "clear") {
		t.Splits = nil
		c.changed()
		fmt.Fprintf(c.out, "%s is no longer split.\n", t.Payee)
		return nil
	}
	pairs := args[1:]
	if len(pairs)%2 != 0 {
		return fmt.Errorf("%w: every split needs a category and an amount", errUsage)
	}
	splits := make([]core.Split, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		category := core.NormalizeCategory(pairs[i])
		if !c.state.Profile.Categories.PrimaryExists(core.PrimaryCategory(category)) {
			return fmt.Errorf("%w: %s", errUnknownCategory, pairs[i])
		}
		amount, err := core.ParseAmount(pairs[i+1])
		if err != nil {
			return err
		}
		splits = append(splits, core.Split{Category: category, Amount: amount})
	}
	t.Splits = splits
	c.changed()
	fmt.Fprintf(c.out, "%s is split %d ways.\n", t.Payee, len(splits))
	if total := core.SplitTotal(t); !total.Equal(t.Amount) {
		fmt.Fprintf(c.out, "Warning: splits add up to %s of %s; the rest stays uncategorized.\n",
			core.FormatAmount(total), core.FormatAmount(t.Amount))
	}
	return nil
}

func (c *Console) distribute(args []string) error {
	a, err := c.requireAccount()
	if err != nil {
		return err
	}
	if len(args) < 2 {
		return fmt.Errorf("%w: distribute <category> <amount>", errUsage)
	}
	category := args[0]
	if !c.state.Profile.Categories.PrimaryExists(category) {
		return fmt.Errorf("%w: %s", errUnknownCategory, category)
	}
	amount, err := core.ParseAmount(args[1])
	if err != nil {
		return err
	}
	a.SetStartingDistribution(category, amount)
	c.changed()
	fmt.Fprintf(c.out, "%s starts %s with %s.\n", a.Name, category, core.FormatAmount(amount))
	return nil
}

func (c *Console) budgetCmd(args []string) error {
	p, err := c.requireProfile()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		renderPeriods(c.out, p)
		return nil
	}
	switch strings.ToLower(args[0]) {
	case "create":
		if p.HasBudget() {
			return errors.New("the profile already has a budget")
		}
		if !budget.CreateMonthlyBudgets(p) {
			return errors.New("no transactions to budget")
		}
		c.changed()
		renderPeriods(c.out, p)
	case "next":
		if !budget.AddNextMonthlyBudget(p) {
			return errors.New("no transactions to budget")
		}
		c.changed()
		fmt.Fprintf(c.out, "Added period %s.\n", p.Budget[len(p.Budget)-1].YearMonth())
	case "show":
		if !p.HasBudget() {
			return errors.New("the profile has no budget, run budget create")
		}
		ym := p.Budget[len(p.Budget)-1].YearMonth()
		if len(args) > 1 {
			if ym, err = core.ParseYearMonth(args[1]); err != nil {
				return err
			}
		}
		renderMonthReport(c.out, budget.NewEngine(p).MonthReport(ym))
	case "year":
		if len(args) < 2 {
			return fmt.Errorf("%w: budget year <YYYY>", errUsage)
		}
		year, err := strconv.Atoi(args[1])
		if err != nil || year < 1 || year > 9999 {
			return fmt.Errorf("%w: bad year %q", errUsage, args[1])
		}
		renderYear(c.out, year, budget.NewEngine(p).YearSummary(year))
	default:
		return fmt.Errorf("%w: budget [create|next|show [YYYY-MM]|year <YYYY>]", errUsage)
	}
	return nil
}

func (c *Console) period(ref string) (*core.MonthlyBudget, error) {
	p, err := c.requireProfile()
	if err != nil {
		return nil, err
	}
	ym, err := core.ParseYearMonth(ref)
	if err != nil {
		return nil, err
	}
	b, ok := p.Period(ym)
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrPeriodNotFound, ym)
	}
	return b, nil
}

func (c *Console) percent(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("%w: percent <YYYY-MM> <category> <percent>", errUsage)
	}
	b, err := c.period(args[0])
	if err != nil {
		return err
	}
	category := args[1]
	if !c.state.Profile.Categories.PrimaryExists(category) {
		return fmt.Errorf("%w: %s", errUnknownCategory, category)
	}
	pct, err := core.ParsePercent(args[2])
	if err != nil {
		return err
	}
	b.SetPercentage(category, pct)
	c.changed()

	total := budget.NewEngine(c.state.Profile).TotalPercentage(b.YearMonth())
	fmt.Fprintf(c.out, "%s gets %s of %s; %s remains unallocated.\n",
		category, core.FormatPercent(pct), b.YearMonth(), core.FormatPercent(decimal.NewFromInt(1).Sub(total)))
	if total.GreaterThan(decimal.NewFromInt(1)) {
		fmt.Fprintf(c.out, "Warning: %s allocates %s.\n", b.YearMonth(), core.FormatPercent(total))
	}
	return nil
}

func (c *Console) transfer(args []string) error {
	if len(args) < 4 {
		return fmt.Errorf("%w: transfer <YYYY-MM> <from> <to> <amount>", errUsage)
	}
	b, err := c.period(args[0])
	if err != nil {
		return err
	}
	from, to := args[1], args[2]
	if from == to {
		return fmt.Errorf("%w: transfer needs two different categories", errUsage)
	}
	amount, err := core.ParseAmount(args[3])
	if err != nil {
		return err
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: transfer amount must be positive", core.ErrInvalidAmount)
	}
	b.AddTransfer(from, to, amount)
	c.changed()
	fmt.Fprintf(c.out, "Moved %s from %s to %s in %s.\n", core.FormatAmount(amount), from, to, b.YearMonth())
	return nil
}

func (c *Console) importCmd(ctx context.Context, args []string) error {
	a, err := c.requireAccount()
	if err != nil {
		return err
	}
	path, err := c.field(args, 0, "Statement file")
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open statement: %w", err)
	}
	defer f.Close()

	res, err := importer.Import(a, f)
	var perr *importer.ParseError
	if errors.As(err, &perr) {
		for _, row := range perr.Rows {
			fmt.Fprintf(c.out, "  line %d: %v\n", row.Line, row.Err)
		}
	}
	if err != nil {
		return err
	}
	if len(res.Imported) > 0 {
		c.changed()
	}
	c.logger.InfoContext(ctx, "Statement imported",
		log.FieldProfile, c.state.Profile.Name,
		log.FieldAccount, a.Name,
		log.FieldFormat, string(res.Format),
		log.FieldImported, len(res.Imported),
		log.FieldSkipped, res.Skipped)
	fmt.Fprintf(c.out, "Imported %d transactions (%s), skipped %d already present.\n",
		len(res.Imported), res.Format, res.Skipped)
	return nil
}

func (c *Console) save(ctx context.Context) error {
	p, err := c.requireProfile()
	if err != nil {
		return err
	}
	if err := c.store.SaveProfile(ctx, p); err != nil {
		return err
	}
	c.state.Dirty = false
	c.logger.InfoContext(ctx, "Profile saved", log.FieldProfile, p.Name, log.FieldOperation, log.OpUpdate)
	fmt.Fprintf(c.out, "Saved %s.\n", p.Name)
	return nil
}

// load rereads a profile from the store, keeping the selected account when it
// still exists.
func (c *Console) load(ctx context.Context, args []string) error {
	name := ""
	if len(args) > 0 {
		name = args[0]
	} else if c.state.Profile != nil {
		name = c.state.Profile.Name
	} else {
		return fmt.Errorf("%w: load <profile>", errUsage)
	}
	p, err := c.store.LoadProfile(ctx, name)
	if err != nil {
		return err
	}
	c.discardNotice()
	next := State{Profile: p}
	if c.state.Account != nil && c.state.Profile != nil && c.state.Profile.Name == name {
		next.Account, _ = p.Account(c.state.Account.Name)
	}
	c.state = next
	fmt.Fprintf(c.out, "Loaded %s.\n", p.Name)
	return nil
}

// back leaves the innermost selection.
func (c *Console) back() {
	switch {
	case c.state.View != nil:
		c.state.View = nil
	case c.state.Account != nil:
		c.state.Account = nil
	case c.state.Profile != nil:
		c.discardNotice()
		c.state = State{}
	}
}

func (c *Console) discardNotice() {
	if c.state.Dirty && c.state.Profile != nil {
		fmt.Fprintf(c.out, "Unsaved changes to %s were discarded.\n", c.state.Profile.Name)
	}
}
