package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/alecthomas/kong"
	"k8s.io/klog"
)

// globals holds options shared by every command
type globals struct {
	Config    string `default:"./config.yml" help:"Configuration file."`
	Secrets   string `default:"./secrets.ejson" help:"Ejson secrets file."`
	Verbosity int    `short:"v" default:"0" help:"Log verbosity."`
}

var cli struct {
	Globals globals `embed:""`

	Import        importCmd        `cmd:"" help:"Import a bank CSV export into an account."`
	ListBanks     listBanksCmd     `cmd:"" name:"list-banks" help:"List supported bank formats."`
	Accounts      accountsCmd      `cmd:"" help:"List accounts with transaction counts."`
	RemoveAccount removeAccountCmd `cmd:"" name:"remove-account" help:"Remove an account and all of its transactions."`
	Categorize    categorizeCmd    `cmd:"" help:"Categorize transactions without a category."`
	SetCategory   setCategoryCmd   `cmd:"" name:"set-category" help:"Set the category of a transaction by id or id prefix."`
	AddRule       addRuleCmd       `cmd:"" name:"add-rule" help:"Add a merchant pattern to a category."`
	ExportRules   exportRulesCmd   `cmd:"" name:"export-rules" help:"Print the category rules."`
	ImportRules   importRulesCmd   `cmd:"" name:"import-rules" help:"Replace the category rules from a yaml or json file."`
	Budget        budgetCmd        `cmd:"" help:"Manage monthly category budgets."`
	Spending      spendingCmd      `cmd:"" help:"Show spending by category."`
	Compare       compareCmd       `cmd:"" help:"Compare category spending of two months and flag unusual categories."`
	Subscriptions subscriptionsCmd `cmd:"" help:"Detect recurring charges."`
	Suggest       suggestCmd       `cmd:"" help:"Suggest transactions that may be miscategorized."`
	Ynab          ynabCmd          `cmd:"" help:"Import transactions of the configured YNAB budgets."`
	Watch         watchCmd         `cmd:"" help:"Import the inbox and YNAB budgets on a schedule."`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("finimporter"),
		kong.Description("Bank transaction importer and categorizer."),
	)

	setupLogging(cli.Globals.Verbosity)
	defer klog.Flush()

	runCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := ctx.Run(&cli.Globals, &runContext{runCtx})
	ctx.FatalIfErrorf(err)
}

// runContext carries the process context into command Run methods. Kong
// binds by concrete type so the interface is wrapped.
type runContext struct {
	context.Context
}

func setupLogging(verbosity int) {
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)

	_ = fs.Set("logtostderr", "true")
	_ = fs.Set("v", strconv.Itoa(verbosity))
}
