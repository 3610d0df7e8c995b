package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/tendant/simple-product/internal/logging"
	"github.com/tendant/simple-product/pkg/catalog/auth"
	"github.com/tendant/simple-product/pkg/catalog/config"
	repopg "github.com/tendant/simple-product/pkg/catalog/repo/postgres"
)

const usage = `Simple Product Admin CLI

Maintenance commands that talk to the store and search index directly.

USAGE:
  admin <command> [options]

COMMANDS:
  list            List products straight from the store
  migrate         Create the product table (postgres only)
  reindex         Push every product to the search index again
  detach-owner    Clear the owner of every product owned by a removed user
  hash-password   Print a bcrypt hash for use in AUTH_USERS

ENVIRONMENT VARIABLES:
  DATABASE_URL      "memory" or a PostgreSQL connection string
  SEARCH_URL        "memory://", "redis://host:6379/0" or "none"
  SEARCH_INDEX_NAME Index to rebuild (default: catalog_Product)

  Configuration can be loaded from a .env file in the current directory.
  Command line environment variables override .env file values.

EXAMPLES:
  admin list --limit=20
  admin list --json
  admin migrate
  admin reindex
  admin detach-owner --user-id=3
  admin hash-password s3cret

OPTIONS:
  --limit=<n>       Maximum results (list only, default: 100)
  --offset=<n>      Pagination offset (list only, default: 0)
  --user-id=<n>     Owner to detach (detach-owner only)
  --json            Output as JSON
`

type options struct {
	limit   int
	offset  int
	userID  int64
	useJSON bool
	args    []string
}

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	command := os.Args[1]

	// Check for help
	if command == "help" || command == "--help" || command == "-h" {
		fmt.Print(usage)
		os.Exit(0)
	}

	opts := parseOptions(os.Args[2:])

	if command == "hash-password" {
		handleHashPassword(opts)
		return
	}

	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logging.Setup(cfg.Environment)

	ctx := context.Background()
	app, err := cfg.Build(ctx)
	if err != nil {
		log.Fatalf("Failed to build service: %v", err)
	}
	defer app.Close()

	// Execute command
	switch command {
	case "list":
		handleList(ctx, app, opts)
	case "migrate":
		handleMigrate(ctx, app)
	case "reindex":
		handleReindex(ctx, app)
	case "detach-owner":
		handleDetachOwner(ctx, app, opts)
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Print(usage)
		os.Exit(1)
	}
}

func parseOptions(args []string) options {
	opts := options{limit: 100}

	for _, arg := range args {
		if arg == "--json" {
			opts.useJSON = true
			continue
		}

		// Parse key=value flags
		key, value := parseFlag(arg)

		switch key {
		case "limit":
			if n, err := strconv.Atoi(value); err == nil {
				opts.limit = n
			}
		case "offset":
			if n, err := strconv.Atoi(value); err == nil {
				opts.offset = n
			}
		case "user-id":
			if n, err := strconv.ParseInt(value, 10, 64); err == nil {
				opts.userID = n
			}
		case "":
			opts.args = append(opts.args, arg)
		}
	}

	return opts
}

func parseFlag(arg string) (string, string) {
	if len(arg) > 2 && arg[:2] == "--" {
		arg = arg[2:]
		for i, c := range arg {
			if c == '=' {
				return arg[:i], arg[i+1:]
			}
		}
		return arg, "true"
	}
	return "", ""
}

func handleList(ctx context.Context, app *config.App, opts options) {
	products, total, err := app.Repository.ListProducts(ctx, opts.limit, opts.offset)
	if err != nil {
		log.Fatalf("Failed to list products: %v", err)
	}

	if opts.useJSON {
		data, _ := json.MarshalIndent(map[string]interface{}{
			"count":    total,
			"products": products,
		}, "", "  ")
		fmt.Println(string(data))
		return
	}

	// Table output
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tTITLE\tPRICE\tSALE\tOWNER\tPUBLIC\tUPDATED\n")

	for _, p := range products {
		owner := "-"
		if p.HasOwner() {
			owner = strconv.FormatInt(*p.OwnerID, 10)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%t\t%s\n",
			p.ID,
			truncate(p.Title, 30),
			p.Price.StringFixed(2),
			p.SalePriceString(),
			owner,
			p.Public,
			p.UpdatedAt.Format("2006-01-02 15:04:05"),
		)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d", total)
	if opts.offset+len(products) < total {
		fmt.Printf(" (has more, use --offset=%d to continue)", opts.offset+len(products))
	}
	fmt.Println()
}

func handleMigrate(ctx context.Context, app *config.App) {
	repo, ok := app.Repository.(*repopg.Repository)
	if !ok {
		fmt.Println("Nothing to migrate for the in-memory store")
		return
	}
	if err := repo.Migrate(ctx); err != nil {
		log.Fatalf("Failed to migrate: %v", err)
	}
	fmt.Println("Schema is up to date")
}

func handleReindex(ctx context.Context, app *config.App) {
	if app.Synchronizer == nil {
		log.Fatalf("Search is disabled (SEARCH_URL=none)")
	}
	n, err := app.Synchronizer.Reindex(ctx, app.Repository)
	if err != nil {
		log.Fatalf("Reindex stopped after %d products: %v", n, err)
	}
	fmt.Printf("Reindexed %d products into %s\n", n, app.Synchronizer.IndexName())
}

func handleDetachOwner(ctx context.Context, app *config.App, opts options) {
	if opts.userID <= 0 {
		log.Fatalf("--user-id is required")
	}
	n, err := app.Service.DetachOwner(ctx, opts.userID)
	if err != nil {
		log.Fatalf("Failed to detach owner: %v", err)
	}
	fmt.Printf("Detached user %d from %d products\n", opts.userID, n)
}

func handleHashPassword(opts options) {
	if len(opts.args) != 1 {
		log.Fatalf("usage: admin hash-password <password>")
	}
	hash, err := auth.HashPassword(opts.args[0])
	if err != nil {
		log.Fatalf("%v", err)
	}
	fmt.Println(hash)
}

func truncate(s string, maxLen int) string {
	if len([]rune(s)) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen-3]) + "..."
}
