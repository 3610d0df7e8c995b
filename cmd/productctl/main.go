package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/tendant/simple-product/pkg/catalog/api"
	"github.com/tendant/simple-product/pkg/catalog/client"
)

const usage = `Simple Product CLI

Talks to a running product server over HTTP.

USAGE:
  productctl <command> [arguments] [options]

COMMANDS:
  login <username> <password>   Obtain a token (print it, export as PRODUCT_API_TOKEN)
  list                          List products one page at a time
  get <id>                      Show one product
  create                        Create a product (staff only)
  update <id>                   Replace a product, or patch it with --partial (staff only)
  delete <id>                   Delete a product (staff only)
  search <query>                Query the search index

ENVIRONMENT VARIABLES:
  PRODUCT_API_URL     Server base URL (default: http://localhost:8080)
  PRODUCT_API_TOKEN   Bearer token sent with every request

  Configuration can be loaded from a .env file in the current directory.

EXAMPLES:
  productctl login alice s3cret
  productctl list --limit=5
  productctl list --all --json
  productctl create --title="Macbook M5 Pro" --price=198.65
  productctl update 1 --partial --price=99.99
  productctl delete 1
  productctl search macbook --tags=pro

OPTIONS:
  --limit=<n>       Page size (list only, default: 10)
  --offset=<n>      Pagination offset (list only, default: 0)
  --all             Follow every page (list only)
  --title=<s>       Product title
  --content=<s>     Product description
  --price=<n>       Product price, e.g. 19.99
  --public=<bool>   Whether the product is public
  --partial         Send PATCH instead of PUT (update only)
  --index=<name>    Search index (search only)
  --tags=<a,b>      Restrict to tags (search only)
  --json            Output as JSON
`

type options struct {
	limit   int
	offset  int
	all     bool
	partial bool
	useJSON bool
	input   client.ProductInput
	search  map[string]string
	index   string
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

	c := client.New(
		getEnv("PRODUCT_API_URL", "http://localhost:8080"),
		client.WithToken(os.Getenv("PRODUCT_API_TOKEN")),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// Execute command
	switch command {
	case "login":
		handleLogin(ctx, c, opts)
	case "list":
		handleList(ctx, c, opts)
	case "get":
		handleGet(ctx, c, opts)
	case "create":
		handleCreate(ctx, c, opts)
	case "update":
		handleUpdate(ctx, c, opts)
	case "delete":
		handleDelete(ctx, c, opts)
	case "search":
		handleSearch(ctx, c, opts)
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Print(usage)
		os.Exit(1)
	}
}

func parseOptions(args []string) options {
	opts := options{limit: 10, search: map[string]string{}}

	for _, arg := range args {
		// Parse key=value flags
		key, value := parseFlag(arg)

		switch key {
		case "":
			opts.args = append(opts.args, arg)
		case "json":
			opts.useJSON = true
		case "all":
			opts.all = true
		case "partial":
			opts.partial = true
		case "limit":
			if n, err := strconv.Atoi(value); err == nil {
				opts.limit = n
			}
		case "offset":
			if n, err := strconv.Atoi(value); err == nil {
				opts.offset = n
			}
		case "title":
			opts.input.Title = &value
		case "content":
			opts.input.Content = &value
		case "price":
			n := json.Number(value)
			opts.input.Price = &n
		case "public":
			b, err := strconv.ParseBool(value)
			if err != nil {
				log.Fatalf("--public must be true or false")
			}
			opts.input.Public = &b
		case "index":
			opts.index = value
		default:
			opts.search[key] = value
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

func requireID(opts options) int64 {
	if len(opts.args) != 1 {
		log.Fatalf("a single product id is required")
	}
	id, err := strconv.ParseInt(opts.args[0], 10, 64)
	if err != nil {
		log.Fatalf("invalid product id %q", opts.args[0])
	}
	return id
}

func handleLogin(ctx context.Context, c *client.Client, opts options) {
	if len(opts.args) != 2 {
		log.Fatalf("usage: productctl login <username> <password>")
	}
	token, err := c.Login(ctx, opts.args[0], opts.args[1])
	if err != nil {
		log.Fatalf("Login failed: %v", err)
	}
	if opts.useJSON {
		printJSON(api.LoginResponse{Token: token})
		return
	}
	fmt.Println(token)
}

func handleList(ctx context.Context, c *client.Client, opts options) {
	if opts.all {
		products, err := c.ListAll(ctx)
		if err != nil {
			log.Fatalf("Failed to list products: %v", err)
		}
		if opts.useJSON {
			printJSON(products)
			return
		}
		printProducts(products)
		fmt.Printf("\nTotal: %d\n", len(products))
		return
	}

	page, err := c.List(ctx, opts.limit, opts.offset)
	if err != nil {
		log.Fatalf("Failed to list products: %v", err)
	}
	if opts.useJSON {
		printJSON(page)
		return
	}
	printProducts(page.Results)
	fmt.Printf("\nTotal: %d", page.Count)
	if page.Next != nil {
		fmt.Printf(" (has more, use --offset=%d to continue)", opts.offset+len(page.Results))
	}
	fmt.Println()
}

func handleGet(ctx context.Context, c *client.Client, opts options) {
	p, err := c.Get(ctx, requireID(opts))
	if err != nil {
		log.Fatalf("Failed to get product: %v", err)
	}
	printProduct(p, opts.useJSON)
}

func handleCreate(ctx context.Context, c *client.Client, opts options) {
	p, err := c.Create(ctx, opts.input)
	if err != nil {
		log.Fatalf("Failed to create product: %v", err)
	}
	printProduct(p, opts.useJSON)
}

func handleUpdate(ctx context.Context, c *client.Client, opts options) {
	p, err := c.Update(ctx, requireID(opts), opts.input, opts.partial)
	if err != nil {
		log.Fatalf("Failed to update product: %v", err)
	}
	printProduct(p, opts.useJSON)
}

func handleDelete(ctx context.Context, c *client.Client, opts options) {
	id := requireID(opts)
	if err := c.Delete(ctx, id); err != nil {
		log.Fatalf("Failed to delete product: %v", err)
	}
	fmt.Printf("Deleted product %d\n", id)
}

func handleSearch(ctx context.Context, c *client.Client, opts options) {
	query := strings.Join(opts.args, " ")
	result, err := c.Search(ctx, query, opts.index, opts.search)
	if err != nil {
		log.Fatalf("Search failed: %v", err)
	}
	if opts.useJSON {
		printJSON(result)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tSCORE\tTITLE\tPRICE\n")
	for _, hit := range result.Hits {
		fmt.Fprintf(w, "%s\t%.2f\t%s\t%v\n",
			hit.ObjectID,
			hit.Score,
			truncate(fmt.Sprint(hit.Fields["title"]), 40),
			hit.Fields["price"],
		)
	}
	w.Flush()
	fmt.Printf("\n%d hits in %s\n", result.Total, result.Index)
}

func printProduct(p *api.ProductResponse, useJSON bool) {
	if useJSON {
		printJSON(p)
		return
	}
	printProducts([]api.ProductResponse{*p})
}

func printProducts(products []api.ProductResponse) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tTITLE\tPRICE\tSALE\tCONTENT\n")
	for _, p := range products {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			p.PK,
			truncate(p.Title, 30),
			decimal.Decimal(p.Price).StringFixed(2),
			p.SalePrice,
			truncate(p.Content, 40),
		)
	}
	w.Flush()
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode output: %v", err)
	}
	fmt.Println(string(data))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func truncate(s string, maxLen int) string {
	if len([]rune(s)) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen-3]) + "..."
}
