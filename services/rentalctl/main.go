// Command rentalctl talks to a running rental-service.
//
//	rentalctl token -user 1 -store store-1 -role Manager
//	rentalctl items list|get|search|create|delete ...
//	rentalctl packages list|get|create|delete ...
//	rentalctl rate item|package <id> <days>
//	rentalctl seed inventory.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/ashendes/rental-inventory/internal/auth"
	"github.com/ashendes/rental-inventory/internal/client"
	"github.com/ashendes/rental-inventory/internal/config"
	"github.com/ashendes/rental-inventory/internal/models"
	"github.com/ashendes/rental-inventory/internal/patterns"
	log "github.com/sirupsen/logrus"
)

func init() {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(os.Stderr)
}

const usage = `usage: rentalctl [-url URL] [-token TOKEN] <command> [args]

commands:
  token     issue a bearer token from the service config
  health    check the service
  items     list | get <id> | search <keyword> | create <file.json> | delete <id>
  packages  list | get <id> | create <file.json> | delete <id>
  rate      item|package <id> <days>
  seed      <file.json>`

func main() {
	global := flag.NewFlagSet("rentalctl", flag.ExitOnError)
	baseURL := global.String("url", envOr("RENTAL_URL", "http://localhost:8080"), "rental-service base URL")
	token := global.String("token", os.Getenv("RENTAL_TOKEN"), "bearer token")
	storeID := global.String("store", "", "store id for listings")
	global.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	_ = global.Parse(os.Args[1:])

	args := global.Args()
	if len(args) == 0 {
		global.Usage()
		os.Exit(2)
	}

	if args[0] == "token" {
		if err := issueToken(args[1:]); err != nil {
			log.WithError(err).Fatal("token")
		}
		return
	}

	ctx, cancel := patterns.WithTimeout(context.Background(), patterns.SlowServiceTimeout)
	defer cancel()
	c := client.New(client.Options{BaseURL: *baseURL, Token: *token, Service: "rentalctl"})

	var (
		result any
		err    error
	)
	switch args[0] {
	case "health":
		result, err = c.Health(ctx)
	case "items":
		result, err = items(ctx, c, *storeID, args[1:])
	case "packages":
		result, err = packages(ctx, c, *storeID, args[1:])
	case "rate":
		result, err = rate(ctx, c, args[1:])
	case "seed":
		if len(args) != 2 {
			err = fmt.Errorf("seed needs a file")
			break
		}
		result, err = seedFile(ctx, c, args[1])
	default:
		global.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.WithError(err).Fatal(args[0] + " failed")
	}
	printJSON(result)
}

func issueToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	configPath := fs.String("config", "", "service config file")
	user := fs.Int("user", 1, "user id")
	store := fs.String("store", "", "store id, empty for an unscoped caller")
	role := fs.String("role", "Manager", "role")
	email := fs.String("email", "", "email")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	tokens := auth.NewTokens([]byte(cfg.Auth.Key), cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.TokenTTL)
	raw, err := tokens.Issue(auth.Caller{UserID: *user, StoreID: *store, Role: *role, Email: *email})
	if err != nil {
		return err
	}
	fmt.Println(raw)
	return nil
}

func items(ctx context.Context, c *client.Client, storeID string, args []string) (any, error) {
	switch {
	case len(args) == 1 && args[0] == "list":
		return c.ListItems(ctx, storeID)
	case len(args) == 2 && args[0] == "get":
		return c.GetItem(ctx, args[1])
	case len(args) <= 2 && len(args) > 0 && args[0] == "search":
		keyword := ""
		if len(args) == 2 {
			keyword = args[1]
		}
		return c.SearchItems(ctx, storeID, keyword)
	case len(args) == 2 && args[0] == "create":
		var req models.ItemRequest
		if err := readJSON(args[1], &req); err != nil {
			return nil, err
		}
		return c.CreateItem(ctx, req)
	case len(args) == 2 && args[0] == "delete":
		return map[string]string{"deleted": args[1]}, c.DeleteItem(ctx, args[1])
	}
	return nil, fmt.Errorf("usage: items list | get <id> | search <keyword> | create <file.json> | delete <id>")
}

func packages(ctx context.Context, c *client.Client, storeID string, args []string) (any, error) {
	switch {
	case len(args) == 1 && args[0] == "list":
		return c.ListPackages(ctx, storeID)
	case len(args) == 2 && args[0] == "get":
		return c.GetPackage(ctx, args[1])
	case len(args) == 2 && args[0] == "create":
		var req models.PackageRequest
		if err := readJSON(args[1], &req); err != nil {
			return nil, err
		}
		return c.CreatePackage(ctx, req)
	case len(args) == 2 && args[0] == "delete":
		return map[string]string{"deleted": args[1]}, c.DeletePackage(ctx, args[1])
	}
	return nil, fmt.Errorf("usage: packages list | get <id> | create <file.json> | delete <id>")
}

func rate(ctx context.Context, c *client.Client, args []string) (any, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("usage: rate item|package <id> <days>")
	}
	days, err := strconv.Atoi(args[2])
	if err != nil {
		return nil, fmt.Errorf("days must be an integer: %w", err)
	}
	switch args[0] {
	case "item":
		return c.ItemRate(ctx, args[1], days)
	case "package":
		return c.PackageRate(ctx, args[1], days)
	}
	return nil, fmt.Errorf("rate target must be item or package")
}

func readJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
