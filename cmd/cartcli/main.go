package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/abhijeets54/ankkorwoo-sub001/internal/clientcart"
	"github.com/abhijeets54/ankkorwoo-sub001/internal/config"
	"github.com/abhijeets54/ankkorwoo-sub001/internal/service"
	"github.com/abhijeets54/ankkorwoo-sub001/pkg/logger"
)

const usage = `usage: cartcli <command> [args]

commands:
  show                               print the local snapshot
  sync                               reconcile against the server cart
  add <product> <qty> <price_minor>  add an item
  update <item-id> <qty>             change a line's quantity
  remove <item-id>                   drop a line
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.Load()
	log, err := logger.New(cfg.Mode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	store, err := clientcart.NewSQLiteStore(cfg.SnapshotDBPath)
	if err != nil {
		log.Fatal("failed to open snapshot store", "path", cfg.SnapshotDBPath, "error", err)
	}
	defer store.Close()

	server := clientcart.NewHTTPCartServer(cfg.ServerURL, cfg.ClientSessionID)
	cache := clientcart.NewCache(server, store, log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := cache.Load(ctx); err != nil {
		log.Fatal("failed to load snapshot", "error", err)
	}

	if err := run(ctx, cache, server, os.Args[1], os.Args[2:]); err != nil {
		log.Fatal("command failed", "command", os.Args[1], "error", err)
	}

	printSnapshot(cache)
}

func run(ctx context.Context, cache *clientcart.Cache, server *clientcart.HTTPCartServer, command string, args []string) error {
	switch command {
	case "show":
		return nil

	case "sync":
		cart, err := server.FetchCart(ctx)
		if err != nil {
			return err
		}
		cache.Reconcile(ctx, cart)
		return nil

	case "add":
		if len(args) != 3 {
			return fmt.Errorf("add wants <product> <qty> <price_minor>")
		}
		qty, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("bad quantity: %w", err)
		}
		price, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("bad price: %w", err)
		}
		_, err = cache.AddLocally(ctx, "", service.ItemInput{
			ProductID: args[0],
			Quantity:  qty,
			UnitPrice: price,
			Currency:  "USD",
		})
		return err

	case "update":
		if len(args) != 2 {
			return fmt.Errorf("update wants <item-id> <qty>")
		}
		qty, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("bad quantity: %w", err)
		}
		return cache.UpdateLocally(ctx, "", args[0], qty)

	case "remove":
		if len(args) != 1 {
			return fmt.Errorf("remove wants <item-id>")
		}
		return cache.RemoveLocally(ctx, "", args[0])

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func printSnapshot(cache *clientcart.Cache) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(cache.Snapshot())
}
