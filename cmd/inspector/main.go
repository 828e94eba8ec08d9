// Inspector dumps the vault ledger as JSON for debugging. Point it at the
// same Redis the server uses (or run against an empty memory store to sanity
// check the key layout).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/astrobalance/vaultgate/internal/config"
	"github.com/astrobalance/vaultgate/internal/ledger"
	"github.com/astrobalance/vaultgate/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var store ledger.Store
	if cfg.Redis.Addr != "" {
		redisStore, err := repository.NewRedisStore(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		store = redisStore
	} else {
		fmt.Fprintln(os.Stderr, "no redis configured, inspecting an empty in-memory ledger")
		store = ledger.NewMemoryStore()
	}

	ctx := context.Background()
	keys, err := store.Keys(ctx, "")
	if err != nil {
		log.Fatalf("Failed to scan ledger: %v", err)
	}

	dump := make(map[string]json.RawMessage, len(keys))
	for _, key := range keys {
		raw, found, err := store.Get(ctx, key)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", key, err)
		}
		if !found {
			continue
		}
		if json.Valid(raw) {
			dump[key] = json.RawMessage(raw)
		} else {
			encoded, _ := json.Marshal(string(raw))
			dump[key] = encoded
		}
	}

	out, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode dump: %v", err)
	}
	fmt.Println(string(out))
}
