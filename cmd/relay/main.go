package main

import (
	"fmt"
	"log"

	"github.com/downfa11-org/go-relay/pkg/config"
	"github.com/downfa11-org/go-relay/pkg/egress"
	"github.com/downfa11-org/go-relay/pkg/routing"
	"github.com/downfa11-org/go-relay/pkg/server"
	"github.com/downfa11-org/go-relay/pkg/storage/disk"
	"github.com/downfa11-org/go-relay/pkg/storage/raftstore"
	"github.com/downfa11-org/go-relay/pkg/types"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	fmt.Printf("🚀 Starting relay on port %d\n", cfg.ServerPort)
	fmt.Printf("🧱 Shards: %d | 📊 Exporter: %v | 🔁 Replication: %v\n",
		cfg.ShardCount, cfg.EnableExporter, cfg.EnableReplication)

	local := disk.NewStore(cfg)
	defer func() {
		if err := local.Close(); err != nil {
			log.Printf("⚠️ Failed to close store: %v", err)
		}
	}()

	var writer types.StorageWriter = local
	if cfg.EnableReplication {
		replicated, err := raftstore.NewStore(cfg, local)
		if err != nil {
			log.Fatalf("❌ Failed to start replicated store: %v", err)
		}
		defer func() {
			if err := replicated.Close(); err != nil {
				log.Printf("⚠️ Failed to shut down raft: %v", err)
			}
		}()
		writer = replicated
	}

	registry := egress.NewRegistry(cfg, writer)
	defer registry.Close()

	router := routing.NewRouter(cfg.ShardCount, nil)
	gateway := egress.NewGateway(registry, router)
	handler := server.NewCommandHandler(gateway, local)

	if err := server.RunServer(cfg, handler); err != nil {
		log.Fatalf("❌ Relay failed: %v", err)
	}
}
