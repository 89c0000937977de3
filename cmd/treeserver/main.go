// Command treeserver boots the tree-commitment HTTP service: one chosen
// storage backend, the incremental and sparse tree engines built on top of
// it, and the JSON/HTTP adapter. Flags and environment variables mirror the
// original's single PORT knob, extended with the storage and tree
// configuration this rework adds.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/commitree/commitree/internal/httpapi"
	"github.com/commitree/commitree/internal/obs"
	"github.com/commitree/commitree/internal/rootcache"
	"github.com/commitree/commitree/storage"
	"github.com/commitree/commitree/storage/badgerstore"
	"github.com/commitree/commitree/storage/memstore"
	"github.com/commitree/commitree/storage/mysqlstore"
	"github.com/commitree/commitree/trees/imt"
	"github.com/commitree/commitree/trees/smt"
)

func main() {
	app := &cli.App{
		Name:  "treeserver",
		Usage: "authenticated Merkle-tree commitment service",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Value:   8080,
				Usage:   "HTTP server port",
				EnvVars: []string{"PORT"},
			},
			&cli.StringFlag{
				Name:    "storage-backend",
				Value:   "badger",
				Usage:   "one of: badger, mysql, memory",
				EnvVars: []string{"COMMITREE_STORAGE_BACKEND"},
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Value:   "./data",
				Usage:   "Badger data directory (storage-backend=badger)",
				EnvVars: []string{"COMMITREE_DATA_DIR"},
			},
			&cli.StringFlag{
				Name:    "mysql-dsn",
				Usage:   "MySQL DSN (storage-backend=mysql)",
				EnvVars: []string{"COMMITREE_MYSQL_DSN"},
			},
			&cli.IntFlag{
				Name:    "smt-depth",
				Value:   smt.DefaultDepth,
				Usage:   "sparse Merkle tree depth, 1..64",
				EnvVars: []string{"COMMITREE_SMT_DEPTH"},
			},
			&cli.StringFlag{
				Name:    "redis-addr",
				Usage:   "optional Redis address for the root/proof response cache",
				EnvVars: []string{"COMMITREE_REDIS_ADDR"},
			},
			&cli.IntFlag{
				Name:    "redis-ttl-seconds",
				Value:   30,
				Usage:   "TTL for cached roots and proofs when --redis-addr is set",
				EnvVars: []string{"COMMITREE_REDIS_TTL_SECONDS"},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "use the development (console) log encoder",
				EnvVars: []string{"COMMITREE_VERBOSE"},
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("treeserver: %v", err)
	}
}

func openStore(c *cli.Context, logger *zap.Logger) (storage.NodeStore, error) {
	switch backend := c.String("storage-backend"); backend {
	case "badger":
		return badgerstore.Open(c.String("data-dir"), logger)
	case "mysql":
		dsn := c.String("mysql-dsn")
		if dsn == "" {
			return nil, fmt.Errorf("storage-backend=mysql requires --mysql-dsn")
		}
		return mysqlstore.Open(dsn)
	case "memory":
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage-backend %q", backend)
	}
}

func run(c *cli.Context) error {
	logger, err := obs.NewLogger(c.Bool("verbose"))
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	store, err := openStore(c, logger)
	if err != nil {
		return fmt.Errorf("open storage backend: %w", err)
	}
	defer store.Close()

	ctx := context.Background()

	imtTree, err := imt.NewPersistent(ctx, store)
	if err != nil {
		return fmt.Errorf("open incremental tree: %w", err)
	}

	smtTree, err := smt.Open(store, c.Int("smt-depth"))
	if err != nil {
		return fmt.Errorf("open sparse tree: %w", err)
	}

	var cache *rootcache.Cache
	if addr := c.String("redis-addr"); addr != "" {
		cache, err = rootcache.Open(addr, time.Duration(c.Int("redis-ttl-seconds"))*time.Second)
		if err != nil {
			return fmt.Errorf("open root cache: %w", err)
		}
		defer cache.Close()
		logger.Sugar().Infow("root/proof response cache enabled", "redis_addr", addr)
	}

	metrics := obs.NewMetrics()
	srv := httpapi.NewServer(imtTree, smtTree, logger, metrics, cache)

	addr := fmt.Sprintf(":%d", c.Int("port"))
	logger.Sugar().Infow("treeserver listening", "addr", addr, "storage_backend", c.String("storage-backend"))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return httpServer.ListenAndServe()
}
