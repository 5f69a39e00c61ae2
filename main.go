package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"

	"BTreeDB/cli"
	storageengine "BTreeDB/storage_engine"
	diskmanager "BTreeDB/storage_engine/disk_manager"

	"go.uber.org/zap"
)

var (
	dir             = flag.String("dir", "data", "Directory holding the index files.")
	store           = flag.String("store", "mmap", "Page store: mem, mmap or file.")
	capacity        = flag.Uint("capacity", 0, "Maximum number of tree nodes (0 uses the default).")
	syncMode        = flag.String("sync", "none", "Sync policy: none or write.")
	checkpointEvery = flag.Uint64("checkpoint", 1000, "Checkpoint after this many mutations (0 disables).")
	degree          = flag.Int("degree", 0, "Minimum degree of the tree (0 uses the largest that fits a page).")
	cacheBytes      = flag.Int64("cache", 0, "Page cache size in bytes for the file store (0 uses the default).")
	verbose         = flag.Bool("verbose", false, "Log engine activity to stderr.")
)

func newLogger() (*zap.Logger, error) {
	if *verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

func main() {
	flag.Usage = func() {
		fmt.Println("\nB-Tree CLI\n\nArguments:")
		flag.PrintDefaults()
	}
	flag.Parse()

	logger, err := newLogger()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	cfg := storageengine.DefaultConfig(*dir)
	cfg.Store = storageengine.StoreKind(*store)
	cfg.CheckpointEvery = *checkpointEvery
	cfg.Degree = *degree
	cfg.Logger = logger
	if *capacity > 0 {
		cfg.Capacity = uint32(*capacity)
	}
	if *cacheBytes > 0 {
		cfg.CacheBytes = *cacheBytes
	}
	switch *syncMode {
	case "none":
		cfg.Sync = diskmanager.SyncNone
	case "write":
		cfg.Sync = diskmanager.SyncOnWrite
	default:
		log.Fatalf("unknown sync policy %q", *syncMode)
	}

	engine, err := storageengine.NewStorageEngine(cfg)
	if err != nil {
		logger.Fatal("failed to open storage engine", zap.Error(err))
	}

	scanner := bufio.NewScanner(os.Stdin)
	cli.NewCli(scanner, engine, os.Stdout).Start()

	if err := engine.Close(); err != nil {
		logger.Error("failed to close storage engine", zap.Error(err))
	}
}
