// Seed program: fills an index with random keys and fake values.
// Run: go run ./cmd/seed -dir data -records 10000
// Then open it with the CLI: go run . -dir data
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"

	"BTreeDB/btree"
	storageengine "BTreeDB/storage_engine"

	"github.com/dustin/go-humanize"
	"github.com/go-faker/faker/v4"
	"go.uber.org/zap"
)

var (
	dir         = flag.String("dir", "data", "Directory holding the index files.")
	store       = flag.String("store", "mmap", "Page store: mmap or file.")
	numRecords  = flag.Int("records", 1000, "Amount of records to seed the index with.")
	keySpace    = flag.Uint("keyspace", 1<<20, "Keys are drawn from [0, keyspace).")
	shouldReset = flag.Bool("reset", false, "Erase the index directory before seeding.")
	degree      = flag.Int("degree", 0, "Minimum degree of the tree (0 uses the largest that fits a page).")
)

func main() {
	flag.Usage = func() {
		fmt.Println("\nSeed\n\nArguments:")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *shouldReset {
		if err := os.RemoveAll(*dir); err != nil {
			log.Fatal(err)
		}
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	cfg := storageengine.DefaultConfig(*dir)
	cfg.Store = storageengine.StoreKind(*store)
	cfg.Degree = *degree
	cfg.CheckpointEvery = 10000
	cfg.Logger = logger
	engine, err := storageengine.NewStorageEngine(cfg)
	if err != nil {
		logger.Fatal("failed to open storage engine", zap.Error(err))
	}

	// values point into an imaginary data file the fake words are appended to
	var offset uint64
	for i := 0; i < *numRecords; i++ {
		word := faker.Word() + faker.Word()
		key := btree.Key(rand.Intn(int(*keySpace)))
		v := btree.Value{Offset: offset, Size: uint32(len(word))}
		if err := engine.Tree.Insert(key, v); err != nil {
			logger.Fatal("insert failed", zap.Uint32("key", uint32(key)), zap.Error(err))
		}
		offset += uint64(len(word))
	}
	if err := engine.Tree.Check(); err != nil {
		logger.Fatal("tree check failed", zap.Error(err))
	}

	s := engine.Tree.Stats()
	height, _ := engine.Tree.Height()
	fmt.Printf("Seeded %s records (%s overwrites) into %s nodes, height %d, %s of values.\n",
		humanize.Comma(int64(*numRecords)), humanize.Comma(int64(s.Overwrites)),
		humanize.Comma(int64(s.Nodes)), height, humanize.Bytes(offset))

	if err := engine.Close(); err != nil {
		logger.Fatal("close failed", zap.Error(err))
	}
}
