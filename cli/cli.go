package cli

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"BTreeDB/btree"
	storageengine "BTreeDB/storage_engine"
	"BTreeDB/types"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/pkg/errors"
)

type Cli struct {
	scanner *bufio.Scanner
	engine  *storageengine.StorageEngine
	out     io.Writer

	ok   *color.Color
	fail *color.Color
	info *color.Color
}

func NewCli(s *bufio.Scanner, e *storageengine.StorageEngine, out io.Writer) *Cli {
	return &Cli{
		scanner: s,
		engine:  e,
		out:     out,
		ok:      color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		info:    color.New(color.FgCyan),
	}
}

// Start runs the read-eval loop until EXIT or end of input.
func (c *Cli) Start() {
	c.printHelp()
	c.printPrompt()
	for c.scanner.Scan() {
		if !c.processInput(c.scanner.Text()) {
			return
		}
		c.printPrompt()
	}
}

func (c *Cli) printHelp() {
	fmt.Fprint(c.out, `
B-Tree CLI

Available Commands:
  SET <key> <offset> <size>  Insert or overwrite the value stored under key
  GET <key>                  Retrieve the value for key
  DEL <key>                  Remove key from the tree
  MIN | MAX                  Show the smallest or largest entry
  STATS                      Show operation counters and store usage
  CHECK                      Verify every structural invariant of the tree
  DUMP [levels]              Print the tree level by level
  CHECKPOINT                 Sync the store and record a checkpoint
  HELP                       Show this message
  EXIT                       Terminate this session
`)
}

func (c *Cli) printPrompt() {
	fmt.Fprint(c.out, "> ")
}

// processInput executes one command line. It returns false on EXIT.
func (c *Cli) processInput(line string) bool {
	fields := strings.Fields(line)
	if len(fields) < 1 {
		return true
	}
	command := strings.ToLower(fields[0])
	args := fields[1:]
	switch command {
	default:
		c.fail.Fprintf(c.out, "Unknown command \"%s\"\n", command)
	case "set":
		c.processSetCommand(args)
	case "get":
		c.processGetCommand(args)
	case "del":
		c.processDeleteCommand(args)
	case "min", "max":
		c.processBoundCommand(command)
	case "stats":
		c.processStatsCommand()
	case "check":
		c.processCheckCommand()
	case "dump":
		c.processDumpCommand(args)
	case "checkpoint":
		c.report(c.engine.Checkpoint(), "Checkpoint taken.")
	case "help":
		c.printHelp()
	case "exit":
		return false
	}
	return true
}

func parseKey(s string) (btree.Key, error) {
	k, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, errors.Errorf("invalid key %q", s)
	}
	return btree.Key(k), nil
}

func (c *Cli) report(err error, success string) {
	if err != nil {
		c.fail.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	c.ok.Fprintln(c.out, success)
}

func (c *Cli) processSetCommand(args []string) {
	if len(args) != 3 {
		fmt.Fprintln(c.out, "Usage: SET <key> <offset> <size>")
		return
	}
	key, err := parseKey(args[0])
	if err != nil {
		c.report(err, "")
		return
	}
	off, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		c.report(errors.Errorf("invalid offset %q", args[1]), "")
		return
	}
	size, err := strconv.ParseUint(args[2], 10, 32)
	if err != nil {
		c.report(errors.Errorf("invalid size %q", args[2]), "")
		return
	}
	c.report(c.engine.Tree.Insert(key, btree.Value{Offset: off, Size: uint32(size)}), "OK")
}

func (c *Cli) processGetCommand(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: GET <key>")
		return
	}
	key, err := parseKey(args[0])
	if err != nil {
		c.report(err, "")
		return
	}
	v, ok, err := c.engine.Tree.Search(key)
	if err != nil {
		c.report(err, "")
		return
	}
	if !ok {
		fmt.Fprintln(c.out, "Key not found.")
		return
	}
	fmt.Fprintf(c.out, "offset=%d size=%d\n", v.Offset, v.Size)
}

func (c *Cli) processDeleteCommand(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: DEL <key>")
		return
	}
	key, err := parseKey(args[0])
	if err != nil {
		c.report(err, "")
		return
	}
	err = c.engine.Tree.Erase(key)
	if errors.Is(err, btree.ErrNotFound) {
		fmt.Fprintln(c.out, "Key not found.")
		return
	}
	c.report(err, "OK")
}

func (c *Cli) processBoundCommand(which string) {
	bound := c.engine.Tree.Min
	if which == "max" {
		bound = c.engine.Tree.Max
	}
	e, ok, err := bound()
	if err != nil {
		c.report(err, "")
		return
	}
	if !ok {
		fmt.Fprintln(c.out, "Tree is empty.")
		return
	}
	fmt.Fprintf(c.out, "%d: offset=%d size=%d\n", e.Key, e.Value.Offset, e.Value.Size)
}

func (c *Cli) processStatsCommand() {
	s := c.engine.Tree.Stats()
	height, err := c.engine.Tree.Height()
	if err != nil {
		c.report(err, "")
		return
	}
	items, err := c.engine.Tree.ItemCount()
	if err != nil {
		c.report(err, "")
		return
	}

	c.info.Fprintln(c.out, "Tree")
	fmt.Fprintf(c.out, "  degree %d, height %d, %s entries in %s nodes (%s)\n",
		c.engine.Tree.Degree(), height,
		humanize.Comma(int64(items)), humanize.Comma(int64(s.Nodes)),
		humanize.IBytes(uint64(s.Nodes)*types.PageSize))
	fmt.Fprintf(c.out, "  inserts %s, overwrites %s, erases %s, misses %s\n",
		humanize.Comma(int64(s.Inserts)), humanize.Comma(int64(s.Overwrites)),
		humanize.Comma(int64(s.Erases)), humanize.Comma(int64(s.SearchMisses)))
	fmt.Fprintf(c.out, "  splits %d (root %d), root collapses %d, fixups %d\n",
		s.Splits, s.RootSplits, s.RootCollapses, s.Fixups)
	fmt.Fprintf(c.out, "  merges leaf/internal %d/%d, rebalances leaf/internal %d/%d\n",
		s.MergesLeaf, s.MergesInternal, s.RebalancesLeaf, s.RebalancesInternal)

	if sb, ok := c.engine.StoreInfo(); ok {
		c.info.Fprintln(c.out, "Store")
		fmt.Fprintf(c.out, "  %s of %s nodes used, root %d, checksum %#x\n",
			humanize.Comma(int64(sb.NodeCount)), humanize.Comma(int64(sb.MaxNodeCount)),
			sb.RootNodeIndex, sb.Checksum)
	}
	if cs, ok := c.engine.CacheStats(); ok {
		c.info.Fprintln(c.out, "Cache")
		fmt.Fprintf(c.out, "  hits %s, misses %s, ratio %.2f, budget %s\n",
			humanize.Comma(int64(cs.Hits)), humanize.Comma(int64(cs.Misses)),
			cs.HitRate, humanize.IBytes(uint64(cs.Capacity)))
	}
	if cm := c.engine.CheckpointManager; cm != nil {
		fmt.Fprintf(c.out, "  %d mutations since last checkpoint\n", cm.Pending())
	}
}

func (c *Cli) processCheckCommand() {
	c.report(c.engine.Tree.Check(), "Tree is consistent.")
}

func (c *Cli) processDumpCommand(args []string) {
	levels := 0
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			c.report(errors.Errorf("invalid level count %q", args[0]), "")
			return
		}
		levels = n
	}
	if err := c.engine.Tree.InspectTo(c.out, levels); err != nil {
		c.report(err, "")
	}
}
