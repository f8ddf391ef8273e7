// Package console implements the operator REPL SPEC_FULL.md §4.10 names:
// STATS, SLOTS, DEBUG SHARD <n>, DEBUG FILTER <key>, via
// chzyer/readline — the generalized analogue of the teacher's
// scm.Repl()/scm/prompt.go interactive shell.
package console

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/launix-de/icache/internal/slot"
	"github.com/launix-de/icache/internal/store"
)

// FilterInspector exposes single-flight filter state for DEBUG FILTER,
// satisfied by *resolver.Pool without this package importing resolver
// (console only needs the one bit of introspection).
type FilterInspector interface {
	FilterSet(key string) bool
}

// Console is the REPL's dependency set.
type Console struct {
	Store   *store.Store
	Filter  FilterInspector
	Out     io.Writer
}

// Run starts the readline loop and blocks until EOF or an explicit
// "exit"/"quit". Intended to run only when stdin is a TTY; callers check
// that before calling Run.
func (c *Console) Run() error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "icache> ",
		HistoryFile: "",
	})
	if err != nil {
		return fmt.Errorf("console: init readline: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF or readline.ErrInterrupt
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}
		c.exec(line)
	}
}

func (c *Console) exec(line string) {
	fields := strings.Fields(line)
	out := c.out()
	switch strings.ToUpper(fields[0]) {
	case "STATS":
		c.cmdStats(out)
	case "SLOTS":
		c.cmdSlots(out)
	case "DEBUG":
		c.cmdDebug(out, fields[1:])
	default:
		fmt.Fprintf(out, "unknown command: %s\n", fields[0])
	}
}

func (c *Console) out() io.Writer {
	if c.Out != nil {
		return c.Out
	}
	return defaultOut{}
}

func (c *Console) cmdStats(out io.Writer) {
	var totalKeys uint64
	var totalDirty uint64
	for _, sh := range c.Store.AllShards() {
		totalKeys += uint64(sh.Count())
		totalDirty += sh.Dirty()
	}
	fmt.Fprintf(out, "shards: %d  keys: %d  dirty: %d\n", c.Store.NumShards()-1, totalKeys, totalDirty)
}

func (c *Console) cmdSlots(out io.Writer) {
	for i, sh := range c.Store.AllShards() {
		if n := sh.Count(); n > 0 {
			fmt.Fprintf(out, "slot %5d: %d keys, avg_ttl=%.0fms, rehashing=%v\n", i, n, sh.AvgTTL(), sh.IsRehashing())
		}
	}
}

func (c *Console) cmdDebug(out io.Writer, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(out, "usage: DEBUG SHARD <n> | DEBUG FILTER <key>")
		return
	}
	switch strings.ToUpper(args[0]) {
	case "SHARD":
		if len(args) != 2 {
			fmt.Fprintln(out, "usage: DEBUG SHARD <n>")
			return
		}
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 0 || n >= c.Store.NumShards() {
			fmt.Fprintln(out, "invalid shard index")
			return
		}
		sh := c.Store.Shard(n)
		fmt.Fprintf(out, "shard %d: keys=%d dirty=%d avg_ttl=%.0fms rehashing=%v\n",
			n, sh.Count(), sh.Dirty(), sh.AvgTTL(), sh.IsRehashing())
	case "FILTER":
		if len(args) != 2 || c.Filter == nil {
			fmt.Fprintln(out, "usage: DEBUG FILTER <key>")
			return
		}
		fmt.Fprintf(out, "filter bit for %q: %v (slot %d)\n", args[1], c.Filter.FilterSet(args[1]), slot.KeyToSlot([]byte(args[1])))
	default:
		fmt.Fprintln(out, "usage: DEBUG SHARD <n> | DEBUG FILTER <key>")
	}
}

type defaultOut struct{}

func (defaultOut) Write(p []byte) (int, error) { return fmt.Print(string(p)) }
