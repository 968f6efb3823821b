// Command trace inspects a session replay trace (.jsonl.zst): prints a
// per-tick summary or dumps the raw entries for a tick range.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"

	"skirmish.ai/internal/replay"
)

func main() {
	var (
		fromTick = flag.Uint64("from_tick", 0, "first tick to print (inclusive, optional)")
		toTick   = flag.Uint64("to_tick", 0, "last tick to print (inclusive, optional)")
		raw      = flag.Bool("raw", false, "dump full entries instead of the summary line")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: trace [flags] <session.jsonl.zst>")
		os.Exit(2)
	}

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "open trace:", err)
		os.Exit(1)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		fmt.Fprintln(os.Stderr, "zstd:", err)
		os.Exit(1)
	}
	defer dec.Close()

	var (
		entries  int
		firstTik uint64
		lastTick uint64
		winner   string
	)
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 1<<20), 32<<20)
	for sc.Scan() {
		var e replay.Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			fmt.Fprintf(os.Stderr, "entry %d: %v\n", entries+1, err)
			os.Exit(1)
		}
		entries++
		if firstTik == 0 {
			firstTik = e.Tick
		}
		lastTick = e.Tick
		if e.Home != nil && e.Home.Winner != "" {
			winner = e.Home.Winner
		}
		if e.Away != nil && e.Away.Winner != "" {
			winner = e.Away.Winner
		}

		if e.Tick < *fromTick || (*toTick > 0 && e.Tick > *toTick) {
			continue
		}
		if *raw {
			fmt.Println(sc.Text())
		} else if *fromTick > 0 || *toTick > 0 {
			printSummary(e)
		}
	}
	if err := sc.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "scan:", err)
		os.Exit(1)
	}

	fmt.Printf("entries=%d ticks=%d..%d", entries, firstTik, lastTick)
	if winner != "" {
		fmt.Printf(" winner=%s", winner)
	}
	fmt.Println()
}

func printSummary(e replay.Entry) {
	homeBytes, awayBytes := 0, 0
	if e.Home != nil {
		homeBytes = len(e.Home.Delta)
	}
	if e.Away != nil {
		awayBytes = len(e.Away.Delta)
	}
	fmt.Printf("tick=%d home=%dB away=%dB state_time=%.4fs\n",
		e.Tick, homeBytes, awayBytes, e.StateTime)
}
