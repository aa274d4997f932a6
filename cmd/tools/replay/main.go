// Command replay runs a recorded vision capture through the validation
// engine offline.
//
// This tool reads a line capture (as produced by a vision unit, or by
// gen-sessionlog) and feeds each frame to a fresh session against a stored
// puzzle, printing every state transition. It answers "would this capture
// have completed the puzzle, and when" without a server or a table.
//
// Usage:
//
//	go run ./cmd/tools/replay [flags]
//
// Flags:
//
//	-log        Path to the capture file (required)
//	-db         SQLite database holding the puzzle (default: tangram_data.db)
//	-puzzle     Puzzle id to validate against (required)
//	-mode       Comparison mode: absolute or relative (default: relative)
//	-difficulty Tolerance profile: standard, relaxed or precise
//	-v          Print every tick, not just transitions
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/bemo-play/tangram-engine/internal/config"
	"github.com/bemo-play/tangram-engine/internal/db"
	"github.com/bemo-play/tangram-engine/internal/engine"
	"github.com/bemo-play/tangram-engine/internal/visionlink"
	"github.com/bemo-play/tangram-engine/internal/visionwire"
)

func main() {
	logPath := flag.String("log", "", "Path to the capture file (required)")
	dbFile := flag.String("db", "tangram_data.db", "SQLite database file")
	puzzleID := flag.Int64("puzzle", 0, "Puzzle id to validate against (required)")
	modeFlag := flag.String("mode", "relative", "Comparison mode: absolute or relative")
	difficulty := flag.String("difficulty", "standard", "Tolerance profile: standard, relaxed or precise")
	verbose := flag.Bool("v", false, "Print every tick, not just transitions")
	flag.Parse()

	if *logPath == "" {
		log.Fatal("Error: -log flag is required")
	}
	if *puzzleID == 0 {
		log.Fatal("Error: -puzzle flag is required")
	}
	mode, ok := engine.ParseMode(*modeFlag)
	if !ok {
		log.Fatalf("Error: unknown mode %q (want absolute or relative)", *modeFlag)
	}

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	puzzle, err := database.LoadEnginePuzzle(*puzzleID)
	if err != nil {
		log.Fatalf("Failed to load puzzle %d: %v", *puzzleID, err)
	}
	log.Printf("Puzzle %d %q: %d targets", puzzle.ID, puzzle.Name, len(puzzle.Targets))

	cfg, err := config.EmptyTuningConfig().EngineConfig(*difficulty)
	if err != nil {
		log.Fatalf("Failed to build engine config: %v", err)
	}

	session, err := engine.NewSession("replay", puzzle, mode, engine.SourceVision, cfg, nil)
	if err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}

	f, err := os.Open(*logPath)
	if err != nil {
		log.Fatalf("Failed to open capture: %v", err)
	}
	defer f.Close()

	var frames, skipped, parseFailures int
	var prevState engine.CompletionState
	var completedTick uint64

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if visionlink.ClassifyLine(line) != visionlink.LineFrame {
			skipped++
			continue
		}
		frame, err := visionwire.ParseFrame([]byte(line))
		if err != nil {
			parseFailures++
			log.Printf("Rejected frame line: %v", err)
			continue
		}
		frames++

		report := session.Observe(frame.Observations())
		if *verbose || report.Event != engine.EventNone || report.State != prevState {
			printTick(report)
		}
		if report.Event == engine.EventCompleted && completedTick == 0 {
			completedTick = report.Seq
		}
		prevState = report.State
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("Failed to read capture: %v", err)
	}

	last := session.LastReport()
	fmt.Println("\n========== Replay Summary ==========")
	fmt.Printf("Capture: %s\n", *logPath)
	fmt.Printf("Frames: %d replayed, %d non-frame lines, %d rejected\n", frames, skipped, parseFailures)
	fmt.Printf("Final state: %s (%d/%d matched)\n", last.State, last.Matched, last.Total)
	if completedTick > 0 {
		fmt.Printf("First completed on tick %d\n", completedTick)
	} else {
		fmt.Println("Never completed")
	}
}

func printTick(report engine.TickReport) {
	fmt.Printf("tick %4d  %-11s", report.Seq, report.State)
	if report.Event != engine.EventNone {
		fmt.Printf("  event=%s", report.Event)
	}
	if report.Withheld {
		fmt.Printf("  withheld (no anchor)")
	}
	fmt.Printf("  %d/%d matched", report.Matched, report.Total)
	if report.Dropped > 0 {
		fmt.Printf("  %d dropped", report.Dropped)
	}
	fmt.Println()
	for _, v := range report.Verdicts {
		mark := "✗"
		if v.Match {
			mark = "✓"
		}
		fmt.Printf("      %s %-12s <- %-10s pos=%.2f rot=%.3f branch=%d\n",
			mark, v.TargetID, v.ObservedID, v.PositionError, v.RotationError, v.Branch)
	}
}
