// Command gen-sessionlog synthesizes vision capture files for testing replay.
//
// Profiles: "perfect" places every piece exactly on target, "noisy" adds
// in-tolerance jitter, "nearmiss" pushes one piece outside tolerance so the
// capture never completes.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"

	"github.com/bemo-play/tangram-engine/internal/db"
	"github.com/bemo-play/tangram-engine/internal/visionwire"
)

func main() {
	output := flag.String("o", "session.log", "output path")
	dbFile := flag.String("db", "tangram_data.db", "SQLite database file")
	puzzleID := flag.Int64("puzzle", 0, "puzzle id (required)")
	ticks := flag.Int("n", 60, "number of frames")
	profile := flag.String("profile", "perfect", "perfect, noisy or nearmiss")
	unit := flag.String("unit", "bench-1", "unit name stamped on frames")
	seed := flag.Int64("seed", 1, "jitter seed")
	flag.Parse()

	if *puzzleID == 0 {
		log.Fatal("Error: -puzzle flag is required")
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

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("Failed to create output: %v", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	defer w.Flush()

	rng := rand.New(rand.NewSource(*seed))
	for i := 0; i < *ticks; i++ {
		frame := visionwire.Frame{
			Version: visionwire.Version,
			Seq:     uint64(i + 1),
			Unit:    *unit,
			Quality: 0.95,
			Locked:  true,
		}
		for n, target := range puzzle.Targets {
			p := visionwire.PiecePose{
				ClassID:  target.Type.ClassID(),
				Theta:    target.Pose.Rotation,
				TX:       target.Pose.Position.X,
				TY:       target.Pose.Position.Y,
				Mirrored: target.Pose.Mirrored,
			}
			switch *profile {
			case "perfect":
			case "noisy":
				p.Theta += rng.NormFloat64() * 0.015
				p.TX += rng.NormFloat64() * 1.5
				p.TY += rng.NormFloat64() * 1.5
				p.Err = rng.Float64() * 0.5
				frame.Quality = 0.8 + rng.Float64()*0.15
			case "nearmiss":
				if n == 0 {
					p.TX += 30
				}
			default:
				log.Fatalf("Error: unknown profile %q", *profile)
			}
			frame.Pieces = append(frame.Pieces, p)
		}

		line, err := json.Marshal(frame)
		if err != nil {
			log.Fatalf("Failed to marshal frame: %v", err)
		}
		fmt.Fprintf(w, "%s\n", line)
		if (i+1)%20 == 0 {
			fmt.Fprintf(w, `{"status":"ok","fps":15.0,"temp_c":40.2,"homography_age_s":%.1f}`+"\n", float64(i)/15)
			log.Printf("%d/%d frames", i+1, *ticks)
		}
	}
	log.Printf("✓ Created: %s (%s, %d frames, %d targets)", *output, *profile, *ticks, len(puzzle.Targets))
}
