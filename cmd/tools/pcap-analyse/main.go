//go:build pcap
// +build pcap

// Command pcap-analyse inspects a captured UDP stream of vision frames.
// It reports frame rate, sequence gaps, tracking quality and piece
// visibility for a capture, which is how a flaky unit gets diagnosed
// without replaying it against a live server.
//
// Build with the 'pcap' tag (needs libpcap):
//
//	go build -tags pcap ./cmd/tools/pcap-analyse
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"gonum.org/v1/gonum/stat"

	"github.com/bemo-play/tangram-engine/internal/visionlink"
	"github.com/bemo-play/tangram-engine/internal/visionwire"
)

// CaptureStats is the analysis result for one capture.
type CaptureStats struct {
	PCAPFile       string  `json:"pcap_file"`
	Packets        int     `json:"packets"`
	Bytes          int64   `json:"bytes"`
	Frames         int     `json:"frames"`
	StatusLines    int     `json:"status_lines"`
	LogLines       int     `json:"log_lines"`
	ParseFailures  int     `json:"parse_failures"`
	DroppedPieces  int     `json:"dropped_pieces"`
	UnlockedFrames int     `json:"unlocked_frames"`
	SeqGaps        int     `json:"seq_gaps"`
	LostFrames     uint64  `json:"lost_frames"`
	ReorderedSeqs  int     `json:"reordered_seqs"`
	DurationSecs   float64 `json:"duration_secs"`
	FramesPerSec   float64 `json:"frames_per_sec"`
	MaxGapMs       float64 `json:"max_gap_ms"`
	QualityMin     float64 `json:"quality_min"`
	QualityMean    float64 `json:"quality_mean"`
	QualityP05     float64 `json:"quality_p05"`
	PiecesMean     float64 `json:"pieces_mean"`
	PiecesMax      int     `json:"pieces_max"`
}

func main() {
	pcapFile := flag.String("f", "", "Path to the PCAP file (required)")
	udpPort := flag.Int("port", 9000, "UDP port carrying vision frames")
	jsonOut := flag.Bool("json", false, "Emit the result as JSON instead of a summary")
	verbose := flag.Bool("v", false, "Log each rejected line")
	flag.Parse()

	if *pcapFile == "" {
		log.Fatal("Error: -f flag is required")
	}

	handle, err := pcap.OpenOffline(*pcapFile)
	if err != nil {
		log.Fatalf("Failed to open PCAP file %s: %v", *pcapFile, err)
	}
	defer handle.Close()

	filterStr := fmt.Sprintf("udp port %d", *udpPort)
	if err := handle.SetBPFFilter(filterStr); err != nil {
		log.Fatalf("Failed to set BPF filter %q: %v", filterStr, err)
	}

	result := &CaptureStats{PCAPFile: *pcapFile}

	var (
		firstFrameTime time.Time
		lastFrameTime  time.Time
		lastSeq        uint64
		maxGap         time.Duration
		qualities      []float64
		pieceCounts    []float64
	)

	packetSource := gopacket.NewPacketSource(handle, handle.LinkType())
	for packet := range packetSource.Packets() {
		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp, ok := udpLayer.(*layers.UDP)
		if !ok || len(udp.Payload) == 0 {
			continue
		}

		result.Packets++
		result.Bytes += int64(len(udp.Payload))
		captured := packet.Metadata().Timestamp

		// A datagram usually carries one line; tolerate bundling.
		for _, line := range strings.Split(string(udp.Payload), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			switch visionlink.ClassifyLine(line) {
			case visionlink.LineStatus:
				result.StatusLines++
				continue
			case visionlink.LineLog:
				result.LogLines++
				continue
			case visionlink.LineUnknown:
				continue
			}

			frame, err := visionwire.ParseFrame([]byte(line))
			if err != nil {
				result.ParseFailures++
				if *verbose {
					log.Printf("Rejected frame line: %v", err)
				}
				continue
			}

			result.Frames++
			result.DroppedPieces += frame.Dropped
			if !frame.Locked {
				result.UnlockedFrames++
			}

			if firstFrameTime.IsZero() {
				firstFrameTime = captured
			} else {
				if gap := captured.Sub(lastFrameTime); gap > maxGap {
					maxGap = gap
				}
			}
			lastFrameTime = captured

			switch {
			case lastSeq == 0 || frame.Seq == lastSeq+1:
			case frame.Seq > lastSeq+1:
				result.SeqGaps++
				result.LostFrames += frame.Seq - lastSeq - 1
			default:
				result.ReorderedSeqs++
			}
			if frame.Seq > lastSeq {
				lastSeq = frame.Seq
			}

			qualities = append(qualities, frame.Quality)
			pieceCounts = append(pieceCounts, float64(len(frame.Pieces)))
			if len(frame.Pieces) > result.PiecesMax {
				result.PiecesMax = len(frame.Pieces)
			}
		}
	}

	if result.Frames > 0 {
		result.DurationSecs = lastFrameTime.Sub(firstFrameTime).Seconds()
		if result.DurationSecs > 0 {
			result.FramesPerSec = float64(result.Frames-1) / result.DurationSecs
		}
		result.MaxGapMs = float64(maxGap.Nanoseconds()) / 1e6

		sort.Float64s(qualities)
		result.QualityMin = qualities[0]
		result.QualityMean = stat.Mean(qualities, nil)
		result.QualityP05 = stat.Quantile(0.05, stat.Empirical, qualities, nil)
		result.PiecesMean = stat.Mean(pieceCounts, nil)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			log.Fatalf("Failed to encode result: %v", err)
		}
		return
	}

	printSummary(result)
}

func printSummary(result *CaptureStats) {
	fmt.Println("\n========== Vision Capture Summary ==========")
	fmt.Printf("File: %s\n", result.PCAPFile)
	fmt.Printf("Packets: %d (%d bytes)\n", result.Packets, result.Bytes)
	fmt.Printf("Lines: %d frames, %d status, %d log, %d rejected\n",
		result.Frames, result.StatusLines, result.LogLines, result.ParseFailures)
	if result.Frames == 0 {
		fmt.Println("No vision frames found on this port.")
		return
	}
	fmt.Println()
	fmt.Printf("Duration: %.1f seconds (%.1f fps)\n", result.DurationSecs, result.FramesPerSec)
	fmt.Printf("Largest inter-frame gap: %.0f ms\n", result.MaxGapMs)
	fmt.Printf("Sequence: %d gaps, %d frames lost, %d reordered\n",
		result.SeqGaps, result.LostFrames, result.ReorderedSeqs)
	fmt.Println()
	fmt.Printf("Quality: min %.2f, mean %.2f, p05 %.2f\n",
		result.QualityMin, result.QualityMean, result.QualityP05)
	fmt.Printf("Homography: %d frames unlocked (%.1f%%)\n",
		result.UnlockedFrames, 100*float64(result.UnlockedFrames)/float64(result.Frames))
	fmt.Printf("Pieces: mean %.1f visible, max %d, %d dropped in parsing\n",
		result.PiecesMean, result.PiecesMax, result.DroppedPieces)
}
