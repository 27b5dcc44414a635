// SPDX-License-Identifier: MIT

package cmd

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scottmsilver/precor-9.3x/pkg/capture"
	"github.com/scottmsilver/precor-9.3x/pkg/precor"
	"github.com/scottmsilver/precor-9.3x/pkg/softuart"
)

var (
	analyzeChannel  string
	analyzePolarity string
	analyzeShowAll  bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze a logic-analyzer trace or replay a saved capture",
	Long: `Decode a recording offline.

A .csv file is treated as a logic-analyzer export: each channel's edges are
run through the software UART decoder, then through the frame and key/value
parsers, and a per-channel report is printed. Polarity is detected from the
line's resting level unless --polarity forces it.

A .jsonl or .cbor file is a capture written by sniff --save; its packets
are replayed and summarized.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&analyzeChannel, "channel", "", "Analyze only the named trace channel")
	analyzeCmd.Flags().StringVar(&analyzePolarity, "polarity", "auto", "UART polarity: auto, standard, or inverted")
	analyzeCmd.Flags().BoolVar(&analyzeShowAll, "show-all", false, "Print every decoded frame, not just the summary")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	path := args[0]
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return analyzeTrace(path)
	}
	return replayCapture(path)
}

func pickPolarity(edges []softuart.Edge) (softuart.Polarity, error) {
	switch analyzePolarity {
	case "standard":
		return softuart.Standard, nil
	case "inverted":
		return softuart.Inverted, nil
	case "auto":
		if capture.IdleLevel(edges) == 0 {
			return softuart.Inverted, nil
		}
		return softuart.Standard, nil
	}
	return softuart.Standard, fmt.Errorf("unknown polarity %q (use auto, standard, or inverted)", analyzePolarity)
}

func analyzeTrace(path string) error {
	tr, err := capture.LoadTraceFile(path)
	if err != nil {
		return err
	}

	names := tr.Names
	if analyzeChannel != "" {
		names = []string{analyzeChannel}
	}
	for _, name := range names {
		edges, err := tr.Edges(name)
		if err != nil {
			return err
		}
		if err := analyzeEdges(name, edges); err != nil {
			return err
		}
	}
	return nil
}

func analyzeEdges(name string, edges []softuart.Edge) error {
	pol, err := pickPolarity(edges)
	if err != nil {
		return err
	}

	decoded := softuart.DecodeEdges(edges, baudRate, pol)
	data := softuart.Bytes(decoded)
	good, total := softuart.StopBitStats(decoded)

	fmt.Printf("=== %s ===\n", name)
	fmt.Printf("Polarity: %s (%d edges)\n", pol, len(edges))
	fmt.Printf("Bytes: %d decoded, stop bits %d ok / %d released\n", len(data), good, total-good)

	// Both sub-protocols run over the decoded bytes; whichever matches
	// produces output.
	frames := precor.NewFrameAssembler(precor.ConsoleToMotor).Feed(data)
	pairs := precor.NewKVAssembler().Feed(data)

	typeCounts := make(map[string]int)
	complete := 0
	for _, f := range frames {
		typeCounts[f.Name()]++
		if f.Complete {
			complete++
		}
		if analyzeShowAll {
			fmt.Printf("  %s\n", precor.FormatFrame(f))
		}
	}
	fmt.Printf("Frames: %d (%d complete)\n", len(frames), complete)
	for _, name := range sortedKeys(typeCounts) {
		fmt.Printf("  %-12s %d\n", name, typeCounts[name])
	}

	keyCounts := make(map[string]int)
	for _, p := range pairs {
		keyCounts[p.Key]++
		if analyzeShowAll {
			fmt.Printf("  %s\n", p.String())
		}
	}
	fmt.Printf("Pairs: %d\n", len(pairs))
	for _, key := range sortedKeys(keyCounts) {
		fmt.Printf("  %-12s %d\n", key, keyCounts[key])
	}
	fmt.Println()
	return nil
}

func replayCapture(path string) error {
	header, packets, footer, err := capture.ReadAll(path)
	if err != nil {
		return err
	}

	if header != nil {
		fmt.Printf("Capture: %s\n", header.Description)
		fmt.Printf("Recorded: %s\n", header.Time().Format("2006-01-02 15:04:05"))
	}

	counts := make(map[string]int)
	for _, p := range packets {
		counts[p.FrameName]++
		if analyzeShowAll {
			switch p.FrameType {
			case "text":
				fmt.Printf("[%s] %-8s [%s:%s]\n", p.Time().Format("15:04:05.000"), p.Channel, p.Key, p.Value)
			default:
				fmt.Printf("[%s] %-8s %s  %s\n", p.Time().Format("15:04:05.000"), p.Channel, p.FrameName, p.RawFrame)
			}
		}
	}

	fmt.Printf("Packets: %d\n", len(packets))
	for _, name := range sortedKeys(counts) {
		fmt.Printf("  %-12s %d\n", name, counts[name])
	}
	if footer != nil && footer.TotalPackets != len(packets) {
		fmt.Printf("WARNING: footer counts %d packets, file holds %d (truncated capture?)\n",
			footer.TotalPackets, len(packets))
	}
	return nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
