package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"tapeingest/internal/aggregate"
	"tapeingest/internal/tape"
)

func main() {
	var labelsCSV string
	flag.StringVar(&labelsCSV, "labels", "", "comma-separated labels in rank order; enables tie-break and unknown-label checks")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-labels A,B] TAPE.csv\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := check(os.Stdout, flag.Arg(0), splitCSV(labelsCSV)); err != nil {
		fmt.Fprintf(os.Stderr, "tapecheck: %v\n", err)
		os.Exit(1)
	}
}

type report struct {
	Path        string              `json:"path"`
	Ticks       int                 `json:"ticks"`
	Instruments []aggregate.Summary `json:"instruments"`
}

// check reads the tape at path, verifies its ordering and writes a JSON report to w.
func check(w io.Writer, path string, labels []string) error {
	ticks, err := tape.ReadFile(path)
	if err != nil {
		return err
	}

	var ranks map[string]int
	if len(labels) > 0 {
		ranks = make(map[string]int, len(labels))
		for i, l := range labels {
			if _, dup := ranks[l]; dup {
				return fmt.Errorf("label %q listed twice", l)
			}
			ranks[l] = i
		}
	}
	if err := tape.Verify(ticks, ranks); err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report{
		Path:        path,
		Ticks:       len(ticks),
		Instruments: aggregate.Ordered(aggregate.ByLabel(ticks.All()), labels),
	})
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
