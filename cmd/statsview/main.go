// statsview - print a ptrun stats snapshot as an aligned table.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/drew/ptrun/internal/report"
)

func main() {
	var prefix string
	flag.StringVarP(&prefix, "prefix", "p", "", "Only show keys with this prefix")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: statsview [--prefix P] <stats-file>")
		os.Exit(64)
	}

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	var values map[string]float64
	if err := json.Unmarshal(data, &values); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s is not a stats snapshot: %v\n", flag.Arg(0), err)
		os.Exit(1)
	}

	if prefix != "" {
		filtered := make(map[string]float64)
		for k, v := range values {
			if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
				filtered[k] = v
			}
		}
		values = filtered
	}

	fmt.Print(report.FormatSnapshot(values))
}
