// The staticlint command bundles the static analyzers used on this
// codebase into a single multichecker binary: a fixed set of passes
// from the Go toolchain, third-party analyzers, the project noosexit
// analyzer, and a configurable staticcheck selection.
//
// The staticcheck analyzer names to enable are read from a config.json
// file placed next to the binary.
package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/multichecker"

	"golang.org/x/tools/go/analysis/passes/copylock"
	"golang.org/x/tools/go/analysis/passes/loopclosure"
	"golang.org/x/tools/go/analysis/passes/lostcancel"
	"golang.org/x/tools/go/analysis/passes/printf"
	"golang.org/x/tools/go/analysis/passes/structtag"
	"golang.org/x/tools/go/analysis/passes/unmarshal"
	"golang.org/x/tools/go/analysis/passes/unreachable"

	"github.com/gordonklaus/ineffassign/pkg/ineffassign"
	"github.com/gostaticanalysis/nilerr"
	"honnef.co/go/tools/staticcheck"

	"github.com/mpetrenko/geotaglog/cmd/staticlint/noosexit"
)

// Config is the name of the JSON configuration file that lists enabled
// staticcheck analyzers.
const Config = `config.json`

// ConfigData describes the structure of the configuration file. The
// Staticcheck field contains analyzer names, e.g. "SA1000".
type ConfigData struct {
	Staticcheck []string
}

func main() {
	appfile, err := os.Executable()
	if err != nil {
		panic(err)
	}
	data, err := os.ReadFile(filepath.Join(filepath.Dir(appfile), Config))
	if err != nil {
		panic(err)
	}
	var cfg ConfigData
	if err = json.Unmarshal(data, &cfg); err != nil {
		panic(err)
	}

	myChecks := []*analysis.Analyzer{
		copylock.Analyzer,
		loopclosure.Analyzer,
		lostcancel.Analyzer,
		printf.Analyzer,
		structtag.Analyzer,
		unmarshal.Analyzer,
		unreachable.Analyzer,

		ineffassign.Analyzer,
		nilerr.Analyzer,

		noosexit.Analyzer,
	}

	checks := make(map[string]bool)
	for _, v := range cfg.Staticcheck {
		checks[v] = true
	}

	for _, v := range staticcheck.Analyzers {
		if checks[v.Analyzer.Name] {
			myChecks = append(myChecks, v.Analyzer)
		}
	}

	multichecker.Main(myChecks...)
}
