package cli

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"scone/src/defs"
)

// Scenario is the TOML description of one driver run: optional memory
// geometry, backing files, and the operation sequence.
type Scenario struct {
	Frames int        `toml:"frames"`
	Files  []FileSpec `toml:"file"`
	Ops    []Op       `toml:"op"`
}

// FileSpec declares an in-memory file a mapping may be backed by.
type FileSpec struct {
	Name     string `toml:"name"`
	Contents string `toml:"contents"`
	Writable bool   `toml:"writable"`
}

// Op is one scenario step. Addr/Map select the target: mmap takes an
// optional Addr hint, the other ops name an earlier mmap result by
// index via Map plus a byte offset.
type Op struct {
	Do     string   `toml:"do"`
	Proc   int      `toml:"proc"`
	Addr   int      `toml:"addr"`
	Map    int      `toml:"map"`
	Off    int      `toml:"off"`
	Len    int      `toml:"len"`
	Offset int      `toml:"offset"`
	Flags  []string `toml:"flags"`
	Prot   []string `toml:"prot"`
	File   string   `toml:"file"`
	Data   string   `toml:"data"`
}

// LoadScenario reads and decodes a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	var sc Scenario
	if err := toml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	return &sc, nil
}

// parseFlags maps scenario flag names onto MAP_* bits.
func parseFlags(names []string) (int, error) {
	flags := 0
	for _, n := range names {
		switch n {
		case "shared":
			flags |= defs.MAP_SHARED
		case "private":
			flags |= defs.MAP_PRIVATE
		case "anon", "anonymous":
			flags |= defs.MAP_ANONYMOUS
		case "fixed":
			flags |= defs.MAP_FIXED
		default:
			return 0, fmt.Errorf("unknown mapping flag %q", n)
		}
	}
	return flags, nil
}

// parseProt maps scenario protection names onto PROT_* bits.
func parseProt(names []string) (int, error) {
	prot := defs.PROT_NONE
	for _, n := range names {
		switch n {
		case "none":
		case "read":
			prot |= defs.PROT_READ
		case "write":
			prot |= defs.PROT_WRITE
		default:
			return 0, fmt.Errorf("unknown protection %q", n)
		}
	}
	return prot, nil
}
