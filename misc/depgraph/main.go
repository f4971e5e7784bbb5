package main

import (
	"bufio"
	"bytes"
	"flag"
	"os"
	"os/exec"
	"strings"
)

// Program depgraph emits a Graphviz DOT description of the module
// dependency graph. With -thirdparty only edges that leave the scone
// module are kept, which is the view used to audit the require block
// against what the tree actually imports.
func main() {
	thirdparty := flag.Bool("thirdparty", false, "only edges leaving the scone module")
	flag.Parse()

	cmd := exec.Command("go", "mod", "graph")
	output, err := cmd.Output()
	if err != nil {
		panic(err)
	}
	writer := bufio.NewWriter(os.Stdout)
	defer writer.Flush()
	writer.WriteString("digraph deps {\n")
	for _, line := range bytes.Split(bytes.TrimSpace(output), []byte{'\n'}) {
		fields := bytes.Fields(line)
		if len(fields) != 2 {
			continue
		}
		from, to := string(fields[0]), string(fields[1])
		if *thirdparty && (!strings.HasPrefix(from, "scone") || strings.HasPrefix(to, "scone")) {
			continue
		}
		writer.WriteString("    \"" + from + "\" -> \"" + to + "\";\n")
	}
	writer.WriteString("}\n")
}
