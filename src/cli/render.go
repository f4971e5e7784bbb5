package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"scone/src/defs"
	"scone/src/proc"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	pidStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	fileStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	borrowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// renderRegions formats one process's region table.
func renderRegions(p *proc.Proc_t) string {
	var b strings.Builder
	b.WriteString(pidStyle.Render(fmt.Sprintf("pid %d", p.Pid)))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-3s %-12s %-10s %-20s %-6s %-8s %s",
		"idx", "base", "len", "flags", "prot", "offset", "stored")))
	b.WriteString("\n")
	for i := 0; i < p.Vm.Total; i++ {
		mr := &p.Vm.Mregs[i]
		row := fmt.Sprintf("%-3d %-12s %-10d %-20s %-6s %-8d %d",
			i, fmt.Sprintf("%#x", mr.Start), mr.Len,
			flagNames(mr.Flags), mr.Protstring(), mr.Foff, mr.Stored)
		if mr.Refcnt > 0 {
			row = borrowStyle.Render(row + " (borrowed)")
		}
		b.WriteString(row)
		b.WriteString("\n")
	}
	return b.String()
}

func flagNames(flags int) string {
	var names []string
	if flags&defs.MAP_SHARED != 0 {
		names = append(names, "shared")
	}
	if flags&defs.MAP_PRIVATE != 0 {
		names = append(names, "private")
	}
	if flags&defs.MAP_ANONYMOUS != 0 {
		names = append(names, "anon")
	}
	if flags&defs.MAP_FIXED != 0 {
		names = append(names, "fixed")
	}
	return strings.Join(names, "|")
}
