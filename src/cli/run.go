package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"scone/src/defs"
	"scone/src/fd"
	"scone/src/fs"
	"scone/src/kernel"
	"scone/src/mem"
	"scone/src/proc"
	"scone/src/stats"
	"scone/src/vm"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <scenario.toml>",
		Short: "Replay a mapping scenario and dump the resulting state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := LoadScenario(args[0])
			if err != nil {
				return err
			}
			return runScenario(sc)
		},
	}
}

// runResult is the JSON summary of a scenario run.
type runResult struct {
	Maps   []int            `json:"maps"`
	Reads  []string         `json:"reads"`
	Procs  map[string]int   `json:"regions_per_proc"`
	Counts map[string]int64 `json:"counters"`
}

func runScenario(sc *Scenario) error {
	res, procs, rawfiles, err := executeScenario(sc)
	if err != nil {
		return err
	}
	if jsonFlag {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	for _, p := range procs {
		if p.Vm == nil {
			continue
		}
		fmt.Print(renderRegions(p))
	}
	for name, mf := range rawfiles {
		fmt.Printf("%s %d bytes\n", fileStyle.Render("file "+name+":"), len(mf.Rawdata()))
	}
	fmt.Print(renderStats())
	return nil
}

// executeScenario replays the operation list and returns the summary,
// the process list, and the backing files for inspection.
func executeScenario(sc *Scenario) (*runResult, []*proc.Proc_t, map[string]*fs.Memfile_t, error) {
	if sc.Frames > 0 {
		mem.Physmem = mem.Mkphysmem(sc.Frames)
	}

	files := make(map[string]*fd.Fd_t)
	rawfiles := make(map[string]*fs.Memfile_t)
	for _, f := range sc.Files {
		mf := fs.MkMemfile([]uint8(f.Contents))
		perms := fd.FD_READ
		if f.Writable {
			perms |= fd.FD_WRITE
		}
		files[f.Name] = fd.MkFd(mf, perms)
		rawfiles[f.Name] = mf
	}

	p0, kerr := proc.Mkproc(0)
	if kerr != 0 {
		return nil, nil, nil, fmt.Errorf("creating initial process: errno %d", -kerr)
	}
	procs := []*proc.Proc_t{p0}
	res := &runResult{Procs: map[string]int{}, Counts: map[string]int64{}}

	for n, op := range sc.Ops {
		if op.Proc < 0 || op.Proc >= len(procs) {
			return nil, nil, nil, fmt.Errorf("op %d: no process %d", n, op.Proc)
		}
		p := procs[op.Proc]
		log := logrus.WithFields(logrus.Fields{"op": op.Do, "n": n, "proc": op.Proc})
		switch op.Do {
		case "mmap":
			flags, err := parseFlags(op.Flags)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("op %d: %w", n, err)
			}
			prot, err := parseProt(op.Prot)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("op %d: %w", n, err)
			}
			var f *fd.Fd_t
			if op.File != "" {
				var ok bool
				if f, ok = files[op.File]; !ok {
					return nil, nil, nil, fmt.Errorf("op %d: no file %q", n, op.File)
				}
			}
			va := kernel.Sys_mmap(p, op.Addr, f, op.Len, op.Offset, flags, prot)
			if va == defs.MAP_FAILED {
				return nil, nil, nil, fmt.Errorf("op %d: mmap failed", n)
			}
			res.Maps = append(res.Maps, va)
			log.WithField("base", fmt.Sprintf("%#x", va)).Debug("mapped")
		case "write":
			base, err := mapBase(res, op)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("op %d: %w", n, err)
			}
			ub := p.Vm.Mkuserbuf(base+op.Off, len(op.Data))
			if c, werr := ub.Uiowrite([]uint8(op.Data)); werr != 0 || c != len(op.Data) {
				return nil, nil, nil, fmt.Errorf("op %d: write faulted: errno %d", n, -werr)
			}
			log.WithField("bytes", len(op.Data)).Debug("wrote")
		case "read":
			base, err := mapBase(res, op)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("op %d: %w", n, err)
			}
			buf := make([]uint8, op.Len)
			ub := p.Vm.Mkuserbuf(base+op.Off, op.Len)
			if c, rerr := ub.Uioread(buf); rerr != 0 || c != op.Len {
				return nil, nil, nil, fmt.Errorf("op %d: read faulted: errno %d", n, -rerr)
			}
			res.Reads = append(res.Reads, string(buf))
			log.WithField("bytes", op.Len).Debug("read")
		case "fork":
			child, ferr := p.Fork(len(procs))
			if ferr != 0 {
				return nil, nil, nil, fmt.Errorf("op %d: fork failed: errno %d", n, -ferr)
			}
			procs = append(procs, child)
			log.WithField("child", child.Pid).Debug("forked")
		case "munmap":
			base, err := mapBase(res, op)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("op %d: %w", n, err)
			}
			if kernel.Sys_munmap(p, base+op.Off, op.Len) != 0 {
				return nil, nil, nil, fmt.Errorf("op %d: munmap failed", n)
			}
			log.Debug("unmapped")
		case "exit":
			p.Exit()
			log.Debug("exited")
		default:
			return nil, nil, nil, fmt.Errorf("op %d: unknown op %q", n, op.Do)
		}
	}

	for _, p := range procs {
		if p.Vm != nil {
			res.Procs[fmt.Sprintf("pid%d", p.Pid)] = p.Vm.Total
		}
	}
	res.Counts["pgfaults"] = vm.Vmstats.Pgfaults.Read()
	res.Counts["populated"] = vm.Vmstats.Populated.Read()
	res.Counts["writebacks"] = vm.Vmstats.Writebacks.Read()
	res.Counts["unmaps"] = vm.Vmstats.Unmaps.Read()
	return res, procs, rawfiles, nil
}

func mapBase(res *runResult, op Op) (int, error) {
	if op.Map < 0 || op.Map >= len(res.Maps) {
		return 0, fmt.Errorf("no mapping %d", op.Map)
	}
	return res.Maps[op.Map], nil
}

func newLayoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "layout",
		Short: "Print the address-space geometry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			type layout struct {
				Mmapbase int `json:"mmapbase"`
				Kernbase int `json:"kernbase"`
				Pgsize   int `json:"pgsize"`
				Maxmmaps int `json:"max_mmaps"`
				Frames   int `json:"frames"`
			}
			l := layout{
				Mmapbase: mem.MMAPBASE,
				Kernbase: mem.KERNBASE,
				Pgsize:   mem.PGSIZE,
				Maxmmaps: defs.MAX_MMAPS,
				Frames:   mem.Physmem.Totalpgs(),
			}
			if jsonFlag {
				data, err := json.MarshalIndent(l, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}
			fmt.Fprintf(os.Stdout, "MMAPBASE  %#x\nKERNBASE  %#x\nPGSIZE    %d\nMAX_MMAPS %d\nframes    %d\n",
				l.Mmapbase, l.Kernbase, l.Pgsize, l.Maxmmaps, l.Frames)
			return nil
		},
	}
}

func renderStats() string {
	return headerStyle.Render("counters") + stats.Stats2String(vm.Vmstats)
}
