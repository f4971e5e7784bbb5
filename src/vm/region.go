package vm

import "scone/src/defs"
import "scone/src/fdops"
import "scone/src/mem"
import "scone/src/util"

/// Mregion_t describes one contiguous mapping in a process address
/// space. Perms == 0 marks a guard region that traps on every access.
type Mregion_t struct {
	Start  int           /// page-aligned virtual base
	Len    int           /// requested length in bytes
	Perms  mem.Pa_t      /// PTE bits installed on populated pages
	Flags  int           /// MAP_* bits
	Fops   fdops.Fdops_i /// backing file; nil for anonymous regions
	Foff   int           /// file offset of the first byte
	Stored int           /// bytes populated so far (file-backed resume)
	Refcnt int           /// non-zero: frames are borrowed, never freed here
}

/// Protstring renders the region's protection for diagnostics.
func (mr *Mregion_t) Protstring() string {
	if mr.Perms == 0 {
		return "none"
	}
	if mr.Perms&mem.PTE_W != 0 {
		return "rw"
	}
	return "r"
}

func pgroundup(v int) int {
	return util.Roundup(v, mem.PGSIZE)
}

func pgrounddown(v int) int {
	return util.Rounddown(v, mem.PGSIZE)
}

// insert_at shifts entries [idx, total) one slot right and writes a
// fresh descriptor holding only (start, length) at idx. The caller
// fills the remaining fields and bumps Total. The table is unchanged
// on failure.
func (as *Vm_t) insert_at(idx, start, length int) defs.Err_t {
	as.Lockassert_pmap()
	if as.Total == defs.MAX_MMAPS {
		return -defs.ENOMEM
	}
	if start < mem.MMAPBASE || pgroundup(start+length) > mem.KERNBASE {
		return -defs.ENOMEM
	}
	for j := as.Total; j > idx; j-- {
		as.Mregs[j] = as.Mregs[j-1]
	}
	as.Mregs[idx] = Mregion_t{Start: start, Len: length}
	return 0
}

// remove_at zeros entry idx and shifts the tail left.
func (as *Vm_t) remove_at(idx int) {
	as.Lockassert_pmap()
	for j := idx; j < as.Total-1; j++ {
		as.Mregs[j] = as.Mregs[j+1]
	}
	as.Mregs[as.Total-1] = Mregion_t{}
	as.Total--
}

// find_by_base returns the index of the region whose base equals the
// page-rounded addr, or -1.
func (as *Vm_t) find_by_base(addr int) int {
	as.Lockassert_pmap()
	a := pgroundup(addr)
	for i := 0; i < as.Total; i++ {
		if as.Mregs[i].Start == a {
			return i
		}
	}
	return -1
}

// region_for returns the live region covering va, if any.
func (as *Vm_t) region_for(va int) (*Mregion_t, bool) {
	as.Lockassert_pmap()
	for i := 0; i < as.Total; i++ {
		mr := &as.Mregs[i]
		if mr.Start <= va && va < mr.Start+mr.Len {
			return mr, true
		}
	}
	return nil, false
}

// hole_any installs a region of the given length in the first gap that
// fits, scanning upward from MMAPBASE, appending after the last region
// when no internal gap is large enough. An exact fit is acceptable.
func (as *Vm_t) hole_any(length int) (int, defs.Err_t) {
	as.Lockassert_pmap()
	if as.Total == 0 {
		if err := as.insert_at(0, mem.MMAPBASE, length); err != 0 {
			return 0, err
		}
		return 0, 0
	}
	for i := 0; i < as.Total-1; i++ {
		start := pgroundup(as.Mregs[i].Start + as.Mregs[i].Len)
		end := pgroundup(as.Mregs[i+1].Start)
		if end-start >= length {
			if err := as.insert_at(i+1, start, length); err != 0 {
				return 0, err
			}
			return i + 1, 0
		}
	}
	last := as.Total - 1
	start := pgroundup(as.Mregs[last].Start + as.Mregs[last].Len)
	if err := as.insert_at(as.Total, start, length); err != 0 {
		return 0, err
	}
	return as.Total, 0
}

// hole_fixed installs a region at exactly addr. The candidate fits iff
// it intersects no existing region extent; insertion keeps the table
// address-ordered.
func (as *Vm_t) hole_fixed(addr, length int) (int, defs.Err_t) {
	as.Lockassert_pmap()
	if addr%mem.PGSIZE != 0 {
		return 0, -defs.EINVAL
	}
	idx := as.Total
	for i := 0; i < as.Total; i++ {
		r := &as.Mregs[i]
		if addr < r.Start+r.Len && r.Start < addr+length {
			return 0, -defs.ENOMEM
		}
		if addr < r.Start && idx == as.Total {
			idx = i
		}
	}
	if err := as.insert_at(idx, addr, length); err != 0 {
		return 0, err
	}
	return idx, 0
}

// hole_place resolves the requested placement: a non-zero addr is
// tried as a fixed candidate first; without MAP_FIXED an unusable hint
// falls back to the first-fit scan.
func (as *Vm_t) hole_place(addr, length int, fixed bool) (int, defs.Err_t) {
	if addr != 0 {
		idx, err := as.hole_fixed(addr, length)
		if err == 0 || fixed {
			return idx, err
		}
	}
	return as.hole_any(length)
}
