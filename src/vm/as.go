package vm

import "sync"

import "scone/src/defs"
import "scone/src/fdops"
import "scone/src/limits"
import "scone/src/mem"
import "scone/src/stats"
import "scone/src/util"

/// Vm_t represents a process address space. The mutex protects the
/// region table, the pmap, and every page wired beneath them.
type Vm_t struct {
	// lock for mregs, pmap, and p_pmap
	sync.Mutex

	Mregs [defs.MAX_MMAPS]Mregion_t
	Total int

	// pmap pages
	Pmap   *mem.Pmap_t
	P_pmap mem.Pa_t

	pgfltaken bool
}

/// Vmstats_t counts mmap subsystem events.
type Vmstats_t struct {
	Pgfaults   stats.Counter_t
	Populated  stats.Counter_t
	Forkshared stats.Counter_t
	Forkcopied stats.Counter_t
	Writebacks stats.Counter_t
	Unmaps     stats.Counter_t
}

/// Vmstats holds the system wide mmap counters.
var Vmstats Vmstats_t

/// Mkvm allocates an address space with an empty region table and a
/// fresh root pmap.
func Mkvm() (*Vm_t, defs.Err_t) {
	pm, p_pm, ok := mkpmap()
	if !ok {
		return nil, -defs.ENOMEM
	}
	return &Vm_t{Pmap: pm, P_pmap: p_pm}, 0
}

/// Lock_pmap acquires the address space mutex.
func (as *Vm_t) Lock_pmap() {
	as.Lock()
	as.pgfltaken = true
}

/// Unlock_pmap releases the address space mutex.
func (as *Vm_t) Unlock_pmap() {
	as.pgfltaken = false
	as.Unlock()
}

/// Lockassert_pmap panics if the address space mutex is not held.
func (as *Vm_t) Lockassert_pmap() {
	if !as.pgfltaken {
		panic("pgfl lock must be held")
	}
}

/// Mmap installs a region descriptor and returns its base virtual
/// address. No pages are wired; the fault path populates on demand.
/// Argument validation belongs to the syscall front; addr, when
/// non-zero, must already be page-aligned and in range.
func (as *Vm_t) Mmap(addr int, fops fdops.Fdops_i, length, offset,
	flags int, perms mem.Pa_t) (int, defs.Err_t) {
	as.Lock_pmap()
	defer as.Unlock_pmap()

	fixed := flags&defs.MAP_FIXED != 0
	idx, err := as.hole_place(addr, length, fixed)
	if err != 0 {
		return 0, err
	}
	mr := &as.Mregs[idx]
	mr.Perms = perms
	mr.Flags = flags
	if flags&defs.MAP_ANONYMOUS == 0 {
		mr.Fops = fops
		mr.Foff = offset
	}
	as.Total++
	return mr.Start, 0
}

// populate wires length bytes of mr starting at the page-aligned va:
// a fresh zeroed frame per page, filled from the backing file for
// file-backed regions, then mapped with the region's perms. Already
// wired pages are skipped. On failure every page wired by this call is
// released before returning.
func (as *Vm_t) populate(mr *Mregion_t, va, length int) defs.Err_t {
	as.Lockassert_pmap()
	if va%mem.PGSIZE != 0 {
		panic("populate of unaligned va")
	}
	var wired []int
	fail := func(err defs.Err_t) defs.Err_t {
		for _, pva := range wired {
			as.page_remove(pva)
		}
		return err
	}
	isanon := mr.Flags&defs.MAP_ANONYMOUS != 0
	for pva := va; pva < va+length; pva += mem.PGSIZE {
		pte, err := Pmap_walk(as.Pmap, pva, true)
		if err != 0 {
			return fail(err)
		}
		if *pte&mem.PTE_P != 0 {
			continue
		}
		if !limits.Syslimit.Mappedpgs.Take() {
			return fail(-defs.ENOMEM)
		}
		pg, p_pg, ok := mem.Physmem.Refpg_new()
		if !ok {
			limits.Syslimit.Mappedpgs.Give()
			return fail(-defs.ENOMEM)
		}
		if !isanon {
			// reads past end of file leave the page tail zero
			foff := mr.Foff + (pva - mr.Start)
			if _, ferr := mr.Fops.Pread(pg[:], foff); ferr != 0 {
				mem.Physmem.Refdown(p_pg)
				limits.Syslimit.Mappedpgs.Give()
				return fail(ferr)
			}
		}
		*pte = p_pg | mr.Perms | mem.PTE_P
		wired = append(wired, pva)
		Vmstats.Populated.Inc()
		if !isanon {
			done := util.Min(pva-mr.Start+mem.PGSIZE, mr.Len)
			if done > mr.Stored {
				mr.Stored = done
			}
		}
	}
	return 0
}

// page_remove unwires the owned page at va, freeing its frame and
// returning the mapped-page budget.
func (as *Vm_t) page_remove(va int) {
	as.Lockassert_pmap()
	pte := Pmap_lookup(as.Pmap, va)
	if pte == nil || *pte&mem.PTE_P == 0 {
		return
	}
	mem.Physmem.Refdown(*pte & mem.PTE_ADDR)
	limits.Syslimit.Mappedpgs.Give()
	*pte = 0
}

/// Pgfault resolves a page fault at va. The faulting page is populated
/// when a live region covers va and the access is permitted; any other
/// fault is unhandled and reported as -EFAULT.
func (as *Vm_t) Pgfault(va int, iswrite bool) defs.Err_t {
	as.Lock_pmap()
	defer as.Unlock_pmap()
	return as.sys_pgfault(va, iswrite)
}

func (as *Vm_t) sys_pgfault(va int, iswrite bool) defs.Err_t {
	as.Lockassert_pmap()
	Vmstats.Pgfaults.Inc()
	mr, ok := as.region_for(va)
	if !ok {
		return -defs.EFAULT
	}
	isguard := mr.Perms == 0
	writeok := mr.Perms&mem.PTE_W != 0
	if isguard || (iswrite && !writeok) {
		return -defs.EFAULT
	}
	return as.populate(mr, pgrounddown(va), mem.PGSIZE)
}

/// Userdmap8_inner returns a byte slice over the user address va up to
/// the end of its page, faulting the page in first when needed. When
/// k2u is set the page must be writable.
func (as *Vm_t) Userdmap8_inner(va int, k2u bool) ([]uint8, defs.Err_t) {
	as.Lockassert_pmap()

	mr, ok := as.region_for(va)
	if !ok {
		return nil, -defs.EFAULT
	}
	if mr.Perms == 0 {
		return nil, -defs.EFAULT
	}
	if k2u && mr.Perms&mem.PTE_W == 0 {
		return nil, -defs.EFAULT
	}
	pte := Pmap_lookup(as.Pmap, va)
	if pte == nil || *pte&mem.PTE_P == 0 {
		if err := as.sys_pgfault(va, k2u); err != 0 {
			return nil, err
		}
		pte = Pmap_lookup(as.Pmap, va)
		if pte == nil || *pte&mem.PTE_P == 0 {
			panic("fault did not wire")
		}
	}
	pg := mem.Physmem.Dmap(*pte & mem.PTE_ADDR)
	voff := va & int(mem.PGOFFSET)
	return pg[voff:], 0
}

/// Userreadn reads n bytes from the user address va and returns the
/// value and any error encountered.
func (as *Vm_t) Userreadn(va, n int) (int, defs.Err_t) {
	as.Lock_pmap()
	a, b := as.userreadn_inner(va, n)
	as.Unlock_pmap()
	return a, b
}

func (as *Vm_t) userreadn_inner(va, n int) (int, defs.Err_t) {
	as.Lockassert_pmap()
	if n > 8 {
		panic("large n")
	}
	var ret int
	var src []uint8
	var err defs.Err_t
	for i := 0; i < n; i += len(src) {
		src, err = as.Userdmap8_inner(va+i, false)
		if err != 0 {
			return 0, err
		}
		l := util.Min(n-i, len(src))
		v := util.Readn(src, l, 0)
		ret |= v << (8 * uint(i))
	}
	return ret, 0
}

/// Userwriten writes n bytes of val to the user address va. It
/// returns an error code if the copy fails.
func (as *Vm_t) Userwriten(va, n, val int) defs.Err_t {
	if n > 8 {
		panic("large n")
	}
	as.Lock_pmap()
	defer as.Unlock_pmap()
	var dst []uint8
	for i := 0; i < n; i += len(dst) {
		v := val >> (8 * uint(i))
		t, err := as.Userdmap8_inner(va+i, true)
		dst = t
		if err != 0 {
			return err
		}
		util.Writen(dst, util.Min(n-i, len(dst)), 0, v)
	}
	return 0
}

/// Vm_fork duplicates this address space's regions into child. SHARED
/// regions share frames (the parent side is populated first when
/// needed) and the child copy is marked borrowed; wired PRIVATE pages
/// are deep-copied and unwired ones stay lazy. On failure the caller
/// must tear the child down; descriptors installed so far are visible
/// to Uvmfree.
func (as *Vm_t) Vm_fork(child *Vm_t) defs.Err_t {
	as.Lock_pmap()
	defer as.Unlock_pmap()

	for i := 0; i < as.Total; i++ {
		pmr := &as.Mregs[i]
		child.Mregs[i] = Mregion_t{
			Start: pmr.Start,
			Len:   pmr.Len,
			Perms: pmr.Perms,
			Flags: pmr.Flags,
			Fops:  pmr.Fops,
			Foff:  pmr.Foff,
		}
		child.Total = i + 1
		cmr := &child.Mregs[i]
		isshared := pmr.Flags&defs.MAP_SHARED != 0
		if isshared {
			cmr.Refcnt = 1
		}
		for pva := pmr.Start; pva < pmr.Start+pmr.Len; pva += mem.PGSIZE {
			pte := Pmap_lookup(as.Pmap, pva)
			wired := pte != nil && *pte&mem.PTE_P != 0
			if isshared {
				if !wired {
					if err := as.populate(pmr, pva, mem.PGSIZE); err != 0 {
						return err
					}
					pte = Pmap_lookup(as.Pmap, pva)
				}
				cpte, err := Pmap_walk(child.Pmap, pva, true)
				if err != 0 {
					return err
				}
				// borrowed: the frame stays owned by the parent cohort,
				// so no reference is taken
				*cpte = (*pte & mem.PTE_ADDR) | pmr.Perms | mem.PTE_P
				Vmstats.Forkshared.Inc()
			} else {
				if !wired {
					continue
				}
				if !limits.Syslimit.Mappedpgs.Take() {
					return -defs.ENOMEM
				}
				npg, p_npg, ok := mem.Physmem.Refpg_new()
				if !ok {
					limits.Syslimit.Mappedpgs.Give()
					return -defs.ENOMEM
				}
				*npg = *mem.Physmem.Dmap(*pte & mem.PTE_ADDR)
				cpte, err := Pmap_walk(child.Pmap, pva, true)
				if err != 0 {
					mem.Physmem.Refdown(p_npg)
					limits.Syslimit.Mappedpgs.Give()
					return err
				}
				*cpte = p_npg | pmr.Perms | mem.PTE_P
				Vmstats.Forkcopied.Inc()
			}
		}
	}
	return 0
}

/// Unmap releases the region based at the page-rounded addr. A length
/// covering the whole region removes the descriptor; a shorter one
/// shrinks the region from the low end. SHARED writable file-backed
/// regions are written back to their file first.
func (as *Vm_t) Unmap(addr, length int) defs.Err_t {
	as.Lock_pmap()
	defer as.Unlock_pmap()
	return as.unmap_inner(addr, length)
}

func (as *Vm_t) unmap_inner(addr, length int) defs.Err_t {
	as.Lockassert_pmap()
	i := as.find_by_base(addr)
	if i < 0 {
		return -defs.ENOENT
	}
	mr := &as.Mregs[i]
	isanon := mr.Flags&defs.MAP_ANONYMOUS != 0
	isshared := mr.Flags&defs.MAP_SHARED != 0
	if isshared && !isanon && mr.Perms&mem.PTE_W != 0 {
		if err := as.writeback(mr); err != 0 {
			return err
		}
		Vmstats.Writebacks.Inc()
	}
	ul := pgroundup(length)
	as.unmap_pages(mr, util.Min(ul, mr.Len))
	if ul >= mr.Len {
		as.remove_at(i)
	} else {
		mr.Start += ul
		mr.Len -= ul
	}
	Vmstats.Unmaps.Inc()
	return 0
}

// unmap_pages clears the leaf PTEs of the first span bytes of mr,
// freeing the frames unless the region borrows them.
func (as *Vm_t) unmap_pages(mr *Mregion_t, span int) {
	as.Lockassert_pmap()
	for pva := mr.Start; pva < mr.Start+span; pva += mem.PGSIZE {
		pte := Pmap_lookup(as.Pmap, pva)
		if pte == nil || *pte&mem.PTE_P == 0 {
			continue
		}
		if mr.Refcnt == 0 {
			mem.Physmem.Refdown(*pte & mem.PTE_ADDR)
			limits.Syslimit.Mappedpgs.Give()
		}
		*pte = 0
	}
}

// writeback flushes the whole region to its file starting at the
// region's file offset. Unpopulated pages fault in first so the file
// sees exactly the bytes the region holds.
func (as *Vm_t) writeback(mr *Mregion_t) defs.Err_t {
	as.Lockassert_pmap()
	mr.Fops.Seek(mr.Foff)
	buf := make([]uint8, mem.PGSIZE)
	ub := &Userbuf_t{}
	ub.ub_init(as, mr.Start, mr.Len)
	for ub.Remain() > 0 {
		n := util.Min(len(buf), ub.Remain())
		c, err := ub._tx(buf[:n], false)
		if err != 0 {
			return err
		}
		if c != n {
			return -defs.EIO
		}
		wn, werr := mr.Fops.Write(buf[:n])
		if werr != 0 {
			return werr
		}
		if wn != n {
			return -defs.EIO
		}
	}
	return 0
}

/// Uvmfree tears down the whole address space: every region is
/// unmapped high index to low (with writeback where Unmap would do
/// it), then the page-table pages themselves are released. Borrowed
/// regions give up their mappings without freeing frames.
func (as *Vm_t) Uvmfree() {
	as.Lock_pmap()
	defer as.Unlock_pmap()
	for i := as.Total - 1; i >= 0; i-- {
		mr := &as.Mregs[i]
		if err := as.unmap_inner(mr.Start, mr.Len); err != 0 {
			// exit cannot report a writeback failure; the pages
			// still go
			as.unmap_pages(mr, mr.Len)
			as.remove_at(i)
		}
	}
	Uvmfree_inner(as.Pmap)
	mem.Physmem.Refdown(as.P_pmap)
	as.Pmap = nil
}

/// Mkuserbuf allocates and initializes a Userbuf_t referencing user
/// memory starting at userva.
func (as *Vm_t) Mkuserbuf(userva, len int) *Userbuf_t {
	ret := &Userbuf_t{}
	ret.ub_init(as, userva, len)
	return ret
}
