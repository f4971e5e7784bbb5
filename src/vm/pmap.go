package vm

import "unsafe"

import "scone/src/defs"
import "scone/src/mem"

// 4-level page tables with a 9/9/9/9/12 virtual address split. Table
// pages come from the frame pool like any other page; a zero entry
// means "not mapped" at every level (frame zero is never allocated).

func pg2pmap(pg *mem.Bytepg_t) *mem.Pmap_t {
	return (*mem.Pmap_t)(unsafe.Pointer(pg))
}

func shl(c uint) uint {
	return 12 + 9*c
}

func pgbits(va uintptr) (uint, uint, uint, uint) {
	lb := func(c uint) uint {
		return (uint(va) >> shl(c)) & 0x1ff
	}
	return lb(3), lb(2), lb(1), lb(0)
}

func mkpmap() (*mem.Pmap_t, mem.Pa_t, bool) {
	pg, p_pg, ok := mem.Physmem.Refpg_new()
	if !ok {
		return nil, 0, false
	}
	return pg2pmap(pg), p_pg, true
}

// next returns the table one level down from entry idx of pm,
// allocating it when create is set.
func next(pm *mem.Pmap_t, idx uint, create bool) (*mem.Pmap_t, defs.Err_t) {
	pte := pm[idx]
	if pte&mem.PTE_P != 0 {
		return pg2pmap(mem.Physmem.Dmap(pte & mem.PTE_ADDR)), 0
	}
	if !create {
		return nil, 0
	}
	pg, p_pg, ok := mem.Physmem.Refpg_new()
	if !ok {
		return nil, -defs.ENOMEM
	}
	pm[idx] = p_pg | mem.PTE_P | mem.PTE_W | mem.PTE_U
	return pg2pmap(pg), 0
}

/// Pmap_walk returns a pointer to the leaf PTE for va, allocating
/// intermediate tables when create is set. Without create a missing
/// table yields (nil, 0).
func Pmap_walk(pm *mem.Pmap_t, va int, create bool) (*mem.Pa_t, defs.Err_t) {
	l4, l3, l2, l1 := pgbits(uintptr(va))
	for _, idx := range []uint{l4, l3, l2} {
		np, err := next(pm, idx, create)
		if np == nil {
			return nil, err
		}
		pm = np
	}
	return &pm[l1], 0
}

/// Pmap_lookup returns the leaf PTE for va or nil when no table path
/// exists. It never allocates.
func Pmap_lookup(pm *mem.Pmap_t, va int) *mem.Pa_t {
	pte, _ := Pmap_walk(pm, va, false)
	return pte
}

// uvmfree_level releases the page-table pages reachable from pm. All
// leaf mappings must already be cleared; a present leaf here means a
// region leaked a page.
func uvmfree_level(pm *mem.Pmap_t, lvl int) {
	for i := range pm {
		pte := pm[i]
		if pte&mem.PTE_P == 0 {
			continue
		}
		if lvl == 1 {
			panic("dangling user page")
		}
		np := pg2pmap(mem.Physmem.Dmap(pte & mem.PTE_ADDR))
		uvmfree_level(np, lvl-1)
		mem.Physmem.Refdown(pte & mem.PTE_ADDR)
		pm[i] = 0
	}
}

/// Uvmfree_inner frees every page-table page below the root pmap. The
/// root itself is released by the caller.
func Uvmfree_inner(pm *mem.Pmap_t) {
	uvmfree_level(pm, 4)
}
