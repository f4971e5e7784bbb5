package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"scone/src/defs"
	"scone/src/fdops"
	"scone/src/mem"
)

// mkas builds an address space over a private frame pool of the given
// size, restoring the system pool when the test ends.
func mkas(t *testing.T, frames int) *Vm_t {
	t.Helper()
	old := mem.Physmem
	mem.Physmem = mem.Mkphysmem(frames)
	t.Cleanup(func() { mem.Physmem = old })
	as, err := Mkvm()
	require.Equal(t, defs.Err_t(0), err)
	return as
}

func anonmap(t *testing.T, as *Vm_t, addr, length, flags int, perms mem.Pa_t) int {
	t.Helper()
	va, err := as.Mmap(addr, nil, length, 0, flags|defs.MAP_ANONYMOUS, perms)
	require.Equal(t, defs.Err_t(0), err)
	return va
}

func filemap(t *testing.T, as *Vm_t, addr, length, off, flags int,
	perms mem.Pa_t, fops fdops.Fdops_i) int {
	t.Helper()
	va, err := as.Mmap(addr, fops, length, off, flags, perms)
	require.Equal(t, defs.Err_t(0), err)
	return va
}

// wiredpages counts present leaf PTEs in [start, start+length).
func wiredpages(as *Vm_t, start, length int) int {
	n := 0
	for va := start; va < start+pgroundup(length); va += mem.PGSIZE {
		pte := Pmap_lookup(as.Pmap, va)
		if pte != nil && *pte&mem.PTE_P != 0 {
			n++
		}
	}
	return n
}

func wiredpa(t *testing.T, as *Vm_t, va int) mem.Pa_t {
	t.Helper()
	pte := Pmap_lookup(as.Pmap, va)
	require.NotNil(t, pte)
	require.NotZero(t, *pte&mem.PTE_P)
	return *pte & mem.PTE_ADDR
}

// checkInvariants asserts the table is ordered, disjoint, in bounds,
// and zeroed past Total.
func checkInvariants(t *testing.T, as *Vm_t) {
	t.Helper()
	require.GreaterOrEqual(t, as.Total, 0)
	require.LessOrEqual(t, as.Total, defs.MAX_MMAPS)
	for i := 0; i < as.Total; i++ {
		mr := &as.Mregs[i]
		require.Zero(t, mr.Start%mem.PGSIZE, "region %d base unaligned", i)
		require.GreaterOrEqual(t, mr.Start, mem.MMAPBASE, "region %d below MMAPBASE", i)
		require.LessOrEqual(t, pgroundup(mr.Start+mr.Len), mem.KERNBASE, "region %d past KERNBASE", i)
		if i < as.Total-1 {
			next := &as.Mregs[i+1]
			require.Less(t, mr.Start, next.Start, "table unordered at %d", i)
			require.LessOrEqual(t, pgroundup(mr.Start+mr.Len), pgroundup(next.Start),
				"regions %d and %d overlap", i, i+1)
		}
	}
	for i := as.Total; i < defs.MAX_MMAPS; i++ {
		require.Equal(t, Mregion_t{}, as.Mregs[i], "dead entry %d not zeroed", i)
	}
}

func readbyte(t *testing.T, as *Vm_t, va int) (int, defs.Err_t) {
	t.Helper()
	return as.Userreadn(va, 1)
}
