package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scone/src/defs"
	"scone/src/fs"
	"scone/src/limits"
	"scone/src/mem"
)

func TestAnonLazyZeroFill(t *testing.T) {
	as := mkas(t, 64)
	va := anonmap(t, as, 0, 2*mem.PGSIZE, defs.MAP_PRIVATE, rw)
	require.Zero(t, wiredpages(as, va, 2*mem.PGSIZE))

	v, err := readbyte(t, as, va+5)
	require.Equal(t, defs.Err_t(0), err)
	assert.Zero(t, v, "untouched anonymous byte must read 0")

	// only the faulting page was populated
	assert.Equal(t, 1, wiredpages(as, va, 2*mem.PGSIZE))
}

func TestAnonWriteReadBack(t *testing.T) {
	as := mkas(t, 64)
	va := anonmap(t, as, 0, mem.PGSIZE, defs.MAP_PRIVATE, rw)

	require.Equal(t, defs.Err_t(0), as.Userwriten(va, 1, 0xab))
	v, err := readbyte(t, as, va)
	require.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, 0xab, v)
}

func TestFilebackedRead(t *testing.T) {
	as := mkas(t, 64)
	mf := fs.MkMemfile([]uint8("HELLOWORLD"))
	va := filemap(t, as, 0, mem.PGSIZE, 0, defs.MAP_PRIVATE, mem.PTE_U, mf)

	buf := make([]uint8, mem.PGSIZE)
	ub := as.Mkuserbuf(va, mem.PGSIZE)
	c, err := ub.Uioread(buf)
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, mem.PGSIZE, c)
	assert.Equal(t, "HELLOWORLD", string(buf[:10]))
	for i := 10; i < mem.PGSIZE; i++ {
		if buf[i] != 0 {
			t.Fatalf("byte %d past EOF not zero", i)
		}
	}
}

func TestFilebackedPerPageOffset(t *testing.T) {
	as := mkas(t, 64)
	data := make([]uint8, 2*mem.PGSIZE)
	for i := range data {
		data[i] = uint8(i % 251)
	}
	mf := fs.MkMemfile(data)

	va := filemap(t, as, 0, 2*mem.PGSIZE, 0, defs.MAP_PRIVATE, mem.PTE_U, mf)
	v, err := readbyte(t, as, va+mem.PGSIZE+3)
	require.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, int(data[mem.PGSIZE+3]), v)

	// a non-zero file offset shifts the whole window
	as2 := mkas(t, 64)
	va2 := filemap(t, as2, 0, mem.PGSIZE, mem.PGSIZE, defs.MAP_PRIVATE, mem.PTE_U, mf)
	v, err = readbyte(t, as2, va2)
	require.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, int(data[mem.PGSIZE]), v)
}

func TestGuardRegionTraps(t *testing.T) {
	as := mkas(t, 64)
	va := anonmap(t, as, 0, mem.PGSIZE, defs.MAP_PRIVATE, 0)

	_, err := readbyte(t, as, va)
	assert.Equal(t, -defs.EFAULT, err)
	assert.Equal(t, -defs.EFAULT, as.Pgfault(va, false))
	assert.Zero(t, wiredpages(as, va, mem.PGSIZE))
}

func TestReadonlyWriteTraps(t *testing.T) {
	as := mkas(t, 64)
	va := anonmap(t, as, 0, mem.PGSIZE, defs.MAP_PRIVATE, mem.PTE_U)

	assert.Equal(t, -defs.EFAULT, as.Userwriten(va, 1, 1))
	assert.Equal(t, -defs.EFAULT, as.Pgfault(va, true))

	// reads still work
	v, err := readbyte(t, as, va)
	require.Equal(t, defs.Err_t(0), err)
	assert.Zero(t, v)
}

func TestFaultOutsideRegions(t *testing.T) {
	as := mkas(t, 64)
	va := anonmap(t, as, 0, mem.PGSIZE, defs.MAP_PRIVATE, rw)

	assert.Equal(t, -defs.EFAULT, as.Pgfault(va+mem.PGSIZE, false))
	assert.Equal(t, -defs.EFAULT, as.Pgfault(mem.MMAPBASE-mem.PGSIZE, false))
	_, err := readbyte(t, as, va+mem.PGSIZE)
	assert.Equal(t, -defs.EFAULT, err)
}

func TestPopulateIdempotent(t *testing.T) {
	as := mkas(t, 64)
	va := anonmap(t, as, 0, mem.PGSIZE, defs.MAP_PRIVATE, rw)

	require.Equal(t, defs.Err_t(0), as.Userwriten(va, 1, 0x7f))
	pa := wiredpa(t, as, va)

	// a second fault on the wired page must not re-materialize it
	require.Equal(t, defs.Err_t(0), as.Pgfault(va, false))
	assert.Equal(t, pa, wiredpa(t, as, va))
	v, err := readbyte(t, as, va)
	require.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, 0x7f, v)
}

func TestPopulateRollsBackOnExhaustion(t *testing.T) {
	// 7 frames: 1 root + 3 intermediate tables + 3 data pages; the
	// fourth data page fails and the first three must come back
	as := mkas(t, 7)
	va := anonmap(t, as, 0, 4*mem.PGSIZE, defs.MAP_PRIVATE, rw)

	as.Lock_pmap()
	mr, ok := as.region_for(va)
	require.True(t, ok)
	err := as.populate(mr, va, 4*mem.PGSIZE)
	as.Unlock_pmap()

	assert.Equal(t, -defs.ENOMEM, err)
	assert.Zero(t, wiredpages(as, va, 4*mem.PGSIZE), "partial wiring survived a failed populate")
	assert.Equal(t, 3, mem.Physmem.Freepgs())
}

func TestPopulateHonorsPageBudget(t *testing.T) {
	as := mkas(t, 64)
	old := limits.Syslimit
	limits.Syslimit = &limits.Syslimit_t{Mappedpgs: 2}
	t.Cleanup(func() { limits.Syslimit = old })

	va := anonmap(t, as, 0, 3*mem.PGSIZE, defs.MAP_PRIVATE, rw)
	require.Equal(t, defs.Err_t(0), as.Pgfault(va, false))
	require.Equal(t, defs.Err_t(0), as.Pgfault(va+mem.PGSIZE, false))
	assert.Equal(t, -defs.ENOMEM, as.Pgfault(va+2*mem.PGSIZE, false))

	// unmapping returns the budget
	require.Equal(t, defs.Err_t(0), as.Unmap(va, 3*mem.PGSIZE))
	va2 := anonmap(t, as, 0, mem.PGSIZE, defs.MAP_PRIVATE, rw)
	assert.Equal(t, defs.Err_t(0), as.Pgfault(va2, false))
}

func TestStoredAdvances(t *testing.T) {
	as := mkas(t, 64)
	mf := fs.MkMemfile(make([]uint8, 3*mem.PGSIZE))
	va := filemap(t, as, 0, 3*mem.PGSIZE, 0, defs.MAP_PRIVATE, mem.PTE_U, mf)

	as.Lock_pmap()
	mr, ok := as.region_for(va)
	as.Unlock_pmap()
	require.True(t, ok)
	require.Zero(t, mr.Stored)

	_, err := readbyte(t, as, va+mem.PGSIZE)
	require.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, 2*mem.PGSIZE, mr.Stored)

	// populating an earlier page never rewinds the watermark
	_, err = readbyte(t, as, va)
	require.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, 2*mem.PGSIZE, mr.Stored)
}

func TestUserbufSpansPages(t *testing.T) {
	as := mkas(t, 64)
	va := anonmap(t, as, 0, 2*mem.PGSIZE, defs.MAP_PRIVATE, rw)

	src := make([]uint8, mem.PGSIZE)
	for i := range src {
		src[i] = uint8(i % 256)
	}
	ub := as.Mkuserbuf(va+mem.PGSIZE/2, len(src))
	c, err := ub.Uiowrite(src)
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, len(src), c)

	dst := make([]uint8, len(src))
	ub = as.Mkuserbuf(va+mem.PGSIZE/2, len(dst))
	c, err = ub.Uioread(dst)
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, len(dst), c)
	assert.Equal(t, src, dst)
	assert.Equal(t, 2, wiredpages(as, va, 2*mem.PGSIZE))
}
