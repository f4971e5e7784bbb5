package mem

import "sync"

/// PGSHIFT is the base-2 exponent for the page size.
const PGSHIFT uint = 12

/// PGSIZE is the size of a single page in bytes.
const PGSIZE int = 1 << PGSHIFT

/// PGOFFSET masks offsets within a page.
const PGOFFSET Pa_t = 0xfff

/// PGMASK masks the page number of an address.
const PGMASK Pa_t = ^(PGOFFSET)

/// PTE_P marks a page as present.
const PTE_P Pa_t = 1 << 0

/// PTE_W marks a page writable.
const PTE_W Pa_t = 1 << 1

/// PTE_U marks a page user-accessible.
const PTE_U Pa_t = 1 << 2

/// PTE_ADDR extracts the address bits of a PTE.
const PTE_ADDR Pa_t = PGMASK

/// MMAPBASE is the lowest virtual address handed out to memory mappings.
const MMAPBASE int = 0x40000000

/// KERNBASE is the top of user virtual address space. No mapping may
/// reach at or above it.
const KERNBASE int = 0x80000000

/// Pa_t represents a physical address.
type Pa_t uintptr

/// Bytepg_t is a byte addressed page.
type Bytepg_t [PGSIZE]uint8

/// Pmap_t is a page table page: 512 eight-byte entries.
type Pmap_t [512]Pa_t

/// Page_i abstracts physical page allocation for the rest of the kernel.
type Page_i interface {
	Refpg_new() (*Bytepg_t, Pa_t, bool)
	Refcnt(Pa_t) int
	Dmap(Pa_t) *Bytepg_t
	Refup(Pa_t)
	Refdown(Pa_t) bool
}

/// Physpg_t describes a single physical page.
type Physpg_t struct {
	Refcnt int32
	// index into pgs of next page on free list
	nexti uint32
}

/// Physmem_t manages the fixed pool of physical frames. Frame zero is
/// reserved so that a zero PTE always means "not mapped".
type Physmem_t struct {
	sync.Mutex
	pgs     []Physpg_t
	pool    []Bytepg_t
	freei   uint32
	freelen int
	npages  int
}

var _ Page_i = &Physmem_t{}

/// Physmem is the system frame allocator. Tests and tools may swap in a
/// pool of a different size before creating address spaces.
var Physmem *Physmem_t = Mkphysmem(DefaultPages)

/// DefaultPages is the frame pool size used when no geometry is given.
const DefaultPages int = 1024

const _nilidx uint32 = ^uint32(0)

/// Mkphysmem initializes a frame pool of npages frames.
func Mkphysmem(npages int) *Physmem_t {
	if npages <= 0 {
		panic("no frames")
	}
	phys := &Physmem_t{}
	phys.npages = npages
	// slot 0 stays off the free list forever
	phys.pgs = make([]Physpg_t, npages+1)
	phys.pool = make([]Bytepg_t, npages+1)
	phys.freei = _nilidx
	for i := npages; i >= 1; i-- {
		phys.pgs[i].nexti = phys.freei
		phys.freei = uint32(i)
	}
	phys.freelen = npages
	return phys
}

func (phys *Physmem_t) pa2idx(p_pg Pa_t) uint32 {
	if p_pg&PGOFFSET != 0 {
		panic("pa not aligned")
	}
	idx := uint32(p_pg >> PGSHIFT)
	if idx == 0 || int(idx) > phys.npages {
		panic("bad pa")
	}
	return idx
}

/// Refpg_new allocates a zeroed frame with an initial reference count of
/// one. It returns false when the pool is exhausted.
func (phys *Physmem_t) Refpg_new() (*Bytepg_t, Pa_t, bool) {
	phys.Lock()
	defer phys.Unlock()
	if phys.freei == _nilidx {
		return nil, 0, false
	}
	idx := phys.freei
	phys.freei = phys.pgs[idx].nexti
	phys.freelen--
	phys.pgs[idx].Refcnt = 1
	pg := &phys.pool[idx]
	*pg = Bytepg_t{}
	return pg, Pa_t(idx) << PGSHIFT, true
}

/// Refcnt returns the reference count of the frame at p_pg.
func (phys *Physmem_t) Refcnt(p_pg Pa_t) int {
	phys.Lock()
	defer phys.Unlock()
	return int(phys.pgs[phys.pa2idx(p_pg)].Refcnt)
}

/// Dmap returns the kernel view of the frame at p_pg.
func (phys *Physmem_t) Dmap(p_pg Pa_t) *Bytepg_t {
	return &phys.pool[phys.pa2idx(p_pg)]
}

/// Refup takes an additional reference on the frame at p_pg.
func (phys *Physmem_t) Refup(p_pg Pa_t) {
	phys.Lock()
	defer phys.Unlock()
	idx := phys.pa2idx(p_pg)
	if phys.pgs[idx].Refcnt <= 0 {
		panic("refup of free page")
	}
	phys.pgs[idx].Refcnt++
}

/// Refdown drops a reference on the frame at p_pg and returns the frame
/// to the free list when the count reaches zero. It reports whether the
/// frame was freed.
func (phys *Physmem_t) Refdown(p_pg Pa_t) bool {
	phys.Lock()
	defer phys.Unlock()
	idx := phys.pa2idx(p_pg)
	c := phys.pgs[idx].Refcnt - 1
	if c < 0 {
		panic("refdown of free page")
	}
	phys.pgs[idx].Refcnt = c
	if c == 0 {
		phys.pgs[idx].nexti = phys.freei
		phys.freei = idx
		phys.freelen++
		return true
	}
	return false
}

/// Freepgs reports the number of frames on the free list.
func (phys *Physmem_t) Freepgs() int {
	phys.Lock()
	defer phys.Unlock()
	return phys.freelen
}

/// Totalpgs reports the size of the frame pool.
func (phys *Physmem_t) Totalpgs() int {
	return phys.npages
}
