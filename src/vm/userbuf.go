package vm

import "fmt"

import "scone/src/defs"

/// Userbuf_t assists reading and writing user memory. Address lookups
/// and accesses are atomic with respect to page faults.
type Userbuf_t struct {
	userva int
	len    int
	// 0 <= off <= len
	off int
	as  *Vm_t
}

/// ub_init initialises the buffer for the given address space.
func (ub *Userbuf_t) ub_init(as *Vm_t, uva, len int) {
	if len < 0 {
		panic("negative length")
	}
	if len >= 1<<39 {
		fmt.Printf("suspiciously large user buffer (%v)\n", len)
	}
	ub.userva = uva
	ub.len = len
	ub.off = 0
	ub.as = as
}

/// Remain returns the number of untransferred bytes left in the buffer.
func (ub *Userbuf_t) Remain() int {
	return ub.len - ub.off
}

/// Uioread copies data from user memory into dst and returns the
/// number of bytes read along with an error code.
func (ub *Userbuf_t) Uioread(dst []uint8) (int, defs.Err_t) {
	ub.as.Lock_pmap()
	a, b := ub._tx(dst, false)
	ub.as.Unlock_pmap()
	return a, b
}

/// Uiowrite copies data from src into user memory and returns the
/// number of bytes written along with an error code.
func (ub *Userbuf_t) Uiowrite(src []uint8) (int, defs.Err_t) {
	ub.as.Lock_pmap()
	a, b := ub._tx(src, true)
	ub.as.Unlock_pmap()
	return a, b
}

// copies the min of either the provided buffer or ub.len. returns number of
// bytes copied and error. if an error occurs in the middle of a read or write,
// the userbuf's state is updated such that the operation can be restarted.
func (ub *Userbuf_t) _tx(buf []uint8, write bool) (int, defs.Err_t) {
	ret := 0
	for len(buf) != 0 && ub.off != ub.len {
		va := ub.userva + ub.off
		ubuf, err := ub.as.Userdmap8_inner(va, write)
		if err != 0 {
			return ret, err
		}
		end := ub.off + len(ubuf)
		if end > ub.len {
			left := ub.len - ub.off
			ubuf = ubuf[:left]
		}
		var c int
		if write {
			c = copy(ubuf, buf)
		} else {
			c = copy(buf, ubuf)
		}
		buf = buf[c:]
		ub.off += c
		ret += c
	}
	return ret, 0
}
