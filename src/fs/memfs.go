// Package fs provides the in-memory file objects the mmap subsystem
// maps and writes back to. The on-disk filesystem is out of scope; the
// fault path only ever sees fdops.Fdops_i.
package fs

import "sync"

import "scone/src/defs"
import "scone/src/fdops"

/// Memfile_t is a growable in-memory inode. The mutex serializes the
/// file offset against concurrent writebacks.
type Memfile_t struct {
	sync.Mutex
	data []uint8
	off  int
}

var _ fdops.Fdops_i = &Memfile_t{}

/// MkMemfile creates a memory file holding a copy of contents.
func MkMemfile(contents []uint8) *Memfile_t {
	mf := &Memfile_t{}
	mf.data = append([]uint8(nil), contents...)
	return mf
}

/// Len returns the current file size in bytes.
func (mf *Memfile_t) Len() int {
	mf.Lock()
	defer mf.Unlock()
	return len(mf.data)
}

/// Pread copies bytes at off into dst without moving the file offset.
/// Reads crossing the end of the file truncate naturally.
func (mf *Memfile_t) Pread(dst []uint8, off int) (int, defs.Err_t) {
	if off < 0 {
		return 0, -defs.EINVAL
	}
	mf.Lock()
	defer mf.Unlock()
	if off >= len(mf.data) {
		return 0, 0
	}
	return copy(dst, mf.data[off:]), 0
}

/// Seek repositions the write offset.
func (mf *Memfile_t) Seek(off int) {
	if off < 0 {
		panic("negative offset")
	}
	mf.Lock()
	mf.off = off
	mf.Unlock()
}

/// Write stores src at the write offset, growing the file as needed,
/// and advances the offset.
func (mf *Memfile_t) Write(src []uint8) (int, defs.Err_t) {
	mf.Lock()
	defer mf.Unlock()
	end := mf.off + len(src)
	if end > len(mf.data) {
		ndata := make([]uint8, end)
		copy(ndata, mf.data)
		mf.data = ndata
	}
	copy(mf.data[mf.off:], src)
	mf.off = end
	return len(src), 0
}

/// Rawdata returns the file contents. Callers must not mutate it; it
/// exists for tools and tests that verify writeback.
func (mf *Memfile_t) Rawdata() []uint8 {
	mf.Lock()
	defer mf.Unlock()
	return append([]uint8(nil), mf.data...)
}
