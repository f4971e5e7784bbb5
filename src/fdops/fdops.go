// Package fdops declares the file operations consumed by the memory
// mapping code. It exists as a leaf so that vm and fd do not depend on
// a filesystem implementation.
package fdops

import "scone/src/defs"

/// Fdops_i is the contract a file object offers to the mmap subsystem.
/// Pread does not move the file offset; Write advances it.
type Fdops_i interface {
	/// Len returns the current size of the backing object in bytes.
	Len() int
	/// Pread copies up to len(dst) bytes starting at off into dst and
	/// returns the byte count. A read at or past the end returns 0.
	Pread(dst []uint8, off int) (int, defs.Err_t)
	/// Seek repositions the file offset used by Write.
	Seek(off int)
	/// Write appends src at the file offset, growing the object as
	/// needed, and advances the offset by the returned count.
	Write(src []uint8) (int, defs.Err_t)
}
