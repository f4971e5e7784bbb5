// Package defs holds kernel-wide constants and the error type shared by
// every subsystem.
package defs

/// Err_t is a kernel error number. Functions return the negated value
/// (e.g. -EINVAL); 0 means success.
type Err_t int

/// Error numbers surfaced by the mmap subsystem.
const (
	EPERM        Err_t = 1  /// operation not permitted
	ENOENT       Err_t = 2  /// no such region
	EIO          Err_t = 5  /// writeback failed
	EBADF        Err_t = 9  /// bad file descriptor
	ENOMEM       Err_t = 12 /// out of frames, table slots, or holes
	EACCES       Err_t = 13 /// file permission mismatch
	EFAULT       Err_t = 14 /// access outside any region
	EINVAL       Err_t = 22 /// bad argument
	ENOSPC       Err_t = 28 /// file system full
	ENAMETOOLONG Err_t = 36 /// string too long
	ENOSYS       Err_t = 38 /// unimplemented system call
)

/// MAP_FAILED is the mmap system call failure sentinel.
const MAP_FAILED int = -1

/// Mapping flag bits. Exactly one of MAP_SHARED/MAP_PRIVATE is required;
/// MAP_ANONYMOUS and MAP_FIXED are independent modifiers.
const (
	MAP_SHARED    int = 0x01
	MAP_PRIVATE   int = 0x02
	MAP_FIXED     int = 0x10
	MAP_ANONYMOUS int = 0x20
)

/// Protection bits for mmap. PROT_WRITE implies read access.
const (
	PROT_NONE  int = 0x0
	PROT_READ  int = 0x1
	PROT_WRITE int = 0x2
)

/// MAX_MMAPS bounds the number of live regions per process.
const MAX_MMAPS int = 32
