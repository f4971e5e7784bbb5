package fd

import "scone/src/fdops"

/// File descriptor permission bits.
const (
	FD_READ  = 0x1 /// read permission
	FD_WRITE = 0x2 /// write permission
)

/// Fd_t represents an open file descriptor.
type Fd_t struct {
	// fops is an interface implemented via a "pointer receiver", thus fops
	// is a reference, not a value
	Fops  fdops.Fdops_i /// descriptor operations
	Perms int           /// permission bits
}

/// MkFd wraps fops in a descriptor carrying the given permission bits.
func MkFd(fops fdops.Fdops_i, perms int) *Fd_t {
	return &Fd_t{Fops: fops, Perms: perms}
}

/// Readable reports whether the descriptor was opened for reading.
func (fd *Fd_t) Readable() bool {
	return fd.Perms&FD_READ != 0
}

/// Writable reports whether the descriptor was opened for writing.
func (fd *Fd_t) Writable() bool {
	return fd.Perms&FD_WRITE != 0
}
