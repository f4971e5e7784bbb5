package limits

import "unsafe"
import "sync/atomic"

/// Lhits counts limit hits.
var Lhits int

/// Sysatomic_t is a numeric limit that can be atomically updated.
type Sysatomic_t int64

/// Syslimit_t tracks system wide resource limits.
type Syslimit_t struct {
	// pages wired into user address spaces by the mmap populator
	Mappedpgs Sysatomic_t
}

/// Syslimit describes the configured system wide limits.
var Syslimit *Syslimit_t = MkSysLimit()

/// MkSysLimit returns a pointer to the default set of limits.
func MkSysLimit() *Syslimit_t {
	return &Syslimit_t{
		// 4GB of mapped pages
		Mappedpgs: 1 << 20,
	}
}

func (s *Sysatomic_t) _aptr() *int64 {
	return (*int64)(unsafe.Pointer(s))
}

/// Given increases the limit by the provided amount.
func (s *Sysatomic_t) Given(_n uint) {
	n := int64(_n)
	if n < 0 {
		panic("too mighty")
	}
	atomic.AddInt64(s._aptr(), n)
}

/// Taken tries to decrement the limit by the provided amount.
/// It returns true on success.
func (s *Sysatomic_t) Taken(_n uint) bool {
	n := int64(_n)
	if n < 0 {
		panic("too mighty")
	}
	g := atomic.AddInt64(s._aptr(), -n)
	if g >= 0 {
		return true
	}
	atomic.AddInt64(s._aptr(), n)
	Lhits++
	return false
}

/// Take decrements the limit and reports whether it succeeded.
func (s *Sysatomic_t) Take() bool {
	return s.Taken(1)
}

/// Give increments the limit by one.
func (s *Sysatomic_t) Give() {
	s.Given(1)
}
