// Package kernel implements the system call boundary of the mmap
// subsystem: argument validation and dispatch into the address space
// core. mmap and munmap failures collapse to MAP_FAILED or -1 here;
// the page-fault entry returns the core's error number.
package kernel

import "scone/src/defs"
import "scone/src/fd"
import "scone/src/fdops"
import "scone/src/mem"
import "scone/src/proc"
import "scone/src/util"

// prot2perms translates PROT_* bits into the PTE bits stored on the
// region. PROT_NONE stays zero so every access traps.
func prot2perms(prot int) mem.Pa_t {
	if prot == defs.PROT_NONE {
		return 0
	}
	perms := mem.PTE_U
	if prot&defs.PROT_WRITE != 0 {
		perms |= mem.PTE_W
	}
	return perms
}

/// Sys_mmap creates a mapping in p's address space and returns its
/// base virtual address, or MAP_FAILED. No pages are wired.
func Sys_mmap(p *proc.Proc_t, addr int, f *fd.Fd_t, length, offset,
	flags, prot int) int {
	isshared := flags&defs.MAP_SHARED != 0
	isprivate := flags&defs.MAP_PRIVATE != 0
	if isshared == isprivate {
		return defs.MAP_FAILED
	}
	if length <= 0 || offset < 0 {
		return defs.MAP_FAILED
	}
	isanon := flags&defs.MAP_ANONYMOUS != 0
	if !isanon && (f == nil || !f.Readable()) {
		return defs.MAP_FAILED
	}
	if isshared && prot&defs.PROT_WRITE != 0 && !isanon && !f.Writable() {
		return defs.MAP_FAILED
	}
	if p.Vm.Total == defs.MAX_MMAPS {
		return defs.MAP_FAILED
	}
	if addr != 0 {
		if addr < mem.MMAPBASE || addr%mem.PGSIZE != 0 ||
			util.Roundup(addr+length, mem.PGSIZE) > mem.KERNBASE {
			return defs.MAP_FAILED
		}
	}
	var fops fdops.Fdops_i
	if !isanon {
		fops = f.Fops
	}
	va, err := p.Vm.Mmap(addr, fops, length, offset, flags, prot2perms(prot))
	if err != 0 {
		return defs.MAP_FAILED
	}
	return va
}

/// Sys_munmap removes length bytes of the region based at addr from
/// p's address space. Returns 0, or -1 when no region has that base
/// or the writeback fails.
func Sys_munmap(p *proc.Proc_t, addr, length int) int {
	if length <= 0 {
		return -1
	}
	if err := p.Vm.Unmap(addr, length); err != 0 {
		return -1
	}
	return 0
}

/// Sys_pgfault is the trap handler's entry: it reports whether the
/// fault at va was resolved by the mapping subsystem.
func Sys_pgfault(p *proc.Proc_t, va int, iswrite bool) defs.Err_t {
	return p.Vm.Pgfault(va, iswrite)
}
