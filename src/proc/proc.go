// Package proc holds the slice of process state the memory mapping
// subsystem needs: an address space and an identity. Scheduling and
// the rest of the process table live elsewhere.
package proc

import "scone/src/defs"
import "scone/src/vm"

/// Proc_t is a process as seen by the mmap subsystem.
type Proc_t struct {
	Pid int
	Vm  *vm.Vm_t
}

/// Mkproc creates a process with an empty address space.
func Mkproc(pid int) (*Proc_t, defs.Err_t) {
	as, err := vm.Mkvm()
	if err != 0 {
		return nil, err
	}
	return &Proc_t{Pid: pid, Vm: as}, 0
}

/// Fork creates a child whose regions duplicate this process's per the
/// shared/private semantics. A failed duplication tears the partial
/// child down before returning.
func (p *Proc_t) Fork(pid int) (*Proc_t, defs.Err_t) {
	child, err := Mkproc(pid)
	if err != 0 {
		return nil, err
	}
	if err := p.Vm.Vm_fork(child.Vm); err != 0 {
		child.Vm.Uvmfree()
		return nil, err
	}
	return child, 0
}

/// Exit releases every mapping and the address space itself.
func (p *Proc_t) Exit() {
	p.Vm.Uvmfree()
	p.Vm = nil
}
