package host

import (
	"fmt"
	"os"

	"github.com/liangcheng-yu/hyperlight/internal/sharedmem"
)

// layout carves the flat mapping into its regions. Every region starts on
// a page boundary; the PEB sits in the first page after the code header.
//
//	[code header][PEB][host functions][host exception][guest error]
//	[panic context][input][output][heap]
func (s *Sandbox) layout() error {
	page := uint64(os.Getpagesize())
	align := func(n uint64) uint64 {
		if n == 0 {
			n = page
		}
		return (n + page - 1) &^ (page - 1)
	}

	codeOff := uint64(0)
	pebOff := codeOff + page
	hostFuncOff := pebOff + page
	hostExcOff := hostFuncOff + align(s.cfg.HostFunctionsSize)
	guestErrOff := hostExcOff + align(s.cfg.HostExceptionSize)
	panicOff := guestErrOff + align(s.cfg.GuestErrorSize)
	inputOff := panicOff + align(s.cfg.PanicContextSize)
	outputOff := inputOff + align(s.cfg.InputSize)
	heapOff := outputOff + align(s.cfg.OutputSize)
	total := heapOff + align(s.cfg.HeapSize)

	buf, release, err := allocRegion(int(total))
	if err != nil {
		return fmt.Errorf("allocate %d bytes: %w", total, err)
	}
	s.mem = sharedmem.NewMapping(buf)
	s.release = release

	peb, err := sharedmem.OpenPEB(s.mem, pebOff)
	if err != nil {
		return err
	}
	s.peb = peb

	peb.SetCodePtr(codeOff)
	peb.SetHostFunctions(hostFuncOff, align(s.cfg.HostFunctionsSize))
	peb.SetHostException(hostExcOff, align(s.cfg.HostExceptionSize))
	peb.SetGuestError(guestErrOff, align(s.cfg.GuestErrorSize))
	peb.SetPanicContext(panicOff, align(s.cfg.PanicContextSize))
	peb.SetInput(inputOff, align(s.cfg.InputSize))
	peb.SetOutput(outputOff, align(s.cfg.OutputSize))
	peb.SetHeap(heapOff, align(s.cfg.HeapSize))
	// The guest has no real stack region in-process; the heap top doubles
	// as the lowest permitted stack address.
	peb.SetMinStackAddr(total)

	// Nonzero marks in-process hosting; the guest routes OUTB through the
	// surface instead of port I/O.
	peb.SetOutbPtr(1)
	peb.SetOutbContext(0)

	codeWin, err := s.mem.Window(codeOff, sharedmem.CodeHeaderBytes)
	if err != nil {
		return err
	}
	sharedmem.WriteCodeHeader(codeWin)

	inWin, err := peb.InputWindow()
	if err != nil {
		return err
	}
	if s.in, err = sharedmem.OpenStack(inWin); err != nil {
		return err
	}
	s.in.Reset()
	outWin, err := peb.OutputWindow()
	if err != nil {
		return err
	}
	if s.out, err = sharedmem.OpenStack(outWin); err != nil {
		return err
	}
	s.out.Reset()
	return nil
}
