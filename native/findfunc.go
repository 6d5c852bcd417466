package native

import _ "unsafe"

// The types below mirror the runtime's function table. Only the leading
// fields that codeOf reads are declared; the layout must match the runtime
// up to the last declared field.

type funcInfo struct {
	*_func
	datap *moduledata
}

type _func struct {
	entryOff uint32
	nameOff  int32
}

type moduledata struct {
	pcHeader     *pcHeader
	funcnametab  []byte
	cutab        []uint32
	filetab      []byte
	pctab        []byte
	pclntable    []byte
	ftab         []functab
	findfunctab  uintptr
	minpc, maxpc uintptr

	text, etext uintptr
}

type pcHeader struct {
	magic uint32
}

type functab struct {
	entryoff uint32 // relative to moduledata.text
	funcoff  uint32
}

//go:linkname findfunc runtime.findfunc
func findfunc(pc uintptr) funcInfo
