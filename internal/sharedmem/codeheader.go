package sharedmem

import "encoding/binary"

// CodeHeaderMagic is the marker the host writes at the start of the loaded
// guest image. The guest entry point refuses to run without it.
const CodeHeaderMagic uint32 = 0x31474c48 // "HLG1"

// CodeHeaderBytes is the size of the image header the guest inspects.
const CodeHeaderBytes = 4

// WriteCodeHeader stamps the image magic into a code window.
func WriteCodeHeader(win []byte) {
	binary.LittleEndian.PutUint32(win, CodeHeaderMagic)
}

// ValidCodeHeader reports whether a code window carries the image magic.
func ValidCodeHeader(win []byte) bool {
	return len(win) >= CodeHeaderBytes && binary.LittleEndian.Uint32(win) == CodeHeaderMagic
}
