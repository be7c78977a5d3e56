package object

import (
	"bytes"
	"fmt"
)

// wireMagic and wireVersion identify the on-disk object format. A
// mismatched magic is a fatal read error; a mismatched version issues a
// Warning and proceeds.
const (
	wireMagic   uint64 = 0x3A6863FC6173371B
	wireVersion int    = 4
)

// Warning is returned alongside a successfully-read ObjectFile when the
// on-disk version differs from wireVersion.
type Warning struct {
	Message string
}

func (w *Warning) Error() string { return w.Message }

// byteWriter accumulates a little-endian object-file image byte by byte.
type byteWriter struct {
	buf bytes.Buffer
}

func (w *byteWriter) u8(v uint8) { w.buf.WriteByte(v) }

func (w *byteWriter) u16(v uint16) {
	w.buf.WriteByte(byte(v))
	w.buf.WriteByte(byte(v >> 8))
}

func (w *byteWriter) u32(v uint32) {
	w.buf.WriteByte(byte(v))
	w.buf.WriteByte(byte(v >> 8))
	w.buf.WriteByte(byte(v >> 16))
	w.buf.WriteByte(byte(v >> 24))
}

func (w *byteWriter) u64(v uint64) {
	for i := 0; i < 8; i++ {
		w.buf.WriteByte(byte(v >> (8 * uint(i))))
	}
}

// intN writes the low n bytes (n in {1,2,4,8}) of a signed value,
// little-endian, as used for sized instruction constants.
func (w *byteWriter) intN(v int64, n int) {
	for i := 0; i < n; i++ {
		w.buf.WriteByte(byte(v >> (8 * uint(i))))
	}
}

func (w *byteWriter) cstring(s string) {
	w.buf.WriteString(s)
	w.buf.WriteByte(0)
}

func (w *byteWriter) Bytes() []byte { return w.buf.Bytes() }

// Write encodes the object file to the on-disk wire format. It refuses to
// emit any section that is simultaneously in code mode and binary mode.
func Write(f *ObjectFile) ([]byte, error) {
	names := f.Order
	if len(names) != len(f.Sections) {
		// Defensive: Order and Sections must always agree; fall back to a
		// deterministic name sort if a caller built Sections by hand.
		names = make([]string, 0, len(f.Sections))
		for name := range f.Sections {
			names = append(names, name)
		}
		sortStrings(names)
	}

	w := &byteWriter{}
	w.u64(wireMagic)
	w.u64(uint64(len(names)))
	w.u32(uint32(wireVersion))

	for _, name := range names {
		sec := f.Sections[name]
		if sec.IsCodeMode() && sec.IsBinaryMode() {
			return nil, fmt.Errorf("section %q has both instructions and binary units", name)
		}

		w.u64(uint64(len(sec.Instructions)))
		w.u64(uint64(len(sec.Labels)))
		w.u64(uint64(len(sec.BinaryUnits)))
		w.cstring(sec.Name)

		for _, l := range sec.Labels {
			w.u64(uint64(l.Ptr))
			w.cstring(l.Name)
		}

		for _, inst := range sec.Instructions {
			w.u16(inst.Opcode)
			w.u8(uint8(len(inst.References)))
			w.u8(uint8(len(inst.Constants)))
			for _, ref := range inst.References {
				w.u8(uint8(ref.ArgPos))
				w.cstring(ref.Symbol)
			}
			for _, c := range inst.Constants {
				w.u8(uint8(c.ArgPos))
				w.u8(uint8(c.Size))
				w.intN(c.Value, int(c.Size))
			}
		}

		for _, bu := range sec.BinaryUnits {
			if bu.IsReference {
				w.u8(1)
				w.u8(uint8(bu.Size))
				w.cstring(bu.Symbol)
			} else {
				w.u8(0)
				w.u8(uint8(bu.Size))
				w.intN(bu.Value, 8)
			}
		}
	}

	return w.Bytes(), nil
}

// sortStrings is a tiny insertion sort to avoid pulling in "sort" for a
// handful of section names in the defensive fallback path above.
func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
