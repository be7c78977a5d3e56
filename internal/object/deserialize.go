package object

import "fmt"

// byteReader walks a wire-format image byte by byte, bounds-checking
// every read.
type byteReader struct {
	data []byte
	pos  int
}

func (r *byteReader) remaining() int { return len(r.data) - r.pos }

func (r *byteReader) u8() (uint8, error) {
	if r.remaining() < 1 {
		return 0, fmt.Errorf("unexpected end of object file at byte %d", r.pos)
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *byteReader) u16() (uint16, error) {
	if r.remaining() < 2 {
		return 0, fmt.Errorf("unexpected end of object file at byte %d", r.pos)
	}
	v := uint16(r.data[r.pos]) | uint16(r.data[r.pos+1])<<8
	r.pos += 2
	return v, nil
}

func (r *byteReader) u32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, fmt.Errorf("unexpected end of object file at byte %d", r.pos)
	}
	v := uint32(r.data[r.pos]) | uint32(r.data[r.pos+1])<<8 |
		uint32(r.data[r.pos+2])<<16 | uint32(r.data[r.pos+3])<<24
	r.pos += 4
	return v, nil
}

func (r *byteReader) u64() (uint64, error) {
	if r.remaining() < 8 {
		return 0, fmt.Errorf("unexpected end of object file at byte %d", r.pos)
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(r.data[r.pos+i]) << (8 * uint(i))
	}
	r.pos += 8
	return v, nil
}

// intN reads n bytes (n in {1,2,4,8}) little-endian as a sign-extended
// value.
func (r *byteReader) intN(n int) (int64, error) {
	if r.remaining() < n {
		return 0, fmt.Errorf("unexpected end of object file at byte %d", r.pos)
	}
	var uv uint64
	for i := 0; i < n; i++ {
		uv |= uint64(r.data[r.pos+i]) << (8 * uint(i))
	}
	r.pos += n

	shift := uint(64 - 8*n)
	return int64(uv<<shift) >> shift, nil
}

func (r *byteReader) cstring() (string, error) {
	start := r.pos
	for r.pos < len(r.data) {
		if r.data[r.pos] == 0 {
			s := string(r.data[start:r.pos])
			r.pos++
			return s, nil
		}
		r.pos++
	}
	return "", fmt.Errorf("unterminated string starting at byte %d", start)
}

// Read decodes a wire-format object file image. A magic mismatch is a
// fatal error; a version mismatch is returned as a non-nil *Warning
// alongside a fully-populated ObjectFile.
func Read(data []byte) (*ObjectFile, error) {
	r := &byteReader{data: data}

	magic, err := r.u64()
	if err != nil {
		return nil, fmt.Errorf("reading object file header: %w", err)
	}
	if magic != wireMagic {
		return nil, fmt.Errorf("bad object file magic: got 0x%016X, want 0x%016X", magic, wireMagic)
	}

	sectionCount, err := r.u64()
	if err != nil {
		return nil, fmt.Errorf("reading section count: %w", err)
	}

	version, err := r.u32()
	if err != nil {
		return nil, fmt.Errorf("reading version: %w", err)
	}

	var warning error
	if int(version) != wireVersion {
		warning = &Warning{Message: fmt.Sprintf("object file version %d differs from supported version %d", version, wireVersion)}
	}

	f := NewObjectFile()
	f.Version = int(version)

	for i := uint64(0); i < sectionCount; i++ {
		instrCount, err := r.u64()
		if err != nil {
			return nil, fmt.Errorf("section %d: reading instruction count: %w", i, err)
		}
		labelCount, err := r.u64()
		if err != nil {
			return nil, fmt.Errorf("section %d: reading label count: %w", i, err)
		}
		binaryCount, err := r.u64()
		if err != nil {
			return nil, fmt.Errorf("section %d: reading binary unit count: %w", i, err)
		}
		name, err := r.cstring()
		if err != nil {
			return nil, fmt.Errorf("section %d: reading name: %w", i, err)
		}

		sec := NewSection(name)

		for l := uint64(0); l < labelCount; l++ {
			ptr, err := r.u64()
			if err != nil {
				return nil, fmt.Errorf("section %q: reading label %d ptr: %w", name, l, err)
			}
			labelName, err := r.cstring()
			if err != nil {
				return nil, fmt.Errorf("section %q: reading label %d name: %w", name, l, err)
			}
			sec.Labels = append(sec.Labels, Label{Name: labelName, Ptr: int(ptr)})
		}

		for ins := uint64(0); ins < instrCount; ins++ {
			opcode, err := r.u16()
			if err != nil {
				return nil, fmt.Errorf("section %q: reading instruction %d opcode: %w", name, ins, err)
			}
			refCount, err := r.u8()
			if err != nil {
				return nil, fmt.Errorf("section %q: reading instruction %d ref count: %w", name, ins, err)
			}
			constCount, err := r.u8()
			if err != nil {
				return nil, fmt.Errorf("section %q: reading instruction %d const count: %w", name, ins, err)
			}

			data := InstructionData{Opcode: opcode}

			seen := make(map[int]bool, int(refCount)+int(constCount))
			for rc := uint8(0); rc < refCount; rc++ {
				argPos, err := r.u8()
				if err != nil {
					return nil, fmt.Errorf("section %q: instruction %d: reading ref argpos: %w", name, ins, err)
				}
				symbol, err := r.cstring()
				if err != nil {
					return nil, fmt.Errorf("section %q: instruction %d: reading ref symbol: %w", name, ins, err)
				}
				data.References = append(data.References, Reference{ArgPos: int(argPos), Symbol: symbol})
				seen[int(argPos)] = true
			}
			for cc := uint8(0); cc < constCount; cc++ {
				argPos, err := r.u8()
				if err != nil {
					return nil, fmt.Errorf("section %q: instruction %d: reading const argpos: %w", name, ins, err)
				}
				size, err := r.u8()
				if err != nil {
					return nil, fmt.Errorf("section %q: instruction %d: reading const size: %w", name, ins, err)
				}
				value, err := r.intN(int(size))
				if err != nil {
					return nil, fmt.Errorf("section %q: instruction %d: reading const value: %w", name, ins, err)
				}
				if seen[int(argPos)] {
					return nil, fmt.Errorf("section %q: instruction %d: argument position %d has both a reference and a constant", name, ins, argPos)
				}
				data.Constants = append(data.Constants, Constant{ArgPos: int(argPos), Size: ConstSize(size), Value: value})
				seen[int(argPos)] = true
			}

			sec.Instructions = append(sec.Instructions, data)
		}

		for bu := uint64(0); bu < binaryCount; bu++ {
			tag, err := r.u8()
			if err != nil {
				return nil, fmt.Errorf("section %q: binary unit %d: reading tag: %w", name, bu, err)
			}
			size, err := r.u8()
			if err != nil {
				return nil, fmt.Errorf("section %q: binary unit %d: reading size: %w", name, bu, err)
			}
			switch tag {
			case 0:
				value, err := r.intN(8)
				if err != nil {
					return nil, fmt.Errorf("section %q: binary unit %d: reading value: %w", name, bu, err)
				}
				sec.BinaryUnits = append(sec.BinaryUnits, BinaryUnit{Size: ConstSize(size), Value: value})
			case 1:
				symbol, err := r.cstring()
				if err != nil {
					return nil, fmt.Errorf("section %q: binary unit %d: reading symbol: %w", name, bu, err)
				}
				sec.BinaryUnits = append(sec.BinaryUnits, BinaryUnit{Size: ConstSize(size), IsReference: true, Symbol: symbol})
			default:
				return nil, fmt.Errorf("section %q: binary unit %d: unknown tag %d", name, bu, tag)
			}
		}

		f.Sections[name] = sec
		f.Order = append(f.Order, name)
	}

	return f, warning
}
