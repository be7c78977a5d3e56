package isa

// Condition codes are u8 values: positive flags occupy 0-3, their
// inversions 32-35, status-register flags 64-66, and their inversions
// 96-98.
var conditions = map[string]uint8{
	// Math flags
	"OV": 0,
	"CR": 1,
	"NG": 2,
	"ZR": 3,

	"NV": 0 + 32,
	"NC": 1 + 32,
	"NN": 2 + 32,
	"NZ": 3 + 32,

	// Status register flags
	"ILF": 64,
	"HLF": 65,
	"IDF": 66,

	"NILF": 64 + 32,
	"NHLF": 65 + 32,
	"NIDF": 66 + 32,
}

// LookupCondition resolves a condition mnemonic to its encoded code.
func LookupCondition(name string) (uint8, bool) {
	code, ok := conditions[name]
	return code, ok
}
