package tcansim

// Flag identifies one of the twelve status flags.
type Flag uint8

const (
	FlagPWRON Flag = iota
	FlagWAKERQ
	FlagWAKESR
	FlagUVSUP
	FlagUVCC
	FlagUVIO
	FlagCBF
	FlagTXDCLP
	FlagTXDDTO
	FlagTXDRXD
	FlagCANDOM
	FlagTSD
	flagCount = 12
)

func (f Flag) String() string {
	switch f {
	case FlagPWRON:
		return "PWRON"
	case FlagWAKERQ:
		return "WAKERQ"
	case FlagWAKESR:
		return "WAKESR"
	case FlagUVSUP:
		return "UVSUP"
	case FlagUVCC:
		return "UVCC"
	case FlagUVIO:
		return "UVIO"
	case FlagCBF:
		return "CBF"
	case FlagTXDCLP:
		return "TXDCLP"
	case FlagTXDDTO:
		return "TXDDTO"
	case FlagTXDRXD:
		return "TXDRXD"
	case FlagCANDOM:
		return "CANDOM"
	case FlagTSD:
		return "TSD"
	}
	return "UNKNOWN"
}

// FlagByName maps a flag name back to its value, for scenario files.
func FlagByName(name string) (Flag, bool) {
	for f := Flag(0); f < flagCount; f++ {
		if f.String() == name {
			return f, true
		}
	}
	return 0, false
}

// Flags is a full status flag readout.
type Flags struct {
	PWRON  bool
	WAKERQ bool
	WAKESR bool
	UVSUP  bool
	UVCC   bool
	UVIO   bool
	CBF    bool
	TXDCLP bool
	TXDDTO bool
	TXDRXD bool
	CANDOM bool
	TSD    bool
}

// Get returns a single flag from the readout.
func (f Flags) Get(flag Flag) bool {
	switch flag {
	case FlagPWRON:
		return f.PWRON
	case FlagWAKERQ:
		return f.WAKERQ
	case FlagWAKESR:
		return f.WAKESR
	case FlagUVSUP:
		return f.UVSUP
	case FlagUVCC:
		return f.UVCC
	case FlagUVIO:
		return f.UVIO
	case FlagCBF:
		return f.CBF
	case FlagTXDCLP:
		return f.TXDCLP
	case FlagTXDDTO:
		return f.TXDDTO
	case FlagTXDRXD:
		return f.TXDRXD
	case FlagCANDOM:
		return f.CANDOM
	case FlagTSD:
		return f.TSD
	}
	return false
}
