package aplic

// Register offsets from the APLIC domain base, per the AIA memory map.
const (
	regDomainCfg     = 0x0000
	regSourceCfgBase = 0x0004
	regMSICfgAddr    = 0x1BC0
	regMSICfgAddrH   = 0x1BC4
	regSetIPBase     = 0x1C00
	regClrIPBase     = 0x1D00
	regSetIEBase     = 0x1E00 // enable bitmask (Direct) / SETIENUM pulse (MSI)
	regClrIEBase     = 0x1F00 // disable bitmask (Direct) / CLRIENUM pulse (MSI)
	regTargetBase    = 0x3000
	regIDCBase       = 0x4000
)

// Interrupt delivery control (IDC) block, one per hart at
// regIDCBase + hart*idcStride.
const (
	idcStride     = 0x20
	idcIDelivery  = 0x00
	idcIForce     = 0x04
	idcIThreshold = 0x08
	idcTopI       = 0x18
	idcClaimI     = 0x1C
)

// DOMAINCFG fields. Bits [31:24] read back 0x80 on a conforming
// implementation.
const (
	domainCfgBE = 1 << 0
	domainCfgDM = 1 << 2
	domainCfgIE = 1 << 8

	domainCfgIDMask  = 0xFF000000
	domainCfgIDValue = 0x80000000
)

// SOURCECFG fields. The priority field overlays the low bits of the
// child/EID index; which one is live depends on the delegate bit.
const (
	sourceCfgSMMask    = 0x7
	sourceCfgDelegate  = 1 << 10
	sourceCfgChildMask = 0x3FF800
	sourceCfgChildShl  = 11
	sourceCfgPrioMask  = 0xFF00
	sourceCfgPrioShl   = 8

	smInactive = 0x0
	smDetached = 0x1
)

// TARGET fields.
const (
	targetHartMask  = 0x3FFF
	targetGuestShl  = 14
	targetGuestMask = 0x3F
	targetPrioShl   = 20
	targetPrioMask  = 0xFF
	targetIE        = 1 << 31
)

// TOPI/CLAIMI encoding: source id in bits [25:16], priority in bits [7:0].
const (
	topiIDShl    = 16
	topiIDMask   = 0x3FF
	topiPrioMask = 0xFF
)

// MSICFGADDRH index-width packing.
const (
	msiCfgLHXWShl = 0  // hart index bits
	msiCfgHHXWShl = 4  // group index bits
	msiCfgLHXSShl = 8  // guest index bits
	msiCfgHHXSShl = 12 // group index shift
	msiCfgWMask   = 0xF
)

func sourceCfgOff(id uint32) uint64 {
	return regSourceCfgBase + uint64(id)*4
}

func targetOff(id uint32) uint64 {
	return regTargetBase + uint64(id-1)*4
}

func idcOff(hart uint32, reg uint64) uint64 {
	return regIDCBase + uint64(hart)*idcStride + reg
}

// wordOff returns the offset of the 32-bit word holding the bit for id
// within a bitmask register bank starting at base.
func wordOff(base uint64, id uint32) uint64 {
	return base + uint64(id/32)*4
}

func bitMask(id uint32) uint32 {
	return 1 << (id % 32)
}
