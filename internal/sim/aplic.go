// Package sim provides register-accurate models of the APLIC and IMSIC,
// implementing regio.Accessor. Tests and the demo binary drive the real
// controller code against these instead of physical hardware.
package sim

import (
	"sync"

	"github.com/tinyrange/aia/internal/regio"
)

// APLIC register map, mirroring the driver's view of the domain.
const (
	aplicDomainCfg     = 0x0000
	aplicSourceCfgBase = 0x0004
	aplicMSICfgAddr    = 0x1BC0
	aplicMSICfgAddrH   = 0x1BC4
	aplicSetIPBase     = 0x1C00
	aplicClrIPBase     = 0x1D00
	aplicSetIEBase     = 0x1E00
	aplicClrIEBase     = 0x1F00
	aplicTargetBase    = 0x3000
	aplicIDCBase       = 0x4000

	aplicIDCStride = 0x20

	idcIDelivery  = 0x00
	idcIForce     = 0x04
	idcIThreshold = 0x08
	idcTopI       = 0x18
	idcClaimI     = 0x1C

	domainCfgDM = 1 << 2
	domainCfgIE = 1 << 8

	smMask     = 0x7
	smInactive = 0x0
	smDetached = 0x1

	cfgDelegate = 1 << 10
	cfgPrioShl  = 8
	cfgPrioMask = 0xFF

	tgtHartMask = 0x3FFF
	tgtIE       = 1 << 31

	topiIDShl = 16
)

type idcState struct {
	delivery  uint32
	threshold uint32
	inService uint32
}

// APLIC models one interrupt domain. Claim resolution picks the
// highest-priority active, pending and enabled source above the claiming
// hart's threshold, ties broken by lowest id, exactly as the hardware
// arbitration tree does. Delegated sources never reach the claim path;
// forwarding them as MSIs is the responsibility of the layer above.
type APLIC struct {
	mu sync.Mutex

	numSources uint32
	numHarts   uint32

	domainCfg uint32
	sourceCfg []uint32
	target    []uint32
	pending   []uint32
	enable    []uint32

	msiCfgAddr  uint32
	msiCfgAddrH uint32

	idcs []idcState
}

// NewAPLIC builds a domain model with the given source and hart counts.
func NewAPLIC(numSources, numHarts uint32) *APLIC {
	words := (numSources + 31) / 32
	return &APLIC{
		numSources: numSources,
		numHarts:   numHarts,
		sourceCfg:  make([]uint32, numSources),
		target:     make([]uint32, numSources),
		pending:    make([]uint32, words),
		enable:     make([]uint32, words),
		idcs:       make([]idcState, numHarts),
	}
}

// Read32 implements regio.Accessor.
func (a *APLIC) Read32(off uint64) uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case off == aplicDomainCfg:
		// Implementation id byte reads back 0x80.
		return 0x80000000 | a.domainCfg

	case off >= aplicSourceCfgBase && off < aplicMSICfgAddr:
		id := uint32((off - aplicSourceCfgBase) / 4)
		if id >= 1 && id < a.numSources {
			return a.sourceCfg[id]
		}

	case off == aplicMSICfgAddr:
		return a.msiCfgAddr
	case off == aplicMSICfgAddrH:
		return a.msiCfgAddrH

	case off >= aplicSetIPBase && off < aplicClrIPBase:
		w := (off - aplicSetIPBase) / 4
		if w < uint64(len(a.pending)) {
			return a.pending[w]
		}

	case off >= aplicSetIEBase && off < aplicClrIEBase:
		// SETIENUM is write-only when the domain is in MSI mode.
		if a.domainCfg&domainCfgDM != 0 {
			return 0
		}
		w := (off - aplicSetIEBase) / 4
		if w < uint64(len(a.enable)) {
			return a.enable[w]
		}

	case off >= aplicTargetBase && off < aplicIDCBase:
		id := uint32((off-aplicTargetBase)/4) + 1
		if id < a.numSources {
			return a.target[id]
		}

	case off >= aplicIDCBase:
		rel := off - aplicIDCBase
		hart := uint32(rel / aplicIDCStride)
		if hart >= a.numHarts {
			return 0
		}
		switch rel % aplicIDCStride {
		case idcIDelivery:
			return a.idcs[hart].delivery
		case idcIThreshold:
			return a.idcs[hart].threshold
		case idcTopI:
			return a.resolveTop(hart)
		case idcClaimI:
			return a.claim(hart)
		}
	}

	return 0
}

// Write32 implements regio.Accessor.
func (a *APLIC) Write32(off uint64, v uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case off == aplicDomainCfg:
		a.domainCfg = v & (domainCfgIE | domainCfgDM | 1)

	case off >= aplicSourceCfgBase && off < aplicMSICfgAddr:
		id := uint32((off - aplicSourceCfgBase) / 4)
		if id >= 1 && id < a.numSources {
			a.sourceCfg[id] = v
		}

	case off == aplicMSICfgAddr:
		a.msiCfgAddr = v
	case off == aplicMSICfgAddrH:
		a.msiCfgAddrH = v

	case off >= aplicSetIPBase && off < aplicClrIPBase:
		w := (off - aplicSetIPBase) / 4
		if w < uint64(len(a.pending)) {
			a.pending[w] |= v
		}

	case off >= aplicClrIPBase && off < aplicSetIEBase:
		w := (off - aplicClrIPBase) / 4
		if w < uint64(len(a.pending)) {
			a.pending[w] &^= v
		}

	case off >= aplicSetIEBase && off < aplicClrIEBase:
		if a.domainCfg&domainCfgDM != 0 {
			// SETIENUM pulse: the value is a source id.
			if v >= 1 && v < a.numSources {
				a.enable[v/32] |= 1 << (v % 32)
			}
			return
		}
		w := (off - aplicSetIEBase) / 4
		if w < uint64(len(a.enable)) {
			a.enable[w] |= v
		}

	case off >= aplicClrIEBase && off < 0x2000:
		if a.domainCfg&domainCfgDM != 0 {
			if v >= 1 && v < a.numSources {
				a.enable[v/32] &^= 1 << (v % 32)
			}
			return
		}
		w := (off - aplicClrIEBase) / 4
		if w < uint64(len(a.enable)) {
			a.enable[w] &^= v
		}

	case off >= aplicTargetBase && off < aplicIDCBase:
		id := uint32((off-aplicTargetBase)/4) + 1
		if id < a.numSources {
			a.target[id] = v
		}

	case off >= aplicIDCBase:
		rel := off - aplicIDCBase
		hart := uint32(rel / aplicIDCStride)
		if hart >= a.numHarts {
			return
		}
		switch rel % aplicIDCStride {
		case idcIDelivery:
			a.idcs[hart].delivery = v & 1
		case idcIForce:
			// Spurious assertion; there is no latched state to model.
		case idcIThreshold:
			a.idcs[hart].threshold = v & cfgPrioMask
		case idcClaimI:
			a.complete(hart, v)
		}
	}
}

// resolveTop returns the TOPI encoding of the best claimable source for a
// hart, or 0 when nothing qualifies. Callers hold the lock.
func (a *APLIC) resolveTop(hart uint32) uint32 {
	if a.domainCfg&domainCfgIE == 0 || a.domainCfg&domainCfgDM != 0 {
		return 0
	}
	if a.idcs[hart].delivery == 0 {
		return 0
	}

	var bestID, bestPrio uint32
	for id := uint32(1); id < a.numSources; id++ {
		if a.pending[id/32]&(1<<(id%32)) == 0 {
			continue
		}
		if a.enable[id/32]&(1<<(id%32)) == 0 {
			continue
		}

		cfg := a.sourceCfg[id]
		sm := cfg & smMask
		if sm == smInactive || sm == smDetached || cfg&cfgDelegate != 0 {
			continue
		}

		tgt := a.target[id]
		if tgt&tgtIE == 0 || tgt&tgtHartMask != hart {
			continue
		}

		prio := (cfg >> cfgPrioShl) & cfgPrioMask
		if prio <= a.idcs[hart].threshold {
			continue
		}
		if prio > bestPrio {
			bestPrio = prio
			bestID = id
		}
	}

	if bestID == 0 {
		return 0
	}
	return bestID<<topiIDShl | bestPrio
}

// claim resolves the top source, clears its pending bit and marks it in
// service on the hart. Callers hold the lock.
func (a *APLIC) claim(hart uint32) uint32 {
	topi := a.resolveTop(hart)
	if topi == 0 {
		return 0
	}
	id := topi >> topiIDShl
	a.pending[id/32] &^= 1 << (id % 32)
	a.idcs[hart].inService = id
	return topi
}

func (a *APLIC) complete(hart, id uint32) {
	if a.idcs[hart].inService == id {
		a.idcs[hart].inService = 0
	}
}

// InService reports the source a hart claimed and has not yet completed.
func (a *APLIC) InService(hart uint32) uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if hart >= a.numHarts {
		return 0
	}
	return a.idcs[hart].inService
}

var _ regio.Accessor = (*APLIC)(nil)
