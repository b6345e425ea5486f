//go:build nrf52840

package nrf52

import (
	"device/nrf"
	"unsafe"

	"github.com/davidlenfesty/embassy/critical"
	"github.com/davidlenfesty/embassy/flash"
)

// nRF52840 flash geometry.
const (
	nvmcSize = 1024 * 1024
	nvmcPage = 4096
	nvmcUnit = 4
)

// NVMC is the on-chip flash controller.
var NVMC = &NVMCPort{locked: true}

// NVMCPort adapts the non-volatile memory controller to the
// flash.Controller contract. The silicon gates writes through CONFIG
// alone, so the key-sequence interlock is implemented here: CONFIG
// only ever leaves read-only mode after the unlock keys.
//
// Program and erase are synchronous on this controller (the CPU stalls
// on flash busy), so the completion event fires from the calling
// context once READY reports done.
type NVMCPort struct {
	locked  bool
	keyed   bool
	handler func(ev uint32)
}

var _ flash.Controller = (*NVMCPort)(nil)

// NewFlash returns the async flash driver over the NVMC.
func NewFlash() *flash.Flash { return flash.New(NVMC) }

// Size is the array size in bytes.
func (n *NVMCPort) Size() uint32 { return nvmcSize }

// PageSize is the erase granule.
func (n *NVMCPort) PageSize() uint32 { return nvmcPage }

// WriteUnit is the programming granule.
func (n *NVMCPort) WriteUnit() uint32 { return nvmcUnit }

// Locked reports whether program and erase are disabled.
func (n *NVMCPort) Locked() bool {
	var l bool
	critical.Do(func() { l = n.locked })
	return l
}

// Key feeds one word of the unlock sequence.
func (n *NVMCPort) Key(v uint32) {
	critical.Do(func() {
		switch {
		case !n.keyed && v == 0x45670123:
			n.keyed = true
		case n.keyed && v == 0xCDEF89AB:
			n.locked = false
			n.keyed = false
		default:
			n.keyed = false
		}
	})
}

// Lock re-engages write protection.
func (n *NVMCPort) Lock() {
	critical.Do(func() {
		n.locked = true
		n.keyed = false
	})
}

// Read copies from the memory-mapped array.
func (n *NVMCPort) Read(off uint32, p []byte) {
	src := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(off))), len(p))
	copy(p, src)
}

// Program writes one word-aligned unit.
func (n *NVMCPort) Program(off uint32, p []byte) {
	if n.Locked() || len(p) != nvmcUnit {
		n.finish(flash.EvSeq)
		return
	}
	nrf.NVMC.CONFIG.Set(nrf.NVMC_CONFIG_WEN_Wen)
	word := uint32(p[0]) | uint32(p[1])<<8 | uint32(p[2])<<16 | uint32(p[3])<<24
	dst := (*uint32)(unsafe.Pointer(uintptr(off)))
	old := *dst
	*dst = word
	for nrf.NVMC.READY.Get() == 0 {
	}
	nrf.NVMC.CONFIG.Set(nrf.NVMC_CONFIG_WEN_Ren)
	// NOR programming only clears bits; verify like the driver expects.
	if old&word != word {
		n.finish(flash.EvProg)
		return
	}
	n.finish(flash.EvDone)
}

// ErasePage blanks the page at off.
func (n *NVMCPort) ErasePage(off uint32) {
	if n.Locked() {
		n.finish(flash.EvProtected)
		return
	}
	nrf.NVMC.CONFIG.Set(nrf.NVMC_CONFIG_WEN_Een)
	nrf.NVMC.ERASEPAGE.Set(off)
	for nrf.NVMC.READY.Get() == 0 {
	}
	nrf.NVMC.CONFIG.Set(nrf.NVMC_CONFIG_WEN_Ren)
	n.finish(flash.EvDone)
}

// SetHandler installs the event consumer.
func (n *NVMCPort) SetHandler(h func(ev uint32)) {
	critical.Do(func() { n.handler = h })
}

func (n *NVMCPort) finish(ev uint32) {
	var h func(uint32)
	critical.Do(func() { h = n.handler })
	if h != nil {
		h(ev)
	}
}
