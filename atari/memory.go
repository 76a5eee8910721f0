package atari

import (
	"fmt"

	"github.com/golang/glog"
)

// MemoryBus decodes the full 16-bit address space.
// Memory map
// 0x0000 - 0x3FFF	RAM low (stack page at 0x0100)
// 0x4000 - 0x7FFF	RAM mid
// 0x8000 - 0x9FFF	Cartridge-class window (plain RAM in this core)
// 0xA000 - 0xBFFF	BASIC ROM window (bank-switchable)
// 0xC000 - 0xCFFF	OS ROM low (part of the OS window)
// 0xD000 - 0xD7FF	I/O pages: GTIA, reserved, POKEY, PIA, ANTIC, reserved x3
// 0xD800 - 0xFFFF	OS ROM high (part of the OS window)
//
// Every address decodes to something; there is no invalid address and the
// data path never returns an error. ROM windows overlay RAM: while a window
// is enabled reads come from ROM and writes are dropped without touching the
// RAM underneath, so bytes written while the window is disabled reappear the
// next time it is disabled.

const (
	osROMSize    = 0x4000 // 16K image covering 0xC000-0xFFFF, I/O hole unused
	basicROMSize = 0x2000 // 8K image covering 0xA000-0xBFFF

	basicBase = 0xA000
	osBase    = 0xC000
	ioBase    = 0xD000
	ioLast    = 0xD7FF
)

// PageHandler is a chip owning one 256-byte I/O page. The bus forwards the
// raw page offset; the owner masks down to its significant bits (5 for GTIA,
// 4 for POKEY and ANTIC), which is what makes register mirroring work.
type PageHandler interface {
	ReadRegister(offset uint16) byte
	WriteRegister(offset uint16, data byte)
}

type MemoryBus struct {
	ram      [0x10000]byte
	osROM    [osROMSize]byte
	basicROM [basicROMSize]byte

	osEnabled    bool
	basicEnabled bool

	// One slot per 256-byte page in 0xD000-0xD7FF. Unclaimed pages float:
	// reads return 0xFF, writes are dropped.
	handlers [8]PageHandler
}

// NewMemoryBus creates a bus with both ROM windows disabled, so the whole
// 64K reads as RAM until images are loaded.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

// LoadOS installs a 16K OS image and enables the OS window.
func (b *MemoryBus) LoadOS(data []byte) error {
	if len(data) != osROMSize {
		return fmt.Errorf("OS ROM image must be %d bytes, got %d", osROMSize, len(data))
	}
	copy(b.osROM[:], data)
	b.osEnabled = true
	return nil
}

// LoadBASIC installs an 8K BASIC image and enables the BASIC window.
func (b *MemoryBus) LoadBASIC(data []byte) error {
	if len(data) != basicROMSize {
		return fmt.Errorf("BASIC ROM image must be %d bytes, got %d", basicROMSize, len(data))
	}
	copy(b.basicROM[:], data)
	b.basicEnabled = true
	return nil
}

// SetOSEnabled toggles the OS ROM window. Toggling never mutates RAM or ROM.
func (b *MemoryBus) SetOSEnabled(enabled bool) {
	b.osEnabled = enabled
}

// SetBASICEnabled toggles the BASIC ROM window.
func (b *MemoryBus) SetBASICEnabled(enabled bool) {
	b.basicEnabled = enabled
}

// RegisterPage attaches a handler to the 256-byte I/O page starting at base.
// The base must be one of 0xD000, 0xD100, ... 0xD700.
func (b *MemoryBus) RegisterPage(base uint16, h PageHandler) error {
	if base < ioBase || base > ioLast || base&0xFF != 0 {
		return fmt.Errorf("not an I/O page base: 0x%04x", base)
	}
	b.handlers[(base-ioBase)>>8] = h
	return nil
}

// Read reads a byte. Total over the full address range.
func (b *MemoryBus) Read(address uint16) byte {
	switch {
	case address < basicBase:
		return b.ram[address]
	case address < osBase:
		if b.basicEnabled {
			return b.basicROM[address-basicBase]
		}
		return b.ram[address]
	case address < ioBase:
		if b.osEnabled {
			return b.osROM[address-osBase]
		}
		return b.ram[address]
	case address <= ioLast:
		if h := b.handlers[(address-ioBase)>>8]; h != nil {
			return h.ReadRegister(address & 0xFF)
		}
		glog.V(1).Infof("Read from unclaimed I/O page: address=0x%04x", address)
		return 0xFF
	default:
		if b.osEnabled {
			return b.osROM[address-osBase]
		}
		return b.ram[address]
	}
}

// Write writes a byte. Writes into an enabled ROM window are discarded.
func (b *MemoryBus) Write(address uint16, data byte) {
	switch {
	case address < basicBase:
		b.ram[address] = data
	case address < osBase:
		if b.basicEnabled {
			return
		}
		b.ram[address] = data
	case address < ioBase:
		if b.osEnabled {
			return
		}
		b.ram[address] = data
	case address <= ioLast:
		if h := b.handlers[(address-ioBase)>>8]; h != nil {
			h.WriteRegister(address&0xFF, data)
			return
		}
		glog.V(1).Infof("Write to unclaimed I/O page: address=0x%04x, data=0x%02x", address, data)
	default:
		if b.osEnabled {
			return
		}
		b.ram[address] = data
	}
}

// read16 reads 2 bytes, little-endian.
func (b *MemoryBus) read16(address uint16) uint16 {
	l := b.Read(address)
	h := b.Read(address + 1)
	return uint16(h)<<8 | uint16(l)
}

// read16Wrap reads 2 bytes without carrying into the high address byte,
// reproducing the 6502 indirect fetch bug: a pointer at 0x10FF takes its
// high byte from 0x1000, not 0x1100.
func (b *MemoryBus) read16Wrap(address uint16) uint16 {
	l := b.Read(address)
	h := b.Read((address & 0xFF00) | uint16(byte(address)+1))
	return uint16(h)<<8 | uint16(l)
}
