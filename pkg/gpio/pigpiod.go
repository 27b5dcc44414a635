// SPDX-License-Identifier: MIT

package gpio

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
)

// DefaultDaemonAddr is where a stock pigpiod listens.
const DefaultDaemonAddr = "localhost:8888"

// pigpiod socket command codes (from the pigpio socket interface).
const (
	cmdModes = 0
	cmdWrite = 4
	cmdWvClr = 27
	cmdWvAG  = 28
	cmdWvBsy = 32
	cmdSlrO  = 42
	cmdSlr   = 43
	cmdSlrC  = 44
	cmdWvCre = 49
	cmdWvDel = 50
	cmdWvTx  = 51
	cmdSlrI  = 94
)

// DaemonPort implements Port over the pigpiod TCP socket protocol.
// Every request is four little-endian uint32 words (command, p1, p2,
// extension length) optionally followed by extension bytes; the reply
// echoes the first three words and carries the result in the fourth.
type DaemonPort struct {
	mu   sync.Mutex
	conn net.Conn
}

// Dial connects to a pigpiod daemon. Pass "" for the default address.
func Dial(addr string) (*DaemonPort, error) {
	if addr == "" {
		addr = DefaultDaemonAddr
	}
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("pigpiod at %s: %w", addr, err)
	}
	return &DaemonPort{conn: conn}, nil
}

// command runs one request/reply exchange. The socket carries one
// exchange at a time, so the connection is mutex-guarded.
func (p *DaemonPort) command(cmd, p1, p2 uint32, ext []byte) (int32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.commandLocked(cmd, p1, p2, ext)
}

func (p *DaemonPort) commandLocked(cmd, p1, p2 uint32, ext []byte) (int32, error) {
	req := make([]byte, 16, 16+len(ext))
	binary.LittleEndian.PutUint32(req[0:], cmd)
	binary.LittleEndian.PutUint32(req[4:], p1)
	binary.LittleEndian.PutUint32(req[8:], p2)
	binary.LittleEndian.PutUint32(req[12:], uint32(len(ext)))
	req = append(req, ext...)

	if _, err := p.conn.Write(req); err != nil {
		return 0, fmt.Errorf("pigpiod write: %w", err)
	}

	var resp [16]byte
	if _, err := io.ReadFull(p.conn, resp[:]); err != nil {
		return 0, fmt.Errorf("pigpiod read: %w", err)
	}
	res := int32(binary.LittleEndian.Uint32(resp[12:]))
	if res < 0 {
		return res, fmt.Errorf("pigpiod command %d failed: status %d", cmd, res)
	}
	return res, nil
}

func (p *DaemonPort) SetMode(pin, mode int) error {
	_, err := p.command(cmdModes, uint32(pin), uint32(mode), nil)
	return err
}

func (p *DaemonPort) Write(pin, level int) error {
	_, err := p.command(cmdWrite, uint32(pin), uint32(level), nil)
	return err
}

func (p *DaemonPort) SerialReadOpen(pin, baud, dataBits int) error {
	var ext [4]byte
	binary.LittleEndian.PutUint32(ext[:], uint32(dataBits))
	_, err := p.command(cmdSlrO, uint32(pin), uint32(baud), ext[:])
	return err
}

func (p *DaemonPort) SerialReadInvert(pin int, inverted bool) error {
	level := uint32(0)
	if inverted {
		level = 1
	}
	_, err := p.command(cmdSlrI, uint32(pin), level, nil)
	return err
}

func (p *DaemonPort) SerialRead(pin int, buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	count, err := p.commandLocked(cmdSlr, uint32(pin), uint32(len(buf)), nil)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}
	// The reply is followed by count data bytes.
	return io.ReadFull(p.conn, buf[:count])
}

func (p *DaemonPort) SerialReadClose(pin int) error {
	_, err := p.command(cmdSlrC, uint32(pin), 0, nil)
	return err
}

func (p *DaemonPort) WaveClear() error {
	_, err := p.command(cmdWvClr, 0, 0, nil)
	return err
}

func (p *DaemonPort) WaveAddGeneric(pulses []Pulse) error {
	ext := make([]byte, 0, len(pulses)*12)
	var word [4]byte
	for _, pulse := range pulses {
		binary.LittleEndian.PutUint32(word[:], pulse.On)
		ext = append(ext, word[:]...)
		binary.LittleEndian.PutUint32(word[:], pulse.Off)
		ext = append(ext, word[:]...)
		binary.LittleEndian.PutUint32(word[:], pulse.DelayUs)
		ext = append(ext, word[:]...)
	}
	_, err := p.command(cmdWvAG, 0, 0, ext)
	return err
}

func (p *DaemonPort) WaveCreate() (int, error) {
	id, err := p.command(cmdWvCre, 0, 0, nil)
	return int(id), err
}

func (p *DaemonPort) WaveSendOnce(id int) error {
	_, err := p.command(cmdWvTx, uint32(id), 0, nil)
	return err
}

func (p *DaemonPort) WaveBusy() (bool, error) {
	busy, err := p.command(cmdWvBsy, 0, 0, nil)
	return busy != 0, err
}

func (p *DaemonPort) WaveDelete(id int) error {
	_, err := p.command(cmdWvDel, uint32(id), 0, nil)
	return err
}

func (p *DaemonPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.Close()
}
