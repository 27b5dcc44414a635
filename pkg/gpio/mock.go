// SPDX-License-Identifier: MIT

package gpio

import "sync"

// MockPort is an in-memory Port for tests and dry runs. Waveforms sent
// through it are recorded; serial reads drain scripted data queued with
// QueueSerialData.
type MockPort struct {
	mu sync.Mutex

	modes    map[int]int
	levels   map[int]int
	readOpen map[int]bool
	inverted map[int]bool
	readData map[int][][]byte

	pending []Pulse
	waves   map[int][]Pulse
	nextID  int

	// Sent collects every waveform played, in order.
	Sent [][]Pulse

	// BusyPolls makes WaveBusy report true this many times before the
	// current wave is considered finished.
	BusyPolls int
	busyLeft  int
}

// NewMockPort creates an idle mock.
func NewMockPort() *MockPort {
	return &MockPort{
		modes:    make(map[int]int),
		levels:   make(map[int]int),
		readOpen: make(map[int]bool),
		inverted: make(map[int]bool),
		readData: make(map[int][][]byte),
		waves:    make(map[int][]Pulse),
	}
}

// QueueSerialData schedules bytes to be returned by the next SerialRead
// poll on a pin. Each call becomes one poll's worth of data.
func (m *MockPort) QueueSerialData(pin int, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readData[pin] = append(m.readData[pin], append([]byte(nil), data...))
}

// Level returns the last level written to a pin.
func (m *MockPort) Level(pin int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[pin]
}

func (m *MockPort) SetMode(pin, mode int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modes[pin] = mode
	return nil
}

func (m *MockPort) Write(pin, level int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels[pin] = level
	return nil
}

func (m *MockPort) SerialReadOpen(pin, baud, dataBits int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readOpen[pin] = true
	return nil
}

func (m *MockPort) SerialReadInvert(pin int, inverted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inverted[pin] = inverted
	return nil
}

func (m *MockPort) SerialRead(pin int, buf []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	queue := m.readData[pin]
	if len(queue) == 0 {
		return 0, nil
	}
	n := copy(buf, queue[0])
	if n < len(queue[0]) {
		m.readData[pin][0] = queue[0][n:]
	} else {
		m.readData[pin] = queue[1:]
	}
	return n, nil
}

func (m *MockPort) SerialReadClose(pin int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readOpen[pin] = false
	return nil
}

func (m *MockPort) WaveClear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = nil
	m.waves = make(map[int][]Pulse)
	return nil
}

func (m *MockPort) WaveAddGeneric(pulses []Pulse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, pulses...)
	return nil
}

func (m *MockPort) WaveCreate() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.waves[id] = m.pending
	m.pending = nil
	return id, nil
}

func (m *MockPort) WaveSendOnce(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, m.waves[id])
	m.busyLeft = m.BusyPolls
	return nil
}

func (m *MockPort) WaveBusy() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busyLeft > 0 {
		m.busyLeft--
		return true, nil
	}
	return false, nil
}

func (m *MockPort) WaveDelete(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.waves, id)
	return nil
}

func (m *MockPort) Close() error {
	return nil
}
