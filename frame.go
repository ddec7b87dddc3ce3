package tcansim

import (
	"time"

	"github.com/brutella/can"
	log "github.com/sirupsen/logrus"
)

// Drive levels applied to CANH and CANL for an externally injected bit.
const (
	stimulusDominantCANH  = 3.5
	stimulusDominantCANL  = 1.5
	stimulusRecessiveCANH = 2.5
	stimulusRecessiveCANL = 2.5
)

// standardIDMask keeps the 11-bit base identifier of a frame.
const standardIDMask = 0x7ff

// FrameDriver serializes classical CAN frames into the differential bit
// pattern another node would put on the bus, and replays them onto the CANH
// and CANL pins bit by bit. Injected frames are what wakes a sleeping device
// through the bus wake-up pattern.
type FrameDriver struct {
	sim     *Simulator
	bitTime time.Duration
}

// NewFrameDriver creates a driver replaying frames at the given bitrate in
// bits per second.
func NewFrameDriver(sim *Simulator, bitrate uint32) *FrameDriver {
	return &FrameDriver{
		sim:     sim,
		bitTime: time.Duration(uint64(time.Second) / uint64(bitrate)),
	}
}

// BitTime returns the duration of a single bus bit.
func (d *FrameDriver) BitTime() time.Duration {
	return d.bitTime
}

// SendFrame replays one standard data frame onto the bus. The simulation
// advances by one bit time per transmitted bit.
func (d *FrameDriver) SendFrame(frame can.Frame) error {
	bits := encodeFrameBits(frame)
	log.Debugf("[FRAME] injecting id=0x%x dlc=%d, %d bits at %v/bit",
		frame.ID&standardIDMask, frame.Length, len(bits), d.bitTime)

	for _, dominant := range bits {
		if err := d.driveBit(dominant); err != nil {
			return err
		}
	}
	// Leave the bus released after the frame.
	return d.release()
}

// SendDominantPulse holds the bus dominant for the given duration and
// releases it again, the raw ingredient of a wake-up pattern.
func (d *FrameDriver) SendDominantPulse(duration time.Duration) error {
	if err := d.sim.SetPins([]PinValue{
		{Pin: PinCANH, State: PinAnalog, Voltage: stimulusDominantCANH},
		{Pin: PinCANL, State: PinAnalog, Voltage: stimulusDominantCANL},
	}); err != nil {
		return err
	}
	d.sim.Step(duration)
	return d.release()
}

// driveBit holds one bit level for a full bit time, one simulation tick per
// bit. The level is re-driven before every tick because the simulator
// re-biases the bus lines at the end of each step.
func (d *FrameDriver) driveBit(dominant bool) error {
	canh, canl := stimulusRecessiveCANH, stimulusRecessiveCANL
	if dominant {
		canh, canl = stimulusDominantCANH, stimulusDominantCANL
	}
	if err := d.sim.SetPins([]PinValue{
		{Pin: PinCANH, State: PinAnalog, Voltage: canh},
		{Pin: PinCANL, State: PinAnalog, Voltage: canl},
	}); err != nil {
		return err
	}
	d.sim.Step(d.bitTime)
	return nil
}

func (d *FrameDriver) release() error {
	return d.sim.SetPins([]PinValue{
		{Pin: PinCANH, State: PinHighImpedance, Voltage: 0},
		{Pin: PinCANL, State: PinHighImpedance, Voltage: 0},
	})
}

// encodeFrameBits serializes a standard data frame to bus bits, true being
// dominant. Stuffing covers start of frame through the CRC sequence, the
// trailer from the CRC delimiter on is fixed form. The ACK slot is driven
// dominant as a receiving node would.
func encodeFrameBits(frame can.Frame) []bool {
	length := int(frame.Length)
	if length > 8 {
		length = 8
	}

	// Arbitration and control fields, dominant = true.
	raw := make([]bool, 0, 100)
	raw = append(raw, true) // start of frame
	id := frame.ID & standardIDMask
	for shift := 10; shift >= 0; shift-- {
		raw = append(raw, id>>uint(shift)&1 == 0)
	}
	raw = append(raw, true, true, true) // RTR, IDE, r0 all dominant
	for shift := 3; shift >= 0; shift-- {
		raw = append(raw, uint(length)>>uint(shift)&1 == 0)
	}
	for i := 0; i < length; i++ {
		for shift := 7; shift >= 0; shift-- {
			raw = append(raw, frame.Data[i]>>uint(shift)&1 == 0)
		}
	}

	crc := crc15(raw)
	for shift := 14; shift >= 0; shift-- {
		raw = append(raw, crc>>uint(shift)&1 == 0)
	}

	bits := stuffBits(raw)

	bits = append(bits, false)       // CRC delimiter
	bits = append(bits, true, false) // ACK slot, ACK delimiter
	for i := 0; i < 7; i++ {         // end of frame
		bits = append(bits, false)
	}
	for i := 0; i < 3; i++ { // intermission
		bits = append(bits, false)
	}
	return bits
}

// stuffBits inserts a complementary bit after every run of five equal bits.
func stuffBits(bits []bool) []bool {
	stuffed := make([]bool, 0, len(bits)+len(bits)/5)
	run := 0
	var last bool
	for i, b := range bits {
		if i > 0 && b == last {
			run++
		} else {
			run = 1
		}
		stuffed = append(stuffed, b)
		last = b
		if run == 5 {
			stuffed = append(stuffed, !b)
			last = !b
			run = 1
		}
	}
	return stuffed
}

// crc15 computes the frame CRC with the classical CAN polynomial 0x4599
// over the logical bit values, dominant = 0.
func crc15(bits []bool) uint16 {
	var crc uint16
	for _, dominant := range bits {
		bit := uint16(0)
		if !dominant {
			bit = 1
		}
		crcNext := bit ^ crc>>14
		crc = crc << 1 & 0x7fff
		if crcNext != 0 {
			crc ^= 0x4599
		}
	}
	return crc
}
