package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brutella/can"
	log "github.com/sirupsen/logrus"

	"github.com/canlabs/tcansim"
)

var DEFAULT_CAN_INTERFACE = "can0"
var DEFAULT_BITRATE = 500000

// bridge forwards frames from a socketcan interface into the simulated
// transceiver, so the device model can be exercised against real bus
// traffic.
type bridge struct {
	sim    *tcansim.Simulator
	driver *tcansim.FrameDriver
	frames chan can.Frame
}

// Handle implements the brutella/can frame handler, called from the
// receive goroutine.
func (b *bridge) Handle(frame can.Frame) {
	select {
	case b.frames <- frame:
	default:
		log.Warnf("[BRIDGE] dropping frame id=0x%x, injector busy", frame.ID)
	}
}

func main() {
	can_interface := flag.String("i", DEFAULT_CAN_INTERFACE, "socketcan interface e.g. can0,vcan0")
	bitrate := flag.Int("r", DEFAULT_BITRATE, "bus bitrate in bit/s")
	profile_path := flag.String("p", "", "device profile file path")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	sim := tcansim.NewSimulator()
	if *profile_path != "" {
		profile, err := tcansim.LoadProfile(*profile_path)
		if err != nil {
			panic(err)
		}
		err = sim.Configure(profile)
		if err != nil {
			panic(err)
		}
	}

	// Report mode changes and fault latches driven by the injected traffic.
	_, err := sim.RegisterCallback(tcansim.EventModeChange, func(e tcansim.Event) {
		log.Infof("[BRIDGE] mode %v -> %v at %v", e.OldMode, e.NewMode, e.Timestamp)
	})
	if err != nil {
		panic(err)
	}
	_, err = sim.RegisterCallback(tcansim.EventFaultDetected, func(e tcansim.Event) {
		log.Warnf("[BRIDGE] fault %v=%v at %v", e.Flag, e.IsSet, e.Timestamp)
	})
	if err != nil {
		panic(err)
	}

	bus, err := can.NewBusForInterfaceWithName(*can_interface)
	if err != nil {
		panic(err)
	}
	b := &bridge{
		sim:    sim,
		driver: tcansim.NewFrameDriver(sim, uint32(*bitrate)),
		frames: make(chan can.Frame, 64),
	}
	bus.Subscribe(b)
	go bus.ConnectAndPublish()

	log.Infof("[BRIDGE] forwarding %v into the simulated transceiver", *can_interface)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case frame := <-b.frames:
			if err := b.driver.SendFrame(frame); err != nil {
				log.Errorf("[BRIDGE] inject id=0x%x: %v", frame.ID, err)
				continue
			}
			log.Debugf("[BRIDGE] injected id=0x%x dlc=%d, device mode %v",
				frame.ID, frame.Length, sim.Mode())
		case <-time.After(10 * time.Millisecond):
			// Idle bus, keep the simulation clock moving.
			sim.Step(10 * time.Millisecond)
		case <-sig:
			log.Info("[BRIDGE] shutting down")
			bus.Disconnect()
			return
		}
	}
}
