package main

import (
	"flag"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/canlabs/tcansim"
)

var BUILTIN_SCENARIOS = map[string]func() *tcansim.Scenario{
	"power-up":              tcansim.PowerUpScenario,
	"normal-to-sleep":       tcansim.NormalToSleepScenario,
	"sleep-to-wake":         tcansim.SleepToWakeScenario,
	"message-transmission":  tcansim.MessageTransmissionScenario,
	"txd-timeout":           tcansim.TXDTimeoutFaultScenario,
	"undervoltage-recovery": tcansim.UndervoltageRecoveryScenario,
}

func main() {
	profile_path := flag.String("p", "", "device profile file path")
	scenario_path := flag.String("s", "", "scenario file path")
	builtin := flag.String("b", "", "builtin scenario name")
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

	var scenario *tcansim.Scenario
	switch {
	case *scenario_path != "":
		loaded, err := tcansim.LoadScenario(*scenario_path)
		if err != nil {
			panic(err)
		}
		scenario = loaded
	case *builtin != "":
		build, ok := BUILTIN_SCENARIOS[*builtin]
		if !ok {
			log.Errorf("[MAIN] unknown builtin scenario %q, available:", *builtin)
			for name := range BUILTIN_SCENARIOS {
				log.Errorf("[MAIN]   %v", name)
			}
			os.Exit(1)
		}
		scenario = build()
	default:
		log.Error("[MAIN] no scenario given, use -s <file> or -b <name>")
		os.Exit(1)
	}

	result := scenario.Execute(sim)
	log.Infof("[MAIN] %d executed, %d passed, %d failed",
		result.Executed, result.Passed, result.Failed)
	if !result.Success {
		log.Errorf("[MAIN] first failure at action %d: %v",
			result.FailedIndex, result.ErrMessage)
		os.Exit(1)
	}
}
