// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Command hpwhsim runs the `run`, `measure`, and `make` subcommands of
// spec.md §6 against an HPWHSimInput model, a preset, or a parameter
// search target, plus a `bridge` subcommand that checks a model's
// compressor performance map against a live Modbus controller.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hpwhsim/internal/calibration"
	"hpwhsim/internal/csvout"
	"hpwhsim/internal/heatsource"
	"hpwhsim/internal/herr"
	"hpwhsim/internal/hwbridge"
	"hpwhsim/internal/model"
	"hpwhsim/internal/model/presets"
	"hpwhsim/internal/rating"
	"hpwhsim/internal/report"
	"hpwhsim/internal/schedule"
	"hpwhsim/internal/simulator"
	"hpwhsim/pkg/appctx"
	"hpwhsim/pkg/eventbus"
	"hpwhsim/pkg/liveserv"
	"hpwhsim/pkg/logger"
	"hpwhsim/pkg/modbus"
	"hpwhsim/pkg/service"
	"hpwhsim/pkg/sysmon"
)

const (
	exitOK          = 0
	exitInputError  = 1
	exitUsageError  = 2
)

var log = logger.New("CLI")

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		usage()
		return exitUsageError
	}

	var code int
	switch args[0] {
	case "run":
		code = cmdRun(args[1:])
	case "measure":
		code = cmdMeasure(args[1:])
	case "make":
		code = cmdMake(args[1:])
	case "bridge":
		code = cmdBridge(args[1:])
	default:
		usage()
		return exitUsageError
	}
	if code != exitOK {
		log.Error("%s exited with code %d", args[0], code)
	}
	return code
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: hpwhsim <run|measure|make|bridge> [flags]")
}

// loadModel resolves the `-s {Preset:<name>|<path>}` form shared by all
// four subcommands.
func loadModel(spec string) (*model.Input, error) {
	if name, ok := strings.CutPrefix(spec, "Preset:"); ok {
		preset, err := presets.Get(name)
		if err != nil {
			return nil, herr.NewConfigError("s", err.Error())
		}
		return &preset.Input, nil
	}
	return model.LoadFile(spec)
}

func loadCalibration(calibFile string) (calibration.Constants, error) {
	if calibFile == "" {
		return calibration.Default(), nil
	}
	return calibration.LoadFile(calibFile)
}

// reportError prints err and maps it to the CLI's input-error exit code.
// Every herr kind (config/boundary/IO) reaches main as a non-fatal input
// error per spec.md §6; there is no distinct usage-error path here since
// flag.ContinueOnError already returns exitUsageError at parse time.
func reportError(err error) int {
	fmt.Fprintln(os.Stderr, "hpwhsim:", err)
	return exitInputError
}

func cmdRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	source := fs.String("s", "", "Preset:<name> or path to HPWHSimInput JSON")
	modelPath := fs.String("m", "", "alias for -s; overrides -s when set")
	testDir := fs.String("t", "", "directory containing schedule CSVs and testInfo.txt")
	outDir := fs.String("d", ".", "output directory")
	airTempC := fs.Float64("a", 20.0, "ambient and evaporator air temperature C, used when the test directory has no ambientTschedule.csv / evaporatorTschedule.csv")
	liveAddr := fs.String("live", "", "websocket address to stream live state on, e.g. :8765")
	stats := fs.Bool("stats", false, "print a resource usage report on exit")
	calibFile := fs.String("calibration", "", "path to a calibration constants YAML overlay")
	if err := fs.Parse(args); err != nil {
		return exitUsageError
	}
	if *modelPath != "" {
		*source = *modelPath
	}
	if *source == "" || *testDir == "" {
		usage()
		return exitUsageError
	}

	calib, err := loadCalibration(*calibFile)
	if err != nil {
		return reportError(err)
	}
	in, err := loadModel(*source)
	if err != nil {
		return reportError(err)
	}

	rep := report.NewLogger("Sim")

	info, err := schedule.ReadTestInfo(filepath.Join(*testDir, "testInfo.txt"))
	if err != nil {
		return reportError(err)
	}
	if err := applyTestInfo(in, info); err != nil {
		return reportError(err)
	}

	h, err := model.Build(in, calib, rep)
	if err != nil {
		return reportError(err)
	}
	if info.SetpointC > 0 {
		h.SetSetpointC(info.SetpointC)
	}

	drawCh, err := schedule.ReadChannel(filepath.Join(*testDir, "flowschedule.csv"), info.LengthOfTestMin)
	if err != nil {
		return reportError(err)
	}
	inletCh, err := schedule.ReadChannel(filepath.Join(*testDir, "inletTschedule.csv"), info.LengthOfTestMin)
	if err != nil {
		return reportError(err)
	}
	ambientCh, err := tryReadChannel(filepath.Join(*testDir, "ambientTschedule.csv"), info.LengthOfTestMin, *airTempC)
	if err != nil {
		return reportError(err)
	}
	evapCh, err := tryReadChannel(filepath.Join(*testDir, "evaporatorTschedule.csv"), info.LengthOfTestMin, *airTempC)
	if err != nil {
		return reportError(err)
	}
	drCh, err := tryReadChannel(filepath.Join(*testDir, "DRschedule.csv"), info.LengthOfTestMin, 1)
	if err != nil {
		return reportError(err)
	}
	var socCh *schedule.Channel
	if info.UseSoC != nil && *info.UseSoC {
		ch, err := schedule.ReadChannel(filepath.Join(*testDir, "SoCschedule.csv"), info.LengthOfTestMin)
		if err != nil {
			return reportError(err)
		}
		socCh = &ch
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		return reportError(herr.NewIOError(*outDir, err.Error()))
	}
	outFile, err := os.Create(filepath.Join(*outDir, "output.csv"))
	if err != nil {
		return reportError(herr.NewIOError(*outDir, err.Error()))
	}
	defer outFile.Close()
	writer := csvout.New(outFile, 6)

	var bus *eventbus.Bus
	var stopLive func()
	if *liveAddr != "" {
		bus = eventbus.New()
		ctx, cancel := appctx.New()
		srv := liveserv.New(*liveAddr, bus)
		exitCh := service.Start(ctx, cancel, []service.Runnable{srv})
		stopLive = func() { cancel(); <-exitCh }
		defer stopLive()
	}

	runtimeMinBySource := make(map[string]float64)
	for minute := 1; minute <= info.LengthOfTestMin; minute++ {
		step, err := h.Step(simulator.Boundary{
			StepSeconds:    60,
			DrawVolumeL:    drawCh.At(minute) * 3.785411784,
			InletTempC:     inletCh.At(minute),
			AmbientTempC:   ambientCh.At(minute),
			EvaporatorAirC: evapCh.At(minute),
			DR:             drSignal(drCh.At(minute)),
		})
		if err != nil {
			return reportError(err)
		}
		if err := writer.WriteStep(step); err != nil {
			return reportError(herr.NewIOError(*outDir, err.Error()))
		}
		if bus != nil {
			active := make([]string, 0)
			for _, s := range step.Sources {
				if s.IsOn {
					active = append(active, s.ID)
				}
			}
			bus.Publish(liveserv.TopicStep, liveserv.Frame{
				Minute:        minute,
				NodeTempsC:    step.NodeTempsC,
				AmbientC:      step.AmbientTempC,
				ActiveSources: active,
			})
		}
		for _, s := range step.Sources {
			runtimeMinBySource[s.ID] += s.RuntimeMin
		}
		if socCh != nil {
			rep.Infof("minute %d: scheduled SoC target %.3f", minute, socCh.At(minute))
		}
	}
	if err := writer.Flush(); err != nil {
		return reportError(herr.NewIOError(*outDir, err.Error()))
	}
	if info.TimeOnTankLimit != nil {
		for id, runtime := range runtimeMinBySource {
			if runtime > *info.TimeOnTankLimit {
				rep.Warnf("source %q ran %.1f min, exceeding tot_limit of %.1f min", id, runtime, *info.TimeOnTankLimit)
			}
		}
	}

	if *stats {
		fmt.Println(sysmon.New().Capture().Report())
	}
	return exitOK
}

func cmdMeasure(args []string) int {
	fs := flag.NewFlagSet("measure", flag.ContinueOnError)
	source := fs.String("s", "", "Preset:<name> or path to HPWHSimInput JSON")
	outDir := fs.String("d", ".", "output directory")
	calibFile := fs.String("calibration", "", "path to a calibration constants YAML overlay")
	stats := fs.Bool("stats", false, "print a resource usage report on exit")
	mainsC := fs.Float64("mains", 14.4, "mains inlet temperature C")
	ambientC := fs.Float64("ambient", 20.0, "ambient air temperature C")
	if err := fs.Parse(args); err != nil {
		return exitUsageError
	}
	if *source == "" {
		usage()
		return exitUsageError
	}

	calib, err := loadCalibration(*calibFile)
	if err != nil {
		return reportError(err)
	}
	in, err := loadModel(*source)
	if err != nil {
		return reportError(err)
	}
	rep := report.NewLogger("Measure")
	h, err := model.Build(in, calib, rep)
	if err != nil {
		return reportError(err)
	}

	fhr, err := rating.FirstHourRating(h, *mainsC, *ambientC, 3.0)
	if err != nil {
		return reportError(err)
	}

	h2, err := model.Build(in, calib, rep)
	if err != nil {
		return reportError(err)
	}
	profile := rating.Standard24HourProfile(*mainsC, *ambientC, h2.SetpointC())
	res, err := rating.Run24Hour(h2, profile)
	if err != nil {
		return reportError(err)
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		return reportError(herr.NewIOError(*outDir, err.Error()))
	}
	f, err := os.Create(filepath.Join(*outDir, "rating.txt"))
	if err != nil {
		return reportError(herr.NewIOError(*outDir, err.Error()))
	}
	defer f.Close()
	fmt.Fprintf(f, "first_hour_rating_gal=%.2f\n", fhr)
	fmt.Fprintf(f, "uef=%.3f\n", res.UEF)
	fmt.Fprintf(f, "total_draw_gal=%.2f\n", res.TotalDrawGal)
	fmt.Fprintf(f, "total_input_kwh=%.3f\n", res.TotalInputKWh)
	fmt.Fprintf(f, "total_output_kwh=%.3f\n", res.TotalOutputKWh)

	if *stats {
		fmt.Println(sysmon.New().Capture().Report())
	}
	return exitOK
}

// cmdBridge polls a live DHW controller over Modbus TCP once and checks
// its reported compressor input power and capacity against the
// performance map of the model given by -s, surfacing any deviation.
// It is a calibration aid: it never drives a Step.
func cmdBridge(args []string) int {
	fs := flag.NewFlagSet("bridge", flag.ContinueOnError)
	source := fs.String("s", "", "Preset:<name> or path to HPWHSimInput JSON naming the compressor to check against")
	host := fs.String("host", "127.0.0.1", "Modbus TCP controller host")
	port := fs.Int("port", 502, "Modbus TCP controller port")
	configFile := fs.String("config", "", "Modbus register map YAML; defaults to the built-in hwbridge register set")
	tolerance := fs.Float64("tolerance", 0.1, "allowed fractional deviation before a mismatch is reported")
	calibFile := fs.String("calibration", "", "path to a calibration constants YAML overlay")
	if err := fs.Parse(args); err != nil {
		return exitUsageError
	}
	if *source == "" {
		usage()
		return exitUsageError
	}

	calib, err := loadCalibration(*calibFile)
	if err != nil {
		return reportError(err)
	}
	in, err := loadModel(*source)
	if err != nil {
		return reportError(err)
	}
	rep := report.NewLogger("HWBridge")
	h, err := model.Build(in, calib, rep)
	if err != nil {
		return reportError(err)
	}

	var perf *heatsource.PerformanceMap
	for _, s := range h.Sources() {
		if s.Cfg.PerfMap != nil {
			perf = s.Cfg.PerfMap
			break
		}
	}
	if perf == nil {
		return reportError(herr.NewConfigError("s", "model has no compressor performance map to check against"))
	}

	cfg := modbus.DefaultHWBridgeConfig(*host, *port)
	if *configFile != "" {
		cfg, err = modbus.LoadConfig(*configFile)
		if err != nil {
			return reportError(err)
		}
	}

	ctx, cancel := appctx.New()
	defer cancel()
	client, err := modbus.NewClient(ctx, cfg)
	if err != nil {
		return reportError(herr.NewIOError("modbus", err.Error()))
	}
	defer client.Close()

	// Sanity-check the link before handing off to the Bridge: a controller
	// configured with a non-default register map (-config) may answer
	// connect but not expose these four addresses.
	if _, err := client.ReadCondenserC(); err != nil && *configFile == "" {
		return reportError(herr.NewIOError("modbus", "controller did not answer the default register map: "+err.Error()))
	}

	bridge := hwbridge.New(client, hwbridge.Registers{
		EvaporatorAirC: modbus.RegEvaporatorAirC,
		CondenserC:     modbus.RegCondenserC,
		InputPowerW:    modbus.RegInputPowerW,
		CapacityW:      modbus.RegCapacityW,
	}, perf, rep)
	bridge.ToleranceFraction = *tolerance

	sample, err := bridge.Poll(ctx)
	if err != nil {
		return reportError(herr.NewIOError("modbus", err.Error()))
	}
	fmt.Printf("evaporator_air_c=%.2f condenser_c=%.2f measured_input_w=%.1f predicted_input_w=%.1f measured_capacity_w=%.1f predicted_capacity_w=%.1f\n",
		sample.EvaporatorAirC, sample.CondenserC, sample.MeasuredInputW, sample.PredictedInputW, sample.MeasuredCapacityW, sample.PredictedCapacityW)
	return exitOK
}

func cmdMake(args []string) int {
	fs := flag.NewFlagSet("make", flag.ContinueOnError)
	source := fs.String("s", "", "Preset:<name> or path to HPWHSimInput JSON")
	outDir := fs.String("d", ".", "output directory")
	targetUEF := fs.Float64("u", 3.0, "target uniform energy factor")
	calibFile := fs.String("calibration", "", "path to a calibration constants YAML overlay")
	if err := fs.Parse(args); err != nil {
		return exitUsageError
	}
	if *source == "" {
		usage()
		return exitUsageError
	}

	calib, err := loadCalibration(*calibFile)
	if err != nil {
		return reportError(err)
	}
	in, err := loadModel(*source)
	if err != nil {
		return reportError(err)
	}

	payload := in.IntegratedSystem
	if payload == nil {
		payload = in.CentralSystem
	}
	if payload == nil || len(payload.HeatSourceConfigurations) == 0 {
		return reportError(herr.NewConfigError("heat_source_configurations", "model has no heat sources to scale"))
	}
	baseNameplate := payload.HeatSourceConfigurations[0].NameplatePowerW
	if baseNameplate <= 0 {
		baseNameplate = 4500
	}

	search := func(scale float64) (float64, error) {
		scaled := *in
		scaledPayload := *payload
		scaledSources := append([]model.HeatSourceInput(nil), payload.HeatSourceConfigurations...)
		scaledSources[0].NameplatePowerW = baseNameplate * scale
		scaledPayload.HeatSourceConfigurations = scaledSources
		if scaled.IntegratedSystem != nil {
			scaled.IntegratedSystem = &scaledPayload
		} else {
			scaled.CentralSystem = &scaledPayload
		}

		h, err := model.Build(&scaled, calib, report.Nop{})
		if err != nil {
			return 0, err
		}
		profile := rating.Standard24HourProfile(14.4, 20.0, h.SetpointC())
		res, err := rating.Run24Hour(h, profile)
		if err != nil {
			return 0, err
		}
		return res.UEF, nil
	}

	scale, err := rating.Bisect(search, 0.25, 4.0, *targetUEF, 0.01, 30)
	if err != nil {
		return reportError(err)
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		return reportError(herr.NewIOError(*outDir, err.Error()))
	}
	f, err := os.Create(filepath.Join(*outDir, "make_result.txt"))
	if err != nil {
		return reportError(herr.NewIOError(*outDir, err.Error()))
	}
	defer f.Close()
	fmt.Fprintf(f, "scale=%.4f\n", scale)
	fmt.Fprintf(f, "nameplate_power_w=%.1f\n", baseNameplate*scale)
	return exitOK
}

// applyTestInfo overlays testInfo.txt's tank-shape fields onto in's active
// payload before model.Build runs, so a testInfo.txt present alongside an
// input JSON can override the document's own tank defaults per spec.md §6.
// A field left nil (absent from testInfo.txt) leaves the payload untouched.
func applyTestInfo(in *model.Input, info schedule.TestInfo) error {
	payload, err := in.Payload()
	if err != nil {
		return err
	}
	if info.DoInversionMixing != nil {
		payload.Tank.DoInversionMixing = info.DoInversionMixing
	}
	if info.DoConduction != nil {
		payload.Tank.DoConduction = info.DoConduction
	}
	if info.InitialTankTC != nil {
		payload.Tank.InitialTempC = info.InitialTankTC
	}
	if info.TankSizeGal != nil {
		payload.Tank.VolumeL = *info.TankSizeGal * 3.785411784
	}
	if info.InletHeightFrac != nil && in.NumberOfNodes > 0 {
		node := int(*info.InletHeightFrac*float64(in.NumberOfNodes-1) + 0.5)
		if node < 0 {
			node = 0
		}
		if node > in.NumberOfNodes-1 {
			node = in.NumberOfNodes - 1
		}
		payload.Tank.InletHeightNode = node
	}
	return nil
}

func tryReadChannel(path string, lengthMinutes int, def float64) (schedule.Channel, error) {
	if _, err := os.Stat(path); err != nil {
		v := def
		values := make([]float64, lengthMinutes)
		for i := range values {
			values[i] = v
		}
		return schedule.Channel{Default: v, Values: values}, nil
	}
	return schedule.ReadChannel(path, lengthMinutes)
}

func drSignal(v float64) heatsource.DRSignal {
	return heatsource.DRSignal(int(v))
}
