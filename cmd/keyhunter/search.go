package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Amr-9/keyhunter/internal/config"
	"github.com/Amr-9/keyhunter/internal/ui"
	"github.com/Amr-9/keyhunter/pkg/generator"
	"github.com/Amr-9/keyhunter/pkg/generator/compute"
	"github.com/Amr-9/keyhunter/pkg/generator/compute/host"
	"github.com/Amr-9/keyhunter/pkg/generator/compute/opencl"
	"github.com/Amr-9/keyhunter/pkg/generator/dispatch"
	"github.com/Amr-9/keyhunter/pkg/generator/scoring"
)

func (a *app) backend() (compute.Backend, error) {
	switch a.settings.Backend {
	case config.BackendCPU:
		return host.New(a.settings.CPUDevices, a.settings.CPUWorkers), nil
	default:
		return opencl.New()
	}
}

// search runs mode until interrupted.
func (a *app) search(parent context.Context, mode scoring.Mode) error {
	cfg, err := a.settings.ToConfig(mode)
	if err != nil {
		return err
	}

	backend, err := a.backend()
	if err != nil {
		return err
	}
	infos, err := backend.Devices()
	if err != nil {
		return fmt.Errorf("enumerate devices: %w", err)
	}

	a.out.PrintBanner(version)
	a.out.Println("Mode: %s", cfg.Mode)
	a.out.Println("Target: %s", cfg.Target)
	if cfg.Format != generator.Ethereum {
		a.out.Println("Format: %s", cfg.Format)
	}

	a.out.Println("Devices: ")
	var indices []int
	for _, info := range infos {
		if a.settings.Skipped(info.Index) {
			continue
		}
		a.out.Println("  GPU %d: %s, %s available, %d compute units",
			info.Index, info.Name, ui.FormatBytes(info.GlobalMem), info.ComputeUnits)
		indices = append(indices, info.Index)
	}
	if len(indices) == 0 {
		a.out.Println("  No available devices found!")
		return nil
	}
	a.out.Println("")

	a.out.Header(fmt.Sprintf("Initializing %s...", backend.Name()))
	a.out.Print("  Compiling kernels...")
	devs, err := backend.Open(indices, compute.ProgramOptions{
		KernelDir:   a.settings.KernelDir,
		InverseSize: cfg.InverseSize,
		MaxScore:    cfg.MaxScore(),
	})
	if err != nil {
		a.out.Println("")
		return err
	}
	a.out.Println("OK")
	a.log.WithFields(logrus.Fields{
		"backend":   backend.Name(),
		"devices":   len(devs),
		"work_size": cfg.WorkSize(),
	}).Debug("backend ready")

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []dispatch.Option{dispatch.WithLogger(a.log), dispatch.WithPrinter(a.out)}
	if a.settings.Output != "" {
		rf, err := openResultFile(a.settings.Output)
		if err != nil {
			releaseAll(devs)
			return err
		}
		defer rf.Close()
		opts = append(opts, dispatch.WithResultHandler(func(r generator.Result) {
			if err := rf.Write(r); err != nil {
				a.log.WithError(err).Warn("could not save discovery")
			}
		}))
	}

	d := dispatch.New(cfg, opts...)
	defer d.Close()
	for i, dev := range devs {
		if err := d.AddDevice(dev); err != nil {
			releaseAll(devs[i+1:])
			return err
		}
	}

	if a.settings.MetricsAddr != "" {
		shutdown := serveMetrics(a.settings.MetricsAddr, a.log)
		defer shutdown()
	}

	a.out.Println("")
	a.out.Header("Initializing devices...")
	a.out.Println("  This should take less than a minute. The number of objects initialized on each")
	a.out.Println("  device is equal to inverse-size * inverse-multiple. To lower initialization")
	a.out.Println("  time (and memory footprint) lower the inverse-multiple first, via the -I")
	a.out.Println("  switch. Do note that this might negatively impact your performance.")
	a.out.Println("")

	if err := d.Init(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			a.out.Line("  Cancelled")
			return nil
		}
		return err
	}
	a.out.Println("")

	a.out.Header("Running...")
	a.out.Println("  Always verify that a private key generated by this program corresponds to the")
	a.out.Println("  public key printed by importing it to a wallet of your choice. This program")
	a.out.Println("  like any software might contain bugs and it does by design cut corners to")
	a.out.Println("  improve overall performance.")
	a.out.Println("")

	if err := d.Run(ctx); err != nil {
		a.out.Println("")
		return err
	}

	stats := d.Stats()
	a.out.Println("")
	a.out.Warn("Stopped after %s, %s candidates, best score %d",
		ui.FormatElapsed(time.Duration(stats.ElapsedSecs*float64(time.Second))),
		ui.FormatNumber(stats.Candidates), stats.BestScore)
	return nil
}

func releaseAll(devs []compute.Device) {
	for _, dev := range devs {
		dev.Release()
	}
}
