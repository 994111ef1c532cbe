package common

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/dustin/go-humanize"
	"github.com/go-logr/logr"
	"go.uber.org/automaxprocs/maxprocs"
)

// Share of the cgroup memory limit given to GOMEMLIMIT
const memLimitRatio = 0.9

// SetupSignalHandler returns a context cancelled on the first SIGINT or SIGTERM.
// A second signal exits the process.
func SetupSignalHandler(ctx context.Context, logger logr.Logger) context.Context {
	ret, cancel := context.WithCancel(ctx)

	signals := make(chan os.Signal, 2)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-signals:
			logger.V(0).Info("Stopping", "signal", sig.String())
			cancel()
		case <-ctx.Done():
			signal.Stop(signals)
			cancel()

			return
		}

		sig := <-signals
		logger.V(0).Info("Stop signal received twice, exiting", "signal", sig.String())
		os.Exit(1)
	}()

	return ret
}

// TuneRuntime aligns GOMAXPROCS and GOMEMLIMIT on the container limits, when there are some.
func TuneRuntime(logger logr.Logger) error {
	// maxprocs logs printf style
	_, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		logger.V(1).Info(fmt.Sprintf(format, args...))
	}))
	if err != nil {
		return fmt.Errorf("failed to set max procs: %w", err)
	}

	limit, err := memlimit.SetGoMemLimit(memLimitRatio)
	if err != nil {
		return fmt.Errorf("failed to set go mem limit: %w", err)
	}

	if limit > 0 {
		logger.V(1).Info("Go memlimit configured", "ratio", memLimitRatio, "limit", humanize.IBytes(uint64(limit)))
	}

	return nil
}
