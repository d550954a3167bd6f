package commands

import (
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/liangcheng-yu/hyperlight/internal/logger"
	"github.com/liangcheng-yu/hyperlight/pkg/host"
	"github.com/liangcheng-yu/hyperlight/pkg/metrics"
)

var scenarioFile string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scenario against the demo guest",
	Long: `Create a sandbox, start the demo guest, and dispatch the calls
listed in the scenario file.

Example scenario:

  calls:
    - function: Echo
      return: string
      params:
        - string: hello
    - function: Add
      return: int32
      params:
        - int32: 2
        - int32: 3`,
	RunE: runScenario,
}

func init() {
	runCmd.Flags().StringVarP(&scenarioFile, "scenario", "s", "", "Path to scenario file (required)")
	_ = runCmd.MarkFlagRequired("scenario")
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := LoadScenario(scenarioFile)
	if err != nil {
		return err
	}

	var dispatchMetrics *metrics.DispatchMetrics
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		dispatchMetrics = metrics.NewDispatchMetrics(reg)
		go func() {
			handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
			if err := http.ListenAndServe(cfg.Metrics.ListenAddr, handler); err != nil {
				logger.Error("metrics listener failed", "addr", cfg.Metrics.ListenAddr, "error", err)
			}
		}()
		logger.Info("metrics listening", "addr", cfg.Metrics.ListenAddr)
	}

	sb, err := host.NewSandbox(host.Config{
		InputSize:         cfg.Sandbox.InputSize.Bytes(),
		OutputSize:        cfg.Sandbox.OutputSize.Bytes(),
		HeapSize:          cfg.Sandbox.HeapSize.Bytes(),
		GuestErrorSize:    cfg.Sandbox.GuestErrorSize.Bytes(),
		PanicContextSize:  cfg.Sandbox.PanicContextSize.Bytes(),
		HostFunctionsSize: cfg.Sandbox.HostFunctionsSize.Bytes(),
		HostExceptionSize: cfg.Sandbox.HostExceptionSize.Bytes(),
		Writer:            os.Stdout,
		MaxLogLevel:       cfg.GuestLogLevel(),
		Metrics:           dispatchMetrics,
	})
	if err != nil {
		return err
	}
	defer sb.Close()

	if err := sb.Start(demoMain); err != nil {
		return err
	}
	logger.Info("sandbox started", "sandbox", sb.ID())

	for i, call := range sc.Calls {
		ret, err := wireReturn(call.Return)
		if err != nil {
			return fmt.Errorf("call %d: %w", i, err)
		}
		callArgs, err := wireArgs(call.Params)
		if err != nil {
			return fmt.Errorf("call %d: %w", i, err)
		}
		res, err := sb.Call(call.Function, ret, callArgs...)
		if err != nil {
			logger.Error("call failed", "function", call.Function, "error", err)
			continue
		}
		fmt.Printf("%s -> %s\n", call.Function, formatResult(res))
	}
	return nil
}
