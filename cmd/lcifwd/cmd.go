package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lci-net/lcifwd/core"
	"github.com/lci-net/lcifwd/mgmt"
	"github.com/lci-net/lcifwd/table"
)

// CmdRun is the forwarder's cobra entry point, in the teacher's
// fw/cmd.CmdYaNFD style: one positional config file argument, a
// handful of flag overrides, and a blocking run until signaled.
var CmdRun = &cobra.Command{
	Use:   "lcifwd [config-file]",
	Short: "Content-centric forwarding engine",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runForwarder,
}

func init() {
	CmdRun.Flags().String("log-level", "", "override the configured log level (TRACE, DEBUG, INFO, WARN, ERROR)")
}

func runForwarder(cmd *cobra.Command, args []string) error {
	cfg := core.DefaultConfig()
	if len(args) == 1 {
		loaded, err := core.LoadConfig(args[0])
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	core.Log.SetLevel(cfg.Level())

	fw := core.NewForwarder(cfg)
	defer fw.Close()

	var rib *mgmt.RibStore
	if cfg.RibStorePath != "" {
		store, err := mgmt.OpenRibStore(cfg.RibStorePath)
		if err != nil {
			core.Log.Warn(fw, "unable to open rib store, static routes will not persist", "err", err)
		} else {
			rib = store
			defer rib.Close()
			reloadStaticRoutes(fw, rib)
		}
	}
	mgmt.NewControl(fw, rib)

	startListeners(fw, cfg)

	if cfg.StatusAddr != "" {
		status := mgmt.NewStatusServer(fw)
		go func() {
			if err := status.ListenAndServe(cfg.StatusAddr); err != nil {
				core.Log.Warn(fw, "status server stopped", "err", err)
			}
		}()
	}

	stop := make(chan struct{})
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		received := <-sig
		core.Log.Info(fw, "received signal, shutting down", "signal", received)
		close(stop)
	}()

	fw.Run(stop)
	return nil
}

// reloadStaticRoutes reinserts persisted static routes into the Fib
// before any listener is started. A route whose connection id is not
// in the ConnTable is skipped with a warning and is not retried later.
func reloadStaticRoutes(fw *core.Forwarder, rib *mgmt.RibStore) {
	routes, err := rib.Load()
	if err != nil {
		core.Log.Warn(fw, "failed to load persisted static routes", "err", err)
		return
	}
	for _, r := range routes {
		if _, ok := fw.Conns.Get(r.ConnID); !ok {
			core.Log.Warn(fw, "skipping persisted route with no matching connection", "name", r.Name.String(), "conn", r.ConnID)
			continue
		}
		if err := fw.Fib.Insert(r.Name, r.ConnID, r.Weight, table.OriginStatic); err != nil {
			core.Log.Warn(fw, "failed to reinsert persisted route", "name", r.Name.String(), "err", err)
		}
	}
}
