package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/strand-dev/strand/pkg/inspect"
	"github.com/strand-dev/strand/pkg/instrument"
	"github.com/strand-dev/strand/pkg/strand"
)

func inspectCmd() *cobra.Command {
	var addr string
	var tick time.Duration
	var metrics bool

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Serve live engine stats and events for devtools",
		Long: `Starts the inspector server and drives a small demo graph so there is
something to watch:

  GET /stats   engine counter snapshot as JSON
  GET /events  WebSocket stream of engine events`,
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := inspect.New()

			obs := srv.Observer()
			if metrics {
				obs = strand.CombineObservers(obs, instrument.Prometheus())
			}
			strand.SetObserver(obs)

			// A ticking demo graph so connected clients see traffic.
			counter := strand.NewRef(0)
			parity := strand.NewMemo(func() any {
				return counter.Get().(int) % 2
			})
			strand.CreateEffect(func() {
				_ = parity.Get()
			})
			go func() {
				for range time.Tick(tick) {
					counter.Set(counter.Peek().(int) + 1)
				}
			}()

			return srv.ListenAndServe(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":6060", "listen address")
	cmd.Flags().DurationVar(&tick, "tick", time.Second, "demo graph write interval")
	cmd.Flags().BoolVar(&metrics, "metrics", false, "also register Prometheus metrics")
	return cmd
}
