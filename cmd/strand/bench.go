package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/strand-dev/strand/pkg/strand"
)

func benchCmd() *cobra.Command {
	var iters int
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure propagation through signal/memo/effect graphs",
		Long: `Builds width x height grids of memo chains fed by one source signal,
with an effect at the end of each chain, then measures full-graph
propagation latency per source write.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			runBench(iters)
			return nil
		},
	}
	cmd.Flags().IntVar(&iters, "iters", 100, "writes measured per graph shape")
	return cmd
}

var (
	benchWidths  = []int{1, 10, 100}
	benchHeights = []int{1, 10, 100}
)

func runBench(iters int) {
	tbl := table.NewWriter()
	tbl.SetTitle("Strand propagation")
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"benchmark", "avg", "min", "p75", "p99", "max"})

	totalWrites := 0

	for _, w := range benchWidths {
		for _, h := range benchHeights {
			tach := tachymeter.New(&tachymeter.Config{Size: iters})

			scope := strand.NewDetachedOwner()
			src := strand.NewRef(1)

			scope.Run(func() any {
				for i := 0; i < w; i++ {
					var last strand.Signal = src
					for j := 0; j < h; j++ {
						prev := last
						last = strand.NewMemo(func() any {
							return prev.Get().(int) + 1
						})
					}
					end := last
					strand.CreateEffect(func() {
						_ = end.Get()
					})
				}
				return nil
			})

			for i := 0; i < iters; i++ {
				start := time.Now()
				src.Set(src.Peek().(int) + 1)
				tach.AddTime(time.Since(start))
			}
			totalWrites += iters

			calc := tach.Calc()
			tbl.AppendRows([]table.Row{
				{
					fmt.Sprintf("propagate: %d * %d", w, h),
					calc.Time.Avg,
					calc.Time.Min,
					calc.Time.P75,
					calc.Time.P99,
					calc.Time.Max,
				},
			})

			scope.Stop()
		}
	}

	tbl.Render()

	s := strand.Stats()
	fmt.Printf("%s writes, %s effect runs, %s memo recomputes\n",
		humanize.Comma(int64(totalWrites)),
		humanize.Comma(int64(s.EffectRuns)),
		humanize.Comma(int64(s.MemoRecomputes)))
}
