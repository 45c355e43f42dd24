package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/strand-dev/strand/pkg/strand"
)

func demoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run a small live reactive graph",
		Long: `Builds a tiny reactive graph (a counter, a derived parity memo, a
wrapped todo list) and walks it through writes, batches, and a scope
teardown, printing every effect run. Doubles as a smoke test of the
engine.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			runDemo(cmd.OutOrStdout())
			return nil
		},
	}
}

func runDemo(out io.Writer) {
	printf := func(format string, args ...any) {
		fmt.Fprintf(out, format+"\n", args...)
	}

	count := strand.NewRef(0)
	parity := strand.NewMemo(func() any {
		if count.Get().(int)%2 == 0 {
			return "even"
		}
		return "odd"
	})

	scope := strand.NewOwner()
	scope.Run(func() any {
		strand.CreateEffect(func() {
			printf("count=%v parity=%v", count.Get(), parity.Get())
		})
		strand.OnDispose(func() { printf("scope disposed") })
		return nil
	})

	printf("-- single writes --")
	count.Set(1)
	count.Set(2)

	printf("-- batched writes run the effect once --")
	strand.Batch(func() {
		count.Set(3)
		count.Set(4)
		count.Set(5)
	})

	printf("-- keyed tracking over a wrapped list --")
	todos := strand.Reactive(strand.NewList("write spec"))
	scope.Run(func() any {
		strand.CreateEffect(func() {
			printf("todos: %d open", todos.Len())
		})
		return nil
	})
	todos.Push("ship engine")
	todos.Pop()

	printf("-- teardown --")
	scope.Stop()
	count.Set(6) // silent: the scope's effects are gone

	s := strand.Stats()
	printf("stats: %d effect runs, %d triggers, %d memo recomputes",
		s.EffectRuns, s.Triggers, s.MemoRecomputes)
}
