package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/delaneyj/metal/metal"
	"github.com/delaneyj/metal/metrics"
	"github.com/delaneyj/metal/report"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
)

const (
	itersKey   = "iters"
	debugKey   = "debug"
	profileKey = "profile"
)

var (
	ww = []int{1, 10, 100}
	hh = []int{1, 10, 100}
)

func main() {
	cmd := &cli.Command{
		Name:  "benchmark",
		Usage: "Measure chain propagation when the first link of watched paths changes",
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:  itersKey,
				Usage: "Swaps per width and depth",
				Value: 100,
			},
			&cli.BoolFlag{
				Name:  debugKey,
				Usage: "Run in debug mode and print the runtime counters",
			},
			&cli.StringFlag{
				Name:  profileKey,
				Usage: "Write a CPU profile to this file",
			},
		},
		Action: benchmark,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func benchmark(ctx context.Context, cmd *cli.Command) error {
	if path := cmd.String(profileKey); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return err
		}
		defer pprof.StopCPUProfile()
	}

	iters := int(cmd.Uint(itersKey))
	debug := cmd.Bool(debugKey)

	log.Printf("warming up")
	if _, err := benchmarkChains(iters, false, false); err != nil {
		return err
	}
	rt, err := benchmarkChains(iters, debug, true)
	if err != nil {
		return err
	}

	if debug {
		fmt.Print(report.Counters("last run", rt.Counters().Fields()))

		reg := prometheus.NewRegistry()
		if _, err := metrics.Register(reg, rt); err != nil {
			return err
		}
		families, err := reg.Gather()
		if err != nil {
			return err
		}
		log.Printf("exported %d metric families", len(families))
	}
	return nil
}

// chainPath is "holder.link" followed by depth-1 "next" segments and
// "value".
func chainPath(depth int) string {
	parts := []string{"holder", "link"}
	for range depth - 1 {
		parts = append(parts, "next")
	}
	parts = append(parts, "value")
	return strings.Join(parts, ".")
}

func makeLinks(depth, value int) *metal.Object {
	head := metal.NewObject(nil, map[string]any{"value": value})
	for range depth - 1 {
		head = metal.NewObject(nil, map[string]any{"next": head})
	}
	return head
}

// benchmarkChains watches a depth h path from w roots sharing one holder,
// then swaps the holder's first link back and forth. Returns the runtime of
// the last configuration.
func benchmarkChains(iters int, debug, shouldRender bool) (*metal.Runtime, error) {
	tbl := table.NewWriter()
	tbl.SetTitle("Chain propagation")
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"benchmark", "avg", "min", "p75", "p99", "max", "chain nodes"})

	var rt *metal.Runtime
	for _, w := range ww {
		for _, h := range hh {
			tach := tachymeter.New(&tachymeter.Config{Size: iters})

			rt = metal.CreateRuntime(metal.WithDebug(debug))
			links := []*metal.Object{makeLinks(h, 0), makeLinks(h, 1)}
			holder := metal.NewObject(nil, map[string]any{"link": links[0]})

			fired := 0
			onChange := metal.Func(func(metal.Event) {
				fired++
			})
			path := chainPath(h)
			roots := make([]*metal.Object, w)
			for i := range roots {
				roots[i] = metal.NewObject(nil, map[string]any{"holder": holder})
				if err := rt.AddObserver(roots[i], path, nil, onChange); err != nil {
					return nil, err
				}
			}

			for i := range iters {
				start := time.Now()
				if err := rt.Set(holder, "link", links[(i+1)%2]); err != nil {
					return nil, err
				}
				tach.AddTime(time.Since(start))
			}
			// chains only hold weak references to the roots
			runtime.KeepAlive(roots)
			if fired != w*iters {
				return nil, fmt.Errorf("propagate %d * %d: expected %d notifications, got %d", w, h, w*iters, fired)
			}

			calc := tach.Calc()
			tbl.AppendRows([]table.Row{
				{
					fmt.Sprintf("propagate: %d * %d", w, h),
					calc.Time.Avg,
					calc.Time.Min,
					calc.Time.P75,
					calc.Time.P99,
					calc.Time.Max,
					rt.ChainNodes(),
				},
			})
		}
	}

	if shouldRender {
		tbl.Render()
	}
	return rt, nil
}
