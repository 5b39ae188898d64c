// Command wilydemo wires the binding core end to end against an
// in-memory Namer, exercising name resolution, caching, and graceful
// shutdown the way a real client would.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wilyrpc/wily/internal/activity"
	"github.com/wilyrpc/wily/internal/addr"
	"github.com/wilyrpc/wily/internal/binding"
	"github.com/wilyrpc/wily/internal/boundname"
	"github.com/wilyrpc/wily/internal/cache"
	"github.com/wilyrpc/wily/internal/config"
	"github.com/wilyrpc/wily/internal/dtab"
	"github.com/wilyrpc/wily/internal/namer"
	"github.com/wilyrpc/wily/internal/nametree"
	"github.com/wilyrpc/wily/internal/path"
	"github.com/wilyrpc/wily/internal/svcfactory"
)

func main() {
	envCfg, err := config.LoadEnvConfig()
	if err != nil {
		fatalf("%v", err)
	}

	baseDtab, err := config.LoadBaseDTab(envCfg.BaseDtabFile)
	if err != nil {
		fatalf("loading base dtab: %v", err)
	}
	dtab.SetBase(baseDtab)
	log.Printf("base dtab loaded: %q", baseDtab.Show())

	resolver := newStaticResolver(map[string][]string{
		"/s/greeter": {"10.0.0.1:8080", "10.0.0.2:8080"},
	})

	bf := binding.New[string, string](path.Parse("/s/greeter"), resolver, newEchoFactory, loggingSink)
	statsReporter, err := cache.NewStatsReporter("wilydemo", envCfg.StatsReportSchedule, bindingStats{bf})
	if err != nil {
		fatalf("stats reporter: %v", err)
	}
	statsReporter.Start()
	defer statsReporter.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	svc, err := bf.Apply(ctx, struct{}{})
	if err != nil {
		fatalf("apply: %v", err)
	}
	reply, err := svc.Serve(ctx, "hello")
	if err != nil {
		fatalf("serve: %v", err)
	}
	log.Printf("reply: %s", reply)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	log.Println("wilydemo running, press Ctrl+C to exit")
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := bf.Close(shutdownCtx); err != nil {
		log.Printf("close error: %v", err)
	}
}

// newStaticResolver builds a Namer that resolves a fixed set of paths to
// a fixed endpoint list, standing in for a real naming backend (DNS,
// ZooKeeper, a service registry).
func newStaticResolver(routes map[string][]string) namer.Namer {
	return namer.Func(func(ctx context.Context, tree nametree.Tree[path.Path]) *activity.Activity[nametree.Tree[boundname.Bound]] {
		paths, ok := tree.Eval()
		if !ok {
			return activity.NewWithState(activity.Ok(nametree.Neg[boundname.Bound]()))
		}
		var bounds []boundname.Bound
		for _, p := range paths {
			endpoints, found := routes[p.Show()]
			if !found {
				continue
			}
			bounds = append(bounds, boundname.New(addr.Bound(endpoints...)))
		}
		if len(bounds) == 0 {
			return activity.NewWithState(activity.Ok(nametree.Neg[boundname.Bound]()))
		}
		return activity.NewWithState(activity.Ok(nametree.Leaf(boundname.All(bounds))))
	})
}

// echoService and echoFactory are a trivial request-response pair
// standing in for a real transport/connection-pool collaborator.
type echoService struct{ bound boundname.Bound }

func (s echoService) Serve(ctx context.Context, req string) (string, error) {
	return fmt.Sprintf("echo(%s): %s", s.bound.ID, req), nil
}
func (s echoService) Close(ctx context.Context) error { return nil }
func (s echoService) IsAvailable() bool               { return true }

type echoFactory struct{ bound boundname.Bound }

func (f echoFactory) Apply(ctx context.Context, conn svcfactory.Conn) (svcfactory.Service[string, string], error) {
	return echoService{bound: f.bound}, nil
}
func (f echoFactory) Close(ctx context.Context) error { return nil }
func (f echoFactory) IsAvailable() bool               { return true }

func newEchoFactory(bound boundname.Bound) (svcfactory.ServiceFactory[string, string], error) {
	return echoFactory{bound: bound}, nil
}

func loggingSink(key string, value any) {
	log.Printf("[trace] %s=%v", key, value)
}

// bindingStats exposes the DTab cache's stats of a BindingFactory as the
// single cache.Reporter of the demo's StatsReporter; the name cache's
// stats are not reported (a real deployment would register each cache
// separately).
type bindingStats struct {
	bf *binding.BindingFactory[string, string]
}

func (b bindingStats) Stats() cache.Stats {
	dtabStats, _ := b.bf.Stats()
	return dtabStats
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fatal: "+format+"\n", args...)
	os.Exit(1)
}
