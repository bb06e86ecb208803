package subsys_test

import (
	"context"
	"fmt"

	"github.com/facetworks/subsys"
)

func ExampleSubsystem_Build() {
	storeHook := subsys.MustHook(subsys.HookConfig{
		Kind:   "store",
		Attach: true,
		Source: "example/store",
		Fn: func(ctx context.Context, cfg subsys.Ctx, api *subsys.API, sub *subsys.Subsystem) (*subsys.Facet, error) {
			f, err := subsys.NewFacet("store", subsys.FacetOptions{Source: "example/store", Attach: true})
			if err != nil {
				return nil, err
			}

			data := map[string]any{}
			if err := f.Add(subsys.Members{
				"put": func(key string, value any) { data[key] = value },
				"get": func(key string) any { return data[key] },
			}); err != nil {
				return nil, err
			}
			return f, nil
		},
	})

	indexHook := subsys.MustHook(subsys.HookConfig{
		Kind:     "index",
		Required: []string{"store"},
		Source:   "example/index",
		Fn: func(ctx context.Context, cfg subsys.Ctx, api *subsys.API, sub *subsys.Subsystem) (*subsys.Facet, error) {
			return subsys.NewFacet("index", subsys.FacetOptions{Source: "example/index"})
		},
	})

	sub := subsys.New("app").Use(indexHook).Use(storeHook)
	if err := sub.Build(context.Background()); err != nil {
		fmt.Println("build failed:", err)
		return
	}
	defer sub.Dispose(context.Background())

	fmt.Println(sub.Facets().Kinds())

	if _, err := sub.API().Invoke("put", "greeting", "hello"); err != nil {
		fmt.Println("put failed:", err)
		return
	}
	value, _ := sub.API().Invoke("get", "greeting")
	fmt.Println(value[0])

	// Output:
	// [store index]
	// hello
}

func ExampleBuilder_DryRun() {
	hook := subsys.MustHook(subsys.HookConfig{
		Kind:   "metrics",
		Source: "example/metrics",
		Fn: func(ctx context.Context, cfg subsys.Ctx, api *subsys.API, sub *subsys.Subsystem) (*subsys.Facet, error) {
			return subsys.NewFacet("metrics", subsys.FacetOptions{Source: "example/metrics"})
		},
	})

	sub := subsys.New("app").Use(hook)
	plan, err := sub.Builder().DryRun(context.Background())
	if err != nil {
		fmt.Println("verification failed:", err)
		return
	}

	fmt.Println(plan.OrderedKinds)
	fmt.Println(sub.Built())

	// Output:
	// [metrics]
	// false
}

func ExampleNewStandalone() {
	sub := subsys.NewStandalone("host")
	if err := sub.Build(context.Background()); err != nil {
		fmt.Println("build failed:", err)
		return
	}
	defer sub.Dispose(context.Background())

	sub.API().Invoke("on", "started", subsys.ListenerFunc(func(payload any) {
		fmt.Println("received:", payload)
	}))
	sub.API().Invoke("emit", "started", "ready")

	// Output:
	// received: ready
}
