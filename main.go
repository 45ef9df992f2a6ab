/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"flag"

	"github.com/xlab/closer"

	"github.com/spaghettifunk/tessera/engine"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/testbed"
)

func main() {
	configPath := flag.String("config", "tessera.toml", "renderer configuration file")
	flag.Parse()

	tb, err := testbed.NewTestGame(*configPath, "assets")
	if err != nil {
		panic(err)
	}

	e, err := engine.New(tb.Game)
	if err != nil {
		panic(err)
	}

	// closer runs the cleanup on SIGINT/SIGTERM; the window and the GL context
	// belong to the main goroutine, so the cleanup only stops the loop and
	// waits for it to unwind.
	done := make(chan struct{})
	closer.Bind(func() {
		e.Quit()
		<-done
	})

	exitCode := 0
	if err := e.Initialize(); err != nil {
		core.LogError("failed to initialize: %s", err)
		exitCode = 1
	} else if err := e.Run(); err != nil {
		core.LogError("engine stopped: %s", err)
		exitCode = 1
	}
	if err := e.Shutdown(); err != nil {
		core.LogError("failed to shut down: %s", err)
	}
	close(done)
	closer.Exit(exitCode)
}
