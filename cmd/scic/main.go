package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/tebeka/atexit"

	"github.com/zurustar/scic/pkg/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	atexit.Register(stop)

	application := app.New()
	if err := application.Run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		atexit.Exit(1)
	}
	atexit.Exit(0)
}
