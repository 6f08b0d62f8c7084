package main

import (
	"context"
	"fmt"
	"github.com/lefinal/pug-server/app"
	"github.com/lefinal/pug-server/errors"
	"github.com/spf13/pflag"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	configPath := pflag.StringP("config", "c", "config.yaml", "path to the config file")
	pflag.Parse()
	config, err := app.LoadConfig(*configPath)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, errors.Prettify(err))
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = app.NewApp(config).Boot(ctx)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, errors.Prettify(err))
		stop()
		os.Exit(1)
	}
}
