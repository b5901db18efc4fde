package main

import (
	"context"
	"fmt"
	"os"

	"github.com/akamensky/argparse"
	"github.com/coreos/go-systemd/daemon"
	"github.com/cyclopcam/yorubaocr/pkg/gcplog"
	"github.com/cyclopcam/yorubaocr/pkg/nnload"
	"github.com/cyclopcam/yorubaocr/server"
	"github.com/cyclopcam/yorubaocr/server/config"
)

func main() {
	parser := argparse.NewParser("yorubaocr", "Yoruba text recognition service")
	configFile := parser.String("c", "config", &argparse.Options{Help: "Config file path", Default: config.DefaultFilename})
	listen := parser.String("", "listen", &argparse.Options{Help: "Override the listen address in the config file, eg :8080", Default: ""})
	strict := parser.Flag("", "strict", &argparse.Options{Help: "Crash on internal pipeline errors (development)", Default: false})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := gcplog.NewLog()
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	if *strict {
		cfg.Strict = true
	}

	shutdownRuntime, err := nnload.InitRuntime(cfg.Model.Path, cfg.Model.OnnxLibrary)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	defer shutdownRuntime()

	srv, err := server.NewServer(logger, cfg, nnload.Loader(logger))
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	// Predictions resolve with "model not loaded" until this finishes
	if err := srv.StartModel(context.Background()); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	srv.ListenForKillSignals()

	// Tell systemd that we're alive.
	daemon.SdNotify(false, daemon.SdNotifyReady)

	if err := srv.ListenHTTP(*listen); err != nil {
		logger.Infof("ListenHTTP returned: %v", err)
	}
}
