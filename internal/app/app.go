// Package app wires configuration, logging and metrics around a node.
package app

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/ryandielhenn/glomers/internal/config"
	"github.com/ryandielhenn/glomers/internal/logging"
	"github.com/ryandielhenn/glomers/internal/telemetry"
	"github.com/ryandielhenn/glomers/pkg/node"
	"github.com/ryandielhenn/glomers/pkg/proto"
)

// Version is overridden at build time with -ldflags "-X ...app.Version=...".
var Version = "dev"

// Options holds CLI options shared by every node binary.
type Options struct {
	ConfigPath string
}

// ParseFlags parses CLI flags from args.
func ParseFlags(kind string, args []string) (Options, error) {
	fs := flag.NewFlagSet(kind, flag.ContinueOnError)
	var opts Options
	fs.StringVar(&opts.ConfigPath, "config", "", "Path to YAML config file")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	return opts, nil
}

// Run hosts one node kind on stdin/stdout until the input closes.
// Any returned error is fatal and has already been logged.
func Run[P proto.Payload](kind string, args []string, stdin io.Reader, stdout io.Writer, codec *proto.Codec[P], factory node.Factory[P]) error {
	opts, err := ParseFlags(kind, args)
	if err != nil {
		return err
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	log, err := logging.Setup(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("kind", kind))

	telemetry.SetBuildInfo(kind, Version)
	if cfg.Metrics.Listen != "" {
		shutdown, _, err := telemetry.Serve(cfg.Metrics.Listen, log)
		if err != nil {
			log.Error("metrics listen failed", zap.Error(err))
			return fmt.Errorf("metrics: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = shutdown(ctx)
		}()
	}

	n := node.New(codec, stdin, stdout, node.WithLogger(log))
	err = n.Run(func(info proto.Init) (node.Handler[P], error) {
		h, err := factory(info)
		if err != nil {
			return nil, err
		}
		return telemetry.Instrument(h), nil
	})
	if err != nil {
		log.Error("node stopped", zap.Error(err))
		return err
	}
	return nil
}
