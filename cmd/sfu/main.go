package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/brook-video/brook/pkg/config"
	"github.com/brook-video/brook/pkg/profiling"
	"github.com/brook-video/brook/pkg/room"
	"github.com/brook-video/brook/pkg/server"
	"github.com/brook-video/brook/pkg/telemetry"
	"github.com/brook-video/brook/pkg/webrtc_ext"
)

func main() {
	// Parse command line flags.
	var (
		configFilePath = flag.String("config", "config.yaml", "configuration file path")
		cpuProfile     = flag.String("cpuProfile", "", "write CPU profile to `file`")
		memProfile     = flag.String("memProfile", "", "write memory profile to `file`")
	)
	flag.Parse()

	// Initialize logging subsystem (formatting, global logging framework etc).
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})

	// The profiles are written once the server has shut down.
	if *cpuProfile != "" {
		defer profiling.InitCPUProfiling(cpuProfile)()
	}
	if *memProfile != "" {
		defer profiling.InitMemoryProfiling(memProfile)()
	}

	// Load the config file from the environment variable or path.
	config, err := config.LoadConfig(*configFilePath)
	if err != nil {
		logrus.WithError(err).Fatal("could not load config")
	}

	switch config.LogLevel {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	case "fatal":
		logrus.SetLevel(logrus.FatalLevel)
	case "panic":
		logrus.SetLevel(logrus.PanicLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}

	// Shut down gracefully on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flushTraces, err := telemetry.Setup(ctx, config.Telemetry)
	if err != nil {
		logrus.WithError(err).Fatal("could not set up telemetry")
	}
	defer func() {
		if err := flushTraces(context.Background()); err != nil {
			logrus.WithError(err).Error("failed to flush traces")
		}
	}()

	factory, err := webrtc_ext.NewPeerConnectionFactory(config.WebRTC)
	if err != nil {
		logrus.WithError(err).Fatal("could not create peer connection factory")
	}

	if err := server.New(config.Listen, room.NewRegistry(), factory).Run(ctx); err != nil {
		logrus.WithError(err).Error("server failed")
	}
}
