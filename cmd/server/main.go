package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/BioHazard786/warpmesh/internal/config"
	"github.com/BioHazard786/warpmesh/internal/logging"
	"github.com/BioHazard786/warpmesh/internal/metrics"
	"github.com/BioHazard786/warpmesh/internal/server"
	"github.com/BioHazard786/warpmesh/internal/signaling"
	"github.com/BioHazard786/warpmesh/internal/version"
)

const shutdownTimeout = 5 * time.Second

func main() {
	var flags config.Flags
	flags.AddFlags(flag.CommandLine)
	showVersion := flag.BoolP("version", "v", false, "Print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Version)
		return
	}

	conf, err := config.Load(flags.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	flags.Apply(&conf)

	log := logging.New(conf.Log.Debug)
	if conf.Log.Console {
		log = logging.NewConsole(conf.Log.Debug, "signal", conf.Log.NoColor)
	}
	log.Info().Str("version", version.Version).Msg("starting signaling server")
	log.Debug().Interface("config", conf).Msg("loaded config")

	if err := run(conf, log); err != nil {
		log.Fatal().Err(err).Msg("signaling server failed")
	}
}

func run(conf config.Config, log *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	policy := signaling.MultiRoom
	if conf.Signaling.SingleRoom {
		policy = signaling.SingleRoom
	}
	hub := signaling.NewHub(signaling.Config{
		Policy:         policy,
		SendBuffer:     conf.Signaling.SendBuffer,
		WriteWait:      conf.Signaling.WriteWait,
		PongWait:       conf.Signaling.PongWait,
		MaxMessageSize: conf.Signaling.MaxMessageSize,
	}, log, m)

	hubCtx, stopHub := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		hub.Run(hubCtx)
		close(hubDone)
	}()

	handler := server.NewHandler(hub, log, server.Options{
		ReadBufferSize:  conf.Server.ReadBufferSize,
		WriteBufferSize: conf.Server.WriteBufferSize,
	})
	srv, err := server.New("signal", conf.Server.Address, handler, log)
	if err != nil {
		stopHub()
		return err
	}
	srv.Run()

	var mon *server.Server
	if conf.Monitoring.Enabled() {
		if mon, err = server.NewMonitoring(conf.Monitoring, m, log); err != nil {
			log.Error().Err(err).Msg("monitoring server disabled")
		} else {
			mon.Run()
		}
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// the hub closes the websockets, which Shutdown does not track
	stopHub()
	<-hubDone
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("signal server shutdown")
	}
	if mon != nil {
		if err := mon.Shutdown(sctx); err != nil {
			log.Error().Err(err).Msg("monitoring server shutdown")
		}
	}
	return nil
}
