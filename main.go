package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zonawifi/portero/cdrwriter"
	"github.com/zonawifi/portero/core"
	"github.com/zonawifi/portero/handler"
	"github.com/zonawifi/portero/httphandler"
	"github.com/zonawifi/portero/nasregistry"
	"github.com/zonawifi/portero/radiusserver"
	"github.com/zonawifi/portero/sessions"
	"github.com/zonawifi/portero/sessionstore"
)

func main() {

	// Get the command line arguments
	basePtr := flag.String("base", "", "Base location of the configuration resources")
	instancePtr := flag.String("instance", "", "Name of instance")

	flag.Parse()

	// Local overrides for the environment, mainly the database url with its
	// credentials. Absence of the file is not an error
	godotenv.Load()

	core.InitPorteroConfigInstance(*basePtr, *instancePtr, true)
	cfg := core.GetPorteroConfig().PorteroConf()
	logger := core.GetLogger()

	// The store is the authoritative state. Nothing can be served without it
	store, err := sessionstore.Open(cfg.Database.Driver, cfg.Database.Url, cfg.Database.MaxOpenConns)
	if err != nil {
		logger.Fatalf("could not open the session store: %s", err)
	}

	// The sqlite driver is used for lab setups. Production runs on mysql, with
	// the schema provisioned from resources/schema.sql
	if cfg.Database.Driver == "sqlite3" {
		if err := store.EnsureSchema(context.Background()); err != nil {
			logger.Fatalf("could not create the schema: %s", err)
		}
	}

	// Secrets must be in place before the first datagram arrives
	registry := nasregistry.NewRegistry(store)
	if err := registry.Reload(context.Background()); err != nil {
		logger.Fatalf("could not load the nas registry: %s", err)
	}

	authorizer := sessions.NewAuthorizer(store, cfg.AuthFloorSeconds)
	manager := sessions.NewLifecycleManager(store)

	var cdrWriter *cdrwriter.FileCDRWriter
	var handlerCDRWriter handler.CDRWriter
	if cfg.CdrDirectory != "" {
		cdrWriter = cdrwriter.NewFileCDRWriter(cfg.CdrDirectory, cfg.CdrFileNameFormat, cdrwriter.NewJSONFormat(nil, nil), cfg.CdrRotateSeconds)
		handlerCDRWriter = cdrWriter
	}

	radiusHandler := handler.NewRadiusHandler(authorizer, handlerCDRWriter)

	authServer := radiusserver.NewRadiusServer(registry, cfg.BindAddress, cfg.AuthPort, radiusHandler.Handle)
	acctServer := radiusserver.NewRadiusServer(registry, cfg.BindAddress, cfg.AcctPort, radiusHandler.Handle)

	metricsServer := core.NewMetricsServer(cfg.MetricsBindAddress, cfg.MetricsPort)
	httpHandler := httphandler.NewHttpHandler(cfg.HttpBindAddress, cfg.HttpPort, authorizer)

	// Background jobs
	jobsCtx, cancelJobs := context.WithCancel(context.Background())
	go registry.Run(jobsCtx, time.Duration(cfg.RegistryReloadIntervalSeconds)*time.Second)
	go manager.Run(jobsCtx, time.Duration(cfg.SweepIntervalSeconds)*time.Second)

	logger.Infof("portero started")

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	<-signalChan

	logger.Infof("shutting down")

	// Stop taking new work first, then drain, in reverse build order, bounded
	// by the configured grace period
	doneChan := make(chan struct{})
	go func() {
		cancelJobs()
		authServer.Close()
		acctServer.Close()
		httpHandler.Close()
		metricsServer.Close()
		if cdrWriter != nil {
			cdrWriter.Close()
		}
		store.Close()
		close(doneChan)
	}()

	select {
	case <-doneChan:
		logger.Infof("shutdown complete")
	case <-time.After(time.Duration(cfg.ShutdownGraceSeconds) * time.Second):
		logger.Warnf("shutdown grace period expired")
	}

	logger.Sync()
}
