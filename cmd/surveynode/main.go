package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/vocdoni/arbo/memdb"
	"github.com/vocdoni/encrypted-survey/config"
	"github.com/vocdoni/encrypted-survey/log"
	"github.com/vocdoni/encrypted-survey/service"
	"github.com/vocdoni/encrypted-survey/storage"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"
)

func main() {
	cfg, err := config.Load("surveynode", os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	log.Init(cfg.LogLevel, cfg.LogOutput, nil)

	var database db.Database
	if cfg.DataDir == "" {
		log.Warn("no data directory, the node state is kept in memory")
		database = memdb.New()
	} else {
		database, err = metadb.New(db.TypePebble, filepath.Join(cfg.DataDir, "db"))
		if err != nil {
			log.Fatal(err)
		}
	}

	ledgers, err := service.NewLedger(storage.New(database), cfg.Gateway())
	if err != nil {
		log.Fatal(err)
	}
	defer ledgers.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	api := service.NewAPI(ledgers.Registry(), ledgers.Gateway(), cfg.Host, cfg.Port)
	if err := api.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer api.Stop()
	host, port := api.HostPort()
	log.Infow("survey node started", "host", host, "port", port, "datadir", cfg.DataDir)

	// log the activity of the surveys
	monitor := service.NewSurveyMonitor(ledgers.Registry(), 2*time.Second)
	if err := monitor.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer monitor.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-monitor.Events():
				log.Infow("survey event", "survey", ev.Survey.Hex(), "seq", ev.Seq, "kind", string(ev.Kind))
			}
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
}
