// Command prepflowd serves the prepflow data-preparation and modeling
// pipelines over HTTP. All datasets and artifacts live in memory for the
// lifetime of the process.
package main

import (
	"flag"
	"net/http"
	"os"

	"github.com/YuminosukeSato/prepflow/api"
	"github.com/YuminosukeSato/prepflow/cleaning"
	"github.com/YuminosukeSato/prepflow/dataset"
	"github.com/YuminosukeSato/prepflow/pipeline"
	"github.com/YuminosukeSato/prepflow/pkg/log"
	"github.com/YuminosukeSato/prepflow/store"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	level := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	log.Setup(*level, os.Stderr)

	registry := dataset.NewRegistry(nil)
	cleaners := store.New[*cleaning.Artifact]("cleaner")
	models := store.New[*pipeline.ModelArtifact]("model")
	server := api.NewServer(registry, cleaners, models)

	lg := log.L()
	lg.Info().Str("addr", *addr).Msg("prepflowd listening")
	if err := http.ListenAndServe(*addr, server.Routes()); err != nil {
		lg.Fatal().Err(err).Msg("server stopped")
	}
}
