package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/rtm0/erawp/internal/catalog"
	"github.com/rtm0/erawp/internal/ecmwf"
	"github.com/rtm0/erawp/internal/mars"
)

var (
	preset       = flag.String("preset", "", "name of a built-in request: "+strings.Join(mars.PresetNames(), ", "))
	requestsFile = flag.String("requests", "", "path to a YAML file with a list of requests to submit one after another")
	date         = flag.String("date", "", "overrides the date keyword of a preset")
	target       = flag.String("target", "", "overrides the target file of a preset")
	apiURL       = flag.String("url", "", "ECMWF web API url. Default: $"+ecmwf.EnvURL+", ~/.ecmwfapirc or "+ecmwf.DefaultURL)
	apiKey       = flag.String("key", "", "ECMWF web API key. Default: $"+ecmwf.EnvKey+" or ~/.ecmwfapirc")
	apiEmail     = flag.String("email", "", "ECMWF account email. Default: $"+ecmwf.EnvEmail+" or ~/.ecmwfapirc")
	envFile      = flag.String("env", "", "optional dotenv file with ECMWF_API_* variables")
	rcFile       = flag.String("rc", ecmwf.DefaultRCPath(), "path to the JSON credentials file")
	pollInterval = flag.Duration("pollInterval", 5*time.Second, "status poll interval when the server does not suggest one")
	progress     = flag.Bool("progress", false, "show a progress bar while downloading")
	catalogDSN   = flag.String("catalogDsn", "", "optional Postgres DSN of the retrieval catalog")
)

func main() {
	flag.Parse()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.Error("Retrieval failed", "err", fmt.Sprintf("%+v", err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	reqs, err := requests()
	if err != nil {
		return err
	}

	cfg, err := ecmwf.LoadConfig(ecmwf.Config{URL: *apiURL, Key: *apiKey, Email: *apiEmail}, *envFile, *rcFile)
	if err != nil {
		return err
	}
	cli, err := ecmwf.NewClient(logger, cfg, ecmwf.Options{PollInterval: *pollInterval, Progress: *progress})
	if err != nil {
		return errors.Wrap(err, "could not create API client")
	}

	var cat *catalog.Catalog
	if *catalogDSN != "" {
		cat, err = catalog.Open(ctx, *catalogDSN)
		if err != nil {
			return err
		}
		defer cat.Close()
	}

	for i, req := range reqs {
		logger.Info("Submitting request", append([]any{"n", i + 1, "of", len(reqs)}, req.Summary()...)...)
		start := time.Now()
		res, err := cli.Retrieve(ctx, req)
		if err != nil {
			return errors.Wrapf(err, "retrieval of %q failed", req.Target())
		}
		logger.Info("Retrieved", "target", req.Target(), "size", ecmwf.ByteCount(res.Size), "in", time.Since(start).Round(time.Second))
		if cat != nil {
			if err := cat.Record(ctx, req, res); err != nil {
				return err
			}
		}
	}
	return nil
}

// requests builds the list of requests from the command line.
func requests() ([]mars.Request, error) {
	switch {
	case *requestsFile != "" && *preset != "":
		return nil, errors.New("-preset and -requests are mutually exclusive")
	case *requestsFile != "":
		if *date != "" || *target != "" {
			return nil, errors.New("-date and -target only apply to -preset")
		}
		return mars.LoadFile(*requestsFile)
	case *preset != "":
		req, err := mars.Preset(*preset)
		if err != nil {
			return nil, err
		}
		if *date != "" {
			req = req.With(mars.KeyDate, *date)
		}
		if *target != "" {
			req = req.With(mars.KeyTarget, *target)
		}
		return []mars.Request{req}, nil
	}
	return nil, errors.New("either -preset or -requests must be given")
}
