package cli

import (
	"io"

	"github.com/layer-3/zeroturbo/client"
	"github.com/layer-3/zeroturbo/config"
	"github.com/layer-3/zeroturbo/logger"
	"go.uber.org/zap"
)

// app is the session wiring shared by the commands that talk to a deployment
type app struct {
	cfg     *config.Client
	log     *zap.Logger
	session *client.Session
	// scoped holds the pending challenge for the length of one command
	scoped client.Storage
}

func newApp(opts *RootOptions, out io.Writer) (*app, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}

	logCfg := cfg.Log.ForStage(cfg.Stage)
	if !opts.Verbose {
		logCfg.Level = "warn"
	}
	log := logger.New(logCfg)

	path := cfg.CredentialsFile
	if path == "" {
		path, err = client.DefaultCredentialsFile()
		if err != nil {
			return nil, err
		}
	}

	scoped := client.NewMemoryStorage()
	session := client.NewSession(
		client.NewClient(cfg.ClientID, cfg.AuthURL, nil),
		client.NewAccountFetcher(cfg.APIURL, nil),
		&browserNavigator{out: out, open: opts.open},
		client.Options{
			RedirectURI: cfg.RedirectURI(),
			Durable:     client.NewFileStorage(path),
			Scoped:      scoped,
		},
		log,
	)

	return &app{cfg: cfg, log: log, session: session, scoped: scoped}, nil
}
