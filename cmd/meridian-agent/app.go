package main

import (
	"context"
	"fmt"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"goa.design/clue/log"

	llmprovider "github.com/haowjy/meridian-agent-go"
	"github.com/haowjy/meridian-agent-go/agent"
	"github.com/haowjy/meridian-agent-go/config"
	"github.com/haowjy/meridian-agent-go/feature"
	"github.com/haowjy/meridian-agent-go/observer/natsobs"
	"github.com/haowjy/meridian-agent-go/preview"
	"github.com/haowjy/meridian-agent-go/providers/anthropic"
	"github.com/haowjy/meridian-agent-go/providers/lorem"
	"github.com/haowjy/meridian-agent-go/store"
	"github.com/haowjy/meridian-agent-go/tools"
)

// app wires the engine and its collaborators from configuration.
type app struct {
	cfg      *config.Config
	store    *store.Memory
	engine   *agent.Engine
	features *feature.Registry
	preview  *preview.Manager

	nc *nats.Conn
	ns *server.Server
	js jetstream.JetStream
}

func newApp(ctx context.Context, cfg *config.Config, withNATS bool) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	provider, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:   cfg,
		store: store.NewMemory(),
		preview: preview.NewManager(preview.Options{
			Command:   cfg.Preview.Command,
			Dir:       cfg.Preview.Dir,
			URL:       cfg.Preview.URL,
			StopGrace: cfg.Preview.StopGrace,
		}),
	}
	if withNATS {
		if err := a.connect(ctx); err != nil {
			return nil, err
		}
	}

	deps := tools.Deps{
		Ideas:   a.store,
		Files:   a.store,
		Notes:   a.store,
		Web:     tools.NewLoremSearcher(),
		Preview: a.preview,
	}
	if a.nc != nil {
		deps.DOM = natsobs.NewDOMBridge(a.nc, cfg.NATS.Prefix, 0)
	}
	router, err := tools.NewRouter(deps)
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	sources := feature.Sources{Ideas: a.store, Files: a.store}
	if cfg.ProfilesFile != "" {
		a.features, err = feature.LoadFile(cfg.ProfilesFile, sources)
	} else {
		a.features, err = feature.Load(sources)
	}
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	a.engine = agent.NewEngine(provider, router, cfg.AgentOptions(), agent.WithSnapshotter(a.store))
	return a, nil
}

func newProvider(cfg *config.Config) (llmprovider.Provider, error) {
	id, err := llmprovider.ParseProviderID(cfg.Provider)
	if err != nil {
		return nil, err
	}
	switch id {
	case llmprovider.ProviderAnthropic:
		p, err := anthropic.NewProvider(cfg.AnthropicAPIKey)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return lorem.NewProviderWithOptions(lorem.Options{
			ToolRounds:        cfg.Lorem.ToolRounds,
			ToolCallsPerRound: cfg.Lorem.ToolCallsPerRound,
			WordsPerBlock:     20,
		}), nil
	}
}

// connect dials the configured NATS server, or starts an embedded one.
func (a *app) connect(ctx context.Context) error {
	var err error
	switch {
	case a.cfg.NATS.URL != "":
		a.nc, err = nats.Connect(a.cfg.NATS.URL, nats.Name("meridian-agent"))
	case a.cfg.NATS.Embedded:
		if a.ns, err = natsobs.StartEmbedded(ctx, a.cfg.NATS.StoreDir); err == nil {
			a.nc, err = natsobs.ConnectInProcess(a.ns)
		}
	default:
		return fmt.Errorf("nats: set nats.url or nats.embedded")
	}
	if err != nil {
		a.close(ctx)
		return fmt.Errorf("nats: %w", err)
	}

	if a.cfg.NATS.StoreDir != "" || a.cfg.NATS.URL != "" {
		js, err := jetstream.New(a.nc)
		if err != nil {
			a.close(ctx)
			return fmt.Errorf("jetstream: %w", err)
		}
		if _, err := natsobs.SetupStream(ctx, js, a.cfg.NATS.Prefix, 0); err != nil {
			log.Warn(ctx, log.KV{K: "msg", V: "event stream unavailable, publishing without persistence"},
				log.KV{K: "err", V: err.Error()})
		} else {
			a.js = js
		}
	}
	return nil
}

func (a *app) observer(exchangeID string) (*natsobs.Observer, error) {
	if a.nc == nil {
		return nil, nil
	}
	opts := []natsobs.Option{natsobs.WithPrefix(a.cfg.NATS.Prefix)}
	if a.js != nil {
		opts = append(opts, natsobs.WithJetStream(a.js))
	}
	return natsobs.New(a.nc, exchangeID, opts...)
}

func (a *app) close(ctx context.Context) {
	if _, err := a.preview.Stop(ctx); err != nil {
		log.Error(ctx, err, log.KV{K: "msg", V: "stopping preview"})
	}
	if a.nc != nil || a.ns != nil {
		if err := natsobs.Shutdown(ctx, a.nc, a.ns); err != nil {
			log.Error(ctx, err, log.KV{K: "msg", V: "nats shutdown"})
		}
	}
}
