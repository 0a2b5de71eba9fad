// versealign serves and queries parallel-aligned scripture corpora
package main

import (
	"github.com/alecthomas/kong"

	"github.com/nainya/versealign/internal/config"
	"github.com/nainya/versealign/internal/logger"
)

// CLI defines the command-line interface using Kong
var CLI struct {
	Config   string `name:"config" short:"c" help:"Config file (YAML)" type:"path"`
	DataRoot string `name:"data-root" help:"Directory holding corpus shards (overrides config)"`
	BaseURL  string `name:"base-url" help:"HTTP base URL for corpus shards (overrides data root)"`
	LogLevel string `name:"log-level" help:"Log level: debug, info, warn, error"`
	Pretty   bool   `name:"pretty" help:"Human-readable log output"`

	Serve   ServeCmd   `cmd:"" help:"Run the gRPC alignment service"`
	Search  SearchCmd  `cmd:"" help:"Search a corpus and print matching verses"`
	Show    ShowCmd    `cmd:"" help:"Show a verse and its neighbors by reference"`
	Resolve ResolveCmd `cmd:"" help:"Resolve an alignment unit to token ids"`
	Media   MediaCmd   `cmd:"" help:"Look up multimedia manifest entries"`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("versealign"),
		kong.Description("Alignment resolution for parallel-aligned scripture corpora"),
		kong.UsageOnError(),
	)

	cfg, err := loadConfig()
	ctx.FatalIfErrorf(err)

	logger.InitGlobalLogger(cfg.LoggerConfig())

	err = ctx.Run(&app{cfg: cfg, log: logger.GetGlobalLogger()})
	ctx.FatalIfErrorf(err)
}

func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if CLI.Config != "" {
		var err error
		if cfg, err = config.Load(CLI.Config); err != nil {
			return nil, err
		}
	}

	if CLI.DataRoot != "" {
		cfg.DataRoot = CLI.DataRoot
	}
	if CLI.BaseURL != "" {
		cfg.BaseURL = CLI.BaseURL
	}
	if CLI.LogLevel != "" {
		cfg.Log.Level = CLI.LogLevel
	}
	if CLI.Pretty {
		cfg.Log.Pretty = true
	}
	return cfg, cfg.Validate()
}
