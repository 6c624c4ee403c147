package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"subspace-client/chains/subspace"
	"subspace-client/config"
	"subspace-client/shared/cache"
	"subspace-client/shared/substrate"

	log "github.com/ChainSafe/log15"
	"github.com/urfave/cli/v2"
)

var app = cli.NewApp()

var cliFlags = []cli.Flag{
	config.ConfigFileFlag,
	config.VerbosityFlag,
	config.KeystorePathFlag,
	config.NetworkFlag,
	config.NetuidFlag,
	config.KeyFlag,
	config.MaxAgeFlag,
	config.WaitFlag,
}

var accountFlags = []cli.Flag{
	config.KeystorePathFlag,
}

var importFlags = []cli.Flag{
	config.KeystorePathFlag,
	config.AliasFlag,
}

var accountCommand = cli.Command{
	Name:        "accounts",
	Usage:       "manage keys",
	Description: "The accounts command is used to manage the local key ring.\n",
	Subcommands: []*cli.Command{
		{
			Action: handleGenerateCmd,
			Name:   "gen",
			Usage:  "generate a key under an alias",
			Flags:  importFlags,
			Description: "The gen subcommand generates an ed25519 key.\n" +
				"\tkeystore path and alias should be given.",
		}, {
			Action: handleImportCmd,
			Name:   "import",
			Usage:  "import a key from a hex seed",
			Flags:  importFlags,
			Description: "The import subcommand stores the key of a 32 byte hex seed.\n" +
				"\tkeystore path and alias should be given.",
		}, {
			Action:      handleListCmd,
			Name:        "list",
			Usage:       "list local keys",
			Flags:       accountFlags,
			Description: "The list subcommand prints every alias with its address.\n",
		},
	},
}

var archiveCommand = cli.Command{
	Name:        "archive",
	Usage:       "save chain state snapshots periodically",
	Description: "The archive command saves every subnet and the balances each interval until interrupted.\n",
	Action:      runArchive,
}

var cacheCommand = cli.Command{
	Name:        "clear-cache",
	Usage:       "drop the cached snapshots of the network",
	Description: "The clear-cache command removes every cached snapshot of the selected network.\n",
	Action:      runClearCache,
}

// init initializes CLI
func init() {
	app.Action = run
	app.Copyright = "Copyright 2021 Stafi Protocol Authors"
	app.Name = "subspaced"
	app.Usage = "subspace chain client"
	app.ArgsUsage = "<function|module function|remote module> [args...]"
	app.Authors = []*cli.Author{{Name: "Stafi Protocol 2021"}}
	app.Version = "1.0.0"
	app.EnableBashCompletion = true
	app.Commands = []*cli.Command{
		&accountCommand,
		&archiveCommand,
		&cacheCommand,
	}

	app.Flags = append(app.Flags, cliFlags...)
}

func main() {
	if err := app.Run(os.Args); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func startLogger(ctx *cli.Context) error {
	logger := log.Root()
	var lvl log.Lvl

	if lvlToInt, err := strconv.Atoi(ctx.String(config.VerbosityFlag.Name)); err == nil {
		lvl = log.Lvl(lvlToInt)
	} else if lvl, err = log.LvlFromString(ctx.String(config.VerbosityFlag.Name)); err != nil {
		return err
	}

	logger.SetHandler(log.MultiHandler(
		log.LvlFilterHandler(
			lvl,
			log.StreamHandler(os.Stderr, log.LogfmtFormat())),
		log.Must.FileHandler("subspace_log.json", log.JsonFormat()),
		log.LvlFilterHandler(
			log.LvlError,
			log.Must.FileHandler("subspace_log_errors.json", log.JsonFormat()))))

	return nil
}

func newClient(ctx *cli.Context) (*subspace.Client, *config.Config, error) {
	if err := startLogger(ctx); err != nil {
		return nil, nil, err
	}
	cfg, err := config.GetConfig(ctx)
	if err != nil {
		return nil, nil, err
	}
	logger := log.Root().New("network", cfg.Network)

	store, err := cache.NewSQLiteStore(cfg.CachePath)
	if err != nil {
		return nil, nil, err
	}
	dial := substrate.NewDialer(cfg.AddressType, cfg.SubmitTimeout, logger.New("module", "rpc"))
	client, err := subspace.NewClient(cfg, dial, store, logger)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return client, cfg, nil
}

func run(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return cli.ShowAppHelp(ctx)
	}
	client, cfg, err := newClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	router := newRouter(client, cfg, ctx, log.Root().New("module", "router"))
	result, err := router.Dispatch(ctx.Args().Slice())
	if err != nil {
		return err
	}
	return printResult(result)
}

func runArchive(ctx *cli.Context) error {
	client, cfg, err := newClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	sysErr := make(chan error, 1)
	archiver := subspace.NewArchiver(client, cfg.ArchiveInterval, log.Root().New("module", "archiver"), sysErr)
	archiver.Start()
	defer archiver.Stop()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigc)

	select {
	case err := <-sysErr:
		log.Error("FATAL ERROR. Shutting down.", "err", err)
		return err
	case <-sigc:
		log.Warn("Interrupt received, shutting down now.")
		return nil
	}
}

func runClearCache(ctx *cli.Context) error {
	client, _, err := newClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()
	n, err := client.ClearCache()
	if err != nil {
		return err
	}
	log.Info("cache cleared", "network", client.Network().Name, "entries", n)
	return nil
}

func printResult(result interface{}) error {
	bz, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(bz))
	return nil
}
