package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/huahuahua1223/w3a-mpc/backup"
	"github.com/huahuahua1223/w3a-mpc/chainrpc"
	"github.com/huahuahua1223/w3a-mpc/common"
	"github.com/huahuahua1223/w3a-mpc/drive"
	"github.com/huahuahua1223/w3a-mpc/factor"
	"github.com/huahuahua1223/w3a-mpc/interfaces"
	"github.com/huahuahua1223/w3a-mpc/session"
	"github.com/huahuahua1223/w3a-mpc/store"
	"github.com/huahuahua1223/w3a-mpc/tkms"
)

var flags []cli.Flag = []cli.Flag{
	&cli.StringFlag{
		Name:  "store-uri",
		Value: "gdrive://appdata",
		Usage: "backup store location: gdrive://, s3://, vault:// or file://",
	},
	&cli.StringFlag{
		Name:  "tkms-addr",
		Value: "local",
		Usage: "threshold-key service address, or 'local' for the in-memory service",
	},
	&cli.StringFlag{
		Name:  "rpc-addr",
		Value: "http://127.0.0.1:8545",
		Usage: "address to connect to Ethereum RPC",
	},
	&cli.StringFlag{
		Name:    "oauth-client-id",
		Value:   "",
		Usage:   "OAuth client id for the gdrive store",
		EnvVars: []string{"WALLET_OAUTH_CLIENT_ID"},
	},
	&cli.StringFlag{
		Name:    "oauth-client-secret",
		Value:   "",
		Usage:   "OAuth client secret for the gdrive store",
		EnvVars: []string{"WALLET_OAUTH_CLIENT_SECRET"},
	},
	&cli.StringFlag{
		Name:  "oauth-listen-addr",
		Value: "127.0.0.1:0",
		Usage: "loopback address for the OAuth redirect server",
	},
	&cli.BoolFlag{
		Name:  "log-json",
		Value: false,
		Usage: "log in JSON format",
	},
	&cli.BoolFlag{
		Name:  "log-debug",
		Value: false,
		Usage: "log debug messages",
	},
	&cli.BoolFlag{
		Name:  "log-uid",
		Value: false,
		Usage: "generate a uuid and add to all log messages",
	},
	&cli.StringFlag{
		Name:  "log-service",
		Value: "wallet",
		Usage: "add 'service' tag to logs",
	},
}

// wallet holds the wired components shared by all subcommands.
type wallet struct {
	log          *slog.Logger
	svc          interfaces.ThresholdKeyService
	factors      *factor.Manager
	orchestrator *backup.Orchestrator
}

func build(cCtx *cli.Context) (*wallet, error) {
	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   cCtx.Bool("log-debug"),
		JSON:    cCtx.Bool("log-json"),
		Service: cCtx.String("log-service"),
		Version: common.Version,
	})
	if cCtx.Bool("log-uid") {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}

	var svc interfaces.ThresholdKeyService
	if addr := cCtx.String("tkms-addr"); addr == "local" {
		local, err := tkms.NewLocalService(logger)
		if err != nil {
			return nil, err
		}
		svc = local
	} else {
		svc = tkms.NewClient(addr, logger)
	}

	prompt := newTerminalPrompt()
	factors := factor.NewManager(svc, prompt, logger)

	storeURI := cCtx.String("store-uri")
	var tokens interfaces.TokenSource
	if strings.HasPrefix(storeURI, "gdrive://") {
		authorizer := &drive.LoopbackAuthorizer{
			ClientID:     cCtx.String("oauth-client-id"),
			ClientSecret: cCtx.String("oauth-client-secret"),
			Scope:        drive.Scope,
			ListenAddr:   cCtx.String("oauth-listen-addr"),
			Log:          logger,
		}
		tokens = drive.NewCachedTokenSource(authorizer.Acquire, logger)
	}

	backupStore, err := store.NewFactory(logger, tokens).StoreFor(storeURI)
	if err != nil {
		return nil, err
	}

	return &wallet{
		log:          logger,
		svc:          svc,
		factors:      factors,
		orchestrator: backup.NewOrchestrator(backupStore, tokens, factors, prompt, logger),
	}, nil
}

func main() {
	app := &cli.App{
		Name:           "wallet",
		Usage:          "Manage threshold-wallet recovery factors and encrypted remote backups",
		Flags:          flags,
		DefaultCommand: "status",
		Commands: []*cli.Command{
			{
				Name:  "status",
				Usage: "Show session status and enrolled factors",
				Action: func(cCtx *cli.Context) error {
					w, err := build(cCtx)
					if err != nil {
						return err
					}
					if err := w.svc.Resync(cCtx.Context); err != nil {
						return err
					}
					fmt.Println("status:", string(w.svc.Status()))

					details, err := w.factors.FetchKeyDetails(cCtx.Context)
					if err != nil {
						return err
					}
					fmt.Printf("threshold: %d/%d, required factors: %d\n",
						details.Threshold, details.TotalFactors, details.RequiredFactors)
					for _, f := range factor.ParseDescriptors(details.ShareDescriptions) {
						fmt.Printf("  %s  module=%s  added=%s\n", f.PubKey, f.Module, f.DateAdded.Format(time.RFC3339))
					}
					return nil
				},
			},
			{
				Name:  "key-details",
				Usage: "Show the threshold scheme composition",
				Action: func(cCtx *cli.Context) error {
					w, err := build(cCtx)
					if err != nil {
						return err
					}
					details, err := w.factors.FetchKeyDetails(cCtx.Context)
					if err != nil {
						return err
					}
					fmt.Printf("key type: %s\n", details.KeyType)
					fmt.Printf("threshold: %d/%d, required factors: %d\n",
						details.Threshold, details.TotalFactors, details.RequiredFactors)
					for _, f := range factor.ParseDescriptors(details.ShareDescriptions) {
						fmt.Printf("  %s  module=%s  shareIndex=%d  added=%s\n",
							f.PubKey, f.Module, f.ShareIndex, f.DateAdded.Format(time.RFC3339))
					}
					return nil
				},
			},
			{
				Name:  "enable-mfa",
				Usage: "Enable multi-factor authentication and print the backup mnemonic",
				Action: func(cCtx *cli.Context) error {
					w, err := build(cCtx)
					if err != nil {
						return err
					}
					if _, err := w.factors.EnableMultiFactor(cCtx.Context); err != nil {
						return err
					}
					fmt.Println("Write down the recovery phrase:")
					fmt.Println(w.factors.LastCreatedMnemonic())
					return nil
				},
			},
			{
				Name:  "create-recovery",
				Usage: "Create a seed-phrase recovery factor and print its mnemonic",
				Action: func(cCtx *cli.Context) error {
					w, err := build(cCtx)
					if err != nil {
						return err
					}
					mnemonic, err := w.factors.CreateRecoveryFactor(cCtx.Context)
					if err != nil {
						return err
					}
					fmt.Println("Write down the recovery phrase:")
					fmt.Println(mnemonic)
					return nil
				},
			},
			{
				Name:  "delete-recovery",
				Usage: "Delete the seed-phrase recovery factor",
				Action: func(cCtx *cli.Context) error {
					w, err := build(cCtx)
					if err != nil {
						return err
					}
					details, err := w.factors.DeleteRecoveryFactor(cCtx.Context)
					if err != nil {
						return err
					}
					fmt.Printf("remaining factors: %d\n", details.TotalFactors)
					return nil
				},
			},
			{
				Name:  "input-factor",
				Usage: "Submit a recovery mnemonic toward the threshold",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "mnemonic",
						Usage:    "recovery phrase to convert and submit",
						Required: true,
					},
				},
				Action: func(cCtx *cli.Context) error {
					w, err := build(cCtx)
					if err != nil {
						return err
					}
					key, err := w.factors.ConvertMnemonicToKey(cCtx.String("mnemonic"))
					if err != nil {
						return err
					}
					if err := w.factors.InputBackupFactor(cCtx.Context, key); err != nil {
						return err
					}
					fmt.Println("status:", string(w.svc.Status()))
					return nil
				},
			},
			{
				Name:  "device-factor",
				Usage: "Print this device's factor key",
				Action: func(cCtx *cli.Context) error {
					w, err := build(cCtx)
					if err != nil {
						return err
					}
					key, err := w.factors.FetchDeviceFactor(cCtx.Context)
					if err != nil {
						return err
					}
					fmt.Println(string(key))
					return nil
				},
			},
			{
				Name:  "backup",
				Usage: "Encrypt a recovery mnemonic and upload it to the backup store",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "mnemonic",
						Usage:    "recovery phrase to back up",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "label",
						Usage: "optional label stored with the backup",
					},
				},
				Action: func(cCtx *cli.Context) error {
					w, err := build(cCtx)
					if err != nil {
						return err
					}
					return w.orchestrator.BackupToRemote(cCtx.Context, cCtx.String("mnemonic"), cCtx.String("label"))
				},
			},
			{
				Name:  "backup-smart",
				Usage: "Back up the recovery factor, creating one first if none exists",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "fallback-mnemonic",
						Usage: "mnemonic to use when an existing factor has no in-process phrase",
					},
					&cli.StringFlag{
						Name:  "label",
						Usage: "optional label stored with the backup",
					},
				},
				Action: func(cCtx *cli.Context) error {
					w, err := build(cCtx)
					if err != nil {
						return err
					}
					return w.orchestrator.BackupSmart(cCtx.Context, cCtx.String("fallback-mnemonic"), cCtx.String("label"))
				},
			},
			{
				Name:  "list-backups",
				Usage: "List remote backups, most recent first",
				Action: func(cCtx *cli.Context) error {
					w, err := build(cCtx)
					if err != nil {
						return err
					}
					files, err := w.orchestrator.ListBackups(cCtx.Context)
					if err != nil {
						return err
					}
					for i, f := range files {
						fmt.Printf("%d. %s (%s, %d bytes)\n", i+1, f.Name, f.CreatedTime.Format(time.RFC3339), f.Size)
					}
					return nil
				},
			},
			{
				Name:  "restore",
				Usage: "Restore a recovery factor from a remote backup",
				Action: func(cCtx *cli.Context) error {
					w, err := build(cCtx)
					if err != nil {
						return err
					}
					key, err := w.orchestrator.RestoreFromRemote(cCtx.Context)
					if err != nil {
						return err
					}
					if key == "" {
						return nil
					}
					fmt.Println("status:", string(w.svc.Status()))
					return nil
				},
			},
			{
				Name:  "balance",
				Usage: "Show the wei balance of an account",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "address",
						Usage:    "account address to query",
						Required: true,
					},
				},
				Action: func(cCtx *cli.Context) error {
					w, err := build(cCtx)
					if err != nil {
						return err
					}
					chain, err := chainrpc.Dial(cCtx.Context, cCtx.String("rpc-addr"), w.log)
					if err != nil {
						return err
					}
					defer chain.Close()

					id, err := chain.ChainID(cCtx.Context)
					if err != nil {
						return err
					}
					balance, err := chain.Balance(cCtx.Context, cCtx.String("address"))
					if err != nil {
						return err
					}
					fmt.Printf("chain %s: %s wei\n", id, balance)
					return nil
				},
			},
			{
				Name:  "watch",
				Usage: "Poll the session status and print transitions until interrupted",
				Action: func(cCtx *cli.Context) error {
					w, err := build(cCtx)
					if err != nil {
						return err
					}
					if err := w.svc.Resync(cCtx.Context); err != nil {
						return err
					}

					mon := session.NewMonitor(w.svc, session.DefaultPollInterval, w.log)
					mon.Subscribe(func(previous, current interfaces.SessionStatus) {
						fmt.Printf("%s -> %s\n", previous, current)
					})

					ctx, stop := signal.NotifyContext(cCtx.Context, os.Interrupt, syscall.SIGTERM)
					defer stop()
					mon.Run(ctx)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
