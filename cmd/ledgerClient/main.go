package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/Layr-Labs/ledgertx-go/pkg/config"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "ledger-client",
		Usage: "Build, sign and submit ledger transactions",
		Description: `A client for the simple_mining_pool ledger service.

Transactions are serialized into the ledger's canonical binary layout, signed with a
local key, a key derived from a mnemonic or an AWS KMS key, submitted over HTTP and
tracked through the explorer until they commit. Submissions are journaled so that a
restarted client can resume the ones still pending.`,
		Version: "0.1.0",
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			{
				Name:  "keygen",
				Usage: "Generate a new mnemonic and print the keys derived from it",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "words",
						Usage: "Mnemonic length, 12 or 24",
						Value: 12,
					},
				},
				Action: keygenCommand,
			},
			{
				Name:  "derive",
				Usage: "Derive the ledger key and chain addresses from a mnemonic",
				Flags: append(keyFlags(),
					&cli.BoolFlag{
						Name:  "testnet",
						Usage: "Derive the bitcoin account on testnet3",
					},
					&cli.BoolFlag{
						Name:  "show-secret",
						Usage: "Also print the 64 byte ledger secret key",
					},
				),
				Action: deriveCommand,
			},
			{
				Name:  "create-account",
				Usage: "Register an account for the signing key",
				Flags: append(keyFlags(),
					&cli.StringFlag{Name: "name", Usage: "Account name", Required: true},
					noWaitFlag(),
				),
				Action: createAccountCommand,
			},
			{
				Name:  "sign-in",
				Usage: "Sign in to the account of the signing key",
				Flags: append(keyFlags(),
					&cli.StringFlag{Name: "name", Usage: "Account name", Required: true},
					noWaitFlag(),
				),
				Action: signInCommand,
			},
			{
				Name:  "transfer",
				Usage: "Transfer currency to another account",
				Flags: append(keyFlags(),
					&cli.StringFlag{Name: "to", Usage: "Receiver public key (hex)", Required: true},
					&cli.Uint64Flag{Name: "amount", Usage: "Amount to transfer", Required: true},
					seedFlag(),
					noWaitFlag(),
				),
				Action: transferCommand,
			},
			{
				Name:  "issue",
				Usage: "Issue currency to the account of the signing key",
				Flags: append(keyFlags(),
					&cli.Uint64Flag{Name: "amount", Usage: "Amount to issue", Required: true},
					seedFlag(),
					noWaitFlag(),
				),
				Action: issueCommand,
			},
			{
				Name:  "submit",
				Usage: "Sign and submit a transaction of any registered schema",
				Flags: append(keyFlags(),
					&cli.StringFlag{Name: "schema", Usage: "Schema name", Required: true},
					&cli.StringFlag{Name: "payload", Usage: "Payload as a JSON object, keys in hex", Required: true},
					noWaitFlag(),
				),
				Action: submitCommand,
			},
			{
				Name:  "status",
				Usage: "Poll the explorer for a transaction",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "hash", Usage: "Transaction hash (hex)", Required: true},
				},
				Action: statusCommand,
			},
			{
				Name:  "account",
				Usage: "Show an account",
				Flags: append(keyFlags(),
					&cli.StringFlag{Name: "pub-key", Usage: "Account public key (hex), defaults to the signing key"},
					&cli.BoolFlag{Name: "history", Usage: "Include the account's transaction history, checked against its history root"},
				),
				Action: accountCommand,
			},
			{
				Name:   "resume",
				Usage:  "Resume tracking every pending journaled submission",
				Action: resumeCommand,
			},
			{
				Name:   "journal",
				Usage:  "List journaled submissions",
				Action: journalCommand,
			},
			{
				Name:  "kms-create-key",
				Usage: "Create a secp256k1 signing key in AWS KMS",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "Key name tag", Required: true},
					&cli.StringFlag{Name: "alias", Usage: "Alias to create, without the alias/ prefix"},
					&cli.StringFlag{Name: "environment", Usage: "Environment tag"},
				},
				Action: kmsCreateKeyCommand,
			},
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Usage: "YAML configuration file", EnvVars: []string{config.EnvLedgerConfigFile}},
		&cli.StringFlag{Name: "url", Usage: "Ledger node base URL", EnvVars: []string{config.EnvLedgerURL}},
		&cli.StringFlag{Name: "service", Usage: "Ledger service name", EnvVars: []string{config.EnvLedgerServiceName}},
		&cli.StringFlag{Name: "explorer-style", Usage: "Explorer URL shape: path or query", EnvVars: []string{config.EnvLedgerExplorerQueryStyle}},
		&cli.StringFlag{Name: "signature-placement", Usage: "Signature placement: body or envelope", EnvVars: []string{config.EnvLedgerSignaturePlacement}},
		&cli.StringFlag{Name: "scheme", Usage: "Signature scheme: ed25519 or secp256k1", EnvVars: []string{config.EnvLedgerSignatureScheme}},
		&cli.StringFlag{Name: "hash-algorithm", Usage: "Content hash: sha256, keccak256, blake2b or blake3", EnvVars: []string{config.EnvLedgerHashAlgorithm}},
		&cli.StringFlag{Name: "schema-file", Usage: "YAML file with additional schemas", EnvVars: []string{config.EnvLedgerSchemaFile}},
		&cli.DurationFlag{Name: "poll-interval", Usage: "Explorer poll interval", EnvVars: []string{config.EnvLedgerPollInterval}},
		&cli.DurationFlag{Name: "poll-timeout", Usage: "Give up waiting for a commit after this long, 0 waits forever", EnvVars: []string{config.EnvLedgerPollTimeout}},
		&cli.Float64Flag{Name: "rps", Usage: "Outbound requests per second, 0 is unlimited", EnvVars: []string{config.EnvLedgerRequestsPerSecond}},
		&cli.StringFlag{Name: "store", Usage: "Submission journal: memory, badger or redis", EnvVars: []string{config.EnvLedgerStoreType}},
		&cli.StringFlag{Name: "store-path", Usage: "Badger journal directory", EnvVars: []string{config.EnvLedgerStorePath}},
		&cli.StringFlag{Name: "redis-address", Usage: "Redis journal address", EnvVars: []string{config.EnvLedgerRedisAddress}},
		&cli.StringFlag{Name: "redis-password", Usage: "Redis journal password", EnvVars: []string{config.EnvLedgerRedisPassword}},
		&cli.IntFlag{Name: "redis-db", Usage: "Redis journal database", EnvVars: []string{config.EnvLedgerRedisDB}},
		&cli.StringFlag{Name: "kms-key-id", Usage: "Sign with this AWS KMS key (secp256k1 only)", EnvVars: []string{config.EnvLedgerKMSKeyID}},
		&cli.StringFlag{Name: "kms-region", Usage: "AWS region of the KMS key", EnvVars: []string{config.EnvLedgerKMSRegion}},
		&cli.StringFlag{Name: "metrics-file", Usage: "Write a prometheus textfile snapshot here on exit", EnvVars: []string{config.EnvLedgerMetricsFile}},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "Debug logging", EnvVars: []string{config.EnvLedgerVerbose}},
	}
}

func keyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "secret-key", Usage: "Signing key (hex)", EnvVars: []string{config.EnvLedgerSecretKey}},
		&cli.StringFlag{Name: "mnemonic", Usage: "Derive the signing key from this mnemonic", EnvVars: []string{config.EnvLedgerMnemonic}},
		&cli.StringFlag{Name: "passphrase", Usage: "Mnemonic passphrase"},
		&cli.UintFlag{Name: "account", Usage: "Ledger account index under m/44'/1'"},
	}
}

func seedFlag() cli.Flag {
	return &cli.Uint64Flag{Name: "seed", Usage: "Transaction seed, random when unset"}
}

func noWaitFlag() cli.Flag {
	return &cli.BoolFlag{Name: "no-wait", Usage: "Return once the ledger accepted the transaction"}
}
