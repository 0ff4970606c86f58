package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/urfave/cli/v2"

	"github.com/Layr-Labs/ledgertx-go/pkg/keyDerivation"
	"github.com/Layr-Labs/ledgertx-go/pkg/types"
)

// keygenCommand handles the keygen subcommand
func keygenCommand(c *cli.Context) error {
	var bits int
	switch c.Int("words") {
	case 12:
		bits = 128
	case 24:
		bits = 256
	default:
		return fmt.Errorf("--words must be 12 or 24, got %d", c.Int("words"))
	}

	mnemonic, err := keyDerivation.NewMnemonic(bits)
	if err != nil {
		return err
	}
	fmt.Printf("🔑 Mnemonic: %s\n", mnemonic)
	fmt.Println("   Store it offline, it is the only way to recover these keys.")

	return printDerived(mnemonic, "", 0, &chaincfg.MainNetParams, false)
}

// deriveCommand handles the derive subcommand
func deriveCommand(c *cli.Context) error {
	mnemonic := c.String("mnemonic")
	if mnemonic == "" {
		return fmt.Errorf("--mnemonic is required")
	}
	net := &chaincfg.MainNetParams
	if c.Bool("testnet") {
		net = &chaincfg.TestNet3Params
	}
	return printDerived(mnemonic, c.String("passphrase"), uint32(c.Uint("account")), net, c.Bool("show-secret"))
}

func printDerived(mnemonic, passphrase string, account uint32, net *chaincfg.Params, showSecret bool) error {
	seed, err := keyDerivation.MnemonicToSeed(mnemonic, passphrase)
	if err != nil {
		return err
	}

	ledgerKey, err := keyDerivation.DeriveLedgerKey(seed, account)
	if err != nil {
		return err
	}
	fmt.Printf("Ledger key (%s)\n", ledgerKey.Path)
	fmt.Printf("  public key: %s\n", hex.EncodeToString(ledgerKey.PublicKey))
	if showSecret {
		fmt.Printf("  secret key: %s\n", hex.EncodeToString(ledgerKey.SecretKey))
	}

	btc, err := keyDerivation.DeriveBitcoinAccount(seed, net)
	if err != nil {
		return err
	}
	fmt.Printf("Bitcoin (%s)\n", net.Name)
	fmt.Printf("  xpub:    %s\n", btc.XPub)
	fmt.Printf("  address: %s\n", btc.Address)

	eth, err := keyDerivation.DeriveEthereumAddress(seed)
	if err != nil {
		return err
	}
	fmt.Printf("Ethereum\n  address: %s\n", eth)
	return nil
}

// payloadFunc fills in a payload once the schema and the signer's public key are known
type payloadFunc func(schema *types.MessageSchema, pub []byte) (types.Payload, error)

// signAndSend builds the transaction and either tracks it to completion or returns once accepted
func signAndSend(c *cli.Context, schemaName string, makePayload payloadFunc) error {
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := c.Context
	schema, ok := rt.registry.Get(schemaName)
	if !ok {
		return fmt.Errorf("unknown schema %q, registered: %s", schemaName, strings.Join(rt.registry.Names(), ", "))
	}

	key, err := rt.resolveKey(ctx, c)
	if err != nil {
		return err
	}
	payload, err := makePayload(schema, key.public)
	if err != nil {
		return err
	}

	tx, err := rt.build(ctx, key, schema, payload)
	if err != nil {
		return fmt.Errorf("failed to build %s: %w", schema.Name, err)
	}
	fmt.Printf("📝 %s %s\n", schema.Name, tx.ContentHash.Hex())

	if c.Bool("no-wait") {
		res, err := rt.client.Submit(ctx, tx)
		if err != nil {
			return err
		}
		printResult(res)
		return nil
	}

	res, err := rt.tracker.Track(ctx, tx, rt.pollOptions())
	if res != nil {
		printResult(res)
	}
	return err
}

func createAccountCommand(c *cli.Context) error {
	return signAndSend(c, "CreateAccount", func(_ *types.MessageSchema, pub []byte) (types.Payload, error) {
		return types.Payload{"pub_key": pub, "name": c.String("name")}, nil
	})
}

func signInCommand(c *cli.Context) error {
	return signAndSend(c, "SignIn", func(_ *types.MessageSchema, pub []byte) (types.Payload, error) {
		return types.Payload{"pub_key": pub, "name": c.String("name")}, nil
	})
}

func transferCommand(c *cli.Context) error {
	return signAndSend(c, "Transfer", func(_ *types.MessageSchema, pub []byte) (types.Payload, error) {
		to, err := hex.DecodeString(strings.TrimPrefix(c.String("to"), "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid --to: %w", err)
		}
		return types.Payload{"from": pub, "to": to, "amount": c.Uint64("amount"), "seed": txSeed(c)}, nil
	})
}

func issueCommand(c *cli.Context) error {
	return signAndSend(c, "Issue", func(_ *types.MessageSchema, pub []byte) (types.Payload, error) {
		return types.Payload{"pub_key": pub, "amount": c.Uint64("amount"), "seed": txSeed(c)}, nil
	})
}

// submitCommand signs a payload of any registered schema. A missing signer field is filled
// with the signing key.
func submitCommand(c *cli.Context) error {
	return signAndSend(c, c.String("schema"), func(schema *types.MessageSchema, pub []byte) (types.Payload, error) {
		dec := json.NewDecoder(bytes.NewReader([]byte(c.String("payload"))))
		dec.UseNumber()
		payload := types.Payload{}
		if err := dec.Decode(&payload); err != nil {
			return nil, fmt.Errorf("invalid --payload: %w", err)
		}
		f, err := schema.SignerFieldSpec()
		if err != nil {
			return nil, err
		}
		if _, ok := payload[f.Name]; !ok {
			payload[f.Name] = pub
		}
		return payload, nil
	})
}

func txSeed(c *cli.Context) uint64 {
	if c.IsSet("seed") {
		return c.Uint64("seed")
	}
	return rand.Uint64()
}

// statusCommand handles the status subcommand
func statusCommand(c *cli.Context) error {
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	hash, err := types.HashFromHex(c.String("hash"))
	if err != nil {
		return err
	}
	res, err := rt.client.PollStatus(c.Context, hash, rt.pollOptions())
	if res != nil {
		printResult(res)
	}
	return err
}

// accountCommand handles the account subcommand
func accountCommand(c *cli.Context) error {
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	var pub []byte
	if s := c.String("pub-key"); s != "" {
		if pub, err = hex.DecodeString(strings.TrimPrefix(s, "0x")); err != nil {
			return fmt.Errorf("invalid --pub-key: %w", err)
		}
	} else {
		key, err := rt.resolveKey(c.Context, c)
		if err != nil {
			return err
		}
		pub = key.public
	}

	var account any
	if c.Bool("history") {
		account, err = rt.client.GetAccountInfo(c.Context, pub)
	} else {
		account, err = rt.client.GetAccount(c.Context, pub)
	}
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(account, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// resumeCommand handles the resume subcommand
func resumeCommand(c *cli.Context) error {
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	results, err := rt.tracker.Resume(c.Context, rt.pollOptions())
	for _, r := range results {
		if r.Result != nil {
			printResult(r.Result)
		}
		if r.Err != nil {
			fmt.Printf("   error: %v\n", r.Err)
		}
	}
	fmt.Printf("Resumed %d pending submissions\n", len(results))
	return err
}

// journalCommand handles the journal subcommand
func journalCommand(c *cli.Context) error {
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	records, err := rt.store.ListSubmissions()
	if err != nil {
		return err
	}
	for _, r := range records {
		fmt.Printf("%s  %-14s %-10s %s %s\n",
			r.CreatedAt.Format("2006-01-02T15:04:05Z"), r.SchemaName, r.State, r.Key(), r.Reason)
	}
	return nil
}

func printResult(res *types.SubmissionResult) {
	switch res.State {
	case types.SubmissionStateConfirmed:
		fmt.Printf("✅ %s confirmed\n", res.TxHash.Hex())
	case types.SubmissionStatePending:
		fmt.Printf("⏳ %s pending\n", res.TxHash.Hex())
	default:
		fmt.Printf("❌ %s %s: %s\n", res.TxHash.Hex(), res.State, res.Reason)
	}
}
