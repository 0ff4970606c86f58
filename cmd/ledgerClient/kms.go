package main

import (
	"encoding/hex"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/Layr-Labs/ledgertx-go/pkg/logger"
	"github.com/Layr-Labs/ledgertx-go/pkg/signer/awsKms"
)

// kmsCreateKeyCommand handles the kms-create-key subcommand
func kmsCreateKeyCommand(c *cli.Context) error {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	provisioner, err := awsKms.NewKeyProvisionerFromEnvironment(c.Context, c.String("kms-region"), c.String("environment"), l)
	if err != nil {
		return err
	}

	fmt.Printf("⏳ Creating KMS key %s...\n", c.String("name"))
	key, err := provisioner.CreateSigningKey(c.Context, c.String("name"), c.String("alias"))
	if err != nil {
		return err
	}

	fmt.Printf("✅ Key created\n")
	fmt.Printf("   Key ID:     %s\n", key.KeyId)
	if key.Alias != "" {
		fmt.Printf("   Alias:      %s\n", key.Alias)
	}
	fmt.Printf("   Public key: %s\n", hex.EncodeToString(key.PublicKey))
	fmt.Printf("   Address:    %s\n", key.Address)
	fmt.Println("   Sign with --scheme secp256k1 --kms-key-id", key.KeyId)
	return nil
}
