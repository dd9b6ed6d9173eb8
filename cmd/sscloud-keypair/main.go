package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/net/context"

	"github.com/sixsq/slipstream-cloud/cloud"
	"github.com/sixsq/slipstream-cloud/sscloud"
	"github.com/sixsq/slipstream-cloud/sscontext"
)

func main() {
	app := &cli.App{
		Name:      "sscloud-keypair",
		Version:   sscloud.VersionString,
		Copyright: sscloud.CopyrightString,
		Usage:     "Manage the SSH key pairs registered to a SlipStream account",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "endpoint",
				Usage:   "URL of the SlipStream service",
				Value:   "https://nuv.la",
				EnvVars: []string{"SLIPSTREAM_ENDPOINT"},
			},
			&cli.StringFlag{
				Name:    "key",
				Usage:   "username (internal login) or API key ID (api-key login)",
				EnvVars: []string{"SLIPSTREAM_KEY", "SLIPSTREAM_USERNAME"},
			},
			&cli.StringFlag{
				Name:    "secret",
				Usage:   "password (internal login) or API key secret (api-key login)",
				EnvVars: []string{"SLIPSTREAM_SECRET", "SLIPSTREAM_PASSWORD"},
			},
			&cli.StringFlag{
				Name:    "login-method",
				Usage:   "login method to use, internal or api-key",
				Value:   "internal",
				EnvVars: []string{"SLIPSTREAM_LOGIN_METHOD"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List registered key pairs",
				Action: listAction,
			},
			{
				Name:      "create",
				Usage:     "Generate a new 2048-bit RSA key pair and register the public half",
				ArgsUsage: "<name>",
				Action:    createAction,
			},
			{
				Name:      "import",
				Usage:     "Register an existing OpenSSH public key from a file",
				ArgsUsage: "<name> <public-key-file>",
				Action:    importAction,
			},
			{
				Name:      "delete",
				Usage:     "Remove a key pair by name",
				ArgsUsage: "<name>",
				Action:    deleteAction,
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}
}

func providerFromFlags(c *cli.Context, operation string) (context.Context, *cloud.SlipStreamProvider, error) {
	ctx := sscontext.FromOperation(context.Background(), operation)
	logrus.SetFormatter(&logrus.TextFormatter{DisableColors: true})

	provider, err := cloud.NewSlipStreamProvider(ctx, cloud.SlipStreamConfiguration{
		Endpoint:    c.String("endpoint"),
		Key:         c.String("key"),
		Secret:      c.String("secret"),
		LoginMethod: c.String("login-method"),
	})
	return ctx, provider, err
}

func listAction(c *cli.Context) error {
	ctx, provider, err := providerFromFlags(c, "keypair-list")
	if err != nil {
		return err
	}

	keyPairs, err := provider.ListKeyPairs(ctx)
	if err != nil {
		return err
	}

	for _, keyPair := range keyPairs {
		fmt.Printf("%s\t%s\n", keyPair.Name, keyPair.Type)
	}
	return nil
}

func createAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("exactly one key pair name is required")
	}

	ctx, provider, err := providerFromFlags(c, "keypair-create")
	if err != nil {
		return err
	}

	keyPair, err := provider.CreateKeyPair(ctx, c.Args().First())
	if err != nil {
		return err
	}

	// The private key is not stored anywhere; this is the only chance to
	// save it.
	fmt.Printf("registered public key:\n%s\n\n%s", keyPair.PublicKey, keyPair.PrivateKey)
	return nil
}

func importAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("a key pair name and a public key file are required")
	}

	ctx, provider, err := providerFromFlags(c, "keypair-import")
	if err != nil {
		return err
	}

	keyPair, err := provider.ImportKeyPairFromFile(ctx, c.Args().Get(0), c.Args().Get(1))
	if err != nil {
		return err
	}

	fmt.Printf("registered public key:\n%s\n", keyPair.PublicKey)
	return nil
}

func deleteAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("exactly one key pair name is required")
	}

	ctx, provider, err := providerFromFlags(c, "keypair-delete")
	if err != nil {
		return err
	}

	return provider.DeleteKeyPair(ctx, cloud.KeyPair{Name: c.Args().First()})
}
