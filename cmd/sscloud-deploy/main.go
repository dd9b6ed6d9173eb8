package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/net/context"

	"github.com/sixsq/slipstream-cloud/cloud"
	"github.com/sixsq/slipstream-cloud/sscloud"
	"github.com/sixsq/slipstream-cloud/sscontext"
)

func main() {
	app := &cli.App{
		Name:      "sscloud-deploy",
		Version:   sscloud.VersionString,
		Copyright: sscloud.CopyrightString,
		Usage:     "Deploy a SlipStream image and optionally wait for it to be ready",
		ArgsUsage: "<image-id>",
		Action:    mainAction,
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
			&cli.StringFlag{
				Name:  "name",
				Usage: "name of the new node, prepended to its tags",
			},
			&cli.StringFlag{
				Name:  "size",
				Usage: "service offer ID to run the node on",
			},
			&cli.StringFlag{
				Name:  "location",
				Usage: "connector to deploy to",
			},
			&cli.StringSliceFlag{
				Name:  "tag",
				Usage: "tag(s) to attach to the new node",
			},
			&cli.StringFlag{
				Name:  "keep-running",
				Usage: "keep-running behavior: always, never, on-success or on-error",
			},
			&cli.IntFlag{
				Name:  "multiplicity",
				Usage: "number of machines to start per node",
			},
			&cli.IntFlag{
				Name:  "tolerate-failures",
				Usage: "number of machine failures to tolerate",
			},
			&cli.BoolFlag{
				Name:  "check-ssh-key",
				Usage: "require an SSH key to be registered before deploying",
			},
			&cli.BoolFlag{
				Name:  "scalable",
				Usage: "start a scalable deployment",
			},
			&cli.BoolFlag{
				Name:  "wait",
				Usage: "wait for the node to reach the Ready state",
			},
			&cli.DurationFlag{
				Name:  "wait-period",
				Usage: "time between two state polls",
				Value: 10 * time.Second,
			},
			&cli.DurationFlag{
				Name:  "wait-timeout",
				Usage: "give up waiting after this long",
				Value: 10 * time.Minute,
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}
}

func mainAction(c *cli.Context) error {
	ctx := sscontext.FromOperation(context.Background(), "deploy")
	logrus.SetFormatter(&logrus.TextFormatter{DisableColors: true})

	if c.NArg() != 1 {
		return fmt.Errorf("exactly one image ID is required")
	}

	provider, err := cloud.NewSlipStreamProvider(ctx, cloud.SlipStreamConfiguration{
		Endpoint:    c.String("endpoint"),
		Key:         c.String("key"),
		Secret:      c.String("secret"),
		LoginMethod: c.String("login-method"),
	})
	if err != nil {
		return err
	}

	node, err := provider.CreateNode(ctx, cloud.CreateNodeOpts{
		Name:             c.String("name"),
		Image:            c.Args().First(),
		Size:             c.String("size"),
		Location:         c.String("location"),
		Tags:             cloud.TagList(c.StringSlice("tag")),
		KeepRunning:      c.String("keep-running"),
		Multiplicity:     c.Int("multiplicity"),
		TolerateFailures: c.Int("tolerate-failures"),
		CheckSSHKey:      c.Bool("check-ssh-key"),
		Scalable:         c.Bool("scalable"),
	})
	if err != nil {
		return err
	}

	fmt.Printf("created node %s (state: %s)\n", node.ID, node.State)

	if !c.Bool("wait") {
		return nil
	}

	state, err := provider.WaitNodeInState(ctx, node, cloud.WaitOpts{
		Period:  c.Duration("wait-period"),
		Timeout: c.Duration("wait-timeout"),
	})
	if err != nil {
		return err
	}

	fmt.Printf("node %s reached state %s\n", node.ID, state)
	return nil
}
