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
		Name:      "sscloud-list",
		Version:   sscloud.VersionString,
		Copyright: sscloud.CopyrightString,
		Usage:     "List SlipStream resources",
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
				Name:   "nodes",
				Usage:  "List deployments",
				Action: listNodes,
			},
			{
				Name:   "images",
				Usage:  "List deployable images",
				Action: listImages,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "path",
						Usage: "list the content of this project instead of the public catalog",
					},
					&cli.BoolFlag{
						Name:  "recurse",
						Usage: "also walk sub-projects (one upstream call each)",
					},
				},
			},
			{
				Name:   "sizes",
				Usage:  "List service offers",
				Action: listSizes,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "location",
						Usage: "restrict to a connector",
					},
				},
			},
			{
				Name:   "locations",
				Usage:  "List configured cloud connectors",
				Action: listLocations,
			},
			{
				Name:   "vms",
				Usage:  "List individual virtual machines",
				Action: listVMs,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "location",
						Usage: "restrict to a connector",
					},
					&cli.StringFlag{
						Name:  "node",
						Usage: "restrict to the machines of this deployment",
					},
				},
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

func listNodes(c *cli.Context) error {
	ctx, provider, err := providerFromFlags(c, "list-nodes")
	if err != nil {
		return err
	}

	nodes, err := provider.ListNodes(ctx)
	if err != nil {
		return err
	}

	for _, node := range nodes {
		fmt.Printf("%s\t%s\t%s\n", node.ID, node.State, node.Image)
	}
	return nil
}

func listImages(c *cli.Context) error {
	ctx, provider, err := providerFromFlags(c, "list-images")
	if err != nil {
		return err
	}

	images, err := provider.ListImages(ctx, cloud.ListImagesOpts{
		Path:    c.String("path"),
		Recurse: c.Bool("recurse"),
	})
	if err != nil {
		return err
	}

	for _, image := range images {
		fmt.Printf("%s\t%s\n", image.ID, image.Name)
	}
	return nil
}

func listSizes(c *cli.Context) error {
	ctx, provider, err := providerFromFlags(c, "list-sizes")
	if err != nil {
		return err
	}

	sizes, err := provider.ListSizes(ctx, c.String("location"))
	if err != nil {
		return err
	}

	for _, size := range sizes {
		fmt.Printf("%s\tram=%d\tdisk=%d\tprice=%g\n", size.ID, size.RAM, size.Disk, size.Price)
	}
	return nil
}

func listLocations(c *cli.Context) error {
	ctx, provider, err := providerFromFlags(c, "list-locations")
	if err != nil {
		return err
	}

	locations, err := provider.ListLocations(ctx)
	if err != nil {
		return err
	}

	for _, location := range locations {
		country := location.Country
		if country == "" {
			country = "-"
		}
		fmt.Printf("%s\t%s\n", location.ID, country)
	}
	return nil
}

func listVMs(c *cli.Context) error {
	ctx, provider, err := providerFromFlags(c, "list-vms")
	if err != nil {
		return err
	}

	machines, err := provider.ListVirtualMachines(ctx, cloud.ListVirtualMachinesOpts{
		Location: c.String("location"),
		NodeID:   c.String("node"),
	})
	if err != nil {
		return err
	}

	for _, vm := range machines {
		ip := "-"
		if len(vm.PublicIPs) > 0 {
			ip = vm.PublicIPs[0]
		} else if len(vm.PrivateIPs) > 0 {
			ip = vm.PrivateIPs[0]
		}
		fmt.Printf("%s\t%s\t%s\n", vm.ID, vm.State, ip)
	}
	return nil
}
