package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/net/context"

	"github.com/sixsq/slipstream-cloud/sim"
	"github.com/sixsq/slipstream-cloud/slipstream"
	"github.com/sixsq/slipstream-cloud/sscloud"
	"github.com/sixsq/slipstream-cloud/sscontext"
)

func main() {
	app := &cli.App{
		Name:      "sscloud-sim",
		Version:   sscloud.VersionString,
		Copyright: sscloud.CopyrightString,
		Usage:     "Run an in-memory SlipStream service simulator",
		Action:    mainAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "host:port to listen on",
				Value:   ":8080",
				EnvVars: []string{"SSCLOUD_SIM_ADDR"},
			},
			&cli.StringFlag{
				Name:    "user",
				Usage:   "username of the seeded account",
				Value:   "test",
				EnvVars: []string{"SSCLOUD_SIM_USER"},
			},
			&cli.StringFlag{
				Name:    "password",
				Usage:   "password of the seeded account",
				Value:   "test",
				EnvVars: []string{"SSCLOUD_SIM_PASSWORD"},
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
	ctx := context.Background()
	logrus.SetFormatter(&logrus.TextFormatter{DisableColors: true})

	service := sim.New()
	seed(service, c.String("user"), c.String("password"))

	apiKey, apiSecret, err := service.IssueAPIKey(c.String("user"))
	if err != nil {
		sscontext.LoggerFromContext(ctx).WithField("err", err).Fatal("could not issue an API key")
	}

	sscontext.LoggerFromContext(ctx).WithFields(logrus.Fields{
		"addr":       c.String("addr"),
		"user":       c.String("user"),
		"api_key":    apiKey,
		"api_secret": apiSecret,
	}).Info("simulator listening")

	err = http.ListenAndServe(c.String("addr"), service.Handler())
	if err != nil {
		sscontext.LoggerFromContext(ctx).WithField("err", err).Fatal("ListenAndServe returned error")
	}
	return nil
}

// seed populates the simulator with a small, self-consistent catalog so the
// sscloud tools have something to work against out of the box.
func seed(service *sim.Service, username, password string) {
	service.AddUser(username, password, "exoscale", "cloudsigma")

	service.AddModule(slipstream.Module{
		Path: "examples", Version: 1, Kind: slipstream.ModuleKindProject, Name: "examples",
	})
	service.AddModule(slipstream.Module{
		Path: "examples/ubuntu", Version: 4, Kind: slipstream.ModuleKindComponent, Name: "ubuntu",
		Parameters: map[string]interface{}{"cloudservice": "default"},
	})
	service.AddModule(slipstream.Module{
		Path: "examples/wordpress", Version: 9, Kind: slipstream.ModuleKindApplication, Name: "wordpress",
		Nodes: map[string]slipstream.ModuleNode{
			"web": {Parameters: map[string]interface{}{}},
			"db":  {Parameters: map[string]interface{}{}},
		},
	})

	service.AddServiceOffer(map[string]interface{}{
		"id":               "service-offer/small",
		"name":             "small",
		"resource:type":    "VM",
		"resource:ram":     float64(512),
		"resource:disk":    float64(10),
		"resource:country": "CH",
		"price:unitCost":   0.01,
		"connector":        map[string]interface{}{"href": "connector/exoscale"},
	})
	service.AddServiceOffer(map[string]interface{}{
		"id":               "service-offer/large",
		"name":             "large",
		"resource:type":    "VM",
		"resource:ram":     float64(16384),
		"resource:disk":    float64(200),
		"resource:country": "DE",
		"price:unitCost":   0.2,
		"connector":        map[string]interface{}{"href": "connector/cloudsigma"},
	})
}
