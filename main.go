package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/anicoll/relaygate/cmd"
)

func main() {
	app := &cli.App{
		Name:  "relaygate",
		Usage: "relay controller gateway and device agent",
		Commands: []*cli.Command{
			{
				Name:   "gateway",
				Usage:  "run the backend websocket gateway",
				Action: cmd.GatewayCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "listen-addr",
						EnvVars: []string{"LISTEN_ADDR"},
						Value:   "0.0.0.0:3001",
					},
					&cli.StringFlag{
						Name:     "database-url",
						EnvVars:  []string{"DATABASE_URL"},
						Required: true,
					},
					&cli.StringFlag{
						Name:    "migrations-folder",
						EnvVars: []string{"MIGRATIONS_FOLDER"},
						Value:   "",
					},
					&cli.BoolFlag{
						Name:    "insecure-mode",
						EnvVars: []string{"INSECURE_MODE"},
						Value:   false,
					},
					&cli.StringFlag{
						Name:    "mqtt-host",
						EnvVars: []string{"MQTT_HOST"},
						Value:   "",
					},
					&cli.StringFlag{
						Name:    "mqtt-user",
						EnvVars: []string{"MQTT_USER"},
						Value:   "",
					},
					&cli.StringFlag{
						Name:    "mqtt-pass",
						EnvVars: []string{"MQTT_PASS"},
						Value:   "",
					},
					&cli.StringFlag{
						Name:    "log-level",
						EnvVars: []string{"LOG_LEVEL"},
						Value:   "INFO",
					},
				},
			},
			{
				Name:   "register",
				Usage:  "provision a device record",
				Action: cmd.RegisterCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "database-url",
						EnvVars:  []string{"DATABASE_URL"},
						Required: true,
					},
					&cli.StringFlag{
						Name:     "device-identity",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "device-secret",
						Usage: "shared key; generated when omitted",
					},
					&cli.BoolFlag{
						Name:  "hash-secret",
						Usage: "store a bcrypt hash instead of the plain key",
					},
					&cli.StringFlag{
						Name:  "switches-file",
						Usage: "JSON switch configuration for the device",
					},
					&cli.StringFlag{
						Name:    "log-level",
						EnvVars: []string{"LOG_LEVEL"},
						Value:   "INFO",
					},
				},
			},
			{
				Name:   "agent",
				Usage:  "run the on-device relay agent",
				Action: cmd.AgentCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "gateway-url",
						EnvVars:  []string{"GATEWAY_URL"},
						Required: true,
					},
					&cli.StringFlag{
						Name:     "device-identity",
						EnvVars:  []string{"DEVICE_IDENTITY"},
						Required: true,
					},
					&cli.StringFlag{
						Name:     "device-secret",
						EnvVars:  []string{"DEVICE_SECRET"},
						Required: true,
					},
					&cli.StringFlag{
						Name:    "gpio-chip",
						EnvVars: []string{"GPIO_CHIP"},
						Value:   "gpiochip0",
					},
					&cli.StringFlag{
						Name:    "state-file",
						EnvVars: []string{"STATE_FILE"},
						Value:   "/var/lib/relaygate/state.json",
					},
					&cli.StringFlag{
						Name:    "log-level",
						EnvVars: []string{"LOG_LEVEL"},
						Value:   "INFO",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
