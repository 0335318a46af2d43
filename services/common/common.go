package common

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

var (
	DomainFlag        = "domain"
	SessionSecretFlag = "secret"
	LogLevelFlag      = "log-level"
)

func RegisterFlags(f []cli.Flag) []cli.Flag {
	f = append(f,
		cli.StringFlag{
			Name:   DomainFlag,
			Usage:  "domain",
			Value:  "http://localhost:8080",
			EnvVar: "DOMAIN",
		},
		cli.StringFlag{
			Name:   SessionSecretFlag,
			Usage:  "session secret",
			Value:  "secret123",
			EnvVar: "SESSION_SECRET,SECRET_KEY",
		},
	)

	return f
}

func RegisterLogFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.StringFlag{
			Name:   LogLevelFlag,
			Usage:  "log level (debug, info, warn, error)",
			Value:  "info",
			EnvVar: "LOG_LEVEL",
		},
	)
}

func ConfigureLog(c *cli.Context) error {
	lvl, err := log.ParseLevel(c.GlobalString(LogLevelFlag))
	if err != nil {
		return errors.Wrapf(err, "wrong log level %v", c.GlobalString(LogLevelFlag))
	}
	log.SetLevel(lvl)
	return nil
}
