package main

import (
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"github.com/webtor-io/movie-top/services/common"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("failed to load .env")
	}
	app := cli.NewApp()
	app.Name = "movie-top"
	app.Usage = "personal movie ranking"
	app.Version = "0.0.1"
	app.Flags = common.RegisterLogFlags(app.Flags)
	app.Before = common.ConfigureLog
	configure(app)
	err := app.Run(os.Args)
	if err != nil {
		log.WithError(err).Fatal("failed to run application")
	}
}
