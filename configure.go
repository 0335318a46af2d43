package main

import (
	"github.com/urfave/cli"
)

func configure(app *cli.App) {
	serveCMD := makeServeCMD()
	migrationCMD := makePGMigrationCMD()
	rankCMD := makeRankCMD()
	app.Commands = []cli.Command{serveCMD, migrationCMD, rankCMD}
}
