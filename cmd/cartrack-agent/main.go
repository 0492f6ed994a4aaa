package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/autopeer-io/cartrack/cmd/cartrack-agent/app"
)

func main() {
	app.NewApp().Run()
}
