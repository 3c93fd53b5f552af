package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/fleethub-io/fleethub/cmd/fhub-relay/app"
)

func main() {
	app.Execute()
}
