package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/fx"

	"convosync/internal/agent"
	"convosync/internal/session"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	flag.Parse()

	profileName := session.Resolve(*profileFlag)
	if err := session.ValidateName(profileName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		agent.Module(agent.Params{ProfileName: profileName}),
	)

	app.Run()
}
