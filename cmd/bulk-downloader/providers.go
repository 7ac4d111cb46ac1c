package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

func (a *application) providersCommand() *cli.Command {
	return &cli.Command{
		Name:  "providers",
		Usage: "list the providers posts are matched against, in order",
		Action: func(c *cli.Context) error {
			client, _ := a.redditClient()
			registry, err := a.registry(client)
			if err != nil {
				return err
			}
			for _, name := range registry.List() {
				priority, err := registry.GetPriority(name)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(c.App.Writer, "%s\t%d\n", name, priority)
			}
			return nil
		},
	}
}
