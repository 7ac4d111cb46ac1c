package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/alanbriolat/bulk-downloader"
)

func (a *application) resolveCommand() *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "print the media URLs behind posts, without downloading",
		ArgsUsage: "[POST...]",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:  "provider",
				Usage: "only try provider `NAME`",
			},
		}, postFlags...),
		Action: a.resolve,
	}
}

func (a *application) resolve(c *cli.Context) error {
	ctx := c.Context
	logger := bulk_downloader.Logger(ctx).Sugar()
	a.applyRedditFlags(c)

	client, auth := a.redditClient()
	registry, err := a.registry(client)
	if err != nil {
		return err
	}
	posts, err := collectPosts(ctx, client, auth, c)
	if err != nil {
		return err
	}

	out := c.App.Writer
	for _, post := range posts {
		var match *bulk_downloader.Match
		if name := c.String("provider"); name != "" {
			match, err = registry.MatchWith(name, post)
		} else {
			match, err = registry.Match(post)
		}
		if errors.Is(err, bulk_downloader.ErrUnknownProvider) {
			return err
		} else if err != nil {
			logger.Infof("%v: no provider for %v: %v", post.ID, post.URL, err)
			continue
		}
		resources, err := match.Resolver.FindResources(ctx, post, auth)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warnf("%v: %v failed: %v", post.ID, match.ProviderName, err)
			continue
		}
		for _, resource := range resources {
			_, _ = fmt.Fprintf(out, "%s\t%s\t%s\n", post.ID, match.ProviderName, resource.URL)
		}
	}
	return nil
}
