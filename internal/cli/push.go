// Package cli implements the filegate client commands on top of internal/client.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"filegate/internal/client"
	"filegate/pkg/logger"

	"golang.org/x/sync/errgroup"
)

const pushConcurrency = 4

type PushFlags struct {
	Key string
	Zip string // bundle all args into one zip object under this key
}

// Push uploads every path in args and prints one "key<TAB>path" line per file.
func Push(ctx context.Context, c *client.Client, flags PushFlags, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("nothing to push")
	}
	if flags.Zip != "" {
		return pushArchive(ctx, c, flags.Zip, args, out)
	}
	if flags.Key != "" && len(args) > 1 {
		return errors.New("--key can only be used with a single file")
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pushConcurrency)
	for _, p := range args {
		g.Go(func() error {
			logger.Log.Debug().Str("path", p).Msg("uploading")
			resp, err := c.Push(gctx, p, flags.Key)
			if err != nil {
				return fmt.Errorf("push %s: %w", p, err)
			}
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(out, "%s\t%s\n", resp.Key, p)
			return nil
		})
	}
	return g.Wait()
}

func pushArchive(ctx context.Context, c *client.Client, key string, args []string, out io.Writer) error {
	filename := key
	if !strings.HasSuffix(strings.ToLower(filename), ".zip") {
		filename += ".zip"
	}
	for _, p := range args {
		logger.Log.Info().Str("path", p).Msg("compressing")
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(client.CompressFiles(pw, args...))
	}()
	defer pr.Close()

	resp, err := c.Upload(ctx, filename, key, client.ArchiveContentType, pr)
	if err != nil {
		return fmt.Errorf("push archive: %w", err)
	}
	fmt.Fprintf(out, "%s\t%s\n", resp.Key, strings.Join(args, " "))
	return nil
}
