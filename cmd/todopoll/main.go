// Command todopoll is a small client for the todo server.
//
//	todopoll poll  [--since T] <folder>          print every change until interrupted
//	todopoll put   <folder> <filename> [file]    upload file (or stdin)
//	todopoll rm    <folder> <filename>
//	todopoll token --secret S --sub U [--folders a,b] [--ttl 24h]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/todomini/todomini-server/internal/client"
	"github.com/todomini/todomini-server/internal/tokens"
	"github.com/todomini/todomini-server/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "todopoll:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		return errors.New("usage: todopoll poll|put|rm|token ...")
	}
	cmd, args := args[0], args[1:]

	fs := pflag.NewFlagSet(cmd, pflag.ContinueOnError)
	server := fs.String("server", envOr("TODOMINI_SERVER", "http://localhost:8000"), "server base URL")
	token := fs.String("token", os.Getenv("TODOMINI_TOKEN"), "bearer token")

	switch cmd {
	case "poll":
		since := fs.Float64("since", 0, "epoch seconds of the last state already seen")
		maxWait := fs.Int("max-wait", 25, "seconds the server may hold each poll")
		once := fs.Bool("once", false, "print the first answer and exit")
		if err := fs.Parse(args); err != nil {
			return err
		}
		folder := fs.Arg(0)
		c, err := client.New(*server, *token)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if *once {
			snap, err := c.Poll(ctx, folder, *since, *maxWait)
			if err != nil {
				return err
			}
			return enc.Encode(snap)
		}
		return c.Watch(ctx, folder, *since, *maxWait, func(s *client.Snapshot) {
			_ = enc.Encode(s)
		}, func(err error) {
			logger.Warnf("poll failed, retrying: %v", err)
		})

	case "put":
		if err := fs.Parse(args); err != nil {
			return err
		}
		if fs.NArg() < 2 {
			return errors.New("usage: todopoll put <folder> <filename> [file]")
		}
		src := stdin
		if path := fs.Arg(2); path != "" && path != "-" {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			src = f
		}
		content, err := io.ReadAll(src)
		if err != nil {
			return err
		}
		c, err := client.New(*server, *token)
		if err != nil {
			return err
		}
		ts, err := c.Put(ctx, fs.Arg(0), fs.Arg(1), string(content))
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, formatTS(ts))
		return nil

	case "rm":
		if err := fs.Parse(args); err != nil {
			return err
		}
		if fs.NArg() != 2 {
			return errors.New("usage: todopoll rm <folder> <filename>")
		}
		c, err := client.New(*server, *token)
		if err != nil {
			return err
		}
		ts, err := c.Remove(ctx, fs.Arg(0), fs.Arg(1))
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, formatTS(ts))
		return nil

	case "token":
		secret := fs.String("secret", os.Getenv("JWT_SECRET"), "HS256 signing secret")
		sub := fs.String("sub", "", "token subject")
		folders := fs.StringSlice("folders", nil, "folders the token may access (* for all)")
		ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *sub == "" {
			return errors.New("--sub is required")
		}
		tok, err := tokens.GenerateAccessToken(*secret, *sub, *folders, *ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, tok)
		return nil
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func formatTS(ts float64) string {
	return time.UnixMicro(int64(ts*1e6 + 0.5)).UTC().Format(time.RFC3339Nano) + fmt.Sprintf(" (%.6f)", ts)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
