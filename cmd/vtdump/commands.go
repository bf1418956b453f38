package main

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vtstore/internal/datafile"
	"vtstore/internal/kvfile"
)

// InfoCmd reports the header of every file, files are opened concurrently.
type InfoCmd struct {
	Paths []string `arg:"" help:"Data files" type:"existingfile"`
}

type fileInfo struct {
	path        string
	format      string
	version     int
	compression datafile.Compression
	firstLine   int
	err         error
}

func (c *InfoCmd) Run(ctx *kong.Context, logger *zap.Logger) error {
	return c.run(ctx.Stdout, logger)
}

func (c *InfoCmd) run(w io.Writer, logger *zap.Logger) error {
	infos := make([]fileInfo, len(c.Paths))
	var g errgroup.Group
	var mu sync.Mutex
	failed := 0

	for i, path := range c.Paths {
		i, path := i, path
		g.Go(func() error {
			info := inspect(path, logger)
			if info.err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
			}
			infos[i] = info
			return nil
		})
	}
	_ = g.Wait()

	for _, info := range infos {
		if info.err != nil {
			fmt.Fprintf(w, "%s: %v\n", info.path, info.err)
			continue
		}
		fmt.Fprintf(w, "%s: format=%s version=%d compression=%s first-line-tokens=%d\n",
			info.path, info.format, info.version, info.compression, info.firstLine)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files unreadable", failed, len(c.Paths))
	}
	return nil
}

func inspect(path string, logger *zap.Logger) fileInfo {
	info := fileInfo{path: path}
	in, err := datafile.OpenInput(path, datafile.WithLogger(logger))
	if err != nil {
		info.err = err
		return info
	}
	defer in.Close()

	info.format = "current"
	if in.OldFormat() {
		info.format = "legacy"
	}
	info.version = in.Version()
	info.compression = in.Compression()
	info.firstLine = in.PeekTokens()
	return info
}

// ShowCmd prints raw lines after the header.
type ShowCmd struct {
	Path  string `arg:"" help:"Data file" type:"existingfile"`
	Lines int    `short:"n" default:"5" help:"Number of lines"`
}

func (c *ShowCmd) Run(ctx *kong.Context, logger *zap.Logger) error {
	return c.run(ctx.Stdout, logger)
}

func (c *ShowCmd) run(w io.Writer, logger *zap.Logger) error {
	in, err := datafile.OpenInput(c.Path, datafile.WithLogger(logger))
	if err != nil {
		return err
	}
	defer in.Close()

	_, err = io.WriteString(w, in.ShowTokens(c.Lines))
	return err
}

// ValuesCmd decodes numerals with the alphabet the header selects.
type ValuesCmd struct {
	Path  string `arg:"" help:"Data file" type:"existingfile"`
	Count int    `short:"n" default:"10" help:"Number of values"`
}

func (c *ValuesCmd) Run(ctx *kong.Context, logger *zap.Logger) error {
	return c.run(ctx.Stdout, logger)
}

func (c *ValuesCmd) run(w io.Writer, logger *zap.Logger) error {
	in, err := datafile.OpenInput(c.Path, datafile.WithLogger(logger))
	if err != nil {
		return err
	}
	defer in.Close()

	for i := 0; i < c.Count; i++ {
		v, err := in.ReadUint64()
		if errors.Is(err, datafile.ErrEOF) {
			break
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(w, v)
	}
	return nil
}

// TokensCmd prints tokens one per line.
type TokensCmd struct {
	Path  string `arg:"" help:"Data file" type:"existingfile"`
	Count int    `short:"n" default:"10" help:"Number of tokens"`
}

func (c *TokensCmd) Run(ctx *kong.Context, logger *zap.Logger) error {
	return c.run(ctx.Stdout, logger)
}

func (c *TokensCmd) run(w io.Writer, logger *zap.Logger) error {
	in, err := datafile.OpenInput(c.Path, datafile.WithLogger(logger))
	if err != nil {
		return err
	}
	defer in.Close()

	for i := 0; i < c.Count; i++ {
		tok, err := in.GetToken(0)
		if errors.Is(err, datafile.ErrEOF) {
			break
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(w, tok)
	}
	return nil
}

// KVCmd prints key/value pairs.
type KVCmd struct {
	Path string `arg:"" help:"Key/value file" type:"existingfile"`
}

func (c *KVCmd) Run(ctx *kong.Context) error {
	return c.run(ctx.Stdout)
}

func (c *KVCmd) run(w io.Writer) error {
	r, err := kvfile.Open(c.Path)
	if err != nil {
		return err
	}
	defer r.Close()

	for {
		key, value, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s=%q\n", key, value)
	}
}
