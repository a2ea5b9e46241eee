//go:build linux
// +build linux

package main

import (
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"golang.org/x/sys/unix"

	pfs "github.com/pleclech/preloadfs/fs"
	"github.com/pleclech/preloadfs/fs/config"
	"github.com/pleclech/preloadfs/fs/pathutil"
	"github.com/pleclech/preloadfs/fs/rootinit"
	"github.com/pleclech/preloadfs/fs/utils"
)

// inspector answers questions the way the preloaded library would, using
// system calls instead of the interposed libc
type inspector struct {
	provider *config.Provider
	resolver *pfs.Resolver
	merger   *pfs.DirMerger
}

func newInspector(configPath string) *inspector {
	if configPath == "" {
		configPath = config.PathFromEnv()
	}
	provider := config.New(configPath)
	osr := pfs.NewOSReal()
	resolver := pfs.NewResolver(provider, osr, pfs.NewThreadGuard(), provider.Path())
	return &inspector{
		provider: provider,
		resolver: resolver,
		merger:   pfs.NewDirMerger(resolver, osr, nil),
	}
}

func parseKind(s string) (pfs.Kind, error) {
	switch s {
	case "file":
		return pfs.KindFile, nil
	case "dir":
		return pfs.KindDir, nil
	case "any":
		return pfs.KindAny, nil
	}
	return 0, fmt.Errorf("invalid kind %q (want file, dir or any)", s)
}

// rootOf returns the overlay root target was built from
func (in *inspector) rootOf(path, target string) string {
	for _, root := range in.resolver.Roots() {
		if rest, ok := pathutil.StripRoot(target, root); ok && rest == path {
			return root
		}
	}
	return ""
}

func runResolveCommand(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	configPath := fs.String("config", "", "configuration file")
	kindName := fs.String("kind", "file", "kind of entry: file, dir or any")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("at least one PATH is required")
	}

	kind, err := parseKind(*kindName)
	if err != nil {
		return err
	}

	in := newInspector(*configPath)
	for _, p := range fs.Args() {
		if !filepath.IsAbs(p) {
			abs, err := filepath.Abs(p)
			if err != nil {
				return fmt.Errorf("invalid path %s: %w", p, err)
			}
			p = abs
		}

		target, ok := in.resolver.Resolve(p, kind)
		if !ok {
			fmt.Fprintf(w, "%s: not redirected\n", p)
			continue
		}

		root := in.rootOf(p, target)
		if _, err := utils.ValidatePathWithinRoot(target, root); err != nil {
			fmt.Fprintf(w, "%s -> %s (root %s, outside the root)\n", p, target, root)
			continue
		}
		fmt.Fprintf(w, "%s -> %s (root %s)\n", p, target, root)
	}
	return nil
}

func entryType(mode uint32) string {
	switch mode & unix.S_IFMT {
	case unix.S_IFDIR:
		return "d"
	case unix.S_IFLNK:
		return "l"
	case 0:
		return "?"
	}
	return "-"
}

func runLsCommand(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	configPath := fs.String("config", "", "configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("exactly one DIR is required")
	}

	dir, err := filepath.Abs(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("invalid directory: %w", err)
	}

	in := newInspector(*configPath)
	entries, err := pfs.ReadAll(in.merger, dir)
	if err != nil {
		return fmt.Errorf("%s: %w", dir, err)
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s %s\n", entryType(e.Mode), e.Name)
	}
	return nil
}

func runRootsCommand(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("roots", flag.ContinueOnError)
	configPath := fs.String("config", "", "configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	in := newInspector(*configPath)
	roots := in.provider.Roots()
	if len(roots) == 0 {
		fmt.Fprintf(w, "no overlay roots configured in %s\n", in.provider.Path())
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, root := range roots {
		if err := utils.ValidateRoot(root); err != nil {
			fmt.Fprintf(tw, "%d\t%s\twarning: %v\n", i+1, root, err)
			continue
		}
		m, err := rootinit.FindMount(root)
		if err != nil {
			fmt.Fprintf(tw, "%d\t%s\t\n", i+1, root)
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\ton %s (%s)\n", i+1, root, m.Dir, m.FSType)
	}
	return tw.Flush()
}
