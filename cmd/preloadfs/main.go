//go:build linux
// +build linux

package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	pfs "github.com/pleclech/preloadfs/fs"
	"github.com/pleclech/preloadfs/fs/config"
)

func main() {
	binaryName := filepath.Base(os.Args[0])

	if len(os.Args) < 2 {
		printMainUsage(binaryName)
		os.Exit(1)
	}

	pfs.InitLogger(pfs.LevelFromEnv())

	var err error
	switch os.Args[1] {
	case "resolve":
		err = runResolveCommand(os.Args[2:], os.Stdout)
	case "ls":
		err = runLsCommand(os.Args[2:], os.Stdout)
	case "roots":
		err = runRootsCommand(os.Args[2:], os.Stdout)
	case "mount":
		err = runMountCommand(os.Args[2:])
	case "run":
		os.Exit(runRunCommand(os.Args[2:]))
	case "version", "--version":
		printVersion(os.Stdout)
	case "help", "--help", "-h":
		if len(os.Args) > 2 {
			printSubcommandHelp(os.Args[2], binaryName)
		} else {
			printMainUsage(binaryName)
		}
	default:
		log.Fatalf("Unknown command: %s\n\nUse \"%s help\" for usage.", os.Args[1], binaryName)
	}

	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

func printMainUsage(binaryName string) {
	fmt.Printf(`%s - overlay roots for unmodified programs

Usage:
  %s <command> [options]

Commands:
  resolve     Show where a path is redirected
  ls          List a directory merged with its overlays
  roots       Show the configured overlay roots
  mount       Mount a read-only view of a directory with overlays applied
  run         Run a command with the preload library loaded
  version     Show build information
  help        Show help for a command

Environment:
  %s    Configuration file (default: %s)
  %s   Set to 1 to trace resolutions on stderr

Examples:
  %s resolve /usr/lib/libfoo.so
  %s ls -config ./overlays.conf /etc
  %s run -lib ./libpreloadfs.so -- cat /etc/hosts
  %s mount /mnt/view /srv/app

Use "%s help <command>" for command-specific help.
`, binaryName, binaryName, config.EnvPath, config.DefaultPath, pfs.EnvVerbose,
		binaryName, binaryName, binaryName, binaryName, binaryName)
}

func printSubcommandHelp(command string, binaryName string) {
	switch command {
	case "resolve":
		fmt.Print(`Usage: ` + binaryName + ` resolve [options] PATH...

Prints the overlay path each PATH is redirected to, or that it is left alone.

Options:
  -config   Configuration file
  -kind     Kind of entry to look for: file, dir or any (default: file)
`)
	case "ls":
		fmt.Print(`Usage: ` + binaryName + ` ls [options] DIR

Prints the merged listing of DIR, one entry per line, directories marked with d.

Options:
  -config   Configuration file
`)
	case "roots":
		fmt.Print(`Usage: ` + binaryName + ` roots [options]

Prints the overlay roots in priority order with the filesystem holding each.

Options:
  -config   Configuration file
`)
	case "mount":
		fmt.Print(`Usage: ` + binaryName + ` mount [options] MOUNTPOINT SRCDIR

Mounts a read-only FUSE view of SRCDIR at MOUNTPOINT. The view shows what a
process running with the library preloaded sees under SRCDIR. Stop with
Ctrl-C; the view is unmounted on exit.

Options:
  -config   Configuration file
  -debug    Print FUSE debug data
`)
	case "run":
		fmt.Print(`Usage: ` + binaryName + ` run [options] -- COMMAND [ARGS...]

Runs COMMAND with the library in LD_PRELOAD and exits with its status.

Options:
  -lib      Path to libpreloadfs.so (default: $` + envLib + ` or next to this binary)
  -config   Configuration file
  -verbose  Trace resolutions on stderr
`)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printMainUsage(binaryName)
	}
}
