//go:build linux
// +build linux

package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	pfs "github.com/pleclech/preloadfs/fs"
	"github.com/pleclech/preloadfs/fs/config"
)

const (
	envLib     = "PRELOADFS_LIB"
	libName    = "libpreloadfs.so"
	envPreload = "LD_PRELOAD"
)

// defaultLibrary looks for the library next to the running binary
func defaultLibrary() string {
	if lib := os.Getenv(envLib); lib != "" {
		return lib
	}
	exe, err := os.Executable()
	if err != nil {
		return libName
	}
	return filepath.Join(filepath.Dir(exe), libName)
}

// setEnv replaces or appends key in env
func setEnv(env []string, key, value string) []string {
	prefix := key + "="
	for i, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			env[i] = prefix + value
			return env
		}
	}
	return append(env, prefix+value)
}

func getEnv(env []string, key string) string {
	prefix := key + "="
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			return kv[len(prefix):]
		}
	}
	return ""
}

// preloadEnv returns env with lib placed first in LD_PRELOAD
func preloadEnv(env []string, lib, configPath string, verbose bool) []string {
	env = append([]string(nil), env...)

	preload := lib
	if existing := getEnv(env, envPreload); existing != "" {
		preload = lib + ":" + existing
	}
	env = setEnv(env, envPreload, preload)

	if configPath != "" {
		env = setEnv(env, config.EnvPath, configPath)
	}
	if verbose {
		env = setEnv(env, pfs.EnvVerbose, "1")
	}
	return env
}

// runRunCommand returns the exit status to use
func runRunCommand(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	lib := fs.String("lib", defaultLibrary(), "path to "+libName)
	configPath := fs.String("config", "", "configuration file")
	verbose := fs.Bool("verbose", false, "trace resolutions on stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		log.Printf("run: a COMMAND is required")
		return 2
	}

	libPath, err := filepath.Abs(*lib)
	if err != nil {
		log.Printf("run: invalid library path: %v", err)
		return 2
	}
	if _, err := os.Stat(libPath); err != nil {
		log.Printf("run: cannot use library: %v", err)
		return 2
	}
	if *configPath != "" {
		if *configPath, err = filepath.Abs(*configPath); err != nil {
			log.Printf("run: invalid configuration path: %v", err)
			return 2
		}
	}

	cmd := exec.Command(fs.Arg(0), fs.Args()[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = preloadEnv(os.Environ(), libPath, *configPath, *verbose)
	pfs.Debug("run %s with %s=%s", fs.Arg(0), envPreload, getEnv(cmd.Env, envPreload))

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		fmt.Fprintf(os.Stderr, "run: %v\n", err)
		return 127
	}
	return 0
}
