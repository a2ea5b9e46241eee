//go:build linux
// +build linux

package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	pfs "github.com/pleclech/preloadfs/fs"
	"github.com/pleclech/preloadfs/fs/rootinit"
)

func unmount(mountPoint string) error {
	cmd := exec.Command("umount", mountPoint)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}
	return nil
}

func runMountCommand(args []string) error {
	fs := flag.NewFlagSet("mount", flag.ContinueOnError)
	configPath := fs.String("config", "", "configuration file")
	debug := fs.Bool("debug", false, "print FUSE debug data")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: mount [options] MOUNTPOINT SRCDIR")
	}

	mountPoint, err := rootinit.GetMountPoint(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("invalid mount point: %w", err)
	}
	srcDir, err := rootinit.GetMountPoint(fs.Arg(1))
	if err != nil {
		return fmt.Errorf("invalid source directory: %w", err)
	}
	if err := rootinit.CheckNotNested(mountPoint, srcDir); err != nil {
		return err
	}
	if mounted, err := rootinit.IsMountPoint(mountPoint); err == nil && mounted {
		return fmt.Errorf("%s is already a mount point", mountPoint)
	}

	in := newInspector(*configPath)
	if len(in.provider.Roots()) == 0 {
		log.Printf("No overlay roots in %s, the view mirrors %s", in.provider.Path(), srcDir)
	}

	root, err := pfs.NewOverlayRoot(srcDir, in.resolver, in.merger)
	if err != nil {
		return fmt.Errorf("NewOverlayRoot error:\n%w", err)
	}

	server, err := pfs.MountOverlay(mountPoint, root, *debug)
	if err != nil {
		return fmt.Errorf("mount fail: %w", err)
	}
	log.Printf("Mounted %s at %s", srcDir, mountPoint)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Printf("Received shutdown signal, unmounting...")

		// umount first, server.Unmount makes Wait return in both cases
		if err := unmount(mountPoint); err != nil {
			log.Printf("umount failed, falling back: %v", err)
		}
		if err := server.Unmount(); err != nil {
			log.Printf("Warning: Unmount failed: %v", err)
		}
	}()

	server.Wait()
	log.Printf("Server stopped, exiting...")
	return nil
}
