//go:build linux

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/c2h5oh/datasize"

	"github.com/anchor-run/anchor/cmd/anchor/config"
	"github.com/anchor-run/anchor/lib/container"
	"github.com/anchor-run/anchor/lib/ledger"
	"github.com/anchor-run/anchor/lib/logger"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "run":
		runContainer(os.Args[2:])
	case "ps":
		listContainers()
	case container.ChildCommand:
		childInit()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  run [OPTIONS] COMMAND [ARGS...]   Run a command in a new container\n")
	fmt.Fprintf(os.Stderr, "  ps                                List running containers\n")
}

func runContainer(args []string) {
	cfg := config.Load()
	logCfg := logger.NewConfig()
	log := logger.NewSubsystemLogger(logger.SubsystemContainer, logCfg)

	fs := flag.NewFlagSet("run", flag.ExitOnError)
	var (
		imageName    string
		imageDir     string
		containerDir string
		cpuShares    int
		memory       string
		memorySwap   string
		user         string
	)
	fs.StringVar(&imageName, "image-name", cfg.ImageName, "Image name")
	fs.StringVar(&imageName, "i", cfg.ImageName, "Image name (shorthand)")
	fs.StringVar(&imageDir, "image-dir", cfg.ImageDir, "Images directory")
	fs.StringVar(&containerDir, "container-dir", cfg.ContainerDir, "Containers directory")
	fs.IntVar(&cpuShares, "cpu-shares", 0, "CPU shares (relative weight)")
	fs.StringVar(&memory, "memory", "", "Memory limit in bytes. Use suffixes to represent larger units (k, m, g)")
	fs.StringVar(&memorySwap, "memory-swap", "", "A positive integer equal to memory plus swap. Specify -1 to enable unlimited swap")
	fs.StringVar(&user, "user", "", "UID (format: <uid>[:<gid>])")
	fs.Parse(args)

	command := fs.Args()
	if len(command) == 0 {
		fmt.Fprintln(os.Stderr, "run: a command is required")
		fs.Usage()
		os.Exit(2)
	}

	memoryBytes, err := parseSizeFlag(memory)
	if err != nil {
		log.Error("invalid --memory value", "error", err)
		os.Exit(1)
	}
	swapBytes, err := parseSizeFlag(memorySwap)
	if err != nil {
		log.Error("invalid --memory-swap value", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(containerDir, 0755); err != nil {
		log.Error("failed to create containers directory", "dir", containerDir, "error", err)
		os.Exit(1)
	}

	led := ledger.New(cfg.LedgerPath, logger.NewSubsystemLogger(logger.SubsystemLedger, logCfg))
	spec := container.LaunchSpec{
		Command:      command,
		ImageName:    imageName,
		ImageDir:     imageDir,
		ContainerDir: containerDir,
		CPUShares:    cpuShares,
		Memory:       memoryBytes,
		MemorySwap:   swapBytes,
		User:         user,
		CgroupRoot:   cfg.CgroupRoot,
	}

	res, err := container.Launch(context.Background(), spec, led, log)
	if err != nil {
		log.Error("launch failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("%d exited with status %d\n", res.PID, res.RawStatus)
}

func listContainers() {
	cfg := config.Load()
	log := logger.NewSubsystemLogger(logger.SubsystemLedger, logger.NewConfig())

	led := ledger.New(cfg.LedgerPath, log)
	entries, err := led.List()
	if err != nil {
		log.Error("failed to read container records", "error", err)
		os.Exit(1)
	}

	if err := ledger.WriteTable(os.Stdout, entries); err != nil {
		log.Error("failed to render table", "error", err)
		os.Exit(1)
	}
}

// childInit is the re-entry point for the cloned child. It runs inside the
// fresh namespaces; on success RunChild never returns.
func childInit() {
	log := logger.NewSubsystemLogger(logger.SubsystemContainer, logger.NewConfig())

	if err := container.RunChild(context.Background(), log); err != nil {
		log.Error("container setup failed", "error", err)
		os.Exit(1)
	}
}

// parseSizeFlag parses a human-friendly byte size. Plain integers are taken
// as bytes ("-1" passes through for unlimited swap); anything else goes
// through datasize, with a bare k/m/g suffix normalized to KB/MB/GB.
func parseSizeFlag(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &n, nil
	}

	norm := strings.ToUpper(strings.TrimSpace(s))
	if !strings.HasSuffix(norm, "B") {
		norm += "B"
	}
	v, err := datasize.ParseString(norm)
	if err != nil {
		return nil, fmt.Errorf("invalid size %q: %w", s, err)
	}
	n := int64(v.Bytes())
	return &n, nil
}
