package main

import (
	"fmt"
	"os"

	"github.com/ironsheep/meterscan/internal/config"
	"github.com/ironsheep/meterscan/internal/imaging"
	"github.com/ironsheep/meterscan/internal/logging"
	"github.com/ironsheep/meterscan/internal/ocr/tesseract"
	"github.com/ironsheep/meterscan/internal/pipeline"
	"github.com/ironsheep/meterscan/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("meterscan-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("meterscan-mcp - MCP server for reading marked meter photos")
			fmt.Println()
			fmt.Println("Usage: meterscan-mcp [options]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --version, -v    Print version information")
			fmt.Println("  --help, -h       Print this help message")
			fmt.Println()
			fmt.Println("Environment variables:")
			fmt.Println("  METERSCAN_LOG_LEVEL=debug    Enable debug logging")
			fmt.Println("  OCR_LANGUAGE=spa             Tesseract language")
			fmt.Println("  TESSDATA_PREFIX=/path        Tesseract traineddata directory")
			fmt.Println("  DETECTOR=go                  Mark detector backend")
			fmt.Println()
			fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
			return
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Logs go to stderr; stdout is for MCP protocol
	logger := logging.New(cfg.LogLevel, os.Stderr)
	logger.Debugf("Meterscan MCP Server v%s (built %s, commit %s)", Version, BuildTime, GitCommit)

	cache := imaging.NewImageCache()
	engine := tesseract.New(tesseract.WithTessdataPrefix(cfg.TessdataPrefix))
	p, err := pipeline.New(cfg.Pipeline(), engine,
		pipeline.WithLogger(logging.Component(logger, "pipeline")),
		pipeline.WithLoader(cache),
		pipeline.WithDebugDir(cfg.DebugDir),
	)
	if err != nil {
		logger.Fatalf("Pipeline setup failed: %v", err)
	}

	srv := server.New(p, cache, Version, logging.Component(logger, "mcp"))
	if err := srv.Run(); err != nil {
		logger.Fatalf("Server error: %v", err)
	}
}
