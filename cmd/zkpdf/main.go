// Command zkpdf extracts text from signed PDF files, verifies their
// signatures and derives public commitments of text claims.
//
// Usage:
//
//	zkpdf <command> [options] <args>
//
// Commands:
//
//	extract  Extract the text of a PDF file
//	verify   Verify the digital signature of a PDF file
//	claim    Check that text occurs at an offset of a signed page
//	commit   Derive the public commitment of a text claim
//	sign     Sign a PDF file with an RSA certificate
//	serve    Serve the zkpdf tools over MCP on stdio
//	version  Show version information
//
// Examples:
//
//	# Extract page text
//	zkpdf extract --format json document.pdf
//
//	# Check a claim and print its commitment
//	zkpdf claim --page 0 --substring "Total" --offset 12 --commit document.pdf
package main

import (
	"os"

	"github.com/georgepadayatti/zkpdf/cli"
)

// These variables are set at build time using ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" ./cmd/zkpdf
var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	cli.Version = version
	cli.BuildTime = buildTime
	cli.Run(os.Args)
}
