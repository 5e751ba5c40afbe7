package cli

import (
	"fmt"
	"strings"

	"github.com/georgepadayatti/zkpdf/pdf/text"
)

// ExtractOutput is the JSON output of the extract command.
type ExtractOutput struct {
	Pages    []*text.ExtractedPage `json:"pages"`
	Warnings []string              `json:"warnings,omitempty"`
}

// ExtractCommand implements the 'extract' command.
func ExtractCommand(args []string) error {
	fs := newFlagSet("extract", "[options] <file.pdf>")
	page := fs.Int("page", -1, "Extract only this zero-based page")
	format := fs.String("format", "text", "Output format: text or json")
	spans := fs.Bool("spans", false, "Include byte-offset spans in JSON output")
	pretty := fs.Bool("pretty", false, "Indent JSON output")
	if err := parse(fs, args, 1); err != nil {
		return err
	}
	if *format != "text" && *format != "json" {
		return fmt.Errorf("unknown format %q", *format)
	}

	e, err := setup(fs)
	if err != nil {
		return err
	}
	defer e.Close()

	data, err := readInput(fs.Arg(0))
	if err != nil {
		return err
	}
	session := e.session(data)

	var pages []*text.ExtractedPage
	if *page >= 0 {
		p, err := session.Page(*page)
		if err != nil {
			return err
		}
		pages = []*text.ExtractedPage{p}
	} else {
		pages, err = session.ExtractAll()
		if err != nil {
			return err
		}
	}

	if *format == "text" {
		fmt.Fprintln(stdout, strings.Join(text.Texts(pages), "\f"))
		return nil
	}
	if !*spans {
		stripped := make([]*text.ExtractedPage, len(pages))
		for i, p := range pages {
			stripped[i] = &text.ExtractedPage{Index: p.Index, Text: p.Text}
		}
		pages = stripped
	}
	return writeJSON(ExtractOutput{Pages: pages, Warnings: session.Warnings()}, *pretty)
}
