package cli

import (
	"fmt"

	"github.com/georgepadayatti/zkpdf/sign/validation"
)

// VerifyCommand implements the 'verify' command. It prints the
// verification result as JSON and exits with ExitNegative when the
// signature does not verify.
func VerifyCommand(args []string) error {
	fs := newFlagSet("verify", "[options] <file.pdf>")
	all := fs.Bool("all", false, "Verify every signature, oldest first")
	pretty := fs.Bool("pretty", false, "Indent JSON output")
	if err := parse(fs, args, 1); err != nil {
		return err
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

	if *all {
		doc, err := session.Document()
		if err != nil {
			return err
		}
		results, err := validation.NewVerifier(e.logger).VerifyAll(doc)
		if err != nil {
			return err
		}
		if err := writeJSON(results, *pretty); err != nil {
			return err
		}
		for _, res := range results {
			if !res.IsValid {
				return fmt.Errorf("%w: signature %q is invalid", errNegative, res.FieldName)
			}
		}
		return nil
	}

	res, err := session.VerifySignature()
	if err != nil {
		return err
	}
	if err := writeJSON(res, *pretty); err != nil {
		return err
	}
	if !res.IsValid {
		e.logger.Warn("signature is invalid", "failure", res.Failure)
		return fmt.Errorf("%w: %s", errNegative, res.Failure)
	}
	return nil
}
