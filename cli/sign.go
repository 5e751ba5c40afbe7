package cli

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/georgepadayatti/zkpdf/config"
	"github.com/georgepadayatti/zkpdf/keys"
	"github.com/georgepadayatti/zkpdf/pdf/reader"
	"github.com/georgepadayatti/zkpdf/sign/signers"
)

// SignCommand implements the 'sign' command.
func SignCommand(args []string) error {
	fs := newFlagSet("sign", "[options] <input.pdf> <output.pdf>")
	config.RegisterSigningFlags(fs)
	fieldName := fs.String("field", "", "Name of the new signature field")
	if err := parse(fs, args, 2); err != nil {
		return err
	}

	e, err := setup(fs)
	if err != nil {
		return err
	}
	defer e.Close()

	signing := e.cfg.Signing
	if signing.PFXFile != "" && signing.PFXPassphrase == "" {
		pass, ok, err := promptPassword("PKCS#12 passphrase: ")
		if err != nil {
			return err
		}
		if ok {
			signing.PFXPassphrase = pass
		}
	}

	cred, err := signing.Credential()
	if errors.Is(err, keys.ErrDecryptionFailed) && signing.PFXFile != "" {
		return fmt.Errorf("%w: check --password", err)
	}
	if err != nil {
		return err
	}
	if err := cred.Validate(); err != nil {
		return fmt.Errorf("invalid credential: %w", err)
	}
	alg, err := signing.Algorithm()
	if err != nil {
		return err
	}

	data, err := readInput(fs.Arg(0))
	if err != nil {
		return err
	}

	signer := signers.NewSimpleSigner(cred.Certificate, cred.PrivateKey, alg)
	signer.SetCertificateChain(cred.Chain)

	meta := signers.NewSignatureMetadata(*fieldName)
	meta.Name = signing.Name
	meta.Reason = signing.Reason
	meta.Location = signing.Location
	meta.ContactInfo = signing.ContactInfo

	pdfSigner := signers.NewPdfSigner(signer, meta, signers.WithLogger(e.logger))
	pdfSigner.UpdateInfo = true
	signed, err := pdfSigner.SignBytes(data,
		reader.WithMaxDecompressedSize(e.cfg.Limits.MaxDecompressedSize),
		reader.WithMaxObjectStreamObjects(e.cfg.Limits.MaxObjectStreamObjects),
		reader.WithLogger(e.logger))
	if err != nil {
		return err
	}

	output := fs.Arg(1)
	if err := os.WriteFile(output, signed, 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	e.logger.Info("signed PDF",
		"output", output,
		"signer", cred.Certificate.Subject.String(),
		"hash", signing.Hash)
	fmt.Fprintf(stderr, "Successfully signed PDF: %s\n", output)
	return nil
}

// promptPassword reads a passphrase from the terminal. It reports false
// when standard input is not a terminal.
func promptPassword(prompt string) (string, bool, error) {
	f, ok := stdin.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return "", false, nil
	}
	fmt.Fprint(stderr, prompt)
	pass, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(stderr)
	if err != nil {
		return "", false, fmt.Errorf("failed to read passphrase: %w", err)
	}
	return string(pass), true, nil
}
