package cli

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/georgepadayatti/zkpdf/claim"
	"github.com/georgepadayatti/zkpdf/commitment"
)

// ClaimOutput is the JSON output of the claim and commit commands.
type ClaimOutput struct {
	Claim      *claim.ClaimResult           `json:"claim,omitempty"`
	Commitment *commitment.PublicCommitment `json:"commitment,omitempty"`
	ABI        string                       `json:"abi,omitempty"`
}

type claimFlags struct {
	page      *int
	substring *string
	offset    *int
	pretty    *bool
}

func registerClaimFlags(fs *pflag.FlagSet) claimFlags {
	return claimFlags{
		page:      fs.Int("page", 0, "Zero-based page index"),
		substring: fs.String("substring", "", "Text that must occur on the page"),
		offset:    fs.Int("offset", 0, "Byte offset of the substring in the page text"),
		pretty:    fs.Bool("pretty", false, "Indent JSON output"),
	}
}

func runClaim(fs *pflag.FlagSet, args []string) (*env, claimFlags, *claim.ClaimResult, error) {
	flags := registerClaimFlags(fs)
	if err := parse(fs, args, 1); err != nil {
		return nil, flags, nil, err
	}
	e, err := setup(fs)
	if err != nil {
		return nil, flags, nil, err
	}
	data, err := readInput(fs.Arg(0))
	if err != nil {
		e.Close()
		return nil, flags, nil, err
	}
	res, err := e.session(data).VerifyClaim(*flags.page, *flags.substring, *flags.offset)
	if err != nil {
		e.Close()
		return nil, flags, nil, err
	}
	return e, flags, res, nil
}

// ClaimCommand implements the 'claim' command.
func ClaimCommand(args []string) error {
	fs := newFlagSet("claim", "--page N --substring S --offset O [--commit] <file.pdf>")
	commit := fs.Bool("commit", false, "Include the public commitment")
	e, flags, res, err := runClaim(fs, args)
	if err != nil {
		return err
	}
	defer e.Close()

	out := ClaimOutput{Claim: res}
	if *commit {
		c, err := commitment.Build(res)
		if err != nil {
			return err
		}
		out.Commitment = &c
		out.ABI = fmt.Sprintf("0x%x", c.ABIEncode())
	}
	if err := writeJSON(out, *flags.pretty); err != nil {
		return err
	}
	return claimOutcome(res)
}

// CommitCommand implements the 'commit' command. It prints only the
// public commitment and its ABI encoding.
func CommitCommand(args []string) error {
	fs := newFlagSet("commit", "--page N --substring S --offset O <file.pdf>")
	e, flags, res, err := runClaim(fs, args)
	if err != nil {
		return err
	}
	defer e.Close()

	c, err := commitment.Build(res)
	if err != nil {
		return err
	}
	out := ClaimOutput{Commitment: &c, ABI: fmt.Sprintf("0x%x", c.ABIEncode())}
	if err := writeJSON(out, *flags.pretty); err != nil {
		return err
	}
	return claimOutcome(res)
}

func claimOutcome(res *claim.ClaimResult) error {
	switch {
	case !res.Signature.IsValid:
		return fmt.Errorf("%w: signature is invalid", errNegative)
	case !res.SubstringMatches:
		return fmt.Errorf("%w: substring not found at offset %d", errNegative, res.Offset)
	}
	return nil
}
