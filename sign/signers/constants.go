// Package signers signs PDF documents with incremental updates.
package signers

import (
	"github.com/georgepadayatti/zkpdf/sign/fields"
)

// DefaultMD is the default message digest algorithm used when computing
// digests for use in signatures.
const DefaultMD = "sha256"

// DefaultSigSubFilter is the default SubFilter to use for PDF signatures.
var DefaultSigSubFilter = fields.SubFilterAdobePKCS7Detached

// DefaultFieldName is the base name of new signature fields. A numeric
// suffix is added until the name is unused.
const DefaultFieldName = "Signature"

// baseSignatureSize is reserved for the CMS structure besides the
// certificates.
const baseSignatureSize = 8192
