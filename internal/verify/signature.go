package verify

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// Signature verifies a detached signature over a message file using one or
// more candidate public keys. The first key that validates wins, which
// allows a release to be signed with a new key while older installs still
// trust the previous one.
type Signature struct {
	message   string
	signature string
	keys      []crypto.PublicKey
}

// NewSignature returns a verifier for the signature file sig over the
// message file message. An empty message means the signature covers the
// primary artifact itself. Each key is a PEM encoded PKIX public key
// (Ed25519, ECDSA or RSA).
func NewSignature(message, sig string, pemKeys ...string) (*Signature, error) {
	if sig == "" {
		return nil, errors.New("signature file name is required")
	}
	if len(pemKeys) == 0 {
		return nil, errors.New("at least one public key is required")
	}
	keys := make([]crypto.PublicKey, 0, len(pemKeys))
	for i, k := range pemKeys {
		key, err := ParsePublicKey([]byte(k))
		if err != nil {
			return nil, fmt.Errorf("public key %d: %w", i, err)
		}
		keys = append(keys, key)
	}
	return &Signature{message: message, signature: sig, keys: keys}, nil
}

// ParsePublicKey decodes one PEM "PUBLIC KEY" block.
func ParsePublicKey(data []byte) (crypto.PublicKey, error) {
	block, _ := pem.Decode(bytes.TrimSpace(data))
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	if block.Type != "PUBLIC KEY" {
		return nil, fmt.Errorf("unexpected PEM block type %q", block.Type)
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	switch key.(type) {
	case ed25519.PublicKey, *ecdsa.PublicKey, *rsa.PublicKey:
		return key, nil
	default:
		return nil, fmt.Errorf("unsupported public key type %T", key)
	}
}

// RequiredFiles returns the message (if separate from the artifact) and
// the signature file names.
func (s *Signature) RequiredFiles() []string {
	if s.message == "" {
		return []string{s.signature}
	}
	return []string{s.message, s.signature}
}

// Verify checks the signature against every key in order.
func (s *Signature) Verify(primary string, files Files) error {
	messagePath := primary
	if s.message != "" {
		p, err := files.Lookup("signature", s.message)
		if err != nil {
			return err
		}
		messagePath = p
	}
	sigPath, err := files.Lookup("signature", s.signature)
	if err != nil {
		return err
	}

	message, err := os.ReadFile(messagePath)
	if err != nil {
		return fmt.Errorf("failed to read signed message: %w", err)
	}
	rawSig, err := os.ReadFile(sigPath)
	if err != nil {
		return fmt.Errorf("failed to read signature: %w", err)
	}
	candidates := signatureCandidates(rawSig)

	for _, key := range s.keys {
		for _, sig := range candidates {
			if verifySignature(key, message, sig) {
				return nil
			}
		}
	}
	return &VerificationError{
		Verifier: "signature",
		File:     s.signature,
		Reason:   fmt.Sprintf("no trusted key (of %d) validates the signature", len(s.keys)),
	}
}

// signatureCandidates returns the raw signature bytes and, if the file is
// base64 text, the decoded form.
func signatureCandidates(raw []byte) [][]byte {
	candidates := [][]byte{raw}
	trimmed := bytes.TrimSpace(raw)
	decoded := make([]byte, base64.StdEncoding.DecodedLen(len(trimmed)))
	if n, err := base64.StdEncoding.Decode(decoded, trimmed); err == nil && n > 0 {
		candidates = append(candidates, decoded[:n])
	}
	return candidates
}

func verifySignature(key crypto.PublicKey, message, sig []byte) bool {
	switch k := key.(type) {
	case ed25519.PublicKey:
		return ed25519.Verify(k, message, sig)
	case *ecdsa.PublicKey:
		digest := sha256.Sum256(message)
		return ecdsa.VerifyASN1(k, digest[:], sig)
	case *rsa.PublicKey:
		digest := sha256.Sum256(message)
		return rsa.VerifyPKCS1v15(k, crypto.SHA256, digest[:], sig) == nil
	default:
		return false
	}
}
