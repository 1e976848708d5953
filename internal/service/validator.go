package service

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"imagebox/pkg/imaging"
)

// ValidationError reports the constraint an upload violated together
// with the set of types the service accepts.
type ValidationError struct {
	Reason  string
	Allowed []string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Validator decides whether an upload is acceptable. It has no side
// effects; cleanup of already-written files on content rejection is the
// service's responsibility.
type Validator struct {
	maxSize     int64
	extToMIME   map[string]string
	allowedExts []string
	allowedMIME map[string]struct{}
}

func NewValidator(maxSize int64, allowedExts []string) *Validator {
	extToMIME := make(map[string]string, len(allowedExts))
	allowedMIME := make(map[string]struct{}, len(allowedExts))
	exts := make([]string, 0, len(allowedExts))

	for _, ext := range allowedExts {
		ext = strings.ToLower(ext)
		mt := mime.TypeByExtension(ext)
		if mt == "" {
			continue
		}
		extToMIME[ext] = mt
		allowedMIME[mt] = struct{}{}
		exts = append(exts, ext)
	}

	return &Validator{
		maxSize:     maxSize,
		extToMIME:   extToMIME,
		allowedExts: exts,
		allowedMIME: allowedMIME,
	}
}

func (v *Validator) AllowedExtensions() []string {
	return v.allowedExts
}

// ValidateHeader checks the declared filename extension, declared MIME
// type and size against the allow-list. Both the extension and the
// declared type must match: a renamed file passes one but not the other.
func (v *Validator) ValidateHeader(filename, declaredType string, size int64) *ValidationError {
	if size > v.maxSize {
		return &ValidationError{
			Reason:  fmt.Sprintf("file exceeds the %d MiB size limit", v.maxSize>>20),
			Allowed: v.allowedExts,
		}
	}

	ext := strings.ToLower(filepath.Ext(filename))
	expected, ok := v.extToMIME[ext]
	if !ok {
		return &ValidationError{
			Reason:  fmt.Sprintf("file extension %q is not allowed", ext),
			Allowed: v.allowedExts,
		}
	}

	declared, _, err := mime.ParseMediaType(declaredType)
	if err != nil || !sameMediaType(declared, expected) {
		return &ValidationError{
			Reason:  fmt.Sprintf("declared content type %q does not match extension %q", declaredType, ext),
			Allowed: v.allowedExts,
		}
	}

	return nil
}

// ValidateContent sniffs the true type from the file bytes and verifies
// the image header is decodable. This catches disguised payloads whose
// extension and declared type both lie.
func (v *Validator) ValidateContent(data []byte) *ValidationError {
	sniffed := imaging.Sniff(data)
	base, _, err := mime.ParseMediaType(sniffed)
	if err != nil {
		base = sniffed
	}
	if _, ok := v.allowedMIME[base]; !ok {
		return &ValidationError{
			Reason:  fmt.Sprintf("file content detected as %q, not an allowed image type", sniffed),
			Allowed: v.allowedExts,
		}
	}

	if err := imaging.CheckDecodable(data); err != nil {
		return &ValidationError{
			Reason:  err.Error(),
			Allowed: v.allowedExts,
		}
	}

	return nil
}

func sameMediaType(a, b string) bool {
	if a == b {
		return true
	}
	// image/jpg is a common non-standard spelling of image/jpeg.
	norm := func(s string) string {
		if s == "image/jpg" {
			return "image/jpeg"
		}
		return s
	}
	return norm(a) == norm(b)
}
