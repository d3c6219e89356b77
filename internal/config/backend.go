package config

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	BackendNative = "native"
	BackendONNX   = "onnx"
)

var backendCaser = cases.Lower(language.Und)

// NormalizeBackend trims and lowercases raw, defaulting to BackendNative,
// and rejects anything that is not a known frame-network runtime.
func NormalizeBackend(raw string) (string, error) {
	backend := backendCaser.String(strings.TrimSpace(raw))
	if backend == "" {
		backend = BackendNative
	}

	switch backend {
	case BackendNative, BackendONNX:
		return backend, nil
	default:
		return "", fmt.Errorf("invalid backend %q (expected %s|%s)", raw, BackendNative, BackendONNX)
	}
}
