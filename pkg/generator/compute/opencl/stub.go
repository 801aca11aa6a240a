//go:build !opencl
// +build !opencl

package opencl

import (
	"fmt"

	"github.com/Amr-9/keyhunter/pkg/generator/compute"
)

// New returns an error when OpenCL is not enabled.
func New() (compute.Backend, error) {
	return nil, fmt.Errorf("OpenCL support not compiled. Build with: go build -tags opencl: %w", compute.ErrNotCompiled)
}
