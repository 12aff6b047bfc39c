//go:build nogpu

package compute

import "fmt"

// NewWebGPU always fails under the nogpu build tag.
func NewWebGPU() (Backend, error) {
	return nil, fmt.Errorf("%w: built with the nogpu tag", ErrDeviceUnavailable)
}
