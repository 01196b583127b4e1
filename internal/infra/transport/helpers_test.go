//go:build linux || darwin

package transport

import (
	"testing"

	"mcpscout/internal/domain"
	"mcpscout/internal/infra/transport/providertest"
)

type fakeSpec struct {
	domain.ProviderSpec
	pidFile string
}

// processGone reports whether the fake provider has exited and been reaped.
func (s fakeSpec) processGone(*testing.T) bool {
	return providertest.Gone(s.pidFile)
}

func fakeProviderSpec(t *testing.T, name, mode string) fakeSpec {
	t.Helper()
	spec, pidFile := providertest.Spec(t, name, mode)
	return fakeSpec{ProviderSpec: spec, pidFile: pidFile}
}
