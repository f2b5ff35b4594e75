package chrome

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetFlatpakChromePath_EmptyWithoutFlatpakOnPath(t *testing.T) {
	if _, err := exec.LookPath("flatpak"); err == nil {
		t.Skip("flatpak is present on this machine's PATH; skipping the negative case")
	}
	require.Equal(t, "", GetFlatpakChromePath())
}

func TestIsFlatpakChromeAvailable_FalseWithoutFlatpakOnPath(t *testing.T) {
	if _, err := exec.LookPath("flatpak"); err == nil {
		t.Skip("flatpak is present on this machine's PATH; skipping the negative case")
	}
	require.False(t, isFlatpakChromeAvailable())
}
