package cmake

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScript(t *testing.T) {
	t.Run("default install prefix", func(t *testing.T) {
		got := Script(&Options{Configflags: []string{"-DBUILD_TESTING=OFF"}}, 3)
		want := "cmake . -DCMAKE_INSTALL_PREFIX= -DBUILD_TESTING=OFF\n" +
			"cmake --build . -- -j3\n" +
			"DESTDIR=\"$PART_INSTALL/\" cmake --build . --target install\n"
		assert.Equal(t, want, got)
	})

	t.Run("explicit install prefix wins", func(t *testing.T) {
		got := Script(&Options{Configflags: []string{"-DCMAKE_INSTALL_PREFIX=/usr"}}, 0)
		assert.Contains(t, got, "cmake . -DCMAKE_INSTALL_PREFIX=/usr\n")
		assert.NotContains(t, got, "-DCMAKE_INSTALL_PREFIX= ")
		assert.Contains(t, got, "-j1")
	})
}
