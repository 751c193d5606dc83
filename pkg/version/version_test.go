package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	oldVersion, oldCommit := Version, Commit
	t.Cleanup(func() { Version, Commit = oldVersion, oldCommit })

	Version, Commit = "v1.2.3", ""
	assert.Equal(t, "kopi v1.2.3 on "+runtime.GOOS+"/"+runtime.GOARCH, String())

	Commit = "abc1234"
	assert.Contains(t, String(), "(abc1234)")
}
