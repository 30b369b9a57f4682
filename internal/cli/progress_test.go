package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMigrationConsole(t *testing.T) {
	out := &syncBuffer{}
	console := NewMigrationConsole(out)

	console.Progress("clients", 0, 0)
	assert.Nil(t, console.bar)

	console.Progress("clients", 1, 3)
	console.Entry("[10:00:00] migrated lender chase")
	console.Progress("clients", 3, 3)
	console.Finish()

	assert.Contains(t, out.String(), "[10:00:00] migrated lender chase")
	assert.Contains(t, out.String(), "clients")
	assert.Nil(t, console.bar)
}

func TestMigrationConsole_NewStageStartsNewBar(t *testing.T) {
	console := NewMigrationConsole(&syncBuffer{})

	console.Progress("scan", 1, 2)
	first := console.bar
	console.Progress("relocate", 1, 5)

	assert.NotSame(t, first, console.bar)
	assert.Equal(t, "relocate", console.stage)
}
