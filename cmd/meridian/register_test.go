package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meridian/internal/registration"
)

var (
	companyLines = []string{"Globex", "globex", "12345678000195", "", ""}
	adminLines   = []string{"hank@globex.test", "11933334444", "s3cret-pass", "s3cret-pass", "hank", "y", ""}
	addressLines = []string{"01001000", "100", "", "", "", "", "", ""}
)

func concat(parts ...[]string) []string {
	var out []string
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestRegister(t *testing.T) {
	t.Run("walks every step and submits", func(t *testing.T) {
		ta := newTestApp(t, "", concat(companyLines, adminLines, addressLines)...)

		require.NoError(t, ta.run("register"))
		out := ta.out.String()
		assert.Contains(t, out, "== Step 1/3: Company ==")
		assert.Contains(t, out, "== Step 3/3: Address ==")
		assert.Contains(t, out, "[success] Company registered")

		regs := ta.backend.Registrations()
		require.Len(t, regs, 1)
		assert.Equal(t, "globex", regs[0].Values.Get("schema_name"))
		assert.Equal(t, "São Paulo", regs[0].Values.Get("cidade"))
		assert.Equal(t, "Praça da Sé", regs[0].Values.Get("endereco"))
	})

	t.Run("invalid step is shown and prompted again", func(t *testing.T) {
		ta := newTestApp(t, "", "Globex", "globex", "123", "", "", cmdQuit)

		err := ta.run("register")
		assert.ErrorIs(t, err, errQuit)
		out := ta.out.String()
		assert.Contains(t, out, "  ! document: ")
		assert.Contains(t, out, "Company name [Globex]: ")
		assert.Empty(t, ta.backend.Registrations())
	})

	t.Run("prev returns to the previous step", func(t *testing.T) {
		ta := newTestApp(t, "", concat(companyLines, []string{cmdPrev, "", "", "", "", "", cmdQuit})...)

		assert.ErrorIs(t, ta.run("register"), errQuit)
		out := ta.out.String()
		assert.Contains(t, out, "== Step 2/3: Administrator ==")
		assert.Equal(t, 2, countOf(out, "== Step 1/3: Company =="))
		assert.Contains(t, out, "Company name [Globex]: ")
	})

	t.Run("ctrl+left moves back", func(t *testing.T) {
		ta := newTestApp(t, "", concat(companyLines, []string{"\x1b[1;5D", cmdQuit})...)

		assert.ErrorIs(t, ta.run("register"), errQuit)
		assert.Equal(t, 2, countOf(ta.out.String(), "== Step 1/3: Company =="))
	})
}

func countOf(s, sub string) int {
	n := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			n++
		}
	}
	return n
}

func TestFieldSet(t *testing.T) {
	var f registration.Form
	fields := stepFields(&f)

	accept := fields[1][5]
	require.NoError(t, accept.set("yes"))
	assert.True(t, f.Admin.Accepted)
	require.NoError(t, accept.set("n"))
	assert.False(t, f.Admin.Accepted)
	assert.Error(t, accept.set("maybe"))

	logo := fields[0][4]
	assert.Error(t, logo.set("/does/not/exist.png"))
	assert.Nil(t, f.Company.Logo)

	name := fields[0][0]
	require.NoError(t, name.set("Initech"))
	assert.Equal(t, "Initech", name.current())
}
