package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() { hashCost = 0 })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestHashPassword_FromArgument(t *testing.T) {
	out, err := run(t, "", "hash-password", "--cost", "4", "correct-horse")
	require.NoError(t, err)

	hash := strings.TrimSpace(out)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("correct-horse")))
}

func TestHashPassword_FromStdin(t *testing.T) {
	out, err := run(t, "correct-horse\n", "hash-password", "--cost", "4")
	require.NoError(t, err)

	hash := strings.TrimSpace(out)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("correct-horse")))
}

func TestHashPassword_Rejects(t *testing.T) {
	_, err := run(t, "", "hash-password", "--cost", "4")
	assert.Error(t, err)

	_, err = run(t, "", "hash-password", "--cost", "4", "short")
	assert.Error(t, err)
}

func TestMigrateCategories_MemoryStore(t *testing.T) {
	t.Setenv("SITE_DB_DRIVER", "memory")
	out, err := run(t, "", "migrate-categories", "--config", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, `migrated 0 services into "roja"`)
}
