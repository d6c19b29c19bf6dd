package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/catalog/internal/config"
	"github.com/mrlokans/catalog/internal/database"
	"github.com/mrlokans/catalog/internal/entities"
	"github.com/mrlokans/catalog/internal/search"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := NewRootCommand("1.2.3")

	names := map[string]bool{}
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}

	for _, want := range []string{"migrate", "search", "prune-logs", "worker"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
	assert.Equal(t, "1.2.3", root.Version)
}

func TestRootCommandHelp(t *testing.T) {
	root := NewRootCommand("dev")
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"--help"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "prune-logs")
	assert.Contains(t, out.String(), "CATALOG_CONFIG_FILE")
}

func TestSearchParams(t *testing.T) {
	opts := &searchOptions{}
	cmd := &cobra.Command{Use: "search"}
	opts.bind(cmd)
	require.NoError(t, cmd.ParseFlags([]string{
		"--author", "3",
		"--max-price", "40",
		"--from", "2020-01-01",
		"--sort", "newest",
		"--limit", "10",
	}))

	p, err := opts.params(cmd, []string{"distributed", "systems"})
	require.NoError(t, err)

	assert.Equal(t, "distributed systems", p.Query)
	require.NotNil(t, p.AuthorID)
	assert.Equal(t, int64(3), *p.AuthorID)
	assert.Nil(t, p.CategoryID)
	assert.Nil(t, p.MinPrice, "unset price flags stay unset")
	require.NotNil(t, p.MaxPrice)
	assert.Equal(t, 40.0, *p.MaxPrice)
	require.NotNil(t, p.PublishedFrom)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), *p.PublishedFrom)
	assert.Nil(t, p.PublishedTo)
	assert.Equal(t, search.SortNewest, p.Sort)
	assert.Equal(t, database.Page{Limit: 10}, p.Page)
}

func TestSearchParamsInvalidDate(t *testing.T) {
	opts := &searchOptions{}
	cmd := &cobra.Command{Use: "search"}
	opts.bind(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--to", "yesterday"}))

	_, err := opts.params(cmd, nil)
	assert.ErrorContains(t, err, "--to")
}

func TestPrintBooks(t *testing.T) {
	out := &bytes.Buffer{}
	require.NoError(t, printBooks(out, []entities.Book{{
		ID:            1,
		Title:         "Learning Systems",
		AuthorName:    "A. Author",
		Price:         29.99,
		PublishedDate: time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC),
		Categories:    []entities.Category{{ID: 1, Name: "C1"}, {ID: 2, Name: "C2"}},
	}}))

	assert.Contains(t, out.String(), "Learning Systems")
	assert.Contains(t, out.String(), "29.99")
	assert.Contains(t, out.String(), "2021-03-01")
	assert.Contains(t, out.String(), "C1, C2")

	out.Reset()
	require.NoError(t, printBooks(out, nil))
	assert.Equal(t, "No books found\n", out.String())
}

func TestPruneLogsRejectsNonPositiveDays(t *testing.T) {
	a := &app{cfg: &config.Config{}}
	cmd := newPruneLogsCommand(a)
	cmd.SetArgs([]string{"--days", "0"})

	err := cmd.Execute()
	assert.ErrorContains(t, err, "--days must be positive")
}
