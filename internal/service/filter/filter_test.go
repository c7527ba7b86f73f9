package filter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jgivc/mfdl/internal/config"
	"github.com/jgivc/mfdl/internal/entity"
)

func TestMatchAny(t *testing.T) {
	filters, err := FromConfig([]config.FilterConfig{
		{Name: `^tmp_`},
		{Ext: []string{".LOG", "bak"}},
		{MinSize: 10, MaxSize: 100},
		{After: "2020-01-01", Before: "2021-01-01"},
	})
	require.NoError(t, err)
	require.Len(t, filters, 4)

	testCases := []struct {
		name    string
		file    entity.FileInfo
		matched string
	}{
		{
			name:    "name",
			file:    entity.FileInfo{Filename: "tmp_a.bin", Size: 50, Created: "2020-05-01 00:00:00"},
			matched: "name filter '^tmp_'",
		},
		{
			name:    "extension case insensitive",
			file:    entity.FileInfo{Filename: "server.log", Size: 50, Created: "2020-05-01 00:00:00"},
			matched: "extension filter",
		},
		{
			name:    "too small",
			file:    entity.FileInfo{Filename: "a.bin", Size: 5, Created: "2020-05-01 00:00:00"},
			matched: "size filter",
		},
		{
			name:    "too large",
			file:    entity.FileInfo{Filename: "a.bin", Size: 500, Created: "2020-05-01 00:00:00"},
			matched: "size filter",
		},
		{
			name:    "too old",
			file:    entity.FileInfo{Filename: "a.bin", Size: 50, Created: "2019-12-31 23:59:59"},
			matched: "date filter",
		},
		{
			name:    "too new",
			file:    entity.FileInfo{Filename: "a.bin", Size: 50, Created: "2021-01-01 00:00:00"},
			matched: "date filter",
		},
		{
			name: "passes",
			file: entity.FileInfo{Filename: "a.bin", Size: 50, Created: "2020-05-01 00:00:00"},
		},
		{
			name: "unknown date passes",
			file: entity.FileInfo{Filename: "a.bin", Size: 50},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := MatchAny(&tc.file, filters)
			if tc.matched == "" {
				require.Nil(t, f)

				return
			}

			require.NotNil(t, f)
			require.Contains(t, f.String(), tc.matched)
		})
	}
}

func TestFromConfigErrors(t *testing.T) {
	testCases := []struct {
		name string
		rule config.FilterConfig
	}{
		{name: "bad regexp", rule: config.FilterConfig{Name: "("}},
		{name: "bad size range", rule: config.FilterConfig{MinSize: 10, MaxSize: 5}},
		{name: "negative size", rule: config.FilterConfig{MinSize: -1}},
		{name: "bad date", rule: config.FilterConfig{After: "01/02/2020"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromConfig([]config.FilterConfig{tc.rule})
			require.Error(t, err)
		})
	}
}

func TestNoFilters(t *testing.T) {
	filters, err := FromConfig(nil)
	require.NoError(t, err)
	require.Empty(t, filters)
	require.Nil(t, MatchAny(&entity.FileInfo{Filename: "a"}, filters))
}
