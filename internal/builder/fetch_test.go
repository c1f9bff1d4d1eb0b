package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseGitURL(t *testing.T) {
	tests := []struct {
		raw  string
		want gitURL
	}{
		{
			"https://github.com/someone/something",
			gitURL{cleanURL: "https://github.com/someone/something.git"},
		},
		{
			"https://github.com/someone/something.git",
			gitURL{cleanURL: "https://github.com/someone/something.git"},
		},
		{
			"https://github.com/someone/something@master",
			gitURL{cleanURL: "https://github.com/someone/something.git", branch: "master"},
		},
		{
			"https://github.com/someone/something#0.1.0",
			gitURL{cleanURL: "https://github.com/someone/something.git", commitOrTag: "0.1.0"},
		},
		{
			"https://github.com/someone/something@feature-branch#12345abc",
			gitURL{cleanURL: "https://github.com/someone/something.git", branch: "feature-branch", commitOrTag: "12345abc"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, parseGitURL(tt.raw))
		})
	}
}

func TestFetchSourcesRejectsUnknownForms(t *testing.T) {
	for _, source := range []string{"", "ftp://example.com/x", "owner/repo", "svn:whatever"} {
		t.Run(source, func(t *testing.T) {
			err := FetchSources(source, t.TempDir())
			assert.ErrorIs(t, err, errIllegalSource)
		})
	}
}
