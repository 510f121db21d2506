package changerequest

import (
	"testing"

	"github.com/SaintPepsi/pai-tools-sub000/internal/git"
	"github.com/stretchr/testify/require"
)

func TestExtractURLFindsHTTPSLine(t *testing.T) {
	out := "Creating pull request...\nhttps://github.com/acme/repo/pull/42\n"
	require.Equal(t, "https://github.com/acme/repo/pull/42", extractURL(out))
}

func TestExtractURLFallsBackToFullOutput(t *testing.T) {
	out := "no url here"
	require.Equal(t, "no url here", extractURL(out))
}

func TestIDFromURLParsesTrailingNumber(t *testing.T) {
	require.Equal(t, 42, idFromURL("https://github.com/acme/repo/pull/42"))
	require.Equal(t, 42, idFromURL("https://github.com/acme/repo/pull/42/"))
}

func TestIDFromURLNonNumericYieldsZero(t *testing.T) {
	require.Equal(t, 0, idFromURL("https://example.com/not-a-number"))
}

func TestParseStateFromTextDetectsMergedAndClosed(t *testing.T) {
	require.Equal(t, "MERGED", parseStateFromText("Merge request !4 merged"))
	require.Equal(t, "CLOSED", parseStateFromText("state: closed"))
	require.Equal(t, "OPEN", parseStateFromText("state: opened"))
}

func TestStrategyFlagGitHub(t *testing.T) {
	require.Equal(t, "--squash", strategyFlagGitHub("squash"))
	require.Equal(t, "--merge", strategyFlagGitHub("merge"))
	require.Equal(t, "--rebase", strategyFlagGitHub("rebase"))
}

func TestCreateBitbucketReturnsManualURL(t *testing.T) {
	c := &CLIClient{Platform: git.PlatformInfo{Platform: git.PlatformBitbucket, RepoURL: "https://bitbucket.org/acme/repo"}}
	result := c.createBitbucket(CreateOptions{BranchName: "feat/1-foo", BaseBranch: "master"})
	require.Contains(t, result.ManualURL, "bitbucket.org/acme/repo")
	require.Contains(t, result.ManualURL, "source=feat/1-foo")
}

func TestStateUnsupportedPlatformErrors(t *testing.T) {
	c := &CLIClient{Platform: git.PlatformInfo{Platform: git.PlatformUnknown}}
	_, err := c.State(1)
	require.ErrorIs(t, err, ErrUnsupportedPlatform)
}
