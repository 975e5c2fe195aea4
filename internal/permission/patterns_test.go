package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		name      string
		approved  string
		requested string
		want      bool
	}{
		{"global wildcard", "*", "anything at all", true},
		{"exact non-wildcard is not Matches' job", "git commit *", "git commit *", true},
		{"command prefix", "git *", "git push origin", true},
		{"command prefix no partial word", "git *", "github-cli auth", false},
		{"subcommand prefix", "git commit *", "git commit -m msg", true},
		{"subcommand mismatch", "git commit *", "git push origin", false},
		{"doublestar glob", "docs/**", "docs/guide/intro.md", true},
		{"doublestar miss", "docs/**", "src/main.go", false},
		{"single star glob", "src/*.go", "src/main.go", true},
		{"single star no recursion", "src/*.go", "src/sub/main.go", false},
		{"plain string never matches different", "ls -la", "ls", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.approved, tt.requested))
		})
	}
}

func TestBuildPattern(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{Command{Name: "git", Subcommand: "commit", Args: []string{"commit", "-m", "msg"}}, "git commit *"},
		{Command{Name: "ls", Args: []string{"-la"}}, "ls *"},
		{Command{Name: "make"}, "make *"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BuildPattern(tt.cmd))
	}
}

func TestBuildPatterns_DeduplicatesAndSkipsCd(t *testing.T) {
	cmds := []Command{
		{Name: "cd", Args: []string{"/tmp"}, Subcommand: "/tmp"},
		{Name: "git", Subcommand: "status", Args: []string{"status"}},
		{Name: "git", Subcommand: "status", Args: []string{"status", "-s"}},
		{Name: "make", Subcommand: "build", Args: []string{"build"}},
	}

	got := BuildPatterns(cmds)
	assert.Equal(t, []string{"git status *", "make build *"}, got)
}
