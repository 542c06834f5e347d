package cmd

import (
	"encoding/json"
	goruntime "runtime"
	"testing"

	"github.com/pithecene-io/sluice/types"
)

func TestVersion(t *testing.T) {
	tests := []struct {
		commit     string
		wantCommit string
	}{
		{"abc123", "abc123"},
		{"", "unknown"},
	}
	for _, tt := range tests {
		app, stdout, _ := newTestApp(VersionCommand(tt.commit))
		if err := app.Run([]string{"sluice", "version", "--format", "json"}); err != nil {
			t.Fatalf("version failed: %v", err)
		}

		var got VersionResponse
		if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON output %q: %v", stdout.String(), err)
		}
		want := VersionResponse{
			Version:         types.Version,
			ContractVersion: types.ContractVersion,
			Commit:          tt.wantCommit,
			GoVersion:       goruntime.Version(),
			Platform:        goruntime.GOOS + "/" + goruntime.GOARCH,
		}
		if got != want {
			t.Errorf("version = %+v, want %+v", got, want)
		}
	}
}

func TestVersion_RejectsTUI(t *testing.T) {
	app, _, _ := newTestApp(VersionCommand("abc"))
	err := app.Run([]string{"sluice", "version", "--tui"})
	if code := exitCode(t, err); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}
