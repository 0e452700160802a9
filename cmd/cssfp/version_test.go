package main

import (
	"encoding/json"
	"runtime"
	"strings"
	"testing"
)

func TestCurrentBuildInfo(t *testing.T) {
	t.Parallel()

	info := currentBuildInfo()
	for name, value := range map[string]string{
		"version": info.Version,
		"commit":  info.Commit,
		"date":    info.Date,
	} {
		if value == "" {
			t.Errorf("%s is empty", name)
		}
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("got %q, expected %q", info.GoVersion, runtime.Version())
	}
	if getVersion() != info.Version {
		t.Errorf("getVersion() = %q, expected %q", getVersion(), info.Version)
	}
}

func TestSettingOf(t *testing.T) {
	t.Parallel()

	if got := settingOf(nil, false, "vcs.revision"); got != unknownValue {
		t.Errorf("got %q, expected %q", got, unknownValue)
	}
}

func TestShortHash(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		in   string
		want string
	}{
		{"0123456789abcdef", "0123456"},
		{"abc", "abc"},
		{unknownValue, unknownValue},
	}
	for _, tc := range testCases {
		if got := shortHash(tc.in); got != tc.want {
			t.Errorf("shortHash(%q) = %q, expected %q", tc.in, got, tc.want)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	t.Parallel()

	t.Run("text", func(t *testing.T) {
		t.Parallel()
		stdout, _, err := executeRoot(t, "version")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{"cssfp version", "commit:", "built:", "go:"} {
			if !strings.Contains(stdout, want) {
				t.Errorf("expected output to contain %q, got %q", want, stdout)
			}
		}
	})

	t.Run("json", func(t *testing.T) {
		t.Parallel()
		stdout, _, err := executeRoot(t, "version", "--json")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var info buildInfo
		if err := json.Unmarshal([]byte(stdout), &info); err != nil {
			t.Fatalf("invalid JSON %q: %v", stdout, err)
		}
		if info.Version == "" || info.GoVersion == "" {
			t.Errorf("incomplete build info: %+v", info)
		}
	})

	t.Run("rejects args", func(t *testing.T) {
		t.Parallel()
		if _, _, err := executeRoot(t, "version", "extra"); err == nil {
			t.Error("expected an error for an argument")
		}
	})
}
