package main

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestSplitFlag(t *testing.T) {
	args := []string{"data", "--keep", "out.huff"}
	rest, found := splitFlag(args, "--keep")
	if !found || !reflect.DeepEqual(rest, []string{"data", "out.huff"}) {
		t.Fatalf("splitFlag = %v, %v", rest, found)
	}
	if args[1] != "--keep" {
		t.Fatalf("splitFlag must not modify its input: %v", args)
	}

	rest, found = splitFlag([]string{"data"}, "--keep")
	if found || !reflect.DeepEqual(rest, []string{"data"}) {
		t.Fatalf("splitFlag without flag = %v, %v", rest, found)
	}
}

func TestDetermineOutputPath(t *testing.T) {
	testCases := []struct {
		name string
		args []string
		want string
	}{
		{"explicit", []string{"data", "backup.huff"}, "backup.huff"},
		{"sibling", []string{filepath.Join("work", "data")}, filepath.Join("work", "data.huff")},
		{"trailing separator", []string{filepath.Join("work", "data") + string(filepath.Separator)}, filepath.Join("work", "data.huff")},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := determineOutputPath(tc.args[0], tc.args); got != tc.want {
				t.Errorf("determineOutputPath(%v) = %q, want %q", tc.args, got, tc.want)
			}
		})
	}
}
