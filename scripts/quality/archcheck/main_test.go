package main

import (
	"strings"
	"testing"
)

func TestViolationReason(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		importer string
		imported string
		want     string
	}{
		{
			name:     "content stays chat agnostic",
			importer: "wedding-bot/pkg/content",
			imported: "wedding-bot/pkg/chat",
			want:     "pkg/content must not import pkg/chat",
		},
		{
			name:     "modules see only pkg",
			importer: "wedding-bot/modules/photos",
			imported: "wedding-bot/internal/kernel",
			want:     "modules must not import internal",
		},
		{
			name:     "server does not reach into kernel",
			importer: "wedding-bot/internal/server",
			imported: "wedding-bot/internal/kernel",
			want:     "internal/server must not import internal/kernel",
		},
		{
			name:     "sources may use content",
			importer: "wedding-bot/internal/source/gcs",
			imported: "wedding-bot/pkg/content",
		},
		{
			name:     "cmd wires everything",
			importer: "wedding-bot/cmd/bot",
			imported: "wedding-bot/internal/driver",
		},
		{
			name:     "third party ignored",
			importer: "wedding-bot/pkg/chat",
			imported: "github.com/google/uuid",
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			if got := violationReason(testCase.importer, testCase.imported); got != testCase.want {
				t.Fatalf("violationReason() = %q, want %q", got, testCase.want)
			}
		})
	}
}

func TestCollectViolationsFromGoList(t *testing.T) {
	t.Parallel()

	input := `{"ImportPath":"wedding-bot/modules/photos","Imports":["wedding-bot/pkg/content","wedding-bot/internal/kernel"],"TestImports":["wedding-bot/internal/kernel"]}
{"ImportPath":"wedding-bot/internal/server","Imports":["wedding-bot/internal/source/localfs"]}
{"ImportPath":""}`

	packages, err := decodePackages(strings.NewReader(input))
	if err != nil {
		t.Fatalf("decodePackages: %v", err)
	}
	if len(packages) != 2 {
		t.Fatalf("packages = %d, want 2", len(packages))
	}

	got := collectViolations(packages)
	want := "wedding-bot/modules/photos -> wedding-bot/internal/kernel (modules must not import internal)"
	if len(got) != 1 || got[0] != want {
		t.Fatalf("violations = %q, want [%q]", got, want)
	}
}

func TestDecodePackagesRejectsGarbage(t *testing.T) {
	t.Parallel()

	if _, err := decodePackages(strings.NewReader(`{"ImportPath":`)); err == nil {
		t.Fatal("truncated JSON decoded without error")
	}
}
