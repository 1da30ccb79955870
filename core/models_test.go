package core

import (
	"testing"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "same content produces same ID",
			content: "docs/report.txt",
		},
		{
			name:    "empty string",
			content: "",
		},
		{
			name:    "long content",
			content: "a/very/deeply/nested/storage/path/that/should/still/hash/consistently.txt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromContent(tt.content)
			id2 := IDFromContent(tt.content)

			if id1 != id2 {
				t.Errorf("IDFromContent() produced different IDs for same content: %d vs %d", id1, id2)
			}
		})
	}
}

func TestIDFromContent_Different(t *testing.T) {
	id1 := IDFromContent("files/a.txt")
	id2 := IDFromContent("files/b.txt")

	if id1 == id2 {
		t.Errorf("IDFromContent() produced same ID for different content")
	}
}

func TestRoleValues(t *testing.T) {
	if RoleUser == RoleAssistant {
		t.Fatal("RoleUser and RoleAssistant must differ")
	}
	if RoleUser == 0 || RoleAssistant == 0 {
		t.Fatal("roles must not use the zero value")
	}
}
