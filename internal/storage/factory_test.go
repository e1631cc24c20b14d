package storage

import (
	"path/filepath"
	"testing"
)

func TestNewStoreKinds(t *testing.T) {
	defaultPath := filepath.Join(t.TempDir(), "default.db")
	cases := []struct {
		kind    string
		path    string
		wantErr bool
	}{
		{kind: "memory"},
		{kind: " Memory "},
		{kind: "", path: defaultPath},
		{kind: "sqlite", path: "", wantErr: true},
		{kind: "unknown", wantErr: true},
	}
	for _, tc := range cases {
		store, err := NewStore(tc.kind, tc.path)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("kind %q: expected error", tc.kind)
			}
			continue
		}
		if err != nil {
			t.Fatalf("kind %q: %v", tc.kind, err)
		}
		if store == nil {
			t.Fatalf("kind %q: expected non-nil store", tc.kind)
		}
		if err := CloseStore(store); err != nil {
			t.Fatalf("kind %q: close: %v", tc.kind, err)
		}
	}
}
