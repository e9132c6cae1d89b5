package core

import (
	"fmt"
	"testing"
)

func BenchmarkVersionMapLookup_Exact(b *testing.B) {
	entries := make(map[string]string, 200)
	for i := 0; i < 200; i++ {
		entries[fmt.Sprintf("@scope/pkg-%d", i)] = "1.0.0"
	}
	m, _ := NewVersionMap(entries)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Lookup("@scope/pkg-150")
	}
}

func BenchmarkVersionMapLookup_Pattern(b *testing.B) {
	m, _ := NewVersionMap(map[string]string{
		"@scope/*":        "1.0.0",
		"@scope/plugin-*": "2.0.0",
		"@other/*":        "3.0.0",
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Lookup("@scope/plugin-foo")
	}
}

func BenchmarkSupportedClients(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = SupportedClients()
	}
}
