package codemap

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestResolveExactMatch(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "auth/login.go", `package auth

func LoginHandler(w http.ResponseWriter, r *http.Request) {}

type Session struct{}
`)

	m, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}

	refs, err := m.Resolve("LoginHandler")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("got %d refs, want 1", len(refs))
	}
	if refs[0].Symbol != "LoginHandler" || refs[0].Confidence != 1.0 {
		t.Errorf("ref = %+v", refs[0])
	}
}

func TestResolveIsCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "auth/login.go", "package auth\n\nfunc LoginHandler() {}\n")

	m, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}

	refs, err := m.Resolve("loginhandler")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("got %d refs, want 1", len(refs))
	}
}

func TestResolveFallsBackToFuzzyMatch(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "billing/invoice.go", "package billing\n\nfunc InvoiceGenerator() {}\n")

	m, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}

	refs, err := m.Resolve("invoice generater")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(refs) != 1 || refs[0].Symbol != "InvoiceGenerator" {
		t.Fatalf("refs = %+v, want a fuzzy match on InvoiceGenerator", refs)
	}
	if refs[0].Confidence <= 0 || refs[0].Confidence >= 1.0 {
		t.Errorf("confidence = %v, want a fuzzy score strictly between 0 and 1", refs[0].Confidence)
	}
}

func TestResolveUnknownNameReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "auth/login.go", "package auth\n\nfunc LoginHandler() {}\n")

	m, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}

	refs, err := m.Resolve("completely unrelated gibberish xyz")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(refs) != 0 {
		t.Errorf("refs = %+v, want none", refs)
	}
}

func TestResolveEmptyNameReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	m, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	refs, err := m.Resolve("")
	if err != nil || len(refs) != 0 {
		t.Errorf("Resolve(\"\") = %v, %v", refs, err)
	}
}

func TestNewFSSkipsVendorAndGitDirs(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "vendor/lib/lib.go", "package lib\n\nfunc VendoredFunc() {}\n")
	writeTestFile(t, dir, ".git/hooks/fake.go", "package hooks\n\nfunc HookFunc() {}\n")
	writeTestFile(t, dir, "app/app.go", "package app\n\nfunc AppFunc() {}\n")

	m, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}

	if refs, _ := m.Resolve("VendoredFunc"); len(refs) != 0 {
		t.Error("expected vendor/ to be skipped")
	}
	if refs, _ := m.Resolve("HookFunc"); len(refs) != 0 {
		t.Error("expected .git/ to be skipped")
	}
	if refs, _ := m.Resolve("AppFunc"); len(refs) != 1 {
		t.Error("expected app/ to be indexed")
	}
}
