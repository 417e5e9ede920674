package docs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"testing/fstest"
)

func TestBuiltInHelp(t *testing.T) {
	s := NewService("")

	list, err := s.ListDocs()
	if err != nil {
		t.Fatalf("ListDocs: %v", err)
	}
	if len(list) < 3 || list[0] != "amounts.adoc" {
		t.Fatalf("unexpected doc list: %v", list)
	}

	html, err := s.GetDoc(context.Background(), "amounts.adoc")
	if err != nil {
		t.Fatalf("GetDoc: %v", err)
	}
	if !strings.Contains(html, "1000000000000000000") {
		t.Fatalf("rendered doc missing table content: %s", html)
	}
}

func TestGetDocCachesAndValidates(t *testing.T) {
	fsys := fstest.MapFS{
		"intro.adoc": {Data: []byte("= Intro\n\nHello *market*.\n")},
		"notes.txt":  {Data: []byte("ignored")},
	}
	s := NewServiceFS(fsys)

	list, _ := s.ListDocs()
	if len(list) != 1 || list[0] != "intro.adoc" {
		t.Fatalf("only .adoc files should be listed: %v", list)
	}

	first, err := s.GetDoc(context.Background(), "intro.adoc")
	if err != nil {
		t.Fatalf("GetDoc: %v", err)
	}
	if !strings.Contains(first, "<strong>market</strong>") {
		t.Fatalf("unexpected html: %s", first)
	}

	delete(fsys, "intro.adoc")
	second, err := s.GetDoc(context.Background(), "intro.adoc")
	if err != nil || second != first {
		t.Fatalf("expected cached copy, got %v", err)
	}

	for _, name := range []string{"../secret.adoc", "notes.txt", "sub/intro.adoc"} {
		if _, err := s.GetDoc(context.Background(), name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("GetDoc(%q) = %v, want ErrInvalidName", name, err)
		}
	}
}
