package util

import "testing"

func TestSanitizeTextStripsNULAndControls(t *testing.T) {
	in := "hello\x00 world\x01\ttab\nnewline"
	out := SanitizeText(in)
	if out != "hello world\ttab\nnewline" {
		t.Fatalf("unexpected sanitized text: %q", out)
	}
}

func TestSnippetTruncates(t *testing.T) {
	out := Snippet("alpha   beta\n gamma delta", 10)
	if out != "alpha beta..." {
		t.Fatalf("unexpected snippet: %q", out)
	}
	if Snippet("short", 10) != "short" {
		t.Fatalf("short input should pass through")
	}
}
