package speech

import "testing"

func TestComposeDirectiveJoinsBaseAndOverride(t *testing.T) {
	got := ComposeDirective("Habla con calma.", "Susurra esta frase.")
	want := "Habla con calma. Susurra esta frase."
	if got != want {
		t.Fatalf("ComposeDirective() = %q, want %q", got, want)
	}
}

func TestComposeDirectiveBaseOnly(t *testing.T) {
	if got := ComposeDirective("Habla con calma.", "  "); got != "Habla con calma." {
		t.Fatalf("ComposeDirective() = %q, want base only", got)
	}
}

func TestComposeDirectiveOverrideOnly(t *testing.T) {
	if got := ComposeDirective("", "Susurra."); got != "Susurra." {
		t.Fatalf("ComposeDirective() = %q, want override only", got)
	}
}

func TestComposeDirectiveEmpty(t *testing.T) {
	if got := ComposeDirective(" ", ""); got != "" {
		t.Fatalf("ComposeDirective() = %q, want empty", got)
	}
}
