package textenc

import "testing"

func TestRepairSpanishDiacritics(t *testing.T) {
	got := Repair("Hola, Â¿en quÃ© puedo ayudarte?")
	want := "Hola, ¿en qué puedo ayudarte?"
	if got != want {
		t.Fatalf("Repair() = %q, want %q", got, want)
	}
}

func TestRepairFullAccentSet(t *testing.T) {
	got := Repair("AquÃ­ estÃ¡ la informaciÃ³n del menÃº de maÃ±ana")
	want := "Aquí está la información del menú de mañana"
	if got != want {
		t.Fatalf("Repair() = %q, want %q", got, want)
	}
}

func TestRepairLeavesCleanTextAlone(t *testing.T) {
	in := "Estoy aquí para ti. ¿Qué necesitas?"
	if got := Repair(in); got != in {
		t.Fatalf("Repair() = %q, want input unchanged", got)
	}
}

func TestRepairLeavesASCIIAlone(t *testing.T) {
	in := "plain ascii stays as is"
	if got := Repair(in); got != in {
		t.Fatalf("Repair() = %q, want input unchanged", got)
	}
}

func TestRepairSmartQuotes(t *testing.T) {
	got := Repair("dijo â€œholaâ€ y se fue")
	want := "dijo “hola” y se fue"
	if got != want {
		t.Fatalf("Repair() = %q, want %q", got, want)
	}
}
