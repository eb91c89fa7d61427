package theme

import (
	"strings"
	"testing"
)

func TestInitSymbolsASCIIOverride(t *testing.T) {
	t.Setenv("CYSINFO_ASCII_SYMBOLS", "1")
	InitSymbols()
	t.Cleanup(func() {
		t.Setenv("CYSINFO_ASCII_SYMBOLS", "")
		InitSymbols()
	})

	if SymbolSuccess != "[OK]" || SymbolError != "[ERR]" {
		t.Errorf("got %q/%q, want ASCII symbols", SymbolSuccess, SymbolError)
	}
	if !strings.Contains(Failure("boom"), "[ERR]") {
		t.Errorf("Failure() = %q", Failure("boom"))
	}
}

func TestDetectUnicodeSupportLocale(t *testing.T) {
	t.Setenv("CYSINFO_ASCII_SYMBOLS", "")
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_CTYPE", "")

	t.Setenv("LANG", "en_US.UTF-8")
	if !DetectUnicodeSupport() {
		t.Error("UTF-8 locale should support unicode")
	}

	t.Setenv("LANG", "C")
	if DetectUnicodeSupport() {
		t.Error("C locale should fall back to ASCII")
	}

	t.Setenv("LANG", "")
	if !DetectUnicodeSupport() {
		t.Error("unset locale defaults to unicode")
	}
}

func TestSymbolSetsAreSingleWidthAlternatives(t *testing.T) {
	pairs := []struct {
		name           string
		unicode, ascii string
	}{
		{"success", unicodeSymbols.Success, asciiSymbols.Success},
		{"error", unicodeSymbols.Error, asciiSymbols.Error},
		{"warning", unicodeSymbols.Warning, asciiSymbols.Warning},
		{"bullet", unicodeSymbols.Bullet, asciiSymbols.Bullet},
		{"ellipsis", unicodeSymbols.Ellipsis, asciiSymbols.Ellipsis},
	}
	for _, p := range pairs {
		if n := len([]rune(p.unicode)); n != 1 {
			t.Errorf("%s: unicode symbol %q has %d runes, want 1", p.name, p.unicode, n)
		}
		if p.ascii == "" || p.ascii == p.unicode {
			t.Errorf("%s: ascii fallback %q must differ from %q", p.name, p.ascii, p.unicode)
		}
	}
	if unicodeSymbols.Success != "✓" || unicodeSymbols.Ellipsis != "…" {
		t.Errorf("unexpected glyphs %q %q", unicodeSymbols.Success, unicodeSymbols.Ellipsis)
	}
}
