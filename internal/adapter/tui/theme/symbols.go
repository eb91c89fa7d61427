package theme

import (
	"os"
	"strings"
)

// SymbolSet holds the status glyphs, allowing runtime switching between
// Unicode and ASCII fallback sets.
type SymbolSet struct {
	Success  string
	Error    string
	Warning  string
	Bullet   string
	Ellipsis string
}

var unicodeSymbols = SymbolSet{
	Success:  "\u2713", // ✓
	Error:    "\u2717", // ✗
	Warning:  "\u26a0", // ⚠
	Bullet:   "\u2022", // •
	Ellipsis: "\u2026", // …
}

var asciiSymbols = SymbolSet{
	Success:  "[OK]",
	Error:    "[ERR]",
	Warning:  "[!]",
	Bullet:   "*",
	Ellipsis: "...",
}

var (
	SymbolSuccess  = unicodeSymbols.Success
	SymbolError    = unicodeSymbols.Error
	SymbolWarning  = unicodeSymbols.Warning
	SymbolBullet   = unicodeSymbols.Bullet
	SymbolEllipsis = unicodeSymbols.Ellipsis
)

// DetectUnicodeSupport checks whether the terminal likely supports Unicode.
// CYSINFO_ASCII_SYMBOLS takes priority over locale detection.
func DetectUnicodeSupport() bool {
	if v := os.Getenv("CYSINFO_ASCII_SYMBOLS"); v == "1" || strings.EqualFold(v, "true") {
		return false
	}

	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		val := strings.ToLower(os.Getenv(key))
		if strings.Contains(val, "utf-8") || strings.Contains(val, "utf8") {
			return true
		}
		// An explicit non-UTF-8 locale such as "C" or "POSIX".
		if val != "" {
			return false
		}
	}
	return true
}

// InitSymbols sets the package-level Symbol* variables from the terminal
// capabilities. Called by init(); tests call it again after changing the
// environment.
func InitSymbols() {
	set := unicodeSymbols
	if !DetectUnicodeSupport() {
		set = asciiSymbols
	}

	SymbolSuccess = set.Success
	SymbolError = set.Error
	SymbolWarning = set.Warning
	SymbolBullet = set.Bullet
	SymbolEllipsis = set.Ellipsis
}

func init() {
	InitSymbols()
}
