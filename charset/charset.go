// Package charset decodes DSL source files authored in a legacy
// 8-bit or CJK charset into UTF-8 before the compiler ever sees them,
// via a small name registry in the same spirit as the core's own
// character-set registration scheme. The compiler itself only ever
// reads UTF-8; this package is where the `--charset` CLI flag is
// actually applied. There is no in-source charset pragma.
package charset

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	gdencoding "github.com/gdamore/encoding"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
)

var (
	mu       sync.Mutex
	registry map[string]encoding.Encoding
)

func init() {
	registry = map[string]encoding.Encoding{
		"ISO8859-1":  charmap.ISO8859_1,
		"ISO8859-2":  charmap.ISO8859_2,
		"ISO8859-15": charmap.ISO8859_15,
		"KOI8-R":     charmap.KOI8R,
		"KOI8-U":     charmap.KOI8U,
		"EUC-JP":     japanese.EUCJP,
		"Shift_JIS":  japanese.ShiftJIS,
		"EUC-KR":     korean.EUCKR,
		"GBK":        simplifiedchinese.GBK,
		"GB18030":    simplifiedchinese.GB18030,
		"Big5":       traditionalchinese.Big5,
		"CP437":      gdencoding.CP437,
	}
}

// Register adds (or overrides) a named encoding, mirroring the
// application-extensible registry the terminal core itself exposes
// for its own character-set table.
func Register(name string, enc encoding.Encoding) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = enc
}

// Names returns every registered charset name, sorted, for the CLI's
// `--charset` flag help text.
func Names() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(registry)+1)
	names = append(names, "UTF-8")
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Decode transcodes src from the named charset into UTF-8. "" and
// "UTF-8" (case-insensitive) are passthrough: src is assumed already
// valid UTF-8 and is returned unchanged.
func Decode(src []byte, name string) ([]byte, error) {
	if name == "" || strings.EqualFold(name, "UTF-8") {
		return src, nil
	}
	mu.Lock()
	enc, ok := registry[name]
	mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("charset: unsupported charset %q", name)
	}
	out, err := enc.NewDecoder().Bytes(src)
	if err != nil {
		return nil, fmt.Errorf("charset: decoding %q: %w", name, err)
	}
	return out, nil
}
