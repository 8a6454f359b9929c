package catalog

import (
	"strings"
	"testing"
	"testing/fstest"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func TestLoadEmbeddedHasExpectedLocales(t *testing.T) {
	bundle, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("load embedded catalogs: %v", err)
	}
	for _, locale := range []string{BaseLocale, "pt-BR"} {
		if !bundle.HasLocale(locale) {
			t.Fatalf("expected locale %s", locale)
		}
	}
	if _, ok := bundle.Message("pt-BR", "viewer.launch"); !ok {
		t.Fatal("expected pt-BR viewer.launch")
	}
}

func TestEmbeddedLocalesDefineSameKeys(t *testing.T) {
	bundle := Default()
	base := bundle.locales[BaseLocale]
	for _, locale := range bundle.Locales() {
		for key := range base {
			if _, ok := bundle.locales[locale][key]; !ok {
				t.Fatalf("locale %s missing key %q", locale, key)
			}
		}
	}
}

func TestMessageFallsBackToBaseLocale(t *testing.T) {
	bundle, err := LoadFromFS(fstest.MapFS{
		"locales/en-US/viewer.yaml": {Data: []byte("locale: en-US\nnamespace: viewer\nmessages:\n  viewer.close: Close\n")},
		"locales/es-ES/viewer.yaml": {Data: []byte("locale: es-ES\nnamespace: viewer\nmessages:\n  viewer.launch: Iniciar\n")},
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got, _ := bundle.Message("es-ES", "viewer.close"); got != "Close" {
		t.Fatalf("Message = %q, want base fallback", got)
	}
	if _, ok := bundle.Message("es-ES", "viewer.missing"); ok {
		t.Fatal("expected missing key")
	}
}

func TestLoadFromFSValidatesFiles(t *testing.T) {
	tests := []struct {
		name string
		fs   fstest.MapFS
		want string
	}{
		{
			name: "locale mismatch",
			fs: fstest.MapFS{
				"locales/en-US/viewer.yaml": {Data: []byte("locale: pt-BR\nnamespace: viewer\nmessages:\n  a: b\n")},
			},
			want: "must match path locale",
		},
		{
			name: "namespace mismatch",
			fs: fstest.MapFS{
				"locales/en-US/viewer.yaml": {Data: []byte("locale: en-US\nnamespace: web\nmessages:\n  a: b\n")},
			},
			want: "must match filename namespace",
		},
		{
			name: "missing base",
			fs: fstest.MapFS{
				"locales/pt-BR/viewer.yaml": {Data: []byte("locale: pt-BR\nnamespace: viewer\nmessages:\n  a: b\n")},
			},
			want: "base locale",
		},
		{
			name: "duplicate key",
			fs: fstest.MapFS{
				"locales/en-US/a.yaml": {Data: []byte("locale: en-US\nnamespace: a\nmessages:\n  k: one\n")},
				"locales/en-US/b.yaml": {Data: []byte("locale: en-US\nnamespace: b\nmessages:\n  k: two\n")},
			},
			want: "duplicate key",
		},
	}
	for _, tc := range tests {
		_, err := LoadFromFS(tc.fs)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: err = %v, want %q", tc.name, err, tc.want)
		}
	}
}

func TestDefaultRegistersPrinterMessages(t *testing.T) {
	Default()
	p := message.NewPrinter(language.MustParse("pt-BR"))
	if got := p.Sprintf("viewer.close"); got != "Fechar" {
		t.Fatalf("pt-BR viewer.close = %q, want %q", got, "Fechar")
	}
	if got := message.NewPrinter(language.Portuguese).Sprintf("viewer.close"); got != "Fechar" {
		t.Fatalf("pt viewer.close = %q, want %q", got, "Fechar")
	}
}
