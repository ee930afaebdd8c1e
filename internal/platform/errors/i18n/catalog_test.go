package i18n

import "testing"

func TestGetCatalogFallback(t *testing.T) {
	base := GetCatalog("en-US")
	if base == nil {
		t.Fatal("expected base catalog")
	}
	if fallback := GetCatalog("missing-locale"); fallback != base {
		t.Fatal("expected fallback to en-US catalog")
	}
	if empty := GetCatalog(""); empty != base {
		t.Fatal("expected empty locale to use en-US catalog")
	}
}

func TestGetCatalogMatchesAcceptLanguage(t *testing.T) {
	tests := []struct {
		requested string
		want      string
	}{
		{requested: "pt-BR", want: "pt-BR"},
		{requested: "pt", want: "pt-BR"},
		{requested: "pt-PT,pt;q=0.9,en;q=0.5", want: "pt-BR"},
		{requested: "en-GB", want: "en-US"},
		{requested: "ja-JP", want: "en-US"},
	}
	for _, tt := range tests {
		t.Run(tt.requested, func(t *testing.T) {
			if got := GetCatalog(tt.requested).Locale(); got != tt.want {
				t.Fatalf("locale = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEveryCodeHasMessagesInAllCatalogs(t *testing.T) {
	codes := []Code{
		CodeRecordNotFound,
		CodeRecordAlreadyExists,
		CodeAuthFailure,
		CodePermissionDenied,
		CodeInvalidMetadata,
		CodeInvalidMetrics,
		CodeInvalidTaxonomy,
		CodeInvalidOperator,
	}
	for _, cat := range []*Catalog{enUSCatalog, ptBRCatalog} {
		for _, code := range codes {
			if _, ok := cat.messages[code]; !ok {
				t.Fatalf("catalog %s missing %s", cat.locale, code)
			}
		}
	}
}

func TestFormatRendersMetadata(t *testing.T) {
	got := GetCatalog("en-US").Format(CodeRecordNotFound, map[string]string{"RecordKey": "7"})
	if got != "Record 7 was not found" {
		t.Fatalf("format = %q", got)
	}
}

func TestFormatFallbacks(t *testing.T) {
	cat := NewCatalog("test", map[Code]string{
		"code": "hello {{.Name}}",
	})

	if cat.Format("unknown", nil) != "unknown" {
		t.Fatal("expected code fallback when template missing")
	}
	if cat.Format("code", nil) != "hello <no value>" {
		t.Fatal("expected template to render missing metadata")
	}
}

func TestFormatTemplateErrorFallback(t *testing.T) {
	cat := NewCatalog("test", map[Code]string{
		"code": "{{ if .Name }}",
	})
	if cat.Format("code", map[string]string{"Name": "X"}) != "{{ if .Name }}" {
		t.Fatal("expected template fallback on parse error")
	}
}

func TestRegisterCatalog(t *testing.T) {
	custom := NewCatalog("custom", map[Code]string{"code": "ok"})
	RegisterCatalog("custom", custom)
	if got := GetCatalog("custom"); got != custom {
		t.Fatal("expected registered catalog")
	}
}
