package enums

import "testing"

func TestNormalizeEngagementType(t *testing.T) {
	cases := map[string]EngagementType{
		"click":     EngagementClick,
		" Share ":   EngagementShare,
		"DOWNLOAD":  EngagementDownload,
		"Bogus":     EngagementView,
		"":          EngagementView,
		"clickable": EngagementView,
	}
	for in, want := range cases {
		if got := NormalizeEngagementType(in); got != want {
			t.Fatalf("NormalizeEngagementType(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestNormalizeEngagementSource(t *testing.T) {
	cases := map[string]EngagementSource{
		"mobile":  SourceMobile,
		" Email":  SourceEmail,
		"carrier": SourceWeb,
		"":        SourceWeb,
	}
	for in, want := range cases {
		if got := NormalizeEngagementSource(in); got != want {
			t.Fatalf("NormalizeEngagementSource(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestParseRejectsUnknownValues(t *testing.T) {
	if _, err := ParseEngagementType("hover"); err == nil {
		t.Fatal("expected error for unknown type")
	}
	if _, err := ParseEngagementSource("fax"); err == nil {
		t.Fatal("expected error for unknown source")
	}
}

func TestEnumListsAreCopies(t *testing.T) {
	types := EngagementTypes()
	types[0] = "mutated"
	if EngagementTypes()[0] != EngagementClick {
		t.Fatal("EngagementTypes should return a copy")
	}
	if len(EngagementSources()) != 5 {
		t.Fatalf("expected 5 sources")
	}
}

func TestDataSourceIsValid(t *testing.T) {
	if !DataSourceUploaded.IsValid() || !DataSourceGenerated.IsValid() || !DataSourceLive.IsValid() {
		t.Fatal("expected known data sources to be valid")
	}
	if DataSource("cache").IsValid() {
		t.Fatal("unexpected valid data source")
	}
}
