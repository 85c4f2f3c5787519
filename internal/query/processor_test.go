package query

import (
	"strings"
	"testing"
)

func TestClean(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"  what   is\trobbery  ", "what is robbery"},
		{"18 USC 2113", "18 U.S.C. 2113"},
		{"18 U. S. C. 2113", "18 U.S.C. 2113"},
	}
	for _, tc := range cases {
		if got := Clean(tc.in); got != tc.want {
			t.Errorf("Clean(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestProcess_EmptyQuery(t *testing.T) {
	p := NewProcessor(Options{Expansion: true, Classification: true})

	processed := p.Process("   ")
	if processed.Cleaned != "" {
		t.Errorf("Cleaned = %q, want empty", processed.Cleaned)
	}
	if processed.Intent != IntentGeneral {
		t.Errorf("Intent = %q, want general", processed.Intent)
	}
}

func TestProcess_Keywords(t *testing.T) {
	p := NewProcessor(Options{})

	processed := p.Process("what is the punishment for bank robbery")
	for _, kw := range processed.Keywords {
		if kw == "the" || kw == "is" || kw == "for" {
			t.Errorf("stop-word %q in keywords %v", kw, processed.Keywords)
		}
	}
	joined := strings.Join(processed.Keywords, " ")
	if !strings.Contains(joined, "robbery") || !strings.Contains(joined, "punishment") {
		t.Errorf("keywords %v missing content terms", processed.Keywords)
	}
}

func TestProcess_IntentClassification(t *testing.T) {
	p := NewProcessor(Options{Classification: true})

	cases := []struct {
		query string
		want  Intent
	}{
		{"what is the penalty and prison sentence for robbery", IntentPunishment},
		{"which elements must be proven and are necessary for fraud", IntentElements},
		{"cite the statute section in the usc code", IntentReferences},
	}
	for _, tc := range cases {
		if got := p.Process(tc.query).Intent; got != tc.want {
			t.Errorf("intent of %q = %q, want %q", tc.query, got, tc.want)
		}
	}
}

func TestProcess_ClassificationDisabled(t *testing.T) {
	p := NewProcessor(Options{Classification: false})

	if got := p.Process("what is the penalty for robbery").Intent; got != IntentGeneral {
		t.Errorf("Intent = %q with classification disabled, want general", got)
	}
}

func TestProcess_SectionRefs(t *testing.T) {
	p := NewProcessor(Options{})

	processed := p.Process("explain 18 U.S.C. § 2113 and § 3571")
	if len(processed.SectionRefs) != 2 {
		t.Fatalf("section refs = %v, want 2", processed.SectionRefs)
	}
	if processed.SectionRefs[0] != "2113" || processed.SectionRefs[1] != "3571" {
		t.Errorf("section refs = %v", processed.SectionRefs)
	}
}

func TestProcess_Expansion(t *testing.T) {
	p := NewProcessor(Options{Expansion: true})

	processed := p.Process("theft of government property")
	if len(processed.Expanded) == 0 {
		t.Fatal("expected expanded variants")
	}

	var hasSynonym bool
	seen := make(map[string]struct{})
	for _, v := range processed.Expanded {
		if _, dup := seen[v]; dup {
			t.Errorf("duplicate variant %q", v)
		}
		seen[v] = struct{}{}
		if strings.Contains(v, "larceny") {
			hasSynonym = true
		}
	}
	if !hasSynonym {
		t.Errorf("expected larceny synonym variant in %v", processed.Expanded)
	}
}

func TestProcess_ExpansionDisabled(t *testing.T) {
	p := NewProcessor(Options{Expansion: false})

	if expanded := p.Process("theft of property").Expanded; expanded != nil {
		t.Errorf("Expanded = %v with expansion disabled, want nil", expanded)
	}
}
