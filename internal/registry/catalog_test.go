package registry

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/opensource-finance/heron/internal/domain"
)

const sampleCatalog = `{
	"version": "2026-08-01",
	"rule_groups": {
		"cashflow": ["R-DEFICIT-01", "R-OVRSPEND-01"]
	},
	"rules": [
		{
			"id": "R-OVRSPEND-01",
			"bucket": "overspend",
			"name": "Overspend vs average",
			"enabled": true,
			"priority": 20,
			"weight": 0.8,
			"condition": {"type": "comparison", "left": "current_month_expense", "operator": ">", "right": "avg_monthly_expense"},
			"severity": {"type": "fixed", "value": "medium"},
			"message_template": "Spending exceeded your monthly average."
		},
		{
			"id": "R-DEFICIT-01",
			"bucket": "deficit",
			"name": "Monthly deficit",
			"enabled": true,
			"priority": 10,
			"weight": 1.0,
			"condition": {"type": "comparison", "left": "current_month_expense", "operator": ">", "right": "current_month_income"},
			"severity": {"type": "fixed", "value": "high"},
			"message_template": "You spent more than you earned this month."
		},
		{
			"id": "R-DISABLED-01",
			"bucket": "savings",
			"name": "Disabled rule",
			"enabled": false,
			"priority": 5,
			"weight": 0.5,
			"condition": {"type": "comparison", "left": "savings_rate", "operator": "<", "right": 0.1},
			"severity": {"type": "fixed", "value": "low"},
			"message_template": "Savings rate is low."
		},
		{
			"id": "R-TIE-01",
			"bucket": "savings",
			"name": "Tie breaker check",
			"enabled": true,
			"priority": 10,
			"weight": 0.5,
			"condition": {"type": "comparison", "left": "savings_rate", "operator": "<", "right": 0.1},
			"severity": {"type": "fixed", "value": "low"},
			"message_template": "Savings rate is low."
		}
	]
}`

func TestLoadCatalog(t *testing.T) {
	cat, err := Load(strings.NewReader(sampleCatalog))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cat.Version() != "2026-08-01" {
		t.Errorf("version: got %q", cat.Version())
	}
	if cat.Len() != 4 {
		t.Errorf("len: got %d, want 4", cat.Len())
	}
	if got := cat.RuleGroups()["cashflow"]; len(got) != 2 {
		t.Errorf("rule groups: got %v", got)
	}

	r, ok := cat.ByID("R-DEFICIT-01")
	if !ok || r.Weight != 1.0 {
		t.Errorf("ByID: got %v, %v", r, ok)
	}
	if _, ok := cat.ByID("R-MISSING-01"); ok {
		t.Error("ByID should miss unknown rule")
	}
}

func TestEnabledByPriorityOrdering(t *testing.T) {
	cat, err := Load(strings.NewReader(sampleCatalog))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	ordered := cat.EnabledByPriority()
	var ids []string
	for _, r := range ordered {
		ids = append(ids, r.ID)
	}

	// Disabled rule excluded. Priority 10 ties keep document order:
	// R-DEFICIT-01 appears before R-TIE-01 in the document.
	want := []string{"R-DEFICIT-01", "R-TIE-01", "R-OVRSPEND-01"}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}
}

func TestLoadShippedCatalog(t *testing.T) {
	cat, err := LoadFile("../../config/rules.json")
	if err != nil {
		t.Fatalf("shipped catalog failed to load: %v", err)
	}
	if cat.Len() == 0 {
		t.Fatal("shipped catalog is empty")
	}

	// Every group member must exist in the catalog.
	for group, ids := range cat.RuleGroups() {
		for _, id := range ids {
			if _, ok := cat.ByID(id); !ok {
				t.Errorf("group %s references unknown rule %s", group, id)
			}
		}
	}

	// Every rule's bucket must be a known dimension.
	dims := map[domain.Dimension]bool{}
	for _, d := range domain.Dimensions() {
		dims[d] = true
	}
	for _, r := range cat.EnabledByPriority() {
		if !dims[domain.Dimension(r.Bucket)] {
			t.Errorf("rule %s has unknown bucket %q", r.ID, r.Bucket)
		}
	}

	// The forecast, buffer and category-spike rules ship alongside the core
	// set; a slimmed-down catalog is a packaging mistake.
	for _, id := range []string{
		"R-FCAST-DEF-01", "R-FCAST-DEF-LARGE-01", "R-FCAST-CONF-LOW-01",
		"R-FCAST-SURPLUS-01", "R-BUFFER-WARN-01", "R-SAVE-DEPLETE-01",
		"R-LARGE-TXN-01", "R-ZERO-INC-DAYS-01", "R-TOP-CAT-HEAVY-01",
		"R-UTILITIES-SPIKE-01", "R-CASH-SPIKE-01", "R-CASHFLOW-VAR-01",
	} {
		if _, ok := cat.ByID(id); !ok {
			t.Errorf("shipped catalog missing rule %s", id)
		}
	}
}

func TestLoadRejectsMissingFields(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing id", `{"rules":[{"bucket":"deficit","condition":{"type":"comparison"},"severity":{"type":"fixed","value":"low"},"message_template":"m"}]}`},
		{"missing bucket", `{"rules":[{"id":"R-1","condition":{"type":"comparison"},"severity":{"type":"fixed","value":"low"},"message_template":"m"}]}`},
		{"missing condition", `{"rules":[{"id":"R-1","bucket":"deficit","severity":{"type":"fixed","value":"low"},"message_template":"m"}]}`},
		{"missing severity", `{"rules":[{"id":"R-1","bucket":"deficit","condition":{"type":"comparison"},"message_template":"m"}]}`},
		{"missing template", `{"rules":[{"id":"R-1","bucket":"deficit","condition":{"type":"comparison"},"severity":{"type":"fixed","value":"low"}}]}`},
		{"invalid json", `{"rules": [`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat, err := Load(strings.NewReader(tt.doc))
			if !errors.Is(err, ErrMalformedCatalog) {
				t.Errorf("want ErrMalformedCatalog, got %v", err)
			}
			if cat != nil {
				t.Error("no partial catalog should be returned")
			}
		})
	}
}

func TestDuplicateIDsAllowedAtLoad(t *testing.T) {
	doc := `{"rules":[
		{"id":"R-1","bucket":"deficit","enabled":true,"priority":1,"condition":{"type":"comparison"},"severity":{"type":"fixed","value":"low"},"message_template":"first"},
		{"id":"R-1","bucket":"deficit","enabled":true,"priority":2,"condition":{"type":"comparison"},"severity":{"type":"fixed","value":"high"},"message_template":"second"}
	]}`

	cat, err := Load(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cat.Len() != 2 {
		t.Errorf("both copies kept: got %d", cat.Len())
	}
	r, _ := cat.ByID("R-1")
	if r.MessageTemplate != "first" {
		t.Errorf("ByID should resolve first occurrence, got %q", r.MessageTemplate)
	}
}

func TestFromDefinitions(t *testing.T) {
	rules := []*domain.RuleDefinition{
		{
			ID: "R-1", Bucket: "deficit", Enabled: true, Priority: 1,
			Condition:       domain.Condition{Type: domain.CondComparison},
			Severity:        domain.SeveritySpec{Type: domain.SeverityFixed, Value: domain.SeverityLow},
			MessageTemplate: "m",
		},
	}
	cat, err := FromDefinitions("db", rules)
	if err != nil {
		t.Fatalf("FromDefinitions: %v", err)
	}
	if cat.Version() != "db" || cat.Len() != 1 {
		t.Errorf("got version %q len %d", cat.Version(), cat.Len())
	}
}

func TestHolderSwap(t *testing.T) {
	first, err := Load(strings.NewReader(sampleCatalog))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	h := NewHolder(first)

	second, err := FromDefinitions("v2", []*domain.RuleDefinition{{
		ID: "R-NEW-01", Bucket: "savings", Enabled: true,
		Condition:       domain.Condition{Type: domain.CondComparison},
		Severity:        domain.SeveritySpec{Type: domain.SeverityFixed, Value: domain.SeverityLow},
		MessageTemplate: "m",
	}})
	if err != nil {
		t.Fatalf("FromDefinitions: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c := h.Current()
				if c == nil {
					t.Error("reader saw nil catalog")
					return
				}
				// Every observed catalog is internally consistent.
				for _, r := range c.EnabledByPriority() {
					if _, ok := c.ByID(r.ID); !ok {
						t.Errorf("catalog missing own rule %s", r.ID)
						return
					}
				}
			}
		}()
	}

	prev := h.Swap(second)
	if prev != first {
		t.Error("Swap should return the previous catalog")
	}
	wg.Wait()

	if h.Current().Version() != "v2" {
		t.Errorf("current version: got %q", h.Current().Version())
	}
}
