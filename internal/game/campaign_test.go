package game

import (
	"encoding/json"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/everforgeworks/merc-command/internal/event"
	"github.com/everforgeworks/merc-command/internal/state"
)

func TestDefaultCampaignIsValid(t *testing.T) {
	c, err := DefaultCampaign()
	if err != nil {
		t.Fatalf("embedded campaign: %v", err)
	}
	if got := len(c.ContractTypes); got != 24 {
		t.Errorf("contract types = %d, want 24", got)
	}
	fs, ok := c.Faction("Federated Suns")
	if !ok {
		t.Fatal("Federated Suns missing")
	}
	if len(fs.Allies) != 1 || fs.Allies[0] != "Lyran Commonwealth" {
		t.Errorf("FS allies = %v", fs.Allies)
	}
	if _, ok := c.Faction(c.Balance.StandingFaction); !ok {
		t.Errorf("standing faction %q missing", c.Balance.StandingFaction)
	}
}

func TestCampaignValidationRejects(t *testing.T) {
	cases := map[string]string{
		"unknown ally": `
company_name: x
balance: {accounting_days: 30, contract_refresh_days: 7, crisis_divisor: 10000}
factions:
  - id: A
    allies: [B]
contract_types:
  - {key: k, name: K, base_rate: 1, min_days: 1, max_days: 2, unlock: Green}
names: {first: [a], last: [b]}
`,
		"no factions": `
company_name: x
balance: {accounting_days: 30, contract_refresh_days: 7, crisis_divisor: 10000}
contract_types:
  - {key: k, name: K, base_rate: 1, min_days: 1, max_days: 2, unlock: Green}
names: {first: [a], last: [b]}
`,
		"zero base rate": `
company_name: x
balance: {accounting_days: 30, contract_refresh_days: 7, crisis_divisor: 10000}
factions: [{id: A}]
contract_types:
  - {key: k, name: K, base_rate: 0, min_days: 1, max_days: 2, unlock: Green}
names: {first: [a], last: [b]}
`,
		"misspelt knob": `
company_name: x
balance: {acounting_days: 30}
`,
	}
	for name, doc := range cases {
		if _, err := ParseCampaign([]byte(doc)); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestLoadCampaignFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "campaign.yaml")
	data := strings.Replace(string(defaultCampaign), `company_name: "Gray Death Legion"`, `company_name: "Kell Hounds"`, 1)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadCampaign(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.CompanyName != "Kell Hounds" {
		t.Fatalf("company = %q", c.CompanyName)
	}
	if _, err := LoadCampaign(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("missing file should fail")
	}
}

func TestNewDocumentIsValid(t *testing.T) {
	c, _ := DefaultCampaign()
	ids := NewIDSource(rand.New(rand.NewPCG(1, 2)))
	doc := c.NewDocument(ids)

	if err := state.Validate(&doc); err != nil {
		t.Fatalf("new document invalid: %v", err)
	}
	if doc.Company.Funds != c.Balance.StartingFunds || len(doc.Company.Reputation) != len(c.Factions) {
		t.Fatalf("company = %+v", doc.Company)
	}
	if len(doc.Pilots) != 2 || doc.Pilots[0].MechID != doc.Mechs[0].ID || doc.Mechs[0].PilotID != doc.Pilots[0].ID {
		t.Fatal("starting pilot and mech are not paired")
	}
	if doc.Company.Expenses.Salaries != 7500 || doc.Company.Expenses.Maintenance != 7500 {
		t.Fatalf("expenses = %+v", doc.Company.Expenses)
	}
	if len(doc.Market.PilotPool) != c.Balance.PilotPoolSize {
		t.Fatalf("pilot pool = %d", len(doc.Market.PilotPool))
	}
}

func TestIDSourceIsDeterministic(t *testing.T) {
	a := NewIDSource(rand.New(rand.NewPCG(7, 7)))
	b := NewIDSource(rand.New(rand.NewPCG(7, 7)))
	for i := 0; i < 5; i++ {
		x, y := a.New("CTR"), b.New("CTR")
		if x != y {
			t.Fatalf("ids diverged: %s vs %s", x, y)
		}
		if !strings.HasPrefix(x, "CTR-") || len(x) != 16 {
			t.Fatalf("malformed id %q", x)
		}
	}
}

func TestRosterCostsSkipDestroyedAndDead(t *testing.T) {
	pilots := []state.Pilot{{Salary: 100, Status: state.PilotActive}, {Salary: 50, Status: state.PilotKIA}}
	mechs := []state.Mech{{MaintenanceCost: 10, Status: state.MechReady}, {MaintenanceCost: 99, Status: state.MechDestroyed}}
	s, m := RosterCosts(pilots, mechs)
	if s != 100 || m != 10 {
		t.Fatalf("salaries=%d maintenance=%d", s, m)
	}
}

func TestRepairAndSalePricing(t *testing.T) {
	m := state.Mech{Tonnage: 50, Armor: 60, Structure: 90, Value: 500000, Status: state.MechReady}
	if got := RepairCost(m, 10); got != 50*50*10 {
		t.Errorf("repair cost = %d", got)
	}
	if got := RepairDays(m); got != 3 {
		t.Errorf("repair days = %d", got)
	}
	if got := SaleValue(m, 0.6); got != 225000 {
		t.Errorf("sale value = %d", got)
	}
	m.Status = state.MechDestroyed
	if got := SaleValue(m, 0.6); got != 50000 {
		t.Errorf("scrap value = %d", got)
	}
}

func TestCatalogDecodesInboundCommands(t *testing.T) {
	b := event.NewBus(slog.New(slog.NewTextHandler(io.Discard, nil)))
	DefineEvents(b)

	payload, err := b.Decode(EventAdvanceTime, json.RawMessage(`{"days":7}`))
	if err != nil {
		t.Fatal(err)
	}
	if p, ok := payload.(AdvanceTime); !ok || p.Days != 7 {
		t.Fatalf("decoded %#v", payload)
	}
	if _, err := b.Decode(EventExpense, json.RawMessage(`{"amount":1}`)); err == nil {
		t.Fatal("internal requests must not be decodable from the wire")
	}
}
