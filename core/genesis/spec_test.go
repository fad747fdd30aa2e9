package genesis

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scavenger/core/state"
	"scavenger/crypto"
	nativecommon "scavenger/native/common"
	"scavenger/native/custody"
	"scavenger/storage"
	"scavenger/storage/trie"
)

func addrString(b byte) string {
	var raw [20]byte
	copy(raw[:], bytes.Repeat([]byte{b}, 20))
	return crypto.FormatAddress(raw)
}

func sampleGenesis() string {
	return fmt.Sprintf(`genesisTime: "2025-03-01T00:00:00Z"
chainId: scv-local
alloc:
  %[1]s: "500"
admins:
  - %[1]s
  - %[2]s
distribution:
  handlerSharePercent: 10
  custodianSharePercent: 40
charity: %[3]s
participants:
  - address: %[4]s
    role: originator
    label: Corner kiosk
    latitude: "45.5231"
    longitude: "-122.6765"
  - address: %[5]s
    role: handler
paused:
  - custody
`, addrString(0x01), addrString(0x02), addrString(0x03), addrString(0x04), addrString(0x05))
}

func TestLoadGenesisSpecAndBuildGenesis(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "genesis.yaml")
	if err := os.WriteFile(path, []byte(sampleGenesis()), 0o644); err != nil {
		t.Fatalf("write spec: %v", err)
	}
	spec, err := LoadGenesisSpec(path)
	if err != nil {
		t.Fatalf("load spec: %v", err)
	}
	if got := spec.GenesisTimestamp().Unix(); got != 1740787200 {
		t.Fatalf("unexpected genesis timestamp %d", got)
	}
	if spec.Token().Symbol != state.RewardSymbol {
		t.Fatalf("expected default reward token, got %q", spec.Token().Symbol)
	}

	db := storage.NewMemDB()
	defer db.Close()
	root, err := BuildGenesisFromSpec(spec, db)
	if err != nil {
		t.Fatalf("build genesis: %v", err)
	}

	tr, err := trie.NewTrie(db, root.Bytes())
	if err != nil {
		t.Fatalf("open committed trie: %v", err)
	}
	manager := state.NewManager(tr)
	if err := state.EnsureStateVersion(tr, false); err != nil {
		t.Fatalf("state version: %v", err)
	}

	engine := custody.NewEngine(manager)
	var admin1, admin2, charity, kiosk [20]byte
	copy(admin1[:], bytes.Repeat([]byte{0x01}, 20))
	copy(admin2[:], bytes.Repeat([]byte{0x02}, 20))
	copy(charity[:], bytes.Repeat([]byte{0x03}, 20))
	copy(kiosk[:], bytes.Repeat([]byte{0x04}, 20))

	if !engine.IsAdmin(admin1) || !engine.IsAdmin(admin2) {
		t.Fatalf("expected both admins to be installed")
	}
	cfg, err := engine.Distribution()
	if err != nil {
		t.Fatalf("distribution: %v", err)
	}
	if cfg.HandlerSharePercent != 10 || cfg.CustodianSharePercent != 40 {
		t.Fatalf("unexpected distribution %+v", cfg)
	}
	stored, ok, err := engine.Charity()
	if err != nil || !ok || stored != charity {
		t.Fatalf("unexpected charity %x ok=%v err=%v", stored, ok, err)
	}
	p, ok, err := engine.Participant(kiosk)
	if err != nil || !ok {
		t.Fatalf("participant missing: ok=%v err=%v", ok, err)
	}
	if p.Role != custody.RoleOriginator || p.Label != "Corner kiosk" || p.Latitude != 455_231_000 {
		t.Fatalf("unexpected participant %+v", p)
	}
	if p.RegisteredAt != 1740787200 {
		t.Fatalf("participants must carry the genesis time, got %d", p.RegisteredAt)
	}
	balance, err := state.NewRewardLedger(manager, "").Balance(admin1)
	if err != nil || balance.Uint64() != 500 {
		t.Fatalf("unexpected allocation %v err=%v", balance, err)
	}
	if !nativecommon.NewPauseStore(manager).IsPaused(custody.ModuleName) {
		t.Fatalf("expected custody module to start paused")
	}

	// Same document, same root.
	other := storage.NewMemDB()
	defer other.Close()
	again, err := BuildGenesisFromSpec(spec, other)
	if err != nil {
		t.Fatalf("rebuild genesis: %v", err)
	}
	if again != root {
		t.Fatalf("genesis root not deterministic: %s vs %s", again, root)
	}
}

func TestParseGenesisSpecValidation(t *testing.T) {
	base := sampleGenesis()
	cases := map[string]string{
		"missing chain":     strings.Replace(base, "chainId: scv-local\n", "", 1),
		"bad time":          strings.Replace(base, "2025-03-01T00:00:00Z", "yesterday", 1),
		"unknown field":     base + "validators: []\n",
		"bad percentages":   strings.Replace(base, "handlerSharePercent: 10", "handlerSharePercent: 70", 1),
		"bad role":          strings.Replace(base, "role: handler", "role: janitor", 1),
		"bad latitude":      strings.Replace(base, `"45.5231"`, `"95"`, 1),
		"duplicate admin":   strings.Replace(base, "  - "+addrString(0x02), "  - "+addrString(0x01), 1),
		"charity is admin":  strings.Replace(base, "charity: "+addrString(0x03), "charity: "+addrString(0x01), 1),
		"negative alloc":    strings.Replace(base, `"500"`, `"-1"`, 1),
		"foreign prefix":    strings.Replace(base, "charity: "+addrString(0x03), "charity: bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq", 1),
	}
	for name, doc := range cases {
		if _, err := ParseGenesisSpec([]byte(doc)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestParseGenesisSpecAcceptsJSON(t *testing.T) {
	doc := fmt.Sprintf(`{"genesisTime":"2025-03-01T00:00:00Z","chainId":"scv-test","admins":["%s"]}`, addrString(0x09))
	spec, err := ParseGenesisSpec([]byte(doc))
	if err != nil {
		t.Fatalf("parse json genesis: %v", err)
	}
	if spec.ChainID != "scv-test" || len(spec.admins) != 1 {
		t.Fatalf("unexpected spec %+v", spec)
	}
}
