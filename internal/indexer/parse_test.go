package indexer

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestFilterAddressesPutsFactoryFirstAndDedupes(t *testing.T) {
	factory := "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"
	pair := "0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc"

	got, err := FilterAddresses(factory, []string{pair, " ", "0xb4e16d0168e52d35cacd2c6185b44281ec28c9dc", factory})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("addresses = %v", got)
	}
	if got[0] != common.HexToAddress(factory) || got[1] != common.HexToAddress(pair) {
		t.Fatalf("order mismatch: %v", got)
	}

	if _, err := FilterAddresses("", []string{pair}); err == nil {
		t.Fatalf("expected error without factory")
	}
	if _, err := FilterAddresses(factory, []string{"0x1234"}); err == nil {
		t.Fatalf("expected error for invalid address")
	}
}

func TestParseTopic0Invalid(t *testing.T) {
	if _, err := ParseTopic0([]string{"0x1234"}); err == nil {
		t.Fatalf("expected length error")
	}
	if _, err := ParseTopic0([]string{"zz"}); err == nil {
		t.Fatalf("expected hex error")
	}
}

func TestDefaultTopic0(t *testing.T) {
	topics, err := DefaultTopic0()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(topics) != 6 {
		t.Fatalf("topics = %d, want 6", len(topics))
	}

	// keccak256("Sync(uint112,uint112)")
	sync := common.HexToHash("0x1c411e9a96e071241c2f21f7726b17ae89e3cab4c78be50e062b03a9fffbbad1")
	found := false
	for _, topic := range topics {
		if topic == sync {
			found = true
		}
	}
	if !found {
		t.Fatalf("sync topic missing from %v", topics)
	}
}
