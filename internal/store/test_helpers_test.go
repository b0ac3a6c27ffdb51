package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/timelock/internal/contract"
	"github.com/roach88/timelock/internal/digest"
)

var secretHash = digest.HashString("secret")

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// implementations returns one fresh instance of every Store.
func implementations(t *testing.T) map[string]Store {
	t.Helper()
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": createTestStore(t),
	}
}

// createTestContract creates an open contract with minimal required fields.
func createTestContract(sender, receiver string, amount, timelock uint64) contract.Contract {
	return contract.Contract{
		Sender:   sender,
		Receiver: receiver,
		Amount:   amount,
		Hashlock: secretHash,
		Timelock: timelock,
		LedgerID: "icp",
	}
}

func createdEvent(caller string, at uint64) contract.Event {
	return contract.Event{Kind: contract.EventCreated, Caller: caller, At: at}
}
