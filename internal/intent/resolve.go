package intent

import (
	"strings"

	"github.com/nexus-chain/nexus/internal/ledger"
)

// DefaultCounterparty receives transfers whose target resolves to nothing.
const DefaultCounterparty = ledger.AliceAccountID

var vocabulary = []struct {
	needle  string
	account string
}{
	{"alice", ledger.AliceAccountID},
	{"bob", ledger.BobAccountID},
	{"nft", ledger.NFTAccountID},
	{"dao", ledger.DAOAccountID},
}

// ResolveTarget maps a symbolic target to a ledger account identifier. Names
// containing alice, bob, nft or dao (in that precedence) map to fixed accounts;
// anything else is passed through as a literal identifier.
func ResolveTarget(target string) string {
	lower := strings.ToLower(target)
	for _, v := range vocabulary {
		if strings.Contains(lower, v.needle) {
			return v.account
		}
	}
	return target
}

// Resolve returns the account an intent acts on, applying the transfer fallback.
func Resolve(i Intent) string {
	id := ResolveTarget(i.Target)
	if id == "" && i.Type == TypeTransfer {
		return DefaultCounterparty
	}
	return id
}
