package domain

import (
	"sort"
	"strings"
)

// MainnetChainID is the Ethereum mainnet chain id.
const MainnetChainID int64 = 1

// MainnetExplorerURL is used when a chain has no explorer configured.
const MainnetExplorerURL = "https://etherscan.io"

// Chain describes a network the service knows about. A chain without a
// subgraph URL is known but not indexer-supported.
type Chain struct {
	ID          int64  `json:"chainId"`
	Name        string `json:"name"`
	SubgraphURL string `json:"-"`
	ExplorerURL string `json:"explorerUrl"`
}

// IndexerSupported reports whether remote search is available on the chain.
func (c Chain) IndexerSupported() bool {
	return strings.TrimSpace(c.SubgraphURL) != ""
}

// ChainRegistry is an immutable lookup table of configured chains.
type ChainRegistry struct {
	chains map[int64]Chain
	ids    []int64
}

// NewChainRegistry indexes chains by id. Later duplicates win.
func NewChainRegistry(chains []Chain) *ChainRegistry {
	r := &ChainRegistry{chains: make(map[int64]Chain, len(chains))}
	for _, c := range chains {
		if _, dup := r.chains[c.ID]; !dup {
			r.ids = append(r.ids, c.ID)
		}
		r.chains[c.ID] = c
	}
	sort.Slice(r.ids, func(i, j int) bool { return r.ids[i] < r.ids[j] })
	return r
}

// Lookup returns the chain with the given id.
func (r *ChainRegistry) Lookup(id int64) (Chain, bool) {
	c, ok := r.chains[id]
	return c, ok
}

// IndexerSupported reports whether id is known and has a subgraph endpoint.
func (r *ChainRegistry) IndexerSupported(id int64) bool {
	c, ok := r.chains[id]
	return ok && c.IndexerSupported()
}

// SupportedIDs returns the ids of all indexer-supported chains, ascending.
func (r *ChainRegistry) SupportedIDs() []int64 {
	out := make([]int64, 0, len(r.ids))
	for _, id := range r.ids {
		if r.chains[id].IndexerSupported() {
			out = append(out, id)
		}
	}
	return out
}

// All returns every configured chain ordered by id.
func (r *ChainRegistry) All() []Chain {
	out := make([]Chain, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.chains[id])
	}
	return out
}

// RequireIndexer returns an UnsupportedChainError when id cannot be searched
// remotely.
func (r *ChainRegistry) RequireIndexer(id int64) (Chain, error) {
	c, ok := r.chains[id]
	if !ok || !c.IndexerSupported() {
		return Chain{}, &UnsupportedChainError{ChainID: id, Supported: r.SupportedIDs()}
	}
	return c, nil
}

// ExplorerAddressURL builds the block-explorer page for an address. Mainnet
// and unknown chains use Etherscan.
func (r *ChainRegistry) ExplorerAddressURL(chainID int64, address string) string {
	base := MainnetExplorerURL
	if c, ok := r.chains[chainID]; ok && c.ExplorerURL != "" && chainID != MainnetChainID {
		base = c.ExplorerURL
	}
	return strings.TrimRight(base, "/") + "/address/" + address
}
