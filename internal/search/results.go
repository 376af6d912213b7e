package search

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/dexsearch/internal/domain"
)

// Command suggestions offered for short queries.
const (
	CommandSwap     = "swap"
	CommandHoldings = "holdings"
)

type commandDef struct {
	name   string
	title  string
	sub    string
	anchor string
}

var defaultCommands = []commandDef{
	{name: CommandSwap, title: "Swap tokens", sub: "Jump to the swap panel", anchor: "swap"},
	{name: CommandHoldings, title: "View holdings", sub: "Jump to your holdings", anchor: "holdings"},
}

func addressResult(chains *domain.ChainRegistry, chainID int64, address string) domain.SearchResult {
	url := chains.ExplorerAddressURL(chainID, address)
	return domain.SearchResult{
		ID:       "address-" + domain.NormalizeAddress(address),
		Kind:     domain.ResultAddress,
		Title:    domain.ShortAddress(domain.ChecksumAddress(address)),
		Subtitle: "View on block explorer",
		Icon:     "address",
		Action:   domain.Action{Kind: domain.ActionOpenURL, Target: url},
		Address:  &domain.AddressMeta{Address: domain.NormalizeAddress(address), ExplorerURL: url},
	}
}

func remoteTokenResult(t domain.TokenWithPools) domain.SearchResult {
	sub := t.Name
	if len(t.Pools) > 0 {
		sub = fmt.Sprintf("%s · TVL $%s · %d pools", t.Name, compactUSD(t.TVLUSD), len(t.Pools))
	}
	return domain.SearchResult{
		ID:       "remote-token-" + t.Address,
		Kind:     domain.ResultToken,
		Title:    t.Symbol,
		Subtitle: sub,
		Icon:     "token",
		Score:    t.TVLUSD,
		Action:   domain.Action{Kind: domain.ActionNavigate, Target: tokenPath(t.ChainID, t.Address)},
		Token:    &domain.TokenMeta{Source: domain.SourceRemote, Token: t.Token, Pools: t.Pools},
	}
}

func localTokenResult(chainID int64, t domain.Token) domain.SearchResult {
	return domain.SearchResult{
		ID:       "local-token-" + t.Address,
		Kind:     domain.ResultToken,
		Title:    t.Symbol,
		Subtitle: t.Name,
		Icon:     "token",
		Action:   domain.Action{Kind: domain.ActionNavigate, Target: tokenPath(chainID, t.Address)},
		Token:    &domain.TokenMeta{Source: domain.SourceLocal, Token: t},
	}
}

func commandResults() []domain.SearchResult {
	out := make([]domain.SearchResult, 0, len(defaultCommands))
	for _, c := range defaultCommands {
		out = append(out, domain.SearchResult{
			ID:       "command-" + c.name,
			Kind:     domain.ResultCommand,
			Title:    c.title,
			Subtitle: c.sub,
			Icon:     "command",
			Action:   domain.Action{Kind: domain.ActionScrollTo, Target: c.anchor},
			Command:  &domain.CommandMeta{Command: c.name},
		})
	}
	return out
}

func tokenPath(chainID int64, address string) string {
	return fmt.Sprintf("/tokens/%d/%s", chainID, address)
}

// localMatches scans registry tokens for a case-insensitive substring hit on
// symbol, name, address or ticker and returns at most limit of them in
// registry order.
func localMatches(tokens []domain.Token, text string, limit int) []domain.Token {
	needle := strings.ToLower(strings.TrimSpace(text))
	out := make([]domain.Token, 0, limit)
	if needle == "" {
		return out
	}
	for _, t := range tokens {
		if len(out) == limit {
			break
		}
		if strings.Contains(strings.ToLower(t.Symbol), needle) ||
			strings.Contains(strings.ToLower(t.Name), needle) ||
			strings.Contains(strings.ToLower(t.Address), needle) ||
			(t.Ticker != "" && strings.Contains(strings.ToLower(t.Ticker), needle)) {
			out = append(out, t)
		}
	}
	return out
}

func compactUSD(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.1fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.1fK", v/1e3)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}
