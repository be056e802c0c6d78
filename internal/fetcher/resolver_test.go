package fetcher

import (
	"context"
	"errors"
	"testing"
)

type stubSearcher struct {
	results [][]Pair
	errs    []error
	calls   int
}

func (s *stubSearcher) SearchPairs(ctx context.Context, query string) ([]Pair, error) {
	i := s.calls
	s.calls++
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if err != nil {
		return nil, err
	}
	if i < len(s.results) {
		return s.results[i], nil
	}
	return nil, nil
}

func TestResolvePicksFirstAllowedInUpstreamOrder(t *testing.T) {
	searcher := &stubSearcher{results: [][]Pair{{
		{DexID: "meteora", PairAddress: "m1"},
		{DexID: "Orca", PairAddress: "o1", ChainID: "solana"},
		{DexID: "raydium", PairAddress: "r1"},
	}}}
	r := NewResolver(searcher, ResolverOptions{AllowedDexes: []string{"raydium", "orca"}}, noopLogger())

	ref, err := r.Resolve(context.Background(), "WIF")
	if err != nil {
		t.Fatalf("resolve should succeed: %v", err)
	}
	if ref.PairAddress != "o1" || ref.ChainID != "solana" {
		t.Fatalf("expected first allowed candidate o1, got %+v", ref)
	}
}

func TestResolveNoAllowedCandidate(t *testing.T) {
	searcher := &stubSearcher{results: [][]Pair{{{DexID: "meteora"}}}}
	r := NewResolver(searcher, ResolverOptions{AllowedDexes: []string{"raydium"}, Attempts: 3}, noopLogger())

	_, err := r.Resolve(context.Background(), "WIF")
	if !errors.Is(err, ErrSymbolNotResolved) {
		t.Fatalf("expected ErrSymbolNotResolved, got %v", err)
	}
	if searcher.calls != 1 {
		t.Fatalf("a successful search must not be retried, calls=%d", searcher.calls)
	}
}

func TestResolveRetriesUnreachable(t *testing.T) {
	searcher := &stubSearcher{
		errs:    []error{ErrUnreachable, ErrUnreachable},
		results: [][]Pair{nil, nil, {{DexID: "raydium", PairAddress: "r1"}}},
	}
	r := NewResolver(searcher, ResolverOptions{AllowedDexes: []string{"raydium"}, Attempts: 3}, noopLogger())

	ref, err := r.Resolve(context.Background(), "WIF")
	if err != nil {
		t.Fatalf("third attempt should succeed: %v", err)
	}
	if ref.PairAddress != "r1" || searcher.calls != 3 {
		t.Fatalf("unexpected result %+v after %d calls", ref, searcher.calls)
	}
}

func TestResolveGivesUpOnMalformed(t *testing.T) {
	searcher := &stubSearcher{errs: []error{ErrMalformedResponse}}
	r := NewResolver(searcher, ResolverOptions{AllowedDexes: []string{"raydium"}, Attempts: 5}, noopLogger())

	_, err := r.Resolve(context.Background(), "WIF")
	if !errors.Is(err, ErrSymbolNotResolved) || !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected wrapped resolution error, got %v", err)
	}
	if searcher.calls != 1 {
		t.Fatalf("malformed responses are not retried, calls=%d", searcher.calls)
	}
}
