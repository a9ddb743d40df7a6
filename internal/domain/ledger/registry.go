package ledger

import "golang.org/x/exp/slices"

// Registry maps every supported network to its ledger.
type Registry struct {
	ledgers map[string]Ledger
}

func NewRegistry(ledgers ...Ledger) *Registry {
	r := &Registry{ledgers: make(map[string]Ledger, len(ledgers))}
	for _, l := range ledgers {
		r.ledgers[l.Network()] = l
	}
	return r
}

func (r *Registry) Get(network string) (Ledger, bool) {
	l, ok := r.ledgers[network]
	return l, ok
}

func (r *Registry) Networks() []string {
	networks := make([]string, 0, len(r.ledgers))
	for network := range r.ledgers {
		networks = append(networks, network)
	}
	slices.Sort(networks)
	return networks
}
