package testutil

// DefaultToken is what a ConstantTokenGenerator built from an empty
// string hands out.
const DefaultToken = "test-call-default"

// ConstantTokenGenerator returns the same call token every time, unlike
// the dispatch package's sequential FixedGenerator. Every call in a
// scenario shares the token, so the trace stays stable however many
// calls the scenario makes.
//
// Stateless and safe for concurrent use.
type ConstantTokenGenerator struct {
	token string
}

// NewConstantTokenGenerator builds a generator for token. An empty
// token falls back to DefaultToken so that scenarios without an
// explicit token still produce deterministic traces.
func NewConstantTokenGenerator(token string) *ConstantTokenGenerator {
	if token == "" {
		token = DefaultToken
	}
	return &ConstantTokenGenerator{token: token}
}

// Generate implements dispatch.TokenGenerator.
func (g *ConstantTokenGenerator) Generate() string {
	return g.token
}
