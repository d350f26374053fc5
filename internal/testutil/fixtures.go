// internal/testutil/fixtures.go
package testutil

// Fixture data for tests (primitive values only, no domain dependencies).

// FixtureDomains contains valid test domains.
var FixtureDomains = []string{
	"example.com",
	"test.example.com",
	"subdomain.example.com",
	"another.test.example.com",
}

// FixtureInvalidDomains contains invalid domains.
var FixtureInvalidDomains = []string{
	"",
	"not a domain",
	"192.168.1.1",
	"-invalid.com",
	".example.com",
	"example..com",
}

// FixtureSubdomains contains hostnames under example.com used by stream
// and persistence tests.
var FixtureSubdomains = []string{
	"api.example.com",
	"www.example.com",
	"mail.example.com",
	"dev.example.com",
}
