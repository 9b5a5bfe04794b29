package fetch

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprints(t *testing.T) {
	assert := assert.New(t)

	basic := &BasicAuth{Username: "u", Password: "p"}
	assert.Len(basic.Fingerprint(), 64)
	assert.Equal(basic.Fingerprint(), (&BasicAuth{Username: "u", Password: "p"}).Fingerprint())
	assert.NotEqual(basic.Fingerprint(), (&BasicAuth{Username: "u", Password: "q"}).Fingerprint())

	// same material, different strategy, different fingerprint
	assert.NotEqual(
		(&HeaderAuth{Name: "u", Value: "p"}).Fingerprint(),
		(&QueryAuth{Name: "u", Value: "p"}).Fingerprint(),
	)
	assert.NotEqual(basic.Fingerprint(), (&DigestAuth{Username: "u", Password: "p"}).Fingerprint())

	// fingerprints never embed the raw secret
	assert.NotContains(basic.Fingerprint(), "p")
}

func TestApplyDecorators(t *testing.T) {
	assert := assert.New(t)

	newReq := func() *http.Request {
		req, err := http.NewRequest(http.MethodGet, "https://example.com/api?x=1", nil)
		assert.NoError(err)
		return req
	}

	req := newReq()
	(&BasicAuth{Username: "user", Password: "pass"}).Apply(req)
	u, p, ok := req.BasicAuth()
	assert.True(ok)
	assert.Equal("user", u)
	assert.Equal("pass", p)

	req = newReq()
	(&BearerAuth{Token: "tok123"}).Apply(req)
	assert.Equal("Bearer tok123", req.Header.Get("Authorization"))

	req = newReq()
	(&HeaderAuth{Name: "X-Api-Key", Value: "secret"}).Apply(req)
	assert.Equal("secret", req.Header.Get("X-Api-Key"))

	req = newReq()
	(&QueryAuth{Name: "api_key", Value: "secret"}).Apply(req)
	assert.Equal("secret", req.URL.Query().Get("api_key"))
	assert.Equal("1", req.URL.Query().Get("x"), "existing query params survive")

	// digest is challenge-driven; Apply must not touch the request
	req = newReq()
	(&DigestAuth{Username: "u", Password: "p"}).Apply(req)
	assert.Empty(req.Header.Get("Authorization"))
}

// Vector from RFC 2617 section 3.5.
func TestDigestAuthorizeRFCVector(t *testing.T) {
	assert := assert.New(t)

	da := &DigestAuth{
		Username: "Mufasa",
		Password: "Circle Of Life",
		cnonce:   func() string { return "0a4f113b" },
	}

	challenge := `Digest realm="testrealm@host.com", qop="auth,auth-int", ` +
		`nonce="dcd98b7102dd2f0e8b11d0f600bfb0c093", opaque="5ccc069c403ebaf9f0171e9517f40e41"`

	authz, err := da.authorize(challenge, http.MethodGet, "/dir/index.html")
	assert.NoError(err)
	assert.Contains(authz, `response="6629fae49393a05397450978507c4ef1"`)
	assert.Contains(authz, `username="Mufasa"`)
	assert.Contains(authz, `realm="testrealm@host.com"`)
	assert.Contains(authz, `nonce="dcd98b7102dd2f0e8b11d0f600bfb0c093"`)
	assert.Contains(authz, `uri="/dir/index.html"`)
	assert.Contains(authz, `opaque="5ccc069c403ebaf9f0171e9517f40e41"`)
	assert.Contains(authz, "qop=auth")
	assert.Contains(authz, "nc=00000001")
}

func TestDigestAuthorizeWithoutQop(t *testing.T) {
	assert := assert.New(t)

	da := &DigestAuth{Username: "u", Password: "p"}
	authz, err := da.authorize(`Digest realm="r", nonce="abc"`, http.MethodGet, "/")
	assert.NoError(err)
	assert.Contains(authz, `nonce="abc"`)
	assert.NotContains(authz, "cnonce")

	_, err = da.authorize(`Digest realm="r"`, http.MethodGet, "/")
	assert.Error(err, "challenge without nonce is rejected")
}
