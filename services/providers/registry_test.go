package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	name string
}

func (c *stubClient) Name() string { return c.name }

func (c *stubClient) Enhance(ctx context.Context, input string, profile Profile) (string, error) {
	return input, nil
}

func staticCred(v string) CredentialFunc {
	return func() string { return v }
}

func TestRegistry_AvailableFollowsPriorityOrder(t *testing.T) {
	r := NewRegistry([]string{"openai", "anthropic"})
	require.NoError(t, r.Register(&stubClient{name: "anthropic"}, staticCred("key-b")))
	require.NoError(t, r.Register(&stubClient{name: "openai"}, staticCred("key-a")))

	assert.Equal(t, []string{"openai", "anthropic"}, r.Available())
}

func TestRegistry_PlaceholderCredentialIsUnavailable(t *testing.T) {
	r := NewRegistry([]string{"openai", "anthropic"})
	require.NoError(t, r.Register(&stubClient{name: "openai"}, staticCred("changeme")))
	require.NoError(t, r.Register(&stubClient{name: "anthropic"}, staticCred("")))

	assert.Empty(t, r.Available())
	assert.Equal(t, 2, r.Count())
}

func TestRegistry_AvailabilityReevaluatedLazily(t *testing.T) {
	r := NewRegistry([]string{"openai"})
	cred := ""
	require.NoError(t, r.Register(&stubClient{name: "openai"}, func() string { return cred }))

	assert.Empty(t, r.Available())

	cred = "sk-live" // operator adds the credential without a restart
	assert.Equal(t, []string{"openai"}, r.Available())
}

func TestRegistry_ClientLookup(t *testing.T) {
	r := NewRegistry(nil)
	c := &stubClient{name: "openai"}
	require.NoError(t, r.Register(c, staticCred("k")))

	got, err := r.Client("openai")
	require.NoError(t, err)
	assert.Same(t, c, got)

	_, err = r.Client("missing")
	assert.ErrorIs(t, err, ErrClientNotFound)
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(&stubClient{name: "openai"}, staticCred("k")))
	assert.ErrorIs(t, r.Register(&stubClient{name: "openai"}, staticCred("k")), ErrAlreadyRegistered)
}

func TestRegistry_UnlistedProviderAppendedAfterPriority(t *testing.T) {
	r := NewRegistry([]string{"openai"})
	require.NoError(t, r.Register(&stubClient{name: "openai"}, staticCred("a")))
	require.NoError(t, r.Register(&stubClient{name: "local"}, staticCred("b")))

	assert.Equal(t, []string{"openai", "local"}, r.Available())
}

func TestParseProfile(t *testing.T) {
	assert.Equal(t, ProfileCasual, ParseProfile("casual"))
	assert.Equal(t, ProfileProfessional, ParseProfile("professional"))
	assert.Equal(t, ProfileProfessional, ParseProfile("unknown-style"))
	assert.NotEmpty(t, Profile("unknown-style").Instruction())
}
