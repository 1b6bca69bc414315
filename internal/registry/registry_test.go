package registry

import (
	"context"
	"testing"

	"github.com/nulzo/llm-relay/internal/config"
	"github.com/nulzo/llm-relay/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubClient struct {
	name string
}

func (s *stubClient) Name() string { return s.name }
func (s *stubClient) Type() string { return "stub" }
func (s *stubClient) Generate(ctx context.Context, p llm.GenerateParams) (*llm.GenerateResult, error) {
	return &llm.GenerateResult{Content: "ok"}, nil
}
func (s *stubClient) ListModels(ctx context.Context) ([]llm.Model, error) {
	return nil, nil
}

func init() {
	llm.Register("stub", func(cfg config.ProviderConfig) (llm.Client, error) {
		return &stubClient{name: cfg.Name}, nil
	})
}

func localProvider(name string, priority int) config.ProviderConfig {
	return config.ProviderConfig{
		Name:      name,
		Type:      "stub",
		Kind:      config.KindLocal,
		CostModel: config.CostFree,
		Priority:  priority,
		Enabled:   true,
		Models: []config.ModelConfig{
			{Name: "m1", Capabilities: []string{"general"}},
		},
	}
}

func cloudProvider(name string, credential string) config.ProviderConfig {
	return config.ProviderConfig{
		Name:               name,
		Type:               "stub",
		Kind:               config.KindCloud,
		CostModel:          config.CostPerToken,
		Credential:         credential,
		RequiresCredential: true,
		Priority:           1,
		Enabled:            true,
		Models: []config.ModelConfig{
			{Name: "m1", Capabilities: []string{"general"}, CostPer1KTokensUSD: 0.0005},
		},
	}
}

func TestNewRejectsDuplicateNames(t *testing.T) {
	_, err := New([]config.ProviderConfig{
		localProvider("a", 1),
		localProvider("a", 2),
	}, zap.NewNop())

	assert.Error(t, err)
}

func TestSnapshotSortedByName(t *testing.T) {
	reg, err := New([]config.ProviderConfig{
		localProvider("zeta", 1),
		localProvider("alpha", 2),
	}, zap.NewNop())
	require.NoError(t, err)

	snap := reg.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "alpha", snap[0].Name)
	assert.Equal(t, "zeta", snap[1].Name)
}

func TestConfiguredFlag(t *testing.T) {
	reg, err := New([]config.ProviderConfig{
		cloudProvider("cloud", ""),
		localProvider("local", 1),
	}, zap.NewNop())
	require.NoError(t, err)

	cloud, err := reg.Get("cloud")
	require.NoError(t, err)
	assert.False(t, cloud.Configured)

	local, err := reg.Get("local")
	require.NoError(t, err)
	assert.True(t, local.Configured)
}

func TestConfigureCredential(t *testing.T) {
	reg, err := New([]config.ProviderConfig{cloudProvider("cloud", "")}, zap.NewNop())
	require.NoError(t, err)

	err = reg.Configure("cloud", "short", nil, nil)
	assert.Error(t, err, "too-short credential must be rejected")

	err = reg.Configure("cloud", "gsk_live_0123456789", nil, nil)
	require.NoError(t, err)

	p, err := reg.Get("cloud")
	require.NoError(t, err)
	assert.True(t, p.Configured)
}

func TestConfigureUnknownProvider(t *testing.T) {
	reg, err := New([]config.ProviderConfig{localProvider("a", 1)}, zap.NewNop())
	require.NoError(t, err)

	err = reg.Configure("nope", "", nil, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConfigureEnabledAndPriority(t *testing.T) {
	reg, err := New([]config.ProviderConfig{localProvider("a", 1)}, zap.NewNop())
	require.NoError(t, err)

	enabled := false
	priority := 7
	require.NoError(t, reg.Configure("a", "", &enabled, &priority))

	p, err := reg.Get("a")
	require.NoError(t, err)
	assert.False(t, p.Enabled)
	assert.Equal(t, 7, p.Priority)
}

func TestLocalProviderDiscoversModels(t *testing.T) {
	reg, err := New([]config.ProviderConfig{localProvider("local", 1)}, zap.NewNop())
	require.NoError(t, err)

	reg.UpdateLiveModels("local", []llm.Model{
		{Name: "m1", SizeBytes: 100},
		{Name: "extra-model", SizeBytes: 200},
	})

	p, err := reg.Get("local")
	require.NoError(t, err)

	byName := make(map[string]Model)
	for _, m := range p.Models {
		byName[m.Name] = m
	}

	require.Contains(t, byName, "m1")
	assert.True(t, byName["m1"].Available)

	// Discovered models join the catalog with a general capability.
	require.Contains(t, byName, "extra-model")
	assert.True(t, byName["extra-model"].Available)
	assert.Contains(t, byName["extra-model"].Capabilities, "general")

	assert.Equal(t, 2, reg.ModelsAvailable("local"))
}

func TestLocalProviderMarksMissingModelsUnavailable(t *testing.T) {
	reg, err := New([]config.ProviderConfig{localProvider("local", 1)}, zap.NewNop())
	require.NoError(t, err)

	reg.UpdateLiveModels("local", []llm.Model{{Name: "other"}})

	p, err := reg.Get("local")
	require.NoError(t, err)

	m, ok := p.Model("m1")
	require.True(t, ok, "configured model stays in the catalog")
	assert.False(t, m.Available)
}

func TestNewRejectsEmptyProviderName(t *testing.T) {
	cfg := localProvider("", 1)

	_, err := New([]config.ProviderConfig{cfg}, zap.NewNop())
	assert.Error(t, err)
}

func TestCloudProviderListingDrivesAvailability(t *testing.T) {
	reg, err := New([]config.ProviderConfig{cloudProvider("cloud", "k-0123456789")}, zap.NewNop())
	require.NoError(t, err)

	reg.UpdateLiveModels("cloud", []llm.Model{{Name: "m1"}, {Name: "extra"}})

	p, err := reg.Get("cloud")
	require.NoError(t, err)
	m, ok := p.Model("m1")
	require.True(t, ok)
	assert.True(t, m.Available)

	// Cloud catalogs are config-declared; undeclared listing entries are
	// not adopted.
	_, ok = p.Model("extra")
	assert.False(t, ok)
}

func TestCloudProviderEmptyListingMarksModelsUnavailable(t *testing.T) {
	reg, err := New([]config.ProviderConfig{cloudProvider("cloud", "k-0123456789")}, zap.NewNop())
	require.NoError(t, err)

	reg.UpdateLiveModels("cloud", []llm.Model{})

	p, err := reg.Get("cloud")
	require.NoError(t, err)
	m, ok := p.Model("m1")
	require.True(t, ok, "declared model stays in the catalog")
	assert.False(t, m.Available)
	assert.Zero(t, reg.ModelsAvailable("cloud"))
}
