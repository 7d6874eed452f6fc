package keysource

import (
	"context"
	"crypto/rand"
	"errors"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"

	"vessellog/config"
	"vessellog/crypto"
)

// fakeAPI is a simple fake implementing ssmAPI for tests.
type fakeAPI struct {
	getIn  *ssm.GetParameterInput
	getOut *ssm.GetParameterOutput
	getErr error
}

func (f *fakeAPI) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.getIn = in
	return f.getOut, f.getErr
}

func strPtr(s string) *string { return &s }

func randomKeyText(t *testing.T) (string, []byte) {
	t.Helper()

	key := make([]byte, crypto.MasterKeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return crypto.EncodeMasterKey(key), key
}

func TestEnvSource(t *testing.T) {
	text, key := randomKeyText(t)
	t.Setenv("TEST_VESSELLOG_KEY", text)

	got, err := Env{Var: "TEST_VESSELLOG_KEY"}.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, key, got.Material)
	require.Empty(t, got.ID)
}

func TestEnvSourceMissingOrInvalid(t *testing.T) {
	_, err := Env{Var: "TEST_VESSELLOG_UNSET_KEY"}.Load(context.Background())
	require.ErrorContains(t, err, "is not set")

	t.Setenv("TEST_VESSELLOG_KEY", "short")
	_, err = Env{Var: "TEST_VESSELLOG_KEY"}.Load(context.Background())
	require.Error(t, err)

	_, err = Env{}.Load(context.Background())
	require.ErrorContains(t, err, "name is required")
}

func TestFileSourceCreatesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "master.pem")
	var createdIDs []string
	src := File{Path: path, Created: func(_, keyID string) { createdIDs = append(createdIDs, keyID) }}

	first, err := src.Load(context.Background())
	require.NoError(t, err)
	second, err := src.Load(context.Background())
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, []string{first.ID}, createdIDs)
}

func TestParamStoreSource(t *testing.T) {
	text, key := randomKeyText(t)
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{
		Name: strPtr("/vessellog/key"), Value: strPtr(text), Type: types.ParameterTypeSecureString, Version: 3,
	}}}

	src, err := NewParamStore(api, " /vessellog/key ")
	require.NoError(t, err)
	got, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, key, got.Material)
	require.Equal(t, "/vessellog/key:3", got.ID)
	require.Equal(t, "/vessellog/key", *api.getIn.Name)
	require.True(t, *api.getIn.WithDecryption)
}

func TestParamStoreSourceErrors(t *testing.T) {
	_, err := NewParamStore(nil, "p")
	require.ErrorContains(t, err, "must not be nil")

	_, err = NewParamStore(&fakeAPI{}, "  ")
	require.ErrorContains(t, err, "required")

	src, err := NewParamStore(&fakeAPI{getErr: errors.New("boom")}, "p")
	require.NoError(t, err)
	_, err = src.Load(context.Background())
	require.ErrorContains(t, err, "boom")

	src, err = NewParamStore(&fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: strPtr("p")}}}, "p")
	require.NoError(t, err)
	_, err = src.Load(context.Background())
	require.ErrorContains(t, err, "missing value")
}

func TestNewCipherFromSource(t *testing.T) {
	text, _ := randomKeyText(t)
	t.Setenv("TEST_VESSELLOG_KEY", text)

	c, err := NewCipher(context.Background(), Env{Var: "TEST_VESSELLOG_KEY"})
	require.NoError(t, err)

	token, err := c.Encrypt("hello")
	require.NoError(t, err)
	plaintext, err := c.Decrypt(token)
	require.NoError(t, err)
	require.Equal(t, "hello", plaintext)
}

func TestFromConfigSelectsSource(t *testing.T) {
	dataDir := t.TempDir()

	src, err := FromConfig(context.Background(), &config.Config{Key: config.KeyConfig{
		Source: config.KeySourceFile, File: filepath.Join("keys", "master.pem"),
	}}, dataDir, nil)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dataDir, "keys", "master.pem"), src.(File).Path)

	src, err = FromConfig(context.Background(), &config.Config{Key: config.KeyConfig{
		Source: config.KeySourceEnv, EnvVar: "X",
	}}, dataDir, nil)
	require.NoError(t, err)
	require.Equal(t, Env{Var: "X"}, src)

	_, err = FromConfig(context.Background(), &config.Config{Key: config.KeyConfig{Source: "vault"}}, dataDir, nil)
	require.ErrorContains(t, err, "unknown source")
}
