package keysource

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"vessellog/crypto"
)

// ssmAPI is the minimal AWS SSM interface required by ParamStore.
// *ssm.Client from aws-sdk-go-v2 satisfies this interface.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// ParamStore reads a base64 master key from an SSM SecureString parameter.
type ParamStore struct {
	api  ssmAPI
	name string
}

// NewParamStore creates a ParamStore source for the named parameter.
func NewParamStore(api ssmAPI, name string) (*ParamStore, error) {
	if api == nil {
		return nil, errors.New("keysource: ssm api must not be nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("keysource: ssm parameter name is required")
	}
	return &ParamStore{api: api, name: name}, nil
}

// Load implements Source.
func (p *ParamStore) Load(ctx context.Context) (Key, error) {
	out, err := p.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(p.name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return Key{}, fmt.Errorf("keysource: get parameter %q: %w", p.name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return Key{}, fmt.Errorf("keysource: parameter %q missing value", p.name)
	}

	material, err := crypto.DecodeMasterKey(*out.Parameter.Value)
	if err != nil {
		return Key{}, fmt.Errorf("keysource: parameter %q: %w", p.name, err)
	}

	key := Key{Material: material}
	if out.Parameter.Version != 0 {
		key.ID = fmt.Sprintf("%s:%d", p.name, out.Parameter.Version)
	}
	return key, nil
}
