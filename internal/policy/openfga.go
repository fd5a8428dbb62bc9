package policy

import (
	"context"
	"fmt"
	"strings"

	fga "github.com/openfga/go-sdk/client"
	"github.com/openfga/go-sdk/credentials"

	"github.com/vyrodovalexey/funcauthz/internal/auth"
)

// DefaultUserPrefix is prepended to the identity subject to form the
// OpenFGA user.
const DefaultUserPrefix = "user:"

// OpenFGAConfig configures the OpenFGA engine.
type OpenFGAConfig struct {
	APIURL               string `yaml:"apiUrl" json:"apiUrl"`
	StoreID              string `yaml:"storeId" json:"storeId"`
	AuthorizationModelID string `yaml:"authorizationModelId,omitempty" json:"authorizationModelId,omitempty"`
	APIToken             string `yaml:"apiToken,omitempty" json:"apiToken,omitempty"`
	UserPrefix           string `yaml:"userPrefix,omitempty" json:"userPrefix,omitempty"`
}

// OpenFGAEngine checks a relation between the caller and an object.
type OpenFGAEngine struct {
	client     *fga.OpenFgaClient
	userPrefix string
}

// NewOpenFGAEngine creates an OpenFGA engine.
func NewOpenFGAEngine(cfg *OpenFGAConfig) (*OpenFGAEngine, error) {
	if cfg == nil || cfg.APIURL == "" || cfg.StoreID == "" {
		return nil, fmt.Errorf("%w: openfga apiUrl and storeId are required", ErrEngineNotConfigured)
	}

	conf := &fga.ClientConfiguration{
		ApiUrl:  cfg.APIURL,
		StoreId: cfg.StoreID,
	}
	if cfg.AuthorizationModelID != "" {
		conf.AuthorizationModelId = cfg.AuthorizationModelID
	}
	if cfg.APIToken != "" {
		conf.Credentials = &credentials.Credentials{
			Method: credentials.CredentialsMethodApiToken,
			Config: &credentials.Config{ApiToken: cfg.APIToken},
		}
	}

	client, err := fga.NewSdkClient(conf)
	if err != nil {
		return nil, fmt.Errorf("openfga client init: %w", err)
	}

	prefix := cfg.UserPrefix
	if prefix == "" {
		prefix = DefaultUserPrefix
	}

	return &OpenFGAEngine{client: client, userPrefix: prefix}, nil
}

// Evaluate checks def's relation for the identity subject. Anonymous
// identities are never allowed.
func (e *OpenFGAEngine) Evaluate(ctx context.Context, identity *auth.Identity, def *Definition) (bool, error) {
	if def.OpenFGA == nil {
		return false, fmt.Errorf("%w: policy %q has no openfga check", ErrInvalidDefinition, def.Name)
	}
	if identity == nil || identity.Subject == "" {
		return false, nil
	}

	req := fga.ClientCheckRequest{
		User:     e.userPrefix + identity.Subject,
		Relation: def.OpenFGA.Relation,
		Object:   strings.ReplaceAll(def.OpenFGA.Object, SubjectPlaceholder, identity.Subject),
	}

	resp, err := e.client.Check(ctx).Body(req).Execute()
	if err != nil {
		return false, fmt.Errorf("openfga check: %w", err)
	}
	return resp.Allowed != nil && *resp.Allowed, nil
}
