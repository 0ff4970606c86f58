package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Layr-Labs/ledgertx-go/pkg/types"
)

// schemaFile is the YAML layout of a file declaring additional schemas:
//
//	schemas:
//	  - name: Vote
//	    serviceId: 130
//	    messageId: 0
//	    signerField: voter
//	    fields:
//	      - {name: voter, type: secp256k1_public_key}
//	      - {name: proposal, type: u64}
type schemaFile struct {
	Schemas []*types.MessageSchema `yaml:"schemas"`
}

// ParseSchemas decodes the schemas declared in a YAML document
func ParseSchemas(data []byte) ([]*types.MessageSchema, error) {
	var f schemaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse schema file: %w", err)
	}
	if len(f.Schemas) == 0 {
		return nil, fmt.Errorf("schema file declares no schemas")
	}
	return f.Schemas, nil
}

// RegisterFile registers every schema declared in the YAML file at path. Nothing is
// registered unless every schema in the file is valid.
func (r *Registry) RegisterFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}
	schemas, err := ParseSchemas(data)
	if err != nil {
		return err
	}

	// Dry run against a copy so a bad entry leaves r untouched
	staged := r.clone()
	for _, s := range schemas {
		if err := staged.Register(s); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	for _, s := range schemas {
		if err := r.Register(s); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

func (r *Registry) clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := NewRegistry()
	for name, s := range r.byName {
		c.byName[name] = s
	}
	for k, s := range r.byID {
		c.byID[k] = s
	}
	return c
}
