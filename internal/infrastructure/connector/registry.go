package connector

import (
	"fmt"

	"go.uber.org/zap"

	syncapp "github.com/petshop/backend/internal/application/sync"
	"github.com/petshop/backend/internal/domain/sync"
)

// Registry holds the connector implementations keyed by connector type
type Registry struct {
	connectors map[sync.ConnectorType]sync.Connector
}

// NewRegistry creates a registry over the given connectors
func NewRegistry(connectors ...sync.Connector) *Registry {
	registry := &Registry{connectors: make(map[sync.ConnectorType]sync.Connector, len(connectors))}
	for _, connector := range connectors {
		registry.connectors[connector.Type()] = connector
	}
	return registry
}

// NewDefaultRegistry creates a registry with every built-in connector
func NewDefaultRegistry(logger *zap.Logger) *Registry {
	return NewRegistry(
		NewRESTConnector(logger),
		NewFileConnector(logger),
		NewDatabaseConnector(logger),
	)
}

// Resolve returns the connector registered for the given type
func (r *Registry) Resolve(connectorType sync.ConnectorType) (sync.Connector, error) {
	connector, ok := r.connectors[connectorType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownConnectorType, connectorType)
	}
	return connector, nil
}

// ValidateConfig checks a raw source configuration against the connector
// type's expected shape
func (r *Registry) ValidateConfig(connectorType sync.ConnectorType, config []byte) error {
	if _, err := r.Resolve(connectorType); err != nil {
		return err
	}
	_, err := ParseConfig(connectorType, config)
	return err
}

var _ syncapp.ConnectorRegistry = (*Registry)(nil)
