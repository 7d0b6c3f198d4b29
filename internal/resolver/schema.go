package resolver

import (
	_ "embed"

	"github.com/openmerce/catalogql/internal/schema"
)

//go:embed schema.graphql
var schemaSDL string

// Schema builds the catalog schema from the embedded SDL.
func Schema() (*schema.Schema, error) {
	return schema.BuildFromSDL(schemaSDL)
}
