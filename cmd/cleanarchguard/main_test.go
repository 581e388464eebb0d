package main

import (
	"errors"
	"testing"

	"github.com/roblaszczak/go-cleanarch/cleanarch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter(t *testing.T) {
	cfg := &config{
		SharedModules:     []string{"auth"},
		AllowedViolations: []string{"testhelpers"},
	}
	errs := []cleanarch.ValidationError{
		cleanarch.ValidationError(errors.New("cannot import between admin and auth modules")),
		cleanarch.ValidationError(errors.New("cannot import between admin and products modules")),
		cleanarch.ValidationError(errors.New("domain imports products/testhelpers")),
	}

	out := cfg.filter(errs)
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Error(), "admin and products")
}

func TestLayersDefaults(t *testing.T) {
	layers := (&config{Aliases: layerAliases{Domain: []string{"entities"}}}).layers()
	assert.Equal(t, cleanarch.LayerDomain, layers["entities"])
	assert.NotContains(t, layers, "domain")
	assert.Equal(t, cleanarch.LayerApplication, layers["services"])
	assert.Equal(t, cleanarch.LayerInfrastructure, layers["testhelpers"])
}
