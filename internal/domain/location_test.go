package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDirectory() *Directory {
	return NewDirectory(map[string]map[string]Coordinates{
		"Colorado": {
			"Boulder": {Lat: 40.09, Lon: -105.36},
			"Larimer": {Lat: 40.66, Lon: -105.46},
		},
		"Wyoming": {
			"Albany": {Lat: 41.65, Lon: -105.72},
		},
	})
}

func TestDirectory_States(t *testing.T) {
	assert.Equal(t, []string{"Colorado", "Wyoming"}, testDirectory().States())
}

func TestDirectory_Counties(t *testing.T) {
	counties, err := testDirectory().Counties("colorado")
	require.NoError(t, err)
	assert.Equal(t, []string{"Boulder", "Larimer"}, counties)

	_, err = testDirectory().Counties("Atlantis")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "state", nf.Resource)
}

func TestDirectory_County(t *testing.T) {
	c, err := testDirectory().County("Colorado", "boulder")
	require.NoError(t, err)
	assert.Equal(t, Coordinates{Lat: 40.09, Lon: -105.36}, c)

	_, err = testDirectory().County("Colorado", "Nowhere")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "county", nf.Resource)
	assert.Equal(t, "Nowhere, Colorado", nf.ID)
}

func TestNewDirectory_Nil(t *testing.T) {
	assert.Empty(t, NewDirectory(nil).States())
}
