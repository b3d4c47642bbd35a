package pipeline_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/firewhere/internal/adapter/file"
	"github.com/couchcryptid/firewhere/internal/adapter/model"
	"github.com/couchcryptid/firewhere/internal/domain"
	"github.com/couchcryptid/firewhere/internal/mockdata"
	"github.com/couchcryptid/firewhere/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loadGeneratedDataset writes a synthetic dataset to disk and loads it the
// same way the service does at startup.
func loadGeneratedDataset(t *testing.T) (*pipeline.Pipeline, mockdata.Dataset) {
	t.Helper()
	dir := t.TempDir()
	ds := mockdata.Generate(mockdata.Options{MinLat: 39, MaxLat: 41, MinLon: -106, MaxLon: -104, Step: 0.5, Seed: 3})
	require.NoError(t, mockdata.Write(dir, ds))

	loadModel := func(ctx context.Context) (domain.Predictor, error) {
		return model.Load(ctx, filepath.Join(dir, mockdata.ModelFile), nil)
	}
	p := pipeline.New(file.NewSource(dir, discardLogger()), loadModel, discardLogger(), newTestMetrics(), pipeline.Options{})
	require.NoError(t, p.Load(context.Background()))
	return p, ds
}

func TestGeneratedDataset_EveryStationResolvesToItself(t *testing.T) {
	p, ds := loadGeneratedDataset(t)

	for _, s := range ds.Stations {
		for _, day := range []int{1, 100, 365} {
			w, err := p.Weather(context.Background(), domain.Query{Lat: s.Lat, Lon: s.Lon, DayOfYear: day})
			require.NoError(t, err)
			assert.Equal(t, s.ID, w.Station.ID)
			assert.Zero(t, w.Distance)
		}
	}
}

func TestGeneratedDataset_PredictEveryCounty(t *testing.T) {
	p, ds := loadGeneratedDataset(t)

	for county := range ds.Counties["Colorado"] {
		t.Run(county, func(t *testing.T) {
			res, err := p.Predict(context.Background(), pipeline.Request{
				State: "Colorado", County: county, Date: "2024-07-04", Cause: "Campfire",
			})
			require.NoError(t, err)
			assert.Equal(t, 186, res.DayOfYear)
			assert.Equal(t, pipeline.SourceDirectory, res.Location.Source)
			assert.LessOrEqual(t, res.Weather.Distance, domain.DefaultCoverageThreshold)
			require.Len(t, res.Prediction.Probabilities, 3)
			assert.Equal(t, res.Prediction.Class.String(), res.SizeLabel)
		})
	}
}
