package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shop-catalog/internal/model"
)

type stubIndex struct {
	codes     []string
	err       error
	lastLimit int
}

func (s *stubIndex) SearchTitles(_ context.Context, _ string, limit int) ([]string, error) {
	s.lastLimit = limit
	return s.codes, s.err
}

type stubLinker struct{ expiry time.Duration }

func (s *stubLinker) PresignedURL(_ context.Context, expiry time.Duration) (string, error) {
	s.expiry = expiry
	return "http://minio/shop-catalog/categories/forest.json?sig", nil
}

func TestSearch_KeepsIndexOrderAndSkipsStaleHits(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	index := &stubIndex{codes: []string{"010011", "404404", "001002"}}
	svc := NewSearchService(index, &stubLinker{}, f.repo, time.Hour)

	got, err := svc.Search(context.Background(), " 청 ", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "010011", got[0].Code())
	assert.Equal(t, "001002", got[1].Code())
	assert.Equal(t, defaultSearchLimit, index.lastLimit)

	_, err = svc.Search(context.Background(), "청", 500)
	require.NoError(t, err)
	assert.Equal(t, maxSearchLimit, index.lastLimit)
}

func TestSearch_Errors(t *testing.T) {
	f := newFixture(t)
	index := &stubIndex{err: errors.New("es down")}
	svc := NewSearchService(index, &stubLinker{}, f.repo, time.Hour)

	_, err := svc.Search(context.Background(), "   ", 5)
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = svc.Search(context.Background(), "청", 5)
	assert.EqualError(t, err, "es down")
}

func TestSnapshotURL(t *testing.T) {
	linker := &stubLinker{}
	svc := NewSearchService(&stubIndex{}, linker, newMemRepo(), 15*time.Minute)

	url, err := svc.SnapshotURL(context.Background())
	require.NoError(t, err)
	assert.Contains(t, url, "forest.json")
	assert.Equal(t, 15*time.Minute, linker.expiry)
}
