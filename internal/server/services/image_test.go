package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/chatkeeper/internal/common"
	"github.com/dmitrijs2005/chatkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newImageService(t *testing.T) (*ImageService, *store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newSQLMockDB(t)
	s := newStore()
	return NewImageService(db, &fakeRepoManager{s: s}, testConfig()), s, mock
}

func meta(path string) models.ImageMeta {
	return models.ImageMeta{
		Filename:     "img-1.png",
		OriginalName: "cat.png",
		Path:         path,
		Size:         42,
		MimeType:     "image/png",
	}
}

func TestImageService_Create(t *testing.T) {
	svc, _, _ := newImageService(t)

	img, err := svc.Create(context.Background(), "alice", meta("/data/img-1.png"))
	require.NoError(t, err)
	assert.Equal(t, "alice", img.Owner)
	assert.Equal(t, "/data/img-1.png", img.Path)
	assert.EqualValues(t, 42, img.Size)
}

func TestImageService_CreateValidation(t *testing.T) {
	svc, s, _ := newImageService(t)

	bad := []models.ImageMeta{
		{},
		{Filename: "f", OriginalName: "o", MimeType: "image/png"},
		{Filename: "f", OriginalName: "o", Path: "p"},
		{Filename: "f", OriginalName: "o", Path: "p", MimeType: "image/png", Size: -1},
		{Filename: strings.Repeat("f", 401), OriginalName: "o", Path: "p", MimeType: "image/png"},
		{Filename: "f", OriginalName: strings.Repeat("o", 504), Path: "p", MimeType: "image/png"},
		{Filename: "f", OriginalName: "o", Path: strings.Repeat("p", 1001), MimeType: "image/png"},
		{Filename: "f", OriginalName: "o", Path: "p", MimeType: "image/" + strings.Repeat("x", 195)},
	}
	for _, m := range bad {
		_, err := svc.Create(context.Background(), "alice", m)
		assert.ErrorIs(t, err, common.ErrValidation, "%+v", m)
	}
	_, err := svc.Create(context.Background(), "", meta("p"))
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.Empty(t, s.images)
}

func TestImageService_CreateAtColumnWidth(t *testing.T) {
	svc, s, _ := newImageService(t)

	m := models.ImageMeta{
		Filename:     strings.Repeat("f", 400),
		OriginalName: strings.Repeat("é", 400),
		Path:         strings.Repeat("p", 1000),
		MimeType:     "image/" + strings.Repeat("x", 194),
	}
	_, err := svc.Create(context.Background(), "alice", m)
	require.NoError(t, err)
	assert.Len(t, s.images, 1)
}

func TestImageService_ListAscendingAndIsolated(t *testing.T) {
	svc, _, _ := newImageService(t)
	ctx := context.Background()

	for _, p := range []string{"/d/1", "/d/2", "/d/3"} {
		_, err := svc.Create(ctx, "alice", meta(p))
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, "bob", meta("/d/bob"))
	require.NoError(t, err)

	got, err := svc.List(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "/d/1", got[0].Path)
	assert.Equal(t, "/d/3", got[2].Path)
	for _, img := range got {
		assert.Equal(t, "alice", img.Owner)
	}
}

func TestImageService_DeleteReturnsPathOnce(t *testing.T) {
	svc, _, mock := newImageService(t)
	ctx := context.Background()

	img, err := svc.Create(ctx, "alice", meta("/data/img-1.png"))
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()
	res, err := svc.Delete(ctx, img.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, DeleteResult{Affected: 1, Path: "/data/img-1.png"}, res)

	mock.ExpectBegin()
	mock.ExpectCommit()
	res, err = svc.Delete(ctx, img.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, DeleteResult{}, res)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImageService_DeleteNotOwned(t *testing.T) {
	svc, s, mock := newImageService(t)
	ctx := context.Background()

	img, err := svc.Create(ctx, "alice", meta("/data/img-1.png"))
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()
	res, err := svc.Delete(ctx, img.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, DeleteResult{}, res)
	assert.Len(t, s.images, 1)
}

func TestImageService_DeleteRollsBackOnError(t *testing.T) {
	svc, s, mock := newImageService(t)
	s.err = errors.New("db down")

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err := svc.Delete(context.Background(), 1, "alice")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImageService_DeleteBeginError(t *testing.T) {
	svc, _, mock := newImageService(t)

	mock.ExpectBegin().WillReturnError(context.DeadlineExceeded)
	_, err := svc.Delete(context.Background(), 1, "alice")
	assert.ErrorIs(t, err, common.ErrTimeout)
}
