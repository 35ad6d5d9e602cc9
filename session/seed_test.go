package session

import (
	"context"
	"errors"
	"testing"

	"github.com/brettbedarf/kfs"
	"github.com/brettbedarf/kfs/internal/mocks"
	"github.com/brettbedarf/kfs/requests"
	"github.com/brettbedarf/kfs/sources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func fileReq(path string, srcs ...kfs.ContentSource) *kfs.FileCreateRequest {
	req := &kfs.FileCreateRequest{NodeRequest: kfs.NodeRequest{Path: path, Kind: kfs.FileNode}}
	for i, src := range srcs {
		req.Sources = append(req.Sources, kfs.FileSource{ContentSource: src, Priority: i})
	}
	return req
}

func dirReq(path string) *kfs.DirCreateRequest {
	return &kfs.DirCreateRequest{NodeRequest: kfs.NodeRequest{Path: path, Kind: kfs.DirNode}}
}

func TestSession_Seed(t *testing.T) {
	t.Parallel()

	s := createTestSession(t)
	// seeding is relative to the root even from a subdirectory
	_, err := s.Mkdir("elsewhere")
	require.NoError(t, err)
	require.NoError(t, s.Cd("elsewhere"))

	broken := &mocks.MockContentSource{}
	broken.On("Open", mock.Anything).Return(nil, errors.New("offline"))

	seed := &requests.Seed{
		Dirs: []*kfs.DirCreateRequest{dirReq("etc"), dirReq("var/log/app")},
		Files: []*kfs.FileCreateRequest{
			fileReq("etc/motd", sources.NewInlineText("welcome")),
			fileReq("home/user/fallback", broken, sources.NewInlineText("second choice")),
			fileReq("empty"),
		},
	}

	require.NoError(t, s.Seed(context.Background(), seed))

	for _, p := range []string{"/etc", "/var/log/app", "/home/user"} {
		node, err := s.Resolve(p)
		require.NoError(t, err, p)
		assert.True(t, node.IsDir(), p)
	}
	assert.Equal(t, "welcome", readFile(t, s, "/etc/motd"))
	assert.Equal(t, "second choice", readFile(t, s, "/home/user/fallback"))
	empty, err := s.Resolve("/empty")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Size())
	broken.AssertExpectations(t)
}

func TestSession_Seed_Failures(t *testing.T) {
	t.Parallel()

	s := createTestSession(t)
	_, err := s.Mkfile("taken")
	require.NoError(t, err)

	seed := &requests.Seed{
		Dirs: []*kfs.DirCreateRequest{dirReq("taken/sub"), dirReq("ok")},
		Files: []*kfs.FileCreateRequest{
			fileReq("taken"),
			fileReq("ok/unreadable", sources.NewLocalFile("/does/not/exist")),
			fileReq("ok/fine", sources.NewInlineText("x")),
		},
	}

	err = s.Seed(context.Background(), seed)
	require.Error(t, err)
	assert.ErrorContains(t, err, "taken/sub")
	assert.ErrorContains(t, err, "no readable source")
	assert.Equal(t, kfs.ErrWrongNodeType, kfs.CodeOf(err), "first failure is the dir under a file")

	assert.Equal(t, "x", readFile(t, s, "/ok/fine"), "later requests still apply")
}

func TestSession_Seed_NoRoot(t *testing.T) {
	t.Parallel()

	s := New(createTestConfig(), nil)
	err := s.Seed(context.Background(), &requests.Seed{})
	assert.Equal(t, kfs.ErrNoRoot, kfs.CodeOf(err))
}
