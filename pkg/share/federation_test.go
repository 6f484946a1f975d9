package share

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kevgathuku/server/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ocsServer fakes the peer's federated share endpoint.
func ocsServer(t *testing.T, statuscode int, record *[]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if record != nil {
			*record = append(*record, r.URL.Path+"|"+r.PostForm.Encode())
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"ocs":{"meta":{"statuscode":%d}}}`, statuscode)
	}))
}

func TestNotifierCreateShare(t *testing.T) {
	var calls []string
	srv := ocsServer(t, 100, &calls)
	defer srv.Close()
	host := strings.TrimPrefix(srv.URL, "http://")

	n := newTestNotifier()
	err := n.CreateShare(context.Background(), host, "tok", "doc.txt", "alice", "dave", 42)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0], "/ocs/v2.php/cloud/shares|")
	assert.Contains(t, calls[0], "shareWith=dave")
	assert.Contains(t, calls[0], "token=tok")
	assert.Contains(t, calls[0], "remoteId=42")
}

func TestNotifierRevokeShare(t *testing.T) {
	var calls []string
	srv := ocsServer(t, 200, &calls)
	defer srv.Close()
	host := strings.TrimPrefix(srv.URL, "http://")

	n := newTestNotifier()
	err := n.RevokeShare(context.Background(), host, "tok", 42)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0], "/ocs/v2.php/cloud/shares/42/unshare|")
}

func TestNotifierPeerRejection(t *testing.T) {
	srv := ocsServer(t, 404, nil)
	defer srv.Close()
	host := strings.TrimPrefix(srv.URL, "http://")

	n := newTestNotifier()
	err := n.CreateShare(context.Background(), host, "tok", "doc.txt", "alice", "dave", 42)
	assert.ErrorIs(t, err, ErrRemoteUnreachable)
}

func TestSplitRemoteUser(t *testing.T) {
	user, remote, err := SplitRemoteUser("dave@cloud.example.com")
	require.NoError(t, err)
	assert.Equal(t, "dave", user)
	assert.Equal(t, "cloud.example.com", remote)

	// The last @ splits; the user part may contain one.
	user, remote, err = SplitRemoteUser("dave@corp@cloud.example.com:8443")
	require.NoError(t, err)
	assert.Equal(t, "dave@corp", user)
	assert.Equal(t, "cloud.example.com:8443", remote)

	user, remote, err = SplitRemoteUser("https://cloud.example.com")
	assert.Error(t, err)

	_, _, err = SplitRemoteUser("dave@")
	assert.Error(t, err)
	_, _, err = SplitRemoteUser("@host")
	assert.Error(t, err)
}

func TestRemoteShareSaga(t *testing.T) {
	ctx := context.Background()
	srv := ocsServer(t, 100, nil)
	defer srv.Close()
	host := strings.TrimPrefix(srv.URL, "http://")

	f := newFixture()
	f.dir.addUser("alice", "Alice")
	f.seedFile("alice", "101", "doc.txt", "/docs/doc.txt", 101)

	res, err := f.share(ShareRequest{
		ItemType:    "file",
		ItemSource:  "101",
		ShareType:   models.ShareTypeRemote,
		ShareWith:   "dave@" + host,
		Owner:       "alice",
		Permissions: models.PermissionRead,
	})
	require.NoError(t, err)
	assert.True(t, res.RemoteAccepted)
	assert.Len(t, res.Token, 15)

	row, err := f.store.ByID(ctx, res.IDs[0])
	require.NoError(t, err)
	assert.Equal(t, models.ShareTypeRemote, row.ShareType)
	assert.Equal(t, "dave@"+host, row.ShareWith)

	// The same share again is a duplicate.
	_, err = f.share(ShareRequest{
		ItemType:    "file",
		ItemSource:  "101",
		ShareType:   models.ShareTypeRemote,
		ShareWith:   "dave@" + host,
		Owner:       "alice",
		Permissions: models.PermissionRead,
	})
	assert.ErrorIs(t, err, ErrPolicyViolation)
}

func TestRemoteShareCompensatesWhenPeerRejects(t *testing.T) {
	ctx := context.Background()
	srv := ocsServer(t, 404, nil)
	defer srv.Close()
	host := strings.TrimPrefix(srv.URL, "http://")

	f := newFixture()
	f.dir.addUser("alice", "Alice")
	f.seedFile("alice", "101", "doc.txt", "/docs/doc.txt", 101)

	_, err := f.share(ShareRequest{
		ItemType:    "file",
		ItemSource:  "101",
		ShareType:   models.ShareTypeRemote,
		ShareWith:   "dave@" + host,
		Owner:       "alice",
		Permissions: models.PermissionRead,
	})
	require.ErrorIs(t, err, ErrRemoteUnreachable)

	// The locally written row was compensated away.
	rows, err := f.store.Find(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRemoteShareToSelfRejected(t *testing.T) {
	f := newFixture()
	f.dir.addUser("alice", "Alice")
	f.seedFile("alice", "101", "doc.txt", "/docs/doc.txt", 101)

	_, err := f.share(ShareRequest{
		ItemType:    "file",
		ItemSource:  "101",
		ShareType:   models.ShareTypeRemote,
		ShareWith:   "alice@local.example.com",
		Owner:       "alice",
		Permissions: models.PermissionRead,
	})
	assert.ErrorIs(t, err, ErrPolicyViolation)
}
