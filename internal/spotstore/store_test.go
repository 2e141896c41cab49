package spotstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/spotmap-go/internal/kvstore"
	"github.com/jengzang/spotmap-go/internal/models"
)

var errBoom = errors.New("boom")

// fakeRemote is an in-memory backend with switchable failures. A blocked
// call waits for its context, like a backend that never answers.
type fakeRemote struct {
	mu          sync.Mutex
	spots       []models.Spot
	failInsert  bool
	failList    bool
	blockInsert bool
	blockList   bool
	inserts     int
	lists       int
}

func (f *fakeRemote) ListPublicSpots(ctx context.Context) ([]models.Spot, error) {
	if f.blockList {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.failList {
		return nil, errBoom
	}
	return append([]models.Spot(nil), f.spots...), nil
}

func (f *fakeRemote) InsertPublicSpot(ctx context.Context, spot models.Spot) error {
	if f.blockInsert {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if f.failInsert {
		return errBoom
	}
	f.spots = append(f.spots, spot)
	return nil
}

// flakyLocal wraps a memory store and can refuse or stall writes
type flakyLocal struct {
	*kvstore.MemoryStore
	failSet  bool
	failGet  bool
	blockSet bool
	sets     int
}

func (f *flakyLocal) Set(ctx context.Context, key, value string) error {
	f.sets++
	if f.blockSet {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.failSet {
		return errBoom
	}
	return f.MemoryStore.Set(ctx, key, value)
}

func (f *flakyLocal) Get(ctx context.Context, key string) (string, bool, error) {
	if f.failGet {
		return "", false, errBoom
	}
	return f.MemoryStore.Get(ctx, key)
}

func newFixture() (*flakyLocal, *fakeRemote, *Store) {
	local := &flakyLocal{MemoryStore: kvstore.NewMemoryStore()}
	remote := &fakeRemote{}
	return local, remote, New(local, remote, Options{})
}

func at(lat, lon float64) models.Coordinates {
	return models.Coordinates{Latitude: lat, Longitude: lon}
}

func strPtr(s string) *string { return &s }

func TestLoadAllEmpty(t *testing.T) {
	_, _, store := newFixture()

	private, public, err := store.LoadAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, private)
	assert.NotNil(t, public)
	assert.Empty(t, private)
	assert.Empty(t, public)
}

func TestCreatePrivatePersists(t *testing.T) {
	ctx := context.Background()
	local, remote, store := newFixture()

	spot, err := store.Create(ctx, CreateRequest{
		At:          at(46.81, -71.2),
		Name:        "  Bridge  ",
		Description: " deep pool ",
		Visibility:  models.VisibilityPrivate,
	})
	require.NoError(t, err)
	assert.Equal(t, "Bridge", spot.Name)
	assert.Equal(t, "deep pool", spot.Description)
	assert.Equal(t, 0, remote.inserts)

	reopened := New(local, remote, Options{})
	private, _, err := reopened.LoadAll(ctx)
	require.NoError(t, err)

	want := []models.Spot{spot}
	if diff := cmp.Diff(want, private); diff != "" {
		t.Errorf("private spots mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateDefaultNames(t *testing.T) {
	ctx := context.Background()
	_, _, en := newFixture()
	spot, err := en.Create(ctx, CreateRequest{At: at(1, 2), Name: "   ", Visibility: models.VisibilityPrivate})
	require.NoError(t, err)
	assert.Equal(t, "Private spot", spot.Name)

	fr := New(kvstore.NewMemoryStore(), &fakeRemote{}, Options{Locale: models.LocaleFrench})
	spot, err = fr.Create(ctx, CreateRequest{At: at(1, 2), Visibility: models.VisibilityPublic, User: strPtr("a@b.c")})
	require.NoError(t, err)
	assert.Equal(t, "Spot public", spot.Name)
}

func TestCreateInvalidVisibility(t *testing.T) {
	local, remote, store := newFixture()

	_, err := store.Create(context.Background(), CreateRequest{At: at(1, 2), Visibility: "friends"})
	assert.ErrorIs(t, err, ErrInvalidVisibility)
	assert.Zero(t, local.sets)
	assert.Zero(t, remote.inserts)
}

func TestCreatePublicRequiresUser(t *testing.T) {
	local, remote, store := newFixture()

	for _, user := range []*string{nil, strPtr(""), strPtr("  ")} {
		_, err := store.Create(context.Background(), CreateRequest{At: at(1, 2), Visibility: models.VisibilityPublic, User: user})
		assert.ErrorIs(t, err, ErrAuthRequired)
	}
	assert.Zero(t, remote.inserts)
	assert.Zero(t, remote.lists)
	assert.Zero(t, local.sets)
	assert.Empty(t, store.Public())
}

func TestCreatePublicRefreshesCollection(t *testing.T) {
	ctx := context.Background()
	_, remote, store := newFixture()
	remote.spots = []models.Spot{{Name: "Someone else's", Visibility: models.VisibilityPublic, Owner: strPtr("x@y.z")}}

	spot, err := store.Create(ctx, CreateRequest{
		At:         at(45.5, -73.6),
		Name:       "Marina",
		Visibility: models.VisibilityPublic,
		Type:       strPtr(" fishing "),
		User:       strPtr("me@example.com"),
	})
	require.NoError(t, err)
	require.NotNil(t, spot.Owner)
	assert.Equal(t, "me@example.com", *spot.Owner)
	require.NotNil(t, spot.Type)
	assert.Equal(t, "fishing", *spot.Type)

	assert.Equal(t, 1, remote.inserts)
	assert.Equal(t, 1, remote.lists)
	public := store.Public()
	require.Len(t, public, 2)
	assert.Equal(t, "Marina", public[1].Name)
	assert.Empty(t, store.Private())
}

func TestCreatePublicInsertFailure(t *testing.T) {
	ctx := context.Background()
	_, remote, store := newFixture()
	remote.spots = []models.Spot{{Name: "existing", Visibility: models.VisibilityPublic}}
	_, err := store.Refresh(ctx)
	require.NoError(t, err)

	remote.failInsert = true
	_, err = store.Create(ctx, CreateRequest{At: at(1, 2), Visibility: models.VisibilityPublic, User: strPtr("me@example.com")})
	assert.ErrorIs(t, err, ErrRemoteWriteFailed)
	assert.ErrorIs(t, err, errBoom)
	assert.Len(t, store.Public(), 1)
}

func TestCreatePublicRefreshFailure(t *testing.T) {
	ctx := context.Background()
	_, remote, store := newFixture()
	remote.failList = true

	spot, err := store.Create(ctx, CreateRequest{At: at(1, 2), Name: "Cove", Visibility: models.VisibilityPublic, User: strPtr("me@example.com")})
	assert.ErrorIs(t, err, ErrRemoteReadFailed)
	assert.Equal(t, "Cove", spot.Name)
	assert.Equal(t, 1, remote.inserts)
	assert.Empty(t, store.Public())
}

func TestUpdateOutOfRange(t *testing.T) {
	local, _, store := newFixture()

	_, err := store.Update(context.Background(), 0, "x", "y")
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = store.Update(context.Background(), -1, "x", "y")
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	assert.ErrorIs(t, store.Remove(context.Background(), 0), ErrIndexOutOfRange)
	assert.Zero(t, local.sets)
}

func TestUpdateKeepsPositionAndType(t *testing.T) {
	ctx := context.Background()
	local, remote, store := newFixture()
	_, err := store.Create(ctx, CreateRequest{At: at(10, 20), Name: "old", Visibility: models.VisibilityPrivate, Type: strPtr("camp")})
	require.NoError(t, err)

	updated, err := store.Update(ctx, 0, "", "renamed")
	require.NoError(t, err)
	assert.Equal(t, "Private spot", updated.Name)
	assert.Equal(t, "renamed", updated.Description)
	assert.Equal(t, at(10, 20), updated.Coordinates())
	require.NotNil(t, updated.Type)
	assert.Equal(t, "camp", *updated.Type)

	private, _, err := New(local, remote, Options{}).LoadAll(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff([]models.Spot{updated}, private); diff != "" {
		t.Errorf("persisted spots mismatch (-want +got):\n%s", diff)
	}
}

func TestRemoveShiftsIndices(t *testing.T) {
	ctx := context.Background()
	_, _, store := newFixture()
	for _, name := range []string{"a", "b", "c"} {
		_, err := store.Create(ctx, CreateRequest{At: at(1, 1), Name: name, Visibility: models.VisibilityPrivate})
		require.NoError(t, err)
	}

	require.NoError(t, store.Remove(ctx, 0))
	_, err := store.Update(ctx, 0, "b2", "")
	require.NoError(t, err)

	var names []string
	for _, s := range store.Private() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"b2", "c"}, names)
}

func TestLocalWriteFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	local, remote, store := newFixture()
	first, err := store.Create(ctx, CreateRequest{At: at(1, 1), Name: "keep", Visibility: models.VisibilityPrivate})
	require.NoError(t, err)
	before := store.Private()

	local.failSet = true

	_, err = store.Create(ctx, CreateRequest{At: at(2, 2), Name: "lost", Visibility: models.VisibilityPrivate})
	assert.ErrorIs(t, err, ErrLocalWriteFailed)
	_, err = store.Update(ctx, 0, "changed", "")
	assert.ErrorIs(t, err, ErrLocalWriteFailed)
	assert.ErrorIs(t, store.Remove(ctx, 0), ErrLocalWriteFailed)

	if diff := cmp.Diff(before, store.Private()); diff != "" {
		t.Errorf("memory changed after failed writes (-want +got):\n%s", diff)
	}

	local.failSet = false
	private, _, err := New(local, remote, Options{}).LoadAll(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff([]models.Spot{first}, private); diff != "" {
		t.Errorf("storage changed after failed writes (-want +got):\n%s", diff)
	}
}

func TestLoadAllMigratesLegacyArray(t *testing.T) {
	ctx := context.Background()
	local, remote, _ := newFixture()
	require.NoError(t, local.Set(ctx, keyPrivateSpots,
		`[{"name":"Old","description":"from v0","latitude":48.1,"longitude":-1.6}]`))

	store := New(local, remote, Options{})
	private, _, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, private, 1)
	assert.Equal(t, "Old", private[0].Name)
	assert.Equal(t, models.VisibilityPrivate, private[0].Visibility)

	// the next change rewrites the collection in the versioned layout
	_, err = store.Update(ctx, 0, "Old", "migrated")
	require.NoError(t, err)
	raw, ok, err := local.Get(ctx, keyPrivateSpots)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, raw, `"version":1`)
}

func TestLoadAllMalformedIsEmpty(t *testing.T) {
	ctx := context.Background()
	for _, raw := range []string{"{not json", `{"version":99,"spots":[]}`, `"just a string"`} {
		local, remote, _ := newFixture()
		require.NoError(t, local.Set(ctx, keyPrivateSpots, raw))

		private, _, err := New(local, remote, Options{}).LoadAll(ctx)
		require.NoError(t, err, raw)
		assert.Empty(t, private, raw)
	}
}

func TestLoadAllLocalReadErrorIsEmpty(t *testing.T) {
	local, _, store := newFixture()
	local.failGet = true

	private, _, err := store.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, private)
}

func TestLoadAllRemoteFailure(t *testing.T) {
	ctx := context.Background()
	local, remote, store := newFixture()
	_, err := store.Create(ctx, CreateRequest{At: at(1, 1), Name: "mine", Visibility: models.VisibilityPrivate})
	require.NoError(t, err)
	remote.failList = true

	private, public, err := New(local, remote, Options{}).LoadAll(ctx)
	assert.ErrorIs(t, err, ErrRemoteReadFailed)
	assert.Len(t, private, 1)
	assert.NotNil(t, public)
	assert.Empty(t, public)
}

func TestRefreshFailureKeepsSnapshot(t *testing.T) {
	ctx := context.Background()
	_, remote, store := newFixture()
	remote.spots = []models.Spot{{Name: "one", Visibility: models.VisibilityPublic}}
	_, err := store.Refresh(ctx)
	require.NoError(t, err)

	remote.failList = true
	public, err := store.Refresh(ctx)
	assert.ErrorIs(t, err, ErrRemoteReadFailed)
	assert.Len(t, public, 1)
	assert.Len(t, store.Public(), 1)
}

func TestCollectionsAreCopies(t *testing.T) {
	ctx := context.Background()
	_, _, store := newFixture()
	_, err := store.Create(ctx, CreateRequest{At: at(1, 1), Name: "a", Visibility: models.VisibilityPrivate})
	require.NoError(t, err)

	got := store.Private()
	got[0].Name = "mutated"
	assert.Equal(t, "a", store.Private()[0].Name)
}

func TestConcurrentPrivateCreates(t *testing.T) {
	ctx := context.Background()
	local, remote, store := newFixture()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Create(ctx, CreateRequest{At: at(1, 1), Visibility: models.VisibilityPrivate})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	private, _, err := New(local, remote, Options{}).LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, private, 20)
}

func TestReadFailureRefusesPrivateWrites(t *testing.T) {
	ctx := context.Background()
	local, remote, store := newFixture()
	for _, name := range []string{"a", "b", "c"} {
		_, err := store.Create(ctx, CreateRequest{At: at(1, 1), Name: name, Visibility: models.VisibilityPrivate})
		require.NoError(t, err)
	}

	local.failGet = true
	unread := New(local, remote, Options{})
	private, _, err := unread.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, private)

	_, err = unread.Create(ctx, CreateRequest{At: at(2, 2), Name: "d", Visibility: models.VisibilityPrivate})
	assert.ErrorIs(t, err, ErrLocalWriteFailed)
	assert.ErrorIs(t, err, errBoom)
	_, err = unread.Update(ctx, 0, "x", "")
	assert.ErrorIs(t, err, ErrLocalWriteFailed)
	assert.ErrorIs(t, unread.Remove(ctx, 0), ErrLocalWriteFailed)

	// public spots do not touch the private collection
	_, err = unread.Create(ctx, CreateRequest{At: at(3, 3), Visibility: models.VisibilityPublic, User: strPtr("me@example.com")})
	require.NoError(t, err)

	// a successful read lifts the refusal
	local.failGet = false
	private, _, err = unread.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, private, 3)
	_, err = unread.Create(ctx, CreateRequest{At: at(2, 2), Name: "d", Visibility: models.VisibilityPrivate})
	require.NoError(t, err)

	private, _, err = New(local, remote, Options{}).LoadAll(ctx)
	require.NoError(t, err)
	var names []string
	for _, s := range private {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, names)
}

func TestNewerFormatIsNotOverwritten(t *testing.T) {
	ctx := context.Background()
	local, remote, _ := newFixture()
	newer := `{"version":2,"spots":[{"name":"from the future"}],"extra":true}`
	require.NoError(t, local.Set(ctx, keyPrivateSpots, newer))

	store := New(local, remote, Options{})
	private, _, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, private)

	_, err = store.Create(ctx, CreateRequest{At: at(1, 1), Visibility: models.VisibilityPrivate})
	assert.ErrorIs(t, err, ErrLocalWriteFailed)
	assert.ErrorIs(t, err, errUnsupportedVersion)

	raw, ok, err := local.Get(ctx, keyPrivateSpots)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, newer, raw)
}

func TestMalformedDataIsReplacedOnWrite(t *testing.T) {
	ctx := context.Background()
	local, remote, _ := newFixture()
	require.NoError(t, local.Set(ctx, keyPrivateSpots, "{not json"))

	store := New(local, remote, Options{})
	_, _, err := store.LoadAll(ctx)
	require.NoError(t, err)

	_, err = store.Create(ctx, CreateRequest{At: at(1, 1), Name: "fresh", Visibility: models.VisibilityPrivate})
	require.NoError(t, err)
	private, _, err := New(local, remote, Options{}).LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, private, 1)
	assert.Equal(t, "fresh", private[0].Name)
}

func TestLocalWriteTimeout(t *testing.T) {
	ctx := context.Background()
	local := &flakyLocal{MemoryStore: kvstore.NewMemoryStore()}
	store := New(local, &fakeRemote{}, Options{LocalTimeout: 20 * time.Millisecond})
	first, err := store.Create(ctx, CreateRequest{At: at(1, 1), Name: "keep", Visibility: models.VisibilityPrivate})
	require.NoError(t, err)

	local.blockSet = true
	start := time.Now()
	_, err = store.Create(ctx, CreateRequest{At: at(2, 2), Name: "stalled", Visibility: models.VisibilityPrivate})
	assert.ErrorIs(t, err, ErrLocalWriteFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	_, err = store.Update(ctx, 0, "changed", "")
	assert.ErrorIs(t, err, ErrLocalWriteFailed)
	assert.ErrorIs(t, store.Remove(ctx, 0), ErrLocalWriteFailed)

	if diff := cmp.Diff([]models.Spot{first}, store.Private()); diff != "" {
		t.Errorf("memory changed after timed-out writes (-want +got):\n%s", diff)
	}
}

func TestRemoteInsertTimeout(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{blockInsert: true, spots: []models.Spot{{Name: "existing", Visibility: models.VisibilityPublic}}}
	store := New(kvstore.NewMemoryStore(), remote, Options{RemoteTimeout: 20 * time.Millisecond})
	_, err := store.Refresh(ctx)
	require.NoError(t, err)

	start := time.Now()
	_, err = store.Create(ctx, CreateRequest{At: at(1, 1), Visibility: models.VisibilityPublic, User: strPtr("me@example.com")})
	assert.ErrorIs(t, err, ErrRemoteWriteFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Len(t, store.Public(), 1)
}

func TestRemoteReadTimeout(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{blockList: true}
	store := New(kvstore.NewMemoryStore(), remote, Options{RemoteTimeout: 20 * time.Millisecond})

	_, public, err := store.LoadAll(ctx)
	assert.ErrorIs(t, err, ErrRemoteReadFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, public)

	_, err = store.Refresh(ctx)
	assert.ErrorIs(t, err, ErrRemoteReadFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
