package monitor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tweetwatch/tweetwatch/internal/accounts"
	"github.com/tweetwatch/tweetwatch/internal/fetch"
	"github.com/tweetwatch/tweetwatch/internal/tweet"
)

type fakeSession struct {
	alive       bool
	connectOK   bool
	recycleOK   bool
	connects    int
	recycles    int
	discards    int
	followPass  int
	followedSet [][]string
	pageCalls   int
	// dropPageAfter makes Page() return nil once it has served this many
	// calls, simulating a session that dies mid-cycle. Zero means never.
	dropPageAfter int
}

func (s *fakeSession) Alive() bool { return s.alive }

func (s *fakeSession) Connect(ctx context.Context) bool {
	s.connects++
	if s.connectOK {
		s.alive = true
	}
	return s.connectOK
}

func (s *fakeSession) Recycle(ctx context.Context) bool {
	s.recycles++
	if !s.recycleOK {
		s.alive = false
	}
	return s.recycleOK
}

func (s *fakeSession) Discard() {
	s.discards++
	s.alive = false
}

func (s *fakeSession) FollowAll(ctx context.Context, handles []string) {
	s.followPass++
	s.followedSet = append(s.followedSet, handles)
}

func (s *fakeSession) Page() fetch.Page {
	s.pageCalls++
	if s.dropPageAfter > 0 && s.pageCalls > s.dropPageAfter {
		s.alive = false
		return nil
	}
	return stubPage{}
}

type stubPage struct{}

func (stubPage) Open(url string) error { return nil }

func (stubPage) WaitForAll(selector string, timeout time.Duration) ([]fetch.Element, error) {
	return nil, nil
}

type fakeFetcher struct {
	posts   map[string][]tweet.Post
	errs    map[string]error
	fetched []string
}

func (f *fakeFetcher) Recent(page fetch.Page, handle string) ([]tweet.Post, error) {
	f.fetched = append(f.fetched, handle)
	if err, ok := f.errs[handle]; ok {
		return nil, err
	}
	return f.posts[handle], nil
}

type fakeDetector struct {
	processed []string
}

func (d *fakeDetector) Process(ctx context.Context, acct *accounts.Account, posts []tweet.Post) bool {
	d.processed = append(d.processed, acct.Handle)
	return len(posts) > 0 && posts[0].ID != acct.LastPostID
}

type fixture struct {
	monitor  *Monitor
	store    *accounts.Store
	session  *fakeSession
	fetcher  *fakeFetcher
	detector *fakeDetector
	slept    []time.Duration
	path     string
}

func newFixture(t *testing.T, registry string) *fixture {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "accounts.json")
	if err := os.WriteFile(path, []byte(registry), 0o644); err != nil {
		t.Fatal(err)
	}
	store := accounts.NewStore(path, filepath.Join(dir, "data"), nil)
	if err := store.Load(); err != nil {
		t.Fatal(err)
	}

	session := &fakeSession{connectOK: true, recycleOK: true}
	fetcher := &fakeFetcher{posts: map[string][]tweet.Post{}, errs: map[string]error{}}
	detector := &fakeDetector{}

	f := &fixture{
		store:    store,
		session:  session,
		fetcher:  fetcher,
		detector: detector,
		path:     path,
	}
	f.monitor = New(Config{}, store, session, fetcher, detector, nil)
	f.monitor.sleep = func(ctx context.Context, d time.Duration) bool {
		f.slept = append(f.slept, d)
		return ctx.Err() == nil
	}
	return f
}

const twoAccounts = `{
    "alpha": {"name": "A", "username": "alpha", "last_tweet_id": null, "enabled": true},
    "bravo": {"name": "B", "username": "bravo", "last_tweet_id": null, "enabled": true}
}`

const withDisabled = `{
    "alpha": {"name": "A", "username": "alpha", "last_tweet_id": null, "enabled": true},
    "muted": {"name": "M", "username": "muted", "last_tweet_id": null, "enabled": false}
}`

func TestDisabledAccountsAreNeverTouched(t *testing.T) {
	f := newFixture(t, withDisabled)

	st := f.monitor.runOnce(context.Background(), State{})

	for _, handle := range f.fetcher.fetched {
		if handle == "muted" {
			t.Fatal("disabled account was fetched")
		}
	}
	for _, handles := range f.session.followedSet {
		for _, h := range handles {
			if h == "muted" {
				t.Fatal("disabled account was followed")
			}
		}
	}
	if st.Cycles != 1 {
		t.Errorf("cycle count = %d, want 1", st.Cycles)
	}
}

func TestConnectFailureCoolsDownWithoutTouchingAccounts(t *testing.T) {
	f := newFixture(t, twoAccounts)
	f.session.connectOK = false

	st := f.monitor.runOnce(context.Background(), State{})

	if len(f.fetcher.fetched) != 0 {
		t.Error("no account should be fetched without a session")
	}
	if st.Cycles != 0 || st.FollowedOnce {
		t.Errorf("state must be unchanged on connect failure: %+v", st)
	}
	if len(f.slept) != 1 || f.slept[0] != 60*time.Second {
		t.Errorf("expected a single 60s cooldown, got %v", f.slept)
	}
}

func TestFollowPassRunsExactlyOnce(t *testing.T) {
	f := newFixture(t, twoAccounts)

	st := State{}
	for i := 0; i < 3; i++ {
		st = f.monitor.runOnce(context.Background(), st)
	}

	if f.session.followPass != 1 {
		t.Fatalf("follow pass ran %d times, want exactly 1", f.session.followPass)
	}
}

func TestFollowPassNotRepeatedAfterRecycle(t *testing.T) {
	f := newFixture(t, twoAccounts)

	st := State{}
	for i := 0; i < 150; i++ {
		st = f.monitor.runOnce(context.Background(), st)
	}

	if f.session.recycles < 1 {
		t.Fatal("expected at least one recycle in 150 iterations")
	}
	if f.session.followPass != 1 {
		t.Fatalf("follow pass must stay gated across recycles, ran %d times", f.session.followPass)
	}
}

func TestRecycleEveryHundredIterations(t *testing.T) {
	f := newFixture(t, twoAccounts)
	// Failures for one account must not affect the recycle cadence.
	f.fetcher.errs["alpha"] = errors.New("boom")

	st := State{}
	for i := 0; i < 250; i++ {
		st = f.monitor.runOnce(context.Background(), st)
	}

	if f.session.recycles != 2 {
		t.Fatalf("expected exactly 2 recycles over 250 iterations, got %d", f.session.recycles)
	}
}

func TestRecycleFailureDiscardsSessionAndCoolsDown(t *testing.T) {
	f := newFixture(t, twoAccounts)
	f.session.recycleOK = false

	st := State{Cycles: 99, FollowedOnce: true}
	st = f.monitor.runOnce(context.Background(), st)

	if f.session.discards != 1 {
		t.Error("failed recycle should discard the session")
	}
	if st.Cycles != 0 {
		t.Errorf("recycle counter should reset, got %d", st.Cycles)
	}
	if len(f.fetcher.fetched) != 0 {
		t.Error("no accounts should be processed after a failed recycle")
	}
}

func TestPerAccountFailureIsolation(t *testing.T) {
	f := newFixture(t, twoAccounts)
	f.fetcher.errs["alpha"] = errors.New("navigation failed")
	f.fetcher.posts["bravo"] = []tweet.Post{{ID: "9", Handle: "bravo"}}

	f.monitor.runOnce(context.Background(), State{})

	if len(f.fetcher.fetched) != 2 {
		t.Fatalf("both accounts should be attempted, got %v", f.fetcher.fetched)
	}
	if len(f.detector.processed) != 1 || f.detector.processed[0] != "bravo" {
		t.Fatalf("only the healthy account should reach detection, got %v", f.detector.processed)
	}
}

func TestSessionLostMidCycleDiscardsAndReconnects(t *testing.T) {
	f := newFixture(t, twoAccounts)
	f.session.alive = true
	f.session.dropPageAfter = 1

	st := f.monitor.runOnce(context.Background(), State{FollowedOnce: true})

	if len(f.fetcher.fetched) != 1 {
		t.Fatalf("cycle should stop at the dead session, fetched %v", f.fetcher.fetched)
	}
	if f.session.discards != 1 {
		t.Fatal("a session lost mid-cycle must be discarded")
	}
	if st.Cycles != 1 {
		t.Errorf("cycle count = %d, want 1", st.Cycles)
	}

	f.monitor.runOnce(context.Background(), st)

	if f.session.connects != 1 {
		t.Fatalf("next iteration should reconnect once, got %d connects", f.session.connects)
	}
}

func TestUnavailableFetchSkipsDetection(t *testing.T) {
	f := newFixture(t, twoAccounts)
	f.fetcher.errs["alpha"] = fetch.ErrUnavailable

	f.monitor.runOnce(context.Background(), State{})

	for _, handle := range f.detector.processed {
		if handle == "alpha" {
			t.Fatal("unavailable account must not reach the detector")
		}
	}
}

func TestExternalConfigReloadBeforeAccountsProcessed(t *testing.T) {
	f := newFixture(t, twoAccounts)

	edited := `{
    "charlie": {"name": "C", "username": "charlie", "last_tweet_id": null, "enabled": true}
}`
	if err := os.WriteFile(f.path, []byte(edited), 0o644); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(5 * time.Second)
	if err := os.Chtimes(f.path, future, future); err != nil {
		t.Fatal(err)
	}

	f.monitor.runOnce(context.Background(), State{FollowedOnce: true})

	if len(f.fetcher.fetched) != 1 || f.fetcher.fetched[0] != "charlie" {
		t.Fatalf("reloaded registry should drive this cycle, got %v", f.fetcher.fetched)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	f := newFixture(t, twoAccounts)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		f.monitor.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}

func TestJitterBounds(t *testing.T) {
	f := newFixture(t, twoAccounts)
	for i := 0; i < 200; i++ {
		pause := f.monitor.accountPause()
		if pause < 3*time.Second || pause > 8*time.Second {
			t.Fatalf("account pause %v outside [3s, 8s]", pause)
		}
		delay := f.monitor.cycleDelay()
		if delay < 50*time.Second || delay > 70*time.Second {
			t.Fatalf("cycle delay %v outside [50s, 70s]", delay)
		}
	}
}
