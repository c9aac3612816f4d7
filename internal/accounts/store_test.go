package accounts

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "twitter_accounts.json")
	return NewStore(path, filepath.Join(dir, "tweets_data"), nil), path
}

func TestLoadSeedsDefaultWhenFileAbsent(t *testing.T) {
	store, path := newTestStore(t)
	if err := store.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one seeded account, got %d", store.Len())
	}
	acct, ok := store.Get("elonmusk")
	if !ok || !acct.Enabled || acct.LastPostID != "" {
		t.Fatalf("unexpected seed entry: %+v", acct)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("seed entry was not written back: %v", err)
	}
	if _, err := os.Stat(store.DataDir("elonmusk")); err != nil {
		t.Fatalf("data dir not created: %v", err)
	}
}

func TestLoadRejectsUnparseableFile(t *testing.T) {
	store, path := newTestStore(t)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := store.Load(); err == nil {
		t.Fatal("expected error for unparseable accounts file")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	if err := store.Load(); err != nil {
		t.Fatal(err)
	}
	acct, _ := store.Get("elonmusk")
	acct.LastPostID = "1234"
	store.Save()

	reloaded, _ := newTestStore(t)
	reloaded.path = store.path
	if err := reloaded.Load(); err != nil {
		t.Fatal(err)
	}
	got, ok := reloaded.Get("elonmusk")
	if !ok || got.LastPostID != "1234" {
		t.Fatalf("marker did not survive a save/load round trip: %+v", got)
	}
}

func TestCheckExternalUpdateReloads(t *testing.T) {
	store, path := newTestStore(t)
	if err := store.Load(); err != nil {
		t.Fatal(err)
	}

	edited := `{
    "added": {"name": "Added", "username": "added", "last_tweet_id": null, "enabled": true}
}`
	if err := os.WriteFile(path, []byte(edited), 0o644); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(5 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	store.CheckExternalUpdate()

	if _, ok := store.Get("elonmusk"); ok {
		t.Error("externally removed account still present")
	}
	acct, ok := store.Get("added")
	if !ok {
		t.Fatal("externally added account not picked up")
	}
	if acct.LastPostID != "" {
		t.Errorf("new account should start with an empty marker, got %q", acct.LastPostID)
	}
	if _, err := os.Stat(store.DataDir("added")); err != nil {
		t.Errorf("data dir for new account not created: %v", err)
	}
}

func TestCheckExternalUpdateIgnoresUnchangedFile(t *testing.T) {
	store, _ := newTestStore(t)
	if err := store.Load(); err != nil {
		t.Fatal(err)
	}
	before := store.Accounts()
	store.CheckExternalUpdate()
	after := store.Accounts()
	if len(before) != len(after) || before[0] != after[0] {
		t.Error("unchanged file should not trigger a reload")
	}
}

func TestCheckExternalUpdateKeepsPreviousOnParseError(t *testing.T) {
	store, path := newTestStore(t)
	if err := store.Load(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(5 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	store.CheckExternalUpdate()

	if _, ok := store.Get("elonmusk"); !ok {
		t.Error("previous registry should survive a failed reload")
	}
}

func TestAccountsOrderIsStable(t *testing.T) {
	store, path := newTestStore(t)
	body := `{
    "charlie": {"name": "C", "username": "charlie", "last_tweet_id": null, "enabled": true},
    "alpha": {"name": "A", "username": "alpha", "last_tweet_id": null, "enabled": true},
    "bravo": {"name": "B", "username": "bravo", "last_tweet_id": null, "enabled": false}
}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := store.Load(); err != nil {
		t.Fatal(err)
	}
	got := store.Accounts()
	want := []string{"alpha", "bravo", "charlie"}
	for i, handle := range want {
		if got[i].Handle != handle {
			t.Fatalf("accounts out of order: got %q at %d, want %q", got[i].Handle, i, handle)
		}
	}
}
