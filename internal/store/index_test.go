package store

import (
	"os"
	"testing"

	"github.com/xcawolfe-amzn/teamchat/internal/fsio"
)

func TestShardKeyStable(t *testing.T) {
	// SHA-1("msg_flow_1") begins 0x17...; the key is its first two hex chars.
	k1 := shardKey("msg_flow_1")
	k2 := shardKey("msg_flow_1")
	if k1 != k2 {
		t.Fatalf("shardKey not deterministic: %q vs %q", k1, k2)
	}
	if len(k1) != 2 {
		t.Fatalf("shardKey length = %d, want 2", len(k1))
	}
}

func TestWriteThenReadIndexEntry(t *testing.T) {
	stateDir := t.TempDir()

	entry := MessageIndexEntry{CreatedAt: "2024-05-01T10:00:00Z", Inbox: "dev.jsonl", To: "dev"}
	if err := writeIndexEntry(stateDir, indexMessages, "msg_1", entry); err != nil {
		t.Fatalf("writeIndexEntry: %v", err)
	}

	got, found, err := readIndexEntry[MessageIndexEntry](stateDir, indexMessages, "msg_1")
	if err != nil || !found {
		t.Fatalf("readIndexEntry: found=%v err=%v", found, err)
	}
	if got.Inbox != "dev.jsonl" || got.To != "dev" {
		t.Errorf("entry = %+v", got)
	}

	// The write landed in the sharded layout.
	shard := shardPath(stateDir, indexMessages, "msg_1")
	if _, err := os.Stat(shard); err != nil {
		t.Errorf("shard file missing: %v", err)
	}
	if _, err := os.Stat(monolithicPath(stateDir, indexMessages)); !os.IsNotExist(err) {
		t.Error("monolithic file should not exist for fresh writes")
	}
}

func TestReadIndexEntryMonolithicFallback(t *testing.T) {
	stateDir := t.TempDir()

	mono := map[string]MessageIndexEntry{
		"msg_old": {CreatedAt: "2023-01-01T00:00:00Z", Inbox: "qa.jsonl", To: "qa"},
	}
	if err := fsio.WriteJSONAtomic(monolithicPath(stateDir, indexMessages), mono); err != nil {
		t.Fatalf("seeding monolithic index: %v", err)
	}

	got, found, err := readIndexEntry[MessageIndexEntry](stateDir, indexMessages, "msg_old")
	if err != nil || !found {
		t.Fatalf("monolithic lookup: found=%v err=%v", found, err)
	}
	if got.To != "qa" {
		t.Errorf("entry = %+v", got)
	}
	if got.Offset != nil {
		t.Error("legacy entry should have no offset")
	}

	_, found, err = readIndexEntry[MessageIndexEntry](stateDir, indexMessages, "msg_absent")
	if err != nil {
		t.Fatalf("absent lookup: %v", err)
	}
	if found {
		t.Error("absent id reported found")
	}
}

func TestShardWinsOverMonolithic(t *testing.T) {
	stateDir := t.TempDir()

	mono := map[string]AckEntry{"msg_1": {Agent: "stale", MessageID: "msg_1"}}
	if err := fsio.WriteJSONAtomic(monolithicPath(stateDir, indexAcks), mono); err != nil {
		t.Fatalf("seeding monolithic: %v", err)
	}
	if err := writeIndexEntry(stateDir, indexAcks, "msg_1", AckEntry{Agent: "fresh", MessageID: "msg_1"}); err != nil {
		t.Fatalf("writeIndexEntry: %v", err)
	}

	got, found, err := readIndexEntry[AckEntry](stateDir, indexAcks, "msg_1")
	if err != nil || !found {
		t.Fatalf("lookup: found=%v err=%v", found, err)
	}
	if got.Agent != "fresh" {
		t.Errorf("agent = %q, want shard entry to win", got.Agent)
	}

	merged, err := loadIndex[AckEntry](stateDir, indexAcks)
	if err != nil {
		t.Fatalf("loadIndex: %v", err)
	}
	if len(merged) != 1 || merged["msg_1"].Agent != "fresh" {
		t.Errorf("merged = %+v", merged)
	}
}

func TestLoadIndexMergesBothLayouts(t *testing.T) {
	stateDir := t.TempDir()

	mono := map[string]EventIndexEntry{
		"evt_mono": {CreatedAt: "2024-01-01T00:00:00Z", File: "2024-01-01.jsonl"},
	}
	if err := fsio.WriteJSONAtomic(monolithicPath(stateDir, indexEvents), mono); err != nil {
		t.Fatalf("seeding: %v", err)
	}
	if err := writeIndexEntry(stateDir, indexEvents, "evt_shard", EventIndexEntry{CreatedAt: "2024-02-02T00:00:00Z", File: "2024-02-02.jsonl"}); err != nil {
		t.Fatalf("writeIndexEntry: %v", err)
	}

	merged, err := loadIndex[EventIndexEntry](stateDir, indexEvents)
	if err != nil {
		t.Fatalf("loadIndex: %v", err)
	}
	if len(merged) != 2 {
		t.Fatalf("merged size = %d, want 2", len(merged))
	}
	if merged["evt_mono"].File != "2024-01-01.jsonl" || merged["evt_shard"].File != "2024-02-02.jsonl" {
		t.Errorf("merged = %+v", merged)
	}
}

func TestReplaceIndexDropsOldLayouts(t *testing.T) {
	stateDir := t.TempDir()

	if err := fsio.WriteJSONAtomic(monolithicPath(stateDir, indexMessages), map[string]MessageIndexEntry{
		"msg_legacy": {Inbox: "dev.jsonl", To: "dev"},
	}); err != nil {
		t.Fatalf("seeding monolithic: %v", err)
	}
	if err := writeIndexEntry(stateDir, indexMessages, "msg_gone", MessageIndexEntry{Inbox: "qa.jsonl", To: "qa"}); err != nil {
		t.Fatalf("seeding shard: %v", err)
	}

	fresh := map[string]MessageIndexEntry{
		"msg_kept": {CreatedAt: "2024-05-01T10:00:00Z", Inbox: "dev.jsonl", To: "dev"},
	}
	if err := replaceIndex(stateDir, indexMessages, fresh); err != nil {
		t.Fatalf("replaceIndex: %v", err)
	}

	if _, err := os.Stat(monolithicPath(stateDir, indexMessages)); !os.IsNotExist(err) {
		t.Error("monolithic file survived replace")
	}

	merged, err := loadIndex[MessageIndexEntry](stateDir, indexMessages)
	if err != nil {
		t.Fatalf("loadIndex: %v", err)
	}
	if len(merged) != 1 {
		t.Fatalf("index after replace = %+v, want only msg_kept", merged)
	}
	if _, ok := merged["msg_kept"]; !ok {
		t.Error("msg_kept missing after replace")
	}

	// The stale shard file for msg_gone is removed unless msg_kept shares
	// its shard.
	if shardKey("msg_gone") != shardKey("msg_kept") {
		if _, err := os.Stat(shardPath(stateDir, indexMessages, "msg_gone")); !os.IsNotExist(err) {
			t.Error("stale shard file survived replace")
		}
	}
}
