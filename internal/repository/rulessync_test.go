package repository

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lvonguyen/s1see/internal/model"
	"github.com/lvonguyen/s1see/internal/rules"
	"github.com/lvonguyen/s1see/internal/uecontext"
)

const testRuleset = `
ruleset:
  id: mobility
  version: "1.0"
  single_message_rules:
    - event_name: Mobility.Paging
      msg_type: Paging
`

func TestLoadOnceLoadsYAMLFilesFromLocalPath(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "mobility.yaml"), []byte(testRuleset), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("not yaml"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	engine := rules.New(uecontext.New(0), func() int64 { return 0 })
	syncer := &RuleSyncer{
		manager: nil,
		repo:    &Repository{Name: rulesRepoName, LocalPath: dir},
		engine:  engine,
	}

	if err := syncer.LoadOnce(); err != nil {
		t.Fatalf("LoadOnce: %v", err)
	}

	events := engine.Process(model.CanonicalMessage{MsgType: "Paging"}, "imsi:1")
	if len(events) != 1 || events[0].Name != "Mobility.Paging" {
		t.Fatalf("got %+v, want a single Mobility.Paging event from the loaded ruleset", events)
	}
}

func TestLoadOnceNoopWhenLocalPathUnset(t *testing.T) {
	syncer := &RuleSyncer{repo: &Repository{Name: rulesRepoName}, engine: rules.New(uecontext.New(0), func() int64 { return 0 })}
	if err := syncer.LoadOnce(); err != nil {
		t.Fatalf("LoadOnce: %v", err)
	}
}
