package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lysyi3m/news-sieve/app/content"
	"github.com/lysyi3m/news-sieve/app/oracle"
	"github.com/lysyi3m/news-sieve/app/store"
)

type fakeOracle struct {
	responses map[string]string // keyed by request tag
	err       error
}

func (f *fakeOracle) Complete(_ context.Context, req oracle.Request) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if resp, ok := f.responses[req.Tag]; ok {
		return resp, nil
	}
	return "", errors.New("no response configured")
}

func (f *fakeOracle) ExtractImageText(_ context.Context, _ string) (string, error) {
	return "", nil
}

type fakeItemRepo struct {
	items []store.DeliveredItem
}

func (f *fakeItemRepo) GetRecentItems(limit int) ([]store.DeliveredItem, error) {
	if limit <= 0 || limit > len(f.items) {
		return f.items, nil
	}
	return f.items[:limit], nil
}

func (f *fakeItemRepo) GetItemCount() (int, error) { return len(f.items), nil }

func (f *fakeItemRepo) InsertItem(item store.DeliveredItem) error {
	f.items = append(f.items, item)
	return nil
}

func (f *fakeItemRepo) EvictOldestItems(_ int) error { return nil }

func ids(items []*content.Item) []string {
	result := make([]string, len(items))
	for i, item := range items {
		result[i] = item.ID
	}
	return result
}

func TestIntervalStage_DropsOldItems(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-5 * time.Minute)
	old := now.Add(-2 * time.Hour)

	stage := NewIntervalStage(func() *time.Time { return nil }, 10*time.Minute)
	stage.now = func() time.Time { return now }

	items := []*content.Item{
		{ID: "recent", PublishedAt: &recent},
		{ID: "old", PublishedAt: &old},
	}

	result := stage.Run(context.Background(), items)

	if len(result) != 1 || result[0].ID != "recent" {
		t.Errorf("Expected only the recent item, got %v", ids(result))
	}
}

func TestIntervalStage_MissingDatePasses(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	stage := NewIntervalStage(func() *time.Time { return nil }, 10*time.Minute)
	stage.now = func() time.Time { return now }

	items := []*content.Item{{ID: "undated"}}

	result := stage.Run(context.Background(), items)

	if len(result) != 1 {
		t.Errorf("Items without a publish time must pass, got %v", ids(result))
	}
}

func TestIntervalStage_LastRunExtendsCutoff(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	lastRun := now.Add(-3 * time.Minute)
	published := now.Add(-5 * time.Minute)

	stage := NewIntervalStage(func() *time.Time { return &lastRun }, time.Hour)
	stage.now = func() time.Time { return now }

	items := []*content.Item{{ID: "seen", PublishedAt: &published}}

	// Published inside the hour interval but before the last run: already
	// processed in a previous cycle.
	result := stage.Run(context.Background(), items)

	if len(result) != 0 {
		t.Errorf("Item predating the last run should be dropped, got %v", ids(result))
	}
}

func TestWhitelistStage(t *testing.T) {
	configs := SourceConfigs{
		"src": {Name: "src", WhitelistHosts: []string{"example.com"}, WhitelistPaths: []string{"/local/"}},
	}
	stage := NewWhitelistStage(configs)

	items := []*content.Item{
		{ID: "host", SourceName: "src", Link: "https://example.com/a"},
		{ID: "subdomain", SourceName: "src", Link: "https://news.example.com/a"},
		{ID: "path", SourceName: "src", Link: "https://other.org/local/news"},
		{ID: "rejected", SourceName: "src", Link: "https://other.org/world/news"},
		{ID: "linkless", SourceName: "src"},
		{ID: "tweet", SourceName: "src", Kind: content.KindTweet, Link: "https://other.org/x"},
		{ID: "malformed", SourceName: "src", Link: "://not-a-url"},
		{ID: "unlisted", SourceName: "other", Link: "https://anything.net/a"},
	}

	result := stage.Run(context.Background(), items)

	got := ids(result)
	want := []string{"host", "subdomain", "path", "linkless", "tweet", "malformed", "unlisted"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, got)
			break
		}
	}
}

func TestBlacklistStage(t *testing.T) {
	configs := SourceConfigs{
		"src":     {Name: "src", BlacklistKeywords: []string{"horóscopo", "sorteo"}},
		"trusted": {Name: "trusted", SkipEvaluation: true, BlacklistKeywords: []string{"sorteo"}},
	}
	stage := NewBlacklistStage(configs)

	items := []*content.Item{
		{ID: "clean", SourceName: "src", Title: "Road closures downtown"},
		{ID: "title-hit", SourceName: "src", Title: "Horóscopo semanal"},
		{ID: "text-hit", SourceName: "src", Title: "Ganadores", Text: "el sorteo de anoche"},
		{ID: "trusted-hit", SourceName: "trusted", Title: "Sorteo results"},
	}

	result := stage.Run(context.Background(), items)

	got := ids(result)
	want := []string{"clean", "trusted-hit"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestTitleScreenStage_KeepsSelectedIndices(t *testing.T) {
	client := &fakeOracle{responses: map[string]string{"title-screen": "1, 3"}}
	stage := NewTitleScreenStage(client)

	items := []*content.Item{
		{ID: "a", Kind: content.KindArticle, Title: "First"},
		{ID: "b", Kind: content.KindArticle, Title: "Second"},
		{ID: "c", Kind: content.KindArticle, Title: "Third"},
		{ID: "t", Kind: content.KindTweet, Text: "tweet text"},
	}

	result := stage.Run(context.Background(), items)

	got := ids(result)
	want := []string{"a", "c", "t"}
	if len(got) != 3 || got[0] != "a" || got[1] != "c" || got[2] != "t" {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestTitleScreenStage_ParseFailureKeepsBatch(t *testing.T) {
	client := &fakeOracle{responses: map[string]string{"title-screen": "whatever looks interesting"}}
	stage := NewTitleScreenStage(client)

	items := []*content.Item{
		{ID: "a", Kind: content.KindArticle, Title: "First"},
		{ID: "b", Kind: content.KindArticle, Title: "Second"},
	}

	result := stage.Run(context.Background(), items)

	if len(result) != 2 {
		t.Errorf("Unparseable screen response must keep the batch, got %v", ids(result))
	}
}

func TestTitleScreenStage_SingleHeadlineSkipsCall(t *testing.T) {
	client := &fakeOracle{err: errors.New("should not be called")}
	stage := NewTitleScreenStage(client)

	items := []*content.Item{{ID: "a", Kind: content.KindArticle, Title: "Only one"}}

	result := stage.Run(context.Background(), items)

	if len(result) != 1 {
		t.Errorf("A single headline needs no screening, got %v", ids(result))
	}
}

func TestSourceEvalStage_FailClosed(t *testing.T) {
	configs := SourceConfigs{
		"curated": {Name: "curated", PromptSpecific: "Only items about the harbor district."},
	}

	// Oracle error: the curated source's relevance cannot be established.
	stage := NewSourceEvalStage(configs, &fakeOracle{err: errors.New("oracle down")}, 4000)
	items := []*content.Item{{ID: "a", SourceName: "curated", Text: "harbor news"}}

	if result := stage.Run(context.Background(), items); len(result) != 0 {
		t.Errorf("Oracle failure must drop prompt-specific items, got %v", ids(result))
	}

	// Plain rejection.
	stage = NewSourceEvalStage(configs, &fakeOracle{responses: map[string]string{
		"source-eval": "no::unrelated to the harbor",
	}}, 4000)
	items = []*content.Item{{ID: "a", SourceName: "curated", Text: "stadium news"}}

	if result := stage.Run(context.Background(), items); len(result) != 0 {
		t.Errorf("Rejected items must be dropped, got %v", ids(result))
	}
}

func TestSourceEvalStage_AcceptAnnotatesJustification(t *testing.T) {
	configs := SourceConfigs{
		"curated": {Name: "curated", PromptSpecific: "Only items about the harbor district."},
	}
	stage := NewSourceEvalStage(configs, &fakeOracle{responses: map[string]string{
		"source-eval": "yes::directly about the harbor expansion",
	}}, 4000)

	items := []*content.Item{
		{ID: "a", SourceName: "curated", Text: "harbor expansion approved"},
		{ID: "plain", SourceName: "other", Text: "no custom prompt here"},
	}

	result := stage.Run(context.Background(), items)

	if len(result) != 2 {
		t.Fatalf("Expected both items kept, got %v", ids(result))
	}
	if result[0].Justification != "directly about the harbor expansion" {
		t.Errorf("Accepted item should carry the justification, got %q", result[0].Justification)
	}
}

func TestFullContentStage_FailClosed(t *testing.T) {
	configs := SourceConfigs{
		"src":     {Name: "src"},
		"trusted": {Name: "trusted", SkipEvaluation: true},
	}
	client := &fakeOracle{responses: map[string]string{
		"relevance": "not relevant::national story without local angle",
	}}
	stage := NewFullContentStage(configs, client, nil, 4000)

	items := []*content.Item{
		{ID: "evaluated", SourceName: "src", Title: "National budget debate"},
		{ID: "trusted", SourceName: "trusted", Title: "Official alert"},
	}

	result := stage.Run(context.Background(), items)

	if len(result) != 1 || result[0].ID != "trusted" {
		t.Errorf("Only the skip-evaluation item should survive, got %v", ids(result))
	}
}

func TestDupCheckStage_FailOpen(t *testing.T) {
	repo := &fakeItemRepo{items: []store.DeliveredItem{
		{ID: "prev1", Summary: "Bridge closure downtown"},
	}}
	client := &fakeOracle{responses: map[string]string{
		"dup-check": "it might be similar to something",
	}}
	stage := NewDupCheckStage(client, repo, 4000)

	items := []*content.Item{{ID: "a", Title: "Bridge closed again"}}

	result := stage.Run(context.Background(), items)

	if len(result) != 1 {
		t.Errorf("Inconclusive duplicate check must keep the item, got %v", ids(result))
	}
}

func TestDupCheckStage_DropsDuplicates(t *testing.T) {
	repo := &fakeItemRepo{items: []store.DeliveredItem{
		{ID: "prev1", Summary: "Bridge closure downtown"},
	}}
	client := &fakeOracle{responses: map[string]string{
		"dup-check": "duplicate::prev1::same closure, new outlet",
	}}
	stage := NewDupCheckStage(client, repo, 4000)

	items := []*content.Item{{ID: "a", Title: "Downtown bridge still closed"}}

	result := stage.Run(context.Background(), items)

	if len(result) != 0 {
		t.Errorf("Confirmed duplicate must be dropped, got %v", ids(result))
	}
}

func TestDupCheckStage_EmptyHistorySkipsOracle(t *testing.T) {
	stage := NewDupCheckStage(&fakeOracle{err: errors.New("should not be called")}, &fakeItemRepo{}, 4000)

	items := []*content.Item{{ID: "a", Title: "Fresh story"}}

	result := stage.Run(context.Background(), items)

	if len(result) != 1 {
		t.Errorf("Empty history needs no duplicate check, got %v", ids(result))
	}
}

func TestGroupingStage_HighestPriorityWins(t *testing.T) {
	configs := SourceConfigs{
		"wire":  {Name: "wire", Priority: 1},
		"local": {Name: "local", Priority: 5},
	}
	client := &fakeOracle{responses: map[string]string{"grouping": "1, 2"}}
	stage := NewGroupingStage(configs, client)

	items := []*content.Item{
		{ID: "wire-story", SourceName: "wire", Title: "Fire at the port"},
		{ID: "local-story", SourceName: "local", Title: "Port fire under control"},
		{ID: "other", SourceName: "wire", Title: "Election schedule set"},
	}

	result := stage.Run(context.Background(), items)

	got := ids(result)
	if len(got) != 2 || got[0] != "local-story" || got[1] != "other" {
		t.Errorf("Expected [local-story other], got %v", got)
	}
}

func TestGroupingStage_TieBreaksOnEarliestPosition(t *testing.T) {
	configs := SourceConfigs{
		"wire": {Name: "wire", Priority: 1},
	}
	client := &fakeOracle{responses: map[string]string{"grouping": "2, 1"}}
	stage := NewGroupingStage(configs, client)

	items := []*content.Item{
		{ID: "first", SourceName: "wire", Title: "Fire at the port"},
		{ID: "second", SourceName: "wire", Title: "Port fire under control"},
	}

	result := stage.Run(context.Background(), items)

	if len(result) != 1 || result[0].ID != "first" {
		t.Errorf("Equal priority should keep the earliest item, got %v", ids(result))
	}
}

func TestGroupingStage_NoGroupsKeepsBatch(t *testing.T) {
	configs := SourceConfigs{"wire": {Name: "wire"}}
	client := &fakeOracle{responses: map[string]string{"grouping": "none"}}
	stage := NewGroupingStage(configs, client)

	items := []*content.Item{
		{ID: "a", SourceName: "wire", Title: "One"},
		{ID: "b", SourceName: "wire", Title: "Two"},
	}

	result := stage.Run(context.Background(), items)

	if len(result) != 2 {
		t.Errorf("No groups reported, batch must survive, got %v", ids(result))
	}
}
