package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"

	"melhor-casa/models"
	"melhor-casa/services"
	"melhor-casa/storage"
	"melhor-casa/utils"
)

func newTestApp() *App { return New(utils.NopLogger()) }

func olxRows() []models.Row {
	return []models.Row{
		{"Título": "Apartamento Savassi", "Preço": "R$ 500.000", "Tamanho": "80 m²", "Localização": "Savassi", "Link": "https://olx.com.br/1", "Quartos": "2", "Garagem": "1"},
		{"Título": "Casa Pampulha", "Preço": "R$ 900.000", "Tamanho": "200 m²", "Localização": "Pampulha", "Link": "https://olx.com.br/2", "Quartos": "4", "Garagem": "3"},
		{"Título": "Apartamento Savassi repost", "Preço": "R$ 480.000", "Tamanho": "80 m²", "Localização": "Savassi", "Link": "https://olx.com.br/1", "Quartos": "2", "Garagem": "1"},
	}
}

func mustImport(t *testing.T, a *App) []models.Property {
	t.Helper()
	if _, _, err := a.ImportRows("olx", olxRows()); err != nil {
		t.Fatalf("ImportRows: %v", err)
	}
	return a.Partition(models.StatusUnseen)
}

func TestImportRowsDeduplicatesByLink(t *testing.T) {
	a := newTestApp()
	a.Filters.PriceMin = "1"

	added, keys, err := a.ImportRows("olx", olxRows())
	if err != nil {
		t.Fatalf("ImportRows: %v", err)
	}
	if added != 2 || a.Len() != 2 {
		t.Fatalf("added %d, store has %d; want 2", added, a.Len())
	}
	if !reflect.DeepEqual(keys, []Key{KeyWorkingSet}) {
		t.Errorf("dirty keys: got %v", keys)
	}
	if !a.ShowAll || a.Filters.PriceMin != "" {
		t.Error("import with new records should reset filters and enable ShowAll")
	}

	unseen := a.Partition(models.StatusUnseen)
	if unseen[0].Name != "Apartamento Savassi" {
		t.Errorf("first occurrence should win, got %q", unseen[0].Name)
	}
	if unseen[0].PriceValue != 500000 {
		t.Errorf("imported records should be enhanced, PriceValue = %d", unseen[0].PriceValue)
	}
}

// olxWorkbook lays olxRows out as an OLX spreadsheet.
func olxWorkbook(t *testing.T) *bytes.Buffer {
	t.Helper()
	header := []string{"Título", "Preço", "Tamanho", "Localização", "Link", "Quartos", "Garagem"}
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		t.Fatal(err)
	}
	for i, row := range olxRows() {
		cells := make([]string, len(header))
		for c, col := range header {
			cells[c] = row[col]
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			t.Fatal(err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return buf
}

func TestImportWorkbookEndToEnd(t *testing.T) {
	rows, err := storage.ReadWorkbook(olxWorkbook(t))
	if err != nil {
		t.Fatalf("ReadWorkbook: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("read %d rows, want 3", len(rows))
	}

	a := newTestApp()
	added, _, err := a.ImportRows("olx", rows)
	if err != nil {
		t.Fatalf("ImportRows: %v", err)
	}
	if added != 2 {
		t.Fatalf("added %d, want 2 after link dedup", added)
	}

	unseen := a.Partition(models.StatusUnseen)
	if unseen[0].Name != "Apartamento Savassi" || unseen[0].PriceValue != 500000 || unseen[0].AreaValue != 80 {
		t.Errorf("first record: %+v", unseen[0])
	}
	if unseen[1].RoomsValue == nil || *unseen[1].RoomsValue != 4 {
		t.Errorf("rooms of second record: %v", unseen[1].RoomsValue)
	}
}

func TestImportRowsAgainAddsNothing(t *testing.T) {
	a := newTestApp()
	mustImport(t, a)
	a.ShowAll = false

	added, keys, err := a.ImportRows("olx", olxRows())
	if err != nil {
		t.Fatalf("ImportRows: %v", err)
	}
	if added != 0 || keys != nil || a.ShowAll {
		t.Errorf("re-import: added %d keys %v showAll %v", added, keys, a.ShowAll)
	}
}

func TestImportRowsUnsupportedSiteLeavesStateUntouched(t *testing.T) {
	a := newTestApp()
	mustImport(t, a)
	a.ShowAll = false

	_, _, err := a.ImportRows("nope", olxRows())
	if !errors.Is(err, services.ErrUnsupportedSite) {
		t.Fatalf("got %v, want ErrUnsupportedSite", err)
	}
	if a.Len() != 2 || a.ShowAll {
		t.Error("failed import must not mutate state")
	}
}

func TestImportSkipsTriagedLinks(t *testing.T) {
	a := newTestApp()
	unseen := mustImport(t, a)
	if _, err := a.Dislike(unseen[0].ID); err != nil {
		t.Fatalf("Dislike: %v", err)
	}

	added, _, err := a.ImportRows("olx", olxRows())
	if err != nil {
		t.Fatalf("ImportRows: %v", err)
	}
	if added != 0 {
		t.Errorf("a disliked link must not come back as unseen, added %d", added)
	}
}

func TestDislikeAfterLikeIsExclusive(t *testing.T) {
	a := newTestApp()
	id := mustImport(t, a)[0].ID

	if _, err := a.Like(id); err != nil {
		t.Fatalf("Like: %v", err)
	}
	keys, err := a.Dislike(id)
	if err != nil {
		t.Fatalf("Dislike: %v", err)
	}
	if !reflect.DeepEqual(keys, []Key{KeyLiked, KeyDisliked}) {
		t.Errorf("dirty keys: got %v", keys)
	}

	for _, p := range a.Partition(models.StatusLiked) {
		if p.ID == id {
			t.Error("record still in liked partition")
		}
	}
	count := 0
	for _, p := range a.Partition(models.StatusDisliked) {
		if p.ID == id {
			count++
		}
	}
	if count != 1 {
		t.Errorf("record appears %d times in disliked, want 1", count)
	}
}

func TestTransitions(t *testing.T) {
	a := newTestApp()
	unseen := mustImport(t, a)
	id := unseen[0].ID

	if _, err := a.MoveToLiked(id); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("MoveToLiked from unseen: got %v", err)
	}
	if _, err := a.Remove(id); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Remove unseen: got %v", err)
	}
	if _, err := a.Like("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Like missing: got %v", err)
	}

	if _, err := a.Like(id); err != nil {
		t.Fatalf("Like: %v", err)
	}
	if keys, err := a.Like(id); err != nil || keys != nil {
		t.Errorf("liking twice should be a no-op, got %v %v", keys, err)
	}
	if _, err := a.MoveToDisliked(id); err != nil {
		t.Fatalf("MoveToDisliked: %v", err)
	}
	if _, err := a.MoveToLiked(id); err != nil {
		t.Fatalf("MoveToLiked: %v", err)
	}

	keys, err := a.Remove(id)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !reflect.DeepEqual(keys, []Key{KeyLiked}) {
		t.Errorf("Remove dirty keys: got %v", keys)
	}
	if _, ok := a.Get(id); ok {
		t.Error("removed record still present")
	}
}

func TestClearDisliked(t *testing.T) {
	a := newTestApp()
	unseen := mustImport(t, a)
	for _, p := range unseen {
		if _, err := a.Dislike(p.ID); err != nil {
			t.Fatalf("Dislike: %v", err)
		}
	}

	if keys := a.ClearDisliked(); !reflect.DeepEqual(keys, []Key{KeyDisliked}) {
		t.Errorf("dirty keys: got %v", keys)
	}
	if a.Len() != 0 {
		t.Errorf("store has %d records, want 0", a.Len())
	}
	if keys := a.ClearDisliked(); keys != nil {
		t.Errorf("second clear should report nothing, got %v", keys)
	}
}

func TestAddTag(t *testing.T) {
	a := newTestApp()
	unseen := mustImport(t, a)
	id := unseen[1].ID
	if _, err := a.Like(id); err != nil {
		t.Fatalf("Like: %v", err)
	}

	keys, err := a.AddTag(id, " visitar ")
	if err != nil {
		t.Fatalf("AddTag: %v", err)
	}
	if !reflect.DeepEqual(keys, []Key{KeyLiked, KeyTags}) {
		t.Errorf("dirty keys: got %v", keys)
	}
	if keys, _ := a.AddTag(id, "visitar"); keys != nil {
		t.Errorf("repeated tag should change nothing, got %v", keys)
	}
	if _, err := a.AddTag(id, "  "); !errors.Is(err, ErrEmptyTag) {
		t.Errorf("empty tag: got %v", err)
	}

	tagged := a.TaggedView(models.StatusLiked, []string{"visitar", "outro"})
	if len(tagged) != 1 || tagged[0].ID != id {
		t.Errorf("TaggedView: got %+v", tagged)
	}
	if len(a.TaggedView(models.StatusLiked, []string{"outro"})) != 0 {
		t.Error("TaggedView should match nothing for an unused tag")
	}
	if !reflect.DeepEqual(a.AvailableTags, []string{"visitar"}) {
		t.Errorf("AvailableTags: got %v", a.AvailableTags)
	}
}

func TestVisibleFiltersAndSorts(t *testing.T) {
	a := newTestApp()
	mustImport(t, a)

	all := a.Visible()
	if len(all) != 2 || all[0].PriceValue != 900000 {
		t.Fatalf("default sort should be price desc, got %+v", all)
	}

	a.SetShowAll(false)
	f := models.DefaultFilters()
	f.PriceMax = "600.000"
	a.SetFilters(f)
	got := a.Visible()
	if len(got) != 1 || got[0].PriceValue != 500000 {
		t.Errorf("PriceMax filter: got %+v", got)
	}

	a.ResetFilters()
	if err := a.SetSort(models.SortOption{Field: models.SortByArea, Direction: models.Ascending}); err != nil {
		t.Fatalf("SetSort: %v", err)
	}
	got = a.Visible()
	if got[0].AreaValue != 80 {
		t.Errorf("area asc: got %d first", got[0].AreaValue)
	}
	if err := a.SetSort(models.SortOption{Field: "rating"}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("bad sort: got %v", err)
	}
}

func TestVisibleExcludesTriaged(t *testing.T) {
	a := newTestApp()
	unseen := mustImport(t, a)
	if _, err := a.Like(unseen[0].ID); err != nil {
		t.Fatalf("Like: %v", err)
	}
	if got := a.Visible(); len(got) != 1 || got[0].ID != unseen[1].ID {
		t.Errorf("Visible: got %+v", got)
	}
}

func TestSetLocationRefreshesDistances(t *testing.T) {
	a := newTestApp()
	lat, lon := -19.913, -43.9
	added, _ := a.AddScraped([]models.Property{{
		ID:        "scraped-1",
		Name:      "Com coordenadas",
		Price:     "R$ 100.000",
		Link:      "https://x/1",
		Latitude:  &lat,
		Longitude: &lon,
	}})
	if added != 1 {
		t.Fatalf("added %d, want 1", added)
	}

	keys := a.SetLocation(&models.UserLocation{Address: "Centro", Latitude: -19.9, Longitude: -43.9})
	if keys[0] != KeyLocation {
		t.Errorf("dirty keys: got %v", keys)
	}
	p, _ := a.Get("scraped-1")
	if p.Distance == nil || *p.Distance < 1.43 || *p.Distance > 1.46 {
		t.Errorf("Distance: got %v, want ≈1.44", p.Distance)
	}

	a.SetLocation(nil)
	if p, _ := a.Get("scraped-1"); p.Distance != nil {
		t.Error("clearing the location should clear distances")
	}
}

func TestSetCoordinates(t *testing.T) {
	a := newTestApp()
	a.SetLocation(&models.UserLocation{Latitude: -19.9, Longitude: -43.9})
	a.AddScraped([]models.Property{{ID: "scraped-1", Price: "R$ 100.000", Link: "https://x/1"}})
	if _, err := a.Like("scraped-1"); err != nil {
		t.Fatal(err)
	}

	keys, err := a.SetCoordinates("scraped-1", -19.913, -43.9)
	if err != nil {
		t.Fatalf("SetCoordinates: %v", err)
	}
	if len(keys) != 1 || keys[0] != KeyLiked {
		t.Errorf("dirty keys: got %v", keys)
	}
	p, _ := a.Get("scraped-1")
	if p.Geohash == "" || p.Distance == nil || *p.Distance < 1.43 || *p.Distance > 1.46 {
		t.Errorf("derived fields: geohash %q distance %v", p.Geohash, p.Distance)
	}

	if _, err := a.SetCoordinates("missing", 0, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id: got %v", err)
	}
}

func TestSavings(t *testing.T) {
	a := newTestApp()
	id := mustImport(t, a)[0].ID

	if _, err := a.AddMoney("R$ 1000"); err != nil {
		t.Fatalf("AddMoney: %v", err)
	}
	if _, err := a.AddMoney("zero"); err == nil {
		t.Error("AddMoney should reject input without an amount")
	}
	keys, err := a.SetTargetDate(id, "2027-12-31")
	if err != nil {
		t.Fatalf("SetTargetDate: %v", err)
	}
	if !reflect.DeepEqual(keys, []Key{KeyGoals}) {
		t.Errorf("dirty keys: got %v", keys)
	}
	g := services.FindGoal(a.Goals, id)
	if g == nil || g.CurrentSavings != 1000 {
		t.Errorf("goal: %+v", g)
	}
	if _, err := a.SetTargetDate("missing", "2027-12-31"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown property: got %v", err)
	}
}

// memKV keeps JSON blobs in memory.
type memKV struct {
	data map[string][]byte
	puts []string
}

func newMemKV() *memKV { return &memKV{data: make(map[string][]byte)} }

func (m *memKV) Get(key string, dst any) (bool, error) {
	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, nil
	}
	return true, nil
}

func (m *memKV) Put(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	m.puts = append(m.puts, key)
	return nil
}

func TestPersistAndLoadRoundTrip(t *testing.T) {
	a := newTestApp()
	unseen := mustImport(t, a)
	_, _ = a.Like(unseen[0].ID)
	_, _ = a.AddTag(unseen[0].ID, "favorito")
	_, _ = a.AddMoney("500")
	a.SetLocation(&models.UserLocation{Address: "Savassi", Latitude: -19.93, Longitude: -43.93})

	kv := newMemKV()
	if err := Persist(kv, a, AllKeys...); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	b := newTestApp()
	if err := Load(kv, b); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b.Len() != 2 {
		t.Fatalf("loaded %d records, want 2", b.Len())
	}
	liked := b.Partition(models.StatusLiked)
	if len(liked) != 1 || liked[0].ID != unseen[0].ID || !liked[0].HasTag("favorito") {
		t.Errorf("liked partition: %+v", liked)
	}
	if b.TotalSavings != 500 || b.Location == nil || b.Location.Address != "Savassi" {
		t.Errorf("savings %v location %+v", b.TotalSavings, b.Location)
	}
	if !reflect.DeepEqual(b.AvailableTags, []string{"favorito"}) {
		t.Errorf("tags: %v", b.AvailableTags)
	}
}

func TestPersistWritesOnlyDirtyKeys(t *testing.T) {
	a := newTestApp()
	kv := newMemKV()
	if err := Persist(kv, a, KeyLiked, KeyWorkingSet, KeyLiked); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if !reflect.DeepEqual(kv.puts, []string{"likedProperties", "workingSet"}) {
		t.Errorf("puts: %v", kv.puts)
	}
	if string(kv.data["likedProperties"]) != "[]" {
		t.Errorf("empty partition should persist as [], got %s", kv.data["likedProperties"])
	}
}

func TestLoadPrefersTriagedCopy(t *testing.T) {
	kv := newMemKV()
	_ = kv.Put(string(KeyWorkingSet), []models.Property{{ID: "u", Link: "https://x/1"}})
	_ = kv.Put(string(KeyDisliked), []models.Property{{ID: "d", Link: "https://x/1"}})
	kv.data[string(KeyTags)] = []byte("{not json")

	a := newTestApp()
	if err := Load(kv, a); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if a.Len() != 1 {
		t.Fatalf("got %d records, want 1", a.Len())
	}
	if p, ok := a.Get("d"); !ok || p.Status != models.StatusDisliked {
		t.Errorf("expected disliked copy to win, got %+v", p)
	}
	if len(a.AvailableTags) != 0 {
		t.Errorf("malformed tags should fall back to empty, got %v", a.AvailableTags)
	}
}
