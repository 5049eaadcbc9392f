package village

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"sevaatlas/geo"
)

func TestResolver_ExplicitIDWins(t *testing.T) {
	repo := newFakeVillageRepo()
	existing := repo.seed(Village{Name: "Barapur", Block: "Tihidi", Lat: 21.0, Lng: 86.7})
	r := NewResolver(repo, &fakeGeoSource{}, nil)

	// The stored block overrides the hint.
	v, err := r.Resolve(context.Background(), "Barapur", "Bonth", &existing.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if v.ID != existing.ID {
		t.Fatalf("expected id %d got %d", existing.ID, v.ID)
	}
	if v.Block != "Tihidi" {
		t.Fatalf("expected stored block to be authoritative, got %q", v.Block)
	}
}

func TestResolver_StaleIDFallsBackToName(t *testing.T) {
	repo := newFakeVillageRepo()
	existing := repo.seed(Village{Name: "Barapur", Block: "Tihidi"})
	r := NewResolver(repo, &fakeGeoSource{}, nil)

	stale := existing.ID + 999
	v, err := r.Resolve(context.Background(), "Barapur", "Tihidi", &stale)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if v.ID != existing.ID {
		t.Fatalf("expected name lookup to find %d, got %d", existing.ID, v.ID)
	}
}

func TestResolver_NameRequired(t *testing.T) {
	r := NewResolver(newFakeVillageRepo(), &fakeGeoSource{}, nil)

	if _, err := r.Resolve(context.Background(), "   ", "Tihidi", nil); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("expected ErrNameRequired, got %v", err)
	}
}

func TestResolver_NormalizedLookupPrecedesCreation(t *testing.T) {
	repo := newFakeVillageRepo()
	existing := repo.seed(Village{Name: "Barapur", Block: "Tihidi"})
	r := NewResolver(repo, &fakeGeoSource{}, nil)

	v, err := r.Resolve(context.Background(), "  BARAPUR ", "tihidi", nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if v.ID != existing.ID {
		t.Fatalf("expected existing row %d, got new row %d", existing.ID, v.ID)
	}
	if repo.inserts != 0 {
		t.Fatalf("expected no insert, got %d", repo.inserts)
	}
}

func TestResolver_SiblingGeometry(t *testing.T) {
	repo := newFakeVillageRepo()
	repo.seed(Village{Name: "A", Block: "Tihidi", Lat: 21.0, Lng: 86.6, South: 20.9, West: 86.5, North: 21.1, East: 86.7})
	repo.seed(Village{Name: "B", Block: "Tihidi", Lat: 21.2, Lng: 86.8, South: 21.1, West: 86.7, North: 21.3, East: 86.9})
	r := NewResolver(repo, &fakeGeoSource{}, nil)

	v, err := r.Resolve(context.Background(), "Newvill", "Tihidi", nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if math.Abs(v.Lat-21.1) > 1e-9 || math.Abs(v.Lng-86.7) > 1e-9 {
		t.Fatalf("expected mean centroid (21.1, 86.7), got (%f, %f)", v.Lat, v.Lng)
	}
	if v.South != 20.9 || v.West != 86.5 || v.North != 21.3 || v.East != 86.9 {
		t.Fatalf("expected union bbox, got %+v", v)
	}
	if !v.GeoPending || v.ShowPin {
		t.Fatalf("new village must be geo-pending and hidden from pins: %+v", v)
	}
}

func TestResolver_ReferenceGeometry(t *testing.T) {
	repo := newFakeVillageRepo()
	source := &fakeGeoSource{blocks: map[string]geo.Geometry{
		"Tihidi": {Lat: 21.05, Lng: 86.65, South: 20.9, West: 86.6, North: 21.1, East: 86.7},
	}}
	r := NewResolver(repo, source, nil)

	v, err := r.Resolve(context.Background(), "Newvill", "Tihidi", nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if v.Lat != 21.05 || v.Lng != 86.65 {
		t.Fatalf("expected reference centroid, got (%f, %f)", v.Lat, v.Lng)
	}
}

func TestResolver_DefaultPointFallback(t *testing.T) {
	r := NewResolver(newFakeVillageRepo(), &fakeGeoSource{}, nil)

	v, err := r.Resolve(context.Background(), "Newvill", "Unknownblock", nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if v.Lat != defaultLat || v.Lng != defaultLng {
		t.Fatalf("expected district default point, got (%f, %f)", v.Lat, v.Lng)
	}
	if v.North-v.South <= 0 || v.East-v.West <= 0 {
		t.Fatalf("expected synthetic bbox, got %+v", v)
	}
}

func TestResolver_IdempotentCreation(t *testing.T) {
	repo := newFakeVillageRepo()
	r := NewResolver(repo, &fakeGeoSource{}, nil)

	first, err := r.Resolve(context.Background(), "Newvill", "Tihidi", nil)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	second, err := r.Resolve(context.Background(), "Newvill", "Tihidi", nil)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same village id, got %d and %d", first.ID, second.ID)
	}
	if repo.inserts != 1 {
		t.Fatalf("expected one insert, got %d", repo.inserts)
	}
}

func TestResolver_LostInsertRaceRefetches(t *testing.T) {
	repo := newFakeVillageRepo()
	winner := repo.seed(Village{Name: "Newvill", Block: "Tihidi"})
	repo.hideFromLookup = true // the other writer's row lands between lookup and insert
	r := NewResolver(repo, &fakeGeoSource{}, nil)

	v, err := r.Resolve(context.Background(), "Newvill", "Tihidi", nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if v.ID != winner.ID {
		t.Fatalf("expected winner row %d, got %d", winner.ID, v.ID)
	}
}

func TestResolver_BackfillGeometry(t *testing.T) {
	repo := newFakeVillageRepo()
	pending := repo.seed(Village{Name: "Newvill", Block: "Tihidi", GeoPending: true})
	source := &fakeGeoSource{blocks: map[string]geo.Geometry{
		"Tihidi": {Lat: 21.05, Lng: 86.65, South: 20.9, West: 86.6, North: 21.1, East: 86.7},
	}}
	r := NewResolver(repo, source, nil)

	v, err := r.BackfillGeometry(context.Background(), pending.ID)
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if v.GeoPending {
		t.Fatal("expected geo_pending cleared")
	}
	if !v.ShowPin {
		t.Fatal("expected pin re-enabled after backfill")
	}
	if v.Lat != 21.05 {
		t.Fatalf("expected backfilled centroid, got %f", v.Lat)
	}
}

type fakeGeoSource struct {
	blocks map[string]geo.Geometry
}

func (f *fakeGeoSource) BlockGeometry(block string) (geo.Geometry, bool, error) {
	for name, g := range f.blocks {
		if geo.NormalizeBlock(name) == geo.NormalizeBlock(block) {
			return g, true, nil
		}
	}
	return geo.Geometry{}, false, nil
}

type fakeVillageRepo struct {
	byID           map[int64]Village
	nextID         int64
	inserts        int
	hideFromLookup bool
}

func newFakeVillageRepo() *fakeVillageRepo {
	return &fakeVillageRepo{byID: make(map[int64]Village), nextID: 1}
}

func (f *fakeVillageRepo) seed(v Village) Village {
	v.ID = f.nextID
	f.nextID++
	f.byID[v.ID] = v
	return v
}

func nameBlockKey(name, block string) string {
	return strings.ToLower(strings.TrimSpace(name)) + "|" + strings.ToLower(strings.TrimSpace(block))
}

func (f *fakeVillageRepo) GetByID(ctx context.Context, id int64) (Village, error) {
	v, ok := f.byID[id]
	if !ok {
		return Village{}, ErrNotFound
	}
	return v, nil
}

func (f *fakeVillageRepo) GetByNameBlock(ctx context.Context, name, block string) (Village, error) {
	for _, v := range f.byID {
		if nameBlockKey(v.Name, v.Block) == nameBlockKey(name, block) {
			if f.hideFromLookup {
				// Simulate the row not being visible to the pre-insert
				// lookup: reveal it only after the insert conflict.
				f.hideFromLookup = false
				return Village{}, ErrNotFound
			}
			return v, nil
		}
	}
	return Village{}, ErrNotFound
}

func (f *fakeVillageRepo) ListByBlock(ctx context.Context, block string) ([]Village, error) {
	var out []Village
	for _, v := range f.byID {
		if strings.EqualFold(strings.TrimSpace(v.Block), strings.TrimSpace(block)) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeVillageRepo) Insert(ctx context.Context, v Village) (Village, error) {
	for _, existing := range f.byID {
		if nameBlockKey(existing.Name, existing.Block) == nameBlockKey(v.Name, v.Block) {
			return Village{}, ErrAlreadyExists
		}
	}
	f.inserts++
	return f.seed(v), nil
}

func (f *fakeVillageRepo) UpdateGeometry(ctx context.Context, id int64, geom Geometry, geoPending bool) (Village, error) {
	v, ok := f.byID[id]
	if !ok {
		return Village{}, ErrNotFound
	}
	v.Lat, v.Lng = geom.Lat, geom.Lng
	v.South, v.West, v.North, v.East = geom.South, geom.West, geom.North, geom.East
	v.GeoPending = geoPending
	v.ShowPin = !geoPending
	f.byID[id] = v
	return v, nil
}
